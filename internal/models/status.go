package models

import "time"

// Status event constants.
const (
	StatusEventQueued = "queued"
	StatusEventSent   = "sent"
	StatusEventFailed = "failed"
)

// ProviderResponse captures the normalized gateway reply.
type ProviderResponse struct {
	Status  string            `json:"status"`
	Code    *int              `json:"code,omitempty"`
	Message string            `json:"message,omitempty"`
	Raw     string            `json:"raw,omitempty"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// StatusEvent represents a lifecycle update for one request.
type StatusEvent struct {
	MessageID        string            `json:"message_id"`
	Kind             string            `json:"kind,omitempty"`
	EventType        string            `json:"event_type"`
	FailureClass     string            `json:"failure_class,omitempty"`
	ProviderResponse *ProviderResponse `json:"provider_response,omitempty"`
	Error            string            `json:"error,omitempty"`
	TraceID          string            `json:"trace_id,omitempty"`
	DurationMs       int64             `json:"duration_ms,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
}
