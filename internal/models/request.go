package models

import (
	"encoding/json"
	"time"
)

// Request kinds.
const (
	KindBatch = "batch"
	KindFlow  = "flow"
)

// SMSRequest is the payload accepted by the worker and the HTTP API. A batch
// request sends every entry of Messages to every number in To; a flow request
// fills the FlowID template with Params for the numbers in To.
type SMSRequest struct {
	MessageID string            `json:"message_id"`
	Kind      string            `json:"kind"`
	TraceID   string            `json:"trace_id,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	To        []string          `json:"to"`
	Messages  []string          `json:"messages,omitempty"`
	Country   string            `json:"country,omitempty"`
	FlowID    string            `json:"flow_id,omitempty"`
	Params    json.RawMessage   `json:"params,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}
