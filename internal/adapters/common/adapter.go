package common

import (
	"context"
	"time"

	"github.com/niksrid/sendsms-go/internal/models"
)

// Adapter sends a validated request to the gateway and returns the normalized
// reply. Errors are wrapped with ErrTransient or ErrPermanent.
type Adapter interface {
	Send(ctx context.Context, msg *ValidatedMessage) (*ProviderResponse, error)
}

// ValidatedMessage is a request that passed validation, together with the
// transport details it arrived with.
type ValidatedMessage struct {
	MessageID  string
	TraceID    string
	CreatedAt  time.Time
	Request    *models.SMSRequest
	RawPayload []byte
	Key        []byte
	Headers    map[string][]byte
}
