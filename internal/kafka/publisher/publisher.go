package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/rs/zerolog"

	"github.com/niksrid/sendsms-go/internal/models"
)

// ErrProducerNotInitialised is returned when publishing through a nil
// publisher or producer.
var ErrProducerNotInitialised = errors.New("kafka publisher: producer not initialised")

// Header names set on every status event.
const (
	HeaderContentType = "content-type"
	HeaderTraceID     = "trace-id"
	HeaderEventType   = "event-type"
)

// SyncProducer is the producer behaviour the publisher relies on.
type SyncProducer interface {
	PublishSync(topic string, key []byte, headers map[string][]byte, payload []byte) error
}

// StatusPublisher writes StatusEvents as JSON, keyed by message id so every
// event for a request lands on the same partition.
type StatusPublisher struct {
	producer SyncProducer
	topic    string
	logger   zerolog.Logger
}

// NewStatusPublisher returns nil when prod is nil.
func NewStatusPublisher(prod SyncProducer, topic string, logger zerolog.Logger) *StatusPublisher {
	if prod == nil {
		return nil
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &StatusPublisher{producer: prod, topic: topic, logger: logger}
}

// PublishStatus marshals and publishes event synchronously.
func (p *StatusPublisher) PublishStatus(ctx context.Context, event models.StatusEvent) error {
	if p == nil || p.producer == nil {
		return ErrProducerNotInitialised
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka publisher: marshal status event: %w", err)
	}

	headers := map[string][]byte{
		HeaderContentType: []byte("application/json"),
		HeaderEventType:   []byte(event.EventType),
	}
	if event.TraceID != "" {
		headers[HeaderTraceID] = []byte(event.TraceID)
	}

	if err := p.producer.PublishSync(p.topic, []byte(event.MessageID), headers, payload); err != nil {
		return fmt.Errorf("kafka publisher: publish status event: %w", err)
	}

	p.logger.Debug().
		Str("message_id", event.MessageID).
		Str("event", event.EventType).
		Msg("status event published")
	return nil
}
