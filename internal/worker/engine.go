package worker

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	common "github.com/niksrid/sendsms-go/internal/adapters/common"
	"github.com/niksrid/sendsms-go/internal/models"
)

// Failure classes reported on failed status events.
const (
	FailureValidation = "validation"
	FailurePermanent  = "permanent"
	FailureTransient  = "transient"
	FailureUnknown    = "unknown"
)

// Config holds the engine limits.
type Config struct {
	MsgMaxBytes       int
	WorkerConcurrency int
}

// Record is a request delivered by the consumer, with the function that
// commits its offset.
type Record struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Timestamp time.Time
	Headers   map[string][]byte

	commit func(context.Context) error
}

// NewRecord binds commit to a record. A nil commit makes Commit a no-op.
func NewRecord(topic string, partition int32, offset int64, key, value []byte, headers map[string][]byte, commit func(context.Context) error) *Record {
	return &Record{
		Topic:     topic,
		Partition: partition,
		Offset:    offset,
		Key:       cloneBytes(key),
		Value:     cloneBytes(value),
		Headers:   cloneHeaders(headers),
		commit:    commit,
	}
}

// Commit acknowledges the record to its source.
func (r *Record) Commit(ctx context.Context) error {
	if r == nil || r.commit == nil {
		return nil
	}
	return r.commit(ctx)
}

// Validator parses a record payload. On failure it may still return a partial
// message carrying whatever identifiers it could read.
type Validator interface {
	ParseAndValidate(ctx context.Context, payload []byte) (*common.ValidatedMessage, error)
}

// StatusPublisher emits lifecycle events for a request.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, event models.StatusEvent) error
}

// Dependencies collects the engine collaborators.
type Dependencies struct {
	Adapter         common.Adapter
	Validator       Validator
	StatusPublisher StatusPublisher
	Logger          zerolog.Logger
	Now             func() time.Time
}

// Engine validates records and sends them, one attempt each, with at most
// WorkerConcurrency sends in flight. Every record is committed once its
// outcome has been published, except when the context is cancelled mid-send.
type Engine struct {
	cfg       Config
	adapter   common.Adapter
	validator Validator
	status    StatusPublisher
	logger    zerolog.Logger
	now       func() time.Time

	sem      *semaphore.Weighted
	inflight sync.WaitGroup
}

// NewEngine checks cfg and deps and builds an Engine.
func NewEngine(cfg Config, deps Dependencies) (*Engine, error) {
	if cfg.WorkerConcurrency < 1 {
		return nil, errors.New("worker: worker concurrency must be >= 1")
	}
	if cfg.MsgMaxBytes < 0 {
		return nil, errors.New("worker: msg max bytes cannot be negative")
	}
	if deps.Adapter == nil {
		return nil, errors.New("worker: adapter dependency is required")
	}
	if deps.Validator == nil {
		return nil, errors.New("worker: validator dependency is required")
	}
	if deps.StatusPublisher == nil {
		return nil, errors.New("worker: status publisher dependency is required")
	}

	logger := deps.Logger
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		cfg:       cfg,
		adapter:   deps.Adapter,
		validator: deps.Validator,
		status:    deps.StatusPublisher,
		logger:    logger,
		now:       now,
		sem:       semaphore.NewWeighted(int64(cfg.WorkerConcurrency)),
	}, nil
}

// HandleRecord rejects oversized or invalid records synchronously and hands
// valid ones to a goroutine once a concurrency slot is free. It blocks while
// all slots are taken.
func (e *Engine) HandleRecord(ctx context.Context, record *Record) {
	if record == nil {
		return
	}

	if e.cfg.MsgMaxBytes > 0 && len(record.Value) > e.cfg.MsgMaxBytes {
		err := fmt.Errorf("payload exceeds maximum size: got %d bytes, limit %d bytes", len(record.Value), e.cfg.MsgMaxBytes)
		e.reject(ctx, record, e.partial(record, nil), err)
		return
	}

	msg, err := e.validator.ParseAndValidate(ctx, record.Value)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		e.reject(ctx, record, e.partial(record, msg), err)
		return
	}
	msg = e.partial(record, msg)

	if err := e.sem.Acquire(ctx, 1); err != nil {
		e.logger.Warn().
			Str("message_id", msg.MessageID).
			Err(err).
			Msg("worker: no concurrency slot before shutdown; record left uncommitted")
		return
	}

	e.inflight.Add(1)
	go e.process(ctx, record, msg)
}

// Wait blocks until every send started by HandleRecord has finished.
func (e *Engine) Wait() {
	e.inflight.Wait()
}

func (e *Engine) process(ctx context.Context, record *Record, msg *common.ValidatedMessage) {
	defer e.inflight.Done()
	defer e.sem.Release(1)

	if ctx.Err() != nil {
		return
	}

	e.publish(ctx, msg, models.StatusEvent{EventType: models.StatusEventQueued})

	start := e.now()
	resp, err := e.adapter.Send(ctx, msg)
	duration := e.now().Sub(start)

	log := e.logger.With().
		Str("message_id", msg.MessageID).
		Str("kind", kindOf(msg)).
		Dur("duration", duration).
		Logger()

	if err == nil {
		log.Info().Msg("worker: message sent")
		e.publish(ctx, msg, models.StatusEvent{
			EventType:        models.StatusEventSent,
			ProviderResponse: resp,
			DurationMs:       duration.Milliseconds(),
		})
		e.commit(ctx, record)
		return
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		log.Warn().Err(err).Msg("worker: send interrupted; record left uncommitted for redelivery")
		return
	}

	class := failureClass(err)
	log.Warn().Str("failure_class", class).Err(err).Msg("worker: send failed")
	e.publish(ctx, msg, models.StatusEvent{
		EventType:        models.StatusEventFailed,
		FailureClass:     class,
		ProviderResponse: resp,
		Error:            err.Error(),
		DurationMs:       duration.Milliseconds(),
	})
	e.commit(ctx, record)
}

func (e *Engine) reject(ctx context.Context, record *Record, msg *common.ValidatedMessage, err error) {
	e.logger.Warn().
		Str("message_id", msg.MessageID).
		Str("topic", record.Topic).
		Int64("offset", record.Offset).
		Err(err).
		Msg("worker: record rejected")
	e.publish(ctx, msg, models.StatusEvent{
		EventType:    models.StatusEventFailed,
		FailureClass: FailureValidation,
		Error:        err.Error(),
	})
	e.commit(ctx, record)
}

func (e *Engine) publish(ctx context.Context, msg *common.ValidatedMessage, event models.StatusEvent) {
	event.MessageID = msg.MessageID
	event.TraceID = msg.TraceID
	event.Kind = kindOf(msg)
	if event.Timestamp.IsZero() {
		event.Timestamp = e.now().UTC()
	}
	if err := e.status.PublishStatus(ctx, event); err != nil {
		e.logger.Error().
			Str("message_id", msg.MessageID).
			Str("event", event.EventType).
			Err(err).
			Msg("worker: failed to publish status event")
	}
}

func (e *Engine) commit(ctx context.Context, record *Record) {
	if err := record.Commit(ctx); err != nil {
		e.logger.Error().
			Str("topic", record.Topic).
			Int32("partition", record.Partition).
			Int64("offset", record.Offset).
			Err(err).
			Msg("worker: failed to commit record offset")
	}
}

// partial fills the fields a validator could not supply from the record
// itself. The record key is the message id by convention.
func (e *Engine) partial(record *Record, msg *common.ValidatedMessage) *common.ValidatedMessage {
	if msg == nil {
		msg = &common.ValidatedMessage{}
	}
	if msg.MessageID == "" {
		msg.MessageID = string(record.Key)
	}
	if len(msg.RawPayload) == 0 {
		msg.RawPayload = cloneBytes(record.Value)
	}
	if len(msg.Key) == 0 {
		msg.Key = cloneBytes(record.Key)
	}
	if len(msg.Headers) == 0 {
		msg.Headers = cloneHeaders(record.Headers)
	}
	return msg
}

func failureClass(err error) string {
	switch common.FailureClass(err) {
	case "permanent":
		return FailurePermanent
	case "transient":
		return FailureTransient
	default:
		return FailureUnknown
	}
}

func kindOf(msg *common.ValidatedMessage) string {
	if msg == nil || msg.Request == nil {
		return ""
	}
	return msg.Request.Kind
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	clone := make([]byte, len(b))
	copy(clone, b)
	return clone
}

func cloneHeaders(headers map[string][]byte) map[string][]byte {
	if len(headers) == 0 {
		return nil
	}
	clone := make(map[string][]byte, len(headers))
	for k, v := range headers {
		clone[k] = cloneBytes(v)
	}
	return clone
}
