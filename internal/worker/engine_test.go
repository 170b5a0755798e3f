package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	common "github.com/niksrid/sendsms-go/internal/adapters/common"
	"github.com/niksrid/sendsms-go/internal/kafka/consumer"
	"github.com/niksrid/sendsms-go/internal/models"
	"github.com/niksrid/sendsms-go/internal/worker"
)

type adapterStub struct {
	resp *common.ProviderResponse
	err  error

	calls atomic.Int32
}

func (a *adapterStub) Send(context.Context, *common.ValidatedMessage) (*common.ProviderResponse, error) {
	a.calls.Add(1)
	return a.resp, a.err
}

type validatorStub struct {
	msg *common.ValidatedMessage
	err error

	calls atomic.Int32
}

func (v *validatorStub) ParseAndValidate(context.Context, []byte) (*common.ValidatedMessage, error) {
	v.calls.Add(1)
	return v.msg, v.err
}

type statusCollector struct {
	mu     sync.Mutex
	events []models.StatusEvent
}

func (s *statusCollector) PublishStatus(_ context.Context, event models.StatusEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *statusCollector) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.EventType)
	}
	return out
}

func (s *statusCollector) last() models.StatusEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[len(s.events)-1]
}

type commitCounter struct {
	n atomic.Int32
}

func (c *commitCounter) commit(context.Context) error {
	c.n.Add(1)
	return nil
}

func validMessage() *common.ValidatedMessage {
	return &common.ValidatedMessage{
		MessageID: "b0c9c2b0-1f3a-4d2d-9e3f-123456789abc",
		TraceID:   "t-1",
		Request: &models.SMSRequest{
			Kind:     models.KindBatch,
			To:       []string{"919999999999"},
			Messages: []string{"hi"},
		},
	}
}

func newEngine(t *testing.T, cfg worker.Config, adapter common.Adapter, validator worker.Validator, status worker.StatusPublisher) *worker.Engine {
	t.Helper()
	if cfg.WorkerConcurrency == 0 {
		cfg.WorkerConcurrency = 2
	}
	eng, err := worker.NewEngine(cfg, worker.Dependencies{
		Adapter:         adapter,
		Validator:       validator,
		StatusPublisher: status,
		Logger:          zerolog.Nop(),
		Now:             func() time.Time { return time.Unix(0, 0) },
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return eng
}

func equalTypes(got []string, want ...string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestNewEngineValidatesDependencies(t *testing.T) {
	deps := worker.Dependencies{Adapter: &adapterStub{}, Validator: &validatorStub{}, StatusPublisher: &statusCollector{}}

	if _, err := worker.NewEngine(worker.Config{WorkerConcurrency: 0}, deps); err == nil {
		t.Fatalf("expected error for zero concurrency")
	}
	if _, err := worker.NewEngine(worker.Config{WorkerConcurrency: 1, MsgMaxBytes: -1}, deps); err == nil {
		t.Fatalf("expected error for negative size limit")
	}
	missing := deps
	missing.Adapter = nil
	if _, err := worker.NewEngine(worker.Config{WorkerConcurrency: 1}, missing); err == nil {
		t.Fatalf("expected error without adapter")
	}
}

func TestEngineHandleRecordSuccess(t *testing.T) {
	adapter := &adapterStub{resp: &common.ProviderResponse{Status: "ok", Message: "req-1"}}
	status := &statusCollector{}
	eng := newEngine(t, worker.Config{}, adapter, &validatorStub{msg: validMessage()}, status)

	commits := &commitCounter{}
	eng.HandleRecord(context.Background(), worker.NewRecord("sms.request", 0, 1, nil, []byte(`{}`), nil, commits.commit))
	eng.Wait()

	if got := status.types(); !equalTypes(got, models.StatusEventQueued, models.StatusEventSent) {
		t.Fatalf("unexpected events %v", got)
	}
	sent := status.last()
	if sent.MessageID != validMessage().MessageID || sent.TraceID != "t-1" || sent.Kind != models.KindBatch {
		t.Fatalf("unexpected sent event %+v", sent)
	}
	if sent.ProviderResponse == nil || sent.ProviderResponse.Message != "req-1" {
		t.Fatalf("expected provider response on sent event, got %+v", sent.ProviderResponse)
	}
	if commits.n.Load() != 1 {
		t.Fatalf("expected one commit, got %d", commits.n.Load())
	}
}

func TestEngineHandleRecordSendFailures(t *testing.T) {
	code := 201
	cases := []struct {
		name  string
		err   error
		resp  *common.ProviderResponse
		class string
	}{
		{name: "permanent", err: common.WrapPermanent(errors.New("rejected")), resp: &common.ProviderResponse{Status: "rejected", Code: &code}, class: worker.FailurePermanent},
		{name: "transient", err: common.WrapTransient(errors.New("timeout")), class: worker.FailureTransient},
		{name: "unclassified", err: errors.New("boom"), class: worker.FailureUnknown},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			adapter := &adapterStub{resp: tc.resp, err: tc.err}
			status := &statusCollector{}
			eng := newEngine(t, worker.Config{}, adapter, &validatorStub{msg: validMessage()}, status)

			commits := &commitCounter{}
			eng.HandleRecord(context.Background(), worker.NewRecord("sms.request", 0, 1, nil, []byte(`{}`), nil, commits.commit))
			eng.Wait()

			if adapter.calls.Load() != 1 {
				t.Fatalf("expected a single attempt, got %d", adapter.calls.Load())
			}
			if got := status.types(); !equalTypes(got, models.StatusEventQueued, models.StatusEventFailed) {
				t.Fatalf("unexpected events %v", got)
			}
			failed := status.last()
			if failed.FailureClass != tc.class || failed.Error == "" {
				t.Fatalf("unexpected failed event %+v", failed)
			}
			if failed.ProviderResponse != tc.resp {
				t.Fatalf("expected provider response %+v, got %+v", tc.resp, failed.ProviderResponse)
			}
			if commits.n.Load() != 1 {
				t.Fatalf("expected commit after failure, got %d", commits.n.Load())
			}
		})
	}
}

func TestEngineHandleRecordValidationFailure(t *testing.T) {
	adapter := &adapterStub{}
	status := &statusCollector{}
	eng := newEngine(t, worker.Config{}, adapter, &validatorStub{err: errors.New("bad payload")}, status)

	commits := &commitCounter{}
	eng.HandleRecord(context.Background(), worker.NewRecord("sms.request", 0, 7, []byte("key-id"), []byte(`{`), nil, commits.commit))
	eng.Wait()

	if adapter.calls.Load() != 0 {
		t.Fatalf("adapter must not be called for invalid records")
	}
	if got := status.types(); !equalTypes(got, models.StatusEventFailed) {
		t.Fatalf("unexpected events %v", got)
	}
	ev := status.last()
	if ev.FailureClass != worker.FailureValidation || ev.MessageID != "key-id" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if commits.n.Load() != 1 {
		t.Fatalf("expected commit for invalid record")
	}
}

func TestEngineHandleRecordOversized(t *testing.T) {
	validator := &validatorStub{msg: validMessage()}
	status := &statusCollector{}
	eng := newEngine(t, worker.Config{MsgMaxBytes: 4}, &adapterStub{}, validator, status)

	commits := &commitCounter{}
	eng.HandleRecord(context.Background(), worker.NewRecord("sms.request", 0, 1, nil, []byte(`{"too":"big"}`), nil, commits.commit))
	eng.Wait()

	if validator.calls.Load() != 0 {
		t.Fatalf("validator must not run for oversized records")
	}
	if ev := status.last(); ev.FailureClass != worker.FailureValidation {
		t.Fatalf("unexpected event %+v", ev)
	}
	if commits.n.Load() != 1 {
		t.Fatalf("expected commit for oversized record")
	}
}

func TestEngineLeavesInterruptedSendUncommitted(t *testing.T) {
	adapter := &adapterStub{err: context.Canceled}
	status := &statusCollector{}
	eng := newEngine(t, worker.Config{}, adapter, &validatorStub{msg: validMessage()}, status)

	commits := &commitCounter{}
	eng.HandleRecord(context.Background(), worker.NewRecord("sms.request", 0, 1, nil, []byte(`{}`), nil, commits.commit))
	eng.Wait()

	if commits.n.Load() != 0 {
		t.Fatalf("interrupted send must not be committed")
	}
	if got := status.types(); !equalTypes(got, models.StatusEventQueued) {
		t.Fatalf("unexpected events %v", got)
	}
}

type slowAdapter struct {
	active atomic.Int32
	peak   atomic.Int32
}

func (s *slowAdapter) Send(context.Context, *common.ValidatedMessage) (*common.ProviderResponse, error) {
	n := s.active.Add(1)
	for {
		peak := s.peak.Load()
		if n <= peak || s.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	s.active.Add(-1)
	return &common.ProviderResponse{Status: "ok"}, nil
}

func TestEngineBoundsConcurrency(t *testing.T) {
	adapter := &slowAdapter{}
	eng := newEngine(t, worker.Config{WorkerConcurrency: 2}, adapter, &validatorStub{msg: validMessage()}, &statusCollector{})

	commits := &commitCounter{}
	for i := 0; i < 6; i++ {
		eng.HandleRecord(context.Background(), worker.NewRecord("sms.request", 0, int64(i), nil, []byte(`{}`), nil, commits.commit))
	}
	eng.Wait()

	if peak := adapter.peak.Load(); peak > 2 {
		t.Fatalf("expected at most 2 concurrent sends, saw %d", peak)
	}
	if commits.n.Load() != 6 {
		t.Fatalf("expected 6 commits, got %d", commits.n.Load())
	}
}

func TestKafkaHandlerWithoutConsumer(t *testing.T) {
	status := &statusCollector{}
	eng := newEngine(t, worker.Config{}, &adapterStub{resp: &common.ProviderResponse{Status: "ok"}}, &validatorStub{msg: validMessage()}, status)

	handler := worker.KafkaHandler(eng, nil)
	if err := handler(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error for nil record: %v", err)
	}
	eng.Wait()
	if len(status.types()) != 0 {
		t.Fatalf("nil record must not produce events")
	}

	rec := &consumer.Record{Topic: "sms.request", Offset: 3, Key: []byte("k"), Value: []byte(`{}`)}
	if err := handler(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	eng.Wait()
	if got := status.types(); !equalTypes(got, models.StatusEventQueued, models.StatusEventSent) {
		t.Fatalf("unexpected events %v", got)
	}
}
