package producer

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

const (
	defaultMetadataRefreshInterval = 30 * time.Second
	defaultClientID                = "sendsms-producer"
)

// Option customises the producer during construction.
type Option func(*settings)

type settings struct {
	saramaCfg *sarama.Config
	refresh   time.Duration
}

// WithConfig supplies a Sarama config. It is copied, so the caller keeps
// ownership.
func WithConfig(cfg *sarama.Config) Option {
	return func(s *settings) {
		if cfg != nil {
			s.saramaCfg = cfg
		}
	}
}

// WithMetadataRefreshInterval sets how often the cluster is polled for
// readiness.
func WithMetadataRefreshInterval(interval time.Duration) Option {
	return func(s *settings) {
		if interval > 0 {
			s.refresh = interval
		}
	}
}

// Producer writes status events with acknowledged, idempotent sends and keeps
// track of whether the cluster is reachable.
type Producer struct {
	log    zerolog.Logger
	client sarama.Client
	sender sarama.SyncProducer

	healthy atomic.Bool
	closed  atomic.Bool
	cancel  context.CancelFunc
	watcher sync.WaitGroup
}

// New connects to brokers and starts polling cluster metadata.
func New(brokers []string, logger zerolog.Logger, opts ...Option) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka producer: at least one broker is required")
	}

	s := settings{saramaCfg: defaultConfig(), refresh: defaultMetadataRefreshInterval}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	cfg := *s.saramaCfg
	cfg.Metadata.RefreshFrequency = s.refresh

	client, err := sarama.NewClient(brokers, &cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: create client: %w", err)
	}
	sender, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka producer: create sync producer: %w", err)
	}

	p := newProducer(sender, client, logger)
	p.track("metadata refresh", client.RefreshMetadata())

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.watcher.Add(1)
	go p.poll(ctx, s.refresh)
	return p, nil
}

func newProducer(sender sarama.SyncProducer, client sarama.Client, logger zerolog.Logger) *Producer {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	p := &Producer{log: logger, client: client, sender: sender}
	p.healthy.Store(true)
	return p
}

// PublishSync writes one message and waits until every in-sync replica has
// it.
func (p *Producer) PublishSync(topic string, key []byte, headers map[string][]byte, payload []byte) error {
	if topic == "" {
		return errors.New("kafka producer: topic is required")
	}

	msg := &sarama.ProducerMessage{
		Topic:   topic,
		Value:   sarama.ByteEncoder(payload),
		Headers: recordHeaders(headers),
	}
	if len(key) > 0 {
		msg.Key = sarama.ByteEncoder(key)
	}

	partition, offset, err := p.sender.SendMessage(msg)
	p.track("send", err)
	if err != nil {
		return fmt.Errorf("kafka producer: send sync: %w", err)
	}

	p.log.Debug().
		Str("topic", topic).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("kafka producer message acknowledged")
	return nil
}

// IsReady reports whether the last metadata poll or send succeeded.
func (p *Producer) IsReady() bool {
	return p.healthy.Load()
}

// Close stops polling and releases the producer and its client. Only the
// first call does any work.
func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	if p.cancel != nil {
		p.cancel()
	}
	p.watcher.Wait()
	p.healthy.Store(false)

	err := p.sender.Close()
	if p.client != nil && !p.client.Closed() {
		err = errors.Join(err, p.client.Close())
	}
	return err
}

// track records the outcome of op, logging only when readiness flips.
func (p *Producer) track(op string, err error) {
	ok := err == nil
	if p.healthy.Swap(ok) == ok {
		return
	}
	if ok {
		p.log.Info().Str("op", op).Msg("kafka producer ready")
		return
	}
	p.log.Error().Err(err).Str("op", op).Msg("kafka producer not ready")
}

func (p *Producer) poll(ctx context.Context, every time.Duration) {
	defer p.watcher.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.track("metadata refresh", p.client.RefreshMetadata())
		}
	}
}

// recordHeaders copies headers into Kafka record headers in key order.
func recordHeaders(headers map[string][]byte) []sarama.RecordHeader {
	if len(headers) == 0 {
		return nil
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]sarama.RecordHeader, len(keys))
	for i, k := range keys {
		out[i] = sarama.RecordHeader{Key: []byte(k), Value: append([]byte(nil), headers[k]...)}
	}
	return out
}

func defaultConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.ClientID = defaultClientID
	cfg.Metadata.Full = true

	// Idempotent writes need acks from every replica and one request in flight.
	cfg.Producer.Idempotent = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Net.MaxOpenRequests = 1
	cfg.Producer.Retry.Max = 6
	cfg.Producer.Retry.Backoff = 250 * time.Millisecond
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	return cfg
}
