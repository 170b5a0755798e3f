package consumer

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

const (
	defaultSessionTimeout   = 30 * time.Second
	defaultHeartbeat        = 3 * time.Second
	defaultRebalanceTimeout = 30 * time.Second
	rejoinBackoff           = time.Second
	defaultClientID         = "sendsms-consumer"
)

// Handler is invoked for every record delivered by the consumer. Returned
// errors are logged; offsets only advance through Commit.
type Handler func(ctx context.Context, record *Record) error

// Option customises the consumer during construction.
type Option func(*sarama.Config) *sarama.Config

// WithConfig replaces the default Sarama config. It is copied, so the caller
// keeps ownership.
func WithConfig(cfg *sarama.Config) Option {
	return func(current *sarama.Config) *sarama.Config {
		if cfg == nil {
			return current
		}
		return cfg
	}
}

// Record is one Kafka message plus what is needed to commit it.
type Record struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Timestamp time.Time
	Headers   map[string][]byte

	ack  func(flush bool)
	done atomic.Bool
}

// Consumer reads SMS requests from a consumer group. With commit-on-success
// an offset is flushed as soon as its record is acknowledged.
type Consumer struct {
	log         zerolog.Logger
	group       sarama.ConsumerGroup
	commitOnAck bool

	handler  atomic.Pointer[Handler]
	sessions atomic.Int32

	running    sync.WaitGroup
	errorsDone chan struct{}
}

// New joins the consumer group groupID on brokers.
func New(brokers []string, groupID string, logger zerolog.Logger, commitOnSuccessOnly bool, opts ...Option) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka consumer: at least one broker is required")
	}
	if groupID == "" {
		return nil, errors.New("kafka consumer: group id is required")
	}

	base := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			base = opt(base)
		}
	}
	cfg := *base
	cfg.Consumer.Offsets.AutoCommit.Enable = !commitOnSuccessOnly

	group, err := sarama.NewConsumerGroup(brokers, groupID, &cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: create consumer group: %w", err)
	}
	return newConsumer(group, groupID, logger, commitOnSuccessOnly), nil
}

func newConsumer(group sarama.ConsumerGroup, groupID string, logger zerolog.Logger, commitOnAck bool) *Consumer {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	c := &Consumer{
		log:         logger.With().Str("group_id", groupID).Logger(),
		group:       group,
		commitOnAck: commitOnAck,
		errorsDone:  make(chan struct{}),
	}
	go c.logErrors()
	return c
}

// Consume hands records from topics to handler until ctx is cancelled or the
// group is closed, rejoining the group after every rebalance.
func (c *Consumer) Consume(ctx context.Context, topics []string, handler Handler) error {
	if len(topics) == 0 {
		return errors.New("kafka consumer: at least one topic is required")
	}
	if handler == nil {
		return errors.New("kafka consumer: handler is required")
	}
	c.handler.Store(&handler)

	c.running.Add(1)
	defer c.running.Done()

	for ctx.Err() == nil {
		err := c.group.Consume(ctx, topics, c)
		switch {
		case err == nil:
		case errors.Is(err, sarama.ErrClosedConsumerGroup):
			return nil
		default:
			c.log.Error().Err(err).Strs("topics", topics).Msg("kafka consumer: consume error")
			if !sleep(ctx, rejoinBackoff) {
				return ctx.Err()
			}
		}
	}
	return ctx.Err()
}

// Commit acknowledges record. Only the first call for a record has any
// effect.
func (c *Consumer) Commit(_ context.Context, record *Record) error {
	if record == nil {
		return errors.New("kafka consumer: record is required")
	}
	if record.ack == nil {
		return errors.New("kafka consumer: record missing session data")
	}
	if record.done.CompareAndSwap(false, true) {
		record.ack(c.commitOnAck)
	}
	return nil
}

// IsReady reports whether the consumer holds at least one group session.
func (c *Consumer) IsReady() bool {
	return c.sessions.Load() > 0
}

// Close leaves the group and waits for Consume to return.
func (c *Consumer) Close() error {
	err := c.group.Close()
	c.running.Wait()
	<-c.errorsDone
	return err
}

// Setup implements sarama.ConsumerGroupHandler.
func (c *Consumer) Setup(session sarama.ConsumerGroupSession) error {
	c.sessions.Add(1)
	c.log.Info().Int32("generation", session.GenerationID()).Msg("kafka consumer group session started")
	return nil
}

// Cleanup implements sarama.ConsumerGroupHandler.
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	c.sessions.Add(-1)
	c.log.Info().Msg("kafka consumer group session ended")
	return nil
}

// ConsumeClaim implements sarama.ConsumerGroupHandler.
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			c.dispatch(session, msg)
		case <-session.Context().Done():
			return nil
		}
	}
}

func (c *Consumer) dispatch(session sarama.ConsumerGroupSession, msg *sarama.ConsumerMessage) {
	handler := c.handler.Load()
	if handler == nil {
		c.log.Error().Msg("kafka consumer: message received without handler")
		return
	}

	record := &Record{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       cloneBytes(msg.Key),
		Value:     cloneBytes(msg.Value),
		Timestamp: msg.Timestamp,
		Headers:   headerMap(msg.Headers),
		ack: func(flush bool) {
			session.MarkMessage(msg, "")
			if flush {
				session.Commit()
			}
		},
	}

	if err := (*handler)(session.Context(), record); err != nil {
		c.log.Error().
			Err(err).
			Str("topic", msg.Topic).
			Int32("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("kafka consumer handler error")
	}
}

func (c *Consumer) logErrors() {
	defer close(c.errorsDone)
	for err := range c.group.Errors() {
		if err != nil {
			c.log.Error().Err(err).Msg("kafka consumer error")
		}
	}
}

func headerMap(headers []*sarama.RecordHeader) map[string][]byte {
	var out map[string][]byte
	for _, h := range headers {
		if h == nil || len(h.Key) == 0 {
			continue
		}
		if out == nil {
			out = make(map[string][]byte, len(headers))
		}
		out[string(h.Key)] = cloneBytes(h.Value)
	}
	return out
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func defaultConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.ClientID = defaultClientID
	cfg.Consumer.Return.Errors = true
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest

	group := &cfg.Consumer.Group
	group.Session.Timeout = defaultSessionTimeout
	group.Heartbeat.Interval = defaultHeartbeat
	group.Rebalance.Timeout = defaultRebalanceTimeout
	group.Rebalance.Strategy = sarama.BalanceStrategyRange
	return cfg
}

func cloneBytes(src []byte) []byte {
	if len(src) == 0 {
		return nil
	}
	return append([]byte(nil), src...)
}
