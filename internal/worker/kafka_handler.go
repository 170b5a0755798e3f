package worker

import (
	"context"

	"github.com/niksrid/sendsms-go/internal/kafka/consumer"
)

// KafkaHandler adapts engine to the consumer, committing offsets through cons.
func KafkaHandler(engine *Engine, cons *consumer.Consumer) consumer.Handler {
	return func(ctx context.Context, rec *consumer.Record) error {
		if engine == nil || rec == nil {
			return nil
		}

		var commit func(context.Context) error
		if cons != nil {
			commit = func(c context.Context) error { return cons.Commit(c, rec) }
		}

		wr := NewRecord(rec.Topic, rec.Partition, rec.Offset, rec.Key, rec.Value, rec.Headers, commit)
		wr.Timestamp = rec.Timestamp
		engine.HandleRecord(ctx, wr)
		return nil
	}
}
