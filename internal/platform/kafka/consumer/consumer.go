// Package consumer runs a Kafka consumer group loop over a Handler.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is the transport-neutral view of a consumed record.
type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	Partition int32
	Offset    int64
	Timestamp time.Time
}

// Handler processes one message. A nil return marks the record for commit;
// an error leaves it uncommitted so it is redelivered after a restart or
// rebalance.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

type HandlerFunc func(ctx context.Context, msg *Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg *Message) error {
	return f(ctx, msg)
}

type Consumer struct {
	client *kgo.Client
	logger *slog.Logger
}

type Option func(*options)

type options struct {
	logger *slog.Logger
	extra  []kgo.Opt
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClientOpts passes additional options to the underlying kgo client.
func WithClientOpts(opts ...kgo.Opt) Option {
	return func(o *options) {
		o.extra = append(o.extra, opts...)
	}
}

// New joins group and subscribes to topics. Offsets are committed only for
// records the handler accepted.
func New(brokers []string, group string, topics []string, opts ...Option) (*Consumer, error) {
	if len(topics) == 0 {
		return nil, errors.New("at least one topic is required")
	}
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	kopts := append([]kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topics...),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.AutoCommitMarks(),
	}, o.extra...)
	client, err := kgo.NewClient(kopts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return &Consumer{client: client, logger: o.logger}, nil
}

// Run polls until ctx is cancelled. Records within a partition are handled in
// order. Marked offsets are committed before returning.
func (c *Consumer) Run(ctx context.Context, h Handler) error {
	defer c.close()

	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}
		for _, fe := range fetches.Errors() {
			if errors.Is(fe.Err, context.Canceled) {
				return nil
			}
			c.logger.WarnContext(ctx, "kafka fetch error",
				"topic", fe.Topic,
				"partition", fe.Partition,
				"error", fe.Err,
			)
		}

		fetches.EachRecord(func(r *kgo.Record) {
			msg := &Message{
				Topic:     r.Topic,
				Key:       r.Key,
				Value:     r.Value,
				Partition: r.Partition,
				Offset:    r.Offset,
				Timestamp: r.Timestamp,
			}
			if err := h.Handle(ctx, msg); err != nil {
				c.logger.ErrorContext(ctx, "handle kafka record",
					"topic", r.Topic,
					"partition", r.Partition,
					"offset", r.Offset,
					"error", err,
				)
				return
			}
			c.client.MarkCommitRecords(r)
		})
	}
}

func (c *Consumer) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.client.CommitMarkedOffsets(ctx); err != nil {
		c.logger.Warn("commit marked offsets", "error", err)
	}
	c.client.Close()
}
