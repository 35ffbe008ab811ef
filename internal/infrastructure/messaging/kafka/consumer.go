package kafka

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/dossier-engine/internal/config"
	"github.com/turtacn/dossier-engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/dossier-engine/pkg/errors"
)

var (
	ErrAlreadyRunning = errors.New(errors.ErrCodeConflict, "consumer already running")
	ErrConsumerClosed = errors.New(errors.ErrCodeMessagingError, "consumer closed")
)

// ReaderInterface abstracts kafka.Reader for testing.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EnvelopeHandler receives each decoded event.
type EnvelopeHandler func(ctx context.Context, topic string, env *EventEnvelope) error

// ConsumerOptions selects what a Consumer reads.
type ConsumerOptions struct {
	GroupID string
	Topics  []string
	// FromLatest starts a new group at the end of the topics.
	FromLatest bool
}

// Consumer reads envelopes off the engine's topics.  dossierctl uses it to
// tail events; a handler error is logged and the message committed so one
// bad event never blocks the group.
type Consumer struct {
	reader  ReaderInterface
	logger  logging.Logger
	running atomic.Bool
	closed  atomic.Bool

	consumed atomic.Int64
	failed   atomic.Int64

	retryBackoff time.Duration
}

// NewConsumer joins opts.GroupID on the configured brokers.
func NewConsumer(cfg config.KafkaConfig, opts ConsumerOptions, log logging.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "kafka brokers required")
	}
	if opts.GroupID == "" {
		return nil, errors.New(errors.ErrCodeValidation, "consumer group required")
	}
	if len(opts.Topics) == 0 {
		opts.Topics = Topics()
	}
	start := kafka.FirstOffset
	if opts.FromLatest {
		start = kafka.LastOffset
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        opts.GroupID,
		GroupTopics:    opts.Topics,
		MinBytes:       1,
		MaxBytes:       10 * 1024 * 1024,
		MaxWait:        time.Second,
		StartOffset:    start,
		SessionTimeout: 30 * time.Second,
		Dialer:         &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true, ClientID: cfg.ClientID},
	})
	return NewConsumerWithReader(reader, log), nil
}

// NewConsumerWithReader wraps an existing reader.
func NewConsumerWithReader(r ReaderInterface, log logging.Logger) *Consumer {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Consumer{reader: r, logger: log.Named("kafka"), retryBackoff: time.Second}
}

// Run blocks until ctx is cancelled or the reader fails permanently.
// Cancellation returns nil.
func (c *Consumer) Run(ctx context.Context, handle EnvelopeHandler) error {
	if c.closed.Load() {
		return ErrConsumerClosed
	}
	if c.running.Swap(true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if c.closed.Load() {
				return ErrConsumerClosed
			}
			c.logger.Error("FetchMessage failed", logging.Err(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.retryBackoff):
			}
			continue
		}
		c.consumed.Add(1)

		env, err := DecodeEnvelope(m.Value)
		if err == nil {
			err = handle(ctx, m.Topic, env)
		}
		if err != nil {
			c.failed.Add(1)
			c.logger.Warn("Skipping event",
				logging.String("topic", m.Topic),
				logging.Int64("offset", m.Offset),
				logging.Err(err))
		}
		if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			c.logger.Error("CommitMessages failed", logging.Err(err))
		}
	}
}

// Consumed returns the number of messages fetched.
func (c *Consumer) Consumed() int64 { return c.consumed.Load() }

// Failed returns the number of messages skipped.
func (c *Consumer) Failed() int64 { return c.failed.Load() }

// Close closes the reader.  Later calls are no-ops.
func (c *Consumer) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := c.reader.Close()
	c.logger.Info("Kafka consumer closed", logging.Int64("consumed", c.consumed.Load()))
	return err
}
