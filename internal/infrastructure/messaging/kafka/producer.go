// Package kafka publishes dossier events to Kafka and tails them back for
// operators.
package kafka

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	app "github.com/turtacn/dossier-engine/internal/application/dossier"
	"github.com/turtacn/dossier-engine/internal/config"
	"github.com/turtacn/dossier-engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/dossier-engine/pkg/errors"
)

var (
	ErrProducerClosed = errors.New(errors.ErrCodeMessagingError, "producer closed")
	ErrPublishFailed  = errors.New(errors.ErrCodeMessagingError, "publish failed")
)

const maxMessageBytes = 1024 * 1024

// WriterInterface abstracts kafka.Writer for testing.
type WriterInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
	Stats() kafka.WriterStats
}

// ProducerMetrics counts what the producer wrote.
type ProducerMetrics struct {
	MessagesSent   atomic.Int64
	MessagesFailed atomic.Int64
	BytesSent      atomic.Int64
}

// Producer publishes application events as EventEnvelopes.  Messages are
// keyed by dossier ID so one dossier's events stay ordered on a partition.
type Producer struct {
	writer  WriterInterface
	logger  logging.Logger
	closed  atomic.Bool
	metrics *ProducerMetrics
	now     func() time.Time
}

var _ app.EventPublisher = (*Producer)(nil)

func requiredAcks(s string) kafka.RequiredAcks {
	switch s {
	case "none":
		return kafka.RequireNone
	case "all":
		return kafka.RequireAll
	default:
		return kafka.RequireOne
	}
}

// NewWriter builds the kafka-go writer for cfg.  The topic is set per
// message.
func NewWriter(cfg config.KafkaConfig) *kafka.Writer {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 50 * time.Millisecond
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	transport := &kafka.Transport{DialTimeout: 10 * time.Second, ClientID: cfg.ClientID}
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		MaxAttempts:            attempts,
		BatchSize:              batchSize,
		BatchTimeout:           batchTimeout,
		WriteTimeout:           10 * time.Second,
		RequiredAcks:           requiredAcks(cfg.RequiredAcks),
		AllowAutoTopicCreation: false,
		Transport:              transport,
	}
}

// NewProducer connects a producer for cfg.
func NewProducer(cfg config.KafkaConfig, log logging.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "kafka brokers required")
	}
	p := NewProducerWithWriter(NewWriter(cfg), log)
	p.logger.Info("Kafka producer created", logging.Any("brokers", cfg.Brokers))
	return p, nil
}

// NewProducerWithWriter wraps an existing writer.
func NewProducerWithWriter(w WriterInterface, log logging.Logger) *Producer {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Producer{
		writer:  w,
		logger:  log.Named("kafka"),
		metrics: &ProducerMetrics{},
		now:     time.Now,
	}
}

// Publish writes events in one batch.  Nothing is written when any event
// fails to encode.
func (p *Producer) Publish(ctx context.Context, events ...app.Event) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	var bytes int64
	for _, e := range events {
		msg, err := p.toKafkaMessage(e)
		if err != nil {
			return err
		}
		bytes += int64(len(msg.Value))
		msgs = append(msgs, msg)
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.metrics.MessagesFailed.Add(int64(len(msgs)))
		return ErrPublishFailed.WithCause(err).WithDetail(msgs[0].Topic)
	}
	p.metrics.MessagesSent.Add(int64(len(msgs)))
	p.metrics.BytesSent.Add(bytes)
	p.logger.Debug("Events published", logging.Int("count", len(msgs)))
	return nil
}

func (p *Producer) toKafkaMessage(e app.Event) (kafka.Message, error) {
	env, err := NewEventEnvelope(e)
	if err != nil {
		return kafka.Message{}, err
	}
	if env.Timestamp.IsZero() {
		env.Timestamp = p.now().UTC()
	}
	val, err := json.Marshal(env)
	if err != nil {
		return kafka.Message{}, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal envelope")
	}
	if len(val) > maxMessageBytes {
		return kafka.Message{}, errors.New(errors.ErrCodeValidation, "event too large").WithDetail(env.EventType)
	}
	return kafka.Message{
		Topic: TopicFor(e.Type),
		Key:   []byte(env.DossierID),
		Value: val,
		Time:  env.Timestamp,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(env.EventType)},
			{Key: HeaderTenant, Value: []byte(env.TenantID)},
			{Key: HeaderSchemaVersion, Value: []byte(env.SchemaVersion)},
		},
	}, nil
}

// Sent returns the number of messages written so far.
func (p *Producer) Sent() int64 { return p.metrics.MessagesSent.Load() }

// Failed returns the number of messages whose write failed.
func (p *Producer) Failed() int64 { return p.metrics.MessagesFailed.Load() }

// Close flushes and closes the writer.  Later calls are no-ops.
func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := p.writer.Close()
	p.logger.Info("Kafka producer closed", logging.Int64("sent", p.metrics.MessagesSent.Load()))
	return err
}
