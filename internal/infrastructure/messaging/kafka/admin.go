package kafka

import (
	"context"
	"strconv"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/dossier-engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/dossier-engine/pkg/errors"
)

// ConnInterface abstracts kafka.Conn for testing.
type ConnInterface interface {
	CreateTopics(topics ...kafka.TopicConfig) error
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	Close() error
}

// TopicManager creates the engine's topics on a cluster that does not
// auto-create them.
type TopicManager struct {
	conn   ConnInterface
	logger logging.Logger
}

// NewTopicManager dials the first broker.
func NewTopicManager(brokers []string, log logging.Logger) (*TopicManager, error) {
	if len(brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "brokers required")
	}
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMessagingError, "failed to dial kafka")
	}
	return NewTopicManagerWithConn(conn, log), nil
}

// NewTopicManagerWithConn wraps an existing connection.
func NewTopicManagerWithConn(conn ConnInterface, log logging.Logger) *TopicManager {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &TopicManager{conn: conn, logger: log.Named("kafka")}
}

// TopicSpecs returns the topic layout for the given replication factor.
// Lifecycle traffic is keyed by dossier and gets the most partitions.
func TopicSpecs(replication int) []kafka.TopicConfig {
	if replication <= 0 {
		replication = 1
	}
	retention := func(days int) []kafka.ConfigEntry {
		return []kafka.ConfigEntry{{ConfigName: "retention.ms", ConfigValue: strconv.FormatInt(int64(days)*24*3600*1000, 10)}}
	}
	return []kafka.TopicConfig{
		{Topic: TopicCreated, NumPartitions: 3, ReplicationFactor: replication, ConfigEntries: retention(30)},
		{Topic: TopicLifecycle, NumPartitions: 6, ReplicationFactor: replication, ConfigEntries: retention(30)},
		{Topic: TopicAlerts, NumPartitions: 3, ReplicationFactor: replication, ConfigEntries: retention(90)},
	}
}

// EnsureTopics creates the missing topics and returns the names it created.
func (m *TopicManager) EnsureTopics(ctx context.Context, replication int) ([]string, error) {
	var created []string
	for _, spec := range TopicSpecs(replication) {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		if m.exists(spec.Topic) {
			continue
		}
		if err := m.conn.CreateTopics(spec); err != nil {
			if errors.Is(err, kafka.TopicAlreadyExists) {
				continue
			}
			return created, errors.Wrap(err, errors.ErrCodeMessagingError, "failed to create topic "+spec.Topic)
		}
		m.logger.Info("Topic created", logging.String("topic", spec.Topic))
		created = append(created, spec.Topic)
	}
	return created, nil
}

func (m *TopicManager) exists(name string) bool {
	partitions, err := m.conn.ReadPartitions(name)
	return err == nil && len(partitions) > 0
}

func (m *TopicManager) Close() error {
	return m.conn.Close()
}
