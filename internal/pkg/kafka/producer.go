package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// maxMessageBytes bounds one encoded band. Brokers need a matching
// message.max.bytes.
const maxMessageBytes = 16 << 20

// TaskTopic names the topic carrying tasks for worker id.
func TaskTopic(prefix string, id int) string {
	return fmt.Sprintf("%s.tasks.%d", prefix, id)
}

// ResultTopic names the topic carrying results from worker id.
func ResultTopic(prefix string, id int) string {
	return fmt.Sprintf("%s.results.%d", prefix, id)
}

// newWriter returns a writer without a fixed topic; every message names its
// own.
func newWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           10 * time.Millisecond,
		BatchBytes:             maxMessageBytes,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

func newReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: maxMessageBytes,
		MaxWait:  100 * time.Millisecond,
	})
}

// EnsureTopics creates the given topics with one partition each. Topics
// that already exist are left alone.
func EnsureTopics(ctx context.Context, brokers []string, topics ...string) error {
	if len(brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}

	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("failed to connect to kafka at %s: %w", brokers[0], err)
	}
	defer conn.Close()

	configs := make([]kafka.TopicConfig, 0, len(topics))
	for _, topic := range topics {
		configs = append(configs, kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
	}

	if err := conn.CreateTopics(configs...); err != nil {
		logrus.Warnf("Could not create topics (might already exist): %v", err)
	} else {
		logrus.WithField("topics", topics).Info("Kafka topics ready")
	}
	return nil
}

func publish(ctx context.Context, writer *kafka.Writer, topic, key string, payload []byte) error {
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now(),
	}
	if err := writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to %s: %w", topic, err)
	}
	return nil
}
