// Package events publishes committed position changes
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Aidin1998/stablecoin/pkg/models"
)

// Publisher defines the interface for event publishers. key groups events
// that must stay ordered.
type Publisher interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// EventPublisher fans position events out to multiple destinations
type EventPublisher struct {
	publishers []Publisher
	log        *zap.Logger
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(publishers []Publisher, log *zap.Logger) *EventPublisher {
	return &EventPublisher{publishers: publishers, log: log}
}

// PublishPositionEvent publishes event to all configured publishers. It fails
// only if every publisher failed.
func (p *EventPublisher) PublishPositionEvent(ctx context.Context, event *models.PositionEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}

	var lastErr error
	successCount := 0
	for i, publisher := range p.publishers {
		if err := publisher.PublishEvent(ctx, event.Owner, event); err != nil {
			p.log.Error("failed to publish event",
				zap.Int("publisher_index", i),
				zap.String("event_type", event.Type),
				zap.String("event_id", event.ID.String()),
				zap.Error(err))
			lastErr = err
			continue
		}
		successCount++
	}

	p.log.Debug("published position event",
		zap.String("event_type", event.Type),
		zap.String("owner", event.Owner),
		zap.String("event_id", event.ID.String()),
		zap.Int("publishers_success", successCount),
		zap.Int("publishers_total", len(p.publishers)))

	if successCount == 0 && lastErr != nil {
		return fmt.Errorf("all publishers failed, last error: %w", lastErr)
	}
	return nil
}

// KafkaPublisher implements Publisher for Apache Kafka
type KafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

// NewKafkaPublisher creates a publisher writing to topic. Events with the
// same key land on the same partition.
func NewKafkaPublisher(brokers []string, topic string, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.CRC32Balancer{},
			BatchSize:    100,
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
			MaxAttempts:  3,
		},
		log: log,
	}
}

// PublishEvent publishes an event to Kafka
func (k *KafkaPublisher) PublishEvent(ctx context.Context, key string, event interface{}) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	k.log.Debug("publishing event to kafka",
		zap.String("topic", k.writer.Topic),
		zap.Int("event_size", len(eventData)))

	now := time.Now()
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: eventData,
		Time:  now,
		Headers: []kafka.Header{
			{Key: "timestamp", Value: []byte(now.Format(time.RFC3339))},
		},
	})
}

// Close flushes pending messages
func (k *KafkaPublisher) Close() error {
	return k.writer.Close()
}

// RedisPublisher implements Publisher for Redis Streams
type RedisPublisher struct {
	client redis.Cmdable
	stream string
	log    *zap.Logger
}

// NewRedisPublisher creates a publisher appending to stream
func NewRedisPublisher(client redis.Cmdable, stream string, log *zap.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, stream: stream, log: log}
}

// PublishEvent publishes an event to Redis Streams
func (r *RedisPublisher) PublishEvent(ctx context.Context, key string, event interface{}) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	result := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]interface{}{
			"key":       key,
			"data":      string(eventData),
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
	if err := result.Err(); err != nil {
		return fmt.Errorf("failed to publish to redis stream: %w", err)
	}

	r.log.Debug("published event to redis stream",
		zap.String("stream", r.stream),
		zap.String("message_id", result.Val()))
	return nil
}

// LogPublisher writes events to the log
type LogPublisher struct {
	log *zap.Logger
}

// NewLogPublisher creates a log publisher
func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

// PublishEvent implements Publisher
func (l *LogPublisher) PublishEvent(_ context.Context, key string, event interface{}) error {
	l.log.Info("position event", zap.String("key", key), zap.Any("event", event))
	return nil
}
