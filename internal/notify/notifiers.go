package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

// Webhook POSTs each event as JSON to a fixed URL.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook creates a webhook notifier with a 5 second request timeout.
func NewWebhook(url string) *Webhook {
	return &Webhook{url: url, client: &http.Client{Timeout: 5 * time.Second}}
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Notify(ctx context.Context, event Event) error {
	body, err := event.MarshalJSON()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "groupledger-webhook/1.0")
	req.Header.Set("X-Event-Type", event.Type)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Redis publishes each event as JSON on a pub/sub channel.
type Redis struct {
	rdb     redis.UniversalClient
	channel string
}

// NewRedis creates a notifier publishing to channel.
func NewRedis(rdb redis.UniversalClient, channel string) *Redis {
	return &Redis{rdb: rdb, channel: channel}
}

func (r *Redis) Name() string { return "redis" }

func (r *Redis) Notify(ctx context.Context, event Event) error {
	payload, err := event.MarshalJSON()
	if err != nil {
		return err
	}
	if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// messageWriter is the subset of *kafka.Writer the Kafka notifier uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Kafka writes each event in protobuf wire format, keyed by group ID so a
// group's events stay ordered within a partition.
type Kafka struct {
	writer messageWriter
}

// NewKafkaWriter builds a writer for brokers and topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
	}
}

// NewKafka wraps w, typically a *kafka.Writer from NewKafkaWriter.
func NewKafka(w messageWriter) *Kafka {
	return &Kafka{writer: w}
}

func (k *Kafka) Name() string { return "kafka" }

func (k *Kafka) Notify(ctx context.Context, event Event) error {
	value, err := event.MarshalProto()
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(event.GroupID),
		Value: value,
		Time:  time.Unix(event.OccurredAt, 0),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write event to kafka: %w", err)
	}
	return nil
}
