// Package producer publishes audit outbox entries to Kafka using franz-go.
package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Config holds producer settings.
type Config struct {
	Brokers           []string
	Topic             string
	Partitions        int32
	ReplicationFactor int16
	Linger            time.Duration
}

// Producer wraps a kgo client bound to one topic.
type Producer struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// New connects to the brokers. Records are produced with acks from all in-sync
// replicas and idempotent writes, which kgo enables by default.
func New(cfg Config, logger *slog.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}
	if cfg.Linger > 0 {
		opts = append(opts, kgo.ProducerLinger(cfg.Linger))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Producer{client: client, topic: cfg.Topic, logger: logger}, nil
}

// EnsureTopic creates the topic if it does not exist.
func (p *Producer) EnsureTopic(ctx context.Context, partitions int32, replication int16) error {
	if partitions <= 0 {
		partitions = 1
	}
	if replication <= 0 {
		replication = 1
	}
	adm := kadm.NewClient(p.client)
	resps, err := adm.CreateTopics(ctx, partitions, replication, nil, p.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", p.topic, err)
	}
	for _, resp := range resps {
		if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", resp.Topic, resp.Err)
		}
	}
	return nil
}

// Ping checks broker connectivity.
func (p *Producer) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Send produces one record synchronously. The event type travels as a header
// so consumers can route without decoding the payload.
func (p *Producer) Send(ctx context.Context, key, eventType string, payload []byte) error {
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(key),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(eventType)},
		},
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		p.logger.WarnContext(ctx, "kafka produce failed", "topic", p.topic, "key", key, "error", err)
		return fmt.Errorf("produce %s: %w", eventType, err)
	}
	return nil
}

// Close flushes buffered records and closes the client.
func (p *Producer) Close() {
	p.client.Close()
}
