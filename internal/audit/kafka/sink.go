// Package kafka ships audit records to a Kafka topic for downstream SIEM and
// retention pipelines. The sink is fed by the audit worker; the store remains
// the source of truth and delivery here is best-effort.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"docgate/internal/audit"
)

// Sink publishes audit records to Kafka.
type Sink struct {
	client *kgo.Client
	topic  string
}

// New creates a Kafka sink producing to the given topic.
func New(brokers []string, topic string) (*Sink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Sink{client: client, topic: topic}, nil
}

// Publish ships one record. Records for the same entity share a partition
// key so per-entity ordering is preserved downstream.
func (s *Sink) Publish(ctx context.Context, rec audit.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	key := rec.EntityID
	if key == "" {
		key = rec.RuleSetID.String()
	}

	record := &kgo.Record{Key: []byte(key), Value: payload}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit record: %w", err)
	}
	return nil
}

// Close flushes and shuts down the producer.
func (s *Sink) Close() {
	s.client.Close()
}
