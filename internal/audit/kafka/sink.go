// Package kafka publishes audit records to Kafka topics.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"travelguard/internal/audit"
)

//go:generate mockgen -source=sink.go -destination=mocks/mocks.go -package=mocks Producer

// Producer is the subset of the Kafka producer the sink needs.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

// Sink writes the record's decision as JSON, keyed by entity id so a
// consumer sees one entity's decisions in order.
type Sink struct {
	producer Producer
	topic    string
}

func NewSink(producer Producer, topic string) *Sink {
	return &Sink{producer: producer, topic: topic}
}

func (s *Sink) Publish(ctx context.Context, rec audit.Record) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}
	return s.producer.Produce(ctx, s.topic, []byte(rec.Decision.EntityID), value)
}

var _ audit.Sink = (*Sink)(nil)
