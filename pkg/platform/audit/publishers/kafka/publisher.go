// Package kafka publishes audit events to the compliance topic. The broker
// is an optional deployment concern: when no brokers are configured the
// worker simply runs without this sink.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "slipdesk/pkg/platform/audit"
)

type Publisher struct {
	client *kgo.Client
	topic  string
}

// New connects to the given brokers. Events are keyed by DRID so all entries
// for one slip land in the same partition in order.
func New(brokers []string, topic string) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}
	return &Publisher{client: client, topic: topic}, nil
}

// Publish implements worker.Sink. Synchronous produce: the audit worker is
// already off the request path, so backpressure here is acceptable.
func (p *Publisher) Publish(ctx context.Context, event audit.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.DRID),
		Value: value,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

func (p *Publisher) Close() {
	p.client.Close()
}
