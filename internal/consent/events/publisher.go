// Package events publishes consent changes to Kafka so downstream consumers
// (the exporter, warehouse jobs) can react without polling the store.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"consentlake/internal/consent/models"
	"consentlake/internal/platform/kafka/producer"
)

// Producer is the subset of the platform producer used here.
type Producer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// Publisher writes one record per consent event, keyed by user id so every
// change for a user lands on the same partition in order.
type Publisher struct {
	producer Producer
	topic    string
}

func NewPublisher(p Producer, topic string) *Publisher {
	return &Publisher{producer: p, topic: topic}
}

func (p *Publisher) Publish(ctx context.Context, event models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal consent event: %w", err)
	}
	msg := &producer.Message{
		Topic: p.topic,
		Key:   []byte(event.UserID),
		Value: payload,
		Headers: map[string]string{
			"event_type":      string(event.Type),
			"consent_version": consentVersion(event),
		},
	}
	if err := p.producer.Produce(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

func consentVersion(event models.Event) string {
	if event.Consent == nil {
		return ""
	}
	return event.Consent.Version
}
