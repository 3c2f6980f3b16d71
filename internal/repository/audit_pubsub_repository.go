package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/pidb/catalog-api/internal/models"
)

// Publisher publishes a payload to a topic and returns the message ID.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) (string, error)
}

// PubSubPublisher is a Publisher backed by Google Cloud Pub/Sub.
type PubSubPublisher struct {
	client *pubsub.Client
}

func NewPubSubPublisher(ctx context.Context, projectID string) (*PubSubPublisher, error) {
	if projectID == "" {
		return nil, fmt.Errorf("GCP project id required for Pub/Sub")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pub/Sub client: %w", err)
	}
	return &PubSubPublisher{client: client}, nil
}

func (p *PubSubPublisher) Publish(ctx context.Context, topic string, payload []byte) (string, error) {
	result := p.client.Topic(topic).Publish(ctx, &pubsub.Message{
		Data:       payload,
		Attributes: map[string]string{"source": "catalog-api"},
	})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to publish message to topic %s: %w", topic, err)
	}
	return id, nil
}

func (p *PubSubPublisher) Close() error {
	return p.client.Close()
}

// PubSubAuditRepository publishes each audit event as JSON.
type PubSubAuditRepository struct {
	publisher Publisher
	topic     string
}

func NewPubSubAuditRepository(publisher Publisher, topic string) *PubSubAuditRepository {
	return &PubSubAuditRepository{publisher: publisher, topic: topic}
}

func (r *PubSubAuditRepository) Name() string { return "pubsub" }

func (r *PubSubAuditRepository) Append(ctx context.Context, event models.AuditEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	if _, err := r.publisher.Publish(ctx, r.topic, payload); err != nil {
		return err
	}
	return nil
}
