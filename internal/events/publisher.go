// Package events publishes activity lifecycle events to Pub/Sub for downstream
// analytics. Publishing is optional and fire-and-forget: a missing publisher or
// a failed publish never affects session state.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Event types.
const (
	TypeRegistered = "activity_registered"
	TypeUpdated    = "activity_updated"
	TypeTerminated = "activity_terminated"
)

// Event is one activity lifecycle event.
type Event struct {
	Type       string    `json:"type"`
	Identifier string    `json:"identifier"`
	DataSource string    `json:"data_source,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PublisherConfig holds configuration for the Pub/Sub publisher.
type PublisherConfig struct {
	ProjectID string
	TopicName string
	Logger    zerolog.Logger
}

// Publisher emits lifecycle events to a Pub/Sub topic.
type Publisher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	topicName string
	logger    zerolog.Logger
}

// NewPublisher creates a Pub/Sub publisher for lifecycle events.
func NewPublisher(ctx context.Context, cfg PublisherConfig) (*Publisher, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	return &Publisher{
		client:    client,
		publisher: client.Publisher(cfg.TopicName),
		topicName: cfg.TopicName,
		logger:    cfg.Logger,
	}, nil
}

// Publish emits an event. Errors are logged, not returned; lifecycle events are
// best-effort. Safe to call on a nil publisher.
func (p *Publisher) Publish(ctx context.Context, event Event) {
	if p == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to encode lifecycle event")
		return
	}

	result := p.publisher.Publish(ctx, &pubsub.Message{Data: data})
	go func() {
		if _, err := result.Get(context.Background()); err != nil {
			p.logger.Warn().
				Err(err).
				Str("topic", p.topicName).
				Str("event_type", event.Type).
				Msg("failed to publish lifecycle event")
		}
	}()
}

// Close flushes and closes the Pub/Sub client. Safe to call on a nil publisher.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	p.publisher.Stop()
	return p.client.Close()
}
