package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
)

// Event types emitted by the marketplace.
const (
	TypeTemplateViewed  = "template.viewed"
	TypeMessageReceived = "message.received"
	TypeAccessElevated  = "access.elevated"
	TypeStatsSnapshot   = "stats.snapshot"
)

// Event is the JSON envelope published for downstream consumers.
type Event struct {
	Type       string            `json:"type"`
	Subject    string            `json:"subject,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
	Data       map[string]any    `json:"data,omitempty"`
	Attributes map[string]string `json:"-"`
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, event Event) (string, error)
}

// PubSubPublisher publishes events to one Pub/Sub topic.
type PubSubPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubPublisher wraps topic.
func NewPubSubPublisher(topic *pubsub.Topic) (*PubSubPublisher, error) {
	if topic == nil {
		return nil, errors.New("events: topic is required")
	}
	return &PubSubPublisher{topic: topic, marshal: json.Marshal}, nil
}

// Publish sends the event and waits for the server-assigned message ID.
func (p *PubSubPublisher) Publish(ctx context.Context, event Event) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("events: publisher not initialised")
	}
	if strings.TrimSpace(event.Type) == "" {
		return "", errors.New("events: event type is required")
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	data, err := p.marshal(event)
	if err != nil {
		return "", fmt.Errorf("events: marshal %s: %w", event.Type, err)
	}

	attrs := map[string]string{"type": event.Type}
	if subject := strings.TrimSpace(event.Subject); subject != "" {
		attrs["subject"] = subject
	}
	for key, value := range event.Attributes {
		if k, v := strings.TrimSpace(key), strings.TrimSpace(value); k != "" && v != "" {
			attrs[k] = v
		}
	}

	id, err := p.topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs}).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("events: publish %s: %w", event.Type, err)
	}
	return id, nil
}

// LogPublisher records events in the log instead of publishing them. Used when no topic is
// configured.
type LogPublisher struct {
	Logger *zap.Logger
}

// Publish logs the event at debug level.
func (p LogPublisher) Publish(_ context.Context, event Event) (string, error) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("event",
		zap.String("type", event.Type),
		zap.String("subject", event.Subject),
		zap.Any("data", event.Data),
	)
	return "", nil
}
