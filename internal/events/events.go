package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/OpenBPLS/bpls/internal/application/model"
	"github.com/OpenBPLS/bpls/internal/config"
)

// TypeStatusChanged is the event type emitted on every applied status transition.
const TypeStatusChanged = "application.status_changed"

// StatusChangedEvent is the payload published for a status transition.
type StatusChangedEvent struct {
	ID            uuid.UUID               `json:"id"`
	Type          string                  `json:"type"`
	ApplicationID uuid.UUID               `json:"applicationId"`
	OwnerUserID   uuid.UUID               `json:"ownerUserId"`
	From          model.ApplicationStatus `json:"from"`
	To            model.ApplicationStatus `json:"to"`
	Notes         *string                 `json:"notes,omitempty"`
	ChangedBy     *uuid.UUID              `json:"changedBy,omitempty"`
	OccurredAt    time.Time               `json:"occurredAt"`
}

// NewStatusChangedEvent builds the event for an applied change.
func NewStatusChangedEvent(change model.StatusChange) StatusChangedEvent {
	return StatusChangedEvent{
		ID:            uuid.New(),
		Type:          TypeStatusChanged,
		ApplicationID: change.ApplicationID,
		OwnerUserID:   change.OwnerUserID,
		From:          change.From,
		To:            change.To,
		Notes:         change.Notes,
		ChangedBy:     change.ChangedBy,
		OccurredAt:    change.ChangedAt.UTC(),
	}
}

// Publisher emits application lifecycle events.
type Publisher interface {
	PublishStatusChange(ctx context.Context, change model.StatusChange) error
	Close() error
}

// NewPublisher returns a Kafka publisher when brokers are configured and a
// log-only publisher otherwise.
func NewPublisher(cfg config.KafkaConfig) Publisher {
	if len(cfg.Brokers) == 0 {
		slog.Info("no kafka brokers configured, status events will only be logged")
		return NewLogPublisher()
	}
	slog.Info("publishing status events to kafka", "brokers", cfg.Brokers, "topic", cfg.StatusTopic)
	return NewKafkaPublisher(cfg)
}

// messageWriter is the subset of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes status events to a Kafka topic keyed by application id,
// so all events of one application land on the same partition in order.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

// NewKafkaPublisher creates a publisher writing to cfg.StatusTopic.
func NewKafkaPublisher(cfg config.KafkaConfig) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		WriteTimeout:           cfg.WriteTimeout,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: writer, topic: cfg.StatusTopic}
}

func (p *KafkaPublisher) PublishStatusChange(ctx context.Context, change model.StatusChange) error {
	event := NewStatusChangedEvent(change)
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize status event: %w", err)
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.ApplicationID.String()),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
			{Key: "event-id", Value: []byte(event.ID.String())},
		},
		Time: event.OccurredAt,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish status event: %w", err)
	}

	slog.DebugContext(ctx, "status event published",
		"applicationID", event.ApplicationID,
		"from", event.From,
		"to", event.To)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher writes status events to the structured log only.
type LogPublisher struct{}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (p *LogPublisher) PublishStatusChange(ctx context.Context, change model.StatusChange) error {
	slog.InfoContext(ctx, "application status changed",
		"applicationID", change.ApplicationID,
		"from", change.From,
		"to", change.To)
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
