// internal/events/events.go
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"support-drafts/internal/common/config"
	"support-drafts/internal/common/logger"
	"support-drafts/internal/models"
)

var ErrPublishFailed = errors.New("EVENT_PUBLISH_FAILED")

type EventType string

const (
	TypeDraftGenerated EventType = "draft.generated"
	TypeDraftFallback  EventType = "draft.fallback"
	TypeInputBlocked   EventType = "input.blocked"
)

// DraftEvent is the record written for every finished or refused draft.
// It never carries customer text.
type DraftEvent struct {
	EventID        string                 `json:"eventId"`
	Type           EventType              `json:"type"`
	TicketID       string                 `json:"ticketId"`
	OrganizationID string                 `json:"organizationId"`
	UserID         string                 `json:"userId"`
	State          models.DraftState      `json:"state,omitempty"`
	Confidence     float64                `json:"confidence"`
	Level          models.ConfidenceLevel `json:"level,omitempty"`
	NeedsReview    bool                   `json:"needsReview"`
	FallbackReason models.FallbackReason  `json:"fallbackReason,omitempty"`
	SourceCount    int                    `json:"sourceCount"`
	RiskLevel      models.RiskLevel       `json:"riskLevel,omitempty"`
	Flags          []string               `json:"flags,omitempty"`
	OccurredAt     time.Time              `json:"occurredAt"`
}

// NewDraftEvent describes a draft the orchestrator produced.
func NewDraftEvent(raw models.RawInput, out *models.DraftOutput) DraftEvent {
	eventType := TypeDraftGenerated
	if out.IsFallback {
		eventType = TypeDraftFallback
	}
	return DraftEvent{
		EventID:        uuid.New().String(),
		Type:           eventType,
		TicketID:       raw.TicketID,
		OrganizationID: raw.OrganizationID,
		UserID:         raw.UserID,
		State:          out.Metadata.State,
		Confidence:     out.Confidence,
		Level:          out.ConfidenceLevel,
		NeedsReview:    out.NeedsReview,
		FallbackReason: out.FallbackReason,
		SourceCount:    len(out.Sources),
		OccurredAt:     time.Now().UTC(),
	}
}

// NewBlockedEvent describes input the safety processor refused.
func NewBlockedEvent(raw models.RawInput, in *models.ProcessedInput) DraftEvent {
	return DraftEvent{
		EventID:        uuid.New().String(),
		Type:           TypeInputBlocked,
		TicketID:       raw.TicketID,
		OrganizationID: raw.OrganizationID,
		UserID:         raw.UserID,
		NeedsReview:    true,
		RiskLevel:      in.RiskLevel,
		Flags:          append([]string(nil), in.Flags...),
		OccurredAt:     time.Now().UTC(),
	}
}

// messageWriter is the part of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes draft events to kafka, keyed by ticket id so events of one
// ticket stay ordered within a partition.
type Publisher struct {
	writer messageWriter
	topic  string
	logger logger.Logger
}

func NewPublisher(cfg config.KafkaConfig, log logger.Logger) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.DraftsTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
	return newPublisher(writer, cfg.DraftsTopic, log)
}

func newPublisher(w messageWriter, topic string, log logger.Logger) *Publisher {
	return &Publisher{
		writer: w,
		topic:  topic,
		logger: log.With(map[string]interface{}{
			"component": "events",
			"topic":     topic,
		}),
	}
}

func (p *Publisher) Publish(ctx context.Context, event DraftEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: encode event: %v", ErrPublishFailed, err)
	}

	msg := kafka.Message{
		Key:   []byte(event.TicketID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("%w: write to %s: %v", ErrPublishFailed, p.topic, err)
	}

	p.logger.Debug("draft event published", map[string]interface{}{
		"eventId":  event.EventID,
		"type":     string(event.Type),
		"ticketId": event.TicketID,
	})
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Discard is used when kafka publishing is disabled.
type Discard struct{}

func (Discard) Publish(ctx context.Context, event DraftEvent) error { return nil }

func (Discard) Close() error { return nil }
