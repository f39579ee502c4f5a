// internal/drafting/service/service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "support-drafts/internal/common/errors"
	"support-drafts/internal/common/logger"
	"support-drafts/internal/common/metrics"
	"support-drafts/internal/drafting/orchestrator"
	"support-drafts/internal/events"
	"support-drafts/internal/models"
)

// Screener is satisfied by *safety.Processor.
type Screener interface {
	Process(raw string) *models.ProcessedInput
}

// Generator is satisfied by *orchestrator.Orchestrator.
type Generator interface {
	Generate(ctx context.Context, req orchestrator.Request) (*models.DraftOutput, error)
}

// TicketStore is satisfied by *tickets.Store.
type TicketStore interface {
	GetTicketWithMessages(ctx context.Context, ticketID string) (*models.Ticket, error)
}

// EventPublisher is satisfied by *events.Publisher and events.Discard.
type EventPublisher interface {
	Publish(ctx context.Context, event events.DraftEvent) error
}

// Escalator is satisfied by *escalation.Notifier.
type Escalator interface {
	NotifyDraft(ctx context.Context, raw models.RawInput, in *models.ProcessedInput, out *models.DraftOutput) (bool, error)
	NotifyBlocked(ctx context.Context, raw models.RawInput, in *models.ProcessedInput) error
}

type Dependencies struct {
	Screener  Screener
	Generator Generator
	Tickets   TicketStore
	Events    EventPublisher
	Escalator Escalator
	Logger    logger.Logger
}

// Service is the entry point shared by the HTTP API and the workflow workers:
// it resolves the customer message, screens it, drafts a reply and reports
// the outcome to downstream consumers.
type Service struct {
	screener  Screener
	generator Generator
	tickets   TicketStore
	events    EventPublisher
	escalator Escalator
	logger    logger.Logger
}

func New(deps Dependencies) (*Service, error) {
	if deps.Screener == nil || deps.Generator == nil || deps.Tickets == nil || deps.Logger == nil {
		return nil, fmt.Errorf("service requires a screener, a generator, a ticket store and a logger")
	}
	s := &Service{
		screener:  deps.Screener,
		generator: deps.Generator,
		tickets:   deps.Tickets,
		events:    deps.Events,
		escalator: deps.Escalator,
		logger:    deps.Logger.With(map[string]interface{}{"component": "draft_service"}),
	}
	if s.events == nil {
		s.events = events.Discard{}
	}
	return s, nil
}

// Command asks for a draft reply to one ticket. When Message is empty the
// latest public customer message of the ticket is used.
type Command struct {
	TicketID       string
	OrganizationID string
	UserID         string
	Message        string
	Regenerate     bool
}

type Result struct {
	Draft *models.DraftOutput    `json:"draft"`
	Input *models.ProcessedInput `json:"-"`
}

// Screen runs the safety processor on free text and records the outcome.
func (s *Service) Screen(text string) *models.ProcessedInput {
	in := s.screener.Process(text)
	metrics.InputScreenings.WithLabelValues(string(in.RiskLevel)).Inc()
	return in
}

// Draft returns a StandardError for every failure: TICKET_NOT_FOUND,
// TICKET_FETCH_FAILED, INVALID_DRAFT_REQUEST or INPUT_BLOCKED.
func (s *Service) Draft(ctx context.Context, cmd Command) (*Result, error) {
	if strings.TrimSpace(cmd.TicketID) == "" || strings.TrimSpace(cmd.OrganizationID) == "" {
		return nil, apperrors.NewInvalidDraftRequestError("ticketId and organizationId are required")
	}

	message, err := s.resolveMessage(ctx, cmd)
	if err != nil {
		return nil, err
	}

	raw := models.RawInput{
		TicketID:       cmd.TicketID,
		Message:        message,
		OrganizationID: cmd.OrganizationID,
		UserID:         cmd.UserID,
	}
	in := s.Screen(message)

	log := s.logger.With(map[string]interface{}{
		"ticketId":       cmd.TicketID,
		"organizationId": cmd.OrganizationID,
	})

	if in.ShouldBlock {
		log.Warn("customer message blocked", map[string]interface{}{
			"riskLevel": string(in.RiskLevel),
			"flags":     in.Flags,
		})
		s.publish(ctx, log, events.NewBlockedEvent(raw, in))
		if s.escalator != nil {
			if err := s.escalator.NotifyBlocked(ctx, raw, in); err != nil {
				log.Error("escalation for blocked input failed", map[string]interface{}{"error": err.Error()})
			}
		}
		return nil, apperrors.NewInputBlockedError(string(in.RiskLevel), in.Flags)
	}

	out, err := s.generator.Generate(ctx, orchestrator.Request{Raw: raw, Input: in, Regenerate: cmd.Regenerate})
	if err != nil {
		if errors.Is(err, orchestrator.ErrInputBlocked) {
			return nil, apperrors.NewInputBlockedError(string(in.RiskLevel), in.Flags)
		}
		if errors.Is(err, orchestrator.ErrInvalidRequest) {
			return nil, apperrors.NewInvalidDraftRequestError(err.Error())
		}
		return nil, apperrors.NewInternalError(err)
	}

	s.publish(ctx, log, events.NewDraftEvent(raw, out))
	if s.escalator != nil {
		if _, err := s.escalator.NotifyDraft(ctx, raw, in, out); err != nil {
			log.Error("draft escalation failed", map[string]interface{}{"error": err.Error()})
		}
	}

	return &Result{Draft: out, Input: in}, nil
}

func (s *Service) resolveMessage(ctx context.Context, cmd Command) (string, error) {
	if strings.TrimSpace(cmd.Message) != "" {
		return cmd.Message, nil
	}

	ticket, err := s.tickets.GetTicketWithMessages(ctx, cmd.TicketID)
	if err != nil {
		return "", apperrors.NewTicketFetchFailedError(cmd.TicketID, err)
	}
	// Tickets of another organization are reported as missing.
	if ticket == nil || ticket.OrganizationID != cmd.OrganizationID {
		return "", apperrors.NewTicketNotFoundError(cmd.TicketID)
	}

	message := ticket.LatestCustomerMessage()
	if message == "" {
		return "", apperrors.NewInvalidDraftRequestError(fmt.Sprintf("ticket %s has no public customer message to answer", cmd.TicketID))
	}
	return message, nil
}

// publish never fails the request; consumers are best effort.
func (s *Service) publish(ctx context.Context, log logger.Logger, event events.DraftEvent) {
	if err := s.events.Publish(ctx, event); err != nil {
		log.Error("draft event publish failed", map[string]interface{}{
			"eventType": string(event.Type),
			"error":     err.Error(),
		})
	}
}
