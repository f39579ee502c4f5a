// internal/models/ticket.go
package models

import (
	"strings"
	"time"
)

const (
	AuthorCustomer = "customer"
	AuthorAgent    = "agent"
	AuthorSystem   = "system"

	TicketStatusOpen    = "open"
	TicketStatusPending = "pending"
	TicketStatusSolved  = "solved"
	TicketStatusClosed  = "closed"
)

// ResolvedTicketStatuses are the statuses eligible for similar-ticket search.
var ResolvedTicketStatuses = []string{TicketStatusSolved, TicketStatusClosed}

type Ticket struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organizationId"`
	Subject        string          `json:"subject"`
	Status         string          `json:"status"`
	Messages       []TicketMessage `json:"messages"`
}

type TicketMessage struct {
	ID         string    `json:"id"`
	AuthorType string    `json:"authorType"` // "customer", "agent", "system"
	Body       string    `json:"body"`
	IsPublic   bool      `json:"isPublic"`
	CreatedAt  time.Time `json:"createdAt"`
}

// FirstCustomerMessage returns the body of the earliest customer message, or "".
func (t *Ticket) FirstCustomerMessage() string {
	for _, m := range t.Messages {
		if m.AuthorType == AuthorCustomer && strings.TrimSpace(m.Body) != "" {
			return m.Body
		}
	}
	return ""
}

// LatestCustomerMessage returns the body of the most recent public customer message, or "".
func (t *Ticket) LatestCustomerMessage() string {
	for i := len(t.Messages) - 1; i >= 0; i-- {
		m := t.Messages[i]
		if m.AuthorType == AuthorCustomer && m.IsPublic && strings.TrimSpace(m.Body) != "" {
			return m.Body
		}
	}
	return ""
}

// Resolution is the body of the last public agent message, nil when no agent replied publicly.
func (t *Ticket) Resolution() *string {
	for i := len(t.Messages) - 1; i >= 0; i-- {
		m := t.Messages[i]
		if m.AuthorType == AuthorAgent && m.IsPublic && strings.TrimSpace(m.Body) != "" {
			body := m.Body
			return &body
		}
	}
	return nil
}
