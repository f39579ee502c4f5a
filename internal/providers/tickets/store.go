// internal/providers/tickets/store.go
package tickets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"support-drafts/internal/models"
)

var ErrTicketFetchFailed = errors.New("TICKET_FETCH_FAILED")

const (
	ticketQuery = `SELECT id, organization_id, subject, status FROM tickets WHERE id = $1`

	messagesQuery = `SELECT id, author_type, body, is_public, created_at
FROM ticket_messages
WHERE ticket_id = $1
ORDER BY created_at ASC, id ASC`
)

// Querier is the read surface of database.PostgresClient.
type Querier interface {
	Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store reads tickets and their message threads from postgres.
type Store struct {
	db Querier
}

func NewStore(db Querier) *Store {
	return &Store{db: db}
}

// GetTicketWithMessages returns the ticket with its thread in chronological
// order, or nil without an error when the ticket does not exist.
func (s *Store) GetTicketWithMessages(ctx context.Context, ticketID string) (*models.Ticket, error) {
	var t models.Ticket
	err := s.db.QueryRow(ctx, ticketQuery, ticketID).Scan(&t.ID, &t.OrganizationID, &t.Subject, &t.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load ticket %s: %v", ErrTicketFetchFailed, ticketID, err)
	}

	rows, err := s.db.Query(ctx, messagesQuery, ticketID)
	if err != nil {
		return nil, fmt.Errorf("%w: load messages for %s: %v", ErrTicketFetchFailed, ticketID, err)
	}
	defer rows.Close()

	t.Messages = make([]models.TicketMessage, 0)
	for rows.Next() {
		var m models.TicketMessage
		if err := rows.Scan(&m.ID, &m.AuthorType, &m.Body, &m.IsPublic, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan message: %v", ErrTicketFetchFailed, err)
		}
		t.Messages = append(t.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: message rows: %v", ErrTicketFetchFailed, err)
	}

	return &t, nil
}
