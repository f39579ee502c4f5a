// internal/providers/tickets/store_test.go
package tickets

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-drafts/internal/common/database"
)

func TestStore_GetTicketWithMessages(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(ticketQuery)).
		WithArgs("t-7").
		WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "subject", "status"}).
			AddRow("t-7", "org-1", "Cannot log in", "solved"))
	mock.ExpectQuery(regexp.QuoteMeta(messagesQuery)).
		WithArgs("t-7").
		WillReturnRows(sqlmock.NewRows([]string{"id", "author_type", "body", "is_public", "created_at"}).
			AddRow("m1", "customer", "I cannot log in", true, created).
			AddRow("m2", "agent", "internal note", false, created.Add(time.Minute)).
			AddRow("m3", "agent", "Reset your password from the login page.", true, created.Add(2*time.Minute)))

	ticket, err := NewStore(&database.PostgresClient{DB: db}).GetTicketWithMessages(context.Background(), "t-7")
	require.NoError(t, err)
	require.NotNil(t, ticket)

	assert.Equal(t, "org-1", ticket.OrganizationID)
	require.Len(t, ticket.Messages, 3)
	assert.Equal(t, "I cannot log in", ticket.FirstCustomerMessage())
	require.NotNil(t, ticket.Resolution())
	assert.Equal(t, "Reset your password from the login page.", *ticket.Resolution())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_MissingTicket(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(ticketQuery)).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "subject", "status"}))

	ticket, err := NewStore(&database.PostgresClient{DB: db}).GetTicketWithMessages(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Nil(t, ticket)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_QueryFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(ticketQuery)).
		WithArgs("t-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "subject", "status"}).
			AddRow("t-1", "org-1", "Subject", "open"))
	mock.ExpectQuery(regexp.QuoteMeta(messagesQuery)).
		WithArgs("t-1").
		WillReturnError(errors.New("connection reset"))

	_, err = NewStore(&database.PostgresClient{DB: db}).GetTicketWithMessages(context.Background(), "t-1")
	assert.ErrorIs(t, err, ErrTicketFetchFailed)
}
