package generatedraft

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"support-drafts/internal/common/config"
	apperrors "support-drafts/internal/common/errors"
	"support-drafts/internal/common/logger"
	"support-drafts/internal/common/validation"
	"support-drafts/internal/drafting/service"
	"support-drafts/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

type mockDraftService struct {
	cmd    service.Command
	result *service.Result
	err    error
}

func (m *mockDraftService) Draft(ctx context.Context, cmd service.Command) (*service.Result, error) {
	m.cmd = cmd
	return m.result, m.err
}

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second}
}

func createTestLogger(t *testing.T) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}

func createTestHandler(t *testing.T, drafts DraftService) *Handler {
	v, err := validation.NewValidator()
	require.NoError(t, err)
	return NewHandler(createTestConfig(), drafts, v, createTestLogger(t))
}

func fallbackDraft() *models.DraftOutput {
	return &models.DraftOutput{
		Content:          "Thanks for reaching out. A teammate will follow up shortly.",
		ConfidenceLevel:  models.ConfidenceLow,
		NeedsReview:      true,
		IsFallback:       true,
		FallbackReason:   models.FallbackNoSources,
		SuggestedActions: []string{"Search the knowledge base manually"},
		Metadata:         models.GenerationMetadata{State: models.DraftFallback},
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	drafts := &mockDraftService{result: &service.Result{Draft: fallbackDraft()}}
	h := createTestHandler(t, drafts)

	output, err := h.Execute(context.Background(), &Input{
		TicketID:       "t-100",
		OrganizationID: "org-1",
		UserID:         "u-1",
		Regenerate:     true,
	})
	require.NoError(t, err)

	assert.Equal(t, models.DraftFallback, output.DraftState)
	assert.Equal(t, models.ConfidenceLow, output.ConfidenceLevel)
	assert.True(t, output.NeedsReview)
	assert.True(t, output.IsFallback)
	assert.Same(t, drafts.result.Draft, output.Draft)

	assert.Equal(t, service.Command{TicketID: "t-100", OrganizationID: "org-1", UserID: "u-1", Regenerate: true}, drafts.cmd)
}

func TestHandler_Execute_PropagatesStandardErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code apperrors.ErrorCode
	}{
		{"blocked", apperrors.NewInputBlockedError("high", []string{"injection:role_override"}), apperrors.ErrCodeInputBlocked},
		{"not found", apperrors.NewTicketNotFoundError("t-100"), apperrors.ErrCodeTicketNotFound},
		{"fetch failed", apperrors.NewTicketFetchFailedError("t-100", context.DeadlineExceeded), apperrors.ErrCodeTicketFetchFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := createTestHandler(t, &mockDraftService{err: tt.err})
			_, err := h.Execute(context.Background(), &Input{TicketID: "t-100", OrganizationID: "org-1"})
			require.Error(t, err)
			assert.Equal(t, tt.code, apperrors.Normalize(err).Code)
		})
	}
}

func TestHandler_Execute_NilInput(t *testing.T) {
	h := createTestHandler(t, &mockDraftService{})
	_, err := h.Execute(context.Background(), nil)
	assert.Equal(t, apperrors.ErrCodeInvalidDraftRequest, apperrors.Normalize(err).Code)
}

// ==========================
// Input Parsing Tests
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	h := createTestHandler(t, &mockDraftService{})

	t.Run("process variables beyond the job input are allowed", func(t *testing.T) {
		input, err := h.parseInput(`{"ticketId":"t-100","organizationId":"org-1","message":"Where is my invoice?","priority":"high"}`)
		require.NoError(t, err)
		assert.Equal(t, "Where is my invoice?", input.Message)
	})

	tests := []struct {
		name      string
		variables string
	}{
		{"missing organization", `{"ticketId":"t-100"}`},
		{"wrong type", `{"ticketId":"t-100","organizationId":"org-1","regenerate":"yes"}`},
		{"not json", `ticketId=t-100`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.parseInput(tt.variables)
			require.Error(t, err)
			stdErr := apperrors.Normalize(err)
			assert.Equal(t, apperrors.ErrCodeInvalidDraftRequest, stdErr.Code)
			assert.False(t, stdErr.Retryable)
			assert.Equal(t, "INVALID_DRAFT_REQUEST", apperrors.ConvertToBPMNError(stdErr).Code)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	assert.Equal(t, 45*time.Second, LoadConfig(config.WorkerConfig{Timeout: 45000}).Timeout)
	assert.Equal(t, 90*time.Second, LoadConfig(config.WorkerConfig{}).Timeout)
}
