// internal/events/events_test.go
package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-drafts/internal/common/logger"
	"support-drafts/internal/models"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func rawInput() models.RawInput {
	return models.RawInput{TicketID: "t-100", Message: "my card 4111 1111 1111 1111 was charged", OrganizationID: "org-1", UserID: "u-1"}
}

func TestNewDraftEvent(t *testing.T) {
	out := &models.DraftOutput{
		Content:         "Hi, ...",
		Confidence:      0.67,
		ConfidenceLevel: models.ConfidenceMedium,
		Sources:         []models.SourceReference{{Type: models.SourceKnowledgeArticle, ID: "a1"}},
		Metadata:        models.GenerationMetadata{State: models.DraftGenerated},
	}
	e := NewDraftEvent(rawInput(), out)
	assert.Equal(t, TypeDraftGenerated, e.Type)
	assert.Equal(t, 1, e.SourceCount)
	assert.NotEmpty(t, e.EventID)

	out.IsFallback = true
	out.FallbackReason = models.FallbackNoSources
	out.Metadata.State = models.DraftFallback
	e = NewDraftEvent(rawInput(), out)
	assert.Equal(t, TypeDraftFallback, e.Type)
	assert.Equal(t, models.FallbackNoSources, e.FallbackReason)
}

func TestPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w, "support.drafts", logger.NewTestLogger(t))

	blocked := NewBlockedEvent(rawInput(), &models.ProcessedInput{RiskLevel: models.RiskHigh, Flags: []string{"injection:ignore_instructions"}})
	require.NoError(t, p.Publish(context.Background(), blocked))

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, []byte("t-100"), msg.Key)
	assert.Equal(t, "input.blocked", string(msg.Headers[0].Value))
	assert.NotContains(t, string(msg.Value), "4111")

	var decoded DraftEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, models.RiskHigh, decoded.RiskLevel)
	assert.True(t, decoded.NeedsReview)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublisher_WriteFailure(t *testing.T) {
	p := newPublisher(&fakeWriter{err: errors.New("leader not available")}, "support.drafts", logger.NewNoOpLogger())
	err := p.Publish(context.Background(), DraftEvent{TicketID: "t-1", Type: TypeDraftGenerated})
	assert.ErrorIs(t, err, ErrPublishFailed)
}

func TestDiscard(t *testing.T) {
	var d Discard
	assert.NoError(t, d.Publish(context.Background(), DraftEvent{}))
	assert.NoError(t, d.Close())
}
