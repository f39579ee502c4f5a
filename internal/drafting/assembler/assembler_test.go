// internal/drafting/assembler/assembler_test.go
package assembler

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-drafts/internal/models"
)

func strPtr(s string) *string { return &s }

func article(id string, sim float64, content string) models.KnowledgeArticle {
	return models.KnowledgeArticle{ID: id, Title: "T", Content: content, Similarity: sim}
}

func ticket(id string, sim float64, resolution *string) models.TicketContext {
	return models.TicketContext{
		ID:      id,
		Subject: "Subject " + id,
		Messages: []models.TicketMessage{
			{AuthorType: models.AuthorCustomer, Body: "I cannot log in", IsPublic: true},
			{AuthorType: models.AuthorAgent, Body: "Try clearing cookies", IsPublic: true},
		},
		Resolution: resolution,
		Similarity: sim,
	}
}

func TestAssemble_EmptyContext(t *testing.T) {
	optionSets := []Options{
		DefaultOptions(),
		{MaxArticles: 0, MaxTickets: 0, MaxChars: 1},
		{MaxArticles: 10, MaxTickets: 10, MaxChars: 100000},
	}

	for _, opts := range optionSets {
		for _, rc := range []*models.RetrievedContext{nil, {}} {
			out := Assemble(rc, opts)
			assert.False(t, out.HasContext)
			assert.Empty(t, out.Sources)
			assert.NotNil(t, out.Sources)
			assert.Equal(t, NoContextText, out.Text)
		}
	}
}

func TestAssemble_RanksAndLimitsBySimilarity(t *testing.T) {
	rc := &models.RetrievedContext{
		Articles: []models.KnowledgeArticle{
			article("a1", 0.41, "one"),
			article("a2", 0.90, "two"),
			article("a3", 0.55, "three"),
			article("a4", 0.77, "four"),
			article("a5", 0.60, "five"),
		},
	}

	out := Assemble(rc, DefaultOptions())

	require.Len(t, out.Sources, 3)
	assert.Equal(t, "a2", out.Sources[0].ID)
	assert.Equal(t, "a4", out.Sources[1].ID)
	assert.Equal(t, "a5", out.Sources[2].ID)
	assert.True(t, out.HasContext)
	assert.True(t, strings.HasPrefix(out.Text, "=== KNOWLEDGE BASE ===\n\n[Article 1] T\ntwo"))
	assert.NotContains(t, out.Text, "SIMILAR RESOLVED TICKETS")
	// input is left untouched
	assert.Equal(t, "a1", rc.Articles[0].ID)
}

func TestAssemble_StopsAppendingOnceBudgetIsExceeded(t *testing.T) {
	content := strings.Repeat("x", 100)
	rc := &models.RetrievedContext{
		Articles: []models.KnowledgeArticle{
			article("a1", 0.9, content),
			article("a2", 0.8, content),
			article("a3", 0.7, content),
		},
	}

	// header 22 + two blocks of 2+114 runes = 254; a third block would reach 370.
	out := Assemble(rc, Options{MaxArticles: 3, MaxTickets: 2, MaxChars: 300})

	require.Len(t, out.Sources, 2)
	assert.Equal(t, 254, utf8.RuneCountInString(out.Text))
	assert.NotContains(t, out.Text, "[Article 3]")
}

func TestAssemble_KeepsFirstItemPerSectionEvenOverBudget(t *testing.T) {
	rc := &models.RetrievedContext{
		Articles: []models.KnowledgeArticle{
			article("a1", 0.9, strings.Repeat("x", 400)),
			article("a2", 0.8, "short"),
		},
		Tickets: []models.TicketContext{
			ticket("t1", 0.7, strPtr("Reset the router")),
			ticket("t2", 0.6, strPtr("Replace the cable")),
		},
	}

	out := Assemble(rc, Options{MaxArticles: 3, MaxTickets: 2, MaxChars: 50})

	require.Len(t, out.Sources, 2)
	assert.Equal(t, models.SourceKnowledgeArticle, out.Sources[0].Type)
	assert.Equal(t, "a1", out.Sources[0].ID)
	assert.Equal(t, models.SourceSimilarTicket, out.Sources[1].Type)
	assert.Equal(t, "t1", out.Sources[1].ID)
	assert.Contains(t, out.Text, "=== SIMILAR RESOLVED TICKETS ===")
	assert.NotContains(t, out.Text, "[Ticket 2]")
}

func TestAssemble_TicketFormatting(t *testing.T) {
	rc := &models.RetrievedContext{
		Tickets: []models.TicketContext{
			ticket("t1", 0.8, strPtr("Try clearing cookies")),
			ticket("t2", 0.5, nil),
		},
	}

	out := Assemble(rc, DefaultOptions())

	assert.Contains(t, out.Text, "[Ticket 1] Subject t1\nCustomer: I cannot log in\nResolution: Try clearing cookies")
	assert.Contains(t, out.Text, "[Ticket 2] Subject t2\nCustomer: I cannot log in\nResolution: "+noResolutionText)
	assert.Equal(t, 0, strings.Index(out.Text, "=== SIMILAR RESOLVED TICKETS ==="))
}

func TestAssemble_TruncatesLongFields(t *testing.T) {
	long := strings.Repeat("y", ArticleContentCap+200)
	rc := &models.RetrievedContext{
		Articles: []models.KnowledgeArticle{article("a1", 0.9, long)},
		Tickets:  []models.TicketContext{ticket("t1", 0.8, strPtr(strings.Repeat("z", TicketFieldCap+50)))},
	}

	out := Assemble(rc, Options{MaxArticles: 3, MaxTickets: 2, MaxChars: 100000})

	assert.Contains(t, out.Text, strings.Repeat("y", ArticleContentCap-3)+"...")
	assert.NotContains(t, out.Text, strings.Repeat("y", ArticleContentCap-2))
	assert.Contains(t, out.Text, strings.Repeat("z", TicketFieldCap-3)+"...")
}

func TestAssemble_ClampsSimilarity(t *testing.T) {
	rc := &models.RetrievedContext{
		Articles: []models.KnowledgeArticle{article("a1", 1.3, "c")},
		Tickets:  []models.TicketContext{ticket("t1", -0.2, nil)},
	}

	out := Assemble(rc, DefaultOptions())

	require.Len(t, out.Sources, 2)
	assert.Equal(t, 1.0, out.Sources[0].Similarity)
	assert.Equal(t, 0.0, out.Sources[1].Similarity)
}

func TestAssemble_HasContextMatchesSources(t *testing.T) {
	rc := &models.RetrievedContext{Articles: []models.KnowledgeArticle{article("a1", 0.5, "c")}}

	withLimit := Assemble(rc, DefaultOptions())
	noSlots := Assemble(rc, Options{MaxArticles: 0, MaxTickets: 0, MaxChars: 100})

	assert.Equal(t, withLimit.HasContext, len(withLimit.Sources) > 0)
	assert.Equal(t, noSlots.HasContext, len(noSlots.Sources) > 0)
	assert.False(t, noSlots.HasContext)
}

func TestAssemble_NegativeLimitsMeanNone(t *testing.T) {
	rc := &models.RetrievedContext{
		Articles: []models.KnowledgeArticle{article("a1", 0.9, "Reset from the login page.")},
		Tickets:  []models.TicketContext{ticket("t1", 0.8, strPtr("Cleared cookies"))},
	}

	var out *models.AssembledContext
	require.NotPanics(t, func() {
		out = Assemble(rc, Options{MaxArticles: -1, MaxTickets: -3, MaxChars: 1000})
	})
	assert.False(t, out.HasContext)
	assert.Empty(t, out.Sources)
	assert.Equal(t, NoContextText, out.Text)

	out = Assemble(rc, Options{MaxArticles: -1, MaxTickets: 1, MaxChars: 1000})
	require.Len(t, out.Sources, 1)
	assert.Equal(t, "t1", out.Sources[0].ID)
}

func TestOptions_Validate(t *testing.T) {
	opts := DefaultOptions()
	assert.NoError(t, opts.Validate())

	bad := Options{MaxArticles: 1, MaxTickets: 1, MaxChars: 0}
	assert.Error(t, bad.Validate())

	neg := Options{MaxArticles: -1, MaxChars: 10}
	assert.Error(t, neg.Validate())
}
