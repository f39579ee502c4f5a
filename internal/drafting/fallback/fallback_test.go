// internal/drafting/fallback/fallback_test.go
package fallback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-drafts/internal/models"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine()
	require.NoError(t, err)
	return e
}

func TestNewEngine_EmbeddedTemplatesCoverEveryReason(t *testing.T) {
	e := newEngine(t)

	for _, reason := range reasons {
		d := e.ForReason(reason)
		assert.Equal(t, reason, d.Reason)
		assert.True(t, d.UseFallback)
		assert.NotEmpty(t, d.Response)
		assert.GreaterOrEqual(t, len(d.SuggestedActions), 2)
		assert.LessOrEqual(t, len(d.SuggestedActions), 3)
	}
}

func TestDecide(t *testing.T) {
	e := newEngine(t)

	tests := []struct {
		name        string
		score       float64
		sources     int
		queryLength int
		fallback    bool
		reason      models.FallbackReason
	}{
		{"absolute floor with sources", 0.2, 3, 50, true, models.FallbackLowSimilarity},
		{"confident with sources", 0.6, 2, 50, false, ""},
		{"no sources under low floor", 0.35, 0, 50, true, models.FallbackNoSources},
		{"no sources above low floor", 0.45, 0, 50, false, ""},
		{"sources between floors", 0.35, 2, 50, false, ""},
		{"short query wins over no sources", 0.04, 0, 4, true, models.FallbackUnclearQuery},
		{"very long query", 0.1, 2, 1001, true, models.FallbackUnclearQuery},
		{"boundary lengths are clear", 0.1, 0, 10, true, models.FallbackNoSources},
		{"score exactly at floor", 0.30, 1, 50, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := e.Decide(tt.score, tt.sources, tt.queryLength)
			assert.Equal(t, tt.fallback, d.UseFallback)
			assert.Equal(t, tt.reason, d.Reason)
			if tt.fallback {
				assert.NotEmpty(t, d.Response)
			} else {
				assert.Empty(t, d.Response)
				assert.Empty(t, d.SuggestedActions)
			}
		})
	}
}

func TestSelectReason_GenerationErrorIsTheResidual(t *testing.T) {
	assert.Equal(t, models.FallbackGenerationError, SelectReason(0.9, 4, 100))
}

func TestForReason_UnknownFallsBackToGenerationError(t *testing.T) {
	e := newEngine(t)

	d := e.ForReason("mystery")

	assert.Equal(t, models.FallbackGenerationError, d.Reason)
}

func TestForReason_ReturnsIndependentActionSlices(t *testing.T) {
	e := newEngine(t)

	first := e.ForReason(models.FallbackNoSources)
	first.SuggestedActions[0] = "mutated"
	second := e.ForReason(models.FallbackNoSources)

	assert.NotEqual(t, "mutated", second.SuggestedActions[0])
}

func TestNewEngineFromYAML_Validation(t *testing.T) {
	full := func(actions string) string {
		return `
no_sources: {response: a, suggested_actions: [x, y]}
low_similarity: {response: b, suggested_actions: [x, y]}
unclear_query: {response: c, suggested_actions: [x, y]}
generation_error: {response: d, suggested_actions: ` + actions + `}
`
	}

	_, err := NewEngineFromYAML([]byte(full("[x, y, z]")))
	assert.NoError(t, err)

	_, err = NewEngineFromYAML([]byte(full("[x]")))
	assert.ErrorContains(t, err, "generation_error")

	_, err = NewEngineFromYAML([]byte(full("[a, b, c, d]")))
	assert.Error(t, err)

	_, err = NewEngineFromYAML([]byte("no_sources: {response: a, suggested_actions: [x, y]}"))
	assert.ErrorContains(t, err, "missing fallback template")

	_, err = NewEngineFromYAML([]byte("[unclosed"))
	assert.Error(t, err)
}
