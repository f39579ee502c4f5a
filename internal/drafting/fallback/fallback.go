// internal/drafting/fallback/fallback.go
package fallback

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"support-drafts/internal/models"
)

const (
	// AbsoluteFloor forces a fallback regardless of sources.
	AbsoluteFloor = 0.30
	// LowSimilarityFloor forces a fallback when no source backs the score.
	LowSimilarityFloor = 0.40

	MinQueryLength = 10
	MaxQueryLength = 1000

	minActions = 2
	maxActions = 3
)

//go:embed templates.yaml
var defaultTemplates []byte

type Template struct {
	Response         string   `yaml:"response"`
	SuggestedActions []string `yaml:"suggested_actions"`
}

// Engine decides whether generation should be skipped and which canned reply replaces it.
type Engine struct {
	templates map[models.FallbackReason]Template
}

var reasons = []models.FallbackReason{
	models.FallbackNoSources,
	models.FallbackLowSimilarity,
	models.FallbackUnclearQuery,
	models.FallbackGenerationError,
}

// NewEngine loads the embedded templates.
func NewEngine() (*Engine, error) {
	return NewEngineFromYAML(defaultTemplates)
}

// NewEngineFromYAML parses templates keyed by fallback reason. Every reason
// must have a non-empty response and two or three suggested actions.
func NewEngineFromYAML(data []byte) (*Engine, error) {
	raw := make(map[string]Template)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse fallback templates: %w", err)
	}

	templates := make(map[models.FallbackReason]Template, len(reasons))
	for _, reason := range reasons {
		tpl, ok := raw[string(reason)]
		if !ok {
			return nil, fmt.Errorf("missing fallback template for %q", reason)
		}
		if tpl.Response == "" {
			return nil, fmt.Errorf("fallback template %q has an empty response", reason)
		}
		if n := len(tpl.SuggestedActions); n < minActions || n > maxActions {
			return nil, fmt.Errorf("fallback template %q needs %d-%d suggested actions, got %d", reason, minActions, maxActions, n)
		}
		templates[reason] = tpl
	}

	return &Engine{templates: templates}, nil
}

// Decide runs before any completion call. A decision with UseFallback false
// carries no reason or response.
func (e *Engine) Decide(score float64, sourceCount, queryLength int) *models.FallbackDecision {
	if !ShouldFallback(score, sourceCount) {
		return &models.FallbackDecision{UseFallback: false}
	}
	return e.ForReason(SelectReason(score, sourceCount, queryLength))
}

// ForReason builds the canned decision for a reason. The orchestrator uses it
// directly for generation failures.
func (e *Engine) ForReason(reason models.FallbackReason) *models.FallbackDecision {
	tpl, ok := e.templates[reason]
	if !ok {
		reason = models.FallbackGenerationError
		tpl = e.templates[reason]
	}

	actions := make([]string, len(tpl.SuggestedActions))
	copy(actions, tpl.SuggestedActions)

	return &models.FallbackDecision{
		UseFallback:      true,
		Reason:           reason,
		Response:         tpl.Response,
		SuggestedActions: actions,
	}
}

func ShouldFallback(score float64, sourceCount int) bool {
	if score < AbsoluteFloor {
		return true
	}
	return score < LowSimilarityFloor && sourceCount == 0
}

// SelectReason picks the first matching reason in priority order.
func SelectReason(score float64, sourceCount, queryLength int) models.FallbackReason {
	switch {
	case queryLength < MinQueryLength || queryLength > MaxQueryLength:
		return models.FallbackUnclearQuery
	case sourceCount == 0:
		return models.FallbackNoSources
	case score < LowSimilarityFloor:
		return models.FallbackLowSimilarity
	default:
		return models.FallbackGenerationError
	}
}
