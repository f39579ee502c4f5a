// internal/drafting/confidence/confidence.go
package confidence

import (
	"math"
	"sort"
	"strings"

	"support-drafts/internal/models"
)

const (
	weightRelevance = 0.40
	weightCoverage  = 0.25
	weightClarity   = 0.15
	weightMatch     = 0.20

	HighThreshold   = 0.75
	MediumThreshold = 0.50

	// FullCoverageSources is the source count that earns full coverage.
	FullCoverageSources = 5
	relevanceTopK       = 3

	reviewClarityFloor = 0.3
)

// Score computes the weighted confidence for an assembled context.
// queryLength is measured in characters of the sanitized input.
func Score(sources []models.SourceReference, queryLength, kbCount, ticketCount int) *models.ConfidenceResult {
	factors := models.ConfidenceFactors{
		SourceRelevance: SourceRelevance(sources),
		SourceCoverage:  SourceCoverage(kbCount, ticketCount),
		QueryClarity:    QueryClarity(queryLength),
		ContextMatch:    ContextMatch(sources),
	}

	score := clamp01(
		factors.SourceRelevance*weightRelevance +
			factors.SourceCoverage*weightCoverage +
			factors.QueryClarity*weightClarity +
			factors.ContextMatch*weightMatch)

	level := LevelFor(score)

	return &models.ConfidenceResult{
		Score:       score,
		Level:       level,
		Factors:     factors,
		Explanation: explain(level, factors),
		NeedsReview: level == models.ConfidenceLow ||
			factors.SourceCoverage == 0 ||
			factors.QueryClarity < reviewClarityFloor,
	}
}

// LevelFor maps a score onto its qualitative band.
func LevelFor(score float64) models.ConfidenceLevel {
	switch {
	case score >= HighThreshold:
		return models.ConfidenceHigh
	case score >= MediumThreshold:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

// SourceRelevance is the mean similarity of the top three sources.
func SourceRelevance(sources []models.SourceReference) float64 {
	sims := similarities(sources)
	if len(sims) == 0 {
		return 0
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(sims)))
	if len(sims) > relevanceTopK {
		sims = sims[:relevanceTopK]
	}
	var sum float64
	for _, s := range sims {
		sum += s
	}
	return clamp01(sum / float64(len(sims)))
}

func SourceCoverage(kbCount, ticketCount int) float64 {
	total := kbCount + ticketCount
	if total <= 0 {
		return 0
	}
	return math.Min(1, float64(total)/FullCoverageSources)
}

// QueryClarity scores the input length. Questions between 20 and 200
// characters score highest, peaking at 110.
func QueryClarity(length int) float64 {
	n := float64(length)
	var v float64
	switch {
	case length < 10:
		v = 0.2 + (n/10)*0.2
	case length < 20:
		v = 0.4 + ((n-10)/10)*0.3
	case length <= 200:
		v = 1 - math.Abs(n-110)/90*0.15
	case length <= 500:
		v = 0.85 - ((n-200)/300)*0.25
	default:
		v = 0.6 - math.Min(0.2, (n-500)/1000*0.1)
	}
	return clamp01(v)
}

// ContextMatch is the best similarity among all sources.
func ContextMatch(sources []models.SourceReference) float64 {
	var best float64
	for _, s := range similarities(sources) {
		if s > best {
			best = s
		}
	}
	return clamp01(best)
}

func similarities(sources []models.SourceReference) []float64 {
	out := make([]float64, 0, len(sources))
	for _, s := range sources {
		if math.IsNaN(s.Similarity) {
			continue
		}
		out = append(out, clamp01(s.Similarity))
	}
	return out
}

func explain(level models.ConfidenceLevel, f models.ConfidenceFactors) string {
	var parts []string

	switch level {
	case models.ConfidenceHigh:
		parts = append(parts, "High confidence: the draft is grounded in closely matching sources.")
		if f.SourceRelevance >= 0.7 {
			parts = append(parts, "Retrieved sources are highly relevant to the question.")
		}
		if f.SourceCoverage >= 0.6 {
			parts = append(parts, "Several sources support the answer.")
		}
		if f.ContextMatch >= 0.8 {
			parts = append(parts, "At least one source is a near match for the question.")
		}
		return strings.Join(parts, " ")
	case models.ConfidenceMedium:
		parts = append(parts, "Medium confidence: some relevant context was found.")
	default:
		parts = append(parts, "Low confidence: little reliable context supports this draft.")
	}

	parts = append(parts, weaknesses(f)...)
	if level == models.ConfidenceLow {
		parts = append(parts, "Manual review recommended.")
	}
	return strings.Join(parts, " ")
}

func weaknesses(f models.ConfidenceFactors) []string {
	var out []string
	if f.SourceCoverage == 0 {
		out = append(out, "No relevant sources were found.")
	} else {
		if f.SourceRelevance < 0.5 {
			out = append(out, "Retrieved sources are only loosely related.")
		}
		if f.SourceCoverage < 0.4 {
			out = append(out, "Few sources were available.")
		}
		if f.ContextMatch < 0.6 {
			out = append(out, "No source closely matches the question.")
		}
	}
	if f.QueryClarity < 0.5 {
		out = append(out, "The question is too short or too long to interpret reliably.")
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
