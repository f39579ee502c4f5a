// internal/models/draft.go
package models

type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// ConfidenceFactors are the four sub-scores, each in [0,1].
type ConfidenceFactors struct {
	SourceRelevance float64 `json:"sourceRelevance"`
	SourceCoverage  float64 `json:"sourceCoverage"`
	QueryClarity    float64 `json:"queryClarity"`
	ContextMatch    float64 `json:"contextMatch"`
}

type ConfidenceResult struct {
	Score       float64           `json:"score"`
	Level       ConfidenceLevel   `json:"level"`
	Factors     ConfidenceFactors `json:"factors"`
	Explanation string            `json:"explanation"`
	NeedsReview bool              `json:"needsReview"`
}

type FallbackReason string

const (
	FallbackNoSources       FallbackReason = "no_sources"
	FallbackLowSimilarity   FallbackReason = "low_similarity"
	FallbackUnclearQuery    FallbackReason = "unclear_query"
	FallbackGenerationError FallbackReason = "generation_error"
)

type FallbackDecision struct {
	UseFallback      bool           `json:"useFallback"`
	Reason           FallbackReason `json:"reason,omitempty"`
	Response         string         `json:"response,omitempty"`
	SuggestedActions []string       `json:"suggestedActions,omitempty"`
}

// DraftState is the terminal state the orchestrator reached.
type DraftState string

const (
	DraftGenerated     DraftState = "generated"
	DraftFallback      DraftState = "fallback"
	DraftErrorFallback DraftState = "error_fallback"
)

type TokenUsage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

type GenerationMetadata struct {
	State                 DraftState        `json:"state"`
	Model                 string            `json:"model"`
	KnowledgeArticleCount int               `json:"knowledgeArticleCount"`
	SimilarTicketCount    int               `json:"similarTicketCount"`
	ElapsedMs             int64             `json:"elapsedMs"`
	TokenUsage            *TokenUsage       `json:"tokenUsage,omitempty"`
	FinishReason          string            `json:"finishReason,omitempty"`
	Factors               ConfidenceFactors `json:"factors"`
	// LowConfidencePrompt marks a regeneration that ran despite a weak context.
	LowConfidencePrompt bool `json:"lowConfidencePrompt,omitempty"`
}

// DraftOutput is the terminal artifact handed to the caller for persistence and display.
type DraftOutput struct {
	Content               string             `json:"content"`
	Confidence            float64            `json:"confidence"`
	ConfidenceLevel       ConfidenceLevel    `json:"confidenceLevel"`
	ConfidenceExplanation string             `json:"confidenceExplanation"`
	NeedsReview           bool               `json:"needsReview"`
	Sources               []SourceReference  `json:"sources"`
	Metadata              GenerationMetadata `json:"metadata"`
	IsFallback            bool               `json:"isFallback"`
	FallbackReason        FallbackReason     `json:"fallbackReason,omitempty"`
	SuggestedActions      []string           `json:"suggestedActions,omitempty"`
}
