// internal/drafting/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"support-drafts/internal/common/logger"
	"support-drafts/internal/common/metrics"
	"support-drafts/internal/drafting/assembler"
	"support-drafts/internal/drafting/confidence"
	"support-drafts/internal/drafting/fallback"
	"support-drafts/internal/drafting/prompt"
	"support-drafts/internal/drafting/safety"
	"support-drafts/internal/models"
)

var (
	ErrInputBlocked   = errors.New("INPUT_BLOCKED")
	ErrInvalidRequest = errors.New("INVALID_DRAFT_REQUEST")
)

const finishReasonLength = "length"

// ContextRetriever is satisfied by *retrieval.Retriever.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query, orgID, excludeTicketID string) *models.RetrievedContext
}

// Completer is the completion provider.
type Completer interface {
	Complete(ctx context.Context, messages []models.ChatMessage, opts models.CompletionOptions) (*models.Completion, error)
}

// Recorder receives one call per finished draft. *observability.Observability satisfies it.
type Recorder interface {
	RecordDraft(ctx context.Context, state, level string, duration time.Duration)
}

type Config struct {
	Assembly          assembler.Options
	Prompt            prompt.Options
	Model             string
	Temperature       float64
	MaxTokens         int
	MinResponseLength int
}

func DefaultConfig() Config {
	return Config{
		Assembly:          assembler.DefaultOptions(),
		Prompt:            prompt.DefaultOptions(),
		Temperature:       0.3,
		MaxTokens:         1000,
		MinResponseLength: 50,
	}
}

func (c *Config) Validate() error {
	if err := c.Assembly.Validate(); err != nil {
		return fmt.Errorf("assembly: %w", err)
	}
	if err := c.Prompt.Validate(); err != nil {
		return fmt.Errorf("prompt: %w", err)
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be within [0,2], got %v", c.Temperature)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive")
	}
	if c.MinResponseLength < 0 {
		return fmt.Errorf("min response length must not be negative")
	}
	return nil
}

// Dependencies are constructed once at startup and injected.
type Dependencies struct {
	Retriever ContextRetriever
	Completer Completer
	Fallback  *fallback.Engine
	Logger    logger.Logger
	Tracer    trace.Tracer
	Recorder  Recorder
}

type Orchestrator struct {
	cfg       Config
	retriever ContextRetriever
	completer Completer
	fallback  *fallback.Engine
	prompts   *prompt.Builder
	logger    logger.Logger
	tracer    trace.Tracer
	recorder  Recorder
}

func New(cfg Config, deps Dependencies) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("orchestrator config: %w", err)
	}
	if deps.Retriever == nil || deps.Completer == nil || deps.Fallback == nil || deps.Logger == nil {
		return nil, fmt.Errorf("orchestrator requires a retriever, a completer, a fallback engine and a logger")
	}

	prompts, err := prompt.NewBuilder(cfg.Prompt)
	if err != nil {
		return nil, err
	}

	tracer := deps.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("drafts")
	}

	return &Orchestrator{
		cfg:       cfg,
		retriever: deps.Retriever,
		completer: deps.Completer,
		fallback:  deps.Fallback,
		prompts:   prompts,
		logger:    deps.Logger.With(map[string]interface{}{"component": "orchestrator"}),
		tracer:    tracer,
		recorder:  deps.Recorder,
	}, nil
}

// Request pairs the raw input with its screening result.
type Request struct {
	Raw   models.RawInput
	Input *models.ProcessedInput
	// Regenerate is a manual regeneration: the fallback gate is skipped and a
	// low-confidence prompt is used when the gate would have fired.
	Regenerate bool
}

// Generate runs retrieval, assembly, scoring, the fallback gate and completion.
// It returns ErrInputBlocked for blocked input and otherwise always a draft:
// provider failures become fallback drafts.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (*models.DraftOutput, error) {
	if req.Input == nil {
		return nil, fmt.Errorf("%w: processed input is required", ErrInvalidRequest)
	}
	if req.Input.ShouldBlock {
		return nil, ErrInputBlocked
	}

	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "draft.generate", trace.WithAttributes(
		attribute.String("ticket.id", req.Raw.TicketID),
		attribute.String("organization.id", req.Raw.OrganizationID),
	))
	defer span.End()

	log := o.logger.With(map[string]interface{}{
		"ticketId":       req.Raw.TicketID,
		"organizationId": req.Raw.OrganizationID,
	})

	query := req.Input.SanitizedText
	queryLength := safety.QueryLength(req.Input)

	rc := o.retrieve(ctx, query, req.Raw)

	_, assembleSpan := o.tracer.Start(ctx, "draft.assemble")
	ac := assembler.Assemble(rc, o.cfg.Assembly)
	assembleSpan.SetAttributes(attribute.Int("sources", len(ac.Sources)))
	assembleSpan.End()

	kbCount := ac.CountByType(models.SourceKnowledgeArticle)
	ticketCount := ac.CountByType(models.SourceSimilarTicket)

	conf := confidence.Score(ac.Sources, queryLength, kbCount, ticketCount)
	span.SetAttributes(
		attribute.Float64("confidence.score", conf.Score),
		attribute.String("confidence.level", string(conf.Level)),
	)

	meta := models.GenerationMetadata{
		Model:                 o.cfg.Model,
		KnowledgeArticleCount: kbCount,
		SimilarTicketCount:    ticketCount,
		Factors:               conf.Factors,
	}

	// A manual regeneration never takes the canned path. Weak context only
	// switches it to the low-confidence prompt, recorded in the metadata.
	if req.Regenerate {
		meta.LowConfidencePrompt = fallback.ShouldFallback(conf.Score, len(ac.Sources))
	} else if decision := o.fallback.Decide(conf.Score, len(ac.Sources), queryLength); decision.UseFallback {
		out := fallbackDraft(models.DraftFallback, decision, conf, ac, meta, start)
		o.finish(ctx, log, out, start)
		return out, nil
	}

	messages := o.prompts.Build(query, ac)
	if meta.LowConfidencePrompt {
		messages = o.prompts.BuildLowConfidence(query, ac)
	}

	completion, err := o.complete(ctx, messages)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		log.Error("completion failed, returning fallback draft", map[string]interface{}{
			"error":      err.Error(),
			"confidence": conf.Score,
		})
		out := fallbackDraft(models.DraftErrorFallback, o.fallback.ForReason(models.FallbackGenerationError), conf, ac, meta, start)
		o.finish(ctx, log, out, start)
		return out, nil
	}

	content := strings.TrimSpace(completion.Content)
	usage := completion.TokenUsage
	meta.State = models.DraftGenerated
	if completion.Model != "" {
		meta.Model = completion.Model
	}
	meta.TokenUsage = &usage
	meta.FinishReason = completion.FinishReason
	meta.ElapsedMs = time.Since(start).Milliseconds()

	out := &models.DraftOutput{
		Content:               content,
		Confidence:            conf.Score,
		ConfidenceLevel:       conf.Level,
		ConfidenceExplanation: conf.Explanation,
		NeedsReview: conf.NeedsReview ||
			utf8.RuneCountInString(content) < o.cfg.MinResponseLength ||
			completion.FinishReason == finishReasonLength,
		Sources:  ac.Sources,
		Metadata: meta,
	}
	if meta.LowConfidencePrompt {
		out.NeedsReview = true
	}

	o.finish(ctx, log, out, start)
	return out, nil
}

func (o *Orchestrator) retrieve(ctx context.Context, query string, raw models.RawInput) *models.RetrievedContext {
	ctx, span := o.tracer.Start(ctx, "draft.retrieve")
	defer span.End()

	rc := o.retriever.Retrieve(ctx, query, raw.OrganizationID, raw.TicketID)
	if rc == nil {
		rc = &models.RetrievedContext{}
	}
	span.SetAttributes(
		attribute.Int("articles", len(rc.Articles)),
		attribute.Int("tickets", len(rc.Tickets)),
	)
	return rc
}

func (o *Orchestrator) complete(ctx context.Context, messages []models.ChatMessage) (*models.Completion, error) {
	ctx, span := o.tracer.Start(ctx, "draft.complete")
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.DraftStageDuration.WithLabelValues("completion").Observe(time.Since(start).Seconds())
	}()

	maxTokens := o.prompts.MaxTokens()
	if o.cfg.MaxTokens < maxTokens {
		maxTokens = o.cfg.MaxTokens
	}

	completion, err := o.completer.Complete(ctx, messages, models.CompletionOptions{
		Model:       o.cfg.Model,
		Temperature: o.cfg.Temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if completion == nil {
		return nil, fmt.Errorf("completion provider returned no result")
	}
	span.SetAttributes(
		attribute.String("finish_reason", completion.FinishReason),
		attribute.Int("tokens.total", completion.TokenUsage.TotalTokens),
	)
	return completion, nil
}

func fallbackDraft(state models.DraftState, d *models.FallbackDecision, conf *models.ConfidenceResult, ac *models.AssembledContext, meta models.GenerationMetadata, start time.Time) *models.DraftOutput {
	meta.State = state
	meta.ElapsedMs = time.Since(start).Milliseconds()

	return &models.DraftOutput{
		Content:               d.Response,
		Confidence:            conf.Score,
		ConfidenceLevel:       conf.Level,
		ConfidenceExplanation: conf.Explanation,
		NeedsReview:           true,
		Sources:               ac.Sources,
		Metadata:              meta,
		IsFallback:            true,
		FallbackReason:        d.Reason,
		SuggestedActions:      d.SuggestedActions,
	}
}

func (o *Orchestrator) finish(ctx context.Context, log logger.Logger, out *models.DraftOutput, start time.Time) {
	elapsed := time.Since(start)

	metrics.DraftRequests.WithLabelValues(string(out.Metadata.State)).Inc()
	metrics.DraftConfidence.Observe(out.Confidence)
	if out.IsFallback {
		metrics.DraftFallbacks.WithLabelValues(string(out.FallbackReason)).Inc()
	}
	if o.recorder != nil {
		o.recorder.RecordDraft(ctx, string(out.Metadata.State), string(out.ConfidenceLevel), elapsed)
	}

	log.Info("draft produced", map[string]interface{}{
		"state":          out.Metadata.State,
		"confidence":     out.Confidence,
		"level":          out.ConfidenceLevel,
		"needsReview":    out.NeedsReview,
		"fallbackReason": out.FallbackReason,
		"sources":        len(out.Sources),
		"elapsedMs":      elapsed.Milliseconds(),
	})
}
