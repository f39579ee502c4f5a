// internal/providers/ollama/client.go
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"support-drafts/internal/common/config"
	httpclient "support-drafts/internal/common/http"
	"support-drafts/internal/common/logger"
	"support-drafts/internal/models"
)

var (
	ErrEmbeddingFailed   = errors.New("EMBEDDING_FAILED")
	ErrCompletionFailed  = errors.New("COMPLETION_FAILED")
	ErrCompletionTimeout = errors.New("COMPLETION_TIMEOUT")
)

// chatAPI is the subset of *api.Client the provider uses.
type chatAPI interface {
	Embed(ctx context.Context, req *api.EmbedRequest) (*api.EmbedResponse, error)
	Chat(ctx context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error
}

// Client is both the embedding provider and the completion provider.
type Client struct {
	api            chatAPI
	embeddingModel string
	chatModel      string
	maxRetries     int
	logger         logger.Logger
}

func NewClient(cfg config.OllamaConfig, log logger.Logger) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse ollama base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("ollama base url must be absolute, got %q", cfg.BaseURL)
	}
	if cfg.EmbeddingModel == "" || cfg.ChatModel == "" {
		return nil, fmt.Errorf("ollama requires an embedding model and a chat model")
	}

	hc := httpclient.NewClient(config.GetDuration(cfg.Timeout))
	return newClient(api.NewClient(base, hc.Standard()), cfg, log), nil
}

func newClient(a chatAPI, cfg config.OllamaConfig, log logger.Logger) *Client {
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &Client{
		api:            a,
		embeddingModel: cfg.EmbeddingModel,
		chatModel:      cfg.ChatModel,
		maxRetries:     retries,
		logger: log.With(map[string]interface{}{
			"component": "ollama",
		}),
	}
}

func (c *Client) EmbeddingModel() string { return c.embeddingModel }

func (c *Client) ChatModel() string { return c.chatModel }

// Embed returns the query vector for text. An empty or all-zero vector is an
// error, never a valid embedding.
func (c *Client) Embed(ctx context.Context, text string) (*models.Embedding, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty input", ErrEmbeddingFailed)
	}

	req := &api.EmbedRequest{
		Model: c.embeddingModel,
		Input: text,
	}

	var resp *api.EmbedResponse
	err := c.withRetry(ctx, "embed", func(ctx context.Context) error {
		var callErr error
		resp, callErr = c.api.Embed(ctx, req)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("%w: provider returned no vector", ErrEmbeddingFailed)
	}

	vector := resp.Embeddings[0]
	if isZeroVector(vector) {
		return nil, fmt.Errorf("%w: provider returned a zero vector", ErrEmbeddingFailed)
	}

	return &models.Embedding{
		Vector:     vector,
		TokenCount: resp.PromptEvalCount,
	}, nil
}

// Complete runs a single non-streaming chat completion.
func (c *Client) Complete(ctx context.Context, messages []models.ChatMessage, opts models.CompletionOptions) (*models.Completion, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("%w: no messages", ErrCompletionFailed)
	}

	model := opts.Model
	if model == "" {
		model = c.chatModel
	}

	msgs := make([]api.Message, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, api.Message{Role: m.Role, Content: m.Content})
	}

	stream := false
	options := map[string]interface{}{
		"temperature": opts.Temperature,
	}
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}

	req := &api.ChatRequest{
		Model:    model,
		Messages: msgs,
		Stream:   &stream,
		Options:  options,
	}

	var (
		content  strings.Builder
		final    api.ChatResponse
		received bool
	)
	err := c.withRetry(ctx, "chat", func(ctx context.Context) error {
		content.Reset()
		received = false
		return c.api.Chat(ctx, req, func(resp api.ChatResponse) error {
			content.WriteString(resp.Message.Content)
			if resp.Done {
				final = resp
				received = true
			}
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrCompletionTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}
	if !received {
		return nil, fmt.Errorf("%w: response ended before completion", ErrCompletionFailed)
	}

	text := strings.TrimSpace(content.String())
	if text == "" {
		return nil, fmt.Errorf("%w: empty completion", ErrCompletionFailed)
	}

	finish := final.DoneReason
	if finish == "" {
		finish = "stop"
	}

	return &models.Completion{
		Content:      text,
		FinishReason: finish,
		Model:        model,
		TokenUsage: models.TokenUsage{
			PromptTokens:     final.PromptEvalCount,
			CompletionTokens: final.EvalCount,
			TotalTokens:      final.PromptEvalCount + final.EvalCount,
		},
	}, nil
}

// withRetry retries transient failures with exponential backoff starting at 100ms.
func (c *Client) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !isTransient(lastErr) {
			return lastErr
		}

		c.logger.Warn("ollama call failed, retrying", map[string]interface{}{
			"operation": op,
			"attempt":   attempt + 1,
			"error":     lastErr.Error(),
		})
	}
	return lastErr
}

// isTransient reports whether a failure is worth retrying: rate limiting,
// server errors and transport failures.
func isTransient(err error) bool {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

func isZeroVector(v []float32) bool {
	for _, f := range v {
		if f != 0 {
			return false
		}
	}
	return true
}
