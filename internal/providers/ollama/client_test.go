// internal/providers/ollama/client_test.go
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-drafts/internal/common/config"
	"support-drafts/internal/common/logger"
	"support-drafts/internal/models"
)

func testConfig(baseURL string) config.OllamaConfig {
	return config.OllamaConfig{
		BaseURL:        baseURL,
		ChatModel:      "llama3.1",
		EmbeddingModel: "nomic-embed-text",
		Timeout:        5000,
		MaxRetries:     2,
	}
}

func newOllamaServer(t *testing.T, chatReq *map[string]interface{}) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "nomic-embed-text", body["model"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"nomic-embed-text","embeddings":[[0.1,0.2,0.3]],"prompt_eval_count":7}`))
	})
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if chatReq != nil {
			*chatReq = body
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3.1","message":{"role":"assistant","content":"Hi Jane, you can reset it from Settings."},"done":true,"done_reason":"stop","prompt_eval_count":120,"eval_count":30}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewClient_Validation(t *testing.T) {
	log := logger.NewNoOpLogger()

	_, err := NewClient(testConfig("localhost"), log)
	assert.Error(t, err)

	cfg := testConfig("http://localhost:11434")
	cfg.ChatModel = ""
	_, err = NewClient(cfg, log)
	assert.Error(t, err)

	c, err := NewClient(testConfig("http://localhost:11434"), log)
	require.NoError(t, err)
	assert.Equal(t, "llama3.1", c.ChatModel())
	assert.Equal(t, "nomic-embed-text", c.EmbeddingModel())
}

func TestEmbed_HTTP(t *testing.T) {
	srv := newOllamaServer(t, nil)
	c, err := NewClient(testConfig(srv.URL), logger.NewTestLogger(t))
	require.NoError(t, err)

	emb, err := c.Embed(context.Background(), "How do I reset my password?")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, emb.Vector)
	assert.Equal(t, 7, emb.TokenCount)
}

func TestComplete_HTTP(t *testing.T) {
	var captured map[string]interface{}
	srv := newOllamaServer(t, &captured)
	c, err := NewClient(testConfig(srv.URL), logger.NewTestLogger(t))
	require.NoError(t, err)

	msgs := []models.ChatMessage{
		{Role: models.RoleSystem, Content: "You are a support agent."},
		{Role: models.RoleUser, Content: "How do I reset my password?"},
	}
	out, err := c.Complete(context.Background(), msgs, models.CompletionOptions{Temperature: 0.3, MaxTokens: 600})
	require.NoError(t, err)

	assert.Equal(t, "Hi Jane, you can reset it from Settings.", out.Content)
	assert.Equal(t, "stop", out.FinishReason)
	assert.Equal(t, "llama3.1", out.Model)
	assert.Equal(t, models.TokenUsage{PromptTokens: 120, CompletionTokens: 30, TotalTokens: 150}, out.TokenUsage)

	assert.Equal(t, false, captured["stream"])
	opts, ok := captured["options"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(600), opts["num_predict"])
	assert.Equal(t, 0.3, opts["temperature"])
	assert.Len(t, captured["messages"], 2)
}

type fakeAPI struct {
	embedResps []*api.EmbedResponse
	embedErrs  []error
	chatErrs   []error
	chatResp   api.ChatResponse
	embedCalls int
	chatCalls  int
}

func (f *fakeAPI) Embed(ctx context.Context, req *api.EmbedRequest) (*api.EmbedResponse, error) {
	i := f.embedCalls
	f.embedCalls++
	var err error
	if i < len(f.embedErrs) {
		err = f.embedErrs[i]
	}
	if err != nil {
		return nil, err
	}
	if i < len(f.embedResps) {
		return f.embedResps[i], nil
	}
	return f.embedResps[len(f.embedResps)-1], nil
}

func (f *fakeAPI) Chat(ctx context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error {
	i := f.chatCalls
	f.chatCalls++
	if i < len(f.chatErrs) && f.chatErrs[i] != nil {
		return f.chatErrs[i]
	}
	return fn(f.chatResp)
}

func doneResponse(content, reason string) api.ChatResponse {
	resp := api.ChatResponse{
		Message:    api.Message{Role: "assistant", Content: content},
		Done:       true,
		DoneReason: reason,
	}
	resp.PromptEvalCount = 10
	resp.EvalCount = 5
	return resp
}

func TestEmbed_RejectsDegenerateVectors(t *testing.T) {
	tests := []struct {
		name string
		resp *api.EmbedResponse
	}{
		{"no embeddings", &api.EmbedResponse{}},
		{"empty vector", &api.EmbedResponse{Embeddings: [][]float32{{}}}},
		{"zero vector", &api.EmbedResponse{Embeddings: [][]float32{{0, 0, 0}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeAPI{embedResps: []*api.EmbedResponse{tt.resp}}
			c := newClient(f, testConfig("http://x"), logger.NewNoOpLogger())
			_, err := c.Embed(context.Background(), "hello there")
			assert.ErrorIs(t, err, ErrEmbeddingFailed)
		})
	}
}

func TestEmbed_EmptyInput(t *testing.T) {
	f := &fakeAPI{}
	c := newClient(f, testConfig("http://x"), logger.NewNoOpLogger())
	_, err := c.Embed(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.Equal(t, 0, f.embedCalls)
}

func TestEmbed_RetriesTransientFailures(t *testing.T) {
	f := &fakeAPI{
		embedErrs:  []error{api.StatusError{StatusCode: http.StatusServiceUnavailable}, nil},
		embedResps: []*api.EmbedResponse{nil, {Embeddings: [][]float32{{0.5}}}},
	}
	c := newClient(f, testConfig("http://x"), logger.NewTestLogger(t))

	emb, err := c.Embed(context.Background(), "hello there")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5}, emb.Vector)
	assert.Equal(t, 2, f.embedCalls)
}

func TestEmbed_DoesNotRetryClientErrors(t *testing.T) {
	f := &fakeAPI{embedErrs: []error{api.StatusError{StatusCode: http.StatusNotFound}}}
	c := newClient(f, testConfig("http://x"), logger.NewNoOpLogger())

	_, err := c.Embed(context.Background(), "hello there")
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.Equal(t, 1, f.embedCalls)
}

func TestComplete_RetriesThenFails(t *testing.T) {
	boom := errors.New("connection reset")
	f := &fakeAPI{chatErrs: []error{boom, boom, boom}}
	c := newClient(f, testConfig("http://x"), logger.NewNoOpLogger())

	_, err := c.Complete(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}}, models.CompletionOptions{})
	assert.ErrorIs(t, err, ErrCompletionFailed)
	assert.Equal(t, 3, f.chatCalls)
}

func TestComplete_Timeout(t *testing.T) {
	f := &fakeAPI{chatErrs: []error{context.DeadlineExceeded}}
	c := newClient(f, testConfig("http://x"), logger.NewNoOpLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Complete(ctx, []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}}, models.CompletionOptions{})
	assert.ErrorIs(t, err, ErrCompletionTimeout)
}

func TestComplete_FinishReasonAndModelOverride(t *testing.T) {
	f := &fakeAPI{chatResp: doneResponse("Partial answer", "length")}
	c := newClient(f, testConfig("http://x"), logger.NewNoOpLogger())

	out, err := c.Complete(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}},
		models.CompletionOptions{Model: "mistral", MaxTokens: 300})
	require.NoError(t, err)
	assert.Equal(t, "length", out.FinishReason)
	assert.Equal(t, "mistral", out.Model)
	assert.Equal(t, 15, out.TokenUsage.TotalTokens)
}

func TestComplete_EmptyContent(t *testing.T) {
	f := &fakeAPI{chatResp: doneResponse("   ", "stop")}
	c := newClient(f, testConfig("http://x"), logger.NewNoOpLogger())

	_, err := c.Complete(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}}, models.CompletionOptions{})
	assert.ErrorIs(t, err, ErrCompletionFailed)
}

func TestComplete_NoMessages(t *testing.T) {
	c := newClient(&fakeAPI{}, testConfig("http://x"), logger.NewNoOpLogger())
	_, err := c.Complete(context.Background(), nil, models.CompletionOptions{})
	assert.ErrorIs(t, err, ErrCompletionFailed)
}
