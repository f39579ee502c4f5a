// internal/models/completion.go
package models

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type CompletionOptions struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"maxTokens"`
}

type Completion struct {
	Content      string     `json:"content"`
	FinishReason string     `json:"finishReason"`
	TokenUsage   TokenUsage `json:"tokenUsage"`
	Model        string     `json:"model"`
}
