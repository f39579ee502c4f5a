// internal/drafting/prompt/builder.go
package prompt

import (
	"fmt"
	"strings"

	"support-drafts/internal/models"
)

const sharedRules = `Rules:
- Only use information from the provided context. Never invent product details, prices, policies, dates or links.
- If the context does not fully answer the question, say so honestly and explain what you will check or who can help.
- Do not mention the context, knowledge base, ticket numbers, similarity scores or any other internal details.
- Write only the reply text the customer will read, with no subject line or notes to the agent.
- Give a complete answer that stays within the requested length.`

var systemIntros = map[Tone]string{
	ToneFriendly:   "You are a friendly customer support agent. You help customers quickly and clearly, and you sound like a helpful person rather than a script.",
	ToneFormal:     "You are a professional customer support representative. You communicate precisely and courteously, in complete sentences.",
	ToneEmpathetic: "You are a caring customer support agent. You recognise how the customer feels before solving their problem, and you stay calm and reassuring.",
}

const lowConfidenceSystem = `You are a careful customer support agent drafting a reply with limited supporting information.
Rules:
- Do not invent specifics such as steps, settings, prices or timelines that are not in the context.
- Acknowledge the request and state clearly what still needs to be confirmed.
- Suggest escalating to a specialist or senior agent when the answer is not in the context.
- Ask one focused clarifying question if the request is ambiguous.
- Do not mention internal details or the context itself.`

// Builder renders completion messages. Options are fixed at construction.
type Builder struct {
	opts Options
}

func NewBuilder(opts Options) (*Builder, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("prompt options: %w", err)
	}
	return &Builder{opts: opts}, nil
}

func (b *Builder) Options() Options {
	return b.opts
}

// MaxTokens is the completion ceiling for the configured length preset.
func (b *Builder) MaxTokens() int {
	return b.opts.Length.MaxTokens()
}

// Build returns the system and user messages for a draft.
func (b *Builder) Build(customerMessage string, ac *models.AssembledContext) []models.ChatMessage {
	system := systemIntros[b.opts.Tone] + "\n\n" + sharedRules + b.signature()

	return []models.ChatMessage{
		{Role: models.RoleSystem, Content: system},
		{Role: models.RoleUser, Content: b.userMessage(customerMessage, ac)},
	}
}

// BuildLowConfidence is used for manual regeneration when retrieval support is weak.
func (b *Builder) BuildLowConfidence(customerMessage string, ac *models.AssembledContext) []models.ChatMessage {
	return []models.ChatMessage{
		{Role: models.RoleSystem, Content: lowConfidenceSystem + b.signature()},
		{Role: models.RoleUser, Content: b.userMessage(customerMessage, ac)},
	}
}

func (b *Builder) signature() string {
	var sb strings.Builder
	if b.opts.CompanyName != "" {
		fmt.Fprintf(&sb, "\n\nYou are replying on behalf of %s.", b.opts.CompanyName)
	}
	if b.opts.AgentName != "" {
		fmt.Fprintf(&sb, "\nSign off the reply as %s.", b.opts.AgentName)
	} else if b.opts.CompanyName != "" {
		fmt.Fprintf(&sb, "\nSign off the reply as the %s support team.", b.opts.CompanyName)
	}
	return sb.String()
}

func (b *Builder) userMessage(customerMessage string, ac *models.AssembledContext) string {
	contextText := "No relevant context found."
	if ac != nil && ac.Text != "" {
		contextText = ac.Text
	}

	var sb strings.Builder
	sb.WriteString("CONTEXT:\n")
	sb.WriteString(contextText)
	sb.WriteString("\n\nCUSTOMER MESSAGE:\n")
	sb.WriteString(strings.TrimSpace(customerMessage))
	sb.WriteString("\n\nINSTRUCTIONS:\n")
	sb.WriteString(b.opts.Tone.guidance())
	sb.WriteString("\n")
	sb.WriteString(b.opts.Length.guidance())
	sb.WriteString("\nWrite the reply now.")
	return sb.String()
}
