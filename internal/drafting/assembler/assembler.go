// internal/drafting/assembler/assembler.go
package assembler

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"support-drafts/internal/models"
)

const (
	NoContextText = "No relevant context found in the knowledge base or past tickets."

	knowledgeHeader = "=== KNOWLEDGE BASE ==="
	ticketsHeader   = "=== SIMILAR RESOLVED TICKETS ==="

	ArticleContentCap = 1500
	TicketFieldCap    = 500

	noResolutionText = "(no public agent reply recorded)"
)

type Options struct {
	MaxArticles int
	MaxTickets  int
	MaxChars    int
}

func DefaultOptions() Options {
	return Options{MaxArticles: 3, MaxTickets: 2, MaxChars: 6000}
}

func (o *Options) Validate() error {
	if o.MaxArticles < 0 || o.MaxTickets < 0 {
		return fmt.Errorf("item limits must not be negative")
	}
	if o.MaxChars <= 0 {
		return fmt.Errorf("max chars must be positive, got %d", o.MaxChars)
	}
	return nil
}

// block is one rendered candidate together with the source it attributes.
type block struct {
	text   string
	source models.SourceReference
}

// budget tracks the running character total across sections.
type budget struct {
	max  int
	used int
}

// appendSection adds the header and then candidates in order. The first
// candidate is always taken; each later one is taken only while the total
// stays within max, and the section stops at the first one that does not fit.
func (b *budget) appendSection(sb *strings.Builder, header string, candidates []block) []models.SourceReference {
	if len(candidates) == 0 {
		return nil
	}

	if b.used > 0 {
		sb.WriteString("\n\n")
		b.used += 2
	}
	sb.WriteString(header)
	b.used += utf8.RuneCountInString(header)

	included := make([]models.SourceReference, 0, len(candidates))
	for i, c := range candidates {
		cost := 2 + utf8.RuneCountInString(c.text)
		if i > 0 && b.used+cost > b.max {
			break
		}
		sb.WriteString("\n\n")
		sb.WriteString(c.text)
		b.used += cost
		included = append(included, c.source)
	}
	return included
}

// Assemble ranks, truncates and formats retrieved items into a bounded context block.
// It performs no I/O and is deterministic for a given input.
func Assemble(rc *models.RetrievedContext, opts Options) *models.AssembledContext {
	if rc.IsEmpty() {
		return noContext()
	}

	articles := topArticles(rc.Articles, opts.MaxArticles)
	tickets := topTickets(rc.Tickets, opts.MaxTickets)
	if len(articles) == 0 && len(tickets) == 0 {
		return noContext()
	}

	var sb strings.Builder
	b := &budget{max: opts.MaxChars}

	sources := make([]models.SourceReference, 0, len(articles)+len(tickets))
	sources = append(sources, b.appendSection(&sb, knowledgeHeader, articleBlocks(articles))...)
	sources = append(sources, b.appendSection(&sb, ticketsHeader, ticketBlocks(tickets))...)

	return &models.AssembledContext{
		Text:       sb.String(),
		Sources:    sources,
		HasContext: len(sources) > 0,
	}
}

func noContext() *models.AssembledContext {
	return &models.AssembledContext{
		Text:       NoContextText,
		Sources:    []models.SourceReference{},
		HasContext: false,
	}
}

func topArticles(in []models.KnowledgeArticle, limit int) []models.KnowledgeArticle {
	out := make([]models.KnowledgeArticle, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if limit < 0 {
		limit = 0
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func topTickets(in []models.TicketContext, limit int) []models.TicketContext {
	out := make([]models.TicketContext, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if limit < 0 {
		limit = 0
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func articleBlocks(articles []models.KnowledgeArticle) []block {
	blocks := make([]block, 0, len(articles))
	for i, a := range articles {
		text := fmt.Sprintf("[Article %d] %s\n%s", i+1, strings.TrimSpace(a.Title), truncate(strings.TrimSpace(a.Content), ArticleContentCap))
		blocks = append(blocks, block{
			text: text,
			source: models.SourceReference{
				Type:       models.SourceKnowledgeArticle,
				ID:         a.ID,
				Title:      a.Title,
				Similarity: clamp01(a.Similarity),
			},
		})
	}
	return blocks
}

func ticketBlocks(tickets []models.TicketContext) []block {
	blocks := make([]block, 0, len(tickets))
	for i, t := range tickets {
		resolution := noResolutionText
		if t.Resolution != nil {
			resolution = truncate(strings.TrimSpace(*t.Resolution), TicketFieldCap)
		}
		text := fmt.Sprintf("[Ticket %d] %s\nCustomer: %s\nResolution: %s",
			i+1,
			truncate(strings.TrimSpace(t.Subject), TicketFieldCap),
			truncate(strings.TrimSpace(t.FirstCustomerMessage()), TicketFieldCap),
			resolution,
		)
		blocks = append(blocks, block{
			text: text,
			source: models.SourceReference{
				Type:       models.SourceSimilarTicket,
				ID:         t.ID,
				Title:      t.Subject,
				Similarity: clamp01(t.Similarity),
			},
		})
	}
	return blocks
}

// truncate cuts s to at most max runes, marking the cut with an ellipsis.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-3]) + "..."
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
