// internal/models/retrieval.go
package models

// Embedding is a query vector together with the tokens the provider consumed for it.
type Embedding struct {
	Vector     []float32 `json:"vector"`
	TokenCount int       `json:"tokenCount"`
}

// KnowledgeArticle is a knowledge-base hit from similarity search.
type KnowledgeArticle struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// SimilarTicket is a resolved-ticket hit from similarity search, before its thread is loaded.
type SimilarTicket struct {
	ID         string  `json:"id"`
	Subject    string  `json:"subject"`
	Status     string  `json:"status"`
	Similarity float64 `json:"similarity"`
}

// TicketContext is a similar ticket with its message thread and derived resolution.
type TicketContext struct {
	ID         string          `json:"id"`
	Subject    string          `json:"subject"`
	Messages   []TicketMessage `json:"messages"`
	Resolution *string         `json:"resolution"`
	Similarity float64         `json:"similarity"`
}

// FirstCustomerMessage returns the earliest customer message of the thread.
func (t TicketContext) FirstCustomerMessage() string {
	tk := Ticket{Messages: t.Messages}
	return tk.FirstCustomerMessage()
}

// RetrievedContext is the raw fan-in of both searches for one request.
type RetrievedContext struct {
	Articles []KnowledgeArticle `json:"articles"`
	Tickets  []TicketContext    `json:"tickets"`
}

// IsEmpty reports whether neither search produced anything.
func (r *RetrievedContext) IsEmpty() bool {
	return r == nil || (len(r.Articles) == 0 && len(r.Tickets) == 0)
}

type SourceType string

const (
	SourceKnowledgeArticle SourceType = "knowledge_article"
	SourceSimilarTicket    SourceType = "similar_ticket"
)

// SourceReference attributes part of a draft to a retrieved item.
type SourceReference struct {
	Type       SourceType `json:"type"`
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Similarity float64    `json:"similarity"`
}

// AssembledContext is the bounded, formatted context handed to the prompt builder.
type AssembledContext struct {
	Text       string            `json:"text"`
	Sources    []SourceReference `json:"sources"`
	HasContext bool              `json:"hasContext"`
}

// CountByType returns how many included sources are of the given type.
func (a *AssembledContext) CountByType(t SourceType) int {
	n := 0
	for _, s := range a.Sources {
		if s.Type == t {
			n++
		}
	}
	return n
}
