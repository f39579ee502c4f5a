// internal/drafting/retrieval/retrieval.go
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"support-drafts/internal/common/logger"
	"support-drafts/internal/common/metrics"
	"support-drafts/internal/models"
)

var ErrRetrievalFailed = errors.New("RETRIEVAL_FAILED")

// Embedder turns query text into a vector. Implementations must return an
// error rather than a zero vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (*models.Embedding, error)
}

// Searcher runs similarity search scoped to one organization.
type Searcher interface {
	SearchKnowledge(ctx context.Context, vector []float32, orgID string, threshold float64, limit int) ([]models.KnowledgeArticle, error)
	// SearchSimilarTickets returns solved or closed tickets only.
	SearchSimilarTickets(ctx context.Context, vector []float32, orgID string, threshold float64, limit int, excludeTicketID string) ([]models.SimilarTicket, error)
}

// TicketStore loads a ticket thread. A missing ticket is (nil, nil).
type TicketStore interface {
	GetTicketWithMessages(ctx context.Context, ticketID string) (*models.Ticket, error)
}

type Options struct {
	MatchThreshold float64
	ArticleCount   int
	TicketCount    int
	// Buffer is requested on top of each count so trimming still leaves full lists.
	Buffer int
}

func DefaultOptions() Options {
	return Options{MatchThreshold: 0.4, ArticleCount: 5, TicketCount: 3, Buffer: 2}
}

func (o *Options) Validate() error {
	if o.MatchThreshold < 0 || o.MatchThreshold > 1 {
		return fmt.Errorf("match threshold must be within [0,1], got %v", o.MatchThreshold)
	}
	if o.ArticleCount < 0 || o.TicketCount < 0 || o.Buffer < 0 {
		return fmt.Errorf("counts must not be negative")
	}
	return nil
}

// Retriever fans out knowledge and similar-ticket search for one query.
type Retriever struct {
	embedder Embedder
	searcher Searcher
	tickets  TicketStore
	opts     Options
	logger   logger.Logger
}

func NewRetriever(embedder Embedder, searcher Searcher, tickets TicketStore, opts Options, log logger.Logger) (*Retriever, error) {
	if embedder == nil || searcher == nil || tickets == nil {
		return nil, fmt.Errorf("retriever requires an embedder, a searcher and a ticket store")
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("retrieval options: %w", err)
	}
	return &Retriever{
		embedder: embedder,
		searcher: searcher,
		tickets:  tickets,
		opts:     opts,
		logger:   log.With(map[string]interface{}{"component": "retrieval"}),
	}, nil
}

// Retrieve never fails: any provider error is logged and yields an empty context
// so the caller degrades through the fallback engine.
func (r *Retriever) Retrieve(ctx context.Context, query, orgID, excludeTicketID string) *models.RetrievedContext {
	empty := &models.RetrievedContext{Articles: []models.KnowledgeArticle{}, Tickets: []models.TicketContext{}}
	if strings.TrimSpace(query) == "" {
		return empty
	}

	start := time.Now()
	rc, stage, err := r.retrieve(ctx, query, orgID, excludeTicketID)
	metrics.DraftStageDuration.WithLabelValues("retrieval").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RetrievalFailures.WithLabelValues(stage).Inc()
		r.logger.Error("retrieval failed, continuing without context", map[string]interface{}{
			"stage":          stage,
			"organizationId": orgID,
			"error":          err.Error(),
		})
		return empty
	}

	r.logger.Debug("context retrieved", map[string]interface{}{
		"organizationId": orgID,
		"articles":       len(rc.Articles),
		"tickets":        len(rc.Tickets),
		"durationMs":     time.Since(start).Milliseconds(),
	})
	return rc
}

func (r *Retriever) retrieve(ctx context.Context, query, orgID, excludeTicketID string) (*models.RetrievedContext, string, error) {
	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, "embedding", fmt.Errorf("%w: embed query: %v", ErrRetrievalFailed, err)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		articles []models.KnowledgeArticle
		similar  []models.SimilarTicket
	)
	type stageErr struct {
		stage string
		err   error
	}
	errChan := make(chan stageErr, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		found, err := r.searcher.SearchKnowledge(ctx, embedding.Vector, orgID, r.opts.MatchThreshold, r.opts.ArticleCount+r.opts.Buffer)
		if err != nil {
			errChan <- stageErr{"knowledge_search", err}
			return
		}
		mu.Lock()
		articles = found
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		found, err := r.searcher.SearchSimilarTickets(ctx, embedding.Vector, orgID, r.opts.MatchThreshold, r.opts.TicketCount+r.opts.Buffer, excludeTicketID)
		if err != nil {
			errChan <- stageErr{"ticket_search", err}
			return
		}
		mu.Lock()
		similar = found
		mu.Unlock()
	}()

	go func() {
		wg.Wait()
		close(errChan)
	}()

	for se := range errChan {
		return nil, se.stage, fmt.Errorf("%w: %s: %v", ErrRetrievalFailed, se.stage, se.err)
	}

	if len(articles) > r.opts.ArticleCount {
		articles = articles[:r.opts.ArticleCount]
	}
	similar = dropTicket(similar, excludeTicketID)
	if len(similar) > r.opts.TicketCount {
		similar = similar[:r.opts.TicketCount]
	}

	threads, err := r.loadThreads(ctx, similar)
	if err != nil {
		return nil, "ticket_fetch", fmt.Errorf("%w: %v", ErrRetrievalFailed, err)
	}

	if articles == nil {
		articles = []models.KnowledgeArticle{}
	}
	return &models.RetrievedContext{Articles: articles, Tickets: threads}, "", nil
}

// loadThreads fetches every thread concurrently and keeps search order.
func (r *Retriever) loadThreads(ctx context.Context, similar []models.SimilarTicket) ([]models.TicketContext, error) {
	out := make([]models.TicketContext, len(similar))
	errs := make([]error, len(similar))

	var wg sync.WaitGroup
	for i, st := range similar {
		wg.Add(1)
		go func(i int, st models.SimilarTicket) {
			defer wg.Done()
			ticket, err := r.tickets.GetTicketWithMessages(ctx, st.ID)
			if err != nil {
				errs[i] = fmt.Errorf("ticket %s: %w", st.ID, err)
				return
			}
			tc := models.TicketContext{
				ID:         st.ID,
				Subject:    st.Subject,
				Messages:   []models.TicketMessage{},
				Similarity: st.Similarity,
			}
			if ticket != nil {
				tc.Messages = ticket.Messages
				tc.Resolution = ticket.Resolution()
				if tc.Subject == "" {
					tc.Subject = ticket.Subject
				}
			}
			out[i] = tc
		}(i, st)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

func dropTicket(in []models.SimilarTicket, id string) []models.SimilarTicket {
	if id == "" {
		return in
	}
	out := in[:0:0]
	for _, t := range in {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}
