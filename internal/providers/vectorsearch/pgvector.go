// internal/providers/vectorsearch/pgvector.go
package vectorsearch

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"support-drafts/internal/common/config"
	"support-drafts/internal/models"
)

// PGVectorSearcher searches embeddings stored in postgres with the pgvector
// extension. Similarity is 1 - cosine distance.
type PGVectorSearcher struct {
	db             *sql.DB
	knowledgeQuery string
	ticketQuery    string
}

func NewPGVectorSearcher(db *sql.DB, cfg config.PGVectorConfig) *PGVectorSearcher {
	articles := pq.QuoteIdentifier(cfg.ArticlesTable)
	tickets := pq.QuoteIdentifier(cfg.TicketsTable)

	return &PGVectorSearcher{
		db: db,
		knowledgeQuery: fmt.Sprintf(`SELECT id, title, content, 1 - (embedding <=> $1) AS similarity
FROM %s
WHERE organization_id = $2 AND embedding IS NOT NULL AND 1 - (embedding <=> $1) >= $3
ORDER BY embedding <=> $1
LIMIT $4`, articles),
		ticketQuery: fmt.Sprintf(`SELECT id, subject, status, 1 - (embedding <=> $1) AS similarity
FROM %s
WHERE organization_id = $2 AND status = ANY($3) AND id <> $4
  AND embedding IS NOT NULL AND 1 - (embedding <=> $1) >= $5
ORDER BY embedding <=> $1
LIMIT $6`, tickets),
	}
}

func (s *PGVectorSearcher) SearchKnowledge(ctx context.Context, vector []float32, orgID string, threshold float64, limit int) ([]models.KnowledgeArticle, error) {
	if limit <= 0 {
		return []models.KnowledgeArticle{}, nil
	}
	rows, err := s.db.QueryContext(ctx, s.knowledgeQuery, pgvector.NewVector(vector), orgID, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: knowledge query: %v", ErrSearchFailed, err)
	}
	defer rows.Close()

	articles := make([]models.KnowledgeArticle, 0, limit)
	for rows.Next() {
		var a models.KnowledgeArticle
		if err := rows.Scan(&a.ID, &a.Title, &a.Content, &a.Similarity); err != nil {
			return nil, fmt.Errorf("%w: scan knowledge row: %v", ErrSearchFailed, err)
		}
		a.Similarity = clampSimilarity(a.Similarity)
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: knowledge rows: %v", ErrSearchFailed, err)
	}
	return articles, nil
}

func (s *PGVectorSearcher) SearchSimilarTickets(ctx context.Context, vector []float32, orgID string, threshold float64, limit int, excludeTicketID string) ([]models.SimilarTicket, error) {
	if limit <= 0 {
		return []models.SimilarTicket{}, nil
	}
	rows, err := s.db.QueryContext(ctx, s.ticketQuery,
		pgvector.NewVector(vector), orgID, pq.Array(models.ResolvedTicketStatuses), excludeTicketID, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: ticket query: %v", ErrSearchFailed, err)
	}
	defer rows.Close()

	tickets := make([]models.SimilarTicket, 0, limit)
	for rows.Next() {
		var t models.SimilarTicket
		if err := rows.Scan(&t.ID, &t.Subject, &t.Status, &t.Similarity); err != nil {
			return nil, fmt.Errorf("%w: scan ticket row: %v", ErrSearchFailed, err)
		}
		t.Similarity = clampSimilarity(t.Similarity)
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: ticket rows: %v", ErrSearchFailed, err)
	}
	return tickets, nil
}
