// internal/providers/vectorsearch/vectorsearch.go
package vectorsearch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/elastic/go-elasticsearch/v8"
	"google.golang.org/grpc"

	"support-drafts/internal/common/config"
	"support-drafts/internal/models"
)

var ErrSearchFailed = errors.New("SIMILARITY_SEARCH_FAILED")

// Searcher runs organization-scoped similarity search over knowledge articles
// and resolved tickets. Similarities are cosine similarities in [0,1].
type Searcher interface {
	SearchKnowledge(ctx context.Context, vector []float32, orgID string, threshold float64, limit int) ([]models.KnowledgeArticle, error)
	SearchSimilarTickets(ctx context.Context, vector []float32, orgID string, threshold float64, limit int, excludeTicketID string) ([]models.SimilarTicket, error)
}

// Backends carries the connections a searcher may be built on. Only the one
// matching the configured backend has to be set.
type Backends struct {
	Postgres      *sql.DB
	Elasticsearch *elasticsearch.Client
	Qdrant        grpc.ClientConnInterface
}

// New builds the searcher selected by cfg.Backend.
func New(cfg config.VectorConfig, b Backends) (Searcher, error) {
	switch cfg.Backend {
	case config.VectorBackendPGVector:
		if b.Postgres == nil {
			return nil, fmt.Errorf("pgvector backend requires a postgres connection")
		}
		return NewPGVectorSearcher(b.Postgres, cfg.PGVector), nil
	case config.VectorBackendQdrant:
		if b.Qdrant == nil {
			return nil, fmt.Errorf("qdrant backend requires a grpc connection")
		}
		return NewQdrantSearcher(b.Qdrant, cfg.Qdrant), nil
	case config.VectorBackendElasticsearch:
		if b.Elasticsearch == nil {
			return nil, fmt.Errorf("elasticsearch backend requires a client")
		}
		return NewElasticsearchSearcher(b.Elasticsearch, cfg.Elasticsearch), nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.Backend)
	}
}

func clampSimilarity(s float64) float64 {
	if math.IsNaN(s) || s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

func isResolved(status string) bool {
	for _, s := range models.ResolvedTicketStatuses {
		if s == status {
			return true
		}
	}
	return false
}
