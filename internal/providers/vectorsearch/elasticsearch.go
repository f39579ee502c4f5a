// internal/providers/vectorsearch/elasticsearch.go
package vectorsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"

	"support-drafts/internal/common/config"
	"support-drafts/internal/models"
)

const embeddingField = "embedding"

// ElasticsearchSearcher runs approximate knn search against dense_vector
// fields indexed with cosine similarity.
type ElasticsearchSearcher struct {
	client         *elasticsearch.Client
	knowledgeIndex string
	ticketIndex    string
	numCandidates  int
}

func NewElasticsearchSearcher(client *elasticsearch.Client, cfg config.VectorIndicesConfig) *ElasticsearchSearcher {
	return &ElasticsearchSearcher{
		client:         client,
		knowledgeIndex: cfg.KnowledgeIndex,
		ticketIndex:    cfg.TicketIndex,
		numCandidates:  cfg.NumCandidates,
	}
}

type knnHit struct {
	ID     string          `json:"_id"`
	Score  float64         `json:"_score"`
	Source json.RawMessage `json:"_source"`
}

type knnResponse struct {
	Hits struct {
		Hits []knnHit `json:"hits"`
	} `json:"hits"`
}

func (s *ElasticsearchSearcher) SearchKnowledge(ctx context.Context, vector []float32, orgID string, threshold float64, limit int) ([]models.KnowledgeArticle, error) {
	if limit <= 0 {
		return []models.KnowledgeArticle{}, nil
	}

	filter := map[string]interface{}{
		"bool": map[string]interface{}{
			"filter": []interface{}{
				map[string]interface{}{"term": map[string]interface{}{"organization_id": orgID}},
			},
		},
	}
	hits, err := s.knn(ctx, s.knowledgeIndex, vector, limit, filter, []string{"title", "content"})
	if err != nil {
		return nil, err
	}

	articles := make([]models.KnowledgeArticle, 0, len(hits))
	for _, hit := range hits {
		similarity := cosineFromScore(hit.Score)
		if similarity < threshold {
			continue
		}
		var src struct {
			Title   string `json:"title"`
			Content string `json:"content"`
		}
		if err := json.Unmarshal(hit.Source, &src); err != nil {
			return nil, fmt.Errorf("%w: decode article %s: %v", ErrSearchFailed, hit.ID, err)
		}
		articles = append(articles, models.KnowledgeArticle{
			ID:         hit.ID,
			Title:      src.Title,
			Content:    src.Content,
			Similarity: similarity,
		})
	}
	return articles, nil
}

func (s *ElasticsearchSearcher) SearchSimilarTickets(ctx context.Context, vector []float32, orgID string, threshold float64, limit int, excludeTicketID string) ([]models.SimilarTicket, error) {
	if limit <= 0 {
		return []models.SimilarTicket{}, nil
	}

	boolFilter := map[string]interface{}{
		"filter": []interface{}{
			map[string]interface{}{"term": map[string]interface{}{"organization_id": orgID}},
			map[string]interface{}{"terms": map[string]interface{}{"status": models.ResolvedTicketStatuses}},
		},
	}
	if excludeTicketID != "" {
		boolFilter["must_not"] = []interface{}{
			map[string]interface{}{"ids": map[string]interface{}{"values": []string{excludeTicketID}}},
		}
	}
	hits, err := s.knn(ctx, s.ticketIndex, vector, limit, map[string]interface{}{"bool": boolFilter}, []string{"subject", "status"})
	if err != nil {
		return nil, err
	}

	tickets := make([]models.SimilarTicket, 0, len(hits))
	for _, hit := range hits {
		similarity := cosineFromScore(hit.Score)
		if similarity < threshold || hit.ID == excludeTicketID {
			continue
		}
		var src struct {
			Subject string `json:"subject"`
			Status  string `json:"status"`
		}
		if err := json.Unmarshal(hit.Source, &src); err != nil {
			return nil, fmt.Errorf("%w: decode ticket %s: %v", ErrSearchFailed, hit.ID, err)
		}
		if !isResolved(src.Status) {
			continue
		}
		tickets = append(tickets, models.SimilarTicket{
			ID:         hit.ID,
			Subject:    src.Subject,
			Status:     src.Status,
			Similarity: similarity,
		})
	}
	return tickets, nil
}

func (s *ElasticsearchSearcher) knn(ctx context.Context, index string, vector []float32, k int, filter map[string]interface{}, fields []string) ([]knnHit, error) {
	candidates := s.numCandidates
	if candidates < k {
		candidates = k
	}

	body := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          embeddingField,
			"query_vector":   vector,
			"k":              k,
			"num_candidates": candidates,
			"filter":         filter,
		},
		"_source": fields,
		"size":    k,
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("%w: encode knn query: %v", ErrSearchFailed, err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(index),
		s.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: knn search on %s: %v", ErrSearchFailed, index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("%w: knn search on %s: %s", ErrSearchFailed, index, res.Status())
	}

	var r knnResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("%w: decode knn response: %v", ErrSearchFailed, err)
	}
	return r.Hits.Hits, nil
}

// cosineFromScore undoes the (1 + cosine) / 2 scaling elasticsearch applies
// to cosine knn scores.
func cosineFromScore(score float64) float64 {
	return clampSimilarity(2*score - 1)
}
