// internal/providers/vectorsearch/qdrant.go
package vectorsearch

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"support-drafts/internal/common/config"
	"support-drafts/internal/models"
)

// Payload fields written by the knowledge indexer and the ticket sync.
const (
	PayloadOrganizationID = "organization_id"
	PayloadArticleID      = "article_id"
	PayloadTitle          = "title"
	PayloadContent        = "content"
	PayloadTicketID       = "ticket_id"
	PayloadSubject        = "subject"
	PayloadStatus         = "status"
)

// pointSearcher is the part of qdrant.PointsClient used for search.
type pointSearcher interface {
	Search(ctx context.Context, in *qdrant.SearchPoints, opts ...grpc.CallOption) (*qdrant.SearchResponse, error)
}

// QdrantSearcher searches cosine collections in qdrant over gRPC.
type QdrantSearcher struct {
	points              pointSearcher
	knowledgeCollection string
	ticketCollection    string
}

// DialQdrant opens an insecure gRPC connection to qdrant. The caller closes it.
func DialQdrant(cfg config.QdrantConfig) (*grpc.ClientConn, error) {
	conn, err := grpc.Dial(cfg.Address(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant at %s: %w", cfg.Address(), err)
	}
	return conn, nil
}

func NewQdrantSearcher(conn grpc.ClientConnInterface, cfg config.QdrantConfig) *QdrantSearcher {
	return newQdrantSearcher(qdrant.NewPointsClient(conn), cfg)
}

func newQdrantSearcher(points pointSearcher, cfg config.QdrantConfig) *QdrantSearcher {
	return &QdrantSearcher{
		points:              points,
		knowledgeCollection: cfg.KnowledgeCollection,
		ticketCollection:    cfg.TicketCollection,
	}
}

func (s *QdrantSearcher) SearchKnowledge(ctx context.Context, vector []float32, orgID string, threshold float64, limit int) ([]models.KnowledgeArticle, error) {
	if limit <= 0 {
		return []models.KnowledgeArticle{}, nil
	}

	req := &qdrant.SearchPoints{
		CollectionName: s.knowledgeCollection,
		Vector:         vector,
		Limit:          uint64(limit),
		ScoreThreshold: scoreThreshold(threshold),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{keywordCondition(PayloadOrganizationID, orgID)},
		},
		WithPayload: payloadFields(PayloadArticleID, PayloadTitle, PayloadContent),
	}

	resp, err := s.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: qdrant knowledge search: %v", ErrSearchFailed, err)
	}

	articles := make([]models.KnowledgeArticle, 0, len(resp.GetResult()))
	for _, point := range resp.GetResult() {
		id := stringPayload(point, PayloadArticleID)
		if id == "" {
			continue
		}
		articles = append(articles, models.KnowledgeArticle{
			ID:         id,
			Title:      stringPayload(point, PayloadTitle),
			Content:    stringPayload(point, PayloadContent),
			Similarity: clampSimilarity(float64(point.GetScore())),
		})
	}
	return articles, nil
}

func (s *QdrantSearcher) SearchSimilarTickets(ctx context.Context, vector []float32, orgID string, threshold float64, limit int, excludeTicketID string) ([]models.SimilarTicket, error) {
	if limit <= 0 {
		return []models.SimilarTicket{}, nil
	}

	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			keywordCondition(PayloadOrganizationID, orgID),
			keywordsCondition(PayloadStatus, models.ResolvedTicketStatuses),
		},
	}
	if excludeTicketID != "" {
		filter.MustNot = []*qdrant.Condition{keywordCondition(PayloadTicketID, excludeTicketID)}
	}

	req := &qdrant.SearchPoints{
		CollectionName: s.ticketCollection,
		Vector:         vector,
		Limit:          uint64(limit),
		ScoreThreshold: scoreThreshold(threshold),
		Filter:         filter,
		WithPayload:    payloadFields(PayloadTicketID, PayloadSubject, PayloadStatus),
	}

	resp, err := s.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: qdrant ticket search: %v", ErrSearchFailed, err)
	}

	tickets := make([]models.SimilarTicket, 0, len(resp.GetResult()))
	for _, point := range resp.GetResult() {
		id := stringPayload(point, PayloadTicketID)
		status := stringPayload(point, PayloadStatus)
		if id == "" || id == excludeTicketID || !isResolved(status) {
			continue
		}
		tickets = append(tickets, models.SimilarTicket{
			ID:         id,
			Subject:    stringPayload(point, PayloadSubject),
			Status:     status,
			Similarity: clampSimilarity(float64(point.GetScore())),
		})
	}
	return tickets, nil
}

func scoreThreshold(threshold float64) *float32 {
	t := float32(threshold)
	return &t
}

func keywordCondition(key, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key: key,
				Match: &qdrant.Match{
					MatchValue: &qdrant.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}

func keywordsCondition(key string, values []string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key: key,
				Match: &qdrant.Match{
					MatchValue: &qdrant.Match_Keywords{
						Keywords: &qdrant.RepeatedStrings{Strings: values},
					},
				},
			},
		},
	}
}

func payloadFields(fields ...string) *qdrant.WithPayloadSelector {
	return &qdrant.WithPayloadSelector{
		SelectorOptions: &qdrant.WithPayloadSelector_Include{
			Include: &qdrant.PayloadIncludeSelector{Fields: fields},
		},
	}
}

func stringPayload(point *qdrant.ScoredPoint, key string) string {
	if v, ok := point.GetPayload()[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

// StringValue builds a qdrant payload value.
func StringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}
