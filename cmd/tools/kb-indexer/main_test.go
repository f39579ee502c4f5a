package main

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"support-drafts/internal/common/database"
	"support-drafts/internal/models"
	"support-drafts/internal/providers/vectorsearch"
)

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) (*models.Embedding, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Embedding{Vector: []float32{0.1, 0.2, 0.3}}, nil
}

type fakePoints struct {
	batches [][]*qdrant.PointStruct
}

func (f *fakePoints) Upsert(ctx context.Context, in *qdrant.UpsertPoints, opts ...grpc.CallOption) (*qdrant.PointsOperationResponse, error) {
	f.batches = append(f.batches, append([]*qdrant.PointStruct(nil), in.Points...))
	return &qdrant.PointsOperationResponse{}, nil
}

func testArticles() []article {
	return []article{
		{ID: "a1", Title: "Reset password", Content: "Use the forgot password link."},
		{ID: "a2", Title: "Invoices", Content: "Invoices are under Billing."},
		{ID: "a3", Title: "Refunds", Content: "Refunds take five business days."},
	}
}

func TestIndexArticles_Batches(t *testing.T) {
	points := &fakePoints{}
	sizes := []int{}

	n, err := indexArticles(context.Background(), &fakeEmbedder{}, points, "org-1", "kb", testArticles(), 2,
		func(size int) error { sizes = append(sizes, size); return nil })
	require.NoError(t, err)

	assert.Equal(t, 3, n)
	assert.Equal(t, []int{3}, sizes)
	require.Len(t, points.batches, 2)
	assert.Len(t, points.batches[0], 2)
	assert.Len(t, points.batches[1], 1)

	p := points.batches[1][0]
	assert.Equal(t, "a3", p.Payload[vectorsearch.PayloadArticleID].GetStringValue())
	assert.Equal(t, "org-1", p.Payload[vectorsearch.PayloadOrganizationID].GetStringValue())
	assert.Equal(t, "Refunds", p.Payload[vectorsearch.PayloadTitle].GetStringValue())
}

func TestIndexArticles_EmbedFailureStops(t *testing.T) {
	points := &fakePoints{}
	n, err := indexArticles(context.Background(), &fakeEmbedder{err: errors.New("model not loaded")}, points, "org-1", "kb", testArticles(), 2,
		func(int) error { return nil })

	require.Error(t, err)
	assert.Contains(t, err.Error(), "embed article a1")
	assert.Zero(t, n)
	assert.Empty(t, points.batches)
}

func TestArticlePoint_StableID(t *testing.T) {
	a := article{ID: "a1", Title: "t", Content: "c"}
	first := articlePoint("org-1", a, []float32{1})
	again := articlePoint("org-1", a, []float32{2})
	other := articlePoint("org-2", a, []float32{1})

	assert.Equal(t, first.Id.GetUuid(), again.Id.GetUuid())
	assert.NotEqual(t, first.Id.GetUuid(), other.Id.GetUuid())
}

func TestLoadArticles(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, title, content FROM "knowledge_articles" WHERE organization_id = \$1`).
		WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "content"}).
			AddRow("a1", "Reset password", "Use the forgot password link."))

	out, err := loadArticles(context.Background(), &database.PostgresClient{DB: db}, "knowledge_articles", "org-1")
	require.NoError(t, err)
	assert.Equal(t, []article{{ID: "a1", Title: "Reset password", Content: "Use the forgot password link."}}, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}
