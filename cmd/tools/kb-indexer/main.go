// cmd/tools/kb-indexer/main.go
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"

	"support-drafts/internal/common/config"
	"support-drafts/internal/common/database"
	"support-drafts/internal/common/logger"
	"support-drafts/internal/models"
	"support-drafts/internal/providers/ollama"
	"support-drafts/internal/providers/vectorsearch"
)

var (
	configPath = flag.String("config", "", "Path to a config file (default: configs/config.yaml lookup)")
	orgID      = flag.String("org", "", "Organization whose knowledge articles are indexed")
	batchSize  = flag.Int("batch", 64, "Points per upsert request")
	timeout    = flag.Duration("timeout", 30*time.Minute, "Overall timeout")
	verbose    = flag.Bool("v", false, "Log embedding calls to stderr")
)

var (
	green = color.New(color.FgGreen, color.Bold).SprintFunc()
	red   = color.New(color.FgRed, color.Bold).SprintFunc()
	faint = color.New(color.Faint).SprintFunc()
)

type article struct {
	ID      string
	Title   string
	Content string
}

type embedder interface {
	Embed(ctx context.Context, text string) (*models.Embedding, error)
}

type rowQuerier interface {
	Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

type pointUpserter interface {
	Upsert(ctx context.Context, in *qdrant.UpsertPoints, opts ...grpc.CallOption) (*qdrant.PointsOperationResponse, error)
}

func main() {
	flag.Parse()
	if *orgID == "" || *batchSize <= 0 {
		flag.Usage()
		os.Exit(2)
	}
	os.Exit(run())
}

func run() int {
	cfg, err := loadConfig()
	if err != nil {
		return fail("config: %v", err)
	}

	log := logger.NewNoOpLogger()
	if *verbose {
		log = logger.NewZapAdapter(logger.New("debug", "console"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return fail("postgres: %v", err)
	}
	defer pg.Close()

	articles, err := loadArticles(ctx, pg, cfg.Vector.PGVector.ArticlesTable, *orgID)
	if err != nil {
		return fail("load articles: %v", err)
	}
	if len(articles) == 0 {
		fmt.Printf("no articles for organization %s\n", *orgID)
		return 0
	}
	fmt.Printf("indexing %d articles into %s\n", len(articles), cfg.Vector.Qdrant.KnowledgeCollection)

	embeddings, err := ollama.NewClient(cfg.Providers.Ollama, log)
	if err != nil {
		return fail("ollama: %v", err)
	}

	conn, err := vectorsearch.DialQdrant(cfg.Vector.Qdrant)
	if err != nil {
		return fail("%v", err)
	}
	defer conn.Close()

	collection := cfg.Vector.Qdrant.KnowledgeCollection
	points := qdrant.NewPointsClient(conn)
	collections := qdrant.NewCollectionsClient(conn)

	indexed, err := indexArticles(ctx, embeddings, points, *orgID, collection, articles, *batchSize,
		func(size int) error { return ensureCollection(ctx, collections, collection, size) })
	if err != nil {
		return fail("indexed %d of %d: %v", indexed, len(articles), err)
	}

	fmt.Printf("%s indexed %d articles\n", green("done"), indexed)
	return 0
}

func loadConfig() (*config.Config, error) {
	if *configPath != "" {
		return config.LoadFromFile(*configPath)
	}
	return config.Load()
}

func loadArticles(ctx context.Context, db rowQuerier, table, org string) ([]article, error) {
	query := fmt.Sprintf(`SELECT id, title, content FROM %s WHERE organization_id = $1 ORDER BY id`, pq.QuoteIdentifier(table))
	rows, err := db.Query(ctx, query, org)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []article
	for rows.Next() {
		var a article
		if err := rows.Scan(&a.ID, &a.Title, &a.Content); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// indexArticles embeds title and content together and upserts in batches.
// prepare runs once with the vector size of the first embedding.
func indexArticles(ctx context.Context, emb embedder, points pointUpserter, org, collection string,
	articles []article, batch int, prepare func(size int) error) (int, error) {

	indexed := 0
	pending := make([]*qdrant.PointStruct, 0, batch)
	prepared := false

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		wait := true
		if _, err := points.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Wait:           &wait,
			Points:         pending,
		}); err != nil {
			return fmt.Errorf("upsert: %w", err)
		}
		indexed += len(pending)
		pending = pending[:0]
		return nil
	}

	for _, a := range articles {
		e, err := emb.Embed(ctx, a.Title+"\n\n"+a.Content)
		if err != nil {
			return indexed, fmt.Errorf("embed article %s: %w", a.ID, err)
		}
		if !prepared {
			if err := prepare(len(e.Vector)); err != nil {
				return indexed, err
			}
			prepared = true
		}
		pending = append(pending, articlePoint(org, a, e.Vector))
		fmt.Println(faint("  embedded " + a.ID))

		if len(pending) >= batch {
			if err := flush(); err != nil {
				return indexed, err
			}
		}
	}
	return indexed, flush()
}

// articlePoint derives a stable point id so reindexing overwrites.
func articlePoint(org string, a article, vector []float32) *qdrant.PointStruct {
	return &qdrant.PointStruct{
		Id: &qdrant.PointId{
			PointIdOptions: &qdrant.PointId_Uuid{Uuid: uuid.NewSHA1(uuid.NameSpaceURL, []byte(org+":"+a.ID)).String()},
		},
		Vectors: &qdrant.Vectors{
			VectorsOptions: &qdrant.Vectors_Vector{Vector: &qdrant.Vector{Data: vector}},
		},
		Payload: map[string]*qdrant.Value{
			vectorsearch.PayloadOrganizationID: vectorsearch.StringValue(org),
			vectorsearch.PayloadArticleID:      vectorsearch.StringValue(a.ID),
			vectorsearch.PayloadTitle:          vectorsearch.StringValue(a.Title),
			vectorsearch.PayloadContent:        vectorsearch.StringValue(a.Content),
		},
	}
}

func ensureCollection(ctx context.Context, client qdrant.CollectionsClient, name string, size int) error {
	exists, err := client.CollectionExists(ctx, &qdrant.CollectionExistsRequest{CollectionName: name})
	if err != nil {
		return fmt.Errorf("check collection %s: %w", name, err)
	}
	if exists.GetResult().GetExists() {
		return nil
	}

	_, err = client.Create(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(size),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	fmt.Printf("created collection %s (size %d)\n", name, size)
	return nil
}

func fail(format string, args ...interface{}) int {
	fmt.Fprintf(os.Stderr, red("error: ")+format+"\n", args...)
	return 1
}
