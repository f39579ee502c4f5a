// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"

	"support-drafts/internal/api"
	"support-drafts/internal/common/aws"
	"support-drafts/internal/common/config"
	"support-drafts/internal/common/database"
	"support-drafts/internal/common/logger"
	"support-drafts/internal/common/observability"
	"support-drafts/internal/drafting/assembler"
	"support-drafts/internal/drafting/fallback"
	"support-drafts/internal/drafting/orchestrator"
	"support-drafts/internal/drafting/prompt"
	"support-drafts/internal/drafting/retrieval"
	"support-drafts/internal/drafting/safety"
	"support-drafts/internal/drafting/service"
	"support-drafts/internal/escalation"
	"support-drafts/internal/events"
	"support-drafts/internal/providers/embedcache"
	"support-drafts/internal/providers/ollama"
	"support-drafts/internal/providers/tickets"
	"support-drafts/internal/providers/vectorsearch"
)

// App holds everything built at startup. Close releases it in reverse order
// of construction.
type App struct {
	Service *service.Service
	Checks  map[string]api.ReadinessCheck
	closers []func() error
	logger  logger.Logger
}

// Options adjusts what Build wires.
type Options struct {
	// Offline skips the kafka publisher and escalation alerts.
	Offline bool
}

// OnClose registers fn to run when the App is closed.
func (a *App) OnClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

// Build connects every backing service named in cfg and assembles the draft
// service. On error everything opened so far is closed.
func Build(ctx context.Context, cfg *config.Config, opts Options, obs *observability.Observability, log logger.Logger) (_ *App, err error) {
	app := &App{Checks: make(map[string]api.ReadinessCheck), logger: log}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	// --- PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = RetryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, log, "PostgreSQL connection")
	if err != nil {
		return nil, err
	}
	app.OnClose(pg.Close)
	app.Checks["postgres"] = pg.Ping
	log.Info("postgres connected", nil)

	// --- Redis (embedding cache) ---
	var rdb *database.RedisClient
	if cfg.Providers.EmbeddingCache.Enabled {
		rc, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return nil, err
		}
		app.OnClose(rc.Close)
		app.Checks["redis"] = rc.Ping
		rdb = rc
	}

	// --- Vector search backend ---
	backends := vectorsearch.Backends{Postgres: pg.GetDB()}
	switch cfg.Vector.Backend {
	case config.VectorBackendElasticsearch:
		var es *database.ElasticsearchClient
		es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return nil, err
		}
		app.Checks["elasticsearch"] = es.Ping
		backends.Elasticsearch = es.Client
	case config.VectorBackendQdrant:
		var conn *grpc.ClientConn
		conn, err = vectorsearch.DialQdrant(cfg.Vector.Qdrant)
		if err != nil {
			return nil, err
		}
		app.OnClose(conn.Close)
		backends.Qdrant = conn
	}
	searcher, err := vectorsearch.New(cfg.Vector, backends)
	if err != nil {
		return nil, err
	}

	// --- Providers ---
	llm, err := ollama.NewClient(cfg.Providers.Ollama, log)
	if err != nil {
		return nil, err
	}
	var embedder retrieval.Embedder = llm
	if rdb != nil {
		ttl := time.Duration(cfg.Providers.EmbeddingCache.TTL) * time.Second
		embedder = embedcache.New(llm, rdb, llm.EmbeddingModel(), ttl, log)
	}
	ticketStore := tickets.NewStore(pg)

	// --- Draft pipeline ---
	p := cfg.Pipeline
	retriever, err := retrieval.NewRetriever(embedder, searcher, ticketStore, retrieval.Options{
		MatchThreshold: p.Retrieval.MatchThreshold,
		ArticleCount:   p.Retrieval.ArticleCount,
		TicketCount:    p.Retrieval.TicketCount,
		Buffer:         p.Retrieval.Buffer,
	}, log)
	if err != nil {
		return nil, err
	}

	fallbacks, err := fallback.NewEngine()
	if err != nil {
		return nil, err
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Assembly: assembler.Options{
			MaxArticles: p.Assembly.MaxArticles,
			MaxTickets:  p.Assembly.MaxTickets,
			MaxChars:    p.Assembly.MaxChars,
		},
		Prompt: prompt.Options{
			Tone:        prompt.Tone(p.Generation.Tone),
			Length:      prompt.Length(p.Generation.Length),
			CompanyName: p.Generation.CompanyName,
			AgentName:   p.Generation.AgentName,
		},
		Model:             llm.ChatModel(),
		Temperature:       p.Generation.Temperature,
		MaxTokens:         p.Generation.MaxTokens,
		MinResponseLength: p.Generation.MinResponseLength,
	}, orchestrator.Dependencies{
		Retriever: retriever,
		Completer: llm,
		Fallback:  fallbacks,
		Logger:    log,
		Tracer:    obs.Tracer(),
		Recorder:  obs,
	})
	if err != nil {
		return nil, err
	}

	processor, err := safety.NewProcessor(safety.Options{
		MaxLength:     p.Safety.MaxInputLength,
		RedactionMode: safety.RedactionMode(p.Safety.RedactionMode),
	})
	if err != nil {
		return nil, err
	}

	// --- Outbound integrations ---
	deps := service.Dependencies{
		Screener:  processor,
		Generator: orch,
		Tickets:   ticketStore,
		Logger:    log,
	}

	if cfg.Events.Kafka.Enabled && !opts.Offline {
		publisher := events.NewPublisher(cfg.Events.Kafka, log)
		app.OnClose(publisher.Close)
		deps.Events = publisher
	}

	if cfg.Notifications.Enabled && !opts.Offline {
		notifier, err := newNotifier(ctx, cfg.Notifications, log)
		if err != nil {
			return nil, err
		}
		deps.Escalator = notifier
	}

	app.Service, err = service.New(deps)
	if err != nil {
		return nil, err
	}
	return app, nil
}

func newNotifier(ctx context.Context, cfg config.NotificationConfig, log logger.Logger) (*escalation.Notifier, error) {
	awsCfg, err := aws.LoadConfig(ctx, cfg.AWSRegion)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	var mailer escalation.Mailer
	if cfg.SES.Enabled {
		mailer = aws.NewSESClient(awsCfg)
	}
	return escalation.NewNotifier(cfg, aws.NewSNSClient(awsCfg), mailer, log), nil
}

// RetryWithBackoff attempts to execute a function with exponential backoff
func RetryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}
