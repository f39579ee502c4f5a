package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml when
// present and applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return finish(v)
}

func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	// APP_NAME overrides app.name, PIPELINE_RETRIEVAL_MATCH_THRESHOLD overrides pipeline.retrieval.match_threshold
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

func overrideEmptyConfig(cfg *Config) {
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
	if val := os.Getenv("OLLAMA_HOST"); val != "" && cfg.Providers.Ollama.BaseURL == "" {
		cfg.Providers.Ollama.BaseURL = val
	}
	if len(cfg.Events.Kafka.Brokers) == 0 {
		if val := os.Getenv("KAFKA_BROKERS"); val != "" {
			cfg.Events.Kafka.Brokers = strings.Split(val, ",")
		}
	}
	if cfg.Notifications.SNS.TopicARN == "" {
		if val := os.Getenv("ESCALATION_SNS_TOPIC_ARN"); val != "" {
			cfg.Notifications.SNS.TopicARN = val
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "support-drafts"
	}

	// Server
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 90000
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60000
	}
	if cfg.Server.RateLimit.RPS == 0 {
		cfg.Server.RateLimit.RPS = 5
	}
	if cfg.Server.RateLimit.Burst == 0 {
		cfg.Server.RateLimit.Burst = 10
	}

	// Camunda
	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	// Database
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	// Vector search
	if cfg.Vector.Backend == "" {
		cfg.Vector.Backend = VectorBackendPGVector
	}
	if cfg.Vector.PGVector.ArticlesTable == "" {
		cfg.Vector.PGVector.ArticlesTable = "knowledge_articles"
	}
	if cfg.Vector.PGVector.TicketsTable == "" {
		cfg.Vector.PGVector.TicketsTable = "tickets"
	}
	if cfg.Vector.Qdrant.Port == 0 {
		cfg.Vector.Qdrant.Port = 6334
	}
	if cfg.Vector.Qdrant.KnowledgeCollection == "" {
		cfg.Vector.Qdrant.KnowledgeCollection = "knowledge_articles"
	}
	if cfg.Vector.Qdrant.TicketCollection == "" {
		cfg.Vector.Qdrant.TicketCollection = "resolved_tickets"
	}
	if cfg.Vector.Elasticsearch.KnowledgeIndex == "" {
		cfg.Vector.Elasticsearch.KnowledgeIndex = "knowledge-articles"
	}
	if cfg.Vector.Elasticsearch.TicketIndex == "" {
		cfg.Vector.Elasticsearch.TicketIndex = "tickets"
	}
	if cfg.Vector.Elasticsearch.NumCandidates == 0 {
		cfg.Vector.Elasticsearch.NumCandidates = 100
	}

	// Providers
	if cfg.Providers.Ollama.BaseURL == "" {
		cfg.Providers.Ollama.BaseURL = "http://localhost:11434"
	}
	if cfg.Providers.Ollama.ChatModel == "" {
		cfg.Providers.Ollama.ChatModel = "llama3.1"
	}
	if cfg.Providers.Ollama.EmbeddingModel == "" {
		cfg.Providers.Ollama.EmbeddingModel = "nomic-embed-text"
	}
	if cfg.Providers.Ollama.Timeout == 0 {
		cfg.Providers.Ollama.Timeout = 60000
	}
	if cfg.Providers.Ollama.MaxRetries == 0 {
		cfg.Providers.Ollama.MaxRetries = 2
	}
	if cfg.Providers.EmbeddingCache.TTL == 0 {
		cfg.Providers.EmbeddingCache.TTL = 86400
	}

	// Pipeline
	p := &cfg.Pipeline
	if p.Safety.MaxInputLength == 0 {
		p.Safety.MaxInputLength = 10000
	}
	if p.Safety.RedactionMode == "" {
		p.Safety.RedactionMode = "label"
	}
	if p.Retrieval.MatchThreshold == 0 {
		p.Retrieval.MatchThreshold = 0.4
	}
	if p.Retrieval.ArticleCount == 0 {
		p.Retrieval.ArticleCount = 5
	}
	if p.Retrieval.TicketCount == 0 {
		p.Retrieval.TicketCount = 3
	}
	if p.Retrieval.Buffer == 0 {
		p.Retrieval.Buffer = 2
	}
	if p.Assembly.MaxArticles == 0 {
		p.Assembly.MaxArticles = 3
	}
	if p.Assembly.MaxTickets == 0 {
		p.Assembly.MaxTickets = 2
	}
	if p.Assembly.MaxChars == 0 {
		p.Assembly.MaxChars = 6000
	}
	if p.Generation.Temperature == 0 {
		p.Generation.Temperature = 0.3
	}
	if p.Generation.MaxTokens == 0 {
		p.Generation.MaxTokens = 1000
	}
	if p.Generation.MinResponseLength == 0 {
		p.Generation.MinResponseLength = 50
	}
	if p.Generation.Tone == "" {
		p.Generation.Tone = "friendly"
	}
	if p.Generation.Length == "" {
		p.Generation.Length = "medium"
	}

	// Outbound
	if cfg.Events.Kafka.DraftsTopic == "" {
		cfg.Events.Kafka.DraftsTopic = "support.drafts"
	}
	if cfg.Notifications.AWSRegion == "" {
		cfg.Notifications.AWSRegion = "us-east-1"
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = cfg.App.Name
	}
	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = 1
	}

	// Logging
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}

	if cfg.Camunda.Enabled && cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required when camunda is enabled")
	}

	switch cfg.Vector.Backend {
	case VectorBackendPGVector:
	case VectorBackendQdrant:
		if cfg.Vector.Qdrant.Host == "" {
			return fmt.Errorf("vector.qdrant.host is required for the qdrant backend")
		}
	case VectorBackendElasticsearch:
		if len(cfg.Database.Elasticsearch.GetAddresses()) == 0 {
			return fmt.Errorf("database.elasticsearch.addresses or url is required for the elasticsearch backend")
		}
	default:
		return fmt.Errorf("vector.backend %q is not one of pgvector, qdrant, elasticsearch", cfg.Vector.Backend)
	}

	if cfg.Providers.EmbeddingCache.Enabled && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required when the embedding cache is enabled")
	}

	p := cfg.Pipeline
	if t := p.Retrieval.MatchThreshold; t < 0 || t > 1 {
		return fmt.Errorf("pipeline.retrieval.match_threshold must be within [0,1], got %v", t)
	}
	if p.Retrieval.ArticleCount < 0 || p.Retrieval.TicketCount < 0 || p.Retrieval.Buffer < 0 {
		return fmt.Errorf("pipeline.retrieval counts must not be negative")
	}
	if p.Assembly.MaxChars <= 0 || p.Assembly.MaxArticles < 0 || p.Assembly.MaxTickets < 0 {
		return fmt.Errorf("pipeline.assembly budgets must be positive")
	}
	if p.Safety.MaxInputLength <= 0 {
		return fmt.Errorf("pipeline.safety.max_input_length must be positive")
	}
	switch p.Safety.RedactionMode {
	case "label", "mask", "remove":
	default:
		return fmt.Errorf("pipeline.safety.redaction_mode %q is not one of label, mask, remove", p.Safety.RedactionMode)
	}
	switch p.Generation.Tone {
	case "friendly", "formal", "empathetic":
	default:
		return fmt.Errorf("pipeline.generation.tone %q is not one of friendly, formal, empathetic", p.Generation.Tone)
	}
	switch p.Generation.Length {
	case "short", "medium", "long":
	default:
		return fmt.Errorf("pipeline.generation.length %q is not one of short, medium, long", p.Generation.Length)
	}
	if p.Generation.Temperature < 0 || p.Generation.Temperature > 2 {
		return fmt.Errorf("pipeline.generation.temperature must be within [0,2]")
	}
	if p.Generation.MaxTokens <= 0 {
		return fmt.Errorf("pipeline.generation.max_tokens must be positive")
	}

	if cfg.Events.Kafka.Enabled && len(cfg.Events.Kafka.Brokers) == 0 {
		return fmt.Errorf("events.kafka.brokers is required when kafka is enabled")
	}
	if cfg.Notifications.Enabled && cfg.Notifications.SNS.TopicARN == "" && !cfg.Notifications.SES.Enabled {
		return fmt.Errorf("notifications need an sns topic or ses when enabled")
	}
	if cfg.Notifications.SES.Enabled && (cfg.Notifications.SES.FromEmail == "" || len(cfg.Notifications.SES.ToEmails) == 0) {
		return fmt.Errorf("notifications.ses.from_email and to_emails are required when ses is enabled")
	}

	return nil
}

func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
