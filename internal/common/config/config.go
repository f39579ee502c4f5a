// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Server        ServerConfig            `mapstructure:"server"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Vector        VectorConfig            `mapstructure:"vector"`
	Providers     ProvidersConfig         `mapstructure:"providers"`
	Pipeline      PipelineConfig          `mapstructure:"pipeline"`
	Events        EventsConfig            `mapstructure:"events"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Tracing       TracingConfig           `mapstructure:"tracing"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Logging       LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address        string          `mapstructure:"address"`
	ReadTimeout    int             `mapstructure:"read_timeout"`    // milliseconds
	WriteTimeout   int             `mapstructure:"write_timeout"`   // milliseconds
	RequestTimeout int             `mapstructure:"request_timeout"` // milliseconds, whole draft pipeline
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"` // single address shorthand
}

// GetAddresses returns Addresses, or URL when only that is set.
func (e ElasticsearchConfig) GetAddresses() []string {
	if len(e.Addresses) > 0 {
		return e.Addresses
	}
	if e.URL != "" {
		return []string{e.URL}
	}
	return nil
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Retrieval backends and providers ---

const (
	VectorBackendPGVector      = "pgvector"
	VectorBackendQdrant        = "qdrant"
	VectorBackendElasticsearch = "elasticsearch"
)

type VectorConfig struct {
	Backend       string              `mapstructure:"backend"`
	PGVector      PGVectorConfig      `mapstructure:"pgvector"`
	Qdrant        QdrantConfig        `mapstructure:"qdrant"`
	Elasticsearch VectorIndicesConfig `mapstructure:"elasticsearch"`
}

type PGVectorConfig struct {
	ArticlesTable string `mapstructure:"articles_table"`
	TicketsTable  string `mapstructure:"tickets_table"`
}

type QdrantConfig struct {
	Host                string `mapstructure:"host"`
	Port                int    `mapstructure:"port"`
	KnowledgeCollection string `mapstructure:"knowledge_collection"`
	TicketCollection    string `mapstructure:"ticket_collection"`
}

// Address returns host:port for the gRPC dial.
func (q QdrantConfig) Address() string {
	return fmt.Sprintf("%s:%d", q.Host, q.Port)
}

type VectorIndicesConfig struct {
	KnowledgeIndex string `mapstructure:"knowledge_index"`
	TicketIndex    string `mapstructure:"ticket_index"`
	NumCandidates  int    `mapstructure:"num_candidates"`
}

type ProvidersConfig struct {
	Ollama         OllamaConfig         `mapstructure:"ollama"`
	EmbeddingCache EmbeddingCacheConfig `mapstructure:"embedding_cache"`
}

type OllamaConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	ChatModel      string `mapstructure:"chat_model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	Timeout        int    `mapstructure:"timeout"` // milliseconds
	MaxRetries     int    `mapstructure:"max_retries"`
}

type EmbeddingCacheConfig struct {
	Enabled bool `mapstructure:"enabled"`
	TTL     int  `mapstructure:"ttl"` // seconds
}

// --- Draft pipeline ---

type PipelineConfig struct {
	Safety     SafetyConfig     `mapstructure:"safety"`
	Retrieval  RetrievalConfig  `mapstructure:"retrieval"`
	Assembly   AssemblyConfig   `mapstructure:"assembly"`
	Generation GenerationConfig `mapstructure:"generation"`
}

type SafetyConfig struct {
	MaxInputLength int    `mapstructure:"max_input_length"`
	RedactionMode  string `mapstructure:"redaction_mode"`
}

type RetrievalConfig struct {
	MatchThreshold float64 `mapstructure:"match_threshold"`
	ArticleCount   int     `mapstructure:"article_count"`
	TicketCount    int     `mapstructure:"ticket_count"`
	Buffer         int     `mapstructure:"buffer"`
}

type AssemblyConfig struct {
	MaxArticles int `mapstructure:"max_articles"`
	MaxTickets  int `mapstructure:"max_tickets"`
	MaxChars    int `mapstructure:"max_chars"`
}

type GenerationConfig struct {
	Temperature       float64 `mapstructure:"temperature"`
	MaxTokens         int     `mapstructure:"max_tokens"`
	MinResponseLength int     `mapstructure:"min_response_length"`
	Tone              string  `mapstructure:"tone"`
	Length            string  `mapstructure:"length"`
	CompanyName       string  `mapstructure:"company_name"`
	AgentName         string  `mapstructure:"agent_name"`
}

// --- Outbound integrations ---

type EventsConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Brokers     []string `mapstructure:"brokers"`
	DraftsTopic string   `mapstructure:"drafts_topic"`
}

// NotificationConfig holds settings for escalation alerts.
type NotificationConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	AWSRegion string `mapstructure:"aws_region"`
	SNS       struct {
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
	SES struct {
		Enabled   bool     `mapstructure:"enabled"`
		FromEmail string   `mapstructure:"from_email"`
		ToEmails  []string `mapstructure:"to_emails"`
	} `mapstructure:"ses"`
}

type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
