package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
}

// Auth configures caseworker bearer tokens.
type Auth struct {
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	TokenTTL      time.Duration
}

// RedisConfig configures the extraction cache backend. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig configures case and audit persistence. An empty URL keeps
// cases in memory.
type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// KafkaConfig configures decision and audit event publishing. No brokers
// disables publishing.
type KafkaConfig struct {
	Brokers        []string
	ClientID       string
	DecisionsTopic string
	AuditTopic     string
	Partitions     int32
	Replication    int16
	RelayInterval  time.Duration
	RelayBatchSize int
}

// VertexConfig configures the Gemini vision extractor. An empty project
// disables it.
type VertexConfig struct {
	Project  string
	Location string
	Model    string
	MaxPages int
}

// ExtractionConfig configures document extraction.
type ExtractionConfig struct {
	ServiceURL      string
	ServiceAPIKey   string
	RatePerSecond   float64
	RateBurst       int
	DocumentTimeout time.Duration
	CacheTTL        time.Duration
}

// ScoringConfig configures the eligibility classifier. With a model server
// URL the remote classifier is used; otherwise the local logistic model is
// loaded from ModelPath, or the built-in model when that is empty too.
type ScoringConfig struct {
	ModelServerURL   string
	ModelName        string
	ModelPath        string
	Timeout          time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// PipelineConfig configures orchestration of a case run.
type PipelineConfig struct {
	SinkTimeout time.Duration
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level  string
	Format string
}

// Config is the full service configuration.
type Config struct {
	Server     Server
	Auth       Auth
	Redis      RedisConfig
	Postgres   PostgresConfig
	Kafka      KafkaConfig
	Vertex     VertexConfig
	Extraction ExtractionConfig
	Scoring    ScoringConfig
	Pipeline   PipelineConfig
	Logging    LoggingConfig
	// PolicyFile is an optional YAML overlay on the default policies.
	PolicyFile string
	// WatchPolicy reloads PolicyFile when it changes on disk.
	WatchPolicy bool
}

const devSigningKey = "dev-secret-key-change-in-production"

// FromEnv builds the configuration from environment variables so main stays
// lean. Malformed values are reported together.
func FromEnv() (Config, error) {
	e := &env{}
	cfg := Config{
		Server: Server{
			Addr:            e.str("CASEWORK_ADDR", ":8080"),
			ReadTimeout:     e.duration("CASEWORK_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    e.duration("CASEWORK_WRITE_TIMEOUT", 90*time.Second),
			ShutdownTimeout: e.duration("CASEWORK_SHUTDOWN_TIMEOUT", 15*time.Second),
			MaxUploadBytes:  int64(e.integer("CASEWORK_MAX_UPLOAD_BYTES", 32<<20)),
		},
		Auth: Auth{
			JWTSigningKey: e.str("JWT_SIGNING_KEY", devSigningKey),
			JWTIssuer:     e.str("JWT_ISSUER", "casework"),
			JWTAudience:   e.str("JWT_AUDIENCE", "casework-api"),
			TokenTTL:      e.duration("JWT_TOKEN_TTL", 8*time.Hour),
		},
		Redis: RedisConfig{
			URL:          e.str("REDIS_URL", ""),
			PoolSize:     e.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: e.integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  e.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  e.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: e.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{
			URL:             e.str("DATABASE_URL", ""),
			MaxOpenConns:    e.integer("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    e.integer("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: e.duration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:        e.list("KAFKA_BROKERS"),
			ClientID:       e.str("KAFKA_CLIENT_ID", "casework"),
			DecisionsTopic: e.str("KAFKA_DECISIONS_TOPIC", "casework.decisions"),
			AuditTopic:     e.str("KAFKA_AUDIT_TOPIC", "casework.audit"),
			Partitions:     int32(e.integer("KAFKA_TOPIC_PARTITIONS", 3)),
			Replication:    int16(e.integer("KAFKA_TOPIC_REPLICATION", 1)),
			RelayInterval:  e.duration("KAFKA_RELAY_INTERVAL", time.Second),
			RelayBatchSize: e.integer("KAFKA_RELAY_BATCH_SIZE", 100),
		},
		Vertex: VertexConfig{
			Project:  e.str("VERTEX_PROJECT", ""),
			Location: e.str("VERTEX_LOCATION", "us-central1"),
			Model:    e.str("VERTEX_MODEL", "gemini-1.5-flash"),
			MaxPages: e.integer("VERTEX_MAX_PDF_PAGES", 20),
		},
		Extraction: ExtractionConfig{
			ServiceURL:      e.str("EXTRACTION_SERVICE_URL", ""),
			ServiceAPIKey:   e.str("EXTRACTION_SERVICE_API_KEY", ""),
			RatePerSecond:   e.float("EXTRACTION_RATE_PER_SECOND", 0),
			RateBurst:       e.integer("EXTRACTION_RATE_BURST", 4),
			DocumentTimeout: e.duration("EXTRACTION_DOCUMENT_TIMEOUT", 30*time.Second),
			CacheTTL:        e.duration("EXTRACTION_CACHE_TTL", 15*time.Minute),
		},
		Scoring: ScoringConfig{
			ModelServerURL:   e.str("MODEL_SERVER_URL", ""),
			ModelName:        e.str("MODEL_NAME", "eligibility"),
			ModelPath:        e.str("MODEL_PATH", ""),
			Timeout:          e.duration("SCORING_TIMEOUT", 10*time.Second),
			BreakerThreshold: e.integer("SCORING_BREAKER_THRESHOLD", 5),
			BreakerCooldown:  e.duration("SCORING_BREAKER_COOLDOWN", 30*time.Second),
		},
		Pipeline: PipelineConfig{
			SinkTimeout: e.duration("PIPELINE_SINK_TIMEOUT", 5*time.Second),
		},
		Logging: LoggingConfig{
			Level:  e.str("LOG_LEVEL", "info"),
			Format: e.str("LOG_FORMAT", "json"),
		},
		PolicyFile:  e.str("POLICY_FILE", ""),
		WatchPolicy: e.boolean("POLICY_WATCH", false),
	}
	if err := errors.Join(e.errs...); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// UsesDevSigningKey reports whether tokens are signed with the development key.
func (c Config) UsesDevSigningKey() bool {
	return c.Auth.JWTSigningKey == devSigningKey
}

type env struct {
	errs []error
}

func (e *env) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (e *env) list(key string) []string {
	raw := e.str(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (e *env) integer(key string, def int) int {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not an integer", key, raw))
		return def
	}
	return v
}

func (e *env) float(key string, def float64) float64 {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a number", key, raw))
		return def
	}
	return v
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a duration", key, raw))
		return def
	}
	return v
}

func (e *env) boolean(key string, def bool) bool {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a boolean", key, raw))
		return def
	}
	return v
}
