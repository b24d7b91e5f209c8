package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"docpipe"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"docpipe"`

	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	ParserURL  string `envconfig:"PARSER_URL" default:"http://docparse:8000"`
	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`

	GeminiAPIKey       string `envconfig:"GEMINI_API_KEY"`
	EmbeddingModel     string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-004"`
	EmbeddingDimension int    `envconfig:"EMBEDDING_DIMENSION" default:"768"`

	SchedulerPollInterval time.Duration `envconfig:"SCHEDULER_POLL_INTERVAL" default:"2s"`
	SchedulerReapInterval time.Duration `envconfig:"SCHEDULER_REAP_INTERVAL" default:"30s"`
	JobLease              time.Duration `envconfig:"JOB_LEASE" default:"5m"`
	JobBatchSize          int           `envconfig:"JOB_BATCH_SIZE" default:"10"`
	WorkerConcurrency     int           `envconfig:"WORKER_CONCURRENCY" default:"4"`
	JobMaxRetries         int           `envconfig:"JOB_MAX_RETRIES" default:"3"`

	// Retry backoff: delay = BackoffUnit * BackoffBase^retry_count.
	BackoffBase float64       `envconfig:"BACKOFF_BASE" default:"5"`
	BackoffUnit time.Duration `envconfig:"BACKOFF_UNIT" default:"60s"`

	ChunkMaxTokens int `envconfig:"CHUNK_MAX_TOKENS" default:"512"`
	ChunkOverlap   int `envconfig:"CHUNK_OVERLAP" default:"50"`

	RetrievalTimeout    time.Duration `envconfig:"RETRIEVAL_TIMEOUT" default:"5s"`
	RetrievalThreshold  float32       `envconfig:"RETRIEVAL_THRESHOLD" default:"0.7"`
	RetrievalMaxTokens  int           `envconfig:"RETRIEVAL_MAX_TOKENS" default:"2048"`
	RetrievalCandidates int           `envconfig:"RETRIEVAL_CANDIDATES" default:"50"`
	QueryLogPath        string        `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`

	ServerPort      int    `envconfig:"SERVER_PORT" default:"8081"`
	MaxUploadSizeMB int64  `envconfig:"MAX_UPLOAD_SIZE_MB" default:"50"`
	UploadDir       string `envconfig:"UPLOAD_DIR" default:"./uploads"`
	MigrationPath   string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// .env is optional; real deployments set vars in the environment.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	_ = godotenv.Load(filepath.Join(cwd, "../.env"))

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.BackoffBase < 1 {
		return fmt.Errorf("%w: BACKOFF_BASE must be >= 1", ErrMissingRequired)
	}
	if c.JobLease <= 0 {
		return fmt.Errorf("%w: JOB_LEASE must be positive", ErrMissingRequired)
	}
	if c.ChunkMaxTokens <= 0 {
		return fmt.Errorf("%w: CHUNK_MAX_TOKENS must be positive", ErrMissingRequired)
	}
	return nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPass, c.DBHost, c.DBPort, c.DBName)
}

func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadSizeMB * 1024 * 1024
}
