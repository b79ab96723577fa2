// Package config provides application configuration.
package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvConfig holds all environment-based configuration.
// Nested structs use underscore delimiter (e.g., FRAME_ENDPOINT_BASE_URL).
type EnvConfig struct {
	// DataDir is the data directory path.
	// Env: DATA_DIR
	// Default: ~/.vidembed
	DataDir string `envconfig:"DATA_DIR"`

	// LedgerURL is the run ledger database URL. Empty disables the ledger.
	// Env: LEDGER_URL
	LedgerURL string `envconfig:"LEDGER_URL"`

	// LogLevel is the log verbosity level.
	// Env: LOG_LEVEL (default: INFO)
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// LogFormat is the log output format (pretty or json).
	// Env: LOG_FORMAT (default: pretty)
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// MetricsAddr is the listen address for /metrics and /healthz.
	// Env: METRICS_ADDR
	MetricsAddr string `envconfig:"METRICS_ADDR"`

	// HTTPCacheDir is the directory for caching HTTP responses to disk.
	// When set, POST request/response pairs are cached to avoid repeated API calls.
	// Env: HTTP_CACHE_DIR
	HTTPCacheDir string `envconfig:"HTTP_CACHE_DIR"`

	// FrameEndpoint configures the frame embedding service.
	FrameEndpoint EndpointEnv `envconfig:"FRAME_ENDPOINT"`

	// TextEndpoint configures the text query embedding service.
	TextEndpoint EndpointEnv `envconfig:"TEXT_ENDPOINT"`

	// HugotModelDir is a local text embedding model directory.
	// Env: HUGOT_MODEL_DIR
	HugotModelDir string `envconfig:"HUGOT_MODEL_DIR"`

	// Milvus configures vector-database connections to Milvus.
	Milvus MilvusEnv `envconfig:"MILVUS"`

	// Qdrant configures vector-database connections to Qdrant.
	Qdrant QdrantEnv `envconfig:"QDRANT"`

	// ClipSeconds is the fixed-window clip duration.
	// Env: CLIP_SECONDS (default: 14)
	ClipSeconds float64 `envconfig:"CLIP_SECONDS" default:"14"`

	// Rewrite drops and recreates existing collections.
	// Env: REWRITE (default: true)
	Rewrite bool `envconfig:"REWRITE" default:"true"`
}

// EndpointEnv holds environment configuration for a model endpoint.
type EndpointEnv struct {
	// Protocol is openai, clip or hugot.
	// Env: *_PROTOCOL (default: openai)
	Protocol string `envconfig:"PROTOCOL" default:"openai"`

	// BaseURL is the base URL for the endpoint.
	// Env: *_BASE_URL
	BaseURL string `envconfig:"BASE_URL"`

	// Model is the model identifier.
	// Env: *_MODEL
	Model string `envconfig:"MODEL"`

	// APIKey is the API key for authentication.
	// Env: *_API_KEY
	APIKey string `envconfig:"API_KEY"`

	// Timeout is the request timeout in seconds.
	// Env: *_TIMEOUT (default: 60)
	Timeout float64 `envconfig:"TIMEOUT" default:"60"`

	// MaxRetries is the maximum number of retries.
	// Env: *_MAX_RETRIES (default: 5)
	MaxRetries int `envconfig:"MAX_RETRIES" default:"5"`

	// InitialDelay is the initial retry delay in seconds.
	// Env: *_INITIAL_DELAY (default: 2.0)
	InitialDelay float64 `envconfig:"INITIAL_DELAY" default:"2.0"`

	// BackoffFactor is the retry backoff multiplier.
	// Env: *_BACKOFF_FACTOR (default: 2.0)
	BackoffFactor float64 `envconfig:"BACKOFF_FACTOR" default:"2.0"`

	// NumParallelTasks bounds concurrent requests within one clip.
	// Env: *_NUM_PARALLEL_TASKS (default: 1)
	NumParallelTasks int `envconfig:"NUM_PARALLEL_TASKS" default:"1"`

	// BatchSize is the number of inputs per request.
	// Env: *_BATCH_SIZE (default: 8)
	BatchSize int `envconfig:"BATCH_SIZE" default:"8"`
}

// MilvusEnv holds environment configuration for Milvus.
type MilvusEnv struct {
	// Env: MILVUS_ADDRESS (default: localhost:19530)
	Address  string `envconfig:"ADDRESS" default:"localhost:19530"`
	Username string `envconfig:"USERNAME"`
	Password string `envconfig:"PASSWORD"`
	Token    string `envconfig:"TOKEN"`
	DBName   string `envconfig:"DB_NAME"`
}

// QdrantEnv holds environment configuration for Qdrant.
type QdrantEnv struct {
	// Env: QDRANT_HOST (default: localhost)
	Host string `envconfig:"HOST" default:"localhost"`
	// Env: QDRANT_PORT (default: 6334)
	Port   int    `envconfig:"PORT" default:"6334"`
	APIKey string `envconfig:"API_KEY"`
	UseTLS bool   `envconfig:"USE_TLS" default:"false"`
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// LoadFromEnvWithPrefix loads configuration with a custom prefix.
// For example, prefix "VIDEMBED" would require VIDEMBED_DATA_DIR instead of DATA_DIR.
func LoadFromEnvWithPrefix(prefix string) (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// ToAppConfig converts EnvConfig to AppConfig.
func (e EnvConfig) ToAppConfig() AppConfig {
	cfg := NewAppConfig()

	if e.DataDir != "" {
		cfg = applyOption(cfg, WithDataDir(e.DataDir))
	}
	if e.LedgerURL != "" {
		cfg = applyOption(cfg, WithLedgerURL(e.LedgerURL))
	}
	if e.LogLevel != "" {
		cfg = applyOption(cfg, WithLogLevel(e.LogLevel))
	}
	if e.LogFormat != "" {
		cfg = applyOption(cfg, WithLogFormat(parseLogFormat(e.LogFormat)))
	}
	if e.MetricsAddr != "" {
		cfg = applyOption(cfg, WithMetricsAddr(e.MetricsAddr))
	}
	if e.HTTPCacheDir != "" {
		cfg = applyOption(cfg, WithHTTPCacheDir(e.HTTPCacheDir))
	}

	if e.FrameEndpoint.IsConfigured() {
		cfg = applyOption(cfg, WithFrameEndpoint(e.FrameEndpoint.ToEndpoint()))
	}
	if e.TextEndpoint.IsConfigured() {
		cfg = applyOption(cfg, WithTextEndpoint(e.TextEndpoint.ToEndpoint()))
	}
	if e.HugotModelDir != "" {
		cfg = applyOption(cfg, WithHugotModelDir(e.HugotModelDir))
	}

	cfg = applyOption(cfg, WithMilvus(Milvus(e.Milvus)))
	cfg = applyOption(cfg, WithQdrant(Qdrant(e.Qdrant)))

	if e.ClipSeconds > 0 {
		cfg = applyOption(cfg, WithClipSeconds(e.ClipSeconds))
	}
	cfg = applyOption(cfg, WithRewrite(e.Rewrite))

	return cfg
}

// applyOption applies an option to the config.
func applyOption(cfg AppConfig, opt AppConfigOption) AppConfig {
	opt(&cfg)
	return cfg
}

// IsConfigured returns true if the endpoint has a base URL or a model.
func (e EndpointEnv) IsConfigured() bool {
	return e.BaseURL != "" || e.Model != ""
}

// ToEndpoint converts EndpointEnv to Endpoint.
func (e EndpointEnv) ToEndpoint() Endpoint {
	opts := []EndpointOption{
		WithProtocol(e.Protocol),
		WithModel(e.Model),
		WithNumParallelTasks(e.NumParallelTasks),
		WithTimeout(time.Duration(e.Timeout * float64(time.Second))),
		WithMaxRetries(e.MaxRetries),
		WithInitialDelay(time.Duration(e.InitialDelay * float64(time.Second))),
		WithBackoffFactor(e.BackoffFactor),
		WithBatchSize(e.BatchSize),
	}

	if e.BaseURL != "" {
		opts = append(opts, WithBaseURL(e.BaseURL))
	}
	if e.APIKey != "" {
		opts = append(opts, WithAPIKey(e.APIKey))
	}

	return NewEndpointWithOptions(opts...)
}

// parseLogFormat parses a log format string.
func parseLogFormat(s string) LogFormat {
	switch strings.ToLower(s) {
	case "json":
		return LogFormatJSON
	default:
		return LogFormatPretty
	}
}
