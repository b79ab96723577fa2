package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Default configuration values.
const (
	DefaultLogLevel              = "INFO"
	DefaultClipSeconds           = 14.0
	DefaultRewrite               = true
	DefaultEndpointProtocol      = "openai"
	DefaultEndpointParallelTasks = 1
	DefaultEndpointTimeout       = 60 * time.Second
	DefaultEndpointMaxRetries    = 5
	DefaultEndpointInitialDelay  = 2 * time.Second
	DefaultEndpointBackoffFactor = 2.0
	DefaultEndpointBatchSize     = 8
	DefaultMilvusAddress         = "localhost:19530"
	DefaultQdrantHost            = "localhost"
	DefaultQdrantPort            = 6334
)

// LogFormat represents the log output format.
type LogFormat string

// LogFormat values.
const (
	LogFormatPretty LogFormat = "pretty"
	LogFormatJSON   LogFormat = "json"
)

// Endpoint configures a model service endpoint.
type Endpoint struct {
	protocol         string
	baseURL          string
	model            string
	apiKey           string
	numParallelTasks int
	timeout          time.Duration
	maxRetries       int
	initialDelay     time.Duration
	backoffFactor    float64
	batchSize        int
}

// NewEndpoint creates a new Endpoint with defaults.
func NewEndpoint() Endpoint {
	return Endpoint{
		protocol:         DefaultEndpointProtocol,
		numParallelTasks: DefaultEndpointParallelTasks,
		timeout:          DefaultEndpointTimeout,
		maxRetries:       DefaultEndpointMaxRetries,
		initialDelay:     DefaultEndpointInitialDelay,
		backoffFactor:    DefaultEndpointBackoffFactor,
		batchSize:        DefaultEndpointBatchSize,
	}
}

// Protocol returns the wire protocol (openai, clip or hugot).
func (e Endpoint) Protocol() string { return e.protocol }

// BaseURL returns the base URL for the endpoint.
func (e Endpoint) BaseURL() string { return e.baseURL }

// Model returns the model identifier.
func (e Endpoint) Model() string { return e.model }

// APIKey returns the API key.
func (e Endpoint) APIKey() string { return e.apiKey }

// NumParallelTasks returns the number of parallel tasks.
func (e Endpoint) NumParallelTasks() int { return e.numParallelTasks }

// Timeout returns the request timeout.
func (e Endpoint) Timeout() time.Duration { return e.timeout }

// MaxRetries returns the maximum retry count.
func (e Endpoint) MaxRetries() int { return e.maxRetries }

// InitialDelay returns the initial retry delay.
func (e Endpoint) InitialDelay() time.Duration { return e.initialDelay }

// BackoffFactor returns the retry backoff multiplier.
func (e Endpoint) BackoffFactor() float64 { return e.backoffFactor }

// BatchSize returns the number of inputs per request.
func (e Endpoint) BatchSize() int { return e.batchSize }

// IsConfigured returns true if the endpoint has a base URL or a model.
func (e Endpoint) IsConfigured() bool {
	return e.baseURL != "" || e.model != ""
}

// EndpointOption is a functional option for Endpoint.
type EndpointOption func(*Endpoint)

// WithProtocol sets the wire protocol.
func WithProtocol(p string) EndpointOption {
	return func(e *Endpoint) {
		if p != "" {
			e.protocol = p
		}
	}
}

// WithBaseURL sets the base URL.
func WithBaseURL(url string) EndpointOption {
	return func(e *Endpoint) { e.baseURL = url }
}

// WithModel sets the model.
func WithModel(model string) EndpointOption {
	return func(e *Endpoint) { e.model = model }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) EndpointOption {
	return func(e *Endpoint) { e.apiKey = key }
}

// WithNumParallelTasks sets the parallel task count.
func WithNumParallelTasks(n int) EndpointOption {
	return func(e *Endpoint) { e.numParallelTasks = n }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) EndpointOption {
	return func(e *Endpoint) { e.timeout = d }
}

// WithMaxRetries sets the maximum retry count.
func WithMaxRetries(n int) EndpointOption {
	return func(e *Endpoint) { e.maxRetries = n }
}

// WithInitialDelay sets the initial retry delay.
func WithInitialDelay(d time.Duration) EndpointOption {
	return func(e *Endpoint) { e.initialDelay = d }
}

// WithBackoffFactor sets the retry backoff multiplier.
func WithBackoffFactor(f float64) EndpointOption {
	return func(e *Endpoint) { e.backoffFactor = f }
}

// WithBatchSize sets the number of inputs per request.
func WithBatchSize(n int) EndpointOption {
	return func(e *Endpoint) { e.batchSize = n }
}

// NewEndpointWithOptions creates an Endpoint with functional options.
func NewEndpointWithOptions(opts ...EndpointOption) Endpoint {
	e := NewEndpoint()
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// Milvus holds Milvus connection settings.
type Milvus struct {
	Address  string
	Username string
	Password string
	Token    string
	DBName   string
}

// Qdrant holds Qdrant connection settings.
type Qdrant struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// AppConfig holds the main application configuration.
type AppConfig struct {
	dataDir       string
	ledgerURL     string
	logLevel      string
	logFormat     LogFormat
	metricsAddr   string
	httpCacheDir  string
	frameEndpoint *Endpoint
	textEndpoint  *Endpoint
	hugotModelDir string
	milvus        Milvus
	qdrant        Qdrant
	clipSeconds   float64
	rewrite       bool
}

// DefaultDataDir returns the default data directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".vidembed"
	}
	return filepath.Join(home, ".vidembed")
}

// NewAppConfig creates a new AppConfig with defaults.
func NewAppConfig() AppConfig {
	return AppConfig{
		dataDir:     DefaultDataDir(),
		logLevel:    DefaultLogLevel,
		logFormat:   LogFormatPretty,
		milvus:      Milvus{Address: DefaultMilvusAddress},
		qdrant:      Qdrant{Host: DefaultQdrantHost, Port: DefaultQdrantPort},
		clipSeconds: DefaultClipSeconds,
		rewrite:     DefaultRewrite,
	}
}

// DataDir returns the data directory path.
func (c AppConfig) DataDir() string { return c.dataDir }

// LedgerURL returns the run ledger database URL; empty disables the ledger.
func (c AppConfig) LedgerURL() string { return c.ledgerURL }

// LogLevel returns the log level.
func (c AppConfig) LogLevel() string { return c.logLevel }

// LogFormat returns the log format.
func (c AppConfig) LogFormat() LogFormat { return c.logFormat }

// MetricsAddr returns the metrics listen address; empty disables the server.
func (c AppConfig) MetricsAddr() string { return c.metricsAddr }

// HTTPCacheDir returns the HTTP response cache directory.
func (c AppConfig) HTTPCacheDir() string { return c.httpCacheDir }

// FrameEndpoint returns the frame embedding endpoint, or nil.
func (c AppConfig) FrameEndpoint() *Endpoint { return c.frameEndpoint }

// TextEndpoint returns the text embedding endpoint, or nil.
func (c AppConfig) TextEndpoint() *Endpoint { return c.textEndpoint }

// HugotModelDir returns the local text model directory.
func (c AppConfig) HugotModelDir() string { return c.hugotModelDir }

// Milvus returns the Milvus connection settings.
func (c AppConfig) Milvus() Milvus { return c.milvus }

// Qdrant returns the Qdrant connection settings.
func (c AppConfig) Qdrant() Qdrant { return c.qdrant }

// ClipSeconds returns the fixed-window clip duration.
func (c AppConfig) ClipSeconds() float64 { return c.clipSeconds }

// Rewrite reports whether existing collections are recreated.
func (c AppConfig) Rewrite() bool { return c.rewrite }

// DefaultLedgerURL returns a sqlite ledger inside the data directory.
func (c AppConfig) DefaultLedgerURL() string {
	return "sqlite:///" + filepath.Join(c.dataDir, "ledger.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c AppConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.dataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	return nil
}

// AppConfigOption is a functional option for AppConfig.
type AppConfigOption func(*AppConfig)

// WithDataDir sets the data directory.
func WithDataDir(dir string) AppConfigOption {
	return func(c *AppConfig) { c.dataDir = dir }
}

// WithLedgerURL sets the ledger database URL.
func WithLedgerURL(url string) AppConfigOption {
	return func(c *AppConfig) { c.ledgerURL = url }
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) AppConfigOption {
	return func(c *AppConfig) { c.logLevel = level }
}

// WithLogFormat sets the log format.
func WithLogFormat(format LogFormat) AppConfigOption {
	return func(c *AppConfig) { c.logFormat = format }
}

// WithMetricsAddr sets the metrics listen address.
func WithMetricsAddr(addr string) AppConfigOption {
	return func(c *AppConfig) { c.metricsAddr = addr }
}

// WithHTTPCacheDir sets the HTTP response cache directory.
func WithHTTPCacheDir(dir string) AppConfigOption {
	return func(c *AppConfig) { c.httpCacheDir = dir }
}

// WithFrameEndpoint sets the frame embedding endpoint.
func WithFrameEndpoint(e Endpoint) AppConfigOption {
	return func(c *AppConfig) { c.frameEndpoint = &e }
}

// WithTextEndpoint sets the text embedding endpoint.
func WithTextEndpoint(e Endpoint) AppConfigOption {
	return func(c *AppConfig) { c.textEndpoint = &e }
}

// WithHugotModelDir sets the local text model directory.
func WithHugotModelDir(dir string) AppConfigOption {
	return func(c *AppConfig) { c.hugotModelDir = dir }
}

// WithMilvus sets the Milvus connection settings.
func WithMilvus(m Milvus) AppConfigOption {
	return func(c *AppConfig) { c.milvus = m }
}

// WithQdrant sets the Qdrant connection settings.
func WithQdrant(q Qdrant) AppConfigOption {
	return func(c *AppConfig) { c.qdrant = q }
}

// WithClipSeconds sets the fixed-window clip duration.
func WithClipSeconds(s float64) AppConfigOption {
	return func(c *AppConfig) {
		if s > 0 {
			c.clipSeconds = s
		}
	}
}

// WithRewrite sets whether existing collections are recreated.
func WithRewrite(rewrite bool) AppConfigOption {
	return func(c *AppConfig) { c.rewrite = rewrite }
}

// NewAppConfigWithOptions creates an AppConfig with functional options.
func NewAppConfigWithOptions(opts ...AppConfigOption) AppConfig {
	c := NewAppConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Apply returns a new AppConfig with the given options applied.
func (c AppConfig) Apply(opts ...AppConfigOption) AppConfig {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// LogAttrs returns slog attributes for logging the configuration.
// Secrets are never included.
func (c AppConfig) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("data_dir", c.dataDir),
		slog.String("log_level", c.logLevel),
		slog.String("ledger_url", c.maskedLedgerURL()),
		slog.String("frame_base_url", endpointBaseURL(c.frameEndpoint)),
		slog.String("frame_model", endpointModel(c.frameEndpoint)),
		slog.String("text_base_url", endpointBaseURL(c.textEndpoint)),
		slog.String("text_model", endpointModel(c.textEndpoint)),
		slog.String("milvus_address", c.milvus.Address),
		slog.String("qdrant_host", c.qdrant.Host),
		slog.Float64("clip_seconds", c.clipSeconds),
		slog.Bool("rewrite", c.rewrite),
	}
}

func (c AppConfig) maskedLedgerURL() string {
	if c.ledgerURL == "" {
		return "(disabled)"
	}
	if len(c.ledgerURL) >= 7 && c.ledgerURL[:7] == "sqlite:" {
		return c.ledgerURL
	}
	return "postgres://***@***"
}

func endpointBaseURL(e *Endpoint) string {
	if e == nil {
		return "(not configured)"
	}
	return e.BaseURL()
}

func endpointModel(e *Endpoint) string {
	if e == nil {
		return "(not configured)"
	}
	return e.Model()
}
