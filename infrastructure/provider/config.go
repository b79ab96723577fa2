package provider

import (
	"net/http"
	"strings"
	"time"
)

// Protocols understood by the frame and text backends.
const (
	ProtocolOpenAI     = "openai"
	ProtocolCLIPServer = "clip"
	ProtocolHugot      = "hugot"
)

// Config describes one model endpoint.
type Config struct {
	Protocol         string
	BaseURL          string
	Model            string
	APIKey           string
	Timeout          time.Duration
	MaxRetries       int
	InitialDelay     time.Duration
	BackoffFactor    float64
	NumParallelTasks int
	BatchSize        int

	// CacheDir enables on-disk response caching when set.
	CacheDir string
}

// DefaultBatchSize is the default number of inputs per embedding call.
const DefaultBatchSize = 8

// WithDefaults returns c with zero fields set to their defaults.
func (c Config) WithDefaults() Config {
	c.Protocol = strings.ToLower(strings.TrimSpace(c.Protocol))
	if c.Protocol == "" {
		c.Protocol = ProtocolOpenAI
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 5
	}
	if c.InitialDelay == 0 {
		c.InitialDelay = 2 * time.Second
	}
	if c.BackoffFactor == 0 {
		c.BackoffFactor = 2.0
	}
	if c.NumParallelTasks <= 0 {
		c.NumParallelTasks = 1
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	return c
}

// httpClient builds the client used for endpoint calls, wrapping the
// transport in a cache when CacheDir is set.
func (c Config) httpClient() (*http.Client, error) {
	var transport http.RoundTripper = http.DefaultTransport
	if c.CacheDir != "" {
		cache, err := NewCachingTransport(c.CacheDir, transport)
		if err != nil {
			return nil, err
		}
		transport = cache
	}
	return &http.Client{Timeout: c.Timeout, Transport: transport}, nil
}
