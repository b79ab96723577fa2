package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/helixml/vidembed/domain/embedding"
	"github.com/helixml/vidembed/domain/run"
	domainstore "github.com/helixml/vidembed/domain/store"
	"github.com/helixml/vidembed/infrastructure/encoder"
	"github.com/helixml/vidembed/infrastructure/persistence"
	"github.com/helixml/vidembed/infrastructure/provider"
	"github.com/helixml/vidembed/infrastructure/store"
	"github.com/helixml/vidembed/internal/config"
	"github.com/helixml/vidembed/internal/database"
)

// encoderFlags are shared by every command that builds an encoder.
type encoderFlags struct {
	name        string
	shape       string
	stubVector  []float32
	modelConfig string
}

// storeFlags are shared by every command that builds a store.
type storeFlags struct {
	name   string
	outDir string
}

// validateNames rejects unknown identifiers before any I/O.
func validateNames(encoderName, storeName string) error {
	if err := encoder.Validate(encoderName); err != nil {
		return err
	}
	return store.Validate(storeName)
}

func endpointConfig(e config.Endpoint, cacheDir string) provider.Config {
	return provider.Config{
		Protocol:         e.Protocol(),
		BaseURL:          e.BaseURL(),
		Model:            e.Model(),
		APIKey:           e.APIKey(),
		Timeout:          e.Timeout(),
		MaxRetries:       e.MaxRetries(),
		InitialDelay:     e.InitialDelay(),
		BackoffFactor:    e.BackoffFactor(),
		NumParallelTasks: e.NumParallelTasks(),
		BatchSize:        e.BatchSize(),
		CacheDir:         cacheDir,
	}
}

// frameBackend loads frame models from the configured frame endpoint.
// It returns nil when no endpoint is configured.
func frameBackend(cfg config.AppConfig, logger *slog.Logger) encoder.BackendFactory {
	e := cfg.FrameEndpoint()
	if e == nil {
		return nil
	}
	pc := endpointConfig(*e, cfg.HTTPCacheDir()).WithDefaults()

	return func(ctx context.Context, mc encoder.ModelConfig) (encoder.FrameEmbedder, error) {
		switch pc.Protocol {
		case provider.ProtocolCLIPServer:
			load := provider.LoadRequest{
				Architecture: mc.Architecture,
				Weights:      mc.Weights,
				Checkpoint:   mc.Checkpoint,
				Device:       mc.Device,
			}
			c, err := provider.NewCLIPFrameEmbedder(ctx, pc, load, mc.Dimension, logger)
			if err != nil {
				return nil, err
			}
			return c, nil
		case provider.ProtocolOpenAI:
			if pc.Model == "" {
				pc.Model = mc.Architecture
			}
			p, err := provider.NewOpenAIFrameEmbedder(ctx, pc, mc.Dimension, logger)
			if err != nil {
				return nil, err
			}
			return p, nil
		default:
			return nil, embedding.Configurationf("frame endpoint: unsupported protocol %q", pc.Protocol)
		}
	}
}

func buildEncoder(ctx context.Context, cfg config.AppConfig, f encoderFlags, logger *slog.Logger) (embedding.Generator, error) {
	opts := encoder.Options{
		StubVector: embedding.Vector(f.stubVector),
		Shape:      f.shape,
		Backend:    frameBackend(cfg, logger),
		Logger:     logger,
	}
	if e := cfg.FrameEndpoint(); e != nil {
		opts.Parallelism = e.NumParallelTasks()
	}
	if f.modelConfig != "" {
		mc, err := encoder.LoadModelConfig(f.modelConfig)
		if err != nil {
			return nil, err
		}
		opts.Model = mc
	}
	return encoder.Build(ctx, f.name, opts)
}

func storeOptions(cfg config.AppConfig, f storeFlags, logger *slog.Logger) store.Options {
	dir := f.outDir
	if dir == "" {
		dir = filepath.Join(cfg.DataDir(), "embeddings")
	}
	return store.Options{
		Dir:     dir,
		Rewrite: cfg.Rewrite(),
		Milvus:  store.MilvusConfig(cfg.Milvus()),
		Qdrant:  store.QdrantConfig(cfg.Qdrant()),
		Logger:  logger,
	}
}

// checkStore reports store configuration errors without I/O.
func checkStore(cfg config.AppConfig, f storeFlags) error {
	if err := store.Check(f.name, storeOptions(cfg, f, nil)); err != nil {
		return fmt.Errorf("build store %s: %w", f.name, err)
	}
	return nil
}

func buildStore(cfg config.AppConfig, f storeFlags, params embedding.EncoderParams, logger *slog.Logger) (domainstore.Handler, error) {
	return store.Build(f.name, params, storeOptions(cfg, f, logger))
}

// textEncoder is a query encoder that holds resources.
type textEncoder interface {
	embedding.TextEncoder
	Close() error
}

// buildTextEncoder picks the text endpoint, then a local hugot model.
func buildTextEncoder(cfg config.AppConfig, logger *slog.Logger) (textEncoder, error) {
	e := cfg.TextEndpoint()
	if e == nil {
		if cfg.HugotModelDir() == "" {
			return nil, embedding.Configurationf("search needs TEXT_ENDPOINT_* or HUGOT_MODEL_DIR")
		}
		return hugotEncoder(cfg.HugotModelDir())
	}

	pc := endpointConfig(*e, cfg.HTTPCacheDir()).WithDefaults()
	switch pc.Protocol {
	case provider.ProtocolOpenAI:
		p, err := provider.NewOpenAIProvider(pc, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	case provider.ProtocolCLIPServer:
		c, err := provider.NewCLIPServer(pc, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case provider.ProtocolHugot:
		return hugotEncoder(cfg.HugotModelDir())
	default:
		return nil, embedding.Configurationf("text endpoint: unsupported protocol %q", pc.Protocol)
	}
}

func hugotEncoder(dir string) (textEncoder, error) {
	h, err := provider.NewHugotTextEncoder(dir)
	if err != nil {
		return nil, err
	}
	if !h.Available() {
		return nil, embedding.Configurationf("hugot model not found in %s", dir)
	}
	return h, nil
}

// openLedger returns the configured ledger, or a no-op ledger when disabled.
func openLedger(ctx context.Context, url string, logger *slog.Logger) (run.Ledger, func() error, error) {
	if url == "" {
		return run.NopLedger{}, func() error { return nil }, nil
	}
	db, err := database.NewDatabase(ctx, url, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open ledger: %w", err)
	}
	l, err := persistence.NewLedger(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("open ledger: %w", err)
	}
	return l, db.Close, nil
}
