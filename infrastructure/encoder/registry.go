package encoder

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/helixml/vidembed/domain/embedding"
)

// Encoder identifiers.
const (
	NameDefault       = "default"
	NameRandom        = "random"
	NameCLIP          = "clip"
	NameCLIPCentroid  = "clip-centroid"
	NameVCLIP         = "vclip"
	NameVCLIPCentroid = "vclipcentroid"
)

// Model names reported in EncoderParams. The stores derive collection names
// from these.
const (
	modelCLIPCentroid = "clipcentroid"
)

// Options carries everything a constructor may need. Each encoder reads only
// the fields it uses.
type Options struct {
	// StubVector overrides the default encoder's literal vector.
	StubVector embedding.Vector

	// Shape is the random encoder's embedding size, e.g. "768".
	Shape string

	// Model overrides the frame model's default configuration.
	Model ModelConfig

	// Backend loads the frame model. Required by the clip and vclip encoders.
	Backend BackendFactory

	// Parallelism bounds concurrent backend calls within one clip.
	Parallelism int

	Logger *slog.Logger
}

// Constructor builds a generator from options.
type Constructor func(ctx context.Context, opts Options) (embedding.Generator, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{}
	order      []string
)

func init() {
	Register(NameDefault, func(_ context.Context, opts Options) (embedding.Generator, error) {
		return NewStub(opts.StubVector), nil
	})
	Register(NameRandom, func(_ context.Context, opts Options) (embedding.Generator, error) {
		return NewRandom(opts.Shape)
	})
	Register(NameCLIP, func(ctx context.Context, opts Options) (embedding.Generator, error) {
		return newFrameModel(ctx, NameCLIP, DefaultCLIPConfig(), false, opts)
	})
	Register(NameCLIPCentroid, func(ctx context.Context, opts Options) (embedding.Generator, error) {
		inner, err := newFrameModel(ctx, NameCLIP, DefaultCLIPConfig(), false, opts)
		if err != nil {
			return nil, err
		}
		return centroidOrClose(modelCLIPCentroid, inner)
	})
	Register(NameVCLIP, func(ctx context.Context, opts Options) (embedding.Generator, error) {
		return newFrameModel(ctx, NameVCLIP, DefaultVCLIPConfig(), true, opts)
	})
	Register(NameVCLIPCentroid, func(ctx context.Context, opts Options) (embedding.Generator, error) {
		inner, err := newFrameModel(ctx, NameVCLIP, DefaultVCLIPConfig(), true, opts)
		if err != nil {
			return nil, err
		}
		return centroidOrClose(NameVCLIPCentroid, inner)
	})
}

// Register adds an encoder under name. Registering an existing name replaces
// its constructor but keeps its position in Names.
func Register(name string, c Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[name]; !ok {
		order = append(order, name)
	}
	registry[name] = c
}

// Names returns the registered identifiers in registration order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return slices.Clone(order)
}

// Validate reports whether name is a registered identifier.
func Validate(name string) error {
	registryMu.RLock()
	_, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return embedding.Configurationf("unknown encoder %q: valid encoders are %v", name, Names())
	}
	return nil
}

// Build resolves name and constructs its generator.
func Build(ctx context.Context, name string, opts Options) (embedding.Generator, error) {
	registryMu.RLock()
	c, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, embedding.Configurationf("unknown encoder %q: valid encoders are %v", name, Names())
	}
	gen, err := c(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("build encoder %s: %w", name, err)
	}
	return gen, nil
}

func newFrameModel(ctx context.Context, name string, base ModelConfig, needsCheckpoint bool, opts Options) (*FrameModel, error) {
	cfg := base.Merge(opts.Model)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if needsCheckpoint && cfg.Checkpoint == "" {
		return nil, embedding.Configurationf("%s: model checkpoint path is required", name)
	}
	if opts.Backend == nil {
		return nil, embedding.Configurationf("%s: no frame embedding backend configured", name)
	}

	backend, err := opts.Backend(ctx, cfg)
	if err != nil {
		return nil, embedding.Unavailable("load "+cfg.Architecture, err)
	}
	model, err := NewFrameModel(name, cfg.Dimension, backend, opts.Parallelism, opts.Logger)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return model, nil
}

func centroidOrClose(name string, inner *FrameModel) (embedding.Generator, error) {
	c, err := NewCentroid(name, inner)
	if err != nil {
		_ = inner.Close()
		return nil, err
	}
	return c, nil
}
