package encoder

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/helixml/vidembed/domain/embedding"
	"github.com/helixml/vidembed/domain/video"
)

// FrameEmbedder is an image-embedding backend. It returns one vector per
// frame, in input order.
type FrameEmbedder interface {
	EmbedFrames(ctx context.Context, frames []video.Frame) ([]embedding.Vector, error)

	// Capacity is the largest batch EmbedFrames accepts.
	Capacity() int

	Close() error
}

// BackendFactory loads a FrameEmbedder for a model configuration.
// It is called once, at encoder construction.
type BackendFactory func(ctx context.Context, cfg ModelConfig) (FrameEmbedder, error)

// FrameModel runs a FrameEmbedder over every frame of a clip and returns the
// per-frame vectors as a list embedding.
type FrameModel struct {
	backend     FrameEmbedder
	params      embedding.EncoderParams
	parallelism int
	logger      *slog.Logger
}

// NewFrameModel creates a FrameModel named name that emits vectors of width dim.
func NewFrameModel(name string, dim int, backend FrameEmbedder, parallelism int, logger *slog.Logger) (*FrameModel, error) {
	if backend == nil {
		return nil, embedding.Configurationf("%s: frame backend is required", name)
	}
	if dim <= 0 {
		return nil, embedding.Configurationf("%s: invalid dimension %d", name, dim)
	}
	if parallelism <= 0 {
		parallelism = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FrameModel{
		backend:     backend,
		params:      embedding.NewEncoderParams(name, dim, true),
		parallelism: parallelism,
		logger:      logger,
	}, nil
}

// Embed implements embedding.Generator. Any batch failure aborts the whole clip.
func (m *FrameModel) Embed(ctx context.Context, frames []video.Frame) (embedding.Embedding, error) {
	if len(frames) == 0 {
		return embedding.Embedding{}, embedding.ErrEmptyClip
	}

	size := m.backend.Capacity()
	if size <= 0 {
		size = 1
	}

	out := make([]embedding.Vector, len(frames))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.parallelism)

	for start := 0; start < len(frames); start += size {
		end := min(start+size, len(frames))
		g.Go(func() error {
			vectors, err := m.backend.EmbedFrames(gctx, frames[start:end])
			if err != nil {
				return fmt.Errorf("embed frames %d-%d: %w", frames[start].Index(), frames[end-1].Index(), err)
			}
			if len(vectors) != end-start {
				return fmt.Errorf("%w: backend returned %d vectors for %d frames", embedding.ErrDimensionMismatch, len(vectors), end-start)
			}
			copy(out[start:end], vectors)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		m.logger.Debug("clip embedding aborted",
			slog.String("model", m.params.ModelName),
			slog.Int("frames", len(frames)),
			slog.String("error", err.Error()),
		)
		return embedding.Embedding{}, err
	}

	result := embedding.NewList(out)
	if err := m.params.Check(result); err != nil {
		return embedding.Embedding{}, err
	}
	return result, nil
}

// Params implements embedding.Generator.
func (m *FrameModel) Params() embedding.EncoderParams { return m.params }

// Close implements embedding.Generator.
func (m *FrameModel) Close() error { return m.backend.Close() }
