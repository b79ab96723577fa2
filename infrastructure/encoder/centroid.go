package encoder

import (
	"context"
	"fmt"

	"github.com/helixml/vidembed/domain/embedding"
	"github.com/helixml/vidembed/domain/video"
)

// Centroid reduces a list generator's output to its mean over the frame axis.
type Centroid struct {
	inner  embedding.Generator
	params embedding.EncoderParams
}

// NewCentroid wraps inner, which must produce list embeddings. The wrapper
// reports itself under name.
func NewCentroid(name string, inner embedding.Generator) (*Centroid, error) {
	if inner == nil {
		return nil, embedding.Configurationf("%s: inner generator is required", name)
	}
	p := inner.Params()
	if !p.List {
		return nil, embedding.Configurationf("%s: inner generator %s does not produce a list", name, p.ModelName)
	}
	params := embedding.EncoderParams{
		ModelName: name,
		Shape:     append([]int(nil), p.Shape...),
		List:      false,
		Metric:    p.Metric,
	}
	return &Centroid{inner: inner, params: params}, nil
}

// Embed implements embedding.Generator.
func (c *Centroid) Embed(ctx context.Context, frames []video.Frame) (embedding.Embedding, error) {
	list, err := c.inner.Embed(ctx, frames)
	if err != nil {
		return embedding.Embedding{}, err
	}
	mean, err := embedding.Mean(list.Vectors())
	if err != nil {
		return embedding.Embedding{}, fmt.Errorf("%s: %w", c.params.ModelName, err)
	}
	return embedding.NewSingle(mean), nil
}

// Params implements embedding.Generator.
func (c *Centroid) Params() embedding.EncoderParams { return c.params }

// Close implements embedding.Generator.
func (c *Centroid) Close() error { return c.inner.Close() }
