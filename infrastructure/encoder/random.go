package encoder

import (
	"context"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/helixml/vidembed/domain/embedding"
	"github.com/helixml/vidembed/domain/video"
)

// DefaultRandomShape is the shape of the random encoder when none is configured.
const DefaultRandomShape = "768"

// Random returns a freshly sampled uniform [0,1) vector on every call.
type Random struct {
	params embedding.EncoderParams
}

// NewRandom creates a Random encoder for shape, a comma separated list of
// dimensions such as "768" or "(768,)".
func NewRandom(shape string) (*Random, error) {
	dims, err := ParseShape(shape)
	if err != nil {
		return nil, err
	}
	if len(dims) != 1 {
		return nil, embedding.Configurationf("random encoder supports rank-1 shapes only, got %v", dims)
	}
	return &Random{
		params: embedding.NewEncoderParams(NameRandom, dims[0], false),
	}, nil
}

// ParseShape parses a shape such as "768", "768,", "(768,)" or "16,48".
// Every dimension must be a positive integer.
func ParseShape(shape string) ([]int, error) {
	s := strings.TrimSpace(shape)
	if s == "" {
		s = DefaultRandomShape
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")

	var dims []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, embedding.Configurationf("embedding size %q: dimension %q is not an integer", shape, part)
		}
		if n <= 0 {
			return nil, embedding.Configurationf("embedding size %q: dimension %d must be positive", shape, n)
		}
		dims = append(dims, n)
	}
	if len(dims) == 0 {
		return nil, embedding.Configurationf("embedding size %q has no dimensions", shape)
	}
	return dims, nil
}

// Embed implements embedding.Generator.
func (r *Random) Embed(_ context.Context, _ []video.Frame) (embedding.Embedding, error) {
	v := make(embedding.Vector, r.params.Dim())
	for i := range v {
		v[i] = rand.Float32()
	}
	return embedding.NewSingle(v), nil
}

// Params implements embedding.Generator.
func (r *Random) Params() embedding.EncoderParams { return r.params }

// Close implements embedding.Generator.
func (r *Random) Close() error { return nil }
