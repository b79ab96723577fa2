// Package encoder provides the embedding generators and the registry that
// resolves encoder identifiers to them.
package encoder

import (
	"context"

	"github.com/helixml/vidembed/domain/embedding"
	"github.com/helixml/vidembed/domain/video"
)

// DefaultStubVector is returned by the stub encoder unless overridden.
var DefaultStubVector = embedding.Vector{1, 2, 3, 4}

// Stub ignores its input and always returns the same vector.
type Stub struct {
	vector embedding.Vector
	params embedding.EncoderParams
}

// NewStub creates a Stub returning v, or DefaultStubVector when v is empty.
func NewStub(v embedding.Vector) *Stub {
	if len(v) == 0 {
		v = DefaultStubVector
	}
	v = v.Clone()
	return &Stub{
		vector: v,
		params: embedding.NewEncoderParams(NameDefault, len(v), false),
	}
}

// Embed implements embedding.Generator.
func (s *Stub) Embed(_ context.Context, _ []video.Frame) (embedding.Embedding, error) {
	return embedding.NewSingle(s.vector.Clone()), nil
}

// Params implements embedding.Generator.
func (s *Stub) Params() embedding.EncoderParams { return s.params }

// Close implements embedding.Generator.
func (s *Stub) Close() error { return nil }
