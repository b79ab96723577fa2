// Package embedding defines the embedding values produced by encoders and the
// contract shared between encoders and stores.
package embedding

import "fmt"

// Vector is a single embedding vector.
type Vector []float32

// Clone returns a copy of the vector.
func (v Vector) Clone() Vector {
	c := make(Vector, len(v))
	copy(c, v)
	return c
}

// Float64 returns the vector widened to float64.
func (v Vector) Float64() []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// Embedding is either one vector for a whole clip or an ordered list holding
// one vector per frame.
type Embedding struct {
	vectors []Vector
	list    bool
}

// NewSingle creates a single-vector embedding.
func NewSingle(v Vector) Embedding {
	return Embedding{vectors: []Vector{v}}
}

// NewList creates a per-frame list embedding.
func NewList(vectors []Vector) Embedding {
	vs := make([]Vector, len(vectors))
	copy(vs, vectors)
	return Embedding{vectors: vs, list: true}
}

// IsList reports whether the embedding holds one vector per frame.
func (e Embedding) IsList() bool { return e.list }

// Vectors returns the vectors in order. A single embedding has exactly one.
func (e Embedding) Vectors() []Vector { return e.vectors }

// Single returns the clip vector of a single embedding, or the first vector
// of a list.
func (e Embedding) Single() Vector {
	if len(e.vectors) == 0 {
		return nil
	}
	return e.vectors[0]
}

// Len returns the number of vectors.
func (e Embedding) Len() int { return len(e.vectors) }

// Dim returns the width of the vectors, or 0 for an empty embedding.
func (e Embedding) Dim() int {
	if len(e.vectors) == 0 {
		return 0
	}
	return len(e.vectors[0])
}

// Mean reduces vectors to their arithmetic mean over the first axis.
// Accumulation happens in float64.
func Mean(vectors []Vector) (Vector, error) {
	if len(vectors) == 0 {
		return nil, ErrEmptyClip
	}
	dim := len(vectors[0])
	sum := make([]float64, dim)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has width %d, expected %d", ErrDimensionMismatch, i, len(v), dim)
		}
		for j, x := range v {
			sum[j] += float64(x)
		}
	}
	mean := make(Vector, dim)
	n := float64(len(vectors))
	for j, s := range sum {
		mean[j] = float32(s / n)
	}
	return mean, nil
}
