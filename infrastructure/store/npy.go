package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"

	"github.com/helixml/vidembed/domain/embedding"
)

// WriteNPY writes a vector as a float32 .npy array, replacing any existing file.
func WriteNPY(path string, v embedding.Vector) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".npy-*")
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := npyio.Write(tmp, []float32(v)); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// WriteNPYMatrix writes vectors as one (n, dim) array. A single vector is
// written as a 1-D float32 array.
func WriteNPYMatrix(path string, vectors []embedding.Vector) error {
	switch len(vectors) {
	case 0:
		return fmt.Errorf("write %s: %w", path, embedding.ErrEmptyClip)
	case 1:
		return WriteNPY(path, vectors[0])
	}
	dim := len(vectors[0])
	data := make([]float64, 0, len(vectors)*dim)
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: row %d has width %d, expected %d", embedding.ErrDimensionMismatch, i, len(v), dim)
		}
		data = append(data, v.Float64()...)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := npyio.Write(f, mat.NewDense(len(vectors), dim, data)); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// ReadNPY reads a float32 vector written by WriteNPY.
func ReadNPY(path string) (embedding.Vector, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var v []float32
	if err := npyio.Read(f, &v); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return embedding.Vector(v), nil
}
