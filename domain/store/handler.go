// Package store defines the contract for persisting clip embeddings.
package store

import (
	"context"
	"errors"

	"github.com/helixml/vidembed/domain/embedding"
)

// Store errors.
var (
	ErrNotOpen = errors.New("store is not open")
	ErrClosed  = errors.New("store is closed")
)

// Handler persists embeddings with their metadata.
//
// Open connects and provisions, Upload persists one clip, Close releases.
// Close is safe to call more than once and on a handler that was never opened.
type Handler interface {
	Open(ctx context.Context) error
	Upload(ctx context.Context, id int64, emb embedding.Embedding, md embedding.Metadata) error
	Close() error
}

// Searcher is implemented by handlers that support nearest-neighbour lookup.
type Searcher interface {
	Search(ctx context.Context, query embedding.Vector, topK int) ([]Result, error)
}

// Lister is implemented by handlers that can enumerate what they hold.
type Lister interface {
	Count(ctx context.Context) (int, error)
}

// Use opens h, runs fn and always closes h afterwards. The close error is
// joined with any error returned by fn.
func Use(ctx context.Context, h Handler, fn func(Handler) error) (err error) {
	defer func() {
		err = errors.Join(err, h.Close())
	}()
	if err := h.Open(ctx); err != nil {
		return err
	}
	return fn(h)
}
