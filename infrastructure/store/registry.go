// Package store provides the store handlers and the registry that resolves
// store identifiers to them.
package store

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/helixml/vidembed/domain/embedding"
	domainstore "github.com/helixml/vidembed/domain/store"
)

// Store identifiers.
const (
	NameLocal  = "local"
	NameMilvus = "milvus"
	NameQdrant = "qdrant"
)

// Options carries everything a store constructor may need.
type Options struct {
	// Dir is the local store's output directory.
	Dir string

	// Rewrite drops and recreates an existing collection.
	Rewrite bool

	Milvus MilvusConfig
	Qdrant QdrantConfig

	// Dialers default to the official SDKs.
	MilvusDialer MilvusDialer
	QdrantDialer QdrantDialer

	Logger *slog.Logger
}

// Constructor builds a handler. Constructors must not perform I/O.
type Constructor func(params embedding.EncoderParams, opts Options) (domainstore.Handler, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{}
	order      []string
)

func init() {
	Register(NameLocal, func(params embedding.EncoderParams, opts Options) (domainstore.Handler, error) {
		return NewLocal(opts.Dir, params, opts.Logger)
	})
	Register(NameMilvus, func(params embedding.EncoderParams, opts Options) (domainstore.Handler, error) {
		return NewMilvus(opts.Milvus, params, opts.Rewrite, opts.MilvusDialer, opts.Logger)
	})
	Register(NameQdrant, func(params embedding.EncoderParams, opts Options) (domainstore.Handler, error) {
		return NewQdrant(opts.Qdrant, params, opts.Rewrite, opts.QdrantDialer, opts.Logger)
	})
}

// Register adds a store under name.
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
		return embedding.Configurationf("unknown store %q: valid stores are %v", name, Names())
	}
	return nil
}

// Check validates the settings name needs without building a handler, so a
// bad store configuration is reported before any model is loaded.
func Check(name string, opts Options) error {
	if err := Validate(name); err != nil {
		return err
	}
	switch name {
	case NameLocal:
		if opts.Dir == "" {
			return embedding.Configurationf("local store: directory is required")
		}
	case NameMilvus:
		return opts.Milvus.Validate()
	case NameQdrant:
		return opts.Qdrant.Validate()
	}
	return nil
}

// Build resolves name and constructs its handler for params.
func Build(name string, params embedding.EncoderParams, opts Options) (domainstore.Handler, error) {
	registryMu.RLock()
	c, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, embedding.Configurationf("unknown store %q: valid stores are %v", name, Names())
	}
	h, err := c(params, opts)
	if err != nil {
		return nil, fmt.Errorf("build store %s: %w", name, err)
	}
	return h, nil
}
