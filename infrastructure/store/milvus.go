package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/helixml/vidembed/domain/embedding"
	domainstore "github.com/helixml/vidembed/domain/store"
)

// Milvus field names.
const (
	milvusIDField     = "id"
	milvusVectorField = "vector"
)

// MilvusConfig holds connection parameters.
type MilvusConfig struct {
	Address  string
	Username string
	Password string
	Token    string
	DBName   string
}

// Validate checks the settings needed to dial.
func (c MilvusConfig) Validate() error {
	if c.Address == "" {
		return embedding.Configurationf("milvus: address is required")
	}
	return nil
}

// CollectionSpec describes a collection to provision.
type CollectionSpec struct {
	Name   string
	Dim    int
	AutoID bool
	Metric embedding.Metric
}

// Row is one record destined for a vector database.
type Row struct {
	ID       int64
	Vector   embedding.Vector
	Metadata embedding.Metadata
}

// MilvusClient is the subset of the Milvus API the store needs.
type MilvusClient interface {
	HasCollection(ctx context.Context, name string) (bool, error)
	DropCollection(ctx context.Context, name string) error
	// CreateCollection creates, indexes and loads a collection.
	CreateCollection(ctx context.Context, spec CollectionSpec) error
	// Insert writes rows. When autoID is set, row ids are ignored.
	Insert(ctx context.Context, name string, autoID bool, rows []Row) error
	Flush(ctx context.Context, name string) error
	Search(ctx context.Context, name string, query embedding.Vector, metric embedding.Metric, topK int) ([]domainstore.Result, error)
	Count(ctx context.Context, name string) (int, error)
	Close() error
}

// MilvusDialer connects to Milvus.
type MilvusDialer func(ctx context.Context, cfg MilvusConfig) (MilvusClient, error)

// Milvus stores embeddings in a Milvus collection named after the model.
type Milvus struct {
	cfg     MilvusConfig
	params  embedding.EncoderParams
	rewrite bool
	dial    MilvusDialer
	logger  *slog.Logger

	mu     sync.Mutex
	client MilvusClient
	dirty  bool
}

// NewMilvus creates a Milvus store. No connection is made until Open.
func NewMilvus(cfg MilvusConfig, params embedding.EncoderParams, rewrite bool, dial MilvusDialer, logger *slog.Logger) (*Milvus, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if dial == nil {
		dial = DialMilvus
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Milvus{cfg: cfg, params: params, rewrite: rewrite, dial: dial, logger: logger}, nil
}

// Collection returns the collection name.
func (m *Milvus) Collection() string { return CollectionName(m.params.ModelName) }

// Open connects and provisions the collection.
func (m *Milvus) Open(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		return nil
	}

	client, err := m.dial(ctx, m.cfg)
	if err != nil {
		return embedding.Unavailable("milvus at "+m.cfg.Address, err)
	}

	if err := m.provision(ctx, client); err != nil {
		_ = client.Close()
		return err
	}
	m.client = client
	return nil
}

func (m *Milvus) provision(ctx context.Context, client MilvusClient) error {
	name := m.Collection()
	exists, err := client.HasCollection(ctx, name)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", name, err)
	}

	if exists && !m.rewrite {
		m.logger.Info("reusing collection", slog.String("collection", name))
		return nil
	}
	if exists {
		m.logger.Warn("rewrite enabled, dropping existing collection and all its embeddings",
			slog.String("collection", name),
			slog.String("model", m.params.ModelName),
		)
		if err := client.DropCollection(ctx, name); err != nil {
			return fmt.Errorf("drop collection %s: %w", name, err)
		}
	}

	spec := CollectionSpec{
		Name:   name,
		Dim:    m.params.Dim(),
		AutoID: m.params.List,
		Metric: m.params.Metric,
	}
	if err := client.CreateCollection(ctx, spec); err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	m.logger.Info("created collection",
		slog.String("collection", name),
		slog.Int("dimension", spec.Dim),
		slog.Bool("auto_id", spec.AutoID),
	)
	return nil
}

// Upload inserts one row per vector for list embeddings, with auto-assigned
// keys, or a single row keyed by id.
func (m *Milvus) Upload(ctx context.Context, id int64, emb embedding.Embedding, md embedding.Metadata) error {
	client, err := m.connected()
	if err != nil {
		return err
	}
	if err := m.params.Check(emb); err != nil {
		return err
	}

	rows := make([]Row, 0, emb.Len())
	for _, v := range emb.Vectors() {
		rows = append(rows, Row{ID: id, Vector: v, Metadata: md})
	}
	if err := client.Insert(ctx, m.Collection(), m.params.List, rows); err != nil {
		return fmt.Errorf("insert clip %d: %w", id, err)
	}

	m.mu.Lock()
	m.dirty = true
	m.mu.Unlock()
	return nil
}

// Search runs an ANN query against the collection.
func (m *Milvus) Search(ctx context.Context, query embedding.Vector, topK int) ([]domainstore.Result, error) {
	client, err := m.connected()
	if err != nil {
		return nil, err
	}
	if len(query) != m.params.Dim() {
		return nil, fmt.Errorf("%w: query width %d, collection width %d", embedding.ErrDimensionMismatch, len(query), m.params.Dim())
	}
	return client.Search(ctx, m.Collection(), query, m.params.Metric, topK)
}

// Count flushes pending inserts and returns the row count.
func (m *Milvus) Count(ctx context.Context) (int, error) {
	client, err := m.connected()
	if err != nil {
		return 0, err
	}
	if err := m.flush(ctx, client); err != nil {
		return 0, err
	}
	return client.Count(ctx, m.Collection())
}

// Close flushes pending inserts and releases the connection.
func (m *Milvus) Close() error {
	m.mu.Lock()
	client := m.client
	m.client = nil
	m.mu.Unlock()
	if client == nil {
		return nil
	}

	flushErr := m.flush(context.Background(), client)
	if err := client.Close(); err != nil {
		return fmt.Errorf("close milvus: %w", err)
	}
	return flushErr
}

func (m *Milvus) flush(ctx context.Context, client MilvusClient) error {
	m.mu.Lock()
	dirty := m.dirty
	m.dirty = false
	m.mu.Unlock()
	if !dirty {
		return nil
	}
	if err := client.Flush(ctx, m.Collection()); err != nil {
		return fmt.Errorf("flush %s: %w", m.Collection(), err)
	}
	return nil
}

func (m *Milvus) connected() (MilvusClient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return nil, domainstore.ErrNotOpen
	}
	return m.client, nil
}

var (
	_ domainstore.Handler  = (*Milvus)(nil)
	_ domainstore.Searcher = (*Milvus)(nil)
	_ domainstore.Lister   = (*Milvus)(nil)
)
