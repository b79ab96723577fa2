package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/helixml/vidembed/domain/embedding"
	domainstore "github.com/helixml/vidembed/domain/store"
)

// DefaultQdrantPort is the Qdrant gRPC port.
const DefaultQdrantPort = 6334

// QdrantConfig holds connection parameters.
type QdrantConfig struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// Validate checks the settings needed to dial.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return embedding.Configurationf("qdrant: host is required")
	}
	return nil
}

// QdrantClient is the subset of the Qdrant API the store needs.
type QdrantClient interface {
	CollectionExists(ctx context.Context, name string) (bool, error)
	DeleteCollection(ctx context.Context, name string) error
	CreateCollection(ctx context.Context, name string, dim int, metric embedding.Metric) error
	// Upsert writes all points in one call and waits for them to be applied.
	Upsert(ctx context.Context, name string, points []Row) error
	Query(ctx context.Context, name string, query embedding.Vector, topK int) ([]domainstore.Result, error)
	Count(ctx context.Context, name string) (int, error)
	Close() error
}

// QdrantDialer connects to Qdrant.
type QdrantDialer func(ctx context.Context, cfg QdrantConfig) (QdrantClient, error)

// Qdrant stores embeddings as points in a Qdrant collection named after the model.
//
// Every point built from one clip carries the clip id, so a list embedding's
// per-frame points overwrite each other and only the last frame survives.
type Qdrant struct {
	cfg     QdrantConfig
	params  embedding.EncoderParams
	rewrite bool
	dial    QdrantDialer
	logger  *slog.Logger

	mu     sync.Mutex
	client QdrantClient
}

// NewQdrant creates a Qdrant store. No connection is made until Open.
func NewQdrant(cfg QdrantConfig, params embedding.EncoderParams, rewrite bool, dial QdrantDialer, logger *slog.Logger) (*Qdrant, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultQdrantPort
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if dial == nil {
		dial = DialQdrant
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Qdrant{cfg: cfg, params: params, rewrite: rewrite, dial: dial, logger: logger}, nil
}

// Collection returns the collection name.
func (q *Qdrant) Collection() string { return CollectionName(q.params.ModelName) }

// Open connects and provisions the collection.
func (q *Qdrant) Open(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.client != nil {
		return nil
	}

	client, err := q.dial(ctx, q.cfg)
	if err != nil {
		return embedding.Unavailable(fmt.Sprintf("qdrant at %s:%d", q.cfg.Host, q.cfg.Port), err)
	}
	if err := q.provision(ctx, client); err != nil {
		_ = client.Close()
		return err
	}
	q.client = client
	return nil
}

func (q *Qdrant) provision(ctx context.Context, client QdrantClient) error {
	name := q.Collection()
	exists, err := client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", name, err)
	}

	if exists && !q.rewrite {
		q.logger.Info("reusing collection", slog.String("collection", name))
		return nil
	}
	if exists {
		q.logger.Warn("rewrite enabled, dropping existing collection and all its embeddings",
			slog.String("collection", name),
			slog.String("model", q.params.ModelName),
		)
		if err := client.DeleteCollection(ctx, name); err != nil {
			return fmt.Errorf("delete collection %s: %w", name, err)
		}
	}

	if err := client.CreateCollection(ctx, name, q.params.Dim(), q.params.Metric); err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	q.logger.Info("created collection", slog.String("collection", name), slog.Int("dimension", q.params.Dim()))
	return nil
}

// Upload builds one point per vector, all with id, and upserts them together.
func (q *Qdrant) Upload(ctx context.Context, id int64, emb embedding.Embedding, md embedding.Metadata) error {
	client, err := q.connected()
	if err != nil {
		return err
	}
	if err := q.params.Check(emb); err != nil {
		return err
	}
	if id < 0 {
		return fmt.Errorf("qdrant point ids must be non-negative, got %d", id)
	}

	points := make([]Row, 0, emb.Len())
	for _, v := range emb.Vectors() {
		points = append(points, Row{ID: id, Vector: v, Metadata: md})
	}
	if err := client.Upsert(ctx, q.Collection(), points); err != nil {
		return fmt.Errorf("upsert clip %d: %w", id, err)
	}
	return nil
}

// Search queries the collection for the nearest points.
func (q *Qdrant) Search(ctx context.Context, query embedding.Vector, topK int) ([]domainstore.Result, error) {
	client, err := q.connected()
	if err != nil {
		return nil, err
	}
	if len(query) != q.params.Dim() {
		return nil, fmt.Errorf("%w: query width %d, collection width %d", embedding.ErrDimensionMismatch, len(query), q.params.Dim())
	}
	return client.Query(ctx, q.Collection(), query, topK)
}

// Count returns the number of points in the collection.
func (q *Qdrant) Count(ctx context.Context) (int, error) {
	client, err := q.connected()
	if err != nil {
		return 0, err
	}
	return client.Count(ctx, q.Collection())
}

// Close releases the connection.
func (q *Qdrant) Close() error {
	q.mu.Lock()
	client := q.client
	q.client = nil
	q.mu.Unlock()
	if client == nil {
		return nil
	}
	if err := client.Close(); err != nil {
		return fmt.Errorf("close qdrant: %w", err)
	}
	return nil
}

func (q *Qdrant) connected() (QdrantClient, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.client == nil {
		return nil, domainstore.ErrNotOpen
	}
	return q.client, nil
}

var (
	_ domainstore.Handler  = (*Qdrant)(nil)
	_ domainstore.Searcher = (*Qdrant)(nil)
	_ domainstore.Lister   = (*Qdrant)(nil)
)
