package store

import (
	"context"
	"sync"

	"github.com/helixml/vidembed/domain/embedding"
	domainstore "github.com/helixml/vidembed/domain/store"
)

// fakeBackend is an in-memory vector database shared by the Milvus and Qdrant
// fakes. Rows are keyed by id; autoID rows get fresh ids.
type fakeBackend struct {
	mu          sync.Mutex
	collections map[string]*fakeCollection
	nextAuto    int64
	closed      int
	upserts     [][]Row
	flushed     int
}

type fakeCollection struct {
	dim    int
	autoID bool
	rows   map[int64]Row
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{collections: map[string]*fakeCollection{}, nextAuto: 1 << 40}
}

func (f *fakeBackend) seed(name string, dim int, rows ...Row) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &fakeCollection{dim: dim, rows: map[int64]Row{}}
	for _, r := range rows {
		c.rows[r.ID] = r
	}
	f.collections[name] = c
}

func (f *fakeBackend) rowCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.collections[name]
	if !ok {
		return -1
	}
	return len(c.rows)
}

func (f *fakeBackend) exists(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.collections[name]
	return ok
}

func (f *fakeBackend) drop(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.collections, name)
}

func (f *fakeBackend) create(name string, dim int, autoID bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collections[name] = &fakeCollection{dim: dim, autoID: autoID, rows: map[int64]Row{}}
}

func (f *fakeBackend) write(name string, autoID bool, rows []Row) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, rows)
	c := f.collections[name]
	for _, r := range rows {
		if autoID {
			r.ID = f.nextAuto
			f.nextAuto++
		}
		c.rows[r.ID] = r
	}
}

func (f *fakeBackend) search(name string, query embedding.Vector, topK int) []domainstore.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	var vectors []storedVector
	for _, r := range f.collections[name].rows {
		vectors = append(vectors, storedVector{vector: r.Vector, id: r.ID, meta: r.Metadata.Map()})
	}
	return topKSimilar(query, vectors, topK)
}

type fakeMilvus struct{ b *fakeBackend }

func (m fakeMilvus) HasCollection(_ context.Context, name string) (bool, error) {
	return m.b.exists(name), nil
}
func (m fakeMilvus) DropCollection(_ context.Context, name string) error { m.b.drop(name); return nil }
func (m fakeMilvus) CreateCollection(_ context.Context, spec CollectionSpec) error {
	m.b.create(spec.Name, spec.Dim, spec.AutoID)
	return nil
}
func (m fakeMilvus) Insert(_ context.Context, name string, autoID bool, rows []Row) error {
	m.b.write(name, autoID, rows)
	return nil
}
func (m fakeMilvus) Flush(context.Context, string) error {
	m.b.mu.Lock()
	m.b.flushed++
	m.b.mu.Unlock()
	return nil
}
func (m fakeMilvus) Search(_ context.Context, name string, q embedding.Vector, _ embedding.Metric, k int) ([]domainstore.Result, error) {
	return m.b.search(name, q, k), nil
}
func (m fakeMilvus) Count(_ context.Context, name string) (int, error) { return m.b.rowCount(name), nil }
func (m fakeMilvus) Close() error {
	m.b.mu.Lock()
	m.b.closed++
	m.b.mu.Unlock()
	return nil
}

type fakeQdrant struct{ b *fakeBackend }

func (q fakeQdrant) CollectionExists(_ context.Context, name string) (bool, error) {
	return q.b.exists(name), nil
}
func (q fakeQdrant) DeleteCollection(_ context.Context, name string) error { q.b.drop(name); return nil }
func (q fakeQdrant) CreateCollection(_ context.Context, name string, dim int, _ embedding.Metric) error {
	q.b.create(name, dim, false)
	return nil
}
func (q fakeQdrant) Upsert(_ context.Context, name string, points []Row) error {
	q.b.write(name, false, points)
	return nil
}
func (q fakeQdrant) Query(_ context.Context, name string, v embedding.Vector, k int) ([]domainstore.Result, error) {
	return q.b.search(name, v, k), nil
}
func (q fakeQdrant) Count(_ context.Context, name string) (int, error) { return q.b.rowCount(name), nil }
func (q fakeQdrant) Close() error {
	q.b.mu.Lock()
	q.b.closed++
	q.b.mu.Unlock()
	return nil
}

func milvusDialer(b *fakeBackend) MilvusDialer {
	return func(context.Context, MilvusConfig) (MilvusClient, error) { return fakeMilvus{b: b}, nil }
}

func qdrantDialer(b *fakeBackend) QdrantDialer {
	return func(context.Context, QdrantConfig) (QdrantClient, error) { return fakeQdrant{b: b}, nil }
}
