package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/vidembed/domain/embedding"
	domainstore "github.com/helixml/vidembed/domain/store"
)

func fiveFrameList() embedding.Embedding {
	return embedding.NewList([]embedding.Vector{{1, 0}, {0, 1}, {1, 1}, {2, 1}, {1, 2}})
}

func TestMilvus_CreatesCollection(t *testing.T) {
	b := newFakeBackend()
	m, err := NewMilvus(MilvusConfig{Address: "localhost:19530"}, embedding.NewEncoderParams("clip", 2, true), true, milvusDialer(b), nil)
	require.NoError(t, err)
	require.NoError(t, m.Open(context.Background()))
	defer func() { require.NoError(t, m.Close()) }()

	assert.Equal(t, "ucfclip", m.Collection())
	assert.True(t, b.exists("ucfclip"))
	assert.True(t, b.collections["ucfclip"].autoID)
}

func TestMilvus_RewriteSemantics(t *testing.T) {
	params := embedding.NewEncoderParams("default", 2, false)
	prior := Row{ID: 99, Vector: embedding.Vector{1, 1}}

	t.Run("rewrite discards prior contents", func(t *testing.T) {
		b := newFakeBackend()
		b.seed("ucfdefault", 2, prior)
		m, err := NewMilvus(MilvusConfig{Address: "x"}, params, true, milvusDialer(b), nil)
		require.NoError(t, err)
		require.NoError(t, domainstore.Use(context.Background(), m, func(domainstore.Handler) error {
			n, err := m.Count(context.Background())
			assert.Equal(t, 0, n)
			return err
		}))
	})

	t.Run("no rewrite preserves prior contents", func(t *testing.T) {
		b := newFakeBackend()
		b.seed("ucfdefault", 2, prior)
		m, err := NewMilvus(MilvusConfig{Address: "x"}, params, false, milvusDialer(b), nil)
		require.NoError(t, err)
		require.NoError(t, domainstore.Use(context.Background(), m, func(domainstore.Handler) error {
			n, err := m.Count(context.Background())
			assert.Equal(t, 1, n)
			return err
		}))
	})
}

func TestMilvus_UploadRows(t *testing.T) {
	ctx := context.Background()
	md := embedding.Metadata{Video: "v", StartFrame: 0, EndFrame: 5}

	t.Run("list inserts one auto-keyed row per vector", func(t *testing.T) {
		b := newFakeBackend()
		m, err := NewMilvus(MilvusConfig{Address: "x"}, embedding.NewEncoderParams("clip", 2, true), true, milvusDialer(b), nil)
		require.NoError(t, err)
		require.NoError(t, m.Open(ctx))
		require.NoError(t, m.Upload(ctx, 0, fiveFrameList(), md))
		require.NoError(t, m.Close())
		assert.Equal(t, 5, b.rowCount("ucfclip"))
		assert.Equal(t, 1, b.flushed)
	})

	t.Run("single inserts one row keyed by id", func(t *testing.T) {
		b := newFakeBackend()
		m, err := NewMilvus(MilvusConfig{Address: "x"}, embedding.NewEncoderParams("default", 2, false), true, milvusDialer(b), nil)
		require.NoError(t, err)
		require.NoError(t, m.Open(ctx))
		require.NoError(t, m.Upload(ctx, 42, embedding.NewSingle(embedding.Vector{1, 2}), md))
		_, ok := b.collections["ucfdefault"].rows[42]
		assert.True(t, ok)
		require.NoError(t, m.Close())
	})
}

func TestMilvus_CloseIsIdempotent(t *testing.T) {
	b := newFakeBackend()
	m, err := NewMilvus(MilvusConfig{Address: "x"}, embedding.NewEncoderParams("default", 2, false), false, milvusDialer(b), nil)
	require.NoError(t, err)
	require.NoError(t, m.Close())
	require.NoError(t, m.Open(context.Background()))
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.Equal(t, 1, b.closed)

	err = m.Upload(context.Background(), 0, embedding.NewSingle(embedding.Vector{1, 2}), embedding.Metadata{})
	require.ErrorIs(t, err, domainstore.ErrNotOpen)
}

func TestMilvus_DialFailureUnavailable(t *testing.T) {
	dial := func(context.Context, MilvusConfig) (MilvusClient, error) { return nil, errors.New("connection refused") }
	m, err := NewMilvus(MilvusConfig{Address: "x"}, embedding.NewEncoderParams("default", 2, false), false, dial, nil)
	require.NoError(t, err)
	require.ErrorIs(t, m.Open(context.Background()), embedding.ErrUnavailable)
}

func TestQdrant_ListSharesClipID(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	q, err := NewQdrant(QdrantConfig{Host: "localhost"}, embedding.NewEncoderParams("clip", 2, true), true, qdrantDialer(b), nil)
	require.NoError(t, err)
	require.NoError(t, q.Open(ctx))
	defer func() { require.NoError(t, q.Close()) }()

	require.NoError(t, q.Upload(ctx, 7, fiveFrameList(), embedding.Metadata{Video: "v", StartFrame: 0, EndFrame: 5}))

	require.Len(t, b.upserts, 1)
	require.Len(t, b.upserts[0], 5)
	for _, p := range b.upserts[0] {
		assert.Equal(t, int64(7), p.ID)
	}

	// Points sharing an id overwrite one another: only the last frame remains.
	n, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, embedding.Vector{1, 2}, b.collections["ucfclip"].rows[7].Vector)
}

func TestQdrant_RewriteSemantics(t *testing.T) {
	params := embedding.NewEncoderParams("random", 2, false)
	for _, tc := range []struct {
		rewrite bool
		want    int
	}{{rewrite: true, want: 0}, {rewrite: false, want: 1}} {
		b := newFakeBackend()
		b.seed("ucfrandom", 2, Row{ID: 1, Vector: embedding.Vector{0, 1}})
		q, err := NewQdrant(QdrantConfig{Host: "h"}, params, tc.rewrite, qdrantDialer(b), nil)
		require.NoError(t, err)
		require.NoError(t, q.Open(context.Background()))
		n, err := q.Count(context.Background())
		require.NoError(t, err)
		assert.Equal(t, tc.want, n, "rewrite=%t", tc.rewrite)
		require.NoError(t, q.Close())
	}
}

func TestQdrant_Search(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	q, err := NewQdrant(QdrantConfig{Host: "h"}, embedding.NewEncoderParams("random", 2, false), true, qdrantDialer(b), nil)
	require.NoError(t, err)
	require.NoError(t, q.Open(ctx))
	defer func() { _ = q.Close() }()

	require.NoError(t, q.Upload(ctx, 0, embedding.NewSingle(embedding.Vector{1, 0}), embedding.Metadata{Video: "a"}))
	require.NoError(t, q.Upload(ctx, 1, embedding.NewSingle(embedding.Vector{0, 1}), embedding.Metadata{Video: "b"}))

	results, err := q.Search(ctx, embedding.Vector{1, 0.1}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Video())

	_, err = q.Search(ctx, embedding.Vector{1}, 2)
	require.ErrorIs(t, err, embedding.ErrDimensionMismatch)
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"local", "milvus", "qdrant"}, Names())

	_, err := Build("faiss", embedding.NewEncoderParams("default", 4, false), Options{})
	require.ErrorIs(t, err, embedding.ErrConfiguration)
	assert.Contains(t, err.Error(), "[local milvus qdrant]")
	require.ErrorIs(t, Validate("faiss"), embedding.ErrConfiguration)

	b := newFakeBackend()
	opts := Options{
		Dir:          t.TempDir(),
		Milvus:       MilvusConfig{Address: "localhost:19530"},
		Qdrant:       QdrantConfig{Host: "localhost"},
		MilvusDialer: milvusDialer(b),
		QdrantDialer: qdrantDialer(b),
	}
	for _, name := range Names() {
		h, err := Build(name, embedding.NewEncoderParams("default", 4, false), opts)
		require.NoError(t, err, name)
		require.NoError(t, domainstore.Use(context.Background(), h, func(h domainstore.Handler) error {
			return h.Upload(context.Background(), 0, embedding.NewSingle(embedding.Vector{1, 2, 3, 4}), embedding.Metadata{Video: "v", EndFrame: 1})
		}), name)
	}
}

func TestRegistry_BuildHasNoSideEffects(t *testing.T) {
	dialed := false
	dial := func(context.Context, MilvusConfig) (MilvusClient, error) {
		dialed = true
		return nil, errors.New("unexpected")
	}
	_, err := Build(NameMilvus, embedding.NewEncoderParams("default", 4, false), Options{Milvus: MilvusConfig{Address: "x"}, MilvusDialer: dial})
	require.NoError(t, err)
	assert.False(t, dialed)
}

func TestCheck(t *testing.T) {
	tests := map[string]struct {
		name string
		opts Options
		ok   bool
	}{
		"local":          {name: NameLocal, opts: Options{Dir: "out"}, ok: true},
		"local no dir":   {name: NameLocal},
		"milvus":         {name: NameMilvus, opts: Options{Milvus: MilvusConfig{Address: "localhost:19530"}}, ok: true},
		"milvus no addr": {name: NameMilvus},
		"qdrant":         {name: NameQdrant, opts: Options{Qdrant: QdrantConfig{Host: "localhost"}}, ok: true},
		"qdrant no host": {name: NameQdrant},
		"unknown":        {name: "faiss"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := Check(tt.name, tt.opts)
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, embedding.ErrConfiguration)
		})
	}
}
