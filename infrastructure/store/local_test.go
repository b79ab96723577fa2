package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/vidembed/domain/embedding"
	domainstore "github.com/helixml/vidembed/domain/store"
)

func listFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func openLocal(t *testing.T, params embedding.EncoderParams) *Local {
	t.Helper()
	l, err := NewLocal(filepath.Join(t.TempDir(), "out"), params, nil)
	require.NoError(t, err)
	require.NoError(t, l.Open(context.Background()))
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestLocal_RoundTrip(t *testing.T) {
	l := openLocal(t, embedding.NewEncoderParams("random", 3, false))
	v := embedding.Vector{0.1, -2.5, 3.0000001}
	md := embedding.Metadata{Video: "Abuse001_x264.mp4", StartFrame: 30, EndFrame: 90}

	require.NoError(t, l.Upload(context.Background(), 7, embedding.NewSingle(v), md))

	path := filepath.Join(l.Dir(), "000007_Abuse001_x264.mp4_30-90.npy")
	got, err := ReadNPY(path)
	require.NoError(t, err)
	assert.Equal(t, v, got)
}

func TestLocal_Idempotent(t *testing.T) {
	l := openLocal(t, embedding.NewEncoderParams("default", 4, false))
	md := embedding.Metadata{Video: "v", StartFrame: 0, EndFrame: 10}
	emb := embedding.NewSingle(embedding.Vector{1, 2, 3, 4})

	require.NoError(t, l.Upload(context.Background(), 0, emb, md))
	require.NoError(t, l.Upload(context.Background(), 0, emb, md))

	assert.Equal(t, []string{"000000_v_0-10.npy"}, listFiles(t, l.Dir()))
}

func TestLocal_ListWritesOneFilePerFrame(t *testing.T) {
	l := openLocal(t, embedding.NewEncoderParams("clip", 2, true))
	emb := embedding.NewList([]embedding.Vector{{1, 0}, {0, 1}, {1, 1}})

	require.NoError(t, l.Upload(context.Background(), 3, emb, embedding.Metadata{Video: "v", StartFrame: 5, EndFrame: 8}))

	assert.Equal(t, []string{
		"000003-0_v_5-8.npy",
		"000003-1_v_5-8.npy",
		"000003-2_v_5-8.npy",
	}, listFiles(t, l.Dir()))

	n, err := l.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestLocal_RejectsWrongShape(t *testing.T) {
	l := openLocal(t, embedding.NewEncoderParams("default", 4, false))
	err := l.Upload(context.Background(), 0, embedding.NewSingle(embedding.Vector{1}), embedding.Metadata{Video: "v"})
	require.ErrorIs(t, err, embedding.ErrDimensionMismatch)
}

func TestLocal_UploadBeforeOpen(t *testing.T) {
	l, err := NewLocal(t.TempDir(), embedding.NewEncoderParams("default", 4, false), nil)
	require.NoError(t, err)
	err = l.Upload(context.Background(), 0, embedding.NewSingle(embedding.Vector{1, 2, 3, 4}), embedding.Metadata{})
	require.ErrorIs(t, err, domainstore.ErrNotOpen)
}

func TestLocal_Search(t *testing.T) {
	l := openLocal(t, embedding.NewEncoderParams("random", 2, false))
	ctx := context.Background()
	require.NoError(t, l.Upload(ctx, 0, embedding.NewSingle(embedding.Vector{1, 0}), embedding.Metadata{Video: "east_side", StartFrame: 0, EndFrame: 10}))
	require.NoError(t, l.Upload(ctx, 1, embedding.NewSingle(embedding.Vector{0, 1}), embedding.Metadata{Video: "north", StartFrame: 10, EndFrame: 20}))

	results, err := l.Search(ctx, embedding.Vector{0.1, 0.9}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].ID())
	assert.Equal(t, "north", results[0].Video())
	assert.Equal(t, 10, results[0].Metadata()[embedding.KeyStartFrame])
}

func TestLocal_SearchRejectsWrongWidth(t *testing.T) {
	l := openLocal(t, embedding.NewEncoderParams("random", 2, false))
	ctx := context.Background()
	require.NoError(t, l.Upload(ctx, 0, embedding.NewSingle(embedding.Vector{1, 0}), embedding.Metadata{Video: "east_side", EndFrame: 10}))

	_, err := l.Search(ctx, embedding.Vector{1, 0, 0}, 1)
	require.ErrorIs(t, err, embedding.ErrDimensionMismatch)
}

func TestWriteNPYMatrix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.npy")
	require.NoError(t, WriteNPYMatrix(path, []embedding.Vector{{1, 2}, {3, 4}}))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	require.ErrorIs(t, WriteNPYMatrix(path, []embedding.Vector{{1, 2}, {3}}), embedding.ErrDimensionMismatch)
}
