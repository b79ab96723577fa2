package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/vidembed/domain/embedding"
)

func TestHugotTextEncoder_RequiresModelDir(t *testing.T) {
	_, err := NewHugotTextEncoder("")
	require.ErrorIs(t, err, embedding.ErrConfiguration)
}

func TestHugotTextEncoder_ModelPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "no-tokenizer"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stray.txt"), []byte("x"), 0o644))

	h, err := NewHugotTextEncoder(dir)
	require.NoError(t, err)
	assert.False(t, h.Available())

	modelDir := filepath.Join(dir, "all-MiniLM-L6-v2")
	require.NoError(t, os.MkdirAll(modelDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(modelDir, "tokenizer.json"), []byte("{}"), 0o644))

	assert.True(t, h.Available())
	path, err := h.modelPath()
	require.NoError(t, err)
	assert.Equal(t, modelDir, path)
}

func TestHugotTextEncoder_ModelAtRoot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tokenizer.json"), []byte("{}"), 0o644))

	h, err := NewHugotTextEncoder(dir)
	require.NoError(t, err)
	path, err := h.modelPath()
	require.NoError(t, err)
	assert.Equal(t, dir, path)
}

func TestHugotTextEncoder_EmbedEmpty(t *testing.T) {
	h, err := NewHugotTextEncoder(t.TempDir())
	require.NoError(t, err)
	vectors, err := h.EmbedTexts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	require.NoError(t, h.Close())
}

func TestHugotTextEncoder_MissingModelUnavailable(t *testing.T) {
	h, err := NewHugotTextEncoder(t.TempDir())
	require.NoError(t, err)
	_, err = h.EmbedTexts(context.Background(), []string{"query"})
	require.ErrorIs(t, err, embedding.ErrUnavailable)
}
