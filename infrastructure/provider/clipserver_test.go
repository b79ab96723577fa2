package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/vidembed/domain/embedding"
)

func fakeCLIPServer(t *testing.T, dim int, loads *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /load", func(w http.ResponseWriter, r *http.Request) {
		loads.Add(1)
		var req LoadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Architecture == "" {
			http.Error(w, "architecture required", http.StatusBadRequest)
			return
		}
		if req.Architecture == "missing" {
			http.Error(w, "weights not found", http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"dimension": dim})
	})
	mux.HandleFunc("POST /encode-base64", func(w http.ResponseWriter, r *http.Request) {
		var req encodeImageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.File == "" {
			http.Error(w, "file required", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(encodeResponse{Embedding: make([]float32, dim)})
	})
	mux.HandleFunc("POST /encode-text", func(w http.ResponseWriter, r *http.Request) {
		var req encodeTextRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		v := make([]float32, dim)
		v[0] = float32(len(req.Text))
		_ = json.NewEncoder(w).Encode(encodeResponse{Embedding: v})
	})
	return httptest.NewServer(mux)
}

func TestCLIPServer_LoadAndEmbed(t *testing.T) {
	var loads atomic.Int32
	srv := fakeCLIPServer(t, 512, &loads)
	defer srv.Close()

	c, err := NewCLIPFrameEmbedder(context.Background(), Config{BaseURL: srv.URL + "/"},
		LoadRequest{Architecture: "ViT-B/32", Checkpoint: "/ckpt/vclip.pth", Device: "cpu"}, 512, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), loads.Load())
	assert.Equal(t, 1, c.Capacity())

	vectors, err := c.EmbedFrames(context.Background(), testFrames(t, 2))
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Len(t, vectors[0], 512)

	texts, err := c.EmbedTexts(context.Background(), []string{"a man fights"})
	require.NoError(t, err)
	assert.Equal(t, float32(len("a man fights")), texts[0][0])
}

func TestCLIPServer_LoadFailureSurfacesCause(t *testing.T) {
	var loads atomic.Int32
	srv := fakeCLIPServer(t, 512, &loads)
	defer srv.Close()

	_, err := NewCLIPFrameEmbedder(context.Background(), Config{BaseURL: srv.URL, InitialDelay: time.Millisecond},
		LoadRequest{Architecture: "missing"}, 512, nil)
	var pErr *ProviderError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, http.StatusNotFound, pErr.StatusCode())
	assert.Contains(t, err.Error(), "weights not found")
}

func TestCLIPServer_LoadDimensionMismatch(t *testing.T) {
	var loads atomic.Int32
	srv := fakeCLIPServer(t, 768, &loads)
	defer srv.Close()

	_, err := NewCLIPFrameEmbedder(context.Background(), Config{BaseURL: srv.URL},
		LoadRequest{Architecture: "ViT-B/32"}, 512, nil)
	require.ErrorIs(t, err, embedding.ErrDimensionMismatch)
}

func TestCLIPServer_RequiresBaseURL(t *testing.T) {
	_, err := NewCLIPServer(Config{}, nil)
	require.ErrorIs(t, err, embedding.ErrConfiguration)
}

func TestCLIPServer_LoadNotServedFromCache(t *testing.T) {
	var loads atomic.Int32
	srv := fakeCLIPServer(t, 512, &loads)
	cfg := Config{BaseURL: srv.URL, CacheDir: t.TempDir(), MaxRetries: 1, InitialDelay: time.Millisecond}
	load := LoadRequest{Architecture: "ViT-B/32"}

	c, err := NewCLIPFrameEmbedder(context.Background(), cfg, load, 512, nil)
	require.NoError(t, err)
	_, err = c.EmbedTexts(context.Background(), []string{"a man fights"})
	require.NoError(t, err)
	srv.Close()

	_, err = NewCLIPFrameEmbedder(context.Background(), cfg, load, 512, nil)
	var pErr *ProviderError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, "load", pErr.Operation())
	assert.Equal(t, int32(1), loads.Load())

	c, err = NewCLIPServer(cfg, nil)
	require.NoError(t, err)
	texts, err := c.EmbedTexts(context.Background(), []string{"a man fights"})
	require.NoError(t, err, "embeddings are still served from the cache")
	assert.Len(t, texts[0], 512)
}
