package provider

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"

	"github.com/helixml/vidembed/domain/embedding"
)

const hugotBatchMax = 10

// ortSingleton holds the process-wide hugot session and pipeline.
// ORT only allows one active session per process, so every HugotTextEncoder
// shares it. The mutex serializes initialization and inference.
var ortSingleton struct {
	session  *hugot.Session
	pipeline *pipelines.FeatureExtractionPipeline
	modelDir string
	mu       sync.Mutex
	ready    bool
}

// HugotTextEncoder embeds text queries with a local feature-extraction model.
// The model directory must contain tokenizer.json and an ONNX model, either
// directly or in one subdirectory.
type HugotTextEncoder struct {
	modelDir string
}

// NewHugotTextEncoder creates an encoder for the model in modelDir. The model
// is loaded on first use.
func NewHugotTextEncoder(modelDir string) (*HugotTextEncoder, error) {
	if modelDir == "" {
		return nil, embedding.Configurationf("hugot: model directory is required")
	}
	return &HugotTextEncoder{modelDir: modelDir}, nil
}

// Available reports whether a model exists on disk.
func (h *HugotTextEncoder) Available() bool {
	_, err := h.modelPath()
	return err == nil
}

// modelPath finds the directory holding tokenizer.json.
func (h *HugotTextEncoder) modelPath() (string, error) {
	if _, err := os.Stat(filepath.Join(h.modelDir, "tokenizer.json")); err == nil {
		return h.modelDir, nil
	}
	entries, err := os.ReadDir(h.modelDir)
	if err != nil {
		return "", fmt.Errorf("read model directory %s: %w", h.modelDir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		candidate := filepath.Join(h.modelDir, entry.Name())
		if _, statErr := os.Stat(filepath.Join(candidate, "tokenizer.json")); statErr == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no model with tokenizer.json found in %s", h.modelDir)
}

func (h *HugotTextEncoder) initialize() error {
	ortSingleton.mu.Lock()
	defer ortSingleton.mu.Unlock()

	if ortSingleton.ready {
		if ortSingleton.modelDir != h.modelDir {
			return fmt.Errorf("hugot session already serves %s", ortSingleton.modelDir)
		}
		return nil
	}

	modelPath, err := h.modelPath()
	if err != nil {
		return embedding.Unavailable("hugot model", err)
	}

	session, err := newHugotSession(modelPath)
	if err != nil {
		return fmt.Errorf("create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "query-embeddings",
		Options: []hugot.FeatureExtractionOption{
			pipelines.WithNormalization(),
		},
	}
	pipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		_ = session.Destroy()
		return fmt.Errorf("create feature extraction pipeline: %w", err)
	}

	ortSingleton.session = session
	ortSingleton.pipeline = pipeline
	ortSingleton.modelDir = h.modelDir
	ortSingleton.ready = true
	return nil
}

// EmbedTexts implements embedding.TextEncoder.
func (h *HugotTextEncoder) EmbedTexts(ctx context.Context, texts []string) ([]embedding.Vector, error) {
	if len(texts) == 0 {
		return []embedding.Vector{}, nil
	}
	if err := h.initialize(); err != nil {
		return nil, fmt.Errorf("initialize hugot: %w", err)
	}

	out := make([]embedding.Vector, 0, len(texts))
	for start := 0; start < len(texts); start += hugotBatchMax {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+hugotBatchMax, len(texts))

		ortSingleton.mu.Lock()
		result, err := ortSingleton.pipeline.RunPipeline(texts[start:end])
		ortSingleton.mu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("run embedding pipeline: %w", err)
		}
		for _, v := range result.Embeddings {
			out = append(out, embedding.Vector(v))
		}
	}
	return out, nil
}

// Close is a no-op. The session is process-global and released at exit.
func (h *HugotTextEncoder) Close() error { return nil }

var _ embedding.TextEncoder = (*HugotTextEncoder)(nil)
