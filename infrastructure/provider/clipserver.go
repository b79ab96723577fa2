package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/helixml/vidembed/domain/embedding"
	"github.com/helixml/vidembed/domain/video"
)

// CLIPServer talks to a CLIP model server over HTTP.
//
//	POST /load          {"architecture", "weights", "checkpoint", "device"}
//	POST /encode-base64 {"file": "<base64 jpeg>"} -> {"embedding": [...]}
//	POST /encode-text   {"text": "..."}           -> {"embedding": [...]}
type CLIPServer struct {
	baseURL string
	client  *http.Client
	retry   retrier
	logger  *slog.Logger
}

// LoadRequest asks the server to load a model.
type LoadRequest struct {
	Architecture string `json:"architecture"`
	Weights      string `json:"weights,omitempty"`
	Checkpoint   string `json:"checkpoint,omitempty"`
	Device       string `json:"device,omitempty"`
}

type encodeImageRequest struct {
	File string `json:"file"`
}

type encodeTextRequest struct {
	Text string `json:"text"`
}

type encodeResponse struct {
	Embedding []float32 `json:"embedding"`
}

type loadResponse struct {
	Dimension int    `json:"dimension"`
	Error     string `json:"error,omitempty"`
}

// NewCLIPServer creates a client for the server at cfg.BaseURL. No request is made.
func NewCLIPServer(cfg Config, logger *slog.Logger) (*CLIPServer, error) {
	cfg = cfg.WithDefaults()
	if cfg.BaseURL == "" {
		return nil, embedding.Configurationf("clip server: base URL is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := cfg.httpClient()
	if err != nil {
		return nil, err
	}
	return &CLIPServer{
		baseURL: cfg.BaseURL,
		client:  client,
		retry:   newRetrier(cfg),
		logger:  logger,
	}, nil
}

// Load asks the server to load a model and checks the width it reports.
// A server that does not report a width is trusted.
func (c *CLIPServer) Load(ctx context.Context, req LoadRequest, dim int) error {
	var resp loadResponse
	if err := c.post(withoutCache(ctx), "load", "/load", req, &resp); err != nil {
		return err
	}
	if resp.Error != "" {
		return NewProviderError("load", http.StatusOK, resp.Error, nil)
	}
	if resp.Dimension != 0 && resp.Dimension != dim {
		return fmt.Errorf("%w: server loaded %s with width %d, expected %d", embedding.ErrDimensionMismatch, req.Architecture, resp.Dimension, dim)
	}
	c.logger.Info("clip model loaded",
		slog.String("architecture", req.Architecture),
		slog.String("device", req.Device),
		slog.Int("dimension", dim),
	)
	return nil
}

// Capacity is 1: the server encodes one image per request.
func (c *CLIPServer) Capacity() int { return 1 }

// EmbedFrames embeds each frame with one request per frame.
func (c *CLIPServer) EmbedFrames(ctx context.Context, frames []video.Frame) ([]embedding.Vector, error) {
	out := make([]embedding.Vector, len(frames))
	for i, f := range frames {
		b64, err := frameBase64(f)
		if err != nil {
			return nil, err
		}
		var resp encodeResponse
		if err := c.post(ctx, "encode_image", "/encode-base64", encodeImageRequest{File: b64}, &resp); err != nil {
			return nil, err
		}
		out[i] = resp.Embedding
	}
	return out, nil
}

// EmbedTexts embeds text queries into the loaded model's space.
func (c *CLIPServer) EmbedTexts(ctx context.Context, texts []string) ([]embedding.Vector, error) {
	out := make([]embedding.Vector, len(texts))
	for i, text := range texts {
		var resp encodeResponse
		if err := c.post(ctx, "encode_text", "/encode-text", encodeTextRequest{Text: text}, &resp); err != nil {
			return nil, err
		}
		out[i] = resp.Embedding
	}
	return out, nil
}

// Close is a no-op.
func (c *CLIPServer) Close() error { return nil }

func (c *CLIPServer) post(ctx context.Context, operation, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", operation, err)
	}

	return c.retry.do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return NewProviderError(operation, 0, "build request", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return NewProviderError(operation, 0, "request failed", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			c.logger.Error("clip server response",
				slog.String("operation", operation),
				slog.Int("status", resp.StatusCode),
				slog.String("body", string(msg)),
			)
			return NewProviderError(operation, resp.StatusCode, string(bytes.TrimSpace(msg)), nil)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return NewProviderError(operation, resp.StatusCode, "decode response", err)
		}
		return nil
	}, retryableTransport)
}

// NewCLIPFrameEmbedder creates a client and loads the model. Load failures
// are returned as-is so callers can surface the server's cause.
func NewCLIPFrameEmbedder(ctx context.Context, cfg Config, load LoadRequest, dim int, logger *slog.Logger) (*CLIPServer, error) {
	c, err := NewCLIPServer(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := c.Load(ctx, load, dim); err != nil {
		return nil, err
	}
	return c, nil
}
