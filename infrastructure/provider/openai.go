package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/helixml/vidembed/domain/embedding"
	"github.com/helixml/vidembed/domain/video"
)

// OpenAIProvider embeds frames and texts through an OpenAI-compatible
// /embeddings endpoint. Frames are sent as JPEG data URIs, which multimodal
// embedding servers accept in place of text input.
type OpenAIProvider struct {
	client    *openai.Client
	model     string
	batchSize int
	retry     retrier
	logger    *slog.Logger
}

// NewOpenAIProvider creates a provider from configuration. No request is made.
func NewOpenAIProvider(cfg Config, logger *slog.Logger) (*OpenAIProvider, error) {
	cfg = cfg.WithDefaults()
	if cfg.Model == "" {
		return nil, embedding.Configurationf("openai endpoint: model is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	httpClient, err := cfg.httpClient()
	if err != nil {
		return nil, err
	}
	config.HTTPClient = httpClient

	return &OpenAIProvider{
		client:    openai.NewClientWithConfig(config),
		model:     cfg.Model,
		batchSize: cfg.BatchSize,
		retry:     newRetrier(cfg),
		logger:    logger,
	}, nil
}

// NewOpenAIFrameEmbedder creates a provider and verifies the endpoint serves
// vectors of width dim by embedding a single black pixel.
func NewOpenAIFrameEmbedder(ctx context.Context, cfg Config, dim int, logger *slog.Logger) (*OpenAIProvider, error) {
	p, err := NewOpenAIProvider(cfg, logger)
	if err != nil {
		return nil, err
	}
	pixel, err := video.NewFrame(0, 1, 1, []byte{0, 0, 0})
	if err != nil {
		return nil, err
	}
	vectors, err := p.EmbedFrames(withoutCache(ctx), []video.Frame{pixel})
	if err != nil {
		return nil, fmt.Errorf("check width of %s: %w", p.model, err)
	}
	if got := len(vectors[0]); got != dim {
		return nil, fmt.Errorf("%w: model %s returns width %d, expected %d", embedding.ErrDimensionMismatch, p.model, got, dim)
	}
	p.logger.Info("frame model ready", slog.String("model", p.model), slog.Int("dimension", dim))
	return p, nil
}

// Capacity returns the maximum number of inputs per call.
func (p *OpenAIProvider) Capacity() int { return p.batchSize }

// EmbedFrames embeds each frame. len(frames) must not exceed Capacity.
func (p *OpenAIProvider) EmbedFrames(ctx context.Context, frames []video.Frame) ([]embedding.Vector, error) {
	inputs := make([]string, len(frames))
	for i, f := range frames {
		uri, err := frameDataURI(f)
		if err != nil {
			return nil, err
		}
		inputs[i] = uri
	}
	return p.embed(ctx, "embed_frames", inputs)
}

// EmbedTexts embeds free text queries.
func (p *OpenAIProvider) EmbedTexts(ctx context.Context, texts []string) ([]embedding.Vector, error) {
	out := make([]embedding.Vector, 0, len(texts))
	for start := 0; start < len(texts); start += p.batchSize {
		end := min(start+p.batchSize, len(texts))
		vectors, err := p.embed(ctx, "embed_texts", texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

// Close is a no-op.
func (p *OpenAIProvider) Close() error { return nil }

func (p *OpenAIProvider) embed(ctx context.Context, operation string, inputs []string) ([]embedding.Vector, error) {
	if len(inputs) == 0 {
		return []embedding.Vector{}, nil
	}
	if len(inputs) > p.batchSize {
		return nil, fmt.Errorf("%s: %d inputs exceeds capacity %d", operation, len(inputs), p.batchSize)
	}

	req := openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(p.model),
		Input: inputs,
	}

	var resp openai.EmbeddingResponse
	err := p.retry.do(ctx, func() error {
		var err error
		resp, err = p.client.CreateEmbeddings(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Data) != len(inputs) {
			return fmt.Errorf("%w: got %d vectors for %d inputs", errEmbeddingCountMismatch, len(resp.Data), len(inputs))
		}
		return nil
	}, isRetryableOpenAI)
	if err != nil {
		return nil, wrapOpenAIError(operation, err)
	}

	out := make([]embedding.Vector, len(inputs))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, NewProviderError(operation, 0, fmt.Sprintf("response index %d out of range", d.Index), nil)
		}
		out[d.Index] = embedding.Vector(d.Embedding)
	}
	return out, nil
}

func isRetryableOpenAI(err error) bool {
	if retryableTransport(err) {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}

	var reqErr *openai.RequestError
	return errors.As(err, &reqErr)
}

func wrapOpenAIError(operation string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return NewProviderError(operation, apiErr.HTTPStatusCode, apiErr.Message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return NewProviderError(operation, reqErr.HTTPStatusCode, reqErr.Error(), err)
	}

	return NewProviderError(operation, 0, err.Error(), err)
}

var _ embedding.TextEncoder = (*OpenAIProvider)(nil)
