package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/helixml/vidembed/domain/embedding"
	"github.com/helixml/vidembed/domain/store"
)

// DefaultSearchLimit is the number of results returned when none is requested.
const DefaultSearchLimit = 10

// Search answers text queries against a store of clip embeddings.
type Search struct {
	text     embedding.TextEncoder
	searcher store.Searcher
	logger   *slog.Logger
}

// NewSearch creates a Search.
func NewSearch(text embedding.TextEncoder, searcher store.Searcher, logger *slog.Logger) *Search {
	if logger == nil {
		logger = slog.Default()
	}
	return &Search{text: text, searcher: searcher, logger: logger}
}

// Query embeds query and returns the topK closest clips, best first.
func (s *Search) Query(ctx context.Context, query string, topK int) ([]store.Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = DefaultSearchLimit
	}

	vectors, err := s.text.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: expected 1 vector, got %d", len(vectors))
	}

	results, err := s.searcher.Search(ctx, vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("search store: %w", err)
	}
	s.logger.Debug("search complete", "query", query, "results", len(results))
	return results, nil
}
