package searcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/memex-mcp/internal/embedder"
	"github.com/dshills/memex-mcp/internal/storage"
	"github.com/dshills/memex-mcp/pkg/types"
)

const (
	DefaultLimit = 5
	MaxLimit     = 100
)

// Request contains parameters for a search operation
type Request struct {
	Query     string
	Limit     int        // Default DefaultLimit
	Threshold float64    // Minimum cosine similarity, inclusive
	Raw       bool       // Return matching records without parent promotion
	Kind      types.Kind // Empty searches every collection
}

// Response contains search results and metadata
type Response struct {
	Results      []types.SearchResult
	TotalResults int
	Candidates   int // records at or above the threshold before promotion
	Duration     time.Duration
}

// Searcher ranks indexed records against a query
type Searcher struct {
	storage  storage.Storage
	embedder embedder.Embedder
	logger   *zap.Logger
}

// New creates a new Searcher instance
func New(store storage.Storage, emb embedder.Embedder, logger *zap.Logger) *Searcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{
		storage:  store,
		embedder: emb,
		logger:   logger,
	}
}

// Search embeds the query and ranks every record by cosine similarity.
// By default each hit is promoted to its parent document and only the best
// hit per document is kept.
func (s *Searcher) Search(ctx context.Context, req Request) (*Response, error) {
	startTime := time.Now()

	if s.embedder == nil {
		return nil, fmt.Errorf("embedder not initialized")
	}
	if err := validateRequest(&req); err != nil {
		return nil, err
	}

	embedding, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: req.Query})
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	filters := &storage.SearchFilters{Kind: req.Kind, MinScore: req.Threshold}
	limit := req.Limit
	if !req.Raw {
		// Promotion collapses hits, so every candidate is needed
		limit = 0
	}

	hits, err := s.storage.SearchVector(ctx, embedding.Vector, limit, filters)
	if err != nil {
		return nil, err
	}

	var results []types.SearchResult
	if req.Raw {
		results = rawResults(hits)
	} else {
		results, err = s.promote(ctx, hits, req)
		if err != nil {
			return nil, err
		}
	}

	resp := &Response{
		Results:      results,
		TotalResults: len(results),
		Candidates:   len(hits),
		Duration:     time.Since(startTime),
	}
	s.logger.Debug("search completed",
		zap.String("query", req.Query),
		zap.String("kind", string(req.Kind)),
		zap.Int("candidates", resp.Candidates),
		zap.Int("results", resp.TotalResults),
		zap.Duration("duration", resp.Duration),
	)
	return resp, nil
}

// validateRequest checks the request and fills in defaults
func validateRequest(req *Request) error {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return fmt.Errorf("%w: query cannot be empty", types.ErrValidation)
	}
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit > MaxLimit {
		return fmt.Errorf("%w: limit must be at most %d", types.ErrValidation, MaxLimit)
	}
	if req.Threshold < -1 || req.Threshold > 1 {
		return fmt.Errorf("%w: threshold must be between -1 and 1", types.ErrValidation)
	}
	return nil
}

func rawResults(hits []storage.VectorResult) []types.SearchResult {
	results := make([]types.SearchResult, len(hits))
	for i, h := range hits {
		r := h.Record
		results[i] = types.SearchResult{
			Rank:           i + 1,
			Score:          h.Score,
			ID:             r.ID,
			Type:           r.Type,
			Kind:           r.Kind,
			Slug:           r.Slug,
			UUID:           r.UUID,
			Name:           r.Name,
			Title:          r.Title,
			Tags:           r.Tags,
			Content:        r.Content,
			Metadata:       r.Metadata,
			MatchedID:      r.ID,
			MatchedType:    r.Type,
			MatchedContent: r.Content,
		}
	}
	return results
}

// promote keeps the best hit of each slug and resolves it to the canonical
// document. Hits are already sorted, so the first one seen per slug wins.
// Hits whose document no longer exists are dropped.
func (s *Searcher) promote(ctx context.Context, hits []storage.VectorResult, req Request) ([]types.SearchResult, error) {
	seen := make(map[string]bool, len(hits))
	results := make([]types.SearchResult, 0, req.Limit)

	for _, h := range hits {
		if len(results) == req.Limit {
			break
		}
		slug := h.Record.Slug
		if seen[slug] {
			continue
		}
		seen[slug] = true

		parent := h.Record
		if !parent.IsDocument() {
			doc, err := s.storage.GetDocument(ctx, slug)
			if errors.Is(err, types.ErrNotFound) {
				s.logger.Debug("dropping orphaned hit", zap.String("id", h.Record.ID), zap.String("slug", slug))
				continue
			}
			if err != nil {
				return nil, err
			}
			parent = doc
		}
		if req.Kind != "" && parent.Kind != req.Kind {
			continue
		}

		results = append(results, types.SearchResult{
			Rank:           len(results) + 1,
			Score:          h.Score,
			ID:             parent.ID,
			Type:           parent.Type,
			Kind:           parent.Kind,
			Slug:           parent.Slug,
			UUID:           parent.UUID,
			Name:           parent.Name,
			Title:          parent.Title,
			Tags:           parent.Tags,
			Content:        parent.Content,
			Metadata:       parent.Metadata,
			MatchedID:      h.Record.ID,
			MatchedType:    h.Record.Type,
			MatchedContent: h.Record.Content,
		})
	}
	return results, nil
}
