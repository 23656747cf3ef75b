package searcher

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dshills/memex-mcp/internal/embedder"
	"github.com/dshills/memex-mcp/internal/storage"
	"github.com/dshills/memex-mcp/pkg/types"
)

// fixedEmbedder returns a preset vector per query text
type fixedEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fixedEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.vectors[req.Text]
	if !ok {
		return nil, fmt.Errorf("%w: no vector for %q", types.ErrEmbeddingRejected, req.Text)
	}
	return &embedder.Embedding{Vector: v, Dimension: len(v), Model: "fixed"}, nil
}

func (f *fixedEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	return nil, fmt.Errorf("not used")
}

func (f *fixedEmbedder) Dimension() int   { return 3 }
func (f *fixedEmbedder) Provider() string { return "fixed" }
func (f *fixedEmbedder) Model() string    { return "fixed" }
func (f *fixedEmbedder) Close() error     { return nil }

func document(slug string, kind types.Kind, vec []float32) *types.Record {
	return &types.Record{
		ID: slug, Type: types.RecordDocument, Kind: kind, Slug: slug,
		Name: slug, Title: "Title " + slug, Tags: []string{"t"}, Content: "doc " + slug, Vector: vec,
	}
}

func section(slug string, i int, vec []float32) *types.Record {
	return &types.Record{
		ID: types.SectionID(slug, i), Type: types.RecordSection, Slug: slug,
		Name: slug, Title: "S", Content: fmt.Sprintf("section %d of %s", i, slug), Vector: vec,
		Section: &types.SectionRef{ParentSlug: slug, SectionIndex: i, SectionTitle: "S"},
	}
}

// setupSearcher indexes:
//
//	alpha (guide):   doc far from x, section 0 on x
//	beta (guide):    doc between x and y
//	gamma (context): doc on y
func setupSearcher(t *testing.T) (*Searcher, *storage.SQLiteStorage) {
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	require.NoError(t, store.ReplaceDocument(ctx, document("alpha", types.KindGuide, []float32{0, 0, 1}),
		[]*types.Record{section("alpha", 0, []float32{1, 0, 0}), section("alpha", 1, []float32{0.9, 0.1, 0})}))
	require.NoError(t, store.ReplaceDocument(ctx, document("beta", types.KindGuide, []float32{1, 1, 0}), nil))
	require.NoError(t, store.ReplaceDocument(ctx, document("gamma", types.KindContext, []float32{0, 1, 0}), nil))

	emb := &fixedEmbedder{vectors: map[string][]float32{
		"x": {1, 0, 0},
		"y": {0, 1, 0},
	}}
	return New(store, emb, zap.NewNop()), store
}

func TestSearch_PromotesToParent(t *testing.T) {
	s, _ := setupSearcher(t)

	resp, err := s.Search(context.Background(), Request{Query: "x", Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)

	top := resp.Results[0]
	assert.Equal(t, 1, top.Rank)
	assert.Equal(t, "alpha", top.Slug)
	assert.Equal(t, types.RecordDocument, top.Type)
	assert.Equal(t, "Title alpha", top.Title)
	assert.Equal(t, "doc alpha", top.Content)
	assert.Equal(t, "alpha_section_0", top.MatchedID)
	assert.Equal(t, types.RecordSection, top.MatchedType)
	assert.Equal(t, "section 0 of alpha", top.MatchedContent)
	assert.InDelta(t, 1.0, top.Score, 1e-6)

	// One result per document
	slugs := map[string]int{}
	for _, r := range resp.Results {
		slugs[r.Slug]++
	}
	for slug, n := range slugs {
		assert.Equal(t, 1, n, slug)
	}
	assert.Greater(t, resp.Candidates, resp.TotalResults)
}

func TestSearch_SortedAndAboveThreshold(t *testing.T) {
	s, _ := setupSearcher(t)

	resp, err := s.Search(context.Background(), Request{Query: "x", Limit: 10, Threshold: 0.5})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "alpha", resp.Results[0].Slug)
	assert.Equal(t, "beta", resp.Results[1].Slug)

	for i, r := range resp.Results {
		assert.GreaterOrEqual(t, r.Score, 0.5)
		if i > 0 {
			assert.LessOrEqual(t, r.Score, resp.Results[i-1].Score)
		}
	}
}

func TestSearch_Raw(t *testing.T) {
	s, _ := setupSearcher(t)

	resp, err := s.Search(context.Background(), Request{Query: "x", Limit: 2, Raw: true})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "alpha_section_0", resp.Results[0].ID)
	assert.Equal(t, "alpha_section_1", resp.Results[1].ID)
	assert.Equal(t, types.RecordSection, resp.Results[1].Type)
	assert.Equal(t, resp.Results[1].Content, resp.Results[1].MatchedContent)
}

func TestSearch_KindFilter(t *testing.T) {
	s, _ := setupSearcher(t)

	resp, err := s.Search(context.Background(), Request{Query: "y", Kind: types.KindContext})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "gamma", resp.Results[0].Slug)
	assert.Equal(t, types.KindContext, resp.Results[0].Kind)
}

func TestSearch_Limit(t *testing.T) {
	s, _ := setupSearcher(t)

	resp, err := s.Search(context.Background(), Request{Query: "x", Limit: 1})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "alpha", resp.Results[0].Slug)
}

func TestSearch_DeletedDocumentHasNoHits(t *testing.T) {
	s, store := setupSearcher(t)
	ctx := context.Background()

	_, err := store.DeleteSlug(ctx, "alpha")
	require.NoError(t, err)

	resp, err := s.Search(ctx, Request{Query: "x", Limit: 10, Threshold: 0.95})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestSearch_ProviderFailure(t *testing.T) {
	s, _ := setupSearcher(t)
	s.embedder = &fixedEmbedder{err: fmt.Errorf("%w: timeout", types.ErrEmbeddingUnavailable)}

	_, err := s.Search(context.Background(), Request{Query: "x"})
	assert.ErrorIs(t, err, types.ErrEmbeddingUnavailable)
}

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr bool
		limit   int
	}{
		{"defaults", Request{Query: " q "}, false, DefaultLimit},
		{"empty query", Request{Query: "   "}, true, 0},
		{"limit too large", Request{Query: "q", Limit: MaxLimit + 1}, true, 0},
		{"threshold out of range", Request{Query: "q", Threshold: 1.5}, true, 0},
		{"explicit limit", Request{Query: "q", Limit: 7}, false, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			err := validateRequest(&req)
			if tt.wantErr {
				assert.ErrorIs(t, err, types.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.limit, req.Limit)
			assert.Equal(t, "q", req.Query)
		})
	}
}
