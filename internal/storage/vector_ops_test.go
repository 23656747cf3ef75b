package storage

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/memex-mcp/pkg/types"
)

func TestSerializeVector_RoundTrip(t *testing.T) {
	vec := []float32{0, 1.5, -2.25, float32(math.Pi), math.MaxFloat32}
	blob := SerializeVector(vec)
	assert.Len(t, blob, len(vec)*4)
	assert.Equal(t, vec, DeserializeVector(blob))
}

func TestSerializeVector_LittleEndian(t *testing.T) {
	blob := SerializeVector([]float32{1})
	// 1.0 is 0x3f800000
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3f}, blob)
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"scaled", []float32{1, 1}, []float32{3, 3}, 1},
		{"zero norm", []float32{0, 0}, []float32{1, 1}, 0},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestSearchVector_RanksByScore(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, storage.ReplaceDocument(ctx, testDocument("close", "", types.KindGuide, []float32{1, 0.1}), nil))
	require.NoError(t, storage.ReplaceDocument(ctx, testDocument("far", "", types.KindGuide, []float32{0, 1}), nil))
	require.NoError(t, storage.ReplaceDocument(ctx, testDocument("exact", "", types.KindGuide, []float32{1, 0}), nil))

	results, err := storage.SearchVector(ctx, []float32{1, 0}, 0, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "exact", results[0].Record.ID)
	assert.Equal(t, "close", results[1].Record.ID)
	assert.Equal(t, "far", results[2].Record.ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)

	results, err = storage.SearchVector(ctx, []float32{1, 0}, 2, nil)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearchVector_Filters(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, storage.ReplaceDocument(ctx, testDocument("g", "", types.KindGuide, []float32{1, 0}),
		[]*types.Record{testSection("g", 0, []float32{1, 0})}))
	require.NoError(t, storage.ReplaceDocument(ctx, testDocument("c", "", types.KindContext, []float32{1, 0}),
		[]*types.Record{testSection("c", 0, []float32{0, 1})}))

	results, err := storage.SearchVector(ctx, []float32{1, 0}, 0, &SearchFilters{
		Types: []types.RecordType{types.RecordSection, types.RecordChunk},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, types.RecordSection, r.Record.Type)
	}

	results, err = storage.SearchVector(ctx, []float32{1, 0}, 0, &SearchFilters{Kind: types.KindContext})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, types.KindContext, r.Record.Kind)
	}

	// The context section is orthogonal and falls below the threshold
	results, err = storage.SearchVector(ctx, []float32{1, 0}, 0, &SearchFilters{MinScore: 0.5})
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestSearchVector_ThresholdIsInclusive(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, storage.ReplaceDocument(ctx, testDocument("exact", "", types.KindGuide, []float32{1, 0}), nil))

	results, err := storage.SearchVector(ctx, []float32{1, 0}, 0, &SearchFilters{MinScore: 1.0})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSearchVector_SkipsDimensionMismatch(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, storage.ReplaceDocument(ctx, testDocument("two", "", types.KindGuide, []float32{1, 0}), nil))
	require.NoError(t, storage.ReplaceDocument(ctx, testDocument("three", "", types.KindGuide, []float32{1, 0, 0}), nil))

	results, err := storage.SearchVector(ctx, []float32{1, 0, 0}, 0, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "three", results[0].Record.ID)
}

func TestSortCandidates_TiesByID(t *testing.T) {
	candidates := []candidate{
		{record: &types.Record{ID: "b"}, score: 0.5},
		{record: &types.Record{ID: "a"}, score: 0.5},
		{record: &types.Record{ID: "c"}, score: 0.9},
	}
	sortCandidates(candidates)

	ids := []string{candidates[0].record.ID, candidates[1].record.ID, candidates[2].record.ID}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}
