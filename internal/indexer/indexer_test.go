package indexer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dshills/memex-mcp/internal/chunker"
	"github.com/dshills/memex-mcp/internal/embedder"
	"github.com/dshills/memex-mcp/internal/storage"
	"github.com/dshills/memex-mcp/pkg/types"
)

// mockEmbedder implements embedder.Embedder for testing
type mockEmbedder struct {
	mu          sync.Mutex
	texts       []string
	generateErr error
}

func (m *mockEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.generateErr != nil {
		return nil, m.generateErr
	}
	m.texts = append(m.texts, req.Text)
	return &embedder.Embedding{
		Vector:    []float32{1, float32(len(req.Text)%7) + 1},
		Dimension: 2,
		Provider:  "mock",
		Model:     "test-v1",
	}, nil
}

func (m *mockEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	resp := &embedder.BatchEmbeddingResponse{Provider: "mock", Model: "test-v1"}
	for _, text := range req.Texts {
		emb, err := m.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
		if err != nil {
			return nil, err
		}
		resp.Embeddings = append(resp.Embeddings, emb)
	}
	return resp, nil
}

func (m *mockEmbedder) Dimension() int   { return 2 }
func (m *mockEmbedder) Provider() string { return "mock" }
func (m *mockEmbedder) Model() string    { return "test-v1" }
func (m *mockEmbedder) Close() error     { return nil }

func (m *mockEmbedder) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

func setupIndexer(t *testing.T, size, overlap int) (*Indexer, *mockEmbedder, *storage.SQLiteStorage) {
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	emb := &mockEmbedder{}
	return New(store, emb, chunker.New(size, overlap), zap.NewNop()), emb, store
}

func compiled(title string, kind types.Kind, content string, sections ...types.Section) *types.CompiledDocument {
	return &types.CompiledDocument{
		Name:     "name-" + strings.ToLower(strings.ReplaceAll(title, " ", "-")),
		Filename: "file.md",
		Metadata: map[string]any{"title": title, "type": string(kind), "tags": []string{"a", "b"}},
		Content:  content,
		Sections: sections,
	}
}

const testUUID = "5a0f6a6e-3c1b-4b8e-9f3a-0d2c1b4a5e6f"

func TestIndex_DocumentAndSections(t *testing.T) {
	idx, emb, store := setupIndexer(t, 2000, 200)
	ctx := context.Background()

	doc := compiled("Git Workflow", types.KindGuide, "intro text",
		types.Section{Title: "Branching", Content: "use feature branches"},
		types.Section{Title: "Empty", Content: "   \n"},
		types.Section{Title: "Merging", Content: "rebase first"},
	)

	stats, err := idx.Index(ctx, "git-workflow", testUUID, doc)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Sections)
	assert.Equal(t, 0, stats.Chunks)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, "test-v1", stats.Model)

	// Blank sections are never embedded
	assert.Equal(t, []string{
		"intro text",
		"Branching\n\nuse feature branches",
		"Merging\n\nrebase first",
	}, emb.calls())

	got, err := idx.GetByUUID(ctx, testUUID)
	require.NoError(t, err)
	assert.Equal(t, "git-workflow", got.Slug)
	assert.Equal(t, "Git Workflow", got.Title)
	assert.Equal(t, types.KindGuide, got.Kind)
	assert.Equal(t, []string{"a", "b"}, got.Tags)
	assert.Equal(t, "intro text", got.Content)
	assert.Equal(t, "guide", got.Metadata["type"])
	assert.Equal(t, "file.md", got.Metadata["filename"])

	parts, err := store.ListParts(ctx, "git-workflow")
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, "git-workflow_section_0", parts[0].ID)
	assert.Equal(t, "git-workflow_section_2", parts[1].ID)
	assert.Equal(t, "Merging", parts[1].Section.SectionTitle)
	assert.Equal(t, "test-v1", parts[1].Model)
}

func TestIndex_LongSectionBecomesChunks(t *testing.T) {
	idx, _, store := setupIndexer(t, 20, 5)
	ctx := context.Background()

	doc := compiled("Long", types.KindContext, "body",
		types.Section{Title: "Big", Content: strings.Repeat("x", 40)},
		types.Section{Title: "Small", Content: "ok"},
	)

	stats, err := idx.Index(ctx, "long", testUUID, doc)
	require.NoError(t, err)
	assert.Greater(t, stats.Chunks, 1)
	assert.Equal(t, 1, stats.Sections)

	parts, err := store.ListParts(ctx, "long")
	require.NoError(t, err)
	require.Len(t, parts, stats.Chunks+1)

	for j, p := range parts[:stats.Chunks] {
		assert.Equal(t, types.RecordChunk, p.Type)
		assert.Equal(t, fmt.Sprintf("long_section_0_chunk_%d", j), p.ID)
		assert.Equal(t, "long_section_0", p.ParentID)
		assert.Equal(t, j, p.ChunkIndex)
		assert.LessOrEqual(t, len([]rune(p.Content)), 20)
		assert.True(t, p.Section.IsChunk)
		assert.Equal(t, types.KindContext, p.Kind)
	}
	last := parts[len(parts)-1]
	assert.Equal(t, types.RecordSection, last.Type)
	assert.Equal(t, "long_section_1", last.ID)
}

func TestIndex_DocumentTextPolicy(t *testing.T) {
	idx, emb, _ := setupIndexer(t, 2000, 200)
	ctx := context.Background()

	_, err := idx.Index(ctx, "blank", testUUID, compiled("Only Title", types.KindGuide, "  "))
	require.NoError(t, err)

	_, err = idx.Index(ctx, "huge", "", compiled("Huge", types.KindGuide, strings.Repeat("語", MaxDocumentRunes+50)))
	require.NoError(t, err)

	calls := emb.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "Only Title", calls[0])
	assert.Len(t, []rune(calls[1]), MaxDocumentRunes)
}

func TestIndex_ProviderFailureLeavesIndexUntouched(t *testing.T) {
	idx, emb, store := setupIndexer(t, 2000, 200)
	ctx := context.Background()

	_, err := idx.Index(ctx, "doc", testUUID, compiled("Doc", types.KindGuide, "v1",
		types.Section{Title: "One", Content: "first"}))
	require.NoError(t, err)

	emb.generateErr = fmt.Errorf("%w: connection refused", types.ErrEmbeddingUnavailable)
	_, err = idx.Index(ctx, "doc", testUUID, compiled("Doc", types.KindGuide, "v2",
		types.Section{Title: "Two", Content: "second"}))
	require.ErrorIs(t, err, types.ErrEmbeddingUnavailable)

	got, err := idx.GetByUUID(ctx, testUUID)
	require.NoError(t, err)
	assert.Equal(t, "v1", got.Content)

	parts, err := store.ListParts(ctx, "doc")
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "One", parts[0].Section.SectionTitle)
}

func TestIndex_ReindexDropsRemovedSections(t *testing.T) {
	idx, _, store := setupIndexer(t, 2000, 200)
	ctx := context.Background()

	_, err := idx.Index(ctx, "doc", testUUID, compiled("Doc", types.KindGuide, "body",
		types.Section{Title: "A", Content: "a"},
		types.Section{Title: "B", Content: "b"},
		types.Section{Title: "C", Content: "c"}))
	require.NoError(t, err)

	_, err = idx.Index(ctx, "doc", testUUID, compiled("Doc", types.KindGuide, "body",
		types.Section{Title: "A", Content: "a"}))
	require.NoError(t, err)

	parts, err := store.ListParts(ctx, "doc")
	require.NoError(t, err)
	assert.Len(t, parts, 1)
}

func TestIndex_UsesFrontmatterUUIDWhenNotGiven(t *testing.T) {
	idx, _, _ := setupIndexer(t, 2000, 200)
	ctx := context.Background()

	doc := compiled("Doc", types.KindGuide, "body")
	doc.Metadata["uuid"] = testUUID
	_, err := idx.Index(ctx, "doc", "", doc)
	require.NoError(t, err)

	ok, err := idx.ExistsByUUID(ctx, testUUID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIndex_CreatedAtFromFrontmatter(t *testing.T) {
	tests := []struct {
		name    string
		created any
		want    time.Time
	}{
		{"date", "2020-01-01", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"rfc3339", "2021-06-15T08:30:00+02:00", time.Date(2021, 6, 15, 6, 30, 0, 0, time.UTC)},
		{"unparseable falls back to now", "last tuesday", time.Time{}},
		{"absent falls back to now", nil, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, _, _ := setupIndexer(t, 2000, 200)
			ctx := context.Background()

			doc := compiled("Doc", types.KindGuide, "body")
			if tt.created != nil {
				doc.Metadata["created"] = tt.created
			}
			before := time.Now().Add(-time.Second)
			_, err := idx.Index(ctx, "doc", testUUID, doc)
			require.NoError(t, err)

			got, err := idx.GetByUUID(ctx, testUUID)
			require.NoError(t, err)
			if tt.want.IsZero() {
				assert.True(t, got.CreatedAt.After(before), "created_at %v", got.CreatedAt)
				return
			}
			assert.True(t, got.CreatedAt.Equal(tt.want), "created_at %v", got.CreatedAt)
		})
	}
}

func TestIndex_Validation(t *testing.T) {
	idx, _, _ := setupIndexer(t, 2000, 200)

	_, err := idx.Index(context.Background(), "", testUUID, compiled("Doc", types.KindGuide, "body"))
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = idx.Index(context.Background(), "doc", testUUID, nil)
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestLookups(t *testing.T) {
	idx, _, _ := setupIndexer(t, 2000, 200)
	ctx := context.Background()

	_, err := idx.Index(ctx, "guide-one", testUUID, compiled("Guide One", types.KindGuide, "g"))
	require.NoError(t, err)
	_, err = idx.Index(ctx, "context-one", "", compiled("Context One", types.KindContext, "c"))
	require.NoError(t, err)

	all, err := idx.ListAll(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	guides, err := idx.ListAll(ctx, types.KindGuide)
	require.NoError(t, err)
	require.Len(t, guides, 1)
	assert.Equal(t, "guide-one", guides[0].Slug)

	ok, err := idx.Exists(ctx, "context-one")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = idx.GetByUUID(ctx, "0e0e0e0e-0000-4000-8000-000000000000")
	assert.ErrorIs(t, err, types.ErrNotFound)

	n, err := idx.Delete(ctx, "guide-one")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ok, err = idx.ExistsByUUID(ctx, testUUID)
	require.NoError(t, err)
	assert.False(t, ok)

	status, err := idx.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Documents)
}

func TestExclusive(t *testing.T) {
	idx, _, _ := setupIndexer(t, 2000, 200)

	err := idx.Exclusive(func() error {
		inner := idx.Exclusive(func() error { return nil })
		assert.ErrorIs(t, inner, types.ErrIndexingInProgress)
		return nil
	})
	require.NoError(t, err)

	// Released after the first run
	assert.NoError(t, idx.Exclusive(func() error { return nil }))
}

func TestIndexLock(t *testing.T) {
	var lock IndexLock
	assert.True(t, lock.TryAcquire())
	assert.False(t, lock.TryAcquire())
	lock.Release()
	assert.True(t, lock.TryAcquire())
}
