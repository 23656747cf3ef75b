package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType string
		wantCat  string
	}{
		{"validation", fmt.Errorf("title: %w", ErrValidation), "ValidationError", CategoryValidation},
		{"not found", fmt.Errorf("guide abc: %w", ErrNotFound), "NotFound", CategoryNotFound},
		{"conflict", ErrAlreadyExists, "AlreadyExists", CategoryConflict},
		{"provider down", fmt.Errorf("ollama: %w", ErrEmbeddingUnavailable), "EmbeddingUnavailable", CategoryProvider},
		{"provider rejected", fmt.Errorf("ollama: %w", ErrEmbeddingRejected), "EmbeddingRejected", CategoryProvider},
		{"missing uuid", ErrMissingUUID, "MissingUuid", CategoryPrecondition},
		{"traversal", ErrPathTraversal, "PathTraversal", CategorySecurity},
		{"busy", ErrIndexingInProgress, "IndexingInProgress", CategoryConflict},
		{"unknown", errors.New("disk on fire"), "InternalError", CategoryRuntime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind := Classify(tt.err)
			assert.Equal(t, tt.wantType, kind.Type)
			assert.Equal(t, tt.wantCat, kind.Category)
			assert.NotZero(t, kind.Code)
		})
	}
}

func TestClassify_TableOrderWins(t *testing.T) {
	err := fmt.Errorf("%w: %w", ErrValidation, ErrPathTraversal)
	assert.Equal(t, "ValidationError", Classify(err).Type)

	err = fmt.Errorf("slug: %w", ErrPathTraversal)
	assert.Equal(t, "PathTraversal", Classify(err).Type)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("Guides")
	require.NoError(t, err)
	assert.Equal(t, KindGuide, k)

	k, err = ParseKind("context")
	require.NoError(t, err)
	assert.Equal(t, KindContext, k)

	_, err = ParseKind("notes")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRecordValidate(t *testing.T) {
	vec := []float32{1, 0}

	doc := &Record{ID: "a", Type: RecordDocument, Slug: "a", Vector: vec}
	assert.NoError(t, doc.Validate())

	doc.Section = &SectionRef{ParentSlug: "a"}
	assert.ErrorIs(t, doc.Validate(), ErrValidation)

	sec := &Record{ID: SectionID("a", 0), Type: RecordSection, Slug: "a", Vector: vec}
	assert.ErrorIs(t, sec.Validate(), ErrValidation)
	sec.Section = &SectionRef{ParentSlug: "a"}
	assert.NoError(t, sec.Validate())

	chunk := &Record{ID: ChunkID(SectionID("a", 0), 1), Type: RecordChunk, Slug: "a", Vector: vec,
		Section: &SectionRef{ParentSlug: "a", IsChunk: true}}
	assert.ErrorIs(t, chunk.Validate(), ErrValidation)
	chunk.ParentID = SectionID("a", 0)
	assert.NoError(t, chunk.Validate())
	assert.Equal(t, "a_section_0_chunk_1", chunk.ID)

	empty := &Record{ID: "b", Type: RecordDocument, Slug: "b"}
	assert.ErrorIs(t, empty.Validate(), ErrValidation)
}

func TestCompiledDocumentAccessors(t *testing.T) {
	doc := &CompiledDocument{
		Name: "fallback",
		Metadata: map[string]any{
			"title": "Testing Guide",
			"uuid":  "7f0c2d9e-1b5a-4c3e-9d8f-2a6b4e1c0f3d",
			"tags":  []string{"go", "testing"},
			"type":  "context",
		},
	}
	assert.Equal(t, "Testing Guide", doc.Title())
	assert.Equal(t, "7f0c2d9e-1b5a-4c3e-9d8f-2a6b4e1c0f3d", doc.UUID())
	assert.Equal(t, []string{"go", "testing"}, doc.Tags())
	assert.Equal(t, KindContext, doc.Kind())

	bare := &CompiledDocument{Name: "fallback", Metadata: map[string]any{}}
	assert.Equal(t, "fallback", bare.Title())
	assert.Empty(t, bare.UUID())
	assert.Equal(t, []string{}, bare.Tags())
	assert.Equal(t, KindGuide, bare.Kind())
}
