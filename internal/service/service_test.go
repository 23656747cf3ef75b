package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dshills/memex-mcp/internal/config"
	"github.com/dshills/memex-mcp/internal/content"
	"github.com/dshills/memex-mcp/internal/embedder"
	"github.com/dshills/memex-mcp/pkg/types"
)

const (
	guideUUID   = "3f2b8c1e-6d4a-4f7b-9c2e-1a5d7e9f0b3c"
	contextUUID = "8a1c3e5f-7b9d-4e2f-a1c3-5e7f9b1d3f5a"
)

func testConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.KnowledgeBase = t.TempDir()
	cfg.Embedding.Provider = embedder.ProviderLocal
	return cfg
}

func setupService(t *testing.T) (Service, config.Config) {
	cfg := testConfig(t)
	svc, err := NewService(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc, cfg
}

func TestNewServiceCreatesIndex(t *testing.T) {
	_, cfg := setupService(t)

	_, err := os.Stat(cfg.DBPath())
	assert.NoError(t, err)
}

func TestServiceLifecycle(t *testing.T) {
	svc, cfg := setupService(t)
	ctx := context.Background()

	res, err := svc.Write(ctx, types.KindGuide, content.WriteRequest{
		UUID:    guideUUID,
		Title:   "Docker Compose",
		Content: "# Services\n\nDefine each container under services.\n\n# Volumes\n\nNamed volumes persist data.",
		Tags:    []string{"docker"},
	})
	require.NoError(t, err)
	assert.Equal(t, "docker-compose", res.Slug)
	assert.FileExists(t, filepath.Join(cfg.GuidesPath(), "docker-compose.md"))

	_, err = svc.Write(ctx, types.KindContext, content.WriteRequest{
		UUID:    contextUUID,
		Title:   "Reviewer Persona",
		Content: "You review pull requests for correctness.",
	})
	require.NoError(t, err)

	doc, err := svc.Get(ctx, types.KindGuide, guideUUID)
	require.NoError(t, err)
	assert.Equal(t, "Docker Compose", doc.Title)
	assert.Equal(t, []string{"docker"}, doc.Tags)

	_, err = svc.Get(ctx, types.KindContext, guideUUID)
	assert.ErrorIs(t, err, types.ErrNotFound)

	guides, err := svc.List(ctx, types.KindGuide)
	require.NoError(t, err)
	require.Len(t, guides, 1)
	assert.Equal(t, guideUUID, guides[0].UUID)

	results, err := svc.Search(ctx, "named volumes persist data", "", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "docker-compose", results[0].Slug)

	results, err = svc.Search(ctx, "named volumes persist data", types.KindContext, 5)
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, types.KindContext, r.Kind)
	}

	deleted, err := svc.Delete(ctx, types.KindGuide, "docker-compose")
	require.NoError(t, err)
	assert.Equal(t, "Docker Compose", deleted.Title)
	assert.NoFileExists(t, filepath.Join(cfg.GuidesPath(), "docker-compose.md"))

	_, err = svc.Get(ctx, types.KindGuide, guideUUID)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestServiceUnknownKind(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.List(ctx, types.Kind("note"))
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = svc.Reindex(ctx, types.Kind("note"), false)
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestServiceReindex(t *testing.T) {
	svc, cfg := setupService(t)
	ctx := context.Background()

	require.NoError(t, os.MkdirAll(cfg.GuidesPath(), 0o755))
	require.NoError(t, os.MkdirAll(cfg.ContextsPath(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.GuidesPath(), "make-targets.md"),
		[]byte("---\nuuid: "+guideUUID+"\ntitle: Make Targets\n---\n\n# Build\n\nRun make build.\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.ContextsPath(), "tutor.md"),
		[]byte("---\nuuid: "+contextUUID+"\ntitle: Tutor\n---\n\nExplain step by step.\n"), 0o644))

	counts, err := svc.Reindex(ctx, "", false)
	require.NoError(t, err)
	assert.Equal(t, map[types.Kind]int{types.KindGuide: 1, types.KindContext: 1}, counts)

	counts, err = svc.Reindex(ctx, types.KindGuide, true)
	require.NoError(t, err)
	assert.Equal(t, 0, counts[types.KindGuide])

	doc, err := svc.Get(ctx, types.KindContext, contextUUID)
	require.NoError(t, err)
	assert.Equal(t, "Tutor", doc.Title)

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg.KnowledgeBase, status.KnowledgeBase)
	assert.Equal(t, embedder.ProviderLocal, status.Provider)
	assert.Equal(t, 1, status.Files[types.KindGuide])
	assert.Equal(t, 1, status.Files[types.KindContext])
	assert.Equal(t, 2, status.Index.Documents)
	assert.True(t, status.Index.Health.ConsistentDimension)
}

func TestServiceReindexInProgress(t *testing.T) {
	svc, _ := setupService(t)
	impl := svc.(*service)

	started := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = impl.indexer.Exclusive(func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	_, err := svc.Reindex(context.Background(), "", false)
	assert.ErrorIs(t, err, types.ErrIndexingInProgress)

	close(release)
	wg.Wait()
}

func TestGenerateUUID(t *testing.T) {
	svc, _ := setupService(t)

	id := svc.GenerateUUID(context.Background())
	assert.NoError(t, content.ValidateUUID(id))
	assert.NotEqual(t, id, svc.GenerateUUID(context.Background()))
}

func TestLoggingMiddlewarePassesThrough(t *testing.T) {
	svc, _ := setupService(t)
	logged := LoggingMiddleware(zap.NewNop())(svc)
	ctx := context.Background()

	_, err := logged.Get(ctx, types.KindGuide, guideUUID)
	assert.ErrorIs(t, err, types.ErrNotFound)

	list, err := logged.List(ctx, types.KindContext)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestEndpoints(t *testing.T) {
	svc, _ := setupService(t)
	set := NewEndpointSet(svc)
	ctx := context.Background()

	resp, err := set.Write(ctx, WriteRequest{
		Kind:    types.KindGuide,
		UUID:    guideUUID,
		Title:   "Shell Tips",
		Content: "Use set -euo pipefail.",
	})
	require.NoError(t, err)
	assert.Equal(t, "shell-tips", resp.(*content.WriteResult).Slug)

	resp, err = set.Get(ctx, GetRequest{Kind: types.KindGuide, UUID: guideUUID})
	require.NoError(t, err)
	assert.Equal(t, "Shell Tips", resp.(*types.Document).Title)

	resp, err = set.Search(ctx, SearchRequest{Query: "use set euo pipefail", Type: "guides"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.([]types.SearchResult))

	_, err = set.Search(ctx, SearchRequest{Query: "shell", Type: "notes"})
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = set.Get(ctx, "not a request")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	resp, err = set.GenerateUUID(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, resp.(string), 36)
}
