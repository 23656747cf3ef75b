package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/dshills/memex-mcp/internal/chunker"
	"github.com/dshills/memex-mcp/internal/compiler"
	"github.com/dshills/memex-mcp/internal/config"
	"github.com/dshills/memex-mcp/internal/content"
	"github.com/dshills/memex-mcp/internal/embedder"
	"github.com/dshills/memex-mcp/internal/indexer"
	"github.com/dshills/memex-mcp/internal/searcher"
	"github.com/dshills/memex-mcp/internal/storage"
	"github.com/dshills/memex-mcp/pkg/types"
)

// Service is the single facade the MCP and HTTP transports call.
type Service interface {

	// Close releases the index database and the embedding provider.
	Close() error

	// Get returns the document with uuid from the collection of kind.
	Get(ctx context.Context, kind types.Kind, uuid string) (*types.Document, error)

	// List returns summaries of every document of kind.
	List(ctx context.Context, kind types.Kind) ([]types.Summary, error)

	// Write creates or replaces a document of kind.
	Write(ctx context.Context, kind types.Kind, req content.WriteRequest) (*content.WriteResult, error)

	// Delete removes the document stored under slug.
	Delete(ctx context.Context, kind types.Kind, slug string) (*content.DeleteResult, error)

	// Search ranks documents against query. An empty kind searches both collections.
	Search(ctx context.Context, query string, kind types.Kind, limit int) ([]types.SearchResult, error)

	// GenerateUUID returns a fresh version 4 uuid.
	GenerateUUID(ctx context.Context) string

	// Reindex rebuilds the index from the files of kind, or of both collections.
	Reindex(ctx context.Context, kind types.Kind, onlyNew bool) (map[types.Kind]int, error)

	// Status reports file counts and index health.
	Status(ctx context.Context) (*Status, error)
}

type ServiceMiddleware func(Service) Service

// Status describes the knowledge base and its index
type Status struct {
	KnowledgeBase string             `json:"knowledge_base"`
	Provider      string             `json:"provider"`
	Model         string             `json:"model"`
	BuildMode     string             `json:"build_mode"`
	Driver        string             `json:"driver"`
	Files         map[types.Kind]int `json:"files"`
	Index         *storage.Status    `json:"index"`
}

// NewService opens the index under cfg.KnowledgeBase and wires the pipeline
func NewService(cfg config.Config, log *zap.Logger) (Service, error) {
	if log == nil {
		log = zap.NewNop()
	}

	if err := os.MkdirAll(cfg.VectorsPath(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", cfg.VectorsPath(), err)
	}

	store, err := storage.NewSQLiteStorage(cfg.DBPath())
	if err != nil {
		return nil, err
	}

	emb, err := embedder.New(cfg.EmbedderConfig())
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return newService(cfg, store, emb, log), nil
}

func newService(cfg config.Config, store storage.Storage, emb embedder.Embedder, log *zap.Logger) *service {
	ch := chunker.New(cfg.Chunk.Size, cfg.Chunk.Overlap)
	idx := indexer.New(store, emb, ch, log.Named("indexer"))
	srch := searcher.New(store, emb, log.Named("searcher"))
	comp := compiler.New()

	return &service{
		cfg:      cfg,
		store:    store,
		embedder: emb,
		indexer:  idx,
		searcher: srch,
		repos: map[types.Kind]*content.Repository{
			types.KindGuide:   content.New(content.Guides, cfg.KnowledgeBase, comp, idx, srch, log.Named("guides")),
			types.KindContext: content.New(content.Contexts, cfg.KnowledgeBase, comp, idx, srch, log.Named("contexts")),
		},
	}
}

type service struct {
	cfg      config.Config
	store    storage.Storage
	embedder embedder.Embedder
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
	repos    map[types.Kind]*content.Repository

	// mu serialises mutations across transports
	mu sync.Mutex
}

func (svc *service) repo(kind types.Kind) (*content.Repository, error) {
	r, ok := svc.repos[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown type %q", types.ErrValidation, kind)
	}
	return r, nil
}

func (svc *service) Close() error {
	return errors.Join(svc.embedder.Close(), svc.store.Close())
}

func (svc *service) Get(ctx context.Context, kind types.Kind, uuid string) (*types.Document, error) {
	r, err := svc.repo(kind)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, uuid)
}

func (svc *service) List(ctx context.Context, kind types.Kind) ([]types.Summary, error) {
	r, err := svc.repo(kind)
	if err != nil {
		return nil, err
	}
	return r.List(ctx)
}

func (svc *service) Write(ctx context.Context, kind types.Kind, req content.WriteRequest) (*content.WriteResult, error) {
	r, err := svc.repo(kind)
	if err != nil {
		return nil, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	return r.Write(ctx, req)
}

func (svc *service) Delete(ctx context.Context, kind types.Kind, slug string) (*content.DeleteResult, error) {
	r, err := svc.repo(kind)
	if err != nil {
		return nil, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	return r.Delete(ctx, slug)
}

func (svc *service) Search(ctx context.Context, query string, kind types.Kind, limit int) ([]types.SearchResult, error) {
	if kind != "" {
		r, err := svc.repo(kind)
		if err != nil {
			return nil, err
		}
		return r.Search(ctx, query, limit)
	}

	resp, err := svc.searcher.Search(ctx, searcher.Request{
		Query:     query,
		Limit:     limit,
		Threshold: content.SearchThreshold,
	})
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (svc *service) GenerateUUID(ctx context.Context) string {
	return content.NewUUID()
}

func (svc *service) Reindex(ctx context.Context, kind types.Kind, onlyNew bool) (map[types.Kind]int, error) {
	kinds := []types.Kind{types.KindGuide, types.KindContext}
	if kind != "" {
		if _, err := svc.repo(kind); err != nil {
			return nil, err
		}
		kinds = []types.Kind{kind}
	}

	counts := make(map[types.Kind]int, len(kinds))
	err := svc.indexer.Exclusive(func() error {
		svc.mu.Lock()
		defer svc.mu.Unlock()

		for _, k := range kinds {
			n, err := svc.repos[k].ReindexAll(ctx, onlyNew)
			counts[k] = n
			if err != nil {
				return err
			}
		}
		return nil
	})
	return counts, err
}

func (svc *service) Status(ctx context.Context) (*Status, error) {
	idx, err := svc.indexer.Status(ctx)
	if err != nil {
		return nil, err
	}

	files := make(map[types.Kind]int, len(svc.repos))
	for k, r := range svc.repos {
		n, err := r.CountFiles()
		if err != nil {
			return nil, err
		}
		files[k] = n
	}

	return &Status{
		KnowledgeBase: svc.cfg.KnowledgeBase,
		Provider:      svc.embedder.Provider(),
		Model:         svc.embedder.Model(),
		BuildMode:     storage.BuildMode,
		Driver:        storage.DriverName,
		Files:         files,
		Index:         idx,
	}, nil
}
