package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/dshills/memex-mcp/internal/content"
	"github.com/dshills/memex-mcp/pkg/types"
)

func LoggingMiddleware(log *zap.Logger) ServiceMiddleware {
	log = log.With(
		zap.String("service", "memex"),
	)

	return func(next Service) Service {
		log.Info("service initialized")

		return &loggingMiddleware{
			log:  log,
			next: next,
		}
	}
}

type loggingMiddleware struct {
	log  *zap.Logger
	next Service
}

func (mw *loggingMiddleware) Close() error {
	log := mw.log.With(
		zap.String("action", "close"),
	)

	err := mw.next.Close()
	if err != nil {
		log.Error(err.Error())
		return err
	}

	log.Info("service closed")
	return nil
}

func (mw *loggingMiddleware) Get(ctx context.Context, kind types.Kind, uuid string) (*types.Document, error) {
	log := mw.log.With(
		zap.String("action", "get"),
		zap.String("kind", string(kind)),
		zap.String("uuid", uuid),
	)

	doc, err := mw.next.Get(ctx, kind, uuid)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Debug("document retrieved", zap.String("slug", doc.Slug))
	return doc, nil
}

func (mw *loggingMiddleware) List(ctx context.Context, kind types.Kind) ([]types.Summary, error) {
	log := mw.log.With(
		zap.String("action", "list"),
		zap.String("kind", string(kind)),
	)

	list, err := mw.next.List(ctx, kind)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Debug("documents listed", zap.Int("total", len(list)))
	return list, nil
}

func (mw *loggingMiddleware) Write(ctx context.Context, kind types.Kind, req content.WriteRequest) (*content.WriteResult, error) {
	log := mw.log.With(
		zap.String("action", "write"),
		zap.String("kind", string(kind)),
		zap.String("uuid", req.UUID),
		zap.Bool("overwrite", req.Overwrite),
	)

	result, err := mw.next.Write(ctx, kind, req)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("document written",
		zap.String("slug", result.Slug),
		zap.Bool("created", result.Created),
	)
	return result, nil
}

func (mw *loggingMiddleware) Delete(ctx context.Context, kind types.Kind, slug string) (*content.DeleteResult, error) {
	log := mw.log.With(
		zap.String("action", "delete"),
		zap.String("kind", string(kind)),
		zap.String("slug", slug),
	)

	result, err := mw.next.Delete(ctx, kind, slug)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("document deleted")
	return result, nil
}

func (mw *loggingMiddleware) Search(ctx context.Context, query string, kind types.Kind, limit int) ([]types.SearchResult, error) {
	log := mw.log.With(
		zap.String("action", "search"),
		zap.String("query", query),
		zap.String("kind", string(kind)),
		zap.Int("limit", limit),
	)

	results, err := mw.next.Search(ctx, query, kind, limit)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Debug("search completed", zap.Int("results", len(results)))
	return results, nil
}

func (mw *loggingMiddleware) GenerateUUID(ctx context.Context) string {
	return mw.next.GenerateUUID(ctx)
}

func (mw *loggingMiddleware) Reindex(ctx context.Context, kind types.Kind, onlyNew bool) (map[types.Kind]int, error) {
	log := mw.log.With(
		zap.String("action", "reindex"),
		zap.String("kind", string(kind)),
		zap.Bool("only_new", onlyNew),
	)

	counts, err := mw.next.Reindex(ctx, kind, onlyNew)
	if err != nil {
		log.Error(err.Error())
		return counts, err
	}

	log.Info("reindex completed", zap.Any("indexed", counts))
	return counts, nil
}

func (mw *loggingMiddleware) Status(ctx context.Context) (*Status, error) {
	status, err := mw.next.Status(ctx)
	if err != nil {
		mw.log.Error(err.Error(), zap.String("action", "status"))
		return nil, err
	}
	return status, nil
}
