package service

import (
	"context"
	"errors"

	"github.com/go-kit/kit/endpoint"

	"github.com/dshills/memex-mcp/internal/content"
	"github.com/dshills/memex-mcp/pkg/types"
)

var ErrInvalidRequest = errors.New("invalid request type")

type EndpointSet struct {
	Get          endpoint.Endpoint
	List         endpoint.Endpoint
	Write        endpoint.Endpoint
	Delete       endpoint.Endpoint
	Search       endpoint.Endpoint
	GenerateUUID endpoint.Endpoint
	Reindex      endpoint.Endpoint
	Status       endpoint.Endpoint
}

// NewEndpointSet builds every endpoint of svc
func NewEndpointSet(svc Service) EndpointSet {
	return EndpointSet{
		Get:          GetEndpoint(svc),
		List:         ListEndpoint(svc),
		Write:        WriteEndpoint(svc),
		Delete:       DeleteEndpoint(svc),
		Search:       SearchEndpoint(svc),
		GenerateUUID: GenerateUUIDEndpoint(svc),
		Reindex:      ReindexEndpoint(svc),
		Status:       StatusEndpoint(svc),
	}
}

type GetRequest struct {
	Kind types.Kind
	UUID string
}

func GetEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(GetRequest)
		if !ok {
			return nil, ErrInvalidRequest
		}

		return svc.Get(ctx, req.Kind, req.UUID)
	}
}

func ListEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		kind, ok := request.(types.Kind)
		if !ok {
			return nil, ErrInvalidRequest
		}

		return svc.List(ctx, kind)
	}
}

type WriteRequest struct {
	Kind      types.Kind `json:"-"`
	UUID      string     `json:"-"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Tags      []string   `json:"tags"`
	Overwrite bool       `json:"overwrite"`
}

func WriteEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(WriteRequest)
		if !ok {
			return nil, ErrInvalidRequest
		}

		return svc.Write(ctx, req.Kind, content.WriteRequest{
			UUID:      req.UUID,
			Title:     req.Title,
			Content:   req.Content,
			Tags:      req.Tags,
			Overwrite: req.Overwrite,
		})
	}
}

type DeleteRequest struct {
	Kind types.Kind
	Slug string
}

func DeleteEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(DeleteRequest)
		if !ok {
			return nil, ErrInvalidRequest
		}

		return svc.Delete(ctx, req.Kind, req.Slug)
	}
}

type SearchRequest struct {
	Query string `form:"q" json:"query"`
	Type  string `form:"type" json:"type,omitempty"`
	Limit int    `form:"limit" json:"limit,omitempty"`
}

func SearchEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(SearchRequest)
		if !ok {
			return nil, ErrInvalidRequest
		}

		var kind types.Kind
		if req.Type != "" {
			k, err := types.ParseKind(req.Type)
			if err != nil {
				return nil, err
			}
			kind = k
		}

		return svc.Search(ctx, req.Query, kind, req.Limit)
	}
}

func GenerateUUIDEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		return svc.GenerateUUID(ctx), nil
	}
}

type ReindexRequest struct {
	Kind    types.Kind
	OnlyNew bool
}

func ReindexEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(ReindexRequest)
		if !ok {
			return nil, ErrInvalidRequest
		}

		return svc.Reindex(ctx, req.Kind, req.OnlyNew)
	}
}

func StatusEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		return svc.Status(ctx)
	}
}
