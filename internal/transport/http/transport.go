package http

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/kit/endpoint"

	"github.com/dshills/memex-mcp/internal/content"
	"github.com/dshills/memex-mcp/internal/service"
	"github.com/dshills/memex-mcp/pkg/types"
)

// statusCodes maps error categories onto HTTP status codes
var statusCodes = map[string]int{
	types.CategoryValidation:   http.StatusBadRequest,
	types.CategorySecurity:     http.StatusBadRequest,
	types.CategoryNotFound:     http.StatusNotFound,
	types.CategoryConflict:     http.StatusConflict,
	types.CategoryPrecondition: http.StatusUnprocessableEntity,
	types.CategoryProvider:     http.StatusBadGateway,
}

func abortWithError(c *gin.Context, err error, detail bool) {
	c.Error(err)

	resp := service.NewErrorResponse(err, c.Request.Method+" "+c.FullPath(), detail)
	status, ok := statusCodes[resp.Error.Details.Category]
	if !ok {
		status = http.StatusInternalServerError
	}
	c.AbortWithStatusJSON(status, &resp)
}

func bindError(err error) error {
	return fmt.Errorf("%w: %v", types.ErrValidation, err)
}

func GetHandler(kind types.Kind, endpoint endpoint.Endpoint, detail bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := service.GetRequest{
			Kind: kind,
			UUID: c.Param("uuid"),
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			abortWithError(c, err, detail)
			return
		}

		doc, ok := resp.(*types.Document)
		if !ok {
			abortWithError(c, service.ErrInvalidRequest, detail)
			return
		}

		payload := service.NewGetResponse(doc)
		c.JSON(http.StatusOK, &payload)
	}
}

func ListHandler(kind types.Kind, endpoint endpoint.Endpoint, detail bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		resp, err := endpoint(ctx, kind)
		if err != nil {
			abortWithError(c, err, detail)
			return
		}

		list, ok := resp.([]types.Summary)
		if !ok {
			abortWithError(c, service.ErrInvalidRequest, detail)
			return
		}

		payload := service.NewListResponse(kind, list)
		c.JSON(http.StatusOK, &payload)
	}
}

func WriteHandler(kind types.Kind, endpoint endpoint.Endpoint, detail bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.WriteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, bindError(err), detail)
			return
		}
		req.Kind = kind
		req.UUID = c.Param("uuid")

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			abortWithError(c, err, detail)
			return
		}

		res, ok := resp.(*content.WriteResult)
		if !ok {
			abortWithError(c, service.ErrInvalidRequest, detail)
			return
		}

		status := http.StatusOK
		if res.Created {
			status = http.StatusCreated
		}

		payload := service.NewWriteResponse(kind, res)
		c.JSON(status, &payload)
	}
}

func DeleteHandler(kind types.Kind, endpoint endpoint.Endpoint, detail bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := service.DeleteRequest{
			Kind: kind,
			Slug: c.Param("slug"),
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			abortWithError(c, err, detail)
			return
		}

		res, ok := resp.(*content.DeleteResult)
		if !ok {
			abortWithError(c, service.ErrInvalidRequest, detail)
			return
		}

		payload := service.NewDeleteResponse(res)
		c.JSON(http.StatusOK, &payload)
	}
}

func SearchHandler(endpoint endpoint.Endpoint, detail bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.SearchRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			abortWithError(c, bindError(err), detail)
			return
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			abortWithError(c, err, detail)
			return
		}

		results, ok := resp.([]types.SearchResult)
		if !ok {
			abortWithError(c, service.ErrInvalidRequest, detail)
			return
		}

		payload := service.NewSearchResponse(req.Query, results)
		c.JSON(http.StatusOK, &payload)
	}
}

func GenerateUUIDHandler(endpoint endpoint.Endpoint, detail bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		resp, err := endpoint(ctx, nil)
		if err != nil {
			abortWithError(c, err, detail)
			return
		}

		id, _ := resp.(string)
		payload := service.UUIDResponse{Success: true, UUID: id}
		c.JSON(http.StatusOK, &payload)
	}
}

func StatusHandler(endpoint endpoint.Endpoint, detail bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		resp, err := endpoint(ctx, nil)
		if err != nil {
			abortWithError(c, err, detail)
			return
		}

		status, ok := resp.(*service.Status)
		if !ok {
			abortWithError(c, service.ErrInvalidRequest, detail)
			return
		}

		payload := service.StatusResponse{Success: true, Status: status}
		c.JSON(http.StatusOK, &payload)
	}
}

type reindexQuery struct {
	Type    string `form:"type"`
	OnlyNew bool   `form:"only_new"`
}

func ReindexHandler(endpoint endpoint.Endpoint, detail bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var query reindexQuery
		if err := c.ShouldBindQuery(&query); err != nil {
			abortWithError(c, bindError(err), detail)
			return
		}

		req := service.ReindexRequest{OnlyNew: query.OnlyNew}
		if query.Type != "" {
			kind, err := types.ParseKind(query.Type)
			if err != nil {
				abortWithError(c, err, detail)
				return
			}
			req.Kind = kind
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			abortWithError(c, err, detail)
			return
		}

		counts, _ := resp.(map[types.Kind]int)
		payload := service.NewReindexResponse(counts)
		c.JSON(http.StatusOK, &payload)
	}
}
