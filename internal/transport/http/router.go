package http

import (
	"github.com/gin-gonic/gin"

	"github.com/dshills/memex-mcp/internal/service"
	"github.com/dshills/memex-mcp/pkg/types"
)

// AddRouters registers the REST API. detail adds the Go error chain to
// error responses.
func AddRouters(r *gin.Engine, endpoints service.EndpointSet, detail bool) {
	v1 := r.Group("/v1")

	for _, kind := range []types.Kind{types.KindGuide, types.KindContext} {
		docs := v1.Group("/" + string(kind) + "s")
		{
			docs.GET("", ListHandler(kind, endpoints.List, detail))
			docs.GET("/:uuid", GetHandler(kind, endpoints.Get, detail))
			docs.PUT("/:uuid", WriteHandler(kind, endpoints.Write, detail))
			docs.DELETE("/:slug", DeleteHandler(kind, endpoints.Delete, detail))
		}
	}

	v1.GET("/search", SearchHandler(endpoints.Search, detail))
	v1.POST("/uuid", GenerateUUIDHandler(endpoints.GenerateUUID, detail))
	v1.GET("/status", StatusHandler(endpoints.Status, detail))
	v1.POST("/reindex", ReindexHandler(endpoints.Reindex, detail))
}
