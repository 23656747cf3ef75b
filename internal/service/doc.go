// Package service is the facade every transport drives.
//
// A Service owns one knowledge base: the guides and contexts directories,
// the SQLite index under .vectors and the embedding provider. Mutations are
// serialised so the MCP server and the HTTP API can share one instance.
//
//	svc, err := service.NewService(cfg, log)
//	svc = service.LoggingMiddleware(log)(svc)
//	defer svc.Close()
//
// NewEndpointSet adapts the Service to go-kit endpoints for the HTTP
// transport.
package service
