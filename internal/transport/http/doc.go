// Package http serves the knowledge base as a small REST API with gin.
//
//	GET    /v1/guides              list guides
//	GET    /v1/guides/:uuid        fetch one guide
//	PUT    /v1/guides/:uuid        create or overwrite a guide
//	DELETE /v1/guides/:slug        delete a guide
//	GET    /v1/search?q=&type=&limit=
//	POST   /v1/uuid
//	GET    /v1/status
//	POST   /v1/reindex?type=&only_new=
//
// The same routes exist under /v1/contexts. Bodies use the JSON envelopes
// of the MCP tools; errors map their category onto a status code.
package http
