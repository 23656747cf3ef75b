package storage

import (
	"context"

	"github.com/dshills/memex-mcp/pkg/types"
)

// Storage persists knowledge base records and answers vector queries
type Storage interface {
	// Document operations
	ReplaceDocument(ctx context.Context, doc *types.Record, parts []*types.Record) error
	GetDocument(ctx context.Context, slug string) (*types.Record, error)
	GetDocumentByUUID(ctx context.Context, uuid string) (*types.Record, error)
	ListDocuments(ctx context.Context, kind types.Kind) ([]*types.Record, error)
	Exists(ctx context.Context, slug string) (bool, error)
	ExistsByUUID(ctx context.Context, uuid string) (bool, error)
	DeleteSlug(ctx context.Context, slug string) (deleted int, err error)

	// Section and chunk operations
	ListParts(ctx context.Context, slug string) ([]*types.Record, error)

	// Search operations
	SearchVector(ctx context.Context, vector []float32, limit int, filters *SearchFilters) ([]VectorResult, error)

	// Status operations
	GetStatus(ctx context.Context) (*Status, error)

	// Database operations
	Close() error
}

// SearchFilters narrows vector search
type SearchFilters struct {
	Types    []types.RecordType // Empty means every record type
	Kind     types.Kind         // Empty means every collection
	MinScore float64            // Inclusive similarity threshold
}

// VectorResult is a record with its similarity to the query
type VectorResult struct {
	Record *types.Record
	Score  float64
}

// Status contains statistics about the index
type Status struct {
	Documents   int                `json:"documents"`
	Sections    int                `json:"sections"`
	Chunks      int                `json:"chunks"`
	ByKind      map[types.Kind]int `json:"by_kind"`
	Models      []string           `json:"models"`
	Dimensions  []int              `json:"dimensions"`
	IndexSizeMB float64            `json:"index_size_mb"`
	SchemaVer   string             `json:"schema_version"`
	Health      HealthStatus       `json:"health"`
}

// HealthStatus represents the health of the index
type HealthStatus struct {
	DatabaseAccessible  bool `json:"database_accessible"`
	EmbeddingsAvailable bool `json:"embeddings_available"`
	ConsistentDimension bool `json:"consistent_dimension"`
}
