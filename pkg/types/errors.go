package types

import "errors"

// Domain errors. Callers wrap these with %w and test with errors.Is.
var (
	ErrValidation           = errors.New("validation failed")
	ErrNotFound             = errors.New("not found")
	ErrAlreadyExists        = errors.New("already exists")
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
	ErrEmbeddingRejected    = errors.New("embedding provider rejected request")
	ErrMissingUUID          = errors.New("document has no uuid")
	ErrPathTraversal        = errors.New("path traversal rejected")
	ErrIndexingInProgress   = errors.New("indexing already in progress")
)

// Error categories reported to tool callers
const (
	CategoryValidation   = "validation"
	CategoryNotFound     = "not_found"
	CategoryConflict     = "conflict"
	CategoryProvider     = "provider"
	CategoryPrecondition = "precondition"
	CategorySecurity     = "security"
	CategoryRuntime      = "runtime"
)

// ErrorKind is the structured classification of an error
type ErrorKind struct {
	Type     string
	Category string
	Code     int
}

var errorKinds = []struct {
	target error
	kind   ErrorKind
}{
	{ErrValidation, ErrorKind{"ValidationError", CategoryValidation, -32010}},
	{ErrPathTraversal, ErrorKind{"PathTraversal", CategorySecurity, -32011}},
	{ErrNotFound, ErrorKind{"NotFound", CategoryNotFound, -32012}},
	{ErrAlreadyExists, ErrorKind{"AlreadyExists", CategoryConflict, -32013}},
	{ErrIndexingInProgress, ErrorKind{"IndexingInProgress", CategoryConflict, -32014}},
	{ErrMissingUUID, ErrorKind{"MissingUuid", CategoryPrecondition, -32015}},
	{ErrEmbeddingUnavailable, ErrorKind{"EmbeddingUnavailable", CategoryProvider, -32016}},
	{ErrEmbeddingRejected, ErrorKind{"EmbeddingRejected", CategoryProvider, -32017}},
}

// InternalErrorKind classifies errors outside the domain taxonomy
var InternalErrorKind = ErrorKind{"InternalError", CategoryRuntime, -32603}

// Classify maps err onto its ErrorKind. Earlier entries win when an error
// wraps more than one sentinel.
func Classify(err error) ErrorKind {
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.kind
		}
	}
	return InternalErrorKind
}
