package types

import (
	"fmt"
	"strings"
	"time"
)

// RecordType tags the variant of an indexed record
type RecordType string

const (
	RecordDocument RecordType = "document"
	RecordSection  RecordType = "section"
	RecordChunk    RecordType = "chunk"
)

// Kind names the logical collection a record belongs to
type Kind string

const (
	KindGuide   Kind = "guide"
	KindContext Kind = "context"
)

// ParseKind converts a user supplied collection name into a Kind.
// Plural forms are accepted.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "guide", "guides":
		return KindGuide, nil
	case "context", "contexts":
		return KindContext, nil
	default:
		return "", fmt.Errorf("%w: unknown type %q (expected guide or context)", ErrValidation, s)
	}
}

// SectionRef links a section or chunk record back to its document
type SectionRef struct {
	ParentSlug   string `json:"parent_slug"`
	SectionIndex int    `json:"section_index"`
	SectionTitle string `json:"section_title"`
	IsChunk      bool   `json:"is_chunk,omitempty"`
}

// Record is one row of the vector index
type Record struct {
	// Identification
	ID   string
	Type RecordType
	Kind Kind
	Slug string
	UUID string // documents only

	// Display
	Name  string
	Title string
	Tags  []string

	// Indexed payload
	Content string
	Vector  []float32
	Model   string // embedding model that produced Vector

	// Metadata holds frontmatter and bookkeeping for documents
	Metadata map[string]any
	// Section is set for section and chunk records
	Section *SectionRef

	// Chunk-only fields
	ParentID   string
	ChunkIndex int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsDocument reports whether the record is a document record
func (r *Record) IsDocument() bool {
	return r.Type == RecordDocument
}

// Validate checks the structural invariants of a record
func (r *Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: record id is required", ErrValidation)
	}
	if r.Slug == "" {
		return fmt.Errorf("%w: record %s has no slug", ErrValidation, r.ID)
	}
	if len(r.Vector) == 0 {
		return fmt.Errorf("%w: record %s has no vector", ErrValidation, r.ID)
	}

	switch r.Type {
	case RecordDocument:
		if r.Section != nil {
			return fmt.Errorf("%w: document %s must not reference a section", ErrValidation, r.ID)
		}
	case RecordSection, RecordChunk:
		if r.Section == nil {
			return fmt.Errorf("%w: %s %s has no parent reference", ErrValidation, r.Type, r.ID)
		}
		if r.Type == RecordChunk && r.ParentID == "" {
			return fmt.Errorf("%w: chunk %s has no parent section", ErrValidation, r.ID)
		}
	default:
		return fmt.Errorf("%w: unknown record type %q", ErrValidation, r.Type)
	}
	return nil
}

// SectionID builds the id of the i-th section of a document
func SectionID(slug string, i int) string {
	return fmt.Sprintf("%s_section_%d", slug, i)
}

// ChunkID builds the id of the j-th chunk of a section
func ChunkID(sectionID string, j int) string {
	return fmt.Sprintf("%s_chunk_%d", sectionID, j)
}

// Section is one heading-delimited part of a markdown body
type Section struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// CompiledDocument is the structured form of a markdown file
type CompiledDocument struct {
	Name       string
	Filename   string
	Metadata   map[string]any
	Content    string
	Sections   []Section
	CompiledAt time.Time
}

// Title returns the frontmatter title, falling back to the name
func (d *CompiledDocument) Title() string {
	if t, ok := d.Metadata["title"].(string); ok && t != "" {
		return t
	}
	return d.Name
}

// UUID returns the frontmatter uuid, if any
func (d *CompiledDocument) UUID() string {
	s, _ := d.Metadata["uuid"].(string)
	return s
}

// Tags returns the frontmatter tags as strings
func (d *CompiledDocument) Tags() []string {
	switch v := d.Metadata["tags"].(type) {
	case []string:
		return v
	case []any:
		tags := make([]string, 0, len(v))
		for _, t := range v {
			if s, ok := t.(string); ok && s != "" {
				tags = append(tags, s)
			}
		}
		return tags
	case string:
		if v == "" {
			return []string{}
		}
		return []string{v}
	}
	return []string{}
}

// Kind returns the collection named by the frontmatter type, default guide
func (d *CompiledDocument) Kind() Kind {
	if s, ok := d.Metadata["type"].(string); ok {
		if k, err := ParseKind(s); err == nil {
			return k
		}
	}
	return KindGuide
}
