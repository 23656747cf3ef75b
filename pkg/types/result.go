package types

import "time"

// SearchResult is one ranked hit returned by the searcher
type SearchResult struct {
	// Rank is the 1-based position in the result set
	Rank  int
	Score float64

	// Canonical document fields (the hit itself when searching raw)
	ID       string
	Type     RecordType
	Kind     Kind
	Slug     string
	UUID     string
	Name     string
	Title    string
	Tags     []string
	Content  string
	Metadata map[string]any

	// The record that actually matched the query
	MatchedID      string
	MatchedType    RecordType
	MatchedContent string
}

// Document is a fully resolved knowledge base entry
type Document struct {
	UUID      string
	Slug      string
	Kind      Kind
	Name      string
	Title     string
	Tags      []string
	Content   string
	Metadata  map[string]any
	// Sections is filled from the file by content lookups and is nil
	// when only the index was read
	Sections  []Section
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DocumentFromRecord converts a document record into a Document
func DocumentFromRecord(r *Record) *Document {
	return &Document{
		UUID:      r.UUID,
		Slug:      r.Slug,
		Kind:      r.Kind,
		Name:      r.Name,
		Title:     r.Title,
		Tags:      r.Tags,
		Content:   r.Content,
		Metadata:  r.Metadata,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// Summary is the listing form of a document
type Summary struct {
	UUID      string    `json:"uuid"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	Title     string    `json:"title"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created"`
	UpdatedAt time.Time `json:"updated"`
}

// Summarize returns the listing form of the document
func (d *Document) Summarize() Summary {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	return Summary{
		UUID:      d.UUID,
		Slug:      d.Slug,
		Name:      d.Name,
		Title:     d.Title,
		Tags:      tags,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}
