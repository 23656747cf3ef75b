package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dshills/memex-mcp/internal/content"
	"github.com/dshills/memex-mcp/pkg/types"
)

// PreviewRunes is the length of content_preview in search results
const PreviewRunes = 200

// Response payloads shared by the MCP tools and the HTTP API. Every payload
// carries success so clients can branch on one field.

type GetResponse struct {
	Success   bool            `json:"success"`
	UUID      string          `json:"uuid"`
	Slug      string          `json:"slug"`
	Type      types.Kind      `json:"type"`
	Name      string          `json:"name"`
	Title     string          `json:"title"`
	Tags      []string        `json:"tags"`
	Metadata  map[string]any  `json:"metadata"`
	Content   string          `json:"content"`
	Sections  []types.Section `json:"sections"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func NewGetResponse(doc *types.Document) GetResponse {
	tags := doc.Tags
	if tags == nil {
		tags = []string{}
	}
	sections := doc.Sections
	if sections == nil {
		sections = sectionTitles(doc.Metadata["sections"])
	}
	return GetResponse{
		Success:   true,
		UUID:      doc.UUID,
		Slug:      doc.Slug,
		Type:      doc.Kind,
		Name:      doc.Name,
		Title:     doc.Title,
		Tags:      tags,
		Metadata:  doc.Metadata,
		Content:   doc.Content,
		Sections:  sections,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

// sectionTitles rebuilds title-only sections from index metadata
func sectionTitles(raw any) []types.Section {
	sections := make([]types.Section, 0)
	switch v := raw.(type) {
	case []string:
		for _, t := range v {
			sections = append(sections, types.Section{Title: t})
		}
	case []any:
		for _, t := range v {
			if title, ok := t.(string); ok {
				sections = append(sections, types.Section{Title: title})
			}
		}
	}
	return sections
}

// ListResponse puts its documents under "guides" or "contexts"
type ListResponse struct {
	Success      bool
	HowToDisplay string
	WhatToDoNext string
	Total        int
	Documents    []types.Summary
	documentsKey string
}

func NewListResponse(kind types.Kind, list []types.Summary) ListResponse {
	if list == nil {
		list = []types.Summary{}
	}
	return ListResponse{
		Success:      true,
		HowToDisplay: fmt.Sprintf("Display the list of %ss in a readable format, including (important) their UUIDs and names.", kind),
		WhatToDoNext: fmt.Sprintf("Use the \"get_%s\" tool to retrieve a specific %s by its UUID.", kind, kind),
		Total:        len(list),
		Documents:    list,
		documentsKey: string(kind) + "s",
	}
}

func (r ListResponse) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"success":         r.Success,
		"how_to_display":  r.HowToDisplay,
		"what_to_do_next": r.WhatToDoNext,
		"total":           r.Total,
		r.documentsKey:    r.Documents,
	})
}

type WriteResponse struct {
	Success bool     `json:"success"`
	Action  string   `json:"action"`
	UUID    string   `json:"uuid"`
	Slug    string   `json:"slug"`
	Title   string   `json:"title"`
	File    string   `json:"file"`
	Tags    []string `json:"tags"`
	Message string   `json:"message"`
}

func NewWriteResponse(kind types.Kind, res *content.WriteResult) WriteResponse {
	action := "updated"
	if res.Created {
		action = "created"
	}
	tags := res.Tags
	if tags == nil {
		tags = []string{}
	}
	return WriteResponse{
		Success: true,
		Action:  action,
		UUID:    res.UUID,
		Slug:    res.Slug,
		Title:   res.Title,
		File:    res.File,
		Tags:    tags,
		Message: fmt.Sprintf("%s %s. Use UUID '%s' to retrieve it.", capitalize(string(kind)), action, res.UUID),
	}
}

type DeleteResponse struct {
	Success bool       `json:"success"`
	Title   string     `json:"title"`
	Slug    string     `json:"slug"`
	Type    types.Kind `json:"type"`
}

func NewDeleteResponse(res *content.DeleteResult) DeleteResponse {
	return DeleteResponse{
		Success: true,
		Title:   res.Title,
		Slug:    res.Slug,
		Type:    res.Kind,
	}
}

type SearchHit struct {
	Score          float64          `json:"score"`
	Type           types.Kind       `json:"type"`
	Slug           string           `json:"slug"`
	UUID           string           `json:"uuid"`
	Name           string           `json:"name"`
	Title          string           `json:"title"`
	Tags           []string         `json:"tags"`
	ContentPreview string           `json:"content_preview"`
	MatchedType    types.RecordType `json:"matched_type"`
}

type SearchResponse struct {
	Success      bool        `json:"success"`
	Query        string      `json:"query"`
	TotalResults int         `json:"total_results"`
	Results      []SearchHit `json:"results"`
}

func NewSearchResponse(query string, results []types.SearchResult) SearchResponse {
	hits := make([]SearchHit, len(results))
	for i, r := range results {
		matched := r.MatchedContent
		if matched == "" {
			matched = r.Content
		}
		tags := r.Tags
		if tags == nil {
			tags = []string{}
		}
		matchedType := r.MatchedType
		if matchedType == "" {
			matchedType = r.Type
		}
		hits[i] = SearchHit{
			Score:          math.Round(r.Score*10000) / 10000,
			Type:           r.Kind,
			Slug:           r.Slug,
			UUID:           r.UUID,
			Name:           r.Name,
			Title:          r.Title,
			Tags:           tags,
			ContentPreview: preview(matched, PreviewRunes),
			MatchedType:    matchedType,
		}
	}
	return SearchResponse{
		Success:      true,
		Query:        query,
		TotalResults: len(hits),
		Results:      hits,
	}
}

type UUIDResponse struct {
	Success bool   `json:"success"`
	UUID    string `json:"uuid"`
}

type ReindexResponse struct {
	Success bool               `json:"success"`
	Indexed map[types.Kind]int `json:"indexed"`
	Total   int                `json:"total"`
}

func NewReindexResponse(counts map[types.Kind]int) ReindexResponse {
	total := 0
	for _, n := range counts {
		total += n
	}
	return ReindexResponse{Success: true, Indexed: counts, Total: total}
}

type StatusResponse struct {
	Success bool `json:"success"`
	*Status
}

type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

type ErrorBody struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Context map[string]string `json:"context,omitempty"`
	Details ErrorDetails      `json:"details"`
}

type ErrorDetails struct {
	Category string      `json:"category"`
	Code     int         `json:"code"`
	Debug    *ErrorDebug `json:"debug,omitempty"`
}

// ErrorDebug exposes the Go error chain, outermost first
type ErrorDebug struct {
	ErrorType string   `json:"error_type"`
	Chain     []string `json:"chain"`
}

// NewErrorResponse classifies err. op names the tool or route that failed.
func NewErrorResponse(err error, op string, detail bool) ErrorResponse {
	kind := types.Classify(err)
	body := ErrorBody{
		Type:    kind.Type,
		Message: err.Error(),
		Details: ErrorDetails{
			Category: kind.Category,
			Code:     kind.Code,
		},
	}
	if op != "" {
		body.Context = map[string]string{"tool": op}
	}
	if detail {
		debug := &ErrorDebug{ErrorType: fmt.Sprintf("%T", err)}
		for e := err; e != nil; e = errors.Unwrap(e) {
			debug.Chain = append(debug.Chain, e.Error())
		}
		body.Details.Debug = debug
	}
	return ErrorResponse{Success: false, Error: body}
}

// preview cuts s to n runes, marking the cut with an ellipsis
func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
