// Package types provides shared type definitions for the memex knowledge base.
//
// This package defines domain types used across the compiler, indexer,
// searcher and content repositories, plus the error taxonomy surfaced to
// tool callers.
//
// # Records
//
// Record is one row of the vector index. Its Type tags which variant it is:
//
//	doc := &types.Record{ID: "testing-guide", Type: types.RecordDocument, Slug: "testing-guide"}
//	sec := &types.Record{
//	    ID:      "testing-guide_section_0",
//	    Type:    types.RecordSection,
//	    Slug:    "testing-guide",
//	    Section: &types.SectionRef{ParentSlug: "testing-guide", SectionIndex: 0},
//	}
//
// Section and chunk records always carry a SectionRef pointing back at the
// owning document; documents never do.
//
// # Compiled documents
//
// CompiledDocument is the output of the markdown compiler: frontmatter
// metadata, plain-text content and the heading-delimited sections.
//
// # Errors
//
// Operations wrap the sentinels in errors.go with %w. Classify maps any error
// onto the structured kind reported by the tool layer:
//
//	kind := types.Classify(err)
//	fmt.Println(kind.Type, kind.Category, kind.Code)
package types
