// Package indexer turns compiled markdown documents into vector index rows.
//
// # Basic Usage
//
//	idx := indexer.New(store, emb, chunker.New(2000, 200), logger)
//
//	stats, err := idx.Index(ctx, "git-workflow", uuid, compiled)
//	fmt.Printf("%d sections, %d chunks in %v\n", stats.Sections, stats.Chunks, stats.Duration)
//
// # Indexing Pipeline
//
//  1. Document: the plain text body, capped at MaxDocumentRunes, or the
//     title when the body is blank
//  2. Sections: "title\n\ncontent" for every non-blank section
//  3. Chunks: a section longer than the chunk size is replaced by its
//     overlapping windows, each pointing back at the section id
//  4. Embed: all texts in one batch, before anything is written
//  5. Store: storage.ReplaceDocument swaps the old rows for the new ones in
//     one transaction
//
// Blank sections produce no record and no embedding call.
//
// # Bulk Runs
//
// Exclusive guards whole-collection reindexing. A second caller gets
// types.ErrIndexingInProgress immediately.
package indexer
