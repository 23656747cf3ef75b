// Package storage provides SQLite-based persistence for the knowledge base
// vector index.
//
// Every indexed unit is one row of the embeddings table:
//   - document: the whole file, keyed by slug and carrying the uuid
//   - section: one heading-delimited part, id "{slug}_section_{i}"
//   - chunk: one window of an oversized section, id "{section}_chunk_{j}"
//
// Vectors are stored as little-endian float32 blobs together with their
// dimension and the model that produced them.
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage(filepath.Join(kb, ".vectors", "embeddings.db"))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	// Replace a document and all of its sections in one transaction
//	err = db.ReplaceDocument(ctx, doc, parts)
//
//	// Rank sections of guides against a query vector
//	results, err := db.SearchVector(ctx, queryVector, 10, &storage.SearchFilters{
//	    Types:    []types.RecordType{types.RecordSection, types.RecordChunk},
//	    Kind:     types.KindGuide,
//	    MinScore: 0.3,
//	})
//
// # Replacement Semantics
//
// ReplaceDocument removes every row of the slug before inserting, so
// sections that disappeared from the file never linger. If the same uuid is
// held under another slug (the file was renamed) those rows go too. A
// document without a CreatedAt keeps the created_at of the row it replaces.
//
// # Build Tags
//
// The default build uses modernc.org/sqlite and needs no C compiler. Build
// with -tags cgo_sqlite to use github.com/mattn/go-sqlite3 instead. Ranking
// is done in Go in both cases.
package storage
