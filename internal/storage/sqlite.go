package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/memex-mcp/pkg/types"
)

// ErrNotFound is returned when a requested record doesn't exist
var ErrNotFound = fmt.Errorf("record %w", types.ErrNotFound)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// A single connection serialises writers and keeps PRAGMAs in effect
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for maintenance tasks
func (s *SQLiteStorage) DB() *sql.DB {
	return s.db
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// withTx runs fn inside a transaction, rolling back on error
func (s *SQLiteStorage) withTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// timeLayout is fixed width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const recordColumns = `id, type, kind, slug, uuid, name, title, tags, content, vector, dimension,
	metadata, parent_id, chunk_index, created_at, updated_at, model`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord reads one row selected with recordColumns
func scanRecord(row rowScanner) (*types.Record, error) {
	var (
		rec                  types.Record
		typ, kind            string
		uuid, parentID       sql.NullString
		chunkIndex           sql.NullInt64
		tags, metadata       string
		vector               []byte
		dimension            int
		createdAt, updatedAt string
	)

	err := row.Scan(&rec.ID, &typ, &kind, &rec.Slug, &uuid, &rec.Name, &rec.Title, &tags,
		&rec.Content, &vector, &dimension, &metadata, &parentID, &chunkIndex,
		&createdAt, &updatedAt, &rec.Model)
	if err != nil {
		return nil, err
	}

	rec.Type = types.RecordType(typ)
	rec.Kind = types.Kind(kind)
	rec.UUID = uuid.String
	rec.ParentID = parentID.String
	rec.ChunkIndex = int(chunkIndex.Int64)
	rec.Vector = deserializeVector(vector)

	if err := json.Unmarshal([]byte(tags), &rec.Tags); err != nil {
		return nil, fmt.Errorf("record %s: decode tags: %w", rec.ID, err)
	}
	if rec.Tags == nil {
		rec.Tags = []string{}
	}

	if rec.Type == types.RecordDocument {
		rec.Metadata = make(map[string]any)
		if err := json.Unmarshal([]byte(metadata), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("record %s: decode metadata: %w", rec.ID, err)
		}
	} else {
		rec.Section = &types.SectionRef{}
		if err := json.Unmarshal([]byte(metadata), rec.Section); err != nil {
			return nil, fmt.Errorf("record %s: decode section: %w", rec.ID, err)
		}
	}

	if rec.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("record %s: parse created_at: %w", rec.ID, err)
	}
	if rec.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("record %s: parse updated_at: %w", rec.ID, err)
	}

	return &rec, nil
}

// encodeJSON marshals without HTML escaping so non-ASCII text and symbols
// are stored literally
func encodeJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// Document operations

// insertRecordWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) insertRecordWithQuerier(ctx context.Context, q querier, rec *types.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := encodeJSON(tags)
	if err != nil {
		return fmt.Errorf("record %s: encode tags: %w", rec.ID, err)
	}

	var meta any = rec.Metadata
	if rec.Section != nil {
		meta = rec.Section
	} else if rec.Metadata == nil {
		meta = map[string]any{}
	}
	metaJSON, err := encodeJSON(meta)
	if err != nil {
		return fmt.Errorf("record %s: encode metadata: %w", rec.ID, err)
	}

	var uuid, parentID sql.NullString
	var chunkIndex sql.NullInt64
	if rec.Type == types.RecordDocument && rec.UUID != "" {
		uuid = sql.NullString{String: rec.UUID, Valid: true}
	}
	if rec.Type == types.RecordChunk {
		parentID = sql.NullString{String: rec.ParentID, Valid: true}
		chunkIndex = sql.NullInt64{Int64: int64(rec.ChunkIndex), Valid: true}
	}

	query := `
		INSERT OR REPLACE INTO embeddings (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = q.ExecContext(ctx, query,
		rec.ID, string(rec.Type), string(rec.Kind), rec.Slug, uuid, rec.Name, rec.Title, tagsJSON,
		rec.Content, serializeVector(rec.Vector), len(rec.Vector), metaJSON, parentID, chunkIndex,
		rec.CreatedAt.UTC().Format(timeLayout), rec.UpdatedAt.UTC().Format(timeLayout), rec.Model)
	if err != nil {
		return fmt.Errorf("failed to insert record %s: %w", rec.ID, err)
	}
	return nil
}

// ReplaceDocument atomically replaces everything indexed for doc.Slug. Rows
// of any other slug holding the same uuid are removed, stale sections and
// chunks are dropped. A zero doc.CreatedAt keeps the original created_at.
func (s *SQLiteStorage) ReplaceDocument(ctx context.Context, doc *types.Record, parts []*types.Record) error {
	if doc == nil || doc.Type != types.RecordDocument {
		return fmt.Errorf("%w: ReplaceDocument requires a document record", types.ErrValidation)
	}
	for _, p := range parts {
		if p.Slug != doc.Slug {
			return fmt.Errorf("%w: part %s belongs to %s, not %s", types.ErrValidation, p.ID, p.Slug, doc.Slug)
		}
	}

	return s.withTx(ctx, func(q querier) error {
		if doc.CreatedAt.IsZero() {
			createdAt, err := s.preservedCreatedAt(ctx, q, doc)
			if err != nil {
				return err
			}
			if createdAt.IsZero() {
				createdAt = time.Now()
			}
			doc.CreatedAt = createdAt
		}
		if doc.UpdatedAt.IsZero() {
			doc.UpdatedAt = time.Now()
		}

		if doc.UUID != "" {
			stale, err := s.slugsForUUIDWithQuerier(ctx, q, doc.UUID, doc.Slug)
			if err != nil {
				return err
			}
			for _, slug := range stale {
				if _, err := s.deleteSlugWithQuerier(ctx, q, slug); err != nil {
					return err
				}
			}
		}

		if _, err := s.deleteSlugWithQuerier(ctx, q, doc.Slug); err != nil {
			return err
		}

		if err := s.insertRecordWithQuerier(ctx, q, doc); err != nil {
			return err
		}
		for _, p := range parts {
			p.Kind = doc.Kind
			p.CreatedAt, p.UpdatedAt = doc.CreatedAt, doc.UpdatedAt
			if err := s.insertRecordWithQuerier(ctx, q, p); err != nil {
				return err
			}
		}
		return nil
	})
}

// preservedCreatedAt finds the creation time of the document being replaced,
// first by uuid and then by slug
func (s *SQLiteStorage) preservedCreatedAt(ctx context.Context, q querier, doc *types.Record) (time.Time, error) {
	var raw string
	var err error
	if doc.UUID != "" {
		err = q.QueryRowContext(ctx,
			`SELECT created_at FROM embeddings WHERE type = 'document' AND uuid = ?`, doc.UUID).Scan(&raw)
	}
	if doc.UUID == "" || errors.Is(err, sql.ErrNoRows) {
		err = q.QueryRowContext(ctx,
			`SELECT created_at FROM embeddings WHERE type = 'document' AND slug = ?`, doc.Slug).Scan(&raw)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read created_at: %w", err)
	}
	return time.Parse(timeLayout, raw)
}

func (s *SQLiteStorage) slugsForUUIDWithQuerier(ctx context.Context, q querier, uuid, exceptSlug string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT slug FROM embeddings WHERE type = 'document' AND uuid = ? AND slug != ?`, uuid, exceptSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to look up uuid %s: %w", uuid, err)
	}
	defer func() { _ = rows.Close() }()

	slugs := make([]string, 0, 1)
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, err
		}
		slugs = append(slugs, slug)
	}
	return slugs, rows.Err()
}

// getDocumentWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getDocumentWithQuerier(ctx context.Context, q querier, column, value string) (*types.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM embeddings WHERE type = 'document' AND ` + column + ` = ?`
	rec, err := scanRecord(q.QueryRowContext(ctx, query, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *SQLiteStorage) GetDocument(ctx context.Context, slug string) (*types.Record, error) {
	return s.getDocumentWithQuerier(ctx, s.querier(), "slug", slug)
}

func (s *SQLiteStorage) GetDocumentByUUID(ctx context.Context, uuid string) (*types.Record, error) {
	return s.getDocumentWithQuerier(ctx, s.querier(), "uuid", uuid)
}

// ListDocuments returns document records, newest first. An empty kind lists
// every collection.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, kind types.Kind) ([]*types.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM embeddings WHERE type = 'document'`
	args := []interface{}{}
	if kind != "" {
		query += " AND kind = ?"
		args = append(args, string(kind))
	}
	query += " ORDER BY created_at DESC, id ASC"

	return s.queryRecords(ctx, query, args...)
}

// ListParts returns the sections and chunks of slug in insertion order
func (s *SQLiteStorage) ListParts(ctx context.Context, slug string) ([]*types.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM embeddings WHERE slug = ? AND type != 'document' ORDER BY rowid`
	return s.queryRecords(ctx, query, slug)
}

func (s *SQLiteStorage) queryRecords(ctx context.Context, query string, args ...interface{}) ([]*types.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]*types.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SQLiteStorage) Exists(ctx context.Context, slug string) (bool, error) {
	return s.exists(ctx, "slug", slug)
}

func (s *SQLiteStorage) ExistsByUUID(ctx context.Context, uuid string) (bool, error) {
	return s.exists(ctx, "uuid", uuid)
}

func (s *SQLiteStorage) exists(ctx context.Context, column, value string) (bool, error) {
	var n int
	query := `SELECT COUNT(*) FROM embeddings WHERE type = 'document' AND ` + column + ` = ?`
	if err := s.db.QueryRowContext(ctx, query, value).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check %s: %w", column, err)
	}
	return n > 0, nil
}

// deleteSlugWithQuerier removes the document and every section or chunk of
// slug. The id prefix match is escaped so '_' is literal.
func (s *SQLiteStorage) deleteSlugWithQuerier(ctx context.Context, q querier, slug string) (int, error) {
	prefix := escapeLike(slug+"_section_") + "%"
	result, err := q.ExecContext(ctx,
		`DELETE FROM embeddings WHERE slug = ? OR id = ? OR id LIKE ? ESCAPE '\'`,
		slug, slug, prefix)
	if err != nil {
		return 0, fmt.Errorf("failed to delete %s: %w", slug, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *SQLiteStorage) DeleteSlug(ctx context.Context, slug string) (int, error) {
	return s.deleteSlugWithQuerier(ctx, s.querier(), slug)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Search operations

func (s *SQLiteStorage) SearchVector(ctx context.Context, vector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	return searchVector(ctx, s.querier(), vector, limit, filters)
}

// Status operations

// GetStatus returns record counts and health information
func (s *SQLiteStorage) GetStatus(ctx context.Context) (*Status, error) {
	status := &Status{
		ByKind:     make(map[types.Kind]int),
		Dimensions: make([]int, 0),
	}

	rows, err := s.db.QueryContext(ctx, `SELECT type, kind, COUNT(*) FROM embeddings GROUP BY type, kind`)
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	for rows.Next() {
		var typ, kind string
		var n int
		if err := rows.Scan(&typ, &kind, &n); err != nil {
			_ = rows.Close()
			return nil, err
		}
		switch types.RecordType(typ) {
		case types.RecordDocument:
			status.Documents += n
			status.ByKind[types.Kind(kind)] += n
		case types.RecordSection:
			status.Sections += n
		case types.RecordChunk:
			status.Chunks += n
		}
	}
	_ = rows.Close()

	if status.Models, err = s.distinctStrings(ctx, `SELECT DISTINCT model FROM embeddings WHERE model != '' ORDER BY model`); err != nil {
		return nil, err
	}

	dimRows, err := s.db.QueryContext(ctx, `SELECT DISTINCT dimension FROM embeddings ORDER BY dimension`)
	if err != nil {
		return nil, fmt.Errorf("failed to read dimensions: %w", err)
	}
	for dimRows.Next() {
		var d int
		if err := dimRows.Scan(&d); err != nil {
			_ = dimRows.Close()
			return nil, err
		}
		status.Dimensions = append(status.Dimensions, d)
	}
	_ = dimRows.Close()

	var pageCount, pageSize int
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	if status.SchemaVer, err = SchemaVersion(ctx, s.db); err != nil {
		return nil, err
	}

	total := status.Documents + status.Sections + status.Chunks
	status.Health = HealthStatus{
		DatabaseAccessible:  true,
		EmbeddingsAvailable: total > 0,
		ConsistentDimension: len(status.Dimensions) <= 1,
	}

	return status, nil
}

func (s *SQLiteStorage) distinctStrings(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]string, 0)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
