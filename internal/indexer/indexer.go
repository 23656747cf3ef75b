package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/memex-mcp/internal/chunker"
	"github.com/dshills/memex-mcp/internal/embedder"
	"github.com/dshills/memex-mcp/internal/storage"
	"github.com/dshills/memex-mcp/pkg/types"
)

// MaxDocumentRunes caps the text embedded for a whole document
const MaxDocumentRunes = 4000

// Indexer coordinates the indexing pipeline: compiled document -> embed -> store
type Indexer struct {
	storage  storage.Storage
	embedder embedder.Embedder
	chunker  *chunker.Chunker
	logger   *zap.Logger

	lock IndexLock
}

// Statistics contains statistics about one Index call
type Statistics struct {
	Slug     string
	Sections int
	Chunks   int
	Skipped  int // blank sections
	Model    string
	Duration time.Duration
}

// New creates a new Indexer instance
func New(store storage.Storage, emb embedder.Embedder, ch *chunker.Chunker, logger *zap.Logger) *Indexer {
	if ch == nil {
		ch = chunker.New(chunker.DefaultSize, chunker.DefaultOverlap)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		storage:  store,
		embedder: emb,
		chunker:  ch,
		logger:   logger,
	}
}

// pending is a record waiting for its vector
type pending struct {
	record *types.Record
	text   string
}

// Index embeds a compiled document with its sections and replaces whatever
// was stored for slug. Every vector is computed before the first write, so a
// provider failure leaves the index untouched.
func (idx *Indexer) Index(ctx context.Context, slug, uuid string, doc *types.CompiledDocument) (*Statistics, error) {
	if slug == "" {
		return nil, fmt.Errorf("%w: slug is required", types.ErrValidation)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: document is required", types.ErrValidation)
	}

	start := time.Now()
	stats := &Statistics{Slug: slug}
	kind := doc.Kind()
	if uuid == "" {
		uuid = doc.UUID()
	}

	now := time.Now()
	docRecord := &types.Record{
		ID:        slug,
		Type:      types.RecordDocument,
		Kind:      kind,
		Slug:      slug,
		UUID:      uuid,
		Name:      doc.Name,
		Title:     doc.Title(),
		Tags:      doc.Tags(),
		Content:   doc.Content,
		Metadata:  documentMetadata(doc, kind),
		CreatedAt: createdAt(doc),
		UpdatedAt: now,
	}

	work := []pending{{record: docRecord, text: documentText(doc, slug)}}
	for i, section := range doc.Sections {
		if strings.TrimSpace(section.Content) == "" {
			stats.Skipped++
			continue
		}
		parts := idx.sectionRecords(slug, doc, i, section)
		for _, p := range parts {
			if p.record.Type == types.RecordChunk {
				stats.Chunks++
			} else {
				stats.Sections++
			}
		}
		work = append(work, parts...)
	}

	texts := make([]string, len(work))
	for i, w := range work {
		texts[i] = w.text
	}
	resp, err := idx.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to embed %s: %w", slug, err)
	}
	if len(resp.Embeddings) != len(work) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d",
			types.ErrEmbeddingRejected, len(work), len(resp.Embeddings))
	}

	for i, w := range work {
		w.record.Vector = resp.Embeddings[i].Vector
		w.record.Model = resp.Embeddings[i].Model
	}
	stats.Model = resp.Model

	parts := make([]*types.Record, 0, len(work)-1)
	for _, w := range work[1:] {
		parts = append(parts, w.record)
	}

	if err := idx.storage.ReplaceDocument(ctx, docRecord, parts); err != nil {
		return nil, fmt.Errorf("failed to store %s: %w", slug, err)
	}

	stats.Duration = time.Since(start)
	idx.logger.Debug("document indexed",
		zap.String("slug", slug),
		zap.String("uuid", uuid),
		zap.String("kind", string(kind)),
		zap.Int("records", len(work)),
		zap.Duration("duration", stats.Duration),
	)
	return stats, nil
}

// sectionRecords builds one section record, or one chunk record per window
// when the section text is longer than the chunk size
func (idx *Indexer) sectionRecords(slug string, doc *types.CompiledDocument, i int, section types.Section) []pending {
	text := section.Title + "\n\n" + section.Content
	sectionID := types.SectionID(slug, i)

	base := types.Record{
		Slug:  slug,
		Name:  doc.Name,
		Title: section.Title,
		Tags:  doc.Tags(),
	}

	if !idx.chunker.NeedsSplit(text) {
		rec := base
		rec.ID = sectionID
		rec.Type = types.RecordSection
		rec.Content = text
		rec.Section = &types.SectionRef{ParentSlug: slug, SectionIndex: i, SectionTitle: section.Title}
		return []pending{{record: &rec, text: text}}
	}

	out := make([]pending, 0, 4)
	for c := range idx.chunker.Chunks(text) {
		rec := base
		rec.ID = types.ChunkID(sectionID, c.Index)
		rec.Type = types.RecordChunk
		rec.Content = c.Text
		rec.ParentID = sectionID
		rec.ChunkIndex = c.Index
		rec.Section = &types.SectionRef{ParentSlug: slug, SectionIndex: i, SectionTitle: section.Title, IsChunk: true}
		out = append(out, pending{record: &rec, text: c.Text})
	}
	return out
}

// documentText is the text embedded for the document record
func documentText(doc *types.CompiledDocument, slug string) string {
	text := strings.TrimSpace(doc.Content)
	if text == "" {
		text = strings.TrimSpace(doc.Title())
	}
	if text == "" {
		text = slug
	}
	if r := []rune(text); len(r) > MaxDocumentRunes {
		text = string(r[:MaxDocumentRunes])
	}
	return text
}

// createdAt reads the frontmatter created date. The zero time lets storage
// keep the stored creation time or fall back to now.
func createdAt(doc *types.CompiledDocument) time.Time {
	raw, _ := doc.Metadata["created"].(string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func documentMetadata(doc *types.CompiledDocument, kind types.Kind) map[string]any {
	meta := make(map[string]any, len(doc.Metadata)+4)
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	titles := make([]string, len(doc.Sections))
	for i, s := range doc.Sections {
		titles[i] = s.Title
	}
	meta["type"] = string(kind)
	meta["tags"] = doc.Tags()
	meta["filename"] = doc.Filename
	meta["sections"] = titles
	meta["compiled_at"] = doc.CompiledAt.UTC().Format(time.RFC3339)
	return meta
}

// Delete removes the document and every section or chunk of slug
func (idx *Indexer) Delete(ctx context.Context, slug string) (int, error) {
	n, err := idx.storage.DeleteSlug(ctx, slug)
	if err != nil {
		return 0, err
	}
	idx.logger.Debug("document removed from index", zap.String("slug", slug), zap.Int("records", n))
	return n, nil
}

// GetByUUID returns the indexed document with uuid
func (idx *Indexer) GetByUUID(ctx context.Context, uuid string) (*types.Document, error) {
	rec, err := idx.storage.GetDocumentByUUID(ctx, uuid)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, fmt.Errorf("document %s: %w", uuid, types.ErrNotFound)
		}
		return nil, err
	}
	return types.DocumentFromRecord(rec), nil
}

// GetBySlug returns the indexed document stored under slug
func (idx *Indexer) GetBySlug(ctx context.Context, slug string) (*types.Document, error) {
	rec, err := idx.storage.GetDocument(ctx, slug)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, fmt.Errorf("document %s: %w", slug, types.ErrNotFound)
		}
		return nil, err
	}
	return types.DocumentFromRecord(rec), nil
}

// ListAll returns indexed documents, newest first. An empty kind lists all.
func (idx *Indexer) ListAll(ctx context.Context, kind types.Kind) ([]*types.Document, error) {
	records, err := idx.storage.ListDocuments(ctx, kind)
	if err != nil {
		return nil, err
	}
	docs := make([]*types.Document, len(records))
	for i, r := range records {
		docs[i] = types.DocumentFromRecord(r)
	}
	return docs, nil
}

func (idx *Indexer) Exists(ctx context.Context, slug string) (bool, error) {
	return idx.storage.Exists(ctx, slug)
}

func (idx *Indexer) ExistsByUUID(ctx context.Context, uuid string) (bool, error) {
	return idx.storage.ExistsByUUID(ctx, uuid)
}

// Status reports index statistics
func (idx *Indexer) Status(ctx context.Context) (*storage.Status, error) {
	return idx.storage.GetStatus(ctx)
}

// Exclusive runs fn while holding the index lock. It fails with
// types.ErrIndexingInProgress instead of waiting when another bulk run holds it.
func (idx *Indexer) Exclusive(fn func() error) error {
	if !idx.lock.TryAcquire() {
		return types.ErrIndexingInProgress
	}
	defer idx.lock.Release()
	return fn()
}
