package content

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/memex-mcp/internal/compiler"
	"github.com/dshills/memex-mcp/internal/indexer"
	"github.com/dshills/memex-mcp/internal/searcher"
	"github.com/dshills/memex-mcp/pkg/types"
)

const (
	// FindThreshold is the minimum similarity for a free-text Find
	FindThreshold = 0.6
	// SearchThreshold is the minimum similarity for listed search results
	SearchThreshold = 0.5
)

// Collection names one of the knowledge base collections
type Collection struct {
	Kind types.Kind
	Dir  string // directory under the knowledge base root
}

var (
	Guides   = Collection{Kind: types.KindGuide, Dir: "guides"}
	Contexts = Collection{Kind: types.KindContext, Dir: "contexts"}
)

// CollectionFor returns the collection of kind
func CollectionFor(kind types.Kind) (Collection, error) {
	switch kind {
	case types.KindGuide:
		return Guides, nil
	case types.KindContext:
		return Contexts, nil
	}
	return Collection{}, fmt.Errorf("%w: unknown collection %q", types.ErrValidation, kind)
}

// WriteRequest creates or replaces a document
type WriteRequest struct {
	UUID      string
	Title     string
	Content   string
	Tags      []string
	Overwrite bool
}

// WriteResult describes a completed write
type WriteResult struct {
	UUID    string
	Slug    string
	Title   string
	File    string // relative to the knowledge base root
	Tags    []string
	Created bool
}

// DeleteResult describes a completed delete
type DeleteResult struct {
	Slug  string
	Title string
	Kind  types.Kind
}

// Repository manages the markdown files of one collection and keeps the
// index in step with them
type Repository struct {
	collection Collection
	root       string
	dir        string

	compiler *compiler.Compiler
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
	logger   *zap.Logger

	now func() time.Time
}

// New creates a repository for collection under the knowledge base root
func New(collection Collection, root string, c *compiler.Compiler, idx *indexer.Indexer, s *searcher.Searcher, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{
		collection: collection,
		root:       root,
		dir:        filepath.Join(root, collection.Dir),
		compiler:   c,
		indexer:    idx,
		searcher:   s,
		logger:     logger.With(zap.String("kind", string(collection.Kind))),
		now:        time.Now,
	}
}

// Kind returns the collection kind
func (r *Repository) Kind() types.Kind {
	return r.collection.Kind
}

// Dir returns the collection directory
func (r *Repository) Dir() string {
	return r.dir
}

// Get returns the document with uuid. Documents of another collection are
// reported as not found.
func (r *Repository) Get(ctx context.Context, uuid string) (*types.Document, error) {
	if err := ValidateUUID(uuid); err != nil {
		return nil, err
	}
	doc, err := r.indexer.GetByUUID(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if doc.Kind != r.collection.Kind {
		return nil, fmt.Errorf("%s %s: %w", r.collection.Kind, uuid, types.ErrNotFound)
	}
	r.loadSections(doc)
	return doc, nil
}

// loadSections compiles the file of doc for its sections. A missing file
// leaves them unset.
func (r *Repository) loadSections(doc *types.Document) {
	data, err := os.ReadFile(r.path(doc.Slug))
	if err != nil {
		r.logger.Debug("sections unavailable", zap.String("slug", doc.Slug), zap.Error(err))
		return
	}
	doc.Sections = r.compiler.Compile(string(data), doc.Slug+".md").Sections
}

// Find returns the single best match for a free-text query
func (r *Repository) Find(ctx context.Context, query string) (*types.Document, error) {
	resp, err := r.searcher.Search(ctx, searcher.Request{
		Query:     query,
		Limit:     1,
		Threshold: FindThreshold,
		Kind:      r.collection.Kind,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("no %s matches %q: %w", r.collection.Kind, query, types.ErrNotFound)
	}

	hit := resp.Results[0]
	if hit.UUID != "" {
		return r.indexer.GetByUUID(ctx, hit.UUID)
	}
	return &types.Document{
		Slug:     hit.Slug,
		Kind:     hit.Kind,
		Name:     hit.Name,
		Title:    hit.Title,
		Tags:     hit.Tags,
		Content:  hit.Content,
		Metadata: hit.Metadata,
	}, nil
}

// List returns summaries of every indexed document in the collection
func (r *Repository) List(ctx context.Context) ([]types.Summary, error) {
	docs, err := r.indexer.ListAll(ctx, r.collection.Kind)
	if err != nil {
		return nil, err
	}
	out := make([]types.Summary, len(docs))
	for i, d := range docs {
		out[i] = d.Summarize()
	}
	return out, nil
}

// Search runs a parent-promoted search restricted to this collection
func (r *Repository) Search(ctx context.Context, query string, limit int) ([]types.SearchResult, error) {
	resp, err := r.searcher.Search(ctx, searcher.Request{
		Query:     query,
		Limit:     limit,
		Threshold: SearchThreshold,
		Kind:      r.collection.Kind,
	})
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Write creates or replaces the file of req.UUID and indexes it
func (r *Repository) Write(ctx context.Context, req WriteRequest) (*WriteResult, error) {
	if err := r.validateWrite(req); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	slug := compiler.Slugify(title)
	if slug == "" {
		return nil, fmt.Errorf("%w: title %q produces an empty slug", types.ErrValidation, title)
	}
	tags := normalizeTags(req.Tags)

	existing, err := r.indexer.GetByUUID(ctx, req.UUID)
	if err != nil && !errors.Is(err, types.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		if existing.Kind != r.collection.Kind {
			return nil, fmt.Errorf("uuid %s belongs to a %s: %w", req.UUID, existing.Kind, types.ErrAlreadyExists)
		}
		if !req.Overwrite {
			return nil, fmt.Errorf("%s %s (%s): %w", r.collection.Kind, req.UUID, existing.Slug, types.ErrAlreadyExists)
		}
	}

	path := r.path(slug)
	if owner, ok := r.fileOwner(path); ok && owner != req.UUID && !req.Overwrite {
		return nil, fmt.Errorf("%s/%s.md is held by %s: %w", r.collection.Dir, slug, owner, types.ErrAlreadyExists)
	}

	// Slugs share one index across collections
	holder, err := r.indexer.GetBySlug(ctx, slug)
	if err != nil && !errors.Is(err, types.ErrNotFound) {
		return nil, err
	}
	if holder != nil && holder.UUID != req.UUID && (holder.Kind != r.collection.Kind || !req.Overwrite) {
		return nil, fmt.Errorf("slug %s is held by %s %s: %w", slug, holder.Kind, holder.UUID, types.ErrAlreadyExists)
	}

	fm := frontmatter{
		UUID:    req.UUID,
		Title:   title,
		Kind:    r.collection.Kind,
		Tags:    tags,
		Date:    r.now(),
		Updated: existing != nil,
	}
	text := fm.render(req.Content)

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", r.dir, err)
	}
	if err := writeFileAtomic(path, []byte(text)); err != nil {
		return nil, err
	}

	compiled := r.compiler.Compile(text, filepath.Base(path))
	if _, err := r.indexer.Index(ctx, slug, req.UUID, compiled); err != nil {
		return nil, err
	}

	// A title change moves the file. The index rows of the old slug were
	// replaced by Index through the shared uuid.
	if existing != nil && existing.Slug != slug {
		old := r.path(existing.Slug)
		if err := os.Remove(old); err != nil && !errors.Is(err, fs.ErrNotExist) {
			r.logger.Warn("failed to remove renamed file", zap.String("file", old), zap.Error(err))
		}
	}

	r.logger.Info("document written",
		zap.String("uuid", req.UUID),
		zap.String("slug", slug),
		zap.Bool("created", existing == nil),
	)

	return &WriteResult{
		UUID:    req.UUID,
		Slug:    slug,
		Title:   title,
		File:    filepath.ToSlash(filepath.Join(r.collection.Dir, slug+".md")),
		Tags:    tags,
		Created: existing == nil,
	}, nil
}

func (r *Repository) validateWrite(req WriteRequest) error {
	if err := ValidateUUID(req.UUID); err != nil {
		return err
	}
	if err := ValidateTitle(req.Title); err != nil {
		return err
	}
	if err := ValidateContent(req.Content); err != nil {
		return err
	}
	return ValidateTags(req.Tags)
}

// fileOwner returns the frontmatter uuid of an existing file
func (r *Repository) fileOwner(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	meta, _ := compiler.ParseFrontmatter(string(data))
	owner, _ := meta["uuid"].(string)
	return owner, true
}

// Delete removes the file of slug and its index rows
func (r *Repository) Delete(ctx context.Context, slug string) (*DeleteResult, error) {
	if err := ValidateSlug(slug); err != nil {
		return nil, err
	}

	path, err := r.resolve(slug)
	if errors.Is(err, types.ErrNotFound) {
		return r.deleteOrphan(ctx, slug)
	}
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	compiled := r.compiler.Compile(string(data), filepath.Base(path))

	if err := os.Remove(path); err != nil {
		return nil, fmt.Errorf("failed to remove %s: %w", path, err)
	}
	n, err := r.indexer.Delete(ctx, slug)
	if err != nil {
		return nil, err
	}

	r.logger.Info("document deleted", zap.String("slug", slug), zap.Int("records", n))
	return &DeleteResult{Slug: slug, Title: compiled.Title(), Kind: r.collection.Kind}, nil
}

// deleteOrphan removes the index rows of a document whose file was deleted
// outside the knowledge base tools
func (r *Repository) deleteOrphan(ctx context.Context, slug string) (*DeleteResult, error) {
	doc, err := r.indexer.GetBySlug(ctx, slug)
	if errors.Is(err, types.ErrNotFound) || (err == nil && doc.Kind != r.collection.Kind) {
		return nil, fmt.Errorf("%s %s: %w", r.collection.Kind, slug, types.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	n, err := r.indexer.Delete(ctx, slug)
	if err != nil {
		return nil, err
	}
	r.logger.Info("orphaned document removed from index", zap.String("slug", slug), zap.Int("records", n))
	return &DeleteResult{Slug: slug, Title: doc.Title, Kind: r.collection.Kind}, nil
}

// resolve maps slug to its file and confirms the real path stays inside the
// collection directory
func (r *Repository) resolve(slug string) (string, error) {
	dir, err := filepath.Abs(r.dir)
	if err != nil {
		return "", err
	}
	if real, err := filepath.EvalSymlinks(dir); err == nil {
		dir = real
	}

	path := filepath.Join(dir, slug+".md")
	real, err := filepath.EvalSymlinks(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%s %s: %w", r.collection.Kind, slug, types.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	rel, err := filepath.Rel(dir, real)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %s resolves outside %s", types.ErrPathTraversal, slug, r.collection.Dir)
	}
	return real, nil
}

// ReindexAll compiles every markdown file of the collection and indexes it.
// With onlyNew, files whose uuid is already indexed are skipped. A full run
// also drops indexed documents of the collection whose file is gone. A
// missing directory indexes nothing. Callers serialise bulk runs with
// indexer.Exclusive.
func (r *Repository) ReindexAll(ctx context.Context, onlyNew bool) (int, error) {
	start := time.Now()

	files, err := filepath.Glob(filepath.Join(r.dir, "*.md"))
	if err != nil {
		return 0, err
	}
	sort.Strings(files)

	compiled := make([]*types.CompiledDocument, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", file, err)
			}
			doc := r.compiler.Compile(string(data), filepath.Base(file))
			if doc.UUID() == "" {
				return fmt.Errorf("%s/%s: %w", r.collection.Dir, filepath.Base(file), types.ErrMissingUUID)
			}
			// The directory decides the collection
			doc.Metadata["type"] = string(r.collection.Kind)
			compiled[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	slugs := make(map[string]bool, len(files))
	owners := make(map[string]string, len(files))
	for i, doc := range compiled {
		name := filepath.Base(files[i])
		if prev, ok := owners[doc.UUID()]; ok {
			return 0, fmt.Errorf("%w: %s/%s and %s/%s share uuid %s",
				types.ErrValidation, r.collection.Dir, prev, r.collection.Dir, name, doc.UUID())
		}
		owners[doc.UUID()] = name
		slugs[compiler.Slugify(strings.TrimSuffix(name, ".md"))] = true
	}

	indexed := 0
	for i, doc := range compiled {
		if onlyNew {
			ok, err := r.indexer.ExistsByUUID(ctx, doc.UUID())
			if err != nil {
				return indexed, err
			}
			if ok {
				continue
			}
		}

		slug := compiler.Slugify(strings.TrimSuffix(filepath.Base(files[i]), ".md"))
		if _, err := r.indexer.Index(ctx, slug, doc.UUID(), doc); err != nil {
			return indexed, fmt.Errorf("%s: %w", filepath.Base(files[i]), err)
		}
		indexed++
	}

	removed := 0
	if !onlyNew {
		if removed, err = r.prune(ctx, slugs); err != nil {
			return indexed, err
		}
	}

	r.logger.Info("collection reindexed",
		zap.Int("files", len(files)),
		zap.Int("indexed", indexed),
		zap.Int("removed", removed),
		zap.Duration("duration", time.Since(start)),
	)
	return indexed, nil
}

// prune drops indexed documents of the collection whose slug has no file
func (r *Repository) prune(ctx context.Context, present map[string]bool) (int, error) {
	docs, err := r.indexer.ListAll(ctx, r.collection.Kind)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, doc := range docs {
		if present[doc.Slug] {
			continue
		}
		if _, err := r.indexer.Delete(ctx, doc.Slug); err != nil {
			return removed, err
		}
		r.logger.Debug("stale document removed from index", zap.String("slug", doc.Slug))
		removed++
	}
	return removed, nil
}

// CountFiles returns the number of markdown files in the collection
func (r *Repository) CountFiles() (int, error) {
	files, err := filepath.Glob(filepath.Join(r.dir, "*.md"))
	if err != nil {
		return 0, err
	}
	return len(files), nil
}

func (r *Repository) path(slug string) string {
	return filepath.Join(r.dir, slug+".md")
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, strings.TrimSpace(t))
	}
	return out
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".memex-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}
