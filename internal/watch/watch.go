package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/dshills/memex-mcp/pkg/types"
)

// DefaultDebounce is how long the watcher waits for a burst of edits to
// settle before reindexing
const DefaultDebounce = 750 * time.Millisecond

// Reindexer rebuilds the index of one collection
type Reindexer interface {
	Reindex(ctx context.Context, kind types.Kind, onlyNew bool) (map[types.Kind]int, error)
}

// Watcher reindexes a collection after its markdown files change on disk
type Watcher struct {
	dirs     map[string]types.Kind
	target   Reindexer
	debounce time.Duration
	log      *zap.Logger
}

// New watches the collection directories in dirs
func New(dirs map[types.Kind]string, target Reindexer, debounce time.Duration, log *zap.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if log == nil {
		log = zap.NewNop()
	}

	byDir := make(map[string]types.Kind, len(dirs))
	for kind, dir := range dirs {
		byDir[filepath.Clean(dir)] = kind
	}

	return &Watcher{
		dirs:     byDir,
		target:   target,
		debounce: debounce,
		log:      log,
	}
}

// Run blocks until ctx is cancelled. Missing directories are created so
// they can be watched.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	for dir := range w.dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	pending := make(map[types.Kind]bool)
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			kind, ok := w.handleEvent(event)
			if !ok {
				continue
			}
			pending[kind] = true
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))

		case <-timer.C:
			for kind := range pending {
				if w.reindex(ctx, kind) {
					delete(pending, kind)
				}
			}
			// A bulk run owned by someone else: try again later
			if len(pending) > 0 {
				timer.Reset(w.debounce)
			}
		}
	}
}

// reindex reports whether kind is done, successfully or not
func (w *Watcher) reindex(ctx context.Context, kind types.Kind) bool {
	counts, err := w.target.Reindex(ctx, kind, false)
	if errors.Is(err, types.ErrIndexingInProgress) {
		return false
	}
	if err != nil {
		w.log.Error("reindex after change failed", zap.String("kind", string(kind)), zap.Error(err))
		return true
	}
	w.log.Info("reindexed after change", zap.String("kind", string(kind)), zap.Int("indexed", counts[kind]))
	return true
}

// handleEvent maps a filesystem event onto the collection it touches.
// Hidden files, which include in-flight atomic writes, and permission
// changes are ignored.
func (w *Watcher) handleEvent(event fsnotify.Event) (types.Kind, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return "", false
	}

	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") || filepath.Ext(name) != ".md" {
		return "", false
	}

	kind, ok := w.dirs[filepath.Dir(filepath.Clean(event.Name))]
	return kind, ok
}
