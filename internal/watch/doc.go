// Package watch keeps the index in step with edits made outside memex.
//
// A Watcher listens on the guides and contexts directories with fsnotify.
// Changes to *.md files are debounced per collection and then trigger a full
// reindex of that collection. Writes made through the tools land as a
// rename of a hidden temp file and cause one extra, idempotent reindex.
package watch
