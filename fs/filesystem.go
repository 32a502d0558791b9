// Package fs implements the URI filesystem: the content-addressed
// substrate every other package in the engine reads from and writes to
// (spec §3 "URI namespace", §4.4 Layer Generator, §4.6 Session Manager).
//
// Dynamic dispatch is confined to the FileSystem interface itself (spec §9
// "three seams"); callers never type-switch on a concrete backend.
package fs

import (
	"context"
	"time"
)

// Entry describes one file reachable under a directory listing.
type Entry struct {
	URI       string
	IsDir     bool
	Size      int
	UpdatedAt time.Time
}

// FileSystem is the abstract contract backing the cortex:// namespace.
// Implementations: MemFS (in-process, default) and GormFS (durable,
// SQL-backed). Every method takes a context and may suspend on I/O (spec
// §5); writes are last-writer-wins (spec §5 "Shared resources").
type FileSystem interface {
	// Read returns the content at uri, or a cortexerr.NotFound error.
	Read(ctx context.Context, uriStr string) (string, time.Time, error)

	// Write creates or overwrites the content at uri. It reifies every
	// ancestor directory implicitly: a directory exists once any entry
	// exists under it (spec §3 "directories are reified").
	Write(ctx context.Context, uriStr string, content string) error

	// Delete removes the file at uri. Deleting a nonexistent file is a
	// no-op, matching the teacher's permissive cache/store deletes.
	Delete(ctx context.Context, uriStr string) error

	// Exists reports whether uri resolves to a file or a reified directory.
	Exists(ctx context.Context, uriStr string) (bool, error)

	// List returns the direct children of the directory at uri, sorted by
	// name. It does not recurse.
	List(ctx context.Context, uriStr string) ([]Entry, error)

	// ListRecursive returns every file (not directory) URI reachable under
	// uri, in depth-first order.
	ListRecursive(ctx context.Context, uriStr string) ([]Entry, error)
}
