package fs

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cortexmem/engine/cortexerr"
	"github.com/cortexmem/engine/uri"
)

type memEntry struct {
	content   string
	updatedAt time.Time
}

// MemFSConfig configures MemFS.
type MemFSConfig struct {
	// TenantID, when non-empty, is transparently prefixed onto every
	// physical key so two tenants never observe each other's content
	// (spec §3 invariant 5).
	TenantID string

	// Now is overridable for tests. Defaults to time.Now.
	Now func() time.Time
}

// MemFS is the default, in-process FileSystem backend. It is a flat map of
// physical key -> content, mirroring the teacher's InMemoryMemoryStore
// (agent/memory/inmemory_store.go) but keyed on URIs instead of cache keys.
type MemFS struct {
	mu      sync.RWMutex
	entries map[string]memEntry

	tenantID string
	now      func() time.Time
	logger   *zap.Logger
}

// NewMemFS creates an empty MemFS.
func NewMemFS(cfg MemFSConfig, logger *zap.Logger) *MemFS {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &MemFS{
		entries:  make(map[string]memEntry),
		tenantID: cfg.TenantID,
		now:      now,
		logger:   logger.With(zap.String("component", "fs_memfs")),
	}
}

func (f *MemFS) key(uriStr string) (string, uri.URI, error) {
	u, err := uri.Parse(uriStr)
	if err != nil {
		return "", uri.URI{}, err
	}
	return uri.TenantPath(f.tenantID, u), u, nil
}

func (f *MemFS) Read(ctx context.Context, uriStr string) (string, time.Time, error) {
	if err := ctx.Err(); err != nil {
		return "", time.Time{}, err
	}
	key, _, err := f.key(uriStr)
	if err != nil {
		return "", time.Time{}, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	ent, ok := f.entries[key]
	if !ok {
		return "", time.Time{}, cortexerr.Newf(cortexerr.NotFound, "uri %q not found", uriStr)
	}
	return ent.content, ent.updatedAt, nil
}

func (f *MemFS) Write(ctx context.Context, uriStr string, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, _, err := f.key(uriStr)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = memEntry{content: content, updatedAt: f.now()}
	return nil
}

func (f *MemFS) Delete(ctx context.Context, uriStr string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, _, err := f.key(uriStr)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, key)
	return nil
}

func (f *MemFS) Exists(ctx context.Context, uriStr string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	key, u, err := f.key(uriStr)
	if err != nil {
		return false, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if _, ok := f.entries[key]; ok {
		return true, nil
	}
	prefix := key + "/"
	for k := range f.entries {
		if strings.HasPrefix(k, prefix) {
			return true, nil
		}
	}
	_ = u
	return false, nil
}

func (f *MemFS) List(ctx context.Context, uriStr string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, u, err := f.key(uriStr)
	if err != nil {
		return nil, err
	}
	prefix := key + "/"

	f.mu.RLock()
	defer f.mu.RUnlock()

	seen := make(map[string]Entry)
	for k, ent := range f.entries {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rel := strings.TrimPrefix(k, prefix)
		parts := strings.SplitN(rel, "/", 2)
		name := parts[0]
		childURI := u.Join(name).String()
		if len(parts) == 1 {
			seen[name] = Entry{URI: childURI, IsDir: false, Size: len(ent.content), UpdatedAt: ent.updatedAt}
		} else if _, ok := seen[name]; !ok {
			seen[name] = Entry{URI: childURI, IsDir: true}
		}
	}

	out := make([]Entry, 0, len(seen))
	for _, e := range seen {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })
	return out, nil
}

func (f *MemFS) ListRecursive(ctx context.Context, uriStr string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, u, err := f.key(uriStr)
	if err != nil {
		return nil, err
	}
	prefix := key + "/"

	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]Entry, 0)
	for k, ent := range f.entries {
		if k != key && !strings.HasPrefix(k, prefix) {
			continue
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(k, key), "/")
		var childURI uri.URI
		if rel == "" {
			childURI = u
		} else {
			childURI = u.Join(strings.Split(rel, "/")...)
		}
		out = append(out, Entry{URI: childURI.String(), IsDir: false, Size: len(ent.content), UpdatedAt: ent.updatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })
	return out, nil
}
