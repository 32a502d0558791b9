package fs

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cortexmem/engine/cortexerr"
	"github.com/cortexmem/engine/uri"
)

// uriFileRow is the GORM model backing GormFS, grounded on the teacher's
// connection-pool-managed GORM usage (internal/database/pool.go). Kept
// deliberately narrow: one row per URI, last-writer-wins on Content.
type uriFileRow struct {
	URI       string `gorm:"primaryKey;size:1024"`
	TenantID  string `gorm:"index;size:128"`
	Content   string `gorm:"type:text"`
	UpdatedAt time.Time
}

func (uriFileRow) TableName() string { return "uri_files" }

// GormFS is the durable FileSystem backend for deployments that need the
// URI namespace to survive process restarts, grounded on the teacher's
// GORM-based connection pooling (internal/database/pool.go). It is safe
// for concurrent use: GORM/database-sql serialize access per connection.
type GormFS struct {
	db       *gorm.DB
	tenantID string
	logger   *zap.Logger
}

// NewGormFS migrates the uri_files table (if absent) and returns a GormFS
// bound to db. Callers are expected to have already opened db via
// gorm.Open with the sqlite or postgres driver.
func NewGormFS(db *gorm.DB, tenantID string, logger *zap.Logger) (*GormFS, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if db == nil {
		return nil, cortexerr.New(cortexerr.Config, "gorm db is required")
	}
	if err := db.AutoMigrate(&uriFileRow{}); err != nil {
		return nil, cortexerr.New(cortexerr.Config, "migrate uri_files table").WithCause(err)
	}
	return &GormFS{
		db:       db,
		tenantID: tenantID,
		logger:   logger.With(zap.String("component", "fs_gormfs")),
	}, nil
}

// HealthCheck pings the underlying *sql.DB connection, so callers can probe
// durable-backend reachability the same way vectorstore.Store.HealthCheck
// probes the vector store.
func (g *GormFS) HealthCheck(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return cortexerr.New(cortexerr.Config, "gormfs: underlying sql.DB unavailable").WithCause(err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return cortexerr.New(cortexerr.Other, "gormfs: database ping failed").WithCause(err)
	}
	return nil
}

func (g *GormFS) physicalKey(uriStr string) (string, uri.URI, error) {
	u, err := uri.Parse(uriStr)
	if err != nil {
		return "", uri.URI{}, err
	}
	return uri.TenantPath(g.tenantID, u), u, nil
}

func (g *GormFS) Read(ctx context.Context, uriStr string) (string, time.Time, error) {
	key, _, err := g.physicalKey(uriStr)
	if err != nil {
		return "", time.Time{}, err
	}
	var row uriFileRow
	err = g.db.WithContext(ctx).Where("uri = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", time.Time{}, cortexerr.Newf(cortexerr.NotFound, "uri %q not found", uriStr)
	}
	if err != nil {
		return "", time.Time{}, cortexerr.New(cortexerr.VectorStore, "read uri_files").WithCause(err)
	}
	return row.Content, row.UpdatedAt, nil
}

func (g *GormFS) Write(ctx context.Context, uriStr string, content string) error {
	key, _, err := g.physicalKey(uriStr)
	if err != nil {
		return err
	}
	row := uriFileRow{URI: key, TenantID: g.tenantID, Content: content, UpdatedAt: time.Now().UTC()}
	err = g.db.WithContext(ctx).
		Where("uri = ?", key).
		Assign(uriFileRow{Content: content, UpdatedAt: row.UpdatedAt}).
		FirstOrCreate(&row).Error
	if err != nil {
		return cortexerr.New(cortexerr.VectorStore, "write uri_files").WithCause(err)
	}
	return nil
}

func (g *GormFS) Delete(ctx context.Context, uriStr string) error {
	key, _, err := g.physicalKey(uriStr)
	if err != nil {
		return err
	}
	if err := g.db.WithContext(ctx).Where("uri = ?", key).Delete(&uriFileRow{}).Error; err != nil {
		return cortexerr.New(cortexerr.VectorStore, "delete uri_files").WithCause(err)
	}
	return nil
}

func (g *GormFS) Exists(ctx context.Context, uriStr string) (bool, error) {
	key, _, err := g.physicalKey(uriStr)
	if err != nil {
		return false, err
	}
	var count int64
	if err := g.db.WithContext(ctx).Model(&uriFileRow{}).
		Where("uri = ? OR uri LIKE ?", key, key+"/%").
		Count(&count).Error; err != nil {
		return false, cortexerr.New(cortexerr.VectorStore, "exists uri_files").WithCause(err)
	}
	return count > 0, nil
}

func (g *GormFS) List(ctx context.Context, uriStr string) ([]Entry, error) {
	key, u, err := g.physicalKey(uriStr)
	if err != nil {
		return nil, err
	}
	var rows []uriFileRow
	if err := g.db.WithContext(ctx).Where("uri LIKE ?", key+"/%").Order("uri").Find(&rows).Error; err != nil {
		return nil, cortexerr.New(cortexerr.VectorStore, "list uri_files").WithCause(err)
	}

	seen := make(map[string]Entry)
	prefix := key + "/"
	for _, row := range rows {
		rel := strings.TrimPrefix(row.URI, prefix)
		parts := strings.SplitN(rel, "/", 2)
		name := parts[0]
		childURI := u.Join(name).String()
		if len(parts) == 1 {
			seen[name] = Entry{URI: childURI, IsDir: false, Size: len(row.Content), UpdatedAt: row.UpdatedAt}
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

func (g *GormFS) ListRecursive(ctx context.Context, uriStr string) ([]Entry, error) {
	key, u, err := g.physicalKey(uriStr)
	if err != nil {
		return nil, err
	}
	var rows []uriFileRow
	if err := g.db.WithContext(ctx).
		Where("uri = ? OR uri LIKE ?", key, key+"/%").
		Order("uri").Find(&rows).Error; err != nil {
		return nil, cortexerr.New(cortexerr.VectorStore, "list_recursive uri_files").WithCause(err)
	}
	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		rel := strings.TrimPrefix(strings.TrimPrefix(row.URI, key), "/")
		var childURI uri.URI
		if rel == "" {
			childURI = u
		} else {
			childURI = u.Join(strings.Split(rel, "/")...)
		}
		out = append(out, Entry{URI: childURI.String(), IsDir: false, Size: len(row.Content), UpdatedAt: row.UpdatedAt})
	}
	return out, nil
}
