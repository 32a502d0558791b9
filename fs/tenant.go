package fs

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cortexmem/engine/uri"
)

// NewMemFSFromToken builds a MemFS whose tenant isolation boundary (spec §3
// invariant 5) comes from a caller-presented signed token rather than a
// trusted bare config string: deployments that accept requests from
// multiple tenants over one process authenticate which tenant a request
// belongs to instead of assuming cfg.TenantID is already correct.
// cfg.TenantID is overwritten with the token's verified tenant_id claim.
func NewMemFSFromToken(cfg MemFSConfig, signedToken string, hmacSecret []byte, logger *zap.Logger) (*MemFS, error) {
	tenantID, err := uri.TenantFromToken(signedToken, hmacSecret)
	if err != nil {
		return nil, err
	}
	cfg.TenantID = tenantID
	return NewMemFS(cfg, logger), nil
}

// NewGormFSFromToken is NewGormFS with the tenant id authenticated from a
// signed token instead of accepted as a bare string.
func NewGormFSFromToken(db *gorm.DB, signedToken string, hmacSecret []byte, logger *zap.Logger) (*GormFS, error) {
	tenantID, err := uri.TenantFromToken(signedToken, hmacSecret)
	if err != nil {
		return nil, err
	}
	return NewGormFS(db, tenantID, logger)
}
