package uri

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/cortexmem/engine/cortexerr"
)

// tenantClaims is the minimal claim set a multi-tenant deployment embeds in
// an access token to identify the caller's isolation boundary (spec §3
// "A tenant prefix may be applied transparently by the filesystem layer").
type tenantClaims struct {
	TenantID string `json:"tenant_id"`
	jwt.RegisteredClaims
}

// TenantFromToken extracts the tenant id claim from a signed JWT using the
// given HMAC secret. It never trusts an unsigned or mis-keyed token: a
// validation failure is surfaced as cortexerr.Validation, never silently
// treated as "no tenant".
func TenantFromToken(signed string, hmacSecret []byte) (string, error) {
	claims := &tenantClaims{}
	_, err := jwt.ParseWithClaims(signed, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, cortexerr.New(cortexerr.Validation, "unexpected signing method")
		}
		return hmacSecret, nil
	})
	if err != nil {
		return "", cortexerr.New(cortexerr.Validation, "invalid tenant token").WithCause(err)
	}
	if claims.TenantID == "" {
		return "", cortexerr.New(cortexerr.Validation, "tenant token missing tenant_id claim")
	}
	return claims.TenantID, nil
}

// NewTenantToken signs a tenant-scoped token; used by tests and by
// deployments that mint tokens for their own tenants out-of-band.
func NewTenantToken(tenantID string, hmacSecret []byte) (string, error) {
	claims := tenantClaims{TenantID: tenantID}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(hmacSecret)
	if err != nil {
		return "", cortexerr.New(cortexerr.Other, "sign tenant token").WithCause(err)
	}
	return signed, nil
}
