// Package uri implements the cortex:// addressing scheme (spec §3, §6):
// cortex://<dimension>/<path...> with an optional tenant prefix applied
// transparently underneath so two tenants never observe each other's
// content.
package uri

import (
	"strings"

	"github.com/cortexmem/engine/cortexerr"
)

// Scheme is the URI scheme recognized by this package.
const Scheme = "cortex"

// Dimension is a top-level partition of the namespace.
type Dimension string

const (
	DimensionSession   Dimension = "session"
	DimensionUser      Dimension = "user"
	DimensionAgent     Dimension = "agent"
	DimensionResources Dimension = "resources"
)

func (d Dimension) valid() bool {
	switch d {
	case DimensionSession, DimensionUser, DimensionAgent, DimensionResources:
		return true
	default:
		return false
	}
}

// Reserved filenames (spec §6).
const (
	AbstractFile = ".abstract.md"
	OverviewFile = ".overview.md"
	SessionFile  = ".session.json"
)

// URI is a parsed cortex:// reference.
type URI struct {
	Dimension Dimension
	Segments  []string // path segments after the dimension, in order
}

// Parse parses raw into a URI. It rejects anything not of the form
// cortex://<dimension>/<segments...> or whose dimension is unrecognized.
func Parse(raw string) (URI, error) {
	const prefix = Scheme + "://"
	if !strings.HasPrefix(raw, prefix) {
		return URI{}, cortexerr.Newf(cortexerr.Validation, "uri %q: missing %s scheme", raw, prefix)
	}
	rest := strings.TrimPrefix(raw, prefix)
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return URI{}, cortexerr.Newf(cortexerr.Validation, "uri %q: empty path", raw)
	}
	parts := strings.Split(rest, "/")
	dim := Dimension(parts[0])
	if !dim.valid() {
		return URI{}, cortexerr.Newf(cortexerr.Validation, "uri %q: unknown dimension %q", raw, parts[0])
	}
	segs := parts[1:]
	for _, s := range segs {
		if s == "" || s == "." || s == ".." {
			return URI{}, cortexerr.Newf(cortexerr.Validation, "uri %q: invalid path segment %q", raw, s)
		}
	}
	return URI{Dimension: dim, Segments: segs}, nil
}

// MustParse is Parse but panics on error; intended for constant test fixtures.
func MustParse(raw string) URI {
	u, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}

// String renders the URI back to cortex://<dimension>/<segments...> form.
func (u URI) String() string {
	var b strings.Builder
	b.WriteString(Scheme)
	b.WriteString("://")
	b.WriteString(string(u.Dimension))
	for _, s := range u.Segments {
		b.WriteByte('/')
		b.WriteString(s)
	}
	return b.String()
}

// Join appends segments and returns the resulting URI.
func (u URI) Join(segments ...string) URI {
	out := URI{Dimension: u.Dimension, Segments: append(append([]string(nil), u.Segments...), segments...)}
	return out
}

// Parent returns the URI one level up, and false if u is already a
// top-level dimension root.
func (u URI) Parent() (URI, bool) {
	if len(u.Segments) == 0 {
		return URI{}, false
	}
	return URI{Dimension: u.Dimension, Segments: u.Segments[:len(u.Segments)-1]}, true
}

// Name returns the last path segment, or "" for a dimension root.
func (u URI) Name() string {
	if len(u.Segments) == 0 {
		return ""
	}
	return u.Segments[len(u.Segments)-1]
}

// IsHidden reports whether the URI's name starts with ".", the convention
// the layer generator uses to skip layer/session metadata files during
// aggregation (spec §4.4 "Skip entries whose name starts with '.'").
func (u URI) IsHidden() bool {
	return strings.HasPrefix(u.Name(), ".")
}

// TenantPath prepends a tenant segment to a physical storage key so that
// two tenants configured with the same logical URI never collide on disk
// or in a backing table. Tenant isolation is invariant 5 in spec §3.
func TenantPath(tenantID string, u URI) string {
	if tenantID == "" {
		return u.String()
	}
	return Scheme + "://" + "_tenant_" + tenantID + "/" + string(u.Dimension) + "/" + strings.Join(u.Segments, "/")
}
