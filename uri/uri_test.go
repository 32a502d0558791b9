package uri_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexmem/engine/uri"
)

func TestParseRoundTrip(t *testing.T) {
	u, err := uri.Parse("cortex://user/u1/preferences/pref_1.md")
	require.NoError(t, err)
	assert.Equal(t, uri.DimensionUser, u.Dimension)
	assert.Equal(t, []string{"u1", "preferences", "pref_1.md"}, u.Segments)
	assert.Equal(t, "cortex://user/u1/preferences/pref_1.md", u.String())
}

func TestParseRejectsUnknownDimension(t *testing.T) {
	_, err := uri.Parse("cortex://bogus/x")
	require.Error(t, err)
}

func TestParseRejectsMissingScheme(t *testing.T) {
	_, err := uri.Parse("http://user/x")
	require.Error(t, err)
}

func TestParseRejectsDotSegments(t *testing.T) {
	_, err := uri.Parse("cortex://user/../etc")
	require.Error(t, err)
}

func TestIsHidden(t *testing.T) {
	assert.True(t, uri.MustParse("cortex://user/u1/.abstract.md").IsHidden())
	assert.False(t, uri.MustParse("cortex://user/u1/overview.md").IsHidden())
}

func TestTenantPathIsolatesTenants(t *testing.T) {
	u := uri.MustParse("cortex://user/u1/preferences/p.md")
	p1 := uri.TenantPath("t1", u)
	p2 := uri.TenantPath("t2", u)
	assert.NotEqual(t, p1, p2)
	assert.Equal(t, u.String(), uri.TenantPath("", u))
}

func TestJoinAndParent(t *testing.T) {
	root := uri.MustParse("cortex://session/thread1")
	child := root.Join("timeline", "2026-07", "29")
	assert.Equal(t, "cortex://session/thread1/timeline/2026-07/29", child.String())

	parent, ok := child.Parent()
	require.True(t, ok)
	assert.Equal(t, "cortex://session/thread1/timeline/2026-07", parent.String())
	assert.Equal(t, "29", child.Name())

	_, ok = uri.MustParse("cortex://session").Parent()
	assert.False(t, ok)
}
