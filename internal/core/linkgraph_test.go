package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkgdepend/internal/fmri"
	"pkgdepend/internal/manifest"
	"pkgdepend/internal/types"
)

func newGraph(t *testing.T, budget int, ms ...*manifest.Manifest) *LinkGraph {
	t.Helper()
	space, universe, err := Universe(ms...)
	require.NoError(t, err)
	var providers []*Provider
	for _, m := range ms {
		f, err := m.FMRI()
		require.NoError(t, err)
		providers = append(providers, NewProvider(m, f, false, space, universe))
	}
	return NewLinkGraph(providers, budget)
}

// ---------- Link graph tests ----------

func TestSubstitute(t *testing.T) {
	tests := []struct {
		prefix   string
		target   string
		rest     []string
		expected string
	}{
		{prefix: "usr/bin", target: "/b/bin", rest: []string{"perl"}, expected: "b/bin/perl"},
		{prefix: "usr/bin", target: "../opt/bin", rest: []string{"perl"}, expected: "opt/bin/perl"},
		{prefix: "lib", target: "usr/lib", rest: []string{"64", "libc.so.1"}, expected: "usr/lib/64/libc.so.1"},
		{prefix: "usr/lib/libc.so", target: "libc.so.1", expected: "usr/lib/libc.so.1"},
		{prefix: "a", target: "../../../etc", rest: []string{"x"}, expected: "etc/x"},
	}
	for _, tt := range tests {
		t.Run(tt.prefix+"->"+tt.target, func(t *testing.T) {
			assert.Equal(t, tt.expected, substitute(tt.prefix, tt.target, tt.rest))
		})
	}
}

func TestLinkGraphResolveRecordsWalk(t *testing.T) {
	b := pkg(t, "b", "link path=usr/lib/libc.so target=libc.so.1", "file path=usr/lib/libc.so.1", "file path=usr/lib/libm.so.2")
	g := newGraph(t, 0, b)
	all := g.providers[0].Space
	scope := Scope{Tier: types.TierBatch}

	direct, uses := g.Resolve("/usr/lib/libm.so.2", all, scope)
	require.Len(t, direct, 1)
	assert.Empty(t, uses)
	assert.Nil(t, direct[0].ViaLinks)

	linked, uses := g.Resolve("usr/lib/libc.so", all, scope)
	require.Len(t, linked, 1)
	assert.Equal(t, "usr/lib/libc.so.1", linked[0].Path)
	assert.Equal(t, []string{"usr/lib/libc.so"}, linked[0].ViaLinks)
	require.Len(t, uses, 1)
	assert.Equal(t, "usr/lib/libc.so", uses[0].Link)
	assert.Equal(t, "usr/lib/libc.so.1", uses[0].Target)
	assert.Equal(t, []int{0}, uses[0].Owners)
}

func TestLinkGraphScopes(t *testing.T) {
	a := pkg(t, "a", "file path=usr/lib/liba.so.1")
	b := pkg(t, "b", "file path=usr/lib/liba.so.1")
	g := newGraph(t, 0, a, b)
	g.providers[1].Image = true
	all := g.providers[0].Space

	self, _ := g.Resolve("usr/lib/liba.so.1", all, Scope{Tier: types.TierSelf, Owner: 1})
	require.Len(t, self, 1)
	assert.Equal(t, 1, self[0].Owner)

	batch, _ := g.Resolve("usr/lib/liba.so.1", all, Scope{Tier: types.TierBatch})
	require.Len(t, batch, 1)
	assert.Equal(t, 0, batch[0].Owner)

	image, _ := g.Resolve("usr/lib/liba.so.1", all, Scope{Tier: types.TierImage})
	assert.Len(t, image, 2)
}

func TestLinkGraphIdenticalLinksDoNotConflict(t *testing.T) {
	b := pkg(t, "b", "link path=usr/bin target=../opt/bin")
	c := pkg(t, "c", "link path=usr/bin target=../opt/bin")
	d := pkg(t, "d", archVariants, "link path=usr/sbin target=../opt/bin variant.arch=i386")
	e := pkg(t, "e", archVariants, "link path=usr/sbin target=../opt/sbin variant.arch=sparc")

	assert.Empty(t, newGraph(t, 0, b, c, d, e).Conflicts())
}

func TestProviderFallsBackToManifestName(t *testing.T) {
	m := parseManifest(t, "proto/unnamed.p5m", "file path=usr/bin/x")
	space, universe, err := Universe(m)
	require.NoError(t, err)
	p := NewProvider(m, fmri.FMRI{}, false, space, universe)
	assert.Equal(t, "proto/unnamed.p5m", p.Name)
	assert.Equal(t, 1, p.Space.Count())
}
