package manifest

import (
	"errors"
	"strings"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkgdepend/internal/variant"
)

const sampleManifest = `# sample package
set name=pkg.fmri value=pkg://test/web/server@1.0,5.11-0.1
set name=variant.arch value=i386 value=sparc
set name=pkg.summary value="a web server"

file 1a2b3c path=usr/bin/server mode=0755 \
    owner=root group=bin
link path=usr/bin/srv target=server variant.arch=i386
depend fmri=pkg:/library/libc type=require
`

// ---------- Action parsing tests ----------

func TestParseActionAttributes(t *testing.T) {
	action, err := ParseAction(`file abc123 path=usr/lib/libfoo.so.1 mode=0555 pkg.debug.x="a b" pkg.debug.x=c`)
	require.NoError(t, err)
	assert.Equal(t, ActionFile, action.Type)
	assert.Equal(t, "abc123", action.Hash)
	assert.Equal(t, "usr/lib/libfoo.so.1", action.Key())
	assert.Equal(t, []string{"a b", "c"}, action.Attrs.List("pkg.debug.x"))
}

func TestParseActionQuotedEscapes(t *testing.T) {
	action, err := ParseAction(`set name=pkg.description value="say \"hi\" now" alt='it\'s'`)
	require.NoError(t, err)
	assert.Equal(t, `say "hi" now`, action.Attrs.Get("value"))
	assert.Equal(t, `it's`, action.Attrs.Get("alt"))
}

func TestParseActionMalformed(t *testing.T) {
	tests := []struct {
		line   string
		reason string
	}{
		{line: "file", reason: "no attributes"},
		{line: "frobnicate path=x", reason: "unknown action type"},
		{line: "dir =usr", reason: "missing key"},
		{line: "dir path=", reason: "missing value"},
		{line: "dir path", reason: "missing value"},
		{line: `dir pa"th=x`, reason: "quote in key"},
		{line: `set name="unterminated`, reason: "unfinished quoted value"},
		{line: "dir path =x", reason: "whitespace in key"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			_, err := ParseAction(tt.line)
			require.Error(t, err)
			var malformed *MalformedActionError
			require.True(t, errors.As(err, &malformed))
			assert.Contains(t, malformed.Reason, tt.reason)
		})
	}
}

// ---------- Manifest tests ----------

func TestParseManifest(t *testing.T) {
	m, err := Parse("server.mf", strings.NewReader(sampleManifest))
	require.NoError(t, err)
	require.Len(t, m.Actions, 6)
	assert.Equal(t, "pkg://test/web/server@1.0,5.11-0.1", m.Name())
	assert.Equal(t, variant.Template{"variant.arch": {"i386", "sparc"}}, m.Variants())
	assert.Equal(t, []string{"a web server"}, m.Attr("pkg.summary"))

	file := m.Actions[3]
	assert.Equal(t, "root", file.Attrs.Get("owner"))
	assert.Equal(t, "usr/bin/server", file.Path())

	link := m.ActionsByType(ActionLink)
	require.Len(t, link, 1)
	assert.Equal(t, variant.Template{"variant.arch": {"i386"}}, link[0].Variants())

	f, err := m.FMRI()
	require.NoError(t, err)
	assert.Equal(t, "web/server", f.Stem())

	assert.Equal(t, -1, m.Lines[0].Action)
	assert.Contains(t, m.Lines[5].Text, "\n")
}

func TestParseManifestRejectsMalformedWholesale(t *testing.T) {
	_, err := Parse("bad.mf", strings.NewReader("dir path=usr\nfile\n"))
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err))
	var builder *errbuilder.ErrBuilder
	require.True(t, errors.As(err, &builder))
	assert.Contains(t, builder.Msg, "line 2")
}

func TestManifestFMRIFallsBackToFileName(t *testing.T) {
	m := New("/tmp/proto/foo.mf", []Action{{Type: ActionDir, Attrs: Attrs{"path": {"usr"}}}})
	f, err := m.FMRI()
	require.NoError(t, err)
	assert.Equal(t, "foo.mf", f.Stem())
	assert.Equal(t, "/tmp/proto/foo.mf", m.Name())
}

// ---------- Round trip tests ----------

func TestRoundTripWithAppendedDepends(t *testing.T) {
	m, err := Parse("server.mf", strings.NewReader(sampleManifest))
	require.NoError(t, err)

	dep := NewAction(ActionDepend)
	dep.Attrs.Set("fmri", "pkg:/library/libfoo@1.0")
	dep.Attrs.Set("type", "require")
	dep.Attrs.Set("pkg.debug.depend.file", "libfoo.so.1")
	dep.Attrs.Set("pkg.debug.depend.reason", "usr/bin/server")
	dep.Attrs.Set("variant.arch", "sparc")
	resolved := m.WithActions(dep)

	reparsed, err := Parse("server.mf.res", strings.NewReader(resolved.Text()))
	require.NoError(t, err)
	if diff := cmp.Diff(resolved.Actions, reparsed.Actions); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, reparsed.Actions, len(m.Actions)+1)
	assert.Equal(t, resolved.Text(), reparsed.Text())
}

func TestFormatQuotesWhenNeeded(t *testing.T) {
	action := NewAction(ActionSet)
	action.Attrs.Set("name", "pkg.description")
	action.Attrs.Set("value", `quote " and \ slash`)
	action.Attrs.Add("empty", "")
	line := Format(action)
	assert.Equal(t, `set empty="" name=pkg.description value="quote \" and \\ slash"`, line)

	parsed, err := ParseAction(line)
	require.NoError(t, err)
	assert.Equal(t, action.Attrs, parsed.Attrs)
}
