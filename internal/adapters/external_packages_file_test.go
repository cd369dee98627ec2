package adapters

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkgdepend/internal/types"
	"pkgdepend/tests/testutil"
)

func TestExternalPackagesFileAdapterLoad(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		content  string
		expected []string
	}{
		{
			name:     "plain lines",
			file:     "external",
			content:  "# expected externals\npkg:/system/library\n\n  system/*  # wildcard\n",
			expected: []string{"pkg:/system/library", "system/*"},
		},
		{
			name:     "yaml list",
			file:     "external.yaml",
			content:  "packages:\n  - pkg:/system/library\n  - ' '\n  - runtime/python-*\n",
			expected: []string{"pkg:/system/library", "runtime/python-*"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := testutil.WriteFile(t, t.TempDir(), tt.file, tt.content, 0o644)
			got, err := NewExternalPackagesFileAdapter().Load(path)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.expected, got); diff != "" {
				t.Fatalf("unexpected patterns (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExternalPackagesFileAdapterErrors(t *testing.T) {
	_, err := NewExternalPackagesFileAdapter().Load(filepath.Join(t.TempDir(), "missing"))
	assert.Equal(t, errbuilder.CodeNotFound, errbuilder.CodeOf(err))

	path := testutil.WriteFile(t, t.TempDir(), "bad.yml", "packages: {", 0o644)
	_, err = NewExternalPackagesFileAdapter().Load(path)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
}

// ---------- Report tests ----------

func sampleReport() types.Report {
	return types.Report{
		Command: "resolve",
		Errors: []types.Diagnostic{
			{Kind: "UnresolvedDependency", Severity: types.SeverityError, Path: "a.p5m", Package: "pkg:/a@1.0", Message: "a.p5m has unresolved dependency 'x'."},
		},
		Warnings: []types.Diagnostic{
			{Kind: "UnsupportedDynamicToken", Severity: types.SeverityWarning, Message: "token $FOO"},
		},
		ExternalDeps: []string{"pkg:/system/library@0.5.11"},
		UnusedFMRIs:  []string{"pkg:/unused"},
	}
}

func TestReportWriterAdapterYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report.yaml")

	require.NoError(t, NewReportWriterAdapter().WriteReport(path, sampleReport()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	for _, want := range []string{"command: resolve", "kind: UnresolvedDependency", "severity: warning", "external_deps:", "- pkg:/unused"} {
		assert.Contains(t, text, want)
	}
}

func TestReportWriterAdapterText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")

	require.NoError(t, NewReportWriterAdapter().WriteReport(path, sampleReport()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	expected := []string{
		"error: UnresolvedDependency: a.p5m has unresolved dependency 'x'.",
		"warning: UnsupportedDynamicToken: token $FOO",
		"external: pkg:/system/library@0.5.11",
		"unused: pkg:/unused",
	}
	if diff := cmp.Diff(expected, strings.Split(strings.TrimSpace(string(data)), "\n")); diff != "" {
		t.Fatalf("unexpected report text (-want +got):\n%s", diff)
	}
}

func TestReportWriterAdapterRequiresPath(t *testing.T) {
	err := NewReportWriterAdapter().WriteReport(" ", types.Report{})
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
}

// ---------- Proto area tests ----------

func TestProtoAreaAdapterFirstRootWins(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	testutil.WriteFile(t, second, "usr/bin/a", "second\n", 0o755)
	testutil.WriteFile(t, second, "usr/bin/b", "second\n", 0o755)
	testutil.WriteFile(t, first, "usr/bin/b", "first\n", 0o755)
	require.NoError(t, os.MkdirAll(filepath.Join(first, "usr/bin/a"), 0o755))

	proto := NewProtoAreaAdapter([]string{first, "", second})
	assert.Equal(t, []string{first, second}, proto.Roots())

	a, ok := proto.Locate("usr/bin/a")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(second, "usr/bin/a"), a)

	b, ok := proto.Locate("/usr/bin/b")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(first, "usr/bin/b"), b)

	_, ok = proto.Locate("usr/bin/c")
	assert.False(t, ok)
	_, ok = proto.Locate("")
	assert.False(t, ok)
}

func TestProtoAreaAdapterDefaultsToRoot(t *testing.T) {
	assert.Equal(t, []string{"/"}, NewProtoAreaAdapter(nil).Roots())
}
