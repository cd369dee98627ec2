package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkgdepend/tests/testutil"
)

// ---------- Command tree tests ----------

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCommand()
	names := make([]string, 0, len(root.Commands()))
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	for _, name := range []string{"generate", "resolve"} {
		assert.Contains(t, names, name, "missing subcommand: %s", name)
	}
}

func TestRootCommandVersion(t *testing.T) {
	root := newRootCommand()
	assert.Equal(t, "dev", root.Version)
}

func TestGenerateCommandFlags(t *testing.T) {
	cmd := newGenerateCommand()
	shorthands := map[string]string{
		"keep-internal":   "I",
		"list-unanalyzed": "M",
		"echo-manifest":   "m",
		"proto-dir":       "d",
		"define":          "D",
		"run-path":        "k",
	}
	for name, short := range shorthands {
		flag := cmd.Flags().Lookup(name)
		require.NotNil(t, flag, "missing flag: %s", name)
		assert.Equal(t, short, flag.Shorthand, name)
	}
	for _, name := range []string{"platform", "isalist", "workers", "report"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing flag: %s", name)
	}
}

func TestResolveCommandFlags(t *testing.T) {
	cmd := newResolveCommand()
	shorthands := map[string]string{
		"show-external": "E",
		"echo-manifest": "m",
		"stdout":        "o",
		"skip-image":    "S",
		"verbose":       "v",
		"output-dir":    "d",
		"external":      "e",
		"suffix":        "s",
	}
	for name, short := range shorthands {
		flag := cmd.Flags().Lookup(name)
		require.NotNil(t, flag, "missing flag: %s", name)
		assert.Equal(t, short, flag.Shorthand, name)
	}
	for _, name := range []string{"image-index", "hop-budget", "report"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing flag: %s", name)
	}
}

// ---------- Execution tests ----------

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}, args...))
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestExecuteMissingConfigIsUsageError(t *testing.T) {
	_, _, err := execute(t, "resolve", "a.p5m")
	require.Error(t, err)
	assert.Equal(t, 2, exitCodeForError(err))
}

func TestExecuteGenerateAndResolve(t *testing.T) {
	dir := t.TempDir()
	proto := filepath.Join(dir, "proto")
	testutil.BuildELF(t, filepath.Join(proto, "usr/bin/a"), testutil.ELFOptions{Needed: []string{"libc.so.1"}})
	testutil.WriteFile(t, proto, "usr/share/a/README", "plain text\n", 0o644)
	a := testutil.WriteFile(t, dir, "a.p5m", "set name=pkg.fmri value=pkg://test/a@1.0\nfile path=usr/bin/a mode=0555\nfile path=usr/share/a/README mode=0444\n", 0o644)
	b := testutil.WriteFile(t, dir, "b.p5m", "set name=pkg.fmri value=pkg://test/b@1.0\nfile path=lib/libc.so.1 mode=0444\n", 0o644)
	config := testutil.WriteFile(t, dir, "pkgdepend.yaml", "log_level: error\n", 0o644)

	root := newRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs([]string{"--config", config, "generate", "-m", "-M", "-d", proto, a})
	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Contains(t, stdout.String(), "pkg.debug.depend.file=libc.so.1")
	assert.Contains(t, stderr.String(), "not analyzed")

	generated := testutil.WriteFile(t, dir, "a.dep", stdout.String(), 0o644)
	root = newRootCommand()
	stdout.Reset()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs([]string{"--config", config, "resolve", "-o", generated, b})
	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Contains(t, stdout.String(), "depend fmri=pkg:/b@1.0 type=require")
	assert.False(t, strings.Contains(stdout.String(), "__TBD"))
}

func TestExecuteResolveListsExternalWhenUnresolved(t *testing.T) {
	dir := t.TempDir()
	a := testutil.WriteFile(t, dir, "a.p5m", "set name=pkg.fmri value=pkg://test/a@1.0\n"+
		"file path=usr/bin/a mode=0555\n"+
		"depend fmri=__TBD pkg.debug.depend.file=libc.so.1 pkg.debug.depend.path=lib pkg.debug.depend.reason=usr/bin/a pkg.debug.depend.type=elf type=require\n"+
		"depend fmri=__TBD pkg.debug.depend.file=libgone.so.1 pkg.debug.depend.path=lib pkg.debug.depend.reason=usr/bin/a pkg.debug.depend.type=elf type=require\n", 0o644)
	index := testutil.WriteFile(t, dir, "image.yaml", "packages:\n  - fmri: pkg://solaris/system/library@0.5.11\n    actions: [\"file path=lib/libc.so.1\"]\n", 0o644)
	external := testutil.WriteFile(t, dir, "external", "pkg:/unused\n", 0o644)
	config := testutil.WriteFile(t, dir, "pkgdepend.yaml", "log_level: error\n", 0o644)

	root := newRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs([]string{"--config", config, "resolve", "-o", "-E", "-e", external, "--image-index", index, a})
	err := root.ExecuteContext(context.Background())

	require.Error(t, err)
	assert.Equal(t, 1, exitCodeForError(err))
	assert.Contains(t, stderr.String(), "libgone.so.1")
	assert.Contains(t, stdout.String(), "depended on but not listed:\n\tpkg:/system/library@0.5.11\n")
	assert.Contains(t, stdout.String(), "not depended on:\n\tpkg:/unused\n")
}

func TestGenerateArgumentCountIsUsageError(t *testing.T) {
	err := exactArgs(1)(nil, nil)
	require.Error(t, err)
	assert.Equal(t, 2, exitCodeForError(err))
	assert.NoError(t, minArgs(1)(nil, []string{"a", "b"}))
	assert.Error(t, minArgs(1)(nil, nil))
}

// ---------- Helper function tests ----------

func TestResolveString(t *testing.T) {
	tests := []struct {
		name     string
		cmd      *cobra.Command
		value    string
		expected string
	}{
		{
			name:     "nil cmd with value returns value",
			cmd:      nil,
			value:    "explicit",
			expected: "explicit",
		},
		{
			name:     "nil cmd empty value returns empty",
			cmd:      nil,
			value:    "",
			expected: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveString(tt.cmd, tt.value, "test_key", "test-flag")
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestResolveStrings(t *testing.T) {
	got := resolveStrings(nil, []string{"a", "b"}, "test_key", "test-flag")
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestResolveBoolAndInt(t *testing.T) {
	assert.True(t, resolveBool(nil, true, "test_key", "test-flag"))
	assert.Equal(t, 42, resolveInt(nil, 42, "test_key", "test-flag"))
}

func TestFlagChanged(t *testing.T) {
	assert.False(t, flagChanged(nil, "anything"), "nil cmd should return false")

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("myflag", "", "test flag")
	assert.False(t, flagChanged(cmd, "myflag"), "unchanged flag")
	assert.False(t, flagChanged(cmd, "nonexistent"), "nonexistent flag")
	require.NoError(t, cmd.Flags().Set("myflag", "val"))
	assert.True(t, flagChanged(cmd, "myflag"))
}

// ---------- Exit code tests ----------

func TestExitCodeForError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name: "invalid argument",
			err: errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("bad input"),
			expected: 2,
		},
		{
			name: "unresolved dependencies",
			err: errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg("resolve found 1 error(s)"),
			expected: 1,
		},
		{
			name: "missing file",
			err: errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg("manifest file not found"),
			expected: 1,
		},
		{
			name:     "unknown error",
			err:      assert.AnError,
			expected: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, exitCodeForError(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg("something broke")
	assert.Equal(t, "something broke", errorMessage(err))
	assert.Equal(t, assert.AnError.Error(), errorMessage(assert.AnError))
}
