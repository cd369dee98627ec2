package e2e

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkgdepend/tests/testutil"
)

// buildCLI compiles the command once per test. go run would report
// every failing exit status as 1.
func buildCLI(t *testing.T) string {
	t.Helper()
	bin := filepath.Join(t.TempDir(), "pkgdepend")
	cmd := exec.Command("go", "build", "-o", bin, "./cmd/pkgdepend")
	cmd.Dir = testutil.RepoRoot(t)
	cmd.Env = append(os.Environ(), "GO111MODULE=on")
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
	return bin
}

// run executes the CLI and returns its stdout, stderr and exit code.
func run(t *testing.T, bin string, args ...string) (string, string, int) {
	t.Helper()
	cmd := exec.Command(bin, args...)
	cmd.Env = append(os.Environ(), "PKGDEPEND_LOG_LEVEL=error")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		require.True(t, errors.As(err, &exitErr), stderr.String())
		return stdout.String(), stderr.String(), exitErr.ExitCode()
	}
	return stdout.String(), stderr.String(), 0
}

func TestGenerateResolveE2E(t *testing.T) {
	bin := buildCLI(t)
	work := t.TempDir()
	proto := filepath.Join(work, "proto")
	testutil.BuildELF(t, filepath.Join(proto, "usr/bin/app"), testutil.ELFOptions{Needed: []string{"libc.so.1"}})
	testutil.WriteFile(t, proto, "usr/bin/tool", "#!/usr/bin/app\necho\n", 0o755)
	app := testutil.WriteFile(t, work, "app.p5m", "set name=pkg.fmri value=pkg://test/app@1.0\nfile path=usr/bin/app mode=0555\nfile path=usr/bin/tool mode=0555\n", 0o644)
	libc := testutil.WriteFile(t, work, "libc.p5m", "set name=pkg.fmri value=pkg://test/libc@1.0\nfile path=lib/libc.so.1 mode=0444\n", 0o644)

	out, stderr, code := run(t, bin, "generate", "-m", "-d", proto, app)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "pkg.debug.depend.file=libc.so.1")
	assert.NotContains(t, out, "pkg.debug.depend.file=app", "internal script dependency should be pruned")
	generated := testutil.WriteFile(t, work, "app.dep", out, 0o644)

	outDir := filepath.Join(work, "out")
	_, stderr, code = run(t, bin, "resolve", "-d", outDir, generated, libc)
	require.Equal(t, 0, code, stderr)
	data, err := os.ReadFile(filepath.Join(outDir, "app.dep.res"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "depend fmri=pkg:/libc@1.0 type=require")
	require.FileExists(t, filepath.Join(outDir, "libc.p5m.res"))

	_, stderr, code = run(t, bin, "resolve", "-o", generated)
	assert.Equal(t, 1, code, stderr)
	assert.True(t, strings.Contains(stderr, "unresolved dependency"), stderr)

	_, stderr, code = run(t, bin, "resolve", "-o", "-d", outDir, generated)
	assert.Equal(t, 2, code, stderr)
}
