package integration

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkgdepend/internal/adapters"
	"pkgdepend/internal/app"
	"pkgdepend/internal/core"
	"pkgdepend/internal/manifest"
	"pkgdepend/tests/testutil"
)

var batchFiles = []string{"app.p5m", "libc-i386.p5m", "libc-sparc.p5m", "perl.p5m"}

func batchPaths(root string) []string {
	paths := make([]string, 0, len(batchFiles))
	for _, name := range batchFiles {
		paths = append(paths, filepath.Join(root, "tests", "integration", "testdata", "resolve", name))
	}
	return paths
}

// TestGoldenResolve resolves the fixture batch and compares each output
// against committed golden files. Missing golden files are written so
// they can be committed.
//
// To update golden files after an intentional change, delete the
// testdata/golden/ directory and re-run the test.
func TestGoldenResolve(t *testing.T) {
	root := testutil.RepoRoot(t)
	goldenDir := filepath.Join(root, "tests", "integration", "testdata", "golden")
	outDir := t.TempDir()

	service := app.NewService()
	var stdout bytes.Buffer
	service.Stdout = &stdout
	result, err := service.Resolve(t.Context(), app.ResolveRequest{
		ManifestPaths: batchPaths(root),
		OutputDir:     outDir,
		SkipImage:     true,
	})
	require.NoError(t, err)
	require.Len(t, result.Outputs, len(batchFiles))

	for _, name := range batchFiles {
		t.Run(name, func(t *testing.T) {
			actual, err := os.ReadFile(filepath.Join(outDir, name+app.DefaultSuffix))
			require.NoError(t, err)

			goldenPath := filepath.Join(goldenDir, name+app.DefaultSuffix)
			if _, statErr := os.Stat(goldenPath); os.IsNotExist(statErr) {
				require.NoError(t, os.MkdirAll(goldenDir, 0o755))
				require.NoError(t, os.WriteFile(goldenPath, actual, 0o644))
				t.Logf("golden file written: %s (commit it)", goldenPath)
				return
			}

			expected, err := os.ReadFile(goldenPath)
			require.NoError(t, err)
			assert.Equal(t, string(expected), string(actual),
				"golden mismatch for %s -- delete testdata/golden/ and re-run to regenerate", name)
		})
	}
}

// TestGoldenResolveStructure checks the resolved batch independent of
// the exact rendering.
func TestGoldenResolveStructure(t *testing.T) {
	root := testutil.RepoRoot(t)
	loader := adapters.NewManifestFileAdapter()
	var batch []*manifest.Manifest
	for _, path := range batchPaths(root) {
		m, err := loader.Load(path)
		require.NoError(t, err)
		batch = append(batch, m)
	}

	result, err := core.NewResolverCore(core.ResolveOptions{}).Resolve(t.Context(), batch, nil)
	require.NoError(t, err)
	require.Empty(t, result.Diagnostics)

	t.Run("per arch providers", func(t *testing.T) {
		deps := formatted(result.Manifests[0].Dependencies)
		assert.Contains(t, deps, "depend fmri=pkg:/libc-i386@1.0 type=require variant.arch=i386")
		assert.Contains(t, deps, "depend fmri=pkg:/libc-sparc@1.0 type=require variant.arch=sparc")
	})

	t.Run("script resolved through link", func(t *testing.T) {
		assert.Contains(t, formatted(result.Manifests[0].Dependencies), "depend fmri=pkg:/perl@5.36 type=require")
	})

	t.Run("providers have no dependencies", func(t *testing.T) {
		for _, mr := range result.Manifests[1:] {
			assert.Empty(t, mr.Dependencies, mr.Manifest.Path)
		}
	})

	t.Run("every combination satisfied", func(t *testing.T) {
		for _, cov := range result.Manifests[0].Coverage {
			assert.True(t, cov.NotSat.IsEmpty(), strings.Join(cov.Dep.Files, ","))
		}
	})
}

func formatted(actions []manifest.Action) []string {
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		out = append(out, manifest.Format(a))
	}
	return out
}
