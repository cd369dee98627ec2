package core

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkgdepend/internal/analyzers"
	"pkgdepend/internal/manifest"
	"pkgdepend/internal/types"
	"pkgdepend/tests/testutil"
)

type protoDir struct {
	root string
}

func (p protoDir) Locate(rel string) (string, bool) {
	full := filepath.Join(p.root, filepath.FromSlash(rel))
	if info, err := os.Stat(full); err == nil && !info.IsDir() {
		return full, true
	}
	return "", false
}

func (p protoDir) Roots() []string {
	return []string{p.root}
}

func newTestGenerator(root string, opts GenerateOptions) Generator {
	if opts.Workers == 0 {
		opts.Workers = 2
	}
	opts.Config = analyzers.NewConfig(analyzers.Options{Platform: "i86pc", ISAList: []string{"amd64"}})
	return NewGenerator(protoDir{root: root}, opts)
}

func generate(t *testing.T, g Generator, m *manifest.Manifest) GenerateResult {
	t.Helper()
	res, err := g.Generate(context.Background(), m)
	require.NoError(t, err)
	return res
}

func fileDeps(t *testing.T, res GenerateResult) []analyzers.FileDependency {
	t.Helper()
	var out []analyzers.FileDependency
	for _, a := range res.Dependencies {
		dep, ok := analyzers.FromAction(a)
		require.True(t, ok, manifest.Format(a))
		out = append(out, dep)
	}
	return out
}

// ---------- Generate tests ----------

func TestGenerate64BitELFDefaultPaths(t *testing.T) {
	root := t.TempDir()
	testutil.BuildELF(t, filepath.Join(root, "usr/bin/app"), testutil.ELFOptions{Class64: true, Needed: []string{"libc.so.1"}})
	m := pkg(t, "a", "file path=usr/bin/app mode=0555")

	res := generate(t, newTestGenerator(root, GenerateOptions{}), m)

	assert.Empty(t, res.Diagnostics)
	expected := []string{"depend fmri=__TBD pkg.debug.depend.file=libc.so.1 pkg.debug.depend.path=lib/64 pkg.debug.depend.path=usr/lib/64 pkg.debug.depend.reason=usr/bin/app pkg.debug.depend.type=elf type=require"}
	if diff := cmp.Diff(expected, formatted(res.Dependencies)); diff != "" {
		t.Fatalf("unexpected dependencies (-want +got):\n%s", diff)
	}
}

func TestGenerateRemovesInternalDependencies(t *testing.T) {
	root := t.TempDir()
	testutil.BuildELF(t, filepath.Join(root, "usr/bin/app"), testutil.ELFOptions{Needed: []string{"libfoo.so.1", "libc.so.1"}})
	testutil.WriteFile(t, root, "usr/lib/libfoo.so.1", "not really a library\n", 0o644)
	m := pkg(t, "a", "file path=usr/bin/app mode=0555", "file path=usr/lib/libfoo.so.1 mode=0444")

	pruned := generate(t, newTestGenerator(root, GenerateOptions{}), m)
	deps := fileDeps(t, pruned)
	require.Len(t, deps, 1)
	assert.Equal(t, []string{"libc.so.1"}, deps[0].Files)
	assert.Equal(t, analyzers.LabelText, firstKey(pruned.Unanalyzed))

	kept := generate(t, newTestGenerator(root, GenerateOptions{KeepInternal: true}), m)
	assert.Len(t, fileDeps(t, kept), 2)
}

func TestGenerateBaseNameMatchDowngradesToWarning(t *testing.T) {
	root := t.TempDir()
	testutil.BuildELF(t, filepath.Join(root, "usr/bin/app"), testutil.ELFOptions{Needed: []string{"libbar.so.1"}})
	testutil.WriteFile(t, root, "opt/lib/libbar.so.1", "stub\n", 0o644)
	m := pkg(t, "a", "file path=usr/bin/app mode=0555", "file path=opt/lib/libbar.so.1 mode=0444")

	res := generate(t, newTestGenerator(root, GenerateOptions{}), m)

	deps := fileDeps(t, res)
	require.Len(t, deps, 1)
	assert.Equal(t, types.SeverityWarning, deps[0].Severity)
}

func TestGenerateBypass(t *testing.T) {
	root := t.TempDir()
	testutil.BuildELF(t, filepath.Join(root, "usr/bin/app"), testutil.ELFOptions{Needed: []string{"libc.so.1", "libm.so.2"}})
	testutil.BuildELF(t, filepath.Join(root, "usr/bin/skip"), testutil.ELFOptions{Needed: []string{"libc.so.1"}})
	m := pkg(t, "a",
		"set name=pkg.depend.bypass-generate value=libc.so.1 value=usr/lib/libm.so.2",
		"file path=usr/bin/app mode=0555",
		"file path=usr/bin/skip mode=0555 pkg.depend.bypass-generate=.*")

	res := generate(t, newTestGenerator(root, GenerateOptions{}), m)

	deps := fileDeps(t, res)
	require.Len(t, deps, 1)
	assert.Equal(t, []string{"lib/libm.so.2"}, deps[0].FullPaths)
	require.Len(t, res.Attributes, 1)
	assert.Equal(t, analyzers.AttrBypassed, res.Attributes[0].Attrs.Get("name"))
	assert.Equal(t, []string{"lib/libc.so.1", "usr/bin/skip:.*", "usr/lib/libc.so.1", "usr/lib/libm.so.2"}, res.Attributes[0].Attrs.List("value"))
	assert.Equal(t, append(res.Attributes, res.Dependencies...), res.Actions())
}

func TestGenerateRunPathAttribute(t *testing.T) {
	root := t.TempDir()
	testutil.BuildELF(t, filepath.Join(root, "usr/bin/app"), testutil.ELFOptions{Needed: []string{"libc.so.1"}})
	testutil.BuildELF(t, filepath.Join(root, "usr/bin/bad"), testutil.ELFOptions{Needed: []string{"libc.so.1"}})
	m := pkg(t, "a",
		"file path=usr/bin/app mode=0555 pkg.depend.runpath=/opt/lib",
		"file path=usr/bin/bad mode=0555 pkg.depend.runpath=/a pkg.depend.runpath=/b")

	res := generate(t, newTestGenerator(root, GenerateOptions{}), m)

	deps := fileDeps(t, res)
	require.Len(t, deps, 1)
	assert.Equal(t, []string{"opt/lib"}, deps[0].RunPaths)
	assert.Equal(t, []string{analyzers.KindInvalidRunpathValue}, kinds(res.Diagnostics))
}

func TestGenerateManifestRunPathError(t *testing.T) {
	m := pkg(t, "a", "set name=pkg.depend.runpath value=/a value=/b", "file path=usr/bin/app mode=0555")

	res := generate(t, newTestGenerator(t.TempDir(), GenerateOptions{}), m)

	assert.Equal(t, []string{analyzers.KindInvalidRunpathValue}, kinds(res.Diagnostics))
	assert.Empty(t, res.Dependencies)
}

func TestGenerateMissingPayload(t *testing.T) {
	m := pkg(t, "a", "file path=usr/bin/gone mode=0555")

	res := generate(t, newTestGenerator(t.TempDir(), GenerateOptions{}), m)

	assert.True(t, res.Missing)
	require.Equal(t, []string{analyzers.KindMissingFile}, kinds(res.Diagnostics))
	assert.Equal(t, "pkg://test/a@1.0", res.Diagnostics[0].Record().Package)
}

func TestGenerateLocatesPayloadByHash(t *testing.T) {
	root := t.TempDir()
	testutil.BuildELF(t, filepath.Join(root, "build/app.bin"), testutil.ELFOptions{Needed: []string{"libc.so.1"}})
	m := pkg(t, "a", "file build/app.bin path=usr/bin/app mode=0555")

	res := generate(t, newTestGenerator(root, GenerateOptions{}), m)

	assert.False(t, res.Missing)
	assert.Len(t, res.Dependencies, 1)
}

func TestGenerateHardlinkDependency(t *testing.T) {
	root := t.TempDir()
	m := pkg(t, "a", "hardlink path=usr/bin/b target=../lib/a")

	res := generate(t, newTestGenerator(root, GenerateOptions{}), m)

	deps := fileDeps(t, res)
	require.Len(t, deps, 1)
	assert.Equal(t, types.DependencyKindHardlink, deps[0].Kind)
	assert.Equal(t, []string{"usr/lib/a"}, deps[0].FullPaths)

	testutil.WriteFile(t, root, "usr/lib/a", "payload\n", 0o644)
	internal := pkg(t, "a", "hardlink path=usr/bin/b target=../lib/a", "file path=usr/lib/a mode=0444")
	assert.Empty(t, generate(t, newTestGenerator(root, GenerateOptions{}), internal).Dependencies)
}

func TestGeneratePartiallyInternalDependencyIsRetagged(t *testing.T) {
	root := t.TempDir()
	testutil.BuildELF(t, filepath.Join(root, "usr/bin/app"), testutil.ELFOptions{Needed: []string{"libfoo.so.1"}})
	testutil.WriteFile(t, root, "usr/lib/libfoo.so.1", "stub\n", 0o644)
	m := pkg(t, "a", archVariants,
		"file path=usr/bin/app mode=0555",
		"file path=usr/lib/libfoo.so.1 mode=0444 variant.arch=i386")

	res := generate(t, newTestGenerator(root, GenerateOptions{}), m)

	deps := fileDeps(t, res)
	require.Len(t, deps, 1)
	assert.Equal(t, []string{"sparc"}, deps[0].Variants["variant.arch"])
}

func TestGenerateReportsUndeclaredVariants(t *testing.T) {
	m := pkg(t, "a", archVariants, "dir path=opt variant.arch=arm")

	res := generate(t, newTestGenerator(t.TempDir(), GenerateOptions{}), m)

	assert.Equal(t, []string{KindMissingPackageVariant}, kinds(res.Diagnostics))
}

func TestGenerateSMFManifestDependencies(t *testing.T) {
	root := t.TempDir()
	header := "<?xml version=\"1.0\"?>\n<!DOCTYPE service_bundle SYSTEM \"/usr/share/lib/xml/dtd/service_bundle.dtd.1\">\n"
	testutil.WriteFile(t, root, "lib/svc/manifest/application/foo.xml", header+
		`<service_bundle type="manifest" name="foo"><service name="application/foo" type="service" version="1">`+
		`<create_default_instance enabled="true"/>`+
		`<dependency name="net" grouping="require_all" restart_on="none" type="service"><service_fmri value="svc:/network/physical"/></dependency>`+
		`</service></service_bundle>`, 0o644)
	testutil.WriteFile(t, root, "lib/svc/manifest/network/physical.xml", header+
		`<service_bundle type="manifest" name="physical"><service name="network/physical" type="service" version="1">`+
		`<instance name="default" enabled="true"/></service></service_bundle>`, 0o644)
	m := pkg(t, "a", "file path=lib/svc/manifest/application/foo.xml mode=0444")

	res := generate(t, newTestGenerator(root, GenerateOptions{}), m)

	assert.Empty(t, res.Diagnostics)
	expected := []string{"depend fmri=__TBD pkg.debug.depend.file=physical.xml pkg.debug.depend.path=lib/svc/manifest/network pkg.debug.depend.reason=lib/svc/manifest/application/foo.xml pkg.debug.depend.type=smf_manifest type=require"}
	if diff := cmp.Diff(expected, formatted(res.Dependencies)); diff != "" {
		t.Fatalf("unexpected dependencies (-want +got):\n%s", diff)
	}
	require.Len(t, res.Attributes, 1)
	assert.Equal(t, analyzers.AttrSMFFMRI, res.Attributes[0].Attrs.Get("name"))
	assert.Equal(t, []string{"svc:/application/foo", "svc:/application/foo:default"}, res.Attributes[0].Attrs.List("value"))
}

// ---------- Worker pool tests ----------

// gatedProto counts concurrent lookups. Each lookup waits briefly for
// the in-flight count to reach want so the pool width shows up in peak.
type gatedProto struct {
	protoDir
	want     int
	mu       sync.Mutex
	inFlight int
	peak     int
}

func (p *gatedProto) Locate(rel string) (string, bool) {
	p.mu.Lock()
	p.inFlight++
	p.peak = max(p.peak, p.inFlight)
	p.mu.Unlock()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		p.mu.Lock()
		reached := p.inFlight >= p.want
		p.mu.Unlock()
		if reached {
			break
		}
		time.Sleep(time.Millisecond)
	}
	defer func() {
		p.mu.Lock()
		p.inFlight--
		p.mu.Unlock()
	}()
	return p.protoDir.Locate(rel)
}

func TestGenerateWorkersBoundConcurrencyAndKeepOrder(t *testing.T) {
	root := t.TempDir()
	names := []string{"a", "b", "c", "d", "e", "f"}
	lines := make([]string, 0, len(names))
	for _, name := range names {
		testutil.BuildELF(t, filepath.Join(root, "usr/bin", name), testutil.ELFOptions{Needed: []string{"lib" + name + ".so.1"}})
		lines = append(lines, "file path=usr/bin/"+name+" mode=0555")
	}
	m := pkg(t, "a", lines...)

	tests := []struct {
		name    string
		workers int
	}{
		{name: "serial", workers: 1},
		{name: "three workers", workers: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proto := &gatedProto{protoDir: protoDir{root: root}, want: tt.workers}
			opts := GenerateOptions{
				Config:  analyzers.NewConfig(analyzers.Options{Platform: "i86pc", ISAList: []string{"amd64"}}),
				Workers: tt.workers,
			}
			res := generate(t, NewGenerator(proto, opts), m)

			assert.Equal(t, tt.workers, proto.peak)
			var reasons []string
			for _, dep := range fileDeps(t, res) {
				reasons = append(reasons, dep.Reason)
			}
			expected := make([]string, 0, len(names))
			for _, name := range names {
				expected = append(expected, "usr/bin/"+name)
			}
			if diff := cmp.Diff(expected, reasons); diff != "" {
				t.Fatalf("dependency order (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGenerateHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestGenerator(t.TempDir(), GenerateOptions{}).Generate(ctx, pkg(t, "a", "file path=usr/bin/a mode=0555"))
	require.Error(t, err)
}

func firstKey(m map[string]string) string {
	for key := range m {
		return key
	}
	return ""
}
