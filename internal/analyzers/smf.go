package analyzers

import (
	"encoding/xml"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"pkgdepend/internal/types"
)

// ServiceBundleDTD is the system identifier an SMF manifest's doctype
// must carry.
const ServiceBundleDTD = "/usr/share/lib/xml/dtd/service_bundle.dtd.1"

// AttrSMFFMRI records the service and instance FMRIs a package's SMF
// manifests declare.
const AttrSMFFMRI = "org.opensolaris.smf.fmri"

// SMFManifestDirs are the delivery directories whose SMF manifests
// produce dependencies.
var SMFManifestDirs = []string{"lib/svc/manifest", "var/svc/manifest"}

type smfBundle struct {
	Bundles  []smfBundle  `xml:"service_bundle"`
	Services []smfService `xml:"service"`
}

type smfService struct {
	Name          string          `xml:"name,attr"`
	CreateDefault *smfMarker      `xml:"create_default_instance"`
	Dependencies  []smfDependency `xml:"dependency"`
	Instances     []smfInstance   `xml:"instance"`
}

type smfInstance struct {
	Name         string          `xml:"name,attr"`
	Dependencies []smfDependency `xml:"dependency"`
}

type smfDependency struct {
	Type     string     `xml:"type,attr"`
	Grouping string     `xml:"grouping,attr"`
	Delete   string     `xml:"delete,attr"`
	FMRIs    []smfValue `xml:"service_fmri"`
}

type smfValue struct {
	Value string `xml:"value,attr"`
}

type smfMarker struct{}

// SMFManifest is the service content of one SMF manifest file.
type SMFManifest struct {
	// FMRIs lists every service and instance the file declares, sorted.
	FMRIs []string
	// Deps maps each declared FMRI to the services it requires.
	Deps map[string][]string
}

// InSMFManifestDir reports whether an installed path lies under one of
// SMFManifestDirs.
func InSMFManifestDir(installed string) bool {
	installed = strings.TrimLeft(installed, "/")
	for _, dir := range SMFManifestDirs {
		if strings.HasPrefix(installed, dir+"/") {
			return true
		}
	}
	return false
}

// ParseSMFManifest decodes an SMF manifest. ok is false when r is not
// well-formed XML or lacks the service bundle doctype.
func ParseSMFManifest(r io.Reader) (SMFManifest, bool) {
	dec := xml.NewDecoder(r)
	doctype := false
	for {
		tok, err := dec.Token()
		if err != nil {
			return SMFManifest{}, false
		}
		switch t := tok.(type) {
		case xml.Directive:
			doctype = doctypeSystemID(string(t)) == ServiceBundleDTD
		case xml.StartElement:
			if !doctype || t.Name.Local != "service_bundle" {
				return SMFManifest{}, false
			}
			var bundle smfBundle
			if err := dec.DecodeElement(&bundle, &t); err != nil {
				return SMFManifest{}, false
			}
			out := SMFManifest{Deps: map[string][]string{}}
			bundle.collect(&out)
			sort.Strings(out.FMRIs)
			return out, true
		}
	}
}

// doctypeSystemID extracts the system identifier of a DOCTYPE
// directive, or "" when there is none.
func doctypeSystemID(directive string) string {
	if i := strings.Index(directive, "["); i > -1 {
		directive = directive[:i]
	}
	fields := strings.Fields(directive)
	if len(fields) < 3 || fields[0] != "DOCTYPE" {
		return ""
	}
	var quoted []string
	for _, f := range fields[2:] {
		quoted = append(quoted, strings.Trim(f, `"'`))
	}
	switch {
	case fields[2] == "SYSTEM" && len(quoted) > 1:
		return quoted[1]
	case fields[2] == "PUBLIC" && len(quoted) > 2:
		return quoted[2]
	}
	return ""
}

func (b smfBundle) collect(out *SMFManifest) {
	for _, nested := range b.Bundles {
		nested.collect(out)
	}
	for _, svc := range b.Services {
		if svc.Name == "" || strings.HasPrefix(svc.Name, "/") {
			continue
		}
		service := "svc:/" + svc.Name
		svcDeps := requiredServices(svc.Dependencies)
		fmris := []string{service}
		duplicateDefault := false
		for _, inst := range svc.Instances {
			if inst.Name == "" {
				continue
			}
			if inst.Name == "default" && svc.CreateDefault != nil {
				duplicateDefault = true
			}
			fmri := service + ":" + inst.Name
			out.Deps[fmri] = append(append([]string(nil), svcDeps...), requiredServices(inst.Dependencies)...)
			fmris = append(fmris, fmri)
		}
		if svc.CreateDefault != nil && !duplicateDefault {
			fmri := service + ":default"
			out.Deps[fmri] = append([]string(nil), svcDeps...)
			fmris = append(fmris, fmri)
		}
		out.Deps[service] = svcDeps
		out.FMRIs = append(out.FMRIs, fmris...)
	}
}

// requiredServices keeps the service FMRIs of require_all service
// dependencies that are not marked for deletion.
func requiredServices(deps []smfDependency) []string {
	var out []string
	for _, d := range deps {
		if d.Type != "service" || d.Grouping != "require_all" || d.Delete == "true" {
			continue
		}
		for _, f := range d.FMRIs {
			if f.Value != "" {
				out = append(out, f.Value)
			}
		}
	}
	return out
}

// splitSMFFMRI returns the service and instance (possibly empty) parts of
// an svc: FMRI.
func splitSMFFMRI(fmri string) (string, string, bool) {
	parts := strings.Split(fmri, ":")
	if parts[0] != "svc" {
		return "", "", false
	}
	switch len(parts) {
	case 2:
		return parts[1], "", true
	case 3:
		return parts[1], parts[2], true
	default:
		return "", "", false
	}
}

// searchSMF looks an FMRI up in an index keyed by FMRI. An instance FMRI
// matches itself; a service FMRI matches every instance of the service.
func searchSMF[V any](fmri string, index map[string]V) ([]V, bool) {
	service, instance, ok := splitSMFFMRI(fmri)
	if !ok {
		return nil, false
	}
	if instance != "" {
		if v, found := index[fmri]; found {
			return []V{v}, true
		}
		return nil, true
	}
	prefix := "svc:" + service + ":"
	keys := make([]string, 0, len(index))
	for key := range index {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	out := make([]V, 0, len(keys))
	for _, key := range keys {
		out = append(out, index[key])
	}
	return out, true
}

// SMFCatalog indexes the SMF manifests found under SMFManifestDirs of a
// set of proto areas, keyed by FMRI.
type SMFCatalog struct {
	deliverers map[string]string
	deps       map[string][]string
}

// LoadSMFCatalog scans the manifest directories of roots. When several
// roots declare one FMRI the earliest root wins. Unreadable entries are
// skipped.
func LoadSMFCatalog(roots []string) *SMFCatalog {
	c := &SMFCatalog{deliverers: map[string]string{}, deps: map[string][]string{}}
	for i := len(roots) - 1; i >= 0; i-- {
		root := roots[i]
		for _, dir := range SMFManifestDirs {
			base := filepath.Join(root, filepath.FromSlash(dir))
			_ = filepath.WalkDir(base, func(local string, d fs.DirEntry, err error) error {
				if err != nil || !d.Type().IsRegular() {
					return nil
				}
				rel, err := filepath.Rel(root, local)
				if err != nil {
					return nil
				}
				c.add(local, filepath.ToSlash(rel))
				return nil
			})
		}
	}
	return c
}

func (c *SMFCatalog) add(local string, installed string) {
	f, err := os.Open(local)
	if err != nil {
		return
	}
	defer f.Close()
	m, ok := ParseSMFManifest(f)
	if !ok {
		return
	}
	for _, fmri := range m.FMRIs {
		c.deliverers[fmri] = installed
		c.deps[fmri] = m.Deps[fmri]
	}
}

// dependencies returns the services an instance requires, preferring
// the declarations of the manifest being analyzed.
func (c *SMFCatalog) dependencies(fmri string, local map[string][]string) ([]string, error) {
	indexes := []map[string][]string{local}
	if c != nil {
		indexes = append(indexes, c.deps)
	}
	for _, index := range indexes {
		found, _ := searchSMF(fmri, index)
		switch {
		case len(found) == 1:
			return found[0], nil
		case len(found) > 1:
			return nil, smfError("more than one set of dependencies found for %s", fmri)
		}
	}
	return nil, nil
}

// deliverer returns the installed path of the one manifest delivering
// fmri.
func (c *SMFCatalog) deliverer(fmri string, local map[string]string) (string, error) {
	paths := map[string]struct{}{}
	indexes := []map[string]string{local}
	if c != nil {
		indexes = append(indexes, c.deliverers)
	}
	for _, index := range indexes {
		found, ok := searchSMF(fmri, index)
		if !ok {
			return "", smfError("%s does not appear to be a valid FMRI", fmri)
		}
		for _, p := range found {
			paths[p] = struct{}{}
		}
	}
	switch len(paths) {
	case 0:
		return "", smfError("cannot resolve %s to a delivered file", fmri)
	case 1:
		for p := range paths {
			return p, nil
		}
	}
	names := make([]string, 0, len(paths))
	for p := range paths {
		names = append(names, p)
	}
	sort.Strings(names)
	return "", smfError("%s is delivered by multiple files: %s", fmri, strings.Join(names, ", "))
}

// analyzeSMF turns the service dependencies of an SMF manifest into
// dependencies on the manifest files delivering those services. It also
// returns the FMRIs the manifest declares.
func analyzeSMF(cfg Config, p Payload) ([]FileDependency, []*Problem, []string) {
	installed := p.Action.Path()
	if !InSMFManifestDir(installed) {
		return nil, nil, nil
	}
	f, err := os.Open(p.LocalPath)
	if err != nil {
		return nil, []*Problem{smfProblem(p, "unable to read SMF manifest %s", p.LocalPath)}, nil
	}
	defer f.Close()
	m, ok := ParseSMFManifest(f)
	if !ok {
		return nil, []*Problem{smfProblem(p, "unable to parse SMF manifest %s", p.LocalPath)}, nil
	}
	local := make(map[string]string, len(m.FMRIs))
	for _, fmri := range m.FMRIs {
		local[fmri] = installed
	}

	var problems []*Problem
	delivering := map[string]struct{}{}
	for _, fmri := range m.FMRIs {
		if _, instance, _ := splitSMFFMRI(fmri); instance == "" {
			continue
		}
		required, err := cfg.smf.dependencies(fmri, m.Deps)
		if err != nil {
			problems = append(problems, smfProblem(p, "problem determining dependencies for %s: %s", fmri, err.Error()))
		}
		for _, dep := range sortedUnique(required) {
			deliverer, err := cfg.smf.deliverer(dep, local)
			if err != nil {
				problems = append(problems, smfProblem(p, "unable to generate SMF dependency on %s declared in %s by %s: %s", dep, p.LocalPath, fmri, err.Error()))
				continue
			}
			delivering[deliverer] = struct{}{}
		}
	}

	paths := make([]string, 0, len(delivering))
	for deliverer := range delivering {
		paths = append(paths, deliverer)
	}
	sort.Strings(paths)
	deps := make([]FileDependency, 0, len(paths))
	for _, deliverer := range paths {
		deps = append(deps, newFileDependency(types.DependencyKindSMF, p.Action,
			[]string{path.Base(deliverer)}, []string{path.Dir(deliverer)}))
	}
	return deps, problems, m.FMRIs
}

func smfError(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

func smfProblem(p Payload, format string, args ...any) *Problem {
	return newProblem(KindSMFManifest, types.SeverityError, p.LocalPath, p.Action.Path(), format, args...)
}
