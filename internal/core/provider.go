package core

import (
	"pkgdepend/internal/fmri"
	"pkgdepend/internal/manifest"
	"pkgdepend/internal/variant"
)

// Provider is a manifest that may satisfy dependencies, placed in the
// variant space shared by every manifest of one run.
type Provider struct {
	Manifest *manifest.Manifest
	FMRI     fmri.FMRI
	Name     string
	Image    bool
	// Template is the package's declared variants, with undeclared axes
	// taking every value the run knows.
	Template variant.Template
	// Space holds the combinations under which the package exists.
	Space variant.Set
	space *variant.Space
}

// Universe builds the variant space spanning every declared variant and
// every action tag of ms.
func Universe(ms ...*manifest.Manifest) (*variant.Space, variant.Template, error) {
	t := variant.Template{}
	for _, m := range ms {
		t.Merge(m.Variants())
		t.Merge(m.ActionVariants())
	}
	space, err := variant.NewSpace(t)
	if err != nil {
		return nil, nil, err
	}
	return space, t, nil
}

// NewProvider places m in space. universe is the template space was
// built from.
func NewProvider(m *manifest.Manifest, f fmri.FMRI, image bool, space *variant.Space, universe variant.Template) *Provider {
	t := m.Variants().Clone()
	t.MergeUnknown(universe)
	name := f.Short()
	if f.Name == "" {
		name = m.Name()
	}
	return &Provider{
		Manifest: m,
		FMRI:     f,
		Name:     name,
		Image:    image,
		Template: t,
		Space:    space.Select(t),
		space:    space,
	}
}

// ActionSet is the subset of the package's combinations under which an
// action is present.
func (p *Provider) ActionSet(a manifest.Action) variant.Set {
	return p.Space.Intersect(p.space.Select(a.Variants()))
}

// TagSet is the subset of the package's combinations matching tag.
func (p *Provider) TagSet(tag variant.Template) variant.Set {
	return p.Space.Intersect(p.space.Select(tag))
}

// Tags simplifies a subset of the package's combinations into variant
// tags. The full package space yields a single empty tag.
func (p *Provider) Tags(set variant.Set) []variant.Template {
	return p.space.Tags(set, p.Space)
}
