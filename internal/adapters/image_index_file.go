package adapters

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"pkgdepend/internal/manifest"
	"pkgdepend/internal/ports"
	"pkgdepend/internal/types"
)

type ImageIndexFileAdapter struct {
	Path   string
	Source ports.ManifestSourcePort
	cached []*manifest.Manifest
	loaded bool
}

func NewImageIndexFileAdapter(path string) *ImageIndexFileAdapter {
	return &ImageIndexFileAdapter{Path: path, Source: NewManifestFileAdapter()}
}

func (a *ImageIndexFileAdapter) InstalledManifests(ctx context.Context) ([]*manifest.Manifest, error) {
	if a.loaded {
		return a.cached, nil
	}
	index, err := a.readIndex()
	if err != nil {
		return nil, err
	}
	base := filepath.Dir(a.Path)
	var out []*manifest.Manifest
	for i, entry := range index.Packages {
		if err := ctx.Err(); err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("image index load canceled").
				WithCause(err)
		}
		m, err := a.entryManifest(base, i, entry)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	log.Ctx(ctx).Debug().
		Str("index", a.Path).
		Int("packages", len(out)).
		Msg("loaded installed image index")
	a.cached = out
	a.loaded = true
	return out, nil
}

func (a *ImageIndexFileAdapter) readIndex() (types.ImageIndexFile, error) {
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return types.ImageIndexFile{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("image index file not found").
			WithCause(err)
	}
	var index types.ImageIndexFile
	if strings.EqualFold(filepath.Ext(a.Path), ".toml") {
		err = toml.Unmarshal(data, &index)
	} else {
		err = yaml.Unmarshal(data, &index)
	}
	if err != nil {
		return types.ImageIndexFile{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid image index format").
			WithCause(err)
	}
	return index, nil
}

func (a *ImageIndexFileAdapter) entryManifest(base string, i int, entry types.ImageIndexEntry) (*manifest.Manifest, error) {
	fmriText := strings.TrimSpace(entry.FMRI)
	if entry.Manifest != "" {
		path := entry.Manifest
		if !filepath.IsAbs(path) {
			path = filepath.Join(base, path)
		}
		m, err := a.Source.Load(path)
		if err != nil {
			return nil, err
		}
		if fmriText != "" && m.FMRIText() == "" {
			m = withFMRI(m, fmriText)
		}
		return m, nil
	}
	if fmriText == "" {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("image index entry %d has neither fmri nor manifest", i))
	}
	var actions []manifest.Action
	for _, line := range entry.Actions {
		action, err := manifest.ParseAction(strings.TrimSpace(line))
		if err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg(fmt.Sprintf("malformed action in image index entry %s: %s", fmriText, err)).
				WithCause(err)
		}
		actions = append(actions, action)
	}
	return withFMRI(manifest.New(fmriText, actions), fmriText), nil
}

func withFMRI(m *manifest.Manifest, fmriText string) *manifest.Manifest {
	if m.FMRIText() != "" {
		return m
	}
	set := manifest.NewAction(manifest.ActionSet)
	set.Attrs.Set("name", manifest.FMRIAttr)
	set.Attrs.Set("value", fmriText)
	return manifest.New(m.Path, append([]manifest.Action{set}, m.Actions...))
}

var _ ports.ImageIndexPort = (*ImageIndexFileAdapter)(nil)
