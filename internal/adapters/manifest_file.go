package adapters

import (
	"bytes"
	"os"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"pkgdepend/internal/manifest"
	"pkgdepend/internal/ports"
)

type ManifestFileAdapter struct{}

func NewManifestFileAdapter() ManifestFileAdapter {
	return ManifestFileAdapter{}
}

func (a ManifestFileAdapter) Load(path string) (*manifest.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("manifest file not found: " + path).
			WithCause(err)
	}
	return manifest.Parse(path, bytes.NewReader(data))
}

var _ ports.ManifestSourcePort = ManifestFileAdapter{}
