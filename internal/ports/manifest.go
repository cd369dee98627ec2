package ports

import "pkgdepend/internal/manifest"

type ManifestSourcePort interface {
	Load(path string) (*manifest.Manifest, error)
}

// ManifestWriterPort writes rendered manifests. An empty path writes to
// the writer's stream.
type ManifestWriterPort interface {
	Write(path string, text string) error
}
