package ports

import (
	"context"

	"pkgdepend/internal/manifest"
)

type ImageIndexPort interface {
	InstalledManifests(ctx context.Context) ([]*manifest.Manifest, error)
}
