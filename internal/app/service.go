package app

import (
	"io"
	"os"

	"pkgdepend/internal/adapters"
	"pkgdepend/internal/ports"
)

type Service struct {
	Manifests ports.ManifestSourcePort
	Externals ports.ExternalPackagesPort
	Reports   ports.ReportPort
	// Stdout receives generated dependencies and manifests printed with -o.
	Stdout    io.Writer
	NewProto  func(dirs []string) ports.ProtoAreaPort
	NewImage  func(path string) ports.ImageIndexPort
	NewWriter func(dir string, out io.Writer) ports.ManifestWriterPort
}

func NewService() Service {
	return Service{
		Manifests: adapters.NewManifestFileAdapter(),
		Externals: adapters.NewExternalPackagesFileAdapter(),
		Reports:   adapters.NewReportWriterAdapter(),
		Stdout:    os.Stdout,
		NewProto: func(dirs []string) ports.ProtoAreaPort {
			return adapters.NewProtoAreaAdapter(dirs)
		},
		NewImage: func(path string) ports.ImageIndexPort {
			return adapters.NewImageIndexFileAdapter(path)
		},
		NewWriter: func(dir string, out io.Writer) ports.ManifestWriterPort {
			return adapters.NewOutputFileAdapter(dir, out)
		},
	}
}
