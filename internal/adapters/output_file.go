package adapters

import (
	"io"
	"os"
	"path/filepath"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"pkgdepend/internal/ports"
)

// OutputFileAdapter writes rendered manifests. An empty path writes to
// Out. When Dir is set, files land in Dir under their base name.
type OutputFileAdapter struct {
	Dir string
	Out io.Writer
}

func NewOutputFileAdapter(dir string, out io.Writer) OutputFileAdapter {
	return OutputFileAdapter{Dir: dir, Out: out}
}

func (a OutputFileAdapter) Write(path string, text string) error {
	if path == "" {
		return a.writeStream(text)
	}
	target, err := a.ensurePath(path)
	if err != nil {
		return err
	}
	if err := os.WriteFile(target, []byte(text), 0644); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write " + target).
			WithCause(err)
	}
	return nil
}

func (a OutputFileAdapter) writeStream(text string) error {
	if a.Out == nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("output stream is not set")
	}
	if _, err := io.WriteString(a.Out, text); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write output").
			WithCause(err)
	}
	return nil
}

func (a OutputFileAdapter) ensurePath(path string) (string, error) {
	target := path
	if a.Dir != "" {
		target = filepath.Join(a.Dir, filepath.Base(path))
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create output directory").
			WithCause(err)
	}
	return target, nil
}

var _ ports.ManifestWriterPort = OutputFileAdapter{}
