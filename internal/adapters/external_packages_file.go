package adapters

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"pkgdepend/internal/ports"
)

type externalPackagesYAML struct {
	Packages []string `yaml:"packages"`
}

// ExternalPackagesFileAdapter reads FMRI patterns naming packages that
// are expected to satisfy dependencies from outside the batch. Plain
// files hold one pattern per line with # comments; .yaml and .yml files
// hold a packages list.
type ExternalPackagesFileAdapter struct{}

func NewExternalPackagesFileAdapter() ExternalPackagesFileAdapter {
	return ExternalPackagesFileAdapter{}
}

func (a ExternalPackagesFileAdapter) Load(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("external package file not found: " + path).
			WithCause(err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc externalPackagesYAML
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("failed to parse external package yaml").
				WithCause(err)
		}
		var out []string
		for _, pattern := range doc.Packages {
			if pattern = strings.TrimSpace(pattern); pattern != "" {
				out = append(out, pattern)
			}
		}
		return out, nil
	}
	var out []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to read external package file").
			WithCause(err)
	}
	return out, nil
}

var _ ports.ExternalPackagesPort = ExternalPackagesFileAdapter{}
