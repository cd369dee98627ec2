package adapters

import (
	"os"
	"path/filepath"
	"strings"

	"pkgdepend/internal/ports"
)

// ProtoAreaAdapter finds payloads under an ordered list of proto area
// roots. The first root holding a regular file wins.
type ProtoAreaAdapter struct {
	Dirs []string
}

func NewProtoAreaAdapter(dirs []string) ProtoAreaAdapter {
	var cleaned []string
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		cleaned = append(cleaned, filepath.Clean(dir))
	}
	if len(cleaned) == 0 {
		cleaned = []string{"/"}
	}
	return ProtoAreaAdapter{Dirs: cleaned}
}

func (a ProtoAreaAdapter) Locate(rel string) (string, bool) {
	rel = strings.TrimLeft(rel, "/")
	if rel == "" {
		return "", false
	}
	for _, dir := range a.Dirs {
		candidate := filepath.Join(dir, filepath.FromSlash(rel))
		info, err := os.Stat(candidate)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		return candidate, true
	}
	return "", false
}

func (a ProtoAreaAdapter) Roots() []string {
	return append([]string(nil), a.Dirs...)
}

var _ ports.ProtoAreaPort = ProtoAreaAdapter{}
