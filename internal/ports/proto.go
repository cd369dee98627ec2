package ports

import "pkgdepend/internal/analyzers"

// ProtoAreaPort locates delivered payloads in the proto area roots.
type ProtoAreaPort interface {
	analyzers.Locator
	Roots() []string
}
