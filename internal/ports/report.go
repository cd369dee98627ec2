package ports

import "pkgdepend/internal/types"

type ReportPort interface {
	WriteReport(path string, report types.Report) error
}
