package ports

type ExternalPackagesPort interface {
	Load(path string) ([]string, error)
}
