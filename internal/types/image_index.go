package types

// ImageIndexFile lists the packages installed in the image that
// dependencies may resolve against. It is read as YAML, or as TOML when
// the file ends in .toml.
type ImageIndexFile struct {
	Packages []ImageIndexEntry `yaml:"packages" toml:"packages"`
}

// ImageIndexEntry is one installed package. Its actions come either
// from a manifest file (relative paths resolve against the index file)
// or from inline action lines.
type ImageIndexEntry struct {
	FMRI     string   `yaml:"fmri" toml:"fmri"`
	Manifest string   `yaml:"manifest,omitempty" toml:"manifest,omitempty"`
	Actions  []string `yaml:"actions,omitempty" toml:"actions,omitempty"`
}
