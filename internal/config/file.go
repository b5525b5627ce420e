package config

import _ "embed"

// FileOptions are the boolean switches of a configuration file.
type FileOptions struct {
	// OnsiteOnly skips every off-site link.
	OnsiteOnly bool `yaml:"onsite_only,omitempty" toml:"onsite_only"`

	// NoTOC suppresses the outbound links of table_of_contents.html.
	NoTOC bool `yaml:"no_toc,omitempty" toml:"no_toc"`
}

// File represents the .linkcheck configuration file.
//
// The JSON layout is accepted as well, since JSON is valid YAML:
//
//	{"options": {"onsite_only": true, "no_toc": true}, "source_file_omits": ["^api/"]}
type File struct {
	// Options holds the boolean switches.
	Options FileOptions `yaml:"options,omitempty" toml:"options"`

	// SourceFileOmits are regular expressions of source paths not scanned.
	SourceFileOmits []string `yaml:"source_file_omits,omitempty" toml:"source_file_omits"`

	// SourceFileIncludes are regular expressions; when set, only matching
	// source paths are scanned.
	SourceFileIncludes []string `yaml:"source_file_includes,omitempty" toml:"source_file_includes"`

	// UserAgent overrides the default User-Agent of off-site requests.
	UserAgent string `yaml:"user_agent,omitempty" toml:"user_agent"`

	// Headers are extra HTTP headers sent with off-site requests.
	Headers map[string]string `yaml:"headers,omitempty" toml:"headers"`
}

// Template is the commented configuration file written by `linkcheck init`.
//
//go:embed template.yaml
var Template []byte
