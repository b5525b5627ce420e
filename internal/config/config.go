package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/linkcheck/internal/model"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "linkcheck"

	// DefaultTimeout is the per-request timeout of off-site fetches.
	DefaultTimeout = 30 * time.Second

	// DefaultConcurrency is the number of concurrent off-site fetches per tree.
	DefaultConcurrency = 1

	// DefaultBatchSize is the number of document trees checked at once.
	DefaultBatchSize = 4

	// DefaultMaxRedirects is the redirect limit of off-site fetches.
	DefaultMaxRedirects = 10

	// DefaultUserAgent identifies the checker to remote servers.
	DefaultUserAgent = "linkcheck (+https://github.com/nao1215/linkcheck)"

	// DefaultMaxBodySize limits the response body read from off-site pages.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultHistoryKeep is the number of runs per root kept by history pruning.
	DefaultHistoryKeep = 20
)

// Config holds all options of a link checking run.
// It is populated from CLI flags and the optional configuration file and
// passed down explicitly; there is no global configuration.
type Config struct {
	// Roots are the document tree directories to check.
	Roots []string

	// OnsiteOnly skips every off-site link.
	OnsiteOnly bool

	// NoTOC suppresses the outbound links of table_of_contents.html.
	NoTOC bool

	// Excludes are regular expressions; sources whose path matches any of
	// them are not scanned.
	Excludes []string

	// Includes are regular expressions; when set, only sources whose path
	// matches one of them are scanned.
	Includes []string

	// Timeout is the per-request timeout of off-site fetches.
	Timeout time.Duration

	// Concurrency is the number of concurrent off-site fetches per tree.
	Concurrency int

	// BatchSize is the number of document trees checked concurrently.
	BatchSize int

	// MaxRedirects is the redirect limit of off-site fetches.
	MaxRedirects int

	// MaxBodySize is the maximum response body size in bytes.
	// Set to 0 to use the default.
	MaxBodySize int64

	// UserAgent is the User-Agent header sent with off-site requests.
	UserAgent string

	// Headers are extra HTTP headers sent with off-site requests.
	Headers map[string]string

	// ProxyAddress is an external SOCKS5 proxy for off-site fetches.
	// Empty means direct connections.
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and routes off-site fetches
	// through it, which makes .onion links checkable.
	UseTor bool

	// TorStartupTimeout bounds the bootstrap of the embedded Tor daemon.
	TorStartupTimeout time.Duration

	// JSONReport selects the JSON report format.
	JSONReport bool

	// MarkdownReport selects the Markdown report format.
	MarkdownReport bool

	// HTMLReport writes Report.htm into every checked directory.
	HTMLReport bool

	// ReportFile is the output file of the report. Empty means stdout.
	ReportFile string

	// ShowOffsite lists off-site links in the text and Markdown reports.
	ShowOffsite bool

	// MetricsFile is a Prometheus textfile written after the run.
	MetricsFile string

	// NoHistory disables the history database.
	NoHistory bool

	// DBDir is the directory of the history database.
	DBDir string

	// HistoryKeep is the number of runs per directory kept in the history
	// database. 0 keeps every run.
	HistoryKeep int

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the explicit configuration file path.
	ConfigFilePath string
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		Timeout:           DefaultTimeout,
		Concurrency:       DefaultConcurrency,
		BatchSize:         DefaultBatchSize,
		MaxRedirects:      DefaultMaxRedirects,
		MaxBodySize:       DefaultMaxBodySize,
		UserAgent:         DefaultUserAgent,
		TorStartupTimeout: DefaultTorStartupTimeout,
		DBDir:             XDGDataDir(),
		HistoryKeep:       DefaultHistoryKeep,
	}
}

// XDGDataDir returns the XDG data directory of the checker.
// The history database lives here.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory of the checker.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Roots) == 0 {
		return ErrNoRoot
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.ProxyAddress != "" && c.UseTor {
		return ErrConflictingProxy
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.MaxRedirects < 0 {
		return ErrInvalidMaxRedirects
	}
	if c.HistoryKeep < 0 {
		return ErrInvalidHistoryKeep
	}
	if _, err := compilePatterns(c.Excludes); err != nil {
		return err
	}
	if _, err := compilePatterns(c.Includes); err != nil {
		return err
	}
	return nil
}

// ExcludePatterns compiles the exclude patterns.
func (c *Config) ExcludePatterns() ([]*regexp.Regexp, error) {
	return compilePatterns(c.Excludes)
}

// IncludePatterns compiles the include patterns.
func (c *Config) IncludePatterns() ([]*regexp.Regexp, error) {
	return compilePatterns(c.Includes)
}

// RunOptions returns the snapshot of the options recorded in every run.
func (c *Config) RunOptions() model.RunOptions {
	return model.RunOptions{
		OnsiteOnly: c.OnsiteOnly,
		NoTOC:      c.NoTOC,
		Excludes:   c.Excludes,
		Includes:   c.Includes,
	}
}

// Apply merges a configuration file into c. Flags that enable something
// stay enabled; the file adds patterns and headers, and only replaces the
// user agent when it is still the default.
func (c *Config) Apply(f *File) {
	if f == nil {
		return
	}
	c.OnsiteOnly = c.OnsiteOnly || f.Options.OnsiteOnly
	c.NoTOC = c.NoTOC || f.Options.NoTOC
	c.Excludes = append(c.Excludes, f.SourceFileOmits...)
	c.Includes = append(c.Includes, f.SourceFileIncludes...)

	if f.UserAgent != "" && (c.UserAgent == "" || c.UserAgent == DefaultUserAgent) {
		c.UserAgent = f.UserAgent
	}
	if len(f.Headers) > 0 {
		if c.Headers == nil {
			c.Headers = make(map[string]string, len(f.Headers))
		}
		for k, v := range f.Headers {
			// Flags win over the file.
			if _, ok := c.Headers[k]; !ok {
				c.Headers[k] = v
			}
		}
	}
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrInvalidPattern, p, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}
