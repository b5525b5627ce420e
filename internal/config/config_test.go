package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

// TestNewConfig verifies the defaults returned by NewConfig.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default Timeout is 30 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 30*time.Second {
			t.Errorf("expected Timeout to be 30s, got %v", cfg.Timeout)
		}
	})

	t.Run("default Concurrency is 1", func(t *testing.T) {
		t.Parallel()
		if cfg.Concurrency != 1 {
			t.Errorf("expected Concurrency to be 1, got %d", cfg.Concurrency)
		}
	})

	t.Run("default BatchSize is 4", func(t *testing.T) {
		t.Parallel()
		if cfg.BatchSize != 4 {
			t.Errorf("expected BatchSize to be 4, got %d", cfg.BatchSize)
		}
	})

	t.Run("default UserAgent identifies the checker", func(t *testing.T) {
		t.Parallel()
		if cfg.UserAgent != DefaultUserAgent {
			t.Errorf("expected default user agent, got %q", cfg.UserAgent)
		}
	})

	t.Run("link filters are off by default", func(t *testing.T) {
		t.Parallel()
		if cfg.OnsiteOnly || cfg.NoTOC {
			t.Error("expected OnsiteOnly and NoTOC to be false")
		}
	})

	t.Run("history lives in the XDG data dir", func(t *testing.T) {
		t.Parallel()
		if cfg.DBDir != XDGDataDir() {
			t.Errorf("expected DBDir %q, got %q", XDGDataDir(), cfg.DBDir)
		}
		if cfg.NoHistory {
			t.Error("expected history to be enabled")
		}
		if cfg.HistoryKeep != 20 {
			t.Errorf("expected HistoryKeep to be 20, got %d", cfg.HistoryKeep)
		}
	})

	t.Run("default TorStartupTimeout is 3 minutes", func(t *testing.T) {
		t.Parallel()
		if cfg.TorStartupTimeout != 3*time.Minute {
			t.Errorf("expected TorStartupTimeout to be 3m, got %v", cfg.TorStartupTimeout)
		}
	})
}

// TestConfigValidate tests each validation rule in isolation.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	validConfig := func() *Config {
		cfg := NewConfig()
		cfg.Roots = []string{"docs/html"}
		return cfg
	}

	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{name: "valid config returns nil", modify: func(*Config) {}},
		{name: "no roots", modify: func(c *Config) { c.Roots = nil }, want: ErrNoRoot},
		{name: "zero timeout", modify: func(c *Config) { c.Timeout = 0 }, want: ErrInvalidTimeout},
		{name: "negative timeout", modify: func(c *Config) { c.Timeout = -time.Second }, want: ErrInvalidTimeout},
		{name: "zero concurrency", modify: func(c *Config) { c.Concurrency = 0 }, want: ErrInvalidConcurrency},
		{name: "zero batch size", modify: func(c *Config) { c.BatchSize = 0 }, want: ErrInvalidBatchSize},
		{
			name:   "json and markdown",
			modify: func(c *Config) { c.JSONReport, c.MarkdownReport = true, true },
			want:   ErrConflictingReportFormats,
		},
		{
			name:   "json and html report file are compatible",
			modify: func(c *Config) { c.JSONReport, c.HTMLReport = true, true },
		},
		{
			name:   "proxy and tor",
			modify: func(c *Config) { c.ProxyAddress, c.UseTor = "127.0.0.1:9050", true },
			want:   ErrConflictingProxy,
		},
		{name: "negative body size", modify: func(c *Config) { c.MaxBodySize = -1 }, want: ErrInvalidMaxBodySize},
		{name: "zero body size uses default", modify: func(c *Config) { c.MaxBodySize = 0 }},
		{name: "negative redirects", modify: func(c *Config) { c.MaxRedirects = -1 }, want: ErrInvalidMaxRedirects},
		{name: "negative history keep", modify: func(c *Config) { c.HistoryKeep = -1 }, want: ErrInvalidHistoryKeep},
		{name: "zero history keep keeps everything", modify: func(c *Config) { c.HistoryKeep = 0 }},
		{
			name:   "bad exclude pattern",
			modify: func(c *Config) { c.Excludes = []string{"^api/", "(unclosed"} },
			want:   ErrInvalidPattern,
		},
		{
			name:   "bad include pattern",
			modify: func(c *Config) { c.Includes = []string{"[z-a]"} },
			want:   ErrInvalidPattern,
		},
		{
			name:   "good patterns",
			modify: func(c *Config) { c.Excludes, c.Includes = []string{`\.tmp\.html$`}, []string{"^guide/"} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("expected nil error, got: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got: %v", tt.want, err)
			}
		})
	}
}

func TestConfigPatterns(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	cfg.Excludes = []string{"^api/", `_old\.html$`}
	cfg.Includes = []string{"^guide/"}

	excludes, err := cfg.ExcludePatterns()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(excludes) != 2 {
		t.Fatalf("expected 2 exclude patterns, got %d", len(excludes))
	}
	if !excludes[0].MatchString("api/index.html") || !excludes[1].MatchString("guide/setup_old.html") {
		t.Error("compiled exclude patterns do not match")
	}

	includes, err := cfg.IncludePatterns()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(includes) != 1 || includes[0].MatchString("api/index.html") {
		t.Errorf("unexpected include patterns: %v", includes)
	}

	empty := NewConfig()
	if got, err := empty.ExcludePatterns(); err != nil || got != nil {
		t.Errorf("expected nil patterns without error, got %v, %v", got, err)
	}
}

func TestConfigRunOptions(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	cfg.OnsiteOnly = true
	cfg.Excludes = []string{"^api/"}

	opts := cfg.RunOptions()
	if !opts.OnsiteOnly || opts.NoTOC {
		t.Errorf("unexpected switches: %+v", opts)
	}
	if len(opts.Excludes) != 1 || opts.Excludes[0] != "^api/" {
		t.Errorf("unexpected excludes: %v", opts.Excludes)
	}
}

func TestConfigApply(t *testing.T) {
	t.Parallel()

	t.Run("nil file is a no-op", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.Apply(nil)
		if cfg.OnsiteOnly || len(cfg.Excludes) != 0 {
			t.Error("expected config to be unchanged")
		}
	})

	t.Run("file switches and patterns are merged", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.NoTOC = true
		cfg.Excludes = []string{"^flag/"}
		cfg.Apply(&File{
			Options:            FileOptions{OnsiteOnly: true},
			SourceFileOmits:    []string{"^file/"},
			SourceFileIncludes: []string{"^guide/"},
		})

		if !cfg.OnsiteOnly {
			t.Error("expected OnsiteOnly from the file")
		}
		if !cfg.NoTOC {
			t.Error("expected NoTOC from the flag to stay enabled")
		}
		if len(cfg.Excludes) != 2 || cfg.Excludes[0] != "^flag/" || cfg.Excludes[1] != "^file/" {
			t.Errorf("unexpected excludes: %v", cfg.Excludes)
		}
		if len(cfg.Includes) != 1 {
			t.Errorf("unexpected includes: %v", cfg.Includes)
		}
	})

	t.Run("user agent replaces only the default", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.Apply(&File{UserAgent: "file-agent"})
		if cfg.UserAgent != "file-agent" {
			t.Errorf("expected file user agent, got %q", cfg.UserAgent)
		}

		cfg = NewConfig()
		cfg.UserAgent = "flag-agent"
		cfg.Apply(&File{UserAgent: "file-agent"})
		if cfg.UserAgent != "flag-agent" {
			t.Errorf("expected flag user agent to win, got %q", cfg.UserAgent)
		}
	})

	t.Run("flag headers win over file headers", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.Headers = map[string]string{"Accept-Language": "ja"}
		cfg.Apply(&File{Headers: map[string]string{
			"Accept-Language": "en",
			"X-Docs":          "1",
		}})

		if cfg.Headers["Accept-Language"] != "ja" {
			t.Errorf("expected flag header, got %q", cfg.Headers["Accept-Language"])
		}
		if cfg.Headers["X-Docs"] != "1" {
			t.Error("expected file header to be added")
		}
	})
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestLoadConfigFile tests the LoadConfigFile function.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.linkcheck")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads YAML", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, ".linkcheck", `options:
  onsite_only: true
source_file_omits:
  - ^api/
  - _old\.html$
user_agent: docs-bot
headers:
  Accept-Language: en
`)
		cfg, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !cfg.Options.OnsiteOnly || cfg.Options.NoTOC {
			t.Errorf("unexpected options: %+v", cfg.Options)
		}
		if len(cfg.SourceFileOmits) != 2 || cfg.SourceFileOmits[1] != `_old\.html$` {
			t.Errorf("unexpected omits: %v", cfg.SourceFileOmits)
		}
		if cfg.UserAgent != "docs-bot" {
			t.Errorf("unexpected user agent: %q", cfg.UserAgent)
		}
		if cfg.Headers["Accept-Language"] != "en" {
			t.Errorf("unexpected headers: %v", cfg.Headers)
		}
	})

	t.Run("loads the JSON layout", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, "linkcheck.json",
			`{"options": {"onsite_only": true, "no_toc": true}, "source_file_omits": ["^api/"]}`)
		cfg, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !cfg.Options.OnsiteOnly || !cfg.Options.NoTOC {
			t.Errorf("unexpected options: %+v", cfg.Options)
		}
		if len(cfg.SourceFileOmits) != 1 || cfg.SourceFileOmits[0] != "^api/" {
			t.Errorf("unexpected omits: %v", cfg.SourceFileOmits)
		}
	})

	t.Run("loads TOML", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, "linkcheck.toml", `source_file_omits = ["^api/"]
user_agent = "docs-bot"

[options]
no_toc = true

[headers]
X-Docs = "1"
`)
		cfg, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Options.OnsiteOnly || !cfg.Options.NoTOC {
			t.Errorf("unexpected options: %+v", cfg.Options)
		}
		if len(cfg.SourceFileOmits) != 1 || cfg.UserAgent != "docs-bot" {
			t.Errorf("unexpected file: %+v", cfg)
		}
		if cfg.Headers["X-Docs"] != "1" {
			t.Errorf("unexpected headers: %v", cfg.Headers)
		}
	})

	t.Run("empty file is an empty config", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile(writeConfig(t, ".linkcheck", ""))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Options.OnsiteOnly || len(cfg.SourceFileOmits) != 0 {
			t.Errorf("expected empty config, got %+v", cfg)
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(writeConfig(t, ".linkcheck", `invalid: yaml: content: [}`))
		if err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("returns error for invalid TOML", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(writeConfig(t, "linkcheck.toml", `options = [`))
		if err == nil {
			t.Error("expected error for invalid TOML")
		}
	})

	t.Run("rejects invalid patterns", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(writeConfig(t, ".linkcheck", "source_file_omits:\n  - \"(\"\n"))
		if !errors.Is(err, ErrInvalidPattern) {
			t.Errorf("expected ErrInvalidPattern, got: %v", err)
		}
	})
}

func TestTemplate(t *testing.T) {
	t.Parallel()

	if !bytes.Contains(Template, []byte("source_file_omits")) {
		t.Fatal("template does not mention source_file_omits")
	}

	var f File
	if err := yaml.Unmarshal(Template, &f); err != nil {
		t.Fatalf("template is not valid YAML: %v", err)
	}
	if f.Options.OnsiteOnly || f.Options.NoTOC || len(f.SourceFileOmits) != 0 {
		t.Errorf("template should not enable anything, got %+v", f)
	}
}

// TestFindConfigFile tests the FindConfigFile function.
func TestFindConfigFile(t *testing.T) {
	t.Run("returns explicit path if exists", func(t *testing.T) {
		configPath := writeConfig(t, "custom.yaml", "options: {}")

		result := FindConfigFile(configPath)
		if result != configPath {
			t.Errorf("expected %q, got %q", configPath, result)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		result := FindConfigFile("/nonexistent/path/config.yaml")
		if result != "" {
			t.Errorf("expected empty string, got %q", result)
		}
	})

	t.Run("finds .linkcheck in the current directory", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte("options: {}"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		t.Chdir(dir)

		result := FindConfigFile("")
		if filepath.Base(result) != DefaultConfigFile || filepath.Dir(result) == XDGConfigDir() {
			t.Errorf("expected the cwd config, got %q", result)
		}
	})
}

// TestXDGDirs tests XDG directory functions.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	for name, dir := range map[string]string{
		"data":   XDGDataDir(),
		"config": XDGConfigDir(),
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			if filepath.Base(dir) != AppName {
				t.Errorf("expected %s dir to end in %q, got %q", name, AppName, dir)
			}
		})
	}
}
