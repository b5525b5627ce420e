package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/linkcheck/internal/config"
	"github.com/nao1215/linkcheck/internal/database"
	"github.com/nao1215/linkcheck/internal/fetcher"
	"github.com/nao1215/linkcheck/internal/linkgraph"
	"github.com/nao1215/linkcheck/internal/log"
	"github.com/nao1215/linkcheck/internal/metrics"
	"github.com/nao1215/linkcheck/internal/model"
	"github.com/nao1215/linkcheck/internal/pipeline"
	"github.com/nao1215/linkcheck/internal/report"
	"github.com/nao1215/linkcheck/internal/tor"
)

// ErrBrokenLinks is returned by the check command when at least one link
// is broken. It makes the process exit with status 1.
var ErrBrokenLinks = errors.New("broken links found")

// NewCheckCmd creates the check command.
func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <html-dir>...",
		Short: "Check the links of one or more HTML directories",
		Long: `Check enumerates every .html file below each directory, resolves its
links and verifies them:

- local targets must exist inside the directory
- off-site targets must answer with a non-error HTTP status
- fragments must name an id or a named anchor of the target page

The exit status is 1 when any link is broken.

Examples:
  # Check generated documentation
  linkcheck check build/html

  # Skip off-site links and the table of contents
  linkcheck check --onsite-only --no-toc build/html

  # Do not check the API reference
  linkcheck check --exclude '^api/' build/html

  # Check several trees, four off-site fetches at a time
  linkcheck check -n 4 site-a/html site-b/html

  # Write Report.htm into the directory and a Markdown report to a file
  linkcheck check --html -m -o report.md build/html

  # Route off-site fetches through an embedded Tor daemon
  linkcheck check --tor build/html`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCheckCmd,
	}

	addCheckFlags(cmd)
	return cmd
}

// addCheckFlags registers the flags shared by check and watch.
func addCheckFlags(cmd *cobra.Command) {
	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .linkcheck in current or XDG config directory)")

	// Link selection
	cmd.Flags().Bool("onsite-only", false, "Skip links that leave the checked directory")
	cmd.Flags().Bool("no-toc", false, "Skip the links of table_of_contents.html")
	cmd.Flags().StringArray("exclude", nil, "Regular expression of source paths not to check (repeatable)")
	cmd.Flags().StringArray("include", nil, "Regular expression of source paths to check (repeatable)")

	// Network
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout, "Timeout for each off-site request")
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency, "Number of concurrent off-site requests")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize, "Number of directories checked concurrently")
	cmd.Flags().String("user-agent", config.DefaultUserAgent, "User-Agent of off-site requests")
	cmd.Flags().StringArrayP("header", "H", nil, `Extra header of off-site requests, as "Name: value" (repeatable)`)
	cmd.Flags().String("proxy", "", "SOCKS5 proxy for off-site requests (e.g., 127.0.0.1:9050)")
	cmd.Flags().Bool("tor", false, "Start an embedded Tor daemon for off-site requests")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout, "Timeout for embedded Tor startup")

	// Reports
	cmd.Flags().BoolP("json", "j", false, "Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false, "Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().Bool("html", false, "Write "+report.ReportFileName+" into every checked directory")
	cmd.Flags().StringP("output", "o", "", "Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("show-offsite", false, "List off-site links in the report")
	cmd.Flags().String("metrics-file", "", "Write Prometheus metrics to this textfile")

	// History
	cmd.Flags().Bool("no-history", false, "Do not store the run in the history database")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "Directory of the history database")
	cmd.Flags().Int("history-keep", config.DefaultHistoryKeep, "Number of runs per directory kept in the history (0 keeps all)")
}

func runCheckCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd, cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCheck(ctx, cfg, cmd.OutOrStdout(), logger)
}

// newLogger creates the logger of a command, writing text or JSON lines
// to its error stream.
func newLogger(cmd *cobra.Command, verbose bool) *slog.Logger {
	logJSON, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		logJSON, _ = cmd.Root().PersistentFlags().GetBool("log-json") //nolint:errcheck // Defaults to text logs
	}
	if logJSON {
		return log.NewSecureJSONLogger(cmd.ErrOrStderr(), verbose)
	}
	return log.NewSecureLogger(cmd.ErrOrStderr(), verbose)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags and the
// configuration file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.OnsiteOnly, err = flags.GetBool("onsite-only"); err != nil {
		return nil, err
	}
	if cfg.NoTOC, err = flags.GetBool("no-toc"); err != nil {
		return nil, err
	}
	if cfg.Excludes, err = flags.GetStringArray("exclude"); err != nil {
		return nil, err
	}
	if cfg.Includes, err = flags.GetStringArray("include"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	headers, err := flags.GetStringArray("header")
	if err != nil {
		return nil, err
	}
	if cfg.Headers, err = parseHeaders(headers); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UseTor, err = flags.GetBool("tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.HTMLReport, err = flags.GetBool("html"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.ShowOffsite, err = flags.GetBool("show-offsite"); err != nil {
		return nil, err
	}
	if cfg.MetricsFile, err = flags.GetString("metrics-file"); err != nil {
		return nil, err
	}
	if cfg.NoHistory, err = flags.GetBool("no-history"); err != nil {
		return nil, err
	}
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	if cfg.HistoryKeep, err = flags.GetInt("history-keep"); err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	// An explicit --config must exist; a missing default file is fine.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath == "" && cfg.ConfigFilePath != "" {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}
	if configPath != "" {
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.Apply(file)
	}

	// History and Report.htm are keyed by the absolute directory.
	for _, arg := range args {
		root, err := filepath.Abs(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid directory %q: %w", arg, err)
		}
		cfg.Roots = append(cfg.Roots, root)
	}

	return cfg, nil
}

// parseHeaders parses "Name: value" pairs.
func parseHeaders(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(values))
	for _, v := range values {
		name, value, ok := strings.Cut(v, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q: expected \"Name: value\"", v)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

// checker holds what every run of a check invocation shares: the fetch
// stack, the compiled patterns and the metrics recorder.
type checker struct {
	cfg      *config.Config
	logger   *slog.Logger
	fetch    linkgraph.Fetcher
	recorder *metrics.Recorder
	excludes []*regexp.Regexp
	includes []*regexp.Regexp

	// closeFn releases the network stack (the embedded Tor daemon).
	closeFn func()
}

// newChecker builds the fetch stack. With --tor it starts the embedded Tor
// daemon, which must be released with close.
func newChecker(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*checker, error) {
	excludes, err := cfg.ExcludePatterns()
	if err != nil {
		return nil, err
	}
	includes, err := cfg.IncludePatterns()
	if err != nil {
		return nil, err
	}

	c := &checker{
		cfg:      cfg,
		logger:   logger,
		excludes: excludes,
		includes: includes,
		closeFn:  func() {},
	}
	if cfg.MetricsFile != "" {
		c.recorder = metrics.NewRecorder(nil)
	}

	if err := c.setupFetcher(ctx); err != nil {
		c.close()
		return nil, err
	}
	return c, nil
}

// setupFetcher creates the off-site fetcher, routed through a SOCKS5
// proxy or the embedded Tor daemon when requested.
func (c *checker) setupFetcher(ctx context.Context) error {
	cfg := c.cfg

	if cfg.OnsiteOnly && (cfg.UseTor || cfg.ProxyAddress != "") {
		c.logger.Warn("--onsite-only makes no off-site requests; ignoring proxy settings")
		c.fetch = tor.NewOnionGuard(fetcher.New(nil), false)
		return nil
	}

	client, routed, err := c.httpClient(ctx)
	if err != nil {
		return err
	}

	opts := []fetcher.Option{
		fetcher.WithUserAgent(cfg.UserAgent),
		fetcher.WithMaxBodySize(cfg.MaxBodySize),
		fetcher.WithLogger(c.logger),
	}
	names := make([]string, 0, len(cfg.Headers))
	for name := range cfg.Headers {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		opts = append(opts, fetcher.WithHeader(name, cfg.Headers[name]))
	}

	c.fetch = tor.NewOnionGuard(fetcher.New(client, opts...), routed)
	return nil
}

// httpClient returns the client of off-site fetches and whether it is
// routed through a proxy able to reach onion services.
func (c *checker) httpClient(ctx context.Context) (*http.Client, bool, error) {
	cfg := c.cfg

	switch {
	case cfg.UseTor:
		embedded := tor.NewEmbeddedTor(tor.WithStartupTimeout(cfg.TorStartupTimeout))
		c.logger.Warn("starting embedded Tor daemon; this may take a few minutes")
		if err := embedded.Start(ctx); err != nil {
			return nil, false, fmt.Errorf("failed to start embedded Tor: %w", err)
		}
		c.closeFn = func() {
			c.logger.Info("stopping embedded Tor daemon")
			if err := embedded.Stop(); err != nil {
				c.logger.Error("failed to stop embedded Tor", "error", err)
			}
		}
		client, err := embedded.NewClient()
		if err != nil {
			return nil, false, fmt.Errorf("failed to create Tor client: %w", err)
		}
		c.logger.Info("embedded Tor daemon started", "socksAddr", embedded.SocksAddr())
		return client.HTTPClient(cfg.Timeout, cfg.MaxRedirects), true, nil

	case cfg.ProxyAddress != "":
		client, err := tor.NewClient(cfg.ProxyAddress)
		if err != nil {
			return nil, false, err
		}
		if status := client.CheckConnection(ctx); status != tor.ProxyStatusOK {
			return nil, false, fmt.Errorf("proxy check failed for %s: %w", client.ProxyAddress(), status.Error())
		}
		c.logger.Info("SOCKS5 proxy connection verified", "address", client.ProxyAddress())
		return client.HTTPClient(cfg.Timeout, cfg.MaxRedirects), true, nil

	default:
		return fetcher.NewHTTPClient(cfg.Timeout, cfg.MaxRedirects, nil), false, nil
	}
}

func (c *checker) close() {
	c.closeFn()
}

// pipelineFor builds the checking pipeline of one document tree.
func (c *checker) pipelineFor(root string) *pipeline.Pipeline {
	opts := []linkgraph.Option{
		linkgraph.WithFetcher(c.fetch),
		linkgraph.WithLogger(c.logger),
		linkgraph.WithOnsiteOnly(c.cfg.OnsiteOnly),
		linkgraph.WithNoTOC(c.cfg.NoTOC),
		linkgraph.WithExcludes(c.excludes),
		linkgraph.WithIncludes(c.includes),
		linkgraph.WithConcurrency(c.cfg.Concurrency),
	}
	if c.recorder != nil {
		opts = append(opts, linkgraph.WithObserver(c.recorder))
	}

	graph := linkgraph.New(os.DirFS(root), opts...)
	return pipeline.DefaultPipeline(graph, pipeline.WithLogger(c.logger.With("root", root)))
}

// runCheck checks every configured root, writes the reports, records
// history and metrics. It returns ErrBrokenLinks when a link is broken.
func runCheck(ctx context.Context, cfg *config.Config, stdout io.Writer, logger *slog.Logger) error {
	logger.Info("starting check",
		"roots", cfg.Roots,
		"onsiteOnly", cfg.OnsiteOnly,
		"noTOC", cfg.NoTOC,
		"concurrency", cfg.Concurrency,
	)

	c, err := newChecker(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.close()

	return c.run(ctx, stdout)
}

// run checks every configured root once. Each run is reported as soon
// as its tree is done.
func (c *checker) run(ctx context.Context, stdout io.Writer) error {
	cfg, logger := c.cfg, c.logger

	var history *database.HistoryDB
	if !cfg.NoHistory {
		var err error
		history, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer history.Close()
	}

	output, closeOutput, err := openOutput(cfg.ReportFile, stdout)
	if err != nil {
		return err
	}
	defer closeOutput()
	writer := newReportWriter(cfg, output)

	bp := pipeline.NewBatchProcessor(
		c.pipelineFor,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithRunOptions(cfg.RunOptions()),
		pipeline.WithBatchLogger(logger),
	)

	var (
		mu       sync.Mutex
		failed   []string
		broken   bool
		writeErr error
	)
	batchErr := bp.ProcessBatchWithCallback(ctx, cfg.Roots, func(run *model.Run, index int) {
		mu.Lock()
		defer mu.Unlock()

		logger.Debug("check completed",
			"root", run.Root,
			"index", index+1,
			"total", len(cfg.Roots),
		)
		c.recorder.ObserveRun(run)

		if _, err := writer.Write(run); err != nil && writeErr == nil {
			writeErr = fmt.Errorf("failed to write report: %w", err)
		}
		if cfg.HTMLReport && !run.Failed() {
			c.writeReportFile(run)
		}
		if history != nil {
			saveHistory(ctx, history, run, cfg.HistoryKeep, logger)
		}

		if run.Failed() {
			failed = append(failed, fmt.Sprintf("%s: %v", run.Root, run.Err))
		}
		if run.Counters.LinksBroken > 0 {
			broken = true
		}
	})

	if cfg.MetricsFile != "" {
		if err := c.recorder.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Error("failed to write metrics", "error", err)
		}
	}

	switch {
	case writeErr != nil:
		return writeErr
	case batchErr != nil:
		return fmt.Errorf("check interrupted: %w", batchErr)
	case len(failed) > 0:
		return fmt.Errorf("check failed: %s", strings.Join(failed, "; "))
	case broken:
		return ErrBrokenLinks
	}
	return nil
}

// writeReportFile writes Report.htm into the checked directory.
func (c *checker) writeReportFile(run *model.Run) {
	path, err := report.WriteReportFile(run, run.Root,
		report.WithMarkdownOptions(report.WithOffsiteSection(c.cfg.ShowOffsite)),
	)
	if err != nil {
		c.logger.Error("failed to write HTML report", "root", run.Root, "error", err)
		return
	}
	c.logger.Info("HTML report written", "path", path)
}

// saveHistory stores the summary of run and prunes the older runs of its
// directory beyond keep.
func saveHistory(ctx context.Context, history *database.HistoryDB, run *model.Run, keep int, logger *slog.Logger) {
	if err := history.SaveSummary(ctx, model.NewSummary(run)); err != nil {
		logger.Error("failed to save run history", "root", run.Root, "error", err)
		return
	}
	if keep <= 0 {
		return
	}
	n, err := history.Prune(ctx, run.Root, keep)
	if err != nil {
		logger.Warn("failed to prune run history", "root", run.Root, "error", err)
		return
	}
	if n > 0 {
		logger.Debug("pruned run history", "root", run.Root, "deleted", n)
	}
}

// newReportWriter selects the report format.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output, report.WithOffsiteSection(cfg.ShowOffsite))
	default:
		return report.NewSimpleWriter(output,
			report.WithShowOffsite(cfg.ShowOffsite),
			report.WithVerbose(cfg.Verbose),
		)
	}
}

// openOutput returns the report destination: path when set, stdout
// otherwise. Directories are created as needed.
func openOutput(path string, stdout io.Writer) (io.Writer, func(), error) {
	if path == "" {
		return stdout, func() {}, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil //nolint:errcheck // Best effort close
}
