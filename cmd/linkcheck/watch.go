package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/nao1215/linkcheck/internal/report"
)

// defaultDebounce is the quiet period after the last change before a
// directory is checked again.
const defaultDebounce = 500 * time.Millisecond

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <html-dir>",
		Short: "Check a directory again whenever it changes",
		Long: `Watch checks the directory once, then watches it and checks it again
after every burst of file changes. It accepts every flag of check.

Broken links do not stop the watch; press Ctrl+C to exit.

Examples:
  # Recheck generated documentation while it is rebuilt
  linkcheck watch --onsite-only build/html

  # Keep Report.htm up to date
  linkcheck watch --html build/html`,
		Args: cobra.ExactArgs(1),
		RunE: runWatchCmd,
	}

	addCheckFlags(cmd)
	cmd.Flags().Duration("debounce", defaultDebounce, "Quiet period after a change before checking again")

	return cmd
}

func runWatchCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	debounce, err := cmd.Flags().GetDuration("debounce")
	if err != nil {
		return err
	}

	logger := newLogger(cmd, cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cfg.Roots[0]
	if st, err := os.Stat(root); err != nil || !st.IsDir() {
		return fmt.Errorf("directory not found or not a directory: %s", root)
	}

	watcher, err := newTreeWatcher(root, logger)
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }() //nolint:errcheck // Best effort close

	c, err := newChecker(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.close()

	check := func(ctx context.Context) {
		checkOnce(ctx, c, cmd.OutOrStdout())
	}

	check(ctx)
	return watchLoop(ctx, watcher, debounce, logger, check)
}

// checkOnce runs one check and keeps watching whatever the outcome.
func checkOnce(ctx context.Context, c *checker, out io.Writer) {
	err := c.run(ctx, out)
	switch {
	case err == nil:
		fmt.Fprintln(out, "All links are valid.")
	case errors.Is(err, ErrBrokenLinks):
		fmt.Fprintln(out, "Broken links found; waiting for changes.")
	case ctx.Err() != nil:
		// Interrupted.
	default:
		c.logger.Error("check failed", "error", err)
	}
}

// newTreeWatcher watches root and all of its subdirectories.
func newTreeWatcher(root string, logger *slog.Logger) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	if err := addDirsRecursive(watcher, root, logger); err != nil {
		_ = watcher.Close() //nolint:errcheck // Already failing
		return nil, err
	}
	return watcher, nil
}

func addDirsRecursive(w *fsnotify.Watcher, root string, logger *slog.Logger) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if err := w.Add(path); err != nil {
				logger.Warn("watch add failed", "dir", path, "error", err)
			}
		}
		return nil
	})
}

// watchLoop calls check after every burst of relevant events, once no
// event arrived for debounce. It returns when ctx is done or the watcher
// is closed.
func watchLoop(ctx context.Context, watcher *fsnotify.Watcher, debounce time.Duration,
	logger *slog.Logger, check func(context.Context)) error {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if shouldIgnoreEvent(ev.Name) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					_ = addDirsRecursive(watcher, ev.Name, logger) //nolint:errcheck // Walk errors are skipped
				}
			}
			logger.Debug("file change detected", "path", ev.Name, "op", ev.Op.String())

			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "error", err)

		case <-fire:
			fire = nil
			logger.Info("change detected; checking again")
			check(ctx)
		}
	}
}

// shouldIgnoreEvent reports whether a change cannot affect the link graph:
// hidden and editor temporary files, and the HTML report the check itself
// writes.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)

	switch {
	case strings.HasPrefix(base, "."):
		return true
	case strings.HasSuffix(base, "~"), strings.HasSuffix(base, ".swp"), strings.HasSuffix(base, ".tmp"):
		return true
	case base == report.ReportFileName:
		return true
	}
	return false
}
