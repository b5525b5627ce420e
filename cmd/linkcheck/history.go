package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/linkcheck/internal/config"
	"github.com/nao1215/linkcheck/internal/database"
	"github.com/nao1215/linkcheck/internal/model"
	"github.com/nao1215/linkcheck/internal/report"
)

// defaultHistoryLimit is the number of runs listed by default.
const defaultHistoryLimit = 10

// NewHistoryCmd creates the history command.
// It reads the run summaries stored by check.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [html-dir]",
		Short: "Show or compare stored check runs",
		Long: `History shows the runs stored by 'linkcheck check'.

Without a directory it lists every checked directory. With a directory it
lists the latest runs of that directory, or compares the last two runs:

- Introduced links are broken now but were not before
- Fixed links were broken before but are not now
- Persisting links are broken in both runs

Examples:
  # List checked directories
  linkcheck history

  # List the runs of a directory
  linkcheck history build/html

  # Compare the last two runs
  linkcheck history --compare build/html

  # Print the stored report of a run
  linkcheck history --show 2f1c9a4e-6d7b-4a43-9a51-3f0f4bd1c0de

  # Keep only the five latest runs of a directory
  linkcheck history --prune 5 build/html`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "l", defaultHistoryLimit, "Maximum number of runs to list")
	cmd.Flags().BoolP("compare", "C", false, "Compare the last two runs of the directory")
	cmd.Flags().String("show", "", "Print the stored report of the run with this ID")
	cmd.Flags().Int("prune", 0, "Delete all but the given number of latest runs of the directory")
	cmd.Flags().BoolP("json", "j", false, "Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false, "Output a stored report (--show) in Markdown format")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "Directory of the history database")

	return cmd
}

// historyOptions are the parsed flags of the history command.
type historyOptions struct {
	root     string
	limit    int
	compare  bool
	show     string
	prune    int
	json     bool
	markdown bool
	dbDir    string
}

func parseHistoryOptions(cmd *cobra.Command, args []string) (*historyOptions, error) {
	opts := &historyOptions{}
	flags := cmd.Flags()

	var err error
	if opts.limit, err = flags.GetInt("limit"); err != nil {
		return nil, err
	}
	if opts.compare, err = flags.GetBool("compare"); err != nil {
		return nil, err
	}
	if opts.show, err = flags.GetString("show"); err != nil {
		return nil, err
	}
	if opts.prune, err = flags.GetInt("prune"); err != nil {
		return nil, err
	}
	if opts.json, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if opts.markdown, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if opts.dbDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}

	if len(args) == 1 {
		if opts.root, err = filepath.Abs(args[0]); err != nil {
			return nil, fmt.Errorf("invalid directory %q: %w", args[0], err)
		}
	}

	// Validate before opening the database.
	switch {
	case opts.json && opts.markdown:
		return nil, config.ErrConflictingReportFormats
	case opts.limit <= 0:
		return nil, errors.New("invalid limit: must be positive")
	case opts.prune < 0:
		return nil, errors.New("invalid prune count: must be non-negative")
	case (opts.compare || opts.prune > 0) && opts.root == "":
		return nil, errors.New("a directory is required for --compare and --prune")
	}
	return opts, nil
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	opts, err := parseHistoryOptions(cmd, args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	db, err := database.Open(opts.dbDir, database.Options{EnableWAL: true})
	if errors.Is(err, database.ErrNotFound) {
		fmt.Fprintln(out, "No run history found.")
		fmt.Fprintln(out, "\nUse 'linkcheck check <html-dir>' to check a directory.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()

	switch {
	case opts.show != "":
		return showRun(ctx, db, out, opts)
	case opts.prune > 0:
		return pruneRuns(ctx, db, out, opts)
	case opts.compare:
		return compareRuns(ctx, db, out, opts)
	case opts.root != "":
		return listRuns(ctx, db, out, opts)
	default:
		return listRoots(ctx, db, out)
	}
}

// listRoots prints every directory with stored runs.
func listRoots(ctx context.Context, db *database.HistoryDB, out io.Writer) error {
	roots, err := db.ListRoots(ctx)
	if err != nil {
		return fmt.Errorf("failed to list directories: %w", err)
	}

	if len(roots) == 0 {
		fmt.Fprintln(out, "No checked directories found in the history.")
		return nil
	}

	fmt.Fprintf(out, "Checked directories (%d):\n\n", len(roots))
	for _, root := range roots {
		fmt.Fprintf(out, "  • %s\n", root)
	}
	fmt.Fprintln(out, "\nUse 'linkcheck history <html-dir>' to see the runs of a directory.")
	return nil
}

// listRuns prints the latest runs of one directory, newest first.
func listRuns(ctx context.Context, db *database.HistoryDB, out io.Writer, opts *historyOptions) error {
	runs, err := db.ListRuns(ctx, opts.root, opts.limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if opts.json {
		return writeJSON(out, runs)
	}

	if len(runs) == 0 {
		fmt.Fprintf(out, "No runs found for %s\n", opts.root)
		return nil
	}

	fmt.Fprintf(out, "Runs of %s (%d):\n\n", opts.root, len(runs))
	fmt.Fprintf(out, "  %-36s  %-24s  %8s  %7s  %6s\n", "ID", "Started", "Elapsed", "Checked", "Broken")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 89))
	for _, r := range runs {
		broken := fmt.Sprintf("%d", r.LinksBroken)
		if r.Error != "" {
			broken = "error"
		}
		fmt.Fprintf(out, "  %-36s  %-24s  %8s  %7d  %6s\n",
			r.ID,
			r.StartTime.UTC().Format(report.TimeFormat),
			r.Elapsed().Round(time.Millisecond),
			r.LinksChecked,
			broken,
		)
	}
	return nil
}

// showRun prints the stored report of one run.
func showRun(ctx context.Context, db *database.HistoryDB, out io.Writer, opts *historyOptions) error {
	summary, err := db.GetSummary(ctx, opts.show)
	if err != nil {
		return fmt.Errorf("failed to load run: %w", err)
	}
	if summary == nil {
		return fmt.Errorf("run not found: %s", opts.show)
	}

	var w report.Writer
	switch {
	case opts.json:
		w = report.NewJSONWriter(out, report.WithPrettyPrint())
	case opts.markdown:
		w = report.NewMarkdownWriter(out)
	default:
		w = report.NewSimpleWriter(out)
	}
	_, err = w.WriteSummary(summary)
	return err
}

// pruneRuns deletes all but the latest runs of one directory.
func pruneRuns(ctx context.Context, db *database.HistoryDB, out io.Writer, opts *historyOptions) error {
	n, err := db.Prune(ctx, opts.root, opts.prune)
	if err != nil {
		return fmt.Errorf("failed to prune runs: %w", err)
	}
	fmt.Fprintf(out, "Deleted %d run(s) of %s\n", n, opts.root)
	return nil
}

// comparison is the JSON form of a comparison.
type comparison struct {
	Root       string             `json:"root"`
	Older      string             `json:"older_run_id,omitempty"`
	Newer      string             `json:"newer_run_id"`
	Introduced []model.BrokenLink `json:"introduced"`
	Fixed      []model.BrokenLink `json:"fixed"`
	Persisting []model.BrokenLink `json:"persisting"`
}

// compareRuns compares the last two runs of one directory.
func compareRuns(ctx context.Context, db *database.HistoryDB, out io.Writer, opts *historyOptions) error {
	summaries, err := db.LatestSummaries(ctx, opts.root, 2)
	if err != nil {
		return fmt.Errorf("failed to load runs: %w", err)
	}
	if len(summaries) == 0 {
		fmt.Fprintf(out, "No runs found for %s\n", opts.root)
		return nil
	}

	newer := summaries[0]
	var older *model.Summary
	if len(summaries) > 1 {
		older = summaries[1]
	}
	diff := database.Compare(older, newer)

	if opts.json {
		c := comparison{
			Root:       opts.root,
			Newer:      newer.RunID,
			Introduced: emptyIfNil(diff.Introduced),
			Fixed:      emptyIfNil(diff.Fixed),
			Persisting: emptyIfNil(diff.Persisting),
		}
		if older != nil {
			c.Older = older.RunID
		}
		return writeJSON(out, c)
	}

	fmt.Fprintf(out, "Comparison for %s\n", opts.root)
	if older == nil {
		fmt.Fprintln(out, "Only one run is stored; every broken link counts as introduced.")
	} else {
		fmt.Fprintf(out, "  Previous: %s (%s)\n", older.RunID, older.StartTime.UTC().Format(report.TimeFormat))
	}
	fmt.Fprintf(out, "  Latest:   %s (%s)\n\n", newer.RunID, newer.StartTime.UTC().Format(report.TimeFormat))

	writeLinkSection(out, "Introduced", "+", diff.Introduced)
	writeLinkSection(out, "Fixed", "-", diff.Fixed)
	writeLinkSection(out, "Persisting", " ", diff.Persisting)

	switch {
	case diff.Regressed():
		fmt.Fprintf(out, "Result: %d new broken link(s)\n", len(diff.Introduced))
	case len(diff.Fixed) > 0:
		fmt.Fprintf(out, "Result: %d link(s) fixed\n", len(diff.Fixed))
	default:
		fmt.Fprintln(out, "Result: no change")
	}
	return nil
}

func writeLinkSection(out io.Writer, title, mark string, links []model.BrokenLink) {
	fmt.Fprintf(out, "%s (%d):\n", title, len(links))
	for _, b := range links {
		fmt.Fprintf(out, "  %s %s -> %s", mark, b.Source, b.Href)
		if b.Reason != "" {
			fmt.Fprintf(out, " [%s]", b.Reason)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out)
}

func emptyIfNil(links []model.BrokenLink) []model.BrokenLink {
	if links == nil {
		return []model.BrokenLink{}
	}
	return links
}

func writeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
