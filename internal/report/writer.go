package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/linkcheck/internal/model"
)

// TimeFormat is the layout used for start and end times in reports.
const TimeFormat = "2006-01-02-Mon-15:04:05Z"

// Writer defines the interface for report output.
// Implementations write run results in various formats.
type Writer interface {
	// Write outputs the report of a full run.
	// Returns the number of bytes written and any error encountered.
	Write(run *model.Run) (int, error)

	// WriteSummary outputs a report from a stored summary. Summaries carry
	// no page registry, so parameters and off-site links are omitted.
	WriteSummary(summary *model.Summary) (int, error)
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// brokenGroup is the set of broken links found on one source page.
type brokenGroup struct {
	source string
	links  []model.BrokenLink
}

// reportData is the format-independent content of a report.
type reportData struct {
	runID    string
	root     string
	options  *model.RunOptions
	counters model.Counters
	broken   []brokenGroup
	offsite  []model.PageLinks
	errMsg   string
}

// newReportData flattens a run into report content.
func newReportData(run *model.Run) *reportData {
	d := newSummaryData(model.NewSummary(run))
	opts := run.Options
	d.options = &opts
	d.offsite = run.OffsiteLinks()
	return d
}

// newSummaryData builds report content from a summary alone.
func newSummaryData(s *model.Summary) *reportData {
	d := &reportData{
		runID: s.RunID,
		root:  s.Root,
		counters: model.Counters{
			SourcePages:  s.SourcePages,
			TargetPages:  s.TargetPages,
			LinksChecked: s.LinksChecked,
			LinksBroken:  s.LinksBroken,
			StartTime:    s.StartTime,
			EndTime:      s.EndTime,
		},
		errMsg: s.Error,
	}

	for _, b := range s.Broken {
		n := len(d.broken)
		if n == 0 || d.broken[n-1].source != b.Source {
			d.broken = append(d.broken, brokenGroup{source: b.Source})
			n++
		}
		d.broken[n-1].links = append(d.broken[n-1].links, b)
	}

	return d
}

// status returns a one-line verdict for the run.
func (d *reportData) status() string {
	switch {
	case d.errMsg != "":
		return "Error - " + d.errMsg
	case d.counters.LinksBroken > 0:
		return "Broken links found"
	default:
		return "Clean"
	}
}

// parameterRows returns the parameters table as label/value pairs.
func (d *reportData) parameterRows() [][]string {
	if d.options == nil {
		return nil
	}
	rows := [][]string{
		{"html_dirpath", strconv.Quote(d.root)},
		{"onsite_only", strconv.FormatBool(d.options.OnsiteOnly)},
		{"no_toc", strconv.FormatBool(d.options.NoTOC)},
	}
	if len(d.options.Includes) > 0 {
		rows = append(rows, []string{"includes", strings.Join(d.options.Includes, ", ")})
	}
	if len(d.options.Excludes) > 0 {
		rows = append(rows, []string{"excludes", strings.Join(d.options.Excludes, ", ")})
	}
	return rows
}

// timeRows returns the times table as label/value pairs.
func (d *reportData) timeRows() [][]string {
	return [][]string{
		{"Start Time", formatTime(d.counters.StartTime)},
		{"End Time", formatTime(d.counters.EndTime)},
		{"Elapsed Time", formatElapsed(d.counters.Elapsed())},
	}
}

// countRows returns the counts table as label/value pairs.
func (d *reportData) countRows() [][]string {
	return [][]string{
		{"Source Pages", strconv.Itoa(d.counters.SourcePages)},
		{"Target Pages", strconv.Itoa(d.counters.TargetPages)},
		{"Links Checked", strconv.Itoa(d.counters.LinksChecked)},
		{"Links Broken", strconv.Itoa(d.counters.LinksBroken)},
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(TimeFormat)
}

// formatElapsed renders d as HH:MM:SS.
func formatElapsed(d time.Duration) string {
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs/60)%60, secs%60)
}

// orDash returns s, or "-" when s is empty.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// fragmentCell renders the fragment of a broken link.
func fragmentCell(b model.BrokenLink) string {
	if b.Fragment == "" {
		return "-"
	}
	return "#" + b.Fragment
}
