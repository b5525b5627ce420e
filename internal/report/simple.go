package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/linkcheck/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ruleWidth is the width of the horizontal rules in text reports.
const ruleWidth = 70

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// showOffsite adds the off-site links section.
	showOffsite bool

	// verbose adds the text of each broken link.
	verbose bool

	title cases.Caser
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowOffsite configures the writer to list off-site links per page.
func WithShowOffsite(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showOffsite = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		title:      cases.Title(language.English),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the run report in human-readable format.
func (w *SimpleWriter) Write(run *model.Run) (int, error) {
	return w.write(newReportData(run))
}

// WriteSummary outputs a stored summary in human-readable format.
func (w *SimpleWriter) WriteSummary(summary *model.Summary) (int, error) {
	return w.write(newSummaryData(summary))
}

func (w *SimpleWriter) write(d *reportData) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, d)
	w.writeTables(&sb, d)
	w.writeBrokenLinks(&sb, d)
	if w.showOffsite && d.options != nil {
		w.writeOffsiteLinks(&sb, d)
	}
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

// writeSection writes a section title between two thin rules.
func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}

// writeHeader writes the report header with run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, d *reportData) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("                         LINKCHECK REPORT\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Directory: %s\n", d.root)
	if d.runID != "" {
		fmt.Fprintf(sb, "Run ID:    %s\n", d.runID)
	}
	fmt.Fprintf(sb, "Status:    %s\n", d.status())
	sb.WriteString("\n")
}

// writeTables writes the parameters, times and counts sections.
func (w *SimpleWriter) writeTables(sb *strings.Builder, d *reportData) {
	if rows := d.parameterRows(); len(rows) > 0 {
		writeSection(sb, "PARAMETERS")
		w.writeRows(sb, rows, true)
	}

	writeSection(sb, "TIMES")
	w.writeRows(sb, d.timeRows(), false)

	writeSection(sb, "COUNTS")
	w.writeRows(sb, d.countRows(), false)
}

// writeRows writes aligned label/value pairs. Snake-case labels are
// converted to title case when retitle is set.
func (w *SimpleWriter) writeRows(sb *strings.Builder, rows [][]string, retitle bool) {
	width := 0
	labels := make([]string, len(rows))
	for i, row := range rows {
		labels[i] = row[0]
		if retitle {
			labels[i] = w.title.String(strings.ReplaceAll(row[0], "_", " "))
		}
		width = max(width, len(labels[i]))
	}
	for i, row := range rows {
		fmt.Fprintf(sb, "  %-*s  %s\n", width+1, labels[i]+":", row[1])
	}
	sb.WriteString("\n")
}

// writeBrokenLinks writes the broken links grouped by source page.
func (w *SimpleWriter) writeBrokenLinks(sb *strings.Builder, d *reportData) {
	writeSection(sb, "BROKEN LINKS BY SOURCE PAGE")

	if len(d.broken) == 0 {
		sb.WriteString("  None.\n\n")
		return
	}

	for _, group := range d.broken {
		fmt.Fprintf(sb, "%s (%d)\n", group.source, len(group.links))
		for _, b := range group.links {
			fmt.Fprintf(sb, "  [x] %s\n", b.Href)
			if w.verbose && b.Text != "" {
				fmt.Fprintf(sb, "      Text:     %s\n", b.Text)
			}
			fmt.Fprintf(sb, "      Path:     %s\n", b.TargetPath)
			if b.Fragment != "" {
				fmt.Fprintf(sb, "      Fragment: %s\n", b.Fragment)
			}
			if b.Reason != "" {
				fmt.Fprintf(sb, "      Reason:   %s\n", b.Reason)
			}
			if b.FetchError != "" {
				fmt.Fprintf(sb, "      Message:  %s\n", b.FetchError)
			}
		}
		sb.WriteString("\n")
	}
}

// writeOffsiteLinks writes every off-site link with its verdict.
func (w *SimpleWriter) writeOffsiteLinks(sb *strings.Builder, d *reportData) {
	writeSection(sb, "OFF-SITE LINKS BY SOURCE PAGE")

	if len(d.offsite) == 0 {
		sb.WriteString("  None.\n\n")
		return
	}

	for _, pl := range d.offsite {
		sb.WriteString(pl.Page.Path)
		sb.WriteString("\n")
		for _, l := range pl.Links {
			fmt.Fprintf(sb, "  [%s] %s\n", w.title.String(l.Validity.String()), l.Href)
		}
		sb.WriteString("\n")
	}
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
}
