package report

import (
	"io"
	"strings"

	"github.com/nao1215/linkcheck/internal/model"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs reports in GitHub-flavored Markdown.
type MarkdownWriter struct {
	baseWriter

	// chart adds a mermaid pie chart of valid and broken links.
	chart bool

	// offsite adds the off-site links section.
	offsite bool
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithChart toggles the mermaid pie chart. It is on by default.
func WithChart(chart bool) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		w.chart = chart
	}
}

// WithOffsiteSection adds a section listing off-site links per page.
func WithOffsiteSection(show bool) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		w.offsite = show
	}
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{
		baseWriter: newBaseWriter(output),
		chart:      true,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the run report in Markdown format.
func (w *MarkdownWriter) Write(run *model.Run) (int, error) {
	return w.write(newReportData(run))
}

// WriteSummary outputs a stored summary in Markdown format.
func (w *MarkdownWriter) WriteSummary(summary *model.Summary) (int, error) {
	return w.write(newSummaryData(summary))
}

func (w *MarkdownWriter) write(d *reportData) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, d)
	w.writeSummary(md, d)
	w.writeBrokenLinks(md, d)
	if w.offsite && d.options != nil {
		w.writeOffsiteLinks(md, d)
	}
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report title and the run identity table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, d *reportData) {
	md.H1("Link Check Report")
	md.PlainText("")

	rows := [][]string{
		{"Directory", "`" + d.root + "`"},
	}
	if d.runID != "" {
		rows = append(rows, []string{"Run ID", "`" + d.runID + "`"})
	}
	rows = append(rows, []string{"Status", statusText(d)})

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// statusText decorates the run verdict.
func statusText(d *reportData) string {
	switch {
	case d.errMsg != "":
		return "❌ " + escapeCell(d.status())
	case d.counters.LinksBroken > 0:
		return "⚠️ " + d.status()
	default:
		return "✅ " + d.status()
	}
}

// writeSummary writes the parameters, times and counts tables.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, d *reportData) {
	md.H2("Summary")
	md.PlainText("")

	if rows := d.parameterRows(); len(rows) > 0 {
		md.PlainText("### Parameters")
		md.PlainText("")
		md.Table(markdown.TableSet{
			Header: []string{"Parameter", "Value"},
			Rows:   codeValues(rows),
		})
		md.PlainText("")
	}

	md.PlainText("### Times")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Time", "Value"},
		Rows:   d.timeRows(),
	})
	md.PlainText("")

	md.PlainText("### Counts")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Count", "Value"},
		Rows:   d.countRows(),
	})
	md.PlainText("")

	if w.chart && d.counters.LinksChecked > 0 {
		w.writePieChart(md, d)
	}

	w.writeAlert(md, d)
}

// writePieChart writes a mermaid pie chart of link verdicts.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, d *reportData) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Link Verdicts"),
		piechart.WithShowData(true),
	)

	valid := d.counters.LinksChecked - d.counters.LinksBroken
	if valid > 0 {
		chart.LabelAndIntValue("Valid", uint64(valid))
	}
	if d.counters.LinksBroken > 0 {
		chart.LabelAndIntValue("Broken", uint64(d.counters.LinksBroken))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert matching the outcome of the run.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, d *reportData) {
	switch {
	case d.errMsg != "":
		md.Cautionf("The run was aborted: %s", d.errMsg)
	case d.counters.LinksBroken > 0:
		md.Warningf(
			"%d of %d link(s) are broken.",
			d.counters.LinksBroken, d.counters.LinksChecked,
		)
	case d.counters.LinksChecked == 0:
		md.Note("No links were checked.")
	default:
		md.Tip("All links are valid.")
	}
	md.PlainText("")
}

// writeBrokenLinks writes one table per source page with broken links.
func (w *MarkdownWriter) writeBrokenLinks(md *markdown.Markdown, d *reportData) {
	md.H2("Broken Links by Source Page")
	md.PlainText("")

	if len(d.broken) == 0 {
		md.PlainText("None.")
		md.PlainText("")
		return
	}

	md.BulletList(
		"Href: the href of the anchor element.",
		"Text: the text of the anchor element.",
		"Path: the path of the target relative to the checked directory, or the full URL of an off-site target.",
		"Fragment: the fragment of the link, if any.",
		"Reason: why the link is broken.",
	)
	md.PlainText("")

	for _, group := range d.broken {
		md.PlainTextf("### %s (%d)", mdLink(group.source, group.source), len(group.links))
		md.PlainText("")
		w.writeBrokenTable(md, group.links)
	}
}

// writeBrokenTable writes the broken links of one page. A message column
// is added when any of the links failed to fetch.
func (w *MarkdownWriter) writeBrokenTable(md *markdown.Markdown, links []model.BrokenLink) {
	withMessage := false
	for _, b := range links {
		if b.FetchError != "" {
			withMessage = true
			break
		}
	}

	header := []string{"Href", "Text", "Path", "Fragment", "Reason"}
	if withMessage {
		header = append(header, "Message")
	}

	rows := make([][]string, len(links))
	for i, b := range links {
		row := []string{
			mdLink(b.Href, b.Href),
			escapeCell(orDash(b.Text)),
			escapeCell(b.TargetPath),
			escapeCell(fragmentCell(b)),
			orDash(b.Reason),
		}
		if withMessage {
			row = append(row, escapeCell(orDash(b.FetchError)))
		}
		rows[i] = row
	}

	md.Table(markdown.TableSet{
		Header: header,
		Rows:   rows,
	})
	md.PlainText("")
}

// writeOffsiteLinks writes the off-site links of each page with their verdict.
func (w *MarkdownWriter) writeOffsiteLinks(md *markdown.Markdown, d *reportData) {
	md.H2("Off-Site Links by Source Page")
	md.PlainText("")

	if len(d.offsite) == 0 {
		md.PlainText("None.")
		md.PlainText("")
		return
	}

	for _, pl := range d.offsite {
		md.PlainTextf("### %s", mdLink(pl.Page.Path, pl.Page.Path))
		md.PlainText("")

		rows := make([][]string, len(pl.Links))
		for i, l := range pl.Links {
			verdict := "✅"
			if l.Validity == model.ValidityInvalid {
				verdict = "❌"
			}
			rows[i] = []string{verdict, mdLink(l.Href, l.Href), escapeCell(orDash(l.Text))}
		}
		md.Table(markdown.TableSet{
			Header: []string{"", "Href", "Text"},
			Rows:   rows,
		})
		md.PlainText("")
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by linkcheck*")
}

var cellEscaper = strings.NewReplacer("|", `\|`, "\n", " ", "\r", "")

// escapeCell makes s safe inside a table cell.
func escapeCell(s string) string {
	return cellEscaper.Replace(s)
}

// mdLink renders an inline link. Destinations that cannot be expressed
// inside angle brackets are rendered as code instead.
func mdLink(text, dest string) string {
	if dest == "" || strings.ContainsAny(dest, "<>\n") {
		return "`" + strings.ReplaceAll(text, "`", "'") + "`"
	}
	label := strings.NewReplacer("[", `\[`, "]", `\]`).Replace(escapeCell(text))
	return "[" + label + "](<" + escapeCell(dest) + ">)"
}

// codeValues renders the value column of rows as inline code.
func codeValues(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = []string{row[0], "`" + escapeCell(row[1]) + "`"}
	}
	return out
}
