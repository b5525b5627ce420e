package report

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"

	"github.com/nao1215/linkcheck/internal/model"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// ReportFileName is the name of the HTML report written into a checked
// directory. The extension keeps the report out of the next run's
// enumeration of *.html files.
const ReportFileName = "Report.htm"

const htmlStyle = `* { font-family: sans-serif }
code { font-family: courier }
table { border-collapse: collapse }
th, td { border: 1px solid rgb(217, 217, 214); padding: 2px 8px }
th { background-color: rgb(217, 217, 214) }
blockquote { border-left: 4px solid rgb(156, 101, 0); margin-left: 0; padding-left: 8px }
`

// HTMLWriter outputs a standalone HTML document. The body is the Markdown
// report rendered with goldmark.
type HTMLWriter struct {
	baseWriter

	title   string
	mdOpts  []MarkdownWriterOption
	convert goldmark.Markdown
}

// HTMLWriterOption configures an HTMLWriter.
type HTMLWriterOption func(*HTMLWriter)

// WithTitle sets the document title.
func WithTitle(title string) HTMLWriterOption {
	return func(w *HTMLWriter) {
		w.title = title
	}
}

// WithMarkdownOptions passes options to the underlying Markdown writer.
func WithMarkdownOptions(opts ...MarkdownWriterOption) HTMLWriterOption {
	return func(w *HTMLWriter) {
		w.mdOpts = append(w.mdOpts, opts...)
	}
}

// NewHTMLWriter creates an HTMLWriter that outputs to the given writer.
func NewHTMLWriter(output io.Writer, opts ...HTMLWriterOption) *HTMLWriter {
	w := &HTMLWriter{
		baseWriter: newBaseWriter(output),
		title:      "Link Check Report",
		convert:    goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the run report as an HTML document.
func (w *HTMLWriter) Write(run *model.Run) (int, error) {
	return w.render(func(md *MarkdownWriter) (int, error) { return md.Write(run) })
}

// WriteSummary outputs a stored summary as an HTML document.
func (w *HTMLWriter) WriteSummary(summary *model.Summary) (int, error) {
	return w.render(func(md *MarkdownWriter) (int, error) { return md.WriteSummary(summary) })
}

func (w *HTMLWriter) render(write func(*MarkdownWriter) (int, error)) (int, error) {
	var src bytes.Buffer
	// Mermaid blocks need client-side scripts; the page stays static.
	opts := append([]MarkdownWriterOption{WithChart(false)}, w.mdOpts...)
	if _, err := write(NewMarkdownWriter(&src, opts...)); err != nil {
		return 0, fmt.Errorf("failed to build markdown report: %w", err)
	}

	var body bytes.Buffer
	if err := w.convert.Convert(src.Bytes(), &body); err != nil {
		return 0, fmt.Errorf("failed to render html report: %w", err)
	}

	var doc bytes.Buffer
	doc.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&doc, "<title>%s</title>\n", html.EscapeString(w.title))
	fmt.Fprintf(&doc, "<style>\n%s</style>\n", htmlStyle)
	doc.WriteString("</head>\n<body>\n")
	doc.Write(body.Bytes())
	doc.WriteString("</body>\n</html>\n")

	return w.output.Write(doc.Bytes())
}

// WriteReportFile writes the HTML report of run into dir and returns the
// path of the written file.
func WriteReportFile(run *model.Run, dir string, opts ...HTMLWriterOption) (string, error) {
	path := filepath.Join(dir, ReportFileName)

	f, err := os.Create(path) //nolint:gosec // path is built from the checked directory
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}

	if _, err := NewHTMLWriter(f, opts...).Write(run); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close report file: %w", err)
	}

	return path, nil
}
