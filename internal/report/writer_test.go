package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/linkcheck/internal/model"
)

// createTestRun creates a run with two broken links and one off-site link.
func createTestRun() *model.Run {
	run := model.NewRun("run-1", "/docs", model.RunOptions{NoTOC: true})

	a := model.NewPage("a.html", model.OriginSource)
	a.Found = true
	ok := model.NewLink("b.html", "B", "b.html", "", false)
	ok.SetValidity(model.ValidityValid)
	missing := model.NewLink("missing.html#x", "Missing <script>", "missing.html", "x", true)
	missing.SetValidity(model.ValidityInvalid)
	offsite := model.NewLink("https://example.invalid/", "Example", "https://example.invalid/", "", false)
	offsite.MarkFetchFailed(model.NewFetchError("https://example.invalid/", model.FetchErrorDNS, errors.New("no such host")))
	a.Links = []*model.Link{ok, missing, offsite}

	b := model.NewPage("b.html", model.OriginSource)
	b.Found = true
	remote := model.NewPage("https://example.invalid/", model.OriginTarget)

	run.Pages = []*model.Page{a, b, remote}
	run.Counters = model.Counters{
		SourcePages:  2,
		TargetPages:  1,
		LinksChecked: 3,
		LinksBroken:  2,
		StartTime:    time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC),
		EndTime:      time.Date(2025, 3, 4, 11, 2, 5, 0, time.UTC),
	}
	return run
}

// createCleanRun creates a run without broken links.
func createCleanRun() *model.Run {
	run := model.NewRun("run-2", "/site", model.RunOptions{})
	p := model.NewPage("index.html", model.OriginSource)
	l := model.NewLink("index.html", "Home", "index.html", "", false)
	l.SetValidity(model.ValidityValid)
	p.Links = []*model.Link{l}
	run.Pages = []*model.Page{p}
	run.Counters = model.Counters{SourcePages: 1, LinksChecked: 1}
	return run
}

// TestSimpleWriter tests the human-readable report writer.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header and tables", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"LINKCHECK REPORT",
			"Directory: /docs",
			"Status:    Broken links found",
			"Onsite Only:",
			"No Toc:",
			"Start Time:",
			"2025-03-04-Tue-10:00:00Z",
			"01:02:05",
			"Links Broken:",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("groups broken links by source page", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithVerbose(true)).Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"a.html (2)",
			"[x] missing.html#x",
			"Fragment: x",
			"Reason:   target not found",
			"Reason:   dns error",
			"Text:     Missing",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
		if strings.Contains(output, "OFF-SITE LINKS") {
			t.Error("off-site section must be opt-in")
		}
	})

	t.Run("writes none for a clean run", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createCleanRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "None.") {
			t.Error("expected None. for a clean run")
		}
		if !strings.Contains(buf.String(), "Status:    Clean") {
			t.Error("expected clean status")
		}
	})

	t.Run("lists off-site links", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithShowOffsite(true)).Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if !strings.Contains(output, "OFF-SITE LINKS BY SOURCE PAGE") {
			t.Error("expected off-site section")
		}
		if !strings.Contains(output, "[Invalid] https://example.invalid/") {
			t.Error("expected title-cased verdict for the off-site link")
		}
	})

	t.Run("summary omits parameters", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		s := model.NewSummary(createTestRun())
		if _, err := NewSimpleWriter(&buf, WithShowOffsite(true)).WriteSummary(s); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if strings.Contains(output, "PARAMETERS") || strings.Contains(output, "OFF-SITE") {
			t.Error("summary report must not contain run-only sections")
		}
		if !strings.Contains(output, "a.html (2)") {
			t.Error("expected broken links in summary report")
		}
	})
}

// TestJSONWriter tests the JSON report writer.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes compact json", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var decoded map[string]any
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if decoded["root"] != "/docs" {
			t.Errorf("expected root /docs, got %v", decoded["root"])
		}
		if strings.Count(buf.String(), "\n") != 1 {
			t.Error("expected compact output with a trailing newline")
		}
	})

	t.Run("writes pretty json", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).WriteSummary(model.NewSummary(createTestRun())); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"run_id\": \"run-1\"") {
			t.Errorf("expected indented run_id, got %s", buf.String())
		}
	})

	t.Run("wraps the run with the version", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewFullJSONWriter(&buf, "1.2.3").Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var decoded struct {
			Version string         `json:"version"`
			Summary *model.Summary `json:"summary"`
		}
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if decoded.Version != "1.2.3" {
			t.Errorf("expected version 1.2.3, got %s", decoded.Version)
		}
		if decoded.Summary == nil || len(decoded.Summary.Broken) != 2 {
			t.Errorf("expected summary with 2 broken links, got %+v", decoded.Summary)
		}
	})
}

// TestMarkdownWriter tests the Markdown report writer.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes sections and chart", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"# Link Check Report",
			"## Summary",
			"### Parameters",
			"### Counts",
			"```mermaid",
			"Link Verdicts",
			"## Broken Links by Source Page",
			"[a.html](<a.html>) (2)",
			"link(s) are broken",
			"no such host",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("omits chart when disabled", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf, WithChart(false)).Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(buf.String(), "mermaid") {
			t.Error("expected no mermaid block")
		}
	})

	t.Run("writes tip for a clean run", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf, WithOffsiteSection(true)).Write(createCleanRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if !strings.Contains(output, "All links are valid.") {
			t.Error("expected tip for clean run")
		}
		if !strings.Contains(output, "## Off-Site Links by Source Page") {
			t.Error("expected off-site section")
		}
	})
}

// TestHTMLWriter tests the HTML report writer.
func TestHTMLWriter(t *testing.T) {
	t.Parallel()

	t.Run("renders a standalone document", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewHTMLWriter(&buf, WithTitle("Docs <check>")).Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"<!DOCTYPE html>",
			"<title>Docs &lt;check&gt;</title>",
			"<h1",
			"<table>",
			"Broken Links by Source Page",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
		if strings.Contains(output, "mermaid") {
			t.Error("html report must not contain mermaid blocks")
		}
		if strings.Contains(output, "<script>") {
			t.Error("link text must not be emitted as raw html")
		}
	})

	t.Run("writes Report.htm into the directory", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		path, err := WriteReportFile(createTestRun(), dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if path != filepath.Join(dir, ReportFileName) {
			t.Errorf("unexpected path %s", path)
		}
		data, err := os.ReadFile(path) //nolint:gosec // test file
		if err != nil {
			t.Fatalf("failed to read report: %v", err)
		}
		if !bytes.Contains(data, []byte("Link Check Report")) {
			t.Error("expected report content")
		}
	})

	t.Run("fails for a missing directory", func(t *testing.T) {
		t.Parallel()

		if _, err := WriteReportFile(createTestRun(), filepath.Join(t.TempDir(), "nope")); err == nil {
			t.Error("expected error")
		}
	})
}

// TestFormatElapsed tests the HH:MM:SS rendering of durations.
func TestFormatElapsed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00:00"},
		{59 * time.Second, "00:00:59"},
		{3725 * time.Second, "01:02:05"},
		{26 * time.Hour, "26:00:00"},
	}
	for _, tt := range tests {
		if got := formatElapsed(tt.in); got != tt.want {
			t.Errorf("formatElapsed(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// TestNewSummaryData tests grouping of summary links by source page.
func TestNewSummaryData(t *testing.T) {
	t.Parallel()

	s := &model.Summary{
		Broken: []model.BrokenLink{
			{Source: "a.html", Href: "1"},
			{Source: "a.html", Href: "2"},
			{Source: "b.html", Href: "3"},
		},
	}
	d := newSummaryData(s)
	if len(d.broken) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(d.broken))
	}
	if len(d.broken[0].links) != 2 || d.broken[1].source != "b.html" {
		t.Errorf("unexpected grouping: %+v", d.broken)
	}
	if d.parameterRows() != nil {
		t.Error("summary data has no parameters")
	}
}
