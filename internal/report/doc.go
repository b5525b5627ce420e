// Package report provides report generation and output functionality.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text output for terminal display
//   - JSONWriter: Structured JSON output for tool integration
//   - MarkdownWriter: GitHub-flavored Markdown with a mermaid chart
//   - HTMLWriter: A standalone HTML page, written as Report.htm
//
// Every writer accepts either a full model.Run or a model.Summary loaded
// from the history database.
package report
