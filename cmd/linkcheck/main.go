// Package main provides the entry point for the linkcheck CLI.
//
// linkcheck verifies every hyperlink of a directory of generated HTML
// documentation: local targets must exist, off-site targets must answer,
// and fragments must name an anchor of the target page.
//
// Usage:
//
//	linkcheck check <html-dir>
//	linkcheck watch <html-dir>
//
// See --help for all available options.
package main

func main() {
	Execute()
}
