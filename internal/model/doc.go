// Package model defines the core data structures used throughout linkcheck.
//
// This package contains the following main types:
//   - Page: One document in the link graph, local or remote
//   - Link: One hyperlink occurrence found on a source page
//   - FetchError: A structured transport failure for a remote target
//   - Run: The result of one checking run, consumed by report writers
//   - Summary: A flattened view of a Run for reports and history storage
//
// Models live in their own package so that the graph, validator, report and
// database packages can share them without import cycles. They serialize
// to JSON for the JSON report and the history database.
package model
