// Package anchor extracts the set of addressable ids from an HTML document.
//
// Two strategies exist. Local documents are generated by a known tool, so
// only a fixed allow-list of elements is trusted as fragment targets: the
// body element, anchors inside the body, method entries, definition terms
// and headings. Remote documents are arbitrary HTML, so every id, every
// name and every in-page "#..." href counts.
//
// Extraction never fails. A document without anchors yields an empty,
// non-nil model.AnchorSet.
package anchor
