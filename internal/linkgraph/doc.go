// Package linkgraph builds the link graph of an HTML document tree.
//
// A Graph runs four phases over one tree, each completing before the next
// starts:
//
//  1. Discover enumerates the *.html documents and registers them as
//     source pages.
//  2. ScanSources parses every source page once, collecting its outbound
//     links and its own anchors.
//  3. MaterializeTargets registers a target page for every distinct link
//     destination, reading local files or fetching remote documents.
//     Each destination is read or fetched at most once.
//  4. BackfillFragments extracts anchors for HTML targets referenced with
//     a fragment whose anchors are still missing.
//
// Pages live in a Registry keyed by canonical path. The registry is owned
// by the Graph and lives for one run; nothing is global.
//
// Only a relative path climbing above the document root aborts a run. Any
// per-link problem (missing file, failed fetch) is recorded on the link.
package linkgraph
