package model

import (
	"sort"
	"strings"
)

// Origin tells how a Page entered the registry.
type Origin int

const (
	// OriginSource marks a page enumerated from the document tree.
	// Source pages are scanned for outbound links.
	OriginSource Origin = iota

	// OriginTarget marks a page that exists only because a link points to it.
	OriginTarget
)

// String returns a lower-case name for the origin.
func (o Origin) String() string {
	switch o {
	case OriginSource:
		return "source"
	case OriginTarget:
		return "target"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Origin) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// AnchorSet is the set of ids addressable inside a document.
//
// A nil AnchorSet means anchors have not been extracted yet. A non-nil
// empty set means the document was scanned and has no anchors. The two
// states are kept apart so extraction runs at most once per page.
type AnchorSet map[string]struct{}

// NewAnchorSet returns an empty, non-nil AnchorSet holding ids.
func NewAnchorSet(ids ...string) AnchorSet {
	s := make(AnchorSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts id into the set.
func (s AnchorSet) Add(id string) {
	s[id] = struct{}{}
}

// Has reports whether id is in the set. A nil set contains nothing.
func (s AnchorSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the ids in lexical order.
func (s AnchorSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Page represents one document, local or remote.
type Page struct {
	// Path is the canonical identifier: a path relative to the checked
	// directory for local pages, an absolute URL for remote pages.
	Path string `json:"path"`

	// Origin tells whether the page was enumerated or discovered as a target.
	Origin Origin `json:"origin"`

	// ContentType is set once the document bytes are available.
	// Empty means unknown.
	ContentType string `json:"content_type,omitempty"`

	// HTTPStatus is the response status code of a fetched remote page.
	// Zero for local pages and pages that were never fetched.
	HTTPStatus int `json:"http_status,omitempty"`

	// Anchors holds the addressable ids of the document.
	// Nil until extraction has run; see AnchorSet.
	Anchors AnchorSet `json:"-"`

	// Links are the outbound links of a source page, in document order.
	// Target pages never carry links.
	Links []*Link `json:"links,omitempty"`

	// FetchError is the transport failure hit while fetching this page.
	// Every link to the page is invalid when it is set.
	FetchError *FetchError `json:"fetch_error,omitempty"`

	// Found is set once the document was obtained: enumerated from the
	// tree, read from disk, or answered by a server whatever the status.
	// A target page that is never found is a placeholder and every link
	// to it is broken.
	Found bool `json:"found"`
}

// NewPage creates a page with the given canonical path and origin.
func NewPage(path string, origin Origin) *Page {
	return &Page{
		Path:   path,
		Origin: origin,
	}
}

// AnchorsGathered reports whether anchor extraction has run on the page.
func (p *Page) AnchorsGathered() bool {
	return p.Anchors != nil
}

// AnchorCount returns the number of anchors found on the page.
func (p *Page) AnchorCount() int {
	return len(p.Anchors)
}

// IsHTML reports whether the page content type indicates HTML.
// Any content type mentioning "html" qualifies, so "text/html; charset=utf-8"
// and "application/xhtml+xml" both count.
func (p *Page) IsHTML() bool {
	return IsHTMLContentType(p.ContentType)
}

// IsSource reports whether the page was enumerated from the document tree.
func (p *Page) IsSource() bool {
	return p.Origin == OriginSource
}

// BrokenLinks returns the page's links that were judged invalid.
func (p *Page) BrokenLinks() []*Link {
	var broken []*Link
	for _, l := range p.Links {
		if l.Validity == ValidityInvalid {
			broken = append(broken, l)
		}
	}
	return broken
}

// IsHTMLContentType reports whether a Content-Type value indicates HTML.
func IsHTMLContentType(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "html")
}
