package linkgraph

import (
	"sort"
	"sync"

	"github.com/PuerkitoBio/purell"

	"github.com/nao1215/linkcheck/internal/linkpath"
	"github.com/nao1215/linkcheck/internal/model"
)

// urlNormalization only applies rewrites that never change which document
// a URL designates.
const urlNormalization = purell.FlagLowercaseHost |
	purell.FlagRemoveDefaultPort

// Key returns the registry key of a canonical path.
// Local paths are used verbatim. Off-site URLs, which always start with a
// lowercase "http", are normalized so that "https://Example.com:443/a" and
// "https://example.com/a" share one page.
func Key(canonicalPath string) string {
	if !linkpath.Offsite(canonicalPath) {
		return canonicalPath
	}
	normalized, err := purell.NormalizeURLString(canonicalPath, urlNormalization)
	if err != nil {
		return canonicalPath
	}
	return normalized
}

// Registry maps canonical paths to pages. It is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	pages   map[string]*model.Page
	targets int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		pages: make(map[string]*model.Page),
	}
}

// Claim returns the page registered for canonicalPath, creating it with the
// given origin when absent. created is true for exactly one caller per
// path; that caller is responsible for loading the page.
func (r *Registry) Claim(canonicalPath string, origin model.Origin) (page *model.Page, created bool) {
	key := Key(canonicalPath)

	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.pages[key]; ok {
		return p, false
	}
	p := model.NewPage(key, origin)
	r.pages[key] = p
	if origin == model.OriginTarget {
		r.targets++
	}
	return p, true
}

// Get looks up the page registered for canonicalPath.
func (r *Registry) Get(canonicalPath string) (*model.Page, bool) {
	key := Key(canonicalPath)

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pages[key]
	return p, ok
}

// Len returns the number of registered pages.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pages)
}

// TargetCount returns the number of pages created as targets.
func (r *Registry) TargetCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.targets
}

// Pages returns every registered page sorted by path.
func (r *Registry) Pages() []*model.Page {
	r.mu.Lock()
	pages := make([]*model.Page, 0, len(r.pages))
	for _, p := range r.pages {
		pages = append(pages, p)
	}
	r.mu.Unlock()

	sort.Slice(pages, func(i, j int) bool {
		return pages[i].Path < pages[j].Path
	})
	return pages
}
