package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Counters are the run-wide tallies handed to report writers.
type Counters struct {
	// SourcePages is the number of pages enumerated from the document tree.
	SourcePages int `json:"source_pages"`

	// TargetPages is the number of pages created only as link destinations.
	TargetPages int `json:"target_pages"`

	// LinksChecked is the number of links judged by the validator.
	LinksChecked int `json:"links_checked"`

	// LinksBroken is the number of links judged invalid.
	LinksBroken int `json:"links_broken"`

	// StartTime is when the run started.
	StartTime time.Time `json:"start_time"`

	// EndTime is when validation finished.
	EndTime time.Time `json:"end_time"`
}

// Elapsed returns the wall time of the run.
func (c Counters) Elapsed() time.Duration {
	if c.EndTime.IsZero() || c.StartTime.IsZero() {
		return 0
	}
	return c.EndTime.Sub(c.StartTime)
}

// RunOptions is the snapshot of the options a run was performed with.
// Reports print it as the parameters table.
type RunOptions struct {
	// OnsiteOnly skips off-site links entirely.
	OnsiteOnly bool `json:"onsite_only"`

	// NoTOC suppresses the outbound links of the table of contents page.
	NoTOC bool `json:"no_toc"`

	// Excludes are the source path patterns that were filtered out.
	Excludes []string `json:"excludes,omitempty"`

	// Includes are the source path patterns a source had to match.
	Includes []string `json:"includes,omitempty"`
}

// Run is the result of one checking run over one document tree.
type Run struct {
	// ID uniquely identifies the run in the history database.
	ID string `json:"id"`

	// Root is the directory that was checked.
	Root string `json:"root"`

	// Options is the configuration snapshot of the run.
	Options RunOptions `json:"options"`

	// Pages is the final registry, sorted by canonical path.
	Pages []*Page `json:"pages"`

	// Counters are the run tallies.
	Counters Counters `json:"counters"`

	// Err is the error that aborted the run, if any.
	Err error `json:"-"`

	// ErrorMessage is the text of Err, kept for serialization.
	ErrorMessage string `json:"error,omitempty"`
}

// NewRun creates an empty run for the given root directory.
func NewRun(id, root string, opts RunOptions) *Run {
	return &Run{
		ID:      id,
		Root:    root,
		Options: opts,
		Pages:   make([]*Page, 0),
	}
}

// SetError records the error that aborted the run.
func (r *Run) SetError(err error) {
	r.Err = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// Failed reports whether the run aborted.
func (r *Run) Failed() bool {
	return r.Err != nil || r.ErrorMessage != ""
}

// Page returns the page with the given canonical path, or nil.
func (r *Run) Page(path string) *Page {
	i := sort.Search(len(r.Pages), func(i int) bool { return r.Pages[i].Path >= path })
	if i < len(r.Pages) && r.Pages[i].Path == path {
		return r.Pages[i]
	}
	return nil
}

// PageLinks pairs a source page with a subset of its links.
type PageLinks struct {
	Page  *Page
	Links []*Link
}

// BrokenLinks returns the invalid links grouped by source page,
// in canonical path order. Pages without broken links are omitted.
func (r *Run) BrokenLinks() []PageLinks {
	return r.selectLinks(func(l *Link) bool { return l.Validity == ValidityInvalid })
}

// OffsiteLinks returns the off-site links grouped by source page.
func (r *Run) OffsiteLinks() []PageLinks {
	return r.selectLinks(func(l *Link) bool { return strings.HasPrefix(l.Href, "http") })
}

func (r *Run) selectLinks(keep func(*Link) bool) []PageLinks {
	var out []PageLinks
	for _, p := range r.Pages {
		var links []*Link
		for _, l := range p.Links {
			if keep(l) {
				links = append(links, l)
			}
		}
		if len(links) > 0 {
			out = append(out, PageLinks{Page: p, Links: links})
		}
	}
	return out
}

// Reason describes why l is broken, using what the run knows about its
// target. It returns an empty string for links that are not invalid.
func (r *Run) Reason(l *Link) string {
	if l.Validity != ValidityInvalid {
		return ""
	}
	if l.FetchError != nil {
		return string(l.FetchError.Kind) + " error"
	}
	target := r.Page(l.TargetPath)
	switch {
	case target == nil || !target.Found:
		return "target not found"
	case target.HTTPStatus >= 400:
		return fmt.Sprintf("HTTP %d", target.HTTPStatus)
	case l.HasFragment:
		return "fragment not found"
	default:
		return "broken"
	}
}
