package model

import "time"

// Summary is a flattened view of a Run.
// It keeps only what reports and the history database need: the counters
// and the broken links, each tagged with its source page.
type Summary struct {
	// RunID identifies the run.
	RunID string `json:"run_id"`

	// Root is the checked directory.
	Root string `json:"root"`

	// StartTime is when the run started.
	StartTime time.Time `json:"start_time"`

	// EndTime is when the run finished.
	EndTime time.Time `json:"end_time"`

	// SourcePages is the number of source pages.
	SourcePages int `json:"source_pages"`

	// TargetPages is the number of target-only pages.
	TargetPages int `json:"target_pages"`

	// LinksChecked is the number of links judged.
	LinksChecked int `json:"links_checked"`

	// LinksBroken is the number of invalid links.
	LinksBroken int `json:"links_broken"`

	// Broken lists every invalid link.
	Broken []BrokenLink `json:"broken,omitempty"`

	// Error is the message of the error that aborted the run.
	Error string `json:"error,omitempty"`
}

// BrokenLink is one invalid link in a Summary.
type BrokenLink struct {
	Source     string `json:"source"`
	Href       string `json:"href"`
	Text       string `json:"text,omitempty"`
	TargetPath string `json:"target_path"`
	Fragment   string `json:"fragment,omitempty"`
	FetchError string `json:"fetch_error,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Key identifies a broken link across runs.
func (b BrokenLink) Key() string {
	return b.Source + "\x00" + b.Href
}

// NewSummary builds a Summary from a finished run.
func NewSummary(r *Run) *Summary {
	s := &Summary{
		RunID:        r.ID,
		Root:         r.Root,
		StartTime:    r.Counters.StartTime,
		EndTime:      r.Counters.EndTime,
		SourcePages:  r.Counters.SourcePages,
		TargetPages:  r.Counters.TargetPages,
		LinksChecked: r.Counters.LinksChecked,
		LinksBroken:  r.Counters.LinksBroken,
		Error:        r.ErrorMessage,
	}

	for _, pl := range r.BrokenLinks() {
		for _, l := range pl.Links {
			b := BrokenLink{
				Source:     pl.Page.Path,
				Href:       l.Href,
				Text:       l.Text,
				TargetPath: l.TargetPath,
				Fragment:   l.Fragment,
				Reason:     r.Reason(l),
			}
			if l.FetchError != nil {
				b.FetchError = l.FetchError.Error()
			}
			s.Broken = append(s.Broken, b)
		}
	}

	return s
}

// Elapsed returns the duration of the summarized run.
func (s *Summary) Elapsed() time.Duration {
	if s.StartTime.IsZero() || s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// HasBrokenLinks reports whether any link was invalid.
func (s *Summary) HasBrokenLinks() bool {
	return s.LinksBroken > 0
}
