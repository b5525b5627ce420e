// Package validate judges every link of a finished link graph.
package validate

import (
	"github.com/nao1215/linkcheck/internal/model"
)

// Lookup finds the page registered for a canonical path.
// *linkgraph.Registry satisfies it.
type Lookup interface {
	Get(canonicalPath string) (*model.Page, bool)
}

// Result holds the counts of one validation pass.
type Result struct {
	// LinksChecked is the number of links on the validated pages.
	LinksChecked int

	// LinksBroken is the number of links judged invalid.
	LinksBroken int
}

// Validate judges every link of pages and returns the counts.
//
// Links already judged, such as those whose fetch failed, keep their
// verdict. For the others:
//   - a missing or never found target is invalid
//   - a target carrying a fetch error is invalid and the error is copied
//   - without a fragment, the link is valid whatever the target status
//   - an empty fragment ("page.html#") is a fragment like any other
//   - a non-HTML target accepts any fragment
//   - otherwise the fragment must be one of the target anchors
func Validate(pages []*model.Page, lookup Lookup) Result {
	var res Result
	for _, page := range pages {
		for _, link := range page.Links {
			res.LinksChecked++
			if link.Validity == model.ValidityUnknown {
				judge(link, lookup)
			}
			if link.Validity == model.ValidityInvalid {
				res.LinksBroken++
			}
		}
	}
	return res
}

func judge(link *model.Link, lookup Lookup) {
	target, ok := lookup.Get(link.TargetPath)
	switch {
	case !ok:
		link.SetValidity(model.ValidityInvalid)
	case target.FetchError != nil:
		link.MarkFetchFailed(target.FetchError)
	case !target.Found:
		link.SetValidity(model.ValidityInvalid)
	case !link.HasFragment:
		link.SetValidity(model.ValidityValid)
	case !target.IsHTML():
		link.SetValidity(model.ValidityValid)
	case target.Anchors.Has(link.Fragment):
		link.SetValidity(model.ValidityValid)
	default:
		link.SetValidity(model.ValidityInvalid)
	}
}
