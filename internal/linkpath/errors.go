package linkpath

import (
	"errors"
	"fmt"
)

// ErrDepthUnderflow is wrapped by ResolutionError when an href climbs more
// parent directories than its origin directory has.
var ErrDepthUnderflow = errors.New("relative path climbs above the document root")

// ResolutionError reports malformed relative-path arithmetic.
// It indicates a structurally broken document tree and aborts the run.
type ResolutionError struct {
	// OriginDir is the directory of the page holding the link.
	OriginDir string

	// Href is the offending link path.
	Href string

	// Levels is the number of leading "../" segments in Href.
	Levels int

	// Depth is the number of segments in OriginDir.
	Depth int
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve %q from %q: %d parent levels but directory depth is %d: %v",
		e.Href, e.OriginDir, e.Levels, e.Depth, ErrDepthUnderflow)
}

// Unwrap returns ErrDepthUnderflow.
func (e *ResolutionError) Unwrap() error {
	return ErrDepthUnderflow
}
