package linkpath

import (
	"net/url"
	"path"
	"strings"
)

const (
	currentDirPrefix = "./"
	parentDirPrefix  = "../"
)

// Resolve converts an href found on a page living in originDir into the
// canonical path of its destination.
//
// Rules, in order:
//   - an href starting with "./" loses that prefix and is returned as is
//   - an off-site href is returned unchanged
//   - with an empty originDir the href is returned unchanged
//   - without leading "../" segments, originDir and href are joined
//   - with N leading "../" segments, N trailing segments are dropped from
//     originDir, every "../" is removed from href and the rest is joined
//
// Climbing above the root yields a *ResolutionError.
func Resolve(originDir, href string) (string, error) {
	if rest, ok := strings.CutPrefix(href, currentDirPrefix); ok {
		return rest, nil
	}
	if Offsite(href) || originDir == "" {
		return href, nil
	}

	levels := countParentLevels(href)
	if levels == 0 {
		return originDir + "/" + href, nil
	}

	dirs := strings.Split(originDir, "/")
	if len(dirs) < levels {
		return "", &ResolutionError{
			OriginDir: originDir,
			Href:      href,
			Levels:    levels,
			Depth:     len(dirs),
		}
	}

	stripped := strings.ReplaceAll(href, parentDirPrefix, "")
	dirs = dirs[:len(dirs)-levels]
	if len(dirs) == 0 {
		return stripped, nil
	}
	return strings.Join(dirs, "/") + "/" + stripped, nil
}

// countParentLevels counts the leading "../" segments of href.
func countParentLevels(href string) int {
	levels := 0
	for strings.HasPrefix(href, parentDirPrefix) {
		href = href[len(parentDirPrefix):]
		levels++
	}
	return levels
}

// Dir returns the origin directory of a page path as Resolve expects it:
// the empty string for pages at the top of the tree.
func Dir(pagePath string) string {
	dir := path.Dir(pagePath)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}

// SplitFragment splits an href at the first '#'.
// hasFragment is true whenever a '#' is present, even if nothing follows it.
func SplitFragment(href string) (target, fragment string, hasFragment bool) {
	return strings.Cut(href, "#")
}

// Offsite reports whether href points off-site.
func Offsite(href string) bool {
	return strings.HasPrefix(href, "http")
}

// Checkable reports whether href is worth checking: it is non-empty, parses
// as a URI and has no scheme or an http/https scheme. mailto:, javascript:
// and malformed hrefs are not checkable.
func Checkable(href string) bool {
	if href == "" {
		return false
	}
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "", "http", "https":
		return true
	default:
		return false
	}
}
