package database

import "github.com/nao1215/linkcheck/internal/model"

// Diff is the change in broken links between two runs of a directory.
type Diff struct {
	// Introduced are broken in the newer run only.
	Introduced []model.BrokenLink

	// Fixed are broken in the older run only.
	Fixed []model.BrokenLink

	// Persisting are broken in both runs. The newer run's record is kept.
	Persisting []model.BrokenLink
}

// Regressed reports whether the newer run broke any new link.
func (d Diff) Regressed() bool {
	return len(d.Introduced) > 0
}

// Compare matches the broken links of two summaries by source page and href.
// Either summary may be nil, which counts as a run without broken links.
func Compare(older, newer *model.Summary) Diff {
	var d Diff

	seen := make(map[string]bool)
	if older != nil {
		for _, b := range older.Broken {
			seen[b.Key()] = false
		}
	}

	if newer != nil {
		for _, b := range newer.Broken {
			if _, ok := seen[b.Key()]; ok {
				seen[b.Key()] = true
				d.Persisting = append(d.Persisting, b)
				continue
			}
			d.Introduced = append(d.Introduced, b)
		}
	}

	if older != nil {
		for _, b := range older.Broken {
			if !seen[b.Key()] {
				d.Fixed = append(d.Fixed, b)
				seen[b.Key()] = true
			}
		}
	}

	return d
}
