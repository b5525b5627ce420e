package anchor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/linkcheck/internal/linkpath"
	"github.com/nao1215/linkcheck/internal/model"
)

// Strategy selects the anchor extraction rules.
type Strategy int

const (
	// StrategyLocal applies the LocalRules allow-list.
	StrategyLocal Strategy = iota

	// StrategyRemote applies RemoteRules.
	StrategyRemote
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategyLocal:
		return "local"
	case StrategyRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// Rule selects elements and reads one attribute of each as an anchor id.
type Rule struct {
	// Selector is a CSS selector understood by goquery.
	Selector string

	// Attr is the attribute holding the id.
	Attr string

	// TrimPrefix is removed from the attribute value before it is stored.
	TrimPrefix string
}

// LocalRules is the allow-list applied to documents of the checked tree.
// Supporting another kind of anchor means appending a rule here.
var LocalRules = []Rule{
	{Selector: "body[id]", Attr: "id"},
	{Selector: "body a[id]", Attr: "id"},
	{Selector: `div[class*="method-"][id]`, Attr: "id"},
	{Selector: "dt[id]", Attr: "id"},
	{Selector: "h1[id], h2[id], h3[id], h4[id], h5[id], h6[id]", Attr: "id"},
}

// RemoteRules applies to off-site documents.
var RemoteRules = []Rule{
	{Selector: "[id]", Attr: "id"},
	{Selector: "[name]", Attr: "name"},
	{Selector: `a[href^="#"]`, Attr: "href", TrimPrefix: "#"},
}

// Rules returns the rules of the strategy.
func (s Strategy) Rules() []Rule {
	if s == StrategyRemote {
		return RemoteRules
	}
	return LocalRules
}

// StrategyFor picks the strategy for a canonical page path.
func StrategyFor(pagePath string) Strategy {
	if linkpath.Offsite(pagePath) {
		return StrategyRemote
	}
	return StrategyLocal
}

// Extract returns the anchors of doc. The result is never nil.
func Extract(doc *goquery.Document, s Strategy) model.AnchorSet {
	anchors := model.NewAnchorSet()
	if doc == nil {
		return anchors
	}
	for _, rule := range s.Rules() {
		doc.Find(rule.Selector).Each(func(_ int, sel *goquery.Selection) {
			val, ok := sel.Attr(rule.Attr)
			if !ok {
				return
			}
			val = strings.TrimPrefix(val, rule.TrimPrefix)
			if val != "" {
				anchors.Add(val)
			}
		})
	}
	return anchors
}

// Gather extracts the anchors of page from doc unless that already happened.
// It reports whether extraction ran.
func Gather(page *model.Page, doc *goquery.Document) bool {
	if page.AnchorsGathered() {
		return false
	}
	page.Anchors = Extract(doc, StrategyFor(page.Path))
	return true
}
