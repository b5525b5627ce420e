package linkgraph

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Anchor texts that mark decorative self-links rather than real links.
const (
	pilcrow = "¶"
	upArrow = "↑"
)

// RawLink is an <a href> element as authored.
type RawLink struct {
	// Href is the raw attribute value.
	Href string

	// Text is the visible text of the element.
	Text string
}

// ParseDocument parses HTML content into a goquery document.
// golang.org/x/net/html copes with the malformed markup found in the wild.
func ParseDocument(r io.Reader) (*goquery.Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return goquery.NewDocumentFromNode(root), nil
}

// parseBytes parses an in-memory document.
func parseBytes(data []byte) (*goquery.Document, error) {
	return ParseDocument(bytes.NewReader(data))
}

// ExtractLinks returns the links of doc in document order.
// Decorative pilcrow and up-arrow links and elements without an href are
// dropped. Filtering on the href itself is left to the caller.
func ExtractLinks(doc *goquery.Document) []RawLink {
	links := make([]RawLink, 0)
	doc.Find("a").Each(func(_ int, sel *goquery.Selection) {
		text := sel.Text()
		switch strings.TrimSpace(text) {
		case pilcrow, upArrow:
			return
		}
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		links = append(links, RawLink{Href: href, Text: text})
	})
	return links
}
