package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ParseDocument parses a serialized page snapshot.
func ParseDocument(raw string) (*goquery.Document, error) {
	root, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("extract: parse document: %w", err)
	}
	return goquery.NewDocumentFromNode(root), nil
}

// PageText returns the text content of the document body with script and
// style contents removed.
func PageText(doc *goquery.Document) string {
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	body = body.Clone()
	body.Find("script, style, noscript, template").Remove()
	return body.Text()
}

// Headings returns the trimmed text of every h1-h6 element in document order.
func Headings(doc *goquery.Document) []string {
	var out []string
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, h *goquery.Selection) {
		if t := strings.TrimSpace(h.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out
}
