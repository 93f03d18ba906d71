package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// Text locates the text content of the first element matching selector.
func Text(selector string) Locator {
	return func(root *goquery.Selection) (string, bool) {
		sel := root.Find(selector).First()
		if sel.Length() == 0 {
			return "", false
		}
		return sel.Text(), true
	}
}

// Attr locates attribute name on the first element matching selector.
func Attr(selector, name string) Locator {
	return func(root *goquery.Selection) (string, bool) {
		return root.Find(selector).First().Attr(name)
	}
}

// ClosestLink locates the href of the link wrapping the first element
// matching selector. When the element is not inside a link, the first link
// among its parent's descendants is used instead.
func ClosestLink(selector string) Locator {
	return func(root *goquery.Selection) (string, bool) {
		el := root.Find(selector).First()
		if el.Length() == 0 {
			return "", false
		}
		link := el.Closest("a")
		if link.Length() == 0 {
			link = el.Parent().Find("a").First()
		}
		return link.Attr("href")
	}
}

// LinkFilter describes the href shape a best-link candidate must have.
type LinkFilter struct {
	// Candidates selects the links considered. Defaults to a[href*="/"].
	Candidates string `yaml:"candidates" json:"candidates,omitempty"`

	MinHrefLen  int `yaml:"minHrefLen" json:"minHrefLen,omitempty"`
	MinTextLen  int `yaml:"minTextLen" json:"minTextLen,omitempty"`
	MinSegments int `yaml:"minSegments" json:"minSegments,omitempty"`

	// TrackingMarkers reject hrefs containing any of them, e.g. "?source=".
	TrackingMarkers []string `yaml:"trackingMarkers" json:"trackingMarkers,omitempty"`

	// ExcludeContains rejects hrefs containing any of these substrings.
	ExcludeContains []string `yaml:"excludeContains" json:"excludeContains,omitempty"`

	// ProfilePattern rejects hrefs that only point at a profile page.
	ProfilePattern string `yaml:"profilePattern" json:"profilePattern,omitempty"`
}

// DefaultLinkFilter returns the filter used for article links on
// profile-centric publishing platforms.
func DefaultLinkFilter() LinkFilter {
	return LinkFilter{
		Candidates:      `a[href*="/"]`,
		MinHrefLen:      16,
		MinTextLen:      11,
		MinSegments:     2,
		TrackingMarkers: []string{"?source="},
		ProfilePattern:  `^/@[^/]+$`,
	}
}

type linkCandidate struct {
	href string
	text int
}

// BestLink returns a locator that ranks every candidate link in the subtree
// by descending visible-text length and yields the first href passing f.
// Links with equal text length keep document order.
func BestLink(f LinkFilter) (Locator, error) {
	var profile *regexp.Regexp
	if f.ProfilePattern != "" {
		re, err := regexp.Compile(f.ProfilePattern)
		if err != nil {
			return nil, fmt.Errorf("extract: profile pattern: %w", err)
		}
		profile = re
	}
	candidates := f.Candidates
	if candidates == "" {
		candidates = `a[href*="/"]`
	}

	accept := func(href string, textLen int) bool {
		if strings.HasPrefix(href, "#") {
			return false
		}
		if utf8.RuneCountInString(href) < f.MinHrefLen || textLen < f.MinTextLen {
			return false
		}
		for _, m := range f.TrackingMarkers {
			if strings.Contains(href, m) {
				return false
			}
		}
		for _, m := range f.ExcludeContains {
			if strings.Contains(href, m) {
				return false
			}
		}
		if profile != nil && profile.MatchString(href) {
			return false
		}
		return pathSegments(href) >= f.MinSegments
	}

	return func(root *goquery.Selection) (string, bool) {
		var links []linkCandidate
		root.Find(candidates).Each(func(_ int, a *goquery.Selection) {
			href, ok := a.Attr("href")
			if !ok {
				return
			}
			links = append(links, linkCandidate{
				href: strings.TrimSpace(href),
				text: utf8.RuneCountInString(strings.TrimSpace(a.Text())),
			})
		})
		sort.SliceStable(links, func(i, j int) bool {
			return links[i].text > links[j].text
		})
		for _, l := range links {
			if accept(l.href, l.text) {
				return l.href, true
			}
		}
		return "", false
	}, nil
}

// pathSegments counts the non-empty segments of href's path.
func pathSegments(href string) int {
	u, err := url.Parse(href)
	if err != nil {
		return 0
	}
	n := 0
	for _, part := range strings.Split(u.Path, "/") {
		if part != "" {
			n++
		}
	}
	return n
}
