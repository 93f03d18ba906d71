package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var firstNumber = regexp.MustCompile(`\d+`)

// Miner extracts a labelled count, such as "Responses (12)" or
// "3 responses", from free text.
type Miner struct {
	keyword  string
	patterns []*regexp.Regexp
}

// NewMiner builds a miner for a count label in its singular and plural form.
// Matching is case-insensitive.
func NewMiner(singular, plural string) *Miner {
	s := regexp.QuoteMeta(singular)
	p := regexp.QuoteMeta(plural)
	return &Miner{
		keyword: strings.ToLower(singular),
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)` + p + `\s*\((\d+)\)`),
			regexp.MustCompile(`(?i)` + s + `\s*\((\d+)\)`),
			regexp.MustCompile(`(?i)(\d+)\s+(?:` + p + `|` + s + `)`),
		},
	}
}

// Mine returns the first count found in text, trying the most specific
// pattern first. When text yields nothing, each heading whose text mentions
// the keyword is searched for a bare number, in the order given. ok is false
// when no count is present; that is an expected outcome, not a failure.
func (m *Miner) Mine(text string, headings []string) (n int, ok bool) {
	for _, re := range m.patterns {
		for _, match := range re.FindAllStringSubmatch(text, -1) {
			if v, err := strconv.Atoi(match[1]); err == nil {
				return v, true
			}
		}
	}
	for _, h := range headings {
		if !strings.Contains(strings.ToLower(h), m.keyword) {
			continue
		}
		if v, err := strconv.Atoi(firstNumber.FindString(h)); err == nil {
			return v, true
		}
	}
	return 0, false
}
