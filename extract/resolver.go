// Package extract resolves structured fields from HTML documents using
// ordered fallback strategies, and mines engagement counts from page text.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/harvest/models"
)

// Locator finds raw text relative to root. ok is false when nothing was found.
type Locator func(root *goquery.Selection) (text string, ok bool)

// Validator accepts or rejects a trimmed, non-empty candidate value.
type Validator func(string) bool

// FieldStrategy pairs a locator with the predicate its result must pass.
type FieldStrategy struct {
	Name     string
	Locate   Locator
	Validate Validator
}

// Chain is an ordered list of strategies for one field, most specific first.
type Chain []FieldStrategy

// Candidate is a resolved value and the index of the strategy that produced it.
type Candidate struct {
	Value         string
	StrategyIndex int
}

// Sentinel is the result of a resolution in which no strategy passed.
var Sentinel = Candidate{Value: models.Unknown, StrategyIndex: -1}

// IsSentinel reports whether c carries no resolved value.
func (c Candidate) IsSentinel() bool {
	return c.StrategyIndex < 0
}

// Resolve evaluates chain in order and returns the first candidate whose
// trimmed text is non-empty and passes validation. Later strategies are never
// consulted once one passes. It returns Sentinel when every strategy misses.
func Resolve(root *goquery.Selection, chain Chain) Candidate {
	if root == nil {
		return Sentinel
	}
	for i, s := range chain {
		if s.Locate == nil {
			continue
		}
		raw, ok := s.Locate(root)
		if !ok {
			continue
		}
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}
		if s.Validate != nil && !s.Validate(v) {
			continue
		}
		return Candidate{Value: v, StrategyIndex: i}
	}
	return Sentinel
}
