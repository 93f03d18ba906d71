// Package simhash computes 64-bit SimHash fingerprints. The pagination
// walker uses them to notice a "next" control that reloads the same page.
package simhash

import (
	"hash/fnv"
	"math/bits"
	"strings"
)

// FingerprintTokens computes the SimHash of tokens using FNV-64a with
// bit vector accumulation. It returns 0 for no tokens.
func FingerprintTokens(tokens []string) uint64 {
	if len(tokens) == 0 {
		return 0
	}

	var vector [64]int
	for _, tok := range tokens {
		h := fnv.New64a()
		h.Write([]byte(tok))
		hash := h.Sum64()

		for i := 0; i < 64; i++ {
			if hash&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}

	var fp uint64
	for i := 0; i < 64; i++ {
		if vector[i] > 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}

// FingerprintItems fingerprints an ordered list of entries such as the item
// names of a listing page. Each entry becomes one normalized token and
// neighbouring entries are shingled in pairs, so order matters.
func FingerprintItems(items []string) uint64 {
	tokens := make([]string, 0, len(items))
	for _, it := range items {
		if norm := strings.Join(strings.Fields(strings.ToLower(it)), "_"); norm != "" {
			tokens = append(tokens, norm)
		}
	}
	if sh := Shingles(tokens, 2); len(sh) > 0 {
		return FingerprintTokens(sh)
	}
	return FingerprintTokens(tokens)
}

// Shingles creates n-gram shingles from tokens. It returns nil when there are
// fewer than n tokens.
func Shingles(tokens []string, n int) []string {
	if n < 1 || len(tokens) < n {
		return nil
	}
	out := make([]string, 0, len(tokens)-n+1)
	for i := 0; i <= len(tokens)-n; i++ {
		out = append(out, strings.Join(tokens[i:i+n], "|"))
	}
	return out
}

// Distance returns the Hamming distance between two fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Similar reports whether two fingerprints are within threshold bits.
func Similar(a, b uint64, threshold int) bool {
	return Distance(a, b) <= threshold
}
