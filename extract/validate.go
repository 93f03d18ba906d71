package extract

import "unicode/utf8"

// NonEmpty accepts any value. Resolve already discards blank text, so this
// is the validator for fields with no further shape constraint.
func NonEmpty(string) bool { return true }

// MinLen accepts values of at least n characters.
func MinLen(n int) Validator {
	return func(s string) bool { return utf8.RuneCountInString(s) >= n }
}

// MaxLen accepts values of at most n characters.
func MaxLen(n int) Validator {
	return func(s string) bool { return utf8.RuneCountInString(s) <= n }
}

// LenBetween accepts values whose length lies in [min, max].
func LenBetween(min, max int) Validator {
	return All(MinLen(min), MaxLen(max))
}

// All accepts values that pass every validator.
func All(vs ...Validator) Validator {
	return func(s string) bool {
		for _, v := range vs {
			if v != nil && !v(s) {
				return false
			}
		}
		return true
	}
}
