// Package normalizer canonicalizes free-text bank concept strings and
// extracts invoice reference tokens from them.
//
// Both functions are pure: no side effects, and Normalize is
// idempotent (Normalize(Normalize(s)) == Normalize(s)).
package normalizer

import (
	"regexp"
	"strings"
)

// separators collapses runs of whitespace, dashes and slashes that
// banks insert between concept fields.
var separators = regexp.MustCompile(`[\s\-/]+`)

// reference matches the invoice numbering convention: a short letter
// prefix followed by digits (e.g. F240001). The digit cap keeps IBANs
// and card numbers from being mistaken for invoice references.
var reference = regexp.MustCompile(`\b[A-Z]{1,2}[0-9]{4,8}\b`)

// refPrefix captures the leading letters of a reference token.
var refPrefix = regexp.MustCompile(`^[A-Z]+`)

// Normalize returns the canonical comparable form of a concept string:
// trimmed, lower-cased, with internal separators collapsed to single
// spaces.
func Normalize(text string) string {
	collapsed := separators.ReplaceAllString(strings.TrimSpace(text), " ")
	return strings.ToLower(strings.TrimSpace(collapsed))
}

// ExtractReference scans the raw (non-normalized) text for an invoice
// reference token and returns the first one found.
//
// When the text carries tokens with different letter prefixes the
// reference is ambiguous and ExtractReference reports no match: a
// wrong reference is worse than none.
func ExtractReference(text string) (string, bool) {
	matches := reference.FindAllString(text, -1)
	if len(matches) == 0 {
		return "", false
	}

	first := refPrefix.FindString(matches[0])
	for _, m := range matches[1:] {
		if refPrefix.FindString(m) != first {
			return "", false
		}
	}

	return matches[0], true
}
