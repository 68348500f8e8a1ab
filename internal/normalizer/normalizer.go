// Package normalizer canonicalizes raw extracted text before chunking.
//
// Normalization applies unicode canonical composition (NFC), strips
// non-printable control characters, and collapses whitespace runs to single
// spaces. Paragraph boundaries (blank-line separated blocks) are preserved as
// a double newline so the chunker can still split on them; all other newlines
// collapse along with the surrounding whitespace.
//
// All functions are pure. Handing them non-text input (invalid UTF-8) is a
// caller contract violation, not a runtime error: invalid bytes pass through
// rune replacement untouched by design of the underlying norm package.
package normalizer

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var paragraphBreak = regexp.MustCompile(`\n[ \t\r]*\n+`)

// Normalize canonicalizes raw text. Paragraph boundaries are detected before
// whitespace collapse and survive as "\n\n" markers.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	text := norm.NFC.String(raw)
	text = stripControl(text)
	paragraphs := paragraphBreak.Split(text, -1)
	out := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		collapsed := CollapseWhitespace(p)
		if collapsed == "" {
			continue
		}
		out = append(out, collapsed)
	}
	return strings.Join(out, "\n\n")
}

// CollapseWhitespace replaces every whitespace run, including newlines, with
// a single space and trims the ends.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// stripControl removes non-printable control characters while keeping the
// whitespace the paragraph detector relies on.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || r == '\r' || r == ' ' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
