package normalizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "empty input",
			in:   "",
			want: "",
		},
		{
			name: "collapses spaces and tabs",
			in:   "hello   \t world",
			want: "hello world",
		},
		{
			name: "single newline collapses to space",
			in:   "line one\nline two",
			want: "line one line two",
		},
		{
			name: "paragraph boundary preserved",
			in:   "first paragraph\n\nsecond paragraph",
			want: "first paragraph\n\nsecond paragraph",
		},
		{
			name: "blank line with spaces is still a paragraph boundary",
			in:   "first\n   \t\nsecond",
			want: "first\n\nsecond",
		},
		{
			name: "multiple blank lines collapse to one boundary",
			in:   "first\n\n\n\nsecond",
			want: "first\n\nsecond",
		},
		{
			name: "control characters stripped",
			in:   "hel\x00lo\x07 world",
			want: "hello world",
		},
		{
			name: "whitespace only",
			in:   "  \n\t \n  ",
			want: "",
		},
		{
			name: "leading and trailing whitespace trimmed",
			in:   "  padded text  \n",
			want: "padded text",
		},
		{
			name: "unicode composed form",
			in:   "cafe\u0301", // e + combining acute
			want: "caf\u00e9", // precomposed form
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	in := "A title\n\nSome  body text\nwith a wrapped line.\n\nAnother\tparagraph."
	once := Normalize(in)
	assert.Equal(t, once, Normalize(once))
}

func TestNormalize_NoContentLost(t *testing.T) {
	in := "alpha beta\n\ngamma   delta\nepsilon"
	got := Normalize(in)
	for _, word := range []string{"alpha", "beta", "gamma", "delta", "epsilon"} {
		assert.True(t, strings.Contains(got, word), "missing %q", word)
	}
}

func TestCollapseWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", CollapseWhitespace(" a\n b\t\tc "))
	assert.Equal(t, "", CollapseWhitespace("   "))
}
