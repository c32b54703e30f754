package symptom_norm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	tagPattern      = regexp.MustCompile(`<.*?>`)
	nonLetterRunes  = regexp.MustCompile(`[^a-z\s]`)
	whitespaceRunes = regexp.MustCompile(`\s+`)
)

// asciiFold maps a rune without a canonical decomposition to its closest
// ASCII spelling.
var asciiFold = map[rune]string{
	'ß': "ss", 'æ': "ae", 'œ': "oe", 'ø': "o", 'đ': "d", 'ł': "l", 'ı': "i",
}

// Sanitize lower-cases text, strips diacritics, replaces tag-like markup and
// every character outside a-z and whitespace with a space, then collapses
// whitespace.  It never fails and is idempotent.
func Sanitize(text string) string {
	s := stripAccents(strings.ToLower(text))
	s = tagPattern.ReplaceAllString(s, " ")
	s = nonLetterRunes.ReplaceAllString(s, " ")
	s = whitespaceRunes.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	var b strings.Builder
	b.Grow(len(out))
	for _, r := range out {
		if r < unicode.MaxASCII {
			b.WriteRune(r)
			continue
		}
		if f, ok := asciiFold[r]; ok {
			b.WriteString(f)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
