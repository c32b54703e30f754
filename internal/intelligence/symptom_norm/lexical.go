package symptom_norm

import "strings"

// CanonicalizeLexical applies every rewrite rule of vocab to text in rule
// order.  Each rule replaces all non-overlapping occurrences of its variant,
// scanning left to right, on the text produced by the previous rules.
//
// A variant occurrence that lies wholly inside an occurrence of a canonical
// term is left alone, so canonical text is a fixed point:
// CanonicalizeLexical(t, vocab) == t for every canonical term t.
func CanonicalizeLexical(text string, vocab *Vocabulary) string {
	if text == "" {
		return text
	}
	for _, r := range vocab.rules {
		if !strings.Contains(text, r.Variant) {
			continue
		}
		text = replaceUnprotected(text, r, canonicalSpans(text, vocab))
	}
	return text
}

type span struct{ start, end int }

// canonicalSpans returns every occurrence of every canonical term in text.
func canonicalSpans(text string, vocab *Vocabulary) []span {
	var spans []span
	for _, t := range vocab.terms {
		for off := 0; off < len(text); {
			i := strings.Index(text[off:], t.Term)
			if i < 0 {
				break
			}
			start := off + i
			spans = append(spans, span{start: start, end: start + len(t.Term)})
			off = start + 1
		}
	}
	return spans
}

func covered(spans []span, start, end int) bool {
	for _, s := range spans {
		if s.start <= start && end <= s.end {
			return true
		}
	}
	return false
}

func replaceUnprotected(text string, r Rule, protected []span) string {
	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for off := 0; off < len(text); {
		i := strings.Index(text[off:], r.Variant)
		if i < 0 {
			break
		}
		start := off + i
		end := start + len(r.Variant)
		if !covered(protected, start, end) {
			b.WriteString(text[last:start])
			b.WriteString(r.Canonical)
			last = end
		}
		off = end
	}
	if last == 0 && b.Len() == 0 {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}
