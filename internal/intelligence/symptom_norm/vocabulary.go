// Package symptom_norm turns free-text symptom descriptions into the
// canonical Spanish clinical vocabulary used by the triage classifier and
// infers the anatomical zone of the normalized text.
package symptom_norm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Canonical vocabulary
// ---------------------------------------------------------------------------

// CanonicalTerm is one entry of the vocabulary: a canonical medical term and
// the free-text phrasings rewritten to it, in rewrite order.
type CanonicalTerm struct {
	Term     string
	Variants []string
}

// Rule is a single (canonical, variant) rewrite.
type Rule struct {
	Canonical string
	Variant   string
}

// Vocabulary is an immutable ordered list of canonical terms.  Order is part
// of its contract: it fixes the lexical rewrite order and the semantic
// tie-break order.
type Vocabulary struct {
	terms []CanonicalTerm
	index map[string]int
	rules []Rule
}

// NewVocabulary validates and copies terms into a Vocabulary.
func NewVocabulary(terms []CanonicalTerm) (*Vocabulary, error) {
	if len(terms) == 0 {
		return nil, fmt.Errorf("symptom_norm: vocabulary must not be empty")
	}
	v := &Vocabulary{
		terms: make([]CanonicalTerm, 0, len(terms)),
		index: make(map[string]int, len(terms)),
	}
	for _, t := range terms {
		if strings.TrimSpace(t.Term) == "" {
			return nil, fmt.Errorf("symptom_norm: canonical term must not be blank")
		}
		if _, dup := v.index[t.Term]; dup {
			return nil, fmt.Errorf("symptom_norm: duplicate canonical term %q", t.Term)
		}
		variants := make([]string, 0, len(t.Variants))
		for _, variant := range t.Variants {
			if variant == "" {
				return nil, fmt.Errorf("symptom_norm: empty variant for %q", t.Term)
			}
			variants = append(variants, variant)
			v.rules = append(v.rules, Rule{Canonical: t.Term, Variant: variant})
		}
		v.index[t.Term] = len(v.terms)
		v.terms = append(v.terms, CanonicalTerm{Term: t.Term, Variants: variants})
	}
	return v, nil
}

// Len returns the number of canonical terms.
func (v *Vocabulary) Len() int { return len(v.terms) }

// Terms returns the canonical terms in table order.
func (v *Vocabulary) Terms() []string {
	out := make([]string, len(v.terms))
	for i, t := range v.terms {
		out[i] = t.Term
	}
	return out
}

// Term returns the i-th canonical term.
func (v *Vocabulary) Term(i int) string { return v.terms[i].Term }

// IsCanonical reports whether s equals a canonical term exactly.
func (v *Vocabulary) IsCanonical(s string) bool {
	_, ok := v.index[s]
	return ok
}

// Index returns the table position of a canonical term.
func (v *Vocabulary) Index(term string) (int, bool) {
	i, ok := v.index[term]
	return i, ok
}

// Rules returns the lexical rewrite rules in application order: canonical
// terms in table order, then variants in their listed order.
func (v *Vocabulary) Rules() []Rule {
	out := make([]Rule, len(v.rules))
	copy(out, v.rules)
	return out
}

// ---------------------------------------------------------------------------
// Default clinical vocabulary
// ---------------------------------------------------------------------------

// DefaultTerms is the respiratory vocabulary the released classifier was
// trained against.  Variants are matched against sanitized text, so entries
// that still carry diacritics never fire; they are kept to stay aligned with
// the trained artifacts.
var DefaultTerms = []CanonicalTerm{
	// bronchial
	{Term: "tos productiva", Variants: []string{
		"tos con flema", "expectoracion", "secrecion bronquial", "flema",
		"secreción mucosa", "moco", "secreciones",
	}},
	{Term: "roncus", Variants: []string{
		"sibilancias", "sonidos bronquiales", "ruidos respiratorios anormales",
		"ruidos roncos", "ruidos al respirar", "ruido bronquial",
	}},
	{Term: "dificultad respiratoria", Variants: []string{
		"disnea", "problemas al respirar", "jadeo", "sensacion de falta de aire",
		"respiracion dificultosa", "fatiga al respirar",
	}},

	// pharyngeal
	{Term: "dolor de garganta", Variants: []string{
		"odinofagia", "garganta irritada", "molestia al tragar",
		"picazon en la garganta", "garganta inflamada", "ardor de garganta",
	}},
	{Term: "placas en garganta", Variants: []string{
		"placas blanquecinas", "secrecion purulenta faringea",
		"inflamacion faringea", "amigdalas inflamadas", "secreciones faríngeas",
	}},
	{Term: "ganglios inflamados", Variants: []string{
		"adenopatias", "inflamacion ganglionar", "nodulos en cuello",
		"bultos en cuello", "ganglios cervicales aumentados",
	}},

	// laryngeal
	{Term: "ronquera", Variants: []string{
		"voz ronca", "disfonia", "perdida de voz", "cambio de voz",
		"alteracion de la voz", "fatiga vocal", "voz apagada",
	}},
	{Term: "dolor al hablar", Variants: []string{
		"molestia al hablar", "esfuerzo vocal", "dolor de cuerdas vocales",
		"molestia fonatoria", "dolor laringeo",
	}},
	{Term: "edema en cuerdas vocales", Variants: []string{
		"inflamacion laringea", "cuerdas inflamadas", "eritema laringeo",
		"edema laringeo", "inflamación de la glotis",
	}},

	// anatomical zones
	{Term: "faringe", Variants: []string{"garganta", "zona faringea", "faringitis"}},
	{Term: "laringe", Variants: []string{"cuerdas vocales", "laringe", "voz", "zona laringea", "laringitis"}},
	{Term: "bronquios", Variants: []string{"bronquial", "pulmon", "bronquitis", "arbol bronquial"}},
}

// DefaultVocabulary returns the vocabulary built from DefaultTerms.
func DefaultVocabulary() *Vocabulary {
	v, err := NewVocabulary(DefaultTerms)
	if err != nil {
		panic(err)
	}
	return v
}
