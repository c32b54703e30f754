package symptom_norm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase", "Tos con FLEMA", "tos con flema"},
		{"punctuation and digits", "Dolor de garganta, fiebre 38.5°C", "dolor de garganta fiebre c"},
		{"accents and tags", "Inflamación <b>faríngea</b>", "inflamacion faringea"},
		{"enye", "Niño con SEÑALES", "nino con senales"},
		{"script tag", "<script>alert(1)</script>", "alert"},
		{"ligature fold", "Straße", "strasse"},
		{"whitespace runs", "  tos \t\n  seca  ", "tos seca"},
		{"empty", "", ""},
		{"whitespace only", " \t\r\n ", ""},
		{"no letters", "123 !!! 4.5", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Sanitize(tc.in))
		})
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{
		"Tos con FLEMA y dificultad al respirar!!",
		"<p>Garganta inflamada</p> desde hace 3 días",
		"İstanbul ﬁebre ÆON",
		" voz ronca ",
		"a<b>c<d",
		"",
		"ñ̃ é́",
	}
	for _, in := range inputs {
		once := Sanitize(in)
		assert.Equal(t, once, Sanitize(once), "input %q", in)
	}
}

func TestSanitize_OutputAlphabet(t *testing.T) {
	out := Sanitize("Ém@il: paciente_01@clínica.pe — «urgente»")
	for _, r := range out {
		assert.True(t, r == ' ' || (r >= 'a' && r <= 'z'), "unexpected rune %q in %q", r, out)
	}
}
