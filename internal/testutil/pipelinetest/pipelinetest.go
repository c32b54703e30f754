// Package pipelinetest builds a triage pipeline over the fixture artifact
// bundle for tests outside the triage_model package.
package pipelinetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Sira-Clinica/backend/internal/intelligence/symptom_norm"
	"github.com/Sira-Clinica/backend/internal/intelligence/triage_model"
	"github.com/Sira-Clinica/backend/internal/testutil"
)

// Aliases maps colloquial phrases used by the fixtures to vocabulary terms.
var Aliases = map[string]string{
	"dificultad": "dificultad respiratoria",
}

// Embedder returns a stub embedder that resolves vocabulary terms and Aliases.
func Embedder() *testutil.StubEmbedder {
	return testutil.NewClinicalStubEmbedder(symptom_norm.DefaultVocabulary().Terms(), Aliases)
}

// New loads the fixture bundle and returns a ready pipeline with its
// embedder.  The embedder call counts are reset after warm-up.
func New(t testing.TB, opts ...triage_model.PipelineOption) (*triage_model.Pipeline, *testutil.StubEmbedder) {
	t.Helper()
	b, err := triage_model.LoadBundle(testutil.ArtifactFS())
	require.NoError(t, err)
	emb := Embedder()
	p, err := triage_model.NewPipeline(context.Background(), b, emb, opts...)
	require.NoError(t, err)
	emb.Reset()
	return p, emb
}

// Vitals is a valid adult record.
func Vitals() triage_model.VitalsRecord {
	return triage_model.VitalsRecord{
		Temperatura: 38.5,
		Edad:        40,
		FCard:       90,
		FResp:       22,
		Talla:       170,
		Peso:        70,
		Genero:      triage_model.GenderM,
	}
}
