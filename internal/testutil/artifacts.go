package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
)

// Fixture bundle layout:
//
//	numeric 7 | motivo 6 | examen 4 | combined 5 | zone 4  = 26 features
//
// The single tree routes on the zone block only: bronquios -> class 0,
// faringe -> class 1, anything else -> class 2.
const (
	FixtureFeatureDim = 26
	FixtureZoneOffset = 22
)

// FixtureLabels are the labels of the fixture bundle, in class order.
var FixtureLabels = []string{"bronquitis", "faringitis", "laringitis"}

const (
	fixtureMotivo = `{
  "vocabulary": {"tos": 0, "productiva": 1, "dificultad": 2, "respiratoria": 3, "dolor": 4, "garganta": 5},
  "ngram_range": [1, 1],
  "norm": "l2"
}`
	fixtureExamen = `{
  "vocabulary": {"roncus": 0, "faringe": 1, "placas": 2, "laringe": 3},
  "idf": [1.5, 1.0, 2.0, 1.0],
  "norm": "l2"
}`
	fixtureCombined = `{
  "vocabulary": {"tos productiva": 0, "dificultad respiratoria": 1, "roncus": 2, "dolor": 3, "garganta": 4},
  "ngram_range": [1, 2],
  "norm": "l2",
  "sublinear_tf": true
}`
	fixtureZone = `{"categories": ["bronquios", "faringe", "laringe", "otro"], "handle_unknown": "error"}`
	fixtureForest = `{
  "n_features": 26,
  "classes": [0, 1, 2],
  "trees": [{
    "children_left":  [1, 3, -1, -1, -1],
    "children_right": [2, 4, -1, -1, -1],
    "feature":        [22, 23, -2, -2, -2],
    "threshold":      [0.5, 0.5, -2, -2, -2],
    "value":          [[5, 4, 4], [0, 4, 4], [5, 0, 0], [0, 0, 4], [0, 4, 0]]
  }]
}`
	fixtureLabels = `{"classes": ["bronquitis", "faringitis", "laringitis"]}`
)

// ArtifactFS returns an in-memory artifact bundle whose feature dimension is
// FixtureFeatureDim.  Callers may add or replace files on the returned map.
func ArtifactFS() fstest.MapFS {
	return fstest.MapFS{
		"vectorizer_motivo.json":      {Data: []byte(fixtureMotivo)},
		"vectorizer_examen.json":      {Data: []byte(fixtureExamen)},
		"vectorizer_texto_final.json": {Data: []byte(fixtureCombined)},
		"grupo_zona_encoder.json":     {Data: []byte(fixtureZone)},
		"modelo_rf.json":              {Data: []byte(fixtureForest)},
		"label_encoder.json":          {Data: []byte(fixtureLabels)},
	}
}

// WriteArtifacts writes ArtifactFS into a temporary directory and returns it.
func WriteArtifacts(t testing.TB) string {
	t.Helper()
	dir := t.TempDir()
	for name, f := range ArtifactFS() {
		if err := os.WriteFile(filepath.Join(dir, name), f.Data, 0o600); err != nil {
			t.Fatalf("write artifact %s: %v", name, err)
		}
	}
	return dir
}
