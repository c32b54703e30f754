package triage_model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sira-Clinica/backend/internal/testutil"
	"github.com/Sira-Clinica/backend/pkg/errors"
)

func fixtureForest(t *testing.T) *RandomForest {
	t.Helper()
	rf, err := ParseRandomForest(FileRandomForest, testutil.ArtifactFS()[FileRandomForest].Data)
	require.NoError(t, err)
	return rf
}

func zoneFeatures(zoneIdx int) []float64 {
	x := make([]float64, testutil.FixtureFeatureDim)
	x[testutil.FixtureZoneOffset+zoneIdx] = 1
	return x
}

func TestRandomForest_PredictRoutesOnZone(t *testing.T) {
	rf := fixtureForest(t)
	assert.Equal(t, testutil.FixtureFeatureDim, rf.InputDimension())
	assert.Equal(t, []int{0, 1, 2}, rf.Classes())

	ctx := context.Background()
	for zone, want := range []int{0, 1, 2, 2} {
		got, err := rf.Predict(ctx, zoneFeatures(zone))
		require.NoError(t, err)
		assert.Equal(t, want, got, "zone %d", zone)
	}
}

func TestRandomForest_AveragesNormalizedLeaves(t *testing.T) {
	data := []byte(`{
	  "n_features": 1,
	  "classes": [0, 1],
	  "trees": [
	    {"children_left": [-1], "children_right": [-1], "feature": [-2], "threshold": [-2], "value": [[30, 10]]},
	    {"children_left": [-1], "children_right": [-1], "feature": [-2], "threshold": [-2], "value": [[1, 3]]}
	  ]
	}`)
	rf, err := ParseRandomForest("rf", data)
	require.NoError(t, err)

	proba, err := rf.PredictProba([]float64{0})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, proba[0], 1e-12)
	assert.InDelta(t, 0.5, proba[1], 1e-12)

	// Exact tie goes to the first class.
	got, err := rf.Predict(context.Background(), []float64{0})
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}

func TestRandomForest_ThresholdIsInclusiveLeft(t *testing.T) {
	data := []byte(`{
	  "n_features": 1,
	  "classes": [4, 9],
	  "trees": [{
	    "children_left": [1, -1, -1], "children_right": [2, -1, -1],
	    "feature": [0, -2, -2], "threshold": [0.5, -2, -2],
	    "value": [[1, 1], [1, 0], [0, 1]]
	  }]
	}`)
	rf, err := ParseRandomForest("rf", data)
	require.NoError(t, err)

	got, err := rf.Predict(context.Background(), []float64{0.5})
	require.NoError(t, err)
	assert.Equal(t, 4, got)

	got, err = rf.Predict(context.Background(), []float64{0.51})
	require.NoError(t, err)
	assert.Equal(t, 9, got)
}

func TestRandomForest_Errors(t *testing.T) {
	rf := fixtureForest(t)

	_, err := rf.Predict(context.Background(), []float64{1, 2})
	assert.True(t, errors.IsCode(err, errors.ErrCodeClassifierFailed))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = rf.Predict(ctx, zoneFeatures(0))
	assert.True(t, errors.IsCode(err, errors.ErrCodeTimeout))
}

func TestParseRandomForest_Corrupt(t *testing.T) {
	tests := map[string]string{
		"not json":      `{`,
		"no features":   `{"n_features": 0, "classes": [0], "trees": []}`,
		"no classes":    `{"n_features": 1, "classes": [], "trees": []}`,
		"no trees":      `{"n_features": 1, "classes": [0], "trees": []}`,
		"no nodes":      `{"n_features": 1, "classes": [0], "trees": [{}]}`,
		"ragged arrays": `{"n_features": 1, "classes": [0], "trees": [{"children_left": [-1], "children_right": [], "feature": [-2], "threshold": [0], "value": [[1]]}]}`,
		"one child":     `{"n_features": 1, "classes": [0], "trees": [{"children_left": [1, -1], "children_right": [-1, -1], "feature": [0, -2], "threshold": [0, 0], "value": [[1], [1]]}]}`,
		"backward edge": `{"n_features": 1, "classes": [0], "trees": [{"children_left": [0], "children_right": [0], "feature": [0], "threshold": [0], "value": [[1]]}]}`,
		"bad feature":   `{"n_features": 1, "classes": [0], "trees": [{"children_left": [1, -1, -1], "children_right": [2, -1, -1], "feature": [3, -2, -2], "threshold": [0, 0, 0], "value": [[1], [1], [1]]}]}`,
		"leaf width":    `{"n_features": 1, "classes": [0, 1], "trees": [{"children_left": [-1], "children_right": [-1], "feature": [-2], "threshold": [0], "value": [[1]]}]}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRandomForest("rf.json", []byte(body))
			assert.True(t, errors.IsCode(err, errors.ErrCodeArtifactCorrupt), "got %v", err)
		})
	}
}

func TestLabelDecoder(t *testing.T) {
	d, err := ParseLabelDecoder(FileLabelEncoder, testutil.ArtifactFS()[FileLabelEncoder].Data)
	require.NoError(t, err)
	assert.Equal(t, 3, d.Len())

	label, err := d.Decode(1)
	require.NoError(t, err)
	assert.Equal(t, "faringitis", label)

	for _, i := range []int{-1, 3} {
		_, err = d.Decode(i)
		assert.True(t, errors.IsCode(err, errors.ErrCodeLabelDecodeFailed))
		assert.True(t, errors.IsExternalService(err))
	}

	_, err = ParseLabelDecoder("l", []byte(`{"classes": []}`))
	assert.True(t, errors.IsCode(err, errors.ErrCodeArtifactCorrupt))
}
