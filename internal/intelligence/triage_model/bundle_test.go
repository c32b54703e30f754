package triage_model

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sira-Clinica/backend/internal/intelligence/symptom_norm"
	"github.com/Sira-Clinica/backend/internal/testutil"
	"github.com/Sira-Clinica/backend/pkg/errors"
)

func canonicalEmbeddingsFile(t *testing.T, ce CanonicalEmbeddings) *fstest.MapFile {
	t.Helper()
	data, err := json.Marshal(ce)
	require.NoError(t, err)
	return &fstest.MapFile{Data: data}
}

func TestLoadBundle_Fixture(t *testing.T) {
	b, err := LoadBundle(testutil.ArtifactFS())
	require.NoError(t, err)

	assert.Nil(t, b.CanonicalEmbeddings)
	assert.Equal(t, BundleInfo{
		MotivoDim:      6,
		ExamenDim:      4,
		CombinedDim:    5,
		ZoneDim:        4,
		InputDim:       testutil.FixtureFeatureDim,
		Trees:          1,
		Labels:         len(testutil.FixtureLabels),
		CanonicalTerms: symptom_norm.DefaultVocabulary().Len(),
	}, b.Info())
}

func TestLoadBundleDir(t *testing.T) {
	b, err := LoadBundleDir(testutil.WriteArtifacts(t))
	require.NoError(t, err)
	assert.Equal(t, testutil.FixtureFeatureDim, b.Forest.InputDimension())

	_, err = LoadBundleDir(filepath.Join(t.TempDir(), "missing"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeArtifactMissing))
	assert.True(t, errors.IsConfiguration(err))
}

func TestLoadBundle_MissingArtifact(t *testing.T) {
	for _, name := range RequiredFiles {
		t.Run(name, func(t *testing.T) {
			fsys := testutil.ArtifactFS()
			delete(fsys, name)

			_, err := LoadBundle(fsys)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeArtifactMissing))
			assert.Contains(t, err.Error(), name)
		})
	}
}

func TestLoadBundle_FeatureDimensionDrift(t *testing.T) {
	fsys := testutil.ArtifactFS()
	fsys[FileMotivoVectorizer] = &fstest.MapFile{Data: []byte(`{"vocabulary": {"tos": 0, "fiebre": 1}}`)}

	_, err := LoadBundle(fsys)
	assert.True(t, errors.IsCode(err, errors.ErrCodeFeatureDimensionMismatch))
	assert.True(t, errors.IsConfiguration(err))
}

func TestLoadBundle_ClassWithoutLabel(t *testing.T) {
	fsys := testutil.ArtifactFS()
	fsys[FileLabelEncoder] = &fstest.MapFile{Data: []byte(`{"classes": ["bronquitis", "faringitis"]}`)}

	_, err := LoadBundle(fsys)
	assert.True(t, errors.IsCode(err, errors.ErrCodeArtifactCorrupt))
}

func TestLoadBundle_EmptyVocabulary(t *testing.T) {
	_, err := LoadBundle(testutil.ArtifactFS(), WithVocabulary(nil))
	assert.True(t, errors.IsCode(err, errors.ErrCodeVocabularyInvalid))
}

func TestLoadBundle_CanonicalEmbeddings(t *testing.T) {
	fsys := testutil.ArtifactFS()
	fsys[FileCanonicalEmbeddings] = canonicalEmbeddingsFile(t, CanonicalEmbeddings{
		Model:     "stub",
		Dimension: 3,
		Embeddings: map[string][]float32{
			"roncus":   {1, 0, 0},
			"faringe":  {0, 1, 0},
			"ronquera": {0, 0, 1},
		},
	})

	b, err := LoadBundle(fsys)
	require.NoError(t, err)
	require.NotNil(t, b.CanonicalEmbeddings)
	assert.Len(t, b.CanonicalEmbeddings.Embeddings, 3)
	info := b.Info()
	assert.True(t, info.PrecomputedEmbeddings)
	assert.Equal(t, "stub", info.EmbeddingModel)
}

func TestLoadBundle_CanonicalEmbeddingsRejected(t *testing.T) {
	tests := map[string]struct {
		ce   CanonicalEmbeddings
		code errors.ErrorCode
	}{
		"unknown term": {
			ce:   CanonicalEmbeddings{Dimension: 2, Embeddings: map[string][]float32{"fiebre": {1, 0}}},
			code: errors.ErrCodeArtifactCorrupt,
		},
		"vector length": {
			ce:   CanonicalEmbeddings{Dimension: 2, Embeddings: map[string][]float32{"roncus": {1, 0, 0}}},
			code: errors.ErrCodeEmbeddingDimensionMismatch,
		},
		"no dimension": {
			ce:   CanonicalEmbeddings{Embeddings: map[string][]float32{"roncus": {1}}},
			code: errors.ErrCodeArtifactCorrupt,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			fsys := testutil.ArtifactFS()
			fsys[FileCanonicalEmbeddings] = canonicalEmbeddingsFile(t, tt.ce)
			_, err := LoadBundle(fsys)
			assert.True(t, errors.IsCode(err, tt.code), "got %v", err)
		})
	}

	fsys := testutil.ArtifactFS()
	fsys[FileCanonicalEmbeddings] = &fstest.MapFile{Data: []byte(`not json`)}
	_, err := LoadBundle(fsys)
	assert.True(t, errors.IsCode(err, errors.ErrCodeArtifactCorrupt))
}
