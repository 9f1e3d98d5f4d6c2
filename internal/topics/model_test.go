package topics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatrixTransformerNormalizes(t *testing.T) {
	// Two terms, two topics: term 0 loads topic 0, term 1 loads topic 1.
	tr := NewMatrixTransformer(2, 2, []float64{
		1, 0,
		0, 3,
	})

	out, err := tr.Transform([]float64{2, 2})
	require.NoError(t, err)

	assert.InDelta(t, 0.25, out[0], 1e-9)
	assert.InDelta(t, 0.75, out[1], 1e-9)
}

func TestMatrixTransformerClampsNegatives(t *testing.T) {
	tr := NewMatrixTransformer(1, 2, []float64{-1, 1})

	out, err := tr.Transform([]float64{5})
	require.NoError(t, err)

	assert.Equal(t, 0.0, out[0])
	assert.Equal(t, 1.0, out[1])
}

func TestMatrixTransformerDimensionMismatch(t *testing.T) {
	tr := NewMatrixTransformer(2, 2, nil)

	_, err := tr.Transform([]float64{1})
	require.Error(t, err)
}

func TestModelVectorIgnoresUnknownTerms(t *testing.T) {
	tr := NewMatrixTransformer(2, 2, []float64{
		1, 0,
		0, 1,
	})
	model := New([]string{"senate", "election"}, tr)

	out, err := model.Vector(map[string]int{
		"senate":  3,
		"zyzzyva": 100,
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, out[0])
	assert.Equal(t, 0.0, out[1])
}

func TestModelVectorEmptyCounts(t *testing.T) {
	tr := NewMatrixTransformer(1, 2, []float64{1, 1})
	model := New([]string{"senate"}, tr)

	out, err := model.Vector(map[string]int{})
	require.NoError(t, err)

	// No mass to normalize; the vector stays all-zero.
	assert.Equal(t, []float64{0, 0}, out)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	vocabPath := filepath.Join(dir, "vocab.txt")
	require.NoError(t, os.WriteFile(vocabPath, []byte("senate\nelection\n"), 0644))

	weightsPath := filepath.Join(dir, "weights.json")
	weights := `{"topics": 2, "rows": [[1, 0], [0, 1]]}`
	require.NoError(t, os.WriteFile(weightsPath, []byte(weights), 0644))

	model, err := Load(vocabPath, weightsPath)
	require.NoError(t, err)

	assert.Equal(t, []string{"senate", "election"}, model.Vocab)

	out, err := model.Vector(map[string]int{"election": 4})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, out)
}

func TestLoadRowCountMismatch(t *testing.T) {
	dir := t.TempDir()

	vocabPath := filepath.Join(dir, "vocab.txt")
	require.NoError(t, os.WriteFile(vocabPath, []byte("senate\nelection\n"), 0644))

	weightsPath := filepath.Join(dir, "weights.json")
	require.NoError(t, os.WriteFile(weightsPath, []byte(`{"topics": 2, "rows": [[1, 0]]}`), 0644))

	_, err := Load(vocabPath, weightsPath)
	require.Error(t, err)
}

func TestLoadBadTopicCount(t *testing.T) {
	dir := t.TempDir()

	vocabPath := filepath.Join(dir, "vocab.txt")
	require.NoError(t, os.WriteFile(vocabPath, []byte("senate\n"), 0644))

	weightsPath := filepath.Join(dir, "weights.json")
	require.NoError(t, os.WriteFile(weightsPath, []byte(`{"topics": 0, "rows": []}`), 0644))

	_, err := Load(vocabPath, weightsPath)
	require.Error(t, err)
}
