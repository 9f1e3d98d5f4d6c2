// Package topics loads the pre-trained topic model used for the
// "what" signal: a fixed vocabulary and a transform from term counts
// to a topic-probability vector. Training is out of scope; the model
// is read-only and shared by all articles.
package topics

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/news-similarity/engine/pkg/logger"
)

// Transformer projects a term-count vector aligned to the model
// vocabulary into a topic-probability vector.
type Transformer interface {
	Transform(counts []float64) ([]float64, error)
}

// Model pairs the ordered vocabulary with its transform.
type Model struct {
	Vocab []string

	index       map[string]int
	transformer Transformer
}

// New builds a model from an ordered vocabulary and a transformer.
func New(vocab []string, transformer Transformer) *Model {
	index := make(map[string]int, len(vocab))
	for i, term := range vocab {
		index[term] = i
	}
	return &Model{Vocab: vocab, index: index, transformer: transformer}
}

// Load reads the vocabulary (one term per line) and the projection
// weights exported by the training pipeline.
func Load(vocabPath, weightsPath string) (*Model, error) {
	raw, err := os.ReadFile(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary: %w", err)
	}

	var vocab []string
	for _, line := range strings.Split(string(raw), "\n") {
		term := strings.TrimSpace(line)
		if term == "" {
			continue
		}
		vocab = append(vocab, term)
	}

	transformer, err := LoadMatrixTransformer(weightsPath, len(vocab))
	if err != nil {
		return nil, err
	}

	logger.Info("Topic model loaded",
		zap.Int("vocabulary", len(vocab)),
		zap.String("weights", weightsPath),
	)

	return New(vocab, transformer), nil
}

// Vector aligns a term-count histogram to the vocabulary and applies
// the transform. Terms outside the vocabulary are ignored.
func (m *Model) Vector(counts map[string]int) ([]float64, error) {
	aligned := make([]float64, len(m.Vocab))
	for term, n := range counts {
		if i, ok := m.index[term]; ok {
			aligned[i] = float64(n)
		}
	}

	return m.transformer.Transform(aligned)
}

// MatrixTransformer is a linear projection through a vocab×topics
// weight matrix followed by L1 normalization, the inference half of a
// factorized topic model.
type MatrixTransformer struct {
	weights *mat.Dense
	topics  int
}

type weightsFile struct {
	Topics int         `json:"topics"`
	Rows   [][]float64 `json:"rows"`
}

// LoadMatrixTransformer reads projection weights from JSON; rows must
// match the vocabulary length.
func LoadMatrixTransformer(path string, vocabSize int) (*MatrixTransformer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read topic weights: %w", err)
	}

	var wf weightsFile
	if err := json.Unmarshal(raw, &wf); err != nil {
		return nil, fmt.Errorf("failed to parse topic weights: %w", err)
	}

	if wf.Topics <= 0 {
		return nil, fmt.Errorf("topic weights declare %d topics", wf.Topics)
	}
	if len(wf.Rows) != vocabSize {
		return nil, fmt.Errorf("topic weights have %d rows, vocabulary has %d terms",
			len(wf.Rows), vocabSize)
	}

	dense := mat.NewDense(vocabSize, wf.Topics, nil)
	for i, row := range wf.Rows {
		if len(row) != wf.Topics {
			return nil, fmt.Errorf("row %d has %d weights, expected %d", i, len(row), wf.Topics)
		}
		dense.SetRow(i, row)
	}

	return &MatrixTransformer{weights: dense, topics: wf.Topics}, nil
}

// NewMatrixTransformer wraps an in-memory weight matrix.
func NewMatrixTransformer(rows, topics int, data []float64) *MatrixTransformer {
	return &MatrixTransformer{
		weights: mat.NewDense(rows, topics, data),
		topics:  topics,
	}
}

func (t *MatrixTransformer) Transform(counts []float64) ([]float64, error) {
	rows, _ := t.weights.Dims()
	if len(counts) != rows {
		return nil, fmt.Errorf("count vector has %d terms, weights expect %d", len(counts), rows)
	}

	var projected mat.VecDense
	projected.MulVec(t.weights.T(), mat.NewVecDense(len(counts), counts))

	out := make([]float64, t.topics)
	total := 0.0
	for i := 0; i < t.topics; i++ {
		v := projected.AtVec(i)
		if v < 0 {
			v = 0
		}
		out[i] = v
		total += v
	}

	if total > 0 {
		for i := range out {
			out[i] /= total
		}
	}

	return out, nil
}
