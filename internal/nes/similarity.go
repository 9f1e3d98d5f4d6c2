// Package nes scores how likely two entity names refer to related
// real-world things, by comparing their encyclopedia reference
// articles pairwise. Search results are rank-ordered by relevance, so
// pairs are checked in ascending combined rank with early stopping:
// the first rank level with a qualifying pair decides the score.
package nes

import (
	"context"
	"math"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gonum.org/v1/gonum/mat"

	"github.com/news-similarity/engine/internal/metrics"
	"github.com/news-similarity/engine/pkg/logger"
)

// Rescaling constants fitted on the reference-article similarity
// distribution; changing them invalidates the article distance
// weights.
const (
	mu        = 0.023143740437546346
	sigma     = 0.03160862980242218
	threshold = 0.5
	decay     = 0.9
)

// Resolver is the encyclopedia surface nes needs; *wiki.Client
// implements it.
type Resolver interface {
	ResolveEntity(ctx context.Context, name string) ([]int64, error)
	ArticleSimilarity(ctx context.Context, id1, id2 int64) (float64, error)
}

type pairKey struct {
	a, b string
}

// NES computes entity-pair similarity with a bounded symmetric memo.
type NES struct {
	resolver Resolver
	memo     *lru.Cache[pairKey, float64]
	titler   cases.Caser
}

func New(resolver Resolver, memoSize int) (*NES, error) {
	if memoSize <= 0 {
		memoSize = 1000
	}
	memo, err := lru.New[pairKey, float64](memoSize)
	if err != nil {
		return nil, err
	}
	return &NES{
		resolver: resolver,
		memo:     memo,
		titler:   cases.Title(language.English),
	}, nil
}

func memoKey(ne1, ne2 string) pairKey {
	if ne1 > ne2 {
		ne1, ne2 = ne2, ne1
	}
	return pairKey{ne1, ne2}
}

// Similarity returns a [0,1] similarity between two entity names.
// Reference-article index pairs are grouped into levels by i+j
// ascending; within a level pairs run in ascending (i, j) order and
// ties keep the first-seen maximum, so results are deterministic.
func (n *NES) Similarity(ctx context.Context, ne1, ne2 string) (float64, error) {
	ne1 = strings.ToLower(strings.TrimSpace(ne1))
	ne2 = strings.ToLower(strings.TrimSpace(ne2))

	key := memoKey(ne1, ne2)
	if sim, ok := n.memo.Get(key); ok {
		metrics.CacheHits.WithLabelValues("ne_pair").Inc()
		return sim, nil
	}
	metrics.CacheMisses.WithLabelValues("ne_pair").Inc()

	a, err := n.resolver.ResolveEntity(ctx, ne1)
	if err != nil {
		return 0, err
	}
	b, err := n.resolver.ResolveEntity(ctx, ne2)
	if err != nil {
		return 0, err
	}

	sim, err := n.levelScan(ctx, a, b)
	if err != nil {
		return 0, err
	}

	n.memo.Add(key, sim)

	logger.Debug("NE similarity computed",
		zap.String("ne1", ne1),
		zap.String("ne2", ne2),
		zap.Float64("similarity", sim),
	)
	return sim, nil
}

func (n *NES) levelScan(ctx context.Context, a, b []int64) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, nil
	}

	maxLevel := (len(a) - 1) + (len(b) - 1)
	for level := 0; level <= maxLevel; level++ {
		best := 0.0
		qualified := false

		lo := level - (len(b) - 1)
		if lo < 0 {
			lo = 0
		}
		hi := level
		if hi > len(a)-1 {
			hi = len(a) - 1
		}

		for i := lo; i <= hi; i++ {
			j := level - i

			raw, err := n.resolver.ArticleSimilarity(ctx, a[i], b[j])
			if err != nil {
				return 0, err
			}
			metrics.NEPairsEvaluated.Inc()

			sim := clamp01((raw-mu)/(sigma/0.1) + 0.5)
			if sim < threshold {
				continue
			}

			// Lower-ranked matches carry less weight than a
			// nearer-to-top pair.
			sim *= math.Pow(decay, float64(level))
			if !qualified || sim > best {
				best = sim
				qualified = true
			}
		}

		if qualified {
			return best, nil
		}
	}

	return 0, nil
}

// Matrix builds the symmetric ground-distance matrix over a set of
// entity names: matrix[i][j] = 1 − similarity, zero diagonal. Names
// are deduped case-insensitively and sorted; the returned list holds
// their title-cased canonical forms. An empty input yields (nil, nil).
func (n *NES) Matrix(ctx context.Context, names []string) (*mat.SymDense, []string, error) {
	seen := make(map[string]bool)
	var sorted []string
	for _, name := range names {
		lower := strings.ToLower(strings.TrimSpace(name))
		if lower == "" || seen[lower] {
			continue
		}
		seen[lower] = true
		sorted = append(sorted, lower)
	}
	if len(sorted) == 0 {
		return nil, nil, nil
	}
	sort.Strings(sorted)

	matrix := mat.NewSymDense(len(sorted), nil)
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			sim, err := n.Similarity(ctx, sorted[i], sorted[j])
			if err != nil {
				return nil, nil, err
			}
			matrix.SetSym(i, j, 1-sim)
		}
	}

	titled := make([]string, len(sorted))
	for i, name := range sorted {
		titled[i] = n.titler.String(name)
	}

	return matrix, titled, nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
