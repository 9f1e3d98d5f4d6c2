package similarity

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/news-similarity/engine/internal/article"
	"github.com/news-similarity/engine/internal/emd"
	"github.com/news-similarity/engine/internal/metrics"
)

// WhoDistance compares the person/organization distributions of two
// articles. NaN means the pair is incomparable along this axis.
func (e *Engine) WhoDistance(ctx context.Context, a, b *article.Article) (float64, error) {
	c1, err := e.Who(a)
	if err != nil {
		return 0, err
	}
	c2, err := e.Who(b)
	if err != nil {
		return 0, err
	}

	d, err := e.setDistance(ctx, c1, c2)
	if err != nil {
		return 0, err
	}
	return clamp01(d), nil
}

// WhereDistance compares the place distributions of two articles.
func (e *Engine) WhereDistance(ctx context.Context, a, b *article.Article) (float64, error) {
	c1, err := e.Where(a)
	if err != nil {
		return 0, err
	}
	c2, err := e.Where(b)
	if err != nil {
		return 0, err
	}

	d, err := e.setDistance(ctx, c1, c2)
	if err != nil {
		return 0, err
	}
	return clamp01(d), nil
}

// setDistance is the EMD aggregation over two entity distributions:
// truncate to the top-K entities, penalize by the larger truncated
// tail (the worst-case side, deliberately not an average), transport
// the renormalized remainders over the NE ground-distance matrix, and
// blend so the result lies in [penalty, 1].
func (e *Engine) setDistance(ctx context.Context, c1, c2 map[string]float64) (float64, error) {
	if len(c1) == 0 || len(c2) == 0 {
		// Nothing to compare; exclude this pair downstream instead of
		// calling it maximally different.
		return math.NaN(), nil
	}

	s1 := rankedKeys(c1)
	s2 := rankedKeys(c2)

	penalty := 0.0
	if e.maxEntities > 0 {
		penalty = math.Max(tailMass(c1, s1, e.maxEntities), tailMass(c2, s2, e.maxEntities))
		if len(s1) > e.maxEntities {
			s1 = s1[:e.maxEntities]
		}
		if len(s2) > e.maxEntities {
			s2 = s2[:e.maxEntities]
		}
	}

	union := make([]string, 0, len(s1)+len(s2))
	union = append(union, s1...)
	union = append(union, s2...)

	ground, names, err := e.nes.Matrix(ctx, union)
	if err != nil {
		return 0, err
	}
	if len(names) == 0 {
		return math.NaN(), nil
	}

	// Matrix returns title-cased canonical names; distributions are
	// keyed lowercase.
	v1 := make([]float64, len(names))
	v2 := make([]float64, len(names))
	for i, name := range names {
		lower := strings.ToLower(name)
		v1[i] = c1[lower]
		v2[i] = c2[lower]
	}

	normalize(v1)
	normalize(v2)

	metrics.EMDComputations.Inc()
	d := emd.Distance(v1, v2, ground)

	return penalty + (1-penalty)*d, nil
}

// rankedKeys orders a distribution's keys by weight descending, with a
// lexicographic tie-break so truncation is deterministic.
func rankedKeys(c map[string]float64) []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if c[keys[i]] != c[keys[j]] {
			return c[keys[i]] > c[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

// tailMass sums the weight truncated away beyond the top-k keys.
func tailMass(c map[string]float64, ranked []string, k int) float64 {
	if len(ranked) <= k {
		return 0
	}
	mass := 0.0
	for _, key := range ranked[k:] {
		mass += c[key]
	}
	return mass
}

// normalize rescales to unit mass; an all-zero vector is left as-is.
func normalize(v []float64) {
	total := 0.0
	for _, x := range v {
		total += x
	}
	if total > 0 {
		for i := range v {
			v[i] /= total
		}
	}
}
