package similarity

import (
	"math"

	"github.com/news-similarity/engine/internal/annotate"
	"github.com/news-similarity/engine/internal/article"
)

// What returns the article's topic-probability vector, cached per
// article: lemma counts aligned to the model vocabulary, passed
// through the topic transform.
func (e *Engine) What(a *article.Article) ([]float64, error) {
	if vec, ok := a.CachedWhat(); ok {
		return vec, nil
	}

	doc, err := a.Doc.Get(annotate.Level{})
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, tok := range doc.Tokens {
		counts[tok.Lemma]++
	}

	vec, err := e.topics.Vector(counts)
	if err != nil {
		return nil, err
	}

	a.SetWhat(vec)
	return vec, nil
}

// WhatDistance is the histogram-intersection distance between topic
// vectors: 1 minus the overlapping probability mass, in [0,1] for
// proper distributions.
func (e *Engine) WhatDistance(a, b *article.Article) (float64, error) {
	va, err := e.What(a)
	if err != nil {
		return 0, err
	}
	vb, err := e.What(b)
	if err != nil {
		return 0, err
	}

	overlap := 0.0
	for i := range va {
		if i < len(vb) {
			overlap += math.Min(va[i], vb[i])
		}
	}

	return 1 - overlap, nil
}
