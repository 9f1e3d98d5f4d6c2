// Package similarity combines three signals into a pairwise article
// distance: topical overlap ("what"), shared people and organizations
// ("who") and shared places ("where"). The who/where components rest
// on sentence salience, encyclopedia-backed entity similarity and an
// earth mover's distance aggregation.
package similarity

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/news-similarity/engine/internal/annotate"
	"github.com/news-similarity/engine/internal/article"
	"github.com/news-similarity/engine/internal/nes"
	"github.com/news-similarity/engine/internal/topics"
	"github.com/news-similarity/engine/pkg/logger"
)

// whoCats and whereCats are the entity categories behind the two
// named-entity signals.
var (
	whoCats   = map[string]bool{"PERSON": true, "ORG": true}
	whereCats = map[string]bool{"FAC": true, "GPE": true, "LOC": true}
)

// Weights is the fixed, empirically fitted linear combination of the
// three component distances.
type Weights struct {
	What  float64
	Who   float64
	Where float64
}

// DefaultWeights sums to ~1.0; that is a property of the fit, not a
// constraint.
func DefaultWeights() Weights {
	return Weights{
		What:  0.3657526,
		Who:   0.3274783,
		Where: 0.3067691,
	}
}

// Engine holds the injected collaborators shared by all comparisons.
// Not safe for concurrent use on overlapping articles.
type Engine struct {
	annotator   annotate.Annotator
	topics      *topics.Model
	nes         *nes.NES
	maxEntities int
	weights     Weights
}

// NewEngine wires an engine. maxEntities caps each entity distribution
// before the EMD step; <= 0 disables truncation.
func NewEngine(annotator annotate.Annotator, model *topics.Model, n *nes.NES, maxEntities int, weights Weights) *Engine {
	return &Engine{
		annotator:   annotator,
		topics:      model,
		nes:         n,
		maxEntities: maxEntities,
		weights:     weights,
	}
}

// NewArticle builds an article wired to this engine's annotator.
func (e *Engine) NewArticle(feed string, index int, content string) *article.Article {
	return article.New(e.annotator, feed, index, content)
}

// Result carries the component distances and their weighted
// combination. Any component may be NaN, meaning that axis is
// undefined for the pair; the combination is then NaN as well.
type Result struct {
	What     float64
	Who      float64
	Where    float64
	Distance float64
}

// Distance compares two articles. NaN results are valid outputs
// ("incomparable"), not errors; errors mean an upstream contract
// failure or cancellation.
func (e *Engine) Distance(ctx context.Context, a, b *article.Article) (Result, error) {
	what, err := e.WhatDistance(a, b)
	if err != nil {
		return Result{}, err
	}

	who, err := e.WhoDistance(ctx, a, b)
	if err != nil {
		return Result{}, err
	}

	where, err := e.WhereDistance(ctx, a, b)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		What:  what,
		Who:   who,
		Where: where,
		Distance: e.weights.What*what +
			e.weights.Who*who +
			e.weights.Where*where,
	}

	logger.Debug("Article distance computed",
		zap.String("feed_a", a.Feed),
		zap.Int("index_a", a.Index),
		zap.String("feed_b", b.Feed),
		zap.Int("index_b", b.Index),
		zap.Float64("distance", res.Distance),
	)
	return res, nil
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	return math.Max(0, math.Min(1, v))
}
