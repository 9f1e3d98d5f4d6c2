package similarity

import (
	"strings"

	"github.com/news-similarity/engine/internal/annotate"
	"github.com/news-similarity/engine/internal/article"
)

// Who returns the article's person/organization distribution, cached
// per article.
func (e *Engine) Who(a *article.Article) (map[string]float64, error) {
	if dist, ok := a.CachedWho(); ok {
		return dist, nil
	}

	dist, err := e.entityDistribution(a, whoCats)
	if err != nil {
		return nil, err
	}

	a.SetWho(dist)
	return dist, nil
}

// Where returns the article's place distribution, cached per article.
func (e *Engine) Where(a *article.Article) (map[string]float64, error) {
	if dist, ok := a.CachedWhere(); ok {
		return dist, nil
	}

	dist, err := e.entityDistribution(a, whereCats)
	if err != nil {
		return nil, err
	}

	a.SetWhere(dist)
	return dist, nil
}

// entityDistribution accumulates sentence salience per lowercase
// entity surface form and normalizes to a probability distribution.
// Every occurrence inherits its sentence's raw score, co-located
// entities included; the fitted distance weights depend on that, so it
// is preserved as-is. No qualifying entities yields an empty
// distribution, not an error.
func (e *Engine) entityDistribution(a *article.Article, cats map[string]bool) (map[string]float64, error) {
	scores, err := e.Scores(a)
	if err != nil {
		return nil, err
	}

	doc, err := a.Doc.Get(annotate.Level{Syntax: true, Entities: true})
	if err != nil {
		return nil, err
	}

	dist := make(map[string]float64)
	for _, ent := range doc.Entities {
		if !cats[ent.Label] {
			continue
		}

		score, err := entityScore(scores, ent)
		if err != nil {
			return nil, err
		}
		dist[strings.ToLower(ent.Text)] += score
	}

	total := 0.0
	for _, v := range dist {
		total += v
	}
	if total > 0 {
		for k := range dist {
			dist[k] /= total
		}
	} else {
		dist = map[string]float64{}
	}

	return dist, nil
}
