// Package article holds the read-only article view borrowed from the
// ingestion system, together with the per-article derived caches owned
// by the similarity engine.
package article

import (
	"github.com/news-similarity/engine/internal/annotate"
)

// Score is one sentence's salience: token-index bounds plus the mean
// per-token rarity weight.
type Score struct {
	Start int
	End   int
	Value float64
}

// Article is a single news item. Feed and Index identify it within the
// ingestion system; Content is the immutable filtered text. All other
// fields are derived caches and are invalidated together.
type Article struct {
	Feed    string
	Index   int
	Content string

	// Doc caches annotation passes over Content.
	Doc *annotate.Cache

	what    []float64
	whatOK  bool
	scores  []Score
	scoresOK bool
	who     map[string]float64
	whoOK   bool
	where   map[string]float64
	whereOK bool
}

// New builds an article wired to the given annotator.
func New(annotator annotate.Annotator, feed string, index int, content string) *Article {
	a := &Article{
		Feed:    feed,
		Index:   index,
		Content: content,
	}
	a.Doc = annotate.NewCache(annotator, func() (string, error) {
		return a.Content, nil
	})
	return a
}

func (a *Article) CachedWhat() ([]float64, bool) { return a.what, a.whatOK }

func (a *Article) SetWhat(v []float64) {
	a.what = v
	a.whatOK = true
}

func (a *Article) CachedScores() ([]Score, bool) { return a.scores, a.scoresOK }

func (a *Article) SetScores(s []Score) {
	a.scores = s
	a.scoresOK = true
}

func (a *Article) CachedWho() (map[string]float64, bool) { return a.who, a.whoOK }

func (a *Article) SetWho(d map[string]float64) {
	a.who = d
	a.whoOK = true
}

func (a *Article) CachedWhere() (map[string]float64, bool) { return a.where, a.whereOK }

func (a *Article) SetWhere(d map[string]float64) {
	a.where = d
	a.whereOK = true
}

// Release drops every derived cache, including parsed annotation
// structures, keeping only the raw article.
func (a *Article) Release() {
	a.Doc.Reset()
	a.what = nil
	a.whatOK = false
	a.scores = nil
	a.scoresOK = false
	a.who = nil
	a.whoOK = false
	a.where = nil
	a.whereOK = false
}
