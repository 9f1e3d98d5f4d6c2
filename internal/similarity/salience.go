package similarity

import (
	"errors"
	"fmt"

	"github.com/news-similarity/engine/internal/annotate"
	"github.com/news-similarity/engine/internal/article"
)

// ErrNoContainingSentence means an entity span fell outside every
// sentence span, which breaks the annotator contract. Always fatal,
// never defaulted.
var ErrNoContainingSentence = errors.New("similarity: entity span not contained in any sentence")

// Scores returns per-sentence salience for an article, cached after
// the first computation. A sentence's score is the mean rarity weight
// of its tokens: term counts weighted by negated corpus log-probability
// and L1-normalized over the document, so rare terms dominate and
// sentence length does not bias the score.
func (e *Engine) Scores(a *article.Article) ([]article.Score, error) {
	if scores, ok := a.CachedScores(); ok {
		return scores, nil
	}

	doc, err := a.Doc.Get(annotate.Level{})
	if err != nil {
		return nil, err
	}

	weights := make(map[string]float64)
	probs := make(map[string]float64)
	for _, tok := range doc.Tokens {
		weights[tok.Lemma] += 1
		probs[tok.Lemma] = tok.Prob
	}
	for lemma := range weights {
		weights[lemma] *= -probs[lemma]
	}

	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total > 0 {
		for lemma := range weights {
			weights[lemma] /= total
		}
	}

	scores := make([]article.Score, 0, len(doc.Sentences))
	for _, sent := range doc.Sentences {
		sum := 0.0
		for i := sent.Start; i < sent.End; i++ {
			sum += weights[doc.Tokens[i].Lemma]
		}

		score := 0.0
		if n := sent.End - sent.Start; n > 0 {
			score = sum / float64(n)
		}
		scores = append(scores, article.Score{Start: sent.Start, End: sent.End, Value: score})
	}

	a.SetScores(scores)
	return scores, nil
}

// entityScore attributes a sentence's salience to an entity span. An
// uncontained span is an upstream invariant violation and propagates.
func entityScore(scores []article.Score, ent annotate.Entity) (float64, error) {
	for _, s := range scores {
		if s.Start <= ent.Start && ent.End <= s.End {
			return s.Value, nil
		}
	}

	return 0, fmt.Errorf("%w: %q [%d,%d)", ErrNoContainingSentence, ent.Text, ent.Start, ent.End)
}
