package similarity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/news-similarity/engine/internal/annotate"
	"github.com/news-similarity/engine/internal/nes"
	"github.com/news-similarity/engine/internal/topics"
)

// scriptedAnnotator returns a pre-built document per article text.
type scriptedAnnotator struct {
	docs map[string]*annotate.Doc
}

func (s *scriptedAnnotator) Annotate(text string, level annotate.Level) (*annotate.Doc, error) {
	doc, ok := s.docs[text]
	if !ok {
		return nil, fmt.Errorf("no scripted doc for %q", text)
	}
	return doc, nil
}

// stubResolver maps entity names to reference ids and serves raw
// article-pair similarities.
type stubResolver struct {
	refs map[string][]int64
	sims map[[2]int64]float64
}

func (f *stubResolver) ResolveEntity(ctx context.Context, name string) ([]int64, error) {
	return f.refs[name], nil
}

func (f *stubResolver) ArticleSimilarity(ctx context.Context, id1, id2 int64) (float64, error) {
	if id1 == id2 {
		return 1, nil
	}
	if sim, ok := f.sims[[2]int64{id1, id2}]; ok {
		return sim, nil
	}
	return f.sims[[2]int64{id2, id1}], nil
}

func tokens(probs map[string]float64, lemmas ...string) []annotate.Token {
	out := make([]annotate.Token, len(lemmas))
	for i, l := range lemmas {
		p, ok := probs[l]
		if !ok {
			p = -5
		}
		out[i] = annotate.Token{Lemma: l, Prob: p}
	}
	return out
}

func newTestEngine(t *testing.T, docs map[string]*annotate.Doc, vocab []string, r nes.Resolver) *Engine {
	t.Helper()

	// Identity projection: one topic per vocabulary term.
	data := make([]float64, len(vocab)*len(vocab))
	for i := range vocab {
		data[i*len(vocab)+i] = 1
	}
	model := topics.New(vocab, topics.NewMatrixTransformer(len(vocab), len(vocab), data))

	n, err := nes.New(r, 16)
	require.NoError(t, err)

	return NewEngine(&scriptedAnnotator{docs: docs}, model, n, 10, DefaultWeights())
}

func TestScores(t *testing.T) {
	// Two one-token sentences; the rarer lemma carries more weight.
	docs := map[string]*annotate.Doc{
		"text": {
			Tokens:    tokens(map[string]float64{"common": -1, "rare": -3}, "common", "rare"),
			Sentences: []annotate.Span{{Start: 0, End: 1}, {Start: 1, End: 2}},
		},
	}
	e := newTestEngine(t, docs, []string{"common", "rare"}, &stubResolver{})
	a := e.NewArticle("feed", 0, "text")

	scores, err := e.Scores(a)
	require.NoError(t, err)
	require.Len(t, scores, 2)

	assert.InDelta(t, 0.25, scores[0].Value, 1e-9)
	assert.InDelta(t, 0.75, scores[1].Value, 1e-9)

	// Second call hits the article cache.
	again, err := e.Scores(a)
	require.NoError(t, err)
	assert.Equal(t, scores, again)
}

func TestWhoDistributionAccumulatesSalience(t *testing.T) {
	docs := map[string]*annotate.Doc{
		"text": {
			Tokens:    tokens(nil, "smith", "met", "jones", "smith", "returned"),
			Sentences: []annotate.Span{{Start: 0, End: 3}, {Start: 3, End: 5}},
			Entities: []annotate.Entity{
				{Start: 0, End: 1, Label: "PERSON", Text: "Smith"},
				{Start: 2, End: 3, Label: "PERSON", Text: "Jones"},
				{Start: 3, End: 4, Label: "PERSON", Text: "Smith"},
			},
		},
	}
	e := newTestEngine(t, docs, []string{"smith"}, &stubResolver{})
	a := e.NewArticle("feed", 0, "text")

	who, err := e.Who(a)
	require.NoError(t, err)
	require.Len(t, who, 2)

	// Smith appears in both sentences and accumulates both scores;
	// co-located Jones inherits its full sentence score.
	total := 0.0
	for _, v := range who {
		total += v
	}
	assert.InDelta(t, 1, total, 1e-9)
	assert.Greater(t, who["smith"], who["jones"])
}

func TestWhoIgnoresOtherCategories(t *testing.T) {
	docs := map[string]*annotate.Doc{
		"text": {
			Tokens:    tokens(nil, "smith", "visited", "springfield"),
			Sentences: []annotate.Span{{Start: 0, End: 3}},
			Entities: []annotate.Entity{
				{Start: 0, End: 1, Label: "PERSON", Text: "Smith"},
				{Start: 2, End: 3, Label: "GPE", Text: "Springfield"},
			},
		},
	}
	e := newTestEngine(t, docs, []string{"smith"}, &stubResolver{})
	a := e.NewArticle("feed", 0, "text")

	who, err := e.Who(a)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"smith": 1}, who)

	where, err := e.Where(a)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"springfield": 1}, where)
}

func TestEntityOutsideSentenceFails(t *testing.T) {
	docs := map[string]*annotate.Doc{
		"text": {
			Tokens:    tokens(nil, "smith"),
			Sentences: []annotate.Span{{Start: 0, End: 1}},
			Entities: []annotate.Entity{
				{Start: 5, End: 6, Label: "PERSON", Text: "Ghost"},
			},
		},
	}
	e := newTestEngine(t, docs, []string{"smith"}, &stubResolver{})
	a := e.NewArticle("feed", 0, "text")

	_, err := e.Who(a)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoContainingSentence))
}

func TestWhatDistance(t *testing.T) {
	docs := map[string]*annotate.Doc{
		"about alice": {
			Tokens:    tokens(nil, "alice"),
			Sentences: []annotate.Span{{Start: 0, End: 1}},
		},
		"about bob": {
			Tokens:    tokens(nil, "bob"),
			Sentences: []annotate.Span{{Start: 0, End: 1}},
		},
	}
	e := newTestEngine(t, docs, []string{"alice", "bob"}, &stubResolver{})

	a := e.NewArticle("feed", 0, "about alice")
	b := e.NewArticle("feed", 1, "about bob")

	// Disjoint topic mass: no overlap, maximal distance.
	d, err := e.WhatDistance(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 1, d, 1e-9)

	// An article against itself overlaps fully.
	a2 := e.NewArticle("feed", 2, "about alice")
	d, err = e.WhatDistance(a, a2)
	require.NoError(t, err)
	assert.InDelta(t, 0, d, 1e-9)
}

func personDoc(lemma, entity string) *annotate.Doc {
	return &annotate.Doc{
		Tokens:    tokens(nil, lemma, "spoke"),
		Sentences: []annotate.Span{{Start: 0, End: 2}},
		Entities: []annotate.Entity{
			{Start: 0, End: 1, Label: "PERSON", Text: entity},
		},
	}
}

func TestWhoDistanceIdenticalEntities(t *testing.T) {
	docs := map[string]*annotate.Doc{
		"a": personDoc("smith", "Smith"),
		"b": personDoc("smith", "Smith"),
	}
	r := &stubResolver{refs: map[string][]int64{"smith": {1}}}
	e := newTestEngine(t, docs, []string{"smith", "spoke"}, r)

	d, err := e.WhoDistance(context.Background(), e.NewArticle("f", 0, "a"), e.NewArticle("f", 1, "b"))
	require.NoError(t, err)
	assert.InDelta(t, 0, d, 1e-9)
}

func TestWhoDistanceDisjointEntities(t *testing.T) {
	docs := map[string]*annotate.Doc{
		"a": personDoc("alice", "Alice"),
		"b": personDoc("bob", "Bob"),
	}
	r := &stubResolver{
		refs: map[string][]int64{"alice": {1}, "bob": {2}},
		sims: map[[2]int64]float64{{1, 2}: 0},
	}
	e := newTestEngine(t, docs, []string{"alice", "bob", "spoke"}, r)

	d, err := e.WhoDistance(context.Background(), e.NewArticle("f", 0, "a"), e.NewArticle("f", 1, "b"))
	require.NoError(t, err)
	assert.InDelta(t, 1, d, 1e-9)
}

func TestWhoDistanceUndefinedWhenEmpty(t *testing.T) {
	docs := map[string]*annotate.Doc{
		"a": personDoc("alice", "Alice"),
		"places only": {
			Tokens:    tokens(nil, "springfield"),
			Sentences: []annotate.Span{{Start: 0, End: 1}},
			Entities: []annotate.Entity{
				{Start: 0, End: 1, Label: "GPE", Text: "Springfield"},
			},
		},
	}
	r := &stubResolver{refs: map[string][]int64{"alice": {1}}}
	e := newTestEngine(t, docs, []string{"alice", "springfield"}, r)

	d, err := e.WhoDistance(context.Background(), e.NewArticle("f", 0, "a"), e.NewArticle("f", 1, "places only"))
	require.NoError(t, err)
	assert.True(t, math.IsNaN(d))
}

func TestSetDistanceTruncationPenalty(t *testing.T) {
	r := &stubResolver{refs: map[string][]int64{"a": {1}, "b": {2}}}
	e := newTestEngine(t, nil, []string{"unused"}, r)
	e.maxEntities = 1

	// One side loses 0.2 of its mass to truncation; the survivors
	// match exactly, so the blend is the bare penalty.
	d, err := e.setDistance(context.Background(),
		map[string]float64{"a": 0.8, "b": 0.2},
		map[string]float64{"a": 1.0},
	)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, d, 1e-9)
}

func TestRankedKeysDeterministicTieBreak(t *testing.T) {
	ranked := rankedKeys(map[string]float64{"b": 0.5, "a": 0.5, "c": 0.7})
	assert.Equal(t, []string{"c", "a", "b"}, ranked)
}

func TestDistanceCombinesComponents(t *testing.T) {
	docs := map[string]*annotate.Doc{
		"a": {
			Tokens:    tokens(nil, "smith", "visited", "springfield"),
			Sentences: []annotate.Span{{Start: 0, End: 3}},
			Entities: []annotate.Entity{
				{Start: 0, End: 1, Label: "PERSON", Text: "Smith"},
				{Start: 2, End: 3, Label: "GPE", Text: "Springfield"},
			},
		},
		"b": {
			Tokens:    tokens(nil, "smith", "visited", "springfield"),
			Sentences: []annotate.Span{{Start: 0, End: 3}},
			Entities: []annotate.Entity{
				{Start: 0, End: 1, Label: "PERSON", Text: "Smith"},
				{Start: 2, End: 3, Label: "GPE", Text: "Springfield"},
			},
		},
	}
	r := &stubResolver{refs: map[string][]int64{"smith": {1}, "springfield": {2}}}
	e := newTestEngine(t, docs, []string{"smith", "visited", "springfield"}, r)

	res, err := e.Distance(context.Background(), e.NewArticle("f", 0, "a"), e.NewArticle("f", 1, "b"))
	require.NoError(t, err)

	assert.InDelta(t, 0, res.What, 1e-9)
	assert.InDelta(t, 0, res.Who, 1e-9)
	assert.InDelta(t, 0, res.Where, 1e-9)
	assert.InDelta(t, 0, res.Distance, 1e-9)
}

func TestDistanceUndefinedComponentPropagates(t *testing.T) {
	docs := map[string]*annotate.Doc{
		"a": personDoc("alice", "Alice"),
		"b": personDoc("bob", "Bob"),
	}
	r := &stubResolver{
		refs: map[string][]int64{"alice": {1}, "bob": {2}},
		sims: map[[2]int64]float64{{1, 2}: 0},
	}
	e := newTestEngine(t, docs, []string{"alice", "bob", "spoke"}, r)

	res, err := e.Distance(context.Background(), e.NewArticle("f", 0, "a"), e.NewArticle("f", 1, "b"))
	require.NoError(t, err)

	// Neither article names a place, so where and the combination are
	// undefined; the defined components keep their values.
	assert.True(t, math.IsNaN(res.Where))
	assert.True(t, math.IsNaN(res.Distance))
	assert.False(t, math.IsNaN(res.What))
	assert.False(t, math.IsNaN(res.Who))
}

func TestDistanceDeterministic(t *testing.T) {
	docs := map[string]*annotate.Doc{
		"a": {
			Tokens:    tokens(map[string]float64{"smith": -9}, "smith", "met", "jones", "in", "springfield"),
			Sentences: []annotate.Span{{Start: 0, End: 5}},
			Entities: []annotate.Entity{
				{Start: 0, End: 1, Label: "PERSON", Text: "Smith"},
				{Start: 2, End: 3, Label: "PERSON", Text: "Jones"},
				{Start: 4, End: 5, Label: "GPE", Text: "Springfield"},
			},
		},
		"b": {
			Tokens:    tokens(nil, "jones", "left", "springfield"),
			Sentences: []annotate.Span{{Start: 0, End: 3}},
			Entities: []annotate.Entity{
				{Start: 0, End: 1, Label: "PERSON", Text: "Jones"},
				{Start: 2, End: 3, Label: "GPE", Text: "Springfield"},
			},
		},
	}
	newResolver := func() *stubResolver {
		return &stubResolver{
			refs: map[string][]int64{
				"smith": {1}, "jones": {2}, "springfield": {3},
			},
			sims: map[[2]int64]float64{
				{1, 2}: 0.05,
				{1, 3}: 0,
				{2, 3}: 0,
			},
		}
	}
	vocab := []string{"smith", "met", "jones", "in", "springfield", "left"}

	// Fresh engines and articles both times: the result must be
	// bit-identical regardless of cache state.
	e1 := newTestEngine(t, docs, vocab, newResolver())
	r1, err := e1.Distance(context.Background(), e1.NewArticle("f", 0, "a"), e1.NewArticle("f", 1, "b"))
	require.NoError(t, err)

	e2 := newTestEngine(t, docs, vocab, newResolver())
	r2, err := e2.Distance(context.Background(), e2.NewArticle("f", 0, "a"), e2.NewArticle("f", 1, "b"))
	require.NoError(t, err)

	assert.Equal(t, r1, r2)

	// Warm repeat on the same engine matches too.
	r3, err := e1.Distance(context.Background(), e1.NewArticle("f", 2, "a"), e1.NewArticle("f", 3, "b"))
	require.NoError(t, err)
	assert.Equal(t, r1, r3)
}

func TestDistanceSymmetric(t *testing.T) {
	docs := map[string]*annotate.Doc{
		"a": personDoc("alice", "Alice"),
		"b": personDoc("bob", "Bob"),
	}
	r := &stubResolver{
		refs: map[string][]int64{"alice": {1}, "bob": {2}},
		sims: map[[2]int64]float64{{1, 2}: 0.5},
	}
	e := newTestEngine(t, docs, []string{"alice", "bob", "spoke"}, r)

	a := e.NewArticle("f", 0, "a")
	b := e.NewArticle("f", 1, "b")

	ab, err := e.WhoDistance(context.Background(), a, b)
	require.NoError(t, err)
	ba, err := e.WhoDistance(context.Background(), b, a)
	require.NoError(t, err)

	assert.Equal(t, ab, ba)
}
