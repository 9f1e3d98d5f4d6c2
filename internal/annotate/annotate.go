// Package annotate defines the NLP annotation contract consumed by the
// similarity engine: tokenized documents with lemmas and corpus
// probabilities, sentence spans and named-entity spans, produced at an
// explicit richness level.
package annotate

// Level selects how much analysis an annotation pass performs.
// Lemmatized tokens are always produced; syntax (tagging/parsing) and
// entity recognition are opt-in. Levels form a partial order: a pass
// that computed more fields satisfies any request for fewer.
type Level struct {
	Syntax   bool
	Entities bool
}

// Covers reports whether a document annotated at level l satisfies a
// request for level o.
func (l Level) Covers(o Level) bool {
	return (l.Syntax || !o.Syntax) && (l.Entities || !o.Entities)
}

// Token is a single token with its lowercased lemma and the
// corpus-wide log-probability of the underlying word form.
type Token struct {
	Lemma string
	Prob  float64
}

// Span is a half-open [Start, End) range of token indices.
type Span struct {
	Start int
	End   int
}

// Entity is a named-entity span with its category label and the
// surface text as it appeared in the document.
type Entity struct {
	Start int
	End   int
	Label string
	Text  string
}

// Doc is one annotation pass over an article's text.
type Doc struct {
	Tokens    []Token
	Sentences []Span
	Entities  []Entity
	Level     Level
}

// Annotator produces annotated documents. Implementations must fill
// Entities only when level.Entities is set, and must guarantee that
// every entity span is contained in exactly one sentence span.
type Annotator interface {
	Annotate(text string, level Level) (*Doc, error)
}
