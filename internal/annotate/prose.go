package annotate

import (
	"fmt"
	"strings"

	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/news-similarity/engine/pkg/logger"
)

// ProseAnnotator implements Annotator on top of jdkato/prose. Each
// sentence is tokenized independently so sentence spans are exact and
// entity spans are sentence-contained by construction. prose has no
// lemmatizer; the lowercased surface form stands in for the lemma.
type ProseAnnotator struct {
	freqs Frequencies
}

// NewProseAnnotator builds a live annotator. freqs may be nil, in
// which case every token gets the out-of-vocabulary probability.
func NewProseAnnotator(freqs Frequencies) *ProseAnnotator {
	if freqs == nil {
		freqs = make(Frequencies)
	}
	return &ProseAnnotator{freqs: freqs}
}

func (p *ProseAnnotator) Annotate(text string, level Level) (*Doc, error) {
	segmented, err := prose.NewDocument(text,
		prose.WithTokenization(false),
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return nil, fmt.Errorf("sentence segmentation failed: %w", err)
	}

	out := &Doc{Level: level}

	for _, sent := range segmented.Sentences() {
		sentDoc, err := prose.NewDocument(sent.Text,
			prose.WithSegmentation(false),
			prose.WithTagging(level.Syntax || level.Entities),
			prose.WithExtraction(level.Entities),
		)
		if err != nil {
			logger.Warn("Failed to annotate sentence, skipping",
				zap.Int("sentence", len(out.Sentences)),
				zap.Error(err),
			)
			continue
		}

		start := len(out.Tokens)
		tokens := sentDoc.Tokens()
		for _, tok := range tokens {
			lemma := strings.ToLower(tok.Text)
			out.Tokens = append(out.Tokens, Token{
				Lemma: lemma,
				Prob:  p.freqs.Lookup(lemma),
			})
		}
		end := len(out.Tokens)

		if end == start {
			continue
		}
		out.Sentences = append(out.Sentences, Span{Start: start, End: end})

		if level.Entities {
			for _, ent := range sentDoc.Entities() {
				s, e, ok := matchEntity(tokens, ent.Text)
				if !ok {
					continue
				}
				out.Entities = append(out.Entities, Entity{
					Start: start + s,
					End:   start + e,
					Label: ent.Label,
					Text:  ent.Text,
				})
			}
		}
	}

	return out, nil
}

// matchEntity locates the entity's token sequence within a sentence's
// tokens, case-insensitively, returning sentence-relative bounds.
func matchEntity(tokens []prose.Token, entity string) (int, int, bool) {
	words := strings.Fields(strings.ToLower(entity))
	if len(words) == 0 {
		return 0, 0, false
	}

	for i := 0; i+len(words) <= len(tokens); i++ {
		matched := true
		for k, w := range words {
			if strings.ToLower(tokens[i+k].Text) != w {
				matched = false
				break
			}
		}
		if matched {
			return i, i + len(words), true
		}
	}

	return 0, 0, false
}
