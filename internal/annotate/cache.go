package annotate

import "fmt"

// Cache memoizes annotation passes over a single article's text at
// increasing richness levels. A cached document is reused for any
// request it covers; a newly computed document evicts every cached
// entry whose level it dominates, so only non-dominated levels are
// kept. Not safe for concurrent use.
type Cache struct {
	annotator Annotator
	content   func() (string, error)

	docs     map[Level]*Doc
	selected *Doc
}

// NewCache wraps an article's content behind an annotation cache.
// content is called lazily on the first miss.
func NewCache(annotator Annotator, content func() (string, error)) *Cache {
	return &Cache{
		annotator: annotator,
		content:   content,
		docs:      make(map[Level]*Doc),
	}
}

// Get returns a document annotated at least at the requested level,
// computing and caching one if no cached entry covers it. The returned
// document becomes the current selection.
func (c *Cache) Get(level Level) (*Doc, error) {
	for cached, doc := range c.docs {
		if cached.Covers(level) {
			c.selected = doc
			return doc, nil
		}
	}

	text, err := c.content()
	if err != nil {
		return nil, fmt.Errorf("failed to load article content: %w", err)
	}

	doc, err := c.annotator.Annotate(text, level)
	if err != nil {
		return nil, fmt.Errorf("annotation failed: %w", err)
	}

	// The new pass supersedes every cheaper one it dominates.
	for cached := range c.docs {
		if level.Covers(cached) {
			delete(c.docs, cached)
		}
	}

	c.docs[level] = doc
	c.selected = doc
	return doc, nil
}

// Selected returns the most recently computed or matched document, or
// nil if Get has never succeeded.
func (c *Cache) Selected() *Doc {
	return c.selected
}

// Len reports how many non-dominated levels are currently cached.
func (c *Cache) Len() int {
	return len(c.docs)
}

// Reset drops all cached documents and the selection, releasing the
// parsed structures while keeping the article itself alive.
func (c *Cache) Reset() {
	c.docs = make(map[Level]*Doc)
	c.selected = nil
}
