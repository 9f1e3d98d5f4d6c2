package models

import "time"

// ReferenceArticle is an encyclopedia document used as a proxy for
// comparing named entities. Immutable once fetched; Histogram is
// computed lazily and persisted on first use (nil until then).
type ReferenceArticle struct {
	ID        int64
	Title     string
	Content   string
	Histogram map[string]float64
	FetchedAt time.Time
}

// Comparison is one pairwise article comparison. Nil component values
// encode an undefined comparison along that axis.
type Comparison struct {
	ID        string
	FeedA     string
	IndexA    int
	FeedB     string
	IndexB    int
	What      *float64
	Who       *float64
	Where     *float64
	Distance  *float64
	LatencyMS int
	CreatedAt time.Time
}
