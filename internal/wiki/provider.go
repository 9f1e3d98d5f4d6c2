// Package wiki is the encyclopedia lookup layer: it resolves entity
// names to ranked reference articles, fetches article content, builds
// per-article entity histograms and memoizes article-pair similarity,
// with persistent caching and bounded retry on transient failures.
package wiki

import (
	"context"
	"errors"
)

// Page is a raw encyclopedia document as returned by a provider.
type Page struct {
	ID      int64
	Title   string
	Content string
}

// Provider performs live encyclopedia calls. Implementations report
// resolvable absences through the sentinel errors below; any other
// error is treated as transient and retried by the client.
type Provider interface {
	Search(ctx context.Context, query string, limit int) ([]string, error)
	FetchByTitle(ctx context.Context, title string) (*Page, error)
	FetchByID(ctx context.Context, id int64) (*Page, error)
}

var (
	// ErrInvalidArgument marks a malformed call; never retried.
	ErrInvalidArgument = errors.New("wiki: exactly one of id or title must be given")

	// ErrNotFound: no page for this title or id.
	ErrNotFound = errors.New("wiki: page not found")

	// ErrDisambiguation: the title names a disambiguation page. Not
	// persisted as a negative entry, since a later lookup may resolve
	// differently.
	ErrDisambiguation = errors.New("wiki: disambiguation page")

	// ErrMalformed: the provider response could not be decoded.
	ErrMalformed = errors.New("wiki: malformed response")
)

// IsResolvableAbsence reports whether err is a terminal "no article"
// outcome rather than a transient failure.
func IsResolvableAbsence(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrDisambiguation) ||
		errors.Is(err, ErrMalformed)
}
