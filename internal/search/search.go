// Package search abstracts web search providers behind a single
// interface returning a text blob from which candidate URLs are
// extracted. Providers degrade gracefully: rate-limit exhaustion
// yields an empty result rather than an error so a research round can
// fall through to its next query.
package search

import "context"

// Searcher runs one web search and returns the raw result text.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}
