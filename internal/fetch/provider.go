// Package fetch turns URLs into page text for assessment. Providers
// are tried in order behind a circuit breaker; the top-level Fetcher
// never returns an error, only sentinel content the assessor will
// score as worthless, so one dead page cannot abort a research run.
package fetch

import "context"

// Result holds one fetched page.
type Result struct {
	URL     string
	Title   string
	Content string
}

// Provider fetches a single URL.
type Provider interface {
	Fetch(ctx context.Context, url string) (*Result, error)
	Name() string
	// Available reports whether the provider is currently usable
	// (circuit closed, credentials present).
	Available() bool
}
