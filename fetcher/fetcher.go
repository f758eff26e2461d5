// Package fetcher loads catalogue pages and returns their rendered HTML.
package fetcher

import "context"

// Fetcher abstracts page fetching strategies.
type Fetcher interface {
	// Fetch retrieves the HTML for url. waitFor is a CSS selector the page
	// must render before the HTML is captured; fetchers that do not execute
	// JavaScript ignore it.
	Fetch(ctx context.Context, url, waitFor string) (string, error)

	// Close releases the fetcher's resources (browser process, transport).
	Close() error
}
