package search

import (
	"regexp"
	"strings"
)

var urlPattern = regexp.MustCompile(`https?://[^\s'"]+`)

// ExtractURLs pulls HTTP(S) URLs out of a search result blob in order
// of first appearance, deduplicated, with trailing punctuation that
// search snippets attach stripped off. blocked filters out known-bad
// hosts; pass nil to keep everything.
func ExtractURLs(blob string, blocked func(rawURL string) bool) []string {
	var out []string
	seen := make(map[string]struct{})

	for _, match := range urlPattern.FindAllString(blob, -1) {
		u := strings.TrimRight(match, ".,)]>")
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		if blocked != nil && blocked(u) {
			continue
		}
		out = append(out, u)
	}
	return out
}
