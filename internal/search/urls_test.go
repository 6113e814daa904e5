package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractURLs(t *testing.T) {
	blob := `Apple stock coverage:
https://finance.yahoo.com/quote/AAPL
See also (https://www.reuters.com/markets/apple).
Quoted: "https://www.marketwatch.com/investing/stock/aapl"
Trailing period https://example.com/page.
`
	got := ExtractURLs(blob, nil)
	assert.Equal(t, []string{
		"https://finance.yahoo.com/quote/AAPL",
		"https://www.reuters.com/markets/apple",
		"https://www.marketwatch.com/investing/stock/aapl",
		"https://example.com/page",
	}, got)
}

func TestExtractURLsDeduplicates(t *testing.T) {
	blob := strings.Repeat("https://example.com/a\n", 3) + "https://example.com/b\n"
	got := ExtractURLs(blob, nil)
	assert.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, got)
}

func TestExtractURLsFirstSeenOrder(t *testing.T) {
	blob := "https://b.example/x https://a.example/y https://b.example/x"
	got := ExtractURLs(blob, nil)
	assert.Equal(t, []string{"https://b.example/x", "https://a.example/y"}, got)
}

func TestExtractURLsBlockedFilter(t *testing.T) {
	blob := "https://good.example/a https://badsite.example/b https://good.example/c"
	got := ExtractURLs(blob, func(rawURL string) bool {
		return strings.Contains(rawURL, "badsite.example")
	})
	assert.Equal(t, []string{"https://good.example/a", "https://good.example/c"}, got)
}

func TestExtractURLsSchemes(t *testing.T) {
	blob := "http://plain.example/a ftp://ignored.example/b https://secure.example/c"
	got := ExtractURLs(blob, nil)
	assert.Equal(t, []string{"http://plain.example/a", "https://secure.example/c"}, got)
}

func TestExtractURLsEmpty(t *testing.T) {
	assert.Empty(t, ExtractURLs("", nil))
	assert.Empty(t, ExtractURLs("no links in this text", nil))
}
