package search

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/research-agent/pkg/jina"
	"github.com/sells-group/research-agent/pkg/perplexity"
)

type fakeJina struct {
	responses []*jina.SearchResponse
	errs      []error
	calls     int
	queries   []string
}

func (f *fakeJina) Read(context.Context, string) (*jina.ReadResponse, error) {
	panic("not used")
}

func (f *fakeJina) Search(_ context.Context, query string, _ ...jina.SearchOption) (*jina.SearchResponse, error) {
	i := f.calls
	f.calls++
	f.queries = append(f.queries, query)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return &jina.SearchResponse{Code: 200}, nil
}

func TestJinaSearchBlob(t *testing.T) {
	client := &fakeJina{responses: []*jina.SearchResponse{{
		Code: 200,
		Data: []jina.SearchResult{
			{Title: "AAPL quote", URL: "https://finance.yahoo.com/quote/AAPL", Description: "live price"},
			{Title: "Apple news", URL: "https://www.reuters.com/apple", Content: "full article text"},
		},
	}}}

	s := NewJina(client, 3, time.Millisecond)
	blob, err := s.Search(context.Background(), "apple stock price")

	require.NoError(t, err)
	assert.Contains(t, blob, "AAPL quote")
	assert.Contains(t, blob, "https://finance.yahoo.com/quote/AAPL")
	assert.Contains(t, blob, "live price")
	assert.Contains(t, blob, "full article text")
	assert.Equal(t, []string{"apple stock price"}, client.queries)
}

func TestJinaSearchRetriesRateLimit(t *testing.T) {
	rateLimited := &jina.APIError{StatusCode: http.StatusTooManyRequests}
	client := &fakeJina{
		errs: []error{rateLimited, nil},
		responses: []*jina.SearchResponse{nil, {
			Code: 200,
			Data: []jina.SearchResult{{URL: "https://example.com/a"}},
		}},
	}

	s := NewJina(client, 3, time.Millisecond)
	blob, err := s.Search(context.Background(), "query")

	require.NoError(t, err)
	assert.Contains(t, blob, "https://example.com/a")
	assert.Equal(t, 2, client.calls)
}

func TestJinaSearchRateLimitExhaustionIsEmpty(t *testing.T) {
	rateLimited := &jina.APIError{StatusCode: http.StatusTooManyRequests}
	client := &fakeJina{errs: []error{rateLimited, rateLimited, rateLimited}}

	s := NewJina(client, 3, time.Millisecond)
	blob, err := s.Search(context.Background(), "query")

	require.NoError(t, err)
	assert.Empty(t, blob)
	assert.Equal(t, 3, client.calls)
}

func TestJinaSearchHardFailure(t *testing.T) {
	client := &fakeJina{errs: []error{&jina.APIError{StatusCode: http.StatusUnauthorized}}}

	s := NewJina(client, 3, time.Millisecond)
	_, err := s.Search(context.Background(), "query")

	require.Error(t, err)
	assert.Equal(t, 1, client.calls)
}

type fakePerplexity struct {
	resp *perplexity.ChatCompletionResponse
	err  error
}

func (f *fakePerplexity) ChatCompletion(context.Context, perplexity.ChatCompletionRequest) (*perplexity.ChatCompletionResponse, error) {
	return f.resp, f.err
}

func TestPerplexitySearchBlob(t *testing.T) {
	client := &fakePerplexity{resp: &perplexity.ChatCompletionResponse{
		Choices: []perplexity.Choice{{Message: perplexity.Message{
			Role:    "assistant",
			Content: "Apple closed at $201.50 according to https://finance.yahoo.com/quote/AAPL.",
		}}},
		Citations: []string{"https://www.reuters.com/markets/apple"},
	}}

	s := NewPerplexity(client)
	blob, err := s.Search(context.Background(), "apple stock price")

	require.NoError(t, err)
	assert.Contains(t, blob, "$201.50")
	assert.Contains(t, blob, "https://www.reuters.com/markets/apple")

	urls := ExtractURLs(blob, nil)
	assert.Equal(t, []string{
		"https://finance.yahoo.com/quote/AAPL",
		"https://www.reuters.com/markets/apple",
	}, urls)
}

func TestPerplexitySearchError(t *testing.T) {
	s := NewPerplexity(&fakePerplexity{err: assert.AnError})
	_, err := s.Search(context.Background(), "query")
	assert.Error(t, err)
}
