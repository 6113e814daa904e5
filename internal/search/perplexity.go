package search

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/research-agent/pkg/perplexity"
)

// PerplexitySearcher answers queries through the Perplexity chat API.
// The cited sources are appended to the blob so URL extraction sees
// both inline links and the citation list.
type PerplexitySearcher struct {
	client perplexity.Client
}

func NewPerplexity(client perplexity.Client) *PerplexitySearcher {
	return &PerplexitySearcher{client: client}
}

func (s *PerplexitySearcher) Search(ctx context.Context, query string) (string, error) {
	resp, err := s.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Messages: []perplexity.Message{{Role: "user", Content: query}},
	})
	if err != nil {
		return "", eris.Wrap(err, "search: perplexity query")
	}

	var sb strings.Builder
	sb.WriteString(resp.Answer())
	for _, c := range resp.Citations {
		sb.WriteByte('\n')
		sb.WriteString(c)
	}
	return sb.String(), nil
}
