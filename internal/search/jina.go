package search

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/research-agent/internal/resilience"
	"github.com/sells-group/research-agent/pkg/jina"
)

// JinaSearcher backs the Searcher interface with the Jina search API.
// Rate limits retry with linearly growing delays; when the limit is
// still in force after the last attempt, the search yields an empty
// blob instead of failing the round.
type JinaSearcher struct {
	client jina.Client
	policy resilience.BackoffPolicy
}

func NewJina(client jina.Client, maxAttempts int, baseDelay time.Duration) *JinaSearcher {
	policy := resilience.RateLimitPolicy(maxAttempts, baseDelay)
	policy.OnRetry = resilience.RetryLogger("jina", "search")
	return &JinaSearcher{client: client, policy: policy}
}

func (s *JinaSearcher) Search(ctx context.Context, query string) (string, error) {
	resp, err := resilience.DoVal(ctx, s.policy, func(ctx context.Context) (*jina.SearchResponse, error) {
		return s.client.Search(ctx, query)
	})
	if err != nil {
		if resilience.IsRateLimited(err) {
			zap.L().Warn("search: rate limit persisted, skipping query", zap.String("query", query))
			return "", nil
		}
		return "", eris.Wrap(err, "search: jina query")
	}

	var sb strings.Builder
	for _, r := range resp.Data {
		if r.Title != "" {
			sb.WriteString(r.Title)
			sb.WriteByte('\n')
		}
		if r.URL != "" {
			sb.WriteString(r.URL)
			sb.WriteByte('\n')
		}
		if r.Description != "" {
			sb.WriteString(r.Description)
			sb.WriteByte('\n')
		} else if r.Content != "" {
			sb.WriteString(r.Content)
			sb.WriteByte('\n')
		}
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}
