package fetch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/research-agent/internal/hosts"
)

// SkippedHostSentinel is returned for URLs whose host is on the
// denylist. The assessor scores it as worthless content.
const SkippedHostSentinel = "skipped: known problematic host"

// Source abstracts the provider chain for the Fetcher.
type Source interface {
	Fetch(ctx context.Context, url string) (*Result, error)
}

// Fetcher is the top-level page fetcher: denylist check, QPS limit,
// provider chain. Fetch never returns an error; hard failures come
// back as sentinel content and put the host on the denylist.
type Fetcher struct {
	source  Source
	tracker *hosts.Tracker
	limiter *rate.Limiter
	now     func() time.Time
}

// New creates a Fetcher. qps bounds outbound fetch rate across all
// concurrent topic runs; zero or negative disables the limit.
func New(source Source, tracker *hosts.Tracker, qps float64) *Fetcher {
	limit := rate.Inf
	if qps > 0 {
		limit = rate.Limit(qps)
	}
	return &Fetcher{
		source:  source,
		tracker: tracker,
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
	}
}

// Fetch returns the page text and the fetch duration in seconds.
// Denylisted hosts are skipped without a network call; failures mark
// the host and return an error sentinel.
func (f *Fetcher) Fetch(ctx context.Context, url string) (content string, seconds float64) {
	if f.tracker != nil && f.tracker.Blocked(url) {
		zap.L().Debug("fetch: skipping denylisted host", zap.String("url", url))
		return SkippedHostSentinel, 0
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return fmt.Sprintf("error fetching %s: %v", url, err), 0
	}

	start := f.now()
	result, err := f.source.Fetch(ctx, url)
	elapsed := f.now().Sub(start).Seconds()

	if err != nil {
		zap.L().Warn("fetch: failed", zap.String("url", url), zap.Error(err))
		if f.tracker != nil {
			f.tracker.MarkFailed(url)
		}
		return fmt.Sprintf("error fetching %s: %v", url, err), elapsed
	}

	return result.Content, elapsed
}
