package fetch

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Chain tries providers in priority order, returning the first success.
type Chain struct {
	providers []Provider
}

func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

func (c *Chain) Fetch(ctx context.Context, url string) (*Result, error) {
	var lastErr error
	for _, p := range c.providers {
		if !p.Available() {
			continue
		}
		result, err := p.Fetch(ctx, url)
		if err == nil && result != nil {
			return result, nil
		}
		if err != nil {
			zap.L().Debug("fetch: provider failed, trying next",
				zap.String("provider", p.Name()),
				zap.String("url", url),
				zap.Error(err),
			)
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, eris.Wrap(lastErr, "fetch: all providers failed")
	}
	return nil, eris.Errorf("fetch: no available provider for %s", url)
}
