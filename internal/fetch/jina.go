package fetch

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/research-agent/pkg/jina"
)

// circuitBreaker tracks consecutive failures to skip a flaky upstream.
type circuitBreaker struct {
	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	openUntil   time.Time
	threshold   int           // consecutive failures to trip
	window      time.Duration // failures must occur within this window
	cooldown    time.Duration // how long the circuit stays open
}

func newCircuitBreaker(threshold int, window, cooldown time.Duration) *circuitBreaker {
	return &circuitBreaker{
		threshold: threshold,
		window:    window,
		cooldown:  cooldown,
	}
}

func (cb *circuitBreaker) isOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return time.Now().Before(cb.openUntil)
}

func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	now := time.Now()
	if now.Sub(cb.lastFailure) > cb.window {
		cb.failures = 0
	}
	cb.failures++
	cb.lastFailure = now
	if cb.failures >= cb.threshold {
		cb.openUntil = now.Add(cb.cooldown)
		zap.L().Warn("fetch: jina circuit breaker opened",
			zap.Int("failures", cb.failures),
			zap.Duration("cooldown", cb.cooldown),
		)
	}
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
}

// JinaProvider wraps the Jina Reader client as a Provider.
// Circuit breaker: 3 consecutive failures within 30s opens the circuit
// for 60s, during which the chain falls through to the next provider.
type JinaProvider struct {
	client  jina.Client
	breaker *circuitBreaker
}

func NewJinaProvider(client jina.Client) *JinaProvider {
	return &JinaProvider{
		client:  client,
		breaker: newCircuitBreaker(3, 30*time.Second, 60*time.Second),
	}
}

func (p *JinaProvider) Name() string { return "jina" }

func (p *JinaProvider) Available() bool { return !p.breaker.isOpen() }

func (p *JinaProvider) Fetch(ctx context.Context, url string) (*Result, error) {
	if p.breaker.isOpen() {
		return nil, eris.New("jina: circuit breaker open")
	}

	resp, err := p.client.Read(ctx, url)
	if err != nil {
		p.breaker.recordFailure()
		return nil, err
	}

	if unusable(resp) {
		p.breaker.recordFailure()
		return nil, eris.Errorf("jina: unusable content for %s", url)
	}

	p.breaker.recordSuccess()
	return &Result{
		URL:     resp.Data.URL,
		Title:   resp.Data.Title,
		Content: resp.Data.Content,
	}, nil
}

// unusable checks whether a Jina response carries real page text or a
// blocked/empty shell.
func unusable(resp *jina.ReadResponse) bool {
	if resp == nil {
		return true
	}

	if resp.Code != 0 && resp.Code != 200 {
		return true
	}

	content := strings.TrimSpace(resp.Data.Content)

	if len(content) < 100 {
		return true
	}

	lower := strings.ToLower(content)

	challengeSignatures := []string{
		"checking your browser",
		"enable javascript",
		"please enable cookies",
		"access denied",
		"403 forbidden",
		"just a moment",
		"cloudflare",
		"attention required",
	}

	for _, sig := range challengeSignatures {
		if strings.Contains(lower, sig) && len(content) < 1000 {
			return true
		}
	}

	return false
}
