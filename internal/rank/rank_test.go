package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/research-agent/internal/model"
)

type fakeSource map[string]model.SourceReliability

func (f fakeSource) Reliability(domain string) (model.SourceReliability, bool) {
	src, ok := f[domain]
	return src, ok
}

func TestScoreKnownDomain(t *testing.T) {
	p := New(fakeSource{
		"fast.example": {
			Domain:              "fast.example",
			QueryTypes:          map[string]float64{"financial": 0.8},
			TotalAttempts:       10,
			SuccessfulAttempts:  9,
			AverageResponseTime: 1.0,
		},
	})

	// 0.8*0.5 + 0.9*0.3 + (1/2)*0.2
	assert.InDelta(t, 0.77, p.Score("https://fast.example/page", "financial"), 1e-9)
}

func TestScoreUnknownDomain(t *testing.T) {
	p := New(fakeSource{})
	assert.InDelta(t, 0.1, p.Score("https://never-seen.example/x", "financial"), 1e-9)
}

func TestScoreUnparsableURL(t *testing.T) {
	p := New(fakeSource{})
	assert.InDelta(t, 0.1, p.Score("://not a url", "news"), 1e-9)
	assert.InDelta(t, 0.1, p.Score("relative/path", "news"), 1e-9)
}

func TestScoreOtherCategoryIgnored(t *testing.T) {
	p := New(fakeSource{
		"example.com": {
			Domain:             "example.com",
			QueryTypes:         map[string]float64{"news": 0.9},
			TotalAttempts:      4,
			SuccessfulAttempts: 4,
		},
	})

	// No financial history: reliability term is zero, success and speed remain.
	assert.InDelta(t, 0.0*0.5+1.0*0.3+1.0*0.2, p.Score("https://example.com/a", "financial"), 1e-9)
}

func TestPrioritizeKnownBeforeUnknown(t *testing.T) {
	p := New(fakeSource{
		"proven.example": {
			Domain:             "proven.example",
			QueryTypes:         map[string]float64{"financial": 0.9},
			TotalAttempts:      5,
			SuccessfulAttempts: 5,
		},
	})

	got := p.Prioritize([]string{
		"https://unknown.example/a",
		"https://proven.example/b",
		"https://another-unknown.example/c",
	}, "financial")

	require.Len(t, got, 3)
	assert.Equal(t, "https://proven.example/b", got[0])
	// Equal-score URLs keep input order.
	assert.Equal(t, "https://unknown.example/a", got[1])
	assert.Equal(t, "https://another-unknown.example/c", got[2])
}

func TestPrioritizeDoesNotMutateInput(t *testing.T) {
	p := New(fakeSource{
		"proven.example": {
			Domain:             "proven.example",
			QueryTypes:         map[string]float64{"news": 1.0},
			TotalAttempts:      1,
			SuccessfulAttempts: 1,
		},
	})

	in := []string{"https://unknown.example/a", "https://proven.example/b"}
	got := p.Prioritize(in, "news")

	assert.Equal(t, []string{"https://unknown.example/a", "https://proven.example/b"}, in)
	assert.Equal(t, []string{"https://proven.example/b", "https://unknown.example/a"}, got)
}

func TestPrioritizeEmpty(t *testing.T) {
	p := New(fakeSource{})
	assert.Empty(t, p.Prioritize(nil, "news"))
}

func TestPrioritizeSlowDomainRanksBelowFast(t *testing.T) {
	base := model.SourceReliability{
		QueryTypes:         map[string]float64{"news": 0.5},
		TotalAttempts:      10,
		SuccessfulAttempts: 8,
	}
	slow := base
	slow.Domain = "slow.example"
	slow.AverageResponseTime = 9.0
	fast := base
	fast.Domain = "fast.example"
	fast.AverageResponseTime = 0.5

	p := New(fakeSource{"slow.example": slow, "fast.example": fast})

	got := p.Prioritize([]string{"https://slow.example/a", "https://fast.example/b"}, "news")
	assert.Equal(t, "https://fast.example/b", got[0])
}
