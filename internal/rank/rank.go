// Package rank orders candidate URLs by learned source reliability so
// the orchestrator spends its fetch budget on domains that have paid
// off before.
package rank

import (
	"net/url"
	"sort"

	"github.com/sells-group/research-agent/internal/model"
)

// Weights for the composite priority score.
const (
	reliabilityWeight  = 0.5
	successRateWeight  = 0.3
	responseTimeWeight = 0.2
)

// unknownPrior is the score for domains with no history. Low enough to
// rank below any proven domain, high enough to keep new domains in play.
const unknownPrior = 0.1

// ReliabilitySource exposes per-domain reliability lookups.
type ReliabilitySource interface {
	Reliability(domain string) (model.SourceReliability, bool)
}

// Prioritizer scores URLs against a reliability source.
type Prioritizer struct {
	source ReliabilitySource
}

func New(source ReliabilitySource) *Prioritizer {
	return &Prioritizer{source: source}
}

// Prioritize returns the URLs sorted by descending priority for the
// query type. The input slice is not modified, and URLs with equal
// scores keep their original relative order.
func (p *Prioritizer) Prioritize(urls []string, queryType string) []string {
	type scored struct {
		url   string
		score float64
	}
	items := make([]scored, len(urls))
	for i, u := range urls {
		items[i] = scored{url: u, score: p.Score(u, queryType)}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].score > items[j].score
	})

	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.url
	}
	return out
}

// Score computes the priority of a single URL for the query type.
// Known domains blend category reliability, historical success rate,
// and response time; unknown or unparsable URLs get the neutral prior.
func (p *Prioritizer) Score(rawURL, queryType string) float64 {
	domain := domainOf(rawURL)
	if domain == "" {
		return unknownPrior
	}
	src, ok := p.source.Reliability(domain)
	if !ok {
		return unknownPrior
	}

	reliability := src.QueryTypes[queryType]
	speed := 1.0 / (1.0 + src.AverageResponseTime)
	return reliability*reliabilityWeight + src.SuccessRate()*successRateWeight + speed*responseTimeWeight
}

func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
