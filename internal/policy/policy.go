// Package policy decides after each recorded source whether a research
// run keeps going. Thresholds scale with topic complexity so hard
// topics demand more corroboration before stopping.
package policy

import (
	"math"

	"github.com/sells-group/research-agent/internal/model"
	"github.com/sells-group/research-agent/internal/session"
)

// Priority hints steer the next round's query phrasing.
type Priority string

const (
	PriorityVerification Priority = "verification"
	PriorityContext      Priority = "context"
)

// Decision is the outcome of one policy evaluation.
type Decision struct {
	Continue bool
	Reason   string
	Priority Priority
}

// ConsistencyFunc judges whether the gathered sources agree with each
// other. The default accepts everything; a stricter implementation can
// be swapped in without touching the layering.
type ConsistencyFunc func(sources []model.SourceRecord) bool

// Policy evaluates the layered stopping rules.
type Policy struct {
	consistent ConsistencyFunc
}

func New() *Policy {
	return &Policy{consistent: func([]model.SourceRecord) bool { return true }}
}

// NewWithConsistency uses a custom consistency check.
func NewWithConsistency(fn ConsistencyFunc) *Policy {
	p := New()
	if fn != nil {
		p.consistent = fn
	}
	return p
}

// MinSources is the complexity-scaled floor on corroborating sources.
func MinSources(complexity float64) int {
	n := int(math.Round(complexity * 5))
	if n < 2 {
		return 2
	}
	return n
}

// QualityThreshold is the relevance and confidence bar a source must
// clear to count toward convergence.
func QualityThreshold(complexity float64) float64 {
	return 0.7 + complexity*0.2
}

// MaxSources is the hard ceiling on sources per run.
func MaxSources(complexity float64) int {
	return 2 * MinSources(complexity)
}

// Evaluate applies the rules in fixed order and returns the first that
// fires. Later layers never override an earlier stop.
func (p *Policy) Evaluate(sess *session.Session, complexity float64) Decision {
	if len(sess.Sources) == 0 {
		return Decision{Continue: true, Reason: "not started"}
	}

	minSources := MinSources(complexity)
	threshold := QualityThreshold(complexity)

	var highQuality int
	for _, src := range sess.Sources {
		if src.Assessment.Relevance > threshold && src.Assessment.Confidence > threshold {
			highQuality++
		}
	}
	if highQuality >= minSources {
		return Decision{Reason: "sufficient high-quality sources"}
	}

	if len(sess.Sources) >= MaxSources(complexity) {
		return Decision{Reason: "maximum sources reached"}
	}

	if len(sess.Sources) > 1 && !p.consistent(sess.Sources) {
		return Decision{Continue: true, Reason: "inconsistent information", Priority: PriorityVerification}
	}

	latest := sess.Sources[len(sess.Sources)-1].Assessment
	if latest.NeedsVerification {
		return Decision{Continue: true, Reason: "needs verification", Priority: PriorityVerification}
	}
	if complexity > 0.5 && latest.NeedsContext {
		return Decision{Continue: true, Reason: "needs context", Priority: PriorityContext}
	}

	return Decision{Continue: true, Reason: "need more information"}
}
