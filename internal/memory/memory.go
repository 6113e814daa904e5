// Package memory implements the persistent source-reliability store:
// per-domain, per-category reliability scores updated online by fetch
// outcomes and recalibrated by delayed human feedback. All state is
// guarded by a single mutex so concurrent topic runs never lose
// attempt increments, and every mutation is written through to the
// configured ledger before the call returns.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/research-agent/internal/model"
)

// Attempt-driven update weights: fast decay, fast reward.
const (
	attemptKeep   = 0.9
	attemptWeight = 0.1
)

// Feedback-driven update weights: human ground truth moves scores
// harder than heuristic relevance does.
const (
	feedbackReward = 0.1
	feedbackDecay  = 0.8
)

// Memory is the in-process reliability store.
type Memory struct {
	mu       sync.Mutex
	sources  map[string]*model.SourceReliability
	patterns map[string]string
	feedback map[string][]model.FeedbackEntry
	ledger   Ledger
	now      func() time.Time
}

// Open loads persisted state from the ledger. Load failures are
// non-fatal: the store starts empty and the condition is logged.
func Open(ctx context.Context, ledger Ledger) *Memory {
	m := &Memory{
		sources:  make(map[string]*model.SourceReliability),
		patterns: make(map[string]string),
		feedback: make(map[string][]model.FeedbackEntry),
		ledger:   ledger,
		now:      func() time.Time { return time.Now().UTC() },
	}

	snap, err := ledger.Load(ctx)
	if err != nil {
		zap.L().Error("memory: load failed, starting empty", zap.Error(err))
		return m
	}
	for domain, src := range snap.Sources {
		s := src.Clone()
		if s.QueryTypes == nil {
			s.QueryTypes = make(map[string]float64)
		}
		m.sources[domain] = &s
	}
	for k, v := range snap.QueryPatterns {
		m.patterns[k] = v
	}
	for topic, entries := range snap.FeedbackHistory {
		m.feedback[topic] = append([]model.FeedbackEntry(nil), entries...)
	}

	zap.L().Info("memory: loaded",
		zap.Int("sources", len(m.sources)),
		zap.Int("feedback_topics", len(m.feedback)),
	)
	return m
}

// RecordAttempt folds one fetch outcome into the domain's reliability.
// The entry is created on first observation. Persists synchronously;
// a save failure is returned but the in-memory update stands.
func (m *Memory) RecordAttempt(ctx context.Context, domain, queryType string, success bool, responseTime, contentQuality float64) error {
	if domain == "" {
		return eris.New("memory: empty domain")
	}
	if responseTime < 0 {
		responseTime = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	src := m.sourceLocked(domain)
	now := m.now()

	src.TotalAttempts++
	if success {
		src.SuccessfulAttempts++
		src.LastSuccess = &now
		src.QueryTypes[queryType] = clamp01(src.QueryTypes[queryType]*attemptKeep + contentQuality*attemptWeight)
	} else {
		src.LastFailure = &now
		src.QueryTypes[queryType] = clamp01(src.QueryTypes[queryType] * attemptKeep)
	}
	src.AverageResponseTime = src.AverageResponseTime*attemptKeep + responseTime*attemptWeight

	return m.persistLocked(ctx)
}

// BestSources returns domains whose reliability for queryType meets the
// minimum, best first. Ties break on domain name for determinism.
func (m *Memory) BestSources(queryType string, minReliability float64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	type scored struct {
		domain string
		score  float64
	}
	var matches []scored
	for domain, src := range m.sources {
		if score := src.QueryTypes[queryType]; score >= minReliability {
			matches = append(matches, scored{domain, score})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].domain < matches[j].domain
	})

	out := make([]string, len(matches))
	for i, s := range matches {
		out[i] = s.domain
	}
	return out
}

// ApplyFeedback adjusts a domain's reliability from a human verdict.
// Success pulls the score toward 1 by weight*0.1 of the remaining
// headroom; failure decays it by 0.8. Unknown domains are ignored.
func (m *Memory) ApplyFeedback(ctx context.Context, domain, queryType string, success bool, weight float64, note string) error {
	weight = clamp01(weight)

	m.mu.Lock()
	defer m.mu.Unlock()

	src, ok := m.sources[domain]
	if !ok {
		return nil
	}

	old := src.QueryTypes[queryType]
	if success {
		src.QueryTypes[queryType] = clamp01(old + (1-old)*weight*feedbackReward)
	} else {
		src.QueryTypes[queryType] = clamp01(old * feedbackDecay)
	}
	if note != "" {
		src.Notes = append(src.Notes, fmt.Sprintf("[%s] %s", m.now().Format(time.RFC3339), note))
	}

	return m.persistLocked(ctx)
}

// AppendFeedback adds an entry to the append-only feedback ledger.
func (m *Memory) AppendFeedback(ctx context.Context, entry model.FeedbackEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.feedback[entry.Topic] = append(m.feedback[entry.Topic], entry)
	return m.persistLocked(ctx)
}

// Reliability returns a copy of the domain's reliability entry.
func (m *Memory) Reliability(domain string) (model.SourceReliability, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	src, ok := m.sources[domain]
	if !ok {
		return model.SourceReliability{}, false
	}
	return src.Clone(), true
}

// Known reports whether the domain has ever been observed.
func (m *Memory) Known(domain string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sources[domain]
	return ok
}

// Stats aggregates the feedback ledger. domainFilter matches entries
// whose source URLs contain the substring; queryType filters exactly.
// Empty filters match everything.
func (m *Memory) Stats(domainFilter, queryType string) model.FeedbackStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := model.FeedbackStats{
		ByQueryType: make(map[string]model.CategoryPerformance),
	}

	var relevant []model.FeedbackEntry
	for _, entries := range m.feedback {
		for _, e := range entries {
			if domainFilter != "" && !anyContains(e.Sources, domainFilter) {
				continue
			}
			if queryType != "" && e.QueryType != queryType {
				continue
			}
			relevant = append(relevant, e)
		}
	}
	if len(relevant) == 0 {
		return stats
	}
	sort.Slice(relevant, func(i, j int) bool {
		return relevant[i].Timestamp.Before(relevant[j].Timestamp)
	})

	stats.TotalEntries = len(relevant)

	var correct, agreed int
	type tally struct{ total, successful int }
	perType := make(map[string]*tally)
	for _, e := range relevant {
		if e.AgentAssessment.IsAccurate == e.HumanFeedback {
			correct++
		}
		if e.HumanFeedback {
			agreed++
		}
		tl := perType[e.QueryType]
		if tl == nil {
			tl = &tally{}
			perType[e.QueryType] = tl
		}
		tl.total++
		if e.HumanFeedback {
			tl.successful++
		}
	}
	stats.AgentAccuracy = float64(correct) / float64(len(relevant))
	stats.HumanAgreement = float64(agreed) / float64(len(relevant))
	for qt, tl := range perType {
		stats.ByQueryType[qt] = model.CategoryPerformance{
			SuccessRate: float64(tl.successful) / float64(tl.total),
		}
	}

	recent := relevant
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}
	for _, e := range recent {
		stats.RecentTrends = append(stats.RecentTrends, model.TrendPoint{
			Timestamp: e.Timestamp,
			QueryType: e.QueryType,
			Success:   e.HumanFeedback,
		})
	}

	return stats
}

// Snapshot returns a deep copy of the current state.
func (m *Memory) Snapshot() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Memory) snapshotLocked() *Snapshot {
	snap := NewSnapshot()
	for domain, src := range m.sources {
		snap.Sources[domain] = src.Clone()
	}
	for k, v := range m.patterns {
		snap.QueryPatterns[k] = v
	}
	for topic, entries := range m.feedback {
		snap.FeedbackHistory[topic] = append([]model.FeedbackEntry(nil), entries...)
	}
	return snap
}

func (m *Memory) persistLocked(ctx context.Context) error {
	if err := m.ledger.Save(ctx, m.snapshotLocked()); err != nil {
		zap.L().Error("memory: save failed", zap.Error(err))
		return eris.Wrap(err, "memory: save")
	}
	return nil
}

// sourceLocked returns the domain entry, creating it with zero
// reliability on first observation.
func (m *Memory) sourceLocked(domain string) *model.SourceReliability {
	src, ok := m.sources[domain]
	if !ok {
		src = &model.SourceReliability{
			Domain:     domain,
			QueryTypes: make(map[string]float64),
		}
		m.sources[domain] = src
	}
	return src
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func anyContains(ss []string, sub string) bool {
	for _, s := range ss {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
