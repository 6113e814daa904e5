package memory

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/research-agent/internal/model"
)

// stubLedger keeps the last saved snapshot in memory.
type stubLedger struct {
	snap    *Snapshot
	loadErr error
	saveErr error
	saves   int
}

func (s *stubLedger) Load(context.Context) (*Snapshot, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.snap == nil {
		return NewSnapshot(), nil
	}
	return s.snap, nil
}

func (s *stubLedger) Save(_ context.Context, snap *Snapshot) error {
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.snap = snap
	return nil
}

func (s *stubLedger) Migrate(context.Context) error { return nil }
func (s *stubLedger) Close() error                  { return nil }

func newTestMemory(t *testing.T, ledger Ledger) *Memory {
	t.Helper()
	m := Open(context.Background(), ledger)
	m.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return m
}

func TestRecordAttemptSuccess(t *testing.T) {
	ledger := &stubLedger{}
	m := newTestMemory(t, ledger)
	ctx := context.Background()

	require.NoError(t, m.RecordAttempt(ctx, "example.com", "financial", true, 1.5, 0.8))

	src, ok := m.Reliability("example.com")
	require.True(t, ok)
	assert.Equal(t, 1, src.TotalAttempts)
	assert.Equal(t, 1, src.SuccessfulAttempts)
	assert.InDelta(t, 0.08, src.QueryTypes["financial"], 1e-9)
	assert.InDelta(t, 0.15, src.AverageResponseTime, 1e-9)
	require.NotNil(t, src.LastSuccess)
	assert.Nil(t, src.LastFailure)
	assert.Equal(t, 1, ledger.saves)
}

func TestRecordAttemptFailureDecays(t *testing.T) {
	m := newTestMemory(t, &stubLedger{})
	ctx := context.Background()

	require.NoError(t, m.RecordAttempt(ctx, "example.com", "news", true, 1.0, 1.0))
	require.NoError(t, m.RecordAttempt(ctx, "example.com", "news", false, 2.0, 0))

	src, ok := m.Reliability("example.com")
	require.True(t, ok)
	assert.Equal(t, 2, src.TotalAttempts)
	assert.Equal(t, 1, src.SuccessfulAttempts)
	// 0.1 after the success, decayed by 0.9 on failure.
	assert.InDelta(t, 0.09, src.QueryTypes["news"], 1e-9)
	// 0.1 after the success, then 0.1*0.9 + 2.0*0.1.
	assert.InDelta(t, 0.29, src.AverageResponseTime, 1e-9)
	require.NotNil(t, src.LastFailure)
}

func TestRecordAttemptClampsQuality(t *testing.T) {
	m := newTestMemory(t, &stubLedger{})
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		require.NoError(t, m.RecordAttempt(ctx, "example.com", "price", true, 0.1, 5.0))
	}

	src, _ := m.Reliability("example.com")
	assert.LessOrEqual(t, src.QueryTypes["price"], 1.0)
	assert.GreaterOrEqual(t, src.SuccessfulAttempts, 0)
	assert.LessOrEqual(t, src.SuccessfulAttempts, src.TotalAttempts)
}

func TestRecordAttemptEmptyDomain(t *testing.T) {
	m := newTestMemory(t, &stubLedger{})
	assert.Error(t, m.RecordAttempt(context.Background(), "", "news", true, 1, 1))
}

func TestRecordAttemptNegativeResponseTime(t *testing.T) {
	m := newTestMemory(t, &stubLedger{})
	require.NoError(t, m.RecordAttempt(context.Background(), "example.com", "news", true, -3, 0.5))

	src, _ := m.Reliability("example.com")
	assert.Equal(t, 0.0, src.AverageResponseTime)
}

func TestBestSourcesOrdering(t *testing.T) {
	m := newTestMemory(t, &stubLedger{})
	ctx := context.Background()

	seed := func(domain string, quality float64, n int) {
		for i := 0; i < n; i++ {
			require.NoError(t, m.RecordAttempt(ctx, domain, "financial", true, 0.5, quality))
		}
	}
	seed("strong.example", 1.0, 10)
	seed("weak.example", 0.2, 2)
	seed("other.example", 1.0, 10)

	best := m.BestSources("financial", 0.0)
	require.Len(t, best, 3)
	// Equal scores break ties alphabetically.
	assert.Equal(t, []string{"other.example", "strong.example", "weak.example"}, best)

	strong, _ := m.Reliability("strong.example")
	filtered := m.BestSources("financial", strong.QueryTypes["financial"])
	assert.Equal(t, []string{"other.example", "strong.example"}, filtered)
}

func TestBestSourcesUnknownQueryType(t *testing.T) {
	m := newTestMemory(t, &stubLedger{})
	require.NoError(t, m.RecordAttempt(context.Background(), "example.com", "news", true, 1, 1))

	assert.Empty(t, m.BestSources("price", 0.01))
}

func TestApplyFeedbackSuccessMovesTowardOne(t *testing.T) {
	m := newTestMemory(t, &stubLedger{})
	ctx := context.Background()

	require.NoError(t, m.RecordAttempt(ctx, "example.com", "news", true, 1, 0.5))
	before, _ := m.Reliability("example.com")

	require.NoError(t, m.ApplyFeedback(ctx, "example.com", "news", true, 1.0, "confirmed"))

	after, _ := m.Reliability("example.com")
	expected := before.QueryTypes["news"] + (1-before.QueryTypes["news"])*0.1
	assert.InDelta(t, expected, after.QueryTypes["news"], 1e-9)
	assert.Greater(t, after.QueryTypes["news"], before.QueryTypes["news"])
	require.Len(t, after.Notes, 1)
	assert.Contains(t, after.Notes[0], "confirmed")
	assert.Contains(t, after.Notes[0], "2025-06-01T12:00:00Z")
}

func TestApplyFeedbackFailureDecays(t *testing.T) {
	m := newTestMemory(t, &stubLedger{})
	ctx := context.Background()

	require.NoError(t, m.RecordAttempt(ctx, "example.com", "news", true, 1, 1.0))
	before, _ := m.Reliability("example.com")

	require.NoError(t, m.ApplyFeedback(ctx, "example.com", "news", false, 1.0, ""))

	after, _ := m.Reliability("example.com")
	assert.InDelta(t, before.QueryTypes["news"]*0.8, after.QueryTypes["news"], 1e-9)
	assert.Empty(t, after.Notes)
}

func TestApplyFeedbackPartialWeight(t *testing.T) {
	m := newTestMemory(t, &stubLedger{})
	ctx := context.Background()

	require.NoError(t, m.RecordAttempt(ctx, "example.com", "news", true, 1, 0.5))
	before, _ := m.Reliability("example.com")

	require.NoError(t, m.ApplyFeedback(ctx, "example.com", "news", true, 0.5, ""))

	after, _ := m.Reliability("example.com")
	expected := before.QueryTypes["news"] + (1-before.QueryTypes["news"])*0.5*0.1
	assert.InDelta(t, expected, after.QueryTypes["news"], 1e-9)
}

func TestApplyFeedbackUnknownDomainNoop(t *testing.T) {
	ledger := &stubLedger{}
	m := newTestMemory(t, ledger)

	require.NoError(t, m.ApplyFeedback(context.Background(), "never-seen.example", "news", false, 1.0, "x"))
	assert.False(t, m.Known("never-seen.example"))
	assert.Equal(t, 0, ledger.saves)
}

func TestOpenLoadFailureStartsEmpty(t *testing.T) {
	m := newTestMemory(t, &stubLedger{loadErr: eris.New("disk gone")})
	assert.Empty(t, m.BestSources("news", 0))
	assert.False(t, m.Known("example.com"))
}

func TestSaveFailureKeepsInMemoryState(t *testing.T) {
	m := newTestMemory(t, &stubLedger{saveErr: eris.New("disk full")})

	err := m.RecordAttempt(context.Background(), "example.com", "news", true, 1, 0.5)
	assert.Error(t, err)
	src, ok := m.Reliability("example.com")
	require.True(t, ok)
	assert.Equal(t, 1, src.TotalAttempts)
}

func TestOpenRoundTrip(t *testing.T) {
	ledger := &stubLedger{}
	m := newTestMemory(t, ledger)
	ctx := context.Background()

	require.NoError(t, m.RecordAttempt(ctx, "example.com", "financial", true, 1.2, 0.9))
	require.NoError(t, m.AppendFeedback(ctx, model.FeedbackEntry{
		Timestamp:     time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		Topic:         "acme corp revenue",
		QueryType:     "financial",
		Sources:       []string{"https://example.com/report"},
		HumanFeedback: true,
	}))

	reopened := Open(ctx, ledger)
	src, ok := reopened.Reliability("example.com")
	require.True(t, ok)
	assert.InDelta(t, 0.09, src.QueryTypes["financial"], 1e-9)
	assert.Equal(t, 1, reopened.Stats("", "").TotalEntries)
}

func TestStatsAggregation(t *testing.T) {
	m := newTestMemory(t, &stubLedger{})
	ctx := context.Background()

	entries := []model.FeedbackEntry{
		{
			Timestamp:       time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
			Topic:           "acme revenue",
			QueryType:       "financial",
			Sources:         []string{"https://example.com/a"},
			AgentAssessment: model.AccuracyAssessment{IsAccurate: true},
			HumanFeedback:   true,
		},
		{
			Timestamp:       time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC),
			Topic:           "acme news",
			QueryType:       "news",
			Sources:         []string{"https://news.example/b"},
			AgentAssessment: model.AccuracyAssessment{IsAccurate: true},
			HumanFeedback:   false,
		},
		{
			Timestamp:       time.Date(2025, 5, 3, 0, 0, 0, 0, time.UTC),
			Topic:           "acme price",
			QueryType:       "financial",
			Sources:         []string{"https://example.com/c"},
			AgentAssessment: model.AccuracyAssessment{IsAccurate: false},
			HumanFeedback:   false,
		},
	}
	for _, e := range entries {
		require.NoError(t, m.AppendFeedback(ctx, e))
	}

	stats := m.Stats("", "")
	assert.Equal(t, 3, stats.TotalEntries)
	assert.InDelta(t, 2.0/3.0, stats.AgentAccuracy, 1e-9)
	assert.InDelta(t, 1.0/3.0, stats.HumanAgreement, 1e-9)
	assert.InDelta(t, 0.5, stats.ByQueryType["financial"].SuccessRate, 1e-9)
	assert.InDelta(t, 0.0, stats.ByQueryType["news"].SuccessRate, 1e-9)
	require.Len(t, stats.RecentTrends, 3)
	assert.True(t, stats.RecentTrends[0].Timestamp.Before(stats.RecentTrends[2].Timestamp))

	byDomain := m.Stats("example.com", "")
	assert.Equal(t, 2, byDomain.TotalEntries)

	byType := m.Stats("", "news")
	assert.Equal(t, 1, byType.TotalEntries)
	assert.InDelta(t, 0.0, byType.HumanAgreement, 1e-9)
}

func TestStatsEmpty(t *testing.T) {
	m := newTestMemory(t, &stubLedger{})
	stats := m.Stats("", "")
	assert.Equal(t, 0, stats.TotalEntries)
	assert.Empty(t, stats.RecentTrends)
}

func TestStatsRecentTrendsCapped(t *testing.T) {
	m := newTestMemory(t, &stubLedger{})
	ctx := context.Background()

	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 15; i++ {
		require.NoError(t, m.AppendFeedback(ctx, model.FeedbackEntry{
			Timestamp:     base.Add(time.Duration(i) * time.Hour),
			Topic:         "topic",
			QueryType:     "news",
			HumanFeedback: i%2 == 0,
		}))
	}

	stats := m.Stats("", "")
	assert.Equal(t, 15, stats.TotalEntries)
	require.Len(t, stats.RecentTrends, 10)
	assert.Equal(t, base.Add(14*time.Hour), stats.RecentTrends[9].Timestamp)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	m := newTestMemory(t, &stubLedger{})
	require.NoError(t, m.RecordAttempt(context.Background(), "example.com", "news", true, 1, 0.5))

	snap := m.Snapshot()
	snap.Sources["example.com"].QueryTypes["news"] = 0.99

	src, _ := m.Reliability("example.com")
	assert.InDelta(t, 0.05, src.QueryTypes["news"], 1e-9)
}
