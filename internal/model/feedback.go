package model

import "time"

// AccuracyAssessment is the agent's own post-run judgment of its research,
// held as the pending subject for later human feedback.
type AccuracyAssessment struct {
	IsAccurate         bool     `json:"is_accurate"`
	Confidence         float64  `json:"confidence"`
	Completeness       float64  `json:"completeness"`
	Concerns           []string `json:"concerns,omitempty"`
	VerificationNeeded bool     `json:"verification_needed"`
}

// FeedbackEntry records one delayed human verdict against the agent's
// assessment for a topic. Entries are append-only per topic.
type FeedbackEntry struct {
	Timestamp       time.Time          `json:"timestamp"`
	Topic           string             `json:"topic"`
	QueryType       string             `json:"query_type"`
	Sources         []string           `json:"sources"`
	AgentAssessment AccuracyAssessment `json:"agent_assessment"`
	HumanFeedback   bool               `json:"human_feedback"`
	Notes           string             `json:"notes,omitempty"`
}

// CategoryPerformance summarizes human-confirmed success for one query type.
type CategoryPerformance struct {
	SuccessRate float64 `json:"success_rate"`
}

// TrendPoint is one recent feedback outcome in chronological order.
type TrendPoint struct {
	Timestamp time.Time `json:"timestamp"`
	QueryType string    `json:"query_type"`
	Success   bool      `json:"success"`
}

// FeedbackStats aggregates the feedback ledger, optionally filtered by
// domain substring and query type.
type FeedbackStats struct {
	TotalEntries   int                            `json:"total_entries"`
	AgentAccuracy  float64                        `json:"agent_accuracy"`
	HumanAgreement float64                        `json:"human_agreement"`
	ByQueryType    map[string]CategoryPerformance `json:"query_type_performance"`
	RecentTrends   []TrendPoint                   `json:"recent_trends"`
}
