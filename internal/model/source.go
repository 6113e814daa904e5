// Package model defines the domain types shared across the research agent.
package model

import "time"

// SourceReliability tracks learned trustworthiness for a single domain.
// Scores are per query category and live in [0,1]. Entries are created
// lazily on first observation and never deleted.
type SourceReliability struct {
	Domain              string             `json:"domain"`
	QueryTypes          map[string]float64 `json:"query_types"`
	LastSuccess         *time.Time         `json:"last_success,omitempty"`
	LastFailure         *time.Time         `json:"last_failure,omitempty"`
	TotalAttempts       int                `json:"total_attempts"`
	SuccessfulAttempts  int                `json:"successful_attempts"`
	AverageResponseTime float64            `json:"average_response_time"`
	Notes               []string           `json:"notes,omitempty"`
}

// SuccessRate returns successful/total attempts, guarding the zero case.
func (s *SourceReliability) SuccessRate() float64 {
	if s.TotalAttempts <= 0 {
		return 0
	}
	return float64(s.SuccessfulAttempts) / float64(s.TotalAttempts)
}

// Clone returns a deep copy safe to hand out across goroutines.
func (s *SourceReliability) Clone() SourceReliability {
	out := *s
	out.QueryTypes = make(map[string]float64, len(s.QueryTypes))
	for k, v := range s.QueryTypes {
		out.QueryTypes[k] = v
	}
	out.Notes = append([]string(nil), s.Notes...)
	if s.LastSuccess != nil {
		t := *s.LastSuccess
		out.LastSuccess = &t
	}
	if s.LastFailure != nil {
		t := *s.LastFailure
		out.LastFailure = &t
	}
	return out
}

// Assessment is the structured judgment returned by the content assessor.
type Assessment struct {
	Relevance         float64 `json:"relevance"`
	IsComplete        bool    `json:"is_complete"`
	FoundData         string  `json:"found_data"`
	NeedsVerification bool    `json:"needs_verification"`
	NeedsContext      bool    `json:"needs_context"`
	Confidence        float64 `json:"confidence"`
}

// Extraction is the structured output of the fact extractor.
type Extraction struct {
	MainFacts     []string `json:"main_facts"`
	Confidence    float64  `json:"confidence"`
	Timestamp     string   `json:"timestamp,omitempty"`
	SourceQuality float64  `json:"source_quality"`
}

// SourceRecord is one fetched-and-assessed source inside a research session.
type SourceRecord struct {
	URL        string     `json:"url"`
	Content    string     `json:"content,omitempty"`
	Assessment Assessment `json:"assessment"`
	Extraction Extraction `json:"extraction"`
	RecordedAt time.Time  `json:"recorded_at"`
}
