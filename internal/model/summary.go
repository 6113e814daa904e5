package model

// SourceDigest is the compact per-source view included in a summary.
type SourceDigest struct {
	URL        string  `json:"url"`
	Relevance  float64 `json:"relevance"`
	Confidence float64 `json:"confidence"`
	FoundData  string  `json:"found_data,omitempty"`
}

// ResearchSummary is the terminal output of one research run, handed to
// downstream report generation.
type ResearchSummary struct {
	Topic        string         `json:"topic"`
	QueryType    string         `json:"query_type"`
	Complexity   float64        `json:"complexity"`
	TotalSources int            `json:"total_sources"`
	MainFacts    []string       `json:"main_facts"`
	Sources      []SourceDigest `json:"sources"`
	StopReason   string         `json:"stop_reason"`
	Rounds       int            `json:"rounds"`
}
