package memory

import (
	"context"

	"github.com/sells-group/research-agent/internal/model"
)

// Snapshot is the full durable state of the research memory. It must
// round-trip losslessly through any ledger backend.
type Snapshot struct {
	Sources         map[string]model.SourceReliability `json:"sources"`
	QueryPatterns   map[string]string                  `json:"query_patterns"`
	FeedbackHistory map[string][]model.FeedbackEntry   `json:"feedback_history"`
}

// NewSnapshot returns an empty snapshot with all maps allocated.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Sources:         make(map[string]model.SourceReliability),
		QueryPatterns:   make(map[string]string),
		FeedbackHistory: make(map[string][]model.FeedbackEntry),
	}
}

// Ledger persists memory snapshots. A save either fully succeeds or
// leaves the previously persisted state intact; concurrent savers must
// never produce a corrupt load.
type Ledger interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
	Migrate(ctx context.Context) error
	Close() error
}
