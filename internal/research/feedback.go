package research

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/research-agent/internal/model"
)

// SubmitFeedback applies a delayed human verdict to the topic's last
// run. Without a pending self-assessment there is nothing to calibrate
// against: the call logs and takes no effect. The calibrated
// assessment is cleared, so each run accepts at most one verdict.
func (o *Orchestrator) SubmitFeedback(ctx context.Context, topic string, verdict bool, notes string) bool {
	sess, ok := o.sessions.Get(topic)
	if !ok || sess.Pending == nil {
		zap.L().Error("research: feedback without pending assessment",
			zap.String("topic", topic),
		)
		return false
	}
	pending := *sess.Pending
	category := o.classifier.Classify(topic)

	sources := make([]string, 0, len(sess.Sources))
	for _, src := range sess.Sources {
		sources = append(sources, src.URL)
	}

	for _, rawURL := range sources {
		domain := domainOf(rawURL)
		if domain == "" {
			continue
		}

		var err error
		switch {
		case verdict == pending.IsAccurate:
			err = o.mem.ApplyFeedback(ctx, domain, string(category), true, 1.0,
				"accurate assessment confirmed by human feedback")
		case !verdict:
			err = o.mem.ApplyFeedback(ctx, domain, string(category), false, 1.0,
				"assessment contradicted by human feedback")
		default:
			// Positive verdict against a negative self-assessment: the
			// agent's own confidence weights how hard the score moves.
			err = o.mem.ApplyFeedback(ctx, domain, string(category), false, pending.Confidence,
				"human verdict positive despite low self-assessment")
		}
		if err != nil {
			zap.L().Error("research: feedback update failed",
				zap.String("domain", domain),
				zap.Error(err),
			)
		}
	}

	entry := model.FeedbackEntry{
		Timestamp:       o.now(),
		Topic:           sess.Topic,
		QueryType:       string(category),
		Sources:         sources,
		AgentAssessment: pending,
		HumanFeedback:   verdict,
		Notes:           notes,
	}
	if err := o.mem.AppendFeedback(ctx, entry); err != nil {
		zap.L().Error("research: feedback ledger append failed",
			zap.String("topic", topic),
			zap.Error(err),
		)
	}

	sess.Pending = nil

	zap.L().Info("research: feedback applied",
		zap.String("topic", topic),
		zap.Bool("verdict", verdict),
		zap.Int("sources", len(sources)),
	)
	return true
}
