// Package research drives the adaptive research loop: classify the
// topic, rank and fetch candidate sources across escalating query
// rounds, record outcomes into session and reliability memory, and
// stop the moment the policy says the evidence suffices. Failures
// inside a round are contained; a run always terminates with a
// summary.
package research

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/research-agent/internal/classify"
	"github.com/sells-group/research-agent/internal/hosts"
	"github.com/sells-group/research-agent/internal/judge"
	"github.com/sells-group/research-agent/internal/memory"
	"github.com/sells-group/research-agent/internal/model"
	"github.com/sells-group/research-agent/internal/policy"
	"github.com/sells-group/research-agent/internal/rank"
	"github.com/sells-group/research-agent/internal/search"
	"github.com/sells-group/research-agent/internal/session"
)

// Round and fetch budgets. These are the de facto timeout mechanism:
// total external calls per topic are bounded regardless of how
// unproductive the searches are.
const (
	maxSearchAttempts = 3
	urlsPerRound      = 2
)

// Assessment thresholds.
const (
	// successRelevance marks a fetch as a successful attempt for
	// reliability bookkeeping.
	successRelevance = 0.5
	// priorityRecordBar admits a priority-domain source into the session.
	priorityRecordBar = 0.7
	// priorityStopBar ends the run early on a strong priority-domain hit.
	priorityStopBar = 0.8
)

// Fetcher turns a URL into page text, reporting the fetch duration in
// seconds. Implementations never fail; bad pages come back as sentinel
// content the assessor scores down.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (content string, seconds float64)
}

// Orchestrator owns the research control loop.
type Orchestrator struct {
	classifier *classify.Classifier
	mem        *memory.Memory
	ranker     *rank.Prioritizer
	sessions   *session.Registry
	policy     *policy.Policy
	searcher   search.Searcher
	fetcher    Fetcher
	assessor   judge.Assessor
	extractor  judge.Extractor
	complexity judge.ComplexityEstimator
	accuracy   judge.AccuracyJudge
	tracker    *hosts.Tracker
	now        func() time.Time
}

// Deps carries the orchestrator's collaborators.
type Deps struct {
	Classifier *classify.Classifier
	Memory     *memory.Memory
	Ranker     *rank.Prioritizer
	Sessions   *session.Registry
	Policy     *policy.Policy
	Searcher   search.Searcher
	Fetcher    Fetcher
	Assessor   judge.Assessor
	Extractor  judge.Extractor
	Complexity judge.ComplexityEstimator
	Accuracy   judge.AccuracyJudge
	Hosts      *hosts.Tracker
}

func New(deps Deps) *Orchestrator {
	return &Orchestrator{
		classifier: deps.Classifier,
		mem:        deps.Memory,
		ranker:     deps.Ranker,
		sessions:   deps.Sessions,
		policy:     deps.Policy,
		searcher:   deps.Searcher,
		fetcher:    deps.Fetcher,
		assessor:   deps.Assessor,
		extractor:  deps.Extractor,
		complexity: deps.Complexity,
		accuracy:   deps.Accuracy,
		tracker:    deps.Hosts,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run researches a topic to completion and returns the summary. The
// run always terminates: budget ceilings bound every loop, and any
// failure inside a round is logged and consumed, not propagated.
func (o *Orchestrator) Run(ctx context.Context, topic string) (*model.ResearchSummary, error) {
	category := o.classifier.Classify(topic)
	sess := o.sessions.GetOrCreate(topic)

	// Complexity is estimated once per run and pinned on the session so
	// every stopping decision uses the same thresholds.
	complexity := o.complexity.EstimateComplexity(ctx, topic)
	sess.Complexity = complexity

	zap.L().Info("research: starting",
		zap.String("topic", topic),
		zap.String("category", string(category)),
		zap.Float64("complexity", complexity),
	)

	stopReason, rounds := o.runLoop(ctx, sess, topic, category, complexity)

	summary := o.summarize(sess, category, complexity, stopReason, rounds)

	assessment := o.accuracy.AssessAccuracy(ctx, summary)
	sess.Pending = &assessment

	zap.L().Info("research: finished",
		zap.String("topic", topic),
		zap.String("stop_reason", stopReason),
		zap.Int("sources", summary.TotalSources),
		zap.Int("rounds", rounds),
	)
	return summary, nil
}

// runLoop executes the priority-domain pass and the bounded search
// rounds, returning the terminal reason and rounds consumed.
func (o *Orchestrator) runLoop(ctx context.Context, sess *session.Session, topic string, category classify.Category, complexity float64) (string, int) {
	if reason, done := o.priorityPass(ctx, sess, topic, category); done {
		return reason, 0
	}

	var hint policy.Priority
	for round := 0; round < maxSearchAttempts; round++ {
		if ctx.Err() != nil {
			return "search attempts exhausted", round
		}

		query := o.buildQuery(topic, round, hint)
		blob, err := o.searcher.Search(ctx, query)
		if err != nil {
			zap.L().Warn("research: search round failed",
				zap.String("topic", topic),
				zap.Int("round", round),
				zap.Error(err),
			)
			continue
		}

		candidates := search.ExtractURLs(blob, func(u string) bool {
			return sess.Visited(u) || (o.tracker != nil && o.tracker.Blocked(u))
		})
		if len(candidates) == 0 {
			zap.L().Debug("research: round yielded no new urls",
				zap.String("topic", topic),
				zap.Int("round", round),
			)
			continue
		}

		ranked := o.ranker.Prioritize(candidates, string(category))
		if len(ranked) > urlsPerRound {
			ranked = ranked[:urlsPerRound]
		}

		for _, target := range ranked {
			if _, err := o.processURL(ctx, sess, topic, category, target, 0); err != nil {
				zap.L().Warn("research: source failed, consuming round",
					zap.String("url", target),
					zap.Error(err),
				)
				break
			}

			decision := o.policy.Evaluate(sess, complexity)
			if !decision.Continue {
				return decision.Reason, round + 1
			}
			hint = decision.Priority
		}
	}

	return "search attempts exhausted", maxSearchAttempts
}

// priorityPass consults the category's authoritative domains before
// general search. A strong hit ends the run immediately.
func (o *Orchestrator) priorityPass(ctx context.Context, sess *session.Session, topic string, category classify.Category) (string, bool) {
	domains := o.classifier.PriorityDomains(category)
	for _, domain := range domains {
		if ctx.Err() != nil {
			return "", false
		}

		blob, err := o.searcher.Search(ctx, fmt.Sprintf("%s site:%s", topic, domain))
		if err != nil {
			zap.L().Warn("research: priority domain search failed",
				zap.String("domain", domain),
				zap.Error(err),
			)
			continue
		}

		candidates := search.ExtractURLs(blob, func(u string) bool {
			return sess.Visited(u) || (o.tracker != nil && o.tracker.Blocked(u))
		})
		if len(candidates) == 0 {
			continue
		}

		assessment, err := o.processURL(ctx, sess, topic, category, candidates[0], priorityRecordBar)
		if err != nil {
			zap.L().Warn("research: priority domain fetch failed",
				zap.String("domain", domain),
				zap.Error(err),
			)
			continue
		}

		if assessment.Relevance > priorityStopBar && assessment.Confidence > priorityStopBar {
			return "reliable answer from priority source", true
		}
	}
	return "", false
}

// processURL runs the fetch-assess-extract-record cycle for one URL.
// The reliability attempt is always recorded; the source enters the
// session only when relevance clears recordBar.
func (o *Orchestrator) processURL(ctx context.Context, sess *session.Session, topic string, category classify.Category, target string, recordBar float64) (model.Assessment, error) {
	sess.MarkVisited(target)

	content, seconds := o.fetcher.Fetch(ctx, target)
	assessment := o.assessor.Assess(ctx, topic, content)

	domain := domainOf(target)
	if domain != "" {
		success := assessment.Relevance > successRelevance
		if err := o.mem.RecordAttempt(ctx, domain, string(category), success, seconds, assessment.Relevance); err != nil {
			zap.L().Error("research: record attempt failed",
				zap.String("domain", domain),
				zap.Error(err),
			)
		}
	}

	if assessment.Relevance <= recordBar && recordBar > 0 {
		return assessment, nil
	}

	extraction := o.extractor.Extract(ctx, topic, content)
	sess.RecordSource(model.SourceRecord{
		URL:        target,
		Content:    content,
		Assessment: assessment,
		Extraction: extraction,
		RecordedAt: o.now(),
	})
	return assessment, nil
}

// buildQuery escalates specificity per round and appends the priority
// hint carried from the previous stopping decision.
func (o *Orchestrator) buildQuery(topic string, round int, hint policy.Priority) string {
	query := topic
	switch round {
	case 1:
		query += " latest information"
	case 2:
		query += fmt.Sprintf(" current data %d", o.now().Year())
	}

	switch hint {
	case policy.PriorityVerification:
		query += " facts verify source"
	case policy.PriorityContext:
		query += " background context"
	}
	return query
}

func (o *Orchestrator) summarize(sess *session.Session, category classify.Category, complexity float64, stopReason string, rounds int) *model.ResearchSummary {
	digests := make([]model.SourceDigest, 0, len(sess.Sources))
	for _, src := range sess.Sources {
		digests = append(digests, model.SourceDigest{
			URL:        src.URL,
			Relevance:  src.Assessment.Relevance,
			Confidence: src.Assessment.Confidence,
			FoundData:  src.Assessment.FoundData,
		})
	}

	return &model.ResearchSummary{
		Topic:        sess.Topic,
		QueryType:    string(category),
		Complexity:   complexity,
		TotalSources: len(sess.Sources),
		MainFacts:    append([]string(nil), sess.MainFacts...),
		Sources:      digests,
		StopReason:   stopReason,
		Rounds:       rounds,
	}
}

func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
