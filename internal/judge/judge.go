// Package judge wraps the LLM behind four narrow judgments: content
// assessment, fact extraction, complexity estimation, and post-run
// accuracy self-assessment. Every method is total; API and decode
// failures degrade to conservative deterministic fallbacks so one bad
// response never aborts a research run.
package judge

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/research-agent/internal/model"
	"github.com/sells-group/research-agent/pkg/anthropic"
)

// Assessor scores fetched content for relevance to a topic.
type Assessor interface {
	Assess(ctx context.Context, topic, content string) model.Assessment
}

// Extractor pulls structured facts out of fetched content.
type Extractor interface {
	Extract(ctx context.Context, topic, content string) model.Extraction
}

// ComplexityEstimator rates how hard a topic is to research, in [0,1].
type ComplexityEstimator interface {
	EstimateComplexity(ctx context.Context, topic string) float64
}

// AccuracyJudge produces the agent's own post-run accuracy assessment.
type AccuracyJudge interface {
	AssessAccuracy(ctx context.Context, summary *model.ResearchSummary) model.AccuracyAssessment
}

// Judge implements all four judgments against the Anthropic API.
type Judge struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// Option configures a Judge.
type Option func(*Judge)

// WithMaxTokens overrides the per-call completion budget.
func WithMaxTokens(n int64) Option {
	return func(j *Judge) { j.maxTokens = n }
}

func New(client anthropic.Client, modelID string, opts ...Option) *Judge {
	j := &Judge{client: client, model: modelID, maxTokens: 1024}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// contentLimit truncates fetched pages before prompting. Pages beyond
// this rarely add signal and the cost scales with input tokens.
const contentLimit = 8000

// fallbackFact is recorded when extraction fails outright.
const fallbackFact = "Unable to extract structured information from source"

const assessPrompt = `Assess how well the following content answers the research topic.

Topic: %s

Content:
%s

Respond with only a JSON object:
{"relevance": 0.0-1.0, "is_complete": bool, "found_data": "one-line summary of what was found", "needs_verification": bool, "needs_context": bool, "confidence": 0.0-1.0}`

const extractPrompt = `Extract the key facts from the following content that answer the research topic.

Topic: %s

Content:
%s

Respond with only a JSON object:
{"main_facts": ["fact", ...], "confidence": 0.0-1.0, "timestamp": "date the information refers to, if stated", "source_quality": 0.0-1.0}`

const complexityPrompt = `Rate the research complexity of this topic from 0.0 (a single lookup answers it) to 1.0 (requires synthesizing many sources).

Topic: %s

Respond with only the number.`

const accuracyPrompt = `Review this completed research and judge whether its findings are accurate.

Topic: %s
Query type: %s
Stop reason: %s
Sources consulted: %d

Facts found:
%s

Respond with only a JSON object:
{"is_accurate": bool, "confidence": 0.0-1.0, "completeness": 0.0-1.0, "concerns": ["concern", ...], "verification_needed": bool}`

// Assess scores content against the topic. API failure yields a
// length-based relevance guess at zero confidence; a garbled but
// received response keeps the guess at low confidence.
func (j *Judge) Assess(ctx context.Context, topic, content string) model.Assessment {
	fallback := model.Assessment{Relevance: fallbackRelevance(content)}

	text, err := j.complete(ctx, fmt.Sprintf(assessPrompt, topic, truncate(content)), "assess")
	if err != nil {
		zap.L().Warn("judge: assessment call failed", zap.String("topic", topic), zap.Error(err))
		return fallback
	}

	var out model.Assessment
	if err := decodeJSON(text, &out); err != nil {
		zap.L().Warn("judge: assessment undecodable", zap.String("topic", topic), zap.Error(err))
		fallback.Confidence = 0.3
		return fallback
	}
	out.Relevance = clamp01(out.Relevance)
	out.Confidence = clamp01(out.Confidence)
	return out
}

// Extract pulls facts from content. Failures yield a single fallback
// fact at low confidence so downstream consumers always see progress.
func (j *Judge) Extract(ctx context.Context, topic, content string) model.Extraction {
	fallback := model.Extraction{
		MainFacts:     []string{fallbackFact},
		Confidence:    0.3,
		SourceQuality: 0.3,
	}

	text, err := j.complete(ctx, fmt.Sprintf(extractPrompt, topic, truncate(content)), "extract")
	if err != nil {
		zap.L().Warn("judge: extraction call failed", zap.String("topic", topic), zap.Error(err))
		return fallback
	}

	var out model.Extraction
	if err := decodeJSON(text, &out); err != nil {
		zap.L().Warn("judge: extraction undecodable", zap.String("topic", topic), zap.Error(err))
		return fallback
	}
	if len(out.MainFacts) == 0 {
		out.MainFacts = []string{fallbackFact}
	}
	out.Confidence = clamp01(out.Confidence)
	out.SourceQuality = clamp01(out.SourceQuality)
	return out
}

var floatPattern = regexp.MustCompile(`\d*\.?\d+`)

// EstimateComplexity rates the topic in [0,1], defaulting to 0.5 when
// the model's answer is missing or unparsable.
func (j *Judge) EstimateComplexity(ctx context.Context, topic string) float64 {
	const fallback = 0.5

	text, err := j.complete(ctx, fmt.Sprintf(complexityPrompt, topic), "complexity")
	if err != nil {
		zap.L().Warn("judge: complexity call failed", zap.String("topic", topic), zap.Error(err))
		return fallback
	}

	match := floatPattern.FindString(text)
	if match == "" {
		zap.L().Warn("judge: complexity unparsable", zap.String("topic", topic), zap.String("response", text))
		return fallback
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return fallback
	}
	return clamp01(v)
}

// AssessAccuracy produces the post-run self-assessment held for later
// human feedback. Failures yield a no-confidence verdict flagged for
// verification rather than a fabricated pass.
func (j *Judge) AssessAccuracy(ctx context.Context, summary *model.ResearchSummary) model.AccuracyAssessment {
	fallback := model.AccuracyAssessment{
		IsAccurate:         false,
		VerificationNeeded: true,
		Concerns:           []string{"self-assessment unavailable"},
	}

	prompt := fmt.Sprintf(accuracyPrompt,
		summary.Topic, summary.QueryType, summary.StopReason,
		summary.TotalSources, strings.Join(summary.MainFacts, "\n"))
	text, err := j.complete(ctx, prompt, "accuracy")
	if err != nil {
		zap.L().Warn("judge: accuracy call failed", zap.String("topic", summary.Topic), zap.Error(err))
		return fallback
	}

	var out model.AccuracyAssessment
	if err := decodeJSON(text, &out); err != nil {
		zap.L().Warn("judge: accuracy undecodable", zap.String("topic", summary.Topic), zap.Error(err))
		return fallback
	}
	out.Confidence = clamp01(out.Confidence)
	out.Completeness = clamp01(out.Completeness)
	return out
}

func (j *Judge) complete(ctx context.Context, prompt, phase string) (string, error) {
	resp, err := j.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     j.model,
		MaxTokens: j.maxTokens,
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	resp.Usage.LogCost(j.model, phase)

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

// fallbackRelevance guesses relevance from content size alone:
// substantial pages are probably on topic, stubs are probably not.
func fallbackRelevance(content string) float64 {
	if len(content) > 100 {
		return 0.5
	}
	return 0
}

func truncate(s string) string {
	if len(s) <= contentLimit {
		return s
	}
	return s[:contentLimit]
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
