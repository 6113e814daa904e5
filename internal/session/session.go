// Package session tracks per-topic research state across rounds and
// across runs, keyed by a normalized form of the topic so retries and
// follow-up feedback land on the same session.
package session

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"

	"github.com/sells-group/research-agent/internal/model"
)

var topicFolder = cases.Fold()

// NormalizeTopic produces the canonical session key for a topic:
// case-folded with runs of whitespace collapsed to single spaces.
func NormalizeTopic(topic string) string {
	return topicFolder.String(strings.Join(strings.Fields(topic), " "))
}

// Session accumulates the sources and facts gathered for one topic.
// Methods are not goroutine-safe; the registry hands each topic's
// session to a single orchestration run at a time.
type Session struct {
	Topic      string
	Complexity float64
	Sources    []model.SourceRecord
	MainFacts  []string
	LastUpdate time.Time

	// Pending holds the agent's self-assessment awaiting a human verdict.
	Pending *model.AccuracyAssessment

	visited map[string]struct{}
	now     func() time.Time
}

func newSession(topic string) *Session {
	return &Session{
		Topic:   topic,
		visited: make(map[string]struct{}),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Visited reports whether the URL was already consulted in this session.
func (s *Session) Visited(rawURL string) bool {
	_, ok := s.visited[rawURL]
	return ok
}

// MarkVisited records the URL so later rounds skip it.
func (s *Session) MarkVisited(rawURL string) {
	s.visited[rawURL] = struct{}{}
	s.LastUpdate = s.now()
}

// RecordSource appends an assessed source and merges its extracted facts.
func (s *Session) RecordSource(rec model.SourceRecord) {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = s.now()
	}
	s.Sources = append(s.Sources, rec)
	s.MainFacts = append(s.MainFacts, rec.Extraction.MainFacts...)
	s.LastUpdate = s.now()
}

// Registry holds active sessions keyed by normalized topic.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// GetOrCreate returns the session for the topic, creating it on first use.
func (r *Registry) GetOrCreate(topic string) *Session {
	key := NormalizeTopic(topic)

	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[key]
	if !ok {
		sess = newSession(topic)
		r.sessions[key] = sess
	}
	return sess
}

// Get returns the session for the topic if one exists.
func (r *Registry) Get(topic string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[NormalizeTopic(topic)]
	return sess, ok
}

// Evict drops the session for the topic. Explicit only; sessions are
// otherwise retained so delayed feedback can still find them.
func (r *Registry) Evict(topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, NormalizeTopic(topic))
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
