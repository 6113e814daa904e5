package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/research-agent/internal/classify"
	"github.com/sells-group/research-agent/internal/hosts"
	"github.com/sells-group/research-agent/internal/memory"
	"github.com/sells-group/research-agent/internal/model"
	"github.com/sells-group/research-agent/internal/policy"
	"github.com/sells-group/research-agent/internal/rank"
	"github.com/sells-group/research-agent/internal/research"
	"github.com/sells-group/research-agent/internal/session"
)

type fakeSearcher struct{}

func (fakeSearcher) Search(context.Context, string) (string, error) {
	return "https://a.example/one https://b.example/two", nil
}

type fakeFetcher struct{}

func (fakeFetcher) Fetch(_ context.Context, url string) (string, float64) {
	return "content from " + url, 0.1
}

type fakeJudge struct{}

func (fakeJudge) Assess(context.Context, string, string) model.Assessment {
	return model.Assessment{Relevance: 0.9, Confidence: 0.9, FoundData: "an answer"}
}

func (fakeJudge) Extract(context.Context, string, string) model.Extraction {
	return model.Extraction{MainFacts: []string{"a fact"}, Confidence: 0.8, SourceQuality: 0.8}
}

func (fakeJudge) EstimateComplexity(context.Context, string) float64 { return 0.2 }

func (fakeJudge) AssessAccuracy(context.Context, *model.ResearchSummary) model.AccuracyAssessment {
	return model.AccuracyAssessment{IsAccurate: true, Confidence: 0.8}
}

func newTestEnv(t *testing.T) *agentEnv {
	t.Helper()

	classifier, err := classify.New()
	require.NoError(t, err)

	mem := memory.Open(context.Background(),
		memory.NewFileLedger(filepath.Join(t.TempDir(), "memory.json")))
	sessions := session.NewRegistry()

	orch := research.New(research.Deps{
		Classifier: classifier,
		Memory:     mem,
		Ranker:     rank.New(mem),
		Sessions:   sessions,
		Policy:     policy.New(),
		Searcher:   fakeSearcher{},
		Fetcher:    fakeFetcher{},
		Assessor:   fakeJudge{},
		Extractor:  fakeJudge{},
		Complexity: fakeJudge{},
		Accuracy:   fakeJudge{},
		Hosts:      hosts.Open(filepath.Join(t.TempDir(), "hosts.txt")),
	})

	return &agentEnv{Memory: mem, Sessions: sessions, Orchestrator: orch}
}

func TestServeHealth(t *testing.T) {
	srv := httptest.NewServer(newRouter(newTestEnv(t)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServeResearch(t *testing.T) {
	srv := httptest.NewServer(newRouter(newTestEnv(t)))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/research", "application/json",
		strings.NewReader(`{"topic":"test topic"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServeResearchMissingTopic(t *testing.T) {
	srv := httptest.NewServer(newRouter(newTestEnv(t)))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/research", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServeFeedbackFlow(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(newRouter(env))
	defer srv.Close()

	// Feedback before any run finds no pending assessment.
	resp, err := http.Post(srv.URL+"/feedback", "application/json",
		strings.NewReader(`{"topic":"test topic","accurate":true}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/research", "application/json",
		strings.NewReader(`{"topic":"test topic"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/feedback", "application/json",
		strings.NewReader(`{"topic":"test topic","accurate":true,"notes":"good"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServeSourcesAndStats(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(newRouter(env))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/research", "application/json",
		strings.NewReader(`{"topic":"test topic"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/sources?query_type=general")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp2, err := http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}
