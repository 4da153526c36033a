package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/flightchat/internal/classify"
	"github.com/miradorstack/flightchat/internal/conversation"
	"github.com/miradorstack/flightchat/internal/llm"
	"github.com/miradorstack/flightchat/internal/models"
	"github.com/miradorstack/flightchat/internal/prompt"
	"github.com/miradorstack/flightchat/internal/utils"
)

type fakeAnomaly struct {
	calls int
	raw   string
	found bool
	err   error
}

func (f *fakeAnomaly) AnalyseQuery(context.Context, string, models.Telemetry) (string, bool, error) {
	f.calls++
	return f.raw, f.found, f.err
}

type fakeExtractor struct {
	calls int
	topK  int
	rr    bool
	out   models.Telemetry
}

func (f *fakeExtractor) ExtractRelevantData(_ context.Context, _ models.Telemetry, _ string, topK int, rerank bool) (models.Telemetry, error) {
	f.calls++
	f.topK, f.rr = topK, rerank
	return f.out, nil
}

type fakeMetrics struct {
	calls int
	input models.Telemetry
	err   error
}

func (f *fakeMetrics) ComputeMetrics(_ context.Context, t models.Telemetry) (map[string]any, error) {
	f.calls++
	f.input = t
	if f.err != nil {
		return nil, f.err
	}
	return map[string]any{"altitude_max": 42.0}, nil
}

type fakeLLM struct {
	mu      sync.Mutex
	prompts []string
	opts    []llm.Options
	reply   string
	err     error
}

func (f *fakeLLM) Complete(_ context.Context, p string, opts llm.Options) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, p)
	f.opts = append(f.opts, opts)
	return f.reply, f.err
}

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type fakeRecorder struct {
	exchanges []models.Exchange
}

func (f *fakeRecorder) Record(_ context.Context, e models.Exchange) error {
	f.exchanges = append(f.exchanges, e)
	return nil
}

type fixture struct {
	anomaly   *fakeAnomaly
	extractor *fakeExtractor
	metrics   *fakeMetrics
	llm       *fakeLLM
	recorder  *fakeRecorder
	store     *conversation.Store
	orch      *Orchestrator
}

func newFixture() *fixture {
	f := &fixture{
		anomaly:   &fakeAnomaly{},
		extractor: &fakeExtractor{out: models.Telemetry{"messages": map[string]any{"GLOBAL_POSITION_INT": map[string]any{"alt": []any{1000.0}}}}},
		metrics:   &fakeMetrics{},
		llm:       &fakeLLM{reply: "<answer>It peaked at 42 m.</answer>\n<suggested_questions>\n1. What was the min altitude?\n2. How long was the flight?\n</suggested_questions>"},
		recorder:  &fakeRecorder{},
		store:     conversation.NewStore(conversation.DefaultCapacity, time.Hour),
	}
	f.orch = NewOrchestrator(Dependencies{
		Sessions:    f.store,
		Classifier:  classify.New(classify.DefaultVocabulary()),
		Anomaly:     f.anomaly,
		Extractor:   f.extractor,
		Metrics:     f.metrics,
		LLM:         f.llm,
		Transcripts: f.recorder,
	}, DefaultConfig(), nil)
	return f
}

func telemetry() models.Telemetry {
	return models.Telemetry{"messages": map[string]any{"GLOBAL_POSITION_INT": map[string]any{"alt": []any{1000.0, 42000.0}}}}
}

func TestProcessMetricPath(t *testing.T) {
	f := newFixture()

	resp, err := f.orch.Process(context.Background(), models.ChatRequest{Question: "What was the max altitude?", Telemetry: telemetry()})
	require.NoError(t, err)

	assert.Equal(t, models.PathMetric, resp.Path)
	assert.Equal(t, conversation.DefaultSessionID, resp.SessionID)
	assert.Equal(t, "It peaked at 42 m.", resp.Answer)
	assert.Equal(t, []string{"What was the min altitude?", "How long was the flight?"}, resp.SuggestedQuestions)

	assert.Equal(t, 1, f.anomaly.calls)
	assert.Equal(t, 1, f.extractor.calls)
	assert.Equal(t, 1, f.metrics.calls)
	assert.Equal(t, 1, f.llm.calls())
	assert.Equal(t, 5, f.extractor.topK)
	assert.True(t, f.extractor.rr)
	assert.Equal(t, f.extractor.out, f.metrics.input, "metrics run over the extracted slice")
	assert.Equal(t, llm.Options{Temperature: 0.7, MaxTokens: 1000}, f.llm.opts[0])
	assert.Contains(t, f.llm.prompts[0], "## Pre-computed Metrics")
	assert.Contains(t, f.llm.prompts[0], "User: What was the max altitude?")

	tail := f.store.Session("").Tail(2)
	require.Len(t, tail, 2)
	assert.Equal(t, conversation.Turn{Role: conversation.RoleAssistant, Content: "It peaked at 42 m."}, tail[1])
}

func TestProcessGeneralPathWithoutTelemetry(t *testing.T) {
	f := newFixture()

	resp, err := f.orch.Process(context.Background(), models.ChatRequest{Question: "Hello, how are you?"})
	require.NoError(t, err)

	assert.Equal(t, models.PathGeneral, resp.Path)
	assert.Zero(t, f.anomaly.calls)
	assert.Zero(t, f.extractor.calls)
	assert.Zero(t, f.metrics.calls)
	assert.Equal(t, 1, f.llm.calls())
	assert.NotContains(t, f.llm.prompts[0], "## Pre-computed Metrics")
}

func TestProcessGeneralPathForNonDomainQuestion(t *testing.T) {
	f := newFixture()

	resp, err := f.orch.Process(context.Background(), models.ChatRequest{Question: "Tell me a joke", Telemetry: telemetry()})
	require.NoError(t, err)
	assert.Equal(t, models.PathGeneral, resp.Path)
	assert.Zero(t, f.extractor.calls)
	assert.Equal(t, 1, f.llm.calls())
}

func TestProcessAnomalyPathSkipsLLM(t *testing.T) {
	f := newFixture()
	f.anomaly.found = true
	f.anomaly.raw = "<answer>Roll spiked at 12 s.</answer><suggested_questions>- Was pitch affected?</suggested_questions>"

	resp, err := f.orch.Process(context.Background(), models.ChatRequest{Question: "Any anomalies in the altitude?", Telemetry: telemetry()})
	require.NoError(t, err)

	assert.Equal(t, models.PathAnomaly, resp.Path)
	assert.Equal(t, "Roll spiked at 12 s.", resp.Answer)
	assert.Equal(t, []string{"Was pitch affected?"}, resp.SuggestedQuestions)
	assert.Zero(t, f.llm.calls())
	assert.Zero(t, f.extractor.calls)
	assert.Zero(t, f.metrics.calls)
}

func TestProcessAnomalyUnstructuredFallsBack(t *testing.T) {
	f := newFixture()
	f.anomaly.found = true
	f.anomaly.raw = "  No anomalies detected.  "

	resp, err := f.orch.Process(context.Background(), models.ChatRequest{Question: "any errors?", Telemetry: telemetry()})
	require.NoError(t, err)
	assert.Equal(t, models.PathAnomaly, resp.Path)
	assert.Equal(t, "No anomalies detected.", resp.Answer)
	assert.Empty(t, resp.SuggestedQuestions)
}

func TestProcessBlankAnomalyOutcomeFallsThrough(t *testing.T) {
	f := newFixture()
	f.anomaly.found = true
	f.anomaly.raw = "   "

	resp, err := f.orch.Process(context.Background(), models.ChatRequest{Question: "max altitude?", Telemetry: telemetry()})
	require.NoError(t, err)
	assert.Equal(t, models.PathMetric, resp.Path)
}

func TestProcessMemorySlidingWindow(t *testing.T) {
	f := newFixture()
	for i := 1; i <= 10; i++ {
		_, err := f.orch.Process(context.Background(), models.ChatRequest{Question: fmt.Sprintf("question %d", i)})
		require.NoError(t, err)
	}

	memory := f.store.Session("")
	assert.Equal(t, 15, memory.Len())
	for _, turn := range memory.Tail(15) {
		assert.NotEqual(t, "question 1", turn.Content)
	}
}

func TestProcessInjectsRecentHistory(t *testing.T) {
	f := newFixture()
	_, err := f.orch.Process(context.Background(), models.ChatRequest{Question: "first question"})
	require.NoError(t, err)
	_, err = f.orch.Process(context.Background(), models.ChatRequest{Question: "second question"})
	require.NoError(t, err)

	second := f.llm.prompts[1]
	assert.Contains(t, second, prompt.HistoryHeader+"\nUser: first question\nAssistant: It peaked at 42 m.\nUser: second question\n")
}

func TestProcessSessionsAreIsolated(t *testing.T) {
	f := newFixture()
	_, err := f.orch.Process(context.Background(), models.ChatRequest{SessionID: "a", Question: "from a"})
	require.NoError(t, err)
	_, err = f.orch.Process(context.Background(), models.ChatRequest{SessionID: "b", Question: "from b"})
	require.NoError(t, err)

	assert.NotContains(t, f.llm.prompts[1], "from a")
	assert.Equal(t, 2, f.store.Session("a").Len())
}

func TestProcessLLMFailureKeepsUserTurn(t *testing.T) {
	f := newFixture()
	f.llm.err = errors.New("connection reset")

	_, err := f.orch.Process(context.Background(), models.ChatRequest{Question: "hello"})
	require.Error(t, err)
	assert.Equal(t, "chat.llm", utils.OpOf(err))

	tail := f.store.Session("").Tail(5)
	require.Len(t, tail, 1)
	assert.Equal(t, conversation.RoleUser, tail[0].Role)
	assert.Empty(t, f.recorder.exchanges)
}

func TestProcessAnomalyErrorPropagates(t *testing.T) {
	f := newFixture()
	f.anomaly.err = context.DeadlineExceeded

	_, err := f.orch.Process(context.Background(), models.ChatRequest{Question: "any errors?", Telemetry: telemetry()})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "chat.anomaly", utils.OpOf(err))
	assert.Zero(t, f.llm.calls())
}

func TestProcessMetricsFailure(t *testing.T) {
	f := newFixture()
	f.metrics.err = errors.New("bad telemetry")

	_, err := f.orch.Process(context.Background(), models.ChatRequest{Question: "max altitude", Telemetry: telemetry()})
	assert.Equal(t, "chat.metrics", utils.OpOf(err))
	assert.Zero(t, f.llm.calls())
}

func TestProcessUnstructuredLLMOutput(t *testing.T) {
	f := newFixture()
	f.llm.reply = "Just some prose."

	resp, err := f.orch.Process(context.Background(), models.ChatRequest{Question: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Just some prose.", resp.Answer)
	assert.NotNil(t, resp.SuggestedQuestions)
	assert.Empty(t, resp.SuggestedQuestions)
}

func TestProcessRecordsTranscript(t *testing.T) {
	f := newFixture()
	_, err := f.orch.Process(context.Background(), models.ChatRequest{SessionID: "s1", Question: "max altitude?", Telemetry: telemetry()})
	require.NoError(t, err)

	require.Len(t, f.recorder.exchanges, 1)
	ex := f.recorder.exchanges[0]
	assert.Equal(t, "s1", ex.SessionID)
	assert.Equal(t, models.PathMetric, ex.Path)
	assert.True(t, ex.Structured)
}

func TestAnalyse(t *testing.T) {
	f := newFixture()

	resp, err := f.orch.Analyse(context.Background(), models.AnalysisRequest{Telemetry: telemetry(), Hint: "altitude"})
	require.NoError(t, err)
	assert.Equal(t, 42.0, resp.Metrics["altitude_max"])
	assert.Equal(t, f.extractor.out, resp.ExtractedSample)
	assert.Equal(t, 25, f.extractor.topK)
	assert.Zero(t, f.llm.calls())

	resp, err = f.orch.Analyse(context.Background(), models.AnalysisRequest{Telemetry: telemetry()})
	require.NoError(t, err)
	assert.Empty(t, resp.ExtractedSample)
}
