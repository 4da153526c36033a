package models

import "time"

// ReasoningPath names the branch the orchestrator used to answer a question.
type ReasoningPath string

const (
	PathAnomaly ReasoningPath = "anomaly"
	PathMetric  ReasoningPath = "metric"
	PathGeneral ReasoningPath = "general"
)

// ChatRequest is a single user question, optionally with telemetry.
type ChatRequest struct {
	SessionID string
	Question  string
	Telemetry Telemetry
}

// ChatResponse is the orchestrator's reply.
type ChatResponse struct {
	Answer             string
	SuggestedQuestions []string
	Path               ReasoningPath
	SessionID          string
}

// AnalysisRequest asks for metrics and the fields most relevant to Hint, without an LLM call.
type AnalysisRequest struct {
	Telemetry Telemetry
	Hint      string
	TopK      int
}

// AnalysisResponse carries the computed metrics and the extracted telemetry sample.
type AnalysisResponse struct {
	Metrics         map[string]any
	ExtractedSample Telemetry
}

// Exchange is a completed question and answer, recorded by the transcript archive.
type Exchange struct {
	SessionID          string
	Question           string
	Answer             string
	SuggestedQuestions []string
	Path               ReasoningPath
	Structured         bool
	Duration           time.Duration
	CreatedAt          time.Time
}
