package engine

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/miradorstack/flightchat/internal/conversation"
	"github.com/miradorstack/flightchat/internal/llm"
	"github.com/miradorstack/flightchat/internal/metrics"
	"github.com/miradorstack/flightchat/internal/models"
	"github.com/miradorstack/flightchat/internal/prompt"
	"github.com/miradorstack/flightchat/internal/response"
	"github.com/miradorstack/flightchat/internal/tracing"
	"github.com/miradorstack/flightchat/internal/utils"
)

// AnomalyAnalyzer explains anomalies in telemetry. found is false when the question is not about anomalies.
type AnomalyAnalyzer interface {
	AnalyseQuery(ctx context.Context, question string, telemetry models.Telemetry) (raw string, found bool, err error)
}

// DataExtractor selects the telemetry fields relevant to a question.
type DataExtractor interface {
	ExtractRelevantData(ctx context.Context, telemetry models.Telemetry, question string, topK int, rerank bool) (models.Telemetry, error)
}

// MetricsComputer summarises telemetry into flight-level metrics.
type MetricsComputer interface {
	ComputeMetrics(ctx context.Context, telemetry models.Telemetry) (map[string]any, error)
}

// Completer runs one LLM completion.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts llm.Options) (string, error)
}

// QuestionClassifier decides whether a question concerns flight telemetry.
type QuestionClassifier interface {
	IsDomainQuestion(question string) bool
}

// TranscriptRecorder archives completed exchanges.
type TranscriptRecorder interface {
	Record(ctx context.Context, exchange models.Exchange) error
}

// Config tunes the orchestrator.
type Config struct {
	MetricTopK          int
	Rerank              bool
	Options             llm.Options
	CollaboratorTimeout time.Duration
}

// DefaultConfig returns the standard metric/general path settings.
func DefaultConfig() Config {
	return Config{
		MetricTopK:          5,
		Rerank:              true,
		Options:             llm.Options{Temperature: 0.7, MaxTokens: 1000},
		CollaboratorTimeout: 20 * time.Second,
	}
}

// Dependencies are the orchestrator's collaborators. Anomaly and Transcripts may be nil.
type Dependencies struct {
	Sessions    *conversation.Store
	Classifier  QuestionClassifier
	Anomaly     AnomalyAnalyzer
	Extractor   DataExtractor
	Metrics     MetricsComputer
	LLM         Completer
	Transcripts TranscriptRecorder
}

// Orchestrator routes a question through the anomaly, metric or general path.
type Orchestrator struct {
	deps   Dependencies
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewOrchestrator constructs an orchestrator. Zero config fields take their defaults.
func NewOrchestrator(deps Dependencies, cfg Config, logger *slog.Logger) *Orchestrator {
	def := DefaultConfig()
	if cfg.MetricTopK <= 0 {
		cfg.MetricTopK = def.MetricTopK
	}
	if cfg.Options.MaxTokens <= 0 {
		cfg.Options.MaxTokens = def.Options.MaxTokens
	}
	if cfg.CollaboratorTimeout <= 0 {
		cfg.CollaboratorTimeout = def.CollaboratorTimeout
	}
	if deps.Sessions == nil {
		deps.Sessions = conversation.NewStore(conversation.DefaultCapacity, 0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{deps: deps, cfg: cfg, logger: logger, now: time.Now}
}

// Sessions exposes the conversation store.
func (o *Orchestrator) Sessions() *conversation.Store { return o.deps.Sessions }

// Process answers one question. The user turn is always remembered; the assistant
// turn is remembered only when an answer is produced.
func (o *Orchestrator) Process(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error) {
	start := o.now()
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = conversation.DefaultSessionID
	}

	ctx, span := tracing.StartSpan(ctx, "chat.process", attribute.String("chat.session_id", sessionID))
	defer span.End()

	memory := o.deps.Sessions.Session(sessionID)
	memory.Append(conversation.RoleUser, req.Question)
	metrics.SetActiveSessions(o.deps.Sessions.Len())

	hasTelemetry := !req.Telemetry.Empty()
	in := DecisionInput{HasTelemetry: hasTelemetry}

	var anomalyRaw string
	if hasTelemetry && o.deps.Anomaly != nil {
		raw, found, err := o.analyseAnomaly(ctx, req)
		if err != nil {
			return models.ChatResponse{}, o.fail(span, models.PathAnomaly, start, err)
		}
		anomalyRaw = strings.TrimSpace(raw)
		in.AnomalyOutcome = found && anomalyRaw != ""
	}
	if hasTelemetry && !in.AnomalyOutcome && o.deps.Classifier != nil {
		in.DomainQuestion = o.deps.Classifier.IsDomainQuestion(req.Question)
	}

	path := Decide(in)
	span.SetAttributes(attribute.String("chat.path", string(path)))

	var raw string
	switch path {
	case models.PathAnomaly:
		raw = anomalyRaw
	case models.PathMetric:
		p, err := o.metricPrompt(ctx, req)
		if err != nil {
			return models.ChatResponse{}, o.fail(span, path, start, err)
		}
		if raw, err = o.complete(ctx, p, memory); err != nil {
			return models.ChatResponse{}, o.fail(span, path, start, err)
		}
	default:
		var err error
		if raw, err = o.complete(ctx, prompt.BuildGeneralPrompt(req.Question), memory); err != nil {
			return models.ChatResponse{}, o.fail(span, path, start, err)
		}
	}

	result := response.Extract(raw)
	if !result.Structured {
		metrics.ObserveParseFallback(result.Reason)
		o.logger.Debug("llm response fell back to raw text", "path", path, "reason", result.Reason)
	}
	memory.Append(conversation.RoleAssistant, result.Answer)

	elapsed := o.now().Sub(start)
	metrics.ObserveChat(string(path), elapsed, metrics.OutcomeSuccess)
	o.logger.Info("chat answered", "session_id", sessionID, "path", path, "duration", elapsed, "structured", result.Structured)

	o.record(ctx, models.Exchange{
		SessionID:          sessionID,
		Question:           req.Question,
		Answer:             result.Answer,
		SuggestedQuestions: result.SuggestedQuestions,
		Path:               path,
		Structured:         result.Structured,
		Duration:           elapsed,
		CreatedAt:          start,
	})

	return models.ChatResponse{
		Answer:             result.Answer,
		SuggestedQuestions: result.SuggestedQuestions,
		Path:               path,
		SessionID:          sessionID,
	}, nil
}

// Analyse computes metrics and an extracted sample for a hint without calling the LLM.
func (o *Orchestrator) Analyse(ctx context.Context, req models.AnalysisRequest) (models.AnalysisResponse, error) {
	topK := req.TopK
	if topK <= 0 {
		topK = 25
	}

	cctx, cancel := context.WithTimeout(ctx, o.cfg.CollaboratorTimeout)
	defer cancel()

	computed, err := o.deps.Metrics.ComputeMetrics(cctx, req.Telemetry)
	if err != nil {
		return models.AnalysisResponse{}, &utils.AppError{Op: "analysis.metrics", Msg: "compute metrics", Err: err}
	}
	sample := models.Telemetry{}
	if strings.TrimSpace(req.Hint) != "" {
		sample, err = o.deps.Extractor.ExtractRelevantData(cctx, req.Telemetry, req.Hint, topK, true)
		if err != nil {
			return models.AnalysisResponse{}, &utils.AppError{Op: "analysis.extract", Msg: "extract relevant telemetry", Err: err}
		}
	}
	return models.AnalysisResponse{Metrics: computed, ExtractedSample: sample}, nil
}

func (o *Orchestrator) analyseAnomaly(ctx context.Context, req models.ChatRequest) (string, bool, error) {
	cctx, cancel := context.WithTimeout(ctx, o.cfg.CollaboratorTimeout)
	defer cancel()

	raw, found, err := o.deps.Anomaly.AnalyseQuery(cctx, req.Question, req.Telemetry)
	if err != nil {
		return "", false, &utils.AppError{Op: "chat.anomaly", Msg: "anomaly analysis", Err: err}
	}
	return raw, found, nil
}

func (o *Orchestrator) metricPrompt(ctx context.Context, req models.ChatRequest) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, o.cfg.CollaboratorTimeout)
	defer cancel()

	extracted, err := o.deps.Extractor.ExtractRelevantData(cctx, req.Telemetry, req.Question, o.cfg.MetricTopK, o.cfg.Rerank)
	if err != nil {
		return "", &utils.AppError{Op: "chat.extract", Msg: "extract relevant telemetry", Err: err}
	}
	computed, err := o.deps.Metrics.ComputeMetrics(cctx, extracted)
	if err != nil {
		return "", &utils.AppError{Op: "chat.metrics", Msg: "compute metrics", Err: err}
	}
	return prompt.BuildMetricPrompt(req.Question, extracted, computed), nil
}

func (o *Orchestrator) complete(ctx context.Context, p string, memory *conversation.Memory) (string, error) {
	p = prompt.InjectHistory(p, memory.Tail(prompt.HistoryTurns))
	raw, err := o.deps.LLM.Complete(ctx, p, o.cfg.Options)
	if err != nil {
		return "", &utils.AppError{Op: "chat.llm", Msg: "llm completion", Err: err}
	}
	return raw, nil
}

func (o *Orchestrator) record(ctx context.Context, exchange models.Exchange) {
	if o.deps.Transcripts == nil {
		return
	}
	if err := o.deps.Transcripts.Record(context.WithoutCancel(ctx), exchange); err != nil {
		o.logger.Warn("transcript record failed", "session_id", exchange.SessionID, "error", err)
	}
}

func (o *Orchestrator) fail(span trace.Span, path models.ReasoningPath, start time.Time, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, utils.OpOf(err))
	metrics.ObserveChat(string(path), o.now().Sub(start), metrics.OutcomeError)
	o.logger.Error("chat failed", "path", path, "op", utils.OpOf(err), "error", err)
	return err
}
