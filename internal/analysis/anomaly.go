package analysis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/miradorstack/flightchat/internal/llm"
	"github.com/miradorstack/flightchat/internal/models"
	"github.com/miradorstack/flightchat/internal/prompt"
	"github.com/miradorstack/flightchat/internal/utils"
)

// Defaults for the anomaly path.
const (
	AnomalyTopK        = 25
	AnomalyTemperature = 0.2
	AnomalyMaxTokens   = 512
)

// Completer runs one LLM completion.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts llm.Options) (string, error)
}

// IntentClassifier decides whether a question asks about anomalies.
type IntentClassifier interface {
	IsAnomalyQuestion(question string) bool
}

// AnomalyConfig tunes the anomaly analyzer.
type AnomalyConfig struct {
	TopK    int
	Options llm.Options
}

// AnomalyAnalyzer answers anomaly questions with an LLM call over metrics, rule
// hits and the extracted telemetry fields.
type AnomalyAnalyzer struct {
	intent    IntentClassifier
	extractor *Extractor
	metrics   *MetricsEngine
	llm       Completer
	cfg       AnomalyConfig
	logger    *slog.Logger
}

// NewAnomalyAnalyzer wires the analyzer's collaborators.
func NewAnomalyAnalyzer(intent IntentClassifier, extractor *Extractor, metricsEngine *MetricsEngine, completer Completer, cfg AnomalyConfig, logger *slog.Logger) *AnomalyAnalyzer {
	if cfg.TopK <= 0 {
		cfg.TopK = AnomalyTopK
	}
	if cfg.Options.MaxTokens <= 0 {
		cfg.Options = llm.Options{Temperature: AnomalyTemperature, MaxTokens: AnomalyMaxTokens}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnomalyAnalyzer{
		intent:    intent,
		extractor: extractor,
		metrics:   metricsEngine,
		llm:       completer,
		cfg:       cfg,
		logger:    logger,
	}
}

// AnalyseQuery returns the raw LLM answer and found=true for anomaly questions.
// Other questions return found=false without any LLM call.
func (a *AnomalyAnalyzer) AnalyseQuery(ctx context.Context, question string, telemetry models.Telemetry) (string, bool, error) {
	if telemetry.Empty() || !a.intent.IsAnomalyQuestion(question) {
		return "", false, nil
	}

	extracted, err := a.extractor.ExtractRelevantData(ctx, telemetry, question, a.cfg.TopK, true)
	if err != nil {
		return "", false, &utils.AppError{Op: "anomaly.extract", Msg: "extract relevant fields", Err: err}
	}
	summary, err := a.metrics.ComputeMetrics(ctx, telemetry)
	if err != nil {
		return "", false, &utils.AppError{Op: "anomaly.metrics", Msg: "compute metrics", Err: err}
	}
	flags := HighlightAnomalies(telemetry)
	a.logger.Debug("anomaly context prepared", "fields", len(DiscoverFields(extracted)), "metrics", len(summary), "flags", len(flags))

	text, err := a.llm.Complete(ctx, prompt.BuildAnomalyPrompt(question, extracted, summary, flags), a.cfg.Options)
	if err != nil {
		return "", false, &utils.AppError{Op: "anomaly.llm", Msg: "anomaly completion", Err: err}
	}
	if text == "" {
		return "", false, fmt.Errorf("anomaly completion: %w", llm.ErrEmptyCompletion)
	}
	return text, true, nil
}
