package main

import (
	"fmt"
	"log/slog"

	"github.com/miradorstack/flightchat/internal/analysis"
	"github.com/miradorstack/flightchat/internal/cache"
	"github.com/miradorstack/flightchat/internal/classify"
	"github.com/miradorstack/flightchat/internal/config"
	"github.com/miradorstack/flightchat/internal/conversation"
	"github.com/miradorstack/flightchat/internal/engine"
	"github.com/miradorstack/flightchat/internal/llm"
	"github.com/miradorstack/flightchat/internal/repo"
)

// app holds the wired collaborators shared by serve and ask.
type app struct {
	gateway      *llm.Gateway
	classifier   *classify.Classifier
	sessions     *conversation.Store
	orchestrator *engine.Orchestrator
	cache        cache.Provider
	transcripts  *repo.TranscriptRepo
}

func buildApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	vocab, err := classify.LoadVocabulary(cfg.Classifier.VocabularyPath)
	if err != nil {
		return nil, fmt.Errorf("load vocabulary: %w", err)
	}
	classifier := classify.New(vocab)

	cacheProvider, err := cache.New(cfg.Cache.Provider, cfg.Cache.MaxEntries, cfg.Cache.MetricsTTL)
	if err != nil {
		return nil, err
	}

	gateway := llm.NewGateway(llm.Settings{
		Provider:          cfg.LLM.Provider,
		BaseURL:           cfg.LLM.BaseURL,
		Model:             cfg.LLM.Model,
		APIKey:            cfg.LLM.APIKey,
		Timeout:           cfg.LLM.Timeout,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		Burst:             cfg.LLM.Burst,
	}, llm.WithLogger(logger))

	extractor := analysis.NewExtractor(analysis.NewHashingEmbedder(0), cfg.Chat.ExtractorThreshold)
	metricsEngine := analysis.NewMetricsEngine(cacheProvider, cfg.Cache.MetricsTTL, logger)
	sessions := conversation.NewStore(cfg.Chat.HistoryCapacity, cfg.Chat.SessionIdleTTL)

	deps := engine.Dependencies{
		Sessions:   sessions,
		Classifier: classifier,
		Extractor:  extractor,
		Metrics:    metricsEngine,
		LLM:        gateway,
	}
	if cfg.Anomaly.Enabled {
		deps.Anomaly = analysis.NewAnomalyAnalyzer(classifier, extractor, metricsEngine, gateway, analysis.AnomalyConfig{
			TopK:    cfg.Anomaly.TopK,
			Options: llm.Options{Temperature: cfg.Anomaly.Temperature, MaxTokens: cfg.Anomaly.MaxTokens},
		}, logger)
	}

	a := &app{gateway: gateway, classifier: classifier, sessions: sessions, cache: cacheProvider}
	if cfg.Archive.Enabled {
		transcripts, err := repo.OpenTranscripts(cfg.Archive.Path)
		if err != nil {
			_ = cacheProvider.Close()
			return nil, fmt.Errorf("open transcript archive: %w", err)
		}
		a.transcripts = transcripts
		deps.Transcripts = transcripts
	}

	a.orchestrator = engine.NewOrchestrator(deps, engine.Config{
		MetricTopK:          cfg.Chat.MetricTopK,
		Rerank:              cfg.Chat.Rerank,
		Options:             llm.Options{Temperature: cfg.Chat.Temperature, MaxTokens: cfg.Chat.MaxTokens},
		CollaboratorTimeout: cfg.Chat.CollaboratorTimeout,
	}, logger)
	return a, nil
}

func (a *app) Close() {
	if a.transcripts != nil {
		_ = a.transcripts.Close()
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
}
