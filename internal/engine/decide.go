package engine

import "github.com/miradorstack/flightchat/internal/models"

// DecisionInput holds the signals that select a reasoning path.
type DecisionInput struct {
	HasTelemetry   bool
	AnomalyOutcome bool
	DomainQuestion bool
}

// Decide picks the reasoning path. Anomaly wins over metric, metric over general,
// and both telemetry paths require telemetry.
func Decide(in DecisionInput) models.ReasoningPath {
	switch {
	case in.HasTelemetry && in.AnomalyOutcome:
		return models.PathAnomaly
	case in.HasTelemetry && in.DomainQuestion:
		return models.PathMetric
	default:
		return models.PathGeneral
	}
}
