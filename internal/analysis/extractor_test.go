package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/flightchat/internal/models"
)

func TestDiscoverFields(t *testing.T) {
	tele := models.Telemetry{
		"messages": map[string]any{
			"GPS_RAW_INT": map[string]any{"satellites_visible": []any{1.0}},
			"SERIES":      map[string]any{"0": 1.0, "1": 2.0},
		},
		"meta": "x",
	}
	assert.Equal(t, []string{
		"messages.GPS_RAW_INT.satellites_visible",
		"messages.SERIES",
		"meta",
	}, DiscoverFields(tele))
}

func TestExtractRelevantDataKeepsHierarchy(t *testing.T) {
	e := NewExtractor(nil, 0)
	out, err := e.ExtractRelevantData(context.Background(), sampleTelemetry(), "How many satellites were visible?", 2, true)
	require.NoError(t, err)

	msgs, ok := out["messages"].(map[string]any)
	require.True(t, ok, "expected nested messages map, got %v", out)
	gps, ok := msgs["GPS_RAW_INT"].(map[string]any)
	require.True(t, ok, "expected GPS_RAW_INT in %v", msgs)
	assert.Contains(t, gps, "satellites_visible")
	assert.LessOrEqual(t, len(DiscoverFields(out)), 2)
}

func TestExtractRelevantDataAltitude(t *testing.T) {
	e := NewExtractor(nil, 0)
	out, err := e.ExtractRelevantData(context.Background(), sampleTelemetry(), "what was the max altitude", 1, true)
	require.NoError(t, err)

	fields := DiscoverFields(out)
	require.Len(t, fields, 1)
	assert.Contains(t, []string{"messages.GLOBAL_POSITION_INT.alt", "messages.GLOBAL_POSITION_INT.relative_alt"}, fields[0])
}

func TestExtractRelevantDataHugeTopK(t *testing.T) {
	e := NewExtractor(nil, 0)
	tele := sampleTelemetry()
	out, err := e.ExtractRelevantData(context.Background(), tele, "altitude", int(4e18), true)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(DiscoverFields(out)), len(DiscoverFields(tele)))
}

func TestExtractRelevantDataEmpty(t *testing.T) {
	e := NewExtractor(nil, 0)
	out, err := e.ExtractRelevantData(context.Background(), models.Telemetry{}, "altitude", 5, false)
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = e.ExtractRelevantData(context.Background(), sampleTelemetry(), "   ", 5, false)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"messages", "gps_raw_int", "gps", "raw", "int"}, Tokens("messages.GPS_RAW_INT"))
	assert.Equal(t, []string{"what", "s", "the", "alt"}, Tokens("What's the ALT?"))
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float64{1, 0}, []float64{2, 0}), 1e-9)
	assert.Zero(t, Cosine([]float64{0, 0}, []float64{1, 0}))
	assert.Zero(t, Cosine([]float64{1}, []float64{1, 2}))
}
