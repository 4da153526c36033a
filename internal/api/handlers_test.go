package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/flightchat/internal/models"
)

func TestFromProtoChatRequest(t *testing.T) {
	req, err := structpb.NewStruct(map[string]any{
		"session_id": "abc",
		"question":   "What was the max altitude?",
		"telemetry": map[string]any{
			"messages": map[string]any{"GPS_RAW_INT": map[string]any{"alt": []any{1.0, 2.0}}},
		},
	})
	require.NoError(t, err)

	domainReq, err := FromProtoChatRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "abc", domainReq.SessionID)
	assert.Equal(t, "What was the max altitude?", domainReq.Question)
	alt, ok := domainReq.Telemetry.Field("GPS_RAW_INT", "alt")
	require.True(t, ok)
	assert.Equal(t, []float64{1, 2}, alt)
}

func TestChatRequestFromMapValidation(t *testing.T) {
	_, err := ChatRequestFromMap(nil)
	assert.Error(t, err)

	_, err = ChatRequestFromMap(map[string]any{"question": ""})
	assert.ErrorContains(t, err, "question cannot be empty")

	_, err = ChatRequestFromMap(map[string]any{"question": 42.0})
	assert.ErrorContains(t, err, "question must be a string")

	_, err = ChatRequestFromMap(map[string]any{"question": "hi", "telemetry": "nope"})
	assert.ErrorContains(t, err, "telemetry must be an object")

	req, err := ChatRequestFromMap(map[string]any{"question": "hi", "telemetry": nil})
	require.NoError(t, err)
	assert.True(t, req.Telemetry.Empty())
}

func TestToProtoChatResponse(t *testing.T) {
	out, err := ToProtoChatResponse(models.ChatResponse{
		Answer:             "answer",
		SuggestedQuestions: []string{"a?", "b?"},
		Path:               models.PathAnomaly,
		SessionID:          "default",
	})
	require.NoError(t, err)

	fields := out.AsMap()
	assert.Equal(t, "answer", fields["answer"])
	assert.Equal(t, []any{"a?", "b?"}, fields["suggested_questions"])
	assert.Equal(t, "anomaly", fields["path"])
	assert.Equal(t, "default", fields["session_id"])
}

func TestToProtoChatResponseEmptySuggestions(t *testing.T) {
	out, err := ToProtoChatResponse(models.ChatResponse{Answer: "plain", Path: models.PathGeneral})
	require.NoError(t, err)
	assert.Equal(t, []any{}, out.AsMap()["suggested_questions"])
}

func TestAnalysisRequestFromMap(t *testing.T) {
	_, err := AnalysisRequestFromMap(map[string]any{"hint": "altitude"})
	assert.ErrorContains(t, err, "telemetry payload missing")

	_, err = AnalysisRequestFromMap(map[string]any{"telemetry": map[string]any{"a": 1.0}, "top_k": -1.0})
	assert.ErrorContains(t, err, "top_k")

	_, err = AnalysisRequestFromMap(map[string]any{"telemetry": map[string]any{"a": 1.0}, "top_k": 4e18})
	assert.ErrorContains(t, err, "top_k")

	req, err := AnalysisRequestFromMap(map[string]any{"telemetry": map[string]any{"a": 1.0}, "hint": "battery", "top_k": 7.0})
	require.NoError(t, err)
	assert.Equal(t, "battery", req.Hint)
	assert.Equal(t, 7, req.TopK)
}

func TestToProtoAnalysisResponseNormalisesValues(t *testing.T) {
	out, err := ToProtoAnalysisResponse(models.AnalysisResponse{
		Metrics: map[string]any{"altitude_max": 12.5, "samples": 3},
		ExtractedSample: models.Telemetry{
			"messages": map[string]any{"ATTITUDE": map[string]any{"roll": []float64{0.1, 0.2}}},
		},
	})
	require.NoError(t, err)

	fields := out.AsMap()
	computed := fields["metrics"].(map[string]any)
	assert.Equal(t, 12.5, computed["altitude_max"])
	assert.Equal(t, 3.0, computed["samples"])
	roll := fields["extracted_sample"].(map[string]any)["messages"].(map[string]any)["ATTITUDE"].(map[string]any)["roll"]
	assert.Equal(t, []any{0.1, 0.2}, roll)
}

func TestToProtoAnalysisResponseNilMaps(t *testing.T) {
	out, err := ToProtoAnalysisResponse(models.AnalysisResponse{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, out.AsMap()["metrics"])
	assert.Equal(t, map[string]any{}, out.AsMap()["extracted_sample"])
}
