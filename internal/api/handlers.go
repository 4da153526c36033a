package api

import (
	"fmt"
	"math"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/flightchat/internal/models"
)

// Wire field names shared by the gRPC and REST transports.
const (
	FieldSessionID          = "session_id"
	FieldQuestion           = "question"
	FieldTelemetry          = "telemetry"
	FieldAnswer             = "answer"
	FieldSuggestedQuestions = "suggested_questions"
	FieldPath               = "path"
	FieldHint               = "hint"
	FieldTopK               = "top_k"
	FieldMetrics            = "metrics"
	FieldExtractedSample    = "extracted_sample"
	FieldRemoved            = "removed"
)

// ChatRequestFromMap maps a decoded JSON object into a domain ChatRequest.
func ChatRequestFromMap(m map[string]any) (models.ChatRequest, error) {
	if m == nil {
		return models.ChatRequest{}, fmt.Errorf("request is nil")
	}
	question, err := optionalString(m, FieldQuestion)
	if err != nil {
		return models.ChatRequest{}, err
	}
	if strings.TrimSpace(question) == "" {
		return models.ChatRequest{}, fmt.Errorf("question cannot be empty")
	}
	sessionID, err := optionalString(m, FieldSessionID)
	if err != nil {
		return models.ChatRequest{}, err
	}
	telemetry, err := optionalObject(m, FieldTelemetry)
	if err != nil {
		return models.ChatRequest{}, err
	}
	return models.ChatRequest{
		SessionID: sessionID,
		Question:  question,
		Telemetry: telemetry,
	}, nil
}

// FromProtoChatRequest maps the gRPC request struct into a domain ChatRequest.
func FromProtoChatRequest(req *structpb.Struct) (models.ChatRequest, error) {
	if req == nil {
		return models.ChatRequest{}, fmt.Errorf("request is nil")
	}
	return ChatRequestFromMap(req.AsMap())
}

// ChatResponseToMap converts a domain response into its wire object.
func ChatResponseToMap(resp models.ChatResponse) map[string]any {
	suggestions := make([]any, 0, len(resp.SuggestedQuestions))
	for _, q := range resp.SuggestedQuestions {
		suggestions = append(suggestions, q)
	}
	return map[string]any{
		FieldAnswer:             resp.Answer,
		FieldSuggestedQuestions: suggestions,
		FieldPath:               string(resp.Path),
		FieldSessionID:          resp.SessionID,
	}
}

// ToProtoChatResponse converts a domain response into the gRPC representation.
func ToProtoChatResponse(resp models.ChatResponse) (*structpb.Struct, error) {
	return structpb.NewStruct(ChatResponseToMap(resp))
}

// MaxTopK is the largest top_k an analysis request may ask for.
const MaxTopK = 500

// AnalysisRequestFromMap maps a decoded JSON object into a domain AnalysisRequest.
func AnalysisRequestFromMap(m map[string]any) (models.AnalysisRequest, error) {
	if m == nil {
		return models.AnalysisRequest{}, fmt.Errorf("request is nil")
	}
	telemetry, err := optionalObject(m, FieldTelemetry)
	if err != nil {
		return models.AnalysisRequest{}, err
	}
	if telemetry.Empty() {
		return models.AnalysisRequest{}, fmt.Errorf("telemetry payload missing")
	}
	hint, err := optionalString(m, FieldHint)
	if err != nil {
		return models.AnalysisRequest{}, err
	}
	req := models.AnalysisRequest{Telemetry: telemetry, Hint: hint}
	if raw, ok := m[FieldTopK]; ok && raw != nil {
		n, ok := models.Number(raw)
		if !ok || math.IsNaN(n) || n < 0 || n > MaxTopK {
			return models.AnalysisRequest{}, fmt.Errorf("%s must be a number between 0 and %d", FieldTopK, MaxTopK)
		}
		req.TopK = int(n)
	}
	return req, nil
}

// FromProtoAnalysisRequest maps the gRPC request struct into a domain AnalysisRequest.
func FromProtoAnalysisRequest(req *structpb.Struct) (models.AnalysisRequest, error) {
	if req == nil {
		return models.AnalysisRequest{}, fmt.Errorf("request is nil")
	}
	return AnalysisRequestFromMap(req.AsMap())
}

// AnalysisResponseToMap converts an analysis result into its wire object.
func AnalysisResponseToMap(resp models.AnalysisResponse) map[string]any {
	computed := resp.Metrics
	if computed == nil {
		computed = map[string]any{}
	}
	sample := map[string]any(resp.ExtractedSample)
	if sample == nil {
		sample = map[string]any{}
	}
	return map[string]any{
		FieldMetrics:         computed,
		FieldExtractedSample: sample,
	}
}

// ToProtoAnalysisResponse converts an analysis result into the gRPC representation.
// Values are normalised through structpb so typed slices from the extractor are accepted.
func ToProtoAnalysisResponse(resp models.AnalysisResponse) (*structpb.Struct, error) {
	return structpb.NewStruct(normalise(AnalysisResponseToMap(resp)).(map[string]any))
}

// SessionIDFromProto reads the session id of a ResetSession request.
func SessionIDFromProto(req *structpb.Struct) (string, error) {
	if req == nil {
		return "", fmt.Errorf("request is nil")
	}
	return optionalString(req.AsMap(), FieldSessionID)
}

func optionalString(m map[string]any, key string) (string, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", key)
	}
	return s, nil
}

func optionalObject(m map[string]any, key string) (models.Telemetry, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return nil, nil
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s must be an object", key)
	}
	return models.Telemetry(obj), nil
}

// normalise rewrites typed slices and maps into the []any / map[string]any
// shapes structpb accepts.
func normalise(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalise(item)
		}
		return out
	case models.Telemetry:
		return normalise(map[string]any(val))
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalise(item)
		}
		return out
	case []float64:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = item
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = item
		}
		return out
	case int:
		return float64(val)
	default:
		return v
	}
}
