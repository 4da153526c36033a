package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicClientComplete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"), r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-0",
			"content": [{"type": "text", "text": "<answer>ok</answer>"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 3, "output_tokens": 2}
		}`))
	}))
	defer srv.Close()

	client := NewAnthropicClient(srv.URL, "secret", srv.Client())
	text, err := client.Complete(context.Background(), CompletionRequest{
		Model:       DefaultAnthropicModel,
		Messages:    []Message{{Role: "user", Content: "hi"}},
		Temperature: 0.2,
		MaxTokens:   500,
	})

	require.NoError(t, err)
	assert.Equal(t, "<answer>ok</answer>", text)
	assert.Equal(t, DefaultAnthropicModel, body["model"])
	assert.EqualValues(t, 500, body["max_tokens"])
	assert.EqualValues(t, 0.2, body["temperature"])
}

func TestAnthropicClientUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))
	}))
	defer srv.Close()

	_, err := NewAnthropicClient(srv.URL, "secret", srv.Client()).Complete(context.Background(), CompletionRequest{Model: "m", MaxTokens: 10})
	assert.Error(t, err)
}
