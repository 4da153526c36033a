// Package llm talks to hosted chat-completion endpoints.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Message is one chat message sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the provider-neutral completion call.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Client performs a single completion and returns the raw model text.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Options tune a completion made through the Gateway.
type Options struct {
	Temperature float64
	MaxTokens   int
}

var (
	// ErrMissingCredential signals that no API key is configured for the provider.
	ErrMissingCredential = errors.New("llm api key not configured")
	// ErrEmptyCompletion signals a response without any choice or text.
	ErrEmptyCompletion = errors.New("llm returned no completion")
)

// ConfigError reports a configuration problem that prevents building a client.
type ConfigError struct {
	Setting string
	Err     error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("llm configuration %s: %v", e.Setting, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// StatusError is returned when the provider answers with a non-200 status.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("llm endpoint returned %s", e.Status)
	}
	return fmt.Sprintf("llm endpoint returned %s: %s", e.Status, e.Body)
}
