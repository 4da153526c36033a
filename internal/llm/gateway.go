package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/miradorstack/flightchat/internal/metrics"
	"github.com/miradorstack/flightchat/internal/tracing"
)

// Factory builds a provider client once a credential is known.
type Factory func(s Settings, apiKey string) (Client, error)

// CredentialSource resolves the API key each time construction is attempted.
type CredentialSource func(s Settings) (string, error)

// GatewayOption customises a Gateway.
type GatewayOption func(*Gateway)

// WithFactory overrides how provider clients are built.
func WithFactory(f Factory) GatewayOption {
	return func(g *Gateway) { g.factory = f }
}

// WithCredentialSource overrides how the API key is resolved.
func WithCredentialSource(src CredentialSource) GatewayOption {
	return func(g *Gateway) { g.credentials = src }
}

// WithLogger sets the gateway logger.
func WithLogger(logger *slog.Logger) GatewayOption {
	return func(g *Gateway) { g.logger = logger }
}

// Gateway owns the single provider client for the process. The client is built on
// first use and reused afterwards; a failed construction is retried on the next call.
type Gateway struct {
	settings    Settings
	factory     Factory
	credentials CredentialSource
	limiter     *rate.Limiter
	logger      *slog.Logger

	mu     sync.Mutex
	client Client
}

// NewGateway returns a gateway for settings. No network or credential access happens here.
func NewGateway(settings Settings, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		settings:    settings.withDefaults(),
		factory:     DefaultFactory,
		credentials: EnvCredentials,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.settings.RequestsPerSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(g.settings.RequestsPerSecond), g.settings.Burst)
	}
	return g
}

// DefaultFactory builds the client named by Settings.Provider.
func DefaultFactory(s Settings, apiKey string) (Client, error) {
	httpClient := &http.Client{Timeout: s.Timeout}
	switch s.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(s.BaseURL, apiKey, httpClient), nil
	case ProviderAnthropic:
		return NewAnthropicClient(s.BaseURL, apiKey, httpClient), nil
	default:
		return nil, &ConfigError{Setting: "llm.provider", Err: fmt.Errorf("unsupported provider %q", s.Provider)}
	}
}

// Client returns the memoized provider client, constructing it on the first successful call.
func (g *Gateway) Client() (Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		return g.client, nil
	}
	key, err := g.credentials(g.settings)
	if err != nil {
		return nil, err
	}
	client, err := g.factory(g.settings, key)
	if err != nil {
		return nil, err
	}
	g.client = client
	g.logger.Info("llm client initialised", "provider", g.settings.Provider, "model", g.settings.Model, "base_url", g.settings.BaseURL)
	return client, nil
}

// Model returns the configured model name.
func (g *Gateway) Model() string { return g.settings.Model }

// Provider returns the configured provider name.
func (g *Gateway) Provider() string { return g.settings.Provider }

// Complete sends prompt as a single user message and returns the raw completion text.
func (g *Gateway) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	client, err := g.Client()
	if err != nil {
		return "", err
	}

	ctx, span := tracing.StartSpan(ctx, "llm.complete",
		attribute.String("llm.provider", g.settings.Provider),
		attribute.String("llm.model", g.settings.Model),
		attribute.Float64("llm.temperature", opts.Temperature),
		attribute.Int("llm.max_tokens", opts.MaxTokens),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, g.settings.Timeout)
	defer cancel()

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "rate limited")
			return "", fmt.Errorf("wait for llm rate limit: %w", err)
		}
	}

	start := time.Now()
	text, err := client.Complete(ctx, CompletionRequest{
		Model:       g.settings.Model,
		Messages:    []Message{{Role: "user", Content: prompt}},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	elapsed := time.Since(start)
	if err != nil {
		metrics.ObserveLLM(elapsed, metrics.OutcomeError)
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		g.logger.Warn("llm completion failed", "model", g.settings.Model, "duration", elapsed, "error", err)
		return "", err
	}
	metrics.ObserveLLM(elapsed, metrics.OutcomeSuccess)
	g.logger.Debug("llm completion", "model", g.settings.Model, "duration", elapsed, "chars", len(text))
	return text, nil
}
