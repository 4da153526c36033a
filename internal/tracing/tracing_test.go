package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestInitDisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), "flightchat", "", true, 1)
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
	assert.False(t, Enabled())
}

func TestStartSpanWithoutProvider(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "test", attribute.String("path", "general"))
	defer span.End()
	assert.Empty(t, TraceIDFromContext(ctx))
}
