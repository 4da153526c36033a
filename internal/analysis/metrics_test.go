package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/flightchat/internal/cache"
	"github.com/miradorstack/flightchat/internal/models"
)

func TestComputeMetrics(t *testing.T) {
	m := ComputeMetrics(sampleTelemetry())

	assert.InDelta(t, 4.0, m["flight_duration_s"], 1e-9)
	assert.InDelta(t, 10.0, m["altitude_min"], 1e-9)
	assert.InDelta(t, 40.0, m["altitude_max"], 1e-9)
	assert.InDelta(t, 22.0, m["altitude_mean"], 1e-9)
	assert.InDelta(t, 20.0, m["max_climb_rate_mps"], 1e-9)
	assert.InDelta(t, -20.0, m["max_descent_rate_mps"], 1e-9)
	assert.InDelta(t, 5.0, m["groundspeed_max"], 1e-9)
	assert.InDelta(t, 20.0, m["distance_2d_m"], 1e-9)
	assert.InDelta(t, 20.0, m["distance_3d_m"], 1e-9)
	assert.InDelta(t, 3.3, m["battery_min_voltage_v"], 1e-9)
	assert.InDelta(t, 25.0, m["battery_max_current_a"], 1e-9)
	assert.InDelta(t, 4.0, m["satellite_visibility_min"], 1e-9)
	assert.InDelta(t, 10.0, m["satellite_visibility_max"], 1e-9)
	assert.Contains(t, m, "roll_mean_deg")
	assert.Contains(t, m, "roll_std_deg")
	assert.NotContains(t, m, "pitch_mean_deg")
}

func TestComputeMetricsEmpty(t *testing.T) {
	assert.Empty(t, ComputeMetrics(models.Telemetry{}))
	assert.Empty(t, ComputeMetrics(models.Telemetry{"messages": "not a map"}))
}

type countingCache struct {
	*cache.MemoryProvider
	sets int
}

func (c *countingCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.sets++
	return c.MemoryProvider.Set(ctx, key, value, ttl)
}

func TestMetricsEngineMemoizes(t *testing.T) {
	provider := &countingCache{MemoryProvider: cache.NewMemoryProvider(16, time.Minute)}
	engine := NewMetricsEngine(provider, time.Minute, nil)

	first, err := engine.ComputeMetrics(context.Background(), sampleTelemetry())
	require.NoError(t, err)
	second, err := engine.ComputeMetrics(context.Background(), sampleTelemetry())
	require.NoError(t, err)

	assert.Equal(t, 1, provider.sets)
	assert.InDelta(t, first["altitude_max"], second["altitude_max"], 1e-9)
}

func TestMetricsEngineCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMetricsEngine(nil, 0, nil).ComputeMetrics(ctx, sampleTelemetry())
	assert.ErrorIs(t, err, context.Canceled)
}
