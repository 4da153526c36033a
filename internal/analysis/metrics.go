package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/miradorstack/flightchat/internal/cache"
	"github.com/miradorstack/flightchat/internal/models"
)

const metricsCachePrefix = "flightchat:metrics:"

// invalidCellVoltage marks unused cells in BATTERY_STATUS.voltages (UINT16_MAX).
const invalidCellVoltage = 65535

// MetricsEngine computes flight-level summaries from telemetry.
type MetricsEngine struct {
	cache  cache.Provider
	ttl    time.Duration
	logger *slog.Logger
}

// NewMetricsEngine returns an engine memoizing results in provider for ttl.
// A nil provider disables memoization.
func NewMetricsEngine(provider cache.Provider, ttl time.Duration, logger *slog.Logger) *MetricsEngine {
	if provider == nil {
		provider = cache.NoopProvider{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MetricsEngine{cache: provider, ttl: ttl, logger: logger}
}

// ComputeMetrics returns a flat map of every metric derivable from telemetry.
// Metrics whose inputs are missing are omitted.
func (m *MetricsEngine) ComputeMetrics(ctx context.Context, telemetry models.Telemetry) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(telemetry)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(payload)
	key := metricsCachePrefix + hex.EncodeToString(sum[:])

	if cached, err := m.cache.Get(ctx, key); err == nil {
		var out map[string]any
		if err := json.Unmarshal(cached, &out); err == nil {
			return out, nil
		}
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		m.logger.Debug("metrics cache read failed", "error", err)
	}

	out := ComputeMetrics(telemetry)

	if encoded, err := json.Marshal(out); err == nil {
		if err := m.cache.Set(ctx, key, encoded, m.ttl); err != nil {
			m.logger.Debug("metrics cache write failed", "error", err)
		}
	}
	return out, nil
}

// ComputeMetrics is the uncached computation.
func ComputeMetrics(t models.Telemetry) map[string]any {
	out := map[string]any{}
	tv, hasTime := timeVector(t)

	if hasTime && len(tv) >= 2 {
		out["flight_duration_s"] = tv[len(tv)-1] - tv[0]
	}

	if alt, ok := altitude(t); ok {
		out["altitude_min"] = floats.Min(alt)
		out["altitude_max"] = floats.Max(alt)
		out["altitude_mean"] = stat.Mean(alt, nil)

		if hasTime && len(alt) == len(tv) && len(alt) >= 2 {
			if vs := rates(alt, tv); len(vs) > 0 {
				out["max_climb_rate_mps"] = floats.Max(vs)
				out["max_descent_rate_mps"] = floats.Min(vs)
			}
		}
	}

	if vx, vy, vz, ok := velocities(t); ok {
		gs := make([]float64, len(vx))
		for i := range vx {
			gs[i] = math.Hypot(vx[i], vy[i])
		}
		out["groundspeed_min"] = floats.Min(gs)
		out["groundspeed_max"] = floats.Max(gs)
		out["groundspeed_mean"] = stat.Mean(gs, nil)

		if hasTime && len(gs) == len(tv) && len(gs) >= 2 {
			speed3d := make([]float64, len(vx))
			for i := range vx {
				speed3d[i] = math.Sqrt(vx[i]*vx[i] + vy[i]*vy[i] + vz[i]*vz[i])
			}
			out["distance_2d_m"] = integrate(gs, tv)
			out["distance_3d_m"] = integrate(speed3d, tv)
		}
	}

	if volts, ok := cellVoltages(t); ok {
		out["battery_min_voltage_v"] = floats.Min(volts)
		if current, ok := t.Field("BATTERY_STATUS", "current_battery"); ok {
			amps := make([]float64, 0, len(current))
			for _, c := range current {
				if c >= 0 {
					amps = append(amps, c/100)
				}
			}
			if len(amps) > 0 {
				out["battery_max_current_a"] = floats.Max(amps)
			}
		}
	}

	if sats, ok := t.Field("GPS_RAW_INT", "satellites_visible"); ok {
		out["satellite_visibility_min"] = floats.Min(sats)
		out["satellite_visibility_max"] = floats.Max(sats)
		out["satellite_visibility_mean"] = stat.Mean(sats, nil)
	}

	for _, axis := range []string{"roll", "pitch", "yaw"} {
		rad, ok := t.Field("ATTITUDE", axis)
		if !ok {
			continue
		}
		deg := make([]float64, len(rad))
		for i, r := range rad {
			deg[i] = r * 180 / math.Pi
		}
		mean, std := stat.PopMeanStdDev(deg, nil)
		out[axis+"_mean_deg"] = mean
		out[axis+"_std_deg"] = std
	}

	return out
}

// timeVector prefers SYSTEM_TIME and falls back to GLOBAL_POSITION_INT, in seconds.
func timeVector(t models.Telemetry) ([]float64, bool) {
	for _, msg := range []string{"SYSTEM_TIME", "GLOBAL_POSITION_INT"} {
		if ms, ok := t.Field(msg, "time_boot_ms"); ok {
			return scaled(ms, 1.0/1000), true
		}
	}
	return nil, false
}

// altitude returns GLOBAL_POSITION_INT.alt converted from millimetres to metres.
func altitude(t models.Telemetry) ([]float64, bool) {
	alt, ok := t.Field("GLOBAL_POSITION_INT", "alt")
	if !ok {
		return nil, false
	}
	return scaled(alt, 1.0/1000), true
}

// velocities returns vx, vy, vz in m/s when all three share a length.
func velocities(t models.Telemetry) (vx, vy, vz []float64, ok bool) {
	x, okx := t.Field("GLOBAL_POSITION_INT", "vx")
	y, oky := t.Field("GLOBAL_POSITION_INT", "vy")
	z, okz := t.Field("GLOBAL_POSITION_INT", "vz")
	if !okx || !oky || !okz || len(x) != len(y) || len(x) != len(z) {
		return nil, nil, nil, false
	}
	return scaled(x, 0.01), scaled(y, 0.01), scaled(z, 0.01), true
}

// cellVoltages flattens BATTERY_STATUS.voltages (millivolts) into volts, skipping unused cells.
func cellVoltages(t models.Telemetry) ([]float64, bool) {
	group, _ := t.Messages()["BATTERY_STATUS"].(map[string]any)
	if group == nil {
		return nil, false
	}
	var out []float64
	var flatten func(v any)
	flatten = func(v any) {
		switch x := v.(type) {
		case []any:
			for _, item := range x {
				flatten(item)
			}
		case []float64:
			for _, item := range x {
				flatten(item)
			}
		default:
			if mv, ok := models.Number(x); ok && mv > 0 && mv != invalidCellVoltage {
				out = append(out, mv/1000)
			}
		}
	}
	flatten(group["voltages"])
	return out, len(out) > 0
}

func rates(values, t []float64) []float64 {
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		dt := t[i] - t[i-1]
		if dt <= 0 {
			continue
		}
		out = append(out, (values[i]-values[i-1])/dt)
	}
	return out
}

func integrate(speed, t []float64) float64 {
	total := 0.0
	for i := 1; i < len(speed); i++ {
		total += speed[i] * (t[i] - t[i-1])
	}
	return total
}

func scaled(values []float64, factor float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	floats.Scale(factor, out)
	return out
}
