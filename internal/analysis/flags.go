package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/miradorstack/flightchat/internal/models"
)

// Rule thresholds for primitive anomaly flags.
const (
	ZScoreThreshold   = 2.5
	MinZScoreSamples  = 5
	MinSatellites     = 6
	MinCellVoltage    = 3.4
	MaxVibrationRMS   = 30.0
	zScoreStdEpsilon  = 1e-6
)

// HighlightAnomalies runs cheap rule-based scans whose hits are passed to the LLM as hints.
func HighlightAnomalies(t models.Telemetry) []models.AnomalyFlag {
	flags := make([]models.AnomalyFlag, 0)

	for _, axis := range []string{"roll", "pitch", "yaw"} {
		if series, ok := t.Field("ATTITUDE", axis); ok {
			flags = append(flags, zScoreOutliers("attitude."+axis, series)...)
		}
	}
	for _, field := range []string{"alt", "relative_alt", "vx", "vy", "vz"} {
		if series, ok := t.Field("GLOBAL_POSITION_INT", field); ok {
			flags = append(flags, zScoreOutliers("position."+field, series)...)
		}
	}

	if sats, ok := t.Field("GPS_RAW_INT", "satellites_visible"); ok {
		for idx, n := range sats {
			if n < MinSatellites {
				flags = append(flags, models.AnomalyFlag{
					Feature: "gps.satellites_visible",
					Index:   idx,
					Value:   n,
					Pattern: "low_satellites",
					Hint:    fmt.Sprintf("Only %d satellites at index %d; GPS may be unreliable", int(n), idx),
				})
			}
		}
	}

	if volts, ok := cellVoltages(t); ok {
		for idx, v := range volts {
			if v < MinCellVoltage {
				flags = append(flags, models.AnomalyFlag{
					Feature: "battery.voltage",
					Index:   idx,
					Value:   v,
					Pattern: "voltage_sag",
					Hint:    fmt.Sprintf("Cell voltage dropped to %.2f V (index %d)", v, idx),
				})
			}
		}
	}

	vx, okx := t.Field("VIBRATION", "vibration_x")
	vy, oky := t.Field("VIBRATION", "vibration_y")
	vz, okz := t.Field("VIBRATION", "vibration_z")
	if okx && oky && okz {
		n := min(len(vx), len(vy), len(vz))
		for idx := 0; idx < n; idx++ {
			rms := math.Sqrt(vx[idx]*vx[idx] + vy[idx]*vy[idx] + vz[idx]*vz[idx])
			if rms > MaxVibrationRMS {
				flags = append(flags, models.AnomalyFlag{
					Feature: "vibration.rms",
					Index:   idx,
					Value:   rms,
					Pattern: "high_vibration",
					Hint:    fmt.Sprintf("High vibration RMS %.1f m/s² at index %d", rms, idx),
				})
			}
		}
	}

	return flags
}

// zScoreOutliers flags samples whose absolute z-score exceeds ZScoreThreshold.
func zScoreOutliers(feature string, series []float64) []models.AnomalyFlag {
	if len(series) < MinZScoreSamples {
		return nil
	}
	mean, std := stat.PopMeanStdDev(series, nil)
	std += zScoreStdEpsilon

	var out []models.AnomalyFlag
	for idx, v := range series {
		if math.Abs((v-mean)/std) > ZScoreThreshold {
			out = append(out, models.AnomalyFlag{
				Feature: feature,
				Index:   idx,
				Value:   v,
				Pattern: "z-score",
				Hint:    fmt.Sprintf("Unusual %s value %.2f at index %d", feature, v, idx),
			})
		}
	}
	return out
}
