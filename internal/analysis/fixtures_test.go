package analysis

import "github.com/miradorstack/flightchat/internal/models"

func sampleTelemetry() models.Telemetry {
	return models.Telemetry{
		"messages": map[string]any{
			"GLOBAL_POSITION_INT": map[string]any{
				"time_boot_ms": []any{0.0, 1000.0, 2000.0, 3000.0, 4000.0},
				"alt":          []any{10000.0, 20000.0, 40000.0, 30000.0, 10000.0},
				"relative_alt": []any{0.0, 10000.0, 30000.0, 20000.0, 0.0},
				"vx":           []any{300.0, 300.0, 300.0, 300.0, 300.0},
				"vy":           []any{400.0, 400.0, 400.0, 400.0, 400.0},
				"vz":           []any{0.0, 0.0, 0.0, 0.0, 0.0},
			},
			"GPS_RAW_INT": map[string]any{
				"satellites_visible": []any{10.0, 9.0, 4.0, 8.0},
			},
			"BATTERY_STATUS": map[string]any{
				"voltages":        []any{[]any{3900.0, 3800.0, 65535.0}, []any{3300.0, 3700.0, 65535.0}},
				"current_battery": []any{1200.0, 2500.0, -1.0},
			},
			"ATTITUDE": map[string]any{
				"roll": []any{0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 1.5},
			},
			"VIBRATION": map[string]any{
				"vibration_x": []any{1.0, 40.0},
				"vibration_y": []any{1.0, 0.0},
				"vibration_z": []any{1.0, 0.0},
			},
		},
	}
}
