package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatherValue(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metricLoop:
		for _, m := range family.GetMetric() {
			for _, pair := range m.GetLabel() {
				if want, ok := labels[pair.GetName()]; ok && want != pair.GetValue() {
					continue metricLoop
				}
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			}
		}
	}
	return 0
}

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))
}

func TestObserveChatNormalisesOutcome(t *testing.T) {
	labels := map[string]string{"path": "metric", "outcome": OutcomeSuccess}
	before := gatherValue(t, "flightchat_chat_requests_total", labels)
	ObserveChat("metric", -time.Second, "weird")
	assert.Equal(t, before+1, gatherValue(t, "flightchat_chat_requests_total", labels))
}

func TestObserveParseFallback(t *testing.T) {
	labels := map[string]string{"reason": "missing answer block"}
	before := gatherValue(t, "flightchat_response_parse_fallbacks_total", labels)
	ObserveParseFallback("missing answer block")
	assert.Equal(t, before+1, gatherValue(t, "flightchat_response_parse_fallbacks_total", labels))
}

func TestSetActiveSessions(t *testing.T) {
	SetActiveSessions(3)
	assert.Equal(t, 3.0, gatherValue(t, "flightchat_active_sessions", nil))
}
