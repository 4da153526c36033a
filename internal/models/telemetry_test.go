package models

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTelemetryField(t *testing.T) {
	var tele Telemetry
	raw := `{"messages":{"GLOBAL_POSITION_INT":{"alt":[1000,2000,"x",3000],"vx":{"0":1,"1":2}}}}`
	assert.NoError(t, json.Unmarshal([]byte(raw), &tele))

	alt, ok := tele.Field("GLOBAL_POSITION_INT", "alt")
	assert.True(t, ok)
	assert.Equal(t, []float64{1000, 2000, 3000}, alt)

	vx, ok := tele.Field("GLOBAL_POSITION_INT", "vx")
	assert.True(t, ok)
	assert.Equal(t, []float64{1, 2}, vx)

	_, ok = tele.Field("ATTITUDE", "roll")
	assert.False(t, ok)
	assert.False(t, tele.Empty())
	assert.True(t, Telemetry(nil).Empty())
}

func TestNumber(t *testing.T) {
	_, ok := Number(math.NaN())
	assert.False(t, ok)
	_, ok = Number("1")
	assert.False(t, ok)
	f, ok := Number(json.Number("2.5"))
	assert.True(t, ok)
	assert.Equal(t, 2.5, f)
}
