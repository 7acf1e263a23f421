package threshold

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"suitcase-link/internal/domain"
)

func lbs(v float64) domain.Reading {
	return domain.Reading{Value: v, Unit: domain.UnitPounds, Source: domain.TransportPeripheral}
}

func TestEvaluateStrictlyGreater(t *testing.T) {
	d := Evaluate(lbs(50.0), domain.ClassEconomy, AlertState{})
	assert.False(t, d.OverLimit, "50.0 is at the limit, not over it")
	assert.False(t, d.ShouldAlert)

	d = Evaluate(lbs(50.01), domain.ClassEconomy, AlertState{})
	assert.True(t, d.OverLimit)
	assert.True(t, d.ShouldAlert)
	assert.Equal(t, 50.0, d.Threshold)
}

func TestEvaluateBusinessThreshold(t *testing.T) {
	d := Evaluate(lbs(65), domain.ClassBusiness, AlertState{})
	assert.False(t, d.OverLimit)
	d = Evaluate(lbs(70.5), domain.ClassBusiness, AlertState{})
	assert.True(t, d.OverLimit)
}

func TestEvaluateNormalizesKilograms(t *testing.T) {
	// 23 kg is about 50.7 lb: over the economy limit even though 23 < 50.
	r := domain.Reading{Value: 23, Unit: domain.UnitKilograms, Source: domain.TransportNetwork}
	d := Evaluate(r, domain.ClassEconomy, AlertState{})
	assert.True(t, d.OverLimit)
	assert.InDelta(t, 50.706, d.Pounds, 0.001)

	r.Value = 22.6 // about 49.8 lb
	d = Evaluate(r, domain.ClassEconomy, AlertState{})
	assert.False(t, d.OverLimit)
}

func TestEdgeTriggeredAlerting(t *testing.T) {
	var st AlertState
	var alerts []float64

	run := func(values ...float64) {
		for _, v := range values {
			d := Evaluate(lbs(v), domain.ClassEconomy, st)
			if d.ShouldAlert {
				alerts = append(alerts, v)
			}
			st = d.State
		}
	}

	run(40, 60, 65, 70, 45)
	require.Equal(t, []float64{60}, alerts, "exactly one alert per continuous breach")
	assert.False(t, st.Active(), "state clears once the reading drops under the limit")

	run(71)
	assert.Equal(t, []float64{60, 71}, alerts)
	require.True(t, st.Active())
	assert.Equal(t, 71.0, st.LastAlerted.Value)
}

func TestEvaluateKeepsStateDuringBreach(t *testing.T) {
	d1 := Evaluate(lbs(60), domain.ClassEconomy, AlertState{})
	d2 := Evaluate(lbs(62), domain.ClassEconomy, d1.State)
	assert.False(t, d2.ShouldAlert)
	assert.Same(t, d1.State.LastAlerted, d2.State.LastAlerted)
}

func TestZoneOf(t *testing.T) {
	tests := []struct {
		pounds float64
		class  domain.ClassOfTravel
		want   Zone
	}{
		{0, domain.ClassEconomy, ZoneGreen},
		{29.9, domain.ClassEconomy, ZoneGreen},
		{30, domain.ClassEconomy, ZoneYellow},
		{39.9, domain.ClassEconomy, ZoneYellow},
		{40, domain.ClassEconomy, ZoneRed},
		{80, domain.ClassEconomy, ZoneRed},
		{41, domain.ClassBusiness, ZoneGreen},
		{50, domain.ClassBusiness, ZoneYellow},
		{56, domain.ClassBusiness, ZoneRed},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ZoneOf(tt.pounds, tt.class), "%v lb %s", tt.pounds, tt.class)
	}
}

func TestFillClamps(t *testing.T) {
	assert.Equal(t, 0.5, Fill(25, domain.ClassEconomy))
	assert.Equal(t, 1.0, Fill(120, domain.ClassEconomy))
	assert.Equal(t, 0.0, Fill(-3, domain.ClassEconomy))
}
