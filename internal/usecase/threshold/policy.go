// Package threshold decides whether a reading breaches the class-of-travel
// allowance and whether that breach should raise an alert.
package threshold

import "suitcase-link/internal/domain"

// AlertState remembers the reading that opened the current breach. A nil
// LastAlerted means no alert is outstanding.
type AlertState struct {
	LastAlerted *domain.Reading
}

// Active reports whether an alert has fired for the current breach.
func (s AlertState) Active() bool { return s.LastAlerted != nil }

// Decision is the outcome of evaluating one reading.
type Decision struct {
	OverLimit   bool
	ShouldAlert bool
	Pounds      float64
	Threshold   float64
	State       AlertState
}

// Evaluate compares r (normalized to pounds) with the class allowance.
// Alerts are edge-triggered: one per continuous breach. The returned state
// must be passed to the next call.
func Evaluate(r domain.Reading, class domain.ClassOfTravel, st AlertState) Decision {
	pounds := r.Pounds()
	limit := class.ThresholdPounds()
	over := pounds > limit

	d := Decision{
		OverLimit: over,
		Pounds:    pounds,
		Threshold: limit,
		State:     st,
	}
	switch {
	case over && !st.Active():
		d.ShouldAlert = true
		d.State = AlertState{LastAlerted: &r}
	case !over:
		d.State = AlertState{}
	}
	return d
}
