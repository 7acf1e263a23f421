package threshold

import "suitcase-link/internal/domain"

// Zone is the gauge band a weight falls in.
type Zone string

const (
	ZoneGreen  Zone = "green"
	ZoneYellow Zone = "yellow"
	ZoneRed    Zone = "red"
)

// Gauge band boundaries as fractions of the allowance.
const (
	greenFraction  = 0.6
	yellowFraction = 0.8
)

// ZoneOf places a weight in pounds on the class gauge: the first 60% of the
// allowance is green, the next 20% yellow, the rest red.
func ZoneOf(pounds float64, class domain.ClassOfTravel) Zone {
	limit := class.ThresholdPounds()
	switch {
	case pounds < limit*greenFraction:
		return ZoneGreen
	case pounds < limit*yellowFraction:
		return ZoneYellow
	default:
		return ZoneRed
	}
}

// Fill returns pounds as a fraction of the allowance, clamped to [0, 1].
func Fill(pounds float64, class domain.ClassOfTravel) float64 {
	f := pounds / class.ThresholdPounds()
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
