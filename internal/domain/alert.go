package domain

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// AlertTitle is the title of every overweight notification.
const AlertTitle = "Overweight Warning"

// Alert is emitted once per continuous breach of the class allowance.
type Alert struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Body      string        `json:"body"`
	Pounds    float64       `json:"pounds"`
	Threshold float64       `json:"threshold"`
	Class     ClassOfTravel `json:"class"`
	Reading   Reading       `json:"reading"`
	FiredAt   time.Time     `json:"fired_at"`
}

// NewAlert formats the overweight notification for a breaching reading.
func NewAlert(id string, r Reading, class ClassOfTravel) Alert {
	pounds := r.Pounds()
	threshold := class.ThresholdPounds()
	return Alert{
		ID:    id,
		Title: AlertTitle,
		Body: fmt.Sprintf("Your luggage is %s lbs, exceeding the %s lbs limit for %s class.",
			strconv.FormatFloat(pounds, 'f', 2, 64),
			strconv.FormatFloat(threshold, 'f', -1, 64),
			class.Title()),
		Pounds:    pounds,
		Threshold: threshold,
		Class:     class,
		Reading:   r,
		FiredAt:   time.Now(),
	}
}

// Notifier delivers an alert to the traveller.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, alert Alert) error
}
