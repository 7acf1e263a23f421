package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassThresholds(t *testing.T) {
	assert.Equal(t, 50.0, ClassEconomy.ThresholdPounds())
	assert.Equal(t, 70.0, ClassBusiness.ThresholdPounds())
	assert.Equal(t, 50.0, ClassOfTravel("first").ThresholdPounds())
}

func TestParseClassOfTravel(t *testing.T) {
	c, err := ParseClassOfTravel("Business")
	require.NoError(t, err)
	assert.Equal(t, ClassBusiness, c)
	assert.Equal(t, "Business", c.Title())

	_, err = ParseClassOfTravel("premium")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestNewAlertBody(t *testing.T) {
	r := Reading{Value: 60, Unit: UnitPounds, Source: TransportPeripheral, ReceivedAt: time.Now()}
	a := NewAlert("01J0000000000000000000000", r, ClassEconomy)

	assert.Equal(t, AlertTitle, a.Title)
	assert.Equal(t, "Your luggage is 60.00 lbs, exceeding the 50 lbs limit for Economy class.", a.Body)
	assert.Equal(t, 50.0, a.Threshold)
	assert.Equal(t, 60.0, a.Pounds)
}

func TestNewAlertConvertsKilograms(t *testing.T) {
	r := Reading{Value: 40, Unit: UnitKilograms, Source: TransportNetwork}
	a := NewAlert("id", r, ClassBusiness)
	assert.InDelta(t, 88.18, a.Pounds, 0.01)
	assert.Contains(t, a.Body, "70 lbs limit for Business class")
}

func TestDecodePayload(t *testing.T) {
	raw, _ := json.Marshal(ClassPayload{Class: ClassBusiness, Threshold: 70})
	ev := Event{Type: EventClassChanged, Payload: raw}

	p, err := DecodePayload[ClassPayload](ev)
	require.NoError(t, err)
	assert.Equal(t, ClassBusiness, p.Class)

	_, err = DecodePayload[ClassPayload](Event{Type: EventClassChanged})
	assert.Error(t, err)
}
