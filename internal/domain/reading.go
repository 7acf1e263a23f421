package domain

import (
	"fmt"
	"strings"
	"time"
)

// KilogramsPerPound is the mass of one avoirdupois pound in kilograms.
const KilogramsPerPound = 0.453592

// Unit is the unit a reading was acquired in.
type Unit string

const (
	UnitPounds    Unit = "lb"
	UnitKilograms Unit = "kg"
)

// TransportKind identifies a measurement transport.
type TransportKind string

const (
	TransportPeripheral TransportKind = "peripheral"
	TransportNetwork    TransportKind = "network"
)

// ParseTransportKind accepts the canonical names plus the aliases used by the
// mobile client ("bluetooth", "ble", "wifi").
func ParseTransportKind(s string) (TransportKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "peripheral", "bluetooth", "ble":
		return TransportPeripheral, nil
	case "network", "wifi", "http":
		return TransportNetwork, nil
	default:
		return "", NewDomainError("ParseTransportKind", ErrUnknownTransport, s)
	}
}

// Reading is one scalar weight measurement. Readings are values; they are
// never mutated after construction.
type Reading struct {
	Value      float64       `json:"value"`
	Unit       Unit          `json:"unit"`
	Source     TransportKind `json:"source"`
	ReceivedAt time.Time     `json:"received_at"`
}

// NewReading builds a reading stamped with the current time.
func NewReading(value float64, unit Unit, source TransportKind) Reading {
	return Reading{Value: value, Unit: unit, Source: source, ReceivedAt: time.Now()}
}

// Pounds returns the reading normalized to pounds.
func (r Reading) Pounds() float64 {
	if r.Unit == UnitKilograms {
		return r.Value / KilogramsPerPound
	}
	return r.Value
}

// Kilograms returns the reading normalized to kilograms.
func (r Reading) Kilograms() float64 {
	if r.Unit == UnitKilograms {
		return r.Value
	}
	return r.Value * KilogramsPerPound
}

// In returns the reading's value expressed in the given display unit.
func (r Reading) In(u DisplayUnit) float64 {
	if u == DisplayKilograms {
		return r.Kilograms()
	}
	return r.Pounds()
}

func (r Reading) String() string {
	return fmt.Sprintf("%.2f %s", r.Value, r.Unit)
}

// DisplayUnit is the unit the presentation layer renders weights in.
type DisplayUnit string

const (
	DisplayPounds    DisplayUnit = "lbs"
	DisplayKilograms DisplayUnit = "kg"
)

// ParseDisplayUnit parses "lbs"/"lb" or "kg".
func ParseDisplayUnit(s string) (DisplayUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lbs", "lb", "pounds":
		return DisplayPounds, nil
	case "kg", "kgs", "kilograms":
		return DisplayKilograms, nil
	default:
		return "", NewDomainError("ParseDisplayUnit", ErrInvalidInput, s)
	}
}
