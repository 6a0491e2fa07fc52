// Package units converts the speeds reported by the lab into the units a
// reader asks for. Every speed is computed in m/s internally.
package units

import (
	"fmt"
	"strings"
)

// Unit constants
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MPS, MPH, KMPH, KPH}

// mphPerMPS is the number of miles per hour in one metre per second.
const mphPerMPS = 3600 / 1609.344

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// Parse validates a unit query value; empty selects m/s.
func Parse(unit string) (string, error) {
	if unit == "" {
		return MPS, nil
	}
	if !IsValid(unit) {
		return "", fmt.Errorf("invalid units %q; must be one of: %s", unit, strings.Join(ValidUnits, ", "))
	}
	return unit, nil
}

// ConvertSpeed converts a speed from metres per second to the target units.
// Unknown units leave the value in m/s.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedMPS * mphPerMPS
	case KMPH, KPH:
		return speedMPS * 3.6
	default:
		return speedMPS
	}
}

// Symbol returns the display symbol of a unit.
func Symbol(unit string) string {
	switch unit {
	case MPH:
		return "mph"
	case KMPH, KPH:
		return "km/h"
	default:
		return "m/s"
	}
}

// MillisecondsToSeconds converts a Δt entered in ms.
func MillisecondsToSeconds(ms float64) float64 { return ms / 1000 }

// SecondsToMilliseconds converts a delay to the unit shown on the screen.
func SecondsToMilliseconds(s float64) float64 { return s * 1000 }
