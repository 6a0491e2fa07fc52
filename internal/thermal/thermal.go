// Package thermal converts air temperature into the theoretical speed of
// sound using the linear approximation taught in the lab.
package thermal

import "math"

const (
	// SpeedAtZero is the speed of sound in dry air at 0 °C, in m/s.
	SpeedAtZero = 331.29
	// SpeedPerDegree is the increase in m/s per °C.
	SpeedPerDegree = 0.61

	MinTemperature = 0.0
	MaxTemperature = 40.0
)

// ClampTemperature limits t to the range the approximation is used for.
// NaN maps to MinTemperature.
func ClampTemperature(t float64) float64 {
	if math.IsNaN(t) {
		return MinTemperature
	}
	return math.Max(MinTemperature, math.Min(MaxTemperature, t))
}

// SpeedOfSound returns v_theo = 331.29 + 0.61*T in m/s for T in °C.
func SpeedOfSound(temperatureC float64) float64 {
	return SpeedAtZero + SpeedPerDegree*ClampTemperature(temperatureC)
}

// Environment is the ambient state of a session.
type Environment struct {
	TemperatureC     float64 `json:"temperature_c"`
	TheoreticalSpeed float64 `json:"theoretical_speed_mps"`
}

// NewEnvironment clamps the temperature and derives the theoretical speed.
func NewEnvironment(temperatureC float64) Environment {
	t := ClampTemperature(temperatureC)
	return Environment{TemperatureC: t, TheoreticalSpeed: SpeedOfSound(t)}
}
