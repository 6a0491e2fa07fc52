// Package phase simulates the phase-shift method: a signal generator drives a
// loudspeaker and CH1, a movable microphone feeds CH2, and the delay between
// the two sinusoids grows with the speaker-microphone distance.
package phase

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/banshee-data/soundlab/internal/lab"
	"github.com/banshee-data/soundlab/internal/scope"
)

const (
	MinFrequencyHz     = 500
	MaxFrequencyHz     = 3000
	DefaultFrequencyHz = 1500

	MinDistance = 0.0
	MaxDistance = 1.5

	Periods    = 5     // periods shown on screen
	MinWindow  = 0.002 // s
	Samples    = 1000
	MicGain    = 0.8
	NoiseSigma = 0.05
)

// Setup is the position of the generator dial and the microphone.
type Setup struct {
	FrequencyHz int     `json:"frequency_hz"`
	DistanceM   float64 `json:"distance_m"`
}

// DefaultSetup matches the initial slider positions.
func DefaultSetup() Setup {
	return Setup{FrequencyHz: DefaultFrequencyHz, DistanceM: 0}
}

// Validate rejects settings outside the bench range.
func (s Setup) Validate() error {
	if s.FrequencyHz < MinFrequencyHz || s.FrequencyHz > MaxFrequencyHz {
		return fmt.Errorf("frequency must be in [%d, %d] Hz, got %d: %w", MinFrequencyHz, MaxFrequencyHz, s.FrequencyHz, lab.ErrInvalidInput)
	}
	if math.IsNaN(s.DistanceM) || s.DistanceM < MinDistance || s.DistanceM > MaxDistance {
		return fmt.Errorf("distance must be in [%.1f, %.1f] m, got %f: %w", MinDistance, MaxDistance, s.DistanceM, lab.ErrInvalidInput)
	}
	return nil
}

// Metrics are the derived quantities shown next to the screen.
type Metrics struct {
	DelayS       float64 `json:"delay_s"`
	DelayMs      float64 `json:"delay_ms"`
	WavelengthM  float64 `json:"wavelength_m"`
	PhaseDegrees float64 `json:"phase_degrees"`
	Window       float64 `json:"window_s"`
}

// Compute derives delay, wavelength and phase angle for the setup.
func Compute(s Setup, theoreticalSpeed float64) (Metrics, error) {
	if err := s.Validate(); err != nil {
		return Metrics{}, err
	}
	if !(theoreticalSpeed > 0) {
		return Metrics{}, fmt.Errorf("theoretical speed must be > 0, got %f: %w", theoreticalSpeed, lab.ErrInvalidInput)
	}
	f := float64(s.FrequencyHz)
	delay := s.DistanceM / theoreticalSpeed
	wavelength := theoreticalSpeed / f
	return Metrics{
		DelayS:       delay,
		DelayMs:      delay * 1000,
		WavelengthM:  wavelength,
		PhaseDegrees: wrapDegrees(s.DistanceM / wavelength * 360),
		Window:       window(f),
	}, nil
}

// wrapDegrees maps an angle onto [0, 360).
func wrapDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg = 0
	}
	return deg
}

func window(freqHz float64) float64 {
	return math.Max(Periods/freqHz, MinWindow)
}

// Render samples both channels. CH2 carries fresh noise from src on every
// call.
func Render(s Setup, theoreticalSpeed float64, src rand.Source) (scope.Trace, Metrics, error) {
	m, err := Compute(s, theoreticalSpeed)
	if err != nil {
		return scope.Trace{}, Metrics{}, err
	}
	t, err := scope.TimeBase(Samples, m.Window)
	if err != nil {
		return scope.Trace{}, Metrics{}, err
	}
	f := float64(s.FrequencyHz)
	ch1 := scope.Sine(t, f, 0, 1)
	ch2 := scope.Sine(t, f, m.DelayS, MicGain)
	scope.AddNoise(ch2, NoiseSigma, src)

	return scope.Trace{Time: t, CH1: ch1, CH2: ch2, Window: m.Window, YMin: -1.5, YMax: 1.5}, m, nil
}
