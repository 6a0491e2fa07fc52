// Package scope builds the two-channel sample sequences shown on the
// simulated oscilloscope.
package scope

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Trace is one render of the oscilloscope screen. Time is in seconds; the
// channels hold amplitudes in volts sampled at the same instants.
type Trace struct {
	Time   []float64 `json:"time_s"`
	CH1    []float64 `json:"ch1"`
	CH2    []float64 `json:"ch2"`
	Window float64   `json:"window_s"`
	YMin   float64   `json:"y_min"`
	YMax   float64   `json:"y_max"`
}

// Len returns the number of samples per channel.
func (t Trace) Len() int { return len(t.Time) }

// Crop returns the samples with time <= window. The receiver is not modified.
func (t Trace) Crop(window float64) Trace {
	n := 0
	for n < len(t.Time) && t.Time[n] <= window {
		n++
	}
	return Trace{
		Time:   append([]float64(nil), t.Time[:n]...),
		CH1:    append([]float64(nil), t.CH1[:n]...),
		CH2:    append([]float64(nil), t.CH2[:n]...),
		Window: window,
		YMin:   t.YMin,
		YMax:   t.YMax,
	}
}

// TimeBase returns n evenly spaced instants covering [0, end] inclusive.
func TimeBase(n int, end float64) ([]float64, error) {
	if n < 2 {
		return nil, fmt.Errorf("time base needs at least 2 samples, got %d", n)
	}
	if !(end > 0) {
		return nil, fmt.Errorf("time base end must be > 0, got %f", end)
	}
	return floats.Span(make([]float64, n), 0, end), nil
}

// GaussianPulse samples amplitude*exp(-(t-center)^2 / (2*width^2)).
func GaussianPulse(t []float64, center, width, amplitude float64) []float64 {
	out := make([]float64, len(t))
	for i, ti := range t {
		d := ti - center
		out[i] = amplitude * math.Exp(-(d*d)/(2*width*width))
	}
	return out
}

// Sine samples amplitude*sin(2*pi*freq*(t-delay)).
func Sine(t []float64, freqHz, delay, amplitude float64) []float64 {
	out := make([]float64, len(t))
	omega := 2 * math.Pi * freqHz
	for i, ti := range t {
		out[i] = amplitude * math.Sin(omega*(ti-delay))
	}
	return out
}

// AddNoise adds independent N(0, sigma) draws from src to every sample of x.
// A nil src falls back to the global generator.
func AddNoise(x []float64, sigma float64, src rand.Source) {
	if sigma <= 0 {
		return
	}
	n := distuv.Normal{Mu: 0, Sigma: sigma, Src: src}
	for i := range x {
		x[i] += n.Rand()
	}
}
