// Package regression estimates the speed of sound from a table of
// (distance, delay) measurements with an ordinary least-squares line.
package regression

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/soundlab/internal/lab"
)

// Row is one measurement as entered in the table. A blank or unparsable
// cell is stored as NaN.
type Row struct {
	DistanceM float64 `json:"distance_m"`
	DelayMs   float64 `json:"delay_ms"`
}

// Numeric reports whether both cells hold finite numbers.
func (r Row) Numeric() bool {
	return isFinite(r.DistanceM) && isFinite(r.DelayMs)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Point is a (time, distance) pair on the fit chart.
type Point struct {
	TimeS     float64 `json:"time_s"`
	DistanceM float64 `json:"distance_m"`
}

// Result is a fitted line distance = Slope*time + Intercept.
type Result struct {
	Slope            float64 `json:"slope_mps"`
	Intercept        float64 `json:"intercept_m"`
	RSquared         float64 `json:"r_squared"`
	TheoreticalSpeed float64 `json:"theoretical_speed_mps"`
	PercentError     float64 `json:"percent_error"`
	Points           []Point `json:"points"`
	Line             []Point `json:"line"`
}

// PercentError returns |measured - theory| / theory * 100.
func PercentError(measured, theory float64) float64 {
	return math.Abs(measured-theory) / theory * 100
}

// Fit regresses distance on time (delay converted to seconds). It needs at
// least two rows, numeric cells and at least two distinct times.
func Fit(rows []Row, theoreticalSpeed float64) (Result, error) {
	if len(rows) < 2 {
		return Result{}, fmt.Errorf("need at least 2 rows to fit a line, have %d: %w", len(rows), lab.ErrInsufficientData)
	}
	if !(theoreticalSpeed > 0) {
		return Result{}, fmt.Errorf("theoretical speed must be > 0, got %f: %w", theoreticalSpeed, lab.ErrInvalidInput)
	}

	times := make([]float64, len(rows))
	dists := make([]float64, len(rows))
	for i, r := range rows {
		if !r.Numeric() {
			return Result{}, fmt.Errorf("row %d has a non-numeric value: %w", i+1, lab.ErrInvalidInput)
		}
		times[i] = r.DelayMs / 1000
		dists[i] = r.DistanceM
	}
	if floats.Min(times) == floats.Max(times) {
		return Result{}, fmt.Errorf("all delays are %.3f ms: %w", rows[0].DelayMs, lab.ErrDegenerateFit)
	}

	intercept, slope := stat.LinearRegression(times, dists, nil, false)
	r2 := stat.RSquared(times, dists, nil, intercept, slope)
	if math.IsNaN(r2) {
		// Constant distances: the horizontal line is exact.
		r2 = 1
	}

	res := Result{
		Slope:            slope,
		Intercept:        intercept,
		RSquared:         r2,
		TheoreticalSpeed: theoreticalSpeed,
		PercentError:     PercentError(slope, theoreticalSpeed),
		Points:           make([]Point, len(rows)),
		Line:             make([]Point, len(rows)),
	}
	for i := range times {
		res.Points[i] = Point{TimeS: times[i], DistanceM: dists[i]}
		res.Line[i] = Point{TimeS: times[i], DistanceM: slope*times[i] + intercept}
	}
	sort.SliceStable(res.Line, func(a, b int) bool { return res.Line[a].TimeS < res.Line[b].TimeS })
	return res, nil
}

// Estimate is the single-measurement velocity v = d/Δt.
type Estimate struct {
	DistanceM        float64 `json:"distance_m"`
	DtMs             float64 `json:"dt_ms"`
	VelocityMPS      float64 `json:"velocity_mps"`
	TheoreticalSpeed float64 `json:"theoretical_speed_mps"`
	PercentError     float64 `json:"percent_error"`
}

// EstimateSingle computes the velocity from one distance and one Δt in ms.
func EstimateSingle(distanceM, dtMs, theoreticalSpeed float64) (Estimate, error) {
	if !isFinite(distanceM) || distanceM < 0 {
		return Estimate{}, fmt.Errorf("distance must be a non-negative number, got %f: %w", distanceM, lab.ErrInvalidInput)
	}
	if !(dtMs > 0) || math.IsInf(dtMs, 0) {
		return Estimate{}, fmt.Errorf("Δt must be > 0 ms, got %f: %w", dtMs, lab.ErrInvalidInput)
	}
	if !(theoreticalSpeed > 0) {
		return Estimate{}, fmt.Errorf("theoretical speed must be > 0, got %f: %w", theoreticalSpeed, lab.ErrInvalidInput)
	}
	v := distanceM / (dtMs / 1000)
	return Estimate{
		DistanceM:        distanceM,
		DtMs:             dtMs,
		VelocityMPS:      v,
		TheoreticalSpeed: theoreticalSpeed,
		PercentError:     PercentError(v, theoreticalSpeed),
	}, nil
}
