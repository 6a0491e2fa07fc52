package regression

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/soundlab/internal/lab"
)

const vTheo20 = 343.49

func TestFitExactLine(t *testing.T) {
	rows := []Row{
		{DistanceM: 3.0, DelayMs: 10},
		{DistanceM: 6.0, DelayMs: 20},
		{DistanceM: 9.0, DelayMs: 30},
	}
	res, err := Fit(rows, vTheo20)
	require.NoError(t, err)

	assert.InDelta(t, 300.0, res.Slope, 1e-9)
	assert.InDelta(t, 0.0, res.Intercept, 1e-9)
	assert.InDelta(t, 1.0, res.RSquared, 1e-12)
	assert.InDelta(t, math.Abs(300-vTheo20)/vTheo20*100, res.PercentError, 1e-9)
	assert.Equal(t, vTheo20, res.TheoreticalSpeed)

	require.Len(t, res.Points, 3)
	assert.InDelta(t, 0.01, res.Points[0].TimeS, 1e-15)
	assert.Equal(t, 3.0, res.Points[0].DistanceM)
	require.Len(t, res.Line, 3)
	assert.InDelta(t, 9.0, res.Line[2].DistanceM, 1e-9)
}

func TestFitNoisyData(t *testing.T) {
	// Phase-shift style measurements at 20 °C with reading error.
	rows := []Row{
		{DistanceM: 0.2, DelayMs: 0.60},
		{DistanceM: 0.4, DelayMs: 1.15},
		{DistanceM: 0.6, DelayMs: 1.76},
		{DistanceM: 0.8, DelayMs: 2.31},
		{DistanceM: 1.0, DelayMs: 2.93},
	}
	res, err := Fit(rows, vTheo20)
	require.NoError(t, err)
	assert.InDelta(t, vTheo20, res.Slope, 10)
	assert.Less(t, res.PercentError, 3.0)
	assert.Greater(t, res.RSquared, 0.99)
}

func TestFitLineSortedByTime(t *testing.T) {
	rows := []Row{
		{DistanceM: 9, DelayMs: 30},
		{DistanceM: 3, DelayMs: 10},
		{DistanceM: 6, DelayMs: 20},
	}
	res, err := Fit(rows, vTheo20)
	require.NoError(t, err)
	assert.Equal(t, 9.0, res.Points[0].DistanceM, "points keep table order")
	for i := 1; i < len(res.Line); i++ {
		assert.Less(t, res.Line[i-1].TimeS, res.Line[i].TimeS)
	}
}

func TestFitErrors(t *testing.T) {
	tests := []struct {
		name string
		rows []Row
		want error
	}{
		{"no rows", nil, lab.ErrInsufficientData},
		{"one row", []Row{{DistanceM: 1, DelayMs: 3}}, lab.ErrInsufficientData},
		{"identical times", []Row{{1, 3}, {2, 3}, {3, 3}}, lab.ErrDegenerateFit},
		{"blank distance", []Row{{1, 3}, {math.NaN(), 6}}, lab.ErrInvalidInput},
		{"blank delay", []Row{{1, 3}, {2, math.NaN()}}, lab.ErrInvalidInput},
		{"infinite delay", []Row{{1, 3}, {2, math.Inf(1)}}, lab.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fit(tt.rows, vTheo20)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := Fit([]Row{{1, 3}, {2, 6}}, 0)
	assert.ErrorIs(t, err, lab.ErrInvalidInput)
}

func TestFitConstantDistance(t *testing.T) {
	res, err := Fit([]Row{{1, 3}, {1, 6}}, vTheo20)
	require.NoError(t, err)
	assert.InDelta(t, 0, res.Slope, 1e-12)
	assert.Equal(t, 1.0, res.RSquared)
	assert.InDelta(t, 100, res.PercentError, 1e-9)
}

func TestEstimateSingle(t *testing.T) {
	est, err := EstimateSingle(15, 43.67, vTheo20)
	require.NoError(t, err)
	assert.InDelta(t, 343.485, est.VelocityMPS, 0.001)
	assert.InDelta(t, PercentError(est.VelocityMPS, vTheo20), est.PercentError, 1e-12)
	assert.Less(t, est.PercentError, 0.01)

	for _, dt := range []float64{0, -2, math.NaN()} {
		_, err := EstimateSingle(15, dt, vTheo20)
		assert.ErrorIs(t, err, lab.ErrInvalidInput)
	}
	_, err = EstimateSingle(-1, 43, vTheo20)
	assert.ErrorIs(t, err, lab.ErrInvalidInput)
}

func TestTable(t *testing.T) {
	var tbl Table
	assert.Equal(t, 0, tbl.Len())

	i, err := tbl.Append(Row{3, 10})
	require.NoError(t, err)
	assert.Equal(t, 0, i)
	_, err = tbl.Fit(vTheo20)
	assert.ErrorIs(t, err, lab.ErrInsufficientData)

	_, err = tbl.Append(Row{6, 20})
	require.NoError(t, err)
	_, err = tbl.Append(Row{9, 30})
	require.NoError(t, err)

	res, err := tbl.Fit(vTheo20)
	require.NoError(t, err)
	assert.InDelta(t, 300, res.Slope, 1e-9)

	_, err = tbl.Append(Row{math.NaN(), 1})
	assert.ErrorIs(t, err, lab.ErrInvalidInput)
	assert.Equal(t, 3, tbl.Len(), "rejected append leaves table intact")

	// Editing a cell to blank is allowed; the fit reports it.
	require.NoError(t, tbl.Set(1, Row{math.NaN(), 20}))
	_, err = tbl.Fit(vTheo20)
	assert.ErrorIs(t, err, lab.ErrInvalidInput)
	assert.Equal(t, 3, tbl.Len())

	require.NoError(t, tbl.Delete(1))
	assert.Equal(t, []Row{{3, 10}, {9, 30}}, tbl.Rows())

	assert.ErrorIs(t, tbl.Set(5, Row{}), lab.ErrInvalidInput)
	assert.ErrorIs(t, tbl.Delete(-1), lab.ErrInvalidInput)

	rows := tbl.Rows()
	rows[0].DistanceM = 100
	assert.Equal(t, 3.0, tbl.Rows()[0].DistanceM, "Rows returns a copy")

	tbl.Replace([]Row{{1, 1}})
	assert.Equal(t, 1, tbl.Len())
}
