package phase

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/soundlab/internal/lab"
)

const vTheo20 = 343.49

func TestCompute(t *testing.T) {
	got, err := Compute(Setup{FrequencyHz: 1500, DistanceM: 0.75}, vTheo20)
	require.NoError(t, err)

	want := Metrics{
		DelayS:       0.75 / vTheo20,
		DelayMs:      2.183469678884393,
		WavelengthM:  0.22899333333333333,
		PhaseDegrees: 99.073626597572,
		Window:       5.0 / 1500,
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("Compute mismatch (-want +got):\n%s", diff)
	}
	assert.InDelta(t, 2.184, got.DelayMs, 0.001)
	assert.InDelta(t, 0.2290, got.WavelengthM, 0.0001)
}

func TestComputeAtSpeaker(t *testing.T) {
	got, err := Compute(DefaultSetup(), vTheo20)
	require.NoError(t, err)
	assert.Zero(t, got.DelayMs)
	assert.Zero(t, got.PhaseDegrees)
}

func TestPhaseAlwaysInRange(t *testing.T) {
	for f := MinFrequencyHz; f <= MaxFrequencyHz; f += 100 {
		for cm := 0; cm <= 150; cm++ {
			d := float64(cm) / 100
			m, err := Compute(Setup{FrequencyHz: f, DistanceM: d}, vTheo20)
			require.NoError(t, err)
			if m.PhaseDegrees < 0 || m.PhaseDegrees >= 360 {
				t.Fatalf("f=%d d=%.2f: phase %f outside [0,360)", f, d, m.PhaseDegrees)
			}
		}
	}
}

func TestWrapDegrees(t *testing.T) {
	assert.Equal(t, 0.0, wrapDegrees(360))
	assert.Equal(t, 0.0, wrapDegrees(720))
	assert.InDelta(t, 10, wrapDegrees(370), 1e-12)
	assert.InDelta(t, 350, wrapDegrees(-10), 1e-12)
}

func TestWindow(t *testing.T) {
	assert.InDelta(t, 0.01, window(500), 1e-15)
	assert.InDelta(t, 0.002, window(2500), 1e-15)
	assert.InDelta(t, 0.002, window(3000), 1e-15, "minimum window applies above 2500 Hz")
}

func TestValidate(t *testing.T) {
	tests := []Setup{
		{FrequencyHz: 499, DistanceM: 0.5},
		{FrequencyHz: 3001, DistanceM: 0.5},
		{FrequencyHz: 1500, DistanceM: -0.01},
		{FrequencyHz: 1500, DistanceM: 1.51},
		{FrequencyHz: 1500, DistanceM: math.NaN()},
	}
	for _, s := range tests {
		assert.ErrorIs(t, s.Validate(), lab.ErrInvalidInput, "%+v", s)
		_, err := Compute(s, vTheo20)
		assert.ErrorIs(t, err, lab.ErrInvalidInput)
	}
	assert.NoError(t, Setup{FrequencyHz: 500, DistanceM: 1.5}.Validate())

	_, err := Compute(DefaultSetup(), 0)
	assert.ErrorIs(t, err, lab.ErrInvalidInput)
}

func TestRender(t *testing.T) {
	s := Setup{FrequencyHz: 1500, DistanceM: 0.75}
	tr, m, err := Render(s, vTheo20, rand.NewPCG(1, 2))
	require.NoError(t, err)

	assert.Equal(t, Samples, tr.Len())
	assert.Equal(t, 0.0, tr.Time[0])
	assert.InDelta(t, m.Window, tr.Time[tr.Len()-1], 1e-15)
	assert.Equal(t, -1.5, tr.YMin)
	assert.Equal(t, 1.5, tr.YMax)

	for i, ti := range tr.Time {
		assert.InDelta(t, math.Sin(2*math.Pi*1500*ti), tr.CH1[i], 1e-12)
	}

	// Residual of CH2 against the noiseless delayed sinusoid is the noise.
	resid := make([]float64, tr.Len())
	for i, ti := range tr.Time {
		resid[i] = tr.CH2[i] - 0.8*math.Sin(2*math.Pi*1500*(ti-m.DelayS))
	}
	assert.InDelta(t, 0, stat.Mean(resid, nil), 0.015)
	assert.InDelta(t, NoiseSigma, stat.StdDev(resid, nil), 0.01)

	_, _, err = Render(Setup{FrequencyHz: 100}, vTheo20, nil)
	assert.ErrorIs(t, err, lab.ErrInvalidInput)
}
