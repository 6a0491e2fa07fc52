package session

import (
	"context"
	"math"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/soundlab/internal/lab"
	"github.com/banshee-data/soundlab/internal/monitoring"
	"github.com/banshee-data/soundlab/internal/phase"
	"github.com/banshee-data/soundlab/internal/pulse"
	"github.com/banshee-data/soundlab/internal/regression"
	"github.com/banshee-data/soundlab/internal/store"
	"github.com/banshee-data/soundlab/internal/timeutil"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

func newTestManager(t *testing.T) (*Manager, *timeutil.MockClock, *store.Store) {
	t.Helper()
	st, err := store.Open()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	seed := uint64(7)
	opts := DefaultOptions()
	opts.Seed = &seed
	clock := timeutil.NewMockClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	m := NewManager(opts, clock, st)
	m.OnEnd(func(ctx context.Context, id string) {
		_, _ = st.Purge(ctx, id)
	})
	return m, clock, st
}

func TestNewSessionDefaults(t *testing.T) {
	m, _, _ := newTestManager(t)
	s := m.Create()

	env := s.Environment()
	assert.Equal(t, 20.0, env.TemperatureC)
	assert.InDelta(t, 343.49, env.TheoreticalSpeed, 1e-9)
	assert.Equal(t, lab.PulseEcho, s.Procedure())
	assert.Equal(t, pulse.Idle, s.PulseStatus().State)
	assert.Empty(t, s.Rows())

	v, err := s.Phase()
	require.NoError(t, err)
	assert.Equal(t, phase.DefaultSetup(), v.Setup)
}

func TestPulseWorkflow(t *testing.T) {
	ctx := context.Background()
	m, clock, st := newTestManager(t)
	s := m.Create()

	_, err := s.PulseTrace(0)
	assert.ErrorIs(t, err, lab.ErrNotRevealed)

	status, err := s.TriggerPulse(ctx)
	require.NoError(t, err)
	assert.Equal(t, pulse.Triggered, status.State)
	require.NotNil(t, status.Trial)

	_, err = s.VerifyDelay(ctx, 43)
	assert.ErrorIs(t, err, lab.ErrNotRevealed)

	clock.Advance(pulse.DefaultSettle)
	assert.Equal(t, pulse.Revealed, s.PulseStatus().State)

	trace, err := s.PulseTrace(100)
	require.NoError(t, err)
	assert.Equal(t, pulse.RecordSamples, trace.Len())

	// The ground truth is within ±0.75% of 15/v.
	nominal := 15.0 / s.Environment().TheoreticalSpeed * 1000
	miss, err := s.VerifyDelay(ctx, nominal+5)
	require.NoError(t, err)
	assert.False(t, miss.Pass)

	vc, err := s.VerifyVelocity(ctx, 43.67, 343.49)
	require.NoError(t, err)
	assert.True(t, vc.Pass)
	assert.True(t, vc.NearTheory)

	attempts, err := st.Attempts(ctx, s.ID())
	require.NoError(t, err)
	require.Len(t, attempts, 4)
	assert.Equal(t, store.ActionTrigger, attempts[0].Action)
	assert.Equal(t, status.Trial.ID, attempts[0].TrialID)
	assert.Equal(t, "not_revealed", attempts[1].Kind)
	assert.Nil(t, attempts[1].Pass)
	require.NotNil(t, attempts[2].Pass)
	assert.False(t, *attempts[2].Pass)
	assert.Equal(t, store.ActionVerifyVelocity, attempts[3].Action)
	assert.JSONEq(t, `{"dt_ms":43.67,"velocity_mps":343.49}`, attempts[3].Input)
}

func TestSetTemperatureKeepsTrial(t *testing.T) {
	ctx := context.Background()
	m, clock, _ := newTestManager(t)
	s := m.Create()

	status, err := s.TriggerPulse(ctx)
	require.NoError(t, err)
	clock.Advance(pulse.DefaultSettle)

	env := s.SetTemperature(55)
	assert.Equal(t, 40.0, env.TemperatureC)

	after := s.PulseStatus()
	require.NotNil(t, after.Trial)
	assert.Equal(t, status.Trial.ID, after.Trial.ID)
}

func TestSetProcedureAndSnapshot(t *testing.T) {
	m, _, _ := newTestManager(t)
	s := m.Create()

	snap := s.Snapshot()
	assert.NotNil(t, snap.Pulse)
	assert.Nil(t, snap.Phase)

	_, err := s.SetProcedure("titration")
	assert.ErrorIs(t, err, lab.ErrInvalidInput)
	assert.Equal(t, lab.PulseEcho, s.Procedure())

	p, err := s.SetProcedure("phase_shift")
	require.NoError(t, err)
	assert.Equal(t, lab.PhaseShift, p)
	snap = s.Snapshot()
	assert.Nil(t, snap.Pulse)
	require.NotNil(t, snap.Phase)

	_, err = s.SetProcedure("data_analysis")
	require.NoError(t, err)
	snap = s.Snapshot()
	require.NotNil(t, snap.Analysis)
	assert.Equal(t, "insufficient_data", snap.Analysis.Kind)
	assert.Nil(t, snap.Analysis.Result)
}

func TestPhaseBench(t *testing.T) {
	m, _, _ := newTestManager(t)
	s := m.Create()

	v, err := s.SetPhase(phase.Setup{FrequencyHz: 1500, DistanceM: 0.75})
	require.NoError(t, err)
	assert.InDelta(t, 2.1835, v.Metrics.DelayMs, 1e-4)
	assert.InDelta(t, 99.07, v.Metrics.PhaseDegrees, 0.01)

	_, err = s.SetPhase(phase.Setup{FrequencyHz: 100, DistanceM: 0.5})
	assert.ErrorIs(t, err, lab.ErrInvalidInput)
	cur, err := s.Phase()
	require.NoError(t, err)
	assert.Equal(t, 0.75, cur.Setup.DistanceM, "invalid setup leaves bench unchanged")

	trace, metrics, err := s.PhaseTrace()
	require.NoError(t, err)
	assert.Equal(t, phase.Samples, trace.Len())
	assert.Equal(t, v.Metrics, metrics)
}

func TestTableAndAnalysis(t *testing.T) {
	ctx := context.Background()
	m, _, st := newTestManager(t)
	s := m.Create()

	_, err := s.Analysis(ctx)
	assert.ErrorIs(t, err, lab.ErrInsufficientData)

	for _, r := range []regression.Row{{DistanceM: 3, DelayMs: 10}, {DistanceM: 6, DelayMs: 20}, {DistanceM: 9, DelayMs: 30}} {
		_, err := s.AddRow(r)
		require.NoError(t, err)
	}
	view, err := s.Analysis(ctx)
	require.NoError(t, err)
	require.NotNil(t, view.Result)
	assert.InDelta(t, 300, view.Result.Slope, 1e-9)
	assert.Len(t, view.Rows, 3)

	require.NoError(t, s.SetRow(1, regression.Row{DistanceM: math.NaN(), DelayMs: 20}))
	_, err = s.Analysis(ctx)
	assert.ErrorIs(t, err, lab.ErrInvalidInput)
	view = s.AnalysisView()
	assert.Equal(t, "invalid_input", view.Kind)
	assert.Len(t, view.Rows, 3)

	require.NoError(t, s.DeleteRow(1))
	assert.Len(t, s.Rows(), 2)
	assert.ErrorIs(t, s.DeleteRow(5), lab.ErrInvalidInput)

	s.ReplaceRows([]regression.Row{{DistanceM: 1, DelayMs: 5}, {DistanceM: 2, DelayMs: 5}})
	_, err = s.Analysis(ctx)
	assert.ErrorIs(t, err, lab.ErrDegenerateFit)

	est, err := s.Estimate(ctx, 15, 43.67)
	require.NoError(t, err)
	assert.InDelta(t, 343.485, est.VelocityMPS, 1e-3)
	_, err = s.Estimate(ctx, 15, 0)
	assert.ErrorIs(t, err, lab.ErrInvalidInput)

	attempts, err := st.Attempts(ctx, s.ID())
	require.NoError(t, err)
	require.Len(t, attempts, 6)
	assert.Equal(t, "insufficient_data", attempts[0].Kind)
	assert.Equal(t, store.ActionEstimate, attempts[5].Action)
}

func TestSeededSessionsAreReproducible(t *testing.T) {
	ctx := context.Background()
	m, clock, _ := newTestManager(t)
	a, b := m.Create(), m.Create()
	assert.NotEqual(t, a.ID(), b.ID())

	_, err := a.TriggerPulse(ctx)
	require.NoError(t, err)
	_, err = b.TriggerPulse(ctx)
	require.NoError(t, err)
	clock.Advance(pulse.DefaultSettle)

	ta, err := a.PulseTrace(60)
	require.NoError(t, err)
	tb, err := b.PulseTrace(60)
	require.NoError(t, err)
	assert.Equal(t, ta.CH2, tb.CH2)
}
