// Package session holds the per-student lab state: the environment, the
// active procedure, the pulse-echo trial, the phase-shift bench and the
// measurement table. Every action on a Session runs under its mutex, so a
// session behaves as a single logical thread.
package session

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/soundlab/internal/lab"
	"github.com/banshee-data/soundlab/internal/monitoring"
	"github.com/banshee-data/soundlab/internal/phase"
	"github.com/banshee-data/soundlab/internal/pulse"
	"github.com/banshee-data/soundlab/internal/regression"
	"github.com/banshee-data/soundlab/internal/scope"
	"github.com/banshee-data/soundlab/internal/store"
	"github.com/banshee-data/soundlab/internal/thermal"
	"github.com/banshee-data/soundlab/internal/timeutil"
)

// Recorder receives the attempt log. *store.Store implements it.
type Recorder interface {
	Record(ctx context.Context, a store.Attempt) (int64, error)
}

// Session is one student's lab bench.
type Session struct {
	mu sync.Mutex

	id        string
	createdAt time.Time
	lastSeen  time.Time
	clock     timeutil.Clock
	src       rand.Source
	rec       Recorder

	env       thermal.Environment
	procedure lab.Procedure
	pulse     *pulse.Simulator
	phase     phase.Setup
	table     regression.Table
}

func newSession(opts Options, clock timeutil.Clock, rec Recorder) *Session {
	var src rand.Source
	if opts.Seed != nil {
		src = rand.NewPCG(*opts.Seed, *opts.Seed)
	} else {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	now := clock.Now()
	return &Session{
		id:        uuid.NewString(),
		createdAt: now,
		lastSeen:  now,
		clock:     clock,
		src:       src,
		rec:       rec,
		env:       thermal.NewEnvironment(opts.DefaultTemperatureC),
		procedure: lab.PulseEcho,
		pulse: pulse.NewSimulator(pulse.Config{
			Settle:     opts.Settle,
			Tolerances: opts.Tolerances,
		}, clock, src),
		phase: phase.DefaultSetup(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// lock acquires the session and marks it as in use.
func (s *Session) lock() {
	s.mu.Lock()
	s.lastSeen = s.clock.Now()
}

func (s *Session) idle() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock.Since(s.lastSeen)
}

// record logs an attempt. Failures are logged and never surface to the
// caller; the log is informational.
func (s *Session) record(ctx context.Context, action, trialID string, input any, pass *bool, err error) {
	if s.rec == nil {
		return
	}
	a := store.Attempt{
		SessionID: s.id,
		TrialID:   trialID,
		Procedure: string(s.procedure),
		Action:    action,
		Pass:      pass,
		Kind:      lab.Kind(err),
		CreatedAt: s.clock.Now(),
	}
	if input != nil {
		if b, mErr := json.Marshal(input); mErr == nil {
			a.Input = string(b)
		}
	}
	if err != nil {
		a.Message = err.Error()
	}
	if _, rErr := s.rec.Record(ctx, a); rErr != nil {
		monitoring.Logf("session %s: failed to record %s attempt: %v", s.id, action, rErr)
	}
}

func boolPtr(b bool) *bool { return &b }

// Environment returns the current temperature and theoretical speed.
func (s *Session) Environment() thermal.Environment {
	s.lock()
	defer s.mu.Unlock()
	return s.env
}

// SetTemperature clamps t to [0, 40] °C and recomputes the theoretical
// speed. A pending pulse trial keeps the ground truth drawn at trigger time.
func (s *Session) SetTemperature(t float64) thermal.Environment {
	s.lock()
	defer s.mu.Unlock()
	s.env = thermal.NewEnvironment(t)
	return s.env
}

// Procedure returns the active procedure.
func (s *Session) Procedure() lab.Procedure {
	s.lock()
	defer s.mu.Unlock()
	return s.procedure
}

// SetProcedure switches the active page. State of the other procedures is
// kept.
func (s *Session) SetProcedure(name string) (lab.Procedure, error) {
	p, err := lab.ParseProcedure(name)
	if err != nil {
		return "", err
	}
	s.lock()
	defer s.mu.Unlock()
	s.procedure = p
	return p, nil
}

// TriggerPulse strikes the blocks and starts a new pulse-echo trial.
func (s *Session) TriggerPulse(ctx context.Context) (pulse.Status, error) {
	s.lock()
	defer s.mu.Unlock()
	trial, err := s.pulse.Trigger(s.env.TheoreticalSpeed)
	s.record(ctx, store.ActionTrigger, trial.ID, map[string]float64{"temperature_c": s.env.TemperatureC}, nil, err)
	if err != nil {
		return pulse.Status{}, err
	}
	return s.pulse.Status(), nil
}

// PulseStatus polls the settle period and reports the trial state.
func (s *Session) PulseStatus() pulse.Status {
	s.lock()
	defer s.mu.Unlock()
	return s.pulse.Status()
}

// PulseTrace renders the oscilloscope for a revealed trial.
func (s *Session) PulseTrace(windowMs float64) (scope.Trace, error) {
	s.lock()
	defer s.mu.Unlock()
	return s.pulse.Render(windowMs)
}

func (s *Session) trialID() string {
	if t, ok := s.pulse.Trial(); ok {
		return t.ID
	}
	return ""
}

// VerifyDelay checks the student's Δt reading.
func (s *Session) VerifyDelay(ctx context.Context, dtMs float64) (pulse.DelayCheck, error) {
	s.lock()
	defer s.mu.Unlock()
	res, err := s.pulse.VerifyDelay(dtMs)
	var pass *bool
	if err == nil {
		pass = boolPtr(res.Pass)
	}
	s.record(ctx, store.ActionVerifyDelay, s.trialID(), map[string]float64{"dt_ms": dtMs}, pass, err)
	return res, err
}

// VerifyVelocity checks the student's v against their own Δt.
func (s *Session) VerifyVelocity(ctx context.Context, dtMs, velocity float64) (pulse.VelocityCheck, error) {
	s.lock()
	defer s.mu.Unlock()
	res, err := s.pulse.VerifyVelocity(dtMs, velocity, s.env.TheoreticalSpeed)
	var pass *bool
	if err == nil {
		pass = boolPtr(res.Pass)
	}
	s.record(ctx, store.ActionVerifyVelocity, s.trialID(),
		map[string]float64{"dt_ms": dtMs, "velocity_mps": velocity}, pass, err)
	return res, err
}

// PhaseView is the phase-shift bench with its derived metrics.
type PhaseView struct {
	Setup   phase.Setup   `json:"setup"`
	Metrics phase.Metrics `json:"metrics"`
}

// SetPhase moves the generator dial and the microphone. Invalid settings
// leave the bench unchanged.
func (s *Session) SetPhase(setup phase.Setup) (PhaseView, error) {
	s.lock()
	defer s.mu.Unlock()
	m, err := phase.Compute(setup, s.env.TheoreticalSpeed)
	if err != nil {
		return PhaseView{}, err
	}
	s.phase = setup
	return PhaseView{Setup: setup, Metrics: m}, nil
}

// Phase returns the current bench and metrics.
func (s *Session) Phase() (PhaseView, error) {
	s.lock()
	defer s.mu.Unlock()
	return s.phaseView()
}

func (s *Session) phaseView() (PhaseView, error) {
	m, err := phase.Compute(s.phase, s.env.TheoreticalSpeed)
	if err != nil {
		return PhaseView{}, err
	}
	return PhaseView{Setup: s.phase, Metrics: m}, nil
}

// PhaseTrace renders both sinusoids for the current bench.
func (s *Session) PhaseTrace() (scope.Trace, phase.Metrics, error) {
	s.lock()
	defer s.mu.Unlock()
	return phase.Render(s.phase, s.env.TheoreticalSpeed, s.src)
}

// Rows returns a copy of the measurement table.
func (s *Session) Rows() []regression.Row {
	s.lock()
	defer s.mu.Unlock()
	return s.table.Rows()
}

// AddRow appends a numeric measurement and returns its index.
func (s *Session) AddRow(r regression.Row) (int, error) {
	s.lock()
	defer s.mu.Unlock()
	return s.table.Append(r)
}

// SetRow edits row i.
func (s *Session) SetRow(i int, r regression.Row) error {
	s.lock()
	defer s.mu.Unlock()
	return s.table.Set(i, r)
}

// DeleteRow removes row i.
func (s *Session) DeleteRow(i int) error {
	s.lock()
	defer s.mu.Unlock()
	return s.table.Delete(i)
}

// ReplaceRows swaps the whole table, as the table editor does on save.
func (s *Session) ReplaceRows(rows []regression.Row) {
	s.lock()
	defer s.mu.Unlock()
	s.table.Replace(rows)
}

// Analysis fits the measurement table against the current theory and logs
// the attempt. The view carries the rows with either the fit or the warning
// that prevented it; err is the same warning.
func (s *Session) Analysis(ctx context.Context) (AnalysisView, error) {
	s.lock()
	defer s.mu.Unlock()
	v, err := s.analysisView()
	s.record(ctx, store.ActionFit, "", map[string]int{"rows": len(v.Rows)}, boolPtr(err == nil), err)
	return *v, err
}

// Estimate computes the single-measurement velocity.
func (s *Session) Estimate(ctx context.Context, distanceM, dtMs float64) (regression.Estimate, error) {
	s.lock()
	defer s.mu.Unlock()
	res, err := regression.EstimateSingle(distanceM, dtMs, s.env.TheoreticalSpeed)
	s.record(ctx, store.ActionEstimate, "",
		map[string]float64{"distance_m": distanceM, "dt_ms": dtMs}, boolPtr(err == nil), err)
	return res, err
}

// AnalysisView is the data-analysis page: rows plus the fit, or the
// warning that prevents one.
type AnalysisView struct {
	Rows    []regression.Row   `json:"rows"`
	Result  *regression.Result `json:"result,omitempty"`
	Kind    string             `json:"kind,omitempty"`
	Warning string             `json:"warning,omitempty"`
}

// Snapshot is the view of a session for the presentation layer. Only the
// active procedure's section is filled.
type Snapshot struct {
	ID          string              `json:"id"`
	CreatedAt   time.Time           `json:"created_at"`
	Procedure   lab.Procedure       `json:"procedure"`
	Environment thermal.Environment `json:"environment"`
	Pulse       *pulse.Status       `json:"pulse,omitempty"`
	Phase       *PhaseView          `json:"phase,omitempty"`
	Analysis    *AnalysisView       `json:"analysis,omitempty"`
}

// Snapshot reports the session without recording any attempt.
func (s *Session) Snapshot() Snapshot {
	s.lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:          s.id,
		CreatedAt:   s.createdAt,
		Procedure:   s.procedure,
		Environment: s.env,
	}
	switch s.procedure {
	case lab.PulseEcho:
		st := s.pulse.Status()
		snap.Pulse = &st
	case lab.PhaseShift:
		if v, err := s.phaseView(); err == nil {
			snap.Phase = &v
		}
	case lab.DataAnalysis:
		snap.Analysis, _ = s.analysisView()
	}
	return snap
}

func (s *Session) analysisView() (*AnalysisView, error) {
	v := &AnalysisView{Rows: s.table.Rows()}
	res, err := s.table.Fit(s.env.TheoreticalSpeed)
	if err != nil {
		v.Kind = lab.Kind(err)
		v.Warning = err.Error()
		return v, err
	}
	v.Result = &res
	return v, nil
}

// AnalysisView returns the rows with the fit or its warning. Unlike
// Analysis it does not log an attempt.
func (s *Session) AnalysisView() AnalysisView {
	s.lock()
	defer s.mu.Unlock()
	v, _ := s.analysisView()
	return *v
}
