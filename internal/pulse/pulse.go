// Package pulse simulates the pulse-echo method: two wooden blocks are struck
// at one end of a coiled hose, a microphone picks up the direct sound and the
// sound that travelled the hose, and the student measures the delay between
// the two peaks on the oscilloscope.
//
// A trial moves Idle -> Triggered -> Revealed. The reveal happens once the
// settle period has elapsed on the injected clock; nothing blocks while
// waiting, every read polls the transition instead.
package pulse

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/soundlab/internal/lab"
	"github.com/banshee-data/soundlab/internal/monitoring"
	"github.com/banshee-data/soundlab/internal/scope"
	"github.com/banshee-data/soundlab/internal/timeutil"
)

const (
	// HoseLength is the fixed path length of the delayed sound, in metres.
	HoseLength = 15.0

	// DelaySigma is the relative standard deviation of the delay ground truth.
	DelaySigma = 0.005
	// MaxDelayDeviation is the relative bound the drawn delay never leaves
	// (1.5σ of DelaySigma).
	MaxDelayDeviation = 0.0075
	// maxRedraws bounds the truncation loop of the delay multiplier.
	maxRedraws = 64

	PulseCenter  = 0.005 // s, CH1 peak
	PulseWidth   = 0.002 // s, Gaussian sigma of the pulse shape
	ReceiverGain = 0.6   // CH2 amplitude relative to CH1
	NoiseSigma   = 0.02  // V, additive noise per channel

	RecordLength  = 0.1 // s
	RecordSamples = 2000

	MinWindowMs     = 10.0
	MaxWindowMs     = 100.0
	DefaultWindowMs = 60.0

	DefaultSettle = 3 * time.Second
)

// State is the lifecycle of the current trial.
type State int

const (
	Idle State = iota
	Triggered
	Revealed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Triggered:
		return "triggered"
	case Revealed:
		return "revealed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(b []byte) error {
	for _, st := range []State{Idle, Triggered, Revealed} {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown pulse state %q", b)
}

// Tolerances used by the verification steps.
type Tolerances struct {
	DelayMs     float64 // accepted |user - actual| for Δt
	VelocityMPS float64 // accepted |user - d/Δt|
	TheoryMPS   float64 // "close to theory" bonus band
}

// DefaultTolerances returns 0.5 ms, 1 m/s and 10 m/s.
func DefaultTolerances() Tolerances {
	return Tolerances{DelayMs: 0.5, VelocityMPS: 1.0, TheoryMPS: 10.0}
}

// Config configures a Simulator. Zero Distance and Tolerances take their
// defaults; a zero Settle reveals a trial on the first poll.
type Config struct {
	Distance   float64
	Settle     time.Duration
	Tolerances Tolerances
}

func (c Config) withDefaults() Config {
	if c.Distance <= 0 {
		c.Distance = HoseLength
	}
	if c.Settle < 0 {
		c.Settle = 0
	}
	d := DefaultTolerances()
	if c.Tolerances.DelayMs <= 0 {
		c.Tolerances.DelayMs = d.DelayMs
	}
	if c.Tolerances.VelocityMPS <= 0 {
		c.Tolerances.VelocityMPS = d.VelocityMPS
	}
	if c.Tolerances.TheoryMPS <= 0 {
		c.Tolerances.TheoryMPS = d.TheoryMPS
	}
	return c
}

// Trial is the ground truth of one trigger. Delay is never serialised.
type Trial struct {
	ID               string    `json:"id"`
	Distance         float64   `json:"distance_m"`
	TheoreticalSpeed float64   `json:"-"`
	Delay            float64   `json:"-"`
	TriggeredAt      time.Time `json:"triggered_at"`
}

// DelayMs returns the ground-truth delay in milliseconds.
func (t Trial) DelayMs() float64 { return t.Delay * 1000 }

// Status is a snapshot of the simulator for the presentation layer.
type Status struct {
	State             State   `json:"state"`
	Trial             *Trial  `json:"trial,omitempty"`
	SettleRemainingMs float64 `json:"settle_remaining_ms"`
}

// Simulator holds the current pulse-echo trial. It is not safe for
// concurrent use; the owning session serialises access.
type Simulator struct {
	cfg   Config
	clock timeutil.Clock
	src   rand.Source
	state State
	trial Trial
}

// NewSimulator creates an idle simulator. clock and src are injected so tests
// can control the settle period and the random draws; nil values fall back
// to the real clock and the global generator.
func NewSimulator(cfg Config, clock timeutil.Clock, src rand.Source) *Simulator {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Simulator{cfg: cfg.withDefaults(), clock: clock, src: src}
}

// Config returns the effective configuration.
func (s *Simulator) Config() Config { return s.cfg }

// Trigger starts a new trial for the given theoretical speed, replacing any
// previous one. The delay ground truth is drawn exactly once here.
func (s *Simulator) Trigger(theoreticalSpeed float64) (Trial, error) {
	if !(theoreticalSpeed > 0) || math.IsInf(theoreticalSpeed, 0) {
		return Trial{}, fmt.Errorf("theoretical speed must be > 0, got %f: %w", theoreticalSpeed, lab.ErrInvalidInput)
	}
	s.trial = Trial{
		ID:               uuid.NewString(),
		Distance:         s.cfg.Distance,
		TheoreticalSpeed: theoreticalSpeed,
		Delay:            s.cfg.Distance / theoreticalSpeed * s.drawMultiplier(),
		TriggeredAt:      s.clock.Now(),
	}
	s.state = Triggered
	monitoring.Logf("pulse trial %s triggered: v_theo=%.2f m/s settle=%s", s.trial.ID, theoreticalSpeed, s.cfg.Settle)
	return s.trial, nil
}

// drawMultiplier samples N(1, DelaySigma) truncated to 1 ± MaxDelayDeviation.
func (s *Simulator) drawMultiplier() float64 {
	n := distuv.Normal{Mu: 1, Sigma: DelaySigma, Src: s.src}
	for i := 0; i < maxRedraws; i++ {
		if m := n.Rand(); math.Abs(m-1) <= MaxDelayDeviation {
			return m
		}
	}
	return 1
}

// Poll completes Triggered -> Revealed once the settle period has elapsed
// and returns the resulting state.
func (s *Simulator) Poll() State {
	if s.state == Triggered && s.clock.Since(s.trial.TriggeredAt) >= s.cfg.Settle {
		s.state = Revealed
		monitoring.Logf("pulse trial %s revealed", s.trial.ID)
	}
	return s.state
}

// Status polls and reports the current state.
func (s *Simulator) Status() Status {
	st := Status{State: s.Poll()}
	if st.State == Idle {
		return st
	}
	trial := s.trial
	st.Trial = &trial
	if st.State == Triggered {
		remaining := s.cfg.Settle - s.clock.Since(s.trial.TriggeredAt)
		st.SettleRemainingMs = float64(remaining) / float64(time.Millisecond)
	}
	return st
}

// Trial returns the current trial, if any.
func (s *Simulator) Trial() (Trial, bool) {
	return s.trial, s.state != Idle
}

func (s *Simulator) requireRevealed() error {
	if s.Poll() != Revealed {
		return fmt.Errorf("pulse trial is %s: %w", s.state, lab.ErrNotRevealed)
	}
	return nil
}

// NormalizeWindow maps a requested display window in ms onto the slider
// range; 0 selects the default.
func NormalizeWindow(windowMs float64) (float64, error) {
	switch {
	case math.IsNaN(windowMs) || windowMs < 0:
		return 0, fmt.Errorf("window must be >= 0 ms, got %f: %w", windowMs, lab.ErrInvalidInput)
	case windowMs == 0:
		return DefaultWindowMs, nil
	default:
		return math.Max(MinWindowMs, math.Min(MaxWindowMs, windowMs)), nil
	}
}

// Render produces both channels over the display window. Noise is drawn
// fresh on every call; the delay comes from the current trial.
func (s *Simulator) Render(windowMs float64) (scope.Trace, error) {
	if err := s.requireRevealed(); err != nil {
		return scope.Trace{}, err
	}
	w, err := NormalizeWindow(windowMs)
	if err != nil {
		return scope.Trace{}, err
	}

	t, err := scope.TimeBase(RecordSamples, RecordLength)
	if err != nil {
		return scope.Trace{}, err
	}
	ch1 := scope.GaussianPulse(t, PulseCenter, PulseWidth, 1)
	ch2 := scope.GaussianPulse(t, PulseCenter+s.trial.Delay, PulseWidth, ReceiverGain)
	scope.AddNoise(ch2, NoiseSigma, s.src)
	scope.AddNoise(ch1, NoiseSigma, s.src)

	full := scope.Trace{Time: t, CH1: ch1, CH2: ch2, YMin: -1, YMax: 1}
	return full.Crop(w / 1000), nil
}

// DelayCheck is the result of VerifyDelay. ActualMs is disclosed on pass.
type DelayCheck struct {
	lab.Verdict
	ActualMs *float64 `json:"actual_ms,omitempty"`
}

// VerifyDelay compares a measured Δt in ms with the trial's ground truth.
func (s *Simulator) VerifyDelay(userDtMs float64) (DelayCheck, error) {
	if err := s.requireRevealed(); err != nil {
		return DelayCheck{}, err
	}
	if math.IsNaN(userDtMs) || math.IsInf(userDtMs, 0) {
		return DelayCheck{}, fmt.Errorf("Δt must be a number: %w", lab.ErrInvalidInput)
	}
	actual := s.trial.DelayMs()
	if math.Abs(userDtMs-actual) <= s.cfg.Tolerances.DelayMs {
		return DelayCheck{
			Verdict:  lab.Verdict{Pass: true, Message: fmt.Sprintf("Correct time! The propagation time is approximately %.1f ms.", actual)},
			ActualMs: &actual,
		}, nil
	}
	return DelayCheck{Verdict: lab.Verdict{
		Message: "Incorrect time. Check the reading on the oscilloscope grid: count the divisions between the two peaks and multiply by the value of each division (time base / 10).",
	}}, nil
}

// VelocityCheck is the result of VerifyVelocity.
type VelocityCheck struct {
	lab.Verdict
	ExpectedMPS   *float64 `json:"expected_mps,omitempty"`
	NearTheory    bool     `json:"near_theory"`
	TheoryMessage string   `json:"theory_message,omitempty"`
}

// VerifyVelocity checks the student's v against d/Δt computed from their own
// Δt. The near-theory flag is informational and never affects Pass.
func (s *Simulator) VerifyVelocity(userDtMs, userVelocity, theoreticalSpeed float64) (VelocityCheck, error) {
	if !(userDtMs > 0) || math.IsInf(userDtMs, 0) {
		return VelocityCheck{}, fmt.Errorf("a valid Δt (> 0 ms) is required before checking the velocity: %w", lab.ErrInvalidInput)
	}
	if math.IsNaN(userVelocity) || math.IsInf(userVelocity, 0) {
		return VelocityCheck{}, fmt.Errorf("velocity must be a number: %w", lab.ErrInvalidInput)
	}

	expected := s.cfg.Distance / (userDtMs / 1000)
	if math.Abs(userVelocity-expected) > s.cfg.Tolerances.VelocityMPS {
		return VelocityCheck{Verdict: lab.Verdict{
			Message: "Incorrect velocity. Review your calculation: v = d/Δt, and the time must be in seconds.",
		}}, nil
	}

	res := VelocityCheck{
		Verdict: lab.Verdict{
			Pass:    true,
			Message: fmt.Sprintf("Correct velocity! With a time of %g ms the velocity is approximately %.1f m/s.", userDtMs, expected),
		},
		ExpectedMPS: &expected,
	}
	if math.Abs(userVelocity-theoreticalSpeed) <= s.cfg.Tolerances.TheoryMPS {
		res.NearTheory = true
		res.TheoryMessage = fmt.Sprintf("Your experimental value is very close to the theoretical value for the current temperature (%.1f m/s)!", theoreticalSpeed)
	}
	return res, nil
}
