package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/soundlab/internal/monitoring"
	"github.com/banshee-data/soundlab/internal/pulse"
	"github.com/banshee-data/soundlab/internal/thermal"
	"github.com/banshee-data/soundlab/internal/timeutil"
)

// ErrNotFound is returned for unknown or expired session ids.
var ErrNotFound = errors.New("session not found")

// DefaultTTL is how long an untouched session is kept.
const DefaultTTL = 30 * time.Minute

// Options are applied to every new session.
type Options struct {
	DefaultTemperatureC float64
	Settle              time.Duration
	Tolerances          pulse.Tolerances
	// TTL is the idle time after which Sweep discards a session.
	TTL time.Duration
	// Seed, when set, gives every session the same reproducible random
	// stream.
	Seed *uint64
}

// DefaultOptions returns 20 °C, the default settle period and tolerances.
func DefaultOptions() Options {
	return Options{
		DefaultTemperatureC: 20,
		Settle:              pulse.DefaultSettle,
		Tolerances:          pulse.DefaultTolerances(),
		TTL:                 DefaultTTL,
	}
}

// Manager owns the live sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	opts     Options
	clock    timeutil.Clock
	rec      Recorder
	onEnd    []func(ctx context.Context, id string)
}

// NewManager creates an empty manager. rec may be nil to disable the attempt
// log; clock may be nil for the real clock.
func NewManager(opts Options, clock timeutil.Clock, rec Recorder) *Manager {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	opts.DefaultTemperatureC = thermal.ClampTemperature(opts.DefaultTemperatureC)
	return &Manager{
		sessions: make(map[string]*Session),
		opts:     opts,
		clock:    clock,
		rec:      rec,
	}
}

// Options returns the options applied to new sessions.
func (m *Manager) Options() Options { return m.opts }

// OnEnd registers f to run after a session is ended or expires.
func (m *Manager) OnEnd(f func(ctx context.Context, id string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEnd = append(m.onEnd, f)
}

// Create starts a new session.
func (m *Manager) Create() *Session {
	s := newSession(m.opts, m.clock, m.rec)
	m.mu.Lock()
	m.sessions[s.id] = s
	n := len(m.sessions)
	m.mu.Unlock()
	monitoring.Logf("session %s created (%d live)", s.id, n)
	return s
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	return s, nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// End discards a session and runs the OnEnd hooks.
func (m *Manager) End(ctx context.Context, id string) error {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	hooks := append([]func(context.Context, string){}, m.onEnd...)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	monitoring.Logf("session %s ended", id)
	for _, f := range hooks {
		f(ctx, id)
	}
	return nil
}

// Sweep ends every session idle for at least the TTL and returns how many
// were removed.
func (m *Manager) Sweep(ctx context.Context) int {
	// idle waits on each session's mutex, so it runs outside m.mu.
	m.mu.RLock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.RUnlock()

	var expired []string
	for _, s := range all {
		if s.idle() >= m.opts.TTL {
			expired = append(expired, s.ID())
		}
	}

	n := 0
	for _, id := range expired {
		if err := m.End(ctx, id); err == nil {
			n++
		}
	}
	if n > 0 {
		monitoring.Logf("swept %d idle sessions", n)
	}
	return n
}

// Run sweeps idle sessions every interval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := m.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			m.Sweep(ctx)
		}
	}
}
