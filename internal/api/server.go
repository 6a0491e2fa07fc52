// Package api exposes lab sessions over HTTP/JSON.
package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/soundlab/internal/httputil"
	"github.com/banshee-data/soundlab/internal/lab"
	"github.com/banshee-data/soundlab/internal/monitoring"
	"github.com/banshee-data/soundlab/internal/session"
	"github.com/banshee-data/soundlab/internal/store"
	"github.com/banshee-data/soundlab/internal/units"
	"github.com/banshee-data/soundlab/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// AttemptLister reads the attempt log. *store.Store implements it.
type AttemptLister interface {
	Attempts(ctx context.Context, sessionID string) ([]store.Attempt, error)
}

type Server struct {
	sessions *session.Manager
	attempts AttemptLister
}

// NewServer serves the sessions of m. attempts may be nil when the attempt
// log is disabled.
func NewServer(m *session.Manager, attempts AttemptLister) *Server {
	return &Server{
		sessions: m,
		attempts: attempts,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux routes every lab endpoint.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/config", s.showConfig)

	mux.HandleFunc("POST /api/sessions", s.createSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.withSession(s.showSession))
	mux.HandleFunc("DELETE /api/sessions/{id}", s.endSession)
	mux.HandleFunc("PUT /api/sessions/{id}/temperature", s.withSession(s.setTemperature))
	mux.HandleFunc("PUT /api/sessions/{id}/procedure", s.withSession(s.setProcedure))
	mux.HandleFunc("GET /api/sessions/{id}/attempts", s.withSession(s.listAttempts))

	mux.HandleFunc("POST /api/sessions/{id}/pulse/trigger", s.withSession(s.triggerPulse))
	mux.HandleFunc("GET /api/sessions/{id}/pulse", s.withSession(s.showPulse))
	mux.HandleFunc("GET /api/sessions/{id}/pulse/trace", s.withSession(s.pulseTrace))
	mux.HandleFunc("GET /api/sessions/{id}/pulse/chart", s.withSession(s.pulseChart))
	mux.HandleFunc("POST /api/sessions/{id}/pulse/verify-delay", s.withSession(s.verifyDelay))
	mux.HandleFunc("POST /api/sessions/{id}/pulse/verify-velocity", s.withSession(s.verifyVelocity))

	mux.HandleFunc("PUT /api/sessions/{id}/phase", s.withSession(s.setPhase))
	mux.HandleFunc("GET /api/sessions/{id}/phase", s.withSession(s.showPhase))
	mux.HandleFunc("GET /api/sessions/{id}/phase/trace", s.withSession(s.phaseTrace))
	mux.HandleFunc("GET /api/sessions/{id}/phase/chart", s.withSession(s.phaseChart))

	mux.HandleFunc("GET /api/sessions/{id}/table", s.withSession(s.showTable))
	mux.HandleFunc("PUT /api/sessions/{id}/table", s.withSession(s.replaceTable))
	mux.HandleFunc("POST /api/sessions/{id}/table/rows", s.withSession(s.addRow))
	mux.HandleFunc("PUT /api/sessions/{id}/table/rows/{index}", s.withSession(s.setRow))
	mux.HandleFunc("DELETE /api/sessions/{id}/table/rows/{index}", s.withSession(s.deleteRow))

	mux.HandleFunc("GET /api/sessions/{id}/analysis", s.withSession(s.showAnalysis))
	mux.HandleFunc("GET /api/sessions/{id}/analysis/chart", s.withSession(s.analysisChart))
	mux.HandleFunc("POST /api/sessions/{id}/analysis/estimate", s.withSession(s.estimate))
	return mux
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session.Session)

// withSession resolves the {id} path value before calling h.
func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.sessions.Get(r.PathValue("id"))
		if err != nil {
			s.writeError(w, err)
			return
		}
		h(w, r, sess)
	}
}

// writeError maps lab error kinds onto status codes. Lab warnings are
// recoverable and leave the session untouched.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		httputil.WriteJSONErrorKind(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, lab.ErrNotRevealed):
		httputil.WriteJSONErrorKind(w, http.StatusConflict, lab.Kind(err), err.Error())
	case lab.IsWarning(err):
		httputil.WriteJSONErrorKind(w, http.StatusUnprocessableEntity, lab.Kind(err), err.Error())
	default:
		monitoring.Logf("api: internal error: %v", err)
		httputil.InternalServerError(w, err.Error())
	}
}

// decode reads the JSON body, answering 400 itself on failure.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := httputil.DecodeJSON(r, v); err != nil {
		httputil.BadRequest(w, err.Error())
		return false
	}
	return true
}

// decodeStrict is decode for table edits, which overwrite session state. An
// empty body or an unknown field is rejected before anything is touched.
func decodeStrict(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := httputil.DecodeJSONStrict(r, v); err != nil {
		httputil.WriteJSONErrorKind(w, http.StatusBadRequest, lab.Kind(lab.ErrInvalidInput), err.Error())
		return false
	}
	return true
}

// queryFloat parses an optional numeric query parameter.
func queryFloat(r *http.Request, name string, def float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &paramError{name: name, value: raw}
	}
	return v, nil
}

type paramError struct {
	name, value string
}

func (e *paramError) Error() string {
	return "invalid '" + e.name + "' parameter: " + strconv.Quote(e.value)
}

func (e *paramError) Unwrap() error { return lab.ErrInvalidInput }

// display is the speed block added when a response carries speeds.
type display struct {
	Units  string             `json:"units"`
	Symbol string             `json:"symbol"`
	Speeds map[string]float64 `json:"speeds"`
}

func newDisplay(unit string, speedsMPS map[string]float64) *display {
	d := &display{Units: unit, Symbol: units.Symbol(unit), Speeds: make(map[string]float64, len(speedsMPS))}
	for k, v := range speedsMPS {
		d.Speeds[k] = units.ConvertSpeed(v, unit)
	}
	return d
}

// requestUnits reads ?units=, answering 400 itself on failure.
func requestUnits(w http.ResponseWriter, r *http.Request) (string, bool) {
	u, err := units.Parse(r.URL.Query().Get("units"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return "", false
	}
	return u, true
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	opts := s.sessions.Options()
	httputil.WriteJSONOK(w, map[string]interface{}{
		"default_temperature_c":  opts.DefaultTemperatureC,
		"settle_ms":              float64(opts.Settle) / float64(time.Millisecond),
		"session_ttl_s":          opts.TTL.Seconds(),
		"delay_tolerance_ms":     opts.Tolerances.DelayMs,
		"velocity_tolerance_mps": opts.Tolerances.VelocityMPS,
		"theory_tolerance_mps":   opts.Tolerances.TheoryMPS,
		"procedures":             lab.Procedures,
		"units":                  units.ValidUnits,
		"seeded":                 opts.Seed != nil,
		"version":                version.Current(),
	})
}
