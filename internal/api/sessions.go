package api

import (
	"net/http"

	"github.com/banshee-data/soundlab/internal/httputil"
	"github.com/banshee-data/soundlab/internal/session"
	"github.com/banshee-data/soundlab/internal/store"
	"github.com/banshee-data/soundlab/internal/thermal"
)

type sessionResponse struct {
	session.Snapshot
	Display *display `json:"display,omitempty"`
}

func (s *Server) writeSnapshot(w http.ResponseWriter, r *http.Request, status int, sess *session.Session) {
	unit, ok := requestUnits(w, r)
	if !ok {
		return
	}
	snap := sess.Snapshot()
	resp := sessionResponse{Snapshot: snap}
	if r.URL.Query().Has("units") {
		resp.Display = newDisplay(unit, map[string]float64{"theoretical_speed": snap.Environment.TheoreticalSpeed})
	}
	httputil.WriteJSON(w, status, resp)
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	w.Header().Set("Location", "/api/sessions/"+sess.ID())
	s.writeSnapshot(w, r, http.StatusCreated, sess)
}

func (s *Server) showSession(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	s.writeSnapshot(w, r, http.StatusOK, sess)
}

func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.End(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type environmentResponse struct {
	Environment thermal.Environment `json:"environment"`
	Display     *display            `json:"display,omitempty"`
}

func (s *Server) setTemperature(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	unit, ok := requestUnits(w, r)
	if !ok {
		return
	}
	var req struct {
		TemperatureC *number `json:"temperature_c"`
	}
	if !decode(w, r, &req) {
		return
	}
	t, err := req.TemperatureC.required("temperature_c")
	if err != nil {
		s.writeError(w, err)
		return
	}
	env := sess.SetTemperature(t)
	resp := environmentResponse{Environment: env}
	if r.URL.Query().Has("units") {
		resp.Display = newDisplay(unit, map[string]float64{"theoretical_speed": env.TheoreticalSpeed})
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) setProcedure(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req struct {
		Procedure string `json:"procedure"`
	}
	if !decode(w, r, &req) {
		return
	}
	if _, err := sess.SetProcedure(req.Procedure); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSnapshot(w, r, http.StatusOK, sess)
}

func (s *Server) listAttempts(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if s.attempts == nil {
		httputil.WriteJSONOK(w, []store.Attempt{})
		return
	}
	attempts, err := s.attempts.Attempts(r.Context(), sess.ID())
	if err != nil {
		s.writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, attempts)
}
