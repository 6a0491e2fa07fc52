package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/banshee-data/soundlab/internal/chart"
	"github.com/banshee-data/soundlab/internal/httputil"
	"github.com/banshee-data/soundlab/internal/pulse"
	"github.com/banshee-data/soundlab/internal/session"
)

func (s *Server) triggerPulse(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	status, err := sess.TriggerPulse(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, status)
}

func (s *Server) showPulse(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	httputil.WriteJSONOK(w, sess.PulseStatus())
}

func (s *Server) pulseTrace(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	windowMs, err := queryFloat(r, "window_ms", 0)
	if err != nil {
		s.writeError(w, err)
		return
	}
	tr, err := sess.PulseTrace(windowMs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, tr)
}

func (s *Server) pulseChart(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	f, ok := chartFormat(w, r)
	if !ok {
		return
	}
	windowMs, err := queryFloat(r, "window_ms", 0)
	if err != nil {
		s.writeError(w, err)
		return
	}
	tr, err := sess.PulseTrace(windowMs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	env := sess.Environment()
	sub := fmt.Sprintf("T = %.1f °C  time base %.1f ms/div", env.TemperatureC, tr.Window*1000/10)
	s.writeChart(w, f, func(buf *bytes.Buffer) error {
		return chart.Scope(buf, f, tr, "Pulse echo", sub)
	})
}

func (s *Server) verifyDelay(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req struct {
		DtMs *number `json:"dt_ms"`
	}
	if !decode(w, r, &req) {
		return
	}
	res, err := sess.VerifyDelay(r.Context(), req.DtMs.value())
	if err != nil {
		s.writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, res)
}

type velocityResponse struct {
	pulse.VelocityCheck
	Display *display `json:"display,omitempty"`
}

func (s *Server) verifyVelocity(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	unit, ok := requestUnits(w, r)
	if !ok {
		return
	}
	var req struct {
		DtMs        *number `json:"dt_ms"`
		VelocityMPS *number `json:"velocity_mps"`
	}
	if !decode(w, r, &req) {
		return
	}
	res, err := sess.VerifyVelocity(r.Context(), req.DtMs.value(), req.VelocityMPS.value())
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := velocityResponse{VelocityCheck: res}
	if res.ExpectedMPS != nil && r.URL.Query().Has("units") {
		resp.Display = newDisplay(unit, map[string]float64{"expected": *res.ExpectedMPS})
	}
	httputil.WriteJSONOK(w, resp)
}
