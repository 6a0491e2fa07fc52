package api

import (
	"bytes"
	"fmt"
	"math"
	"net/http"

	"github.com/banshee-data/soundlab/internal/chart"
	"github.com/banshee-data/soundlab/internal/httputil"
	"github.com/banshee-data/soundlab/internal/lab"
	"github.com/banshee-data/soundlab/internal/session"
)

// setPhase moves the dial and/or the microphone; omitted fields keep their
// current value.
func (s *Server) setPhase(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req struct {
		FrequencyHz *number `json:"frequency_hz"`
		DistanceM   *number `json:"distance_m"`
	}
	if !decode(w, r, &req) {
		return
	}
	cur, err := sess.Phase()
	if err != nil {
		s.writeError(w, err)
		return
	}
	setup := cur.Setup
	if req.FrequencyHz != nil {
		f, err := req.FrequencyHz.required("frequency_hz")
		if err == nil && (f != math.Trunc(f) || math.Abs(f) > math.MaxInt32) {
			err = fmt.Errorf("frequency_hz must be a whole number of Hz, got %g: %w", f, lab.ErrInvalidInput)
		}
		if err != nil {
			s.writeError(w, err)
			return
		}
		setup.FrequencyHz = int(f)
	}
	if req.DistanceM != nil {
		setup.DistanceM = req.DistanceM.value()
	}
	v, err := sess.SetPhase(setup)
	if err != nil {
		s.writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, v)
}

func (s *Server) showPhase(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	v, err := sess.Phase()
	if err != nil {
		s.writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, v)
}

func (s *Server) phaseTrace(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	tr, m, err := sess.PhaseTrace()
	if err != nil {
		s.writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{"trace": tr, "metrics": m})
}

func (s *Server) phaseChart(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	f, ok := chartFormat(w, r)
	if !ok {
		return
	}
	tr, m, err := sess.PhaseTrace()
	if err != nil {
		s.writeError(w, err)
		return
	}
	sub := fmt.Sprintf("Δt = %.4f ms  λ = %.4f m  φ = %.1f°", m.DelayMs, m.WavelengthM, m.PhaseDegrees)
	s.writeChart(w, f, func(buf *bytes.Buffer) error {
		return chart.Scope(buf, f, tr, "Phase shift", sub)
	})
}
