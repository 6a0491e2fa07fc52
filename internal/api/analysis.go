package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/banshee-data/soundlab/internal/chart"
	"github.com/banshee-data/soundlab/internal/httputil"
	"github.com/banshee-data/soundlab/internal/lab"
	"github.com/banshee-data/soundlab/internal/regression"
	"github.com/banshee-data/soundlab/internal/session"
)

type tableResponse struct {
	Rows  []regression.Row `json:"rows"`
	Index *int             `json:"index,omitempty"`
}

func rowIndex(r *http.Request) (int, error) {
	raw := r.PathValue("index")
	i, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("row index must be an integer, got %q: %w", raw, lab.ErrInvalidInput)
	}
	return i, nil
}

func (s *Server) showTable(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	httputil.WriteJSONOK(w, tableResponse{Rows: sess.Rows()})
}

func (s *Server) replaceTable(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req struct {
		Rows *[]regression.Row `json:"rows"`
	}
	if !decodeStrict(w, r, &req) {
		return
	}
	if req.Rows == nil {
		httputil.WriteJSONErrorKind(w, http.StatusBadRequest, lab.Kind(lab.ErrInvalidInput), `missing "rows"`)
		return
	}
	sess.ReplaceRows(*req.Rows)
	httputil.WriteJSONOK(w, tableResponse{Rows: sess.Rows()})
}

func (s *Server) addRow(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var row regression.Row
	if !decodeStrict(w, r, &row) {
		return
	}
	i, err := sess.AddRow(row)
	if err != nil {
		s.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, tableResponse{Rows: sess.Rows(), Index: &i})
}

func (s *Server) setRow(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	i, err := rowIndex(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var row regression.Row
	if !decodeStrict(w, r, &row) {
		return
	}
	if err := sess.SetRow(i, row); err != nil {
		s.writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, tableResponse{Rows: sess.Rows(), Index: &i})
}

func (s *Server) deleteRow(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	i, err := rowIndex(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := sess.DeleteRow(i); err != nil {
		s.writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, tableResponse{Rows: sess.Rows()})
}

type analysisResponse struct {
	session.AnalysisView
	Display *display `json:"display,omitempty"`
}

// showAnalysis always answers 200: a table that cannot be fitted yet is a
// warning on the page, not a failed request.
func (s *Server) showAnalysis(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	unit, ok := requestUnits(w, r)
	if !ok {
		return
	}
	view, _ := sess.Analysis(r.Context())
	resp := analysisResponse{AnalysisView: view}
	if view.Result != nil && r.URL.Query().Has("units") {
		resp.Display = newDisplay(unit, map[string]float64{
			"slope":             view.Result.Slope,
			"theoretical_speed": view.Result.TheoreticalSpeed,
		})
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) analysisChart(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	f, ok := chartFormat(w, r)
	if !ok {
		return
	}
	view := sess.AnalysisView()
	if view.Result == nil {
		httputil.WriteJSONErrorKind(w, http.StatusUnprocessableEntity, view.Kind, view.Warning)
		return
	}
	s.writeChart(w, f, func(buf *bytes.Buffer) error {
		return chart.Regression(buf, f, *view.Result)
	})
}

type estimateResponse struct {
	regression.Estimate
	Display *display `json:"display,omitempty"`
}

func (s *Server) estimate(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	unit, ok := requestUnits(w, r)
	if !ok {
		return
	}
	var req struct {
		DistanceM *number `json:"distance_m"`
		DtMs      *number `json:"dt_ms"`
	}
	if !decode(w, r, &req) {
		return
	}
	est, err := sess.Estimate(r.Context(), req.DistanceM.value(), req.DtMs.value())
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := estimateResponse{Estimate: est}
	if r.URL.Query().Has("units") {
		resp.Display = newDisplay(unit, map[string]float64{
			"velocity":          est.VelocityMPS,
			"theoretical_speed": est.TheoreticalSpeed,
		})
	}
	httputil.WriteJSONOK(w, resp)
}
