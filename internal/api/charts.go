package api

import (
	"bytes"
	"net/http"

	"github.com/banshee-data/soundlab/internal/chart"
	"github.com/banshee-data/soundlab/internal/httputil"
)

// chartFormat reads ?format=, answering 400 itself on failure.
func chartFormat(w http.ResponseWriter, r *http.Request) (chart.Format, bool) {
	f, err := chart.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return "", false
	}
	return f, true
}

// writeChart renders into a buffer first so a failed render still gets a
// JSON error instead of a truncated page.
func (s *Server) writeChart(w http.ResponseWriter, f chart.Format, render func(buf *bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", f.ContentType())
	_, _ = w.Write(buf.Bytes())
}
