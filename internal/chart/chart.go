// Package chart draws the oscilloscope screen and the regression plot,
// either as an interactive go-echarts page or as a static PNG.
package chart

import (
	"fmt"
	"image/color"
	"io"
	"strings"

	"github.com/banshee-data/soundlab/internal/regression"
	"github.com/banshee-data/soundlab/internal/scope"
)

// Format selects the output encoding.
type Format string

const (
	HTML Format = "html"
	PNG  Format = "png"
)

// ParseFormat accepts "html" and "png"; empty selects HTML.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "html":
		return HTML, nil
	case "png":
		return PNG, nil
	default:
		return "", fmt.Errorf("unsupported chart format %q (want html or png)", s)
	}
}

// ContentType is the HTTP content type of the format.
func (f Format) ContentType() string {
	if f == PNG {
		return "image/png"
	}
	return "text/html; charset=utf-8"
}

// Oscilloscope palette.
const (
	screenHex = "#0b0f0b"
	gridHex   = "#1f3a1f"
	ch1Hex    = "#39ff14"
	ch2Hex    = "#ffd700"
	fitHex    = "#ff5252"
)

var (
	screenColor = color.RGBA{R: 0x0b, G: 0x0f, B: 0x0b, A: 0xff}
	gridColor   = color.RGBA{R: 0x1f, G: 0x3a, B: 0x1f, A: 0xff}
	textColor   = color.RGBA{R: 0xd0, G: 0xd0, B: 0xd0, A: 0xff}
	ch1Color    = color.RGBA{R: 0x39, G: 0xff, B: 0x14, A: 0xff}
	ch2Color    = color.RGBA{R: 0xff, G: 0xd7, B: 0x00, A: 0xff}
	fitColor    = color.RGBA{R: 0xff, G: 0x52, B: 0x52, A: 0xff}
)

// Scope writes tr in format f.
func Scope(w io.Writer, f Format, tr scope.Trace, title, subtitle string) error {
	if tr.Len() == 0 {
		return fmt.Errorf("trace has no samples")
	}
	if f == PNG {
		return ScopePNG(w, tr, title)
	}
	return ScopeHTML(w, tr, title, subtitle)
}

// Regression writes the fit in format f.
func Regression(w io.Writer, f Format, res regression.Result) error {
	if len(res.Points) == 0 {
		return fmt.Errorf("regression has no points")
	}
	if f == PNG {
		return RegressionPNG(w, res)
	}
	return RegressionHTML(w, res)
}

// windowMs is the screen width of tr in milliseconds.
func windowMs(tr scope.Trace) float64 {
	if tr.Window > 0 {
		return tr.Window * 1000
	}
	return tr.Time[len(tr.Time)-1] * 1000
}

func regressionSubtitle(res regression.Result) string {
	return fmt.Sprintf("v = %.2f m/s  R² = %.4f  error = %.2f%%", res.Slope, res.RSquared, res.PercentError)
}
