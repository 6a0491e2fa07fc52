package chart

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/soundlab/internal/regression"
	"github.com/banshee-data/soundlab/internal/scope"
)

// Size of the static charts.
const (
	pngWidth  = 9 * vg.Inch
	pngHeight = 5 * vg.Inch
)

// newPlot returns a plot styled like the oscilloscope screen.
func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.BackgroundColor = screenColor
	p.Title.Text = title
	p.Title.TextStyle.Color = textColor
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	for _, ax := range []*plot.Axis{&p.X, &p.Y} {
		ax.Color = textColor
		ax.Label.TextStyle.Color = textColor
		ax.Tick.Label.Color = textColor
		ax.Tick.Color = textColor
	}
	p.Legend.TextStyle.Color = textColor
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	grid := plotter.NewGrid()
	grid.Vertical.Color = gridColor
	grid.Horizontal.Color = gridColor
	p.Add(grid)
	return p
}

func xys(t, v []float64, scale float64) plotter.XYs {
	pts := make(plotter.XYs, len(t))
	for i := range t {
		pts[i] = plotter.XY{X: t[i] * scale, Y: v[i]}
	}
	return pts
}

func addLine(p *plot.Plot, name string, pts plotter.XYs, c color.Color) error {
	l, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("failed to build %s line: %w", name, err)
	}
	l.Color = c
	l.Width = vg.Points(1.5)
	p.Add(l)
	p.Legend.Add(name, l)
	return nil
}

func writePNG(w io.Writer, p *plot.Plot) error {
	wt, err := p.WriterTo(pngWidth, pngHeight, "png")
	if err != nil {
		return fmt.Errorf("failed to create png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write png: %w", err)
	}
	return nil
}

// ScopePNG renders the oscilloscope as a static image.
func ScopePNG(w io.Writer, tr scope.Trace, title string) error {
	p := newPlot(title, "Time (ms)", "Voltage (V)")
	p.X.Min, p.X.Max = 0, windowMs(tr)
	p.Y.Min, p.Y.Max = tr.YMin, tr.YMax

	if err := addLine(p, "CH1", xys(tr.Time, tr.CH1, 1000), ch1Color); err != nil {
		return err
	}
	if err := addLine(p, "CH2", xys(tr.Time, tr.CH2, 1000), ch2Color); err != nil {
		return err
	}
	return writePNG(w, p)
}

// RegressionPNG renders the measured points with the fitted line.
func RegressionPNG(w io.Writer, res regression.Result) error {
	p := newPlot("Distance vs Time: "+regressionSubtitle(res), "Time (s)", "Distance (m)")

	pts := make(plotter.XYs, len(res.Points))
	for i, pt := range res.Points {
		pts[i] = plotter.XY{X: pt.TimeS, Y: pt.DistanceM}
	}
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("failed to build scatter: %w", err)
	}
	s.GlyphStyle.Color = ch1Color
	s.GlyphStyle.Radius = vg.Points(3)
	p.Add(s)
	p.Legend.Add("measurements", s)

	line := make(plotter.XYs, len(res.Line))
	for i, pt := range res.Line {
		line[i] = plotter.XY{X: pt.TimeS, Y: pt.DistanceM}
	}
	if err := addLine(p, "fit", line, fitColor); err != nil {
		return err
	}
	return writePNG(w, p)
}
