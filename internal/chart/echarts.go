package chart

import (
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/soundlab/internal/regression"
	"github.com/banshee-data/soundlab/internal/scope"
)

func channelData(t, v []float64) []opts.LineData {
	data := make([]opts.LineData, len(t))
	for i := range t {
		data[i] = opts.LineData{Value: []interface{}{t[i] * 1000, v[i]}}
	}
	return data
}

// ScopeHTML renders the oscilloscope as an interactive page: dark screen,
// CH1 green, CH2 yellow, time in ms.
func ScopeHTML(w io.Writer, tr scope.Trace, title, subtitle string) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Theme: "dark", Width: "900px", Height: "500px", BackgroundColor: screenHex}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Min: 0, Max: windowMs(tr), Name: "Time (ms)", NameLocation: "middle", NameGap: 25,
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: gridHex}}}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Min: tr.YMin, Max: tr.YMax, Name: "Voltage (V)", NameLocation: "middle", NameGap: 30,
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: gridHex}}}),
	)
	line.AddSeries("CH1", channelData(tr.Time, tr.CH1),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		charts.WithLineStyleOpts(opts.LineStyle{Color: ch1Hex, Width: 2}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: ch1Hex}),
	)
	line.AddSeries("CH2", channelData(tr.Time, tr.CH2),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		charts.WithLineStyleOpts(opts.LineStyle{Color: ch2Hex, Width: 2}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: ch2Hex}),
	)
	return line.Render(w)
}

// RegressionHTML renders the measured points with the fitted line.
func RegressionHTML(w io.Writer, res regression.Result) error {
	pts := make([]opts.ScatterData, len(res.Points))
	for i, p := range res.Points {
		pts[i] = opts.ScatterData{Value: []interface{}{p.TimeS, p.DistanceM}}
	}
	fit := make([]opts.LineData, len(res.Line))
	for i, p := range res.Line {
		fit[i] = opts.LineData{Value: []interface{}{p.TimeS, p.DistanceM}}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Distance vs Time", Theme: "dark", Width: "900px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Distance vs Time", Subtitle: regressionSubtitle(res)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "Time (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "Distance (m)", NameLocation: "middle", NameGap: 30}),
	)
	scatter.AddSeries("measurements", pts,
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: ch1Hex}),
	)

	line := charts.NewLine()
	line.AddSeries("fit", fit,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		charts.WithLineStyleOpts(opts.LineStyle{Color: fitHex, Width: 2}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: fitHex}),
	)
	scatter.Overlap(line)
	return scatter.Render(w)
}
