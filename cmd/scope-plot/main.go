// Command scope-plot renders one oscilloscope screen of the lab to a PNG or
// HTML file without running the server.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"os"

	"github.com/banshee-data/soundlab/internal/chart"
	"github.com/banshee-data/soundlab/internal/phase"
	"github.com/banshee-data/soundlab/internal/pulse"
	"github.com/banshee-data/soundlab/internal/scope"
	"github.com/banshee-data/soundlab/internal/security"
	"github.com/banshee-data/soundlab/internal/thermal"
	"github.com/banshee-data/soundlab/internal/version"
)

// errShowVersion is returned by parseFlags when -version was given.
var errShowVersion = errors.New("version requested")

type options struct {
	procedure   string
	temperature float64
	frequency   int
	distance    float64
	windowMs    float64
	seed        uint64
	format      string
	outDir      string
	name        string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("scope-plot", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.procedure, "procedure", "pulse", "Procedure to render: pulse or phase")
	fs.Float64Var(&o.temperature, "temperature", 20, "Air temperature in °C (clamped to 0-40)")
	fs.IntVar(&o.frequency, "frequency", phase.DefaultFrequencyHz, "Generator frequency in Hz (phase only)")
	fs.Float64Var(&o.distance, "distance", 0.5, "Speaker-microphone distance in m (phase only)")
	fs.Float64Var(&o.windowMs, "window-ms", pulse.DefaultWindowMs, "Display window in ms (pulse only)")
	fs.Uint64Var(&o.seed, "seed", 1, "Random seed for the delay and the noise")
	fs.StringVar(&o.format, "format", "png", "Output format: png or html")
	fs.StringVar(&o.outDir, "out-dir", ".", "Directory to write into")
	fs.StringVar(&o.name, "name", "", "Output file name without extension (default <procedure>_<temperature>C)")
	showVersion := fs.Bool("version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if *showVersion {
		return o, errShowVersion
	}
	if o.name == "" {
		o.name = fmt.Sprintf("%s_%gC", o.procedure, thermal.ClampTemperature(o.temperature))
	}
	return o, nil
}

// render produces the trace and its chart captions.
func render(o options) (scope.Trace, string, string, error) {
	env := thermal.NewEnvironment(o.temperature)
	src := rand.NewPCG(o.seed, o.seed)

	switch o.procedure {
	case "pulse":
		sim := pulse.NewSimulator(pulse.Config{Settle: 0}, nil, src)
		trial, err := sim.Trigger(env.TheoreticalSpeed)
		if err != nil {
			return scope.Trace{}, "", "", err
		}
		tr, err := sim.Render(o.windowMs)
		if err != nil {
			return scope.Trace{}, "", "", err
		}
		sub := fmt.Sprintf("T = %.1f °C  Δt = %.2f ms", env.TemperatureC, trial.DelayMs())
		return tr, "Pulse echo", sub, nil
	case "phase":
		tr, m, err := phase.Render(phase.Setup{FrequencyHz: o.frequency, DistanceM: o.distance}, env.TheoreticalSpeed, src)
		if err != nil {
			return scope.Trace{}, "", "", err
		}
		sub := fmt.Sprintf("f = %d Hz  d = %.2f m  φ = %.1f°", o.frequency, o.distance, m.PhaseDegrees)
		return tr, "Phase shift", sub, nil
	default:
		return scope.Trace{}, "", "", fmt.Errorf("unknown procedure %q (want pulse or phase)", o.procedure)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if errors.Is(err, errShowVersion) {
		fmt.Fprintln(stdout, version.String("scope-plot"))
		return nil
	}
	if err != nil {
		return err
	}
	f, err := chart.ParseFormat(o.format)
	if err != nil {
		return err
	}
	tr, title, sub, err := render(o)
	if err != nil {
		return err
	}

	path, err := security.OutputPath(o.outDir, o.name, string(f))
	if err != nil {
		return err
	}
	if err := writeChart(path, f, tr, title, sub); err != nil {
		return err
	}
	fmt.Fprintln(stdout, path)
	return nil
}

// writeChart renders tr into path. A failed render leaves no file behind.
func writeChart(path string, f chart.Format, tr scope.Trace, title, sub string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := chart.Scope(out, f, tr, title, sub); err != nil {
		out.Close()
		os.Remove(path)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

func main() {
	err := run(os.Args[1:], os.Stdout, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "scope-plot: %v\n", err)
		os.Exit(1)
	}
}
