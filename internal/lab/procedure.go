package lab

import "fmt"

// Procedure selects which of the three lab pages is active.
type Procedure string

const (
	PulseEcho    Procedure = "pulse_echo"
	PhaseShift   Procedure = "phase_shift"
	DataAnalysis Procedure = "data_analysis"
)

// Procedures lists the valid procedures in page order.
var Procedures = []Procedure{PulseEcho, PhaseShift, DataAnalysis}

// ParseProcedure validates a procedure name.
func ParseProcedure(s string) (Procedure, error) {
	for _, p := range Procedures {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown procedure %q (want pulse_echo, phase_shift or data_analysis): %w", s, ErrInvalidInput)
}

// Verdict is the outcome of comparing a user entry against ground truth.
type Verdict struct {
	Pass    bool   `json:"pass"`
	Message string `json:"message"`
}
