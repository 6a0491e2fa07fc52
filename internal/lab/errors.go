// Package lab holds the vocabulary shared by the lab procedures: the error
// kinds surfaced to the presentation layer, the procedure selector and the
// verdict returned by verification steps.
package lab

import "errors"

// Error kinds. All of them are recoverable: callers report them as a warning
// and keep the existing session state.
var (
	// ErrInvalidInput marks a non-numeric or out-of-range user entry.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInsufficientData marks a regression with fewer than two rows.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrDegenerateFit marks a regression whose time column has zero variance.
	ErrDegenerateFit = errors.New("degenerate fit")
	// ErrNotRevealed marks a pulse-echo read before the trial has settled.
	ErrNotRevealed = errors.New("trial not revealed")
)

// Kind returns a stable machine-readable name for err, or "" when err is not
// one of the lab error kinds.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, ErrDegenerateFit):
		return "degenerate_fit"
	case errors.Is(err, ErrNotRevealed):
		return "not_revealed"
	default:
		return ""
	}
}

// IsWarning reports whether err is a recoverable lab error.
func IsWarning(err error) bool {
	return Kind(err) != ""
}
