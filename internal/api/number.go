package api

import (
	"fmt"
	"math"

	"github.com/banshee-data/soundlab/internal/lab"
	"github.com/banshee-data/soundlab/internal/regression"
)

// number is a user entry from a form field, parsed like a table cell: a
// blank or unparsable entry becomes NaN so the lab operations report it as
// invalid input.
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	v, err := regression.ParseCell(b)
	if err != nil {
		return err
	}
	*n = number(v)
	return nil
}

// value returns the entry, or NaN when the field was omitted.
func (n *number) value() float64 {
	if n == nil {
		return math.NaN()
	}
	return float64(*n)
}

// required returns the entry or an invalid-input error naming the field.
func (n *number) required(field string) (float64, error) {
	v := n.value()
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s must be a number: %w", field, lab.ErrInvalidInput)
	}
	return v, nil
}
