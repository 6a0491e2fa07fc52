package regression

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// cell is a table value on the wire. Non-finite values encode as null;
// null, missing, blank or unparsable strings decode as NaN.
type cell float64

func (c cell) MarshalJSON() ([]byte, error) {
	v := float64(c)
	if !isFinite(v) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

func (c *cell) UnmarshalJSON(b []byte) error {
	v, err := ParseCell(b)
	if err != nil {
		return err
	}
	*c = cell(v)
	return nil
}

// ParseCell decodes one user-entered JSON value: a number, a numeric string
// or null. Null and blank or unparsable strings yield NaN. Any other JSON
// type is an error.
func ParseCell(b []byte) (float64, error) {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		return math.NaN(), nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return 0, err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return math.NaN(), nil
		}
		return v, nil
	default:
		v, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			return 0, fmt.Errorf("expected a number, string or null, got %s", b)
		}
		return v, nil
	}
}

type wireRow struct {
	DistanceM *cell `json:"distance_m"`
	DelayMs   *cell `json:"delay_ms"`
}

// MarshalJSON writes non-numeric cells as null.
func (r Row) MarshalJSON() ([]byte, error) {
	d, t := cell(r.DistanceM), cell(r.DelayMs)
	return json.Marshal(wireRow{DistanceM: &d, DelayMs: &t})
}

// UnmarshalJSON accepts numbers, numeric strings and null for each cell.
func (r *Row) UnmarshalJSON(b []byte) error {
	var w wireRow
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	r.DistanceM, r.DelayMs = math.NaN(), math.NaN()
	if w.DistanceM != nil {
		r.DistanceM = float64(*w.DistanceM)
	}
	if w.DelayMs != nil {
		r.DelayMs = float64(*w.DelayMs)
	}
	return nil
}
