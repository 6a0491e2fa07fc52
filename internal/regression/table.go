package regression

import (
	"fmt"

	"github.com/banshee-data/soundlab/internal/lab"
)

// Table is the ordered measurement table of a session. The zero value is an
// empty table.
type Table struct {
	rows []Row
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Rows returns a copy of the rows in order, never nil.
func (t *Table) Rows() []Row {
	rows := make([]Row, len(t.rows))
	copy(rows, t.rows)
	return rows
}

// Append adds a numeric row at the end and returns its index.
func (t *Table) Append(r Row) (int, error) {
	if !r.Numeric() {
		return 0, fmt.Errorf("new rows need numeric distance and delay: %w", lab.ErrInvalidInput)
	}
	t.rows = append(t.rows, r)
	return len(t.rows) - 1, nil
}

// Set overwrites row i. Non-numeric cells are allowed, as in the table
// editor, and are reported by Fit.
func (t *Table) Set(i int, r Row) error {
	if err := t.check(i); err != nil {
		return err
	}
	t.rows[i] = r
	return nil
}

// Delete removes row i, shifting later rows up.
func (t *Table) Delete(i int) error {
	if err := t.check(i); err != nil {
		return err
	}
	t.rows = append(t.rows[:i], t.rows[i+1:]...)
	return nil
}

// Replace swaps the whole table for rows.
func (t *Table) Replace(rows []Row) {
	t.rows = append([]Row(nil), rows...)
}

func (t *Table) check(i int) error {
	if i < 0 || i >= len(t.rows) {
		return fmt.Errorf("row %d out of range [0, %d): %w", i, len(t.rows), lab.ErrInvalidInput)
	}
	return nil
}

// Fit regresses the current rows.
func (t *Table) Fit(theoreticalSpeed float64) (Result, error) {
	return Fit(t.rows, theoreticalSpeed)
}
