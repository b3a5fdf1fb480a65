// Package lookup loads sampled antenna illumination patterns and matches
// query locations against them by nearest neighbour.
//
// A pattern is stored as a plain text table with one sample per row:
//
//	# x      y      weight_real  [weight_imag]
//	0.0     0.0    1.0          0.0
//	0.1     0.0    0.8          0.1
//
// Columns may be separated by whitespace or commas; blank lines and lines
// starting with '#' are ignored. Every row must carry the same number of
// columns. A table without the fourth column is real-valued.
package lookup

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r2"
)

var (
	// ErrMalformedTable is returned when a table row cannot be parsed.
	ErrMalformedTable = errors.New("lookup: malformed table")
	// ErrEmptyTable is returned when a table holds no samples.
	ErrEmptyTable = errors.New("lookup: table has no samples")
)

// Table is a sampled illumination pattern.
type Table struct {
	Positions []r2.Vec
	Values    []complex128
	// Complex is false when the source carried no imaginary weights.
	Complex bool
}

// Len returns the number of samples.
func (t *Table) Len() int { return len(t.Positions) }

// Validate checks that positions and values line up and are finite.
func (t *Table) Validate() error {
	if t == nil || len(t.Positions) == 0 {
		return ErrEmptyTable
	}
	if len(t.Positions) != len(t.Values) {
		return errors.Wrapf(ErrMalformedTable, "%d positions but %d values", len(t.Positions), len(t.Values))
	}
	for i, p := range t.Positions {
		if !finite(p.X) || !finite(p.Y) {
			return errors.Wrapf(ErrMalformedTable, "sample %d has non-finite position %v", i, p)
		}
	}
	return nil
}

// ReadTable parses a pattern table from r.
func ReadTable(r io.Reader) (*Table, error) {
	t := &Table{}
	columns := 0
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.FieldsFunc(text, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		if columns == 0 {
			columns = len(fields)
			if columns != 3 && columns != 4 {
				return nil, errors.Wrapf(ErrMalformedTable, "line %d: expected 3 or 4 columns, got %d", line, columns)
			}
			t.Complex = columns == 4
		} else if len(fields) != columns {
			return nil, errors.Wrapf(ErrMalformedTable, "line %d: expected %d columns, got %d", line, columns, len(fields))
		}

		var row [4]float64
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, errors.Wrapf(ErrMalformedTable, "line %d column %d: %v", line, i+1, err)
			}
			row[i] = v
		}
		t.Positions = append(t.Positions, r2.Vec{X: row[0], Y: row[1]})
		t.Values = append(t.Values, complex(row[2], row[3]))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read table")
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// ReadTableFile parses the pattern table stored at path.
func ReadTableFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := ReadTable(f)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return t, nil
}

// WriteTable writes t in the text format understood by ReadTable.
func WriteTable(w io.Writer, t *Table) error {
	if err := t.Validate(); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	if t.Complex {
		fmt.Fprintln(bw, "# x y weight_real weight_imag")
	} else {
		fmt.Fprintln(bw, "# x y weight_real")
	}
	for i, p := range t.Positions {
		v := t.Values[i]
		if t.Complex {
			fmt.Fprintf(bw, "%s %s %s %s\n", ftoa(p.X), ftoa(p.Y), ftoa(real(v)), ftoa(imag(v)))
		} else {
			fmt.Fprintf(bw, "%s %s %s\n", ftoa(p.X), ftoa(p.Y), ftoa(real(v)))
		}
	}
	return bw.Flush()
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
