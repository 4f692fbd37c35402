// Package frame holds the columnar result shape every upstream adapter
// method returns, and the name-based accessors the parsers use to stay
// tolerant of upstream column reordering.
package frame

import (
	"strconv"
	"strings"
	"time"

	"leeksaver/internal/errkind"
)

// Frame is a columnar result set: Fields names each column, Items holds
// one []interface{} per row in the same column order. This mirrors the
// {fields, items} shape the upstream feed actually returns, so adapters
// don't pay for a row-to-struct conversion before cleaning rules run.
type Frame struct {
	Fields []string
	Items  [][]interface{}
}

// index builds a fresh name -> column-position map on each call so lookups
// are O(1) regardless of how the upstream feed orders its columns.
func (f *Frame) index() map[string]int {
	m := make(map[string]int, len(f.Fields))
	for i, name := range f.Fields {
		m[name] = i
	}
	return m
}

// Row is a single record view over a Frame, bound to a name->index map so
// repeated lookups across many rows don't rebuild it each time.
type Row struct {
	idx    map[string]int
	values []interface{}
}

// Rows returns one Row per item, all sharing a single name -> index map,
// so parsing thousands of bars does not rebuild the index per row.
func (f *Frame) Rows() []Row {
	idx := f.index()
	rows := make([]Row, len(f.Items))
	for i, item := range f.Items {
		rows[i] = Row{idx: idx, values: item}
	}
	return rows
}

// Require returns an error of kind SchemaDrift if any of the named columns
// is absent from the frame. Call this once per adapter method before
// iterating rows.
func (f *Frame) Require(op string, names ...string) error {
	idx := f.index()
	var missing []string
	for _, n := range names {
		if _, ok := idx[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return errkind.New(errkind.SchemaDrift, op, &missingColumnsError{missing})
	}
	return nil
}

type missingColumnsError struct{ names []string }

func (e *missingColumnsError) Error() string {
	return "missing required columns: " + strings.Join(e.names, ", ")
}

func (r Row) raw(name string) (interface{}, bool) {
	i, ok := r.idx[name]
	if !ok || i >= len(r.values) {
		return nil, false
	}
	return r.values[i], true
}

// String returns the column value as a string, or "" if absent/nil.
func (r Row) String(name string) string {
	v, ok := r.raw(name)
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

// Float returns the column value as a float64, 0 if absent, nil, or not
// numeric/parseable.
func (r Row) Float(name string) float64 {
	v, ok := r.raw(name)
	if !ok || v == nil {
		return 0
	}
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// Int returns the column value truncated to int64.
func (r Row) Int(name string) int64 {
	return int64(r.Float(name))
}

// IsNull reports whether the column is absent or explicitly nil/empty.
func (r Row) IsNull(name string) bool {
	v, ok := r.raw(name)
	if !ok || v == nil {
		return true
	}
	if s, isStr := v.(string); isStr {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// Date parses the column as YYYYMMDD, the upstream feed's date convention.
func (r Row) Date(name string) (time.Time, bool) {
	s := r.String(name)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("20060102", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// DateTime parses the column as "2006-01-02 15:04:05".
func (r Row) DateTime(name string) (time.Time, bool) {
	s := r.String(name)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
