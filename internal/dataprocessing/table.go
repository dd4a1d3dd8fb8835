package dataprocessing

import (
	"fmt"
	"time"
)

// ColumnKind identifies the value type of a column.
type ColumnKind int

const (
	KindNumeric ColumnKind = iota
	KindString
	KindTime
)

// Column is a single named column of typed values. Exactly one of the value
// slices is populated depending on Kind; Null carries per-row missing flags
// and always matches the value slice length.
type Column struct {
	Name    string
	Kind    ColumnKind
	Floats  []float64
	Strings []string
	Times   []time.Time
	Null    []bool
}

// Len returns the number of rows in the column.
func (c *Column) Len() int {
	return len(c.Null)
}

// DType returns a pandas-style dtype label for the column.
func (c *Column) DType() string {
	switch c.Kind {
	case KindNumeric:
		return "float64"
	case KindTime:
		return "datetime64[ns]"
	default:
		return "object"
	}
}

// NullCount returns the number of missing values in the column.
func (c *Column) NullCount() int {
	count := 0
	for _, isNull := range c.Null {
		if isNull {
			count++
		}
	}
	return count
}

// AllNull reports whether every value in the column is missing.
func (c *Column) AllNull() bool {
	return c.NullCount() == c.Len()
}

// Value returns the row value as an interface, nil for missing values.
func (c *Column) Value(row int) interface{} {
	if row < 0 || row >= c.Len() || c.Null[row] {
		return nil
	}
	switch c.Kind {
	case KindNumeric:
		return c.Floats[row]
	case KindTime:
		return c.Times[row]
	default:
		return c.Strings[row]
	}
}

// clone returns a deep copy of the column.
func (c *Column) clone() Column {
	out := Column{Name: c.Name, Kind: c.Kind}
	out.Null = append([]bool(nil), c.Null...)
	switch c.Kind {
	case KindNumeric:
		out.Floats = append([]float64(nil), c.Floats...)
	case KindTime:
		out.Times = append([]time.Time(nil), c.Times...)
	default:
		out.Strings = append([]string(nil), c.Strings...)
	}
	return out
}

// NewNumericColumn builds a numeric column from values and null flags.
// A nil null slice means every value is present.
func NewNumericColumn(name string, values []float64, null []bool) Column {
	if null == nil {
		null = make([]bool, len(values))
	}
	return Column{Name: name, Kind: KindNumeric, Floats: values, Null: null}
}

// NewStringColumn builds a string column from values and null flags.
func NewStringColumn(name string, values []string, null []bool) Column {
	if null == nil {
		null = make([]bool, len(values))
	}
	return Column{Name: name, Kind: KindString, Strings: values, Null: null}
}

// NewTimeColumn builds a timestamp column from values and null flags.
func NewTimeColumn(name string, values []time.Time, null []bool) Column {
	if null == nil {
		null = make([]bool, len(values))
	}
	return Column{Name: name, Kind: KindTime, Times: values, Null: null}
}

// Table is an ordered collection of equal-length columns with an optional
// promoted index column. A nil Index means the implicit positional index.
type Table struct {
	Columns []Column
	Index   *Column
}

// Rows returns the shared row count of the table.
func (t *Table) Rows() int {
	if len(t.Columns) > 0 {
		return t.Columns[0].Len()
	}
	if t.Index != nil {
		return t.Index.Len()
	}
	return 0
}

// NumColumns returns the number of columns, excluding the index.
func (t *Table) NumColumns() int {
	return len(t.Columns)
}

// IsEmpty reports whether the table has no rows or no columns.
func (t *Table) IsEmpty() bool {
	return t.Rows() == 0 || len(t.Columns) == 0
}

// ColumnNames returns the column names in order, excluding the index.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the named column, or nil if absent.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// Select returns a new table restricted to the named columns, preserving
// their request order. Unknown names are skipped. The index is carried over.
func (t *Table) Select(names []string) *Table {
	out := &Table{}
	seen := make(map[string]bool)
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		if col := t.Column(name); col != nil {
			out.Columns = append(out.Columns, col.clone())
		}
	}
	if t.Index != nil {
		idx := t.Index.clone()
		out.Index = &idx
	}
	return out
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := &Table{Columns: make([]Column, len(t.Columns))}
	for i := range t.Columns {
		out.Columns[i] = t.Columns[i].clone()
	}
	if t.Index != nil {
		idx := t.Index.clone()
		out.Index = &idx
	}
	return out
}

// IndexValues returns the index as interface values, falling back to the
// positional index when no column has been promoted.
func (t *Table) IndexValues() []interface{} {
	rows := t.Rows()
	values := make([]interface{}, rows)
	if t.Index == nil {
		for i := 0; i < rows; i++ {
			values[i] = float64(i)
		}
		return values
	}
	for i := 0; i < rows; i++ {
		values[i] = t.Index.Value(i)
	}
	return values
}

// Records returns rows as ordered name/value maps, for JSON responses.
func (t *Table) Records() []map[string]interface{} {
	rows := t.Rows()
	records := make([]map[string]interface{}, rows)
	for i := 0; i < rows; i++ {
		record := make(map[string]interface{}, len(t.Columns))
		for j := range t.Columns {
			record[t.Columns[j].Name] = t.Columns[j].Value(i)
		}
		records[i] = record
	}
	return records
}

// Head returns the first n rows as records.
func (t *Table) Head(n int) []map[string]interface{} {
	records := t.Records()
	if n > len(records) {
		n = len(records)
	}
	return records[:n]
}

// Tail returns the last n rows as records.
func (t *Table) Tail(n int) []map[string]interface{} {
	records := t.Records()
	if n > len(records) {
		n = len(records)
	}
	return records[len(records)-n:]
}

// MemoryEstimate returns a rough in-memory footprint of the table in bytes.
func (t *Table) MemoryEstimate() int64 {
	var total int64
	estimate := func(c *Column) {
		total += int64(len(c.Null))
		switch c.Kind {
		case KindNumeric:
			total += int64(len(c.Floats) * 8)
		case KindTime:
			total += int64(len(c.Times) * 24)
		default:
			for _, s := range c.Strings {
				total += int64(len(s) + 16)
			}
		}
	}
	for i := range t.Columns {
		estimate(&t.Columns[i])
	}
	if t.Index != nil {
		estimate(t.Index)
	}
	return total
}

// validate checks the equal-length invariant across columns and index.
func (t *Table) validate() error {
	rows := t.Rows()
	for i := range t.Columns {
		if t.Columns[i].Len() != rows {
			return fmt.Errorf("column %q has %d rows, expected %d", t.Columns[i].Name, t.Columns[i].Len(), rows)
		}
	}
	if t.Index != nil && t.Index.Len() != rows {
		return fmt.Errorf("index %q has %d rows, expected %d", t.Index.Name, t.Index.Len(), rows)
	}
	return nil
}
