package dataprocessing

import (
	"fmt"
	"time"
)

// Combine concatenates multiple processed tables into one, labelling each
// source with a Dataset column and materializing the index as
// Relative_Time / Absolute_Time columns so overlaid plots can align on
// either. Missing labels fall back to Dataset_N. Columns are unioned in
// first-appearance order; cells absent from a source stay missing.
func Combine(tables []*Table, labels []string) *Table {
	if len(tables) == 0 {
		return &Table{}
	}

	parts := make([]*Table, 0, len(tables))
	for i, t := range tables {
		label := fmt.Sprintf("Dataset_%d", i+1)
		if i < len(labels) && labels[i] != "" {
			label = labels[i]
		}
		parts = append(parts, labelled(t, label))
	}

	// Union of column names in first-appearance order
	var order []string
	seen := make(map[string]bool)
	for _, p := range parts {
		for _, name := range p.ColumnNames() {
			if !seen[name] {
				seen[name] = true
				order = append(order, name)
			}
		}
	}

	totalRows := 0
	for _, p := range parts {
		totalRows += p.Rows()
	}

	out := &Table{Columns: make([]Column, 0, len(order))}
	for _, name := range order {
		out.Columns = append(out.Columns, concatColumn(name, parts, totalRows))
	}

	return out
}

// labelled clones a table, turning its index into explicit time columns
// and appending the Dataset label.
func labelled(t *Table, label string) *Table {
	out := t.Clone()
	rows := out.Rows()

	relative := make([]float64, rows)
	relNull := make([]bool, rows)

	switch {
	case out.Index != nil && out.Index.Kind == KindTime:
		var start int
		for start = 0; start < rows; start++ {
			if !out.Index.Null[start] {
				break
			}
		}
		for i := 0; i < rows; i++ {
			if out.Index.Null[i] || start == rows {
				relNull[i] = true
				continue
			}
			relative[i] = out.Index.Times[i].Sub(out.Index.Times[start]).Seconds()
		}
		abs := out.Index.clone()
		abs.Name = "Absolute_Time"
		out.Columns = append(out.Columns, abs)

	case out.Index != nil:
		copy(relative, out.Index.Floats)
		copy(relNull, out.Index.Null)
		abs := out.Index.clone()
		abs.Name = "Absolute_Time"
		out.Columns = append(out.Columns, abs)

	default:
		for i := 0; i < rows; i++ {
			relative[i] = float64(i)
		}
		out.Columns = append(out.Columns, NewNumericColumn("Absolute_Time", append([]float64(nil), relative...), nil))
	}

	out.Columns = append(out.Columns, NewNumericColumn("Relative_Time", relative, relNull))

	labels := make([]string, rows)
	for i := range labels {
		labels[i] = label
	}
	out.Columns = append(out.Columns, NewStringColumn("Dataset", labels, nil))

	out.Index = nil
	return out
}

// concatColumn stacks the named column across parts, inserting missing
// values where a part lacks it and unifying on the dominant kind.
func concatColumn(name string, parts []*Table, totalRows int) Column {
	kind := KindString
	for _, p := range parts {
		if col := p.Column(name); col != nil {
			kind = col.Kind
			break
		}
	}

	out := Column{Name: name, Kind: kind, Null: make([]bool, 0, totalRows)}
	switch kind {
	case KindNumeric:
		out.Floats = make([]float64, 0, totalRows)
	case KindTime:
		out.Times = make([]time.Time, 0, totalRows)
	default:
		out.Strings = make([]string, 0, totalRows)
	}

	appendMissing := func(n int) {
		for i := 0; i < n; i++ {
			out.Null = append(out.Null, true)
			switch kind {
			case KindNumeric:
				out.Floats = append(out.Floats, 0)
			case KindTime:
				out.Times = append(out.Times, time.Time{})
			default:
				out.Strings = append(out.Strings, "")
			}
		}
	}

	for _, p := range parts {
		col := p.Column(name)
		if col == nil || col.Kind != kind {
			appendMissing(p.Rows())
			continue
		}
		out.Null = append(out.Null, col.Null...)
		switch kind {
		case KindNumeric:
			out.Floats = append(out.Floats, col.Floats...)
		case KindTime:
			out.Times = append(out.Times, col.Times...)
		default:
			out.Strings = append(out.Strings, col.Strings...)
		}
	}

	return out
}
