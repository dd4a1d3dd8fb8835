package dataprocessing

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// timeLayouts are the timestamp formats recognized in raw files, tried in
// order.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006 15:04:05",
}

// ParseCSV parses raw CSV content into a table. The first row is the
// header; column types are inferred from the values (numeric, timestamp,
// then string). Empty cells become missing values.
func ParseCSV(content []byte) (*Table, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv content: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("csv content is empty")
	}

	return buildTable(rows[0], rows[1:])
}

// ParseExcel parses raw XLSX content into a table using the first sheet
// that contains any rows.
func ParseExcel(content []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx content: %w", err)
	}
	defer f.Close()

	var rows [][]string
	for _, name := range f.GetSheetList() {
		sheetRows, err := f.GetRows(name)
		if err == nil && len(sheetRows) > 0 {
			rows = sheetRows
			break
		}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("xlsx content has no data sheet")
	}

	return buildTable(rows[0], rows[1:])
}

// ParseContent picks a parser based on the file name extension, defaulting
// to CSV.
func ParseContent(name string, content []byte) (*Table, error) {
	if strings.HasSuffix(strings.ToLower(name), ".xlsx") {
		return ParseExcel(content)
	}
	return ParseCSV(content)
}

// buildTable assembles a typed table from a header and raw string rows.
// Short rows are padded with missing values.
func buildTable(header []string, rows [][]string) (*Table, error) {
	numCols := len(header)
	if numCols == 0 {
		return nil, fmt.Errorf("header row is empty")
	}

	cells := make([][]string, numCols)
	null := make([][]bool, numCols)
	for j := 0; j < numCols; j++ {
		cells[j] = make([]string, len(rows))
		null[j] = make([]bool, len(rows))
	}

	for i, row := range rows {
		for j := 0; j < numCols; j++ {
			if j >= len(row) || strings.TrimSpace(row[j]) == "" {
				null[j][i] = true
				continue
			}
			cells[j][i] = strings.TrimSpace(row[j])
		}
	}

	t := &Table{Columns: make([]Column, 0, numCols)}
	for j := 0; j < numCols; j++ {
		name := strings.TrimSpace(header[j])
		if name == "" {
			name = fmt.Sprintf("Unnamed_%d", j)
		}
		t.Columns = append(t.Columns, inferColumn(name, cells[j], null[j]))
	}

	if err := t.validate(); err != nil {
		return nil, err
	}

	return t, nil
}

// inferColumn types a column by sampling its non-missing values: all
// numeric → numeric, all timestamps → time, otherwise string.
func inferColumn(name string, values []string, null []bool) Column {
	numeric := true
	timestamp := true
	seen := false

	for i, raw := range values {
		if null[i] {
			continue
		}
		seen = true
		if numeric {
			if _, err := strconv.ParseFloat(raw, 64); err != nil {
				numeric = false
			}
		}
		if !numeric && timestamp {
			if _, ok := parseTime(raw); !ok {
				timestamp = false
			}
		}
		if !numeric && !timestamp {
			break
		}
	}

	switch {
	case seen && numeric:
		floats := make([]float64, len(values))
		for i, raw := range values {
			if null[i] {
				continue
			}
			floats[i], _ = strconv.ParseFloat(raw, 64)
		}
		return NewNumericColumn(name, floats, null)

	case seen && timestamp:
		times := make([]time.Time, len(values))
		outNull := append([]bool(nil), null...)
		for i, raw := range values {
			if null[i] {
				continue
			}
			ts, ok := parseTime(raw)
			if !ok {
				outNull[i] = true
				continue
			}
			times[i] = ts
		}
		return NewTimeColumn(name, times, outNull)

	default:
		return NewStringColumn(name, values, null)
	}
}

// parseTime tries the known timestamp layouts.
func parseTime(raw string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
