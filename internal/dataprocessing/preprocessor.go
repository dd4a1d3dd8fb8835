package dataprocessing

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// CanonicalTimeColumn is the name the first detected time column is
// renamed to before being promoted to the table index.
const CanonicalTimeColumn = "Time"

// Preprocess normalizes a raw table into an analysis-ready one:
//
//  1. the first time column is renamed to the canonical index name and,
//     unless it already holds timestamps, coerced to numeric with
//     unparseable values treated as missing;
//  2. that column is promoted to the table index;
//  3. remaining non-numeric columns are dropped;
//  4. entirely-missing columns are dropped;
//  5. missing values are forward-filled, then back-filled.
//
// A table without a time column keeps its original index; this is not an
// error. The input table is not mutated.
func Preprocess(t *Table) *Table {
	out := t.Clone()

	timeCols := Classify(out.ColumnNames()).Time
	if len(timeCols) > 0 {
		promoteTimeIndex(out, timeCols[0])
	}

	// Keep only numeric columns
	kept := out.Columns[:0]
	for _, col := range out.Columns {
		if col.Kind == KindNumeric {
			kept = append(kept, col)
		}
	}
	out.Columns = kept

	// Drop entirely-missing columns
	kept = out.Columns[:0]
	for _, col := range out.Columns {
		if !col.AllNull() {
			kept = append(kept, col)
		}
	}
	out.Columns = kept

	for i := range out.Columns {
		fillForwardBackward(&out.Columns[i])
	}

	return out
}

// promoteTimeIndex renames the given column to the canonical name and
// promotes it to the table index.
func promoteTimeIndex(t *Table, name string) {
	col := t.Column(name)
	if col == nil {
		return
	}

	idx := col.clone()
	idx.Name = CanonicalTimeColumn
	if idx.Kind != KindTime {
		coerceNumeric(&idx)
	}

	// Remove the promoted column from the column list
	kept := t.Columns[:0]
	for _, c := range t.Columns {
		if c.Name != name {
			kept = append(kept, c)
		}
	}
	t.Columns = kept
	t.Index = &idx
}

// coerceNumeric converts a column to numeric in place, marking values that
// do not parse as missing.
func coerceNumeric(c *Column) {
	if c.Kind == KindNumeric {
		return
	}

	floats := make([]float64, c.Len())
	null := make([]bool, c.Len())
	for i := 0; i < c.Len(); i++ {
		if c.Null[i] {
			null[i] = true
			continue
		}
		var raw string
		if c.Kind == KindTime {
			raw = c.Times[i].Format(time.RFC3339)
		} else {
			raw = c.Strings[i]
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			null[i] = true
			continue
		}
		floats[i] = v
	}

	c.Kind = KindNumeric
	c.Floats = floats
	c.Strings = nil
	c.Times = nil
	c.Null = null
}

// fillForwardBackward propagates the nearest prior value forward, then the
// nearest following value backward for any cells still missing.
func fillForwardBackward(c *Column) {
	if c.Kind != KindNumeric {
		return
	}

	last := math.NaN()
	haveLast := false
	for i := 0; i < c.Len(); i++ {
		if c.Null[i] {
			if haveLast {
				c.Floats[i] = last
				c.Null[i] = false
			}
			continue
		}
		last = c.Floats[i]
		haveLast = true
	}

	next := math.NaN()
	haveNext := false
	for i := c.Len() - 1; i >= 0; i-- {
		if c.Null[i] {
			if haveNext {
				c.Floats[i] = next
				c.Null[i] = false
			}
			continue
		}
		next = c.Floats[i]
		haveNext = true
	}
}

// Resample downsamples a processed table. With a numeric (or implicit)
// index, rows whose index value rounds to the same integer are grouped and
// averaged; this is a coarse decimation keyed on the rounded value itself,
// not an interval bucket, and mirrors how averaged exports are produced.
// With a timestamp index, standard fixed-interval downsampling by mean is
// applied at the given rule (e.g. "1s", "10s", "1m").
func Resample(t *Table, rule string) (*Table, error) {
	if t.Index != nil && t.Index.Kind == KindTime {
		interval, err := parseRule(rule)
		if err != nil {
			return nil, err
		}
		return resampleByInterval(t, interval), nil
	}
	return resampleByRoundedIndex(t), nil
}

// resampleByRoundedIndex groups rows by the rounded numeric index value and
// averages each numeric column within the group.
func resampleByRoundedIndex(t *Table) *Table {
	rows := t.Rows()

	indexValue := func(i int) (float64, bool) {
		if t.Index == nil {
			return float64(i), true
		}
		if t.Index.Null[i] {
			return 0, false
		}
		return t.Index.Floats[i], true
	}

	groups := make(map[float64][]int)
	for i := 0; i < rows; i++ {
		v, ok := indexValue(i)
		if !ok {
			continue
		}
		// Half-to-even, so .5 boundaries group the same way averaged
		// exports do
		key := math.RoundToEven(v)
		groups[key] = append(groups[key], i)
	}

	keys := make([]float64, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Float64s(keys)

	out := &Table{}
	for _, col := range t.Columns {
		if col.Kind != KindNumeric {
			continue
		}
		floats := make([]float64, 0, len(keys))
		null := make([]bool, 0, len(keys))
		for _, k := range keys {
			mean, ok := groupMean(&col, groups[k])
			floats = append(floats, mean)
			null = append(null, !ok)
		}
		out.Columns = append(out.Columns, NewNumericColumn(col.Name, floats, null))
	}

	idxName := CanonicalTimeColumn
	if t.Index != nil {
		idxName = t.Index.Name
	}
	idx := NewNumericColumn(idxName, keys, nil)
	out.Index = &idx

	return out
}

// resampleByInterval buckets a timestamp index into fixed intervals and
// averages numeric columns per bucket.
func resampleByInterval(t *Table, interval time.Duration) *Table {
	rows := t.Rows()

	groups := make(map[int64][]int)
	for i := 0; i < rows; i++ {
		if t.Index.Null[i] {
			continue
		}
		bucket := t.Index.Times[i].Truncate(interval).UnixNano()
		groups[bucket] = append(groups[bucket], i)
	}

	buckets := make([]int64, 0, len(groups))
	for b := range groups {
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i] < buckets[j] })

	out := &Table{}
	for _, col := range t.Columns {
		if col.Kind != KindNumeric {
			continue
		}
		floats := make([]float64, 0, len(buckets))
		null := make([]bool, 0, len(buckets))
		for _, b := range buckets {
			mean, ok := groupMean(&col, groups[b])
			floats = append(floats, mean)
			null = append(null, !ok)
		}
		out.Columns = append(out.Columns, NewNumericColumn(col.Name, floats, null))
	}

	times := make([]time.Time, len(buckets))
	for i, b := range buckets {
		times[i] = time.Unix(0, b).UTC()
	}
	idx := NewTimeColumn(t.Index.Name, times, nil)
	out.Index = &idx

	return out
}

// groupMean averages the non-missing values of a column at the given rows.
// The second return is false when every value in the group is missing.
func groupMean(c *Column, rows []int) (float64, bool) {
	sum := 0.0
	count := 0
	for _, i := range rows {
		if c.Null[i] {
			continue
		}
		sum += c.Floats[i]
		count++
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

// parseRule converts a resampling rule like "1s", "10s" or "1m" to a
// duration. Pandas-style suffixes S, T and min are accepted.
func parseRule(rule string) (time.Duration, error) {
	r := strings.TrimSpace(strings.ToLower(rule))
	if r == "" {
		return 0, fmt.Errorf("empty resample rule")
	}

	unitStart := len(r)
	for i, ch := range r {
		if ch < '0' || ch > '9' {
			unitStart = i
			break
		}
	}

	count := 1
	if unitStart > 0 {
		n, err := strconv.Atoi(r[:unitStart])
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid resample rule %q", rule)
		}
		count = n
	}

	switch r[unitStart:] {
	case "s", "sec":
		return time.Duration(count) * time.Second, nil
	case "m", "t", "min":
		return time.Duration(count) * time.Minute, nil
	case "h":
		return time.Duration(count) * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid resample rule %q", rule)
	}
}
