package dataprocessing

import (
	"log/slog"
	"math"
	"strings"
	"time"
)

// Stats is the basic statistics record for a table.
type Stats struct {
	Shape        [2]int                 `json:"shape"`
	DTypes       map[string]string      `json:"dtypes"`
	MemoryUsage  int64                  `json:"memory_usage"`
	NullCounts   map[string]int         `json:"null_counts"`
	NumericStats NumericStats           `json:"numeric_stats"`
	TimeRange    *TimeRange             `json:"time_range,omitempty"`
	DurationHrs  float64                `json:"duration_hours"`
}

// NumericStats holds per-column aggregates for numeric columns. A nil entry
// means every value in that column was missing.
type NumericStats struct {
	Mean map[string]*float64 `json:"mean"`
	Std  map[string]*float64 `json:"std"`
	Min  map[string]*float64 `json:"min"`
	Max  map[string]*float64 `json:"max"`
}

// TimeRange describes the span of the detected time column. Start and End
// are ISO strings for timestamp columns and raw numbers for numeric ones.
type TimeRange struct {
	Start           interface{} `json:"start"`
	End             interface{} `json:"end"`
	DurationSeconds float64     `json:"duration_seconds"`
	DurationHours   float64     `json:"duration_hours"`
}

// Summarizer computes table statistics.
type Summarizer struct {
	logger *slog.Logger
}

// NewSummarizer creates a summarizer. A nil logger falls back to the
// default slog logger.
func NewSummarizer(logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{logger: logger.With(slog.String("component", "summarizer"))}
}

// Summarize computes shape, dtype labels, null counts, numeric aggregates
// and the time range of a table. It never fails: a zero-row table yields
// nil aggregates, and a table without a time-like column yields a zero
// duration with the time-range block omitted.
func (s *Summarizer) Summarize(t *Table) *Stats {
	stats := &Stats{
		Shape:      [2]int{t.Rows(), t.NumColumns()},
		DTypes:     make(map[string]string),
		NullCounts: make(map[string]int),
		NumericStats: NumericStats{
			Mean: make(map[string]*float64),
			Std:  make(map[string]*float64),
			Min:  make(map[string]*float64),
			Max:  make(map[string]*float64),
		},
		MemoryUsage: t.MemoryEstimate(),
	}

	for i := range t.Columns {
		col := &t.Columns[i]
		stats.DTypes[col.Name] = col.DType()
		stats.NullCounts[col.Name] = col.NullCount()

		if col.Kind != KindNumeric {
			continue
		}
		mean, std, min, max := numericAggregates(col)
		stats.NumericStats.Mean[col.Name] = mean
		stats.NumericStats.Std[col.Name] = std
		stats.NumericStats.Min[col.Name] = min
		stats.NumericStats.Max[col.Name] = max
	}

	if tr := s.timeRange(t); tr != nil {
		stats.TimeRange = tr
		stats.DurationHrs = tr.DurationHours
	}

	return stats
}

// timeRange finds a time-like column by name heuristic and derives the
// range. The heuristic is independent of the classifier on purpose: any
// column whose name contains "time" qualifies, index included.
func (s *Summarizer) timeRange(t *Table) *TimeRange {
	var timeCol *Column

	candidates := make([]*Column, 0, len(t.Columns)+1)
	if t.Index != nil {
		candidates = append(candidates, t.Index)
	}
	for i := range t.Columns {
		candidates = append(candidates, &t.Columns[i])
	}

	for _, col := range candidates {
		lower := strings.ToLower(col.Name)
		if lower == "time" || lower == "timestamp" || strings.Contains(lower, "time") {
			timeCol = col
			break
		}
	}

	if timeCol == nil {
		return nil
	}

	switch timeCol.Kind {
	case KindTime:
		var min, max time.Time
		found := false
		for i := 0; i < timeCol.Len(); i++ {
			if timeCol.Null[i] {
				continue
			}
			v := timeCol.Times[i]
			if !found || v.Before(min) {
				min = v
			}
			if !found || v.After(max) {
				max = v
			}
			found = true
		}
		if !found {
			return nil
		}
		seconds := max.Sub(min).Seconds()
		return &TimeRange{
			Start:           min.Format(time.RFC3339),
			End:             max.Format(time.RFC3339),
			DurationSeconds: seconds,
			DurationHours:   seconds / 3600,
		}

	case KindNumeric:
		min, max := math.Inf(1), math.Inf(-1)
		found := false
		for i := 0; i < timeCol.Len(); i++ {
			if timeCol.Null[i] {
				continue
			}
			v := timeCol.Floats[i]
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
			found = true
		}
		if !found {
			return nil
		}
		// Numeric time columns carry elapsed seconds
		seconds := max - min
		return &TimeRange{
			Start:           min,
			End:             max,
			DurationSeconds: seconds,
			DurationHours:   seconds / 3600,
		}

	default:
		return nil
	}
}

// numericAggregates computes mean, sample std, min and max over the
// non-missing values of a column. All four are nil when every value is
// missing; std additionally needs at least two values.
func numericAggregates(c *Column) (mean, std, min, max *float64) {
	sum := 0.0
	count := 0
	lo, hi := math.Inf(1), math.Inf(-1)

	for i := 0; i < c.Len(); i++ {
		if c.Null[i] {
			continue
		}
		v := c.Floats[i]
		sum += v
		count++
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	if count == 0 {
		return nil, nil, nil, nil
	}

	m := sum / float64(count)
	mean = &m
	min = &lo
	max = &hi

	if count >= 2 {
		var sq float64
		for i := 0; i < c.Len(); i++ {
			if c.Null[i] {
				continue
			}
			d := c.Floats[i] - m
			sq += d * d
		}
		sd := math.Sqrt(sq / float64(count-1))
		std = &sd
	}

	return mean, std, min, max
}

// CleanForJSON recursively replaces NaN and infinite floating values with
// nil in nested maps, slices and scalars, preserving structure otherwise.
// JSON encoders reject non-finite floats, so anything fed to a response
// body goes through here first.
func CleanForJSON(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = CleanForJSON(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = CleanForJSON(item)
		}
		return out
	case []map[string]interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = CleanForJSON(item)
		}
		return out
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil
		}
		return val
	case float32:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return val
	case *float64:
		if val == nil || math.IsNaN(*val) || math.IsInf(*val, 0) {
			return nil
		}
		return *val
	default:
		return v
	}
}
