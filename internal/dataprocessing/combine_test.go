package dataprocessing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombineLabelsAndRelativeTime(t *testing.T) {
	idxA := NewNumericColumn("Time", []float64{0, 1}, nil)
	a := &Table{
		Columns: []Column{NewNumericColumn("V", []float64{3.7, 3.8}, nil)},
		Index:   &idxA,
	}
	idxB := NewNumericColumn("Time", []float64{0, 1, 2}, nil)
	b := &Table{
		Columns: []Column{NewNumericColumn("V", []float64{3.5, 3.6, 3.7}, nil)},
		Index:   &idxB,
	}

	out := Combine([]*Table{a, b}, []string{"baseline", "retest"})

	assert.Equal(t, 5, out.Rows())
	assert.Nil(t, out.Index)

	ds := out.Column("Dataset")
	require.NotNil(t, ds)
	assert.Equal(t, []string{"baseline", "baseline", "retest", "retest", "retest"}, ds.Strings)

	rel := out.Column("Relative_Time")
	require.NotNil(t, rel)
	assert.Equal(t, []float64{0, 1, 0, 1, 2}, rel.Floats)

	abs := out.Column("Absolute_Time")
	require.NotNil(t, abs)
	assert.Equal(t, []float64{0, 1, 0, 1, 2}, abs.Floats)
}

func TestCombineDefaultLabels(t *testing.T) {
	a := &Table{Columns: []Column{NewNumericColumn("V", []float64{1}, nil)}}
	b := &Table{Columns: []Column{NewNumericColumn("V", []float64{2}, nil)}}

	out := Combine([]*Table{a, b}, nil)

	ds := out.Column("Dataset")
	require.NotNil(t, ds)
	assert.Equal(t, []string{"Dataset_1", "Dataset_2"}, ds.Strings)
}

func TestCombineTimestampIndexRelativeSeconds(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	idx := NewTimeColumn("Time", []time.Time{base, base.Add(90 * time.Second)}, nil)
	a := &Table{
		Columns: []Column{NewNumericColumn("V", []float64{1, 2}, nil)},
		Index:   &idx,
	}

	out := Combine([]*Table{a}, []string{"run"})

	rel := out.Column("Relative_Time")
	require.NotNil(t, rel)
	assert.Equal(t, []float64{0, 90}, rel.Floats)

	abs := out.Column("Absolute_Time")
	require.NotNil(t, abs)
	assert.Equal(t, KindTime, abs.Kind)
	assert.Equal(t, base, abs.Times[0])
}

func TestCombineUnionColumnsWithMissing(t *testing.T) {
	a := &Table{Columns: []Column{
		NewNumericColumn("V", []float64{1, 2}, nil),
		NewNumericColumn("I", []float64{0.1, 0.2}, nil),
	}}
	b := &Table{Columns: []Column{
		NewNumericColumn("V", []float64{3}, nil),
		NewNumericColumn("T", []float64{25.0}, nil),
	}}

	out := Combine([]*Table{a, b}, nil)

	// First-appearance order: a's columns, then b's new ones, then the
	// synthesized labelling columns.
	v := out.Column("V")
	require.NotNil(t, v)
	assert.Equal(t, []float64{1, 2, 3}, v.Floats)
	assert.Equal(t, 0, v.NullCount())

	i := out.Column("I")
	require.NotNil(t, i)
	assert.Equal(t, 1, i.NullCount())
	assert.True(t, i.Null[2])

	temp := out.Column("T")
	require.NotNil(t, temp)
	assert.True(t, temp.Null[0])
	assert.True(t, temp.Null[1])
	assert.False(t, temp.Null[2])
}

func TestCombineWithoutIndexUsesRowPositions(t *testing.T) {
	a := &Table{Columns: []Column{NewNumericColumn("V", []float64{1, 2, 3}, nil)}}

	out := Combine([]*Table{a}, nil)

	rel := out.Column("Relative_Time")
	require.NotNil(t, rel)
	assert.Equal(t, []float64{0, 1, 2}, rel.Floats)
}

func TestCombineEmptyInput(t *testing.T) {
	out := Combine(nil, nil)

	assert.True(t, out.IsEmpty())
	assert.Equal(t, 0, out.NumColumns())
}

func TestCombineDoesNotMutateInputs(t *testing.T) {
	a := &Table{Columns: []Column{NewNumericColumn("V", []float64{1}, nil)}}

	_ = Combine([]*Table{a}, nil)

	assert.Equal(t, []string{"V"}, a.ColumnNames())
	assert.Nil(t, a.Column("Dataset"))
}
