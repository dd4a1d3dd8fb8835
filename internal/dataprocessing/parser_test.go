package dataprocessing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSVTypesAndNulls(t *testing.T) {
	csv := []byte("Timestamp,Cell_Voltage_Cell1,BMS00_Pack_Temperature_01_avg\n" +
		"0,3.70,25.1\n" +
		"1,3.71,25.3\n")

	table, err := ParseCSV(csv)
	require.NoError(t, err)

	assert.Equal(t, 2, table.Rows())
	assert.Equal(t, []string{"Timestamp", "Cell_Voltage_Cell1", "BMS00_Pack_Temperature_01_avg"}, table.ColumnNames())

	ts := table.Column("Timestamp")
	require.NotNil(t, ts)
	assert.Equal(t, KindNumeric, ts.Kind)
	assert.Equal(t, []float64{0, 1}, ts.Floats)

	v := table.Column("Cell_Voltage_Cell1")
	require.NotNil(t, v)
	assert.Equal(t, []float64{3.70, 3.71}, v.Floats)
}

func TestParseCSVEmptyCellsBecomeMissing(t *testing.T) {
	csv := []byte("Time,V\n0,3.7\n1,\n2,3.9\n")

	table, err := ParseCSV(csv)
	require.NoError(t, err)

	v := table.Column("V")
	require.NotNil(t, v)
	assert.Equal(t, KindNumeric, v.Kind)
	assert.True(t, v.Null[1])
	assert.Equal(t, 1, v.NullCount())
}

func TestParseCSVShortRowsPadded(t *testing.T) {
	csv := []byte("Time,V,I\n0,3.7,1.2\n1,3.8\n")

	table, err := ParseCSV(csv)
	require.NoError(t, err)

	i := table.Column("I")
	require.NotNil(t, i)
	assert.False(t, i.Null[0])
	assert.True(t, i.Null[1])
}

func TestParseCSVTimestampInference(t *testing.T) {
	csv := []byte("Timestamp,V\n" +
		"2025-03-01 10:00:00,3.7\n" +
		"2025-03-01 10:00:01,3.8\n")

	table, err := ParseCSV(csv)
	require.NoError(t, err)

	ts := table.Column("Timestamp")
	require.NotNil(t, ts)
	assert.Equal(t, KindTime, ts.Kind)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), ts.Times[0])
}

func TestParseCSVMixedValuesFallBackToString(t *testing.T) {
	csv := []byte("Status\nOK\n42\nFAULT\n")

	table, err := ParseCSV(csv)
	require.NoError(t, err)

	col := table.Column("Status")
	require.NotNil(t, col)
	assert.Equal(t, KindString, col.Kind)
	assert.Equal(t, []string{"OK", "42", "FAULT"}, col.Strings)
}

func TestParseCSVBlankHeaderNames(t *testing.T) {
	csv := []byte("Time,,V\n0,x,3.7\n")

	table, err := ParseCSV(csv)
	require.NoError(t, err)

	assert.Equal(t, []string{"Time", "Unnamed_1", "V"}, table.ColumnNames())
}

func TestParseCSVEmptyContent(t *testing.T) {
	_, err := ParseCSV(nil)
	assert.Error(t, err)
}

func TestParseCSVHeaderOnly(t *testing.T) {
	table, err := ParseCSV([]byte("Time,V\n"))
	require.NoError(t, err)

	assert.Equal(t, 0, table.Rows())
	assert.Equal(t, 2, table.NumColumns())
}

func TestParseContentDispatch(t *testing.T) {
	table, err := ParseContent("run_001.csv", []byte("Time,V\n0,3.7\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, table.Rows())

	// xlsx path rejects csv bytes
	_, err = ParseContent("run_001.xlsx", []byte("Time,V\n0,3.7\n"))
	assert.Error(t, err)
}

func TestParseTimeLayouts(t *testing.T) {
	for _, raw := range []string{
		"2025-03-01T10:00:00Z",
		"2025-03-01 10:00:00.250000",
		"2025-03-01 10:00:00",
		"2025-03-01",
		"03/01/2025 10:00:00",
	} {
		_, ok := parseTime(raw)
		assert.True(t, ok, "layout should parse: %s", raw)
	}

	_, ok := parseTime("not a time")
	assert.False(t, ok)
}
