package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyCategories(t *testing.T) {
	tests := []struct {
		name     string
		column   string
		category string
	}{
		{"battery temperature statistic", "Battery_Temperature_Max", "temp_stats"},
		{"effective battery", "Effective_Battery_Temp", "temp_stats"},
		{"pack soc", "Pack_SOC", "soc_soh"},
		{"pack soh", "Pack_SoH_avg", "soc_soh"},
		{"cell voltage", "Cell_Voltage_Cell12", "cell_voltage"},
		{"cell voltage averaged", "Cell_Voltage_Cell1_avg", "cell_voltage"},
		{"bms pack sensor", "BMS00_Pack_Temperature_01", "temp_cols"},
		{"bms pack sensor averaged", "BMS00_Pack_Temperature_01_avg", "temp_cols"},
		{"thermocouple left", "LH-C1-Busbar-T22_avg", "thermocouple"},
		{"thermocouple right", "RH-C2-Cell1-T94_avg", "thermocouple"},
		{"balancing status", "Cell_Balancing_Status_3", "cell_balancing"},
		{"time literal", "Time", "time"},
		{"timestamp literal", "Timestamp", "time"},
		{"index literal", "Index", "time"},
		{"time substring", "Elapsed_Time_s", "time"},
		{"current", "Battery_Current", "current"},
		{"amps", "Amp_Draw", "current"},
		{"power", "Battery_Power", "power"},
		{"watts", "Watt_Output", "power"},
		{"unknown", "Humidity", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify([]string{tt.column})
			assert.Equal(t, tt.category, c.CategoryOf(tt.column))
		})
	}
}

func TestClassifyDeterministicAndExclusive(t *testing.T) {
	names := []string{
		"Timestamp",
		"Cell_Voltage_Cell1",
		"BMS00_Pack_Temperature_01_avg",
		"Pack_SOC",
		"Battery_Current",
		"LH-C1-Busbar-T22",
		"Humidity",
	}

	first := Classify(names)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Classify(names))
	}

	// Every input lands in exactly one base category
	total := len(first.TempStats) + len(first.SOCSOH) + len(first.CellVoltage) +
		len(first.TempCols) + len(first.Thermocouple) + len(first.CellBalancing) +
		len(first.Time) + len(first.Current) + len(first.Power) + len(first.Other)
	assert.Equal(t, len(names), total)
}

func TestClassifyPrecedence(t *testing.T) {
	// Matches both the thermocouple pattern and the "current" substring;
	// the earlier rule must win.
	c := Classify([]string{"LH-C1-Current-T5"})
	assert.Equal(t, []string{"LH-C1-Current-T5"}, c.Thermocouple)
	assert.Empty(t, c.Current)

	// "time" beats "current" because the time rule comes first
	c = Classify([]string{"Time_Current"})
	assert.Equal(t, []string{"Time_Current"}, c.Time)
	assert.Empty(t, c.Current)

	// Pack_S beats the time substring
	c = Classify([]string{"Pack_SOC_time"})
	assert.Equal(t, []string{"Pack_SOC_time"}, c.SOCSOH)
}

func TestClassifyEmptyInput(t *testing.T) {
	c := Classify(nil)

	assert.Empty(t, c.Time)
	assert.Empty(t, c.Other)
	assert.Empty(t, c.Temperature())
}

func TestTemperatureAggregate(t *testing.T) {
	c := Classify([]string{
		"Battery_Temperature_Max",
		"BMS00_Pack_Temperature_01",
		"RH-C2-Cell1-T94",
		"Pack_SOC",
	})

	temp := c.Temperature()
	assert.Len(t, temp, 3)
	assert.Contains(t, temp, "Battery_Temperature_Max")
	assert.Contains(t, temp, "BMS00_Pack_Temperature_01")
	assert.Contains(t, temp, "RH-C2-Cell1-T94")
	assert.NotContains(t, temp, "Pack_SOC")
}

func TestSimpleTypes(t *testing.T) {
	c := Classify([]string{"Timestamp", "Cell_Voltage_Cell1", "BMS00_Pack_Temperature_01", "Humidity"})
	types := c.SimpleTypes()

	assert.Equal(t, "time", types["Timestamp"])
	assert.Equal(t, "voltage", types["Cell_Voltage_Cell1"])
	assert.Equal(t, "temperature", types["BMS00_Pack_Temperature_01"])
	assert.Equal(t, "other", types["Humidity"])
}
