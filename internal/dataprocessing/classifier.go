package dataprocessing

import "strings"

// Classification groups column names by their semantic battery-signal
// category. Every input name lands in exactly one base category; the
// Temperature aggregate is derived post hoc.
type Classification struct {
	TempStats     []string `json:"temp_stats"`
	SOCSOH        []string `json:"soc_soh"`
	CellVoltage   []string `json:"cell_voltages"`
	TempCols      []string `json:"temp_cols"`
	Thermocouple  []string `json:"thermocouple"`
	CellBalancing []string `json:"cell_balancing"`
	Time          []string `json:"time"`
	Current       []string `json:"current"`
	Power         []string `json:"power"`
	Other         []string `json:"other"`
}

// Temperature returns the union of all temperature-bearing categories:
// pack temperature statistics, BMS sensors and thermocouples.
func (c *Classification) Temperature() []string {
	out := make([]string, 0, len(c.TempStats)+len(c.TempCols)+len(c.Thermocouple))
	out = append(out, c.TempStats...)
	out = append(out, c.TempCols...)
	out = append(out, c.Thermocouple...)
	return out
}

// CategoryOf returns the base category name a column was assigned to, or
// "other" when the name is unknown.
func (c *Classification) CategoryOf(name string) string {
	categories := map[string][]string{
		"temp_stats":     c.TempStats,
		"soc_soh":        c.SOCSOH,
		"cell_voltage":   c.CellVoltage,
		"temp_cols":      c.TempCols,
		"thermocouple":   c.Thermocouple,
		"cell_balancing": c.CellBalancing,
		"time":           c.Time,
		"current":        c.Current,
		"power":          c.Power,
	}
	for category, names := range categories {
		for _, n := range names {
			if n == name {
				return category
			}
		}
	}
	return "other"
}

// SimpleTypes returns a flattened column → display-category mapping used in
// cache metadata, folding the three temperature subtypes together.
func (c *Classification) SimpleTypes() map[string]string {
	types := make(map[string]string)
	for _, n := range c.Time {
		types[n] = "time"
	}
	for _, n := range c.CellVoltage {
		types[n] = "voltage"
	}
	for _, n := range c.Current {
		types[n] = "current"
	}
	for _, n := range c.Temperature() {
		types[n] = "temperature"
	}
	for _, n := range c.SOCSOH {
		types[n] = "soc"
	}
	for _, n := range c.Other {
		types[n] = "other"
	}
	for _, n := range c.Power {
		types[n] = "power"
	}
	for _, n := range c.CellBalancing {
		types[n] = "balancing"
	}
	return types
}

// Classify maps column names to semantic categories using ordered pattern
// rules. Matching is case-insensitive and tolerates an "_avg" suffix added
// by averaged exports. Rule order is load-bearing: the first matching rule
// wins, so a name containing both "time" and "current" substrings is
// classified by whichever rule comes first.
func Classify(columnNames []string) Classification {
	var c Classification

	for _, col := range columnNames {
		lower := strings.ToLower(col)
		// Averaged exports suffix every column with _avg; strip it so the
		// base patterns still match.
		base := strings.ReplaceAll(lower, "_avg", "")

		switch {
		// Pack temperature statistics
		case strings.Contains(base, "battery_temperature_m") || strings.Contains(base, "effective_battery"):
			c.TempStats = append(c.TempStats, col)

		// State of charge / health: Pack_S catches Pack_SOC, Pack_SoH, ...
		case strings.Contains(base, "pack_s"):
			c.SOCSOH = append(c.SOCSOH, col)

		// Per-cell voltages
		case strings.Contains(base, "cell_voltage_cell"):
			c.CellVoltage = append(c.CellVoltage, col)

		// BMS pack temperature sensors
		case strings.Contains(base, "bms00_pack_"):
			c.TempCols = append(c.TempCols, col)

		// Thermocouples named by side prefix plus a temperature token,
		// e.g. LH-C1-Busbar-T22_avg, RH-C2-Cell1-T94_avg
		case (strings.Contains(lower, "lh-") && strings.Contains(lower, "t")) ||
			(strings.Contains(lower, "rh-") && strings.Contains(lower, "t")):
			c.Thermocouple = append(c.Thermocouple, col)

		// Cell balancing status flags
		case strings.Contains(base, "_balancing_status_"):
			c.CellBalancing = append(c.CellBalancing, col)

		// Time columns
		case lower == "time" || lower == "timestamp" || lower == "index" || strings.Contains(lower, "time"):
			c.Time = append(c.Time, col)

		// Current
		case strings.Contains(lower, "current") || strings.Contains(lower, "amp") || strings.Contains(base, "battery_current"):
			c.Current = append(c.Current, col)

		// Power
		case strings.Contains(lower, "power") || strings.Contains(lower, "watt") || strings.Contains(base, "battery_power"):
			c.Power = append(c.Power, col)

		default:
			c.Other = append(c.Other, col)
		}
	}

	return c
}

// ClassifyTable classifies the columns of a table, index included when one
// has been promoted.
func ClassifyTable(t *Table) Classification {
	names := t.ColumnNames()
	if t.Index != nil {
		names = append([]string{t.Index.Name}, names...)
	}
	return Classify(names)
}
