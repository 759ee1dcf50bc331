package shelterboard

import (
	"math"
	"testing"
	"time"
)

// nan shortens fixture literals.
var nan = math.NaN()

func month(year int, mon time.Month) Month {
	return Month{Year: year, Mon: mon}
}

// testFixtureValues maps every catalog column to five monthly values,
// January through May 2024, for the primary test organization.
func testFixtureValues() map[string][]float64 {
	return map[string][]float64{
		"CIntake_monthly":              {10, 20, nan, 40, 50},
		"CIntake_monthly_interpolated": {10, 20, 30, 40, 50},
		"CInventAvg":                   {100, 110, 120, 130, 140},
		"PAdopt_monthly_abs":           {0.50, 0.52, 0.54, 0.56, 0.58},
		"PReclaim_monthly_abs":         {0.10, 0.10, 0.10, 0.10, 0.10},
		"PTransfer_monthly_abs":        {0.20, 0.18, 0.16, 0.14, 0.12},
		"PNonlive_monthly_abs":         {0.05, 0.05, 0.05, 0.05, 0.05},
		"PNoExit_monthly_abs":          {0.15, 0.15, 0.15, 0.15, 0.15},
		"PAdopt_monthly_cond":          {0.60, 0.61, 0.62, 0.63, 0.64},
		"PReclaim_monthly_cond":        {0.12, 0.12, 0.12, 0.12, 0.12},
		"PTransfer_monthly_cond":       {0.22, 0.21, 0.20, 0.19, 0.18},
		"PNonlive_monthly_cond":        {0.06, 0.06, 0.06, 0.06, 0.06},
		"LOSAvg_monthly":               {14.5, 15.0, 16.0, 17.0, 18.0},
		"PSave_monthly":                {0.90, 0.91, nan, 0.93, 0.94},
	}
}

func testFixtureMonths() []Month {
	return []Month{
		month(2024, time.January),
		month(2024, time.February),
		month(2024, time.March),
		month(2024, time.April),
		month(2024, time.May),
	}
}

// newTestDataset builds a two-organization dataset: Happy Tails (ID 42) with
// five months of every catalog column, and Austin Pets Alive (ID 7) with two
// months carrying intake only.
func newTestDataset(t *testing.T) *Dataset {
	t.Helper()
	fixture := testFixtureValues()
	columns := make([]string, 0, len(fixture))
	for col := range fixture {
		columns = append(columns, col)
	}

	months := testFixtureMonths()
	rows := make([]Row, 0, len(months)+2)
	for i, m := range months {
		values := make(map[string]float64, len(fixture))
		for col, vals := range fixture {
			values[col] = vals[i]
		}
		rows = append(rows, Row{OrgID: 42, OrgName: "Happy Tails", Month: m, Values: values})
	}
	rows = append(rows,
		Row{OrgID: 7, OrgName: "Austin Pets Alive", Month: month(2024, time.February),
			Values: map[string]float64{"CIntake_monthly": 5}},
		Row{OrgID: 7, OrgName: "Austin Pets Alive", Month: month(2024, time.March),
			Values: map[string]float64{"CIntake_monthly": 6}},
	)

	return NewDataset(rows, columns, LoadReport{Source: "fixture", Strategy: "comma"})
}

// floatsMatch compares value slices, treating NaN as equal to NaN.
func floatsMatch(t *testing.T, got, want []float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d values, got %d (%v)", len(want), len(got), got)
	}
	for i := range want {
		switch {
		case math.IsNaN(want[i]):
			if !math.IsNaN(got[i]) {
				t.Errorf("value %d: expected NaN, got %v", i, got[i])
			}
		case math.Abs(got[i]-want[i]) > 1e-9:
			t.Errorf("value %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}
