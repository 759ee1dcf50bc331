package shelterboard

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func TestMonthString(t *testing.T) {
	m := month(2024, time.March)
	if got := m.String(); got != "2024-03" {
		t.Errorf("expected 2024-03, got %q", got)
	}
	if got := m.Label(); got != "Mar 2024" {
		t.Errorf("expected Mar 2024, got %q", got)
	}
}

func TestMonthTime(t *testing.T) {
	m := month(2024, time.March)
	want := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	if got := m.Time(); !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestMonthOfUsesUTC(t *testing.T) {
	// 23:30 on Jan 31 in UTC-5 is already February in UTC.
	loc := time.FixedZone("minus5", -5*3600)
	ts := time.Date(2024, time.January, 31, 23, 30, 0, 0, loc)
	if got := MonthOf(ts); got != month(2024, time.February) {
		t.Errorf("expected 2024-02, got %v", got)
	}
}

func TestMonthBefore(t *testing.T) {
	tests := []struct {
		a, b Month
		want bool
	}{
		{month(2024, time.January), month(2024, time.February), true},
		{month(2024, time.February), month(2024, time.January), false},
		{month(2023, time.December), month(2024, time.January), true},
		{month(2024, time.March), month(2024, time.March), false},
	}
	for _, tt := range tests {
		if got := tt.a.Before(tt.b); got != tt.want {
			t.Errorf("%v.Before(%v): expected %v, got %v", tt.a, tt.b, tt.want, got)
		}
	}
}

func TestMonthNext(t *testing.T) {
	if got := month(2024, time.March).Next(); got != month(2024, time.April) {
		t.Errorf("expected 2024-04, got %v", got)
	}
	if got := month(2024, time.December).Next(); got != month(2025, time.January) {
		t.Errorf("expected year rollover to 2025-01, got %v", got)
	}
}

func TestMonthJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(month(2024, time.July))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `"2024-07"` {
		t.Errorf("expected \"2024-07\", got %s", data)
	}
	var m Month
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if m != month(2024, time.July) {
		t.Errorf("expected 2024-07, got %v", m)
	}
}

func TestMonthUnmarshalRejectsGarbage(t *testing.T) {
	var m Month
	if err := json.Unmarshal([]byte(`"not-a-month"`), &m); err == nil {
		t.Error("expected error for garbage month")
	}
}

func TestRowValue(t *testing.T) {
	r := Row{Values: map[string]float64{"X": 1.5, "Y": math.NaN()}}
	if v, ok := r.Value("X"); !ok || v != 1.5 {
		t.Errorf("expected (1.5, true), got (%v, %v)", v, ok)
	}
	if v, ok := r.Value("Y"); !ok || !math.IsNaN(v) {
		t.Errorf("expected (NaN, true), got (%v, %v)", v, ok)
	}
	if _, ok := r.Value("Z"); ok {
		t.Error("expected missing column to report ok=false")
	}
}
