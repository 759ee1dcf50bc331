package shelterboard

import (
	"encoding/json"
	"strings"
	"testing"
)

func deriveTestChart(t *testing.T, req SeriesRequest) *Chart {
	t.Helper()
	ds := newTestDataset(t)
	set, err := DeriveSeries(ds, req)
	if err != nil {
		t.Fatalf("DeriveSeries: %v", err)
	}
	return BuildChart(set)
}

func TestBuildChartLine(t *testing.T) {
	chart := deriveTestChart(t, SeriesRequest{OrgID: 42, Family: FamilyIntake})
	if chart.Type != "line" {
		t.Errorf("expected line chart, got %q", chart.Type)
	}
	if chart.Stacked {
		t.Error("expected intake chart to be unstacked")
	}
	if chart.Title != "Monthly intake for Happy Tails (raw)" {
		t.Errorf("unexpected title %q", chart.Title)
	}
	if len(chart.Labels) != 5 || chart.Labels[0] != "Jan 2024" {
		t.Errorf("unexpected labels %v", chart.Labels)
	}
	if chart.Org.ID != 42 {
		t.Errorf("expected org 42, got %d", chart.Org.ID)
	}
}

func TestBuildChartStacked(t *testing.T) {
	chart := deriveTestChart(t, SeriesRequest{OrgID: 42, Family: FamilyExitsAbsolute})
	if chart.Type != "stacked_area" {
		t.Errorf("expected stacked_area, got %q", chart.Type)
	}
	if !chart.Stacked {
		t.Error("expected stacked flag")
	}
	if len(chart.Traces) != 5 {
		t.Fatalf("expected 5 traces, got %d", len(chart.Traces))
	}
	if chart.Traces[0].Label != "Adopt" {
		t.Errorf("expected Adopt at the bottom of the stack, got %q", chart.Traces[0].Label)
	}
}

func TestBuildChartNullsForNaN(t *testing.T) {
	chart := deriveTestChart(t, SeriesRequest{OrgID: 42, Family: FamilySaveRate})
	values := chart.Traces[0].Values
	if values[2] != nil {
		t.Errorf("expected null for missing March value, got %v", *values[2])
	}
	if values[0] == nil || *values[0] != 90 {
		t.Errorf("expected 90 for January, got %v", values[0])
	}

	data, err := json.Marshal(chart)
	if err != nil {
		t.Fatalf("chart payload must marshal despite missing cells: %v", err)
	}
	if !strings.Contains(string(data), "null") {
		t.Error("expected null in marshaled payload")
	}
}

func TestBuildChartHoverText(t *testing.T) {
	tests := []struct {
		family string
		index  int
		want   string
	}{
		{FamilySaveRate, 0, "Jan 2024: 90.0%"},
		{FamilySaveRate, 2, "Mar 2024: n/a"},
		{FamilyIntake, 0, "Jan 2024: 10"},
		{FamilyLengthOfStay, 0, "Jan 2024: 14.5 days"},
	}
	for _, tt := range tests {
		chart := deriveTestChart(t, SeriesRequest{OrgID: 42, Family: tt.family})
		got := chart.Traces[0].Hover[tt.index]
		if got != tt.want {
			t.Errorf("%s hover[%d]: expected %q, got %q", tt.family, tt.index, tt.want, got)
		}
	}
}

func TestBuildChartYAxis(t *testing.T) {
	prob := deriveTestChart(t, SeriesRequest{OrgID: 42, Family: FamilySaveRate})
	if prob.YAxis.Min == nil || *prob.YAxis.Min != 0 {
		t.Error("expected probability axis min 0")
	}
	if prob.YAxis.Max == nil || *prob.YAxis.Max != 100 {
		t.Error("expected probability axis max 100")
	}
	if prob.YAxis.Title != "Share of animals (%)" {
		t.Errorf("unexpected probability axis title %q", prob.YAxis.Title)
	}

	count := deriveTestChart(t, SeriesRequest{OrgID: 42, Family: FamilyIntake})
	if count.YAxis.Min == nil || *count.YAxis.Min != 0 {
		t.Error("expected count axis min 0")
	}
	if count.YAxis.Max != nil {
		t.Error("expected count axis max unset")
	}

	days := deriveTestChart(t, SeriesRequest{OrgID: 42, Family: FamilyLengthOfStay})
	if days.YAxis.Min != nil || days.YAxis.Max != nil {
		t.Error("expected days axis unbounded")
	}
}

func TestBuildChartWindowOnlyWhenSmoothed(t *testing.T) {
	plain := deriveTestChart(t, SeriesRequest{OrgID: 42, Family: FamilyIntake})
	if plain.Window != 0 {
		t.Errorf("expected window omitted without smoothing, got %d", plain.Window)
	}
	if plain.Smoothing != "none" {
		t.Errorf("expected smoothing none, got %q", plain.Smoothing)
	}

	smoothed := deriveTestChart(t, SeriesRequest{
		OrgID:     42,
		Family:    FamilyIntake,
		Smoothing: SmoothingMoving,
		Window:    5,
	})
	if smoothed.Window != 5 {
		t.Errorf("expected window 5, got %d", smoothed.Window)
	}
	if smoothed.Smoothing != "moving" {
		t.Errorf("expected smoothing moving, got %q", smoothed.Smoothing)
	}
}

func TestBuildChartVariantInTitle(t *testing.T) {
	chart := deriveTestChart(t, SeriesRequest{
		OrgID:   42,
		Family:  FamilyIntake,
		Variant: VariantInterpolated,
	})
	if !strings.Contains(chart.Title, "(interpolated)") {
		t.Errorf("expected variant label in title, got %q", chart.Title)
	}
	if chart.Variant != "interpolated" {
		t.Errorf("expected variant token interpolated, got %q", chart.Variant)
	}
}
