package shelterboard

import (
	"fmt"
	"math"
	"strconv"
)

// String returns the payload token for the chart kind.
func (c ChartKind) String() string {
	if c == ChartStackedArea {
		return "stacked_area"
	}
	return "line"
}

// Chart is the JSON payload the dashboard's charting code consumes. Months
// serialize as "2006-01" strings and NaN values as nulls.
type Chart struct {
	// Type is "line" or "stacked_area".
	Type string `json:"type"`
	// Title heads the chart: family title, organization, variant label.
	Title string `json:"title"`
	// Org identifies the plotted organization.
	Org Organization `json:"org"`
	// Family and Variant echo the request tokens.
	Family  string `json:"family"`
	Variant string `json:"variant"`
	// Smoothing echoes the applied method; Window is meaningful only when
	// Smoothing is not "none".
	Smoothing string `json:"smoothing"`
	Window    int    `json:"window,omitempty"`
	// Months is the shared x axis; Labels carries the matching hover text
	// ("Jan 2006").
	Months []Month  `json:"months"`
	Labels []string `json:"labels"`
	// Traces render in order; for stacked charts the first trace is the
	// bottom of the stack.
	Traces []ChartTrace `json:"traces"`
	// Stacked is true for exit-share distribution charts.
	Stacked bool  `json:"stacked"`
	YAxis   YAxis `json:"y_axis"`
}

// ChartTrace is one plotted series. Values align with the chart's Months;
// missing cells are null.
type ChartTrace struct {
	Label  string     `json:"label"`
	Color  string     `json:"color"`
	Values []*float64 `json:"values"`
	// Hover holds preformatted per-point hover text.
	Hover []string `json:"hover"`
}

// YAxis describes the y axis for the chart.
type YAxis struct {
	Title string   `json:"title"`
	Min   *float64 `json:"min,omitempty"`
	Max   *float64 `json:"max,omitempty"`
}

// BuildChart converts a derived SeriesSet into its chart payload.
func BuildChart(set *SeriesSet) *Chart {
	labels := make([]string, len(set.Months))
	for i, m := range set.Months {
		labels[i] = m.Label()
	}

	traces := make([]ChartTrace, 0, len(set.Series))
	for _, s := range set.Series {
		hover := make([]string, len(s.Values))
		for i, v := range s.Values {
			hover[i] = fmt.Sprintf("%s: %s", labels[i], formatValue(set.Family.Kind, v))
		}
		traces = append(traces, ChartTrace{
			Label:  s.Label,
			Color:  s.Color,
			Values: nullableValues(s.Values),
			Hover:  hover,
		})
	}

	chart := &Chart{
		Type:      set.Family.Chart.String(),
		Title:     chartTitle(set),
		Org:       set.Org,
		Family:    set.Family.Key,
		Variant:   set.Variant.String(),
		Smoothing: set.Smoothing.String(),
		Months:    set.Months,
		Labels:    labels,
		Traces:    traces,
		Stacked:   set.Family.Chart == ChartStackedArea,
		YAxis:     yAxisFor(set.Family.Kind),
	}
	if set.Smoothing != SmoothingNone {
		chart.Window = set.Window
	}
	return chart
}

func chartTitle(set *SeriesSet) string {
	return fmt.Sprintf("%s for %s (%s)", set.Family.Title, set.Org.Name, set.Variant.Label())
}

func yAxisFor(kind MetricKind) YAxis {
	axis := YAxis{Title: kind.AxisTitle()}
	switch kind {
	case KindProbability:
		// Shares render on a fixed percent scale.
		lo, hi := 0.0, 100.0
		axis.Min, axis.Max = &lo, &hi
	case KindCount:
		lo := 0.0
		axis.Min = &lo
	}
	return axis
}

// nullableValues maps NaN to nil so encoding/json emits null instead of
// failing on NaN.
func nullableValues(values []float64) []*float64 {
	out := make([]*float64, len(values))
	for i := range values {
		if math.IsNaN(values[i]) {
			continue
		}
		v := values[i]
		out[i] = &v
	}
	return out
}

// formatValue renders one hover value per the family's kind: counts as whole
// animals, shares with one decimal percent, stays with one decimal of days.
func formatValue(kind MetricKind, v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	switch kind {
	case KindProbability:
		return fmt.Sprintf("%.1f%%", v)
	case KindDays:
		return fmt.Sprintf("%.1f days", v)
	default:
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
}
