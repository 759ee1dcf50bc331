package shelterboard

import (
	"fmt"
	"math"
	"strings"
)

// Stable family keys for series and chart requests.
const (
	FamilyInventory        = "inventory"
	FamilyIntake           = "intake"
	FamilyExitsAbsolute    = "exits_abs"
	FamilyExitsConditional = "exits_cond"
	FamilyLengthOfStay     = "los"
	FamilySaveRate         = "save_rate"
)

// Smoothing selects the moving-average method applied to a series before
// display.
type Smoothing int

const (
	// SmoothingNone plots raw values.
	SmoothingNone Smoothing = iota
	// SmoothingMoving applies a centered simple moving average. Windows
	// shrink at the series edges so every month keeps a value.
	SmoothingMoving
	// SmoothingExponential applies an exponential moving average with
	// alpha = 2/(window+1).
	SmoothingExponential
)

// String returns the stable request token for the smoothing method.
func (s Smoothing) String() string {
	switch s {
	case SmoothingMoving:
		return "moving"
	case SmoothingExponential:
		return "exponential"
	default:
		return "none"
	}
}

// ParseSmoothing maps a request token to a Smoothing method.
func ParseSmoothing(s string) (Smoothing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "off":
		return SmoothingNone, nil
	case "moving", "sma", "rolling":
		return SmoothingMoving, nil
	case "exponential", "ema", "exp":
		return SmoothingExponential, nil
	}
	return SmoothingNone, newRequestError("method", fmt.Sprintf("unknown smoothing method %q", s))
}

// Smoothing window bounds. Mirroring the dashboard slider, requested windows
// outside the range are clamped rather than rejected.
const (
	MinSmoothingWindow     = 2
	MaxSmoothingWindow     = 12
	DefaultSmoothingWindow = 3
)

// ClampWindow normalizes a requested smoothing window: zero means the
// default, anything outside the slider range is clamped to it.
func ClampWindow(w int) int {
	if w == 0 {
		return DefaultSmoothingWindow
	}
	if w < MinSmoothingWindow {
		return MinSmoothingWindow
	}
	if w > MaxSmoothingWindow {
		return MaxSmoothingWindow
	}
	return w
}

// SeriesRequest selects one organization's metric family for derivation.
type SeriesRequest struct {
	// OrgID selects the organization.
	OrgID int64
	// Family is a catalog key such as FamilyIntake.
	Family string
	// Variant selects the column suffix to read.
	Variant Variant
	// Smoothing and Window control the moving average. Window is clamped
	// to the slider range; zero means DefaultSmoothingWindow.
	Smoothing Smoothing
	Window    int
	// AllowRawFallback lets traces whose variant column is missing fall
	// back to the raw column instead of failing the whole request.
	AllowRawFallback bool
}

// Series is one derived trace: display-scaled values aligned to the months
// of its SeriesSet. Missing cells are NaN.
type Series struct {
	Label  string
	Column string
	Color  string
	Values []float64
}

// SeriesSet bundles every trace of one derived family for one organization.
// Months are ascending and shared by all traces.
type SeriesSet struct {
	Org       Organization
	Family    Family
	Variant   Variant
	Smoothing Smoothing
	Window    int
	Months    []Month
	Series    []Series
}

// DeriveSeries resolves a request against the dataset: it locates the
// organization and the variant's columns, extracts month-ordered values,
// applies unit scaling, and smooths if requested.
//
// Unknown organizations return ErrOrgNotFound. Missing columns return a
// MissingColumnsError naming every absent column.
func DeriveSeries(ds *Dataset, req SeriesRequest) (*SeriesSet, error) {
	family, err := FamilyByKey(req.Family)
	if err != nil {
		return nil, err
	}
	org, err := ds.OrgByID(req.OrgID)
	if err != nil {
		return nil, err
	}
	rows, err := ds.RowsForOrg(req.OrgID)
	if err != nil {
		return nil, err
	}
	resolved, err := ResolveColumns(ds, family, req.Variant, req.AllowRawFallback)
	if err != nil {
		return nil, err
	}

	months := make([]Month, len(rows))
	for i, r := range rows {
		months[i] = r.Month
	}

	window := ClampWindow(req.Window)
	scale := family.Kind.Scale()
	series := make([]Series, 0, len(resolved))
	for _, rc := range resolved {
		values := make([]float64, len(rows))
		for i, r := range rows {
			v, ok := r.Value(rc.Column)
			if !ok {
				v = math.NaN()
			}
			values[i] = v * scale
		}
		switch req.Smoothing {
		case SmoothingMoving:
			values = movingAverage(values, window)
		case SmoothingExponential:
			values = exponentialAverage(values, window)
		}
		series = append(series, Series{
			Label:  rc.Trace.Label,
			Column: rc.Column,
			Color:  rc.Trace.Color,
			Values: values,
		})
	}

	return &SeriesSet{
		Org:       org,
		Family:    family,
		Variant:   req.Variant,
		Smoothing: req.Smoothing,
		Window:    window,
		Months:    months,
		Series:    series,
	}, nil
}

// movingAverage computes a centered simple moving average. For window w the
// window at index i covers [i+(w-1)/2-w+1, i+(w-1)/2], clipped to the series
// bounds, so edge windows shrink instead of dropping months. NaN cells are
// excluded from the mean; a window with no finite values yields NaN.
func movingAverage(values []float64, window int) []float64 {
	n := len(values)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		hi := i + (window-1)/2
		lo := hi - window + 1
		if lo < 0 {
			lo = 0
		}
		if hi > n-1 {
			hi = n - 1
		}
		sum, count := 0.0, 0
		for j := lo; j <= hi; j++ {
			if math.IsNaN(values[j]) {
				continue
			}
			sum += values[j]
			count++
		}
		if count == 0 {
			out[i] = math.NaN()
		} else {
			out[i] = sum / float64(count)
		}
	}
	return out
}

// exponentialAverage computes an exponential moving average with
// alpha = 2/(window+1). The state seeds at the first finite value; NaN gaps
// keep NaN in the output but do not reset the running average.
func exponentialAverage(values []float64, window int) []float64 {
	n := len(values)
	out := make([]float64, n)
	alpha := 2.0 / (float64(window) + 1.0)

	state := math.NaN()
	for i := 0; i < n; i++ {
		v := values[i]
		if math.IsNaN(v) {
			out[i] = math.NaN()
			continue
		}
		if math.IsNaN(state) {
			state = v
		} else {
			state = alpha*v + (1-alpha)*state
		}
		out[i] = state
	}
	return out
}
