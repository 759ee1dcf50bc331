package shelterboard

import (
	"fmt"
	"strings"
)

// Variant selects which data-cleaning suffix of a metric column to read.
// The same underlying quantity exists in up to three spellings: the raw
// column, a zeros-replaced column, and an interpolated column.
type Variant int

const (
	// VariantRaw reads the base column with no suffix.
	VariantRaw Variant = iota
	// VariantZerosReplaced reads the "_zeros_replaced" column, where
	// implausible zero months were blanked upstream.
	VariantZerosReplaced
	// VariantInterpolated reads the "_interpolated" column, where gaps were
	// filled by interpolation upstream.
	VariantInterpolated
)

// Suffix returns the column-name suffix for the variant.
func (v Variant) Suffix() string {
	switch v {
	case VariantZerosReplaced:
		return "_zeros_replaced"
	case VariantInterpolated:
		return "_interpolated"
	default:
		return ""
	}
}

// Label returns a human-readable variant name for titles and dropdowns.
func (v Variant) Label() string {
	switch v {
	case VariantZerosReplaced:
		return "zeros replaced"
	case VariantInterpolated:
		return "interpolated"
	default:
		return "raw"
	}
}

// String returns the stable request token for the variant.
func (v Variant) String() string {
	switch v {
	case VariantZerosReplaced:
		return "zeros_replaced"
	case VariantInterpolated:
		return "interpolated"
	default:
		return "raw"
	}
}

// ParseVariant maps a request token to a Variant. Both bare and
// suffix-style spellings are accepted; the empty string means raw.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "raw":
		return VariantRaw, nil
	case "zeros_replaced", "_zeros_replaced", "zeros-replaced":
		return VariantZerosReplaced, nil
	case "interpolated", "_interpolated":
		return VariantInterpolated, nil
	}
	return VariantRaw, newRequestError("variant", fmt.Sprintf("unknown variant %q", s))
}

// Variants returns all variants in catalog order.
func Variants() []Variant {
	return []Variant{VariantRaw, VariantZerosReplaced, VariantInterpolated}
}

// MetricKind classifies what a family's values measure, which drives unit
// scaling and hover formatting.
type MetricKind int

const (
	// KindCount is a whole-animal count.
	KindCount MetricKind = iota
	// KindProbability is a fraction in [0,1], displayed as percent.
	KindProbability
	// KindDays is a duration in days.
	KindDays
)

// Scale returns the factor applied to stored values for display.
// Probabilities are stored as fractions and displayed as percent.
func (k MetricKind) Scale() float64 {
	if k == KindProbability {
		return 100
	}
	return 1
}

// AxisTitle returns the y-axis label for the kind.
func (k MetricKind) AxisTitle() string {
	switch k {
	case KindProbability:
		return "Share of animals (%)"
	case KindDays:
		return "Days"
	default:
		return "Animals (count)"
	}
}

// HoverDecimals returns how many decimals hover text shows.
func (k MetricKind) HoverDecimals() int {
	switch k {
	case KindProbability, KindDays:
		return 1
	default:
		return 0
	}
}

// ChartKind selects how a family renders.
type ChartKind int

const (
	// ChartLine renders one line (with markers) per trace.
	ChartLine ChartKind = iota
	// ChartStackedArea renders traces as a stacked area filling to 100%.
	ChartStackedArea
)

// Okabe-Ito palette, colorblind safe and stable across families.
const (
	colorAdopt    = "#0072B2"
	colorReclaim  = "#CC79A7"
	colorTransfer = "#E69F00"
	colorNonlive  = "#009E73"
	colorNoExit   = "#F0E442"
)

// Trace describes one plotted series within a family: its legend label, the
// base column it reads (before the variant suffix), and its color.
type Trace struct {
	Label  string `json:"label"`
	Column string `json:"column"`
	Color  string `json:"color"`
}

// Family is one metric family in the catalog: a titled group of traces that
// render together on a single chart.
type Family struct {
	// Key is the stable request token, e.g. "exits_abs".
	Key string `json:"key"`
	// Title heads the chart.
	Title string `json:"title"`
	// Kind drives unit scaling and formatting for every trace.
	Kind MetricKind `json:"-"`
	// Chart selects line or stacked-area rendering.
	Chart ChartKind `json:"-"`
	// Traces are plotted and stacked in declaration order.
	Traces []Trace `json:"traces"`
}

// families is the fixed catalog. Exit-share traces keep the legend and stack
// order Adopt, Reclaim, Transfer, Non-live, No Exit; the conditional family
// has no No Exit trace because it conditions on an exit having happened.
var families = []Family{
	{
		Key:   FamilyInventory,
		Title: "Average daily inventory",
		Kind:  KindCount,
		Chart: ChartLine,
		Traces: []Trace{
			{Label: "Inventory", Column: "CInventAvg", Color: colorAdopt},
		},
	},
	{
		Key:   FamilyIntake,
		Title: "Monthly intake",
		Kind:  KindCount,
		Chart: ChartLine,
		Traces: []Trace{
			{Label: "Intake", Column: "CIntake_monthly", Color: colorTransfer},
		},
	},
	{
		Key:   FamilyExitsAbsolute,
		Title: "Monthly exit shares (absolute)",
		Kind:  KindProbability,
		Chart: ChartStackedArea,
		Traces: []Trace{
			{Label: "Adopt", Column: "PAdopt_monthly_abs", Color: colorAdopt},
			{Label: "Reclaim", Column: "PReclaim_monthly_abs", Color: colorReclaim},
			{Label: "Transfer", Column: "PTransfer_monthly_abs", Color: colorTransfer},
			{Label: "Non-live", Column: "PNonlive_monthly_abs", Color: colorNonlive},
			{Label: "No Exit", Column: "PNoExit_monthly_abs", Color: colorNoExit},
		},
	},
	{
		Key:   FamilyExitsConditional,
		Title: "Monthly exit shares (conditional on exit)",
		Kind:  KindProbability,
		Chart: ChartStackedArea,
		Traces: []Trace{
			{Label: "Adopt", Column: "PAdopt_monthly_cond", Color: colorAdopt},
			{Label: "Reclaim", Column: "PReclaim_monthly_cond", Color: colorReclaim},
			{Label: "Transfer", Column: "PTransfer_monthly_cond", Color: colorTransfer},
			{Label: "Non-live", Column: "PNonlive_monthly_cond", Color: colorNonlive},
		},
	},
	{
		Key:   FamilyLengthOfStay,
		Title: "Average length of stay",
		Kind:  KindDays,
		Chart: ChartLine,
		Traces: []Trace{
			{Label: "Length of stay", Column: "LOSAvg_monthly", Color: colorReclaim},
		},
	},
	{
		Key:   FamilySaveRate,
		Title: "Save rate",
		Kind:  KindProbability,
		Chart: ChartLine,
		Traces: []Trace{
			{Label: "Save rate", Column: "PSave_monthly", Color: colorNonlive},
		},
	},
}

// Families returns the metric catalog in display order.
func Families() []Family {
	out := make([]Family, len(families))
	copy(out, families)
	return out
}

// FamilyByKey returns the family with the given request token.
func FamilyByKey(key string) (Family, error) {
	k := strings.ToLower(strings.TrimSpace(key))
	for _, f := range families {
		if f.Key == k {
			return f, nil
		}
	}
	return Family{}, newRequestError("family", fmt.Sprintf("unknown metric family %q", key))
}

// ResolvedColumn pairs a family trace with the concrete dataset column the
// requested variant resolved to.
type ResolvedColumn struct {
	Trace  Trace
	Column string
}

// ResolveColumns maps a family's traces to concrete dataset columns under
// the requested variant. In strict mode (allowRawFallback=false) every
// missing column is collected and reported in one error. With fallback
// enabled, a trace whose variant column is absent falls back to the raw
// column when that exists.
func ResolveColumns(ds *Dataset, family Family, variant Variant, allowRawFallback bool) ([]ResolvedColumn, error) {
	resolved := make([]ResolvedColumn, 0, len(family.Traces))
	var missing []string
	for _, tr := range family.Traces {
		col := tr.Column + variant.Suffix()
		if !ds.HasColumn(col) {
			if allowRawFallback && variant != VariantRaw && ds.HasColumn(tr.Column) {
				col = tr.Column
			} else {
				missing = append(missing, col)
				continue
			}
		}
		resolved = append(resolved, ResolvedColumn{Trace: tr, Column: col})
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}
	return resolved, nil
}
