package shelterboard

import (
	"fmt"
	"time"
)

// Month identifies a calendar month. It is the time key of every dataset row;
// days and times of the underlying source dates are discarded.
type Month struct {
	Year int
	Mon  time.Month
}

// MonthOf returns the Month containing t, evaluated in UTC.
func MonthOf(t time.Time) Month {
	u := t.UTC()
	return Month{Year: u.Year(), Mon: u.Month()}
}

// Time returns the month as UTC midnight on the first day.
func (m Month) Time() time.Time {
	return time.Date(m.Year, m.Mon, 1, 0, 0, 0, 0, time.UTC)
}

// String formats the month as "2006-01".
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Mon))
}

// Label formats the month for hover text, e.g. "Jan 2006".
func (m Month) Label() string {
	return m.Time().Format("Jan 2006")
}

// Before reports whether m is earlier than other.
func (m Month) Before(other Month) bool {
	if m.Year != other.Year {
		return m.Year < other.Year
	}
	return m.Mon < other.Mon
}

// Next returns the following calendar month.
func (m Month) Next() Month {
	if m.Mon == time.December {
		return Month{Year: m.Year + 1, Mon: time.January}
	}
	return Month{Year: m.Year, Mon: m.Mon + 1}
}

// IsZero reports whether m is the zero Month.
func (m Month) IsZero() bool {
	return m.Year == 0 && m.Mon == 0
}

// MarshalJSON encodes the month as a "2006-01" JSON string.
func (m Month) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON decodes a "2006-01" JSON string.
func (m *Month) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("month: invalid JSON value %s", s)
	}
	t, err := time.Parse("2006-01", s[1:len(s)-1])
	if err != nil {
		return fmt.Errorf("month: %w", err)
	}
	*m = MonthOf(t)
	return nil
}

// Row is one dataset observation: the metric values reported by a single
// organization for a single month. Values maps metric column names to
// measurements; missing cells are stored as NaN.
type Row struct {
	// OrgID is the reporting organization's numeric identifier.
	OrgID int64
	// OrgName is the organization's display name as it appears in the source.
	OrgName string
	// Month is the calendar month the values cover.
	Month Month
	// Values holds one float64 per metric column. Blank and unparsable cells
	// are NaN, never zero.
	Values map[string]float64
}

// Value returns the named cell and whether the column exists in the row.
// A present-but-blank cell returns (NaN, true).
func (r *Row) Value(column string) (float64, bool) {
	v, ok := r.Values[column]
	return v, ok
}

// Organization summarizes one reporting shelter in the dataset.
type Organization struct {
	// ID is the numeric identifier used in chart and export requests.
	ID int64 `json:"id"`
	// Name is the display name. Names are not guaranteed unique; lookups by
	// name resolve to the lowest matching ID.
	Name string `json:"name"`
	// FirstMonth and LastMonth bound the months the organization reported.
	FirstMonth Month `json:"first_month"`
	LastMonth  Month `json:"last_month"`
	// RowCount is the number of monthly rows the organization contributed.
	RowCount int `json:"row_count"`
}
