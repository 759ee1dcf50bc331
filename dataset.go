package shelterboard

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Dataset is the in-memory metrics table: one Row per organization per month,
// plus the column set and load metadata. A Dataset is immutable after build;
// refreshes construct a new Dataset and swap it in atomically.
type Dataset struct {
	rows    []Row
	columns []string
	colSet  map[string]struct{}

	// orgRows maps organization ID to indices into rows, month-ascending.
	orgRows map[int64][]int
	// orgs is sorted by display name, then ID.
	orgs []Organization
	// nameToID resolves a display name to the lowest matching ID.
	nameToID map[string]int64

	report   LoadReport
	loadedAt time.Time
}

// LoadReport records how a dataset load went: which parse strategy succeeded
// and what was discarded along the way.
type LoadReport struct {
	// Source describes where the bytes came from.
	Source string `json:"source"`
	// Strategy is the CSV parse strategy that produced the dataset.
	Strategy string `json:"strategy"`
	// RowsKept is the number of rows in the dataset.
	RowsKept int `json:"rows_kept"`
	// RowsDropped counts rows discarded for unparsable identity fields.
	RowsDropped int `json:"rows_dropped"`
	// BadDates counts rows dropped because no accepted date layout matched.
	BadDates int `json:"bad_dates"`
	// Checksum is the hex SHA-256 of the raw source bytes.
	Checksum string `json:"checksum"`
}

// NewDataset builds a Dataset from parsed rows. Rows are sorted by
// organization then month; duplicate (org, month) pairs keep the last
// occurrence. The column list should cover every metric column seen in the
// source header, identity columns excluded.
func NewDataset(rows []Row, columns []string, report LoadReport) *Dataset {
	sorted := make([]Row, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].OrgID != sorted[j].OrgID {
			return sorted[i].OrgID < sorted[j].OrgID
		}
		return sorted[i].Month.Before(sorted[j].Month)
	})

	// Last occurrence wins for duplicate (org, month) pairs.
	deduped := sorted[:0]
	for _, r := range sorted {
		if n := len(deduped); n > 0 &&
			deduped[n-1].OrgID == r.OrgID && deduped[n-1].Month == r.Month {
			deduped[n-1] = r
			continue
		}
		deduped = append(deduped, r)
	}

	ds := &Dataset{
		rows:     deduped,
		columns:  append([]string(nil), columns...),
		colSet:   make(map[string]struct{}, len(columns)),
		orgRows:  make(map[int64][]int),
		nameToID: make(map[string]int64),
		report:   report,
		loadedAt: time.Now().UTC(),
	}
	sort.Strings(ds.columns)
	for _, c := range ds.columns {
		ds.colSet[c] = struct{}{}
	}
	ds.report.RowsKept = len(ds.rows)
	ds.buildIndexes()
	return ds
}

func (ds *Dataset) buildIndexes() {
	type orgAgg struct {
		name  string
		first Month
		last  Month
		count int
	}
	aggs := make(map[int64]*orgAgg)

	for i, r := range ds.rows {
		ds.orgRows[r.OrgID] = append(ds.orgRows[r.OrgID], i)
		a, ok := aggs[r.OrgID]
		if !ok {
			a = &orgAgg{name: r.OrgName, first: r.Month, last: r.Month}
			aggs[r.OrgID] = a
		}
		if r.Month.Before(a.first) {
			a.first = r.Month
		}
		if a.last.Before(r.Month) {
			a.last = r.Month
		}
		a.count++
		// The latest row's name wins so renames propagate.
		a.name = r.OrgName
	}

	ds.orgs = make([]Organization, 0, len(aggs))
	for id, a := range aggs {
		ds.orgs = append(ds.orgs, Organization{
			ID:         id,
			Name:       a.name,
			FirstMonth: a.first,
			LastMonth:  a.last,
			RowCount:   a.count,
		})
		if existing, ok := ds.nameToID[a.name]; !ok || id < existing {
			ds.nameToID[a.name] = id
		}
	}
	sort.Slice(ds.orgs, func(i, j int) bool {
		if ds.orgs[i].Name != ds.orgs[j].Name {
			return ds.orgs[i].Name < ds.orgs[j].Name
		}
		return ds.orgs[i].ID < ds.orgs[j].ID
	})
}

// Organizations returns all organizations sorted by name, then ID.
func (ds *Dataset) Organizations() []Organization {
	out := make([]Organization, len(ds.orgs))
	copy(out, ds.orgs)
	return out
}

// OrgByID returns the organization with the given ID.
func (ds *Dataset) OrgByID(id int64) (Organization, error) {
	for _, o := range ds.orgs {
		if o.ID == id {
			return o, nil
		}
	}
	return Organization{}, fmt.Errorf("organization %d: %w", id, ErrOrgNotFound)
}

// OrgByName returns the organization with the given display name. When
// several organizations share the name, the lowest ID wins. Matching is
// exact after trimming surrounding whitespace.
func (ds *Dataset) OrgByName(name string) (Organization, error) {
	id, ok := ds.nameToID[strings.TrimSpace(name)]
	if !ok {
		return Organization{}, fmt.Errorf("organization %q: %w", name, ErrOrgNotFound)
	}
	return ds.OrgByID(id)
}

// RowsForOrg returns the organization's rows in ascending month order.
// The Values maps inside the rows are shared with the dataset and must not
// be modified.
func (ds *Dataset) RowsForOrg(id int64) ([]Row, error) {
	idxs, ok := ds.orgRows[id]
	if !ok {
		return nil, fmt.Errorf("organization %d: %w", id, ErrOrgNotFound)
	}
	out := make([]Row, len(idxs))
	for i, idx := range idxs {
		out[i] = ds.rows[idx]
	}
	return out, nil
}

// Columns returns the metric column names in sorted order.
func (ds *Dataset) Columns() []string {
	out := make([]string, len(ds.columns))
	copy(out, ds.columns)
	return out
}

// HasColumn reports whether the dataset carries the named metric column.
func (ds *Dataset) HasColumn(name string) bool {
	_, ok := ds.colSet[name]
	return ok
}

// RowCount returns the total number of rows.
func (ds *Dataset) RowCount() int {
	return len(ds.rows)
}

// OrgCount returns the number of distinct organizations.
func (ds *Dataset) OrgCount() int {
	return len(ds.orgs)
}

// Report returns the load report recorded at build time.
func (ds *Dataset) Report() LoadReport {
	return ds.report
}

// LoadedAt returns when the dataset was built.
func (ds *Dataset) LoadedAt() time.Time {
	return ds.loadedAt
}

// Checksum returns the hex SHA-256 of the source bytes, or "" when the
// dataset was built without one.
func (ds *Dataset) Checksum() string {
	return ds.report.Checksum
}
