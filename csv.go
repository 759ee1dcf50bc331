package shelterboard

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// Identity columns every source file must carry. Metric columns are
// everything else in the header.
const (
	columnOrgID   = "organization_id"
	columnOrgName = "organization_name"
	columnDate    = "yyyymmdd"
)

// dateLayouts are tried in order against the yyyymmdd column. Rows matching
// none of them are dropped and counted in the load report.
var dateLayouts = []string{
	"2006-01-02",
	"20060102",
	"2006-01",
	time.RFC3339,
	"1/2/2006",
}

// csvStrategy is one attempt at decoding the source bytes. Strategies are
// tried in order; the first that locates the identity columns and keeps at
// least one row wins.
type csvStrategy struct {
	name    string
	comma   rune
	lenient bool
}

var csvStrategies = []csvStrategy{
	{name: "comma", comma: ','},
	{name: "semicolon", comma: ';'},
	{name: "comma-lenient", comma: ',', lenient: true},
}

// LoadCSV decodes CSV bytes into a Dataset. The source string is carried into
// the load report for logging and the stats endpoint.
//
// Decoding tries comma-delimited strict parsing first, then semicolon, then a
// lenient comma mode that pads short rows and truncates long ones. A UTF-8
// BOM is stripped before parsing.
func LoadCSV(data []byte, source string) (*Dataset, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, newLoadError(LoadErrorTypeParse, "empty CSV payload", source, nil)
	}
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	checksum := sha256.Sum256(data)

	var (
		firstErr error
		empty    *Dataset
	)
	for _, strat := range csvStrategies {
		ds, err := parseCSVWith(data, source, strat)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		ds.report.Checksum = hex.EncodeToString(checksum[:])
		if ds.RowCount() > 0 {
			return ds, nil
		}
		// Header-only files are valid but let a later strategy find rows.
		if empty == nil {
			empty = ds
		}
	}
	if empty != nil {
		return empty, nil
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return nil, newLoadError(LoadErrorTypeParse, "could not parse CSV", source, nil)
}

// LoadCSVFile reads a local CSV file into a Dataset.
func LoadCSVFile(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newLoadError(LoadErrorTypeFetch, "read CSV file", path, err)
	}
	return LoadCSV(data, path)
}

func parseCSVWith(data []byte, source string, strat csvStrategy) (*Dataset, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = strat.comma
	r.TrimLeadingSpace = true
	if strat.lenient {
		r.FieldsPerRecord = -1
		r.LazyQuotes = true
	}

	records, err := r.ReadAll()
	if err != nil {
		return nil, newLoadError(LoadErrorTypeParse,
			fmt.Sprintf("parse CSV (%s)", strat.name), source, err)
	}
	if len(records) == 0 {
		return nil, newLoadError(LoadErrorTypeParse,
			fmt.Sprintf("parse CSV (%s): no records", strat.name), source, nil)
	}

	header := records[0]
	idIdx, nameIdx, dateIdx := -1, -1, -1
	metricCols := make([]string, 0, len(header))
	metricIdx := make([]int, 0, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		switch strings.ToLower(name) {
		case columnOrgID:
			idIdx = i
		case columnOrgName:
			nameIdx = i
		case columnDate:
			dateIdx = i
		default:
			if name == "" {
				continue
			}
			metricCols = append(metricCols, name)
			metricIdx = append(metricIdx, i)
		}
	}
	if idIdx < 0 || nameIdx < 0 || dateIdx < 0 {
		return nil, newLoadError(LoadErrorTypeSchema,
			fmt.Sprintf("parse CSV (%s): missing identity columns", strat.name), source, nil)
	}

	report := LoadReport{Source: source, Strategy: strat.name}
	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		if strat.lenient {
			rec = normalizeRecord(rec, len(header))
		}
		if len(rec) != len(header) {
			report.RowsDropped++
			continue
		}

		id, err := strconv.ParseInt(strings.TrimSpace(rec[idIdx]), 10, 64)
		if err != nil {
			report.RowsDropped++
			continue
		}
		month, ok := parseMonth(rec[dateIdx])
		if !ok {
			report.BadDates++
			continue
		}

		values := make(map[string]float64, len(metricCols))
		for j, col := range metricCols {
			values[col] = parseCell(rec[metricIdx[j]])
		}
		rows = append(rows, Row{
			OrgID:   id,
			OrgName: strings.TrimSpace(rec[nameIdx]),
			Month:   month,
			Values:  values,
		})
	}

	return NewDataset(rows, metricCols, report), nil
}

// normalizeRecord pads short records with blanks and truncates long ones so
// lenient parsing still lines up with the header.
func normalizeRecord(rec []string, width int) []string {
	if len(rec) == width {
		return rec
	}
	if len(rec) > width {
		return rec[:width]
	}
	out := make([]string, width)
	copy(out, rec)
	return out
}

// parseMonth coerces a source date cell to its calendar month. Unparsable
// dates report ok=false and the caller drops the row.
func parseMonth(s string) (Month, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Month{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return MonthOf(t), true
		}
	}
	return Month{}, false
}

// parseCell converts a metric cell to float64. Blank cells and the usual
// not-a-number spellings come back as NaN, never zero.
func parseCell(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	switch strings.ToLower(s) {
	case "na", "n/a", "nan", "null", "none":
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
