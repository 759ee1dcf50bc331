package shelterboard

import (
	"compress/gzip"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// validateExportPath validates that the output path is safe to write to.
// It prevents writes to sensitive system directories and ensures the path is absolute.
func validateExportPath(outputPath string) (string, error) {
	if outputPath == "" {
		return "", errors.New("output path required")
	}

	cleanPath := filepath.Clean(outputPath)
	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return "", fmt.Errorf("invalid output path: %w", err)
	}

	sensitivePatterns := []string{
		"/etc", "/bin", "/sbin", "/usr/bin", "/usr/sbin",
		"/boot", "/dev", "/proc", "/sys",
	}
	for _, pattern := range sensitivePatterns {
		if strings.HasPrefix(absPath, pattern+"/") || absPath == pattern {
			return "", fmt.Errorf("cannot write to sensitive directory: %s", pattern)
		}
	}

	return absPath, nil
}

// ExportFormat defines the output format for series export.
type ExportFormat int

const (
	// ExportFormatCSV exports series as CSV, one column per trace.
	ExportFormatCSV ExportFormat = iota
	// ExportFormatJSON exports series as a single JSON document.
	ExportFormatJSON
)

// String returns the request token for the format.
func (f ExportFormat) String() string {
	if f == ExportFormatJSON {
		return "json"
	}
	return "csv"
}

// Extension returns the conventional file extension for the format.
func (f ExportFormat) Extension() string {
	if f == ExportFormatJSON {
		return ".json"
	}
	return ".csv"
}

// ContentType returns the MIME type served for the format.
func (f ExportFormat) ContentType() string {
	if f == ExportFormatJSON {
		return "application/json"
	}
	return "text/csv"
}

// ParseExportFormat parses a format token from a request or CLI flag.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return ExportFormatCSV, nil
	case "json":
		return ExportFormatJSON, nil
	default:
		return ExportFormatCSV, newRequestError("format", fmt.Sprintf("unknown export format %q", s))
	}
}

// WriteSeriesCSV writes a derived series set as CSV: a month column followed
// by one column per trace. Missing values become empty cells.
func WriteSeriesCSV(w io.Writer, set *SeriesSet) error {
	csvWriter := csv.NewWriter(w)

	header := make([]string, 0, len(set.Series)+1)
	header = append(header, "month")
	for _, s := range set.Series {
		header = append(header, s.Label)
	}
	if err := csvWriter.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(header))
	for i, month := range set.Months {
		record[0] = month.String()
		for j, s := range set.Series {
			if i < len(s.Values) && !math.IsNaN(s.Values[i]) {
				record[j+1] = strconv.FormatFloat(s.Values[i], 'g', -1, 64)
			} else {
				record[j+1] = ""
			}
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// WriteSeriesJSON writes a derived series set as a JSON document with NaN
// values encoded as null.
func WriteSeriesJSON(w io.Writer, set *SeriesSet) error {
	type jsonSeries struct {
		Label  string     `json:"label"`
		Column string     `json:"column"`
		Values []*float64 `json:"values"`
	}
	doc := struct {
		Org       Organization `json:"org"`
		Family    string       `json:"family"`
		Variant   string       `json:"variant"`
		Smoothing string       `json:"smoothing"`
		Window    int          `json:"window,omitempty"`
		Months    []Month      `json:"months"`
		Series    []jsonSeries `json:"series"`
	}{
		Org:       set.Org,
		Family:    set.Family.Key,
		Variant:   set.Variant.String(),
		Smoothing: set.Smoothing.String(),
		Months:    set.Months,
	}
	if set.Smoothing != SmoothingNone {
		doc.Window = set.Window
	}
	for _, s := range set.Series {
		doc.Series = append(doc.Series, jsonSeries{
			Label:  s.Label,
			Column: s.Column,
			Values: nullableValues(s.Values),
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// ExportConfig configures file export operations.
type ExportConfig struct {
	// Format is the output format (CSV or JSON).
	Format ExportFormat

	// OutputPath is the destination file. A directory gets a generated
	// file name appended.
	OutputPath string

	// Compression enables gzip compression of the output file.
	Compression bool
}

// ExportResult contains export operation results.
type ExportResult struct {
	RowsExported int64
	BytesWritten int64
	Duration     time.Duration
	File         string
}

// ExportSeries writes a derived series set to a file in the configured
// format, creating parent directories as needed.
func ExportSeries(set *SeriesSet, config ExportConfig) (*ExportResult, error) {
	start := time.Now()

	outputPath, err := validateExportPath(config.OutputPath)
	if err != nil {
		return nil, err
	}
	ext := config.Format.Extension()
	if !strings.HasSuffix(outputPath, ext) && !strings.HasSuffix(outputPath, ext+".gz") {
		name := fmt.Sprintf("%s_%s%s", set.Family.Key, set.Variant.String(), ext)
		outputPath = filepath.Join(outputPath, name)
	}
	if config.Compression && !strings.HasSuffix(outputPath, ".gz") {
		outputPath += ".gz"
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	var writer io.Writer = file
	var gzWriter *gzip.Writer
	if config.Compression {
		gzWriter = gzip.NewWriter(file)
		writer = gzWriter
	}

	switch config.Format {
	case ExportFormatJSON:
		err = WriteSeriesJSON(writer, set)
	default:
		err = WriteSeriesCSV(writer, set)
	}
	if err != nil {
		return nil, err
	}
	if gzWriter != nil {
		if err := gzWriter.Close(); err != nil {
			return nil, err
		}
	}

	result := &ExportResult{
		RowsExported: int64(len(set.Months)),
		Duration:     time.Since(start),
		File:         outputPath,
	}
	if info, err := file.Stat(); err == nil {
		result.BytesWritten = info.Size()
	}
	return result, nil
}
