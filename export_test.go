package shelterboard

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func deriveTestSeries(t *testing.T, req SeriesRequest) *SeriesSet {
	t.Helper()
	set, err := DeriveSeries(newTestDataset(t), req)
	if err != nil {
		t.Fatalf("DeriveSeries: %v", err)
	}
	return set
}

const saveRateCSV = `month,Save rate
2024-01,90
2024-02,91
2024-03,
2024-04,93
2024-05,94
`

func TestParseExportFormat(t *testing.T) {
	tests := []struct {
		input string
		want  ExportFormat
	}{
		{"", ExportFormatCSV},
		{"csv", ExportFormatCSV},
		{"CSV", ExportFormatCSV},
		{"json", ExportFormatJSON},
		{" JSON ", ExportFormatJSON},
	}
	for _, tt := range tests {
		got, err := ParseExportFormat(tt.input)
		if err != nil {
			t.Errorf("ParseExportFormat(%q): unexpected error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseExportFormat(%q): expected %v, got %v", tt.input, tt.want, got)
		}
	}

	if _, err := ParseExportFormat("xml"); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for xml, got %v", err)
	}
}

func TestExportFormatMetadata(t *testing.T) {
	if ExportFormatCSV.Extension() != ".csv" || ExportFormatJSON.Extension() != ".json" {
		t.Error("unexpected extensions")
	}
	if ExportFormatCSV.ContentType() != "text/csv" {
		t.Errorf("unexpected CSV content type %q", ExportFormatCSV.ContentType())
	}
	if ExportFormatJSON.ContentType() != "application/json" {
		t.Errorf("unexpected JSON content type %q", ExportFormatJSON.ContentType())
	}
}

func TestWriteSeriesCSV(t *testing.T) {
	set := deriveTestSeries(t, SeriesRequest{OrgID: 42, Family: FamilySaveRate})
	var buf bytes.Buffer
	if err := WriteSeriesCSV(&buf, set); err != nil {
		t.Fatalf("WriteSeriesCSV: %v", err)
	}
	if buf.String() != saveRateCSV {
		t.Errorf("unexpected CSV output:\n%s", buf.String())
	}
}

func TestWriteSeriesCSVMultiTrace(t *testing.T) {
	set := deriveTestSeries(t, SeriesRequest{OrgID: 42, Family: FamilyExitsAbsolute})
	var buf bytes.Buffer
	if err := WriteSeriesCSV(&buf, set); err != nil {
		t.Fatalf("WriteSeriesCSV: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if lines[0] != "month,Adopt,Reclaim,Transfer,Non-live,No Exit" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if len(lines) != 6 {
		t.Errorf("expected header plus 5 rows, got %d lines", len(lines))
	}
}

func TestWriteSeriesJSON(t *testing.T) {
	set := deriveTestSeries(t, SeriesRequest{OrgID: 42, Family: FamilySaveRate})
	var buf bytes.Buffer
	if err := WriteSeriesJSON(&buf, set); err != nil {
		t.Fatalf("WriteSeriesJSON: %v", err)
	}

	var doc struct {
		Org    Organization `json:"org"`
		Family string       `json:"family"`
		Months []Month      `json:"months"`
		Series []struct {
			Label  string     `json:"label"`
			Values []*float64 `json:"values"`
		} `json:"series"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Family != FamilySaveRate {
		t.Errorf("expected save_rate, got %q", doc.Family)
	}
	if doc.Org.ID != 42 {
		t.Errorf("expected org 42, got %d", doc.Org.ID)
	}
	if len(doc.Series) != 1 || len(doc.Series[0].Values) != 5 {
		t.Fatalf("unexpected series shape %+v", doc.Series)
	}
	if doc.Series[0].Values[2] != nil {
		t.Error("expected null for missing March value")
	}
	if v := doc.Series[0].Values[0]; v == nil || *v != 90 {
		t.Errorf("expected 90 for January, got %v", v)
	}

	// Window only appears when smoothing is on.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatal(err)
	}
	if _, ok := raw["window"]; ok {
		t.Error("expected window omitted without smoothing")
	}
}

func TestExportSeriesToFile(t *testing.T) {
	set := deriveTestSeries(t, SeriesRequest{OrgID: 42, Family: FamilySaveRate})
	path := filepath.Join(t.TempDir(), "save_rate.csv")

	result, err := ExportSeries(set, ExportConfig{Format: ExportFormatCSV, OutputPath: path})
	if err != nil {
		t.Fatalf("ExportSeries: %v", err)
	}
	if result.File != path {
		t.Errorf("expected file %q, got %q", path, result.File)
	}
	if result.RowsExported != 5 {
		t.Errorf("expected 5 rows exported, got %d", result.RowsExported)
	}
	if result.BytesWritten == 0 {
		t.Error("expected bytes written")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != saveRateCSV {
		t.Errorf("unexpected file content:\n%s", data)
	}
}

func TestExportSeriesToDirectory(t *testing.T) {
	set := deriveTestSeries(t, SeriesRequest{OrgID: 42, Family: FamilySaveRate})
	dir := t.TempDir()

	result, err := ExportSeries(set, ExportConfig{Format: ExportFormatJSON, OutputPath: dir})
	if err != nil {
		t.Fatalf("ExportSeries: %v", err)
	}
	want := filepath.Join(dir, "save_rate_raw.json")
	if result.File != want {
		t.Errorf("expected generated name %q, got %q", want, result.File)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("expected file to exist: %v", err)
	}
}

func TestExportSeriesGzip(t *testing.T) {
	set := deriveTestSeries(t, SeriesRequest{OrgID: 42, Family: FamilySaveRate})
	path := filepath.Join(t.TempDir(), "save_rate.csv")

	result, err := ExportSeries(set, ExportConfig{
		Format:      ExportFormatCSV,
		OutputPath:  path,
		Compression: true,
	})
	if err != nil {
		t.Fatalf("ExportSeries: %v", err)
	}
	if !strings.HasSuffix(result.File, ".csv.gz") {
		t.Errorf("expected .csv.gz suffix, got %q", result.File)
	}

	f, err := os.Open(result.File)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip open: %v", err)
	}
	defer gz.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(gz); err != nil {
		t.Fatal(err)
	}
	if buf.String() != saveRateCSV {
		t.Errorf("unexpected decompressed content:\n%s", buf.String())
	}
}

func TestValidateExportPath(t *testing.T) {
	if _, err := validateExportPath(""); err == nil {
		t.Error("expected error for empty path")
	}
	for _, path := range []string{"/etc/passwd", "/etc", "/proc/self/environ", "/boot/vmlinuz"} {
		if _, err := validateExportPath(path); err == nil {
			t.Errorf("expected %q to be rejected", path)
		}
	}
	abs, err := validateExportPath("out.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !filepath.IsAbs(abs) {
		t.Errorf("expected absolute path, got %q", abs)
	}
}
