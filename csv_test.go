package shelterboard

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testCSVHeader = "organization_id,organization_name,yyyymmdd,CIntake_monthly,PSave_monthly\n"

func TestLoadCSVComma(t *testing.T) {
	data := []byte(testCSVHeader +
		"42,Happy Tails,2024-01-15,10,0.9\n" +
		"42,Happy Tails,2024-02-15,20,0.91\n" +
		"7,Austin Pets Alive,2024-01-15,5,0.95\n")
	ds, err := LoadCSV(data, "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ds.RowCount() != 3 {
		t.Errorf("expected 3 rows, got %d", ds.RowCount())
	}
	if ds.OrgCount() != 2 {
		t.Errorf("expected 2 organizations, got %d", ds.OrgCount())
	}
	if ds.Report().Strategy != "comma" {
		t.Errorf("expected comma strategy, got %q", ds.Report().Strategy)
	}
	org, err := ds.OrgByID(42)
	if err != nil {
		t.Fatalf("OrgByID(42): %v", err)
	}
	if org.Name != "Happy Tails" {
		t.Errorf("expected Happy Tails, got %q", org.Name)
	}
	rows, err := ds.RowsForOrg(42)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := rows[0].Value("CIntake_monthly"); v != 10 {
		t.Errorf("expected intake 10, got %v", v)
	}
}

func TestLoadCSVSemicolon(t *testing.T) {
	data := []byte("organization_id;organization_name;yyyymmdd;CIntake_monthly\n" +
		"42;Happy Tails;2024-01-15;10\n")
	ds, err := LoadCSV(data, "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ds.Report().Strategy != "semicolon" {
		t.Errorf("expected semicolon strategy, got %q", ds.Report().Strategy)
	}
	if ds.RowCount() != 1 {
		t.Errorf("expected 1 row, got %d", ds.RowCount())
	}
}

func TestLoadCSVLenientPadsShortRows(t *testing.T) {
	data := []byte(testCSVHeader +
		"42,Happy Tails,2024-01-15,10,0.9\n" +
		"42,Happy Tails,2024-02-15,20\n")
	ds, err := LoadCSV(data, "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ds.Report().Strategy != "comma-lenient" {
		t.Errorf("expected comma-lenient strategy, got %q", ds.Report().Strategy)
	}
	rows, err := ds.RowsForOrg(42)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if v, _ := rows[1].Value("PSave_monthly"); !math.IsNaN(v) {
		t.Errorf("expected padded cell to be NaN, got %v", v)
	}
}

func TestLoadCSVStripsBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte(testCSVHeader+
		"42,Happy Tails,2024-01-15,10,0.9\n")...)
	ds, err := LoadCSV(data, "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ds.RowCount() != 1 {
		t.Errorf("expected 1 row, got %d", ds.RowCount())
	}
}

func TestLoadCSVHeaderCaseInsensitive(t *testing.T) {
	data := []byte("Organization_ID,ORGANIZATION_NAME,YYYYMMDD,CIntake_monthly\n" +
		"42,Happy Tails,2024-01-15,10\n")
	ds, err := LoadCSV(data, "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ds.RowCount() != 1 {
		t.Errorf("expected 1 row, got %d", ds.RowCount())
	}
	if !ds.HasColumn("CIntake_monthly") {
		t.Error("expected metric column to keep its original case")
	}
}

func TestLoadCSVDateLayouts(t *testing.T) {
	tests := []string{
		"2024-01-15",
		"20240115",
		"2024-01",
		"2024-01-15T10:30:00Z",
		"1/15/2024",
	}
	for _, date := range tests {
		data := []byte("organization_id,organization_name,yyyymmdd,CIntake_monthly\n" +
			"42,Happy Tails," + date + ",10\n")
		ds, err := LoadCSV(data, "test")
		if err != nil {
			t.Errorf("date %q: unexpected error: %v", date, err)
			continue
		}
		rows, err := ds.RowsForOrg(42)
		if err != nil {
			t.Errorf("date %q: %v", date, err)
			continue
		}
		want := month(2024, time.January)
		if rows[0].Month != want {
			t.Errorf("date %q: expected %v, got %v", date, want, rows[0].Month)
		}
	}
}

func TestLoadCSVDropsBadRows(t *testing.T) {
	data := []byte("organization_id,organization_name,yyyymmdd,CIntake_monthly\n" +
		"42,Happy Tails,2024-01-15,10\n" +
		"abc,Broken Org,2024-01-15,11\n" +
		"43,Bad Date,someday,12\n")
	ds, err := LoadCSV(data, "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	report := ds.Report()
	if report.RowsKept != 1 {
		t.Errorf("expected 1 row kept, got %d", report.RowsKept)
	}
	if report.RowsDropped != 1 {
		t.Errorf("expected 1 row dropped, got %d", report.RowsDropped)
	}
	if report.BadDates != 1 {
		t.Errorf("expected 1 bad date, got %d", report.BadDates)
	}
}

func TestLoadCSVCellParsing(t *testing.T) {
	data := []byte("organization_id,organization_name,yyyymmdd,A,B,C,D,E\n" +
		"42,Happy Tails,2024-01-15,12.5,,NA,null,junk\n")
	ds, err := LoadCSV(data, "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows, err := ds.RowsForOrg(42)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := rows[0].Value("A"); v != 12.5 {
		t.Errorf("expected 12.5, got %v", v)
	}
	for _, col := range []string{"B", "C", "D", "E"} {
		if v, _ := rows[0].Value(col); !math.IsNaN(v) {
			t.Errorf("column %s: expected NaN, got %v", col, v)
		}
	}
}

func TestLoadCSVDuplicateKeepsLast(t *testing.T) {
	data := []byte("organization_id,organization_name,yyyymmdd,CIntake_monthly\n" +
		"42,Happy Tails,2024-01-15,10\n" +
		"42,Happy Tails,2024-01-20,99\n")
	ds, err := LoadCSV(data, "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ds.RowCount() != 1 {
		t.Fatalf("expected duplicate months to collapse to 1 row, got %d", ds.RowCount())
	}
	rows, err := ds.RowsForOrg(42)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := rows[0].Value("CIntake_monthly"); v != 99 {
		t.Errorf("expected last duplicate to win with 99, got %v", v)
	}
}

func TestLoadCSVEmptyPayload(t *testing.T) {
	_, err := LoadCSV([]byte("  \n "), "test")
	if err == nil {
		t.Fatal("expected error for empty payload")
	}
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LoadError, got %T", err)
	}
	if loadErr.Type != LoadErrorTypeParse {
		t.Errorf("expected parse error type, got %v", loadErr.Type)
	}
}

func TestLoadCSVMissingIdentityColumns(t *testing.T) {
	data := []byte("organization_id,organization_name,CIntake_monthly\n" +
		"42,Happy Tails,10\n")
	_, err := LoadCSV(data, "test")
	if err == nil {
		t.Fatal("expected error for missing identity columns")
	}
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LoadError, got %T", err)
	}
	if loadErr.Type != LoadErrorTypeSchema {
		t.Errorf("expected schema error type, got %v", loadErr.Type)
	}
}

func TestLoadCSVHeaderOnly(t *testing.T) {
	ds, err := LoadCSV([]byte(testCSVHeader), "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ds.RowCount() != 0 {
		t.Errorf("expected 0 rows, got %d", ds.RowCount())
	}
}

func TestLoadCSVChecksum(t *testing.T) {
	ds, err := LoadCSV([]byte(testCSVHeader+"42,Happy Tails,2024-01-15,10,0.9\n"), "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ds.Checksum()) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(ds.Checksum()))
	}
}

func TestLoadCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shelter.csv")
	data := []byte(testCSVHeader + "42,Happy Tails,2024-01-15,10,0.9\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	ds, err := LoadCSVFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ds.RowCount() != 1 {
		t.Errorf("expected 1 row, got %d", ds.RowCount())
	}
	if ds.Report().Source != path {
		t.Errorf("expected source %q, got %q", path, ds.Report().Source)
	}
}

func TestLoadCSVFileMissing(t *testing.T) {
	_, err := LoadCSVFile(filepath.Join(t.TempDir(), "absent.csv"))
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("expected ErrSourceUnavailable, got %v", err)
	}
}
