// Package shelterboard serves a password-gated analytics dashboard over
// animal-shelter outcome statistics.
//
// Shelterboard loads a wide CSV of per-organization monthly metrics, derives
// chart-ready time series with configurable smoothing, and renders them in the
// browser as interactive line and stacked-area charts.
//
// # Basic Usage
//
// Load a dataset and start the dashboard:
//
//	ds, err := shelterboard.LoadCSVFile("shelters.csv")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv, err := shelterboard.NewServer(ds, shelterboard.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(srv.ListenAndServe())
//
// Derive a series programmatically:
//
//	series, err := shelterboard.DeriveSeries(ds, shelterboard.SeriesRequest{
//	    OrgID:     42,
//	    Family:    shelterboard.FamilyIntake,
//	    Variant:   shelterboard.VariantInterpolated,
//	    Smoothing: shelterboard.SmoothingMoving,
//	    Window:    3,
//	})
//
// # Features
//
// Data pipeline:
//   - CSV ingestion with delimiter and date-format fallbacks
//   - Local file, HTTP (including Google Drive export links), and S3 sources
//   - Snapshot persistence in SQLite with snappy-compressed payloads
//   - Background refresh with change notification over WebSocket
//
// Analytics:
//   - Metric families for intake, inventory, outcome rates, length of stay,
//     and save rate
//   - Raw, interpolated, and zeros-replaced column variants
//   - Centered moving-average and exponential smoothing
//   - Stacked exit-share decomposition with conditional and absolute modes
//
// Integrations:
//   - Browser dashboard with session-cookie password gate
//   - CSV and JSON export endpoints
//   - Prometheus remote-write publishing of derived series
//
// # Configuration
//
// Use [Config] to customize behavior:
//
//	cfg := shelterboard.Config{
//	    Server: shelterboard.ServerConfig{
//	        Addr: ":8600",
//	    },
//	    Auth: shelterboard.AuthConfig{
//	        PasswordHash: hash,
//	        SessionTTL:   12 * time.Hour,
//	    },
//	}
//
// Or use [DefaultConfig] for sensible defaults.
package shelterboard
