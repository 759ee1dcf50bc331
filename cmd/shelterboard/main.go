package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shelterboard/shelterboard"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

type serveFlags struct {
	config   string
	addr     string
	csv      string
	url      string
	drive    string
	snapshot string
	password string
	interval time.Duration
}

type fetchFlags struct {
	config string
	csv    string
	url    string
	drive  string
	out    string
	store  bool
}

type exportFlags struct {
	config   string
	csv      string
	org      string
	family   string
	variant  string
	method   string
	window   int
	format   string
	out      string
	compress bool
}

func main() {
	var verbose bool

	root := &cobra.Command{
		Use:     "shelterboard",
		Short:   "Password-gated dashboard over animal shelter metrics",
		Long:    "Shelterboard serves interactive charts of monthly animal shelter metrics\n(intake, inventory, outcome shares, length of stay, save rate) from a CSV\nsource, with optional snapshots, live refresh, and Prometheus remote write.",
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")

	root.AddCommand(newServeCmd())
	root.AddCommand(newFetchCmd())
	root.AddCommand(newExportCmd())
	root.AddCommand(newHashPasswordCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	var flags serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(flags)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.config, "config", "c", "", "Path to YAML config file")
	f.StringVar(&flags.addr, "addr", "", "Listen address (overrides config)")
	f.StringVar(&flags.csv, "csv", "", "Local CSV file source (overrides config)")
	f.StringVar(&flags.url, "url", "", "HTTP CSV source URL (overrides config)")
	f.StringVar(&flags.drive, "drive", "", "Google Drive file ID source (overrides config)")
	f.StringVar(&flags.snapshot, "snapshot", "", "SQLite snapshot store path (overrides config)")
	f.StringVar(&flags.password, "password", "", "Dashboard password (overrides config; prefer the config file)")
	f.DurationVar(&flags.interval, "interval", 0, "Background refresh interval, e.g. 30m (overrides config)")

	return cmd
}

func runServe(flags serveFlags) error {
	cfg, err := loadConfig(flags.config)
	if err != nil {
		return err
	}
	if flags.addr != "" {
		cfg.Server.Addr = flags.addr
	}
	if flags.csv != "" {
		cfg.Source.Path = flags.csv
	}
	if flags.url != "" {
		cfg.Source.URL = flags.url
	}
	if flags.drive != "" {
		cfg.Source.DriveFileID = flags.drive
	}
	if flags.snapshot != "" {
		cfg.Snapshot.Path = flags.snapshot
	}
	if flags.password != "" {
		cfg.Auth.Password = flags.password
	}
	if flags.interval > 0 {
		cfg.Refresh.Interval = flags.interval
	}

	srv, err := shelterboard.NewServer(nil, cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("shutting down")
		return srv.Close()
	}
}

func newFetchCmd() *cobra.Command {
	var flags fetchFlags
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch and parse the dataset, printing a load report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(flags)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.config, "config", "c", "", "Path to YAML config file")
	f.StringVar(&flags.csv, "csv", "", "Local CSV file source (overrides config)")
	f.StringVar(&flags.url, "url", "", "HTTP CSV source URL (overrides config)")
	f.StringVar(&flags.drive, "drive", "", "Google Drive file ID source (overrides config)")
	f.StringVar(&flags.out, "out", "", "Also write the raw CSV payload to this file")
	f.BoolVar(&flags.store, "store", false, "Save a snapshot to the configured store")

	return cmd
}

func runFetch(flags fetchFlags) error {
	cfg, err := loadConfig(flags.config)
	if err != nil {
		return err
	}
	if flags.csv != "" {
		cfg.Source.Path = flags.csv
	}
	if flags.url != "" {
		cfg.Source.URL = flags.url
	}
	if flags.drive != "" {
		cfg.Source.DriveFileID = flags.drive
	}

	src, err := shelterboard.NewSource(cfg.Source)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Source.FetchTimeout+30*time.Second)
	defer cancel()

	data, err := src.Fetch(ctx)
	if err != nil {
		return err
	}
	ds, err := shelterboard.LoadCSV(data, src.Describe())
	if err != nil {
		return err
	}

	report := ds.Report()
	fmt.Printf("source:    %s\n", report.Source)
	fmt.Printf("strategy:  %s\n", report.Strategy)
	fmt.Printf("rows:      %d (%d dropped, %d bad dates)\n", report.RowsKept, report.RowsDropped, report.BadDates)
	fmt.Printf("orgs:      %d\n", ds.OrgCount())
	fmt.Printf("columns:   %d\n", len(ds.Columns()))
	fmt.Printf("checksum:  %s\n", report.Checksum)

	if flags.out != "" {
		if err := os.WriteFile(flags.out, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", flags.out, err)
		}
		fmt.Printf("wrote payload to %s (%d bytes)\n", flags.out, len(data))
	}

	if flags.store {
		if cfg.Snapshot.Path == "" {
			return fmt.Errorf("--store requires a snapshot path in the config")
		}
		store, err := shelterboard.OpenSnapshotStore(cfg.Snapshot.Path, cfg.Snapshot.Keep)
		if err != nil {
			return err
		}
		defer store.Close()
		id, err := store.Save(data, src.Describe(), ds.Checksum())
		if err != nil {
			return err
		}
		fmt.Printf("snapshot:  #%d saved to %s\n", id, cfg.Snapshot.Path)
	}

	return nil
}

func newExportCmd() *cobra.Command {
	var flags exportFlags
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Derive one organization's series and write it to a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(flags)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.config, "config", "c", "", "Path to YAML config file")
	f.StringVar(&flags.csv, "csv", "", "Local CSV file source (overrides config)")
	f.StringVar(&flags.org, "org", "", "Organization ID or name (required)")
	f.StringVar(&flags.family, "family", "intake", "Metric family: inventory, intake, exits_abs, exits_cond, los, save_rate")
	f.StringVar(&flags.variant, "variant", "raw", "Column variant: raw, zeros_replaced, interpolated")
	f.StringVar(&flags.method, "method", "none", "Smoothing method: none, moving, exponential")
	f.IntVar(&flags.window, "window", shelterboard.DefaultSmoothingWindow, "Smoothing window in months (2-12)")
	f.StringVar(&flags.format, "format", "csv", "Output format: csv or json")
	f.StringVarP(&flags.out, "out", "o", "", "Output file or directory (required)")
	f.BoolVar(&flags.compress, "gzip", false, "Compress the output with gzip")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func runExport(flags exportFlags) error {
	cfg, err := loadConfig(flags.config)
	if err != nil {
		return err
	}
	if flags.csv != "" {
		cfg.Source.Path = flags.csv
	}

	src, err := shelterboard.NewSource(cfg.Source)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Source.FetchTimeout+30*time.Second)
	defer cancel()
	data, err := src.Fetch(ctx)
	if err != nil {
		return err
	}
	ds, err := shelterboard.LoadCSV(data, src.Describe())
	if err != nil {
		return err
	}

	org, err := resolveOrg(ds, flags.org)
	if err != nil {
		return err
	}
	variant, err := shelterboard.ParseVariant(flags.variant)
	if err != nil {
		return err
	}
	method, err := shelterboard.ParseSmoothing(flags.method)
	if err != nil {
		return err
	}
	format, err := shelterboard.ParseExportFormat(flags.format)
	if err != nil {
		return err
	}

	set, err := shelterboard.DeriveSeries(ds, shelterboard.SeriesRequest{
		OrgID:     org.ID,
		Family:    flags.family,
		Variant:   variant,
		Smoothing: method,
		Window:    flags.window,
	})
	if err != nil {
		return err
	}

	result, err := shelterboard.ExportSeries(set, shelterboard.ExportConfig{
		Format:      format,
		OutputPath:  flags.out,
		Compression: flags.compress,
	})
	if err != nil {
		return err
	}

	fmt.Printf("wrote %d months for %s to %s (%d bytes)\n",
		result.RowsExported, org.Name, result.File, result.BytesWritten)
	return nil
}

func resolveOrg(ds *shelterboard.Dataset, raw string) (shelterboard.Organization, error) {
	value := strings.TrimSpace(raw)
	if id, err := strconv.ParseInt(value, 10, 64); err == nil {
		return ds.OrgByID(id)
	}
	return ds.OrgByName(value)
}

func newHashPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Emit a PBKDF2 digest for the auth.password_hash config key",
		Long:  "Hashes a password for the config file so the plaintext never needs to be\nstored. Pass the password as an argument or pipe it on stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				scanner := bufio.NewScanner(os.Stdin)
				if scanner.Scan() {
					password = scanner.Text()
				}
				if err := scanner.Err(); err != nil {
					return err
				}
			}
			password = strings.TrimSpace(password)
			if password == "" {
				return fmt.Errorf("password is empty")
			}

			digest, err := shelterboard.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Println(digest)
			return nil
		},
	}
	return cmd
}

func loadConfig(path string) (shelterboard.Config, error) {
	if path == "" {
		return shelterboard.DefaultConfig(), nil
	}
	return shelterboard.LoadConfig(path)
}
