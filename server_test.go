package shelterboard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRateLimiterAllow(t *testing.T) {
	rl := newRateLimiter(2, 50*time.Millisecond)
	defer rl.stop()

	if !rl.allow("a") || !rl.allow("a") {
		t.Fatal("expected first two requests to pass")
	}
	if rl.allow("a") {
		t.Error("expected third request to be limited")
	}
	if !rl.allow("b") {
		t.Error("expected a different IP to pass")
	}

	time.Sleep(60 * time.Millisecond)
	if !rl.allow("a") {
		t.Error("expected tokens to replenish after the window")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := newRateLimiter(1, time.Second)
	defer rl.stop()

	calls := 0
	handler := rateLimitMiddleware(rl, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:4312"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Error("expected Retry-After header")
	}
	if calls != 1 {
		t.Errorf("expected handler called once, got %d", calls)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "forwarded chain",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"},
			want:       "203.0.113.9",
		},
		{
			name:       "real ip",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Real-IP": "198.51.100.7"},
			want:       "198.51.100.7",
		},
		{
			name:       "remote addr",
			remoteAddr: "192.0.2.10:4312",
			want:       "192.0.2.10",
		},
		{
			name:       "remote addr without port",
			remoteAddr: "192.0.2.11",
			want:       "192.0.2.11",
		},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remoteAddr
		for k, v := range tt.headers {
			req.Header.Set(k, v)
		}
		if got := getClientIP(req); got != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.name, tt.want, got)
		}
	}
}

func TestLogMiddlewarePassesThrough(t *testing.T) {
	handler := logMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orgs", nil))
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
}

func TestNewServerWiring(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "metrics.csv")
	if err := os.WriteFile(csvPath, []byte(refreshCSVv1), 0o644); err != nil {
		t.Fatal(err)
	}

	var cfg Config
	cfg.Source.Path = csvPath
	cfg.Snapshot.Path = filepath.Join(dir, "snapshots.db")
	cfg.Auth.Password = "s3cret"

	srv, err := NewServer(nil, cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })

	if srv.Addr() != ":8600" {
		t.Errorf("expected default addr, got %q", srv.Addr())
	}
	if srv.Dataset() != nil {
		t.Error("expected no dataset before bootstrap")
	}

	srv.bootstrap(context.Background())
	ds := srv.Dataset()
	if ds == nil {
		t.Fatal("expected bootstrap to load the file source")
	}
	if ds.RowCount() != 1 {
		t.Errorf("expected 1 row, got %d", ds.RowCount())
	}

	// Health stays open; the API is behind the gate.
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 from health, got %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orgs", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without login, got %d", rec.Code)
	}
}

func TestNewServerRejectsBadConfig(t *testing.T) {
	var cfg Config
	cfg.Source.S3 = &S3SourceConfig{Bucket: "metrics"}
	if _, err := NewServer(nil, cfg); err == nil {
		t.Error("expected error for S3 source without key")
	}

	cfg = Config{}
	cfg.Auth.PasswordHash = "garbage"
	if _, err := NewServer(nil, cfg); err == nil {
		t.Error("expected error for malformed password hash")
	}
}

func TestServerRateLimit(t *testing.T) {
	var cfg Config
	cfg.Server.RateLimitPerSecond = 1

	srv, err := NewServer(newTestDataset(t), cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.RemoteAddr = "192.0.2.50:1000"

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "rate limit exceeded") {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestServerBootstrapSnapshotFallback(t *testing.T) {
	store := newTestStore(t, 3)
	if _, err := store.Save([]byte(refreshCSVv1), "http://example.com/data.csv", "abc"); err != nil {
		t.Fatal(err)
	}

	holder := NewDatasetHolder(nil)
	down := &funcSource{
		fetch: func(context.Context) ([]byte, error) {
			return nil, errors.New("dial tcp: connection refused")
		},
		desc: "http://example.com/data.csv",
	}
	srv := &Server{
		cfg:       Config{}.normalized(),
		holder:    holder,
		store:     store,
		refresher: NewRefresher(down, holder, store, nil, 0),
	}

	srv.bootstrap(context.Background())

	ds := holder.Current()
	if ds == nil {
		t.Fatal("expected snapshot fallback dataset")
	}
	if ds.RowCount() != 1 {
		t.Errorf("expected 1 row, got %d", ds.RowCount())
	}
	if !strings.HasPrefix(ds.Report().Source, "snapshot:") {
		t.Errorf("expected snapshot source, got %q", ds.Report().Source)
	}
}

func TestServerBootstrapKeepsExistingDataset(t *testing.T) {
	ds := newTestDataset(t)
	srv := &Server{cfg: Config{}.normalized(), holder: NewDatasetHolder(ds)}
	srv.bootstrap(context.Background())
	if srv.holder.Current() != ds {
		t.Error("expected bootstrap to leave the loaded dataset alone")
	}
}
