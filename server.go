package shelterboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// rateLimiter implements a simple token bucket rate limiter per IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int           // requests per window
	window   time.Duration // time window
	cleanup  time.Duration // cleanup interval
	stopCh   chan struct{}
	stopOnce sync.Once
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

// newRateLimiter creates a rate limiter with the given rate per window.
func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		cleanup:  window * 2,
		stopCh:   make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *rateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanup)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for ip, v := range rl.visitors {
				if now.Sub(v.lastReset) > rl.cleanup {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	v, exists := rl.visitors[ip]
	if !exists {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: now}
		return true
	}

	if now.Sub(v.lastReset) >= rl.window {
		v.tokens = rl.rate - 1
		v.lastReset = now
		return true
	}

	if v.tokens > 0 {
		v.tokens--
		return true
	}

	return false
}

func (rl *rateLimiter) stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCh)
	})
}

// getClientIP extracts the client IP from the request.
func getClientIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// rateLimitMiddleware wraps a handler with rate limiting.
func rateLimitMiddleware(rl *rateLimiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(getClientIP(r)) {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// logMiddleware logs each request. Websocket upgrades pass through with the
// raw ResponseWriter so hijacking keeps working.
func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"ip", getClientIP(r),
		)
	})
}

// Server ties the dashboard together: dataset holder, auth gate, snapshot
// store, websocket hub, background refresher, and the HTTP listener.
type Server struct {
	cfg       Config
	ui        *DashboardUI
	holder    *DatasetHolder
	gate      *Gate
	store     *SnapshotStore
	hub       *Hub
	refresher *Refresher
	publisher *RemoteWritePublisher
	limiter   *rateLimiter
	srv       *http.Server
}

// NewServer assembles a dashboard server. ds may be nil when a source is
// configured; the initial fetch then loads it, falling back to the latest
// stored snapshot when the source is down.
func NewServer(ds *Dataset, cfg Config) (*Server, error) {
	cfg = cfg.normalized()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	holder := NewDatasetHolder(ds)

	gate, err := newGate(cfg.Auth)
	if err != nil {
		return nil, err
	}

	var store *SnapshotStore
	if cfg.Snapshot.Path != "" {
		store, err = OpenSnapshotStore(cfg.Snapshot.Path, cfg.Snapshot.Keep)
		if err != nil {
			gate.stop()
			return nil, err
		}
	}

	hub := NewHub()

	var refresher *Refresher
	if hasSource(cfg.Source) {
		source, err := NewSource(cfg.Source)
		if err != nil {
			gate.stop()
			if store != nil {
				_ = store.Close()
			}
			return nil, err
		}
		refresher = NewRefresher(source, holder, store, hub, cfg.Refresh.Interval)
	}

	var publisher *RemoteWritePublisher
	if cfg.RemoteWrite != nil && cfg.RemoteWrite.URL != "" {
		publisher, err = NewRemoteWritePublisher(*cfg.RemoteWrite)
		if err != nil {
			gate.stop()
			if store != nil {
				_ = store.Close()
			}
			return nil, err
		}
		if refresher != nil {
			refresher.OnSwap(publisher.PublishAsync)
		}
	}

	ui := NewDashboardUI(holder, gate, store, hub, refresher, cfg)

	var limiter *rateLimiter
	handler := http.Handler(ui)
	if cfg.Server.RateLimitPerSecond > 0 {
		limiter = newRateLimiter(cfg.Server.RateLimitPerSecond, time.Second)
		handler = rateLimitMiddleware(limiter, handler)
	}
	handler = logMiddleware(handler)

	return &Server{
		cfg:       cfg,
		ui:        ui,
		holder:    holder,
		gate:      gate,
		store:     store,
		hub:       hub,
		refresher: refresher,
		publisher: publisher,
		limiter:   limiter,
		srv: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      handler,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}, nil
}

func hasSource(cfg SourceConfig) bool {
	return cfg.Path != "" || cfg.URL != "" || cfg.DriveFileID != "" || cfg.S3 != nil
}

// Handler exposes the composed HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.srv.Addr
}

// Dataset returns the currently served dataset, which may be nil before the
// first successful load.
func (s *Server) Dataset() *Dataset {
	return s.holder.Current()
}

// bootstrap makes a dataset available before serving: an initial fetch when
// a source is configured, then the latest stored snapshot when the fetch
// fails. A server with neither keeps serving; health reports the gap.
func (s *Server) bootstrap(ctx context.Context) {
	if s.holder.Current() != nil {
		return
	}

	if s.refresher != nil {
		if _, _, err := s.refresher.Refresh(ctx); err != nil {
			slog.Warn("initial dataset fetch failed", "err", err)
		} else {
			return
		}
	}

	if s.store != nil {
		snap, err := s.store.Latest()
		if err != nil {
			if !errors.Is(err, ErrSnapshotNotFound) {
				slog.Warn("snapshot fallback failed", "err", err)
			}
			return
		}
		ds, err := LoadCSV(snap.Data, fmt.Sprintf("snapshot:%d", snap.ID))
		if err != nil {
			slog.Warn("snapshot fallback failed", "err", err)
			return
		}
		s.holder.swap(ds)
		slog.Info("serving dataset from snapshot",
			"id", snap.ID,
			"fetched_at", snap.FetchedAt.UTC().Format(time.RFC3339),
		)
	}
}

// ListenAndServe loads an initial dataset if needed, starts the background
// refresher, and serves until Shutdown. A closed server returns nil.
func (s *Server) ListenAndServe() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Source.FetchTimeout+30*time.Second)
	s.bootstrap(ctx)
	cancel()

	if s.refresher != nil {
		s.refresher.Start()
	}

	slog.Info("dashboard listening", "addr", s.srv.Addr)
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops background work, disconnects websocket clients, and shuts
// the HTTP server down gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.refresher != nil {
		s.refresher.Stop()
	}
	if s.hub != nil {
		s.hub.Close()
	}
	if s.limiter != nil {
		s.limiter.stop()
	}
	if s.gate != nil {
		s.gate.stop()
	}

	err := s.srv.Shutdown(ctx)

	if s.store != nil {
		if cerr := s.store.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Close shuts down with the configured shutdown timeout.
func (s *Server) Close() error {
	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Shutdown(ctx)
}
