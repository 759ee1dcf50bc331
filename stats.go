package shelterboard

import (
	"net/http"
	"runtime"
	"strconv"
	"time"
)

const maxActivityEntries = 100

type activityEntry struct {
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	Timestamp time.Time `json:"timestamp"`
}

type dashboardCounters struct {
	Requests  int64 `json:"requests"`
	Charts    int64 `json:"charts"`
	Exports   int64 `json:"exports"`
	Logins    int64 `json:"logins"`
	Refreshes int64 `json:"refreshes"`
	Errors    int64 `json:"errors"`
}

// logActivity records an action for the activity log, dropping the oldest
// entry once the log is full.
func (ui *DashboardUI) logActivity(action, details string) {
	ui.mu.Lock()
	defer ui.mu.Unlock()

	ui.activityLog = append(ui.activityLog, activityEntry{
		Action:    action,
		Details:   details,
		Timestamp: time.Now(),
	})
	if len(ui.activityLog) > maxActivityEntries {
		ui.activityLog = ui.activityLog[1:]
	}
}

func (ui *DashboardUI) countRequest() {
	ui.mu.Lock()
	ui.counters.Requests++
	ui.mu.Unlock()
}

func (ui *DashboardUI) countChart() {
	ui.mu.Lock()
	ui.counters.Charts++
	ui.mu.Unlock()
}

func (ui *DashboardUI) countExport() {
	ui.mu.Lock()
	ui.counters.Exports++
	ui.mu.Unlock()
}

func (ui *DashboardUI) countLogin() {
	ui.mu.Lock()
	ui.counters.Logins++
	ui.mu.Unlock()
}

func (ui *DashboardUI) countRefresh() {
	ui.mu.Lock()
	ui.counters.Refreshes++
	ui.mu.Unlock()
}

func (ui *DashboardUI) countError() {
	ui.mu.Lock()
	ui.counters.Errors++
	ui.mu.Unlock()
}

func (ui *DashboardUI) handleAPIStats(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	ui.mu.Lock()
	counters := ui.counters
	ui.mu.Unlock()

	stats := map[string]interface{}{
		"uptime":        time.Since(ui.startTime).Seconds(),
		"go_version":    runtime.Version(),
		"num_goroutine": runtime.NumGoroutine(),
		"counters":      counters,
		"memory": map[string]uint64{
			"alloc": m.Alloc,
			"sys":   m.Sys,
		},
	}

	if ds := ui.holder.Current(); ds != nil {
		report := ds.Report()
		stats["dataset"] = map[string]interface{}{
			"rows":      ds.RowCount(),
			"orgs":      ds.OrgCount(),
			"columns":   len(ds.Columns()),
			"loaded_at": ds.LoadedAt().UTC().Format(time.RFC3339),
			"source":    report.Source,
			"strategy":  report.Strategy,
			"checksum":  ds.Checksum(),
		}
	}
	if ui.hub != nil {
		stats["ws_clients"] = ui.hub.Count()
	}

	writeJSON(w, stats)
}

func (ui *DashboardUI) handleAPIActivity(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= maxActivityEntries {
			limit = n
		}
	}

	ui.mu.Lock()
	defer ui.mu.Unlock()

	if limit > len(ui.activityLog) {
		limit = len(ui.activityLog)
	}
	result := make([]activityEntry, 0, limit)
	for i := len(ui.activityLog) - 1; i >= len(ui.activityLog)-limit; i-- {
		result = append(result, ui.activityLog[i])
	}

	writeJSON(w, result)
}

// handleAPIHealth reports liveness without requiring a session. The status
// degrades when the dataset is missing or has not refreshed for three
// intervals.
func (ui *DashboardUI) handleAPIHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(ui.startTime).Seconds(),
	}

	ds := ui.holder.Current()
	switch {
	case ds == nil:
		health["status"] = "unavailable"
		health["error"] = "no dataset loaded"
		writeJSONStatus(w, http.StatusServiceUnavailable, health)
		return
	case ui.cfg.Refresh.Interval > 0 && time.Since(ds.LoadedAt()) > 3*ui.cfg.Refresh.Interval:
		health["status"] = "degraded"
		health["dataset_age"] = time.Since(ds.LoadedAt()).Round(time.Second).String()
	}

	writeJSON(w, health)
}
