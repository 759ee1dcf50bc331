package shelterboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DashboardUI serves the password-gated shelter dashboard: the HTML pages,
// the JSON API behind them, and the live-update websocket.
type DashboardUI struct {
	holder    *DatasetHolder
	gate      *Gate
	store     *SnapshotStore
	hub       *Hub
	refresher *Refresher
	cfg       Config
	mux       *http.ServeMux
	startTime time.Time

	mu          sync.Mutex
	counters    dashboardCounters
	activityLog []activityEntry
}

// NewDashboardUI wires up the dashboard routes. store, hub and refresher are
// optional; endpoints that need a missing one report unavailability.
func NewDashboardUI(holder *DatasetHolder, gate *Gate, store *SnapshotStore, hub *Hub, refresher *Refresher, cfg Config) *DashboardUI {
	ui := &DashboardUI{
		holder:      holder,
		gate:        gate,
		store:       store,
		hub:         hub,
		refresher:   refresher,
		cfg:         cfg,
		mux:         http.NewServeMux(),
		startTime:   time.Now(),
		activityLog: make([]activityEntry, 0, maxActivityEntries),
	}

	ui.mux.HandleFunc("/", ui.handleIndex)
	ui.mux.HandleFunc("/login", ui.handleLogin)
	ui.mux.HandleFunc("/logout", ui.handleLogout)
	ui.mux.HandleFunc("/api/orgs", ui.requireAuth(ui.handleAPIOrgs))
	ui.mux.HandleFunc("/api/org", ui.requireAuth(ui.handleAPIOrg))
	ui.mux.HandleFunc("/api/chart", ui.requireAuth(ui.handleAPIChart))
	ui.mux.HandleFunc("/api/charts", ui.requireAuth(ui.handleAPICharts))
	ui.mux.HandleFunc("/api/export", ui.requireAuth(ui.handleAPIExport))
	ui.mux.HandleFunc("/api/views", ui.requireAuth(ui.handleAPIViews))
	ui.mux.HandleFunc("/api/refresh", ui.requireAuth(ui.handleAPIRefresh))
	ui.mux.HandleFunc("/api/stats", ui.requireAuth(ui.handleAPIStats))
	ui.mux.HandleFunc("/api/activity", ui.requireAuth(ui.handleAPIActivity))
	ui.mux.HandleFunc("/api/health", ui.handleAPIHealth)
	if hub != nil {
		ui.mux.HandleFunc("/ws", ui.requireAuth(hub.Handler()))
	}

	return ui
}

// Handler returns the HTTP handler for the dashboard.
func (ui *DashboardUI) Handler() http.Handler {
	return ui
}

// ServeHTTP implements http.Handler.
func (ui *DashboardUI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ui.countRequest()
	ui.mux.ServeHTTP(w, r)
}

// requireAuth gates a handler behind the session cookie. Browser page loads
// redirect to the login form; API and websocket requests get a 401.
func (ui *DashboardUI) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ui.gate == nil || !ui.gate.Enabled() || ui.gate.Authenticated(r) {
			next(w, r)
			return
		}
		if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/ws" {
			jsonError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		http.Redirect(w, r, "/login", http.StatusFound)
	}
}

func (ui *DashboardUI) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if ui.gate != nil && ui.gate.Enabled() && !ui.gate.Authenticated(r) {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	tmpl, err := template.New("dashboard").Parse(dashboardHTML)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := tmpl.Execute(w, ui.dashboardPage()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

type selectOption struct {
	Value string
	Label string
}

type dashboardPage struct {
	Title         string
	Orgs          []Organization
	Families      []Family
	Variants      []selectOption
	Methods       []selectOption
	DefaultMethod string
	SmoothOn      bool
	DefaultWindow int
	MinWindow     int
	MaxWindow     int
	LiveUpdates   bool
	SavedViews    bool
	GateEnabled   bool
	Source        string
	LoadedAt      string
}

func (ui *DashboardUI) dashboardPage() dashboardPage {
	page := dashboardPage{
		Title:         "Shelterboard",
		Families:      Families(),
		MinWindow:     MinSmoothingWindow,
		MaxWindow:     MaxSmoothingWindow,
		DefaultWindow: ui.cfg.Smoothing.DefaultWindow,
		DefaultMethod: ui.cfg.Smoothing.DefaultMethod.String(),
		SmoothOn:      ui.cfg.Smoothing.DefaultMethod != SmoothingNone,
		LiveUpdates:   ui.hub != nil,
		SavedViews:    ui.store != nil,
		GateEnabled:   ui.gate != nil && ui.gate.Enabled(),
	}
	if page.DefaultWindow <= 0 {
		page.DefaultWindow = DefaultSmoothingWindow
	}
	for _, v := range Variants() {
		page.Variants = append(page.Variants, selectOption{Value: v.String(), Label: v.Label()})
	}
	page.Methods = []selectOption{
		{Value: "moving", Label: "Moving average"},
		{Value: "exponential", Label: "Exponential"},
	}
	if ds := ui.holder.Current(); ds != nil {
		page.Orgs = ds.Organizations()
		page.Source = ds.Report().Source
		page.LoadedAt = ds.LoadedAt().UTC().Format("2006-01-02 15:04 UTC")
	}
	return page
}

func (ui *DashboardUI) handleLogin(w http.ResponseWriter, r *http.Request) {
	if ui.gate == nil || !ui.gate.Enabled() {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	switch r.Method {
	case http.MethodGet:
		if ui.gate.Authenticated(r) {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		ui.renderLogin(w, http.StatusOK, "")
	case http.MethodPost:
		ui.handleLoginSubmit(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (ui *DashboardUI) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		ui.renderLogin(w, http.StatusBadRequest, "Invalid form submission.")
		return
	}

	token, expiry, err := ui.gate.Login(r.PostFormValue("password"), getClientIP(r))
	switch {
	case errors.Is(err, ErrLoginThrottled):
		ui.countError()
		ui.renderLogin(w, http.StatusTooManyRequests, "Too many attempts. Try again in a minute.")
	case err != nil:
		ui.countError()
		ui.renderLogin(w, http.StatusUnauthorized, "Incorrect password.")
	default:
		ui.countLogin()
		ui.logActivity("Login", getClientIP(r))
		ui.gate.SetSessionCookie(w, token, expiry)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func (ui *DashboardUI) renderLogin(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	tmpl, err := template.New("login").Parse(loginHTML)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	data := struct {
		Title string
		Error string
	}{Title: "Shelterboard", Error: message}
	if err := tmpl.Execute(w, data); err != nil {
		slog.Error("failed to render login page", "err", err)
	}
}

func (ui *DashboardUI) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if ui.gate != nil {
		ui.gate.Logout(r)
		ui.gate.ClearSessionCookie(w)
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// dataset returns the active dataset, reporting 503 when none is loaded yet.
func (ui *DashboardUI) dataset(w http.ResponseWriter) (*Dataset, bool) {
	ds := ui.holder.Current()
	if ds == nil {
		jsonError(w, http.StatusServiceUnavailable, "no dataset loaded")
		return nil, false
	}
	return ds, true
}

func (ui *DashboardUI) handleAPIOrgs(w http.ResponseWriter, r *http.Request) {
	ds, ok := ui.dataset(w)
	if !ok {
		return
	}
	jsonSuccess(w, ds.Organizations())
}

func (ui *DashboardUI) handleAPIOrg(w http.ResponseWriter, r *http.Request) {
	ds, ok := ui.dataset(w)
	if !ok {
		return
	}

	q := r.URL.Query()
	var (
		org Organization
		err error
	)
	switch {
	case q.Get("id") != "":
		id, parseErr := strconv.ParseInt(q.Get("id"), 10, 64)
		if parseErr != nil {
			jsonDomainError(w, newRequestError("id", "must be an integer"))
			return
		}
		org, err = ds.OrgByID(id)
	case q.Get("name") != "":
		org, err = ds.OrgByName(q.Get("name"))
	default:
		jsonDomainError(w, newRequestError("id", "id or name is required"))
		return
	}
	if err != nil {
		ui.countError()
		jsonDomainError(w, err)
		return
	}
	jsonSuccess(w, org)
}

// resolveOrg accepts either a numeric ID or an organization name.
func resolveOrg(ds *Dataset, raw string) (Organization, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return Organization{}, newRequestError("org", "organization is required")
	}
	if id, err := strconv.ParseInt(value, 10, 64); err == nil {
		return ds.OrgByID(id)
	}
	return ds.OrgByName(value)
}

// seriesRequestFromQuery builds a derivation request from chart and export
// query parameters. The family key is passed explicitly so batch requests
// can reuse the remaining parameters.
func (ui *DashboardUI) seriesRequestFromQuery(ds *Dataset, q url.Values, familyKey string) (SeriesRequest, error) {
	org, err := resolveOrg(ds, q.Get("org"))
	if err != nil {
		return SeriesRequest{}, err
	}

	variant, err := ParseVariant(q.Get("variant"))
	if err != nil {
		return SeriesRequest{}, err
	}

	smoothing, window, err := ui.smoothingFromQuery(q)
	if err != nil {
		return SeriesRequest{}, err
	}

	return SeriesRequest{
		OrgID:            org.ID,
		Family:           familyKey,
		Variant:          variant,
		Smoothing:        smoothing,
		Window:           window,
		AllowRawFallback: isTruthy(q.Get("fallback")),
	}, nil
}

// smoothingFromQuery combines the smooth toggle, method select and window
// slider: an explicit method wins, the bare toggle means a moving average,
// and the window is clamped to the slider range.
func (ui *DashboardUI) smoothingFromQuery(q url.Values) (Smoothing, int, error) {
	method := ui.cfg.Smoothing.DefaultMethod
	if v := q.Get("method"); v != "" {
		parsed, err := ParseSmoothing(v)
		if err != nil {
			return SmoothingNone, 0, err
		}
		method = parsed
	}
	if v := q.Get("smooth"); v != "" {
		if !isTruthy(v) {
			method = SmoothingNone
		} else if method == SmoothingNone {
			method = SmoothingMoving
		}
	}

	window := ui.cfg.Smoothing.DefaultWindow
	if v := q.Get("window"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return SmoothingNone, 0, newRequestError("window", "must be an integer")
		}
		window = n
	}
	return method, ClampWindow(window), nil
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (ui *DashboardUI) handleAPIChart(w http.ResponseWriter, r *http.Request) {
	ds, ok := ui.dataset(w)
	if !ok {
		return
	}

	req, err := ui.seriesRequestFromQuery(ds, r.URL.Query(), r.URL.Query().Get("family"))
	if err != nil {
		ui.countError()
		jsonDomainError(w, err)
		return
	}
	set, err := DeriveSeries(ds, req)
	if err != nil {
		ui.countError()
		jsonDomainError(w, err)
		return
	}

	ui.countChart()
	jsonSuccess(w, BuildChart(set))
}

func (ui *DashboardUI) handleAPICharts(w http.ResponseWriter, r *http.Request) {
	ds, ok := ui.dataset(w)
	if !ok {
		return
	}

	q := r.URL.Query()
	keys := splitList(q.Get("families"))
	if len(keys) == 0 {
		jsonDomainError(w, newRequestError("families", "select at least one plot"))
		return
	}

	charts := make([]*Chart, 0, len(keys))
	for _, key := range keys {
		req, err := ui.seriesRequestFromQuery(ds, q, key)
		if err != nil {
			ui.countError()
			jsonDomainError(w, err)
			return
		}
		set, err := DeriveSeries(ds, req)
		if err != nil {
			ui.countError()
			jsonDomainError(w, err)
			return
		}
		charts = append(charts, BuildChart(set))
	}

	ui.countChart()
	ui.logActivity("Charts", fmt.Sprintf("org=%s families=%s", q.Get("org"), q.Get("families")))
	jsonSuccess(w, charts)
}

func (ui *DashboardUI) handleAPIExport(w http.ResponseWriter, r *http.Request) {
	ds, ok := ui.dataset(w)
	if !ok {
		return
	}

	q := r.URL.Query()
	format, err := ParseExportFormat(q.Get("format"))
	if err != nil {
		jsonDomainError(w, err)
		return
	}
	req, err := ui.seriesRequestFromQuery(ds, q, q.Get("family"))
	if err != nil {
		ui.countError()
		jsonDomainError(w, err)
		return
	}
	set, err := DeriveSeries(ds, req)
	if err != nil {
		ui.countError()
		jsonDomainError(w, err)
		return
	}

	slug := metricSlug(set.Org.Name)
	if slug == "" {
		slug = fmt.Sprintf("org%d", set.Org.ID)
	}
	filename := fmt.Sprintf("%s_%s_%s%s", slug, set.Family.Key, set.Variant.String(), format.Extension())
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	switch format {
	case ExportFormatJSON:
		err = WriteSeriesJSON(w, set)
	default:
		err = WriteSeriesCSV(w, set)
	}
	if err != nil {
		slog.Error("export write failed", "err", err)
		return
	}
	ui.countExport()
	ui.logActivity("Export", filename)
}

func (ui *DashboardUI) handleAPIViews(w http.ResponseWriter, r *http.Request) {
	if ui.store == nil {
		jsonError(w, http.StatusServiceUnavailable, "saved views require a snapshot store")
		return
	}

	switch r.Method {
	case http.MethodGet:
		views, err := ui.store.Views()
		if err != nil {
			jsonDomainError(w, err)
			return
		}
		jsonSuccess(w, views)

	case http.MethodPost:
		var view SavedView
		if err := json.NewDecoder(r.Body).Decode(&view); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := ui.validateView(&view); err != nil {
			jsonDomainError(w, err)
			return
		}
		id, err := ui.store.SaveView(view)
		if err != nil {
			jsonDomainError(w, err)
			return
		}
		view.ID = id
		ui.logActivity("View Saved", view.Name)
		jsonSuccess(w, view)

	case http.MethodDelete:
		id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
		if err != nil {
			jsonDomainError(w, newRequestError("id", "must be an integer"))
			return
		}
		if err := ui.store.DeleteView(id); err != nil {
			jsonDomainError(w, err)
			return
		}
		ui.logActivity("View Deleted", strconv.FormatInt(id, 10))
		jsonSuccess(w, map[string]int64{"deleted": id})

	default:
		w.Header().Set("Allow", "GET, POST, DELETE")
		jsonError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (ui *DashboardUI) validateView(view *SavedView) error {
	view.Name = strings.TrimSpace(view.Name)
	if view.Name == "" {
		return newRequestError("name", "name is required")
	}
	if len(view.Families) == 0 {
		return newRequestError("families", "select at least one plot")
	}
	for _, key := range view.Families {
		if _, err := FamilyByKey(key); err != nil {
			return err
		}
	}
	if _, err := ParseVariant(view.Variant); err != nil {
		return err
	}
	if _, err := ParseSmoothing(view.Smoothing); err != nil {
		return err
	}
	view.Window = ClampWindow(view.Window)
	return nil
}

func (ui *DashboardUI) handleAPIRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		jsonError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if ui.refresher == nil {
		jsonError(w, http.StatusServiceUnavailable, "no dataset source configured")
		return
	}

	ds, changed, err := ui.refresher.Refresh(r.Context())
	if err != nil {
		ui.countError()
		jsonDomainError(w, err)
		return
	}

	ui.countRefresh()
	ui.logActivity("Refresh", fmt.Sprintf("changed=%t rows=%d", changed, ds.RowCount()))
	jsonSuccess(w, map[string]interface{}{
		"changed":  changed,
		"rows":     ds.RowCount(),
		"orgs":     ds.OrgCount(),
		"checksum": ds.Checksum(),
	})
}
