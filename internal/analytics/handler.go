package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/salespulse/salespulse/internal/rbac"
	"github.com/salespulse/salespulse/internal/shared"
	"github.com/salespulse/salespulse/internal/users"
	"github.com/salespulse/salespulse/internal/view"
)

const requestTimeout = 2 * time.Second

// SettingsSource exposes the dashboard defaults kept in application settings.
type SettingsSource interface {
	DefaultPeriod(ctx context.Context) string
	Theme(ctx context.Context) string
}

// EmployeeSource lists the active sales accounts for the team view.
type EmployeeSource interface {
	ListEmployees(ctx context.Context) ([]users.User, error)
}

// Handler serves the dashboard page and its JSON feeds.
type Handler struct {
	logger    *slog.Logger
	live      DataSource
	demo      DataSource
	settings  SettingsSource
	employees EmployeeSource
	templates *view.Engine
	now       func() time.Time
}

// NewHandler constructs the analytics HTTP handler.
func NewHandler(logger *slog.Logger, live DataSource, demo DataSource, settings SettingsSource, employees EmployeeSource, templates *view.Engine) *Handler {
	return &Handler{
		logger:    logger,
		live:      live,
		demo:      demo,
		settings:  settings,
		employees: employees,
		templates: templates,
		now:       time.Now,
	}
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

type dashboardData struct {
	Totals        []UserTotals
	Trends        []MonthBucket
	Period        string
	StartDate     string
	EndDate       string
	TotalRevenue  float64
	TotalDeals    int
	DemoMode      bool
	ViewerName    string
	CanEnterSales bool
	CanManage     bool
}

// ShowDashboard renders the dashboard. Visitors without a session see the
// sample figures instead of live data.
func (h *Handler) ShowDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	viewer := rbac.UserFromContext(r.Context())
	source := h.demo
	if viewer != nil {
		source = h.live
	}

	rng, period := h.resolveRange(ctx, r)

	var (
		totals  []UserTotals
		buckets []MonthBucket
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		totals, err = source.Aggregate(gctx, rng.Start, rng.End)
		return err
	})
	g.Go(func() error {
		var err error
		buckets, err = source.Trends(gctx, DefaultTrendWindowDays)
		return err
	})
	if err := g.Wait(); err != nil {
		h.logger.Error("load dashboard", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	data := dashboardData{
		Totals:    totals,
		Trends:    buckets,
		Period:    period,
		StartDate: rng.Start.Format("2006-01-02"),
		EndDate:   rng.End.Format("2006-01-02"),
		DemoMode:  viewer == nil,
	}
	for _, row := range totals {
		data.TotalRevenue += row.Revenue
		data.TotalDeals += row.Deals
	}
	if viewer != nil {
		data.ViewerName = viewer.FullName()
		data.CanEnterSales = viewer.HasPermission(2)
		data.CanManage = viewer.HasPermission(3)
	}

	sess := shared.SessionFromContext(r.Context())
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Sales Analytics",
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Theme:       h.theme(ctx),
		Data:        data,
	}
	if err := h.templates.Render(w, "pages/analytics.html", viewData); err != nil {
		h.logger.Error("render analytics", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

type managementData struct {
	Totals         []UserTotals
	Period         string
	TotalRevenue   float64
	TotalDeals     int
	ActiveCount    int
	CanManageUsers bool
}

// ShowManagement renders the team overview for managers and above.
func (h *Handler) ShowManagement(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	rng, period := h.resolveRange(ctx, r)

	var (
		totals []UserTotals
		active []users.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		totals, err = h.live.Aggregate(gctx, rng.Start, rng.End)
		return err
	})
	g.Go(func() error {
		if h.employees == nil {
			return nil
		}
		var err error
		active, err = h.employees.ListEmployees(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		h.logger.Error("load management", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	viewer := rbac.UserFromContext(r.Context())
	data := managementData{
		Totals:         totals,
		Period:         period,
		ActiveCount:    len(active),
		CanManageUsers: viewer.HasPermission(users.AdminLevel),
	}
	for _, row := range totals {
		data.TotalRevenue += row.Revenue
		data.TotalDeals += row.Deals
	}

	sess := shared.SessionFromContext(r.Context())
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Management",
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Theme:       h.theme(ctx),
		Data:        data,
	}
	if err := h.templates.Render(w, "pages/management.html", viewData); err != nil {
		h.logger.Error("render management", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// salesSeries is the chart feed shape: one label per user with the numeric
// series aligned by index.
type salesSeries struct {
	Labels     []string  `json:"labels"`
	Revenue    []float64 `json:"revenue"`
	Deals      []int     `json:"deals"`
	Commission []float64 `json:"commission"`
}

type trendSeries struct {
	Labels  []string  `json:"labels"`
	Revenue []float64 `json:"revenue"`
	Deals   []int     `json:"deals"`
}

// SalesData returns per-user totals for the requested period as JSON.
func (h *Handler) SalesData(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	rng, _ := h.resolveRange(ctx, r)
	totals, err := h.live.Aggregate(ctx, rng.Start, rng.End)
	if err != nil {
		h.logger.Error("aggregate sales", slog.Any("error", err))
		h.respondJSONError(w, http.StatusInternalServerError)
		return
	}
	series := salesSeries{
		Labels:     make([]string, 0, len(totals)),
		Revenue:    make([]float64, 0, len(totals)),
		Deals:      make([]int, 0, len(totals)),
		Commission: make([]float64, 0, len(totals)),
	}
	for _, row := range totals {
		series.Labels = append(series.Labels, row.Name)
		series.Revenue = append(series.Revenue, row.Revenue)
		series.Deals = append(series.Deals, row.Deals)
		series.Commission = append(series.Commission, row.Commission)
	}
	h.respondJSON(w, series)
}

// TrendsData returns the monthly revenue/deal buckets as JSON.
func (h *Handler) TrendsData(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	window := DefaultTrendWindowDays
	if raw := strings.TrimSpace(r.URL.Query().Get("days")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			window = parsed
		}
	}
	buckets, err := h.live.Trends(ctx, window)
	if err != nil {
		h.logger.Error("aggregate trends", slog.Any("error", err))
		h.respondJSONError(w, http.StatusInternalServerError)
		return
	}
	series := trendSeries{
		Labels:  make([]string, 0, len(buckets)),
		Revenue: make([]float64, 0, len(buckets)),
		Deals:   make([]int, 0, len(buckets)),
	}
	for _, bucket := range buckets {
		series.Labels = append(series.Labels, bucket.Month)
		series.Revenue = append(series.Revenue, bucket.Revenue)
		series.Deals = append(series.Deals, bucket.Deals)
	}
	h.respondJSON(w, series)
}

// resolveRange picks the reporting window from query parameters, falling
// back to the configured default period.
func (h *Handler) resolveRange(ctx context.Context, r *http.Request) (shared.DateRange, string) {
	q := r.URL.Query()
	period := strings.TrimSpace(q.Get("period"))
	if period == "" && h.settings != nil {
		period = h.settings.DefaultPeriod(ctx)
	}
	if period == "" {
		period = shared.PeriodYTD
	}
	var customStart, customEnd time.Time
	if period == shared.PeriodCustom {
		customStart = parseDay(q.Get("start_date"))
		customEnd = parseDay(q.Get("end_date"))
	}
	return shared.ResolvePeriod(period, customStart, customEnd, h.now()), period
}

func (h *Handler) theme(ctx context.Context) string {
	if h.settings == nil {
		return ""
	}
	return h.settings.Theme(ctx)
}

func (h *Handler) respondJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("encode response", slog.Any("error", err))
	}
}

func (h *Handler) respondJSONError(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": http.StatusText(status)})
}

func parseDay(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
