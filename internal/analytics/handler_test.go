package analytics

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/salespulse/salespulse/internal/rbac"
	"github.com/salespulse/salespulse/internal/users"
	"github.com/salespulse/salespulse/internal/view"
)

type stubSource struct {
	totals  []UserTotals
	buckets []MonthBucket
	calls   int
}

func (s *stubSource) Aggregate(ctx context.Context, start, end time.Time) ([]UserTotals, error) {
	s.calls++
	return s.totals, nil
}

func (s *stubSource) Trends(ctx context.Context, windowDays int) ([]MonthBucket, error) {
	return s.buckets, nil
}

type stubSettings struct {
	period string
	theme  string
}

func (s stubSettings) DefaultPeriod(ctx context.Context) string { return s.period }
func (s stubSettings) Theme(ctx context.Context) string         { return s.theme }

type stubEmployees struct {
	list []users.User
}

func (s stubEmployees) ListEmployees(ctx context.Context) ([]users.User, error) {
	return s.list, nil
}

func newTestHandler(t *testing.T, live, demo DataSource) *Handler {
	t.Helper()
	templates, err := view.NewEngine()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, live, demo, stubSettings{period: "YTD", theme: "dark"}, stubEmployees{}, templates)
	h.WithNow(func() time.Time {
		return time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)
	})
	return h
}

func TestDashboardUsesDemoSourceWhenAnonymous(t *testing.T) {
	live := &stubSource{}
	demo := &stubSource{totals: []UserTotals{{Name: "Demo User 1", Revenue: 125000, Deals: 45, Commission: 6250}}}
	h := newTestHandler(t, live, demo)

	req := httptest.NewRequest("GET", "/analytics", nil)
	rec := httptest.NewRecorder()
	h.ShowDashboard(rec, req)

	require.Equal(t, 200, rec.Code)
	require.Zero(t, live.calls)
	require.Equal(t, 1, demo.calls)
	require.Contains(t, rec.Body.String(), "Demo User 1")
	require.Contains(t, rec.Body.String(), "sample data")
}

func TestDashboardUsesLiveSourceWhenAuthenticated(t *testing.T) {
	live := &stubSource{totals: []UserTotals{{Name: "Amy Pond", Revenue: 1000, Deals: 3, Commission: 50}}}
	demo := &stubSource{}
	h := newTestHandler(t, live, demo)

	viewer := &users.User{ID: 1, FirstName: "Amy", LastName: "Pond", Role: users.RoleManager, Active: true}
	req := httptest.NewRequest("GET", "/analytics", nil)
	req = req.WithContext(rbac.ContextWithUser(req.Context(), viewer))
	rec := httptest.NewRecorder()
	h.ShowDashboard(rec, req)

	require.Equal(t, 200, rec.Code)
	require.Equal(t, 1, live.calls)
	require.Zero(t, demo.calls)
	require.Contains(t, rec.Body.String(), "Amy Pond")
	require.NotContains(t, rec.Body.String(), "sample data")
}

func TestSalesDataReturnsChartSeries(t *testing.T) {
	live := &stubSource{totals: []UserTotals{
		{Name: "Amy Pond", Revenue: 1000, Deals: 3, Commission: 50},
		{Name: "Bob Ray", Revenue: 250, Deals: 1, Commission: 12.5},
	}}
	h := newTestHandler(t, live, &stubSource{})

	req := httptest.NewRequest("GET", "/api/sales_data?period=month", nil)
	rec := httptest.NewRecorder()
	h.SalesData(rec, req)

	require.Equal(t, 200, rec.Code)
	require.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json"))
	var series salesSeries
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &series))
	require.Equal(t, []string{"Amy Pond", "Bob Ray"}, series.Labels)
	require.Equal(t, []float64{1000, 250}, series.Revenue)
	require.Equal(t, []int{3, 1}, series.Deals)
	require.Equal(t, []float64{50, 12.5}, series.Commission)
}

func TestSalesDataEmptySeries(t *testing.T) {
	h := newTestHandler(t, &stubSource{}, &stubSource{})

	req := httptest.NewRequest("GET", "/api/sales_data", nil)
	rec := httptest.NewRecorder()
	h.SalesData(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `"labels":[]`)
	require.Contains(t, body, `"revenue":[]`)
	require.Contains(t, body, `"deals":[]`)
	require.Contains(t, body, `"commission":[]`)
}

func TestTrendsDataWindowParam(t *testing.T) {
	live := &stubSource{buckets: []MonthBucket{{Month: "2024-02", Revenue: 900, Deals: 2}}}
	h := newTestHandler(t, live, &stubSource{})

	req := httptest.NewRequest("GET", "/api/trends_data?days=90", nil)
	rec := httptest.NewRecorder()
	h.TrendsData(rec, req)

	require.Equal(t, 200, rec.Code)
	var series trendSeries
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &series))
	require.Equal(t, []string{"2024-02"}, series.Labels)
	require.Equal(t, []float64{900}, series.Revenue)
	require.Equal(t, []int{2}, series.Deals)
}

func TestManagementAggregatesTeam(t *testing.T) {
	live := &stubSource{totals: []UserTotals{
		{Name: "Amy Pond", Revenue: 300, Deals: 3, Commission: 15},
		{Name: "Bob Ray", Revenue: 50, Deals: 1, Commission: 5},
	}}
	templates, err := view.NewEngine()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	employees := stubEmployees{list: []users.User{{ID: 1, Active: true}, {ID: 2, Active: true}}}
	h := NewHandler(logger, live, &stubSource{}, stubSettings{period: "YTD"}, employees, templates)

	viewer := &users.User{ID: 9, FirstName: "Cara", Role: users.RoleAdmin, Active: true}
	req := httptest.NewRequest("GET", "/management", nil)
	req = req.WithContext(rbac.ContextWithUser(req.Context(), viewer))
	rec := httptest.NewRecorder()
	h.ShowManagement(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "$350.00")
	require.Contains(t, body, "Manage Users")
}

func TestDemoSourceFixedRows(t *testing.T) {
	src := NewDemoSource()
	rows, err := src.Aggregate(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, UserTotals{Name: "Demo User 1", Revenue: 125000, Deals: 45, Commission: 6250}, rows[0])

	buckets, err := src.Trends(context.Background(), DefaultTrendWindowDays)
	require.NoError(t, err)
	require.Empty(t, buckets)
}
