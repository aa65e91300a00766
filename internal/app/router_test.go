package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/salespulse/salespulse/internal/health"
	"github.com/salespulse/salespulse/internal/observability"
	"github.com/salespulse/salespulse/internal/rbac"
	"github.com/salespulse/salespulse/internal/shared"
	_ "github.com/salespulse/salespulse/internal/testing/guard"
	"github.com/salespulse/salespulse/internal/users"
	"github.com/salespulse/salespulse/internal/view"
)

type stubUserSource struct{}

func (stubUserSource) Get(ctx context.Context, id int64) (*users.User, error) {
	return nil, shared.ErrNotFound
}

type stubThemeProbe struct{}

func (stubThemeProbe) Theme(ctx context.Context) string { return "default" }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	templates, err := view.NewEngine()
	require.NoError(t, err)

	cfg := &Config{AppEnv: "test", AppRequestTimeout: 5 * time.Second}
	return NewRouter(RouterParams{
		Logger:         logger,
		Config:         cfg,
		Templates:      templates,
		SessionManager: shared.NewSessionManager(client, "test_session", "secret", time.Hour, false),
		CSRFManager:    shared.NewCSRFManager("secret"),
		HealthHandler:  health.NewHandler(logger, nil, stubThemeProbe{}),
		RBACMiddleware: rbac.Middleware{Users: stubUserSource{}, Logger: logger},
		Metrics:        observability.NewMetrics(),
	})
}

func TestRootRedirectsToDashboard(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/analytics", rec.Header().Get("Location"))
}

func TestGuardedRouteRedirectsAnonymousVisitor(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/data_entry", nil))

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/analytics", rec.Header().Get("Location"))
}

func TestPostWithoutCSRFTokenIsRejected(t *testing.T) {
	router := newTestRouter(t)

	form := url.Values{"username": {"amy"}, "password": {"secret"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHealthReportsDegradedWithoutDatabase(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "degraded", body["status"])
}

func TestStaticAssetsCarryCacheHeaders(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/css/app.css", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
}

func TestMetricsEndpointServesRegistry(t *testing.T) {
	router := newTestRouter(t)

	// Counters only appear in the exposition once a request was recorded.
	warmup := httptest.NewRecorder()
	router.ServeHTTP(warmup, httptest.NewRequest(http.MethodGet, "/", nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "salespulse_http_requests_total")
}
