package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/salespulse/salespulse/internal/platform/httpx"
	"github.com/salespulse/salespulse/internal/rbac"
	"github.com/salespulse/salespulse/internal/users"
)

// Application metadata reported by the version and health endpoints.
const (
	Application = "SalesPulse"
	Version     = "1.2.0"
	Author      = "SalesPulse Team"
	Website     = "https://salespulse.example.com"
	DockerHub   = "https://hub.docker.com/r/salespulse/salespulse"
)

const probeTimeout = 2 * time.Second

// SettingsProbe reports whether the settings singleton is readable.
type SettingsProbe interface {
	Theme(ctx context.Context) string
}

// Handler serves liveness and version endpoints.
type Handler struct {
	logger   *slog.Logger
	pool     *pgxpool.Pool
	settings SettingsProbe
}

// NewHandler constructs the health handler.
func NewHandler(logger *slog.Logger, pool *pgxpool.Pool, settings SettingsProbe) *Handler {
	return &Handler{logger: logger, pool: pool, settings: settings}
}

// Health reports liveness plus database connectivity. Administrators get
// the active theme and connection pool detail on top.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	status := "healthy"
	database := "connected"
	if h.pool == nil {
		status = "degraded"
		database = "not configured"
	} else if err := h.pool.Ping(ctx); err != nil {
		h.logger.Warn("health db ping", slog.Any("error", err))
		status = "degraded"
		database = "unreachable"
	}

	settingsState := "ok"
	if h.settings == nil || h.settings.Theme(ctx) == "" {
		settingsState = "unavailable"
	}

	payload := map[string]any{
		"status":   status,
		"version":  Version,
		"author":   Author,
		"website":  Website,
		"database": database,
		"settings": settingsState,
	}
	if viewer := rbac.UserFromContext(r.Context()); viewer.HasPermission(users.AdminLevel) {
		if h.settings != nil {
			payload["theme"] = h.settings.Theme(ctx)
		}
		if h.pool != nil {
			stat := h.pool.Stat()
			payload["pool_total_conns"] = stat.TotalConns()
			payload["pool_idle_conns"] = stat.IdleConns()
			payload["pool_acquired_conns"] = stat.AcquiredConns()
		}
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	httpx.JSON(w, code, payload)
}

// APIVersion serves the static version metadata.
func (h *Handler) APIVersion(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{
		"application": Application,
		"version":     Version,
		"author":      Author,
		"website":     Website,
		"docker_hub":  DockerHub,
	})
}
