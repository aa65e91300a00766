package health

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/salespulse/salespulse/internal/rbac"
	"github.com/salespulse/salespulse/internal/users"
)

type stubProbe struct {
	theme string
}

func (s stubProbe) Theme(ctx context.Context) string { return s.theme }

func newHandler(probe SettingsProbe) *Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(logger, nil, probe)
}

func TestHealthWithoutDatabaseIsDegraded(t *testing.T) {
	h := newHandler(stubProbe{theme: "default"})

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	h.Health(rec, req)

	require.Equal(t, 503, rec.Code)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, "degraded", payload["status"])
	require.Equal(t, "not configured", payload["database"])
	require.Equal(t, "ok", payload["settings"])
	require.Equal(t, Version, payload["version"])
}

func TestHealthHidesPoolDetailFromNonAdmins(t *testing.T) {
	h := newHandler(stubProbe{theme: "default"})

	viewer := &users.User{ID: 1, Role: users.RoleManager, Active: true}
	req := httptest.NewRequest("GET", "/health", nil)
	req = req.WithContext(rbac.ContextWithUser(req.Context(), viewer))
	rec := httptest.NewRecorder()
	h.Health(rec, req)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.NotContains(t, payload, "pool_total_conns")
	require.NotContains(t, payload, "theme")
}

func TestHealthShowsThemeToAdmins(t *testing.T) {
	h := newHandler(stubProbe{theme: "dark"})

	admin := &users.User{ID: 1, Role: users.RoleAdmin, Active: true}
	req := httptest.NewRequest("GET", "/health", nil)
	req = req.WithContext(rbac.ContextWithUser(req.Context(), admin))
	rec := httptest.NewRecorder()
	h.Health(rec, req)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, "dark", payload["theme"])
}

func TestAPIVersionMetadata(t *testing.T) {
	h := newHandler(stubProbe{})

	req := httptest.NewRequest("GET", "/api/version", nil)
	rec := httptest.NewRecorder()
	h.APIVersion(rec, req)

	require.Equal(t, 200, rec.Code)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, Application, payload["application"])
	require.Equal(t, Version, payload["version"])
	require.Equal(t, Author, payload["author"])
	require.Equal(t, Website, payload["website"])
	require.Equal(t, DockerHub, payload["docker_hub"])
}
