package db

import (
	"log/slog"
	"net/http"

	"github.com/salespulse/salespulse/internal/platform/httpx"
)

// InitHandler exposes the administrative bootstrap re-run endpoint.
type InitHandler struct {
	logger    *slog.Logger
	bootstrap *Bootstrapper
}

// NewInitHandler constructs an InitHandler.
func NewInitHandler(logger *slog.Logger, bootstrap *Bootstrapper) *InitHandler {
	return &InitHandler{logger: logger, bootstrap: bootstrap}
}

// InitDB forces the schema and seed to run again.
func (h *InitHandler) InitDB(w http.ResponseWriter, r *http.Request) {
	if err := h.bootstrap.Force(r.Context()); err != nil {
		h.logger.Error("forced bootstrap failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "bootstrap failed", err.Error())
		return
	}
	h.logger.Info("forced bootstrap complete")
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "database initialized"})
}
