package settings

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/salespulse/salespulse/internal/shared"
	"github.com/salespulse/salespulse/internal/view"
)

// Handler serves the settings screen and the theme API.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	templates   *view.Engine
	csrfManager *shared.CSRFManager
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{logger: logger, service: service, templates: templates, csrfManager: csrf}
}

type fieldToggle struct {
	Key     string
	Label   string
	Enabled bool
}

type settingsPageData struct {
	Settings *Settings
	Periods  []string
	Themes   []string
	Fields   []fieldToggle
	Errors   map[string]string
}

var fieldLabels = []struct {
	Key   string
	Label string
}{
	{"revenue", "Revenue"},
	{"deals", "Deals"},
	{"commission", "Commission"},
	{"draw", "Draw Payments"},
}

// ShowSettings renders the settings form.
func (h *Handler) ShowSettings(w http.ResponseWriter, r *http.Request) {
	current, err := h.service.Get(r.Context())
	if err != nil {
		h.logger.Error("load settings", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, current, nil, http.StatusOK)
}

// SaveSettings persists the settings form and redirects back.
func (h *Handler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	toggles := make(map[string]bool, len(fieldLabels))
	for _, field := range fieldLabels {
		toggles[field.Key] = r.PostFormValue("field_"+field.Key) != ""
	}
	updated, err := h.service.Update(r.Context(), UpdateInput{
		CommissionDisplay: r.PostFormValue("commission_display"),
		DefaultPeriod:     r.PostFormValue("default_period"),
		Theme:             r.PostFormValue("theme"),
		DisplayFields:     toggles,
		AdminPassword:     r.PostFormValue("admin_password"),
	})
	if err != nil {
		if isValidationError(err) {
			current, getErr := h.service.Get(r.Context())
			if getErr != nil {
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			h.render(w, r, current, map[string]string{"general": err.Error()}, http.StatusBadRequest)
			return
		}
		h.logger.Error("save settings", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Settings saved"})
	}
	h.logger.Info("settings updated", slog.String("theme", updated.Theme), slog.String("display", updated.CommissionDisplay))
	http.Redirect(w, r, "/settings", http.StatusSeeOther)
}

// SaveTheme switches the theme from the dashboard picker.
func (h *Handler) SaveTheme(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid form"})
		return
	}
	theme := r.PostFormValue("theme")
	if theme == "" {
		var body struct {
			Theme string `json:"theme"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			theme = body.Theme
		}
	}
	updated, err := h.service.SaveTheme(r.Context(), theme)
	if err != nil {
		if errors.Is(err, ErrInvalidTheme) {
			h.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown theme"})
			return
		}
		h.logger.Error("save theme", slog.Any("error", err))
		h.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "theme": updated.Theme})
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, current *Settings, errs map[string]string, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken := ""
	if h.csrfManager != nil {
		csrfToken, _ = h.csrfManager.EnsureToken(r.Context(), sess)
	}
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	fields := make([]fieldToggle, 0, len(fieldLabels))
	for _, field := range fieldLabels {
		fields = append(fields, fieldToggle{Key: field.Key, Label: field.Label, Enabled: current.DisplayFields[field.Key]})
	}
	viewData := view.TemplateData{
		Title:       "Settings",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Theme:       current.Theme,
		Data: settingsPageData{
			Settings: current,
			Periods:  Periods,
			Themes:   Themes,
			Fields:   fields,
			Errors:   errs,
		},
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	if err := h.templates.Render(w, "pages/settings.html", viewData); err != nil {
		h.logger.Error("render settings", slog.Any("error", err))
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("encode response", slog.Any("error", err))
	}
}

func isValidationError(err error) bool {
	return errors.Is(err, ErrInvalidTheme) || errors.Is(err, ErrInvalidDisplay) || errors.Is(err, ErrInvalidPeriod)
}
