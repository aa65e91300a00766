package app

import (
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/salespulse/salespulse/internal/analytics"
	"github.com/salespulse/salespulse/internal/db"
	"github.com/salespulse/salespulse/internal/health"
	"github.com/salespulse/salespulse/internal/observability"
	"github.com/salespulse/salespulse/internal/rbac"
	"github.com/salespulse/salespulse/internal/sales"
	"github.com/salespulse/salespulse/internal/settings"
	"github.com/salespulse/salespulse/internal/shared"
	"github.com/salespulse/salespulse/internal/users"
	"github.com/salespulse/salespulse/internal/view"
	"github.com/salespulse/salespulse/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Templates        *view.Engine
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	UsersHandler     *users.Handler
	SalesHandler     *sales.Handler
	AnalyticsHandler *analytics.Handler
	SettingsHandler  *settings.Handler
	HealthHandler    *health.Handler
	InitHandler      *db.InitHandler
	RBACMiddleware   rbac.Middleware
	Metrics          *observability.Metrics
	Pool             *pgxpool.Pool
}

// NewRouter constructs the chi.Router with SalesPulse defaults.
func NewRouter(params RouterParams) http.Handler {
	// Some minimal containers ship without /etc/mime.types, which
	// breaks http.FileServer content types for stylesheets.
	_ = mime.AddExtensionType(".css", "text/css; charset=utf-8")
	_ = mime.AddExtensionType(".js", "text/javascript; charset=utf-8")

	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)
	r.Use(params.RBACMiddleware.LoadUser)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/analytics", http.StatusSeeOther)
	})

	// Credential posts get a tighter limit than the global one.
	loginLimit := httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))

	r.Get("/login", params.UsersHandler.ShowLogin)
	r.With(loginLimit).Post("/login", params.UsersHandler.HandleLogin)
	r.Get("/admin_login", params.UsersHandler.ShowAdminLogin)
	r.With(loginLimit).Post("/admin_login", params.UsersHandler.HandleAdminLogin)
	r.Get("/logout", params.UsersHandler.HandleLogout)
	r.Post("/logout", params.UsersHandler.HandleLogout)

	// The dashboard is public; anonymous visitors see sample data.
	r.Get("/analytics", params.AnalyticsHandler.ShowDashboard)

	r.Group(func(r chi.Router) {
		r.Use(params.RBACMiddleware.RequireLevel(users.ManagerLevel))
		r.Get("/management", params.AnalyticsHandler.ShowManagement)
	})

	r.Group(func(r chi.Router) {
		r.Use(params.RBACMiddleware.RequireLevel(users.UserLevel))
		r.Get("/data_entry", params.SalesHandler.ShowEntryForm)
		r.Post("/data_entry", params.SalesHandler.HandleEntry)
		r.Get("/bulk_upload", params.SalesHandler.ShowBulkUpload)
		r.Post("/bulk_upload", params.SalesHandler.HandleBulkUpload)
	})

	r.Group(func(r chi.Router) {
		r.Use(params.RBACMiddleware.RequireLevel(users.ViewerLevel))
		r.Get("/profile", params.UsersHandler.ShowProfile)
		r.Post("/profile", params.UsersHandler.HandleProfile)
		r.Get("/api/sales_data", params.AnalyticsHandler.SalesData)
		r.Get("/api/trends_data", params.AnalyticsHandler.TrendsData)
	})

	r.Group(func(r chi.Router) {
		r.Use(params.RBACMiddleware.RequireSettingsAccess)
		r.Get("/settings", params.SettingsHandler.ShowSettings)
		r.Post("/settings", params.SettingsHandler.SaveSettings)
	})

	r.Group(func(r chi.Router) {
		r.Use(params.RBACMiddleware.RequireAdmin)
		r.Get("/users", params.UsersHandler.ListUsers)
		r.Get("/add_user", params.UsersHandler.ShowAddUser)
		r.Post("/add_user", params.UsersHandler.HandleAddUser)
		r.Get("/edit_user/{id}", params.UsersHandler.ShowEditUser)
		r.Post("/edit_user/{id}", params.UsersHandler.HandleEditUser)
		r.Post("/delete_user/{id}", params.UsersHandler.HandleDeleteUser)
		r.Post("/api/save_theme", params.SettingsHandler.SaveTheme)
		if params.InitHandler != nil {
			r.Get("/init_db", params.InitHandler.InitDB)
		}
	})

	r.Get("/health", params.HealthHandler.Health)
	r.Get("/api/version", params.HealthHandler.APIVersion)

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler wraps a file server with Cache-Control headers.
// Static assets are cached for 1 hour in browser.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
