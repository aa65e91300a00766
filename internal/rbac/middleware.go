package rbac

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/salespulse/salespulse/internal/shared"
	"github.com/salespulse/salespulse/internal/users"
)

// UserSource resolves session user ids to accounts.
type UserSource interface {
	Get(ctx context.Context, id int64) (*users.User, error)
}

// Middleware wires permission-level guards for HTTP handlers. Requests
// that fail a guard are flashed a warning and redirected to the analytics
// page rather than receiving a bare 403, matching the application's UX.
type Middleware struct {
	Users  UserSource
	Logger *slog.Logger
}

// ContextWithUser stores the resolved account in context.
func ContextWithUser(ctx context.Context, u *users.User) context.Context {
	return users.ContextWithUser(ctx, u)
}

// UserFromContext extracts the resolved account, nil when unauthenticated.
func UserFromContext(ctx context.Context) *users.User {
	return users.FromContext(ctx)
}

// LoadUser resolves the session's user id into an account and stores it in
// the request context. It never rejects; guards decide later.
func (m Middleware) LoadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil {
			next.ServeHTTP(w, r)
			return
		}
		raw := strings.TrimSpace(sess.User())
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Error("rbac parse user id", slog.String("value", raw))
			}
			next.ServeHTTP(w, r)
			return
		}
		user, err := m.Users.Get(r.Context(), id)
		if err != nil {
			// Stale session pointing at a deleted account.
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
	})
}

// RequireLevel ensures the current user is active and ranks at or above
// the required permission level.
func (m Middleware) RequireLevel(level int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if user.HasPermission(level) {
				next.ServeHTTP(w, r)
				return
			}
			m.deny(w, r, "You need to login with sufficient permissions to access this page.")
		})
	}
}

// RequireAdmin ensures the current user holds the admin tier.
func (m Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user.HasPermission(users.AdminLevel) {
			next.ServeHTTP(w, r)
			return
		}
		m.deny(w, r, "Administrator access required.")
	})
}

// RequireSettingsAccess admits an admin account or a session established
// through the legacy Settings credential pair. The legacy strategy is
// honored nowhere else.
func (m Middleware) RequireSettingsAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user.HasPermission(users.AdminLevel) {
			next.ServeHTTP(w, r)
			return
		}
		if sess := shared.SessionFromContext(r.Context()); sess != nil && sess.LegacyAdmin() {
			next.ServeHTTP(w, r)
			return
		}
		m.deny(w, r, "Administrator access required.")
	})
}

func (m Middleware) deny(w http.ResponseWriter, r *http.Request, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "error", Message: message})
	}
	http.Redirect(w, r, "/analytics", http.StatusSeeOther)
}
