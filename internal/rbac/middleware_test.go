package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/salespulse/salespulse/internal/shared"
	"github.com/salespulse/salespulse/internal/users"
)

type stubUsers struct {
	user *users.User
}

func (s *stubUsers) Get(ctx context.Context, id int64) (*users.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func sessionRequest(t *testing.T, target string) (*http.Request, *shared.Session) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	manager := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)
	req := httptest.NewRequest(http.MethodGet, target, nil)
	sess, err := manager.Load(context.Background(), req)
	require.NoError(t, err)
	return req.WithContext(shared.ContextWithSession(req.Context(), sess)), sess
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireLevelRedirectsAnonymous(t *testing.T) {
	m := Middleware{Users: &stubUsers{}}
	req, _ := sessionRequest(t, "/data_entry")
	res := httptest.NewRecorder()

	called := false
	m.RequireLevel(2)(okHandler(&called)).ServeHTTP(res, req)

	require.False(t, called)
	require.Equal(t, http.StatusSeeOther, res.Code)
	require.Equal(t, "/analytics", res.Header().Get("Location"))
}

func TestRequireLevelDeniesInactive(t *testing.T) {
	account := &users.User{ID: 7, Role: users.RoleAdmin, Active: false}
	m := Middleware{Users: &stubUsers{user: account}}
	req, _ := sessionRequest(t, "/users")
	req = req.WithContext(ContextWithUser(req.Context(), account))
	res := httptest.NewRecorder()

	called := false
	m.RequireLevel(1)(okHandler(&called)).ServeHTTP(res, req)

	require.False(t, called, "inactive accounts must be denied at every level")
	require.Equal(t, http.StatusSeeOther, res.Code)
}

func TestRequireLevelAdmits(t *testing.T) {
	account := &users.User{ID: 7, Role: users.RoleManager, Active: true}
	m := Middleware{Users: &stubUsers{user: account}}
	req, _ := sessionRequest(t, "/management")
	req = req.WithContext(ContextWithUser(req.Context(), account))
	res := httptest.NewRecorder()

	called := false
	m.RequireLevel(3)(okHandler(&called)).ServeHTTP(res, req)

	require.True(t, called)
}

func TestRequireSettingsAccessLegacyAdmin(t *testing.T) {
	m := Middleware{Users: &stubUsers{}}
	req, sess := sessionRequest(t, "/settings")
	sess.SetLegacyAdmin(true)
	res := httptest.NewRecorder()

	called := false
	m.RequireSettingsAccess(okHandler(&called)).ServeHTTP(res, req)

	require.True(t, called, "legacy admin session must reach settings")
}

func TestRequireAdminRejectsLegacyAdmin(t *testing.T) {
	m := Middleware{Users: &stubUsers{}}
	req, sess := sessionRequest(t, "/users")
	sess.SetLegacyAdmin(true)
	res := httptest.NewRecorder()

	called := false
	m.RequireAdmin(okHandler(&called)).ServeHTTP(res, req)

	require.False(t, called, "legacy admin must not unlock user management")
	require.Equal(t, http.StatusSeeOther, res.Code)
}

func TestLoadUserResolvesAccount(t *testing.T) {
	account := &users.User{ID: 42, Username: "jsmith", Role: users.RoleUser, Active: true}
	m := Middleware{Users: &stubUsers{user: account}}
	req, sess := sessionRequest(t, "/")
	sess.SetUser("42")

	var got *users.User
	m.LoadUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = UserFromContext(r.Context())
	})).ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, got)
	require.Equal(t, int64(42), got.ID)
}

func TestLoadUserToleratesStaleSession(t *testing.T) {
	m := Middleware{Users: &stubUsers{}}
	req, sess := sessionRequest(t, "/")
	sess.SetUser("999")

	var got *users.User
	m.LoadUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = UserFromContext(r.Context())
	})).ServeHTTP(httptest.NewRecorder(), req)

	require.Nil(t, got)
}
