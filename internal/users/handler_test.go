package users

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/salespulse/salespulse/internal/shared"
	"github.com/salespulse/salespulse/internal/view"
)

type stubLegacyAdmin struct {
	username string
	password string
}

func (s stubLegacyAdmin) VerifyLegacyAdmin(ctx context.Context, username, password string) error {
	if username == s.username && password == s.password {
		return nil
	}
	return shared.ErrInvalidCredentials
}

type handlerFixture struct {
	handler *Handler
	repo    *memoryRepo
	manager *shared.SessionManager
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	manager := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)

	repo := newMemoryRepo()
	templates, err := view.NewEngine()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, NewService(repo), templates, shared.NewCSRFManager("secret"), stubLegacyAdmin{username: "admin", password: "admin"})
	return &handlerFixture{handler: h, repo: repo, manager: manager}
}

func (f *handlerFixture) request(t *testing.T, method, target string, form url.Values) (*http.Request, *shared.Session) {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	sess, err := f.manager.Load(context.Background(), req)
	require.NoError(t, err)
	return req.WithContext(shared.ContextWithSession(req.Context(), sess)), sess
}

func TestHandleLoginSuccessRedirectsByRole(t *testing.T) {
	cases := []struct {
		role   Role
		target string
	}{
		{RoleViewer, "/analytics"},
		{RoleManager, "/analytics"},
		{RoleAdmin, "/management"},
	}
	for _, tc := range cases {
		f := newHandlerFixture(t)
		account := f.repo.add(&User{Username: "amy", PasswordHash: hashOf(t, "s3cretpw"), FirstName: "Amy", Role: tc.role, Active: true})

		req, sess := f.request(t, http.MethodPost, "/login", url.Values{
			"username": {"amy"},
			"password": {"s3cretpw"},
		})
		rec := httptest.NewRecorder()
		f.handler.HandleLogin(rec, req)

		require.Equal(t, http.StatusSeeOther, rec.Code, "role %s", tc.role)
		require.Equal(t, tc.target, rec.Header().Get("Location"))
		require.Equal(t, strconv.FormatInt(account.ID, 10), sess.User())
	}
}

func TestHandleLoginRejectsBadPassword(t *testing.T) {
	f := newHandlerFixture(t)
	f.repo.add(&User{Username: "amy", PasswordHash: hashOf(t, "s3cretpw"), Role: RoleViewer, Active: true})

	req, sess := f.request(t, http.MethodPost, "/login", url.Values{
		"username": {"amy"},
		"password": {"wrong"},
	})
	rec := httptest.NewRecorder()
	f.handler.HandleLogin(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/analytics", rec.Header().Get("Location"))
	require.Empty(t, sess.User())

	flash := sess.PopFlash()
	require.NotNil(t, flash)
	require.Equal(t, "Invalid username or password", flash.Message)
}

func TestHandleAdminLoginSetsLegacyFlagOnly(t *testing.T) {
	f := newHandlerFixture(t)

	req, sess := f.request(t, http.MethodPost, "/admin_login", url.Values{
		"username": {"admin"},
		"password": {"admin"},
	})
	rec := httptest.NewRecorder()
	f.handler.HandleAdminLogin(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/settings", rec.Header().Get("Location"))
	require.True(t, sess.LegacyAdmin())
	require.Empty(t, sess.User(), "legacy admin must not impersonate an account")
}

func TestHandleAdminLoginRejectsBadCredentials(t *testing.T) {
	f := newHandlerFixture(t)

	req, sess := f.request(t, http.MethodPost, "/admin_login", url.Values{
		"username": {"admin"},
		"password": {"nope"},
	})
	rec := httptest.NewRecorder()
	f.handler.HandleAdminLogin(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, sess.LegacyAdmin())
}

func TestHandleLogoutClearsIdentityAndFlashes(t *testing.T) {
	f := newHandlerFixture(t)

	req, sess := f.request(t, http.MethodPost, "/logout", url.Values{})
	sess.SetUser("4")
	sess.SetLegacyAdmin(true)
	rec := httptest.NewRecorder()
	f.handler.HandleLogout(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/analytics", rec.Header().Get("Location"))
	require.Empty(t, sess.User())
	require.False(t, sess.LegacyAdmin())

	flash := sess.PopFlash()
	require.NotNil(t, flash)
	require.Equal(t, "You have been logged out", flash.Message)
}

func TestHandleAddUserCreatesAccount(t *testing.T) {
	f := newHandlerFixture(t)

	req, _ := f.request(t, http.MethodPost, "/add_user", url.Values{
		"username":        {"bob"},
		"password":        {"hunter22"},
		"first_name":      {"Bob"},
		"last_name":       {"Ray"},
		"email":           {"bob@example.com"},
		"role":            {"user"},
		"commission_rate": {"7.5"},
		"base_salary":     {"52000"},
		"draw_amount":     {"1500"},
		"active":          {"on"},
	})
	rec := httptest.NewRecorder()
	f.handler.HandleAddUser(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/users", rec.Header().Get("Location"))

	created, err := f.repo.FindByUsername(context.Background(), "bob")
	require.NoError(t, err)
	require.Equal(t, RoleUser, created.Role)
	require.InDelta(t, 0.075, created.CommissionRate, 1e-9)
	require.InDelta(t, 52000, created.BaseSalary, 1e-9)
	require.InDelta(t, 1500, created.DrawAmount, 1e-9)
}

func TestHandleAddUserRejectsDuplicate(t *testing.T) {
	f := newHandlerFixture(t)
	f.repo.add(&User{Username: "bob", Role: RoleUser, Active: true})

	req, _ := f.request(t, http.MethodPost, "/add_user", url.Values{
		"username": {"bob"},
		"password": {"hunter22"},
	})
	rec := httptest.NewRecorder()
	f.handler.HandleAddUser(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "already exists")
	require.Len(t, f.repo.users, 1)
}

func TestHandleDeleteUserRejectsSelf(t *testing.T) {
	f := newHandlerFixture(t)
	admin := f.repo.add(&User{Username: "amy", Role: RoleAdmin, Active: true})

	req, _ := f.request(t, http.MethodPost, "/delete_user/"+strconv.FormatInt(admin.ID, 10), url.Values{})
	req = req.WithContext(ContextWithUser(req.Context(), admin))
	req = withURLParam(req, "id", strconv.FormatInt(admin.ID, 10))
	rec := httptest.NewRecorder()
	f.handler.HandleDeleteUser(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/users", rec.Header().Get("Location"))
	require.Empty(t, f.repo.deleted)
}

func TestHandleDeleteUserRemovesOther(t *testing.T) {
	f := newHandlerFixture(t)
	admin := f.repo.add(&User{Username: "amy", Role: RoleAdmin, Active: true})
	victim := f.repo.add(&User{Username: "bob", Role: RoleUser, Active: true})

	req, _ := f.request(t, http.MethodPost, "/delete_user/"+strconv.FormatInt(victim.ID, 10), url.Values{})
	req = req.WithContext(ContextWithUser(req.Context(), admin))
	req = withURLParam(req, "id", strconv.FormatInt(victim.ID, 10))
	rec := httptest.NewRecorder()
	f.handler.HandleDeleteUser(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, []int64{victim.ID}, f.repo.deleted)
}

func TestHandleProfileUpdatesOwnRecord(t *testing.T) {
	f := newHandlerFixture(t)
	account := f.repo.add(&User{Username: "amy", PasswordHash: hashOf(t, "s3cretpw"), FirstName: "Amy", Role: RoleUser, Active: true})

	req, _ := f.request(t, http.MethodPost, "/profile", url.Values{
		"first_name": {"Amelia"},
		"last_name":  {"Pond"},
		"email":      {"amelia@example.com"},
	})
	req = req.WithContext(ContextWithUser(req.Context(), account))
	rec := httptest.NewRecorder()
	f.handler.HandleProfile(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	updated, err := f.repo.FindByID(context.Background(), account.ID)
	require.NoError(t, err)
	require.Equal(t, "Amelia", updated.FirstName)
	require.Equal(t, "amelia@example.com", updated.Email)
}

func TestHandleProfileKeepsEmploymentFieldsOnNameOnlyEdit(t *testing.T) {
	f := newHandlerFixture(t)
	hired := time.Date(2023, time.March, 15, 0, 0, 0, 0, time.UTC)
	account := f.repo.add(&User{
		Username:       "amy",
		PasswordHash:   hashOf(t, "s3cretpw"),
		FirstName:      "Amy",
		Role:           RoleViewer,
		Active:         true,
		HireDate:       &hired,
		BaseSalary:     50000,
		CommissionRate: 0.10,
		DrawAmount:     1000,
	})

	req, _ := f.request(t, http.MethodPost, "/profile", url.Values{
		"first_name": {"Amelia"},
		"last_name":  {"Pond"},
		"email":      {"amelia@example.com"},
	})
	req = req.WithContext(ContextWithUser(req.Context(), account))
	rec := httptest.NewRecorder()
	f.handler.HandleProfile(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	updated, err := f.repo.FindByID(context.Background(), account.ID)
	require.NoError(t, err)
	require.Equal(t, "Amelia", updated.FirstName)
	require.NotNil(t, updated.HireDate)
	require.True(t, updated.HireDate.Equal(hired))
	require.InDelta(t, 50000, updated.BaseSalary, 1e-9)
	require.InDelta(t, 0.10, updated.CommissionRate, 1e-9)
	require.InDelta(t, 1000, updated.DrawAmount, 1e-9)
}

func TestHandleProfileAnonymousRedirects(t *testing.T) {
	f := newHandlerFixture(t)

	req, _ := f.request(t, http.MethodGet, "/profile", nil)
	rec := httptest.NewRecorder()
	f.handler.ShowProfile(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/login", rec.Header().Get("Location"))
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
