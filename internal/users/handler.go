package users

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/salespulse/salespulse/internal/shared"
	"github.com/salespulse/salespulse/internal/view"
)

// LegacyAdminVerifier checks the fallback administrator credentials kept
// in application settings.
type LegacyAdminVerifier interface {
	VerifyLegacyAdmin(ctx context.Context, username, password string) error
}

// Handler wires HTTP endpoints for authentication, profiles and account
// administration.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	templates   *view.Engine
	csrfManager *shared.CSRFManager
	legacyAdmin LegacyAdminVerifier
	validator   *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, legacyAdmin LegacyAdminVerifier) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		templates:   templates,
		csrfManager: csrf,
		legacyAdmin: legacyAdmin,
		validator:   validator.New(),
	}
}

type loginForm struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

type loginPageData struct {
	Form   loginForm
	Errors map[string]string
}

// ShowLogin renders the sign-in form.
func (h *Handler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	h.renderLogin(w, r, "pages/login.html", loginPageData{}, http.StatusOK)
}

// HandleLogin authenticates an account and opens a session.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := loginForm{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Password: r.PostFormValue("password"),
	}
	if err := h.validator.Struct(form); err != nil {
		h.renderLogin(w, r, "pages/login.html", loginPageData{Form: form, Errors: map[string]string{"general": "Username and password are required"}}, http.StatusBadRequest)
		return
	}

	user, err := h.service.Authenticate(r.Context(), form.Username, form.Password)
	if err != nil {
		h.logger.Info("login rejected", slog.String("username", form.Username))
		h.flash(r, "error", "Invalid username or password")
		http.Redirect(w, r, "/analytics", http.StatusSeeOther)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	sess.SetUser(strconv.FormatInt(user.ID, 10))
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Welcome back, " + user.FirstName})

	target := "/analytics"
	if user.Role == RoleAdmin {
		target = "/management"
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// ShowAdminLogin renders the fallback administrator form.
func (h *Handler) ShowAdminLogin(w http.ResponseWriter, r *http.Request) {
	h.renderLogin(w, r, "pages/admin_login.html", loginPageData{}, http.StatusOK)
}

// HandleAdminLogin opens a session flagged with legacy administrator
// access. The flag only unlocks the settings screen.
func (h *Handler) HandleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := loginForm{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Password: r.PostFormValue("password"),
	}
	if err := h.legacyAdmin.VerifyLegacyAdmin(r.Context(), form.Username, form.Password); err != nil {
		h.logger.Info("admin login rejected", slog.String("username", form.Username))
		h.renderLogin(w, r, "pages/admin_login.html", loginPageData{Form: form, Errors: map[string]string{"general": "Invalid administrator credentials"}}, http.StatusBadRequest)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during admin login")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	sess.SetLegacyAdmin(true)
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Administrator access granted"})
	http.Redirect(w, r, "/settings", http.StatusSeeOther)
}

// HandleLogout drops the signed-in identity. The session itself survives
// so the farewell flash can render on the landing page.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		sess.SetUser("")
		sess.SetLegacyAdmin(false)
		sess.AddFlash(shared.FlashMessage{Kind: "info", Message: "You have been logged out"})
	}
	http.Redirect(w, r, "/analytics", http.StatusSeeOther)
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, page string, data loginPageData, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken := ""
	if h.csrfManager != nil {
		csrfToken, _ = h.csrfManager.EnsureToken(r.Context(), sess)
	}
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Sign In",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	if err := h.templates.Render(w, page, viewData); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
	}
}

type profileForm struct {
	FirstName string
	LastName  string
	Email     string `validate:"omitempty,email"`
}

type profilePageData struct {
	User *User
	// Employee marks viewer-role accounts, whose compensation fields are
	// self-editable.
	Employee      bool
	HireDate      string
	CommissionPct float64
	Errors        map[string]string
}

func newProfilePageData(viewer *User, errs map[string]string) profilePageData {
	data := profilePageData{
		User:          viewer,
		Employee:      viewer.Role == RoleViewer,
		CommissionPct: viewer.CommissionRate * 100,
		Errors:        errs,
	}
	if viewer.HireDate != nil {
		data.HireDate = viewer.HireDate.Format("2006-01-02")
	}
	return data
}

// ShowProfile renders the current user's profile form.
func (h *Handler) ShowProfile(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFromRequest(r)
	if viewer == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	h.renderProfile(w, r, viewer, nil, http.StatusOK)
}

// HandleProfile updates the current user's own record.
func (h *Handler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFromRequest(r)
	if viewer == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := profileForm{
		FirstName: strings.TrimSpace(r.PostFormValue("first_name")),
		LastName:  strings.TrimSpace(r.PostFormValue("last_name")),
		Email:     strings.TrimSpace(r.PostFormValue("email")),
	}
	if err := h.validator.Struct(form); err != nil {
		h.renderProfile(w, r, viewer, map[string]string{"general": "Please enter a valid email address"}, http.StatusBadRequest)
		return
	}

	// Employee fields default to the stored values so a partial form never
	// wipes them; viewer-role posts can override from the form inputs.
	input := ProfileInput{
		Username:          viewer.Username,
		Email:             form.Email,
		FirstName:         form.FirstName,
		LastName:          form.LastName,
		CurrentPassword:   r.PostFormValue("current_password"),
		NewPassword:       r.PostFormValue("new_password"),
		HireDate:          viewer.HireDate,
		BaseSalary:        viewer.BaseSalary,
		CommissionRatePct: viewer.CommissionRate * 100,
		DrawAmount:        viewer.DrawAmount,
	}
	if viewer.Role == RoleViewer {
		if raw := strings.TrimSpace(r.PostFormValue("hire_date")); raw != "" {
			input.HireDate = parseOptionalDay(raw)
		}
		if v, ok := parseFormFloat(r, "base_salary"); ok {
			input.BaseSalary = v
		}
		if v, ok := parseFormFloat(r, "commission_rate"); ok {
			input.CommissionRatePct = v
		}
		if v, ok := parseFormFloat(r, "draw_amount"); ok {
			input.DrawAmount = v
		}
	}

	updated, err := h.service.UpdateProfile(r.Context(), viewer.ID, input)
	if err != nil {
		message := "Could not update profile"
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, shared.ErrInvalidCredentials):
			message = "Current password is incorrect"
			status = http.StatusBadRequest
		case errors.Is(err, shared.ErrDuplicate):
			message = "That email address is already taken"
			status = http.StatusBadRequest
		default:
			h.logger.Error("update profile", slog.Any("error", err))
		}
		h.renderProfile(w, r, viewer, map[string]string{"general": message}, status)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Profile updated"})
	}
	h.logger.Info("profile updated", slog.Int64("user_id", updated.ID))
	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}

func (h *Handler) renderProfile(w http.ResponseWriter, r *http.Request, viewer *User, errs map[string]string, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken := ""
	if h.csrfManager != nil {
		csrfToken, _ = h.csrfManager.EnsureToken(r.Context(), sess)
	}
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "My Profile",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        newProfilePageData(viewer, errs),
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	if err := h.templates.Render(w, "pages/profile.html", viewData); err != nil {
		h.logger.Error("render profile", slog.Any("error", err))
	}
}

type userForm struct {
	Username      string
	FirstName     string
	LastName      string
	Email         string
	Role          Role
	CommissionPct float64
	BaseSalary    float64
	DrawAmount    float64
	HireDate      string
	Active        bool
}

type userFormPageData struct {
	Heading string
	Action  string
	Editing bool
	Form    userForm
	Roles   []Role
	Errors  map[string]string
}

type userListPageData struct {
	Users []User
}

var roleChoices = []Role{RoleViewer, RoleUser, RoleManager, RoleAdmin}

// ListUsers renders the account administration table.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.renderPage(w, r, "pages/users.html", "Users", userListPageData{Users: accounts}, http.StatusOK)
}

// ShowAddUser renders an empty account form.
func (h *Handler) ShowAddUser(w http.ResponseWriter, r *http.Request) {
	data := userFormPageData{
		Heading: "Add User",
		Action:  "/add_user",
		Form:    userForm{Role: RoleViewer, Active: true, CommissionPct: DefaultCommissionRate * 100},
		Roles:   roleChoices,
	}
	h.renderPage(w, r, "pages/user_form.html", data.Heading, data, http.StatusOK)
}

// HandleAddUser creates an account from the form.
func (h *Handler) HandleAddUser(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := parseUserForm(r)
	if form.Username == "" || r.PostFormValue("password") == "" {
		h.renderUserFormError(w, r, "/add_user", "Add User", false, form, "Username and password are required")
		return
	}

	created, err := h.service.Create(r.Context(), CreateInput{
		Username:          form.Username,
		Email:             form.Email,
		Password:          r.PostFormValue("password"),
		FirstName:         form.FirstName,
		LastName:          form.LastName,
		Role:              form.Role,
		Active:            form.Active,
		HireDate:          parseOptionalDay(form.HireDate),
		BaseSalary:        form.BaseSalary,
		CommissionRatePct: form.CommissionPct,
		DrawAmount:        form.DrawAmount,
	})
	if err != nil {
		if errors.Is(err, shared.ErrDuplicate) {
			h.renderUserFormError(w, r, "/add_user", "Add User", false, form, "Username or email already exists")
			return
		}
		h.logger.Error("create user", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.flash(r, "success", "User "+created.Username+" created")
	h.logger.Info("user created", slog.Int64("user_id", created.ID), slog.String("role", string(created.Role)))
	http.Redirect(w, r, "/users", http.StatusSeeOther)
}

// ShowEditUser renders the account form for an existing user.
func (h *Handler) ShowEditUser(w http.ResponseWriter, r *http.Request) {
	account, ok := h.loadTarget(w, r)
	if !ok {
		return
	}
	form := userForm{
		Username:      account.Username,
		FirstName:     account.FirstName,
		LastName:      account.LastName,
		Email:         account.Email,
		Role:          account.Role,
		CommissionPct: account.CommissionRate * 100,
		BaseSalary:    account.BaseSalary,
		DrawAmount:    account.DrawAmount,
		Active:        account.Active,
	}
	if account.HireDate != nil {
		form.HireDate = account.HireDate.Format("2006-01-02")
	}
	data := userFormPageData{
		Heading: "Edit User",
		Action:  "/edit_user/" + strconv.FormatInt(account.ID, 10),
		Editing: true,
		Form:    form,
		Roles:   roleChoices,
	}
	h.renderPage(w, r, "pages/user_form.html", data.Heading, data, http.StatusOK)
}

// HandleEditUser updates an existing account from the form.
func (h *Handler) HandleEditUser(w http.ResponseWriter, r *http.Request) {
	account, ok := h.loadTarget(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := parseUserForm(r)
	action := "/edit_user/" + strconv.FormatInt(account.ID, 10)
	if form.Username == "" {
		h.renderUserFormError(w, r, action, "Edit User", true, form, "Username is required")
		return
	}

	updated, err := h.service.Update(r.Context(), account.ID, UpdateInput{
		Username:          form.Username,
		Email:             form.Email,
		FirstName:         form.FirstName,
		LastName:          form.LastName,
		Role:              form.Role,
		Active:            form.Active,
		NewPassword:       r.PostFormValue("password"),
		HireDate:          parseOptionalDay(form.HireDate),
		BaseSalary:        form.BaseSalary,
		CommissionRatePct: form.CommissionPct,
		DrawAmount:        form.DrawAmount,
	})
	if err != nil {
		if errors.Is(err, shared.ErrDuplicate) {
			h.renderUserFormError(w, r, action, "Edit User", true, form, "Username or email already exists")
			return
		}
		h.logger.Error("update user", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.flash(r, "success", "User "+updated.Username+" updated")
	http.Redirect(w, r, "/users", http.StatusSeeOther)
}

// HandleDeleteUser removes an account. Deleting the signed-in account is
// rejected.
func (h *Handler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	account, ok := h.loadTarget(w, r)
	if !ok {
		return
	}
	actor := viewerFromRequest(r)
	actorID := int64(0)
	if actor != nil {
		actorID = actor.ID
	}
	if err := h.service.Delete(r.Context(), account.ID, actorID); err != nil {
		if errors.Is(err, shared.ErrSelfDelete) {
			h.flash(r, "error", "You cannot delete your own account")
			http.Redirect(w, r, "/users", http.StatusSeeOther)
			return
		}
		h.logger.Error("delete user", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.flash(r, "success", "User "+account.Username+" deleted")
	h.logger.Info("user deleted", slog.Int64("user_id", account.ID), slog.Int64("actor_id", actorID))
	http.Redirect(w, r, "/users", http.StatusSeeOther)
}

func (h *Handler) loadTarget(w http.ResponseWriter, r *http.Request) (*User, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return nil, false
	}
	account, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.flash(r, "error", "User not found")
			http.Redirect(w, r, "/users", http.StatusSeeOther)
			return nil, false
		}
		h.logger.Error("load user", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return nil, false
	}
	return account, true
}

func (h *Handler) renderUserFormError(w http.ResponseWriter, r *http.Request, action, heading string, editing bool, form userForm, message string) {
	data := userFormPageData{
		Heading: heading,
		Action:  action,
		Editing: editing,
		Form:    form,
		Roles:   roleChoices,
		Errors:  map[string]string{"general": message},
	}
	h.renderPage(w, r, "pages/user_form.html", heading, data, http.StatusBadRequest)
}

func (h *Handler) renderPage(w http.ResponseWriter, r *http.Request, page, title string, data any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken := ""
	if h.csrfManager != nil {
		csrfToken, _ = h.csrfManager.EnsureToken(r.Context(), sess)
	}
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	if err := h.templates.Render(w, page, viewData); err != nil {
		h.logger.Error("render page", slog.String("page", page), slog.Any("error", err))
	}
}

func (h *Handler) flash(r *http.Request, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
}

func viewerFromRequest(r *http.Request) *User {
	return FromContext(r.Context())
}

func parseUserForm(r *http.Request) userForm {
	pct, _ := parseFormFloat(r, "commission_rate")
	salary, _ := parseFormFloat(r, "base_salary")
	draw, _ := parseFormFloat(r, "draw_amount")
	return userForm{
		Username:      strings.TrimSpace(r.PostFormValue("username")),
		FirstName:     strings.TrimSpace(r.PostFormValue("first_name")),
		LastName:      strings.TrimSpace(r.PostFormValue("last_name")),
		Email:         strings.TrimSpace(r.PostFormValue("email")),
		Role:          ParseRole(r.PostFormValue("role")),
		CommissionPct: pct,
		BaseSalary:    salary,
		DrawAmount:    draw,
		HireDate:      strings.TrimSpace(r.PostFormValue("hire_date")),
		Active:        r.PostFormValue("active") != "",
	}
}

// parseFormFloat reads a numeric form value; ok is false when the field
// is absent or unparseable.
func parseFormFloat(r *http.Request, field string) (float64, bool) {
	raw := strings.TrimSpace(r.PostFormValue(field))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseOptionalDay(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil
	}
	return &t
}
