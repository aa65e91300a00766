package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/salespulse/salespulse/internal/observability"
	"github.com/salespulse/salespulse/internal/shared"
	"github.com/salespulse/salespulse/internal/users"
	"github.com/salespulse/salespulse/internal/view"
)

const recentSalesLimit = 10

// EmployeeSource lists the accounts selectable on the entry form.
type EmployeeSource interface {
	ListEmployees(ctx context.Context) ([]users.User, error)
}

// Handler serves the data entry form and the bulk CSV upload.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	employees      EmployeeSource
	templates      *view.Engine
	csrfManager    *shared.CSRFManager
	metrics        *observability.Metrics
	maxUploadBytes int64
	now            func() time.Time
}

// NewHandler constructs the sales HTTP handler. Metrics may be nil.
func NewHandler(logger *slog.Logger, service *Service, employees EmployeeSource, templates *view.Engine, csrf *shared.CSRFManager, metrics *observability.Metrics, maxUploadBytes int64) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		employees:      employees,
		templates:      templates,
		csrfManager:    csrf,
		metrics:        metrics,
		maxUploadBytes: maxUploadBytes,
		now:            time.Now,
	}
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

type employeeOption struct {
	ID       int64
	FullName string
}

type entryPageData struct {
	Employees []employeeOption
	Recent    []SaleWithUser
	Today     string
	Errors    map[string]string
}

// ShowEntryForm renders the data entry screen with the recent sales list.
func (h *Handler) ShowEntryForm(w http.ResponseWriter, r *http.Request) {
	h.renderEntry(w, r, nil, http.StatusOK)
}

// HandleEntry records a single sale from the form.
func (h *Handler) HandleEntry(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, _ := strconv.ParseInt(r.PostFormValue("user_id"), 10, 64)
	revenue, err := strconv.ParseFloat(strings.TrimSpace(r.PostFormValue("revenue_amount")), 64)
	if err != nil || revenue < 0 {
		h.renderEntry(w, r, map[string]string{"general": "Revenue must be a non-negative number"}, http.StatusBadRequest)
		return
	}
	deals := 0
	if raw := strings.TrimSpace(r.PostFormValue("number_of_deals")); raw != "" {
		deals, err = strconv.Atoi(raw)
		if err != nil || deals < 0 {
			h.renderEntry(w, r, map[string]string{"general": "Deals must be a non-negative whole number"}, http.StatusBadRequest)
			return
		}
	}
	draw := 0.0
	if raw := strings.TrimSpace(r.PostFormValue("draw_payment")); raw != "" {
		draw, err = strconv.ParseFloat(raw, 64)
		if err != nil || draw < 0 {
			h.renderEntry(w, r, map[string]string{"general": "Draw payment must be a non-negative number"}, http.StatusBadRequest)
			return
		}
	}
	var date time.Time
	if raw := strings.TrimSpace(r.PostFormValue("date")); raw != "" {
		date, err = time.Parse("2006-01-02", raw)
		if err != nil {
			h.renderEntry(w, r, map[string]string{"general": "Date must use YYYY-MM-DD"}, http.StatusBadRequest)
			return
		}
	}

	sale, err := h.service.RecordSale(r.Context(), EntryInput{
		UserID:        userID,
		Date:          date,
		RevenueAmount: revenue,
		NumberOfDeals: deals,
		DrawPayment:   draw,
	})
	if err != nil {
		if errors.Is(err, ErrUserRequired) || errors.Is(err, shared.ErrNotFound) {
			h.renderEntry(w, r, map[string]string{"general": "Select a salesperson"}, http.StatusBadRequest)
			return
		}
		h.logger.Error("record sale", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.metrics.SaleRecorded()
	h.flash(r, "success", fmt.Sprintf("Sale recorded: %s revenue, %s commission", formatAmount(sale.RevenueAmount), formatAmount(sale.CommissionEarned)))
	h.logger.Info("sale recorded", slog.Int64("sale_id", sale.ID), slog.Int64("user_id", sale.UserID))
	http.Redirect(w, r, "/data_entry", http.StatusSeeOther)
}

type bulkPageData struct {
	Errors map[string]string
}

// ShowBulkUpload renders the CSV upload screen.
func (h *Handler) ShowBulkUpload(w http.ResponseWriter, r *http.Request) {
	h.renderBulk(w, r, nil, http.StatusOK)
}

// HandleBulkUpload ingests a CSV file as one all-or-nothing batch.
func (h *Handler) HandleBulkUpload(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		h.renderBulk(w, r, map[string]string{"general": "Upload failed: file too large or malformed"}, http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.renderBulk(w, r, map[string]string{"general": "Choose a CSV file to upload"}, http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		h.renderBulk(w, r, map[string]string{"general": "Only .csv files are accepted"}, http.StatusBadRequest)
		return
	}

	result, err := h.service.ImportCSV(r.Context(), file)
	if err != nil {
		if errors.Is(err, ErrMissingColumns) {
			h.renderBulk(w, r, map[string]string{"general": err.Error()}, http.StatusBadRequest)
			return
		}
		h.logger.Error("bulk import", slog.String("filename", header.Filename), slog.Any("error", err))
		h.renderBulk(w, r, map[string]string{"general": "Import failed: no rows were saved"}, http.StatusBadRequest)
		return
	}

	h.metrics.SalesImported(result.Imported)
	h.flash(r, "success", fmt.Sprintf("Imported %d sales (%d rows skipped)", result.Imported, result.Skipped))
	h.logger.Info("bulk import complete",
		slog.String("filename", header.Filename),
		slog.Int("imported", result.Imported),
		slog.Int("skipped", result.Skipped))
	http.Redirect(w, r, "/data_entry", http.StatusSeeOther)
}

func (h *Handler) renderEntry(w http.ResponseWriter, r *http.Request, errs map[string]string, status int) {
	ctx := r.Context()
	var options []employeeOption
	if h.employees != nil {
		list, err := h.employees.ListEmployees(ctx)
		if err != nil {
			h.logger.Error("list employees", slog.Any("error", err))
		}
		for i := range list {
			options = append(options, employeeOption{ID: list[i].ID, FullName: list[i].FullName()})
		}
	}
	recent, err := h.service.Recent(ctx, recentSalesLimit)
	if err != nil {
		h.logger.Error("recent sales", slog.Any("error", err))
	}
	data := entryPageData{
		Employees: options,
		Recent:    recent,
		Today:     h.now().UTC().Format("2006-01-02"),
		Errors:    errs,
	}
	h.renderPage(w, r, "pages/data_entry.html", "Data Entry", data, status)
}

func (h *Handler) renderBulk(w http.ResponseWriter, r *http.Request, errs map[string]string, status int) {
	h.renderPage(w, r, "pages/bulk_upload.html", "Bulk Upload", bulkPageData{Errors: errs}, status)
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

func formatAmount(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}
