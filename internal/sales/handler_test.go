package sales

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/salespulse/salespulse/internal/users"
	"github.com/salespulse/salespulse/internal/view"
)

type stubEmployees struct {
	list []users.User
}

func (s stubEmployees) ListEmployees(ctx context.Context) ([]users.User, error) {
	return s.list, nil
}

func newTestHandler(t *testing.T) (*Handler, *memorySaleRepo) {
	t.Helper()
	svc, repo, _ := newTestService(DisplayPercentage)
	templates, err := view.NewEngine()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	employees := stubEmployees{list: []users.User{
		{ID: 1, FirstName: "Amy", LastName: "Pond", Role: users.RoleViewer, Active: true},
	}}
	h := NewHandler(logger, svc, employees, templates, nil, nil, 1<<20)
	h.WithNow(fixedClock)
	return h, repo
}

func TestShowEntryFormListsEmployees(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest("GET", "/data_entry", nil)
	rec := httptest.NewRecorder()
	h.ShowEntryForm(rec, req)

	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), "Amy Pond")
}

func TestHandleEntryCreatesSale(t *testing.T) {
	h, repo := newTestHandler(t)

	form := url.Values{
		"user_id":         {"1"},
		"revenue_amount":  {"1000"},
		"number_of_deals": {"2"},
	}
	req := httptest.NewRequest("POST", "/data_entry", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.HandleEntry(rec, req)

	require.Equal(t, 303, rec.Code)
	require.Equal(t, "/data_entry", rec.Header().Get("Location"))
	require.Len(t, repo.sales, 1)
	require.Equal(t, float64(50), repo.sales[0].CommissionEarned)
}

func TestHandleEntryRejectsBadRevenue(t *testing.T) {
	h, repo := newTestHandler(t)

	form := url.Values{
		"user_id":        {"1"},
		"revenue_amount": {"lots"},
	}
	req := httptest.NewRequest("POST", "/data_entry", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.HandleEntry(rec, req)

	require.Equal(t, 400, rec.Code)
	require.Empty(t, repo.sales)
}

func TestHandleEntryRejectsMissingUser(t *testing.T) {
	h, repo := newTestHandler(t)

	form := url.Values{"revenue_amount": {"100"}}
	req := httptest.NewRequest("POST", "/data_entry", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.HandleEntry(rec, req)

	require.Equal(t, 400, rec.Code)
	require.Empty(t, repo.sales)
}

func multipartCSV(t *testing.T, filename, contents string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(contents))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestHandleBulkUploadImports(t *testing.T) {
	h, repo := newTestHandler(t)

	body, contentType := multipartCSV(t, "sales.csv",
		"employee_name,date,revenue_amount,number_of_deals\nAmy Pond,2024-03-01,500,1\nAmy Pond,2024-03-02,250,1\n")
	req := httptest.NewRequest("POST", "/bulk_upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.HandleBulkUpload(rec, req)

	require.Equal(t, 303, rec.Code)
	require.Equal(t, "/data_entry", rec.Header().Get("Location"))
	require.Len(t, repo.sales, 2)
}

func TestHandleBulkUploadRejectsNonCSV(t *testing.T) {
	h, repo := newTestHandler(t)

	body, contentType := multipartCSV(t, "sales.txt", "whatever")
	req := httptest.NewRequest("POST", "/bulk_upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.HandleBulkUpload(rec, req)

	require.Equal(t, 400, rec.Code)
	require.Empty(t, repo.sales)
}

func TestHandleBulkUploadMissingColumns(t *testing.T) {
	h, repo := newTestHandler(t)

	body, contentType := multipartCSV(t, "sales.csv", "name,amount\nAmy,100\n")
	req := httptest.NewRequest("POST", "/bulk_upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.HandleBulkUpload(rec, req)

	require.Equal(t, 400, rec.Code)
	require.Empty(t, repo.sales)
	require.Contains(t, rec.Body.String(), "employee_name")
}

func TestHandleBulkUploadMissingFile(t *testing.T) {
	h, _ := newTestHandler(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.Close())
	req := httptest.NewRequest("POST", "/bulk_upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	h.HandleBulkUpload(rec, req)

	require.Equal(t, 400, rec.Code)
}
