package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dansontsui/aistock-analysis/internal/database"
	"github.com/dansontsui/aistock-analysis/internal/models"
	"github.com/dansontsui/aistock-analysis/internal/runner"
)

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

type stubRunner struct {
	report     *models.Report
	runErr     error
	refreshed  *models.Report
	refreshErr error
}

func (s *stubRunner) Run(_ context.Context) (*models.Report, error) {
	return s.report, s.runErr
}

func (s *stubRunner) RefreshPrices(_ context.Context) (*models.Report, error) {
	return s.refreshed, s.refreshErr
}

func newTestHandler(t *testing.T, run AnalysisRunner, adminToken string) (*Handler, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewHandler(database.NewWithConn(conn), run, nil, adminToken), mock
}

func doRequest(h *Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	SetupRoutes(h).ServeHTTP(rr, req)
	return rr
}

// ---------------------------------------------------------------------------
// Analysis trigger
// ---------------------------------------------------------------------------

func TestTriggerAnalysis_Success(t *testing.T) {
	report := &models.Report{ID: 1, Date: "2026-03-16"}
	h, _ := newTestHandler(t, &stubRunner{report: report}, "")

	rr := doRequest(h, http.MethodPost, "/api/v1/analyze", "", nil)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Contains(t, rr.Body.String(), `"2026-03-16"`)
}

func TestTriggerAnalysis_ConflictWhileRunning(t *testing.T) {
	h, _ := newTestHandler(t, &stubRunner{runErr: runner.ErrRunInProgress}, "")

	rr := doRequest(h, http.MethodPost, "/api/v1/analyze", "", nil)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

// ---------------------------------------------------------------------------
// Reports
// ---------------------------------------------------------------------------

func TestGetLatestReport_NotFound(t *testing.T) {
	h, mock := newTestHandler(t, &stubRunner{}, "")
	mock.ExpectQuery("SELECT id, report_date").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rr := doRequest(h, http.MethodGet, "/api/v1/reports/latest", "", nil)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetLatestReport_OK(t *testing.T) {
	h, mock := newTestHandler(t, &stubRunner{}, "")
	rows := sqlmock.NewRows([]string{"id", "report_date", "ts", "news_summary", "data"}).
		AddRow(int64(9), "2026-03-16", int64(1000), "summary", []byte(`{"finalists":[{"code":"2330"}]}`))
	mock.ExpectQuery("SELECT id, report_date").WillReturnRows(rows)

	rr := doRequest(h, http.MethodGet, "/api/v1/reports/latest", "", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"2330"`)
}

func TestGetReports_OK(t *testing.T) {
	h, mock := newTestHandler(t, &stubRunner{}, "")
	rows := sqlmock.NewRows([]string{"id", "report_date", "ts", "news_summary", "data"}).
		AddRow(int64(2), "2026-03-16", int64(2000), "", []byte(`{}`)).
		AddRow(int64(1), "2026-03-15", int64(1000), "", []byte(`{}`))
	mock.ExpectQuery("SELECT id, report_date").WillReturnRows(rows)

	rr := doRequest(h, http.MethodGet, "/api/v1/reports", "", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRefreshPrices_NoHistory(t *testing.T) {
	h, _ := newTestHandler(t, &stubRunner{}, "")

	rr := doRequest(h, http.MethodPost, "/api/v1/reports/latest/refresh-prices", "", nil)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRefreshPrices_OK(t *testing.T) {
	h, _ := newTestHandler(t, &stubRunner{refreshed: &models.Report{ID: 3}}, "")

	rr := doRequest(h, http.MethodPost, "/api/v1/reports/latest/refresh-prices", "", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
}

// ---------------------------------------------------------------------------
// Entry price correction
// ---------------------------------------------------------------------------

func TestUpdateEntryPrice_Validation(t *testing.T) {
	h, _ := newTestHandler(t, &stubRunner{}, "")

	tests := []struct {
		name string
		path string
		body string
	}{
		{"bad id", "/api/v1/reports/abc/entry-price", `{"code":"2330","price":480}`},
		{"bad body", "/api/v1/reports/1/entry-price", `{not json`},
		{"missing price", "/api/v1/reports/1/entry-price", `{"code":"2330"}`},
		{"negative price", "/api/v1/reports/1/entry-price", `{"code":"2330","price":-5}`},
		{"missing code", "/api/v1/reports/1/entry-price", `{"price":480}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(h, http.MethodPost, tt.path, tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestUpdateEntryPrice_OK(t *testing.T) {
	h, mock := newTestHandler(t, &stubRunner{}, "")
	rows := sqlmock.NewRows([]string{"id", "report_date", "ts", "news_summary", "data"}).
		AddRow(int64(5), "2026-03-16", int64(1000), "", []byte(`{"finalists":[{"code":"2330","currentPrice":"520"}]}`))
	mock.ExpectQuery("SELECT id, report_date").WithArgs(int64(5)).WillReturnRows(rows)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE reports SET data")).
		WithArgs(sqlmock.AnyArg(), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rr := doRequest(h, http.MethodPost, "/api/v1/reports/5/entry-price", `{"code":"2330","price":480}`, nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEntryPrice_UnknownReport(t *testing.T) {
	h, mock := newTestHandler(t, &stubRunner{}, "")
	mock.ExpectQuery("SELECT id, report_date").
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rr := doRequest(h, http.MethodPost, "/api/v1/reports/99/entry-price", `{"code":"2330","price":480}`, nil)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// ---------------------------------------------------------------------------
// Subscribers
// ---------------------------------------------------------------------------

func TestAddSubscriber_Created(t *testing.T) {
	h, mock := newTestHandler(t, &stubRunner{}, "")
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO subscribers")).
		WithArgs("reader@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), time.Now()))

	rr := doRequest(h, http.MethodPost, "/api/v1/subscribers", `{"email":"reader@example.com"}`, nil)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Contains(t, rr.Body.String(), "reader@example.com")
}

func TestAddSubscriber_Duplicate(t *testing.T) {
	h, mock := newTestHandler(t, &stubRunner{}, "")
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO subscribers")).
		WithArgs("dup@example.com").
		WillReturnError(&pq.Error{Code: "23505"})

	rr := doRequest(h, http.MethodPost, "/api/v1/subscribers", `{"email":"dup@example.com"}`, nil)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestRemoveSubscriber(t *testing.T) {
	h, mock := newTestHandler(t, &stubRunner{}, "")
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM subscribers")).
		WithArgs(int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM subscribers")).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	rr := doRequest(h, http.MethodDelete, "/api/v1/subscribers/4", "", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = doRequest(h, http.MethodDelete, "/api/v1/subscribers/5", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// ---------------------------------------------------------------------------
// Admin
// ---------------------------------------------------------------------------

func TestClearHistory_TokenChecks(t *testing.T) {
	h, mock := newTestHandler(t, &stubRunner{}, "secret")

	rr := doRequest(h, http.MethodDelete, "/api/v1/admin/clear-history", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doRequest(h, http.MethodDelete, "/api/v1/admin/clear-history", "", map[string]string{"X-Admin-Token": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM reports")).
		WillReturnResult(sqlmock.NewResult(0, 12))
	rr = doRequest(h, http.MethodDelete, "/api/v1/admin/clear-history", "", map[string]string{"X-Admin-Token": "secret"})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"deleted":12`)
}

func TestClearHistory_DisabledWithoutToken(t *testing.T) {
	h, _ := newTestHandler(t, &stubRunner{}, "")

	rr := doRequest(h, http.MethodDelete, "/api/v1/admin/clear-history", "", map[string]string{"X-Admin-Token": ""})

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

func TestHealthCheck(t *testing.T) {
	h, mock := newTestHandler(t, &stubRunner{}, "")
	mock.ExpectPing()

	rr := doRequest(h, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"postgres":"healthy"`)
}
