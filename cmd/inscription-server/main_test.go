package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/Sternrassler/inscription-grid/internal/testutil"
	"github.com/Sternrassler/inscription-grid/pkg/batch"
	"github.com/Sternrassler/inscription-grid/pkg/client"
	"github.com/Sternrassler/inscription-grid/pkg/inscriptions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupServer(t *testing.T, shape batch.Shape) (*gin.Engine, *testutil.MockOrdiscan) {
	t.Helper()

	mock := testutil.NewMockOrdiscan()
	t.Cleanup(mock.Close)

	cfg := client.DefaultConfig("test-key")
	cfg.BaseURL = mock.URL()
	c, err := client.New(cfg)
	require.NoError(t, err)

	orch, err := batch.New(inscriptions.NewFetcher(c), batch.Config{MaxConcurrency: 2, Shape: shape})
	require.NoError(t, err)

	return newRouter(orch, []string{"*"}, zerolog.Nop()), mock
}

func postJSON(t *testing.T, r http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/fetch_inscriptions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	r, _ := setupServer(t, batch.ShapeDual)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestIndexPage(t *testing.T) {
	r, mock := setupServer(t, batch.ShapeDual)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "/fetch_inscriptions")
	assert.Equal(t, 0, mock.RequestCount())
}

func TestMetricsEndpoint(t *testing.T) {
	r, mock := setupServer(t, batch.ShapeDual)
	mock.SetPages(testutil.HeldPath("bc1qa"), testutil.DataPage(
		testutil.Item{InscriptionID: "i0", Timestamp: "2024-01-01T00:00:00Z"},
	))
	require.Equal(t, http.StatusOK, postJSON(t, r, `{"addresses":"bc1qa"}`).Code)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	for _, metric := range []string{
		"ordiscan_requests_total",
		"ordiscan_request_duration_seconds",
		"inscription_fetches_total",
		"inscription_pages_total",
		"batch_requests_total",
		"batch_addresses_total",
	} {
		assert.Contains(t, string(body), metric)
	}
	assert.Contains(t, string(body), `endpoint="/v1/address/{address}/inscriptions"`)
}

func TestFetchInscriptions_JSON(t *testing.T) {
	r, mock := setupServer(t, batch.ShapeDual)
	mock.SetPages(testutil.HeldPath("bc1qa"), testutil.DataPage(
		testutil.Item{InscriptionID: "held-1", Timestamp: "2024-01-05T10:00:00Z"},
		testutil.Item{InscriptionID: "held-old", Timestamp: "2023-12-31T10:00:00Z"},
	))
	mock.SetPages(testutil.ActivityPath("bc1qa"), testutil.DataPage(
		testutil.Item{InscriptionID: "sent-1", Timestamp: "2024-01-06T10:00:00Z", Type: "send"},
	))
	mock.SetPages(testutil.HeldPath("bc1qb"), testutil.ErrorPage(http.StatusUnauthorized, "invalid api key"))

	w := postJSON(t, r, `{"addresses":"bc1qa\n\n bc1qb \n","from_date":"2024-01-01","to_date":""}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got map[string]batch.AddressResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 2)

	assert.Equal(t, []string{"held-1"}, got["bc1qa"].Held.IDs)
	assert.Equal(t, []string{"sent-1"}, got["bc1qa"].Transferred.IDs)

	require.False(t, got["bc1qb"].Held.OK())
	assert.Equal(t, http.StatusUnauthorized, got["bc1qb"].Held.Err.StatusCode)
	assert.Equal(t, "invalid api key", got["bc1qb"].Held.Err.Message)
	assert.True(t, got["bc1qb"].Transferred.OK())
}

func TestFetchInscriptions_Form(t *testing.T) {
	r, mock := setupServer(t, batch.ShapeDual)
	mock.SetPages(testutil.HeldPath("bc1qa"), testutil.DataPage(
		testutil.Item{InscriptionID: "i0", Timestamp: "2024-01-05T10:00:00Z"},
	))

	form := url.Values{"addresses": {"bc1qa"}, "to_date": {"2024-01-05"}}
	req := httptest.NewRequest(http.MethodPost, "/fetch_inscriptions", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"bc1qa":{"held":["i0"],"transferred":[]}}`, w.Body.String())
}

func TestFetchInscriptions_HeldOnlyShape(t *testing.T) {
	r, mock := setupServer(t, batch.ShapeHeldOnly)
	mock.SetPages(testutil.HeldPath("bc1qa"), testutil.DataPage(
		testutil.Item{InscriptionID: "i0", Timestamp: "2024-01-05T10:00:00Z"},
	))

	w := postJSON(t, r, `{"addresses":"bc1qa"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"bc1qa":["i0"]}`, w.Body.String())
	assert.Equal(t, 0, mock.RequestsFor(testutil.ActivityPath("bc1qa")))
}

func TestFetchInscriptions_InvalidDate(t *testing.T) {
	r, mock := setupServer(t, batch.ShapeDual)

	w := postJSON(t, r, `{"addresses":"bc1qa\nbc1qb","from_date":"not-a-date"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid from_date \"not-a-date\": expected YYYY-MM-DD"}`, w.Body.String())
	assert.Equal(t, 0, mock.RequestCount())
}

func TestFetchInscriptions_InvalidBody(t *testing.T) {
	r, mock := setupServer(t, batch.ShapeDual)

	w := postJSON(t, r, `{"addresses":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
	assert.Equal(t, 0, mock.RequestCount())
}

func TestFetchInscriptions_EmptyAddressList(t *testing.T) {
	r, mock := setupServer(t, batch.ShapeDual)

	w := postJSON(t, r, `{"addresses":"\n  \n"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{}`, w.Body.String())
	assert.Equal(t, 0, mock.RequestCount())
}

type failingHandler struct{}

func (failingHandler) Handle(ctx context.Context, rawAddresses, fromDate, toDate string) (batch.Result, error) {
	return batch.Result{}, errors.New("unexpected")
}

func TestFetchInscriptions_UnexpectedError(t *testing.T) {
	r := newRouter(failingHandler{}, nil, zerolog.Nop())

	w := postJSON(t, r, `{"addresses":"bc1qa"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"unexpected"}`, w.Body.String())
}

type panickingHandler struct{}

func (panickingHandler) Handle(ctx context.Context, rawAddresses, fromDate, toDate string) (batch.Result, error) {
	panic("boom")
}

func TestFetchInscriptions_PanicIsRecoveredAndLogged(t *testing.T) {
	var buf bytes.Buffer
	r := newRouter(panickingHandler{}, nil, zerolog.New(&buf))

	w := postJSON(t, r, `{"addresses":"bc1qa"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())

	var entry map[string]any
	line, _, _ := bytes.Cut(buf.Bytes(), []byte("\n"))
	require.NoError(t, json.Unmarshal(line, &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "boom", entry["panic"])
	assert.Equal(t, "/fetch_inscriptions", entry["path"])
}

func TestCORSPreflight(t *testing.T) {
	r := newRouter(failingHandler{}, []string{"https://grid.example"}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodOptions, "/fetch_inscriptions", nil)
	req.Header.Set("Origin", "https://grid.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "https://grid.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/fetch_inscriptions", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCorsConfig(t *testing.T) {
	assert.True(t, corsConfig([]string{"*"}).AllowAllOrigins)
	assert.True(t, corsConfig(nil).AllowAllOrigins)

	cfg := corsConfig([]string{"https://a.example"})
	assert.False(t, cfg.AllowAllOrigins)
	assert.Equal(t, []string{"https://a.example"}, cfg.AllowOrigins)
}
