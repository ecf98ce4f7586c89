// Package testutil provides a mock Ordiscan API for tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// Item is one entry of a mock inscriptions or activity page.
type Item struct {
	InscriptionID string `json:"inscription_id"`
	Timestamp     string `json:"timestamp,omitempty"`
	Type          string `json:"type,omitempty"`
}

// MockOrdiscanResponse defines the response for one page.
type MockOrdiscanResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

// MockOrdiscan serves configured pages per path. Pages beyond the configured
// ones answer with an empty data array, which ends pagination.
type MockOrdiscan struct {
	server *httptest.Server
	mu     sync.RWMutex
	pages  map[string][]MockOrdiscanResponse

	requests          []*url.URL
	lastRequestHeader http.Header
}

// NewMockOrdiscan creates and starts a mock Ordiscan server.
func NewMockOrdiscan() *MockOrdiscan {
	mock := &MockOrdiscan{
		pages: make(map[string][]MockOrdiscanResponse),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.serve))
	return mock
}

func (m *MockOrdiscan) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requests = append(m.requests, r.URL)
	m.lastRequestHeader = r.Header.Clone()
	pages := m.pages[r.URL.Path]
	m.mu.Unlock()

	pageNum, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || pageNum < 1 {
		pageNum = 1
	}

	resp := EmptyPage()
	if pageNum <= len(pages) {
		resp = pages[pageNum-1]
	}

	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// URL returns the mock server URL.
func (m *MockOrdiscan) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockOrdiscan) Close() {
	m.server.Close()
}

// Reset clears recorded requests. Configured pages are kept.
func (m *MockOrdiscan) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.lastRequestHeader = nil
}

// SetPages configures the responses for page 1..len(pages) of path.
func (m *MockOrdiscan) SetPages(path string, pages ...MockOrdiscanResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[path] = pages
}

// RequestCount returns the total number of requests served.
func (m *MockOrdiscan) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// RequestsFor returns the number of requests made against path.
func (m *MockOrdiscan) RequestsFor(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, u := range m.requests {
		if u.Path == path {
			n++
		}
	}
	return n
}

// Requests returns the recorded request URLs in arrival order.
func (m *MockOrdiscan) Requests() []*url.URL {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*url.URL, len(m.requests))
	copy(out, m.requests)
	return out
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockOrdiscan) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHeader
}

// HeldPath is the inscriptions listing path for address.
func HeldPath(address string) string {
	return "/v1/address/" + url.PathEscape(address) + "/inscriptions"
}

// ActivityPath is the activity listing path for address.
func ActivityPath(address string) string {
	return "/v1/address/" + url.PathEscape(address) + "/activity"
}

// DataPage builds a 200 response holding items.
func DataPage(items ...Item) MockOrdiscanResponse {
	if items == nil {
		items = []Item{}
	}
	body, err := json.Marshal(map[string][]Item{"data": items})
	if err != nil {
		panic(err)
	}
	return MockOrdiscanResponse{StatusCode: http.StatusOK, Body: string(body)}
}

// EmptyPage builds the terminating 200 response.
func EmptyPage() MockOrdiscanResponse {
	return MockOrdiscanResponse{StatusCode: http.StatusOK, Body: `{"data":[]}`}
}

// ErrorPage builds a non-2xx response.
func ErrorPage(statusCode int, body string) MockOrdiscanResponse {
	return MockOrdiscanResponse{StatusCode: statusCode, Body: body}
}

// RawPage builds a 200 response with an arbitrary body.
func RawPage(body string) MockOrdiscanResponse {
	return MockOrdiscanResponse{StatusCode: http.StatusOK, Body: body}
}
