// Package testutil provides a mock ArcGIS Online server for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

// Paths served by MockAGO.
const (
	TokenPath = "/sharing/rest/generateToken"
	QueryPath = "/arcgis/rest/services/TRADE_LICENSES_PWD/FeatureServer/0/query"
)

// Feature is one record served by the mock query endpoint.
type Feature struct {
	ObjectID int64
	// JSON is the full feature object, including the attributes wrapper.
	JSON string
}

// MockResponse defines a canned response for a path.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockAGO is a configurable mock token and Feature Server endpoint.
type MockAGO struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Token endpoint behavior.
	Username string
	Password string
	Token    string

	// Query endpoint behavior.
	ObjectIDField string
	PageSize      int
	features      []Feature

	// Tracking
	TokenCount    int
	QueryCount    int
	LastTokenForm url.Values
	LastQuery     url.Values
	Queries       []string
}

// NewMockAGO creates a mock server accepting user/secret and issuing
// "mock-token", with a page size of 100 and no features.
func NewMockAGO() *MockAGO {
	mock := &MockAGO{
		handlers:      make(map[string]func(w http.ResponseWriter, r *http.Request)),
		Username:      "user",
		Password:      "secret",
		Token:         "mock-token",
		ObjectIDField: "OBJECTID",
		PageSize:      100,
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		switch r.URL.Path {
		case TokenPath:
			mock.tokenHandler(w, r)
		case QueryPath:
			mock.queryHandler(w, r)
		default:
			http.NotFound(w, r)
		}
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockAGO) URL() string {
	return m.server.URL
}

// TokenURL returns the generateToken URL.
func (m *MockAGO) TokenURL() string {
	return m.server.URL + TokenPath
}

// QueryURL returns the layer query URL.
func (m *MockAGO) QueryURL() string {
	return m.server.URL + QueryPath
}

// Close shuts down the mock server.
func (m *MockAGO) Close() {
	m.server.Close()
}

// SetFeatures replaces the dataset served by the query endpoint.
func (m *MockAGO) SetFeatures(features []Feature) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.features = append([]Feature(nil), features...)
}

// SetHandler sets a custom handler for a specific path.
func (m *MockAGO) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockAGO) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		m.track(r)
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// GetQueryCount returns the number of query requests served.
func (m *MockAGO) GetQueryCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.QueryCount
}

// GetTokenCount returns the number of token requests served.
func (m *MockAGO) GetTokenCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.TokenCount
}

// GetQueries returns the where clauses received, in order.
func (m *MockAGO) GetQueries() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.Queries...)
}

func (m *MockAGO) track(r *http.Request) {
	r.ParseForm()
	m.mu.Lock()
	defer m.mu.Unlock()
	switch r.URL.Path {
	case TokenPath:
		m.TokenCount++
		m.LastTokenForm = r.PostForm
	default:
		m.QueryCount++
		m.LastQuery = r.URL.Query()
		m.Queries = append(m.Queries, r.URL.Query().Get("where"))
	}
}

func (m *MockAGO) tokenHandler(w http.ResponseWriter, r *http.Request) {
	m.track(r)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if r.PostForm.Get("username") != m.Username || r.PostForm.Get("password") != m.Password {
		w.Write([]byte(`{"error":{"code":400,"message":"Unable to generate token.","details":["Invalid username or password."]}}`))
		return
	}

	expires := time.Now().Add(2 * time.Hour).UnixMilli()
	fmt.Fprintf(w, `{"token":%q,"expires":%d,"ssl":true}`, m.Token, expires)
}

func (m *MockAGO) queryHandler(w http.ResponseWriter, r *http.Request) {
	m.track(r)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	q := r.URL.Query()
	if m.Token != "" && q.Get("token") != m.Token {
		w.Write([]byte(`{"error":{"code":498,"message":"Invalid token.","details":[]}}`))
		return
	}

	after, err := m.parseWhere(q.Get("where"))
	if err != nil {
		fmt.Fprintf(w, `{"error":{"code":400,"message":%q,"details":[]}}`, err.Error())
		return
	}

	m.mu.RLock()
	matching := make([]Feature, 0, len(m.features))
	for _, f := range m.features {
		if f.ObjectID > after {
			matching = append(matching, f)
		}
	}
	pageSize := m.PageSize
	m.mu.RUnlock()

	sort.Slice(matching, func(i, j int) bool { return matching[i].ObjectID < matching[j].ObjectID })

	exceeded := false
	if pageSize > 0 && len(matching) > pageSize {
		matching = matching[:pageSize]
		exceeded = true
	}

	parts := make([]string, len(matching))
	for i, f := range matching {
		parts[i] = f.JSON
	}
	fmt.Fprintf(w, `{"objectIdFieldName":%q,"features":[%s],"exceededTransferLimit":%t}`,
		m.ObjectIDField, strings.Join(parts, ","), exceeded)
}

func (m *MockAGO) parseWhere(where string) (int64, error) {
	var field string
	var after int64
	if _, err := fmt.Sscanf(where, "%s > %d", &field, &after); err != nil {
		return 0, fmt.Errorf("unable to parse where clause %q", where)
	}
	if field != m.ObjectIDField {
		return 0, fmt.Errorf("unknown field %q", field)
	}
	return after, nil
}

// NewLicenseFeatures builds n trade license features with OBJECTID 1..n.
// ISSUEDATE is epoch milliseconds at midnight UTC, one day apart.
func NewLicenseFeatures(n int) []Feature {
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]Feature, n)
	for i := 0; i < n; i++ {
		id := int64(i + 1)
		attrs := map[string]any{
			"OBJECTID":   id,
			"LICENSENUM": fmt.Sprintf("L-%05d", id),
			"ISSUEDATE":  base.AddDate(0, 0, i).UnixMilli(),
		}
		// encoding/json sorts map keys, so column order is stable.
		data, _ := json.Marshal(map[string]any{"attributes": attrs})
		out[i] = Feature{ObjectID: id, JSON: string(data)}
	}
	return out
}

// NewHealthyResponse creates a 200 OK JSON response.
func NewHealthyResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewServiceErrorResponse creates the 200 OK error envelope AGO returns
// for rejected queries.
func NewServiceErrorResponse(code int, message string) MockResponse {
	return NewHealthyResponse(fmt.Sprintf(`{"error":{"code":%d,"message":%q,"details":[]}}`, code, message))
}
