package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/ssargent/recordkit/pkg/catalog"
	"github.com/ssargent/recordkit/pkg/config"
	"github.com/ssargent/recordkit/pkg/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "test-key"

type envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
}

type testPage struct {
	View     string           `json:"view"`
	Criteria string           `json:"criteria"`
	Offset   int64            `json:"offset"`
	Limit    int64            `json:"limit"`
	Total    int64            `json:"total"`
	Records  []map[string]any `json:"records"`
}

func (p testPage) ids() []int {
	var out []int
	for _, r := range p.Records {
		out = append(out, int(r["id"].(float64)))
	}
	return out
}

// setupTestServer serves a memory store holding the people view
func setupTestServer(t *testing.T) (http.Handler, *prometheus.Registry) {
	t.Helper()
	view, err := config.View{
		Name: "people",
		Fields: []config.Field{
			{Name: "id", Kind: "long", PrimaryKey: true},
			{Name: "name", Kind: "string", Required: true},
			{Name: "age", Kind: "integer"},
		},
	}.Build()
	require.NoError(t, err)
	store, err := memstore.New(view, memstore.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	reg := prometheus.NewRegistry()
	cfg := ServerConfig{
		APIKey:   testKey,
		Paging:   config.Paging{PageSize: 8, MaxPages: 4, RecordSets: 4},
		Registry: reg,
	}
	handler, err := NewRouter(catalog.New(store), cfg, NewMetrics(reg))
	require.NoError(t, err)
	return handler, reg
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-API-Key", testKey)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var resp envelope[T]
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func insertPeople(t *testing.T, h http.Handler, n int) []string {
	t.Helper()
	ids := make([]string, n)
	for i := n - 1; i >= 0; i-- {
		w := do(t, h, "POST", "/api/v1/views/people/records", map[string]any{
			"id":   i,
			"name": fmt.Sprintf("person%02d", i),
			"age":  20 + i%10,
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		ids[i] = decode[InsertResponse](t, w).Data.ID
	}
	return ids
}

func TestServer_handleHealth(t *testing.T) {
	h, _ := setupTestServer(t)

	w := do(t, h, "GET", "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[map[string]any](t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, "healthy", resp.Data["status"])
	assert.Equal(t, float64(1), resp.Data["views"])

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestServer_handleViews(t *testing.T) {
	h, _ := setupTestServer(t)

	w := do(t, h, "GET", "/api/v1/views", nil)
	require.Equal(t, http.StatusOK, w.Code)
	views := decode[[]ViewInfo](t, w).Data
	require.Len(t, views, 1)
	assert.Equal(t, "people", views[0].Name)
	assert.Equal(t, "id ASC", views[0].Order)
	require.Len(t, views[0].Fields, 3)
	assert.True(t, views[0].Fields[0].PrimaryKey)
	assert.False(t, views[0].Fields[1].Nullable)
	assert.Equal(t, "integer", views[0].Fields[2].Kind)

	w = do(t, h, "GET", "/api/v1/views/people", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(t, h, "GET", "/api/v1/views/ghosts", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_handleInsert(t *testing.T) {
	h, _ := setupTestServer(t)
	insertPeople(t, h, 1)

	tests := []struct {
		name   string
		path   string
		body   interface{}
		status int
	}{
		{"duplicate key", "/api/v1/views/people/records", map[string]any{"id": 0, "name": "again"}, http.StatusConflict},
		{"missing required", "/api/v1/views/people/records", map[string]any{"id": 1}, http.StatusBadRequest},
		{"unknown field", "/api/v1/views/people/records", map[string]any{"id": 1, "name": "x", "shoe": 9}, http.StatusBadRequest},
		{"wrong kind", "/api/v1/views/people/records", map[string]any{"id": true, "name": "x"}, http.StatusBadRequest},
		{"not an object", "/api/v1/views/people/records", []int{1}, http.StatusBadRequest},
		{"integer overflow", "/api/v1/views/people/records", map[string]any{"id": 1, "name": "x", "age": 3000000000}, http.StatusBadRequest},
		{"fractional long", "/api/v1/views/people/records", map[string]any{"id": 1.5, "name": "x"}, http.StatusBadRequest},
		{"unknown view", "/api/v1/views/ghosts/records", map[string]any{"id": 1}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, "POST", tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.False(t, decode[any](t, w).Success)
		})
	}
}

func TestServer_handleListRecords(t *testing.T) {
	h, _ := setupTestServer(t)
	insertPeople(t, h, 30)

	tests := []struct {
		name  string
		path  string
		total int64
		ids   []int
	}{
		{"first page", "/api/v1/views/people/records?limit=5", 30, []int{0, 1, 2, 3, 4}},
		{"middle page", "/api/v1/views/people/records?offset=17&limit=4", 30, []int{17, 18, 19, 20}},
		{"last page short", "/api/v1/views/people/records?offset=27&limit=10", 30, []int{27, 28, 29}},
		{"past the end", "/api/v1/views/people/records?offset=40", 30, nil},
		{"where", "/api/v1/views/people/records?where=age%20%3D%2021", 3, []int{1, 11, 21}},
		{"where or", "/api/v1/views/people/records?where=id%20%3C%202&where=id%20%3E%2027&or=true", 4, []int{0, 1, 28, 29}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, "GET", tt.path, nil)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			page := decode[testPage](t, w).Data
			assert.Equal(t, "people", page.View)
			assert.Equal(t, tt.total, page.Total)
			assert.Equal(t, tt.ids, page.ids())
		})
	}

	for _, path := range []string{
		"/api/v1/views/people/records?offset=-1",
		"/api/v1/views/people/records?limit=many",
		"/api/v1/views/people/records?where=shoe%20%3D%201",
		"/api/v1/views/people/records?where=id%20SOMEWHAT%201",
	} {
		w := do(t, h, "GET", path, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}

func TestServer_handleQuery(t *testing.T) {
	h, _ := setupTestServer(t)
	insertPeople(t, h, 20)

	req := map[string]any{
		"criteria": map[string]any{
			"conditions": []map[string]any{
				{"field": "id", "op": "BETWEEN", "values": []int{3, 12}},
			},
		},
		"where":  []string{"age >= 25"},
		"offset": 1,
		"limit":  3,
	}
	w := do(t, h, "POST", "/api/v1/views/people/query", req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	page := decode[testPage](t, w).Data
	// ids 5..9 match, skipping the first
	assert.Equal(t, int64(5), page.Total)
	assert.Equal(t, []int{6, 7, 8}, page.ids())

	w = do(t, h, "POST", "/api/v1/views/people/query", map[string]any{
		"criteria": map[string]any{"conditions": []map[string]any{{"field": "name", "op": "LIKE_LEFT", "values": []int{1}}}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, "POST", "/api/v1/views/people/query", map[string]any{"offset": -2})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_QueryRecordSetsKeyedByCriteria(t *testing.T) {
	h, _ := setupTestServer(t)
	insertPeople(t, h, 5)

	quoted := map[string]any{"criteria": map[string]any{
		"conditions": []map[string]any{{"field": "name", "op": "EQ", "values": []string{"person01' OR name EQ 'person02"}}},
	}}
	either := map[string]any{"criteria": map[string]any{
		"or": true,
		"conditions": []map[string]any{
			{"field": "name", "op": "EQ", "values": []string{"person01"}},
			{"field": "name", "op": "EQ", "values": []string{"person02"}},
		},
	}}

	w := do(t, h, "POST", "/api/v1/views/people/query", quoted)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first := decode[testPage](t, w).Data
	assert.Equal(t, int64(0), first.Total)

	w = do(t, h, "POST", "/api/v1/views/people/query", either)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	second := decode[testPage](t, w).Data
	assert.Equal(t, first.Criteria, second.Criteria)
	assert.Equal(t, int64(2), second.Total)
	assert.Equal(t, []int{1, 2}, second.ids())
}

func TestServer_handleCount(t *testing.T) {
	h, _ := setupTestServer(t)
	insertPeople(t, h, 12)

	w := do(t, h, "GET", "/api/v1/views/people/count", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(12), decode[CountResponse](t, w).Data.Count)

	w = do(t, h, "GET", "/api/v1/views/people/count?where=name%20LIKE_LEFT%20person0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(10), decode[CountResponse](t, w).Data.Count)
}

func TestServer_RecordLifecycle(t *testing.T) {
	h, _ := setupTestServer(t)
	ids := insertPeople(t, h, 10)
	path := "/api/v1/views/people/records/" + ids[4]

	w := do(t, h, "GET", path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "person04", decode[map[string]any](t, w).Data["name"])

	// page once so the record set is cached before the writes below
	w = do(t, h, "GET", "/api/v1/views/people/records?limit=100", nil)
	assert.Equal(t, int64(10), decode[testPage](t, w).Data.Total)

	w = do(t, h, "PUT", path, map[string]any{"id": 40, "name": "moved", "age": 50})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, h, "PUT", path, map[string]any{"id": 5, "name": "clash"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, h, "GET", "/api/v1/views/people/records?limit=100", nil)
	assert.Equal(t, []int{0, 1, 2, 3, 5, 6, 7, 8, 9, 40}, decode[testPage](t, w).Data.ids(), "cached record sets see writes")

	w = do(t, h, "DELETE", path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, h, "DELETE", path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, h, "GET", path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, "GET", "/api/v1/views/people/records?limit=100", nil)
	assert.Equal(t, int64(9), decode[testPage](t, w).Data.Total)

	w = do(t, h, "GET", "/api/v1/views/people/records/not-an-id", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_Metrics(t *testing.T) {
	h, _ := setupTestServer(t)
	insertPeople(t, h, 3)
	do(t, h, "GET", "/api/v1/views/people/records", nil)
	do(t, h, "GET", "/api/v1/views/people/records", nil)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `recordkit_http_requests_total{endpoint="/api/v1/views/{view}/records",method="POST",status_code="201"} 3`)
	assert.Contains(t, body, `recordkit_recordset_cache_lookups_total{result="hit"} 1`)
	assert.Contains(t, body, `recordkit_recordset_cache_lookups_total{result="miss"} 1`)
	assert.Contains(t, body, `recordkit_auth_requests_total{status="success"}`)
	assert.Contains(t, body, "recordkit_recordset_loads_total")
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{memstore.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", memstore.ErrDuplicateKey), http.StatusConflict},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, statusOf(tt.err), tt.err.Error())
	}
}
