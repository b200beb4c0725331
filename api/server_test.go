package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dosa-orders/db/sqlstore"
)

func newTestServer(t *testing.T, cfg *Config) (*httptest.Server, *sqlstore.Store) {
	t.Helper()
	dbCfg := sqlstore.DefaultConfig()
	dbCfg.DSN = filepath.Join(t.TempDir(), "api.sqlite")
	store, err := sqlstore.Open(context.Background(), dbCfg)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ts := httptest.NewServer(NewServer(store, cfg).Handler())
	t.Cleanup(ts.Close)
	return ts, store
}

func doJSON(t *testing.T, method, url, body string) (int, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func TestHealthAndReady(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	status, body := doJSON(t, http.MethodGet, ts.URL+"/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])

	status, body = doJSON(t, http.MethodGet, ts.URL+"/ready", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", body["status"])
}

type downStore struct{ Store }

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestReadyReportsDatabaseDown(t *testing.T) {
	rec := httptest.NewRecorder()
	NewServer(downStore{}, nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error":"database not ready"}`, rec.Body.String())
}

func TestCustomerEndpoints(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	status, body := doJSON(t, http.MethodPost, ts.URL+"/customers", `{"name":"Alice","phone":"555-123-4567"}`)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, float64(1), body["id"])
	assert.Equal(t, "Alice", body["name"])

	status, body = doJSON(t, http.MethodPost, ts.URL+"/customers", `{"name":"Bob","phone":"5551234567"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "phone")

	status, _ = doJSON(t, http.MethodPost, ts.URL+"/customers", `{"name":"Eve","phone":"555-123-4567"}`)
	assert.Equal(t, http.StatusConflict, status)

	status, body = doJSON(t, http.MethodPut, ts.URL+"/customers/1", `{"name":"Alice B","phone":"555-123-4567"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Alice B", body["name"])

	status, body = doJSON(t, http.MethodGet, ts.URL+"/customers/1", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "555-123-4567", body["phone"])

	status, body = doJSON(t, http.MethodDelete, ts.URL+"/customers/1", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Customer deleted successfully", body["message"])

	status, body = doJSON(t, http.MethodGet, ts.URL+"/customers/1", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "customer not found", body["error"])

	status, _ = doJSON(t, http.MethodGet, ts.URL+"/customers/abc", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestItemEndpointsRenderPriceAsNumber(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	status, body := doJSON(t, http.MethodPost, ts.URL+"/items", `{"name":"Masala Dosa","price":10}`)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, float64(10), body["price"])

	status, _ = doJSON(t, http.MethodPost, ts.URL+"/items", `{"name":"Free"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, http.MethodPost, ts.URL+"/items", `{"name":"Neg","price":-1}`)
	assert.Equal(t, http.StatusBadRequest, status)

	resp, err := http.Get(ts.URL + "/items")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1,"name":"Masala Dosa","price":10.0}]`, string(raw))
}

func TestOrderEndpoints(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	doJSON(t, http.MethodPost, ts.URL+"/customers", `{"name":"Alice","phone":"555-123-4567"}`)
	doJSON(t, http.MethodPost, ts.URL+"/items", `{"name":"Idli","price":5.5}`)

	status, _ := doJSON(t, http.MethodPost, ts.URL+"/orders", `{"customer_id":9,"item_id":1,"quantity":1,"timestamp":1}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, http.MethodPost, ts.URL+"/orders", `{"customer_id":1,"item_id":1,"timestamp":1}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := doJSON(t, http.MethodPost, ts.URL+"/orders",
		`{"customer_id":1,"item_id":1,"quantity":2,"timestamp":1700000000,"notes":"crispy"}`)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "crispy", body["notes"])

	status, _ = doJSON(t, http.MethodDelete, ts.URL+"/customers/1", "")
	assert.Equal(t, http.StatusConflict, status)

	status, body = doJSON(t, http.MethodPut, ts.URL+"/orders/1",
		`{"customer_id":1,"item_id":1,"quantity":3,"timestamp":1700000001}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(3), body["quantity"])
	assert.Nil(t, body["notes"])

	status, body = doJSON(t, http.MethodDelete, ts.URL+"/orders/1", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Order deleted successfully", body["message"])

	status, body = doJSON(t, http.MethodGet, ts.URL+"/orders/1", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "order not found", body["error"])
}

func TestAggregateEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	doc := `[
		{"name":"Alice","phone":"555-123-4567","items":[{"name":"Dosa","price":10},{"name":"Dosa","price":10}]},
		{"name":"Bob","phone":"bad","items":[{"name":"Vada","price":4.5}]}
	]`
	resp, err := http.Post(ts.URL+"/api/v1/aggregate?count_policy=order", "application/json", strings.NewReader(doc))
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{
		"orders": 2,
		"customers": {"555-123-4567": "Alice"},
		"items": {"Dosa": {"price": 10.0, "orders": 1}, "Vada": {"price": 4.5, "orders": 1}}
	}`, string(raw))

	status, _ := doJSON(t, http.MethodPost, ts.URL+"/api/v1/aggregate", `{"not":"a list"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/aggregate?count_policy=bogus", `[]`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/aggregate?strict=true", `[{"name":"Bob","phone":"bad","items":[]}]`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/aggregate?strict=maybe", `[]`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, `invalid strict value "maybe"`, body["error"])

	status, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/aggregate", `null`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestGracefulShutdownOnCancelledContext(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Port = 0
	cfg.ShutdownTimeout = time.Second

	for i := 0; i < 20; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		done := make(chan error, 1)
		go func() { done <- NewServer(downStore{}, cfg).StartWithGracefulShutdown(ctx) }()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("server did not shut down after context cancellation")
		}
	}
}

func TestAPIKeyAndMetrics(t *testing.T) {
	cfg := DefaultConfig()
	cfg.APIKey = "secret"
	ts, _ := newTestServer(t, cfg)

	status, _ := doJSON(t, http.MethodGet, ts.URL+"/customers", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/customers", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "secret")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `dosa_http_requests_total{method="GET",route="/customers`)
	assert.Contains(t, string(raw), "dosa_http_request_duration_seconds_bucket")
}

func TestCORSPreflight(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CORSOrigins = []string{"http://localhost:3000"}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/customers", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	NewServer(downStore{}, cfg).Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}
