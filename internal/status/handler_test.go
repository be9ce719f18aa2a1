package status_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fineprint-agent/internal/bootstrap"
	"fineprint-agent/internal/shared/config"
	"fineprint-agent/internal/shared/metrics"
)

func buildApp(t *testing.T, cfg config.Config) *bootstrap.App {
	t.Helper()
	metrics.Reset()
	t.Cleanup(metrics.Reset)

	if cfg.StoreType == "" {
		cfg.StoreType = "memory"
	}
	cfg.ObjectStoreType = "local"
	cfg.LocalStoreDir = t.TempDir()
	cfg.DataDir = t.TempDir()
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "http://localhost:1"
	}
	cfg.APITimeout = 2 * time.Second
	cfg.CacheTTL = 24 * time.Hour

	app, err := bootstrap.Build(cfg)
	if err != nil {
		t.Fatalf("build app: %v", err)
	}
	t.Cleanup(func() { app.Close() })
	return app
}

func TestStatusEndpoint(t *testing.T) {
	app := buildApp(t, config.Config{Env: "dev"})

	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var got struct {
		Connectivity struct {
			Online  bool   `json:"online"`
			Quality string `json:"quality"`
		} `json:"connectivity"`
		PendingItems int `json:"pendingItems"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Connectivity.Online || got.Connectivity.Quality != "good" {
		t.Fatalf("connectivity = %+v", got.Connectivity)
	}
}

func TestConnectivityReportBlocksSync(t *testing.T) {
	app := buildApp(t, config.Config{Env: "dev"})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/connectivity", strings.NewReader(`{"online":false}`))
	req.Header.Set("Content-Type", "application/json")
	app.Router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("connectivity status = %d", w.Code)
	}

	// Queue an operation, then confirm sync refuses to run offline.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/operations", strings.NewReader(`{"kind":"preference","action":"update","payload":{"id":"p1"}}`))
	req.Header.Set("Content-Type", "application/json")
	app.Router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("enqueue status = %d, body = %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	app.Router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil))
	var res struct {
		Ran    bool   `json:"ran"`
		Reason string `json:"reason"`
	}
	json.Unmarshal(w.Body.Bytes(), &res)
	if res.Ran || res.Reason != "offline" {
		t.Fatalf("sync result = %+v", res)
	}
}

func TestClearQueues(t *testing.T) {
	app := buildApp(t, config.Config{Env: "dev"})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/operations", strings.NewReader(`{"kind":"notification","action":"delete","payload":{"id":"n1"}}`))
	req.Header.Set("Content-Type", "application/json")
	app.Router.ServeHTTP(w, req)

	w = httptest.NewRecorder()
	app.Router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/queues", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("clear status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	app.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/operations", nil))
	var ops []json.RawMessage
	json.Unmarshal(w.Body.Bytes(), &ops)
	if len(ops) != 0 {
		t.Fatalf("operations after clear = %d", len(ops))
	}
}

func TestCleanupEndpoint(t *testing.T) {
	app := buildApp(t, config.Config{Env: "dev"})

	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/cleanup", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("cleanup status = %d", w.Code)
	}
	var report struct {
		ExpiredAnalyses int `json:"expiredAnalyses"`
		PrunedItems     int `json:"prunedItems"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestAuthGuardsAPI(t *testing.T) {
	app := buildApp(t, config.Config{Env: "prod", LocalAuthToken: "agent-secret"})

	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set("Authorization", "Bearer agent-secret")
	app.Router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("authenticated status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestOperationsValidation(t *testing.T) {
	app := buildApp(t, config.Config{Env: "dev"})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/operations", strings.NewReader(`{"kind":"bogus","action":"create"}`))
	req.Header.Set("Content-Type", "application/json")
	app.Router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	app := buildApp(t, config.Config{Env: "dev"})

	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "offline_operations_enqueued_total") {
		t.Fatalf("metrics body missing counters:\n%s", w.Body.String())
	}
}
