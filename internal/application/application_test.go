package application

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/parade-allocator/internal/allocation"
	"github.com/eugenenazirov/parade-allocator/internal/config"
	"github.com/eugenenazirov/parade-allocator/internal/parade"
)

func TestNewInitializesDependencies(t *testing.T) {
	cfg := baseTestConfig(":8085")
	logger := zaptest.NewLogger(t)

	app, err := New(cfg, logger)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	groups, err := app.storage.GetGroups()
	if err != nil {
		t.Fatalf("GetGroups returned error: %v", err)
	}
	if !slices.Equal(groups, cfg.Groups) {
		t.Fatalf("expected groups %v, got %v", cfg.Groups, groups)
	}
	if app.server == nil || app.router == nil || app.handler == nil || app.engine == nil || app.runs == nil {
		t.Fatalf("expected server, router, handler, engine and run store to be initialized")
	}
	if app.Server() != app.server {
		t.Fatalf("Server accessor did not return underlying instance")
	}
}

func TestNewAllowsEmptyRoster(t *testing.T) {
	cfg := baseTestConfig(":0")
	cfg.Groups = nil

	app, err := New(cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	groups, _ := app.storage.GetGroups()
	if len(groups) != 0 {
		t.Fatalf("expected empty roster, got %v", groups)
	}
}

func TestNewReturnsErrorForUnknownSolver(t *testing.T) {
	cfg := baseTestConfig(":0")
	cfg.Solver = "cplex"

	_, err := New(cfg, zaptest.NewLogger(t))
	if !errors.Is(err, parade.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestNewReturnsErrorForInvalidGroups(t *testing.T) {
	cfg := baseTestConfig(":0")
	cfg.Groups = []parade.Group{{Name: "A", Size: 1}, {Name: "A", Size: 2}}

	if _, err := New(cfg, zaptest.NewLogger(t)); err == nil {
		t.Fatalf("expected error for duplicate groups")
	}
}

func TestNewServerAppliesConfig(t *testing.T) {
	cfg := baseTestConfig("9090")
	handler := http.NewServeMux()

	server := NewServer(cfg, handler)
	if server.Addr != ":9090" {
		t.Fatalf("expected address :9090, got %s", server.Addr)
	}
	if server.Handler != handler {
		t.Fatalf("expected handler to be applied")
	}
	if server.ReadHeaderTimeout != cfg.ReadHeaderTimeout ||
		server.WriteTimeout != cfg.WriteTimeout ||
		server.IdleTimeout != cfg.IdleTimeout {
		t.Fatalf("server timeouts do not match configuration")
	}
}

func TestBuildRootHandler(t *testing.T) {
	apiInvoked := false
	apiHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/health" {
			t.Fatalf("unexpected path passed to API handler: %s", r.URL.Path)
		}
		apiInvoked = true
		w.WriteHeader(http.StatusNoContent)
	})

	handler := BuildRootHandler(apiHandler, []string{"GET /api/health", "POST /api/allocate"})

	t.Run("serves index", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		var body indexResponse
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode index: %v", err)
		}
		if !slices.Contains(body.Endpoints, "POST /api/allocate") {
			t.Fatalf("expected allocate endpoint in index, got %v", body.Endpoints)
		}
	})

	t.Run("returns not found for unknown paths", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/unknown", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", rec.Code)
		}
	})

	t.Run("forwards api traffic", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected status 204, got %d", rec.Code)
		}
		if !apiInvoked {
			t.Fatalf("expected API handler to be invoked")
		}
	})
}

func performRequest(t *testing.T, handler http.Handler, method, target string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body []byte
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = data
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestIntegrationFlow(t *testing.T) {
	app, err := New(baseTestConfig(":0"), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	handler := app.Handler()

	rec := performRequest(t, handler, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from health, got %d", rec.Code)
	}

	update := map[string]any{"groups": []map[string]any{
		{"name": "C", "size": 95, "avoidSplit": true},
		{"name": "A", "size": 40},
	}}
	rec = performRequest(t, handler, http.MethodPut, "/api/groups", update)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from groups update, got %d", rec.Code)
	}

	rec = performRequest(t, handler, http.MethodPost, "/api/allocate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from allocate, got %d: %s", rec.Code, rec.Body.String())
	}
	var run struct {
		ID           string `json:"id"`
		Status       string `json:"status"`
		TotalPeople  int    `json:"totalPeople"`
		Preallocated int    `json:"preallocated"`
		Contingents  []struct {
			Total        int  `json:"total"`
			Preallocated bool `json:"preallocated"`
		} `json:"contingents"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&run); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if loc := rec.Header().Get("Location"); loc != "/api/allocations/"+run.ID {
		t.Fatalf("expected Location of the stored run, got %q", loc)
	}
	if run.Status != "OPTIMAL" || run.TotalPeople != 135 {
		t.Fatalf("unexpected run: %+v", run)
	}
	// C carves out one full contingent; its remainder of 5 rides with A.
	if run.Preallocated != 1 || len(run.Contingents) != 2 {
		t.Fatalf("expected one preallocated plus one solved contingent, got %+v", run)
	}
	if run.Contingents[0].Total != 90 || !run.Contingents[0].Preallocated || run.Contingents[1].Total != 45 {
		t.Fatalf("unexpected contingents: %+v", run.Contingents)
	}

	rec = performRequest(t, handler, http.MethodGet, "/api/allocations/"+run.ID+"/formation", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from formation, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "C1 (90 C)") {
		t.Fatalf("expected full contingent in formation, got %q", rec.Body.String())
	}
}

func baseTestConfig(port string) config.Config {
	return config.Config{
		Port:                 port,
		ShutdownGracePeriod:  50 * time.Millisecond,
		ReadHeaderTimeout:    20 * time.Millisecond,
		WriteTimeout:         30 * time.Millisecond,
		IdleTimeout:          40 * time.Millisecond,
		EnableRequestLogging: false,
		RateLimitRPS:         0,
		RateLimitBurst:       0,

		RowSize:     5,
		Capacity:    90,
		Alpha:       1,
		Beta:        5,
		TimeLimit:   10 * time.Second,
		Solver:      allocation.BackendSimplex,
		ColumnWidth: 50,
		Groups:      []parade.Group{{Name: "A", Size: 40}, {Name: "B", Size: 30}},
	}
}
