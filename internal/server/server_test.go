package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/inkrouter/ink-router/internal/bus"
	"github.com/inkrouter/ink-router/internal/config"
	"github.com/inkrouter/ink-router/internal/pkg/logger"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Cache = config.CacheConfig{Type: "memory", Size: 100, Profile: "moderate"}
	cfg.Bus = config.BusConfig{Type: "memory"}
	cfg.Observability = config.ObservabilityConfig{MetricsEnabled: true, MetricsPath: "/metrics"}
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, http.Handler) {
	t.Helper()
	s, err := New(cfg, "test", logger.New("error", "text"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		s.service.Close()
		s.bus.Close()
		if s.cache != nil {
			s.cache.Close()
		}
	})
	return s, s.routes()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestAskEndpoint(t *testing.T) {
	_, h := newTestServer(t, testConfig())

	w := doJSON(t, h, http.MethodPost, "/v1/ask", askRequest{Query: "when are you open"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Answer     string  `json:"answer"`
		Confidence float64 `json:"confidence"`
		Pipeline   string  `json:"pipeline"`
		IsFallback bool    `json:"is_fallback"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.IsFallback {
		t.Fatal("expected a real answer")
	}
	if resp.Pipeline != "customer_service" {
		t.Errorf("pipeline = %q", resp.Pipeline)
	}
	if resp.Answer == "" || resp.Confidence <= 0 {
		t.Errorf("answer = %q confidence = %v", resp.Answer, resp.Confidence)
	}
}

func TestAskEndpoint_EmptyQueryIsFallbackNotError(t *testing.T) {
	_, h := newTestServer(t, testConfig())

	w := doJSON(t, h, http.MethodPost, "/v1/ask", askRequest{Query: "   "})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, empty query must degrade, not fail", w.Code)
	}
	var resp struct {
		IsFallback bool              `json:"is_fallback"`
		Metadata   map[string]string `json:"metadata"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.IsFallback || resp.Metadata["reason"] != "empty_query" {
		t.Errorf("got %+v, want empty_query fallback", resp)
	}
}

func TestAskEndpoint_BadJSON(t *testing.T) {
	_, h := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestAskEndpoint_SessionContinuity(t *testing.T) {
	_, h := newTestServer(t, testConfig())

	doJSON(t, h, http.MethodPost, "/v1/ask", askRequest{Query: "how much for a sleeve", Session: "s1"})
	w := doJSON(t, h, http.MethodPost, "/v1/ask", askRequest{Query: "how much for a small design", Session: "s1"})

	var resp struct {
		Pipeline string `json:"pipeline"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Pipeline != "sales" {
		t.Errorf("follow-up pipeline = %q, want sales", resp.Pipeline)
	}
}

func TestAskEndpoint_InlineHistory(t *testing.T) {
	_, h := newTestServer(t, testConfig())

	w := doJSON(t, h, http.MethodPost, "/v1/ask", askRequest{
		Query: "how much for a sleeve",
		History: []askTurn{
			{Role: "user", Text: "what does a half sleeve cost"},
			{Role: "assistant", Text: "Sleeves start at 800.", Pipeline: "sales"},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Pipeline string `json:"pipeline"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Pipeline != "sales" {
		t.Errorf("pipeline = %q, want sales steered by inline history", resp.Pipeline)
	}
}

func TestUsageSinkCountsMeteredQueries(t *testing.T) {
	s, h := newTestServer(t, testConfig())

	doJSON(t, h, http.MethodPost, "/v1/ask", askRequest{Query: "when are you open", Session: "s1"})

	// Metering is fire-and-forget through the pool and the bus dispatches
	// asynchronously, so poll for delivery.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.metrics.BusEventsConsumed.WithLabels(bus.TopicQueryCompleted).Value() >= 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("usage sink never consumed the query.completed event")
}

func TestPipelinesEndpoint(t *testing.T) {
	_, h := newTestServer(t, testConfig())

	doJSON(t, h, http.MethodPost, "/v1/ask", askRequest{Query: "when are you open"})

	w := doJSON(t, h, http.MethodGet, "/v1/pipelines", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Queries   int64 `json:"queries"`
		Pipelines []struct {
			Name    string `json:"name"`
			Entries int    `json:"entries"`
		} `json:"pipelines"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Queries != 1 {
		t.Errorf("queries = %d, want 1", resp.Queries)
	}
	if len(resp.Pipelines) != 5 {
		t.Errorf("got %d pipelines, want 5 built-ins", len(resp.Pipelines))
	}
}

func TestPipelineDetail(t *testing.T) {
	_, h := newTestServer(t, testConfig())

	w := doJSON(t, h, http.MethodGet, "/v1/pipelines/sales", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "min_confidence") {
		t.Error("detail missing min_confidence")
	}

	w = doJSON(t, h, http.MethodGet, "/v1/pipelines/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown pipeline status = %d, want 404", w.Code)
	}
}

func TestReloadEndpoint(t *testing.T) {
	cfg := testConfig()
	cfg.Knowledge.CorpusDir = t.TempDir()
	_, h := newTestServer(t, cfg)

	w := doJSON(t, h, http.MethodPost, "/v1/reload", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"reloaded":true`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	_, h := newTestServer(t, testConfig())

	w := doJSON(t, h, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, h := newTestServer(t, testConfig())

	doJSON(t, h, http.MethodPost, "/v1/ask", askRequest{Query: "when are you open"})

	w := doJSON(t, h, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "ink_query_requests_total 1") {
		t.Error("metrics output missing query counter")
	}
}

func TestCacheEndpoints(t *testing.T) {
	_, h := newTestServer(t, testConfig())

	doJSON(t, h, http.MethodPost, "/v1/ask", askRequest{Query: "when are you open"})
	doJSON(t, h, http.MethodPost, "/v1/ask", askRequest{Query: "when are you open"})

	w := doJSON(t, h, http.MethodGet, "/v1/cache/stats", nil)
	var stats struct {
		Enabled bool  `json:"enabled"`
		Size    int   `json:"size"`
		Hits    int64 `json:"hits"`
	}
	json.Unmarshal(w.Body.Bytes(), &stats)
	if !stats.Enabled || stats.Size != 1 || stats.Hits != 1 {
		t.Errorf("stats = %+v, want enabled with 1 entry and 1 hit", stats)
	}

	w = doJSON(t, h, http.MethodDelete, "/v1/cache", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("clear status = %d", w.Code)
	}
	w = doJSON(t, h, http.MethodGet, "/v1/cache/stats", nil)
	json.Unmarshal(w.Body.Bytes(), &stats)
	if stats.Size != 0 {
		t.Errorf("size after clear = %d, want 0", stats.Size)
	}
}

func TestCacheDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Cache.Type = "off"
	_, h := newTestServer(t, cfg)

	w := doJSON(t, h, http.MethodGet, "/v1/cache/stats", nil)
	if !strings.Contains(w.Body.String(), `"enabled":false`) {
		t.Errorf("body = %s", w.Body.String())
	}

	// Answering still works without a cache.
	w = doJSON(t, h, http.MethodPost, "/v1/ask", askRequest{Query: "when are you open"})
	if w.Code != http.StatusOK {
		t.Errorf("ask status = %d", w.Code)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	cfg := testConfig()
	cfg.Security.APIKey = "sekrit"
	_, h := newTestServer(t, cfg)

	w := doJSON(t, h, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no key status = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-API-Key", "sekrit")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("with key status = %d, want 200", rec.Code)
	}
}

func TestGracefulStopWithoutStart(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	if err := s.Stop(context.Background()); err != nil {
		t.Errorf("Stop() on unstarted server error = %v", err)
	}
}
