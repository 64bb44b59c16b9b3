package router

import (
	"context"
	"testing"
	"time"

	"github.com/inkrouter/ink-router/internal/bus"
	"github.com/inkrouter/ink-router/internal/cache"
	"github.com/inkrouter/ink-router/internal/classify"
	"github.com/inkrouter/ink-router/internal/compose"
	"github.com/inkrouter/ink-router/internal/config"
	"github.com/inkrouter/ink-router/internal/history"
	"github.com/inkrouter/ink-router/internal/knowledge"
	"github.com/inkrouter/ink-router/internal/metrics"
	"github.com/inkrouter/ink-router/internal/pkg/logger"
	"github.com/inkrouter/ink-router/internal/retrieve"
)

type serviceOpts struct {
	cache   cache.Cache
	bus     bus.Bus
	history history.Provider
	metrics *metrics.Metrics
}

func newTestService(t *testing.T, opts serviceOpts) *Service {
	t.Helper()

	reg, err := knowledge.NewRegistry(knowledge.DefaultPipelines())
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	log := logger.New("error", "text")

	svc, err := New(Deps{
		Store:      knowledge.NewStore(reg),
		Classifier: classify.New(classify.DefaultConfig(), log),
		Retriever:  retrieve.New(retrieve.DefaultConfig(), log),
		Cache:      opts.cache,
		Bus:        opts.bus,
		History:    opts.history,
		Metrics:    opts.metrics,
		Logger:     log,
		Config:     config.RouterConfig{QueryTimeoutMs: 2000, HistoryTurns: 6, MeterWorkers: 2},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(svc.Close)
	return svc
}

func assertFallback(t *testing.T, resp compose.Response, reason string) {
	t.Helper()
	if !resp.IsFallback {
		t.Fatalf("expected fallback, got pipeline %q", resp.Pipeline)
	}
	if resp.Confidence != 0 || resp.Pipeline != "" {
		t.Errorf("fallback invariant violated: confidence=%v pipeline=%q", resp.Confidence, resp.Pipeline)
	}
	if got := resp.Metadata["reason"]; got != reason {
		t.Errorf("reason = %q, want %q", got, reason)
	}
}

func TestAnswer_ExactPatternMatch(t *testing.T) {
	svc := newTestService(t, serviceOpts{})

	resp := svc.Answer(context.Background(), "", "When are you open?")
	if resp.IsFallback {
		t.Fatalf("expected answer, got fallback: %v", resp.Metadata)
	}
	if resp.Pipeline != knowledge.PipelineCustomerService {
		t.Errorf("pipeline = %q, want %q", resp.Pipeline, knowledge.PipelineCustomerService)
	}
	if resp.Confidence < 0.2 {
		t.Errorf("confidence = %v, want >= 0.2", resp.Confidence)
	}
	if len(resp.Sources) == 0 {
		t.Error("expected entry sources")
	}
}

func TestAnswer_EmptyQuery(t *testing.T) {
	svc := newTestService(t, serviceOpts{})

	for _, q := range []string{"", "   ", "\t\n"} {
		assertFallback(t, svc.Answer(context.Background(), "s1", q), compose.ReasonEmptyQuery)
	}
}

func TestAnswer_NoMatch(t *testing.T) {
	svc := newTestService(t, serviceOpts{})

	resp := svc.Answer(context.Background(), "", "quantum flux capacitor maintenance")
	if !resp.IsFallback {
		t.Fatalf("expected fallback, got %q from %q", resp.Answer, resp.Pipeline)
	}
}

func TestAnswer_Idempotent(t *testing.T) {
	svc := newTestService(t, serviceOpts{})

	first := svc.Answer(context.Background(), "", "how much does a sleeve cost")
	for i := 0; i < 5; i++ {
		next := svc.Answer(context.Background(), "", "how much does a sleeve cost")
		if next.Answer != first.Answer || next.Pipeline != first.Pipeline || next.Confidence != first.Confidence {
			t.Fatalf("run %d diverged: %+v vs %+v", i, next, first)
		}
	}
}

func TestAnswer_CacheTransparency(t *testing.T) {
	plain := newTestService(t, serviceOpts{})
	cached := newTestService(t, serviceOpts{cache: cache.NewMemoryCache(100, time.Minute)})

	queries := []string{
		"when are you open",
		"how much for a sleeve",
		"how do I care for a new tattoo",
		"total nonsense zzz",
	}
	for _, q := range queries {
		a := plain.Answer(context.Background(), "", q)
		b := cached.Answer(context.Background(), "", q)
		if a.Answer != b.Answer || a.Pipeline != b.Pipeline || a.Confidence != b.Confidence {
			t.Errorf("cache changed response content for %q", q)
		}
	}
}

func TestAnswer_CacheHit(t *testing.T) {
	svc := newTestService(t, serviceOpts{cache: cache.NewMemoryCache(100, time.Minute)})

	first := svc.Answer(context.Background(), "", "book an appointment")
	if first.Cached {
		t.Fatal("first answer must not be cached")
	}
	second := svc.Answer(context.Background(), "", "book an appointment")
	if !second.Cached {
		t.Fatal("second identical answer should come from cache")
	}
	if second.Answer != first.Answer {
		t.Error("cached answer content diverged")
	}
}

func TestAnswer_FallbackNotCached(t *testing.T) {
	c := cache.NewMemoryCache(100, time.Minute)
	svc := newTestService(t, serviceOpts{cache: c})

	svc.Answer(context.Background(), "", "quantum flux capacitor maintenance")
	if got := c.Stats().Size; got != 0 {
		t.Errorf("cache size = %d, fallbacks must not be cached", got)
	}
}

func TestAnswer_CancelledContext(t *testing.T) {
	svc := newTestService(t, serviceOpts{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assertFallback(t, svc.Answer(ctx, "", "when are you open"), compose.ReasonTimeout)
}

func TestAnswer_HistoryRecorded(t *testing.T) {
	h := history.NewMemoryStore(20)
	svc := newTestService(t, serviceOpts{history: h})

	svc.Answer(context.Background(), "s1", "when are you open")

	turns, err := h.Recent(context.Background(), "s1", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("got %d turns, want user + assistant", len(turns))
	}
	if turns[0].Role != history.RoleUser || turns[1].Role != history.RoleAssistant {
		t.Errorf("turn roles = %q, %q", turns[0].Role, turns[1].Role)
	}
	if turns[1].Pipeline != knowledge.PipelineCustomerService {
		t.Errorf("assistant turn pipeline = %q", turns[1].Pipeline)
	}
}

func TestAnswer_MetersQueryCompleted(t *testing.T) {
	log := logger.New("error", "text")
	b := bus.NewMemoryBus(log)
	events := make(chan bus.Event, 1)
	b.Subscribe(bus.TopicQueryCompleted, func(ctx context.Context, e bus.Event) {
		events <- e
	})

	svc := newTestService(t, serviceOpts{bus: b})
	svc.Answer(context.Background(), "s1", "when are you open")

	select {
	case e := <-events:
		if e.Session != "s1" {
			t.Errorf("event session = %q", e.Session)
		}
		if e.Payload["pipeline"] != knowledge.PipelineCustomerService {
			t.Errorf("event pipeline = %v", e.Payload["pipeline"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("query.completed event never arrived")
	}
}

func TestAnswer_RecordsMetrics(t *testing.T) {
	m := metrics.New()
	svc := newTestService(t, serviceOpts{metrics: m})

	svc.Answer(context.Background(), "", "when are you open")
	svc.Answer(context.Background(), "", "")

	if got := m.QueryRequests.Value(); got != 2 {
		t.Errorf("QueryRequests = %d, want 2", got)
	}
	if got := m.Fallbacks.WithLabels(compose.ReasonEmptyQuery).Value(); got != 1 {
		t.Errorf("empty_query fallbacks = %d, want 1", got)
	}
}

func TestReload_SwapsRegistry(t *testing.T) {
	dir := t.TempDir()
	reg, err := knowledge.Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	store := knowledge.NewStore(reg)
	log := logger.New("error", "text")

	svc, err := New(Deps{
		Store:      store,
		Classifier: classify.New(classify.DefaultConfig(), log),
		Retriever:  retrieve.New(retrieve.DefaultConfig(), log),
		Logger:     log,
		CorpusDir:  dir,
		Config:     config.RouterConfig{},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer svc.Close()

	before := svc.Registry()
	if err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if svc.Registry() == before {
		t.Error("Reload() should install a fresh registry")
	}
}

func TestAnswerWith_InlineHistory(t *testing.T) {
	svc := newTestService(t, serviceOpts{})

	// "how much for a sleeve" overlaps sales and tattoo_knowledge; a prior
	// sales answer supplied inline must steer the follow-up to sales even
	// without a session store.
	inline := []history.Turn{
		{Role: history.RoleUser, Text: "what does a half sleeve cost"},
		{Role: history.RoleAssistant, Text: "Sleeves start at 800.", Pipeline: knowledge.PipelineSales},
	}

	resp := svc.AnswerWith(context.Background(), "", "how much for a sleeve", inline)
	if resp.IsFallback {
		t.Fatalf("expected answer, got fallback: %v", resp.Metadata)
	}
	if resp.Pipeline != knowledge.PipelineSales {
		t.Errorf("pipeline = %q, want %q", resp.Pipeline, knowledge.PipelineSales)
	}
}

func TestAnswerWith_InlineHistoryVariesCacheKey(t *testing.T) {
	svc := newTestService(t, serviceOpts{cache: cache.NewMemoryCache(100, time.Hour)})

	inline := []history.Turn{
		{Role: history.RoleAssistant, Text: "Sleeves start at 800.", Pipeline: knowledge.PipelineSales},
	}

	svc.AnswerWith(context.Background(), "", "how much for a sleeve", nil)
	resp := svc.AnswerWith(context.Background(), "", "how much for a sleeve", inline)
	if resp.Cached {
		t.Error("differently-contextualized follow-up must not reuse the cached response")
	}
}

func TestStats_ConfidenceAverageIsRecent(t *testing.T) {
	s := NewStats()

	// Fill a full window at one confidence, then a full window at another.
	// The average must forget the first window entirely.
	for i := 0; i < confidenceWindow; i++ {
		s.Record(compose.Response{Pipeline: knowledge.PipelineSales, Confidence: 0.4})
	}
	for i := 0; i < confidenceWindow; i++ {
		s.Record(compose.Response{Pipeline: knowledge.PipelineSales, Confidence: 0.8})
	}

	reg, err := knowledge.NewRegistry(knowledge.DefaultPipelines())
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	report := s.Snapshot(reg)

	var sales *PipelineStatus
	for i := range report.Pipelines {
		if report.Pipelines[i].Name == knowledge.PipelineSales {
			sales = &report.Pipelines[i]
		}
	}
	if sales == nil {
		t.Fatal("sales missing from report")
	}
	if sales.Answers != 2*confidenceWindow {
		t.Errorf("answers = %d, want %d", sales.Answers, 2*confidenceWindow)
	}
	if diff := sales.AvgConfidence - 0.8; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("avg confidence = %v, want 0.8 over the recent window", sales.AvgConfidence)
	}
}

func TestStats_Snapshot(t *testing.T) {
	svc := newTestService(t, serviceOpts{})

	svc.Answer(context.Background(), "", "when are you open")
	svc.Answer(context.Background(), "", "when are you open")
	svc.Answer(context.Background(), "", "")

	report := svc.Stats().Snapshot(svc.Registry())
	if report.Queries != 3 {
		t.Errorf("Queries = %d, want 3", report.Queries)
	}
	if report.Fallbacks != 1 {
		t.Errorf("Fallbacks = %d, want 1", report.Fallbacks)
	}

	var cs *PipelineStatus
	for i := range report.Pipelines {
		if report.Pipelines[i].Name == knowledge.PipelineCustomerService {
			cs = &report.Pipelines[i]
		}
	}
	if cs == nil {
		t.Fatal("customer_service missing from report")
	}
	if cs.Answers != 2 {
		t.Errorf("customer_service answers = %d, want 2", cs.Answers)
	}
	if cs.AvgConfidence <= 0 || cs.AvgConfidence > 1 {
		t.Errorf("avg confidence = %v", cs.AvgConfidence)
	}
	if cs.Entries == 0 {
		t.Error("entry count missing")
	}
}
