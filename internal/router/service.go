// Package router runs the answer path: cache lookup, classification,
// scatter-gather retrieval across probed pipelines, composition, and
// fire-and-forget usage metering.
package router

import (
	"context"
	"time"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"

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

// Deps bundles everything the answer service needs. Cache, Bus, History and
// Metrics are optional; a nil value disables that concern without changing
// answer content.
type Deps struct {
	Store      *knowledge.Store
	Classifier *classify.Classifier
	Retriever  *retrieve.Retriever
	Cache      cache.Cache
	Bus        bus.Bus
	History    history.Provider
	Metrics    *metrics.Metrics
	Logger     *logger.Logger
	CorpusDir  string
	Config     config.RouterConfig
}

// Service answers queries. Safe for concurrent use.
type Service struct {
	store      *knowledge.Store
	classifier *classify.Classifier
	retriever  *retrieve.Retriever
	cache      cache.Cache
	bus        bus.Bus
	history    history.Provider
	metrics    *metrics.Metrics
	log        *logger.Logger
	corpusDir  string

	timeout      time.Duration
	historyTurns int

	meterPool *ants.Pool
	stats     *Stats
}

// New creates the answer service. The metering pool is bounded and
// non-blocking: when it is saturated events are dropped, never queued on the
// query path.
func New(d Deps) (*Service, error) {
	workers := d.Config.MeterWorkers
	if workers <= 0 {
		workers = 4
	}
	pool, err := ants.NewPool(workers, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(d.Config.QueryTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	turns := d.Config.HistoryTurns
	if turns <= 0 {
		turns = 6
	}

	return &Service{
		store:        d.Store,
		classifier:   d.Classifier,
		retriever:    d.Retriever,
		cache:        d.Cache,
		bus:          d.Bus,
		history:      d.History,
		metrics:      d.Metrics,
		log:          d.Logger,
		corpusDir:    d.CorpusDir,
		timeout:      timeout,
		historyTurns: turns,
		meterPool:    pool,
		stats:        NewStats(),
	}, nil
}

// Answer routes one query. It never returns an error: every failure mode
// degrades to a fallback response.
func (s *Service) Answer(ctx context.Context, sessionID, rawQuery string) compose.Response {
	return s.AnswerWith(ctx, sessionID, rawQuery, nil)
}

// AnswerWith routes one query with caller-supplied turns appended after the
// session's stored history. Clients without a session pass their context
// inline; the supplied turns feed classification and the cache key but are
// not written into the session store.
func (s *Service) AnswerWith(ctx context.Context, sessionID, rawQuery string, supplied []history.Turn) compose.Response {
	start := time.Now()

	turns := s.recentTurns(ctx, sessionID)
	if len(supplied) > 0 {
		merged := make([]history.Turn, 0, len(turns)+len(supplied))
		merged = append(merged, turns...)
		merged = append(merged, supplied...)
		turns = merged
	}
	q := classify.NewQuery(rawQuery, turns)

	if q.Empty() {
		return s.finish(ctx, sessionID, q, compose.Fallback(compose.ReasonEmptyQuery), start)
	}

	key := cache.Key(q.Normalized, turns, s.historyTurns)
	if s.cache != nil {
		if resp, ok := s.cache.Get(key); ok {
			resp.Cached = true
			return s.finish(ctx, sessionID, q, resp, start)
		}
	}

	resp := s.route(ctx, q)

	if s.cache != nil && !resp.IsFallback {
		s.cache.Set(key, resp)
	}
	return s.finish(ctx, sessionID, q, resp, start)
}

// route runs classify, scatter-gather retrieval, and compose under the query
// deadline.
func (s *Service) route(ctx context.Context, q classify.Query) compose.Response {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	reg := s.store.Registry()
	ranking := s.classifier.Classify(q, reg)
	probes := s.classifier.Probes(ranking)
	if len(probes) == 0 {
		return compose.Fallback(compose.ReasonNoMatch)
	}
	if s.metrics != nil {
		s.metrics.ProbedPipelines.Observe(float64(len(probes)))
	}

	// One goroutine per probed pipeline. The composer must not run until
	// every dispatched retrieval has finished, so the Wait below is the
	// join barrier.
	results := make([][]retrieve.Candidate, len(probes))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range probes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t0 := time.Now()
			results[i] = s.retriever.Retrieve(q, reg.Get(name))
			if s.metrics != nil {
				s.metrics.RecordRetrieval(name, time.Since(t0))
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return compose.Fallback(compose.ReasonTimeout)
	}

	var candidates []retrieve.Candidate
	for _, r := range results {
		candidates = append(candidates, r...)
	}
	return compose.Compose(ranking, candidates, reg)
}

// finish stamps timing, records stats and history, and meters the query.
func (s *Service) finish(ctx context.Context, sessionID string, q classify.Query, resp compose.Response, start time.Time) compose.Response {
	elapsed := time.Since(start)
	resp.ProcessingTimeMs = elapsed.Milliseconds()

	reason := ""
	if resp.IsFallback {
		reason = resp.Metadata["reason"]
	}
	if s.metrics != nil {
		s.metrics.RecordQuery(resp.Pipeline, resp.Confidence, elapsed, reason)
	}
	s.stats.Record(resp)
	s.appendHistory(ctx, sessionID, q, resp)
	s.meter(sessionID, resp)

	if resp.IsFallback {
		s.log.Debug("query fell back", "session", sessionID, "reason", reason)
	} else {
		s.log.Debug("query answered",
			"session", sessionID,
			"pipeline", resp.Pipeline,
			"confidence", resp.Confidence,
			"cached", resp.Cached,
		)
	}
	return resp
}

func (s *Service) recentTurns(ctx context.Context, sessionID string) []history.Turn {
	if s.history == nil || sessionID == "" {
		return nil
	}
	turns, err := s.history.Recent(ctx, sessionID, s.historyTurns)
	if err != nil {
		s.log.Warn("history lookup failed", "session", sessionID, "error", err)
		return nil
	}
	return turns
}

func (s *Service) appendHistory(ctx context.Context, sessionID string, q classify.Query, resp compose.Response) {
	if s.history == nil || sessionID == "" || q.Raw == "" {
		return
	}
	now := time.Now()
	s.history.Append(ctx, sessionID, history.Turn{
		Role:      history.RoleUser,
		Text:      q.Raw,
		Timestamp: now,
	})
	s.history.Append(ctx, sessionID, history.Turn{
		Role:      history.RoleAssistant,
		Text:      resp.Answer,
		Pipeline:  resp.Pipeline,
		Timestamp: now,
	})
}

// meter publishes query.completed off the answer path. Saturated pool or a
// failing sink drops the event; answering always wins over metering.
func (s *Service) meter(sessionID string, resp compose.Response) {
	if s.bus == nil {
		return
	}
	event := bus.Event{
		Topic:     bus.TopicQueryCompleted,
		Timestamp: time.Now(),
		Session:   sessionID,
		Payload: map[string]any{
			"pipeline":    resp.Pipeline,
			"confidence":  resp.Confidence,
			"is_fallback": resp.IsFallback,
			"cached":      resp.Cached,
			"latency_ms":  resp.ProcessingTimeMs,
		},
	}
	if resp.IsFallback {
		event.Payload["reason"] = resp.Metadata["reason"]
	}

	err := s.meterPool.Submit(func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := s.bus.Publish(pubCtx, event)
		if s.metrics != nil {
			s.metrics.RecordBusPublish(event.Topic, err)
		}
		if err != nil {
			s.log.Warn("metering publish failed", "topic", event.Topic, "error", err)
		}
	})
	if err != nil {
		s.log.Debug("metering pool saturated, event dropped", "topic", event.Topic)
	}
}

// Reload rebuilds the registry from the corpus directory and swaps it in.
// The previous registry keeps serving if the new corpus is broken.
func (s *Service) Reload(ctx context.Context) error {
	reg, err := knowledge.Load(s.corpusDir)
	if err != nil {
		return err
	}
	s.store.Replace(reg)

	if s.metrics != nil {
		s.metrics.RecordReload(len(reg.Names()), reg.EntryCount())
	}
	if s.bus != nil {
		s.bus.Publish(ctx, bus.Event{
			Topic:     bus.TopicRegistryReloaded,
			Timestamp: time.Now(),
			Payload: map[string]any{
				"pipelines": len(reg.Names()),
				"entries":   reg.EntryCount(),
			},
		})
	}
	s.log.Info("registry reloaded", "pipelines", len(reg.Names()), "entries", reg.EntryCount())
	return nil
}

// Registry exposes the active registry for the status surface.
func (s *Service) Registry() *knowledge.Registry {
	return s.store.Registry()
}

// Stats exposes per-pipeline rolling statistics.
func (s *Service) Stats() *Stats {
	return s.stats
}

// CacheStats returns cache statistics, or false when caching is disabled.
func (s *Service) CacheStats() (cache.Stats, bool) {
	if s.cache == nil {
		return cache.Stats{}, false
	}
	return s.cache.Stats(), true
}

// ClearCache flushes the cache and emits a cache.cleared event.
func (s *Service) ClearCache(ctx context.Context) bool {
	if s.cache == nil {
		return false
	}
	s.cache.Clear()
	if s.bus != nil {
		s.bus.Publish(ctx, bus.Event{
			Topic:     bus.TopicCacheCleared,
			Timestamp: time.Now(),
		})
	}
	return true
}

// Close releases the metering pool.
func (s *Service) Close() {
	s.meterPool.Release()
}
