// Package server wires the router, cache, bus, and metrics behind the HTTP
// surface.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/inkrouter/ink-router/internal/bus"
	"github.com/inkrouter/ink-router/internal/cache"
	"github.com/inkrouter/ink-router/internal/classify"
	"github.com/inkrouter/ink-router/internal/config"
	"github.com/inkrouter/ink-router/internal/history"
	"github.com/inkrouter/ink-router/internal/knowledge"
	"github.com/inkrouter/ink-router/internal/metrics"
	"github.com/inkrouter/ink-router/internal/pkg/logger"
	"github.com/inkrouter/ink-router/internal/pkg/middleware"
	"github.com/inkrouter/ink-router/internal/retrieve"
	"github.com/inkrouter/ink-router/internal/router"
)

// Server hosts the HTTP surface and owns the lifecycle of every service
// behind it.
type Server struct {
	cfg        *config.Config
	log        *logger.Logger
	version    string
	httpServer *http.Server

	service  *router.Service
	store    *knowledge.Store
	cache    cache.Cache
	bus      bus.Bus
	sessions *history.MemoryStore
	metrics  *metrics.Metrics
	watcher  *knowledge.Watcher
	limiter  *middleware.RateLimiter

	cancelBackground context.CancelFunc

	mu      sync.RWMutex
	started bool
}

// New builds the server and all its services from configuration. Corpus
// errors are fatal here; nothing else is.
func New(cfg *config.Config, version string, log *logger.Logger) (*Server, error) {
	reg, err := knowledge.Load(cfg.Knowledge.CorpusDir)
	if err != nil {
		return nil, fmt.Errorf("loading corpus: %w", err)
	}
	store := knowledge.NewStore(reg)

	s := &Server{
		cfg:     cfg,
		log:     log,
		version: version,
		store:   store,
	}

	if cfg.Observability.MetricsEnabled {
		s.metrics = metrics.New()
		s.metrics.RecordReload(len(reg.Names()), reg.EntryCount())
	}

	c, err := cache.New(cfg.Cache, log)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}
	s.cache = c
	if s.metrics != nil {
		switch mc := c.(type) {
		case *cache.MemoryCache:
			mc.SetMetrics(s.metrics)
		case *cache.RedisCache:
			mc.SetMetrics(s.metrics)
		}
	}

	b, err := bus.New(cfg.Bus, log)
	if err != nil {
		return nil, fmt.Errorf("creating bus: %w", err)
	}
	s.bus = b
	// In-process usage sink: metered queries land in the log and metrics
	// even when no external consumer is attached to the bus.
	s.bus.Subscribe(bus.TopicQueryCompleted, s.usageSink)

	s.sessions = history.NewMemoryStore(0)

	classifier := classify.New(classify.Config{
		ProbeMargin:     cfg.Classify.ProbeMargin,
		ContinuityBoost: cfg.Classify.ContinuityBoost,
		TriggerWeight:   cfg.Classify.TriggerWeight,
	}, log)
	retriever := retrieve.New(retrieve.Config{
		ScoreFloor:        cfg.Retrieve.ScoreFloor,
		ShortQueryPenalty: cfg.Retrieve.ShortQueryPenalty,
	}, log)

	svc, err := router.New(router.Deps{
		Store:      store,
		Classifier: classifier,
		Retriever:  retriever,
		Cache:      s.cache,
		Bus:        s.bus,
		History:    s.sessions,
		Metrics:    s.metrics,
		Logger:     log,
		CorpusDir:  cfg.Knowledge.CorpusDir,
		Config:     cfg.Router,
	})
	if err != nil {
		return nil, fmt.Errorf("creating router service: %w", err)
	}
	s.service = svc

	if cfg.Knowledge.Watch && cfg.Knowledge.CorpusDir != "" {
		s.watcher = knowledge.NewWatcher(knowledge.WatcherConfig{
			Dir:      cfg.Knowledge.CorpusDir,
			Store:    store,
			Debounce: time.Duration(cfg.Knowledge.WatchDebounceMs) * time.Millisecond,
			OnReload: func(reg *knowledge.Registry) {
				if s.metrics != nil {
					s.metrics.RecordReload(len(reg.Names()), reg.EntryCount())
				}
			},
		}, log)
	}

	if cfg.Security.RateLimit > 0 {
		s.limiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RequestsPerSecond: float64(cfg.Security.RateLimit),
			Burst:             cfg.Security.RateLimit * 2,
			CleanupInterval:   time.Minute,
		})
	}

	return s, nil
}

// Start runs background loops and serves HTTP. It blocks until the listener
// fails or Stop is called.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("server already started")
	}
	s.started = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelBackground = cancel

	if s.watcher != nil {
		go func() {
			if err := s.watcher.Start(ctx); err != nil && err != context.Canceled {
				s.log.Warn("corpus watcher stopped, hot reload disabled", "error", err)
			}
		}()
	}
	if s.metrics != nil {
		go metrics.NewCollector(s.metrics, 15*time.Second).Run(ctx)
	}

	s.httpServer = &http.Server{
		Addr:         s.cfg.Address(),
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.log.Info("starting HTTP server",
		"addr", s.cfg.Address(),
		"pipelines", len(s.store.Registry().Names()),
		"entries", s.store.Registry().EntryCount(),
	)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts down the server and closes every service.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}

	s.log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Error("HTTP shutdown error", "error", err)
		}
	}

	if s.cancelBackground != nil {
		s.cancelBackground()
	}
	s.service.Close()
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.log.Warn("cache close error", "error", err)
		}
	}
	if err := s.bus.Close(); err != nil {
		s.log.Warn("bus close error", "error", err)
	}

	s.started = false
	s.log.Info("server stopped")
	return nil
}

// Service exposes the answer service, used by the CLI's one-shot mode.
func (s *Server) Service() *router.Service {
	return s.service
}

// routes builds the route table and middleware chain.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/ask", s.handleAsk)
	mux.HandleFunc("GET /v1/pipelines", s.handlePipelines)
	mux.HandleFunc("GET /v1/pipelines/{name}", s.handlePipeline)
	mux.HandleFunc("POST /v1/reload", s.handleReload)
	mux.HandleFunc("GET /v1/cache/stats", s.handleCacheStats)
	mux.HandleFunc("DELETE /v1/cache", s.handleCacheClear)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	if s.metrics != nil {
		path := s.cfg.Observability.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, metrics.Handler(s.metrics))
	}

	var handler http.Handler = mux
	if s.cfg.Security.APIKey != "" {
		handler = middleware.APIKeyAuth(s.cfg.Security.APIKey)(handler)
	}
	if s.limiter != nil {
		handler = s.limiter.Middleware(handler)
	}
	if s.metrics != nil {
		handler = metrics.HTTPMiddleware(s.metrics, handler)
	}
	return s.logRequests(handler)
}

// usageSink consumes query.completed events off the metering bus.
func (s *Server) usageSink(_ context.Context, ev bus.Event) {
	if s.metrics != nil {
		s.metrics.RecordBusConsume(ev.Topic)
	}
	s.log.Debug("query metered",
		"session", ev.Session,
		"pipeline", ev.Payload["pipeline"],
		"fallback", ev.Payload["is_fallback"],
	)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		s.log.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
