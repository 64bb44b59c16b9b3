package server

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/inkrouter/ink-router/internal/history"
	"github.com/inkrouter/ink-router/internal/pkg/errors"
)

// askRequest is the POST /v1/ask body. History beyond what the session store
// remembers can be supplied inline; the session ID is how a conversational
// client gets continuity for free.
type askRequest struct {
	Query   string    `json:"query"`
	Session string    `json:"session,omitempty"`
	History []askTurn `json:"history,omitempty"`
}

// askTurn is one inline conversation turn. Pipeline is only meaningful on
// assistant turns, where it carries which pipeline produced the answer.
type askTurn struct {
	Role     string `json:"role"`
	Text     string `json:"text"`
	Pipeline string `json:"pipeline,omitempty"`
}

func (a askTurn) toTurn() history.Turn {
	role := history.RoleUser
	if a.Role == history.RoleAssistant {
		role = history.RoleAssistant
	}
	return history.Turn{Role: role, Text: a.Text, Pipeline: a.Pipeline}
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, errors.New(errors.CodeInvalidRequest, "invalid JSON body"))
		return
	}
	if len(req.Query) > 4096 {
		s.fail(w, errors.New(errors.CodeValidation, "query too long"))
		return
	}

	var inline []history.Turn
	for _, t := range req.History {
		inline = append(inline, t.toTurn())
	}

	resp := s.service.AnswerWith(r.Context(), req.Session, req.Query, inline)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePipelines(w http.ResponseWriter, r *http.Request) {
	report := s.service.Stats().Snapshot(s.service.Registry())

	out := map[string]any{
		"queries":   report.Queries,
		"fallbacks": report.Fallbacks,
		"cached":    report.Cached,
		"pipelines": report.Pipelines,
	}
	if stats, ok := s.service.CacheStats(); ok {
		out["cache_hit_rate"] = stats.HitRate()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePipeline(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	p := s.service.Registry().Get(name)
	if p == nil {
		s.fail(w, errors.NotFoundError("pipeline "+name))
		return
	}

	entries := make([]map[string]any, 0, len(p.Entries))
	for i := range p.Entries {
		e := &p.Entries[i]
		entries = append(entries, map[string]any{
			"id":       e.ID,
			"patterns": e.Patterns,
			"keywords": e.Keywords,
			"topic":    e.Metadata["topic"],
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":           p.Name,
		"min_confidence": p.MinConfidence,
		"triggers":       p.Triggers,
		"entries":        entries,
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Reload(r.Context()); err != nil {
		s.log.Error("manual reload failed", "error", err)
		s.fail(w, err)
		return
	}
	reg := s.service.Registry()
	writeJSON(w, http.StatusOK, map[string]any{
		"reloaded":  true,
		"pipelines": len(reg.Names()),
		"entries":   reg.EntryCount(),
	})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, ok := s.service.CacheStats()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":  true,
		"size":     stats.Size,
		"max_size": stats.MaxSize,
		"hits":     stats.Hits,
		"misses":   stats.Misses,
		"hit_rate": stats.HitRate(),
	})
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	cleared := s.service.ClearCache(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"cleared": cleared})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reg := s.store.Registry()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"version":   s.version,
		"pipelines": len(reg.Names()),
		"entries":   reg.EntryCount(),
		"time":      time.Now().UTC().Format(time.RFC3339),
	})
}

// fail counts the error by code before writing it, so operators can tell
// bad requests apart from reload failures without scraping logs.
func (s *Server) fail(w http.ResponseWriter, err error) {
	if s.metrics != nil {
		code := errors.CodeInternal
		var appErr *errors.AppError
		if stderrors.As(err, &appErr) {
			code = appErr.Code
		}
		s.metrics.QueryErrors.WithLabels(code).Inc()
	}
	errors.WriteError(w, err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(v)
}
