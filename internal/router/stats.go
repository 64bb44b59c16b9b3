package router

import (
	"sync"

	"github.com/inkrouter/ink-router/internal/compose"
	"github.com/inkrouter/ink-router/internal/knowledge"
)

// Stats accumulates rolling per-pipeline answer statistics for the status
// surface.
type Stats struct {
	mu        sync.RWMutex
	pipelines map[string]*pipelineStats
	queries   int64
	fallbacks int64
	cached    int64
}

// confidenceWindow bounds the per-pipeline confidence average to recent
// answers, so the status surface reflects current behavior rather than the
// lifetime of the process.
const confidenceWindow = 50

type pipelineStats struct {
	hits   int64
	recent []float64
	next   int
}

func (ps *pipelineStats) observe(confidence float64) {
	ps.hits++
	if len(ps.recent) < confidenceWindow {
		ps.recent = append(ps.recent, confidence)
		return
	}
	ps.recent[ps.next] = confidence
	ps.next = (ps.next + 1) % confidenceWindow
}

func (ps *pipelineStats) avgConfidence() float64 {
	if len(ps.recent) == 0 {
		return 0
	}
	var sum float64
	for _, c := range ps.recent {
		sum += c
	}
	return sum / float64(len(ps.recent))
}

// NewStats creates an empty stats accumulator.
func NewStats() *Stats {
	return &Stats{pipelines: make(map[string]*pipelineStats)}
}

// Record folds one response into the running totals.
func (s *Stats) Record(resp compose.Response) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queries++
	if resp.Cached {
		s.cached++
	}
	if resp.IsFallback {
		s.fallbacks++
		return
	}

	ps, ok := s.pipelines[resp.Pipeline]
	if !ok {
		ps = &pipelineStats{}
		s.pipelines[resp.Pipeline] = ps
	}
	ps.observe(resp.Confidence)
}

// PipelineStatus is one pipeline's row in the status report.
type PipelineStatus struct {
	Name          string  `json:"name"`
	Entries       int     `json:"entries"`
	MinConfidence float64 `json:"min_confidence"`
	Answers       int64   `json:"answers"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// Report is the status surface payload.
type Report struct {
	Queries   int64            `json:"queries"`
	Fallbacks int64            `json:"fallbacks"`
	Cached    int64            `json:"cached"`
	Pipelines []PipelineStatus `json:"pipelines"`
}

// Snapshot builds a status report against the given registry, in registry
// declaration order.
func (s *Stats) Snapshot(reg *knowledge.Registry) Report {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report := Report{
		Queries:   s.queries,
		Fallbacks: s.fallbacks,
		Cached:    s.cached,
	}
	for _, p := range reg.Pipelines() {
		status := PipelineStatus{
			Name:          p.Name,
			Entries:       len(p.Entries),
			MinConfidence: p.MinConfidence,
		}
		if ps, ok := s.pipelines[p.Name]; ok && ps.hits > 0 {
			status.Answers = ps.hits
			status.AvgConfidence = ps.avgConfidence()
		}
		report.Pipelines = append(report.Pipelines, status)
	}
	return report
}
