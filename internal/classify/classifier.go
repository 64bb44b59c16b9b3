// Package classify ranks knowledge pipelines for a query before retrieval.
package classify

import (
	"sort"
	"time"

	"github.com/inkrouter/ink-router/internal/history"
	"github.com/inkrouter/ink-router/internal/knowledge"
	"github.com/inkrouter/ink-router/internal/pkg/logger"
)

// Query is a per-request view of the user's input. It is built once and
// discarded after the response is composed.
type Query struct {
	// Raw is the caller-supplied text.
	Raw string

	// Normalized is the cleaned text used for matching.
	Normalized string

	// Tokens are the matchable terms of the normalized text.
	Tokens []string

	// History is read-only conversation context.
	History []history.Turn

	// Timestamp is when the query arrived.
	Timestamp time.Time
}

// NewQuery normalizes and tokenizes raw text into a Query.
func NewQuery(raw string, turns []history.Turn) Query {
	normalized := Normalize(raw)
	return Query{
		Raw:        raw,
		Normalized: normalized,
		Tokens:     Tokenize(normalized),
		History:    turns,
		Timestamp:  time.Now(),
	}
}

// Empty reports whether the query has no matchable content.
func (q *Query) Empty() bool {
	return q.Normalized == ""
}

// Ranked is one pipeline's relevance for a query.
type Ranked struct {
	Pipeline string  `json:"pipeline"`
	Score    float64 `json:"score"`
}

// Config tunes the classifier.
type Config struct {
	// ProbeMargin is the score distance from the top pipeline within which
	// additional pipelines are probed by the retriever.
	ProbeMargin float64

	// ContinuityBoost is added to the pipeline that answered the last
	// assistant turn, preserving topical continuity.
	ContinuityBoost float64

	// TriggerWeight is the extra score a pipeline gets when the query
	// contains one of its trigger keywords.
	TriggerWeight float64
}

// DefaultConfig returns sensible classifier defaults.
func DefaultConfig() Config {
	return Config{
		ProbeMargin:     0.15,
		ContinuityBoost: 0.1,
		TriggerWeight:   0.25,
	}
}

// Classifier ranks pipelines by relevance to a query.
type Classifier struct {
	cfg Config
	log *logger.Logger
}

// New creates a classifier.
func New(cfg Config, log *logger.Logger) *Classifier {
	if cfg.ProbeMargin == 0 && cfg.ContinuityBoost == 0 && cfg.TriggerWeight == 0 {
		cfg = DefaultConfig()
	}
	return &Classifier{cfg: cfg, log: log}
}

// Classify ranks every registered pipeline for the query, descending by
// score. Ties keep registry declaration order so ranking is deterministic.
// An empty query yields an empty ranking.
func (c *Classifier) Classify(q Query, reg *knowledge.Registry) []Ranked {
	if q.Empty() || len(q.Tokens) == 0 {
		return nil
	}

	prevPipeline := history.LastAssistantPipeline(q.History)

	names := reg.Names()
	ranked := make([]Ranked, 0, len(names))
	for _, name := range names {
		score := c.score(q, reg, name, prevPipeline)
		ranked = append(ranked, Ranked{Pipeline: name, Score: score})
	}

	// Stable sort keeps declaration order on equal scores.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	c.log.Debug("Classified query",
		"tokens", len(q.Tokens),
		"top", ranked[0].Pipeline,
		"top_score", ranked[0].Score,
		"previous_pipeline", prevPipeline,
	)

	return ranked
}

func (c *Classifier) score(q Query, reg *knowledge.Registry, name, prevPipeline string) float64 {
	keywords := reg.KeywordSet(name)

	matched := 0
	for _, tok := range q.Tokens {
		if keywords[tok] {
			matched++
		}
	}
	score := float64(matched) / float64(len(q.Tokens))

	// Trigger keywords signal the pipeline more strongly than plain overlap.
	pipeline := reg.Get(name)
	for _, trigger := range pipeline.Triggers {
		if containsToken(q.Tokens, trigger) {
			score += c.cfg.TriggerWeight
			break
		}
	}

	// Topical continuity: lean toward the pipeline that answered last.
	if prevPipeline != "" && prevPipeline == name {
		score += c.cfg.ContinuityBoost
	}

	if score > 1 {
		score = 1
	}
	return score
}

func containsToken(tokens []string, want string) bool {
	for _, tok := range tokens {
		if tok == want {
			return true
		}
	}
	return false
}

// Probes returns the pipelines worth retrieving from: the top-ranked pipeline
// plus any scoring within the probe margin of it. Zero-score pipelines are
// never probed.
func (c *Classifier) Probes(ranked []Ranked) []string {
	if len(ranked) == 0 || ranked[0].Score <= 0 {
		return nil
	}

	top := ranked[0].Score
	probes := make([]string, 0, len(ranked))
	for _, r := range ranked {
		if r.Score <= 0 {
			break
		}
		if top-r.Score > c.cfg.ProbeMargin {
			break
		}
		probes = append(probes, r.Pipeline)
	}
	return probes
}
