// Package retrieve matches a query against one pipeline's knowledge entries
// and scores the candidates.
package retrieve

import (
	"sort"
	"strings"

	"github.com/inkrouter/ink-router/internal/classify"
	"github.com/inkrouter/ink-router/internal/knowledge"
	"github.com/inkrouter/ink-router/internal/pkg/logger"
)

// Candidate is an unconfirmed, scored match between a query and one entry.
// Candidates are ephemeral: produced here, consumed by the composer.
type Candidate struct {
	Pipeline        string   `json:"pipeline"`
	EntryID         string   `json:"entry_id"`
	Score           float64  `json:"score"`
	MatchedKeywords []string `json:"matched_keywords,omitempty"`
}

// Config tunes retrieval scoring.
type Config struct {
	// ScoreFloor drops candidates below it. Precision over recall: a wrong
	// confident answer is worse than an honest fallback.
	ScoreFloor float64

	// ShortQueryPenalty is subtracted for queries under three tokens to
	// avoid spurious high-confidence matches on trivial input.
	ShortQueryPenalty float64
}

// DefaultConfig returns sensible retrieval defaults.
func DefaultConfig() Config {
	return Config{
		ScoreFloor:        0.2,
		ShortQueryPenalty: 0.1,
	}
}

// Score weights: keyword overlap carries more than pattern containment.
const (
	keywordWeight = 0.6
	patternWeight = 0.4

	shortQueryTokens = 3
)

// Retriever scores a query against pipeline entries.
type Retriever struct {
	cfg Config
	log *logger.Logger
}

// New creates a retriever.
func New(cfg Config, log *logger.Logger) *Retriever {
	if cfg.ScoreFloor == 0 && cfg.ShortQueryPenalty == 0 {
		cfg = DefaultConfig()
	}
	return &Retriever{cfg: cfg, log: log}
}

// Retrieve scores every entry in the pipeline against the query and returns
// candidates above the floor, best first. Malformed entries are skipped and
// logged; one corrupt entry never fails the pipeline.
func (r *Retriever) Retrieve(q classify.Query, p *knowledge.Pipeline) []Candidate {
	if q.Empty() || len(q.Tokens) == 0 {
		return nil
	}

	candidates := make([]Candidate, 0, 4)
	for i := range p.Entries {
		e := &p.Entries[i]
		if e.Malformed() {
			r.log.Warn("Skipping malformed knowledge entry",
				"pipeline", p.Name,
				"entry", e.ID,
			)
			continue
		}

		score, matched := r.scoreEntry(q, e)
		if score <= r.cfg.ScoreFloor {
			continue
		}

		candidates = append(candidates, Candidate{
			Pipeline:        p.Name,
			EntryID:         e.ID,
			Score:           score,
			MatchedKeywords: matched,
		})
	}

	// Stable sort keeps entry declaration order on equal scores.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	return candidates
}

// scoreEntry combines keyword overlap, pattern containment, and a penalty for
// very short queries into a [0,1] score.
func (r *Retriever) scoreEntry(q classify.Query, e *knowledge.Entry) (float64, []string) {
	matched := matchedKeywords(q.Tokens, e.Keywords)
	overlap := float64(len(matched)) / float64(len(q.Tokens))

	pattern := patternScore(q, e.Patterns)

	score := keywordWeight*overlap + patternWeight*pattern

	if len(q.Tokens) < shortQueryTokens {
		score -= r.cfg.ShortQueryPenalty
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, matched
}

func matchedKeywords(tokens, keywords []string) []string {
	if len(keywords) == 0 {
		return nil
	}

	set := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		set[strings.ToLower(kw)] = true
	}

	var matched []string
	seen := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		if set[tok] && !seen[tok] {
			matched = append(matched, tok)
			seen[tok] = true
		}
	}
	return matched
}

// patternScore is the best containment score across the entry's patterns:
// 1.0 for direct substring containment either way, otherwise the fraction of
// pattern tokens present in the query.
func patternScore(q classify.Query, patterns []string) float64 {
	best := 0.0
	for _, p := range patterns {
		p = classify.Normalize(p)
		if p == "" {
			continue
		}

		if strings.Contains(q.Normalized, p) || strings.Contains(p, q.Normalized) {
			return 1.0
		}

		pTokens := classify.Tokenize(p)
		if len(pTokens) == 0 {
			continue
		}
		hits := 0
		for _, pt := range pTokens {
			for _, qt := range q.Tokens {
				if pt == qt {
					hits++
					break
				}
			}
		}
		if s := float64(hits) / float64(len(pTokens)); s > best {
			best = s
		}
	}
	return best
}
