// Package compose selects the winning candidate across pipelines and builds
// the final response. Every answer passes through the threshold check here;
// no candidate reaches the caller directly.
package compose

import (
	"github.com/inkrouter/ink-router/internal/classify"
	"github.com/inkrouter/ink-router/internal/knowledge"
	"github.com/inkrouter/ink-router/internal/retrieve"
)

// Fallback reasons recorded in response metadata so the calling UI can prompt
// differently per case.
const (
	ReasonEmptyQuery    = "empty_query"
	ReasonTimeout       = "timeout"
	ReasonNoMatch       = "no_match"
	ReasonLowConfidence = "low_confidence"
)

// FallbackAnswer is the generic, pipeline-agnostic message.
const FallbackAnswer = "I'm not sure about that one. Could you rephrase, or ask about " +
	"booking, pricing, styles, or aftercare?"

// Response is the final answer returned to the caller. Immutable once built.
type Response struct {
	// Answer is the text shown to the user.
	Answer string `json:"answer"`

	// Confidence is a [0,1] heuristic ranking signal, not a probability.
	Confidence float64 `json:"confidence"`

	// Pipeline is the pipeline that produced the answer; empty on fallback.
	Pipeline string `json:"pipeline,omitempty"`

	// Sources are the knowledge entry IDs backing the answer.
	Sources []string `json:"sources,omitempty"`

	// IsFallback marks the zero-confidence, pipeline-less answer.
	IsFallback bool `json:"is_fallback"`

	// Metadata carries response attributes such as the fallback reason.
	Metadata map[string]string `json:"metadata,omitempty"`

	// ProcessingTimeMs is the end-to-end answer latency.
	ProcessingTimeMs int64 `json:"processing_time_ms"`

	// Cached marks responses served from the cache layer.
	Cached bool `json:"cached,omitempty"`
}

// Fallback builds a fallback response with the given reason.
// Invariant: confidence 0 and empty pipeline if and only if IsFallback.
func Fallback(reason string) Response {
	return Response{
		Answer:     FallbackAnswer,
		Confidence: 0,
		IsFallback: true,
		Metadata:   map[string]string{"reason": reason},
	}
}

// Compose picks the single best candidate across all probed pipelines. The
// winner must clear its owning pipeline's MinConfidence; otherwise the caller
// gets a fallback. Equal top scores from different pipelines resolve by the
// classifier's ranking, restoring topical intent over raw lexical score.
func Compose(ranking []classify.Ranked, candidates []retrieve.Candidate, reg *knowledge.Registry) Response {
	if len(candidates) == 0 {
		return Fallback(ReasonNoMatch)
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Score > best.Score {
			best = c
			continue
		}
		if c.Score == best.Score && c.Pipeline != best.Pipeline {
			if rankOf(ranking, c.Pipeline) < rankOf(ranking, best.Pipeline) {
				best = c
			}
		}
	}

	pipeline := reg.Get(best.Pipeline)
	if pipeline == nil {
		// Candidate from a pipeline the registry no longer knows; treat as
		// no match rather than answering with unverifiable provenance.
		return Fallback(ReasonNoMatch)
	}

	if best.Score < pipeline.MinConfidence {
		return Fallback(ReasonLowConfidence)
	}

	entry := pipeline.EntryByID(best.EntryID)
	if entry == nil {
		return Fallback(ReasonNoMatch)
	}

	resp := Response{
		Answer:     entry.Answer,
		Confidence: best.Score,
		Pipeline:   best.Pipeline,
		Sources:    []string{best.EntryID},
		IsFallback: false,
	}
	if topic, ok := entry.Metadata["topic"]; ok {
		resp.Metadata = map[string]string{"topic": topic}
	}
	return resp
}

// rankOf returns the classifier rank index of a pipeline, or a sentinel past
// the end for unranked pipelines.
func rankOf(ranking []classify.Ranked, pipeline string) int {
	for i, r := range ranking {
		if r.Pipeline == pipeline {
			return i
		}
	}
	return len(ranking)
}
