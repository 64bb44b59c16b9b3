package compose

import (
	"testing"

	"github.com/inkrouter/ink-router/internal/classify"
	"github.com/inkrouter/ink-router/internal/knowledge"
	"github.com/inkrouter/ink-router/internal/retrieve"
)

func testRegistry(t *testing.T) *knowledge.Registry {
	t.Helper()
	reg, err := knowledge.NewRegistry([]knowledge.Pipeline{
		{
			Name:          "alpha",
			MinConfidence: 0.2,
			Entries: []knowledge.Entry{
				{ID: "a1", Patterns: []string{"alpha question"}, Keywords: []string{"alpha"}, Answer: "alpha answer"},
			},
		},
		{
			Name:          "beta",
			MinConfidence: 0.5,
			Entries: []knowledge.Entry{
				{ID: "b1", Patterns: []string{"beta question"}, Keywords: []string{"beta"}, Answer: "beta answer"},
			},
		},
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return reg
}

func assertFallbackInvariant(t *testing.T, resp Response) {
	t.Helper()
	fallbackShape := resp.Confidence == 0 && resp.Pipeline == ""
	if fallbackShape != resp.IsFallback {
		t.Errorf("invariant violated: confidence=%f pipeline=%q isFallback=%v",
			resp.Confidence, resp.Pipeline, resp.IsFallback)
	}
}

func TestCompose_NoCandidates(t *testing.T) {
	resp := Compose(nil, nil, testRegistry(t))

	if !resp.IsFallback {
		t.Error("no candidates must produce a fallback")
	}
	if resp.Metadata["reason"] != ReasonNoMatch {
		t.Errorf("reason = %s, want %s", resp.Metadata["reason"], ReasonNoMatch)
	}
	assertFallbackInvariant(t, resp)
}

func TestCompose_Winner(t *testing.T) {
	reg := testRegistry(t)
	candidates := []retrieve.Candidate{
		{Pipeline: "alpha", EntryID: "a1", Score: 0.8},
		{Pipeline: "beta", EntryID: "b1", Score: 0.6},
	}

	resp := Compose(nil, candidates, reg)

	if resp.IsFallback {
		t.Fatal("expected a composed answer")
	}
	if resp.Pipeline != "alpha" || resp.Answer != "alpha answer" {
		t.Errorf("winner = %s/%s", resp.Pipeline, resp.Answer)
	}
	if resp.Confidence != 0.8 {
		t.Errorf("confidence = %f, want 0.8", resp.Confidence)
	}
	if len(resp.Sources) != 1 || resp.Sources[0] != "a1" {
		t.Errorf("sources = %v, want [a1]", resp.Sources)
	}
	assertFallbackInvariant(t, resp)
}

func TestCompose_BelowMinConfidence(t *testing.T) {
	reg := testRegistry(t)

	// Beta's floor is 0.5; a 0.41 winner must fall back.
	candidates := []retrieve.Candidate{
		{Pipeline: "beta", EntryID: "b1", Score: 0.41},
	}

	resp := Compose(nil, candidates, reg)

	if !resp.IsFallback {
		t.Fatal("score below pipeline MinConfidence must fall back")
	}
	if resp.Metadata["reason"] != ReasonLowConfidence {
		t.Errorf("reason = %s, want %s", resp.Metadata["reason"], ReasonLowConfidence)
	}
	assertFallbackInvariant(t, resp)
}

func TestCompose_TieBreakUsesClassifierRanking(t *testing.T) {
	reg := testRegistry(t)

	// Both pipelines score 0.41; the classifier ranked alpha first, so the
	// tie must resolve to alpha even though beta's candidate comes first.
	ranking := []classify.Ranked{
		{Pipeline: "alpha", Score: 0.7},
		{Pipeline: "beta", Score: 0.6},
	}
	candidates := []retrieve.Candidate{
		{Pipeline: "beta", EntryID: "b1", Score: 0.41},
		{Pipeline: "alpha", EntryID: "a1", Score: 0.41},
	}

	resp := Compose(ranking, candidates, reg)

	if resp.IsFallback {
		t.Fatal("expected a composed answer")
	}
	if resp.Pipeline != "alpha" {
		t.Errorf("tie-break winner = %s, want alpha (classifier's top pick)", resp.Pipeline)
	}
	assertFallbackInvariant(t, resp)
}

func TestCompose_UnknownPipelineCandidate(t *testing.T) {
	reg := testRegistry(t)
	candidates := []retrieve.Candidate{
		{Pipeline: "ghost", EntryID: "g1", Score: 0.9},
	}

	resp := Compose(nil, candidates, reg)
	if !resp.IsFallback {
		t.Error("candidate from unknown pipeline must fall back")
	}
	assertFallbackInvariant(t, resp)
}

func TestFallback(t *testing.T) {
	resp := Fallback(ReasonEmptyQuery)

	if !resp.IsFallback || resp.Confidence != 0 || resp.Pipeline != "" {
		t.Errorf("fallback shape wrong: %+v", resp)
	}
	if resp.Metadata["reason"] != ReasonEmptyQuery {
		t.Errorf("reason = %s, want %s", resp.Metadata["reason"], ReasonEmptyQuery)
	}
	if resp.Answer == "" {
		t.Error("fallback must still answer something")
	}
	assertFallbackInvariant(t, resp)
}
