// Package knowledge holds the static per-pipeline knowledge corpus and the
// registry built from it at startup.
package knowledge

// Canonical pipeline names. The built-in corpus registers exactly these;
// operator corpus files may extend them.
const (
	PipelineTattoo          = "tattoo_knowledge"
	PipelineCustomerService = "customer_service"
	PipelineSales           = "sales"
	PipelineConversation    = "conversation"
	PipelineAnalytics       = "analytics"
)

// Entry is a single curated knowledge item. Entries are immutable after load
// and owned exclusively by their pipeline.
type Entry struct {
	// ID is a stable identifier, derived from the first pattern when the
	// corpus file does not set one.
	ID string `yaml:"id" json:"id"`

	// Pipeline is the owning pipeline name.
	Pipeline string `yaml:"-" json:"pipeline"`

	// Patterns are phrases this entry answers, matched against the
	// normalized query.
	Patterns []string `yaml:"patterns" json:"patterns"`

	// Keywords are individual terms that signal this entry.
	Keywords []string `yaml:"keywords" json:"keywords"`

	// Answer is the canonical answer text.
	Answer string `yaml:"answer" json:"answer"`

	// Metadata carries optional free-form entry attributes.
	Metadata map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// Malformed reports whether the entry cannot participate in matching.
// Malformed entries are skipped by the retriever, never fatal.
func (e *Entry) Malformed() bool {
	return len(e.Patterns) == 0 && len(e.Keywords) == 0
}

// Pipeline is a named, topic-scoped partition of entries with its own
// confidence floor. Read-only after registry construction.
type Pipeline struct {
	// Name identifies the pipeline.
	Name string `yaml:"name" json:"name"`

	// MinConfidence is the floor a winning candidate must clear; below it
	// the composer returns a fallback instead.
	MinConfidence float64 `yaml:"min_confidence" json:"min_confidence"`

	// Triggers are keywords that strongly indicate this pipeline during
	// classification (e.g. "book" for customer_service).
	Triggers []string `yaml:"triggers" json:"triggers"`

	// Entries are the pipeline's knowledge items.
	Entries []Entry `yaml:"entries" json:"entries"`
}

// EntryByID returns the entry with the given ID, or nil.
func (p *Pipeline) EntryByID(id string) *Entry {
	for i := range p.Entries {
		if p.Entries[i].ID == id {
			return &p.Entries[i]
		}
	}
	return nil
}
