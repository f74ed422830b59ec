// Package context implements conversation history (history.go) and the
// context-generation subsystem contract consumed by the `get-context`
// primitive and the Atomic Task Executor's file-path resolution step
// (spec.md §4.5 step 3, §4.8), grounded on
// original_source/src/memory/context_generation.py's
// ContextGenerationInput/AssociativeMatchResult pydantic models.
package context

// GenerationInput is the standardized request passed to a Subsystem when
// resolving file context for a task (spec.md §4.8).
type GenerationInput struct {
	TemplateDescription string
	TemplateType        string
	TemplateSubtype     string
	Inputs              map[string]any
	ContextRelevance    map[string]bool
	InheritedContext    string
	PreviousOutputs     []string
	FreshContext        string // "enabled" | "disabled", default "enabled"
	HistoryContext      string

	// MatchingStrategy is the `get-context` `matching_strategy` option
	// (spec.md §4.8): "content" or "metadata". Empty means the caller did
	// not specify one.
	MatchingStrategy string
}

// NewGenerationInput applies the same defaulting original_source's __init__
// does: relevance defaults to "include everything" when the caller didn't
// specify it explicitly.
func NewGenerationInput(in GenerationInput) GenerationInput {
	if in.FreshContext == "" {
		in.FreshContext = "enabled"
	}
	if in.ContextRelevance == nil && len(in.Inputs) > 0 {
		in.ContextRelevance = make(map[string]bool, len(in.Inputs))
		for k := range in.Inputs {
			in.ContextRelevance[k] = true
		}
	}
	return in
}

// Match is one file match with relevance and optional score, matching
// MatchTuple.
type Match struct {
	Path      string
	Relevance string
	Score     *float64
}

// AssociativeMatchResult is the standardized result of a context retrieval
// operation: a free-text summary plus a ranked file match list.
type AssociativeMatchResult struct {
	Context string
	Matches []Match
}

// Subsystem is the boundary the evaluator's `get-context` primitive and the
// Atomic Task Executor's freshContext=enabled file resolution call through.
// Its concrete implementation (an embedding index, a metadata index, a
// heuristic matcher) is out of this module's scope — spec.md's Non-goals
// exclude context-generation internals; only the contract is modeled here.
type Subsystem interface {
	GetContext(in GenerationInput) (AssociativeMatchResult, error)
}

// NoopSubsystem is a Subsystem that always returns an empty context,
// suitable as a default when no real subsystem is configured — fresh
// context resolution then yields no file paths, without an error, rather
// than the evaluator panicking on a nil interface.
type NoopSubsystem struct{}

func (NoopSubsystem) GetContext(GenerationInput) (AssociativeMatchResult, error) {
	return AssociativeMatchResult{Context: ""}, nil
}
