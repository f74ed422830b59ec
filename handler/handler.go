// Package handler defines the LLM collaborator boundary the Atomic Task
// Executor calls through (spec.md §4.5 step 4), grounded on
// original_source/src/handler/base_handler.py's role as the injected
// dependency that actually talks to a model provider. Concrete provider
// adapters are out of this module's scope (spec.md Non-goals); this package
// models only the contract plus a deterministic stub used by tests.
package handler

import "github.com/hoidn/sexpflow/sexpr"

// CallRequest is the fully-substituted prompt plus the tool surface and
// model name passed to a Handler, matching
// "execute_llm_call(prompt_with_{{params}}_substituted, tools, model)".
type CallRequest struct {
	Prompt string
	Tools  []string // names of tools this call may invoke
	Model  string
}

// Handler is the collaborator that actually performs an LLM call and
// returns a TaskResult.
type Handler interface {
	ExecuteLLMCall(req CallRequest) (sexpr.TaskResult, error)
}

// Stub is a deterministic Handler for tests and offline evaluation: it
// echoes the prompt back as content without contacting any provider.
type Stub struct {
	// Respond, if set, overrides the default echo behavior.
	Respond func(req CallRequest) (sexpr.TaskResult, error)
}

func (s Stub) ExecuteLLMCall(req CallRequest) (sexpr.TaskResult, error) {
	if s.Respond != nil {
		return s.Respond(req)
	}
	return sexpr.TaskResult{Status: sexpr.StatusComplete, Content: req.Prompt}, nil
}
