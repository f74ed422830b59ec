// Package tools implements the direct tool surface: a registry of named,
// JSON-schema-described executors that are callable both from S-expressions
// and from an LLM's tool-calling interface, grounded on
// _examples/kadirpekel-hector/tools/interfaces.go's Tool/ToolInfo shape,
// adapted to return sexpr.TaskResult (spec.md §3/§6's universal envelope)
// instead of hector's ToolResult.
package tools

import (
	"fmt"
	"sync"

	"github.com/hoidn/sexpflow/sexpr"
	"github.com/hoidn/sexpflow/taskerr"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Parameter describes one entry of a tool's input schema (spec.md §3 "Tool
// spec"), mirroring hector's ToolParameter but trimmed to what the schema
// validator needs.
type Parameter struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

// Spec is a tool's registered metadata: name, description, and a
// JSON-schema-style input schema (type:"object", properties, required).
type Spec struct {
	Name        string
	Description string
	Parameters  []Parameter
}

// Executor is the host callable paired with a Spec. It receives the
// keyword-argument mapping and returns the universal TaskResult envelope.
type Executor func(args map[string]any) (sexpr.TaskResult, error)

type entry struct {
	spec     Spec
	executor Executor
	schema   *jsonschema.Schema
}

// Registry is a concurrency-safe name -> (spec, executor) store (spec.md §3
// "Tool Registry"), following the RWMutex pattern of
// _examples/kadirpekel-hector/pkg/registry/registry.go.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register compiles spec's schema and stores (spec, executor) under
// spec.Name, overwriting any prior registration.
func (r *Registry) Register(spec Spec, executor Executor) error {
	schema, err := compileSchema(spec)
	if err != nil {
		return fmt.Errorf("tool %q: %w", spec.Name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[spec.Name] = &entry{spec: spec, executor: executor, schema: schema}
	return nil
}

// Lookup returns the spec and executor registered under name.
func (r *Registry) Lookup(name string) (Spec, Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return Spec{}, nil, false
	}
	return e.spec, e.executor, true
}

// List returns the specs of every registered tool.
func (r *Registry) List() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Spec, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.spec)
	}
	return out
}

// Invoke validates args against the tool's schema, then runs its executor.
// Tools that fail SHOULD set status=FAILED with structured details under
// notes.error (spec.md §6); callers that catch a Go error should still wrap
// it with taskerr.AsError before surfacing it.
func (r *Registry) Invoke(name string, args map[string]any) (sexpr.TaskResult, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		err := taskerr.TaskFailure(name, taskerr.ReasonTemplateNotFound, "unknown tool: %s", name)
		return failResult(err), err
	}
	if err := e.schema.Validate(toJSONLike(args)); err != nil {
		terr := taskerr.TaskFailure(name, taskerr.ReasonInputValidationFailure, "tool %q input validation failed: %s", name, err)
		return failResult(terr), terr
	}
	return e.executor(args)
}

func failResult(err *taskerr.Error) sexpr.TaskResult {
	return sexpr.TaskResult{
		Status:  sexpr.StatusFailed,
		Content: err.Message,
		Notes:   map[string]any{"error": err.ToDict()},
	}
}

func compileSchema(spec Spec) (*jsonschema.Schema, error) {
	properties := map[string]any{}
	required := []string{}
	for _, p := range spec.Parameters {
		properties[p.Name] = map[string]any{"type": jsonType(p.Type), "description": p.Description}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	raw := map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
	compiler := jsonschema.NewCompiler()
	const resource = "tool-schema.json"
	if err := compiler.AddResource(resource, toJSONLike(raw)); err != nil {
		return nil, err
	}
	return compiler.Compile(resource)
}

func jsonType(t string) string {
	if t == "" {
		return "string"
	}
	return t
}

// toJSONLike returns v unchanged; it does no conversion. compileSchema
// passes its string-keyed schema map through it to Compiler.AddResource.
func toJSONLike(v any) any {
	return v
}
