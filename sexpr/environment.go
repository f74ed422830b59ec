package sexpr

import (
	"sync"

	"github.com/hoidn/sexpflow/taskerr"
)

// Environment is a lexically scoped binding frame with an optional parent,
// grounded on original_source/src/sexp_evaluator/sexp_environment.py. One
// logical writer owns a given frame at a time (spec.md §5); the mutex
// guards concurrent reads from closures shared across goroutines — the
// evaluator itself never interleaves two evaluations of the same frame.
type Environment struct {
	mu       sync.RWMutex
	bindings map[string]Value
	parent   *Environment
}

// NewEnvironment creates a top-level environment with no parent.
func NewEnvironment() *Environment {
	return &Environment{bindings: make(map[string]Value)}
}

// NewEnvironmentWith creates a top-level environment seeded with bindings.
func NewEnvironmentWith(bindings map[string]Value) *Environment {
	if bindings == nil {
		bindings = make(map[string]Value)
	}
	return &Environment{bindings: bindings}
}

// Lookup walks the parent chain, returning the nearest binding. Fails
// UnboundSymbol if absent in this frame and all ancestors (spec.md §4.2).
func (e *Environment) Lookup(name string) (Value, error) {
	for env := e; env != nil; env = env.parentRef() {
		env.mu.RLock()
		v, ok := env.bindings[name]
		env.mu.RUnlock()
		if ok {
			return v, nil
		}
	}
	return Value{}, taskerr.UnboundSymbol("", name)
}

func (e *Environment) parentRef() *Environment {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.parent
}

// Define unconditionally writes into the current frame; no error on
// redefine (spec.md §4.2).
func (e *Environment) Define(name string, value Value) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bindings[name] = value
}

// Set walks the parent chain and updates the first frame binding name;
// fails UnboundSymbol if none do (spec.md §4.2).
func (e *Environment) Set(name string, value Value) error {
	for env := e; env != nil; env = env.parentRef() {
		env.mu.Lock()
		if _, ok := env.bindings[name]; ok {
			env.bindings[name] = value
			env.mu.Unlock()
			return nil
		}
		env.mu.Unlock()
	}
	return taskerr.UnboundSymbol("", name).WithDetails(map[string]any{"op": "set!"})
}

// Extend returns a new child frame whose parent is e; never mutates e
// (spec.md §4.2). A closure captures the environment at definition time;
// subsequent mutations to ancestor frames via Set are visible through that
// captured reference, because Extend never copies ancestor bindings.
func (e *Environment) Extend(bindings map[string]Value) *Environment {
	if bindings == nil {
		bindings = make(map[string]Value)
	}
	return &Environment{bindings: bindings, parent: e}
}

// LocalBindings returns a snapshot copy of the bindings defined directly in
// this scope (debug/inspection helper, mirrors get_local_bindings).
func (e *Environment) LocalBindings() map[string]Value {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]Value, len(e.bindings))
	for k, v := range e.bindings {
		out[k] = v
	}
	return out
}
