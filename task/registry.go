package task

import (
	"fmt"
	"sync"

	"github.com/hoidn/sexpflow/taskerr"
)

// Registry stores atomic templates keyed by name, with a secondary
// "atomic:<subtype>" index, grounded exactly on
// original_source/src/task_system/template_registry.py's register()/find():
// only atomic templates register; re-registering a name replaces it and
// retargets the index, removing any stale index entry for its old subtype.
type Registry struct {
	mu       sync.RWMutex
	byName   map[string]*Template
	byTypeSub map[string]string // "atomic:<subtype>" -> name
}

func NewRegistry() *Registry {
	return &Registry{
		byName:    make(map[string]*Template),
		byTypeSub: make(map[string]string),
	}
}

// Register validates and stores t. Returns an error (instead of the
// Python original's bool) naming the validation failure, matching spec.md
// §4.4's required-fields list.
func (r *Registry) Register(t *Template) error {
	if t.Type != "atomic" {
		return fmt.Errorf("template %q is not atomic (type=%q); only atomic templates can be registered", t.Name, t.Type)
	}
	if t.Params == nil {
		return fmt.Errorf("atomic template %q must have a params definition", t.Name)
	}
	if t.Name == "" || t.Subtype == "" {
		return fmt.Errorf("atomic template missing name or subtype")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	typeSubKey := fmt.Sprintf("%s:%s", t.Type, t.Subtype)

	// Remove a stale index entry if this name was previously registered
	// under a different subtype (template_registry.py's re-registration
	// path).
	var staleKey string
	for key, name := range r.byTypeSub {
		if name == t.Name {
			staleKey = key
			break
		}
	}
	if staleKey != "" && staleKey != typeSubKey {
		delete(r.byTypeSub, staleKey)
	}

	r.byName[t.Name] = t
	r.byTypeSub[typeSubKey] = t.Name
	return nil
}

// Find resolves identifier as either a plain name or an "atomic:<subtype>"
// key, returning the same template either way.
func (r *Registry) Find(identifier string) (*Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if t, ok := r.byName[identifier]; ok {
		return t, true
	}
	if name, ok := r.byTypeSub[identifier]; ok {
		if t, ok := r.byName[name]; ok {
			return t, true
		}
	}
	return nil, false
}

// All returns every registered atomic template, used by matching/listing
// operations.
func (r *Registry) All() []*Template {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Template, 0, len(r.byName))
	for _, t := range r.byName {
		out = append(out, t)
	}
	return out
}

// notFoundError builds the TASK_FAILURE the dispatcher and executor return
// when an identifier resolves to nothing.
func notFoundError(identifier string) *taskerr.Error {
	return taskerr.TaskFailure(identifier, taskerr.ReasonTemplateNotFound, "template not found: %s", identifier)
}
