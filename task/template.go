// Package task implements the Template Registry and the Atomic Task
// Executor (spec.md §4.4/§4.5), grounded on
// original_source/src/task_system/template_registry.py (registration/index
// semantics) and original_source/src/task_system/task_system.py +
// template_utils.py (parameter binding, context resolution, execution,
// notes augmentation).
package task

// ParamSpec describes one template parameter (spec.md §3 "Atomic task
// template").
type ParamSpec struct {
	Description string
	Type        string
	Required    bool
	Default     any
	HasDefault  bool
}

// OutputFormat controls post-processing of a task's raw content
// (spec.md §4.5 step 5).
type OutputFormat struct {
	Type string // "json" | "text"
}

// ContextSettings mirrors the per-template/per-request context override
// surface merged in resolveContext (spec.md §4.5 step 2).
type ContextSettings struct {
	InheritContext string // "none" | "full" | "subset"
	FreshContext   string // "enabled" | "disabled"
	FilePaths      []string
}

// Template is a registered atomic task definition (spec.md §3).
type Template struct {
	Name            string
	Type            string // must be "atomic" to register
	Subtype         string
	Description     string
	Params          map[string]ParamSpec
	ParamOrder      []string // declaration order, for positional binding
	Instructions    string
	Model           string
	OutputFormat    *OutputFormat
	ContextSettings *ContextSettings
	FilePaths       []string // template-declared explicit file paths
}
