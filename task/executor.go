package task

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hoidn/sexpflow/context"
	"github.com/hoidn/sexpflow/handler"
	"github.com/hoidn/sexpflow/sexpr"
	"github.com/hoidn/sexpflow/taskerr"
	"github.com/pkoukk/tiktoken-go"
)

// Executor runs atomic task templates end to end (spec.md §4.5), grounded on
// task_system.py's execute_atomic_template and template_utils.py's
// bind_arguments_to_parameters.
type Executor struct {
	Registry  *Registry
	Handler   handler.Handler
	Context   context.Subsystem
	tokenizer *tiktoken.Tiktoken // lazily initialized via estimateTokens
}

// NewExecutor wires a Registry, a Handler, and a context Subsystem together.
// ctxSubsystem may be context.NoopSubsystem{} when fresh-context resolution
// is not needed.
func NewExecutor(registry *Registry, h handler.Handler, ctxSubsystem context.Subsystem) *Executor {
	return &Executor{Registry: registry, Handler: h, Context: ctxSubsystem}
}

// Request is the external call into ExecuteAtomic — the subset of the
// dispatcher's programmatic invocation surface (spec.md §6) relevant to
// atomic task execution.
type Request struct {
	Name            string
	PosArgs         []sexpr.Value
	NamedArgs       map[string]sexpr.Value
	FilePaths       []string // explicit paths from the external request
	ContextSettings *ContextSettings
}

// ExecuteAtomic runs the named atomic template to completion, returning a
// fully-populated TaskResult per spec.md §4.5.
func (e *Executor) ExecuteAtomic(req Request) (sexpr.TaskResult, error) {
	taskID := uuid.NewString()

	tmpl, ok := e.Registry.Find(req.Name)
	if !ok {
		err := notFoundError(req.Name)
		return failureResult(err), err
	}
	if tmpl.Type != "atomic" {
		err := taskerr.TaskFailure(req.Name, taskerr.ReasonInputValidationFailure, "cannot execute non-atomic template directly")
		return failureResult(err), err
	}

	bound, err := bindArguments(tmpl, req.PosArgs, req.NamedArgs)
	if err != nil {
		return failureResult(err), err
	}

	mergedContext, err := resolveContext(tmpl.ContextSettings, req.ContextSettings)
	if err != nil {
		return failureResult(err), err
	}

	filePaths, contextSource := e.resolveFilePaths(tmpl, req, mergedContext)

	prompt := substituteParams(tmpl.Instructions, bound)
	result, callErr := e.Handler.ExecuteLLMCall(handler.CallRequest{
		Prompt: prompt,
		Model:  tmpl.Model,
	})
	if callErr != nil {
		terr := taskerr.AsError(callErr)
		result = failureResult(terr)
	}

	if result.Notes == nil {
		result.Notes = map[string]any{}
	}
	result.Notes["template_used"] = req.Name
	result.Notes["task_id"] = taskID
	result.Notes["context_source"] = contextSource
	result.Notes["file_count"] = len(filePaths)
	result.Notes["estimated_tokens"] = e.estimateTokens(prompt)

	if tmpl.OutputFormat != nil && tmpl.OutputFormat.Type == "json" {
		applyOutputFormat(&result)
	}

	return result, nil
}

// bindArguments implements template_utils.py's bind_arguments_to_parameters,
// generalized to the expanded spec's stricter rule (spec.md §4.5 step 1):
// a named argument that duplicates a positionally-bound parameter is an
// error, rather than silently overwriting it.
func bindArguments(tmpl *Template, posArgs []sexpr.Value, namedArgs map[string]sexpr.Value) (map[string]sexpr.Value, *taskerr.Error) {
	result := make(map[string]sexpr.Value, len(tmpl.Params))
	boundPositionally := make(map[string]bool, len(posArgs))

	for i, arg := range posArgs {
		if i >= len(tmpl.ParamOrder) {
			return nil, taskerr.ArityMismatch(tmpl.Name, "too many positional arguments for template %q", tmpl.Name)
		}
		name := tmpl.ParamOrder[i]
		result[name] = arg
		boundPositionally[name] = true
	}

	for name, value := range namedArgs {
		if _, declared := tmpl.Params[name]; !declared {
			return nil, taskerr.ArityMismatch(tmpl.Name, "unknown parameter %q for template %q", name, tmpl.Name)
		}
		if boundPositionally[name] {
			return nil, taskerr.ArityMismatch(tmpl.Name, "parameter %q supplied both positionally and by name", name)
		}
		result[name] = value
	}

	for name, spec := range tmpl.Params {
		if _, ok := result[name]; !ok && spec.HasDefault {
			result[name] = sexpr.FromNode(valueToNode(spec.Default))
		}
	}

	for name, spec := range tmpl.Params {
		if _, ok := result[name]; !ok && spec.Required {
			return nil, taskerr.ArityMismatch(tmpl.Name, "missing required parameter %q for template %q", name, tmpl.Name)
		}
	}

	return result, nil
}

// valueToNode lifts a Go default value (string/int/float/bool/nil) into a
// Node so it can flow back through sexpr.FromNode uniformly.
func valueToNode(v any) sexpr.Node {
	switch x := v.(type) {
	case string:
		return sexpr.Str(x)
	case int:
		return sexpr.Int(int64(x))
	case int64:
		return sexpr.Int(x)
	case float64:
		return sexpr.Flt(x)
	case bool:
		return sexpr.Bool(x)
	default:
		return sexpr.Nil()
	}
}

// resolveContext merges template settings, then request overrides, over
// fixed defaults (inheritContext=none, freshContext=disabled) (spec.md §4.5
// step 2). The defaults are the same for every subtype; there is no
// per-subtype default layer. It rejects the forbidden
// freshContext=enabled + inheritContext in {full,subset} combination.
func resolveContext(templateSettings, requestSettings *ContextSettings) (ContextSettings, *taskerr.Error) {
	merged := ContextSettings{InheritContext: "none", FreshContext: "disabled"}

	if templateSettings != nil {
		mergeInto(&merged, templateSettings)
	}
	if requestSettings != nil {
		mergeInto(&merged, requestSettings)
	}

	if merged.FreshContext == "enabled" && (merged.InheritContext == "full" || merged.InheritContext == "subset") {
		return ContextSettings{}, taskerr.TaskFailure("", taskerr.ReasonInputValidationFailure,
			"freshContext=enabled cannot be combined with inheritContext=%s", merged.InheritContext)
	}
	return merged, nil
}

func mergeInto(dst *ContextSettings, src *ContextSettings) {
	if src.InheritContext != "" {
		dst.InheritContext = src.InheritContext
	}
	if src.FreshContext != "" {
		dst.FreshContext = src.FreshContext
	}
	if len(src.FilePaths) > 0 {
		dst.FilePaths = src.FilePaths
	}
}

// resolveFilePaths implements spec.md §4.5 step 3's precedence: explicit
// request paths, then template-declared paths, then a fresh-context
// subsystem call, else none.
func (e *Executor) resolveFilePaths(tmpl *Template, req Request, merged ContextSettings) ([]string, string) {
	if len(req.FilePaths) > 0 {
		return req.FilePaths, "explicit_request"
	}
	if len(tmpl.FilePaths) > 0 {
		return tmpl.FilePaths, "template_literal"
	}
	if merged.FreshContext == "enabled" {
		result, err := e.Context.GetContext(context.NewGenerationInput(context.GenerationInput{
			TemplateDescription: tmpl.Description,
			TemplateType:        tmpl.Type,
			TemplateSubtype:     tmpl.Subtype,
		}))
		if err != nil {
			return nil, "resolution_failed"
		}
		paths := make([]string, 0, len(result.Matches))
		for _, m := range result.Matches {
			paths = append(paths, m.Path)
		}
		return paths, "template_literal"
	}
	return nil, "none"
}

// substituteParams replaces {{param}} placeholders in instructions with
// their bound string representation (spec.md §4.5 step 4).
func substituteParams(instructions string, bound map[string]sexpr.Value) string {
	out := instructions
	for name, v := range bound {
		if s, ok := sexpr.Display(v); ok {
			out = strings.ReplaceAll(out, "{{"+name+"}}", s)
		}
	}
	return out
}

// applyOutputFormat implements spec.md §4.5 step 5: on JSON parse success,
// attach notes.parsedContent; on failure, attach notes.parseError but keep
// the COMPLETE status.
func applyOutputFormat(result *sexpr.TaskResult) {
	content, ok := result.Content.(string)
	if !ok {
		return
	}
	var parsed any
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		result.Notes["parseError"] = err.Error()
		return
	}
	result.Notes["parsedContent"] = parsed
}

func (e *Executor) estimateTokens(prompt string) int {
	if e.tokenizer == nil {
		tok, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return len(prompt) / 4
		}
		e.tokenizer = tok
	}
	return len(e.tokenizer.Encode(prompt, nil, nil))
}

func failureResult(err *taskerr.Error) sexpr.TaskResult {
	return sexpr.TaskResult{
		Status:  sexpr.StatusFailed,
		Content: fmt.Sprintf("%s", err.Message),
		Notes:   map[string]any{"error": err.ToDict()},
	}
}
