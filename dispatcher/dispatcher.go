// Package dispatcher implements the Dispatcher component (spec.md §4.10),
// the single external entry point that routes an identifier to either a
// registered atomic task template or a registered direct tool. It is
// grounded on original_source/src/system/dispatcher.py's
// execute_programmatic_task, reworked from Python's try/except boundary
// into Go's recover-at-the-boundary idiom. It applies the same
// template-overrides-tool precedence as
// evaluator.Evaluator.invokeIdentifier, through its own lookup rather than
// by calling that method, for the external surface (spec.md §6's
// "Programmatic task invocation surface").
package dispatcher

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hoidn/sexpflow/context"
	"github.com/hoidn/sexpflow/evaluator"
	"github.com/hoidn/sexpflow/logger"
	"github.com/hoidn/sexpflow/metrics"
	"github.com/hoidn/sexpflow/parser"
	"github.com/hoidn/sexpflow/sexpr"
	"github.com/hoidn/sexpflow/task"
	"github.com/hoidn/sexpflow/taskerr"
	"github.com/hoidn/sexpflow/tools"
)

// Request is the dispatcher's external call shape (spec.md §6):
// identifier names a template (by name or "type:subtype") or a tool;
// params is a free-form mapping that may carry "file_context" (either a
// JSON-encoded array of path strings or an already-decoded []string/[]any);
// flags carries "use-history", "help", and "is_sexp_string"; history is the
// opaque transcript string round-tripped across calls.
type Request struct {
	Identifier string
	Params     map[string]any
	Flags      map[string]bool
	History    string
}

// Dispatcher wires the Atomic Task Executor and Tool Registry to the
// external entry point. Evaluator is only consulted when
// flags.is_sexp_string routes identifier through full S-expression
// evaluation instead of name-based dispatch; Metrics may be nil.
type Dispatcher struct {
	Tasks   *task.Executor
	ToolReg *tools.Registry
	Eval    *evaluator.Evaluator
	Env     *sexpr.Environment
	Metrics *metrics.Metrics
}

// New builds a Dispatcher. env is the global environment used for
// is_sexp_string requests; it may be nil if that flag is never set.
func New(tasks *task.Executor, toolReg *tools.Registry, ev *evaluator.Evaluator, env *sexpr.Environment, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{Tasks: tasks, ToolReg: toolReg, Eval: ev, Env: env, Metrics: m}
}

// Dispatch is the sole external entry point (spec.md §4.10). It never
// raises: every internal error, including a recovered panic, is converted
// to a TaskResult with status=FAILED per spec.md §7's boundary-conversion
// rule ("the dispatcher at the outer boundary never raises; it converts
// all exceptions into TaskFailure(reason=unexpected_error) TaskResults").
func (d *Dispatcher) Dispatch(req Request) (result sexpr.TaskResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err := taskerr.TaskFailure(req.Identifier, taskerr.ReasonUnexpectedError, "panic: %v", r)
			result = failureResult(err)
		}
		d.Metrics.RecordDispatch(req.Identifier, string(result.Status), time.Since(start))
		if result.Status == sexpr.StatusFailed {
			if reason, ok := result.Note("error"); ok {
				if m, ok := reason.(map[string]any); ok {
					if r, ok := m["reason"].(string); ok {
						d.Metrics.RecordDispatchError(req.Identifier, r)
					}
				}
			}
		}
	}()

	result = d.dispatch(req)
	logger.Get().Debug("dispatch", "identifier", req.Identifier, "status", string(result.Status))
	return result
}

func (d *Dispatcher) dispatch(req Request) sexpr.TaskResult {
	if req.Flags["is_sexp_string"] {
		return d.dispatchSexpString(req)
	}

	fileContext, fcErr := parseFileContext(req.Params["file_context"])
	if fcErr != nil {
		err := taskerr.TaskFailure(req.Identifier, taskerr.ReasonInputValidationFailure, "%s", fcErr)
		return failureResult(err)
	}

	if d.Tasks != nil {
		if tmpl, ok := d.Tasks.Registry.Find(req.Identifier); ok {
			if req.Flags["help"] {
				return helpResultForTemplate(tmpl)
			}
			return d.dispatchTemplate(req, fileContext)
		}
	}

	if d.ToolReg != nil {
		if spec, _, ok := d.ToolReg.Lookup(req.Identifier); ok {
			if req.Flags["help"] {
				return helpResultForTool(spec)
			}
			return d.dispatchTool(req, fileContext)
		}
	}

	err := taskerr.TaskFailure(req.Identifier, taskerr.ReasonInputValidationFailure,
		"no template or tool registered for identifier %q", req.Identifier)
	return failureResult(err)
}

// dispatchSexpString parses identifier as raw S-expression source and
// evaluates it in the global environment, wrapping a bare Value result in
// a TaskResult so the Dispatcher's return shape stays uniform regardless
// of entry path.
func (d *Dispatcher) dispatchSexpString(req Request) sexpr.TaskResult {
	if d.Eval == nil || d.Env == nil {
		err := taskerr.TaskFailure(req.Identifier, taskerr.ReasonUnexpectedError, "is_sexp_string requested but no evaluator is configured")
		return failureResult(err)
	}
	node, err := parser.Parse(req.Identifier)
	if err != nil {
		terr := taskerr.AsError(err)
		return failureResult(terr)
	}
	v, err := d.Eval.Eval(node, d.Env)
	if err != nil {
		terr := taskerr.AsError(err)
		return failureResult(terr)
	}
	if v.Kind == sexpr.ValTaskResult {
		return v.TaskResult
	}
	return sexpr.TaskResult{Status: sexpr.StatusComplete, Content: sexpr.ToGo(v)}
}

func (d *Dispatcher) dispatchTemplate(req Request, fileContext []string) sexpr.TaskResult {
	named := make(map[string]sexpr.Value, len(req.Params))
	for k, v := range req.Params {
		if k == "file_context" {
			continue
		}
		named[k] = sexpr.FromGo(v)
	}

	hist, histErr := loadHistory(req)
	if histErr != nil {
		return failureResult(taskerr.AsError(histErr))
	}

	taskReq := task.Request{Name: req.Identifier, NamedArgs: named, FilePaths: fileContext}
	start := time.Now()
	result, err := d.Tasks.ExecuteAtomic(taskReq)
	d.Metrics.RecordTaskExecution(req.Identifier, string(result.Status), time.Since(start))
	if err != nil {
		return result
	}

	if req.Flags["use-history"] && hist != nil {
		return attachHistory(result, hist, summarizeRequest(req), contentToString(result.Content))
	}
	return result
}

func (d *Dispatcher) dispatchTool(req Request, fileContext []string) sexpr.TaskResult {
	args := make(map[string]any, len(req.Params))
	for k, v := range req.Params {
		args[k] = v
	}
	if len(fileContext) > 0 {
		files := make([]any, len(fileContext))
		for i, p := range fileContext {
			files[i] = p
		}
		args["files"] = files
		delete(args, "file_context")
	}

	hist, histErr := loadHistory(req)
	if histErr != nil {
		return failureResult(taskerr.AsError(histErr))
	}

	start := time.Now()
	result, err := d.ToolReg.Invoke(req.Identifier, args)
	d.Metrics.RecordToolInvocation(req.Identifier, string(result.Status), time.Since(start))
	if err != nil {
		return result
	}

	if req.Flags["use-history"] && hist != nil {
		return attachHistory(result, hist, summarizeRequest(req), contentToString(result.Content))
	}
	return result
}

// loadHistory decodes req.History when flags.use-history is set; returns
// (nil, nil) when the flag is absent so callers can skip history handling
// entirely without an extra branch.
func loadHistory(req Request) (*context.History, error) {
	if !req.Flags["use-history"] {
		return nil, nil
	}
	h, err := context.DecodeHistory(req.History)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// attachHistory appends the current call's turn to hist and stores the
// re-encoded transcript under notes.history, the Dispatcher's convention
// for returning updated history to the caller (spec.md §6).
func attachHistory(result sexpr.TaskResult, hist *context.History, userTurn, assistantTurn string) sexpr.TaskResult {
	hist.Append(context.RoleUser, userTurn)
	hist.Append(context.RoleAssistant, assistantTurn)
	encoded, err := hist.Encode()
	if err != nil {
		return result
	}
	if result.Notes == nil {
		result.Notes = map[string]any{}
	}
	result.Notes["history"] = encoded
	return result
}

func summarizeRequest(req Request) string {
	return fmt.Sprintf("%s(%v)", req.Identifier, req.Params)
}

func contentToString(content any) string {
	if s, ok := content.(string); ok {
		return s
	}
	b, err := json.Marshal(content)
	if err != nil {
		return fmt.Sprintf("%v", content)
	}
	return string(b)
}

// parseFileContext implements spec.md §4.10's dual-format file_context
// parsing: a JSON-encoded array of strings (the wire form a programmatic
// caller posts), or an already-decoded []string/[]any (the in-process Go
// caller's form), erroring on anything else or on non-string elements.
func parseFileContext(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, nil
		}
		var decoded []any
		if err := json.Unmarshal([]byte(t), &decoded); err != nil {
			return nil, fmt.Errorf("file_context: not a valid JSON array: %w", err)
		}
		return stringsFromAny(decoded)
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out, nil
	case []any:
		return stringsFromAny(t)
	default:
		return nil, fmt.Errorf("file_context must be a JSON array of strings or a list, got %T", v)
	}
}

func stringsFromAny(items []any) ([]string, error) {
	out := make([]string, 0, len(items))
	for _, e := range items {
		s, ok := e.(string)
		if !ok {
			return nil, fmt.Errorf("file_context elements must be strings, got %T", e)
		}
		out = append(out, s)
	}
	return out, nil
}

func failureResult(err *taskerr.Error) sexpr.TaskResult {
	return sexpr.TaskResult{
		Status:  sexpr.StatusFailed,
		Content: err.Message,
		Notes:   map[string]any{"error": err.ToDict()},
	}
}

// helpResultForTemplate formats a template's params as the Dispatcher's
// help output (spec.md §4.10: "derived from the template's params
// (preferred)"), never executing the template.
func helpResultForTemplate(tmpl *task.Template) sexpr.TaskResult {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", tmpl.Name, tmpl.Description)
	for _, name := range tmpl.ParamOrder {
		spec := tmpl.Params[name]
		req := ""
		if spec.Required {
			req = ", required"
		}
		fmt.Fprintf(&b, "  %s (%s%s): %s\n", name, spec.Type, req, spec.Description)
	}
	return sexpr.TaskResult{Status: sexpr.StatusComplete, Content: b.String()}
}

// helpResultForTool formats a tool's input schema as help output,
// used when identifier names a tool and no template of the same name
// takes precedence.
func helpResultForTool(spec tools.Spec) sexpr.TaskResult {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", spec.Name, spec.Description)
	for _, p := range spec.Parameters {
		req := ""
		if p.Required {
			req = ", required"
		}
		fmt.Fprintf(&b, "  %s (%s%s): %s\n", p.Name, p.Type, req, p.Description)
	}
	return sexpr.TaskResult{Status: sexpr.StatusComplete, Content: b.String()}
}
