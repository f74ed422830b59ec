// Package evaluator implements the S-expression interpreter core: literal
// and symbol evaluation, special-form dispatch, primitive application, and
// closure/task/tool application (spec.md §4.3/§4.9/§4.10). It is grounded on
// original_source/src/sexp_evaluator/sexp_evaluator.py's `_eval` dispatch
// loop and src/sexp_evaluator/sexp_special_forms.py's SpecialFormProcessor,
// reworked from Python's async recursive-descent interpreter into Go's
// synchronous explicit-error-return style.
package evaluator

import (
	"github.com/hoidn/sexpflow/context"
	"github.com/hoidn/sexpflow/sexpr"
	"github.com/hoidn/sexpflow/task"
	"github.com/hoidn/sexpflow/taskerr"
	"github.com/hoidn/sexpflow/tools"
)

// specialForm is a handler for one of the reserved special-form names.
// argExprs are the unevaluated operand nodes; exprStr is the printed form of
// the whole call, used to annotate errors.
type specialForm func(ev *Evaluator, argExprs []sexpr.Node, env *sexpr.Environment, exprStr string) (sexpr.Value, error)

// Evaluator ties the core interpreter to its collaborators: the Atomic Task
// Executor (for task-identifier application and the `get-context`-adjacent
// primitives) and the Tool Registry (for tool-identifier application and
// host-function primitives).
type Evaluator struct {
	Tasks   *task.Executor
	ToolReg *tools.Registry
	Context context.Subsystem

	specialForms map[string]specialForm
}

// New builds an Evaluator wired to the given task executor and tool
// registry, and registers every special form (spec.md §4.3/§4.6/§4.7).
func New(tasks *task.Executor, toolReg *tools.Registry, ctxSubsystem context.Subsystem) *Evaluator {
	ev := &Evaluator{Tasks: tasks, ToolReg: toolReg, Context: ctxSubsystem}
	ev.specialForms = map[string]specialForm{
		"if":                      handleIf,
		"let":                     handleLet,
		"bind":                    handleBind,
		"set!":                    handleSet,
		"progn":                   handleProgn,
		"quote":                   handleQuote,
		"lambda":                  handleLambda,
		"defatom":                 handleDefatom,
		"loop":                    handleLoop,
		"and":                     handleAnd,
		"or":                      handleOr,
		"director-evaluator-loop": handleDirectorEvaluatorLoop,
		"iterative-loop":          handleIterativeLoop,
		"get-context":             handleGetContext,
	}
	return ev
}

// IsSpecialForm reports whether name is a reserved special-form symbol.
// Special-form names must not be redefined via `bind`/`defatom` (spec.md
// §6); implementations should warn rather than enforce, per the spec note.
func (ev *Evaluator) IsSpecialForm(name string) bool {
	_, ok := ev.specialForms[name]
	return ok
}

// NewGlobalEnv returns a fresh top-level environment pre-populated with
// every primitive (spec.md §4.9).
func (ev *Evaluator) NewGlobalEnv() *sexpr.Environment {
	env := sexpr.NewEnvironment()
	ev.registerPrimitives(env)
	return env
}

// Eval is the core dispatch loop (spec.md §4.3):
//  1. atoms self-evaluate
//  2. symbols resolve via Environment.Lookup
//  3. the empty list self-evaluates to itself
//  4. non-empty lists are either a special form or an application
func (ev *Evaluator) Eval(n sexpr.Node, env *sexpr.Environment) (sexpr.Value, error) {
	switch n.Kind {
	case sexpr.NodeInteger, sexpr.NodeFloat, sexpr.NodeString, sexpr.NodeBoolean, sexpr.NodeNil:
		return sexpr.FromNode(n), nil
	case sexpr.NodeSymbol:
		return env.Lookup(n.Str)
	case sexpr.NodeList:
		if n.IsEmptyList() {
			return sexpr.VList(nil), nil
		}
		return ev.evalList(n, env)
	}
	return sexpr.Value{}, taskerr.Syntax(n.String(), "unknown AST node kind")
}

func (ev *Evaluator) evalList(n sexpr.Node, env *sexpr.Environment) (sexpr.Value, error) {
	head := n.List[0]
	exprStr := n.String()

	if head.Kind == sexpr.NodeSymbol {
		if form, ok := ev.specialForms[head.Str]; ok {
			return form(ev, n.List[1:], env, exprStr)
		}

		headVal, err := env.Lookup(head.Str)
		if err == nil {
			return ev.applyToNodes(headVal, n.List[1:], env, exprStr)
		}

		// Not a bound variable: fall back to task/tool identifier
		// application (spec.md §2's "Atomic task invocation from inside
		// S-expressions flows back through the Atomic Task Executor").
		args, evalErr := ev.evalArgs(n.List[1:], env)
		if evalErr != nil {
			return sexpr.Value{}, evalErr
		}
		return ev.invokeIdentifier(head.Str, args, exprStr)
	}

	headVal, err := ev.Eval(head, env)
	if err != nil {
		return sexpr.Value{}, err
	}
	return ev.applyToNodes(headVal, n.List[1:], env, exprStr)
}

func (ev *Evaluator) evalArgs(argExprs []sexpr.Node, env *sexpr.Environment) ([]sexpr.Value, error) {
	args := make([]sexpr.Value, len(argExprs))
	for i, a := range argExprs {
		v, err := ev.Eval(a, env)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

func (ev *Evaluator) applyToNodes(fn sexpr.Value, argExprs []sexpr.Node, env *sexpr.Environment, exprStr string) (sexpr.Value, error) {
	args, err := ev.evalArgs(argExprs, env)
	if err != nil {
		return sexpr.Value{}, err
	}
	return ev.Apply(fn, args, exprStr)
}

// Apply invokes a Closure or Callable value with already-evaluated
// arguments (spec.md §3 "Closure", §4.3 application).
func (ev *Evaluator) Apply(fn sexpr.Value, args []sexpr.Value, exprStr string) (sexpr.Value, error) {
	switch fn.Kind {
	case sexpr.ValClosure:
		return ev.applyClosure(fn.Closure, args, exprStr)
	case sexpr.ValCallable:
		return fn.Callable(args)
	default:
		return sexpr.Value{}, taskerr.TypeError(exprStr, "value is not callable: %s", sexpr.Repr(fn))
	}
}

func (ev *Evaluator) applyClosure(c *sexpr.Closure, args []sexpr.Value, exprStr string) (sexpr.Value, error) {
	if len(args) != len(c.Params) {
		return sexpr.Value{}, taskerr.ArityMismatch(exprStr, "closure expects %d argument(s), got %d", len(c.Params), len(args))
	}
	bindings := make(map[string]sexpr.Value, len(c.Params))
	for i, p := range c.Params {
		bindings[p] = args[i]
	}
	callEnv := c.Env.Extend(bindings)

	var result sexpr.Value = sexpr.VList(nil)
	for _, bodyExpr := range c.Body {
		v, err := ev.Eval(bodyExpr, callEnv)
		if err != nil {
			return sexpr.Value{}, err
		}
		result = v
	}
	return result, nil
}

// invokeIdentifier resolves a free (unbound) symbol used in application
// position as either an atomic task name or a tool name, per the
// dispatcher's template-overrides-tool precedence (spec.md §4.10, §6).
func (ev *Evaluator) invokeIdentifier(name string, args []sexpr.Value, exprStr string) (sexpr.Value, error) {
	if ev.Tasks != nil {
		if _, ok := ev.Tasks.Registry.Find(name); ok {
			result, err := ev.Tasks.ExecuteAtomic(task.Request{Name: name, PosArgs: args})
			if err != nil {
				return sexpr.Value{}, err
			}
			return sexpr.VTaskResult(result), nil
		}
	}
	if ev.ToolReg != nil {
		if _, _, ok := ev.ToolReg.Lookup(name); ok {
			kwargs := positionalArgsToToolInput(args)
			result, err := ev.ToolReg.Invoke(name, kwargs)
			if err != nil {
				return sexpr.Value{}, err
			}
			return sexpr.VTaskResult(result), nil
		}
	}
	return sexpr.Value{}, taskerr.UnboundSymbol(exprStr, name)
}

// positionalArgsToToolInput adapts evaluated S-expression argument values to
// a tool's keyword-mapping input; single-argument calls pass a conventional
// "input" key, since tools are keyword-only by contract (spec.md §6).
func positionalArgsToToolInput(args []sexpr.Value) map[string]any {
	if len(args) == 1 {
		if s, ok := sexpr.Display(args[0]); ok {
			return map[string]any{"input": s}
		}
	}
	out := make(map[string]any, len(args))
	for i, a := range args {
		if s, ok := sexpr.Display(a); ok {
			out[string(rune('a'+i))] = s
		}
	}
	return out
}
