package evaluator

import (
	"github.com/hoidn/sexpflow/sexpr"
	"github.com/hoidn/sexpflow/taskerr"
)

// handleIf implements `(if condition then else)`, grounded on
// sexp_special_forms.py's handle_if_form.
func handleIf(ev *Evaluator, args []sexpr.Node, env *sexpr.Environment, exprStr string) (sexpr.Value, error) {
	if len(args) != 3 {
		return sexpr.Value{}, taskerr.Syntax(exprStr, "'if' requires 3 arguments: (if condition then else)")
	}
	cond, err := ev.Eval(args[0], env)
	if err != nil {
		return sexpr.Value{}, err
	}
	if cond.Truthy() {
		return ev.Eval(args[1], env)
	}
	return ev.Eval(args[2], env)
}

// handleLet implements `(let ((var expr)...) body...)`. Binding value
// expressions evaluate in the outer environment; the body evaluates in a
// fresh child frame — grounded on handle_let_form's two-pass evaluate-then-
// define fix.
func handleLet(ev *Evaluator, args []sexpr.Node, env *sexpr.Environment, exprStr string) (sexpr.Value, error) {
	if len(args) < 1 || args[0].Kind != sexpr.NodeList {
		return sexpr.Value{}, taskerr.Syntax(exprStr, "'let' requires a bindings list and at least one body expression")
	}
	bindingExprs := args[0].List
	bodyExprs := args[1:]
	if len(bodyExprs) == 0 {
		return sexpr.Value{}, taskerr.Syntax(exprStr, "'let' requires at least one body expression")
	}

	evaluated := make(map[string]sexpr.Value, len(bindingExprs))
	order := make([]string, 0, len(bindingExprs))
	for _, b := range bindingExprs {
		if b.Kind != sexpr.NodeList || len(b.List) != 2 || b.List[0].Kind != sexpr.NodeSymbol {
			return sexpr.Value{}, taskerr.Syntax(exprStr, "invalid 'let' binding format: expected (symbol expression)")
		}
		name := b.List[0].Str
		v, err := ev.Eval(b.List[1], env)
		if err != nil {
			return sexpr.Value{}, err
		}
		evaluated[name] = v
		order = append(order, name)
	}

	letEnv := env.Extend(nil)
	for _, name := range order {
		letEnv.Define(name, evaluated[name])
	}

	var result sexpr.Value
	for _, body := range bodyExprs {
		v, err := ev.Eval(body, letEnv)
		if err != nil {
			return sexpr.Value{}, err
		}
		result = v
	}
	return result, nil
}

// handleBind implements `(bind symbol expr)`: defines symbol in the current
// frame and returns the assigned value.
func handleBind(ev *Evaluator, args []sexpr.Node, env *sexpr.Environment, exprStr string) (sexpr.Value, error) {
	if len(args) != 2 || args[0].Kind != sexpr.NodeSymbol {
		return sexpr.Value{}, taskerr.Syntax(exprStr, "'bind' requires a symbol and a value expression: (bind symbol expr)")
	}
	v, err := ev.Eval(args[1], env)
	if err != nil {
		return sexpr.Value{}, err
	}
	env.Define(args[0].Str, v)
	return v, nil
}

// handleSet implements `(set! symbol expr)`: mutates the nearest existing
// binding, failing UnboundSymbol if none exists (spec.md §4.2).
func handleSet(ev *Evaluator, args []sexpr.Node, env *sexpr.Environment, exprStr string) (sexpr.Value, error) {
	if len(args) != 2 || args[0].Kind != sexpr.NodeSymbol {
		return sexpr.Value{}, taskerr.Syntax(exprStr, "'set!' requires a symbol and a value expression: (set! symbol expr)")
	}
	v, err := ev.Eval(args[1], env)
	if err != nil {
		return sexpr.Value{}, err
	}
	if err := env.Set(args[0].Str, v); err != nil {
		return sexpr.Value{}, err
	}
	return v, nil
}

// handleProgn implements `(progn expr...)`: evaluates each expression in
// order, returning the last. An empty body evaluates to nil.
func handleProgn(ev *Evaluator, args []sexpr.Node, env *sexpr.Environment, exprStr string) (sexpr.Value, error) {
	var result sexpr.Value = sexpr.VNil()
	for _, expr := range args {
		v, err := ev.Eval(expr, env)
		if err != nil {
			return sexpr.Value{}, err
		}
		result = v
	}
	return result, nil
}

// handleQuote implements `(quote expr)`: returns the argument node's value
// form without evaluating it.
func handleQuote(ev *Evaluator, args []sexpr.Node, env *sexpr.Environment, exprStr string) (sexpr.Value, error) {
	if len(args) != 1 {
		return sexpr.Value{}, taskerr.Syntax(exprStr, "'quote' requires exactly one argument")
	}
	return sexpr.FromNode(args[0]), nil
}

// handleLambda implements `(lambda (params...) body...)`: builds a Closure
// capturing env, per spec.md §3's Closure semantics.
func handleLambda(ev *Evaluator, args []sexpr.Node, env *sexpr.Environment, exprStr string) (sexpr.Value, error) {
	if len(args) < 2 || args[0].Kind != sexpr.NodeList {
		return sexpr.Value{}, taskerr.Syntax(exprStr, "'lambda' requires a parameter list and at least one body expression")
	}
	params := make([]string, 0, len(args[0].List))
	for _, p := range args[0].List {
		if p.Kind != sexpr.NodeSymbol {
			return sexpr.Value{}, taskerr.Syntax(exprStr, "lambda parameters must be symbols")
		}
		params = append(params, p.Str)
	}
	body := make([]sexpr.Node, len(args[1:]))
	copy(body, args[1:])
	return sexpr.VClosure(&sexpr.Closure{Params: params, Body: body, Env: env}), nil
}

// handleAnd implements `(and expr...)`: left-to-right evaluation, short-
// circuiting on the first falsey value and returning it; `(and)` is true.
func handleAnd(ev *Evaluator, args []sexpr.Node, env *sexpr.Environment, exprStr string) (sexpr.Value, error) {
	if len(args) == 0 {
		return sexpr.VBool(true), nil
	}
	var last sexpr.Value
	for _, expr := range args {
		v, err := ev.Eval(expr, env)
		if err != nil {
			return sexpr.Value{}, err
		}
		last = v
		if !v.Truthy() {
			return v, nil
		}
	}
	return last, nil
}

// handleOr implements `(or expr...)`: left-to-right evaluation, short-
// circuiting on the first truthy value and returning it; `(or)` is false.
func handleOr(ev *Evaluator, args []sexpr.Node, env *sexpr.Environment, exprStr string) (sexpr.Value, error) {
	if len(args) == 0 {
		return sexpr.VBool(false), nil
	}
	var last sexpr.Value
	for _, expr := range args {
		v, err := ev.Eval(expr, env)
		if err != nil {
			return sexpr.Value{}, err
		}
		last = v
		if v.Truthy() {
			return v, nil
		}
	}
	return last, nil
}

// handleLoop implements `(loop count body)`: evaluates body exactly count
// times, returning the result of the last iteration, or the empty list when
// count is 0 (spec.md §4.3).
func handleLoop(ev *Evaluator, args []sexpr.Node, env *sexpr.Environment, exprStr string) (sexpr.Value, error) {
	if len(args) != 2 {
		return sexpr.Value{}, taskerr.Syntax(exprStr, "'loop' requires exactly 2 arguments: count and body")
	}
	countVal, err := ev.Eval(args[0], env)
	if err != nil {
		return sexpr.Value{}, err
	}
	if countVal.Kind != sexpr.ValInteger {
		return sexpr.Value{}, taskerr.TypeError(exprStr, "loop count must evaluate to an integer")
	}
	if countVal.Int < 0 {
		return sexpr.Value{}, taskerr.TypeError(exprStr, "loop count must be non-negative")
	}

	result := sexpr.VList(nil)
	for i := int64(0); i < countVal.Int; i++ {
		v, err := ev.Eval(args[1], env)
		if err != nil {
			return sexpr.Value{}, taskerr.AsError(err).WithIteration("loop", int(i+1))
		}
		result = v
	}
	return result, nil
}
