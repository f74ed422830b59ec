package evaluator

import (
	"github.com/hoidn/sexpflow/sexpr"
	"github.com/hoidn/sexpflow/taskerr"
)

// parseClauses validates that argExprs are all (ClauseName Expression)
// pairs with no duplicates, and that every name in required is present —
// the shared structural check at the top of both loop handlers.
func parseClauses(args []sexpr.Node, required []string, formName, exprStr string) (map[string]sexpr.Node, *taskerr.Error) {
	clauses := make(map[string]sexpr.Node, len(args))
	for _, a := range args {
		if a.Kind != sexpr.NodeList || len(a.List) != 2 || a.List[0].Kind != sexpr.NodeSymbol {
			return nil, taskerr.Syntax(exprStr, "%s: each clause must be a list of (ClauseName Expression)", formName)
		}
		name := a.List[0].Str
		if _, dup := clauses[name]; dup {
			return nil, taskerr.Syntax(exprStr, "%s: duplicate clause %q", formName, name)
		}
		clauses[name] = a.List[1]
	}
	for _, name := range required {
		if _, ok := clauses[name]; !ok {
			return nil, taskerr.Syntax(exprStr, "%s: missing required clause %q", formName, name)
		}
	}
	return clauses, nil
}

func evalCallableClause(ev *Evaluator, clauses map[string]sexpr.Node, name string, env *sexpr.Environment, formName, exprStr string) (sexpr.Value, *taskerr.Error) {
	v, err := ev.Eval(clauses[name], env)
	if err != nil {
		return sexpr.Value{}, taskerr.Syntax(exprStr, "%s: error evaluating %q: %s", formName, name, err)
	}
	if v.Kind != sexpr.ValClosure && v.Kind != sexpr.ValCallable {
		return sexpr.Value{}, taskerr.TypeError(exprStr, "%s: %q must evaluate to a callable, got %s", formName, name, sexpr.Repr(v))
	}
	return v, nil
}

func evalIterationCount(ev *Evaluator, clauses map[string]sexpr.Node, env *sexpr.Environment, formName, exprStr string) (int64, *taskerr.Error) {
	v, err := ev.Eval(clauses["max-iterations"], env)
	if err != nil {
		return 0, taskerr.Syntax(exprStr, "%s: error evaluating 'max-iterations': %s", formName, err)
	}
	if v.Kind != sexpr.ValInteger || v.Int < 0 {
		return 0, taskerr.TypeError(exprStr, "%s: 'max-iterations' must evaluate to a non-negative integer", formName)
	}
	return v.Int, nil
}

// decision is the parsed (action value) pair a controller must return.
type decision struct {
	action string // "continue" | "stop"
	value  sexpr.Value
}

func parseDecision(v sexpr.Value, formName, exprStr string) (decision, *taskerr.Error) {
	if v.Kind != sexpr.ValList || len(v.List) != 2 || v.List[0].Kind != sexpr.ValSymbol {
		return decision{}, taskerr.TypeError(exprStr, "%s: controller must return (action_symbol value), got %s", formName, sexpr.Repr(v))
	}
	action := v.List[0].Str
	if action != "continue" && action != "stop" {
		return decision{}, taskerr.TypeError(exprStr, "%s: controller decision action must be 'continue' or 'stop', got %q", formName, action)
	}
	return decision{action: action, value: v.List[1]}, nil
}

// callPhase applies a phase function, annotating any propagated error with
// the failing phase and iteration (spec.md §7's loop error-propagation
// policy).
func callPhase(ev *Evaluator, phaseName string, fn sexpr.Value, args []sexpr.Value, exprStr string, iteration int) (sexpr.Value, error) {
	v, err := ev.Apply(fn, args, exprStr)
	if err != nil {
		return sexpr.Value{}, taskerr.AsError(err).WithIteration(phaseName, iteration)
	}
	return v, nil
}

// handleDirectorEvaluatorLoop implements the director/executor/evaluator/
// controller cycle (spec.md §4.6), grounded on
// sexp_special_forms.py's handle_director_evaluator_loop. Each iteration
// builds an environment frame with a `*loop-config*` binding carrying
// max-iterations and the original initial-director-input, in the Python
// implementation's association-list shape. The phase callables are applied
// through Apply in their own captured environments, not in that frame, so
// `*loop-config*` is not visible inside the phases.
func handleDirectorEvaluatorLoop(ev *Evaluator, args []sexpr.Node, env *sexpr.Environment, exprStr string) (sexpr.Value, error) {
	required := []string{"max-iterations", "initial-director-input", "director", "executor", "evaluator", "controller"}
	clauses, terr := parseClauses(args, required, "director-evaluator-loop", exprStr)
	if terr != nil {
		return sexpr.Value{}, terr
	}

	maxIter, terr := evalIterationCount(ev, clauses, env, "director-evaluator-loop", exprStr)
	if terr != nil {
		return sexpr.Value{}, terr
	}

	directorInput, err := ev.Eval(clauses["initial-director-input"], env)
	if err != nil {
		return sexpr.Value{}, taskerr.Syntax(exprStr, "director-evaluator-loop: error evaluating 'initial-director-input': %s", err)
	}
	initialDirectorInput := directorInput

	directorFn, terr := evalCallableClause(ev, clauses, "director", env, "director-evaluator-loop", exprStr)
	if terr != nil {
		return sexpr.Value{}, terr
	}
	executorFn, terr := evalCallableClause(ev, clauses, "executor", env, "director-evaluator-loop", exprStr)
	if terr != nil {
		return sexpr.Value{}, terr
	}
	evaluatorFn, terr := evalCallableClause(ev, clauses, "evaluator", env, "director-evaluator-loop", exprStr)
	if terr != nil {
		return sexpr.Value{}, terr
	}
	controllerFn, terr := evalCallableClause(ev, clauses, "controller", env, "director-evaluator-loop", exprStr)
	if terr != nil {
		return sexpr.Value{}, terr
	}

	loopConfig := sexpr.VList([]sexpr.Value{
		sexpr.VList([]sexpr.Value{sexpr.VSym("max-iterations"), sexpr.VInt(maxIter)}),
		sexpr.VList([]sexpr.Value{sexpr.VSym("initial-director-input"), initialDirectorInput}),
	})

	// lastExecResult/loopResult default to the empty list, matching §4.6's
	// "if N=0, the loop evaluates to the empty list" and serving as the
	// result when max-iterations is exhausted without the executor ever
	// running (N=0).
	lastExecResult := sexpr.VList(nil)
	loopResult := sexpr.VList(nil)
	stopped := false

	iteration := int64(1)
	for iteration <= maxIter {
		phaseEnv := env.Extend(map[string]sexpr.Value{"*loop-config*": loopConfig})

		plan, err := callPhase(ev, "director", directorFn, []sexpr.Value{directorInput, sexpr.VInt(iteration)}, exprStr, int(iteration))
		if err != nil {
			return sexpr.Value{}, err
		}
		execResult, err := callPhase(ev, "executor", executorFn, []sexpr.Value{plan, sexpr.VInt(iteration)}, exprStr, int(iteration))
		if err != nil {
			return sexpr.Value{}, err
		}
		lastExecResult = execResult
		feedback, err := callPhase(ev, "evaluator", evaluatorFn, []sexpr.Value{execResult, plan, sexpr.VInt(iteration)}, exprStr, int(iteration))
		if err != nil {
			return sexpr.Value{}, err
		}
		decisionVal, err := callPhase(ev, "controller", controllerFn, []sexpr.Value{feedback, plan, execResult, sexpr.VInt(iteration)}, exprStr, int(iteration))
		if err != nil {
			return sexpr.Value{}, err
		}

		d, terr := parseDecision(decisionVal, "director-evaluator-loop", exprStr)
		if terr != nil {
			return sexpr.Value{}, terr.WithIteration("controller", int(iteration))
		}

		_ = phaseEnv // phaseEnv is not passed to the phase calls above; it is dropped at the end of each iteration

		if d.action == "stop" {
			loopResult = d.value
			stopped = true
			break
		}
		directorInput = d.value
		iteration++
	}
	if !stopped {
		loopResult = lastExecResult
	}

	return loopResult, nil
}

// handleIterativeLoop implements the executor/validator/controller cycle
// (spec.md §4.7), grounded on handle_iterative_loop. Unlike
// director-evaluator-loop, no `*loop-config*` frame is constructed here;
// the phase callables are applied in their own captured environments, as
// in director-evaluator-loop. This asymmetry is flagged as an open question
// in spec.md §9; this implementation preserves it rather than silently
// unifying the two forms.
func handleIterativeLoop(ev *Evaluator, args []sexpr.Node, env *sexpr.Environment, exprStr string) (sexpr.Value, error) {
	required := []string{"max-iterations", "initial-input", "test-command", "executor", "validator", "controller"}
	clauses, terr := parseClauses(args, required, "iterative-loop", exprStr)
	if terr != nil {
		return sexpr.Value{}, terr
	}

	maxIter, terr := evalIterationCount(ev, clauses, env, "iterative-loop", exprStr)
	if terr != nil {
		return sexpr.Value{}, terr
	}
	if maxIter == 0 {
		return sexpr.VList(nil), nil
	}

	loopInput, err := ev.Eval(clauses["initial-input"], env)
	if err != nil {
		return sexpr.Value{}, taskerr.Syntax(exprStr, "iterative-loop: error evaluating 'initial-input': %s", err)
	}

	testCmd, err := ev.Eval(clauses["test-command"], env)
	if err != nil {
		return sexpr.Value{}, taskerr.Syntax(exprStr, "iterative-loop: error evaluating 'test-command': %s", err)
	}
	if testCmd.Kind != sexpr.ValString {
		return sexpr.Value{}, taskerr.TypeError(exprStr, "iterative-loop: 'test-command' must evaluate to a string")
	}

	executorFn, terr := evalCallableClause(ev, clauses, "executor", env, "iterative-loop", exprStr)
	if terr != nil {
		return sexpr.Value{}, terr
	}
	validatorFn, terr := evalCallableClause(ev, clauses, "validator", env, "iterative-loop", exprStr)
	if terr != nil {
		return sexpr.Value{}, terr
	}
	controllerFn, terr := evalCallableClause(ev, clauses, "controller", env, "iterative-loop", exprStr)
	if terr != nil {
		return sexpr.Value{}, terr
	}

	lastExecResult := sexpr.VList(nil)
	loopResult := sexpr.VList(nil)
	stopped := false

	iteration := int64(1)
	for iteration <= maxIter {
		execResult, err := callPhase(ev, "executor", executorFn, []sexpr.Value{loopInput, sexpr.VInt(iteration)}, exprStr, int(iteration))
		if err != nil {
			return sexpr.Value{}, err
		}
		lastExecResult = execResult

		validation, err := callPhase(ev, "validator", validatorFn, []sexpr.Value{testCmd, sexpr.VInt(iteration)}, exprStr, int(iteration))
		if err != nil {
			return sexpr.Value{}, err
		}

		decisionVal, err := callPhase(ev, "controller", controllerFn, []sexpr.Value{execResult, validation, loopInput, sexpr.VInt(iteration)}, exprStr, int(iteration))
		if err != nil {
			return sexpr.Value{}, err
		}

		d, terr := parseDecision(decisionVal, "iterative-loop", exprStr)
		if terr != nil {
			return sexpr.Value{}, terr.WithIteration("controller", int(iteration))
		}

		if d.action == "stop" {
			loopResult = d.value
			stopped = true
			break
		}
		loopInput = d.value
		iteration++
	}
	if !stopped {
		loopResult = lastExecResult
	}

	return loopResult, nil
}
