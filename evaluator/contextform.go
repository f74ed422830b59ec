package evaluator

import (
	"github.com/hoidn/sexpflow/context"
	"github.com/hoidn/sexpflow/sexpr"
	"github.com/hoidn/sexpflow/taskerr"
)

// handleGetContext implements `(get-context (query "...") (matching_strategy
// "content"|"metadata") (inputs (quote ...)) ...)` (spec.md §4.8). Unlike
// the other primitives, this must be a special form rather than a plain
// Callable: its operands are named option clauses, evaluated one at a time
// while being matched against the option table, not pre-evaluated
// positional arguments — the same clause-list shape `defatom` and the loop
// forms already parse (see evaluator/defatom.go, evaluator/loops.go).
func handleGetContext(ev *Evaluator, args []sexpr.Node, env *sexpr.Environment, exprStr string) (sexpr.Value, error) {
	in := context.GenerationInput{}

	for _, clause := range args {
		if clause.Kind != sexpr.NodeList || len(clause.List) != 2 || clause.List[0].Kind != sexpr.NodeSymbol {
			return sexpr.Value{}, taskerr.Syntax(exprStr, "get-context: each option must be a (name expr) list")
		}
		key := clause.List[0].Str
		val, err := ev.Eval(clause.List[1], env)
		if err != nil {
			return sexpr.Value{}, err
		}

		switch key {
		case "query":
			s, ok := sexpr.Display(val)
			if !ok {
				return sexpr.Value{}, taskerr.TypeError(exprStr, "get-context: 'query' must evaluate to a string")
			}
			in.TemplateDescription = s
		case "templateDescription":
			s, ok := sexpr.Display(val)
			if !ok {
				return sexpr.Value{}, taskerr.TypeError(exprStr, "get-context: 'templateDescription' must evaluate to a string")
			}
			in.TemplateDescription = s
		case "templateType":
			s, ok := sexpr.Display(val)
			if !ok {
				return sexpr.Value{}, taskerr.TypeError(exprStr, "get-context: 'templateType' must evaluate to a string")
			}
			in.TemplateType = s
		case "templateSubtype":
			s, ok := sexpr.Display(val)
			if !ok {
				return sexpr.Value{}, taskerr.TypeError(exprStr, "get-context: 'templateSubtype' must evaluate to a string")
			}
			in.TemplateSubtype = s
		case "inputs":
			m, terr := assocListToMap(val, exprStr)
			if terr != nil {
				return sexpr.Value{}, terr
			}
			in.Inputs = m
		case "matching_strategy":
			s, ok := sexpr.Display(val)
			if !ok || (s != "content" && s != "metadata") {
				return sexpr.Value{}, taskerr.TypeError(exprStr, "get-context: 'matching_strategy' must evaluate to \"content\" or \"metadata\"")
			}
			in.MatchingStrategy = s
		case "inheritedContext":
			s, ok := sexpr.Display(val)
			if !ok {
				return sexpr.Value{}, taskerr.TypeError(exprStr, "get-context: 'inheritedContext' must evaluate to a string")
			}
			in.InheritedContext = s
		case "previousOutputs":
			if val.Kind != sexpr.ValList {
				return sexpr.Value{}, taskerr.TypeError(exprStr, "get-context: 'previousOutputs' must evaluate to a list")
			}
			outputs := make([]string, 0, len(val.List))
			for _, item := range val.List {
				s, ok := sexpr.Display(item)
				if !ok {
					return sexpr.Value{}, taskerr.TypeError(exprStr, "get-context: 'previousOutputs' entries must be strings")
				}
				outputs = append(outputs, s)
			}
			in.PreviousOutputs = outputs
		case "fresh_context":
			s, ok := sexpr.Display(val)
			if !ok {
				return sexpr.Value{}, taskerr.TypeError(exprStr, "get-context: 'fresh_context' must evaluate to a string")
			}
			in.FreshContext = s
		default:
			return sexpr.Value{}, taskerr.Syntax(exprStr, "get-context: unknown option %q", key)
		}
	}

	result, err := ev.Context.GetContext(context.NewGenerationInput(in))
	if err != nil {
		return sexpr.Value{}, taskerr.TaskFailure(exprStr, taskerr.ReasonContextRetrievalFailure, "%s", err)
	}

	paths := make([]sexpr.Value, len(result.Matches))
	for i, m := range result.Matches {
		paths[i] = sexpr.VStr(m.Path)
	}
	return sexpr.VList(paths), nil
}

// assocListToMap converts a quoted association list `((key1 val1) (key2
// val2) ...)` into a map, the shape spec.md §4.8 expects for `inputs`.
func assocListToMap(v sexpr.Value, exprStr string) (map[string]any, *taskerr.Error) {
	if v.Kind != sexpr.ValList {
		return nil, taskerr.TypeError(exprStr, "get-context: 'inputs' must evaluate to an association list")
	}
	out := make(map[string]any, len(v.List))
	for _, pair := range v.List {
		if pair.Kind != sexpr.ValList || len(pair.List) != 2 {
			return nil, taskerr.TypeError(exprStr, "get-context: 'inputs' entries must be (key value) pairs")
		}
		key, ok := sexpr.Display(pair.List[0])
		if !ok {
			return nil, taskerr.TypeError(exprStr, "get-context: 'inputs' key must be a string or symbol")
		}
		out[key] = sexprValueToGo(pair.List[1])
	}
	return out, nil
}

// sexprValueToGo lifts a Value into the loosely-typed Go representation
// used by GenerationInput.Inputs and TaskResult.Content/Notes elsewhere.
func sexprValueToGo(v sexpr.Value) any {
	return sexpr.ToGo(v)
}
