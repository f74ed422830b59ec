package evaluator

import (
	"github.com/hoidn/sexpflow/sexpr"
	"github.com/hoidn/sexpflow/task"
	"github.com/hoidn/sexpflow/taskerr"
)

// handleDefatom implements `(defatom name (params p1 p2...) (instructions
// "...") (subtype "...") (description "...") (model "...")
// (output_format (quote ((type "json")))))`, registering a new atomic
// template and returning its name symbol — grounded on
// sexp_special_forms.py's handle_defatom_form, trimmed to the clauses
// SPEC_FULL.md's Template carries (subtype/description/model/output_format).
// A (history_config ...) clause is accepted and ignored: Template has no
// field for it.
func handleDefatom(ev *Evaluator, args []sexpr.Node, env *sexpr.Environment, exprStr string) (sexpr.Value, error) {
	if len(args) < 2 || args[0].Kind != sexpr.NodeSymbol {
		return sexpr.Value{}, taskerr.Syntax(exprStr, "'defatom' requires at least a name and instructions clause")
	}
	name := args[0].Str

	tmpl := &task.Template{
		Name:    name,
		Type:    "atomic",
		Subtype: "standard",
		Params:  map[string]task.ParamSpec{},
	}

	var sawInstructions bool
	for _, clause := range args[1:] {
		if clause.Kind != sexpr.NodeList || len(clause.List) < 1 || clause.List[0].Kind != sexpr.NodeSymbol {
			return sexpr.Value{}, taskerr.Syntax(exprStr, "defatom clauses must be (key ...) lists")
		}
		key := clause.List[0].Str
		switch key {
		case "params":
			for _, p := range clause.List[1:] {
				var pname string
				switch p.Kind {
				case sexpr.NodeSymbol:
					pname = p.Str
				case sexpr.NodeList:
					if len(p.List) < 1 || p.List[0].Kind != sexpr.NodeSymbol {
						return sexpr.Value{}, taskerr.Syntax(exprStr, "invalid parameter definition in defatom params")
					}
					pname = p.List[0].Str
				default:
					return sexpr.Value{}, taskerr.Syntax(exprStr, "invalid parameter definition in defatom params")
				}
				tmpl.Params[pname] = task.ParamSpec{Description: "Parameter " + pname}
				tmpl.ParamOrder = append(tmpl.ParamOrder, pname)
			}
		case "instructions":
			if len(clause.List) != 2 || clause.List[1].Kind != sexpr.NodeString {
				return sexpr.Value{}, taskerr.Syntax(exprStr, "defatom requires an (instructions \"string\") clause")
			}
			tmpl.Instructions = clause.List[1].Str
			sawInstructions = true
		case "subtype":
			tmpl.Subtype = stringClauseValue(clause)
		case "description":
			tmpl.Description = stringClauseValue(clause)
		case "model":
			tmpl.Model = stringClauseValue(clause)
		case "output_format":
			tmpl.OutputFormat = &task.OutputFormat{Type: outputFormatType(clause)}
		case "history_config":
			// Accepted for compatibility; Template carries no history settings.
		default:
			return sexpr.Value{}, taskerr.Syntax(exprStr, "unknown defatom clause: %s", key)
		}
	}

	if !sawInstructions {
		return sexpr.Value{}, taskerr.Syntax(exprStr, "'defatom' for task %q is missing the (instructions \"string\") clause", name)
	}

	if err := ev.Tasks.Registry.Register(tmpl); err != nil {
		return sexpr.Value{}, taskerr.Syntax(exprStr, "%s", err)
	}
	return sexpr.VSym(name), nil
}

func stringClauseValue(clause sexpr.Node) string {
	if len(clause.List) >= 2 && clause.List[1].Kind == sexpr.NodeString {
		return clause.List[1].Str
	}
	return ""
}

// outputFormatType unwraps `(output_format (quote ((type "json"))))` or the
// simpler `(output_format "json")` shorthand down to its type string.
func outputFormatType(clause sexpr.Node) string {
	if len(clause.List) < 2 {
		return "text"
	}
	value := clause.List[1]
	if value.Kind == sexpr.NodeString {
		return value.Str
	}
	// (quote ((type "json")))
	if value.Kind == sexpr.NodeList && len(value.List) == 2 && value.List[0].IsSymbol("quote") {
		value = value.List[1]
	}
	if value.Kind != sexpr.NodeList {
		return "text"
	}
	for _, pair := range value.List {
		if pair.Kind == sexpr.NodeList && len(pair.List) == 2 && pair.List[0].IsSymbol("type") && pair.List[1].Kind == sexpr.NodeString {
			return pair.List[1].Str
		}
	}
	return "text"
}
