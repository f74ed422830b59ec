package evaluator

import (
	"github.com/hoidn/sexpflow/sexpr"
	"github.com/hoidn/sexpflow/taskerr"
)

// registerPrimitives populates env with the built-in procedures of spec.md
// §4.9, grounded on sexp_evaluator.py's _setup_global_environment and the
// PRIMITIVE_FUNCTIONS table in sexp_primitives.py.
func (ev *Evaluator) registerPrimitives(env *sexpr.Environment) {
	env.Define("list", sexpr.VCallable(primList))
	env.Define("eq?", sexpr.VCallable(primEq))
	env.Define("null?", sexpr.VCallable(primNullOrNil))
	env.Define("nil?", sexpr.VCallable(primNullOrNil))
	env.Define("+", sexpr.VCallable(primAdd))
	env.Define("-", sexpr.VCallable(primSub))
	env.Define("<", sexpr.VCallable(primLt))
	env.Define("=", sexpr.VCallable(primNumEq))
	env.Define("string=?", sexpr.VCallable(primStringEq))
	env.Define("string-append", sexpr.VCallable(primStringAppend))
	env.Define("get-field", sexpr.VCallable(primGetField))
	env.Define("read-files", sexpr.VCallable(ev.primReadFiles))
	env.Define("log-message", sexpr.VCallable(ev.primLogMessage))
}

func primList(args []sexpr.Value) (sexpr.Value, error) {
	items := make([]sexpr.Value, len(args))
	copy(items, args)
	return sexpr.VList(items), nil
}

// primEq implements `eq?` via structural equality (spec.md §9: eq?
// distinguishes Nil from the empty list; see null?/nil? for the other half
// of that open question's resolution).
func primEq(args []sexpr.Value) (sexpr.Value, error) {
	if len(args) != 2 {
		return sexpr.Value{}, taskerr.ArityMismatch("eq?", "'eq?' requires exactly 2 arguments, got %d", len(args))
	}
	return sexpr.VBool(sexpr.ValuesEqual(args[0], args[1])), nil
}

// primNullOrNil backs both `null?` and `nil?`: both treat Nil and the empty
// list as true, per the decision recorded for spec.md §9's open question.
func primNullOrNil(args []sexpr.Value) (sexpr.Value, error) {
	if len(args) != 1 {
		return sexpr.Value{}, taskerr.ArityMismatch("null?/nil?", "requires exactly 1 argument, got %d", len(args))
	}
	v := args[0]
	return sexpr.VBool(v.IsNil() || v.EmptyList()), nil
}

func numericArgs(name string, args []sexpr.Value) ([]float64, bool, *taskerr.Error) {
	nums := make([]float64, len(args))
	allInt := true
	for i, a := range args {
		n, ok := sexpr.AsNumber(a)
		if !ok {
			return nil, false, taskerr.TypeError(name, "%s: argument %d is not numeric: %s", name, i+1, sexpr.Repr(a))
		}
		nums[i] = n
		if a.Kind != sexpr.ValInteger && !(a.Kind == sexpr.ValBoolean) {
			allInt = false
		}
	}
	return nums, allInt, nil
}

// primAdd implements `+`, summing all arguments; booleans coerce to 0/1
// (spec.md §4.3). The result stays an Integer only when every argument was
// an Integer or Boolean; any Float argument promotes the whole sum.
func primAdd(args []sexpr.Value) (sexpr.Value, error) {
	if len(args) == 0 {
		return sexpr.VInt(0), nil
	}
	nums, allInt, terr := numericArgs("+", args)
	if terr != nil {
		return sexpr.Value{}, terr
	}
	var sum float64
	for _, n := range nums {
		sum += n
	}
	if allInt {
		return sexpr.VInt(int64(sum)), nil
	}
	return sexpr.VFlt(sum), nil
}

// primSub implements `-`: unary negation with one argument, left-to-right
// subtraction with two or more.
func primSub(args []sexpr.Value) (sexpr.Value, error) {
	if len(args) == 0 {
		return sexpr.Value{}, taskerr.ArityMismatch("-", "'-' requires at least 1 argument")
	}
	nums, allInt, terr := numericArgs("-", args)
	if terr != nil {
		return sexpr.Value{}, terr
	}
	var result float64
	if len(nums) == 1 {
		result = -nums[0]
	} else {
		result = nums[0]
		for _, n := range nums[1:] {
			result -= n
		}
	}
	if allInt {
		return sexpr.VInt(int64(result)), nil
	}
	return sexpr.VFlt(result), nil
}

// primLt implements `<` over a chain of numeric arguments: true iff the
// sequence is strictly increasing.
func primLt(args []sexpr.Value) (sexpr.Value, error) {
	if len(args) < 2 {
		return sexpr.Value{}, taskerr.ArityMismatch("<", "'<' requires at least 2 arguments")
	}
	nums, _, terr := numericArgs("<", args)
	if terr != nil {
		return sexpr.Value{}, terr
	}
	for i := 1; i < len(nums); i++ {
		if !(nums[i-1] < nums[i]) {
			return sexpr.VBool(false), nil
		}
	}
	return sexpr.VBool(true), nil
}

// primNumEq implements `=` over a chain of numeric arguments.
func primNumEq(args []sexpr.Value) (sexpr.Value, error) {
	if len(args) < 2 {
		return sexpr.Value{}, taskerr.ArityMismatch("=", "'=' requires at least 2 arguments")
	}
	nums, _, terr := numericArgs("=", args)
	if terr != nil {
		return sexpr.Value{}, terr
	}
	for i := 1; i < len(nums); i++ {
		if nums[i] != nums[0] {
			return sexpr.VBool(false), nil
		}
	}
	return sexpr.VBool(true), nil
}

func primStringEq(args []sexpr.Value) (sexpr.Value, error) {
	if len(args) < 2 {
		return sexpr.Value{}, taskerr.ArityMismatch("string=?", "'string=?' requires at least 2 arguments")
	}
	first, ok := sexpr.Display(args[0])
	if !ok || args[0].Kind != sexpr.ValString {
		return sexpr.Value{}, taskerr.TypeError("string=?", "'string=?' arguments must be strings")
	}
	for _, a := range args[1:] {
		s, ok := sexpr.Display(a)
		if !ok || a.Kind != sexpr.ValString || s != first {
			return sexpr.VBool(false), nil
		}
	}
	return sexpr.VBool(true), nil
}

// primStringAppend implements `string-append`, coercing every argument to
// its display text (spec.md §4.3) and concatenating.
func primStringAppend(args []sexpr.Value) (sexpr.Value, error) {
	out := ""
	for i, a := range args {
		s, ok := sexpr.Display(a)
		if !ok {
			return sexpr.Value{}, taskerr.TypeError("string-append", "'string-append' argument %d is not coercible to a string: %s", i+1, sexpr.Repr(a))
		}
		out += s
	}
	return sexpr.VStr(out), nil
}

// primGetField implements `(get-field task-result "field-name")`, reaching
// into a TaskResult's top-level status/content/notes, or into Notes by key
// (spec.md §4.5's notes-augmentation fields are read back this way).
func primGetField(args []sexpr.Value) (sexpr.Value, error) {
	if len(args) != 2 || args[1].Kind != sexpr.ValString {
		return sexpr.Value{}, taskerr.ArityMismatch("get-field", "'get-field' requires (task-result field-name)")
	}
	if args[0].Kind != sexpr.ValTaskResult {
		return sexpr.Value{}, taskerr.TypeError("get-field", "'get-field' first argument must be a task result, got %s", sexpr.Repr(args[0]))
	}
	field := args[1].Str
	tr := args[0].TaskResult
	switch field {
	case "status":
		return sexpr.VStr(string(tr.Status)), nil
	case "content":
		return goValueToSexpr(tr.Content), nil
	default:
		v, ok := tr.Note(field)
		if !ok {
			return sexpr.VNil(), nil
		}
		return goValueToSexpr(v), nil
	}
}

// goValueToSexpr lifts the loosely-typed Go values stored in TaskResult's
// Content/Notes (strings, numbers, bools, nil, maps, slices from JSON
// decoding) into Values, for use by get-field.
func goValueToSexpr(v any) sexpr.Value {
	return sexpr.FromGo(v)
}

// primReadFiles implements `(read-files (quote (path1 path2 ...)))`: a
// single argument evaluating to a list of strings (spec.md §4.3), delegating
// to the registered `read_files` tool so tool-calling and S-expression code
// share one file-reading implementation (spec.md §6).
func (ev *Evaluator) primReadFiles(args []sexpr.Value) (sexpr.Value, error) {
	if len(args) != 1 || args[0].Kind != sexpr.ValList {
		return sexpr.Value{}, taskerr.TypeError("read-files", "'read-files' requires a single argument evaluating to a list of paths, e.g. (read-files (quote (\"a.txt\" \"b.txt\")))")
	}
	paths := make([]any, 0, len(args[0].List))
	for _, a := range args[0].List {
		s, ok := sexpr.Display(a)
		if !ok || a.Kind != sexpr.ValString {
			return sexpr.Value{}, taskerr.TypeError("read-files", "'read-files' path list must contain only strings")
		}
		paths = append(paths, s)
	}
	result, err := ev.ToolReg.Invoke("read_files", map[string]any{"paths": paths})
	if err != nil {
		return sexpr.Value{}, err
	}
	return sexpr.VTaskResult(result), nil
}

// primLogMessage implements `(log-message "level" "text")` by delegating to
// the registered `log_message` tool.
func (ev *Evaluator) primLogMessage(args []sexpr.Value) (sexpr.Value, error) {
	if len(args) != 2 {
		return sexpr.Value{}, taskerr.ArityMismatch("log-message", "'log-message' requires (level message)")
	}
	level, ok1 := sexpr.Display(args[0])
	message, ok2 := sexpr.Display(args[1])
	if !ok1 || !ok2 {
		return sexpr.Value{}, taskerr.TypeError("log-message", "'log-message' arguments must be strings")
	}
	if _, err := ev.ToolReg.Invoke("log_message", map[string]any{"level": level, "message": message}); err != nil {
		return sexpr.Value{}, err
	}
	return sexpr.VNil(), nil
}
