package sexpr

import (
	"fmt"
	"strconv"
)

// ValueKind tags the variant stored in a Value. Every AST atom kind has a
// corresponding Value kind, plus List, Closure, Callable, and TaskResult —
// spec.md §3's Value sum type.
type ValueKind int

const (
	ValInteger ValueKind = iota
	ValFloat
	ValString
	ValBoolean
	ValNil
	ValSymbol
	ValList
	ValClosure
	ValCallable
	ValTaskResult
)

// Status is the TaskResult.status enum from spec.md §3.
type Status string

const (
	StatusComplete Status = "COMPLETE"
	StatusFailed   Status = "FAILED"
	StatusPending  Status = "PENDING"
	StatusPartial  Status = "PARTIAL"
)

// TaskResult is the universal {status, content, notes} return envelope
// shared by atomic tasks and direct tools (spec.md §3).
type TaskResult struct {
	Status  Status
	Content any // string or parsed object (map[string]any, []any, ...)
	Notes   map[string]any
}

func (r TaskResult) Note(key string) (any, bool) {
	if r.Notes == nil {
		return nil, false
	}
	v, ok := r.Notes[key]
	return v, ok
}

// CallableFunc is the Go representation of a host function exposed as a
// Value — used both for direct tools bridged into the S-expression world and
// for primitives that need first-class-function treatment.
type CallableFunc func(args []Value) (Value, error)

// Closure is a first-class lambda value. It owns its parameter list and
// unevaluated body, and shares ownership of its definition environment —
// mirrors original_source/src/sexp_evaluator/sexp_closure.py exactly, with
// the Python duck-typed fields replaced by concrete Go types.
type Closure struct {
	Params []string
	Body   []Node
	Env    *Environment
}

// Value is the runtime value domain of the evaluator (spec.md §3).
type Value struct {
	Kind ValueKind

	Int        int64
	Flt        float64
	Str        string // Symbol name when Kind == ValSymbol
	Bool       bool
	List       []Value
	Closure    *Closure
	Callable   CallableFunc
	TaskResult TaskResult
}

func VInt(v int64) Value       { return Value{Kind: ValInteger, Int: v} }
func VFlt(v float64) Value     { return Value{Kind: ValFloat, Flt: v} }
func VStr(v string) Value      { return Value{Kind: ValString, Str: v} }
func VBool(v bool) Value       { return Value{Kind: ValBoolean, Bool: v} }
func VNil() Value              { return Value{Kind: ValNil} }
func VSym(name string) Value   { return Value{Kind: ValSymbol, Str: name} }
func VList(items []Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{Kind: ValList, List: items}
}
func VClosure(c *Closure) Value         { return Value{Kind: ValClosure, Closure: c} }
func VCallable(fn CallableFunc) Value   { return Value{Kind: ValCallable, Callable: fn} }
func VTaskResult(r TaskResult) Value    { return Value{Kind: ValTaskResult, TaskResult: r} }

// FromGo lifts a loosely-typed Go value (as produced by encoding/json
// decoding, or passed in from the dispatcher's external params mapping)
// into a Value. Maps render as association lists ((key value) ...), the
// same convention TaskResult.Content/Notes use elsewhere (spec.md §4.8's
// `inputs` association list, §6's programmatic `params` mapping).
func FromGo(v any) Value {
	switch t := v.(type) {
	case nil:
		return VNil()
	case Value:
		return t
	case string:
		return VStr(t)
	case bool:
		return VBool(t)
	case int:
		return VInt(int64(t))
	case int64:
		return VInt(t)
	case float64:
		return VFlt(t)
	case []any:
		items := make([]Value, len(t))
		for i, e := range t {
			items[i] = FromGo(e)
		}
		return VList(items)
	case []string:
		items := make([]Value, len(t))
		for i, e := range t {
			items[i] = VStr(e)
		}
		return VList(items)
	case map[string]any:
		items := make([]Value, 0, len(t))
		for k, e := range t {
			items = append(items, VList([]Value{VStr(k), FromGo(e)}))
		}
		return VList(items)
	default:
		return VStr(fmt.Sprintf("%v", t))
	}
}

// EmptyList reports whether v is the S-expression '() value.
func (v Value) EmptyList() bool {
	return v.Kind == ValList && len(v.List) == 0
}

// IsNil reports whether v is nil; the empty list is not nil here. spec.md
// §9's open question ("null?/nil? distinguish empty list and nil
// sometimes") is resolved per operator: null?/nil? treat both as true (the
// primitive checks IsNil() || EmptyList()), while ValuesEqual (eq?)
// distinguishes them structurally by Kind, per the DESIGN NOTES decision to
// "pick one semantics and document" for each operator independently.
func (v Value) IsNil() bool {
	return v.Kind == ValNil
}

// Truthy implements the evaluator's single truthiness rule (spec.md §4.3,
// §9): only `false` and `nil` are falsey. This is a deliberate behavior
// change from the Python source's inconsistent truthiness and is applied
// uniformly to `if`, `and`, and `or`.
func (v Value) Truthy() bool {
	switch v.Kind {
	case ValBoolean:
		return v.Bool
	case ValNil:
		return false
	default:
		return true
	}
}

// FromNode converts a literal AST node to its runtime Value, used by the
// evaluator's atom case (spec.md §4.3 step 1) and by `quote`.
func FromNode(n Node) Value {
	switch n.Kind {
	case NodeInteger:
		return VInt(n.Int)
	case NodeFloat:
		return VFlt(n.Flt)
	case NodeString:
		return VStr(n.Str)
	case NodeBoolean:
		return VBool(n.Bool)
	case NodeNil:
		return VNil()
	case NodeSymbol:
		return VSym(n.Str)
	case NodeList:
		items := make([]Value, len(n.List))
		for i, c := range n.List {
			items[i] = FromNode(c)
		}
		return VList(items)
	}
	return VNil()
}

// ToNode converts a quoted runtime Value back into an AST node, the inverse
// of FromNode. Nothing in this module calls it.
func ToNode(v Value) Node {
	switch v.Kind {
	case ValInteger:
		return Int(v.Int)
	case ValFloat:
		return Flt(v.Flt)
	case ValString:
		return Str(v.Str)
	case ValBoolean:
		return Bool(v.Bool)
	case ValNil:
		return Nil()
	case ValSymbol:
		return Sym(v.Str)
	case ValList:
		items := make([]Node, len(v.List))
		for i, c := range v.List {
			items[i] = ToNode(c)
		}
		return ListOf(items)
	}
	return Nil()
}

// ValuesEqual implements the `eq?` primitive's structural equality rule
// (spec.md §4.3): numeric cross-type 1 == 1.0 is true; strings/symbols
// compare by their text; lists compare recursively; booleans and nil
// compare by identity/kind. Types that differ beyond the numeric coercion
// rule are unequal — in particular Nil and the empty list are NOT eq?
// (this is the "distinguishes structurally" branch of spec.md §9's open
// question). Named distinctly from ast.go's Equal(Node, Node), which
// compares parsed syntax rather than runtime values.
func ValuesEqual(a, b Value) bool {
	if isNumeric(a) && isNumeric(b) {
		return numericValue(a) == numericValue(b)
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case ValString, ValSymbol:
		return a.Str == b.Str
	case ValBoolean:
		return a.Bool == b.Bool
	case ValNil:
		return true
	case ValList:
		if len(a.List) != len(b.List) {
			return false
		}
		for i := range a.List {
			if !ValuesEqual(a.List[i], b.List[i]) {
				return false
			}
		}
		return true
	case ValClosure:
		return a.Closure == b.Closure
	default:
		return false
	}
}

func isNumeric(v Value) bool {
	return v.Kind == ValInteger || v.Kind == ValFloat
}

func numericValue(v Value) float64 {
	if v.Kind == ValInteger {
		return float64(v.Int)
	}
	return v.Flt
}

// AsNumber extracts a float64 from an Integer, Float, or Boolean value —
// `+` treats booleans as integers (true=1, false=0) per spec.md §4.3.
func AsNumber(v Value) (float64, bool) {
	switch v.Kind {
	case ValInteger:
		return float64(v.Int), true
	case ValFloat:
		return v.Flt, true
	case ValBoolean:
		if v.Bool {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// Display renders a Value as its string-append coercion: strings pass
// through, symbols render by name, numbers/booleans/nil stringify, and
// lists/closures/callables/task-results are not coercible (spec.md §4.3
// `string-append`).
func Display(v Value) (string, bool) {
	switch v.Kind {
	case ValString:
		return v.Str, true
	case ValSymbol:
		return v.Str, true
	case ValInteger:
		return strconv.FormatInt(v.Int, 10), true
	case ValFloat:
		return strconv.FormatFloat(v.Flt, 'g', -1, 64), true
	case ValBoolean:
		if v.Bool {
			return "true", true
		}
		return "false", true
	case ValNil:
		return "", true
	default:
		return "", false
	}
}

// ToGo lowers a Value into the loosely-typed Go representation used by
// TaskResult.Content/Notes and the dispatcher's external params mapping
// (spec.md §6) — the inverse of FromGo. Lists become []any, association
// lists of (key value) pairs are not specially detected (callers that want
// a map back should use assocListToMap-style decoding against a known
// shape); closures/callables/task-results render via Repr since they have
// no JSON-compatible form.
func ToGo(v Value) any {
	switch v.Kind {
	case ValInteger:
		return v.Int
	case ValFloat:
		return v.Flt
	case ValString, ValSymbol:
		return v.Str
	case ValBoolean:
		return v.Bool
	case ValNil:
		return nil
	case ValList:
		items := make([]any, len(v.List))
		for i, e := range v.List {
			items[i] = ToGo(e)
		}
		return items
	default:
		return Repr(v)
	}
}

// Repr renders a Value for debug/logging output.
func Repr(v Value) string {
	switch v.Kind {
	case ValList:
		s := "("
		for i, item := range v.List {
			if i > 0 {
				s += " "
			}
			s += Repr(item)
		}
		return s + ")"
	case ValClosure:
		return fmt.Sprintf("<closure/%d>", len(v.Closure.Params))
	case ValCallable:
		return "<callable>"
	case ValTaskResult:
		return fmt.Sprintf("<task-result status=%s>", v.TaskResult.Status)
	case ValString:
		return strconv.Quote(v.Str)
	default:
		s, _ := Display(v)
		return s
	}
}
