// Package sexpr defines the S-expression AST, the runtime Value domain,
// lexically scoped Environments, and Closures — the data model of spec.md
// §3. It is grounded on original_source/src/task_system/ast_nodes.py (AST
// shape) and src/sexp_evaluator/sexp_closure.py +
// src/sexp_evaluator/sexp_environment.py (closure/environment semantics),
// reworked from Python's duck-typed nodes into a Go tagged union.
package sexpr

import (
	"fmt"
	"strconv"
	"strings"
)

// NodeKind tags the variant stored in a Node.
type NodeKind int

const (
	NodeInteger NodeKind = iota
	NodeFloat
	NodeString
	NodeBoolean
	NodeNil
	NodeSymbol
	NodeList
)

// Node is an immutable AST value produced by the parser. Only one of the
// typed fields is meaningful, selected by Kind — Go has no tagged union, so
// this mirrors the Rust/ML style described in spec.md §3 with a discriminated
// struct instead of an interface, keeping zero-allocation literals cheap.
type Node struct {
	Kind NodeKind

	Int  int64
	Flt  float64
	Str  string // also holds Symbol's name when Kind == NodeSymbol
	Bool bool
	List []Node
}

func Int(v int64) Node         { return Node{Kind: NodeInteger, Int: v} }
func Flt(v float64) Node       { return Node{Kind: NodeFloat, Flt: v} }
func Str(v string) Node        { return Node{Kind: NodeString, Str: v} }
func Bool(v bool) Node         { return Node{Kind: NodeBoolean, Bool: v} }
func Nil() Node                { return Node{Kind: NodeNil} }
func Sym(name string) Node     { return Node{Kind: NodeSymbol, Str: name} }
func List(items ...Node) Node  { return Node{Kind: NodeList, List: items} }
func ListOf(items []Node) Node { return Node{Kind: NodeList, List: items} }

// Quote wraps expr the way `'expr` or `(quote expr)` parse: internally these
// are always normalized to `(quote expr)` at parse time, per the DESIGN NOTES
// "Quoted ambiguity" guidance in spec.md §9 — there is no separate Quoted
// wrapper type to unwrap downstream.
func Quote(expr Node) Node {
	return List(Sym("quote"), expr)
}

func (n Node) IsSymbol(name string) bool {
	return n.Kind == NodeSymbol && n.Str == name
}

func (n Node) IsEmptyList() bool {
	return n.Kind == NodeList && len(n.List) == 0
}

// String renders a Node back to S-expression text. Used by the canonical
// pretty-printer invariant in spec.md §8 (parser determinism / round trip).
func (n Node) String() string {
	switch n.Kind {
	case NodeInteger:
		return strconv.FormatInt(n.Int, 10)
	case NodeFloat:
		return strconv.FormatFloat(n.Flt, 'g', -1, 64)
	case NodeString:
		return strconv.Quote(n.Str)
	case NodeBoolean:
		if n.Bool {
			return "true"
		}
		return "false"
	case NodeNil:
		return "nil"
	case NodeSymbol:
		return n.Str
	case NodeList:
		parts := make([]string, len(n.List))
		for i, item := range n.List {
			parts[i] = item.String()
		}
		return "(" + strings.Join(parts, " ") + ")"
	default:
		return fmt.Sprintf("<unknown-node-kind-%d>", n.Kind)
	}
}

// Equal performs a structural comparison of two AST nodes, used to check
// the parser's round-trip determinism invariant in tests.
func Equal(a, b Node) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case NodeInteger:
		return a.Int == b.Int
	case NodeFloat:
		return a.Flt == b.Flt
	case NodeString, NodeSymbol:
		return a.Str == b.Str
	case NodeBoolean:
		return a.Bool == b.Bool
	case NodeNil:
		return true
	case NodeList:
		if len(a.List) != len(b.List) {
			return false
		}
		for i := range a.List {
			if !Equal(a.List[i], b.List[i]) {
				return false
			}
		}
		return true
	}
	return false
}
