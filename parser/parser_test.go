package parser

import (
	"testing"

	"github.com/hoidn/sexpflow/sexpr"
	"github.com/hoidn/sexpflow/taskerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) sexpr.Node {
	t.Helper()
	n, err := Parse(src)
	require.NoError(t, err)
	return n
}

func TestParseSimpleList(t *testing.T) {
	got := mustParse(t, "(add 1 2)")
	want := sexpr.List(sexpr.Sym("add"), sexpr.Int(1), sexpr.Int(2))
	assert.True(t, sexpr.Equal(want, got))
}

func TestParseNestedList(t *testing.T) {
	got := mustParse(t, "(list 1 (inner a b) 3)")
	want := sexpr.List(
		sexpr.Sym("list"),
		sexpr.Int(1),
		sexpr.List(sexpr.Sym("inner"), sexpr.Sym("a"), sexpr.Sym("b")),
		sexpr.Int(3),
	)
	assert.True(t, sexpr.Equal(want, got))
}

func TestParseDifferentAtomTypes(t *testing.T) {
	got := mustParse(t, `(data 123 4.5 "hello" true false nil symbol-name)`)
	want := sexpr.List(
		sexpr.Sym("data"),
		sexpr.Int(123),
		sexpr.Flt(4.5),
		sexpr.Str("hello"),
		sexpr.Bool(true),
		sexpr.Bool(false),
		sexpr.Nil(),
		sexpr.Sym("symbol-name"),
	)
	assert.True(t, sexpr.Equal(want, got))
}

func TestParseStringLiteral(t *testing.T) {
	got := mustParse(t, `"this is a string"`)
	assert.Equal(t, sexpr.Str("this is a string"), got)
}

func TestParseIntegerLiteral(t *testing.T) {
	got := mustParse(t, "42")
	assert.Equal(t, sexpr.Int(42), got)
}

func TestParseFloatLiteral(t *testing.T) {
	got := mustParse(t, "3.14159")
	assert.Equal(t, sexpr.Flt(3.14159), got)
}

func TestParseSymbol(t *testing.T) {
	got := mustParse(t, "my-symbol")
	assert.Equal(t, sexpr.Sym("my-symbol"), got)
}

func TestParseTrueSymbol(t *testing.T) {
	got := mustParse(t, "true")
	assert.Equal(t, sexpr.Bool(true), got)
}

func TestParseFalseSymbol(t *testing.T) {
	got := mustParse(t, "false")
	assert.Equal(t, sexpr.Bool(false), got)
}

func TestParseNilSymbol(t *testing.T) {
	got := mustParse(t, "nil")
	assert.Equal(t, sexpr.Nil(), got)
}

func TestParseEmptyList(t *testing.T) {
	got := mustParse(t, "()")
	assert.True(t, got.IsEmptyList())
}

func TestParseListWithOnlyNil(t *testing.T) {
	got := mustParse(t, "(nil)")
	want := sexpr.List(sexpr.Nil())
	assert.True(t, sexpr.Equal(want, got))
}

func TestParseListWithBooleans(t *testing.T) {
	got := mustParse(t, "(list true false)")
	want := sexpr.List(sexpr.Sym("list"), sexpr.Bool(true), sexpr.Bool(false))
	assert.True(t, sexpr.Equal(want, got))
}

func TestParseStringWithEscapes(t *testing.T) {
	got := mustParse(t, `"string with \"quotes\" and \\ backslash"`)
	assert.Equal(t, sexpr.Str(`string with "quotes" and \ backslash`), got)
}

func TestParseQuoteShorthandNormalizesToQuoteForm(t *testing.T) {
	got := mustParse(t, "'(a b)")
	want := sexpr.Quote(sexpr.List(sexpr.Sym("a"), sexpr.Sym("b")))
	assert.True(t, sexpr.Equal(want, got))
}

func TestParseUnbalancedMissingClose(t *testing.T) {
	_, err := Parse("(add 1 2")
	require.Error(t, err)
	terr, ok := err.(*taskerr.Error)
	require.True(t, ok)
	assert.Equal(t, taskerr.KindSyntax, terr.Kind)
	assert.Contains(t, terr.Message, "Unbalanced parentheses")
}

func TestParseUnbalancedExtraClose(t *testing.T) {
	_, err := Parse("(add 1 2))")
	require.Error(t, err)
	terr, ok := err.(*taskerr.Error)
	require.True(t, ok)
	assert.Contains(t, terr.Message, "Unexpected content after the main expression")
}

func TestParseMultipleExpressionsWithoutList(t *testing.T) {
	_, err := Parse("(expr1) (expr2)")
	require.Error(t, err)
	terr, ok := err.(*taskerr.Error)
	require.True(t, ok)
	assert.Contains(t, terr.Message, "Unexpected content after the main expression")
}

func TestParseUnmatchedParenIsUnbalanced(t *testing.T) {
	_, err := Parse("(a b c")
	require.Error(t, err)
	terr, ok := err.(*taskerr.Error)
	require.True(t, ok)
	assert.Contains(t, terr.Message, "Unbalanced parentheses")
}
