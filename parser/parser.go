// Package parser turns S-expression source text into sexpr.Node ASTs. It is
// grounded on original_source/src/sexp_parser/sexp_parser.py, which wraps
// the Python `sexpdata` library; here the same token grammar (parens,
// symbols, strings, numbers, quote shorthand) and the same three syntax
// error messages are reproduced with a small hand-written recursive-descent
// lexer/parser, since Go has no equivalent of sexpdata in the example pack.
package parser

import (
	"strconv"
	"strings"

	"github.com/hoidn/sexpflow/sexpr"
	"github.com/hoidn/sexpflow/taskerr"
)

type tokenKind int

const (
	tokLParen tokenKind = iota
	tokRParen
	tokQuote
	tokAtom
	tokString
	tokEOF
)

type token struct {
	kind tokenKind
	text string // raw text for tokAtom, unescaped content for tokString
}

type lexer struct {
	src []rune
	pos int
}

func newLexer(src string) *lexer {
	return &lexer{src: []rune(src)}
}

func (l *lexer) peek() (rune, bool) {
	if l.pos >= len(l.src) {
		return 0, false
	}
	return l.src[l.pos], true
}

func (l *lexer) skipSpace() {
	for {
		c, ok := l.peek()
		if !ok {
			return
		}
		if c == ';' { // line comment, matches sexpdata's default comment char
			for {
				c, ok := l.peek()
				if !ok || c == '\n' {
					break
				}
				l.pos++
			}
			continue
		}
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			l.pos++
			continue
		}
		return
	}
}

func isDelimiter(c rune) bool {
	return c == '(' || c == ')' || c == '\'' || c == '"' || c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == ';'
}

// next returns the next token. The returned error is always a *taskerr.Error
// with KindSyntax.
func (l *lexer) next(sexpString string) (token, error) {
	l.skipSpace()
	c, ok := l.peek()
	if !ok {
		return token{kind: tokEOF}, nil
	}
	switch c {
	case '(':
		l.pos++
		return token{kind: tokLParen}, nil
	case ')':
		l.pos++
		return token{kind: tokRParen}, nil
	case '\'':
		l.pos++
		return token{kind: tokQuote}, nil
	case '"':
		return l.lexString(sexpString)
	default:
		return l.lexAtom(), nil
	}
}

func (l *lexer) lexString(sexpString string) (token, error) {
	l.pos++ // consume opening quote
	var sb strings.Builder
	for {
		c, ok := l.peek()
		if !ok {
			return token{}, syntaxUnbalanced(sexpString)
		}
		if c == '"' {
			l.pos++
			return token{kind: tokString, text: sb.String()}, nil
		}
		if c == '\\' {
			l.pos++
			esc, ok := l.peek()
			if !ok {
				return token{}, syntaxUnbalanced(sexpString)
			}
			switch esc {
			case '"':
				sb.WriteRune('"')
			case '\\':
				sb.WriteRune('\\')
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case 'r':
				sb.WriteRune('\r')
			default:
				sb.WriteRune(esc)
			}
			l.pos++
			continue
		}
		sb.WriteRune(c)
		l.pos++
	}
}

func (l *lexer) lexAtom() token {
	start := l.pos
	for {
		c, ok := l.peek()
		if !ok || isDelimiter(c) {
			break
		}
		l.pos++
	}
	return token{kind: tokAtom, text: string(l.src[start:l.pos])}
}

func syntaxUnbalanced(sexpString string) *taskerr.Error {
	return taskerr.Syntax(sexpString, "S-expression syntax error: Unbalanced parentheses or brackets.")
}

func syntaxTrailing(sexpString string) *taskerr.Error {
	return taskerr.Syntax(sexpString, "S-expression syntax error: Unexpected content after the main expression.")
}

func syntaxInvalidToken(sexpString, text string) *taskerr.Error {
	return taskerr.Syntax(sexpString, "S-expression syntax error: Invalid token or literal: %q", text)
}

// Parse parses exactly one top-level S-expression from src. Trailing
// non-whitespace content after the expression is a syntax error, matching
// sexpdata's ExpectNothing behavior.
func Parse(src string) (sexpr.Node, error) {
	l := newLexer(src)
	expr, err := parseExpr(l, src)
	if err != nil {
		return sexpr.Node{}, err
	}
	l.skipSpace()
	if _, ok := l.peek(); ok {
		return sexpr.Node{}, syntaxTrailing(src)
	}
	return expr, nil
}

func parseExpr(l *lexer, sexpString string) (sexpr.Node, error) {
	tok, err := l.next(sexpString)
	if err != nil {
		return sexpr.Node{}, err
	}
	switch tok.kind {
	case tokEOF:
		return sexpr.Node{}, syntaxUnbalanced(sexpString)
	case tokLParen:
		return parseList(l, sexpString)
	case tokRParen:
		return sexpr.Node{}, syntaxUnbalanced(sexpString)
	case tokQuote:
		inner, err := parseExpr(l, sexpString)
		if err != nil {
			return sexpr.Node{}, err
		}
		return sexpr.Quote(inner), nil
	case tokString:
		return sexpr.Str(tok.text), nil
	case tokAtom:
		return atomNode(sexpString, tok.text)
	}
	return sexpr.Node{}, syntaxUnbalanced(sexpString)
}

func parseList(l *lexer, sexpString string) (sexpr.Node, error) {
	items := []sexpr.Node{}
	for {
		l.skipSpace()
		c, ok := l.peek()
		if !ok {
			return sexpr.Node{}, syntaxUnbalanced(sexpString)
		}
		if c == ')' {
			l.pos++
			return sexpr.ListOf(items), nil
		}
		item, err := parseExpr(l, sexpString)
		if err != nil {
			return sexpr.Node{}, err
		}
		items = append(items, item)
	}
}

// atomNode classifies a bare atom token into Integer, Float, Boolean, Nil, or
// Symbol — mirrors _convert_common_symbols plus sexpdata's numeric literal
// detection.
func atomNode(sexpString, text string) (sexpr.Node, error) {
	switch text {
	case "true":
		return sexpr.Bool(true), nil
	case "false":
		return sexpr.Bool(false), nil
	case "nil":
		return sexpr.Nil(), nil
	}
	if text == "" {
		return sexpr.Node{}, syntaxInvalidToken(sexpString, text)
	}
	if looksNumeric(text) {
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return sexpr.Int(i), nil
		}
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return sexpr.Flt(f), nil
		}
		return sexpr.Node{}, syntaxInvalidToken(sexpString, text)
	}
	return sexpr.Sym(text), nil
}

// looksNumeric reports whether text begins like a numeric literal (optional
// sign followed by a digit), so that symbols such as "-main" or "+" are not
// mistakenly routed through strconv and rejected.
func looksNumeric(text string) bool {
	i := 0
	if text[0] == '+' || text[0] == '-' {
		i = 1
	}
	if i >= len(text) {
		return false
	}
	return text[i] >= '0' && text[i] <= '9'
}
