package expr

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokOp     // == != < <= > >= && || !
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// ParseError reports a malformed expression. Unlike missing context fields,
// which evaluate tolerantly, a syntax error is always surfaced.
type ParseError struct {
	Expr   string
	Pos    int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d in %q: %s", e.Pos, e.Expr, e.Reason)
}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case c == '\'' || c == '"':
			quote := c
			j := i + 1
			for j < len(src) && src[j] != quote {
				j++
			}
			if j >= len(src) {
				return nil, &ParseError{src, i, "unterminated string"}
			}
			toks = append(toks, token{tokString, src[i+1 : j], i})
			i = j + 1
		case strings.ContainsRune("=!<>&|", rune(c)):
			two := ""
			if i+1 < len(src) {
				two = src[i : i+2]
			}
			switch two {
			case "==", "!=", "<=", ">=", "&&", "||":
				toks = append(toks, token{tokOp, two, i})
				i += 2
			default:
				switch c {
				case '<', '>', '!':
					toks = append(toks, token{tokOp, string(c), i})
					i++
				default:
					return nil, &ParseError{src, i, fmt.Sprintf("unexpected character %q", c)}
				}
			}
		case c >= '0' && c <= '9' || c == '-' && i+1 < len(src) && src[i+1] >= '0' && src[i+1] <= '9':
			j := i + 1
			for j < len(src) && (src[j] >= '0' && src[j] <= '9' || src[j] == '.') {
				j++
			}
			toks = append(toks, token{tokNumber, src[i:j], i})
			i = j
		case unicode.IsLetter(rune(c)) || c == '_' || c == '@':
			j := i + 1
			for j < len(src) && (unicode.IsLetter(rune(src[j])) || unicode.IsDigit(rune(src[j])) || src[j] == '_' || src[j] == '.') {
				j++
			}
			toks = append(toks, token{tokIdent, src[i:j], i})
			i = j
		default:
			return nil, &ParseError{src, i, fmt.Sprintf("unexpected character %q", c)}
		}
	}
	toks = append(toks, token{tokEOF, "", len(src)})
	return toks, nil
}

// parser is a small recursive-descent evaluator. Expressions are short
// (edge conditions, template markers), so parse and eval happen in one walk
// without building an AST.
type parser struct {
	src  string
	toks []token
	pos  int
	ctx  map[string]any
}

func (p *parser) peek() token  { return p.toks[p.pos] }
func (p *parser) next() token  { t := p.toks[p.pos]; p.pos++; return t }
func (p *parser) errf(t token, format string, args ...any) error {
	return &ParseError{p.src, t.pos, fmt.Sprintf(format, args...)}
}

// Evaluate parses and evaluates an expression against a context namespace.
// Member access on an undefined path yields Undefined rather than an error;
// see the Undefined docs for the comparison rules.
func Evaluate(expression string, ctx map[string]any) (any, error) {
	toks, err := lex(expression)
	if err != nil {
		return nil, err
	}
	p := &parser{src: expression, toks: toks, ctx: ctx}
	v, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errf(t, "unexpected trailing token %q", t.text)
	}
	return v, nil
}

// EvaluateBool evaluates an expression and reduces it to its truthiness.
func EvaluateBool(expression string, ctx map[string]any) (bool, error) {
	v, err := Evaluate(expression, ctx)
	if err != nil {
		return false, err
	}
	return Truthy(v), nil
}

func (p *parser) parseOr() (any, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOp && p.peek().text == "||" {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Truthy(left) || Truthy(right)
	}
	return left, nil
}

func (p *parser) parseAnd() (any, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOp && p.peek().text == "&&" {
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = Truthy(left) && Truthy(right)
	}
	return left, nil
}

func (p *parser) parseNot() (any, error) {
	if t := p.peek(); t.kind == tokOp && t.text == "!" {
		p.next()
		v, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return !Truthy(v), nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (any, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	if t.kind != tokOp {
		return left, nil
	}
	switch t.text {
	case "==", "!=", "<", "<=", ">", ">=":
	default:
		return left, nil
	}
	op := p.next().text
	right, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return compare(op, left, right), nil
}

func (p *parser) parsePrimary() (any, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, p.errf(t, "invalid number %q", t.text)
		}
		return f, nil
	case tokString:
		return t.text, nil
	case tokIdent:
		switch t.text {
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "null":
			return nil, nil
		}
		return Lookup(p.ctx, t.text), nil
	case tokLParen:
		v, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if close := p.next(); close.kind != tokRParen {
			return nil, p.errf(close, "expected ')'")
		}
		return v, nil
	default:
		return nil, p.errf(t, "unexpected token %q", t.text)
	}
}

// compare applies a comparison operator under the tolerant-undefined rules.
func compare(op string, left, right any) bool {
	lu, ru := IsUndefined(left), IsUndefined(right)
	if lu || ru {
		switch op {
		case "==":
			// Existence parity with null: a missing field equals null.
			return lu && right == nil || ru && left == nil
		case "!=":
			if lu && ru {
				return false
			}
			if lu {
				return right != nil
			}
			return left != nil
		default:
			return false
		}
	}
	switch op {
	case "==":
		return looseEqual(left, right)
	case "!=":
		return !looseEqual(left, right)
	}
	ord, ok := compareOrder(left, right)
	if !ok {
		return false
	}
	switch op {
	case "<":
		return ord < 0
	case "<=":
		return ord <= 0
	case ">":
		return ord > 0
	case ">=":
		return ord >= 0
	}
	return false
}
