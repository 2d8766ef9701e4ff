package transform

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/pkg/connector"
)

var (
	placeholder    = regexp.MustCompile(`\{(\w+)\}`)
	safeArithmetic = regexp.MustCompile(`^[\d\s+\-*/(). ]+$`)

	errDivisionByZero = errors.New("division by zero")
)

// node is an arithmetic expression tree over record columns.
type node interface {
	eval(rec connector.Record) (float64, error)
}

type numberNode float64

func (n numberNode) eval(connector.Record) (float64, error) { return float64(n), nil }

type refNode string

func (r refNode) eval(rec connector.Record) (float64, error) {
	v := rec[string(r)]
	n, ok := asNumber(v)
	if !ok {
		return 0, fmt.Errorf("column %q is not numeric: %q", string(r), toString(v))
	}
	return n, nil
}

type negNode struct{ x node }

func (n negNode) eval(rec connector.Record) (float64, error) {
	v, err := n.x.eval(rec)
	return -v, err
}

type binaryNode struct {
	op   byte
	l, r node
}

func (b binaryNode) eval(rec connector.Record) (float64, error) {
	l, err := b.l.eval(rec)
	if err != nil {
		return 0, err
	}
	r, err := b.r.eval(rec)
	if err != nil {
		return 0, err
	}
	switch b.op {
	case '+':
		return l + r, nil
	case '-':
		return l - r, nil
	case '*':
		return l * r, nil
	case '/':
		if r == 0 {
			return 0, errDivisionByZero
		}
		return l / r, nil
	}
	return 0, fmt.Errorf("unknown operator %q", b.op)
}

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokRef
	tokOp
	tokLParen
	tokRParen
	tokEOF
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func tokenize(src string) ([]token, error) {
	var toks []token
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '+' || c == '-' || c == '*' || c == '/':
			toks = append(toks, token{tokOp, string(c), i})
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case c == '{':
			end := strings.IndexByte(src[i:], '}')
			if end < 0 {
				return nil, fmt.Errorf("unclosed column reference at %d", i)
			}
			name := src[i+1 : i+end]
			if name == "" || strings.IndexFunc(name, func(r rune) bool {
				return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
			}) >= 0 {
				return nil, fmt.Errorf("invalid column reference %q at %d", name, i)
			}
			toks = append(toks, token{tokRef, name, i})
			i += end + 1
		case (c >= '0' && c <= '9') || c == '.':
			j := i
			for j < len(src) && ((src[j] >= '0' && src[j] <= '9') || src[j] == '.') {
				j++
			}
			toks = append(toks, token{tokNumber, src[i:j], i})
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q at %d", c, i)
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(src)}), nil
}

// parser is a recursive descent parser for
//
//	expr   = term { ("+" | "-") term }
//	term   = unary { ("*" | "/") unary }
//	unary  = "-" unary | "+" unary | factor
//	factor = number | "{" column "}" | "(" expr ")"
type parser struct {
	toks []token
	pos  int
}

func parseArithmetic(src string) (node, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n, err := p.expr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q at %d", t.text, t.pos)
	}
	return n, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expr() (node, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for t := p.peek(); t.kind == tokOp && (t.text == "+" || t.text == "-"); t = p.peek() {
		p.next()
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: t.text[0], l: left, r: right}
	}
	return left, nil
}

func (p *parser) term() (node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for t := p.peek(); t.kind == tokOp && (t.text == "*" || t.text == "/"); t = p.peek() {
		p.next()
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: t.text[0], l: left, r: right}
	}
	return left, nil
}

func (p *parser) unary() (node, error) {
	if t := p.peek(); t.kind == tokOp && (t.text == "-" || t.text == "+") {
		p.next()
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		if t.text == "-" {
			return negNode{x}, nil
		}
		return x, nil
	}
	return p.factor()
}

func (p *parser) factor() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q at %d", t.text, t.pos)
		}
		return numberNode(f), nil
	case tokRef:
		return refNode(t.text), nil
	case tokLParen:
		n, err := p.expr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, fmt.Errorf("missing ) at %d", closing.pos)
		}
		return n, nil
	case tokEOF:
		return nil, errors.New("unexpected end of expression")
	default:
		return nil, fmt.Errorf("unexpected %q at %d", t.text, t.pos)
	}
}

// substitute replaces {column} placeholders with the record's values.
func substitute(expression string, rec connector.Record) string {
	return placeholder.ReplaceAllStringFunc(expression, func(m string) string {
		return toString(rec[m[1:len(m)-1]])
	})
}
