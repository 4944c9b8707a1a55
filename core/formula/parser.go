package formula

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/asaidimu/go-dataopt/core/dataset"
)

// binary operator precedence, lowest first.
var precedence = map[string]int{
	"||": 1,
	"&&": 2,
	"==": 3, "=": 3, "!=": 3, "<>": 3, "<": 3, "<=": 3, ">": 3, ">=": 3,
	"+": 4, "-": 4,
	"*": 5, "/": 5, "%": 5,
}

type parser struct {
	src    string
	tokens []token
	pos    int
}

func parse(src string) (node, error) {
	tokens, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, tokens: tokens}
	if p.peek().kind == tokEOF {
		return nil, p.errorf(p.peek(), "empty expression")
	}
	n, err := p.expr(1)
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.errorf(tok, "unexpected %q", tok.text)
	}
	return n, nil
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) errorf(tok token, format string, args ...any) error {
	return &SyntaxError{Source: p.src, Pos: tok.pos, Msg: fmt.Sprintf(format, args...)}
}

// expr parses a binary expression whose operators bind at least as tightly as minPrec.
func (p *parser) expr(minPrec int) (node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokOp {
			return left, nil
		}
		prec, ok := precedence[tok.text]
		if !ok || prec < minPrec {
			return left, nil
		}
		p.next()
		right, err := p.expr(prec + 1)
		if err != nil {
			return nil, err
		}
		if tok.text == "&&" || tok.text == "||" {
			left = logicalNode{op: tok.text, left: left, right: right}
			continue
		}
		left = binaryNode{op: tok.text, left: left, right: right}
	}
}

func (p *parser) unary() (node, error) {
	tok := p.peek()
	if tok.kind == tokOp && (tok.text == "-" || tok.text == "!" || tok.text == "+") {
		p.next()
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		if tok.text == "+" {
			return operand, nil
		}
		return unaryNode{op: tok.text, operand: operand}, nil
	}
	return p.primary()
}

func (p *parser) primary() (node, error) {
	tok := p.next()
	switch tok.kind {
	case tokNumber:
		f, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, p.errorf(tok, "invalid number %q", tok.text)
		}
		return literalNode{dataset.Number(f)}, nil
	case tokString:
		return literalNode{dataset.String(tok.text)}, nil
	case tokField:
		if tok.text == "" {
			return nil, p.errorf(tok, "empty field reference")
		}
		return fieldNode{tok.text}, nil
	case tokIdent:
		if p.peek().kind == tokLParen {
			return p.call(tok)
		}
		switch strings.ToLower(tok.text) {
		case "true":
			return literalNode{dataset.Bool(true)}, nil
		case "false":
			return literalNode{dataset.Bool(false)}, nil
		case "null":
			return literalNode{dataset.Null()}, nil
		}
		return fieldNode{tok.text}, nil
	case tokLParen:
		n, err := p.expr(1)
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, p.errorf(closing, "expected )")
		}
		return n, nil
	case tokEOF:
		return nil, p.errorf(tok, "unexpected end of expression")
	default:
		return nil, p.errorf(tok, "unexpected %q", tok.text)
	}
}

func (p *parser) call(name token) (node, error) {
	fnName := strings.ToLower(name.text)
	fn, ok := builtins[fnName]
	if !ok {
		return nil, p.errorf(name, "unknown function %s", name.text)
	}
	p.next() // (
	var args []node
	if p.peek().kind == tokRParen {
		p.next()
	} else {
		for {
			arg, err := p.expr(1)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			sep := p.next()
			if sep.kind == tokRParen {
				break
			}
			if sep.kind != tokComma {
				return nil, p.errorf(sep, "expected , or ) in call to %s", name.text)
			}
		}
	}
	if len(args) < fn.minArgs || (fn.maxArgs >= 0 && len(args) > fn.maxArgs) {
		return nil, p.errorf(name, "wrong number of arguments to %s: %d", name.text, len(args))
	}
	return callNode{name: fnName, fn: fn, args: args}, nil
}
