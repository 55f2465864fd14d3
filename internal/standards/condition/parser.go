package condition

import (
	"fmt"
	"strconv"
)

// Condition is a parsed, immutable rule condition.
type Condition struct {
	source string
	root   node
	attrs  []string
}

// Source returns the text the condition was parsed from.
func (c *Condition) Source() string { return c.source }

// Attributes lists the canonical attributes the condition references.
func (c *Condition) Attributes() []string {
	return append([]string(nil), c.attrs...)
}

func (c *Condition) String() string {
	if c == nil || c.root == nil {
		return ""
	}
	return c.root.String()
}

// SyntaxError reports a condition that could not be parsed.
type SyntaxError struct {
	Source string
	Pos    int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("condition %q: %s at offset %d", e.Source, e.Msg, e.Pos)
}

// Parse compiles src into a Condition. Identifiers outside the attribute
// vocabulary are rejected here, so evaluation never sees them.
func Parse(src string) (*Condition, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, &SyntaxError{Source: src, Msg: err.Error()}
	}
	p := &parser{src: src, toks: toks, seen: map[string]bool{}}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.errorf(tok, "unexpected %q", tok.text)
	}
	return &Condition{source: src, root: root, attrs: p.attrs}, nil
}

// MustParse is Parse for static conditions; it panics on error.
func MustParse(src string) *Condition {
	c, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return c
}

type parser struct {
	src   string
	toks  []token
	pos   int
	attrs []string
	seen  map[string]bool
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	tok := p.toks[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) errorf(tok token, format string, args ...any) error {
	return &SyntaxError{Source: p.src, Pos: tok.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = andNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.peek().kind == tokNot {
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notNode{inner: inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	if p.peek().kind == tokLParen {
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if tok := p.next(); tok.kind != tokRParen {
			return nil, p.errorf(tok, "expected ')'")
		}
		return inner, nil
	}

	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokOp {
		return truthNode{operand: left}, nil
	}
	opTok := p.next()
	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return compareNode{op: Op(opTok.text), left: left, right: right}, nil
}

func (p *parser) parseOperand() (operand, error) {
	tok := p.next()
	switch tok.kind {
	case tokIdent:
		name, kind, ok := Canonical(tok.text)
		if !ok {
			return nil, p.errorf(tok, "unknown attribute %q", tok.text)
		}
		if !p.seen[name] {
			p.seen[name] = true
			p.attrs = append(p.attrs, name)
		}
		return attrRef{name: name, kind: kind}, nil
	case tokInt:
		v, err := strconv.ParseInt(tok.text, 10, 64)
		if err != nil {
			return nil, p.errorf(tok, "invalid integer %q", tok.text)
		}
		return literal{value: Int(v)}, nil
	case tokString:
		return literal{value: String(tok.text)}, nil
	case tokTrue:
		return literal{value: Bool(true)}, nil
	case tokFalse:
		return literal{value: Bool(false)}, nil
	case tokEOF:
		return nil, p.errorf(tok, "unexpected end of condition")
	default:
		return nil, p.errorf(tok, "unexpected %q", tok.text)
	}
}
