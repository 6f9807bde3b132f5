package xpath

import (
	"fmt"
	"strconv"
)

type expr interface{}

type literalExpr struct {
	value string
}

type numberExpr struct {
	value float64
}

type binaryExpr struct {
	op          string
	left, right expr
}

type negExpr struct {
	operand expr
}

type callExpr struct {
	name string
	args []expr
}

type axis int

const (
	axisChild axis = iota
	axisAttribute
	axisSelf
)

type step struct {
	axis  axis
	name  string // "*" matches any name
	preds []expr
}

// pathExpr covers location paths and filter expressions followed by steps
type pathExpr struct {
	filter   expr // Optional primary expression the path starts from
	preds    []expr
	absolute bool
	steps    []step
}

type parser struct {
	src    string
	tokens []token
	pos    int
}

// parse compiles an expression into its syntax tree
func parse(src string) (expr, error) {
	tokens, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, tokens: tokens}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t, "unexpected %s", t)
	}
	return e, nil
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) peekAt(offset int) token {
	if p.pos+offset >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+offset]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(symbol string) error {
	t := p.next()
	if !t.is(symbol) {
		return p.errorf(t, "expected %q, found %s", symbol, t)
	}
	return nil
}

func (p *parser) errorf(t token, format string, args ...interface{}) error {
	return &SyntaxError{Expr: p.src, Pos: t.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) isKeyword(word string) bool {
	t := p.peek()
	return t.kind == tokName && t.text == word
}

func (p *parser) parseOr() (expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("or") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &binaryExpr{op: "or", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (expr, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("and") {
		p.next()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &binaryExpr{op: "and", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseEquality() (expr, error) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for p.peek().is("=") || p.peek().is("!=") {
		op := p.next().text
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		left = &binaryExpr{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseRelational() (expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if !(t.is("<") || t.is("<=") || t.is(">") || t.is(">=")) {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binaryExpr{op: t.text, left: left, right: right}
	}
}

func (p *parser) parseUnary() (expr, error) {
	if p.peek().is("-") {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &negExpr{operand: operand}, nil
	}
	return p.parsePath()
}

// startsStep reports whether the next token begins a location step
func (p *parser) startsStep() bool {
	t := p.peek()
	switch {
	case t.is("@"), t.is("."), t.is("*"):
		return true
	case t.kind == tokName:
		return !p.peekAt(1).is("(")
	}
	return false
}

func (p *parser) parsePath() (expr, error) {
	t := p.peek()

	if t.is("//") || t.is("..") {
		return nil, p.errorf(t, "%s axis is not supported", t)
	}

	if t.is("/") {
		p.next()
		path := &pathExpr{absolute: true}
		if p.startsStep() {
			steps, err := p.parseSteps()
			if err != nil {
				return nil, err
			}
			path.steps = steps
		}
		return path, nil
	}

	if p.startsStep() {
		steps, err := p.parseSteps()
		if err != nil {
			return nil, err
		}
		return &pathExpr{steps: steps}, nil
	}

	primary, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	preds, err := p.parsePredicates()
	if err != nil {
		return nil, err
	}

	if p.peek().is("/") {
		p.next()
		steps, err := p.parseSteps()
		if err != nil {
			return nil, err
		}
		return &pathExpr{filter: primary, preds: preds, steps: steps}, nil
	}
	if len(preds) > 0 {
		return &pathExpr{filter: primary, preds: preds}, nil
	}
	return primary, nil
}

func (p *parser) parseSteps() ([]step, error) {
	var steps []step
	for {
		s, err := p.parseStep()
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)

		if !p.peek().is("/") {
			return steps, nil
		}
		p.next()
	}
}

func (p *parser) parseStep() (step, error) {
	t := p.next()
	var s step
	switch {
	case t.is("."):
		return step{axis: axisSelf, name: "*"}, nil
	case t.is("@"):
		s.axis = axisAttribute
		nt := p.next()
		switch {
		case nt.kind == tokName:
			s.name = nt.text
		case nt.is("*"):
			s.name = "*"
		default:
			return s, p.errorf(nt, "expected attribute name, found %s", nt)
		}
	case t.kind == tokName:
		s.axis = axisChild
		s.name = t.text
	case t.is("*"):
		s.axis = axisChild
		s.name = "*"
	case t.is("//"), t.is(".."):
		return s, p.errorf(t, "%s axis is not supported", t)
	default:
		return s, p.errorf(t, "expected location step, found %s", t)
	}

	preds, err := p.parsePredicates()
	if err != nil {
		return s, err
	}
	s.preds = preds
	return s, nil
}

func (p *parser) parsePredicates() ([]expr, error) {
	var preds []expr
	for p.peek().is("[") {
		p.next()
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expect("]"); err != nil {
			return nil, err
		}
		preds = append(preds, e)
	}
	return preds, nil
}

func (p *parser) parsePrimary() (expr, error) {
	t := p.next()
	switch {
	case t.kind == tokString:
		return &literalExpr{value: t.text}, nil

	case t.kind == tokNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, p.errorf(t, "invalid number %s", t)
		}
		return &numberExpr{value: f}, nil

	case t.is("("):
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return e, nil

	case t.kind == tokName && p.peek().is("("):
		p.next()
		call := &callExpr{name: t.text}
		if p.peek().is(")") {
			p.next()
			return call, nil
		}
		for {
			arg, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			call.args = append(call.args, arg)
			sep := p.next()
			if sep.is(")") {
				return call, nil
			}
			if !sep.is(",") {
				return nil, p.errorf(sep, "expected \",\" or \")\", found %s", sep)
			}
		}

	default:
		return nil, p.errorf(t, "unexpected %s", t)
	}
}
