package parser

import (
	"strconv"
	"strings"
	"time"

	"github.com/conduit-lang/sensorthings/internal/model"
	"github.com/conduit-lang/sensorthings/internal/query"
)

// Parser is a recursive-descent parser for filter and orderby expressions.
//
// Precedence, lowest first: or, and, not, comparison, additive,
// multiplicative, unary minus, primary.
type Parser struct {
	reg    *model.Registry
	tokens []Token
	pos    int
}

func newParser(reg *model.Registry, input string) (*Parser, error) {
	tokens, err := NewLexer(input).Tokenize()
	if err != nil {
		return nil, model.InvalidQuery("%v", err)
	}
	return &Parser{reg: reg, tokens: tokens}, nil
}

// ParseExpression parses a complete filter expression
func ParseExpression(reg *model.Registry, input string) (query.Expression, error) {
	p, err := newParser(reg, input)
	if err != nil {
		return nil, err
	}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.currentIs(TOKEN_EOF) {
		return nil, p.unexpected()
	}
	return expr, nil
}

func (p *Parser) current() Token {
	return p.tokens[p.pos]
}

func (p *Parser) peek() Token {
	if p.pos+1 < len(p.tokens) {
		return p.tokens[p.pos+1]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *Parser) advance() {
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
}

func (p *Parser) currentIs(t TokenType) bool {
	return p.current().Type == t
}

// currentKeyword reports whether the current token is the given keyword
func (p *Parser) currentKeyword(kw string) bool {
	tok := p.current()
	return tok.Type == TOKEN_IDENTIFIER && strings.EqualFold(tok.Value, kw)
}

func (p *Parser) expect(t TokenType) error {
	if !p.currentIs(t) {
		return model.InvalidQuery("expected %s, got %s", tokenNames[t], p.current())
	}
	p.advance()
	return nil
}

func (p *Parser) unexpected() error {
	return model.InvalidQuery("unexpected %s", p.current())
}

func (p *Parser) parseOr() (query.Expression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.currentKeyword("or") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = query.Or(left, right)
	}
	return left, nil
}

func (p *Parser) parseAnd() (query.Expression, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.currentKeyword("and") {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = query.And(left, right)
	}
	return left, nil
}

func (p *Parser) parseNot() (query.Expression, error) {
	if p.currentKeyword("not") {
		p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return query.Not(operand), nil
	}
	return p.parseComparison()
}

var comparisonOps = map[string]query.Operator{
	"eq": query.OpEq, "ne": query.OpNe,
	"gt": query.OpGt, "ge": query.OpGe,
	"lt": query.OpLt, "le": query.OpLe,
}

func (p *Parser) parseComparison() (query.Expression, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if tok := p.current(); tok.Type == TOKEN_IDENTIFIER {
		if op, ok := comparisonOps[strings.ToLower(tok.Value)]; ok {
			p.advance()
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			return query.Fn(op, left, right), nil
		}
	}
	return left, nil
}

var additiveOps = map[string]query.Operator{"add": query.OpAdd, "sub": query.OpSub}

var multiplicativeOps = map[string]query.Operator{"mul": query.OpMul, "div": query.OpDiv, "mod": query.OpMod}

func (p *Parser) parseAdditive() (query.Expression, error) {
	return p.parseBinary(additiveOps, p.parseMultiplicative)
}

func (p *Parser) parseMultiplicative() (query.Expression, error) {
	return p.parseBinary(multiplicativeOps, p.parseUnary)
}

// parseBinary parses a left-associative chain of the given operators
func (p *Parser) parseBinary(ops map[string]query.Operator, operand func() (query.Expression, error)) (query.Expression, error) {
	left, err := operand()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.current()
		if tok.Type != TOKEN_IDENTIFIER {
			return left, nil
		}
		op, ok := ops[strings.ToLower(tok.Value)]
		if !ok {
			return left, nil
		}
		p.advance()
		right, err := operand()
		if err != nil {
			return nil, err
		}
		left = query.Fn(op, left, right)
	}
}

func (p *Parser) parseUnary() (query.Expression, error) {
	if p.currentIs(TOKEN_MINUS) {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return query.Fn(query.OpNeg, operand), nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (query.Expression, error) {
	tok := p.current()
	switch tok.Type {
	case TOKEN_LPAREN:
		p.advance()
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TOKEN_RPAREN); err != nil {
			return nil, err
		}
		return expr, nil
	case TOKEN_INTEGER:
		p.advance()
		n, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			return nil, model.InvalidQuery("bad integer %q", tok.Value)
		}
		return query.Int(n), nil
	case TOKEN_DOUBLE:
		p.advance()
		f, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, model.InvalidQuery("bad number %q", tok.Value)
		}
		return query.Double(f), nil
	case TOKEN_STRING:
		p.advance()
		return query.Str(tok.Value), nil
	case TOKEN_DATETIME:
		p.advance()
		t, err := time.Parse(time.RFC3339Nano, tok.Value)
		if err != nil {
			return nil, model.InvalidQuery("bad date-time %q", tok.Value)
		}
		return query.DateTimeConstant{Value: t.UTC()}, nil
	case TOKEN_IDENTIFIER:
		switch strings.ToLower(tok.Value) {
		case "true":
			p.advance()
			return query.Bool(true), nil
		case "false":
			p.advance()
			return query.Bool(false), nil
		case "null":
			p.advance()
			return query.NullConstant{}, nil
		}
		if p.peek().Type == TOKEN_LPAREN {
			return p.parseFunction()
		}
		return p.parsePath()
	}
	return nil, p.unexpected()
}

func (p *Parser) parseFunction() (query.Expression, error) {
	name := p.current().Value
	op, ok := query.LookupFunction(name)
	if !ok || op.Category() == query.CategoryComparison || op.Category() == query.CategoryLogical || op.Category() == query.CategoryArithmetic {
		return nil, model.InvalidQuery("unknown function %q", name)
	}
	p.advance()
	if err := p.expect(TOKEN_LPAREN); err != nil {
		return nil, err
	}
	var args []query.Expression
	if !p.currentIs(TOKEN_RPAREN) {
		for {
			arg, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if !p.currentIs(TOKEN_COMMA) {
				break
			}
			p.advance()
		}
	}
	if err := p.expect(TOKEN_RPAREN); err != nil {
		return nil, err
	}
	lo, hi := op.Arity()
	if len(args) < lo || len(args) > hi {
		return nil, model.InvalidQuery("%s takes %d to %d arguments, got %d", name, lo, hi, len(args))
	}
	return query.Fn(op, args...), nil
}

func (p *Parser) parsePath() (query.Expression, error) {
	segments := []string{p.current().Value}
	p.advance()
	for p.currentIs(TOKEN_SLASH) {
		p.advance()
		tok := p.current()
		if tok.Type != TOKEN_IDENTIFIER && tok.Type != TOKEN_INTEGER {
			return nil, p.unexpected()
		}
		segments = append(segments, tok.Value)
		p.advance()
	}
	return resolvePath(p.reg, segments)
}

// resolvePath turns name segments into a property path. Segments following
// a JSON-valued property form the sub-path of a custom property.
func resolvePath(reg *model.Registry, segments []string) (*query.Path, error) {
	var elements []*model.Property
	for i, name := range segments {
		if np := reg.NavigationProperty(name); np != nil {
			elements = append(elements, np)
			continue
		}
		ep := reg.EntityProperty(name)
		if ep == nil {
			return nil, model.InvalidQuery("unknown property %q", name)
		}
		if i < len(segments)-1 {
			if !ep.Type.IsJSON() {
				return nil, model.InvalidQuery("property %s has no sub-properties", ep.Name)
			}
			elements = append(elements, model.NewCustomProperty(ep, splitIndexes(segments[i+1:])...))
			return query.NewPath(elements...), nil
		}
		elements = append(elements, ep)
	}
	return query.NewPath(elements...), nil
}

// splitIndexes turns array access like arr[1] into separate segments
func splitIndexes(segments []string) []string {
	var out []string
	for _, s := range segments {
		for {
			open := strings.IndexByte(s, '[')
			if open < 0 {
				break
			}
			closing := strings.IndexByte(s[open:], ']')
			if closing < 0 {
				break
			}
			if open > 0 {
				out = append(out, s[:open])
			}
			out = append(out, s[open+1:open+closing])
			s = s[open+closing+1:]
		}
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
