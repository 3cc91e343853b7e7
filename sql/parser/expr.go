package parser

import (
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/plan"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/token"
)

var comparisonOps = map[string]bool{
	"=": true, "<>": true, "<": true, "<=": true, ">": true, ">=": true,
}

// parseBoolExpr parses the boolean-expression grammar at precedence
// OR < AND < NOT < comparison/primary. OR/AND collapse into
// n-ary OPERATOR nodes; NOT is always unary.
func (p *Parser) parseBoolExpr() (*plan.Node, error) {
	return p.parseOr()
}

func (p *Parser) parseOr() (*plan.Node, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	children := []*plan.Node{first}
	for p.isKeyword("OR") {
		p.advance()
		next, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		children = append(children, next)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return plan.New(plan.Operator, "OR", children...), nil
}

func (p *Parser) parseAnd() (*plan.Node, error) {
	first, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	children := []*plan.Node{first}
	for p.isKeyword("AND") {
		p.advance()
		next, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		children = append(children, next)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return plan.New(plan.Operator, "AND", children...), nil
}

func (p *Parser) parseNot() (*plan.Node, error) {
	if p.isKeyword("NOT") {
		p.advance()
		child, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return plan.New(plan.Operator, "NOT", child), nil
	}
	return p.parsePrimaryCondition()
}

// parsePrimaryCondition parses a comparison, IN/NOT IN, EXISTS/NOT EXISTS,
// BETWEEN/NOT BETWEEN, IS [NOT] NULL, [NOT] LIKE, or a parenthesized
// boolean expression.
func (p *Parser) parsePrimaryCondition() (*plan.Node, error) {
	if p.isKeyword("EXISTS") {
		return p.parseExists(false)
	}
	if p.isKeyword("NOT") && p.at(1).Kind == token.Keyword && p.at(1).Text == "EXISTS" {
		p.advance()
		return p.parseExists(true)
	}
	if p.isDelim("(") {
		// Disambiguate a parenthesized boolean expression from a
		// parenthesized arithmetic primary by trying boolean first and
		// backtracking on failure.
		save := p.pos
		p.advance()
		inner, err := p.parseBoolExpr()
		if err == nil && p.isDelim(")") {
			p.advance()
			return inner, nil
		}
		p.pos = save
	}

	left, err := p.parseArith()
	if err != nil {
		return nil, err
	}

	switch {
	case p.isKeyword("NOT"):
		p.advance()
		return p.parseNotSuffixed(left)
	case p.isKeyword("IN"):
		return p.parseInSuffix(left, false)
	case p.isKeyword("BETWEEN"):
		return p.parseBetweenSuffix(left, false)
	case p.isKeyword("LIKE"):
		return p.parseLikeSuffix(left, false)
	case p.isKeyword("IS"):
		p.advance()
		if p.isKeyword("NOT") {
			p.advance()
			if _, err := p.expectKeyword("NULL"); err != nil {
				return nil, err
			}
			return plan.New(plan.IsNotNullExpr, "", left), nil
		}
		if _, err := p.expectKeyword("NULL"); err != nil {
			return nil, err
		}
		return plan.New(plan.IsNullExpr, "", left), nil
	case p.isKeyword("EXISTS"):
		return p.parseExists(false)
	case p.cur().Kind == token.Comparison:
		op := p.advance().Text
		right, err := p.parseArith()
		if err != nil {
			return nil, err
		}
		return plan.New(plan.Comparison, op, left, right), nil
	default:
		return nil, p.errHere("expected boolean predicate, found " + p.cur().Text)
	}
}

// parseNotSuffixed handles the "<expr> NOT ..." forms once NOT has
// already been consumed: NOT IN, NOT BETWEEN, NOT LIKE.
func (p *Parser) parseNotSuffixed(left *plan.Node) (*plan.Node, error) {
	switch {
	case p.isKeyword("IN"):
		return p.parseInSuffix(left, true)
	case p.isKeyword("BETWEEN"):
		return p.parseBetweenSuffix(left, true)
	case p.isKeyword("LIKE"):
		return p.parseLikeSuffix(left, true)
	default:
		return nil, p.errHere("expected IN, BETWEEN or LIKE after NOT")
	}
}

func (p *Parser) parseInSuffix(left *plan.Node, negated bool) (*plan.Node, error) {
	if _, err := p.expectKeyword("IN"); err != nil {
		return nil, err
	}
	if _, err := p.expectDelim("("); err != nil {
		return nil, err
	}
	list := plan.New(plan.List, "")
	for {
		v, err := p.parsePrimaryExpr()
		if err != nil {
			return nil, err
		}
		list.AddChild(v)
		if p.isDelim(",") {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expectDelim(")"); err != nil {
		return nil, err
	}
	t := plan.InExpr
	if negated {
		t = plan.NotInExpr
	}
	return plan.New(t, "", left, list), nil
}

func (p *Parser) parseBetweenSuffix(left *plan.Node, negated bool) (*plan.Node, error) {
	if _, err := p.expectKeyword("BETWEEN"); err != nil {
		return nil, err
	}
	low, err := p.parseArith()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("AND"); err != nil {
		return nil, err
	}
	high, err := p.parseArith()
	if err != nil {
		return nil, err
	}
	t := plan.BetweenExpr
	if negated {
		t = plan.NotBetween
	}
	return plan.New(t, "", left, low, high), nil
}

func (p *Parser) parseLikeSuffix(left *plan.Node, negated bool) (*plan.Node, error) {
	if _, err := p.expectKeyword("LIKE"); err != nil {
		return nil, err
	}
	if p.cur().Kind != token.String {
		return nil, p.errHere("expected string pattern after LIKE")
	}
	pattern := plan.New(plan.LiteralString, p.advance().Text)
	t := plan.LikeExpr
	if negated {
		t = plan.NotLikeExpr
	}
	return plan.New(t, "", left, pattern), nil
}

// parseExists parses EXISTS (subselect) / NOT EXISTS (subselect). The
// subselect is a full nested SELECT statement.
func (p *Parser) parseExists(negated bool) (*plan.Node, error) {
	if _, err := p.expectKeyword("EXISTS"); err != nil {
		return nil, err
	}
	if _, err := p.expectDelim("("); err != nil {
		return nil, err
	}
	sub, err := p.parseSelect()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectDelim(")"); err != nil {
		return nil, err
	}
	t := plan.ExistsExpr
	if negated {
		t = plan.NotExistsExpr
	}
	return plan.New(t, "", sub), nil
}

// parseArith parses the additive level: term (('+' | '-') term)*.
func (p *Parser) parseArith() (*plan.Node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == token.Arithmetic && (p.cur().Text == "+" || p.cur().Text == "-") {
		op := p.advance().Text
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = plan.New(plan.ArithExpr, op, left, right)
	}
	return left, nil
}

// parseTerm parses the multiplicative level: unary (('*' | '/') unary)*.
func (p *Parser) parseTerm() (*plan.Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == token.Arithmetic && (p.cur().Text == "*" || p.cur().Text == "/") {
		op := p.advance().Text
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = plan.New(plan.ArithExpr, op, left, right)
	}
	return left, nil
}

// parseUnary handles a leading unary minus, represented as OPERATOR_S
// since it is a single-operand arithmetic operator distinct from the
// binary ARITH_EXPR.
func (p *Parser) parseUnary() (*plan.Node, error) {
	if p.cur().Kind == token.Arithmetic && p.cur().Text == "-" {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return plan.New(plan.OperatorS, "-", operand), nil
	}
	return p.parsePrimaryExpr()
}

// parsePrimaryExpr parses a literal, column reference, function call, or
// parenthesized arithmetic expression.
func (p *Parser) parsePrimaryExpr() (*plan.Node, error) {
	switch {
	case p.isDelim("("):
		p.advance()
		inner, err := p.parseArith()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectDelim(")"); err != nil {
			return nil, err
		}
		return inner, nil
	case p.cur().Kind == token.Number:
		return plan.New(plan.LiteralNumber, p.advance().Text), nil
	case p.cur().Kind == token.String:
		return plan.New(plan.LiteralString, p.advance().Text), nil
	case p.isKeyword("TRUE"):
		p.advance()
		return plan.New(plan.LiteralBoolean, "TRUE"), nil
	case p.isKeyword("FALSE"):
		p.advance()
		return plan.New(plan.LiteralBoolean, "FALSE"), nil
	case p.isKeyword("NULL"):
		p.advance()
		return plan.New(plan.LiteralNull, ""), nil
	case p.cur().Kind == token.Identifier:
		if p.at(1).Kind == token.Delimiter && p.at(1).Text == "(" {
			return p.parseFunctionCall()
		}
		return p.parseColumnRef()
	default:
		return nil, p.errHere("expected expression, found " + p.cur().Text)
	}
}

func (p *Parser) parseFunctionCall() (*plan.Node, error) {
	name, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectDelim("("); err != nil {
		return nil, err
	}
	call := plan.New(plan.FunctionCall, name.Text)
	if !p.isDelim(")") {
		for {
			arg, err := p.parseArith()
			if err != nil {
				return nil, err
			}
			call.AddChild(arg)
			if p.isDelim(",") {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expectDelim(")"); err != nil {
		return nil, err
	}
	return call, nil
}
