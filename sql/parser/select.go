package parser

import (
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/plan"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/token"
)

// parseSelect builds PROJECT over (optional SORT over (optional FILTER
// over (JOIN-chain))), with an optional LIMIT wrapping the whole thing.
func (p *Parser) parseSelect() (*plan.Node, error) {
	if _, err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}

	star, cols, err := p.parseSelectList()
	if err != nil {
		return nil, err
	}

	if _, err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	source, err := p.parseJoinChain()
	if err != nil {
		return nil, err
	}

	if p.isKeyword("WHERE") {
		p.advance()
		cond, err := p.parseBoolExpr()
		if err != nil {
			return nil, err
		}
		source = plan.New(plan.Filter, "WHERE", source, cond)
	}

	if p.isKeyword("ORDER BY") {
		p.advance()
		expr, err := p.parseColumnRef()
		if err != nil {
			return nil, err
		}
		dir := "ASC"
		if p.isKeyword("ASC") {
			p.advance()
		} else if p.isKeyword("DESC") {
			dir = "DESC"
			p.advance()
		}
		source = plan.New(plan.Sort, dir, expr, source)
	}

	var project *plan.Node
	if star {
		project = plan.New(plan.Project, "*", source)
	} else {
		project = plan.New(plan.Project, "")
		for _, c := range cols {
			project.AddChild(c)
		}
		project.AddChild(source)
	}

	if p.isKeyword("LIMIT") {
		p.advance()
		n, err := p.expectNumber()
		if err != nil {
			return nil, err
		}
		return plan.New(plan.Limit, n.Text, project), nil
	}
	return project, nil
}

// parseSelectList parses either "*" or a comma-separated list of select
// items (column references or function calls, both optionally aliased),
// reporting star=true in the first case.
func (p *Parser) parseSelectList() (star bool, cols []*plan.Node, err error) {
	if p.cur().Kind == token.Arithmetic && p.cur().Text == "*" {
		p.advance()
		return true, nil, nil
	}
	for {
		item, err := p.parseSelectItem()
		if err != nil {
			return false, nil, err
		}
		cols = append(cols, item)
		if p.isDelim(",") {
			p.advance()
			continue
		}
		break
	}
	return false, cols, nil
}

// parseSelectItem parses one projected expression: a function call when
// the identifier is immediately followed by '(', else a column reference.
// Either form may carry an AS alias.
func (p *Parser) parseSelectItem() (*plan.Node, error) {
	if p.cur().Kind == token.Identifier && p.at(1).Kind == token.Delimiter && p.at(1).Text == "(" {
		call, err := p.parseFunctionCall()
		if err != nil {
			return nil, err
		}
		if p.isKeyword("AS") {
			p.advance()
			alias, err := p.expectIdentifier()
			if err != nil {
				return nil, err
			}
			return plan.New(plan.Alias, alias.Text, call), nil
		}
		return call, nil
	}
	return p.parseColumnRef()
}

// parseColumnRef parses `[table.]column`, which the tokenizer already
// joined into one dotted identifier, or `ident AS alias`.
func (p *Parser) parseColumnRef() (*plan.Node, error) {
	tok, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	var tableName, colName string
	if i := indexOfDot(tok.Text); i >= 0 {
		tableName, colName = tok.Text[:i], tok.Text[i+1:]
	} else {
		colName = tok.Text
	}

	ref := plan.New(plan.ColumnRef, "", plan.New(plan.ColumnName, "", plan.New(plan.Identifier, colName)))
	if tableName != "" {
		ref.AddChild(plan.New(plan.TableName, "", plan.New(plan.Identifier, tableName)))
	}

	if p.isKeyword("AS") {
		p.advance()
		alias, err := p.expectIdentifier()
		if err != nil {
			return nil, err
		}
		return plan.New(plan.Alias, alias.Text, ref), nil
	}
	return ref, nil
}

func indexOfDot(s string) int {
	for i, r := range s {
		if r == '.' {
			return i
		}
	}
	return -1
}

// parseJoinChain parses a FROM list into a left-deep JOIN chain: comma
// joins as CROSS, `NATURAL JOIN` as NATURAL (no condition child),
// `[INNER] JOIN ... ON c` as INNER with condition child c.
func (p *Parser) parseJoinChain() (*plan.Node, error) {
	left, err := p.parseTableRef()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isDelim(","):
			p.advance()
			right, err := p.parseTableRef()
			if err != nil {
				return nil, err
			}
			left = plan.New(plan.Join, "CROSS", left, right)
		case p.isKeyword("NATURAL"):
			p.advance()
			if _, err := p.expectKeyword("JOIN"); err != nil {
				return nil, err
			}
			right, err := p.parseTableRef()
			if err != nil {
				return nil, err
			}
			left = plan.New(plan.Join, "NATURAL", left, right)
		case p.isKeyword("INNER") || p.isKeyword("JOIN"):
			if p.isKeyword("INNER") {
				p.advance()
			}
			if _, err := p.expectKeyword("JOIN"); err != nil {
				return nil, err
			}
			right, err := p.parseTableRef()
			if err != nil {
				return nil, err
			}
			if !p.isKeyword("ON") {
				return nil, p.errHere("JOIN requires NATURAL or ON")
			}
			p.advance()
			cond, err := p.parseBoolExpr()
			if err != nil {
				return nil, err
			}
			left = plan.New(plan.Join, "INNER", left, right, cond)
		default:
			return left, nil
		}
	}
}

// parseTableRef parses a base table reference, represented as a RELATION
// leaf whose value is the table name, optionally wrapped in an ALIAS.
func (p *Parser) parseTableRef() (*plan.Node, error) {
	tok, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	rel := plan.New(plan.Relation, tok.Text)
	if p.isKeyword("AS") {
		p.advance()
		alias, err := p.expectIdentifier()
		if err != nil {
			return nil, err
		}
		return plan.New(plan.Alias, alias.Text, rel), nil
	}
	return rel, nil
}
