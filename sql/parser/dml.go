package parser

import (
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/plan"
)

// parseInsert parses `INSERT INTO t (cols) VALUES (v1, v2, ...)`.
// Fails on column/value arity mismatch.
func (p *Parser) parseInsert() (*plan.Node, error) {
	if _, err := p.expectKeyword("INSERT INTO"); err != nil {
		return nil, err
	}
	tableTok, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	tableName := plan.New(plan.TableName, "", plan.New(plan.Identifier, tableTok.Text))

	if _, err := p.expectDelim("("); err != nil {
		return nil, err
	}
	colList := plan.New(plan.ColumnList, "")
	for {
		c, err := p.expectIdentifier()
		if err != nil {
			return nil, err
		}
		colList.AddChild(plan.New(plan.ColumnName, "", plan.New(plan.Identifier, c.Text)))
		if p.isDelim(",") {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expectDelim(")"); err != nil {
		return nil, err
	}

	if _, err := p.expectKeyword("VALUES"); err != nil {
		return nil, err
	}
	if _, err := p.expectDelim("("); err != nil {
		return nil, err
	}
	values := plan.New(plan.List, "")
	for {
		v, err := p.parsePrimaryExpr()
		if err != nil {
			return nil, err
		}
		values.AddChild(v)
		if p.isDelim(",") {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expectDelim(")"); err != nil {
		return nil, err
	}

	if len(colList.Children) != len(values.Children) {
		return nil, p.errHere("column/value arity mismatch in INSERT")
	}

	return plan.New(plan.InsertQuery, "", tableName, colList, plan.New(plan.ValuesClause, "", values)), nil
}

// parseUpdate parses `UPDATE t SET c1 = e1, c2 = e2 [WHERE cond]`.
func (p *Parser) parseUpdate() (*plan.Node, error) {
	if _, err := p.expectKeyword("UPDATE"); err != nil {
		return nil, err
	}
	tableTok, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	tableName := plan.New(plan.TableName, "", plan.New(plan.Identifier, tableTok.Text))

	if _, err := p.expectKeyword("SET"); err != nil {
		return nil, err
	}
	assignments := plan.New(plan.List, "ASSIGNMENTS")
	for {
		col, err := p.expectIdentifier()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectComparisonEquals(); err != nil {
			return nil, err
		}
		val, err := p.parseArith()
		if err != nil {
			return nil, err
		}
		assignments.AddChild(plan.New(plan.Assignment, col.Text, val))
		if p.isDelim(",") {
			p.advance()
			continue
		}
		break
	}

	node := plan.New(plan.UpdateQuery, "", tableName, assignments)
	if p.isKeyword("WHERE") {
		p.advance()
		cond, err := p.parseBoolExpr()
		if err != nil {
			return nil, err
		}
		node.AddChild(cond)
	}
	return node, nil
}

// parseDelete parses `DELETE FROM t [WHERE cond]`.
func (p *Parser) parseDelete() (*plan.Node, error) {
	if _, err := p.expectKeyword("DELETE"); err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	tableTok, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	tableName := plan.New(plan.TableName, "", plan.New(plan.Identifier, tableTok.Text))

	node := plan.New(plan.DeleteQuery, "", tableName)
	if p.isKeyword("WHERE") {
		p.advance()
		cond, err := p.parseBoolExpr()
		if err != nil {
			return nil, err
		}
		node.AddChild(cond)
	}
	return node, nil
}

func (p *Parser) expectComparisonEquals() (bool, error) {
	if !p.isComparison("=") {
		return false, p.errHere("expected '=' in assignment, found " + p.cur().Text)
	}
	p.advance()
	return true, nil
}
