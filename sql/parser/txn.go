package parser

import (
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/plan"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/token"
)

// parseBeginTransaction parses `BEGIN TRANSACTION stmt; stmt; ... COMMIT`.
// The enclosed statements become BEGIN_TRANSACTION's children; the
// terminating COMMIT is consumed, not added as a child, since standalone
// COMMIT already has its own (childless) statement form.
func (p *Parser) parseBeginTransaction() (*plan.Node, error) {
	begin, err := p.expectKeyword("BEGIN TRANSACTION")
	if err != nil {
		return nil, err
	}

	txn := plan.New(plan.BeginTxn, "")
	for {
		if p.isKeyword("COMMIT") {
			p.advance()
			return txn, nil
		}
		if p.cur().Kind == token.EOF {
			return nil, ErrUnterminatedTransaction.New(begin.Line)
		}
		stmt, err := p.parseInnerStatement()
		if err != nil {
			return nil, err
		}
		txn.AddChild(stmt)
		if p.isDelim(";") {
			p.advance()
		}
	}
}

// parseInnerStatement parses one statement inside a transaction block,
// without the trailing-EOF check parseStatement performs for top-level
// statements (a transaction block has more input after each one).
func (p *Parser) parseInnerStatement() (*plan.Node, error) {
	switch {
	case p.isKeyword("SELECT"):
		return p.parseSelect()
	case p.isKeyword("INSERT INTO"):
		return p.parseInsert()
	case p.isKeyword("UPDATE"):
		return p.parseUpdate()
	case p.isKeyword("DELETE"):
		return p.parseDelete()
	case p.isKeyword("CREATE TABLE"):
		return p.parseCreateTable()
	case p.isKeyword("DROP TABLE"):
		return p.parseDropTable()
	default:
		return nil, p.errHere("unexpected token " + p.cur().Text + " inside transaction block")
	}
}
