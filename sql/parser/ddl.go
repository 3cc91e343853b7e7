package parser

import (
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/plan"
)

// parseCreateTable parses `CREATE TABLE t (col type [size] [PRIMARY KEY]
// [FOREIGN KEY REFERENCES other(col)], ...)`. Logical types are accepted
// as plain identifiers too: INTEGER/VARCHAR(n)/BOOLEAN/DATE are the
// common cases, not a closed set, so any identifier is accepted as a
// type name.
func (p *Parser) parseCreateTable() (*plan.Node, error) {
	if _, err := p.expectKeyword("CREATE TABLE"); err != nil {
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
	defList := plan.New(plan.ColumnDefList, "")
	for {
		def, err := p.parseColumnDef()
		if err != nil {
			return nil, err
		}
		defList.AddChild(def)
		if p.isDelim(",") {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expectDelim(")"); err != nil {
		return nil, err
	}
	return plan.New(plan.CreateTable, "", tableName, defList), nil
}

func (p *Parser) parseColumnDef() (*plan.Node, error) {
	nameTok, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	typeTok, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	dataType := plan.New(plan.DataType, typeTok.Text)
	if p.isDelim("(") {
		p.advance()
		sizeTok, err := p.expectNumber()
		if err != nil {
			return nil, err
		}
		dataType.AddChild(plan.New(plan.LiteralNumber, sizeTok.Text))
		if _, err := p.expectDelim(")"); err != nil {
			return nil, err
		}
	}

	def := plan.New(plan.ColumnDef, nameTok.Text, dataType)

	if p.isKeyword("PRIMARY KEY") {
		p.advance()
		def.AddChild(plan.New(plan.PrimaryKey, ""))
	}

	if p.isKeyword("FOREIGN KEY") {
		p.advance()
		if _, err := p.expectKeyword("REFERENCES"); err != nil {
			return nil, err
		}
		refTableTok, err := p.expectIdentifier()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectDelim("("); err != nil {
			return nil, err
		}
		refColTok, err := p.expectIdentifier()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectDelim(")"); err != nil {
			return nil, err
		}
		references := plan.New(plan.References, refTableTok.Text,
			plan.New(plan.ColumnName, "", plan.New(plan.Identifier, refColTok.Text)))
		def.AddChild(plan.New(plan.ForeignKey, "", references))
	}

	return def, nil
}

// parseDropTable parses `DROP TABLE t [CASCADE|RESTRICT]`.
func (p *Parser) parseDropTable() (*plan.Node, error) {
	if _, err := p.expectKeyword("DROP TABLE"); err != nil {
		return nil, err
	}
	tableTok, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	tableName := plan.New(plan.TableName, "", plan.New(plan.Identifier, tableTok.Text))

	mode := ""
	if p.isKeyword("CASCADE") {
		p.advance()
		mode = "CASCADE"
	} else if p.isKeyword("RESTRICT") {
		p.advance()
		mode = "RESTRICT"
	}
	return plan.New(plan.DropTable, mode, tableName), nil
}
