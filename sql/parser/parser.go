package parser

import (
	"strconv"

	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/plan"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/token"
)

// Parser is a recursive-descent parser with one-token lookahead over an
// already-tokenized statement.
type Parser struct {
	toks []token.Token
	pos  int
}

// New wraps a pre-tokenized stream. Most callers want Parse instead.
func New(toks []token.Token) *Parser {
	return &Parser{toks: toks}
}

// Parse tokenizes sql and parses exactly one statement from it, returning
// a plan.ParsedQuery pairing the built tree with the original text.
func Parse(sql string) (plan.ParsedQuery, error) {
	toks, err := token.Tokenize(sql)
	if err != nil {
		return plan.ParsedQuery{}, err
	}
	p := New(toks)
	root, err := p.parseStatement()
	if err != nil {
		return plan.ParsedQuery{}, err
	}
	return plan.ParsedQuery{Root: root, OriginalSQL: sql}, nil
}

func (p *Parser) cur() token.Token {
	if p.pos >= len(p.toks) {
		return token.Token{Kind: token.EOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) at(offset int) token.Token {
	i := p.pos + offset
	if i >= len(p.toks) {
		return token.Token{Kind: token.EOF}
	}
	return p.toks[i]
}

func (p *Parser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *Parser) errHere(msg string) error {
	t := p.cur()
	return ErrParse.New(t.Line, t.Col, msg)
}

func (p *Parser) isKeyword(kw string) bool {
	t := p.cur()
	return t.Kind == token.Keyword && t.Text == kw
}

func (p *Parser) isDelim(d string) bool {
	t := p.cur()
	return t.Kind == token.Delimiter && t.Text == d
}

func (p *Parser) isComparison(op string) bool {
	t := p.cur()
	return t.Kind == token.Comparison && t.Text == op
}

// expectKeyword consumes the current token if it is the given keyword,
// else fails with a parse error naming both what was expected and found.
func (p *Parser) expectKeyword(kw string) (token.Token, error) {
	if !p.isKeyword(kw) {
		return token.Token{}, p.errHere("expected keyword " + kw + ", found " + p.cur().Text)
	}
	return p.advance(), nil
}

func (p *Parser) expectDelim(d string) (token.Token, error) {
	if !p.isDelim(d) {
		return token.Token{}, p.errHere("expected '" + d + "', found " + p.cur().Text)
	}
	return p.advance(), nil
}

func (p *Parser) expectIdentifier() (token.Token, error) {
	if p.cur().Kind != token.Identifier {
		return token.Token{}, p.errHere("expected identifier, found " + p.cur().Text)
	}
	return p.advance(), nil
}

func (p *Parser) expectNumber() (token.Token, error) {
	if p.cur().Kind != token.Number {
		return token.Token{}, p.errHere("expected number, found " + p.cur().Text)
	}
	return p.advance(), nil
}

// parseStatement dispatches on the first keyword to the appropriate
// statement parser. Statements end at a trailing ';' (optional) or EOF.
func (p *Parser) parseStatement() (*plan.Node, error) {
	if p.cur().Kind == token.EOF {
		return nil, ErrEmptyInput.New()
	}

	var (
		node *plan.Node
		err  error
	)
	switch {
	case p.isKeyword("SELECT"):
		node, err = p.parseSelect()
	case p.isKeyword("INSERT INTO"):
		node, err = p.parseInsert()
	case p.isKeyword("UPDATE"):
		node, err = p.parseUpdate()
	case p.isKeyword("DELETE"):
		node, err = p.parseDelete()
	case p.isKeyword("CREATE TABLE"):
		node, err = p.parseCreateTable()
	case p.isKeyword("DROP TABLE"):
		node, err = p.parseDropTable()
	case p.isKeyword("BEGIN TRANSACTION"):
		node, err = p.parseBeginTransaction()
	case p.isKeyword("COMMIT"):
		p.advance()
		node = plan.New(plan.Commit, "")
	case p.isKeyword("ABORT"):
		p.advance()
		node = plan.New(plan.Commit, "ABORT")
	default:
		return nil, p.errHere("unexpected token " + p.cur().Text)
	}
	if err != nil {
		return nil, err
	}
	if p.isDelim(";") {
		p.advance()
	}
	if p.cur().Kind != token.EOF {
		return nil, p.errHere("unexpected trailing token " + p.cur().Text)
	}
	return node, nil
}

func parseIntText(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
