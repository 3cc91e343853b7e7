package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(toks []Token) []Kind {
	out := make([]Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func texts(toks []Token) []string {
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = t.Text
	}
	return out
}

func TestTokenizeBasicSelect(t *testing.T) {
	toks, err := Tokenize("SELECT name FROM users WHERE age >= 30;")
	require.NoError(t, err)

	require.Equal(t, EOF, toks[len(toks)-1].Kind)
	assert.Equal(t,
		[]string{"SELECT", "name", "FROM", "users", "WHERE", "age", ">=", "30", ";"},
		texts(toks[:len(toks)-1]))
	assert.Equal(t, Keyword, toks[0].Kind)
	assert.Equal(t, Identifier, toks[1].Kind)
	assert.Equal(t, Comparison, toks[6].Kind)
	assert.Equal(t, Number, toks[7].Kind)
}

func TestTokenizeMultiwordKeyword(t *testing.T) {
	toks, err := Tokenize("BEGIN TRANSACTION; COMMIT;")
	require.NoError(t, err)
	assert.Equal(t, "BEGIN TRANSACTION", toks[0].Text)
	assert.Equal(t, Keyword, toks[0].Kind)
}

func TestTokenizeOrderBy(t *testing.T) {
	toks, err := Tokenize("ORDER BY age DESC")
	require.NoError(t, err)
	assert.Equal(t, "ORDER BY", toks[0].Text)
}

func TestTokenizeCaseInsensitiveKeywordsPreserveIdentifierCase(t *testing.T) {
	toks, err := Tokenize("select Name from Users")
	require.NoError(t, err)
	assert.Equal(t, "SELECT", toks[0].Text)
	assert.Equal(t, "Name", toks[1].Text)
	assert.Equal(t, "FROM", toks[2].Text)
	assert.Equal(t, "Users", toks[3].Text)
}

func TestTokenizeQualifiedIdentifier(t *testing.T) {
	toks, err := Tokenize("users.id")
	require.NoError(t, err)
	assert.Equal(t, Identifier, toks[0].Kind)
	assert.Equal(t, "users.id", toks[0].Text)
}

func TestTokenizeStringLiteralsBothQuoteStyles(t *testing.T) {
	toks, err := Tokenize(`'Alice' "Bob"`)
	require.NoError(t, err)
	assert.Equal(t, String, toks[0].Kind)
	assert.Equal(t, "Alice", toks[0].Text)
	assert.Equal(t, String, toks[1].Kind)
	assert.Equal(t, "Bob", toks[1].Text)
}

func TestTokenizeComparisonOperators(t *testing.T) {
	toks, err := Tokenize("<> >= <= = > <")
	require.NoError(t, err)
	assert.Equal(t, []string{"<>", ">=", "<=", "=", ">", "<"}, texts(toks[:len(toks)-1]))
	for _, k := range kinds(toks[:len(toks)-1]) {
		assert.Equal(t, Comparison, k)
	}
}

func TestTokenizeUnmatchedCharacterFails(t *testing.T) {
	_, err := Tokenize("SELECT * FROM t WHERE a = @")
	require.Error(t, err)
}

func TestTokenizeUnterminatedStringFails(t *testing.T) {
	_, err := Tokenize("SELECT 'oops")
	require.Error(t, err)
}

func TestTokenizeDecimalNumber(t *testing.T) {
	toks, err := Tokenize("3.14")
	require.NoError(t, err)
	assert.Equal(t, Number, toks[0].Kind)
	assert.Equal(t, "3.14", toks[0].Text)
}
