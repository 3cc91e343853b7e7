package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComparisonEvaluate(t *testing.T) {
	c, err := NewComparison("age", ">=", 30)
	require.NoError(t, err)

	ok, err := c.Evaluate(Row{"age": 35})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Evaluate(Row{"age": 20})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestComparisonUnknownColumnFails(t *testing.T) {
	c, err := NewComparison("missing", "=", 1)
	require.NoError(t, err)
	_, err = c.Evaluate(Row{"age": 1})
	assert.True(t, ErrUnknownColumn.Is(err))
}

func TestComparisonInvalidOperatorRejected(t *testing.T) {
	_, err := NewComparison("age", "!=", 1)
	assert.True(t, ErrUnknownOperator.Is(err))
}

func TestAndRequiresAllTrue(t *testing.T) {
	c1, _ := NewComparison("a", ">", 1)
	c2, _ := NewComparison("b", "<", 10)
	and, err := NewAnd(c1, c2)
	require.NoError(t, err)

	ok, err := and.Evaluate(Row{"a": 2, "b": 5})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = and.Evaluate(Row{"a": 0, "b": 5})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAndRequiresAtLeastTwoChildren(t *testing.T) {
	c1, _ := NewComparison("a", "=", 1)
	_, err := NewAnd(c1)
	assert.Error(t, err)
}

func TestOrRequiresAnyTrue(t *testing.T) {
	c1, _ := NewComparison("a", "=", 1)
	c2, _ := NewComparison("a", "=", 2)
	or, err := NewOr(c1, c2)
	require.NoError(t, err)

	ok, err := or.Evaluate(Row{"a": 2})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = or.Evaluate(Row{"a": 3})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNotNegates(t *testing.T) {
	c1, _ := NewComparison("a", "=", 1)
	not := NewNot(c1)

	ok, err := not.Evaluate(Row{"a": 1})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = not.Evaluate(Row{"a": 2})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStringComparison(t *testing.T) {
	c, err := NewComparison("name", "<", "Bob")
	require.NoError(t, err)
	ok, err := c.Evaluate(Row{"name": "Alice"})
	require.NoError(t, err)
	assert.True(t, ok)
}
