package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usersTable() *Table {
	return &Table{
		Name: "users",
		Columns: []ColumnDefinition{
			{Name: "id", Type: "INTEGER", PrimaryKey: true},
			{Name: "name", Type: "VARCHAR", Size: 50},
			{Name: "age", Type: "INTEGER"},
		},
		PrimaryKeys: []string{"id"},
	}
}

func TestCreateAndLookupTable(t *testing.T) {
	c := New()
	require.NoError(t, c.CreateTable(usersTable()))

	tbl, err := c.Table("users")
	require.NoError(t, err)
	assert.Equal(t, "users", tbl.Name)
	assert.True(t, tbl.HasColumn("age"))
	assert.False(t, tbl.HasColumn("missing"))
}

func TestCreateTableDuplicateFails(t *testing.T) {
	c := New()
	require.NoError(t, c.CreateTable(usersTable()))
	err := c.CreateTable(usersTable())
	assert.True(t, ErrTableExists.Is(err))
}

func TestUnknownTableLookupFails(t *testing.T) {
	c := New()
	_, err := c.Table("ghost")
	assert.True(t, ErrUnknownTable.Is(err))
}

func TestDropTableRemovesStats(t *testing.T) {
	c := New()
	require.NoError(t, c.CreateTable(usersTable()))
	require.NoError(t, c.DropTable("users"))

	_, err := c.Table("users")
	assert.Error(t, err)
	_, err = c.Stats("users")
	assert.Error(t, err)
}

func TestColumnOwnerUnambiguous(t *testing.T) {
	c := New()
	require.NoError(t, c.CreateTable(usersTable()))
	require.NoError(t, c.CreateTable(&Table{
		Name: "orders",
		Columns: []ColumnDefinition{
			{Name: "id", Type: "INTEGER"},
			{Name: "user_id", Type: "INTEGER"},
		},
	}))

	owner, ok := c.ColumnOwner("user_id", []string{"users", "orders"})
	assert.True(t, ok)
	assert.Equal(t, "orders", owner)

	_, ok = c.ColumnOwner("id", []string{"users", "orders"})
	assert.False(t, ok, "id is ambiguous between users and orders")
}
