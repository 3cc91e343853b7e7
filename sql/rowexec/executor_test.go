package rowexec

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/concurrency"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/catalog"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/condition"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/parser"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/plan"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/rules"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/storage"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}

type fixture struct {
	cat   *catalog.Catalog
	store *storage.Engine
	ccm   concurrency.Manager
	exec  *Executor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat := catalog.New()
	store := storage.NewEngine(cat, 0)
	ccm := concurrency.NewTwoPhaseLocking(time.Second, quietLogger())
	return &fixture{
		cat:   cat,
		store: store,
		ccm:   ccm,
		exec:  New(store, cat, ccm, nil, quietLogger()),
	}
}

func (f *fixture) createUsers(t *testing.T) {
	t.Helper()
	require.NoError(t, f.store.CreateTable(&catalog.Table{
		Name: "users",
		Columns: []catalog.ColumnDefinition{
			{Name: "id", Type: "INTEGER", PrimaryKey: true},
			{Name: "name", Type: "VARCHAR", Size: 50},
			{Name: "age", Type: "INTEGER"},
		},
		PrimaryKeys: []string{"id"},
	}))
	for _, row := range []struct {
		id   int
		name string
		age  int
	}{{1, "Alice", 30}, {2, "Bob", 25}, {3, "Carol", 35}} {
		_, err := f.store.WriteBlock(storage.DataWrite{
			Table:   "users",
			Columns: []string{"id", "name", "age"},
			Values:  []any{row.id, row.name, row.age},
		})
		require.NoError(t, err)
	}
}

func (f *fixture) createOrders(t *testing.T) {
	t.Helper()
	require.NoError(t, f.store.CreateTable(&catalog.Table{
		Name: "orders",
		Columns: []catalog.ColumnDefinition{
			{Name: "order_id", Type: "INTEGER", PrimaryKey: true},
			{Name: "user_id", Type: "INTEGER"},
			{Name: "amount", Type: "INTEGER"},
		},
		PrimaryKeys: []string{"order_id"},
	}))
	for _, row := range [][]any{{10, 1, 100}, {11, 1, 50}, {12, 3, 75}} {
		_, err := f.store.WriteBlock(storage.DataWrite{
			Table:   "orders",
			Columns: []string{"order_id", "user_id", "amount"},
			Values:  row,
		})
		require.NoError(t, err)
	}
}

func (f *fixture) run(t *testing.T, sql string) Result {
	t.Helper()
	parsed, err := parser.Parse(sql)
	require.NoError(t, err)
	tid := concurrency.NextTID()
	require.NoError(t, f.ccm.Begin(tid))
	res, err := f.exec.Execute(context.Background(), parsed.Root, tid)
	require.NoError(t, err)
	require.NoError(t, f.ccm.Commit(tid))
	return res
}

func (f *fixture) runPlan(t *testing.T, root *plan.Node) Result {
	t.Helper()
	tid := concurrency.NextTID()
	require.NoError(t, f.ccm.Begin(tid))
	res, err := f.exec.Execute(context.Background(), root, tid)
	require.NoError(t, err)
	require.NoError(t, f.ccm.Commit(tid))
	return res
}

// The canonical smoke test: a filtered single-table SELECT.
func TestBasicSelectWithFilter(t *testing.T) {
	f := newFixture(t)
	f.createUsers(t)

	res := f.run(t, "SELECT name FROM users WHERE age >= 30;")
	require.Len(t, res.Rows, 2)
	names := rowValues(res.Rows, "name")
	assert.ElementsMatch(t, []any{"Alice", "Carol"}, names)
	for _, row := range res.Rows {
		assert.Len(t, row, 1, "projection must keep only the listed column")
	}
}

func TestSelectStar(t *testing.T) {
	f := newFixture(t)
	f.createUsers(t)

	res := f.run(t, "SELECT * FROM users;")
	require.Len(t, res.Rows, 3)
	for _, row := range res.Rows {
		assert.Contains(t, row, "id")
		assert.Contains(t, row, "name")
		assert.Contains(t, row, "age")
		for k := range row {
			assert.NotContains(t, k, ".", "star projection emits bare column keys")
		}
	}
}

func TestSelectOrderByAndLimit(t *testing.T) {
	f := newFixture(t)
	f.createUsers(t)

	res := f.run(t, "SELECT name FROM users ORDER BY age DESC LIMIT 2;")
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "Carol", res.Rows[0]["name"])
	assert.Equal(t, "Alice", res.Rows[1]["name"])
}

func TestInnerJoinOnCondition(t *testing.T) {
	f := newFixture(t)
	f.createUsers(t)
	f.createOrders(t)

	res := f.run(t, "SELECT name FROM users INNER JOIN orders ON users.id = orders.user_id WHERE orders.amount > 60;")
	names := rowValues(res.Rows, "name")
	assert.ElementsMatch(t, []any{"Alice", "Carol"}, names)
}

func TestNaturalJoinOnSharedColumn(t *testing.T) {
	f := newFixture(t)
	f.createUsers(t)
	require.NoError(t, f.store.CreateTable(&catalog.Table{
		Name: "profiles",
		Columns: []catalog.ColumnDefinition{
			{Name: "id", Type: "INTEGER"},
			{Name: "bio", Type: "VARCHAR", Size: 100},
		},
	}))
	_, err := f.store.WriteBlock(storage.DataWrite{
		Table:   "profiles",
		Columns: []string{"id", "bio"},
		Values:  []any{1, "likes go"},
	})
	require.NoError(t, err)

	res := f.run(t, "SELECT name FROM users NATURAL JOIN profiles;")
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Alice", res.Rows[0]["name"])
}

func TestInAndBetweenAndLike(t *testing.T) {
	f := newFixture(t)
	f.createUsers(t)

	res := f.run(t, "SELECT name FROM users WHERE id IN (1, 3);")
	assert.ElementsMatch(t, []any{"Alice", "Carol"}, rowValues(res.Rows, "name"))

	res = f.run(t, "SELECT name FROM users WHERE age BETWEEN 26 AND 34;")
	assert.ElementsMatch(t, []any{"Alice"}, rowValues(res.Rows, "name"))

	res = f.run(t, "SELECT name FROM users WHERE name LIKE 'C%';")
	assert.ElementsMatch(t, []any{"Carol"}, rowValues(res.Rows, "name"))

	res = f.run(t, "SELECT name FROM users WHERE name NOT LIKE '%o%';")
	assert.ElementsMatch(t, []any{"Alice"}, rowValues(res.Rows, "name"))
}

func TestExistsSubquery(t *testing.T) {
	f := newFixture(t)
	f.createUsers(t)
	f.createOrders(t)

	res := f.run(t, "SELECT name FROM users WHERE EXISTS (SELECT order_id FROM orders WHERE amount > 90);")
	assert.Len(t, res.Rows, 3, "non-empty subquery keeps every row")

	res = f.run(t, "SELECT name FROM users WHERE EXISTS (SELECT order_id FROM orders WHERE amount > 900);")
	assert.Empty(t, res.Rows, "empty subquery filters everything")
}

func TestInsertUpdateDelete(t *testing.T) {
	f := newFixture(t)
	f.createUsers(t)

	res := f.run(t, "INSERT INTO users (id, name, age) VALUES (4, 'Dave', 40);")
	assert.Equal(t, 1, res.Affected)

	res = f.run(t, "UPDATE users SET age = 41 WHERE name = 'Dave';")
	assert.Equal(t, 1, res.Affected)

	rows := f.run(t, "SELECT age FROM users WHERE name = 'Dave';").Rows
	require.Len(t, rows, 1)
	assert.Equal(t, 41, rows[0]["age"])

	res = f.run(t, "DELETE FROM users WHERE id = 4;")
	assert.Equal(t, 1, res.Affected)
	assert.Empty(t, f.run(t, "SELECT id FROM users WHERE id = 4;").Rows)
}

func TestCreateAndDropTable(t *testing.T) {
	f := newFixture(t)

	f.run(t, "CREATE TABLE pets (pet_id INTEGER PRIMARY KEY, name VARCHAR(30));")
	tbl, err := f.cat.Table("pets")
	require.NoError(t, err)
	assert.Equal(t, []string{"pet_id"}, tbl.PrimaryKeys)
	assert.Equal(t, 30, tbl.Columns[1].Size)

	f.run(t, "DROP TABLE pets;")
	assert.False(t, f.cat.HasTable("pets"))
}

func TestDropTableRestrictRefusesReferencedTable(t *testing.T) {
	f := newFixture(t)
	f.createUsers(t)
	f.run(t, "CREATE TABLE pets (pet_id INTEGER PRIMARY KEY, owner INTEGER FOREIGN KEY REFERENCES users(id));")

	parsed, err := parser.Parse("DROP TABLE users RESTRICT;")
	require.NoError(t, err)
	tid := concurrency.NextTID()
	require.NoError(t, f.ccm.Begin(tid))
	_, err = f.exec.Execute(context.Background(), parsed.Root, tid)
	assert.True(t, ErrExecution.Is(err))
	require.NoError(t, f.ccm.Abort(tid))
	assert.True(t, f.cat.HasTable("users"))
}

func TestTransactionBlockExecutesSequentially(t *testing.T) {
	f := newFixture(t)
	f.createUsers(t)

	parsed, err := parser.Parse(
		"BEGIN TRANSACTION INSERT INTO users (id, name, age) VALUES (5, 'Eve', 28); " +
			"UPDATE users SET age = 29 WHERE id = 5; COMMIT;")
	require.NoError(t, err)

	tid := concurrency.NextTID()
	_, err = f.exec.Execute(context.Background(), parsed.Root, tid)
	require.NoError(t, err)

	rows := f.run(t, "SELECT age FROM users WHERE id = 5;").Rows
	require.Len(t, rows, 1)
	assert.Equal(t, 29, rows[0]["age"])
}

func TestUnknownColumnIsExecutionError(t *testing.T) {
	f := newFixture(t)
	f.createUsers(t)

	parsed, err := parser.Parse("SELECT ghost FROM users;")
	require.NoError(t, err)
	tid := concurrency.NextTID()
	require.NoError(t, f.ccm.Begin(tid))
	_, err = f.exec.Execute(context.Background(), parsed.Root, tid)
	assert.True(t, ErrExecution.Is(err))
	require.NoError(t, f.ccm.Abort(tid))
}

// Swapping a join's data children must not change the result multiset.
func TestJoinCommutativityExecutionEquivalence(t *testing.T) {
	f := newFixture(t)
	f.createUsers(t)
	f.createOrders(t)

	parsed, err := parser.Parse("SELECT name FROM users INNER JOIN orders ON users.id = orders.user_id;")
	require.NoError(t, err)

	base := parsed.Root.Clone(true)
	joins := base.FindByType(plan.Join)
	require.Len(t, joins, 1)

	unswapped := f.runPlan(t, rules.ApplyJoinChildParams(base.Clone(true), rules.JoinChildParams{joins[0].ID: false}))
	swapped := f.runPlan(t, rules.ApplyJoinChildParams(base.Clone(true), rules.JoinChildParams{joins[0].ID: true}))
	assert.ElementsMatch(t, rowValues(unswapped.Rows, "name"), rowValues(swapped.Rows, "name"))
}

// Two different filter_params orderings over the same signature must
// execute to identical multisets.
func TestFilterParamsExecutionEquivalence(t *testing.T) {
	f := newFixture(t)
	f.createUsers(t)

	parsed, err := parser.Parse("SELECT name FROM users WHERE age > 20 AND id >= 1 AND age < 40;")
	require.NoError(t, err)

	base := rules.UncascadeFilters(parsed.Root.Clone(true))
	sigs := rules.AnalyzeFilterParams(base)
	require.Len(t, sigs, 1)
	var sig rules.Signature
	var ids []int
	for s, condIDs := range sigs {
		sig, ids = s, condIDs
	}
	require.Len(t, ids, 3)
	sort.Ints(ids)

	cascaded := rules.ApplyFilterParams(base.Clone(true), rules.FilterParams{
		sig: []rules.MixedItem{{Single: ids[2]}, {Group: []int{ids[0], ids[1]}}},
	})
	grouped := rules.ApplyFilterParams(base.Clone(true), rules.FilterParams{
		sig: []rules.MixedItem{{Group: []int{ids[0], ids[1], ids[2]}}},
	})

	r1 := f.runPlan(t, cascaded)
	r2 := f.runPlan(t, grouped)
	assert.ElementsMatch(t, rowValues(r1.Rows, "name"), rowValues(r2.Rows, "name"))
	assert.Len(t, r1.Rows, 3)
}

func rowValues(rows []condition.Row, col string) []any {
	out := make([]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, r[col])
	}
	return out
}
