package rules

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/catalog"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/parser"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/plan"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat := catalog.New()
	require.NoError(t, cat.CreateTable(&catalog.Table{
		Name: "users",
		Columns: []catalog.ColumnDefinition{
			{Name: "id", Type: "INTEGER", PrimaryKey: true},
			{Name: "name", Type: "VARCHAR", Size: 50},
			{Name: "age", Type: "INTEGER"},
		},
	}))
	require.NoError(t, cat.CreateTable(&catalog.Table{
		Name: "orders",
		Columns: []catalog.ColumnDefinition{
			{Name: "order_id", Type: "INTEGER", PrimaryKey: true},
			{Name: "user_id", Type: "INTEGER"},
			{Name: "amount", Type: "INTEGER"},
		},
	}))
	return cat
}

func mustParse(t *testing.T, sql string) *plan.Node {
	t.Helper()
	parsed, err := parser.Parse(sql)
	require.NoError(t, err)
	return parsed.Root
}

func sortedIDs(ids []int) []int {
	cp := append([]int(nil), ids...)
	sort.Ints(cp)
	return cp
}

// Every generated or mutated order must cover the signature's id set
// exactly.
func TestFilterParamsSignaturePreservation(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	ids := []int{11, 23, 42, 57, 99}
	for i := 0; i < 200; i++ {
		order := GenerateFilterParams(ids, rng)
		assert.Equal(t, sortedIDs(ids), sortedIDs(flatten(order)))
		for j := 0; j < 10; j++ {
			order = MutateFilterParams(order, rng)
			assert.Equal(t, sortedIDs(ids), sortedIDs(flatten(order)))
		}
	}
}

func comparison(col, op, lit string) *plan.Node {
	return plan.New(plan.Comparison, op,
		plan.New(plan.ColumnRef, "", plan.New(plan.ColumnName, "", plan.New(plan.Identifier, col))),
		plan.New(plan.LiteralNumber, lit))
}

func TestUncascadeCollapsesFilterChain(t *testing.T) {
	rel := plan.New(plan.Relation, "users")
	f1 := plan.New(plan.Filter, "WHERE", rel, comparison("age", ">", "1"))
	f2 := plan.New(plan.Filter, "WHERE", f1,
		plan.New(plan.Operator, "AND", comparison("id", "=", "2"), comparison("age", "<", "9")))
	root := plan.New(plan.Project, "*", f2)

	flat := UncascadeFilters(root)
	filters := flat.FindByType(plan.Filter)
	require.Len(t, filters, 1, "the contiguous chain collapses into one FILTER")
	cond := filters[0].Children[1]
	assert.Equal(t, plan.Operator, cond.Type)
	assert.Equal(t, "AND", cond.Value)
	assert.Len(t, cond.Children, 3)
	assert.Equal(t, plan.Relation, filters[0].Children[0].Type)
}

// The parameter list reads top-to-bottom of the rebuilt chain: the first
// element becomes the topmost FILTER.
func TestApplyFilterParamsMixedOrder(t *testing.T) {
	root := mustParse(t, "SELECT name FROM users WHERE age > 1 AND id = 2 AND age < 9;")
	sigs := AnalyzeFilterParams(root)
	require.Len(t, sigs, 1)
	var sig Signature
	var ids []int
	for s, condIDs := range sigs {
		sig, ids = s, condIDs
	}
	require.Len(t, ids, 3)

	rebuilt := ApplyFilterParams(root, FilterParams{
		sig: []MixedItem{{Single: ids[2]}, {Group: []int{ids[0], ids[1]}}},
	})

	filters := rebuilt.FindByType(plan.Filter)
	require.Len(t, filters, 2)
	top, bottom := filters[0], filters[1]
	assert.Equal(t, ids[2], top.Children[1].ID, "first order element is the topmost FILTER")
	grouped := bottom.Children[1]
	assert.Equal(t, "AND", grouped.Value)
	assert.Equal(t, sortedIDs(ids[:2]), sortedIDs(idsOf(grouped.Children)))
}

func TestRule3OuterColumnsWin(t *testing.T) {
	inner := plan.New(plan.Project, "",
		plan.New(plan.ColumnRef, "", plan.New(plan.ColumnName, "", plan.New(plan.Identifier, "name"))),
		plan.New(plan.ColumnRef, "", plan.New(plan.ColumnName, "", plan.New(plan.Identifier, "age"))),
		plan.New(plan.Relation, "users"))
	outer := plan.New(plan.Project, "",
		plan.New(plan.ColumnRef, "", plan.New(plan.ColumnName, "", plan.New(plan.Identifier, "name"))),
		inner)

	collapsed := EliminateProjections(outer)
	assert.Equal(t, plan.Project, collapsed.Type)
	require.Len(t, collapsed.Children, 2, "one column plus the data child")
	assert.Equal(t, plan.Relation, collapsed.Children[1].Type)
	assert.Empty(t, collapsed.FindByType(plan.Project)[1:], "inner PROJECT eliminated")
}

func TestRule3StarInheritsInnerColumns(t *testing.T) {
	inner := plan.New(plan.Project, "",
		plan.New(plan.ColumnRef, "", plan.New(plan.ColumnName, "", plan.New(plan.Identifier, "age"))),
		plan.New(plan.Relation, "users"))
	outer := plan.New(plan.Project, "*", inner)

	collapsed := EliminateProjections(outer)
	require.Len(t, collapsed.Children, 2)
	assert.Equal(t, plan.ColumnRef, collapsed.Children[0].Type)
	assert.Equal(t, plan.Relation, collapsed.Children[1].Type)
}

func TestRule4MergeFlipsCrossToInner(t *testing.T) {
	root := mustParse(t, "SELECT name FROM users, orders WHERE users.id = orders.user_id AND users.age > 18;")
	flat := UncascadeFilters(root.Clone(true))

	patterns := AnalyzeJoinParams(flat)
	require.Len(t, patterns, 1)
	var pat JoinFilterPattern
	for _, p := range patterns {
		pat = p
	}
	require.Len(t, pat.FilterCondIDs, 2)

	// Merge only the equality condition (the first conjunct).
	mergeID := pat.FilterCondIDs[0]
	rewritten, merged := ApplyJoinParams(flat, JoinParams{pat.JoinID: []int{mergeID}})
	assert.Equal(t, map[int]bool{mergeID: true}, merged)

	joins := rewritten.FindByType(plan.Join)
	require.Len(t, joins, 1)
	assert.Equal(t, "INNER", joins[0].Value, "CROSS flips to INNER on first merge")
	require.Len(t, joins[0].Children, 3, "merged condition becomes the JOIN's condition child")
	assert.Equal(t, mergeID, joins[0].Children[2].ID)

	filters := rewritten.FindByType(plan.Filter)
	require.Len(t, filters, 1, "unmerged conjunct stays in its FILTER")
}

func TestAdjustFilterParamsDropsMergedIDs(t *testing.T) {
	sig := NewSignature([]int{1, 2, 3})
	params := FilterParams{
		sig: []MixedItem{{Single: 1}, {Group: []int{2, 3}}},
	}
	adjusted := AdjustFilterParams(params, map[int]bool{1: true, 3: true})
	require.Contains(t, adjusted, sig)
	require.Len(t, adjusted[sig], 1)
	assert.Equal(t, MixedItem{Single: 2}, adjusted[sig][0], "groups shrink, singles drop")

	gone := AdjustFilterParams(params, map[int]bool{1: true, 2: true, 3: true})
	assert.Empty(t, gone, "fully merged signatures are elided")
}

func TestRule5SwapsJoinChildren(t *testing.T) {
	root := mustParse(t, "SELECT name FROM users INNER JOIN orders ON users.id = orders.user_id;")
	joins := root.FindByType(plan.Join)
	require.Len(t, joins, 1)
	jid := joins[0].ID

	swapped := ApplyJoinChildParams(root.Clone(true), JoinChildParams{jid: true})
	j := swapped.FindByType(plan.Join)[0]
	assert.Equal(t, "orders", j.Children[0].Value)
	assert.Equal(t, "users", j.Children[1].Value)
	require.Len(t, j.Children, 3, "condition child untouched")

	kept := ApplyJoinChildParams(root.Clone(true), JoinChildParams{jid: false})
	j = kept.FindByType(plan.Join)[0]
	assert.Equal(t, "users", j.Children[0].Value)
}

func buildThreeWayJoin(t *testing.T) *plan.Node {
	t.Helper()
	// (users ⋈θ1 orders) ⋈θ2 items, θ2 over orders/items only.
	return mustParse(t,
		"SELECT name FROM users INNER JOIN orders ON users.id = orders.user_id "+
			"INNER JOIN items ON orders.order_id = items.order_id;")
}

func joinIDSet(root *plan.Node) map[int]bool {
	out := map[int]bool{}
	for _, j := range root.FindByType(plan.Join) {
		out[j.ID] = true
	}
	return out
}

func TestRule6RightAssociation(t *testing.T) {
	root := buildThreeWayJoin(t)
	before := joinIDSet(root)

	outer := root.FindByType(plan.Join)[0] // pre-order: outer first
	rewritten := ApplyAssociativityParams(root.Clone(true), AssociativityParams{outer.ID: "right"})

	joins := rewritten.FindByType(plan.Join)
	require.Len(t, joins, 2)
	newOuter := joins[0]
	assert.Equal(t, plan.Relation, newOuter.Children[0].Type, "A becomes the outer left child")
	assert.Equal(t, "users", newOuter.Children[0].Value)
	assert.Equal(t, plan.Join, newOuter.Children[1].Type, "(B ⋈ C) becomes the outer right child")

	// Join id stability: the JOIN id set is preserved.
	assert.Equal(t, before, joinIDSet(rewritten))
}

func TestRule6GuardRefusesOutOfScopeCondition(t *testing.T) {
	// θ2 references users, which leaves the would-be inner (orders, items)
	// subtree — the rewrite must refuse and leave the plan unchanged.
	root := mustParse(t,
		"SELECT name FROM users INNER JOIN orders ON users.id = orders.user_id "+
			"INNER JOIN items ON users.id = items.owner_id;")
	outer := root.FindByType(plan.Join)[0]

	clone := root.Clone(true)
	rewritten := ApplyAssociativityParams(clone, AssociativityParams{outer.ID: "right"})
	assert.Equal(t, root.DebugString(), rewritten.DebugString(), "refused rewrite leaves the plan unchanged")
	assert.Equal(t, joinIDSet(root), joinIDSet(rewritten))
}

func TestRule6NoneLeavesPlanAlone(t *testing.T) {
	root := buildThreeWayJoin(t)
	outer := root.FindByType(plan.Join)[0]
	rewritten := ApplyAssociativityParams(root.Clone(true), AssociativityParams{outer.ID: "none"})
	assert.Equal(t, root.DebugString(), rewritten.DebugString())
}

// After the deterministic pushdown, each JOIN side holds a FILTER
// referencing only that side's tables and no FILTER sits above the
// JOIN.
func TestRule7PushdownPartitionsConditions(t *testing.T) {
	cat := testCatalog(t)
	root := mustParse(t,
		"SELECT name FROM users INNER JOIN orders ON users.id = orders.user_id "+
			"WHERE users.age > 18 AND orders.amount > 10;")

	rewritten := PushdownFilters(UncascadeFilters(root.Clone(true)), cat)

	joins := rewritten.FindByType(plan.Join)
	require.Len(t, joins, 1)
	join := joins[0]

	// No FILTER above the JOIN.
	project := rewritten
	require.Equal(t, plan.Project, project.Type)
	assert.Equal(t, plan.Join, project.Children[len(project.Children)-1].Type)

	left, right := join.Children[0], join.Children[1]
	require.Equal(t, plan.Filter, left.Type)
	require.Equal(t, plan.Filter, right.Type)
	assert.Equal(t, plan.Relation, left.Children[0].Type)
	assert.Equal(t, "users", left.Children[0].Value)
	assert.Equal(t, "orders", right.Children[0].Value)

	leftTables := conditionTables(left.Children[1], map[string]bool{"users": true, "orders": true}, cat)
	assert.Equal(t, map[string]bool{"users": true}, leftTables)
	rightTables := conditionTables(right.Children[1], map[string]bool{"users": true, "orders": true}, cat)
	assert.Equal(t, map[string]bool{"orders": true}, rightTables)
}

func TestRule7CrossSideConditionStaysAbove(t *testing.T) {
	cat := testCatalog(t)
	root := mustParse(t,
		"SELECT name FROM users INNER JOIN orders ON users.id = orders.user_id "+
			"WHERE users.age > orders.amount AND users.age > 18;")

	rewritten := PushdownFilters(UncascadeFilters(root.Clone(true)), cat)

	// The cross-side conjunct remains in a FILTER above the JOIN.
	project := rewritten
	top := project.Children[len(project.Children)-1]
	require.Equal(t, plan.Filter, top.Type)
	assert.Equal(t, plan.Join, top.Children[0].Type)
	tables := conditionTables(top.Children[1], map[string]bool{"users": true, "orders": true}, cat)
	assert.Len(t, tables, 2)
}

func TestRule8InsertsSideProjections(t *testing.T) {
	cat := testCatalog(t)
	root := mustParse(t, "SELECT name FROM users INNER JOIN orders ON users.id = orders.user_id;")

	rewritten := PushdownProjections(root.Clone(true), cat)
	join := rewritten.FindByType(plan.Join)[0]

	left, right := join.Children[0], join.Children[1]
	require.Equal(t, plan.Project, left.Type)
	require.Equal(t, plan.Project, right.Type)

	leftCols := projectColumnNames(left)
	assert.Equal(t, columnSet{"id": true, "name": true}, leftCols, "left keeps L1 ∪ L3")
	rightCols := projectColumnNames(right)
	assert.Equal(t, columnSet{"user_id": true}, rightCols, "right keeps L2 ∪ L4")
}

func TestRule8SkipsStarProjection(t *testing.T) {
	cat := testCatalog(t)
	root := mustParse(t, "SELECT * FROM users INNER JOIN orders ON users.id = orders.user_id;")

	rewritten := PushdownProjections(root.Clone(true), cat)
	join := rewritten.FindByType(plan.Join)[0]
	assert.Equal(t, plan.Relation, join.Children[0].Type)
	assert.Equal(t, plan.Relation, join.Children[1].Type)
}
