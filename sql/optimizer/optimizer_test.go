package optimizer

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/parser"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/plan"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/rules"
)

func mustParse(t *testing.T, sql string) *plan.Node {
	t.Helper()
	parsed, err := parser.Parse(sql)
	require.NoError(t, err)
	return parsed.Root
}

func multiJoinQuery(t *testing.T) *plan.Node {
	t.Helper()
	return mustParse(t,
		"SELECT name FROM users, orders, items "+
			"WHERE users.id = orders.user_id AND orders.order_id = items.order_id AND users.age > 18;")
}

func TestCostCountsOperators(t *testing.T) {
	rel := plan.New(plan.Relation, "users")
	assert.Equal(t, 100, Cost(rel))

	filter := plan.New(plan.Filter, "WHERE", plan.New(plan.Relation, "users"),
		plan.New(plan.Comparison, ">", plan.New(plan.LiteralNumber, "1"), plan.New(plan.LiteralNumber, "0")))
	assert.Equal(t, 140, Cost(filter))

	join := plan.New(plan.Join, "CROSS", plan.New(plan.Relation, "a"), plan.New(plan.Relation, "b"))
	assert.Equal(t, 250, Cost(join))
}

func TestCostDeterministic(t *testing.T) {
	root := multiJoinQuery(t)
	c := Cost(root)
	for i := 0; i < 10; i++ {
		assert.Equal(t, c, Cost(root))
	}
	assert.Greater(t, c, 0)
}

func TestAnalyzeFindsAllPatternKinds(t *testing.T) {
	base := rules.UncascadeFilters(multiJoinQuery(t))
	a := Analyze(base)
	assert.Len(t, a.FilterSignatures, 1)
	assert.Len(t, a.JoinNodes, 2, "two joins in the left-deep chain")
	assert.Len(t, a.AssocNodes, 1, "one reassociable outer join")
	assert.Len(t, a.JoinPatterns, 1, "one filter-over-join pattern")
}

func TestGenerateParamsCoversEveryPattern(t *testing.T) {
	base := rules.UncascadeFilters(multiJoinQuery(t))
	a := Analyze(base)
	rng := rand.New(rand.NewSource(3))
	p := GenerateParams(a, rng)
	assert.Len(t, p.Filter, len(a.FilterSignatures))
	assert.Len(t, p.JoinChild, len(a.JoinNodes))
	assert.Len(t, p.Assoc, len(a.AssocNodes))
	assert.Len(t, p.Join, len(a.JoinPatterns))
}

func TestMutateLeavesOriginalUntouched(t *testing.T) {
	base := rules.UncascadeFilters(multiJoinQuery(t))
	a := Analyze(base)
	rng := rand.New(rand.NewSource(5))
	p := GenerateParams(a, rng)
	snapshot := p.Copy()

	for i := 0; i < 50; i++ {
		_ = Mutate(p, rng)
	}
	assert.Equal(t, snapshot, p, "Mutate must deep-copy, never write through")
}

func TestDeriveIsDeterministic(t *testing.T) {
	base := rules.UncascadeFilters(multiJoinQuery(t))
	a := Analyze(base)
	rng := rand.New(rand.NewSource(11))
	p := GenerateParams(a, rng)

	first, _ := Derive(base, p)
	second, _ := Derive(base, p)
	assert.Equal(t, first.DebugString(), second.DebugString())
}

// With elitism, per-generation best fitness never worsens.
func TestOptimizeHistoryMonotonic(t *testing.T) {
	base := rules.UncascadeFilters(multiJoinQuery(t))
	eng := NewEngine(Config{PopulationSize: 20, Generations: 15, MutationRate: 0.3, Elitism: 2, Seed: 42})

	best, history, err := eng.Optimize(context.Background(), base)
	require.NoError(t, err)
	require.NotNil(t, best)
	require.Len(t, history, 15)
	for i := 1; i < len(history); i++ {
		assert.LessOrEqual(t, history[i].Best, history[i-1].Best,
			"generation %d best regressed", i)
	}
}

func TestOptimizeSeededReproducible(t *testing.T) {
	cfg := Config{PopulationSize: 12, Generations: 8, MutationRate: 0.2, Elitism: 2, Seed: 99}

	run := func() (string, []HistoryEntry) {
		base := rules.UncascadeFilters(multiJoinQuery(t))
		best, history, err := NewEngine(cfg).Optimize(context.Background(), base)
		require.NoError(t, err)
		return best.DebugString(), history
	}

	plan1, hist1 := run()
	plan2, hist2 := run()
	assert.Equal(t, plan1, plan2, "same seed, same best plan shape")
	require.Equal(t, len(hist1), len(hist2))
	for i := range hist1 {
		assert.Equal(t, hist1[i].Best, hist2[i].Best)
	}
}

func TestCrossoverInheritsCoupledBlockTogether(t *testing.T) {
	base := rules.UncascadeFilters(multiJoinQuery(t))
	a := Analyze(base)
	rng := rand.New(rand.NewSource(17))

	p1 := NewIndividual(base, GenerateParams(a, rng))
	p2 := NewIndividual(base, GenerateParams(a, rng))
	c1, c2 := crossover(p1, p2, base, rng)

	// filter_params and join_params always travel together from the same
	// parent (coupled operations).
	fromP1 := paramsEqualFilter(c1.Params, p1.Params)
	if fromP1 {
		assert.Equal(t, p1.Params.Join, c1.Params.Join)
		assert.Equal(t, p2.Params.Join, c2.Params.Join)
	} else {
		assert.Equal(t, p2.Params.Join, c1.Params.Join)
		assert.Equal(t, p1.Params.Join, c2.Params.Join)
	}
}

func paramsEqualFilter(a, b Params) bool {
	if len(a.Filter) != len(b.Filter) {
		return false
	}
	for sig, order := range a.Filter {
		other, ok := b.Filter[sig]
		if !ok || len(order) != len(other) {
			return false
		}
		for i := range order {
			if order[i].Single != other[i].Single || len(order[i].Group) != len(other[i].Group) {
				return false
			}
		}
	}
	return true
}

func TestIndividualLazyCaching(t *testing.T) {
	base := rules.UncascadeFilters(multiJoinQuery(t))
	a := Analyze(base)
	rng := rand.New(rand.NewSource(23))
	ind := NewIndividual(base, GenerateParams(a, rng))

	require.Nil(t, ind.fitness, "fitness is lazy")
	f := ind.Fitness()
	require.NotNil(t, ind.fitness)
	assert.Equal(t, f, ind.Fitness())

	ind.InvalidateCache()
	assert.Nil(t, ind.fitness)
	assert.Equal(t, f, ind.Fitness(), "re-derivation from the same params gives the same fitness")
}
