package optimizer

import (
	"context"
	"math/rand"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/plan"
)

// coupledOps are bred together, whole-block, from one chosen parent so
// condition-id references between filter_params and join_params stay
// consistent across a crossover.
var coupledOps = map[OperationName]bool{OpFilter: true, OpJoin: true}

// Config parameterizes one genetic-optimizer run.
type Config struct {
	PopulationSize int
	Generations    int
	MutationRate   float64
	Elitism        int
	Seed           int64 // seedable for reproducible searches
}

// DefaultConfig is the stock GA tuning: population 50, light mutation.
func DefaultConfig() Config {
	return Config{
		PopulationSize: 50,
		Generations:    100,
		MutationRate:   0.1,
		Elitism:        2,
		Seed:           1,
	}
}

// HistoryEntry records one generation's best fitness.
type HistoryEntry struct {
	Generation int
	Best       int
}

// Engine runs the genetic search over a base plan's rule-parameter
// spaces. Deliberately not a singleton: a fresh Engine is constructed
// per query and its population is query-local.
type Engine struct {
	cfg Config
}

// NewEngine constructs an Engine with cfg; a zero-value PopulationSize or
// Generations falls back to DefaultConfig's values.
func NewEngine(cfg Config) *Engine {
	if cfg.PopulationSize <= 0 {
		cfg.PopulationSize = DefaultConfig().PopulationSize
	}
	if cfg.Generations <= 0 {
		cfg.Generations = DefaultConfig().Generations
	}
	if cfg.Elitism <= 0 {
		cfg.Elitism = DefaultConfig().Elitism
	}
	if cfg.MutationRate <= 0 {
		cfg.MutationRate = DefaultConfig().MutationRate
	}
	return &Engine{cfg: cfg}
}

// Optimize runs the full generation loop against base (which must
// already have Rules 3/7/8 applied) and returns the best individual's
// plan plus the per-generation best-fitness history.
func (e *Engine) Optimize(ctx context.Context, base *plan.Node) (*plan.Node, []HistoryEntry, error) {
	rng := rand.New(rand.NewSource(e.cfg.Seed))
	analysis := Analyze(base)

	pop := make([]*Individual, e.cfg.PopulationSize)
	for i := range pop {
		pop[i] = NewIndividual(base, GenerateParams(analysis, rng))
	}

	var history []HistoryEntry
	for gen := 0; gen < e.cfg.Generations; gen++ {
		if err := evaluatePopulation(ctx, pop); err != nil {
			return nil, nil, err
		}

		sort.SliceStable(pop, func(i, j int) bool { return pop[i].Fitness() < pop[j].Fitness() })
		history = append(history, HistoryEntry{Generation: gen, Best: pop[0].Fitness()})

		next := make([]*Individual, 0, e.cfg.PopulationSize)
		next = append(next, pop[:min(e.cfg.Elitism, len(pop))]...)

		topN := min(10, len(pop))
		for len(next) < e.cfg.PopulationSize {
			p1 := pop[rng.Intn(topN)]
			p2 := pop[rng.Intn(topN)]
			c1, c2 := crossover(p1, p2, base, rng)
			if rng.Float64() < e.cfg.MutationRate {
				c1 = NewIndividual(base, Mutate(c1.Params, rng))
			}
			if rng.Float64() < e.cfg.MutationRate {
				c2 = NewIndividual(base, Mutate(c2.Params, rng))
			}
			next = append(next, c1, c2)
		}
		pop = next[:e.cfg.PopulationSize]
	}

	if err := evaluatePopulation(ctx, pop); err != nil {
		return nil, nil, err
	}
	sort.SliceStable(pop, func(i, j int) bool { return pop[i].Fitness() < pop[j].Fitness() })
	return pop[0].Plan(), history, nil
}

// evaluatePopulation computes (and caches) every individual's fitness
// concurrently — the GA's dominant per-generation cost is the deep clone
// each Individual.Plan() performs, so fanning that out pays off even
// though Fitness() itself is pure CPU.
func evaluatePopulation(ctx context.Context, pop []*Individual) error {
	g, _ := errgroup.WithContext(ctx)
	for _, ind := range pop {
		ind := ind
		if ind.fitness != nil {
			continue
		}
		g.Go(func() error {
			ind.Fitness()
			return nil
		})
	}
	return g.Wait()
}

// crossover breeds two children from p1/p2:
// coupled operations inherit whole from one randomly chosen parent per
// child; independent operations cross per-pattern with a fair coin. The
// inherited maps are shared by reference with the parent, which is safe
// because Mutate always deep-copies before writing (Params.Copy).
func crossover(p1, p2 *Individual, base *plan.Node, rng *rand.Rand) (*Individual, *Individual) {
	var c1, c2 Params
	if rng.Intn(2) == 0 {
		c1.Filter, c1.Join = p1.Params.Filter, p1.Params.Join
		c2.Filter, c2.Join = p2.Params.Filter, p2.Params.Join
	} else {
		c1.Filter, c1.Join = p2.Params.Filter, p2.Params.Join
		c2.Filter, c2.Join = p1.Params.Filter, p1.Params.Join
	}

	c1.JoinChild, c2.JoinChild = crossJoinChild(p1.Params.JoinChild, p2.Params.JoinChild, rng)
	c1.Assoc, c2.Assoc = crossAssoc(p1.Params.Assoc, p2.Params.Assoc, rng)

	return NewIndividual(base, c1), NewIndividual(base, c2)
}

// crossJoinChild performs per-pattern uniform crossover over the
// join_child_params map: for every id present in either parent, each
// coin flip assigns that id's value to child 1 from one parent and to
// child 2 from the other; an id present in only one parent is copied
// straight through to both. Ids are visited sorted so each one
// consumes the same rng draw on every run (seeded reproducibility).
func crossJoinChild(a, b map[int]bool, rng *rand.Rand) (map[int]bool, map[int]bool) {
	c1 := make(map[int]bool, len(a)+len(b))
	c2 := make(map[int]bool, len(a)+len(b))
	for _, id := range unionBoolKeys(a, b) {
		va, inA := a[id]
		vb, inB := b[id]
		switch {
		case inA && inB:
			if rng.Intn(2) == 0 {
				c1[id], c2[id] = va, vb
			} else {
				c1[id], c2[id] = vb, va
			}
		case inA:
			c1[id], c2[id] = va, va
		default:
			c1[id], c2[id] = vb, vb
		}
	}
	return c1, c2
}

// crossAssoc is crossJoinChild's twin for join_associativity_params.
func crossAssoc(a, b map[int]string, rng *rand.Rand) (map[int]string, map[int]string) {
	c1 := make(map[int]string, len(a)+len(b))
	c2 := make(map[int]string, len(a)+len(b))
	for _, id := range unionStrKeys(a, b) {
		va, inA := a[id]
		vb, inB := b[id]
		switch {
		case inA && inB:
			if rng.Intn(2) == 0 {
				c1[id], c2[id] = va, vb
			} else {
				c1[id], c2[id] = vb, va
			}
		case inA:
			c1[id], c2[id] = va, va
		default:
			c1[id], c2[id] = vb, vb
		}
	}
	return c1, c2
}

func unionBoolKeys(a, b map[int]bool) []int {
	seen := make(map[int]bool, len(a)+len(b))
	var keys []int
	for k := range a {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for k := range b {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Ints(keys)
	return keys
}

func unionStrKeys(a, b map[int]string) []int {
	seen := make(map[int]bool, len(a)+len(b))
	var keys []int
	for k := range a {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for k := range b {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Ints(keys)
	return keys
}
