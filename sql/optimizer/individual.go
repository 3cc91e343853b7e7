package optimizer

import "github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/plan"

// Individual is one candidate plan in the genetic search, identified by
// its per-operation parameter map. The
// rewritten plan and its fitness are derived lazily and cached;
// InvalidateCache clears both.
type Individual struct {
	base    *plan.Node
	Params  Params
	plan    *plan.Node
	fitness *int
}

// NewIndividual constructs an Individual against base with params,
// deferring plan derivation until first read.
func NewIndividual(base *plan.Node, params Params) *Individual {
	return &Individual{base: base, Params: params}
}

// Plan returns the rewritten plan, computing and caching it (and the
// cleaned Params Rule 4 produces) on first access.
func (ind *Individual) Plan() *plan.Node {
	if ind.plan == nil {
		derived, cleaned := Derive(ind.base, ind.Params)
		ind.plan = derived
		ind.Params = cleaned
	}
	return ind.plan
}

// Fitness returns the cost of this individual's rewritten plan, computing
// and caching it on first access (lower is better).
func (ind *Individual) Fitness() int {
	if ind.fitness == nil {
		c := Cost(ind.Plan())
		ind.fitness = &c
	}
	return *ind.fitness
}

// InvalidateCache clears the cached plan/fitness, forcing the next read
// to re-derive from (possibly mutated) Params.
func (ind *Individual) InvalidateCache() {
	ind.plan = nil
	ind.fitness = nil
}
