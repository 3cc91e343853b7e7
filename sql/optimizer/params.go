package optimizer

import (
	"math/rand"
	"sort"

	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/plan"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/rules"
)

// OperationName identifies one of the four registered rule-parameter
// spaces.
type OperationName string

const (
	OpFilter      OperationName = "filter_params"
	OpJoin        OperationName = "join_params"
	OpJoinChild   OperationName = "join_child_params"
	OpAssociation OperationName = "join_associativity_params"
)

// Operations lists every registered operation name, in the order the GA
// picks a random one from during mutation.
var Operations = []OperationName{OpFilter, OpJoin, OpJoinChild, OpAssociation}

// Params is one Individual's per-operation parameter map, modeled as
// four typed fields rather than a generic map-of-interfaces so the rule
// registry's heterogeneous parameter shapes stay cast-free.
type Params struct {
	Filter    rules.FilterParams
	Join      rules.JoinParams
	JoinChild rules.JoinChildParams
	Assoc     rules.AssociativityParams
}

// BaseAnalysis is the result of running every operation's analyzer once
// against the base (pre-GA) plan — the population seed.
type BaseAnalysis struct {
	FilterSignatures map[rules.Signature][]int
	JoinPatterns     map[int]rules.JoinFilterPattern
	JoinNodes        map[int]*plan.Node
	AssocNodes       map[int]*plan.Node
}

// Analyze runs every operation's pattern analyzer against base.
func Analyze(base *plan.Node) BaseAnalysis {
	return BaseAnalysis{
		FilterSignatures: rules.AnalyzeFilterParams(base),
		JoinPatterns:     rules.AnalyzeJoinParams(base),
		JoinNodes:        rules.AnalyzeJoinChildParams(base),
		AssocNodes:       rules.AnalyzeAssociativityParams(base),
	}
}

// GenerateParams produces one random parameter value per discovered
// pattern, across all four operations — the GA's population
// initialization step. Patterns are visited in sorted key order: Go's
// map iteration order is randomized per run, and letting it decide
// which pattern consumes which rng draw would break seeded
// reproducibility.
func GenerateParams(a BaseAnalysis, rng *rand.Rand) Params {
	p := Params{
		Filter:    rules.FilterParams{},
		Join:      rules.JoinParams{},
		JoinChild: rules.JoinChildParams{},
		Assoc:     rules.AssociativityParams{},
	}
	for _, sig := range sortedSignatures(a.FilterSignatures) {
		p.Filter[sig] = rules.GenerateFilterParams(a.FilterSignatures[sig], rng)
	}
	for _, joinID := range sortedJoinPatternKeys(a.JoinPatterns) {
		p.Join[joinID] = rules.GenerateJoinParams(a.JoinPatterns[joinID].FilterCondIDs, rng)
	}
	for _, joinID := range sortedNodeKeys(a.JoinNodes) {
		p.JoinChild[joinID] = rules.GenerateJoinChildParam(rng)
	}
	for _, joinID := range sortedNodeKeys(a.AssocNodes) {
		p.Assoc[joinID] = rules.GenerateAssociativityParam(rng)
	}
	return p
}

func sortedSignatures(m map[rules.Signature][]int) []rules.Signature {
	keys := make([]rules.Signature, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func sortedJoinPatternKeys(m map[int]rules.JoinFilterPattern) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func sortedNodeKeys(m map[int]*plan.Node) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// Copy deep-copies every operation's parameter map.
func (p Params) Copy() Params {
	out := Params{
		Filter:    make(rules.FilterParams, len(p.Filter)),
		Join:      make(rules.JoinParams, len(p.Join)),
		JoinChild: make(rules.JoinChildParams, len(p.JoinChild)),
		Assoc:     make(rules.AssociativityParams, len(p.Assoc)),
	}
	for sig, order := range p.Filter {
		out.Filter[sig] = rules.CopyFilterParams(order)
	}
	for id, ids := range p.Join {
		out.Join[id] = rules.CopyJoinParams(ids)
	}
	for id, v := range p.JoinChild {
		out.JoinChild[id] = rules.CopyJoinChildParam(v)
	}
	for id, v := range p.Assoc {
		out.Assoc[id] = rules.CopyAssociativityParam(v)
	}
	return out
}

// patternCount is the total number of (operation, pattern) entries across
// all four maps, used to pick a uniformly random one to mutate.
func (p Params) patternCount() int {
	return len(p.Filter) + len(p.Join) + len(p.JoinChild) + len(p.Assoc)
}

// Mutate picks one operation uniformly, one pattern within it uniformly,
// and replaces that pattern's parameter with the operation's mutate().
// A no-op on an individual with no patterns at all.
func Mutate(p Params, rng *rand.Rand) Params {
	mutated := p.Copy()
	var nonEmpty []OperationName
	if len(mutated.Filter) > 0 {
		nonEmpty = append(nonEmpty, OpFilter)
	}
	if len(mutated.Join) > 0 {
		nonEmpty = append(nonEmpty, OpJoin)
	}
	if len(mutated.JoinChild) > 0 {
		nonEmpty = append(nonEmpty, OpJoinChild)
	}
	if len(mutated.Assoc) > 0 {
		nonEmpty = append(nonEmpty, OpAssociation)
	}
	if len(nonEmpty) == 0 {
		return mutated
	}
	switch nonEmpty[rng.Intn(len(nonEmpty))] {
	case OpFilter:
		sig := randomFilterKey(mutated.Filter, rng)
		mutated.Filter[sig] = rules.MutateFilterParams(mutated.Filter[sig], rng)
	case OpJoin:
		id := randomJoinKey(mutated.Join, rng)
		mutated.Join[id] = rules.MutateJoinParams(mutated.Join[id], rng)
	case OpJoinChild:
		id := randomJoinChildKey(mutated.JoinChild, rng)
		mutated.JoinChild[id] = rules.MutateJoinChildParam(mutated.JoinChild[id])
	case OpAssociation:
		id := randomAssocKey(mutated.Assoc, rng)
		mutated.Assoc[id] = rules.MutateAssociativityParam(mutated.Assoc[id], rng)
	}
	return mutated
}

// The random key pickers sort before drawing for the same
// reproducibility reason as GenerateParams.

func randomFilterKey(m rules.FilterParams, rng *rand.Rand) rules.Signature {
	keys := make([]rules.Signature, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys[rng.Intn(len(keys))]
}

func randomJoinKey(m rules.JoinParams, rng *rand.Rand) int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys[rng.Intn(len(keys))]
}

func randomJoinChildKey(m rules.JoinChildParams, rng *rand.Rand) int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys[rng.Intn(len(keys))]
}

func randomAssocKey(m rules.AssociativityParams, rng *rand.Rand) int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys[rng.Intn(len(keys))]
}

// Derive is the function (base_plan, params) → (rewritten plan, cleaned
// params) that backs an Individual's lazy plan cache. Runs the
// parameterized rules in their fixed order: filter_params → join_params
// → associativity → commutativity. The returned Params has its Filter
// entry re-keyed: ids that Rule 4 merged into a JOIN condition are
// dropped from the filter_params mixed orders that named them, so
// callers that breed from this Individual across generations should
// store the cleaned Params back.
func Derive(base *plan.Node, p Params) (*plan.Node, Params) {
	fp := injectJoinTargets(p.Filter, p.Join)
	q := rules.ApplyFilterParams(base, fp)

	cleaned := p
	cleaned.Filter = fp
	if len(p.Join) > 0 {
		merged, mergedIDs := rules.ApplyJoinParams(q, p.Join)
		q = merged
		cleaned.Filter = rules.AdjustFilterParams(fp, mergedIDs)
	}

	if len(p.Assoc) > 0 {
		q = rules.ApplyAssociativityParams(q, p.Assoc)
	}
	if len(p.JoinChild) > 0 {
		q = rules.ApplyJoinChildParams(q, p.JoinChild)
	}
	return q, cleaned
}

// injectJoinTargets adds a missing single entry to a filter_params
// signature's order for any id that join_params wants to merge out of
// it, so Rule 4 always finds those ids sitting at the top level of the
// rebuilt FILTER chain it walks.
func injectJoinTargets(fp rules.FilterParams, jp rules.JoinParams) rules.FilterParams {
	out := make(rules.FilterParams, len(fp))
	for sig, order := range fp {
		out[sig] = rules.CopyFilterParams(order)
	}
	if len(jp) == 0 {
		return out
	}
	targets := map[int]bool{}
	for _, ids := range jp {
		for _, id := range ids {
			targets[id] = true
		}
	}
	if len(targets) == 0 {
		return out
	}
	for sig, order := range out {
		existing := map[int]bool{}
		for _, item := range order {
			if item.Group != nil {
				for _, id := range item.Group {
					existing[id] = true
				}
			} else {
				existing[item.Single] = true
			}
		}
		for _, id := range sig.IDs() {
			if targets[id] && !existing[id] {
				order = append(order, rules.MixedItem{Single: id})
			}
		}
		out[sig] = order
	}
	return out
}
