package rules

import (
	"math/rand"

	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/plan"
)

// MixedItem is one element of a Rule 1/2 "mixed order": either a single
// condition id (Group == nil) or a group of ids kept together under one
// AND (Group non-nil).
type MixedItem struct {
	Single int
	Group  []int
}

// FilterParams is the filter_params registry entry: one mixed order per
// signature.
type FilterParams map[Signature][]MixedItem

// flatten returns every id mentioned by an order list, in order.
func flatten(order []MixedItem) []int {
	var ids []int
	for _, item := range order {
		if item.Group != nil {
			ids = append(ids, item.Group...)
		} else {
			ids = append(ids, item.Single)
		}
	}
	return ids
}

// UncascadeFilters is the aggressive uncascade pass: every contiguous
// chain of FILTER nodes above one data source collapses into a single
// FILTER whose condition is an OPERATOR("AND") over every conjunct in
// the chain.
func UncascadeFilters(root *plan.Node) *plan.Node {
	if root == nil {
		return nil
	}
	if root.Type == plan.Filter && len(root.Children) == 2 {
		conds, source := collectFilterChain(root)
		processedSource := UncascadeFilters(source)
		if len(conds) == 0 {
			return processedSource
		}
		return plan.New(plan.Filter, "WHERE", processedSource, wrapAnd(conds))
	}
	for i, c := range root.Children {
		root.Children[i] = UncascadeFilters(c)
		root.Children[i].Parent = root
	}
	return root
}

// collectFilterChain walks down a run of FILTER nodes, gathering every
// conjunct, and returns the non-FILTER source beneath it.
func collectFilterChain(n *plan.Node) ([]*plan.Node, *plan.Node) {
	var conds []*plan.Node
	cur := n
	for cur != nil && cur.Type == plan.Filter && len(cur.Children) == 2 {
		conds = append(conds, collectConditions(cur.Children[1])...)
		cur = cur.Children[0]
	}
	return conds, cur
}

// AnalyzeFilterParams finds every FILTER's condition signature in the
// uncascaded tree, returning a flat id list per signature — the
// analyze step of the five-operation contract. Operates on a clone so
// the caller's tree is left untouched.
func AnalyzeFilterParams(root *plan.Node) map[Signature][]int {
	flat := UncascadeFilters(root.Clone(true))
	out := map[Signature][]int{}
	flat.Walk(func(n *plan.Node) {
		if n.Type != plan.Filter || len(n.Children) != 2 {
			return
		}
		ids := idsOf(collectConditions(n.Children[1]))
		if len(ids) > 0 {
			out[NewSignature(ids)] = ids
		}
	})
	return out
}

func idsOf(nodes []*plan.Node) []int {
	ids := make([]int, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}

// ApplyFilterParams uncascades root, then rebuilds each FILTER chain
// bottom-up per its signature's mixed order (falling back to the
// default one-condition-per-FILTER cascade for signatures with no
// registered parameter — e.g. a freshly mutated individual).
func ApplyFilterParams(root *plan.Node, params FilterParams) *plan.Node {
	flat := UncascadeFilters(root.Clone(true))
	return applyFilterParamsRec(flat, params)
}

func applyFilterParamsRec(n *plan.Node, params FilterParams) *plan.Node {
	if n == nil {
		return nil
	}
	for i, c := range n.Children {
		n.Children[i] = applyFilterParamsRec(c, params)
		n.Children[i].Parent = n
	}
	if n.Type != plan.Filter || len(n.Children) != 2 {
		return n
	}
	ids := idsOf(collectConditions(n.Children[1]))
	sig := NewSignature(ids)
	if order, ok := params[sig]; ok {
		return cascadeMixedSignature(n, order)
	}
	return cascadeDefault(n)
}

// cascadeMixedSignature rebuilds a FILTER chain following order,
// bottom-up (the last order element becomes the innermost FILTER).
func cascadeMixedSignature(filterNode *plan.Node, order []MixedItem) *plan.Node {
	source := filterNode.Children[0]
	idMap := map[int]*plan.Node{}
	for _, c := range collectConditions(filterNode.Children[1]) {
		idMap[c.ID] = c
	}

	current := source
	for i := len(order) - 1; i >= 0; i-- {
		item := order[i]
		var cond *plan.Node
		if item.Group != nil {
			var grouped []*plan.Node
			for _, id := range item.Group {
				if c, ok := idMap[id]; ok {
					grouped = append(grouped, c)
				}
			}
			cond = wrapAnd(grouped)
		} else if c, ok := idMap[item.Single]; ok {
			cond = c
		}
		if cond != nil {
			current = plan.New(plan.Filter, "WHERE", current, cond)
		}
	}
	return current
}

// cascadeDefault splits an AND condition into one FILTER per conjunct
// when no parameter is registered for its signature.
func cascadeDefault(filterNode *plan.Node) *plan.Node {
	source := filterNode.Children[0]
	conds := collectConditions(filterNode.Children[1])
	current := source
	for i := len(conds) - 1; i >= 0; i-- {
		current = plan.New(plan.Filter, "WHERE", current, conds[i])
	}
	return current
}

// GenerateFilterParams produces a random mixed order over ids: zero or
// more adjacent pairs/triples grouped, the rest left single, then
// shuffled.
func GenerateFilterParams(ids []int, rng *rand.Rand) []MixedItem {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) == 1 {
		return []MixedItem{{Single: ids[0]}}
	}
	indices := rng.Perm(len(ids))
	numGroups := rng.Intn(len(ids)/2 + 1)

	var result []MixedItem
	remaining := indices
	for i := 0; i < numGroups && len(remaining) >= 2; i++ {
		size := 2
		if len(remaining) >= 3 {
			size = 2 + rng.Intn(min(2, len(remaining)-1))
		}
		if size > len(remaining) {
			size = len(remaining)
		}
		grp := make([]int, size)
		for j := 0; j < size; j++ {
			grp[j] = ids[remaining[j]]
		}
		remaining = remaining[size:]
		result = append(result, MixedItem{Group: grp})
	}
	for _, idx := range remaining {
		result = append(result, MixedItem{Single: ids[idx]})
	}
	rng.Shuffle(len(result), func(i, j int) { result[i], result[j] = result[j], result[i] })
	return result
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// CopyFilterParams deep-copies a mixed order (groups are their own
// slices, so a shallow copy of the outer slice would alias them).
func CopyFilterParams(order []MixedItem) []MixedItem {
	out := make([]MixedItem, len(order))
	for i, item := range order {
		if item.Group != nil {
			out[i] = MixedItem{Group: append([]int(nil), item.Group...)}
		} else {
			out[i] = item
		}
	}
	return out
}

// MutateFilterParams applies one of swap/group/ungroup/split, each
// preserving the signature exactly.
func MutateFilterParams(order []MixedItem, rng *rand.Rand) []MixedItem {
	if len(order) == 0 {
		return order
	}
	mutated := CopyFilterParams(order)
	actions := []string{"swap", "group", "ungroup", "split"}
	switch actions[rng.Intn(len(actions))] {
	case "swap":
		if len(mutated) >= 2 {
			i, j := rng.Intn(len(mutated)), rng.Intn(len(mutated))
			mutated[i], mutated[j] = mutated[j], mutated[i]
		}
	case "group":
		var singles []int
		for i, item := range mutated {
			if item.Group == nil {
				singles = append(singles, i)
			}
		}
		if len(singles) >= 2 {
			i1, i2 := singles[0], singles[1]
			v1, v2 := mutated[i1].Single, mutated[i2].Single
			hi, lo := i1, i2
			if lo > hi {
				hi, lo = lo, hi
			}
			mutated = append(mutated[:hi], mutated[hi+1:]...)
			mutated = append(mutated[:lo], mutated[lo+1:]...)
			mutated = append(mutated, MixedItem{Group: []int{v1, v2}})
		}
	case "ungroup":
		var groups []int
		for i, item := range mutated {
			if item.Group != nil {
				groups = append(groups, i)
			}
		}
		if len(groups) > 0 {
			idx := groups[rng.Intn(len(groups))]
			grp := mutated[idx].Group
			mutated = append(mutated[:idx], mutated[idx+1:]...)
			for _, id := range grp {
				mutated = append(mutated, MixedItem{Single: id})
			}
		}
	case "split":
		var groups []int
		for i, item := range mutated {
			if len(item.Group) >= 2 {
				groups = append(groups, i)
			}
		}
		if len(groups) > 0 {
			idx := groups[rng.Intn(len(groups))]
			grp := mutated[idx].Group
			split := 1 + rng.Intn(len(grp)-1)
			left, right := grp[:split], grp[split:]
			mutated = append(mutated[:idx], mutated[idx+1:]...)
			if len(left) == 1 {
				mutated = append(mutated, MixedItem{Single: left[0]})
			} else {
				mutated = append(mutated, MixedItem{Group: left})
			}
			if len(right) == 1 {
				mutated = append(mutated, MixedItem{Single: right[0]})
			} else {
				mutated = append(mutated, MixedItem{Group: right})
			}
		}
	}
	return mutated
}
