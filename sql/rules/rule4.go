package rules

import (
	"math/rand"

	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/plan"
)

// JoinParams is the join_params registry entry: a subset of candidate
// condition ids to merge into each JOIN, keyed by JOIN id.
type JoinParams map[int][]int

// JoinFilterPattern is one analyzer match: a FILTER whose data path leads
// (possibly through other FILTERs) to a JOIN.
type JoinFilterPattern struct {
	JoinID          int
	FilterCondIDs   []int
	ExistingCondIDs []int
}

// underlyingJoin walks down through a run of FILTERs looking for the JOIN
// they sit above; returns nil if the chain terminates in anything else.
func underlyingJoin(n *plan.Node) *plan.Node {
	cur := n
	for cur != nil {
		switch cur.Type {
		case plan.Join:
			return cur
		case plan.Filter:
			if len(cur.Children) == 0 {
				return nil
			}
			cur = cur.Children[0]
		default:
			return nil
		}
	}
	return nil
}

func isMergeableFilter(n *plan.Node) bool {
	return n.Type == plan.Filter && len(n.Children) == 2 && underlyingJoin(n.Children[0]) != nil
}

// AnalyzeJoinParams finds every JOIN reachable under a FILTER, gathering
// the candidate condition ids that FILTER (or FILTERs above it) could
// merge down.
func AnalyzeJoinParams(root *plan.Node) map[int]JoinFilterPattern {
	out := map[int]JoinFilterPattern{}
	root.Walk(func(n *plan.Node) {
		if !isMergeableFilter(n) {
			return
		}
		join := underlyingJoin(n.Children[0])
		pat, ok := out[join.ID]
		if !ok {
			pat = JoinFilterPattern{JoinID: join.ID}
			if len(join.Children) >= 3 {
				pat.ExistingCondIDs = idsOf(collectConditions(join.Children[2]))
			}
		}
		seen := map[int]bool{}
		for _, id := range pat.FilterCondIDs {
			seen[id] = true
		}
		for _, c := range collectConditions(n.Children[1]) {
			if !seen[c.ID] {
				pat.FilterCondIDs = append(pat.FilterCondIDs, c.ID)
				seen[c.ID] = true
			}
		}
		out[join.ID] = pat
	})
	return out
}

// GenerateJoinParams picks a random subset of candidate condition ids to
// merge.
func GenerateJoinParams(candidateIDs []int, rng *rand.Rand) []int {
	if len(candidateIDs) == 0 {
		return nil
	}
	n := rng.Intn(len(candidateIDs) + 1)
	if n == 0 {
		return nil
	}
	perm := rng.Perm(len(candidateIDs))[:n]
	out := make([]int, n)
	for i, idx := range perm {
		out[i] = candidateIDs[idx]
	}
	return out
}

// CopyJoinParams deep-copies one JOIN's candidate-id slice.
func CopyJoinParams(ids []int) []int { return append([]int(nil), ids...) }

// MutateJoinParams drops one random id half the time.
func MutateJoinParams(ids []int, rng *rand.Rand) []int {
	if len(ids) == 0 || rng.Float64() >= 0.5 {
		return CopyJoinParams(ids)
	}
	out := CopyJoinParams(ids)
	drop := rng.Intn(len(out))
	return append(out[:drop], out[drop+1:]...)
}

// ApplyJoinParams merges the selected conditions out of each FILTER and
// into its underlying JOIN's condition child, then returns the set of
// merged condition ids so filter_params can be adjusted.
func ApplyJoinParams(root *plan.Node, params JoinParams) (*plan.Node, map[int]bool) {
	merged := map[int]bool{}
	if len(params) == 0 {
		return root, merged
	}
	result := applyJoinParamsRec(root, params, merged)
	return result, merged
}

func applyJoinParamsRec(n *plan.Node, params JoinParams, merged map[int]bool) *plan.Node {
	if n == nil {
		return nil
	}
	for i, c := range n.Children {
		n.Children[i] = applyJoinParamsRec(c, params, merged)
		n.Children[i].Parent = n
	}
	if !isMergeableFilter(n) {
		return n
	}
	join := underlyingJoin(n.Children[0])
	toMerge, ok := params[join.ID]
	if !ok {
		return n
	}
	wanted := map[int]bool{}
	for _, id := range toMerge {
		wanted[id] = true
	}
	var relevant []int
	for _, c := range collectConditions(n.Children[1]) {
		if wanted[c.ID] {
			relevant = append(relevant, c.ID)
		}
	}
	if len(relevant) == 0 {
		return n
	}
	for _, id := range relevant {
		merged[id] = true
	}
	return mergeSelectedConditions(n, toMerge)
}

// mergeSelectedConditions splits n's conjuncts into the ones named by
// mergeIDs (pushed into the JOIN beneath) and the rest (left in place).
func mergeSelectedConditions(filterNode *plan.Node, mergeIDs []int) *plan.Node {
	wanted := map[int]bool{}
	for _, id := range mergeIDs {
		wanted[id] = true
	}
	source := filterNode.Children[0]
	var toMoveDown, toStay []*plan.Node
	for _, cond := range collectConditions(filterNode.Children[1]) {
		if wanted[cond.ID] {
			toMoveDown = append(toMoveDown, cond)
		} else {
			toStay = append(toStay, cond)
		}
	}
	if len(toMoveDown) == 0 {
		return filterNode
	}

	join := underlyingJoin(source)
	if join.Value == "CROSS" || join.Value == "" {
		join.Value = "INNER"
	}
	var existing []*plan.Node
	if len(join.Children) >= 3 {
		existing = collectConditions(join.Children[2])
	}
	final := append(existing, toMoveDown...)
	cond := wrapAnd(final)
	if len(join.Children) < 3 {
		join.AddChild(cond)
	} else {
		join.Children[2] = cond
		cond.Parent = join
	}

	if len(toStay) > 0 {
		return plan.New(plan.Filter, "WHERE", source, wrapAnd(toStay))
	}
	return source
}

// AdjustFilterParams drops merged condition ids out of every filter_params
// signature entry, shrinking groups and eliding empties.
func AdjustFilterParams(params FilterParams, merged map[int]bool) FilterParams {
	if len(merged) == 0 {
		return params
	}
	out := make(FilterParams, len(params))
	for sig, order := range params {
		var newOrder []MixedItem
		for _, item := range order {
			if item.Group != nil {
				var kept []int
				for _, id := range item.Group {
					if !merged[id] {
						kept = append(kept, id)
					}
				}
				switch len(kept) {
				case 0:
				case 1:
					newOrder = append(newOrder, MixedItem{Single: kept[0]})
				default:
					newOrder = append(newOrder, MixedItem{Group: kept})
				}
			} else if !merged[item.Single] {
				newOrder = append(newOrder, item)
			}
		}
		if len(newOrder) > 0 {
			out[sig] = newOrder
		}
	}
	return out
}
