package rules

import (
	"math/rand"

	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/plan"
)

// JoinChildParams is the join_child_params registry entry: one swap
// decision per JOIN id.
type JoinChildParams map[int]bool

// AnalyzeJoinChildParams finds every JOIN node.
func AnalyzeJoinChildParams(root *plan.Node) map[int]*plan.Node {
	out := map[int]*plan.Node{}
	root.Walk(func(n *plan.Node) {
		if n.Type == plan.Join {
			out[n.ID] = n
		}
	})
	return out
}

// GenerateJoinChildParam picks swap/keep uniformly at random.
func GenerateJoinChildParam(rng *rand.Rand) bool { return rng.Intn(2) == 0 }

// CopyJoinChildParam is a no-op copy (bool is a value type).
func CopyJoinChildParam(p bool) bool { return p }

// MutateJoinChildParam flips the swap decision.
func MutateJoinChildParam(p bool) bool { return !p }

// ApplyJoinChildParams swaps each JOIN's two data children wherever its
// parameter says to. Column references carry their own table qualifiers,
// so the join condition itself needs no rewriting.
func ApplyJoinChildParams(root *plan.Node, params JoinChildParams) *plan.Node {
	return applyJoinChildParamsRec(root, params)
}

func applyJoinChildParamsRec(n *plan.Node, params JoinChildParams) *plan.Node {
	if n == nil {
		return nil
	}
	for i, c := range n.Children {
		n.Children[i] = applyJoinChildParamsRec(c, params)
		n.Children[i].Parent = n
	}
	if n.Type == plan.Join && len(n.Children) >= 2 && params[n.ID] {
		n.Children[0], n.Children[1] = n.Children[1], n.Children[0]
	}
	return n
}
