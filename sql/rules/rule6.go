package rules

import (
	"math/rand"

	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/plan"
)

// AssociativityParams is the join_associativity_params registry entry:
// "left" | "right" | "none" per reassociable outer JOIN id.
type AssociativityParams map[int]string

var associativityChoices = []string{"left", "right", "none"}

// isReassociable reports whether n is a JOIN whose left child is also a
// JOIN — the pattern Rule 6 operates on.
func isReassociable(n *plan.Node) bool {
	if n == nil || n.Type != plan.Join || len(n.Children) < 2 {
		return false
	}
	left := n.Children[0]
	return left != nil && left.Type == plan.Join && len(left.Children) >= 2
}

// AnalyzeAssociativityParams finds every reassociable outer JOIN.
func AnalyzeAssociativityParams(root *plan.Node) map[int]*plan.Node {
	out := map[int]*plan.Node{}
	root.Walk(func(n *plan.Node) {
		if isReassociable(n) {
			out[n.ID] = n
		}
	})
	return out
}

// GenerateAssociativityParam picks uniformly among left/right/none.
func GenerateAssociativityParam(rng *rand.Rand) string {
	return associativityChoices[rng.Intn(len(associativityChoices))]
}

// CopyAssociativityParam is a no-op copy (string is a value type).
func CopyAssociativityParam(p string) string { return p }

// MutateAssociativityParam picks one of the two choices other than p.
func MutateAssociativityParam(p string, rng *rand.Rand) string {
	var options []string
	for _, c := range associativityChoices {
		if c != p {
			options = append(options, c)
		}
	}
	return options[rng.Intn(len(options))]
}

// ApplyAssociativityParams rewrites every reassociable JOIN per its
// decision, preserving the outer and inner JOIN ids across the
// transformation so Rule 4 parameters keyed by them remain applicable.
func ApplyAssociativityParams(root *plan.Node, params AssociativityParams) *plan.Node {
	return applyAssocRec(root, params)
}

func applyAssocRec(n *plan.Node, params AssociativityParams) *plan.Node {
	if n == nil {
		return nil
	}
	for i, c := range n.Children {
		n.Children[i] = applyAssocRec(c, params)
		n.Children[i].Parent = n
	}
	if !isReassociable(n) {
		return n
	}
	direction, ok := params[n.ID]
	if !ok {
		direction = "right"
	}
	switch direction {
	case "right":
		return reassociateRight(n)
	case "left":
		return reassociateLeft(n)
	default:
		return n
	}
}

// reassociateRight transforms (A ⋈θ1 B) ⋈θ2 C into A ⋈θ1 (B ⋈θ2 C),
// refusing the rewrite if θ2 references a table outside the new inner
// subtree (B, C) — the rewrite would otherwise change results.
func reassociateRight(outer *plan.Node) *plan.Node {
	inner := outer.Children[0]
	e3 := outer.Children[1]
	var outerCond *plan.Node
	if len(outer.Children) > 2 {
		outerCond = outer.Children[2]
	}
	e1 := inner.Children[0]
	e2 := inner.Children[1]
	var innerCond *plan.Node
	if len(inner.Children) > 2 {
		innerCond = inner.Children[2]
	}

	if outerCond != nil {
		outerTables := collectTables(outerCond)
		allowed := unionTables(collectTables(e2), collectTables(e3))
		if !subsetOf(outerTables, allowed) {
			return outer
		}
	}

	newInner := plan.New(plan.Join, inner.Value)
	newInner.AddChild(e2.Clone(true))
	newInner.AddChild(e3.Clone(true))
	if outerCond != nil {
		newInner.AddChild(outerCond.Clone(true))
	}
	newInner.ID = inner.ID

	newOuter := plan.New(plan.Join, outer.Value)
	newOuter.AddChild(e1.Clone(true))
	newOuter.AddChild(newInner)
	if innerCond != nil {
		newOuter.AddChild(innerCond.Clone(true))
	}
	newOuter.ID = outer.ID
	return newOuter
}

// reassociateLeft performs the mirror transformation on the right-nested
// pattern A ⋈θ1 (B ⋈θ2 C) → (A ⋈θ1 B) ⋈θ2 C when n's left child has that
// shape, rewriting the left child in place and keeping n's right child,
// condition and every JOIN id.
func reassociateLeft(n *plan.Node) *plan.Node {
	if n == nil || len(n.Children) < 2 {
		return n
	}
	left := n.Children[0]
	if left == nil || left.Type != plan.Join || len(left.Children) < 2 {
		return n
	}
	inner := left
	e1 := inner.Children[0]
	innerRight := inner.Children[1]
	if innerRight == nil || innerRight.Type != plan.Join || len(innerRight.Children) < 2 {
		return n
	}
	e2 := innerRight.Children[0]
	e3 := innerRight.Children[1]
	var innerInnerCond *plan.Node
	if len(innerRight.Children) > 2 {
		innerInnerCond = innerRight.Children[2]
	}
	var outerCond *plan.Node
	if len(inner.Children) > 2 {
		outerCond = inner.Children[2]
	}

	newInner := plan.New(plan.Join, inner.Value)
	newInner.AddChild(e1.Clone(true))
	newInner.AddChild(e2.Clone(true))
	if outerCond != nil {
		newInner.AddChild(outerCond.Clone(true))
	}
	newInner.ID = inner.ID

	newOuter := plan.New(plan.Join, innerRight.Value)
	newOuter.AddChild(newInner)
	newOuter.AddChild(e3.Clone(true))
	if innerInnerCond != nil {
		newOuter.AddChild(innerInnerCond.Clone(true))
	}
	newOuter.ID = innerRight.ID
	n.Children[0] = newOuter
	newOuter.Parent = n
	return n
}

func unionTables(a, b map[string]bool) map[string]bool {
	out := map[string]bool{}
	for k := range a {
		out[k] = true
	}
	for k := range b {
		out[k] = true
	}
	return out
}
