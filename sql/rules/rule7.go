package rules

import (
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/catalog"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/plan"
)

// PushdownFilters is Rule 7, applied once deterministically before the
// GA: a FILTER directly above a JOIN has its conjuncts partitioned by
// which side's tables they reference — left-only conditions sink into a
// new FILTER on the left child, right-only into one on the right, and
// conditions touching both sides (or unresolvable columns) stay above
// the JOIN.
func PushdownFilters(root *plan.Node, cat *catalog.Catalog) *plan.Node {
	if root == nil {
		return nil
	}
	if isPushableFilter(root) {
		pushed := pushFilter(root, cat)
		if pushed != root {
			return PushdownFilters(pushed, cat)
		}
	}
	for i, c := range root.Children {
		root.Children[i] = PushdownFilters(c, cat)
		root.Children[i].Parent = root
	}
	return root
}

func isPushableFilter(n *plan.Node) bool {
	if n.Type != plan.Filter || len(n.Children) != 2 {
		return false
	}
	source := n.Children[0]
	return source != nil && source.Type == plan.Join && len(source.Children) >= 2
}

// pushFilter partitions filterNode's conjuncts across its JOIN's two
// sides, returning a rebuilt tree; returns filterNode unchanged if no
// conjunct resolves cleanly to one side.
func pushFilter(filterNode *plan.Node, cat *catalog.Catalog) *plan.Node {
	join := filterNode.Children[0]
	conds := collectConditions(filterNode.Children[1])

	leftTables := collectTables(join.Children[0])
	rightTables := collectTables(join.Children[1])
	available := unionTables(leftTables, rightTables)

	var left, right, remaining []*plan.Node
	for _, c := range conds {
		tables := conditionTables(c, available, cat)
		switch {
		case len(tables) > 0 && subsetOf(tables, leftTables) && disjoint(tables, rightTables):
			left = append(left, c)
		case len(tables) > 0 && subsetOf(tables, rightTables) && disjoint(tables, leftTables):
			right = append(right, c)
		default:
			remaining = append(remaining, c)
		}
	}
	if len(left) == 0 && len(right) == 0 {
		return filterNode
	}

	newJoin := plan.New(plan.Join, join.Value)
	newLeft := wrapFilter(join.Children[0], left)
	newRight := wrapFilter(join.Children[1], right)
	newJoin.AddChild(newLeft)
	newJoin.AddChild(newRight)
	if len(join.Children) > 2 {
		newJoin.AddChild(join.Children[2])
	}
	newJoin.ID = join.ID

	if len(remaining) > 0 {
		return plan.New(plan.Filter, "WHERE", newJoin, wrapAnd(remaining))
	}
	return newJoin
}

// wrapFilter wraps source in a new FILTER over conds, or returns source
// unchanged if conds is empty.
func wrapFilter(source *plan.Node, conds []*plan.Node) *plan.Node {
	if len(conds) == 0 {
		return source
	}
	return plan.New(plan.Filter, "WHERE", source, wrapAnd(conds))
}
