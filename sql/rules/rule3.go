package rules

import "github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/plan"

// EliminateProjections is Rule 3, applied once deterministically before
// the GA: a PROJECT whose data child is itself a PROJECT collapses into
// one, the outer column set winning unless the outer is `*`, in which
// case it inherits the inner's columns.
func EliminateProjections(root *plan.Node) *plan.Node {
	if root == nil {
		return nil
	}
	for i, c := range root.Children {
		root.Children[i] = EliminateProjections(c)
		root.Children[i].Parent = root
	}
	if inner, ok := nestedProjection(root); ok {
		return collapseProjection(root, inner)
	}
	return root
}

// nestedProjection reports whether n is a PROJECT with a direct PROJECT
// child, returning that child.
func nestedProjection(n *plan.Node) (*plan.Node, bool) {
	if n.Type != plan.Project {
		return nil, false
	}
	for _, c := range n.Children {
		if c.Type == plan.Project {
			return c, true
		}
	}
	return nil, false
}

// collapseProjection replaces outer's column list with its own, unless
// outer is `*`, in which case inner's column list is inherited; either
// way outer's data child becomes inner's data child.
func collapseProjection(outer, inner *plan.Node) *plan.Node {
	source := projectionSource(inner)
	if outer.Value == "*" {
		cols := projectionColumns(inner)
		outer.Value = inner.Value
		outer.Children = append(append([]*plan.Node(nil), cols...), source)
	} else {
		cols := projectionColumns(outer)
		outer.Children = append(append([]*plan.Node(nil), cols...), source)
	}
	source.Parent = outer
	for _, c := range outer.Children {
		c.Parent = outer
	}
	return outer
}

// projectionColumns returns a PROJECT node's non-source children (its
// column references), preserving order.
func projectionColumns(p *plan.Node) []*plan.Node {
	var cols []*plan.Node
	for _, c := range p.Children {
		if !isProjectionSourceType(c.Type) {
			cols = append(cols, c)
		}
	}
	return cols
}

// projectionSource returns a PROJECT node's single data-producing child.
func projectionSource(p *plan.Node) *plan.Node {
	for _, c := range p.Children {
		if isProjectionSourceType(c.Type) {
			return c
		}
	}
	return nil
}

func isProjectionSourceType(t plan.Type) bool {
	switch t {
	case plan.Relation, plan.Project, plan.Filter, plan.Join, plan.Sort, plan.Limit:
		return true
	default:
		return false
	}
}
