package rules

import (
	"sort"

	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/catalog"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/plan"
)

// PushdownProjections is Rule 8, applied once deterministically before
// the GA: a PROJECT directly above an INNER JOIN with a join condition
// gets a PROJECT inserted on each JOIN side, keeping only the columns
// that side's source must supply — the upper PROJECT's own columns it
// owns, plus whatever the join condition references. Skipped when the
// upper PROJECT is `*`.
func PushdownProjections(root *plan.Node, cat *catalog.Catalog) *plan.Node {
	if root == nil {
		return nil
	}
	for i, c := range root.Children {
		root.Children[i] = PushdownProjections(c, cat)
		root.Children[i].Parent = root
	}
	if root.Type == plan.Project && root.Value != "*" {
		if join := projectedInnerJoin(root); join != nil {
			applyRule8(join, root, cat)
		}
	}
	return root
}

// projectedInnerJoin returns a PROJECT's direct INNER JOIN child with a
// join condition present, or nil.
func projectedInnerJoin(p *plan.Node) *plan.Node {
	for _, c := range p.Children {
		if c.Type == plan.Join && c.Value == "INNER" && len(c.Children) >= 3 {
			return c
		}
	}
	return nil
}

// applyRule8 mutates join in place, replacing its two data children with
// PROJECTs that keep only the columns each side must supply.
func applyRule8(join, project *plan.Node, cat *catalog.Catalog) {
	needed := projectColumnNames(project)
	joinCols := columnNamesIn(join.Children[2])
	leftTables := collectTables(join.Children[0])
	rightTables := collectTables(join.Children[1])

	leftNeeded := filterColumnsForTables(needed.Union(joinCols), leftTables, cat)
	rightNeeded := filterColumnsForTables(needed.Union(joinCols), rightTables, cat)

	if len(leftNeeded) > 0 {
		newLeft := createProjectNode(leftNeeded, join.Children[0])
		join.Children[0] = newLeft
		newLeft.Parent = join
	}
	if len(rightNeeded) > 0 {
		newRight := createProjectNode(rightNeeded, join.Children[1])
		join.Children[1] = newRight
		newRight.Parent = join
	}
}

type columnSet map[string]bool

func (s columnSet) Union(o columnSet) columnSet {
	out := make(columnSet, len(s)+len(o))
	for k := range s {
		out[k] = true
	}
	for k := range o {
		out[k] = true
	}
	return out
}

// projectColumnNames collects the bare column names a PROJECT's own
// column-reference children name (skipping its data-producing child).
func projectColumnNames(p *plan.Node) columnSet {
	out := columnSet{}
	for _, c := range p.Children {
		if isProjectionSourceType(c.Type) {
			continue
		}
		for name := range columnNamesIn(c) {
			out[name] = true
		}
	}
	return out
}

// columnNamesIn collects every bare column name referenced anywhere in a
// subtree (COLUMN_NAME's IDENTIFIER child).
func columnNamesIn(n *plan.Node) columnSet {
	out := columnSet{}
	if n == nil {
		return out
	}
	n.Walk(func(node *plan.Node) {
		if node.Type != plan.ColumnName {
			return
		}
		for _, c := range node.Children {
			if c.Type == plan.Identifier {
				out[c.Value] = true
			}
		}
	})
	return out
}

// filterColumnsForTables restricts a candidate column set to those that
// belong to one of tables, per the catalog; when cat is nil (or a column
// can't be resolved), the column is kept to stay conservative.
func filterColumnsForTables(cols columnSet, tables map[string]bool, cat *catalog.Catalog) []string {
	names := make([]string, 0, len(tables))
	for t := range tables {
		names = append(names, t)
	}
	sort.Strings(names)
	var out []string
	for col := range cols {
		if cat == nil {
			out = append(out, col)
			continue
		}
		if owner, ok := cat.ColumnOwner(col, names); ok && tables[owner] {
			out = append(out, col)
		}
	}
	sort.Strings(out)
	return out
}

// createProjectNode builds a fresh PROJECT over source, keeping the given
// (sorted) column names.
func createProjectNode(cols []string, source *plan.Node) *plan.Node {
	project := plan.New(plan.Project, "")
	for _, name := range cols {
		ident := plan.New(plan.Identifier, name)
		colName := plan.New(plan.ColumnName, "", ident)
		colRef := plan.New(plan.ColumnRef, "", colName)
		project.AddChild(colRef)
	}
	project.AddChild(source)
	return project
}
