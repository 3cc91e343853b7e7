// Package rules implements the equivalence-preserving rewrite library:
// Rules 1–8, each following the same five-operation contract
// (analyze/generate/copy/mutate/apply), plus the shared tree-surgery
// helpers they all lean on.
package rules

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/catalog"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/plan"
)

// Signature is the set of condition ids occupying one contiguous
// conjunctive-filter chain, represented as a canonical sorted
// comma-joined string so it can serve as a Go map key.
type Signature string

// NewSignature canonicalizes a set of condition ids into a Signature.
func NewSignature(ids []int) Signature {
	cp := append([]int(nil), ids...)
	sort.Ints(cp)
	parts := make([]string, len(cp))
	for i, id := range cp {
		parts[i] = strconv.Itoa(id)
	}
	return Signature(strings.Join(parts, ","))
}

// IDs parses a Signature back into its member ids.
func (s Signature) IDs() []int {
	if s == "" {
		return nil
	}
	parts := strings.Split(string(s), ",")
	ids := make([]int, len(parts))
	for i, p := range parts {
		n, _ := strconv.Atoi(p)
		ids[i] = n
	}
	return ids
}

// collectConditions flattens a condition subtree into its conjuncts: the
// children of an OPERATOR("AND") node, or the node itself otherwise.
func collectConditions(cond *plan.Node) []*plan.Node {
	if cond == nil {
		return nil
	}
	if cond.Type == plan.Operator && cond.Value == "AND" {
		return append([]*plan.Node(nil), cond.Children...)
	}
	return []*plan.Node{cond}
}

// wrapAnd rebuilds a single condition node from a set of conjuncts: the
// lone conjunct itself if there is exactly one, else a fresh
// OPERATOR("AND") wrapping all of them.
func wrapAnd(conds []*plan.Node) *plan.Node {
	if len(conds) == 0 {
		return nil
	}
	if len(conds) == 1 {
		return conds[0]
	}
	return plan.New(plan.Operator, "AND", conds...)
}

// collectTables gathers every table name visible in a subtree: RELATION
// and ALIAS node values, and TABLE_NAME's IDENTIFIER child.
func collectTables(n *plan.Node) map[string]bool {
	tables := map[string]bool{}
	if n == nil {
		return tables
	}
	n.Walk(func(node *plan.Node) {
		switch node.Type {
		case plan.Relation, plan.Alias:
			tables[node.Value] = true
		case plan.TableName:
			if len(node.Children) == 1 && node.Children[0].Type == plan.Identifier {
				tables[node.Children[0].Value] = true
			}
		}
	})
	return tables
}

// columnTable resolves which table a COLUMN_REF belongs to: its own
// qualifier child if present, else a catalog lookup restricted to the
// candidate table set (unambiguous columns only).
func columnTable(ref *plan.Node, candidates map[string]bool, cat *catalog.Catalog) (string, bool) {
	if ref == nil || ref.Type != plan.ColumnRef {
		return "", false
	}
	for _, c := range ref.Children {
		if c.Type == plan.TableName && len(c.Children) == 1 {
			return c.Children[0].Value, true
		}
	}
	if cat == nil {
		return "", false
	}
	colName := columnRefName(ref)
	if colName == "" {
		return "", false
	}
	names := make([]string, 0, len(candidates))
	for t := range candidates {
		names = append(names, t)
	}
	sort.Strings(names)
	return cat.ColumnOwner(colName, names)
}

func columnRefName(ref *plan.Node) string {
	for _, c := range ref.Children {
		if c.Type == plan.ColumnName && len(c.Children) == 1 {
			return c.Children[0].Value
		}
	}
	return ""
}

// conditionTables returns the union of tables every COLUMN_REF in cond
// resolves to, given the candidate table set.
func conditionTables(cond *plan.Node, candidates map[string]bool, cat *catalog.Catalog) map[string]bool {
	out := map[string]bool{}
	if cond == nil {
		return out
	}
	cond.Walk(func(n *plan.Node) {
		if n.Type != plan.ColumnRef {
			return
		}
		if t, ok := columnTable(n, candidates, cat); ok {
			out[t] = true
		}
	})
	return out
}

func subsetOf(a, b map[string]bool) bool {
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func disjoint(a, b map[string]bool) bool {
	for k := range a {
		if b[k] {
			return false
		}
	}
	return true
}
