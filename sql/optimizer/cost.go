// Package optimizer implements the structural cost model and the
// genetic-algorithm-driven rule search that composes the rule library's
// per-operation parameter spaces into a plan population scored by that
// cost model.
package optimizer

import "github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/plan"

// Cost weights. Design constants: a cardinality-driven model could
// replace them as long as the function stays total, deterministic and
// non-negative.
const (
	baseCost       = 100
	filterWeight   = 40
	operatorWeight = 30
	joinWeight     = 150
)

// Cost is the structural cost estimator: base + 40·filters + 30·operators
// + 150·joins, walked over the rewritten plan. Total, deterministic,
// non-negative for any well-formed plan.
func Cost(root *plan.Node) int {
	var filters, operators, joins int
	root.Walk(func(n *plan.Node) {
		switch n.Type {
		case plan.Filter:
			filters++
		case plan.Operator, plan.OperatorS:
			operators++
		case plan.Join:
			joins++
		}
	})
	return baseCost + filters*filterWeight + operators*operatorWeight + joins*joinWeight
}
