// Package condition implements the boolean condition tree the storage
// layer filters rows with: Comparison leaves and And/Or/Not interior
// nodes, evaluated against a Row.
package condition

import (
	"fmt"

	errors "gopkg.in/src-d/go-errors.v1"
)

// ErrUnknownColumn is raised when Evaluate encounters a row that does not
// contain a column referenced by the condition.
var ErrUnknownColumn = errors.NewKind("unknown column in condition: %s")

// ErrUnknownOperator is raised for an operator outside {=, <>, <, <=, >, >=}.
var ErrUnknownOperator = errors.NewKind("unknown comparison operator: %s")

// Row maps column names to values.
// Go maps do not preserve order; callers that need column order track it
// separately (catalog.Table.Columns) — Row here is the evaluation-time
// representation, not the wire representation.
type Row map[string]any

// Condition is a node of the boolean condition tree: a leaf Comparison, or
// an interior And/Or/Not.
type Condition interface {
	// Evaluate is total on rows that contain every referenced column;
	// an unknown column returns an error.
	Evaluate(row Row) (bool, error)
	String() string
}

// Comparison is a leaf condition: column OP operand.
type Comparison struct {
	Column  string
	Op      string
	Operand any
}

var validOps = map[string]bool{"=": true, "<>": true, "<": true, "<=": true, ">": true, ">=": true}

// NewComparison validates op against the closed operator set before
// returning.
func NewComparison(column, op string, operand any) (*Comparison, error) {
	if !validOps[op] {
		return nil, ErrUnknownOperator.New(op)
	}
	return &Comparison{Column: column, Op: op, Operand: operand}, nil
}

func (c *Comparison) String() string {
	return fmt.Sprintf("%s %s %v", c.Column, c.Op, c.Operand)
}

// Evaluate compares row[Column] against Operand using Op. Values are
// compared with Compare (sql/condition/compare.go), which handles the
// numeric/string/bool/null cross-type rules.
func (c *Comparison) Evaluate(row Row) (bool, error) {
	val, ok := row[c.Column]
	if !ok {
		return false, ErrUnknownColumn.New(c.Column)
	}
	cmp, comparable := Compare(val, c.Operand)
	if !comparable {
		switch c.Op {
		case "=":
			return false, nil
		case "<>":
			return true, nil
		default:
			return false, nil
		}
	}
	switch c.Op {
	case "=":
		return cmp == 0, nil
	case "<>":
		return cmp != 0, nil
	case "<":
		return cmp < 0, nil
	case "<=":
		return cmp <= 0, nil
	case ">":
		return cmp > 0, nil
	case ">=":
		return cmp >= 0, nil
	default:
		return false, ErrUnknownOperator.New(c.Op)
	}
}

// And requires every child to hold, and at least 2 children to exist.
type And struct{ Children []Condition }

func NewAnd(children ...Condition) (*And, error) {
	if len(children) < 2 {
		return nil, fmt.Errorf("condition: AND requires at least 2 children, got %d", len(children))
	}
	return &And{Children: children}, nil
}

func (a *And) String() string { return join(a.Children, " AND ") }

func (a *And) Evaluate(row Row) (bool, error) {
	for _, c := range a.Children {
		ok, err := c.Evaluate(row)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Or requires at least one child to hold.
type Or struct{ Children []Condition }

func NewOr(children ...Condition) (*Or, error) {
	if len(children) < 2 {
		return nil, fmt.Errorf("condition: OR requires at least 2 children, got %d", len(children))
	}
	return &Or{Children: children}, nil
}

func (o *Or) String() string { return join(o.Children, " OR ") }

func (o *Or) Evaluate(row Row) (bool, error) {
	for _, c := range o.Children {
		ok, err := c.Evaluate(row)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Not negates exactly one child.
type Not struct{ Child Condition }

func NewNot(child Condition) *Not { return &Not{Child: child} }

func (n *Not) String() string { return "NOT (" + n.Child.String() + ")" }

func (n *Not) Evaluate(row Row) (bool, error) {
	ok, err := n.Child.Evaluate(row)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

func join(conds []Condition, sep string) string {
	s := ""
	for i, c := range conds {
		if i > 0 {
			s += sep
		}
		s += c.String()
	}
	return s
}
