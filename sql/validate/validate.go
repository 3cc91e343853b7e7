package validate

import (
	"fmt"

	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/catalog"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/plan"
)

var validJoinValues = map[string]bool{"NATURAL": true, "INNER": true, "CROSS": true}

// Validate walks the tree rooted at root and returns the first structural
// violation found, wrapped in ErrQueryValidation. cat may be nil, in
// which case RELATION's catalog lookup is skipped (useful for validating
// subtrees produced mid-rewrite that are known not to touch the catalog).
func Validate(root *plan.Node, cat *catalog.Catalog) error {
	return validateNode(root, cat)
}

func validateNode(n *plan.Node, cat *catalog.Catalog) error {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if err := validateNode(c, cat); err != nil {
			return err
		}
	}
	if err := checkArity(n); err != nil {
		return err
	}
	return checkValue(n, cat)
}

func fail(n *plan.Node, format string, args ...any) error {
	msg := fmt.Sprintf("%s: %s", n.String(), fmt.Sprintf(format, args...))
	return ErrQueryValidation.New(msg)
}

// checkArity enforces the per-node-type child-count invariants.
func checkArity(n *plan.Node) error {
	count := len(n.Children)
	switch n.Type {
	case plan.Project:
		if count < 1 {
			return fail(n, "PROJECT needs at least 1 child (the data source), got %d", count)
		}
	case plan.Sort:
		if count != 2 {
			return fail(n, "SORT needs exactly 2 children [sort_expr, source], got %d", count)
		}
	case plan.Join:
		if count != 2 && count != 3 {
			return fail(n, "JOIN needs 2 or 3 children, got %d", count)
		}
	case plan.Filter:
		if count != 2 {
			return fail(n, "FILTER needs exactly 2 children [data, condition], got %d", count)
		}
	case plan.Limit:
		if count != 1 {
			return fail(n, "LIMIT needs exactly 1 child, got %d", count)
		}
	case plan.Relation, plan.Array:
		if count != 0 {
			return fail(n, "%s is a leaf, got %d children", n.Type, count)
		}
	case plan.Alias:
		if count != 1 {
			return fail(n, "ALIAS needs exactly 1 child, got %d", count)
		}
	case plan.Operator:
		switch n.Value {
		case "AND", "OR":
			if count < 2 {
				return fail(n, "OPERATOR(%s) needs at least 2 children, got %d", n.Value, count)
			}
		case "NOT":
			if count != 1 {
				return fail(n, "OPERATOR(NOT) needs exactly 1 child, got %d", count)
			}
		default:
			return fail(n, "unknown OPERATOR value %q", n.Value)
		}
	case plan.OperatorS:
		if count != 1 {
			return fail(n, "OPERATOR_S needs exactly 1 child, got %d", count)
		}
	case plan.ColumnRef:
		if count != 1 && count != 2 {
			return fail(n, "COLUMN_REF needs 1 or 2 children, got %d", count)
		}
	case plan.Comparison:
		if count != 2 {
			return fail(n, "COMPARISON needs exactly 2 children, got %d", count)
		}
	case plan.InExpr, plan.NotInExpr:
		if count != 2 {
			return fail(n, "%s needs exactly 2 children, got %d", n.Type, count)
		}
	case plan.ExistsExpr, plan.NotExistsExpr:
		if count != 1 {
			return fail(n, "%s needs exactly 1 child, got %d", n.Type, count)
		}
	case plan.BetweenExpr, plan.NotBetween:
		if count != 3 {
			return fail(n, "%s needs exactly 3 children, got %d", n.Type, count)
		}
	case plan.IsNullExpr, plan.IsNotNullExpr:
		if count != 1 {
			return fail(n, "%s needs exactly 1 child, got %d", n.Type, count)
		}
	case plan.LikeExpr, plan.NotLikeExpr:
		if count != 2 {
			return fail(n, "%s needs exactly 2 children, got %d", n.Type, count)
		}
	case plan.ArithExpr:
		if count != 2 {
			return fail(n, "ARITH_EXPR needs exactly 2 children, got %d", count)
		}
	case plan.Assignment:
		if count != 1 {
			return fail(n, "ASSIGNMENT needs exactly 1 child (the value expression), got %d", count)
		}
	case plan.UpdateQuery:
		if count != 2 && count != 3 {
			return fail(n, "UPDATE_QUERY needs 2 or 3 children, got %d", count)
		}
	case plan.InsertQuery:
		if count != 3 {
			return fail(n, "INSERT_QUERY needs exactly 3 children, got %d", count)
		}
	case plan.DeleteQuery:
		if count != 1 && count != 2 {
			return fail(n, "DELETE_QUERY needs 1 or 2 children, got %d", count)
		}
	case plan.CreateTable:
		if count != 2 {
			return fail(n, "CREATE_TABLE needs exactly 2 children, got %d", count)
		}
	case plan.DropTable:
		if count != 1 {
			return fail(n, "DROP_TABLE needs exactly 1 child, got %d", count)
		}
	case plan.ColumnDef:
		if count < 1 {
			return fail(n, "COLUMN_DEF needs at least 1 child (its DATA_TYPE), got %d", count)
		}
	case plan.ForeignKey:
		if count != 1 {
			return fail(n, "FOREIGN_KEY needs exactly 1 child (REFERENCES), got %d", count)
		}
	case plan.References:
		if count != 1 {
			return fail(n, "REFERENCES needs exactly 1 child, got %d", count)
		}
	case plan.PrimaryKey:
		if count != 0 {
			return fail(n, "PRIMARY_KEY is a marker leaf, got %d children", count)
		}
	case plan.ColumnName, plan.TableName:
		if count != 1 {
			return fail(n, "%s needs exactly 1 child (its IDENTIFIER), got %d", n.Type, count)
		}
	case plan.Identifier, plan.LiteralString, plan.LiteralNumber, plan.LiteralBoolean, plan.LiteralNull:
		if count != 0 {
			return fail(n, "%s is a leaf, got %d children", n.Type, count)
		}
		// BEGIN_TRANSACTION, COMMIT, LIST, VALUES_CLAUSE, COLUMN_LIST,
		// COLUMN_DEF_LIST, FUNCTION_CALL, DATA_TYPE carry no fixed arity:
		// they are containers.
	}
	return nil
}

// checkValue enforces value-level grammar: JOIN's value and RELATION's
// catalog membership, plus PROJECT non-emptiness.
func checkValue(n *plan.Node, cat *catalog.Catalog) error {
	switch n.Type {
	case plan.Join:
		if !validJoinValues[n.Value] {
			return fail(n, "JOIN value must be one of NATURAL/INNER/CROSS, got %q", n.Value)
		}
	case plan.Relation:
		if n.Value == "" {
			return fail(n, "RELATION must name a table")
		}
		if cat != nil && !cat.HasTable(n.Value) {
			return fail(n, "unknown table %q", n.Value)
		}
	case plan.Project:
		if len(n.Children) == 0 {
			return fail(n, "PROJECT must not be empty")
		}
	}
	return nil
}
