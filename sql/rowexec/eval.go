package rowexec

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/condition"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/plan"
)

// columnRefParts splits a COLUMN_REF into (column, qualifier); qualifier
// is empty for an unqualified reference.
func columnRefParts(ref *plan.Node) (column, qualifier string) {
	for _, c := range ref.Children {
		switch c.Type {
		case plan.ColumnName:
			if len(c.Children) == 1 {
				column = c.Children[0].Value
			}
		case plan.TableName:
			if len(c.Children) == 1 {
				qualifier = c.Children[0].Value
			}
		}
	}
	return column, qualifier
}

func parseInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// resolveColumn looks a COLUMN_REF up in row. A qualified reference
// falls back to the bare name when an intermediate projection (Rule 8's
// inserted side-PROJECTs emit bare keys) stripped the qualifier; a bare
// reference falls back to a unique qualified match.
func resolveColumn(ref *plan.Node, row condition.Row) (any, error) {
	col, qualifier := columnRefParts(ref)
	if col == "" {
		return nil, ErrExecution.New("malformed COLUMN_REF node")
	}
	if qualifier != "" {
		if v, ok := row[qualifier+"."+col]; ok {
			return v, nil
		}
		if v, ok := row[col]; ok {
			return v, nil
		}
		return nil, ErrExecution.New("unknown column " + qualifier + "." + col)
	}
	if v, ok := row[col]; ok {
		return v, nil
	}
	var found any
	matches := 0
	for k, v := range row {
		if strings.HasSuffix(k, "."+col) {
			found = v
			matches++
		}
	}
	if matches == 1 {
		return found, nil
	}
	return nil, ErrExecution.New("unknown column " + col)
}

// evalLiteral converts a literal node to its runtime value. Numbers
// without a fractional part become int, matching the storage layer's
// native row values.
func evalLiteral(n *plan.Node) (any, error) {
	switch n.Type {
	case plan.LiteralNumber:
		if strings.ContainsRune(n.Value, '.') {
			f, err := strconv.ParseFloat(n.Value, 64)
			if err != nil {
				return nil, ErrExecution.New("bad numeric literal " + n.Value)
			}
			return f, nil
		}
		i, err := strconv.Atoi(n.Value)
		if err != nil {
			return nil, ErrExecution.New("bad numeric literal " + n.Value)
		}
		return i, nil
	case plan.LiteralString:
		return n.Value, nil
	case plan.LiteralBoolean:
		return strings.EqualFold(n.Value, "TRUE"), nil
	case plan.LiteralNull:
		return nil, nil
	default:
		return nil, ErrExecution.New("not a literal: " + n.String())
	}
}

// evalConstExpr evaluates an expression with no row in scope: literals
// and arithmetic over literals. Column references are an error here —
// INSERT values and UPDATE assignments are constant in this dialect.
func evalConstExpr(n *plan.Node) (any, error) {
	return evalExpr(n, nil)
}

// evalExpr evaluates a scalar expression against row (nil for constant
// contexts).
func evalExpr(n *plan.Node, row condition.Row) (any, error) {
	switch n.Type {
	case plan.LiteralNumber, plan.LiteralString, plan.LiteralBoolean, plan.LiteralNull:
		return evalLiteral(n)
	case plan.ColumnRef:
		if row == nil {
			return nil, ErrExecution.New("column reference in constant context")
		}
		return resolveColumn(n, row)
	case plan.Alias:
		if len(n.Children) != 1 {
			return nil, ErrExecution.New("malformed ALIAS expression")
		}
		return evalExpr(n.Children[0], row)
	case plan.ArithExpr:
		if len(n.Children) != 2 {
			return nil, ErrExecution.New("malformed arithmetic expression")
		}
		l, err := evalExpr(n.Children[0], row)
		if err != nil {
			return nil, err
		}
		r, err := evalExpr(n.Children[1], row)
		if err != nil {
			return nil, err
		}
		return applyArith(n.Value, l, r)
	case plan.OperatorS:
		if n.Value != "-" || len(n.Children) != 1 {
			return nil, ErrExecution.New("unsupported unary operator " + n.Value)
		}
		v, err := evalExpr(n.Children[0], row)
		if err != nil {
			return nil, err
		}
		switch num := v.(type) {
		case int:
			return -num, nil
		case float64:
			return -num, nil
		default:
			return nil, ErrExecution.New("unary minus on non-numeric value")
		}
	case plan.FunctionCall:
		return nil, ErrExecution.New("unsupported function " + n.Value)
	default:
		return nil, ErrExecution.New("unsupported expression " + n.String())
	}
}

func applyArith(op string, l, r any) (any, error) {
	lf, lok := toFloat(l)
	rf, rok := toFloat(r)
	if !lok || !rok {
		return nil, ErrExecution.New("arithmetic on non-numeric value")
	}
	var out float64
	switch op {
	case "+":
		out = lf + rf
	case "-":
		out = lf - rf
	case "*":
		out = lf * rf
	case "/":
		if rf == 0 {
			return nil, ErrExecution.New("division by zero")
		}
		out = lf / rf
	default:
		return nil, ErrExecution.New("unknown arithmetic operator " + op)
	}
	_, lInt := l.(int)
	_, rInt := r.(int)
	if lInt && rInt && op != "/" {
		return int(out), nil
	}
	return out, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// condEvaluator evaluates a boolean condition subtree per row. Subquery
// results (EXISTS/NOT EXISTS) are computed eagerly, once, at
// construction.
type condEvaluator struct {
	subqueryNonEmpty map[int]bool
}

// newCondEvaluator pre-runs every subquery underneath cond under tid.
func (e *Executor) newCondEvaluator(ctx context.Context, cond *plan.Node, tid uint64) (*condEvaluator, error) {
	ev := &condEvaluator{subqueryNonEmpty: map[int]bool{}}
	var firstErr error
	cond.Walk(func(n *plan.Node) {
		if firstErr != nil {
			return
		}
		if n.Type != plan.ExistsExpr && n.Type != plan.NotExistsExpr {
			return
		}
		if len(n.Children) != 1 {
			firstErr = ErrExecution.New("malformed EXISTS expression")
			return
		}
		res, err := e.Execute(ctx, n.Children[0], tid)
		if err != nil {
			firstErr = err
			return
		}
		ev.subqueryNonEmpty[n.ID] = len(res.Rows) > 0
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return ev, nil
}

func (ev *condEvaluator) eval(n *plan.Node, row condition.Row) (bool, error) {
	switch n.Type {
	case plan.Operator:
		return ev.evalOperator(n, row)
	case plan.Comparison:
		if len(n.Children) != 2 {
			return false, ErrExecution.New("malformed COMPARISON node")
		}
		l, err := evalExpr(n.Children[0], row)
		if err != nil {
			return false, err
		}
		r, err := evalExpr(n.Children[1], row)
		if err != nil {
			return false, err
		}
		return compareValues(n.Value, l, r)
	case plan.InExpr, plan.NotInExpr:
		member, err := ev.evalIn(n, row)
		if err != nil {
			return false, err
		}
		if n.Type == plan.NotInExpr {
			return !member, nil
		}
		return member, nil
	case plan.ExistsExpr:
		return ev.subqueryNonEmpty[n.ID], nil
	case plan.NotExistsExpr:
		return !ev.subqueryNonEmpty[n.ID], nil
	case plan.BetweenExpr, plan.NotBetween:
		in, err := ev.evalBetween(n, row)
		if err != nil {
			return false, err
		}
		if n.Type == plan.NotBetween {
			return !in, nil
		}
		return in, nil
	case plan.IsNullExpr, plan.IsNotNullExpr:
		if len(n.Children) != 1 {
			return false, ErrExecution.New("malformed IS NULL expression")
		}
		v, err := evalExpr(n.Children[0], row)
		if err != nil {
			return false, err
		}
		isNull := v == nil
		if n.Type == plan.IsNotNullExpr {
			return !isNull, nil
		}
		return isNull, nil
	case plan.LikeExpr, plan.NotLikeExpr:
		match, err := ev.evalLike(n, row)
		if err != nil {
			return false, err
		}
		if n.Type == plan.NotLikeExpr {
			return !match, nil
		}
		return match, nil
	default:
		return false, ErrExecution.New("unsupported condition " + n.String())
	}
}

func (ev *condEvaluator) evalOperator(n *plan.Node, row condition.Row) (bool, error) {
	switch n.Value {
	case "AND":
		for _, c := range n.Children {
			ok, err := ev.eval(c, row)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case "OR":
		for _, c := range n.Children {
			ok, err := ev.eval(c, row)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case "NOT":
		if len(n.Children) != 1 {
			return false, ErrExecution.New("NOT requires exactly one child")
		}
		ok, err := ev.eval(n.Children[0], row)
		if err != nil {
			return false, err
		}
		return !ok, nil
	default:
		return false, ErrExecution.New("unknown boolean operator " + n.Value)
	}
}

func (ev *condEvaluator) evalIn(n *plan.Node, row condition.Row) (bool, error) {
	if len(n.Children) != 2 || n.Children[1].Type != plan.List {
		return false, ErrExecution.New("malformed IN expression")
	}
	needle, err := evalExpr(n.Children[0], row)
	if err != nil {
		return false, err
	}
	for _, item := range n.Children[1].Children {
		v, err := evalExpr(item, row)
		if err != nil {
			return false, err
		}
		if cmp, comparable := condition.Compare(needle, v); comparable && cmp == 0 {
			return true, nil
		}
	}
	return false, nil
}

func (ev *condEvaluator) evalBetween(n *plan.Node, row condition.Row) (bool, error) {
	if len(n.Children) != 3 {
		return false, ErrExecution.New("malformed BETWEEN expression")
	}
	v, err := evalExpr(n.Children[0], row)
	if err != nil {
		return false, err
	}
	low, err := evalExpr(n.Children[1], row)
	if err != nil {
		return false, err
	}
	high, err := evalExpr(n.Children[2], row)
	if err != nil {
		return false, err
	}
	geLow, err := compareValues(">=", v, low)
	if err != nil || !geLow {
		return false, err
	}
	return compareValues("<=", v, high)
}

func (ev *condEvaluator) evalLike(n *plan.Node, row condition.Row) (bool, error) {
	if len(n.Children) != 2 || n.Children[1].Type != plan.LiteralString {
		return false, ErrExecution.New("malformed LIKE expression")
	}
	v, err := evalExpr(n.Children[0], row)
	if err != nil {
		return false, err
	}
	s, ok := v.(string)
	if !ok {
		return false, ErrExecution.New("LIKE on non-string value")
	}
	re, err := likePattern(n.Children[1].Value)
	if err != nil {
		return false, err
	}
	return re.MatchString(s), nil
}

// likePattern compiles a SQL LIKE pattern: % matches any sequence, _ any
// single character; everything else is literal.
func likePattern(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, ErrExecution.New("bad LIKE pattern " + pattern)
	}
	return re, nil
}

// compareValues applies a comparison operator using the condition
// package's cross-type ordering. Incomparable pairs are unequal.
func compareValues(op string, l, r any) (bool, error) {
	cmp, comparable := condition.Compare(l, r)
	if !comparable {
		switch op {
		case "=":
			return false, nil
		case "<>":
			return true, nil
		default:
			return false, nil
		}
	}
	switch op {
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
		return false, ErrExecution.New("unknown comparison operator " + op)
	}
}

// toStorageConditions lowers a plan condition subtree into the storage
// layer's conjunctive condition list. Comparisons must pair a column
// reference with a constant (either side); AND splits into conjuncts,
// OR/NOT lower into the condition package's interior nodes. Richer
// predicates (IN, EXISTS, LIKE, ...) are outside the storage condition
// language and surface as execution errors in UPDATE/DELETE.
func toStorageConditions(n *plan.Node) ([]condition.Condition, error) {
	if n.Type == plan.Operator && n.Value == "AND" {
		var out []condition.Condition
		for _, c := range n.Children {
			sub, err := toStorageCondition(c)
			if err != nil {
				return nil, err
			}
			out = append(out, sub)
		}
		return out, nil
	}
	c, err := toStorageCondition(n)
	if err != nil {
		return nil, err
	}
	return []condition.Condition{c}, nil
}

func toStorageCondition(n *plan.Node) (condition.Condition, error) {
	switch n.Type {
	case plan.Comparison:
		return comparisonToStorage(n)
	case plan.Operator:
		switch n.Value {
		case "AND":
			children, err := storageChildren(n)
			if err != nil {
				return nil, err
			}
			return condition.NewAnd(children...)
		case "OR":
			children, err := storageChildren(n)
			if err != nil {
				return nil, err
			}
			return condition.NewOr(children...)
		case "NOT":
			if len(n.Children) != 1 {
				return nil, ErrExecution.New("NOT requires exactly one child")
			}
			child, err := toStorageCondition(n.Children[0])
			if err != nil {
				return nil, err
			}
			return condition.NewNot(child), nil
		}
	}
	return nil, ErrExecution.New("condition not expressible in storage layer: " + n.String())
}

func storageChildren(n *plan.Node) ([]condition.Condition, error) {
	out := make([]condition.Condition, 0, len(n.Children))
	for _, c := range n.Children {
		sub, err := toStorageCondition(c)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, nil
}

func comparisonToStorage(n *plan.Node) (condition.Condition, error) {
	if len(n.Children) != 2 {
		return nil, ErrExecution.New("malformed COMPARISON node")
	}
	l, r := n.Children[0], n.Children[1]
	if l.Type == plan.ColumnRef {
		operand, err := evalConstExpr(r)
		if err != nil {
			return nil, err
		}
		col, _ := columnRefParts(l)
		return condition.NewComparison(col, n.Value, operand)
	}
	if r.Type == plan.ColumnRef {
		operand, err := evalConstExpr(l)
		if err != nil {
			return nil, err
		}
		col, _ := columnRefParts(r)
		return condition.NewComparison(col, flipOp(n.Value), operand)
	}
	return nil, ErrExecution.New("comparison without a column reference")
}

func flipOp(op string) string {
	switch op {
	case "<":
		return ">"
	case "<=":
		return ">="
	case ">":
		return "<"
	case ">=":
		return "<="
	default:
		return op
	}
}
