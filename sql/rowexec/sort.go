package rowexec

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/condition"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/plan"
)

// collator orders VARCHAR sort keys linguistically rather than by raw
// byte value. The undetermined locale gives stable, locale-neutral
// collation without tying results to the host's language settings.
var collator = collate.New(language.Und)

// sortRows stable-sorts rows by the key expression. Rows whose key fails
// to evaluate surface the error; incomparable mixed-type keys order nulls
// first, then by a plain byte comparison of their display strings.
func (e *Executor) sortRows(rows []condition.Row, keyExpr *plan.Node, desc bool) ([]condition.Row, error) {
	type keyed struct {
		row condition.Row
		key any
	}
	keyedRows := make([]keyed, len(rows))
	for i, row := range rows {
		k, err := evalExpr(keyExpr, row)
		if err != nil {
			return nil, err
		}
		keyedRows[i] = keyed{row: row, key: k}
	}

	sort.SliceStable(keyedRows, func(i, j int) bool {
		less := keyLess(keyedRows[i].key, keyedRows[j].key)
		if desc {
			return keyLess(keyedRows[j].key, keyedRows[i].key)
		}
		return less
	})

	out := make([]condition.Row, len(rows))
	for i, k := range keyedRows {
		out[i] = k.row
	}
	return out, nil
}

func keyLess(a, b any) bool {
	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)
	if aIsStr && bIsStr {
		return collator.CompareString(as, bs) < 0
	}
	if cmp, comparable := condition.Compare(a, b); comparable {
		return cmp < 0
	}
	// Nulls first, then mixed types by display form.
	if a == nil {
		return b != nil
	}
	if b == nil {
		return false
	}
	return displayString(a) < displayString(b)
}

func displayString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	switch n := v.(type) {
	case bool:
		if n {
			return "true"
		}
		return "false"
	default:
		// Numeric forms compare via Compare above; this path only sees
		// exotic values.
		return ""
	}
}
