package executor

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/memrel/memrel/internal/kernelerr"
	"github.com/memrel/memrel/internal/sql/parser"
	"github.com/memrel/memrel/internal/table"
)

// ctxRow is one candidate output row mid-evaluation: alias -> that table's
// column map. A plain (unjoined) SELECT has exactly one entry; each JOIN
// adds one more, keyed by the joined table's alias.
type ctxRow map[string]map[string]any

func cloneCtx(ctx ctxRow) ctxRow {
	out := make(ctxRow, len(ctx))
	for k, v := range ctx {
		out[k] = v
	}
	return out
}

// nullRow synthesizes an all-nil row for a table, used to pad the right
// side of an unmatched LEFT JOIN.
func nullRow(t table.AnyTable) map[string]any {
	s := t.Schema()
	out := make(map[string]any, len(s.Columns))
	for _, c := range s.Columns {
		out[c.Name] = nil
	}
	return out
}

func mapGetCI(m map[string]any, name string) (any, bool) {
	if v, ok := m[name]; ok {
		return v, true
	}
	lower := strings.ToLower(name)
	for k, v := range m {
		if strings.ToLower(k) == lower {
			return v, true
		}
	}
	return nil, false
}

func resolveColumn(ctx ctxRow, ref parser.ColumnRef) (any, error) {
	if ref.Qualifier != "" {
		row, ok := ctx[ref.Qualifier]
		if !ok {
			for alias, r := range ctx {
				if strings.EqualFold(alias, ref.Qualifier) {
					row, ok = r, true
					break
				}
			}
		}
		if !ok {
			return nil, kernelerr.New(kernelerr.InvalidArgument, "unknown table alias %q", ref.Qualifier)
		}
		v, ok := mapGetCI(row, ref.Name)
		if !ok {
			return nil, kernelerr.New(kernelerr.InvalidArgument, "unknown column %q on %q", ref.Name, ref.Qualifier)
		}
		return v, nil
	}

	var found any
	count := 0
	for _, row := range ctx {
		if v, ok := mapGetCI(row, ref.Name); ok {
			found = v
			count++
		}
	}
	switch {
	case count == 0:
		return nil, kernelerr.New(kernelerr.InvalidArgument, "unknown column %q", ref.Name)
	case count > 1:
		return nil, kernelerr.New(kernelerr.InvalidArgument, "ambiguous column %q", ref.Name)
	default:
		return found, nil
	}
}

// evalValue evaluates any expression to its runtime value: a literal, a
// column reference, or (for boolean sub-expressions used as a plain
// projected value) the result of evalBool.
func evalValue(ctx ctxRow, e parser.Expr) (any, error) {
	switch v := e.(type) {
	case *parser.Literal:
		return v.Value, nil
	case *parser.ColumnRef:
		return resolveColumn(ctx, *v)
	case *parser.BinaryExpr, *parser.UnaryExpr, *parser.IsNullExpr:
		return evalBool(ctx, e)
	default:
		return nil, kernelerr.New(kernelerr.InvalidArgument, "unsupported expression %T", e)
	}
}

func evalBool(ctx ctxRow, e parser.Expr) (bool, error) {
	switch v := e.(type) {
	case *parser.BinaryExpr:
		switch v.Op {
		case "AND":
			l, err := evalBool(ctx, v.Left)
			if err != nil || !l {
				return false, err
			}
			return evalBool(ctx, v.Right)
		case "OR":
			l, err := evalBool(ctx, v.Left)
			if err != nil {
				return false, err
			}
			if l {
				return true, nil
			}
			return evalBool(ctx, v.Right)
		default:
			lv, err := evalValue(ctx, v.Left)
			if err != nil {
				return false, err
			}
			rv, err := evalValue(ctx, v.Right)
			if err != nil {
				return false, err
			}
			return compareOp(v.Op, lv, rv)
		}
	case *parser.UnaryExpr:
		b, err := evalBool(ctx, v.Expr)
		return !b, err
	case *parser.IsNullExpr:
		val, err := evalValue(ctx, v.Expr)
		if err != nil {
			return false, err
		}
		isNull := val == nil
		if v.Not {
			return !isNull, nil
		}
		return isNull, nil
	case *parser.Literal:
		b, ok := v.Value.(bool)
		if !ok {
			return false, kernelerr.New(kernelerr.InvalidArgument, "expected boolean, got %T", v.Value)
		}
		return b, nil
	case *parser.ColumnRef:
		val, err := resolveColumn(ctx, *v)
		if err != nil {
			return false, err
		}
		b, ok := val.(bool)
		if !ok {
			return false, kernelerr.New(kernelerr.InvalidArgument, "expected boolean column, got %T", val)
		}
		return b, nil
	default:
		return false, kernelerr.New(kernelerr.InvalidArgument, "unsupported boolean expression %T", e)
	}
}

// compareOp applies a comparison operator. SQL null semantics: any
// comparison against NULL is unknown, so it evaluates to false rather than
// erroring (use IS [NOT] NULL to test for it directly).
func compareOp(op string, l, r any) (bool, error) {
	if l == nil || r == nil {
		return false, nil
	}
	switch op {
	case "=":
		c, err := compareValues(l, r)
		if err != nil {
			return false, err
		}
		return c == 0, nil
	case "<>", "!=":
		c, err := compareValues(l, r)
		if err != nil {
			return false, err
		}
		return c != 0, nil
	case "<", "<=", ">", ">=":
		c, err := compareValues(l, r)
		if err != nil {
			return false, err
		}
		switch op {
		case "<":
			return c < 0, nil
		case "<=":
			return c <= 0, nil
		case ">":
			return c > 0, nil
		default:
			return c >= 0, nil
		}
	default:
		return false, kernelerr.New(kernelerr.InvalidArgument, "unknown operator %q", op)
	}
}

// compareValues returns -1/0/1 for l relative to r across the logical
// types the schema package recognizes, promoting int64/decimal.Decimal
// across each other so an integer literal compares against a decimal
// column without the caller having to coerce first.
func compareValues(l, r any) (int, error) {
	switch lv := l.(type) {
	case int64:
		switch rv := r.(type) {
		case int64:
			return cmpInt64(lv, rv), nil
		case int32:
			return cmpInt64(lv, int64(rv)), nil
		case decimal.Decimal:
			return decimal.NewFromInt(lv).Cmp(rv), nil
		}
	case int32:
		switch rv := r.(type) {
		case int32:
			return cmpInt64(int64(lv), int64(rv)), nil
		case int64:
			return cmpInt64(int64(lv), rv), nil
		case decimal.Decimal:
			return decimal.NewFromInt(int64(lv)).Cmp(rv), nil
		}
	case decimal.Decimal:
		switch rv := r.(type) {
		case decimal.Decimal:
			return lv.Cmp(rv), nil
		case int64:
			return lv.Cmp(decimal.NewFromInt(rv)), nil
		case int32:
			return lv.Cmp(decimal.NewFromInt(int64(rv))), nil
		}
	case string:
		if rv, ok := r.(string); ok {
			return strings.Compare(lv, rv), nil
		}
	case bool:
		if rv, ok := r.(bool); ok {
			return cmpBool(lv, rv), nil
		}
	case time.Time:
		if rv, ok := r.(time.Time); ok {
			switch {
			case lv.Equal(rv):
				return 0, nil
			case lv.Before(rv):
				return -1, nil
			default:
				return 1, nil
			}
		}
	case uuid.UUID:
		if rv, ok := r.(uuid.UUID); ok {
			return strings.Compare(lv.String(), rv.String()), nil
		}
	}
	return 0, kernelerr.New(kernelerr.InvalidArgument, "cannot compare %T and %T", l, r)
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpBool(a, b bool) int {
	if a == b {
		return 0
	}
	if !a && b {
		return -1
	}
	return 1
}

// validateExprColumns walks e checking every column reference resolves
// against tables, without evaluating anything. Needed ahead of
// table.AnyTable's UpdateMap/DeleteMap, whose predicate signature has no
// error return: an unknown column must fail the statement up front rather
// than silently excluding every row.
func validateExprColumns(tables map[string]table.AnyTable, e parser.Expr) error {
	switch v := e.(type) {
	case nil:
		return nil
	case *parser.Literal:
		return nil
	case *parser.ColumnRef:
		return validateColumnRef(tables, *v)
	case *parser.BinaryExpr:
		if err := validateExprColumns(tables, v.Left); err != nil {
			return err
		}
		return validateExprColumns(tables, v.Right)
	case *parser.UnaryExpr:
		return validateExprColumns(tables, v.Expr)
	case *parser.IsNullExpr:
		return validateExprColumns(tables, v.Expr)
	default:
		return kernelerr.New(kernelerr.InvalidArgument, "unsupported expression %T", e)
	}
}

func validateColumnRef(tables map[string]table.AnyTable, ref parser.ColumnRef) error {
	if ref.Qualifier != "" {
		t, ok := tables[ref.Qualifier]
		if !ok {
			return kernelerr.New(kernelerr.InvalidArgument, "unknown table alias %q", ref.Qualifier)
		}
		if _, ok := t.Schema().ColumnByName(ref.Name); !ok {
			return kernelerr.New(kernelerr.InvalidArgument, "unknown column %q on %q", ref.Name, ref.Qualifier)
		}
		return nil
	}
	count := 0
	for _, t := range tables {
		if _, ok := t.Schema().ColumnByName(ref.Name); ok {
			count++
		}
	}
	switch {
	case count == 0:
		return kernelerr.New(kernelerr.InvalidArgument, "unknown column %q", ref.Name)
	case count > 1:
		return kernelerr.New(kernelerr.InvalidArgument, "ambiguous column %q", ref.Name)
	default:
		return nil
	}
}

// wherePredicate compiles a single-table WHERE clause (UPDATE/DELETE have
// no joins) into the bare map-predicate table.AnyTable expects. Rows that
// fail to evaluate (should not happen once validateExprColumns has passed)
// are treated as non-matching rather than aborting the whole statement,
// since the predicate signature has nowhere to report the error.
func wherePredicate(alias string, tbl table.AnyTable, where parser.Expr) (func(map[string]any) bool, error) {
	if where == nil {
		return func(map[string]any) bool { return true }, nil
	}
	if err := validateExprColumns(map[string]table.AnyTable{alias: tbl}, where); err != nil {
		return nil, err
	}
	return func(m map[string]any) bool {
		ok, err := evalBool(ctxRow{alias: m}, where)
		if err != nil {
			return false
		}
		return ok
	}, nil
}
