package executor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/memrel/memrel/internal/kernelerr"
	"github.com/memrel/memrel/internal/sql/parser"
	"github.com/memrel/memrel/internal/table"
)

// projectedRow is one output row of a SELECT: the projected column names
// and values, plus the context it was projected from (the matched/joined
// row, or a group's representative row), kept around for ORDER BY to fall
// back on when an order key isn't one of the projected columns.
type projectedRow struct {
	ctx     ctxRow
	columns []string
	values  []any
}

// groupRows partitions rows by the GROUP BY key, preserving the order each
// distinct key first appears in. With no GROUP BY clause, every row (or no
// rows at all) forms exactly one group, per SQL's whole-table-aggregate
// rule.
func groupRows(rows []ctxRow, groupBy []parser.Expr) ([][]ctxRow, error) {
	if len(groupBy) == 0 {
		return [][]ctxRow{rows}, nil
	}

	var order []string
	groups := map[string][]ctxRow{}
	for _, r := range rows {
		parts := make([]string, len(groupBy))
		for i, e := range groupBy {
			v, err := evalValue(r, e)
			if err != nil {
				return nil, err
			}
			parts[i] = fmt.Sprintf("%v", v)
		}
		key := strings.Join(parts, "\x1f")
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], r)
	}

	out := make([][]ctxRow, len(order))
	for i, key := range order {
		out[i] = groups[key]
	}
	return out, nil
}

func exprColumnName(e parser.Expr) string {
	if ref, ok := e.(*parser.ColumnRef); ok {
		return ref.Name
	}
	return "expr"
}

func aggregateColumnName(col parser.SelectColumn) string {
	if col.Alias != "" {
		return col.Alias
	}
	if col.AggStar {
		return col.Aggregate + "(*)"
	}
	return col.Aggregate + "(" + exprColumnName(col.Expr) + ")"
}

func projectedColumnName(col parser.SelectColumn) string {
	if col.Alias != "" {
		return col.Alias
	}
	return exprColumnName(col.Expr)
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case int64:
		return decimal.NewFromInt(x), nil
	case int32:
		return decimal.NewFromInt(int64(x)), nil
	default:
		return decimal.Decimal{}, kernelerr.New(kernelerr.InvalidArgument, "cannot use %T in a numeric aggregate", v)
	}
}

// computeAggregate evaluates one aggregate function over a single group's
// rows. COUNT(*) counts rows; the others skip NULLs per standard SQL.
func computeAggregate(agg string, aggStar bool, e parser.Expr, group []ctxRow) (any, error) {
	switch agg {
	case "COUNT":
		if aggStar {
			return int64(len(group)), nil
		}
		var n int64
		for _, r := range group {
			v, err := evalValue(r, e)
			if err != nil {
				return nil, err
			}
			if v != nil {
				n++
			}
		}
		return n, nil

	case "SUM", "AVG":
		sum := decimal.Zero
		var n int64
		for _, r := range group {
			v, err := evalValue(r, e)
			if err != nil {
				return nil, err
			}
			if v == nil {
				continue
			}
			d, err := toDecimal(v)
			if err != nil {
				return nil, err
			}
			sum = sum.Add(d)
			n++
		}
		if n == 0 {
			return nil, nil
		}
		if agg == "AVG" {
			return sum.Div(decimal.NewFromInt(n)), nil
		}
		return sum, nil

	case "MIN", "MAX":
		var best any
		for _, r := range group {
			v, err := evalValue(r, e)
			if err != nil {
				return nil, err
			}
			if v == nil {
				continue
			}
			if best == nil {
				best = v
				continue
			}
			c, err := compareValues(v, best)
			if err != nil {
				return nil, err
			}
			if (agg == "MIN" && c < 0) || (agg == "MAX" && c > 0) {
				best = v
			}
		}
		return best, nil

	default:
		return nil, kernelerr.New(kernelerr.UnsupportedCommand, "unsupported aggregate function %q", agg)
	}
}

// projectGroup evaluates one SELECT list against one group of context rows
// (a real GROUP BY group, or a one-row slice for a plain, ungrouped
// SELECT), producing a single output row. A Star column expands every
// bound table's columns in join order; an aggregate column reduces the
// whole group; anything else is evaluated against the group's first row.
func projectGroup(cols []parser.SelectColumn, group []ctxRow, aliasOrder []string, tables map[string]table.AnyTable) (projectedRow, error) {
	var rep ctxRow
	if len(group) > 0 {
		rep = group[0]
	} else {
		rep = ctxRow{}
	}

	var names []string
	var values []any

	for _, col := range cols {
		switch {
		case col.Star:
			for _, alias := range aliasOrder {
				s := tables[alias].Schema()
				row := rep[alias]
				for _, c := range s.Columns {
					names = append(names, c.Name)
					if row == nil {
						values = append(values, nil)
					} else {
						values = append(values, row[c.Name])
					}
				}
			}
		case col.Aggregate != "":
			v, err := computeAggregate(col.Aggregate, col.AggStar, col.Expr, group)
			if err != nil {
				return projectedRow{}, err
			}
			names = append(names, aggregateColumnName(col))
			values = append(values, v)
		default:
			v, err := evalValue(rep, col.Expr)
			if err != nil {
				return projectedRow{}, err
			}
			names = append(names, projectedColumnName(col))
			values = append(values, v)
		}
	}

	return projectedRow{ctx: rep, columns: names, values: values}, nil
}

func projectedColumnNames(cols []parser.SelectColumn, aliasOrder []string, tables map[string]table.AnyTable) []string {
	var names []string
	for _, col := range cols {
		switch {
		case col.Star:
			for _, alias := range aliasOrder {
				for _, c := range tables[alias].Schema().Columns {
					names = append(names, c.Name)
				}
			}
		case col.Aggregate != "":
			names = append(names, aggregateColumnName(col))
		default:
			names = append(names, projectedColumnName(col))
		}
	}
	return names
}

// resolveOrderKey implements the decided ordering for ORDER BY resolution:
// an unqualified name is tried against the projected column list first
// (covers ordering by an alias or aggregate the SELECT list introduced),
// falling back to evaluating the expression against the row's
// pre-projection context (covers ordering by a column that wasn't
// projected at all).
func resolveOrderKey(pr projectedRow, term parser.OrderTerm) (any, error) {
	if ref, ok := term.Expr.(*parser.ColumnRef); ok && ref.Qualifier == "" {
		for i, name := range pr.columns {
			if strings.EqualFold(name, ref.Name) {
				return pr.values[i], nil
			}
		}
	}
	return evalValue(pr.ctx, term.Expr)
}

type sortEntry struct {
	row  projectedRow
	keys []any
}

// compareOrderable orders NULL before any non-NULL value; incomparable
// types collapse to equal rather than panicking mid-sort.
func compareOrderable(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	c, err := compareValues(a, b)
	if err != nil {
		return 0
	}
	return c
}

func sortRows(rows []projectedRow, orderBy []parser.OrderTerm) error {
	entries := make([]sortEntry, len(rows))
	for i, pr := range rows {
		keys := make([]any, len(orderBy))
		for j, term := range orderBy {
			v, err := resolveOrderKey(pr, term)
			if err != nil {
				return err
			}
			keys[j] = v
		}
		entries[i] = sortEntry{row: pr, keys: keys}
	}

	sort.SliceStable(entries, func(a, b int) bool {
		for j, term := range orderBy {
			c := compareOrderable(entries[a].keys[j], entries[b].keys[j])
			if c == 0 {
				continue
			}
			if term.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})

	for i, e := range entries {
		rows[i] = e.row
	}
	return nil
}
