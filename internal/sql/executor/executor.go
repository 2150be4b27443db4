// Package executor evaluates a resolved plan against the table engine:
// SELECT's context -> joins -> WHERE -> GROUP BY/aggregate -> project ->
// ORDER BY pipeline, and INSERT/UPDATE/DELETE's literal-coercion and
// map-predicate compilation. Executor/ExecSQL/execPlan and the per-statement
// exec* functions cover the four DML plan kinds this module's grammar
// supports; there is no CreateDatabase/DropDatabase/UseDatabase/CreateTable/
// DropTable/IndexLookup plan kind, since tables live entirely in memory and
// are looked up by primary key or sequential scan rather than a persisted
// index.
package executor

import (
	"github.com/memrel/memrel/internal/kernelerr"
	"github.com/memrel/memrel/internal/sql/parser"
	"github.com/memrel/memrel/internal/sql/planner"
	"github.com/memrel/memrel/internal/table"
)

// Database is the seam Executor needs into a database: resolve a table by
// name. Any *dbmanager.Database satisfies this structurally; Executor
// never imports dbmanager, avoiding a cycle back into the package that
// will eventually own Executor.
type Database interface {
	GetTable(name string) (table.AnyTable, bool)
}

// Executor runs parsed SQL statements against a Database.
type Executor struct {
	DB Database
}

func NewExecutor(db Database) *Executor {
	return &Executor{DB: db}
}

// ExecSQL parses, plans, and evaluates one SQL statement.
func (e *Executor) ExecSQL(sql string) (Result, error) {
	stmt, err := parser.Parse(sql)
	if err != nil {
		return Result{}, err
	}
	plan, err := planner.BuildPlan(stmt, e.DB)
	if err != nil {
		return Result{}, err
	}
	return e.execPlan(plan)
}

func (e *Executor) execPlan(p planner.Plan) (Result, error) {
	switch plan := p.(type) {
	case *planner.SelectPlan:
		return e.execSelect(plan)
	case *planner.InsertPlan:
		return e.execInsert(plan)
	case *planner.UpdatePlan:
		return e.execUpdate(plan)
	case *planner.DeletePlan:
		return e.execDelete(plan)
	default:
		return Result{}, kernelerr.New(kernelerr.UnsupportedCommand, "executor: unsupported plan type %T", p)
	}
}

func (e *Executor) execInsert(p *planner.InsertPlan) (Result, error) {
	raw := make([]any, len(p.Values))
	for i, expr := range p.Values {
		v, err := evalValue(ctxRow{}, expr)
		if err != nil {
			return Result{}, err
		}
		raw[i] = v
	}

	values, err := coerceInsertValues(p.Table.Schema(), p.Columns, raw)
	if err != nil {
		return Result{}, err
	}

	if _, err := p.Table.InsertMap(values); err != nil {
		return Result{}, err
	}
	return Result{AffectedRows: 1}, nil
}

func (e *Executor) execUpdate(p *planner.UpdatePlan) (Result, error) {
	pred, err := wherePredicate(p.Table.Name(), p.Table, p.Where)
	if err != nil {
		return Result{}, err
	}

	type resolvedAssignment struct {
		name  string
		value any
	}
	assigns := make([]resolvedAssignment, 0, len(p.Assignments))
	for _, a := range p.Assignments {
		col, ok := p.Table.Schema().ColumnByName(a.Column)
		if !ok {
			return Result{}, kernelerr.New(kernelerr.InvalidArgument, "unknown column %q in SET", a.Column)
		}
		v, err := evalValue(ctxRow{}, a.Value)
		if err != nil {
			return Result{}, err
		}
		cv, err := coerceLiteral(col.Type, v)
		if err != nil {
			return Result{}, err
		}
		assigns = append(assigns, resolvedAssignment{name: col.Name, value: cv})
	}

	mutate := func(m map[string]any) {
		for _, a := range assigns {
			m[a.name] = a.value
		}
	}

	affected, err := p.Table.UpdateMap(pred, mutate)
	if err != nil {
		return Result{}, err
	}
	return Result{AffectedRows: int64(affected)}, nil
}

func (e *Executor) execDelete(p *planner.DeletePlan) (Result, error) {
	pred, err := wherePredicate(p.Table.Name(), p.Table, p.Where)
	if err != nil {
		return Result{}, err
	}

	affected, err := p.Table.DeleteMap(pred)
	if err != nil {
		return Result{}, err
	}
	return Result{AffectedRows: int64(affected)}, nil
}

func (e *Executor) execSelect(p *planner.SelectPlan) (Result, error) {
	aliasOrder := []string{p.From.Alias}
	tables := map[string]table.AnyTable{p.From.Alias: p.From.Table}
	for _, j := range p.Joins {
		aliasOrder = append(aliasOrder, j.Table.Alias)
		tables[j.Table.Alias] = j.Table.Table
	}

	if err := validateSelectRefs(tables, p); err != nil {
		return Result{}, err
	}

	baseRows := p.From.Table.AllRows()
	rows := make([]ctxRow, 0, len(baseRows))
	for _, m := range baseRows {
		rows = append(rows, ctxRow{p.From.Alias: m})
	}

	for _, j := range p.Joins {
		var err error
		rows, err = joinRows(rows, j)
		if err != nil {
			return Result{}, err
		}
	}

	filtered := rows
	if p.Where != nil {
		filtered = make([]ctxRow, 0, len(rows))
		for _, r := range rows {
			ok, err := evalBool(r, p.Where)
			if err != nil {
				return Result{}, err
			}
			if ok {
				filtered = append(filtered, r)
			}
		}
	}

	hasAgg := false
	for _, c := range p.Columns {
		if c.Aggregate != "" {
			hasAgg = true
			break
		}
	}

	var projected []projectedRow
	if len(p.GroupBy) > 0 || hasAgg {
		groups, err := groupRows(filtered, p.GroupBy)
		if err != nil {
			return Result{}, err
		}
		for _, g := range groups {
			pr, err := projectGroup(p.Columns, g, aliasOrder, tables)
			if err != nil {
				return Result{}, err
			}
			projected = append(projected, pr)
		}
	} else {
		for _, r := range filtered {
			pr, err := projectGroup(p.Columns, []ctxRow{r}, aliasOrder, tables)
			if err != nil {
				return Result{}, err
			}
			projected = append(projected, pr)
		}
	}

	if len(p.OrderBy) > 0 {
		if err := sortRows(projected, p.OrderBy); err != nil {
			return Result{}, err
		}
	}

	columns := projectedColumnNames(p.Columns, aliasOrder, tables)
	out := make([][]any, len(projected))
	for i, pr := range projected {
		out[i] = pr.values
	}

	return Result{Columns: columns, Rows: out, AffectedRows: int64(len(out)), IsQuery: true}, nil
}

// validateSelectRefs checks every column reference the SELECT statement
// names (projection list, WHERE, GROUP BY) resolves against the bound
// tables before any row is touched, the same fail-fast discipline
// wherePredicate enforces for UPDATE/DELETE.
func validateSelectRefs(tables map[string]table.AnyTable, p *planner.SelectPlan) error {
	for _, col := range p.Columns {
		if col.Star {
			continue
		}
		if err := validateExprColumns(tables, col.Expr); err != nil {
			return err
		}
	}
	if err := validateExprColumns(tables, p.Where); err != nil {
		return err
	}
	for _, e := range p.GroupBy {
		if err := validateExprColumns(tables, e); err != nil {
			return err
		}
	}
	return nil
}
