package planner

import (
	"github.com/memrel/memrel/internal/kernelerr"
	"github.com/memrel/memrel/internal/sql/parser"
	"github.com/memrel/memrel/internal/table"
)

// tableResolver is the one seam BuildPlan needs into a database: look up a
// table by name. Narrowed to exactly this method, rather than depending on
// *dbmanager.Database directly, so the planner can be exercised in tests
// without a real database and without an import cycle back into dbmanager.
type tableResolver interface {
	GetTable(name string) (table.AnyTable, bool)
}

// BuildPlan resolves a parsed statement's table/alias references against db
// and returns the corresponding typed Plan.
func BuildPlan(stmt parser.Statement, db tableResolver) (Plan, error) {
	switch s := stmt.(type) {
	case *parser.SelectStmt:
		return buildSelectPlan(s, db)
	case *parser.InsertStmt:
		return buildInsertPlan(s, db)
	case *parser.UpdateStmt:
		return buildUpdatePlan(s, db)
	case *parser.DeleteStmt:
		return buildDeletePlan(s, db)
	default:
		return nil, kernelerr.New(kernelerr.UnsupportedCommand, "planner: unsupported statement %T", stmt)
	}
}

func resolveTable(db tableResolver, name, alias string) (TableBinding, error) {
	tbl, ok := db.GetTable(name)
	if !ok {
		return TableBinding{}, kernelerr.New(kernelerr.TableNotFound, "table %q not found", name)
	}
	if alias == "" {
		alias = name
	}
	return TableBinding{Alias: alias, Table: tbl}, nil
}

func buildSelectPlan(s *parser.SelectStmt, db tableResolver) (Plan, error) {
	from, err := resolveTable(db, s.From.Name, s.From.Alias)
	if err != nil {
		return nil, err
	}

	joins := make([]JoinBinding, 0, len(s.Joins))
	for _, j := range s.Joins {
		binding, err := resolveTable(db, j.Table.Name, j.Table.Alias)
		if err != nil {
			return nil, err
		}
		joins = append(joins, JoinBinding{
			Left:     j.Left,
			Table:    binding,
			LeftKey:  j.LeftKey,
			RightKey: j.RightKey,
		})
	}

	return &SelectPlan{
		From:    from,
		Joins:   joins,
		Columns: s.Columns,
		Where:   s.Where,
		GroupBy: s.GroupBy,
		OrderBy: s.OrderBy,
	}, nil
}

func buildInsertPlan(s *parser.InsertStmt, db tableResolver) (Plan, error) {
	tbl, ok := db.GetTable(s.TableName)
	if !ok {
		return nil, kernelerr.New(kernelerr.TableNotFound, "table %q not found", s.TableName)
	}
	return &InsertPlan{Table: tbl, Columns: s.Columns, Values: s.Values}, nil
}

func buildUpdatePlan(s *parser.UpdateStmt, db tableResolver) (Plan, error) {
	tbl, ok := db.GetTable(s.TableName)
	if !ok {
		return nil, kernelerr.New(kernelerr.TableNotFound, "table %q not found", s.TableName)
	}
	return &UpdatePlan{Table: tbl, Assignments: s.Assignments, Where: s.Where}, nil
}

func buildDeletePlan(s *parser.DeleteStmt, db tableResolver) (Plan, error) {
	tbl, ok := db.GetTable(s.TableName)
	if !ok {
		return nil, kernelerr.New(kernelerr.TableNotFound, "table %q not found", s.TableName)
	}
	return &DeletePlan{Table: tbl, Where: s.Where}, nil
}
