// Package planner resolves a parsed AST's table/alias references against a
// database's tables, producing a typed plan tree the executor evaluates;
// column references are resolved by the executor. Plan/planNode() marker interfaces tag the plan kinds, and
// BuildPlan is a switch over the parsed statement type, covering the full
// SELECT/INSERT/UPDATE/DELETE grammar over table.AnyTable.
package planner

import (
	"github.com/memrel/memrel/internal/sql/parser"
	"github.com/memrel/memrel/internal/table"
)

// Plan is the interface for every resolved, executable plan node.
type Plan interface{ planNode() }

// TableBinding is a table resolved against the database, alongside the
// alias it is addressed by for the remainder of the statement (its own
// name, absent an explicit alias).
type TableBinding struct {
	Alias string
	Table table.AnyTable
}

// JoinBinding is one resolved join.
type JoinBinding struct {
	Left     bool
	Table    TableBinding
	LeftKey  parser.ColumnRef
	RightKey parser.ColumnRef
}

// SelectPlan is a resolved SELECT: table bindings plus the still-unevaluated
// AST fragments (Columns/Where/GroupBy/OrderBy) the executor walks.
type SelectPlan struct {
	From    TableBinding
	Joins   []JoinBinding
	Columns []parser.SelectColumn
	Where   parser.Expr
	GroupBy []parser.Expr
	OrderBy []parser.OrderTerm
}

func (*SelectPlan) planNode() {}

// InsertPlan is a resolved INSERT.
type InsertPlan struct {
	Table   table.AnyTable
	Columns []string
	Values  []parser.Expr
}

func (*InsertPlan) planNode() {}

// UpdatePlan is a resolved UPDATE.
type UpdatePlan struct {
	Table       table.AnyTable
	Assignments []parser.Assignment
	Where       parser.Expr
}

func (*UpdatePlan) planNode() {}

// DeletePlan is a resolved DELETE.
type DeletePlan struct {
	Table table.AnyTable
	Where parser.Expr
}

func (*DeletePlan) planNode() {}
