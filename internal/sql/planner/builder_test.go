package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memrel/memrel/internal/dbmanager"
	"github.com/memrel/memrel/internal/kernelerr"
	"github.com/memrel/memrel/internal/sql/parser"
)

type widget struct {
	ID   int32  `db:"id,pk,auto"`
	Name string `db:"name"`
}

func newShop(t *testing.T) *dbmanager.Database {
	t.Helper()
	m := dbmanager.New()
	db := m.CreateDatabase("shop")
	_, err := dbmanager.CreateTable[widget](m, "shop", "widgets", "widget")
	require.NoError(t, err)
	return db
}

func TestBuildPlan_Select(t *testing.T) {
	db := newShop(t)
	stmt, err := parser.Parse("SELECT * FROM widgets WHERE id = 1;")
	require.NoError(t, err)

	p, err := BuildPlan(stmt, db)
	require.NoError(t, err)

	sel, ok := p.(*SelectPlan)
	require.True(t, ok)
	require.Equal(t, "widgets", sel.From.Alias)
	require.NotNil(t, sel.Where)
}

func TestBuildPlan_SelectJoin(t *testing.T) {
	m := dbmanager.New()
	db := m.CreateDatabase("shop")
	_, err := dbmanager.CreateTable[widget](m, "shop", "widgets", "widget")
	require.NoError(t, err)
	_, err = dbmanager.CreateTable[widget](m, "shop", "parts", "part")
	require.NoError(t, err)

	stmt, err := parser.Parse("SELECT * FROM widgets w JOIN parts p ON w.id = p.id;")
	require.NoError(t, err)

	p, err := BuildPlan(stmt, db)
	require.NoError(t, err)

	sel, ok := p.(*SelectPlan)
	require.True(t, ok)
	require.Len(t, sel.Joins, 1)
	require.Equal(t, "p", sel.Joins[0].Table.Alias)
}

func TestBuildPlan_SelectUnknownTableFails(t *testing.T) {
	db := newShop(t)
	stmt, err := parser.Parse("SELECT * FROM missing;")
	require.NoError(t, err)

	_, err = BuildPlan(stmt, db)
	require.Error(t, err)
	k, ok := kernelerr.Of(err)
	require.True(t, ok)
	require.Equal(t, kernelerr.TableNotFound, k)
}

func TestBuildPlan_Insert(t *testing.T) {
	db := newShop(t)
	stmt, err := parser.Parse("INSERT INTO widgets (name) VALUES ('a');")
	require.NoError(t, err)

	p, err := BuildPlan(stmt, db)
	require.NoError(t, err)

	ins, ok := p.(*InsertPlan)
	require.True(t, ok)
	require.Equal(t, []string{"name"}, ins.Columns)
	require.Len(t, ins.Values, 1)
}

func TestBuildPlan_InsertUnknownTableFails(t *testing.T) {
	db := newShop(t)
	stmt, err := parser.Parse("INSERT INTO missing (name) VALUES ('a');")
	require.NoError(t, err)

	_, err = BuildPlan(stmt, db)
	require.Error(t, err)
}

func TestBuildPlan_Update(t *testing.T) {
	db := newShop(t)
	stmt, err := parser.Parse("UPDATE widgets SET name = 'b' WHERE id = 1;")
	require.NoError(t, err)

	p, err := BuildPlan(stmt, db)
	require.NoError(t, err)

	upd, ok := p.(*UpdatePlan)
	require.True(t, ok)
	require.Len(t, upd.Assignments, 1)
	require.NotNil(t, upd.Where)
}

func TestBuildPlan_Delete(t *testing.T) {
	db := newShop(t)
	stmt, err := parser.Parse("DELETE FROM widgets WHERE id = 1;")
	require.NoError(t, err)

	p, err := BuildPlan(stmt, db)
	require.NoError(t, err)

	del, ok := p.(*DeletePlan)
	require.True(t, ok)
	require.NotNil(t, del.Where)
}
