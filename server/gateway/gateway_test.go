package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/memrel/memrel/internal/dbmanager"
	"github.com/memrel/memrel/internal/kernelerr"
)

type widget struct {
	ID   int32  `db:"id,pk,auto"`
	Name string `db:"name,required"`
}

func newShop(t *testing.T) *dbmanager.Manager {
	t.Helper()
	m := dbmanager.New()
	m.CreateDatabase("shop")
	tbl, err := dbmanager.CreateTable[widget](m, "shop", "widgets", "widget")
	require.NoError(t, err)
	_, err = tbl.Insert(widget{Name: "gadget"})
	require.NoError(t, err)
	return m
}

func TestGateway_SubmitExecutesAgainstNamedDatabase(t *testing.T) {
	m := newShop(t)
	g := New(ManagerResolver{Manager: m}, 4)
	defer g.Close()

	res, err := g.Submit(context.Background(), "shop", "SELECT * FROM widgets;")
	require.NoError(t, err)
	require.True(t, res.IsQuery)
	require.Len(t, res.Rows, 1)
}

func TestGateway_SubmitFallsBackToDefaultDatabase(t *testing.T) {
	m := newShop(t)
	g := New(ManagerResolver{Manager: m}, 4)
	defer g.Close()

	res, err := g.Submit(context.Background(), "", "SELECT * FROM widgets;")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
}

func TestGateway_SubmitUnknownDatabaseErrors(t *testing.T) {
	m := newShop(t)
	g := New(ManagerResolver{Manager: m}, 4)
	defer g.Close()

	_, err := g.Submit(context.Background(), "nosuch", "SELECT 1;")
	require.Error(t, err)
	require.True(t, errors.Is(err, kernelerr.ErrDatabaseNotFound))
}

func TestGateway_SubmitCancelledBeforeDequeueReportsCancelled(t *testing.T) {
	m := newShop(t)
	g := New(ManagerResolver{Manager: m}, 4)
	defer g.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Submit(ctx, "shop", "SELECT * FROM widgets;")
	require.Error(t, err)
	require.True(t, errors.Is(err, kernelerr.ErrCancelled))
}

func TestGateway_SubmitWithExpiredDeadlineErrors(t *testing.T) {
	m := newShop(t)
	g := New(ManagerResolver{Manager: m}, 4)
	defer g.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := g.Submit(ctx, "shop", "SELECT * FROM widgets;")
	require.Error(t, err)
}
