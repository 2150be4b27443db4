package wire

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/memrel/memrel/internal/dbmanager"
	"github.com/memrel/memrel/server/gateway"
)

type widget struct {
	ID   int32  `db:"id,pk,auto"`
	Name string `db:"name,required"`
}

func TestServeConn_ExecutesAgainstGateway(t *testing.T) {
	m := dbmanager.New()
	m.CreateDatabase("shop")
	tbl, err := dbmanager.CreateTable[widget](m, "shop", "widgets", "widget")
	require.NoError(t, err)
	_, err = tbl.Insert(widget{Name: "gadget"})
	require.NoError(t, err)

	gw := gateway.New(gateway.ManagerResolver{Manager: m}, 4)
	defer gw.Close()

	client, server := newPipe(t)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ServeConn(ctx, server, gw)

	req := ExecuteRequest{ID: 1, Database: "shop", SQL: "SELECT * FROM widgets;"}
	require.NoError(t, WriteFrame(client, req))

	var resp ExecuteResponse
	require.NoError(t, ReadFrame(client, &resp))
	require.Equal(t, uint64(1), resp.ID)
	require.Empty(t, resp.Error)
	require.NotNil(t, resp.Result)
	require.Len(t, resp.Result.Rows, 1)
}

func TestServeConn_PropagatesExecutorError(t *testing.T) {
	m := dbmanager.New()
	m.CreateDatabase("shop")

	gw := gateway.New(gateway.ManagerResolver{Manager: m}, 4)
	defer gw.Close()

	client, server := newPipe(t)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ServeConn(ctx, server, gw)

	req := ExecuteRequest{ID: 2, Database: "shop", SQL: "SELECT * FROM nosuch;"}
	require.NoError(t, WriteFrame(client, req))

	var resp ExecuteResponse
	require.NoError(t, ReadFrame(client, &resp))
	require.Equal(t, uint64(2), resp.ID)
	require.NotEmpty(t, resp.Error)
	require.Nil(t, resp.Result)
}

// newPipe returns a connected net.Conn pair over a loopback TCP listener,
// so ServeConn's net.Conn-based API can be exercised without an
// externally-reachable socket.
func newPipe(t *testing.T) (client, server net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		require.NoError(t, err)
		accepted <- c
	}()

	c, err := net.DialTimeout("tcp", ln.Addr().String(), time.Second)
	require.NoError(t, err)

	return c, <-accepted
}
