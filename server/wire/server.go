// Package wire is the TCP transport for the queued-execution front door: a
// length-prefixed JSON frame protocol carrying ExecuteRequest/
// ExecuteResponse pairs, each request submitted to a server/gateway.Gateway
// rather than executed against a private per-connection executor. Every
// connection shares the one process-wide gateway and picks its database
// per request, with an accept loop that shuts down cleanly on
// signal.NotifyContext cancellation.
package wire

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os/signal"
	"syscall"

	"github.com/memrel/memrel/server/gateway"
)

// Config configures a Run invocation.
type Config struct {
	Addr string
}

// Run listens on cfg.Addr and serves connections until SIGINT/SIGTERM,
// submitting every request to gw. An accept error is logged and the accept
// loop continues.
func Run(cfg Config, gw *gateway.Gateway) error {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("wire: listen: %w", err)
	}
	defer func() { _ = ln.Close() }()

	slog.Info("wire: listening", "addr", cfg.Addr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			slog.Warn("wire: accept", "err", err)
			continue
		}
		go ServeConn(ctx, conn, gw)
	}
}

// ServeConn reads and answers ExecuteRequest frames from conn, submitting
// each to gw, until ctx is cancelled or the connection errors. Exported so
// an alternate listener (e.g. a Unix socket) can reuse the same per-
// connection protocol loop.
func ServeConn(ctx context.Context, conn net.Conn, gw *gateway.Gateway) {
	defer func() { _ = conn.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		var req ExecuteRequest
		if err := ReadFrame(conn, &req); err != nil {
			return
		}

		res, err := gw.Submit(ctx, req.Database, req.SQL)
		if err != nil {
			_ = WriteFrame(conn, ExecuteResponse{ID: req.ID, Error: err.Error()})
			continue
		}
		_ = WriteFrame(conn, ExecuteResponse{ID: req.ID, Result: &res})
	}
}
