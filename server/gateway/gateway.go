// Package gateway is the queued-execution front door: a single-worker
// request queue that serializes SQL execution against a *dbmanager.Manager,
// accepting a context.Context cancellation token per request. Both the TCP
// wire listener and an in-process caller submit work through this one
// queue instead of each owning its own executor.
package gateway

import (
	"context"
	"sync"

	"github.com/memrel/memrel/internal/dbmanager"
	"github.com/memrel/memrel/internal/kernelerr"
	"github.com/memrel/memrel/internal/sql/executor"
)

// Resolver resolves a database name to the executor.Database it should run
// against: an empty name resolves to the manager's default database.
type Resolver interface {
	GetDatabase(name string) (executor.Database, error)
	DefaultDatabase() (executor.Database, error)
}

// ManagerResolver adapts a *dbmanager.Manager into a Resolver. *Database
// satisfies executor.Database structurally, but Go's interface-satisfaction
// rule needs an exact method signature match, so Manager's own
// GetDatabase/DefaultDatabase (which return *dbmanager.Database) can't
// implement Resolver directly — this thin wrapper does the conversion.
type ManagerResolver struct {
	Manager *dbmanager.Manager
}

func (r ManagerResolver) GetDatabase(name string) (executor.Database, error) {
	return r.Manager.GetDatabase(name)
}

func (r ManagerResolver) DefaultDatabase() (executor.Database, error) {
	return r.Manager.DefaultDatabase()
}

type request struct {
	ctx   context.Context
	db    string
	sql   string
	reply chan outcome
}

type outcome struct {
	res executor.Result
	err error
}

// Gateway is a single background worker draining a bounded request queue.
type Gateway struct {
	resolver Resolver
	queue    chan request
	done     chan struct{}
	wg       sync.WaitGroup
}

// New starts a Gateway's worker goroutine immediately. queueSize bounds how
// many requests may wait for the worker before Submit blocks on enqueue.
func New(resolver Resolver, queueSize int) *Gateway {
	if queueSize <= 0 {
		queueSize = 1
	}
	g := &Gateway{
		resolver: resolver,
		queue:    make(chan request, queueSize),
		done:     make(chan struct{}),
	}
	g.wg.Add(1)
	go g.run()
	return g
}

func (g *Gateway) run() {
	defer g.wg.Done()
	for {
		select {
		case req := <-g.queue:
			g.serve(req)
		case <-g.done:
			return
		}
	}
}

func (g *Gateway) serve(req request) {
	select {
	case <-req.ctx.Done():
		req.reply <- outcome{err: kernelerr.New(kernelerr.Cancelled, "request cancelled before execution")}
		return
	default:
	}

	db, err := g.resolve(req.db)
	if err != nil {
		req.reply <- outcome{err: err}
		return
	}

	ex := executor.NewExecutor(db)
	res, err := ex.ExecSQL(req.sql)
	req.reply <- outcome{res: res, err: err}
}

func (g *Gateway) resolve(name string) (executor.Database, error) {
	if name == "" {
		return g.resolver.DefaultDatabase()
	}
	return g.resolver.GetDatabase(name)
}

// Submit enqueues sql to run against database dbName (the manager's default
// if dbName is empty) and blocks for the result. A request whose ctx is
// already cancelled when the worker dequeues it completes with the
// Cancelled error kind instead of executing, per SPEC_FULL.md §6; a ctx
// that cancels while still queued, or while waiting for the reply, also
// returns Cancelled rather than blocking forever.
func (g *Gateway) Submit(ctx context.Context, dbName, sql string) (executor.Result, error) {
	reply := make(chan outcome, 1)
	req := request{ctx: ctx, db: dbName, sql: sql, reply: reply}

	select {
	case g.queue <- req:
	case <-ctx.Done():
		return executor.Result{}, kernelerr.New(kernelerr.Cancelled, "request cancelled before enqueue")
	case <-g.done:
		return executor.Result{}, kernelerr.New(kernelerr.Cancelled, "gateway closed")
	}

	select {
	case o := <-reply:
		return o.res, o.err
	case <-ctx.Done():
		return executor.Result{}, kernelerr.New(kernelerr.Cancelled, "request cancelled while queued")
	}
}

// Close stops the worker and waits for it to exit. In-flight Submit calls
// whose request was already dequeued still receive their reply.
func (g *Gateway) Close() {
	close(g.done)
	g.wg.Wait()
}
