// Package txn implements the transaction context shared by the writes of
// one unit of work. It serializes the statements issued through it and
// holds the commit hooks deferred until the database acknowledges the
// commit.
package txn

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	dream "github.com/rvohealth/dream-sub006"
	"github.com/rvohealth/dream-sub006/dialect"
)

// ErrTxDone is returned when a finished transaction context is used.
var ErrTxDone = dream.ErrTxDone

// Committer is the interface that wraps the Commit method.
type Committer interface {
	Commit(context.Context, *Context) error
}

// CommitFunc is an adapter to allow the use of ordinary function as Committer.
type CommitFunc func(context.Context, *Context) error

// Commit calls f(ctx, tx).
func (f CommitFunc) Commit(ctx context.Context, tx *Context) error { return f(ctx, tx) }

// CommitHook defines the "commit middleware". A function that gets a Committer
// and returns a Committer. For example:
//
//	hook := func(next txn.Committer) txn.Committer {
//		return txn.CommitFunc(func(ctx context.Context, tx *txn.Context) error {
//			// Do something before.
//			if err := next.Commit(ctx, tx); err != nil {
//				return err
//			}
//			// Do something after.
//			return nil
//		})
//	}
type CommitHook func(Committer) Committer

// Rollbacker is the interface that wraps the Rollback method.
type Rollbacker interface {
	Rollback(context.Context, *Context) error
}

// RollbackFunc is an adapter to allow the use of ordinary function as Rollbacker.
type RollbackFunc func(context.Context, *Context) error

// Rollback calls f(ctx, tx).
func (f RollbackFunc) Rollback(ctx context.Context, tx *Context) error { return f(ctx, tx) }

// RollbackHook defines the "rollback middleware", the Rollbacker
// counterpart of CommitHook.
type RollbackHook func(Rollbacker) Rollbacker

// Deferred is a commit hook waiting for the commit.
type Deferred struct {
	Name string
	Fn   func(context.Context) error
}

// Context is the transaction context of one unit of work. It implements
// dialect.Tx and must not be shared between concurrent call chains.
type Context struct {
	ctx     context.Context
	tx      dialect.Tx
	dialect string
	logger  *slog.Logger

	// stmt serializes statements.
	stmt sync.Mutex

	mu         sync.Mutex
	done       bool
	queue      []Deferred
	onCommit   []CommitHook
	onRollback []RollbackHook
}

// Option configures a Context.
type Option func(*Context)

// WithLogger sets the logger reporting commit hook failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Context) { c.logger = l }
}

// WithDialect sets the dialect reported by the context.
func WithDialect(name string) Option {
	return func(c *Context) { c.dialect = name }
}

// Begin starts a transaction on drv.
func Begin(ctx context.Context, drv dialect.Driver, opts ...Option) (*Context, error) {
	tx, err := drv.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("txn: starting transaction: %w", err)
	}
	return New(ctx, tx, append([]Option{WithDialect(drv.Dialect())}, opts...)...), nil
}

// New wraps an open transaction.
func New(ctx context.Context, tx dialect.Tx, opts ...Option) *Context {
	c := &Context{ctx: ctx, tx: tx, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Context returns the context the transaction was started with.
func (c *Context) Context() context.Context { return c.ctx }

// Dialect returns the dialect of the underlying connection.
func (c *Context) Dialect() string { return c.dialect }

// Exec implements dialect.ExecQuerier.
func (c *Context) Exec(ctx context.Context, query string, args, v any) error {
	if c.Done() {
		return ErrTxDone
	}
	c.stmt.Lock()
	defer c.stmt.Unlock()
	return c.tx.Exec(ctx, query, args, v)
}

// Query implements dialect.ExecQuerier.
func (c *Context) Query(ctx context.Context, query string, args, v any) error {
	if c.Done() {
		return ErrTxDone
	}
	c.stmt.Lock()
	defer c.stmt.Unlock()
	return c.tx.Query(ctx, query, args, v)
}

// Defer queues fn to run after a successful commit. Queued functions run
// in order; a rollback drops them.
func (c *Context) Defer(name string, fn func(context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, Deferred{Name: name, Fn: fn})
}

// Pending returns the number of queued commit hooks.
func (c *Context) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Done reports whether the transaction was committed or rolled back.
func (c *Context) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// OnCommit adds a hook to call on commit.
func (c *Context) OnCommit(f CommitHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onCommit = append(c.onCommit, f)
}

// OnRollback adds a hook to call on rollback.
func (c *Context) OnRollback(f RollbackHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRollback = append(c.onRollback, f)
}

// finish marks the context done and returns the queued hooks.
func (c *Context) finish() ([]Deferred, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return nil, ErrTxDone
	}
	c.done = true
	queue := c.queue
	c.queue = nil
	return queue, nil
}

// Commit commits the transaction and then runs the queued commit hooks in
// order. Hook failures do not undo the commit; they are returned together
// as a CommitHookError.
func (c *Context) Commit() error {
	queue, err := c.finish()
	if err != nil {
		return err
	}
	var fn Committer = CommitFunc(func(context.Context, *Context) error {
		return c.tx.Commit()
	})
	c.mu.Lock()
	hooks := append([]CommitHook(nil), c.onCommit...)
	c.mu.Unlock()
	for i := len(hooks) - 1; i >= 0; i-- {
		fn = hooks[i](fn)
	}
	if err := fn.Commit(c.ctx, c); err != nil {
		return err
	}
	var errs []error
	for _, d := range queue {
		if err := d.Fn(c.ctx); err != nil {
			c.logger.ErrorContext(c.ctx, "txn: commit hook failed", "hook", d.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", d.Name, err))
		}
	}
	if len(errs) > 0 {
		return &dream.CommitHookError{Err: dream.NewAggregateError(errs...)}
	}
	return nil
}

// Rollback rolls back the transaction and drops the queued commit hooks.
func (c *Context) Rollback() error {
	if _, err := c.finish(); err != nil {
		return err
	}
	var fn Rollbacker = RollbackFunc(func(context.Context, *Context) error {
		return c.tx.Rollback()
	})
	c.mu.Lock()
	hooks := append([]RollbackHook(nil), c.onRollback...)
	c.mu.Unlock()
	for i := len(hooks) - 1; i >= 0; i-- {
		fn = hooks[i](fn)
	}
	return fn.Rollback(c.ctx, c)
}

// Run runs fn within a transaction on drv. If fn returns an error or
// panics, the transaction is rolled back; a panic is re-raised. Otherwise
// the transaction is committed.
func Run(ctx context.Context, drv dialect.Driver, fn func(*Context) error, opts ...Option) error {
	tx, err := Begin(ctx, drv, opts...)
	if err != nil {
		return err
	}
	return run(tx, fn)
}

func run(tx *Context, fn func(*Context) error) (err error) {
	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback()
			panic(v)
		}
	}()
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			err = fmt.Errorf("%w: %w", err, &dream.RollbackError{Err: rerr})
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		if dream.IsCommitHookError(err) {
			return err
		}
		return fmt.Errorf("txn: committing transaction: %w", err)
	}
	return nil
}

// Within runs fn inside tx when it is not nil, leaving its completion to
// the caller. Otherwise it runs fn in a new transaction on drv.
func Within(ctx context.Context, drv dialect.Driver, tx *Context, fn func(*Context) error) error {
	if tx != nil {
		if tx.Done() {
			return ErrTxDone
		}
		return fn(tx)
	}
	return Run(ctx, drv, fn)
}

type ctxKey struct{}

// NewContext returns a new context carrying tx.
func NewContext(parent context.Context, tx *Context) context.Context {
	return context.WithValue(parent, ctxKey{}, tx)
}

// FromContext returns the transaction context stored in ctx, or nil.
func FromContext(ctx context.Context) *Context {
	tx, _ := ctx.Value(ctxKey{}).(*Context)
	return tx
}

var _ dialect.Tx = (*Context)(nil)
