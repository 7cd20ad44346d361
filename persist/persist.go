// Package persist orchestrates the write lifecycle of records: validation,
// privacy, lifecycle hooks, the SQL write itself, dependent cascades and
// the hooks deferred until the surrounding transaction commits.
//
// Every write runs inside a *txn.Context. Passing nil opens an implicit
// transaction that is committed when the write returns.
package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	dream "github.com/rvohealth/dream-sub006"
	"github.com/rvohealth/dream-sub006/dialect"
	"github.com/rvohealth/dream-sub006/dialect/sql"
	"github.com/rvohealth/dream-sub006/dialect/sql/sqlgraph"
	"github.com/rvohealth/dream-sub006/privacy"
	"github.com/rvohealth/dream-sub006/schema"
	"github.com/rvohealth/dream-sub006/schema/field"
	"github.com/rvohealth/dream-sub006/txn"
)

// State is a step of the write lifecycle.
type State uint8

// Lifecycle states, in order.
const (
	Pending State = iota
	Validating
	BeforeHooks
	Persisting
	AfterHooks
	Deferred
	Committed
)

var stateNames = [...]string{
	Pending:     "pending",
	Validating:  "validating",
	BeforeHooks: "before hooks",
	Persisting:  "persisting",
	AfterHooks:  "after hooks",
	Deferred:    "deferred",
	Committed:   "committed",
}

// String returns the state name.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Config configures an Orchestrator.
type Config struct {
	// Logger receives lifecycle transitions at debug level.
	Logger *slog.Logger
	// Metrics counts writes when set.
	Metrics *Metrics
	// Cache has the keys of written tables dropped after commit.
	Cache dream.Cache
	// Now stamps timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Orchestrator runs writes against the primary connection.
type Orchestrator struct {
	drv     dialect.Driver
	logger  *slog.Logger
	metrics *Metrics
	cache   dream.Cache
	now     func() time.Time
}

// New returns an orchestrator opening implicit transactions on drv.
func New(drv dialect.Driver, cfg Config) *Orchestrator {
	o := &Orchestrator{
		drv:     drv,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		cache:   cfg.Cache,
		now:     cfg.Now,
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// Option configures a single write.
type Option func(*options)

type options struct {
	skipHooks     bool
	cascade       bool
	reallyDestroy bool
}

func newOptions(opts []Option) options {
	o := options{cascade: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// SkipHooks runs the write without lifecycle hooks, deferred ones
// included.
func SkipHooks() Option {
	return func(o *options) { o.skipHooks = true }
}

// Cascade sets whether dependent associations are destroyed or restored
// with the record. It defaults to true.
func Cascade(cascade bool) Option {
	return func(o *options) { o.cascade = cascade }
}

// ReallyDestroy deletes rows of soft-deleting entity types instead of
// marking them.
func ReallyDestroy() Option {
	return func(o *options) { o.reallyDestroy = true }
}

// write tracks one write operation through the lifecycle.
type write struct {
	o     *Orchestrator
	ctx   context.Context
	rec   *schema.Record
	op    dream.Op
	start time.Time
}

func (o *Orchestrator) begin(ctx context.Context, rec *schema.Record, op dream.Op) *write {
	w := &write{o: o, ctx: ctx, rec: rec, op: op, start: time.Now()}
	w.state(Pending)
	return w
}

func (w *write) state(s State) {
	w.o.logger.DebugContext(w.ctx, "persist: state",
		"entity", w.rec.Entity().Name, "op", w.op.String(), "state", s.String(), "id", w.rec.ID())
}

// done reports the outcome of the write. Implicit transactions are
// committed once the write returns; explicit ones leave the commit hooks
// deferred.
func (w *write) done(err error, implicit, noop bool) error {
	switch {
	case err != nil:
		w.o.logger.DebugContext(w.ctx, "persist: write failed",
			"entity", w.rec.Entity().Name, "op", w.op.String(), "error", err)
	case implicit:
		w.state(Committed)
	default:
		w.state(Deferred)
	}
	w.o.metrics.observe(w.rec.Entity().Name, w.op, err, noop, time.Since(w.start))
	return err
}

// Save inserts a new record or updates a persisted one. A persisted
// record without changes is left alone and no SQL is issued.
func (o *Orchestrator) Save(ctx context.Context, rec *schema.Record, tx *txn.Context, opts ...Option) error {
	op := dream.OpUpdate
	if !rec.IsPersisted() {
		op = dream.OpCreate
	}
	w := o.begin(ctx, rec, op)
	if rec.IsDestroyed() {
		return w.done(fmt.Errorf("persist: saving destroyed %s %v", rec.Entity().Name, rec.ID()), tx == nil, false)
	}
	if !rec.IsDirty() {
		o.logger.DebugContext(ctx, "persist: no changes", "entity", rec.Entity().Name, "id", rec.ID())
		return w.done(nil, tx == nil, true)
	}
	opt := newOptions(opts)
	var noop bool
	err := w.within(tx, func(tx *txn.Context) (err error) {
		noop, err = w.save(tx, opt)
		return err
	})
	return w.done(err, tx == nil, noop)
}

// within runs fn in tx, or in an implicit transaction when tx is nil.
// Failures to begin or commit the implicit transaction are reported as
// persistence errors of the write; errors of fn and of commit hooks are
// returned as they are.
func (w *write) within(tx *txn.Context, fn func(*txn.Context) error) error {
	var ferr error
	err := txn.Within(w.ctx, w.o.drv, tx, func(tx *txn.Context) error {
		ferr = fn(tx)
		return ferr
	})
	if err == nil || ferr != nil || errors.Is(err, txn.ErrTxDone) || dream.IsCommitHookError(err) {
		return err
	}
	return w.fail(err)
}

// fail wraps a driver failure of the write.
func (w *write) fail(err error) error {
	return dream.NewPersistenceError(w.rec.Entity().Name, w.op, sqlgraph.Classify(err), err)
}

func (w *write) save(tx *txn.Context, opt options) (bool, error) {
	ctx, rec, e := w.ctx, w.rec, w.rec.Entity()
	creating := w.op == dream.OpCreate
	if creating {
		applyDefaults(rec)
	}
	w.state(Validating)
	if err := e.Validate(ctx, rec, w.op); err != nil {
		return false, err
	}
	if err := authorize(ctx, rec, w.op); err != nil {
		return false, err
	}
	if !opt.skipHooks {
		w.state(BeforeHooks)
		before := schema.BeforeUpdate
		if creating {
			before = schema.BeforeCreate
		}
		if err := w.run(rec.Changes(), before, schema.BeforeSave); err != nil {
			return false, err
		}
	}
	if !creating && len(rec.Changes()) == 0 {
		return true, nil
	}
	if err := w.o.stamp(ctx, tx, rec, creating); err != nil {
		return false, err
	}
	w.state(Persisting)
	var err error
	if creating {
		err = w.o.insert(ctx, tx, rec)
	} else {
		err = w.o.update(ctx, tx, rec)
	}
	if err != nil {
		return false, dream.NewPersistenceError(e.Name, w.op, sqlgraph.Classify(err), sqlgraph.WrapConstraint(err))
	}
	saved := rec.Changes()
	rec.MarkSaved(saved)
	if !opt.skipHooks {
		w.state(AfterHooks)
		after, commit := schema.AfterUpdate, schema.AfterUpdateCommit
		if creating {
			after, commit = schema.AfterCreate, schema.AfterCreateCommit
		}
		if err := w.run(saved, after, schema.AfterSave); err != nil {
			return false, err
		}
		w.deferHooks(tx, saved, commit, schema.AfterSaveCommit)
	}
	w.o.invalidate(tx, e)
	return false, nil
}

// run calls the hooks of events in order.
func (w *write) run(c schema.Changes, events ...schema.Event) error {
	e := w.rec.Entity()
	for _, ev := range events {
		for _, h := range e.Hooks.For(ev) {
			if !h.Applies(c) {
				continue
			}
			if err := h.Fn(w.ctx, w.rec, c); err != nil {
				return fmt.Errorf("persist: %s hook %s of %s: %w", ev, h, e.Name, err)
			}
		}
	}
	return nil
}

// deferHooks queues the commit hooks of events on tx.
func (w *write) deferHooks(tx *txn.Context, c schema.Changes, events ...schema.Event) {
	rec, e := w.rec, w.rec.Entity()
	for _, ev := range events {
		for _, h := range e.Hooks.For(ev) {
			if !h.Applies(c) {
				continue
			}
			tx.Defer(e.Name+" "+h.String(), func(ctx context.Context) error {
				return h.Fn(ctx, rec, c)
			})
		}
	}
}

// invalidate drops the cached reads of the table of e once tx commits.
func (o *Orchestrator) invalidate(tx *txn.Context, e *schema.EntityType) {
	if o.cache == nil {
		return
	}
	prefix := dream.TablePrefix(e.Table)
	tx.Defer("invalidate "+e.Table, func(ctx context.Context) error {
		return o.cache.DeletePrefix(ctx, prefix)
	})
}

// applyDefaults fills the unset columns of a new record that declare a
// default value. UUID keys without a default get a random one.
func applyDefaults(rec *schema.Record) {
	e := rec.Entity()
	for _, c := range e.Columns() {
		if v, ok := rec.Lookup(c.Column()); ok && v != nil {
			continue
		}
		if v, ok := c.DefaultValue(); ok {
			rec.Set(c.Column(), v)
			continue
		}
		if c == e.PrimaryKey && c.Type == field.TypeUUID {
			rec.Set(c.Column(), uuid.New())
		}
	}
	if col, val, ok := e.Discriminator(); ok && rec.Get(col) == nil {
		rec.Set(col, val)
	}
}

// stamp sets the timestamps, update defaults and the position of a new
// row.
func (o *Orchestrator) stamp(ctx context.Context, tx *txn.Context, rec *schema.Record, creating bool) error {
	e := rec.Entity()
	now := o.now()
	if col := e.CreateTimeColumn(); creating && col != "" && rec.Get(col) == nil {
		rec.Set(col, now)
	}
	if col := e.UpdateTimeColumn(); col != "" && (creating && rec.Get(col) == nil || !creating && !rec.Changes().Has(col)) {
		rec.Set(col, now)
	}
	if !creating {
		changes := rec.Changes()
		for _, c := range e.Columns() {
			if changes.Has(c.Column()) {
				continue
			}
			if v, ok := c.UpdateDefaultValue(); ok {
				rec.Set(c.Column(), v)
			}
		}
	}
	if col, _ := e.PositionColumn(); creating && col != "" && rec.Get(col) == nil {
		pos, err := o.nextPosition(ctx, tx, rec)
		if err != nil {
			return dream.NewPersistenceError(e.Name, dream.OpCreate, sqlgraph.Classify(err), err)
		}
		rec.Set(col, pos)
	}
	return nil
}

// nextPosition returns the position after the last live row sharing the
// position scope of rec.
func (o *Orchestrator) nextPosition(ctx context.Context, conn dialect.ExecQuerier, rec *schema.Record) (int, error) {
	e := rec.Entity()
	col, scope := e.PositionColumn()
	sel := sql.Dialect(o.dialect(conn)).Select()
	sel.From(sql.Table(e.Table))
	sel.Select("MAX(" + sel.Quote(col) + ")")
	preds := make([]*sql.Predicate, 0, len(scope)+1)
	for _, s := range scope {
		v, err := e.Encode(s, rec.Get(s))
		if err != nil {
			return 0, err
		}
		if v == nil {
			preds = append(preds, sql.IsNull(s))
		} else {
			preds = append(preds, sql.EQ(s, v))
		}
	}
	if sd := e.SoftDeleteColumn(); sd != "" {
		preds = append(preds, sql.IsNull(sd))
	}
	if len(preds) > 0 {
		sel.Where(sql.And(preds...))
	}
	query, args := sel.Query()
	if err := sel.Err(); err != nil {
		return 0, err
	}
	rows := &sql.Rows{}
	if err := conn.Query(ctx, query, args, rows); err != nil {
		return 0, err
	}
	last, err := sql.ScanInt64(rows)
	if err != nil {
		return 0, err
	}
	return int(last) + 1, nil
}

// dialect returns the dialect of conn, falling back to the dialect of the
// primary connection.
func (o *Orchestrator) dialect(conn dialect.ExecQuerier) string {
	if d, ok := conn.(interface{ Dialect() string }); ok && d.Dialect() != "" {
		return d.Dialect()
	}
	return o.drv.Dialect()
}

// authorize evaluates the privacy policy of the record entity.
func authorize(ctx context.Context, rec *schema.Record, op dream.Op) error {
	e := rec.Entity()
	p := e.Policy()
	if p == nil {
		return nil
	}
	return privacy.Denied(e.Name, op.String(), p.EvalMutation(ctx, mutation{rec: rec, op: op}))
}

// mutation exposes a pending write to privacy rules.
type mutation struct {
	rec *schema.Record
	op  dream.Op
}

func (m mutation) Entity() string { return m.rec.Entity().Name }

func (m mutation) Op() dream.Op { return m.op }

func (m mutation) Field(name string) (any, bool) { return m.rec.Lookup(name) }

func (m mutation) OldField(name string) (any, bool) { return m.rec.Original(name) }

func (m mutation) ChangedFields() []string { return m.rec.Changes().Columns() }

var _ dream.Mutation = mutation{}
