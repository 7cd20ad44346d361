package persist

import (
	"context"
	"fmt"

	dream "github.com/rvohealth/dream-sub006"
	"github.com/rvohealth/dream-sub006/dialect/sql/sqlgraph"
	"github.com/rvohealth/dream-sub006/graph"
	"github.com/rvohealth/dream-sub006/schema"
	"github.com/rvohealth/dream-sub006/schema/mixin"
	"github.com/rvohealth/dream-sub006/txn"
)

// Destroy removes a persisted record. Dependent associations are destroyed
// first unless Cascade(false) is given. Entity types with a soft-delete
// column are marked instead of deleted unless ReallyDestroy is given.
func (o *Orchestrator) Destroy(ctx context.Context, rec *schema.Record, tx *txn.Context, opts ...Option) error {
	opt := newOptions(opts)
	op := dream.OpDestroy
	if opt.reallyDestroy {
		op = dream.OpReallyDestroy
	}
	w := o.begin(ctx, rec, op)
	if !rec.IsPersisted() {
		return w.done(fmt.Errorf("persist: destroying unsaved %s", rec.Entity().Name), tx == nil, false)
	}
	err := w.within(tx, func(tx *txn.Context) error {
		return w.destroy(tx, opt)
	})
	return w.done(err, tx == nil, false)
}

func (w *write) destroy(tx *txn.Context, opt options) error {
	ctx, rec, e := w.ctx, w.rec, w.rec.Entity()
	if err := authorize(ctx, rec, w.op); err != nil {
		return err
	}
	if opt.cascade {
		deps, err := w.o.dependents(ctx, tx, rec, opt.reallyDestroy)
		if err != nil {
			return w.fail(err)
		}
		for _, dep := range deps {
			if err := w.o.begin(ctx, dep, w.op).destroy(tx, opt); err != nil {
				return err
			}
		}
	}
	if !opt.skipHooks {
		w.state(BeforeHooks)
		if err := w.run(rec.Changes(), schema.BeforeDestroy); err != nil {
			return err
		}
	}
	w.state(Persisting)
	soft := e.SoftDeleteColumn() != "" && !opt.reallyDestroy
	switch {
	case rec.DeletionPrevented():
		w.o.logger.DebugContext(ctx, "persist: deletion prevented", "entity", e.Name, "id", rec.ID())
		rec.MarkDestroyed(false)
	case soft:
		values := map[string]any{e.SoftDeleteColumn(): w.o.now()}
		if col, _ := e.PositionColumn(); col != "" {
			values[col] = nil
		}
		if err := w.o.set(ctx, tx, rec, values); err != nil {
			return dream.NewPersistenceError(e.Name, w.op, sqlgraph.Classify(err), sqlgraph.WrapConstraint(err))
		}
		rec.MarkWritten(values)
		rec.MarkDestroyed(true)
	default:
		if err := w.o.remove(ctx, tx, rec); err != nil {
			return dream.NewPersistenceError(e.Name, w.op, sqlgraph.Classify(err), sqlgraph.WrapConstraint(err))
		}
		rec.MarkDestroyed(true)
	}
	if !opt.skipHooks {
		w.state(AfterHooks)
		saved := rec.SavedChanges()
		if err := w.run(saved, schema.AfterDestroy); err != nil {
			return err
		}
		w.deferHooks(tx, saved, schema.AfterDestroyCommit)
	}
	w.o.invalidate(tx, e)
	return nil
}

// Undestroy restores a soft-deleted record, moving it to the end of its
// position scope. Soft-deleted dependents are restored with it unless
// Cascade(false) is given.
func (o *Orchestrator) Undestroy(ctx context.Context, rec *schema.Record, tx *txn.Context, opts ...Option) error {
	opt := newOptions(opts)
	w := o.begin(ctx, rec, dream.OpUndestroy)
	if rec.Entity().SoftDeleteColumn() == "" {
		return w.done(fmt.Errorf("persist: %s does not soft delete", rec.Entity().Name), tx == nil, false)
	}
	if !rec.IsPersisted() {
		return w.done(fmt.Errorf("persist: undestroying unsaved %s", rec.Entity().Name), tx == nil, false)
	}
	err := w.within(tx, func(tx *txn.Context) error {
		return w.undestroy(tx, opt)
	})
	return w.done(err, tx == nil, false)
}

func (w *write) undestroy(tx *txn.Context, opt options) error {
	ctx, rec, e := w.ctx, w.rec, w.rec.Entity()
	if err := authorize(ctx, rec, w.op); err != nil {
		return err
	}
	w.state(Persisting)
	values := map[string]any{e.SoftDeleteColumn(): nil}
	if col, _ := e.PositionColumn(); col != "" {
		pos, err := w.o.nextPosition(ctx, tx, rec)
		if err != nil {
			return dream.NewPersistenceError(e.Name, w.op, sqlgraph.Classify(err), err)
		}
		values[col] = pos
	}
	if err := w.o.set(ctx, tx, rec, values); err != nil {
		return dream.NewPersistenceError(e.Name, w.op, sqlgraph.Classify(err), sqlgraph.WrapConstraint(err))
	}
	rec.MarkWritten(values)
	rec.MarkDestroyed(false)
	w.o.invalidate(tx, e)
	if !opt.cascade {
		return nil
	}
	deps, err := w.o.dependents(ctx, tx, rec, true)
	if err != nil {
		return w.fail(err)
	}
	for _, dep := range deps {
		de := dep.Entity()
		if de.SoftDeleteColumn() == "" || dep.Get(de.SoftDeleteColumn()) == nil {
			continue
		}
		if err := w.o.begin(ctx, dep, w.op).undestroy(tx, opt); err != nil {
			return err
		}
	}
	return nil
}

// dependents loads the rows of the dependent associations of rec, in
// declaration order. Default scopes other than soft deletion are lifted
// so that hidden rows are not left behind; withDeleted lifts soft
// deletion as well.
func (o *Orchestrator) dependents(ctx context.Context, tx *txn.Context, rec *schema.Record, withDeleted bool) ([]*schema.Record, error) {
	var out []*schema.Record
	for _, a := range rec.Entity().Associations() {
		if !a.Dependent || a.IsThrough() {
			continue
		}
		plan, err := graph.Resolver{Preload: true}.ResolveFrom(rec, graph.ParsePath(a.Name))
		if err != nil {
			return nil, err
		}
		c := &sqlgraph.Compiler{
			Dialect:      o.dialect(tx),
			BypassScopes: liftedScopes(a, withDeleted),
			Parallelism:  1,
			Logger:       o.logger,
		}
		if err := c.Preload(ctx, tx, []*schema.Record{rec}, plan); err != nil {
			return nil, err
		}
		v, _ := rec.Loaded(a.Name)
		switch v := v.(type) {
		case *schema.Record:
			if v != nil {
				out = append(out, v)
			}
		case []*schema.Record:
			out = append(out, v...)
		}
	}
	return out, nil
}

func liftedScopes(a *schema.Association, withDeleted bool) []string {
	targets := a.Candidates()
	if t, err := a.Target(); err == nil && t != nil {
		targets = []*schema.EntityType{t}
	}
	var names []string
	for _, t := range targets {
		for _, s := range t.Scopes() {
			if s.Name == mixin.SoftDeleteScope && !withDeleted {
				continue
			}
			names = append(names, s.Name)
		}
	}
	return names
}
