package client

import (
	"context"
	"slices"

	dream "github.com/rvohealth/dream-sub006"
	"github.com/rvohealth/dream-sub006/dialect"
	"github.com/rvohealth/dream-sub006/dialect/sql"
	"github.com/rvohealth/dream-sub006/privacy"
	"github.com/rvohealth/dream-sub006/router"
)

// UpdateAll sets values on every matching row with a single statement and
// returns the number of rows changed. Hooks and validations do not run.
// The update time column, if any, is stamped.
func (q *Query) UpdateAll(ctx context.Context, values map[string]any) (int64, error) {
	if err := q.bulk(dream.OpUpdateAll); err != nil {
		return 0, err
	}
	e := q.entity
	values = cloneValues(values)
	if col := e.UpdateTimeColumn(); col != "" {
		if _, ok := values[col]; !ok {
			values[col] = q.c.now()
		}
	}
	if err := q.authorizeBulk(ctx, dream.OpUpdateAll, values); err != nil {
		return 0, err
	}
	conn, d, _ := q.conn(ctx, router.Write)
	preds, err := q.predicates(ctx, q.compiler(d, true))
	if err != nil {
		return 0, err
	}
	up := sql.Dialect(d).Update(e.Table)
	cols := make([]string, 0, len(values))
	for col := range values {
		cols = append(cols, col)
	}
	slices.Sort(cols)
	for _, col := range cols {
		v, err := e.Encode(col, values[col])
		if err != nil {
			return 0, err
		}
		if v == nil {
			up.SetNull(col)
		} else {
			up.Set(col, v)
		}
	}
	if len(preds) > 0 {
		up.Where(sql.And(preds...))
	}
	query, args := up.Query()
	return q.execBulk(ctx, conn, "update all", query, args)
}

// DeleteAll deletes every matching row with a single statement and
// returns the number of rows deleted. Rows are removed even when the
// entity type soft deletes, and no hooks run.
func (q *Query) DeleteAll(ctx context.Context) (int64, error) {
	if err := q.bulk(dream.OpDeleteAll); err != nil {
		return 0, err
	}
	if err := q.authorizeBulk(ctx, dream.OpDeleteAll, nil); err != nil {
		return 0, err
	}
	conn, d, _ := q.conn(ctx, router.Write)
	preds, err := q.predicates(ctx, q.compiler(d, true))
	if err != nil {
		return 0, err
	}
	del := sql.Dialect(d).Delete(q.entity.Table)
	if len(preds) > 0 {
		del.Where(sql.And(preds...))
	}
	query, args := del.Query()
	return q.execBulk(ctx, conn, "delete all", query, args)
}

// bulk rejects the query shapes a single UPDATE or DELETE cannot express.
func (q *Query) bulk(op dream.Op) error {
	if q.err != nil {
		return q.err
	}
	illegal := func(reason string) error {
		return &dream.IllegalBulkOperationError{Entity: q.entity.Name, Op: op, Reason: reason}
	}
	switch {
	case q.scope != nil:
		return illegal("the query is scoped to an association")
	case len(q.joins) > 0:
		return illegal("the query joins associations")
	case len(q.preload) > 0 || len(q.hydrate) > 0:
		return illegal("the query preloads associations")
	case q.limit != nil || q.offset != nil:
		return illegal("the query is paginated")
	}
	return nil
}

func (q *Query) execBulk(ctx context.Context, conn dialect.ExecQuerier, op, query string, args []any) (int64, error) {
	var res sql.Result
	if err := conn.Exec(ctx, query, args, &res); err != nil {
		return 0, q.wrap(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, q.wrap(op, err)
	}
	q.c.logger.DebugContext(ctx, "client: bulk write", "entity", q.entity.Name, "op", op, "rows", n)
	if n > 0 {
		q.invalidate(ctx)
	}
	return n, nil
}

// invalidate drops the cached reads of the queried table, after the
// commit when the write runs in a transaction.
func (q *Query) invalidate(ctx context.Context) {
	c := q.c.cache
	if c == nil {
		return
	}
	prefix := dream.TablePrefix(q.entity.Table)
	if tx := transaction(ctx, q.tx); tx != nil {
		tx.Defer("invalidate "+q.entity.Table, func(ctx context.Context) error {
			return c.DeletePrefix(ctx, prefix)
		})
		return
	}
	if err := c.DeletePrefix(ctx, prefix); err != nil {
		q.c.logger.WarnContext(ctx, "client: cache invalidation failed", "table", q.entity.Table, "error", err)
	}
}

func (q *Query) authorizeBulk(ctx context.Context, op dream.Op, values map[string]any) error {
	p := q.entity.Policy()
	if p == nil {
		return nil
	}
	m := bulkMutation{entity: q.entity.Name, op: op, values: values}
	return privacy.Denied(q.entity.Name, op.String(), p.EvalMutation(ctx, m))
}

// bulkMutation exposes a bulk write to privacy rules. It has no old
// values.
type bulkMutation struct {
	entity string
	op     dream.Op
	values map[string]any
}

func (m bulkMutation) Entity() string { return m.entity }

func (m bulkMutation) Op() dream.Op { return m.op }

func (m bulkMutation) Field(name string) (any, bool) {
	v, ok := m.values[name]
	return v, ok
}

func (bulkMutation) OldField(string) (any, bool) { return nil, false }

func (m bulkMutation) ChangedFields() []string {
	cols := make([]string, 0, len(m.values))
	for col := range m.values {
		cols = append(cols, col)
	}
	slices.Sort(cols)
	return cols
}

var _ dream.Mutation = bulkMutation{}

func cloneValues(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
