package persist

import (
	"context"
	"fmt"
	"sort"

	dream "github.com/rvohealth/dream-sub006"
	"github.com/rvohealth/dream-sub006/dialect"
	"github.com/rvohealth/dream-sub006/dialect/sql"
	"github.com/rvohealth/dream-sub006/schema"
)

// insert writes a new row and reads back the stored columns.
func (o *Orchestrator) insert(ctx context.Context, conn dialect.ExecQuerier, rec *schema.Record) error {
	e := rec.Entity()
	d := o.dialect(conn)
	ins := sql.Dialect(d).Insert(e.Table)
	var values []any
	for _, c := range e.Columns() {
		v, ok := rec.Lookup(c.Column())
		if !ok {
			continue
		}
		ev, err := e.Encode(c.Column(), v)
		if err != nil {
			return err
		}
		ins.Columns(c.Column())
		values = append(values, ev)
	}
	if len(values) == 0 {
		ins.Default()
	} else {
		ins.Values(values...)
	}
	if sql.SupportsReturning(d) {
		ins.Returning(e.ColumnNames()...)
		query, args := ins.Query()
		return o.readBack(ctx, conn, rec, query, args)
	}
	query, args := ins.Query()
	var res sql.Result
	if err := conn.Exec(ctx, query, args, &res); err != nil {
		return err
	}
	if rec.ID() == nil {
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		rec.Set(e.PrimaryKey.Column(), id)
	}
	return o.reselect(ctx, conn, rec)
}

// update writes the changed columns of a persisted row.
func (o *Orchestrator) update(ctx context.Context, conn dialect.ExecQuerier, rec *schema.Record) error {
	e := rec.Entity()
	d := o.dialect(conn)
	up := sql.Dialect(d).Update(e.Table)
	for _, col := range rec.Changes().Columns() {
		if _, ok := e.Column(col); !ok {
			continue
		}
		v, err := e.Encode(col, rec.Get(col))
		if err != nil {
			return err
		}
		if v == nil {
			up.SetNull(col)
		} else {
			up.Set(col, v)
		}
	}
	if up.Empty() {
		return nil
	}
	pk, err := wherePK(rec)
	if err != nil {
		return err
	}
	up.Where(pk)
	if sql.SupportsReturning(d) {
		up.Returning(e.ColumnNames()...)
		query, args := up.Query()
		return o.readBack(ctx, conn, rec, query, args)
	}
	query, args := up.Query()
	if err := conn.Exec(ctx, query, args, nil); err != nil {
		return err
	}
	return o.reselect(ctx, conn, rec)
}

// readBack runs a statement returning the columns of the written row.
func (o *Orchestrator) readBack(ctx context.Context, conn dialect.ExecQuerier, rec *schema.Record, query string, args []any) error {
	rows := &sql.Rows{}
	if err := conn.Query(ctx, query, args, rows); err != nil {
		return err
	}
	maps, err := sql.ScanMaps(rows)
	if err != nil {
		return err
	}
	if len(maps) == 0 {
		return dream.NewNotFoundErrorWithID(rec.Entity().Name, rec.ID())
	}
	return rec.Refresh(maps[0])
}

// reselect reads a row back by key on dialects without RETURNING.
func (o *Orchestrator) reselect(ctx context.Context, conn dialect.ExecQuerier, rec *schema.Record) error {
	e := rec.Entity()
	pk, err := wherePK(rec)
	if err != nil {
		return err
	}
	sel := sql.Dialect(o.dialect(conn)).Select(e.ColumnNames()...).From(sql.Table(e.Table)).Where(pk)
	query, args := sel.Query()
	if err := sel.Err(); err != nil {
		return err
	}
	return o.readBack(ctx, conn, rec, query, args)
}

// remove deletes the row of rec.
func (o *Orchestrator) remove(ctx context.Context, conn dialect.ExecQuerier, rec *schema.Record) error {
	pk, err := wherePK(rec)
	if err != nil {
		return err
	}
	query, args := sql.Dialect(o.dialect(conn)).Delete(rec.Entity().Table).Where(pk).Query()
	return conn.Exec(ctx, query, args, nil)
}

// set updates columns of the row of rec without touching its other
// attributes.
func (o *Orchestrator) set(ctx context.Context, conn dialect.ExecQuerier, rec *schema.Record, values map[string]any) error {
	e := rec.Entity()
	up := sql.Dialect(o.dialect(conn)).Update(e.Table)
	for _, col := range sortedColumns(values) {
		v, err := e.Encode(col, values[col])
		if err != nil {
			return err
		}
		if v == nil {
			up.SetNull(col)
		} else {
			up.Set(col, v)
		}
	}
	pk, err := wherePK(rec)
	if err != nil {
		return err
	}
	query, args := up.Where(pk).Query()
	return conn.Exec(ctx, query, args, nil)
}

func wherePK(rec *schema.Record) (*sql.Predicate, error) {
	e := rec.Entity()
	col := e.PrimaryKey.Column()
	id := rec.ID()
	if id == nil {
		return nil, fmt.Errorf("persist: %s has no %s", e.Name, col)
	}
	v, err := e.Encode(col, id)
	if err != nil {
		return nil, err
	}
	return sql.EQ(col, v), nil
}

func sortedColumns(m map[string]any) []string {
	cols := make([]string, 0, len(m))
	for col := range m {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}
