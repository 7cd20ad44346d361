package client

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	dream "github.com/rvohealth/dream-sub006"
	"github.com/rvohealth/dream-sub006/cache"
	"github.com/rvohealth/dream-sub006/dialect"
	"github.com/rvohealth/dream-sub006/dialect/sql"
	"github.com/rvohealth/dream-sub006/dialect/sql/sqlgraph"
	"github.com/rvohealth/dream-sub006/graph"
	"github.com/rvohealth/dream-sub006/privacy"
	"github.com/rvohealth/dream-sub006/router"
	"github.com/rvohealth/dream-sub006/schema"
	"github.com/rvohealth/dream-sub006/schema/where"
	"github.com/rvohealth/dream-sub006/txn"
)

// Query builds a read of one entity type. Builder methods modify the
// query and return it; use Clone to branch.
type Query struct {
	c      *Client
	entity *schema.EntityType
	err    error

	where    []where.Clause
	whereNot []where.Clause
	whereAny [][]where.Clause
	joins    []graph.Path
	preload  []graph.Path
	hydrate  []graph.Path
	order    []where.Order
	limit    *int
	offset   *int

	passthrough map[string]any
	bypass      []string
	bypassAll   bool
	target      router.Target
	tx          *txn.Context
	cached      bool

	// scope restricts the rows to an association of one record.
	scope *scope
}

type scope struct {
	rec  *schema.Record
	plan *graph.Plan
}

// Query starts a query over the named entity type. An unknown name is
// reported by the terminal methods.
func (c *Client) Query(entity string) *Query {
	e, err := c.reg.Entity(entity)
	return &Query{c: c, entity: e, err: err}
}

// QueryEntity starts a query over e.
func (c *Client) QueryEntity(e *schema.EntityType) *Query {
	return &Query{c: c, entity: e}
}

// AssociationQuery starts a query over the records the association path
// reaches from rec, such as "collars" or "collars.balloon". Association
// conditions, default scopes and ordering apply; the query can be
// narrowed further but not used for bulk writes.
func (c *Client) AssociationQuery(rec *schema.Record, path string) *Query {
	q := &Query{c: c}
	if !rec.IsPersisted() {
		q.err = fmt.Errorf("client: association query on unsaved %s", rec.Entity().Name)
		return q
	}
	plan, err := graph.Resolver{}.ResolveFrom(rec, graph.ParsePath(path))
	if err != nil {
		q.err = err
		return q
	}
	last := plan.Last()
	if last == nil {
		q.err = fmt.Errorf("client: empty association path %q", path)
		return q
	}
	q.entity = last.Entity
	q.scope = &scope{rec: rec, plan: plan}
	return q
}

// Load preloads the association paths onto recs, which must share one
// entity type.
func (c *Client) Load(ctx context.Context, recs []*schema.Record, paths ...graph.Path) error {
	if len(recs) == 0 {
		return nil
	}
	return c.QueryEntity(recs[0].Entity()).Preload(paths...).load(ctx, recs)
}

// Clone returns a copy of the query.
func (q *Query) Clone() *Query {
	c := *q
	c.where = slices.Clone(q.where)
	c.whereNot = slices.Clone(q.whereNot)
	c.whereAny = slices.Clone(q.whereAny)
	c.joins = slices.Clone(q.joins)
	c.preload = slices.Clone(q.preload)
	c.hydrate = slices.Clone(q.hydrate)
	c.order = slices.Clone(q.order)
	c.bypass = slices.Clone(q.bypass)
	c.passthrough = maps.Clone(q.passthrough)
	return &c
}

// Where keeps the rows matching every condition of cl.
func (q *Query) Where(cl where.Clause) *Query {
	if len(cl) > 0 {
		q.where = append(q.where, cl)
	}
	return q
}

// WhereNot drops the rows matching cl. Rows whose column is NULL are kept
// unless cl tests for NULL itself.
func (q *Query) WhereNot(cl where.Clause) *Query {
	if len(cl) > 0 {
		q.whereNot = append(q.whereNot, cl)
	}
	return q
}

// WhereAny keeps the rows matching at least one clause.
func (q *Query) WhereAny(cls ...where.Clause) *Query {
	q.whereAny = append(q.whereAny, cls)
	return q
}

// Joins keeps the rows reaching at least one associated row along each
// path. Conditions attached to the path segments filter the joined rows.
func (q *Query) Joins(paths ...graph.Path) *Query {
	q.joins = append(q.joins, paths...)
	return q
}

// Preload loads the association paths onto the result with one query per
// path step.
func (q *Query) Preload(paths ...graph.Path) *Query {
	q.preload = append(q.preload, paths...)
	return q
}

// LeftJoinPreload loads the association paths onto the result within the
// query itself, using left joins.
func (q *Query) LeftJoinPreload(paths ...graph.Path) *Query {
	q.hydrate = append(q.hydrate, paths...)
	return q
}

// Order sorts the result. The primary key breaks ties.
func (q *Query) Order(terms ...where.Order) *Query {
	q.order = append(q.order, terms...)
	return q
}

// Limit bounds the number of returned rows.
func (q *Query) Limit(n int) *Query {
	q.limit = &n
	return q
}

// Offset skips the first n rows.
func (q *Query) Offset(n int) *Query {
	q.offset = &n
	return q
}

// Passthrough supplies values for where.Passthrough references in
// association conditions and scopes.
func (q *Query) Passthrough(values map[string]any) *Query {
	if q.passthrough == nil {
		q.passthrough = make(map[string]any, len(values))
	}
	maps.Copy(q.passthrough, values)
	return q
}

// RemoveDefaultScope lifts the named default scopes from the query and
// every association it loads or joins.
func (q *Query) RemoveDefaultScope(names ...string) *Query {
	q.bypass = append(q.bypass, names...)
	return q
}

// RemoveAllDefaultScopes lifts every default scope.
func (q *Query) RemoveAllDefaultScopes() *Query {
	q.bypassAll = true
	return q
}

// Connection overrides the connection the query reads from. It has no
// effect inside a transaction.
func (q *Query) Connection(t router.Target) *Query {
	q.target = t
	return q
}

// Tx runs the query inside tx.
func (q *Query) Tx(tx *txn.Context) *Query {
	q.tx = tx
	return q
}

// Cache serves the rows from the client cache when possible and stores
// them otherwise. Only queries reading a single table are cached; writes
// to the table invalidate them.
func (q *Query) Cache() *Query {
	q.cached = true
	return q
}

// Entity returns the queried entity type.
func (q *Query) Entity() *schema.EntityType { return q.entity }

func (q *Query) alias() string { return q.entity.Table }

func (q *Query) pk() string { return q.alias() + "." + q.entity.PrimaryKey.Column() }

// conn returns the connection serving the query and its dialect.
func (q *Query) conn(ctx context.Context, kind router.Kind) (dialect.ExecQuerier, string, bool) {
	if tx := transaction(ctx, q.tx); tx != nil {
		d := tx.Dialect()
		if d == "" {
			d = q.c.router.Primary().Dialect()
		}
		return tx, d, true
	}
	t := q.c.router.Route(kind, q.entity, q.target, false)
	drv := q.c.router.Driver(t)
	q.c.logger.DebugContext(ctx, "client: route", "entity", q.entity.Name, "kind", kind.String(), "target", t.String())
	return drv, drv.Dialect(), false
}

func (q *Query) compiler(d string, inTx bool) *sqlgraph.Compiler {
	c := &sqlgraph.Compiler{
		Dialect:         d,
		Passthrough:     q.passthrough,
		BypassScopes:    q.bypass,
		BypassAllScopes: q.bypassAll,
		Parallelism:     q.c.parallelism,
		BatchSize:       q.c.batchSize,
		Logger:          q.c.logger,
	}
	if inTx {
		c.Parallelism = 1
	}
	return c
}

// predicates compiles the row conditions of the root: default scopes,
// discriminator, privacy filters, caller conditions and association
// scope.
func (q *Query) predicates(ctx context.Context, comp *sqlgraph.Compiler) ([]*sql.Predicate, error) {
	if q.err != nil {
		return nil, q.err
	}
	e, alias := q.entity, q.alias()
	filter, err := q.authorize(ctx)
	if err != nil {
		return nil, err
	}
	var preds []*sql.Predicate
	add := func(p *sql.Predicate, err error) error {
		if err != nil {
			return err
		}
		if p != nil {
			preds = append(preds, p)
		}
		return nil
	}
	if err := add(comp.Root(e, alias)); err != nil {
		return nil, err
	}
	for _, cl := range append(slices.Clone(q.where), filter) {
		if err := add(comp.Clause(e, alias, cl)); err != nil {
			return nil, err
		}
	}
	for _, cl := range q.whereNot {
		if err := add(comp.Not(e, alias, cl)); err != nil {
			return nil, err
		}
	}
	for _, cls := range q.whereAny {
		if err := add(comp.Any(e, alias, cls)); err != nil {
			return nil, err
		}
	}
	if q.scope != nil {
		sub, last, err := comp.AssociationQuery(q.scope.plan, q.scope.rec.ID())
		if err != nil {
			return nil, err
		}
		sub.ClearOrder().Select(last.Alias + "." + e.PrimaryKey.Column())
		preds = append(preds, sql.InSelect(q.pk(), sub))
	}
	return preds, nil
}

// authorize evaluates the read policy of the entity type and returns the
// conditions its filters added.
func (q *Query) authorize(ctx context.Context) (where.Clause, error) {
	p := q.entity.Policy()
	if p == nil {
		return nil, nil
	}
	v := &view{entity: q.entity.Name}
	if err := privacy.Denied(q.entity.Name, "query", p.EvalQuery(ctx, v)); err != nil {
		return nil, err
	}
	return v.filter, nil
}

// view exposes a pending read to privacy rules.
type view struct {
	entity string
	filter where.Clause
}

func (v *view) Entity() string { return v.entity }

func (v *view) WhereP(column string, value any) {
	if v.filter == nil {
		v.filter = make(where.Clause)
	}
	v.filter[column] = value
}

var _ dream.Query = (*view)(nil)

// selector returns the filtered root selector without a column list.
func (q *Query) selector(ctx context.Context, comp *sqlgraph.Compiler) (*sql.Selector, error) {
	preds, err := q.predicates(ctx, comp)
	if err != nil {
		return nil, err
	}
	sel := comp.Select(q.entity, q.alias())
	for _, p := range preds {
		sel.Where(p)
	}
	if len(q.joins) > 0 {
		plan, err := graph.Resolve(q.entity, q.joins...)
		if err != nil {
			return nil, err
		}
		if err := comp.FilterQuery(sel, plan); err != nil {
			return nil, err
		}
	}
	return sel, nil
}

// ordering returns the caller ordering, or the association ordering of a
// scoped query.
func (q *Query) ordering() []where.Order {
	if len(q.order) == 0 && q.scope != nil {
		return q.scope.plan.Last().Order
	}
	return q.order
}

func (q *Query) orderTerms() []string {
	order := q.ordering()
	terms := make([]string, 0, len(order))
	for _, o := range order {
		col := q.alias() + "." + o.Column
		if o.Desc {
			terms = append(terms, sql.Desc(col))
		} else {
			terms = append(terms, sql.Asc(col))
		}
	}
	return terms
}

func (q *Query) page(sel *sql.Selector) {
	if q.limit != nil {
		sel.Limit(*q.limit)
	}
	if q.offset != nil {
		sel.Offset(*q.offset)
	}
}

func (q *Query) columns() []string {
	cols := q.entity.TableColumns()
	if q.entity.IsVariant() {
		cols = q.entity.Columns()
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Column()
	}
	return names
}

// All returns the matching records with the requested associations
// loaded.
func (q *Query) All(ctx context.Context) ([]*schema.Record, error) {
	if q.err != nil {
		return nil, q.err
	}
	conn, d, inTx := q.conn(ctx, router.Read)
	comp := q.compiler(d, inTx)
	var (
		recs []*schema.Record
		err  error
	)
	if len(q.hydrate) > 0 {
		recs, err = q.hydrated(ctx, conn, comp, inTx)
	} else {
		recs, err = q.rows(ctx, conn, comp, inTx)
	}
	if err != nil {
		return nil, err
	}
	if err := q.preloadOn(ctx, conn, comp, recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func (q *Query) load(ctx context.Context, recs []*schema.Record) error {
	if q.err != nil {
		return q.err
	}
	conn, d, inTx := q.conn(ctx, router.Read)
	return q.preloadOn(ctx, conn, q.compiler(d, inTx), recs)
}

func (q *Query) preloadOn(ctx context.Context, conn dialect.ExecQuerier, comp *sqlgraph.Compiler, recs []*schema.Record) error {
	if len(q.preload) == 0 || len(recs) == 0 {
		return nil
	}
	plan, err := graph.Resolver{Preload: true}.Resolve(q.entity, q.preload...)
	if err != nil {
		return err
	}
	if err := comp.Preload(ctx, conn, recs, plan); err != nil {
		return q.wrap("preload", err)
	}
	return nil
}

// rows runs the plain root query.
func (q *Query) rows(ctx context.Context, conn dialect.ExecQuerier, comp *sqlgraph.Compiler, inTx bool) ([]*schema.Record, error) {
	sel, err := q.selector(ctx, comp)
	if err != nil {
		return nil, err
	}
	for _, col := range q.columns() {
		sel.AppendSelectAs(q.alias()+"."+col, col)
	}
	sel.OrderBy(append(q.orderTerms(), sql.Asc(q.pk()))...)
	q.page(sel)
	query, args := sel.Query()
	if err := sel.Err(); err != nil {
		return nil, err
	}
	cacheable := q.cached && !inTx && q.c.cache != nil && len(q.joins) == 0 && q.scope == nil
	var key string
	if cacheable {
		key = dream.CacheKey{Table: q.entity.Table, Operation: "all", Query: query, Args: args}.String()
		if rows, ok := q.fromCache(ctx, key); ok {
			return q.records(rows)
		}
	}
	rows := &sql.Rows{}
	if err := conn.Query(ctx, query, args, rows); err != nil {
		return nil, q.wrap("all", err)
	}
	data, err := sql.ScanMaps(rows)
	if err != nil {
		return nil, q.wrap("all", err)
	}
	if cacheable {
		q.toCache(ctx, key, data)
	}
	return q.records(data)
}

func (q *Query) records(rows []map[string]any) ([]*schema.Record, error) {
	recs := make([]*schema.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := q.entity.Hydrate(row)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// hydrated runs the left-join query. Joins and pagination select the root
// keys first so that they apply to root rows rather than joined rows.
func (q *Query) hydrated(ctx context.Context, conn dialect.ExecQuerier, comp *sqlgraph.Compiler, inTx bool) ([]*schema.Record, error) {
	plan, err := graph.Resolve(q.entity, q.hydrate...)
	if err != nil {
		return nil, err
	}
	var (
		sel  *sql.Selector
		keys []any
	)
	if len(q.joins) > 0 || q.limit != nil || q.offset != nil {
		roots, err := q.rows(ctx, conn, comp, inTx)
		if err != nil {
			return nil, err
		}
		if len(roots) == 0 {
			return roots, nil
		}
		pk := q.entity.PrimaryKey.Column()
		for _, r := range roots {
			k, err := q.entity.Encode(pk, r.ID())
			if err != nil {
				return nil, err
			}
			keys = append(keys, k)
		}
		sel = comp.Select(q.entity, q.alias()).Where(sql.In(q.pk(), keys...))
	} else if sel, err = q.selector(ctx, comp); err != nil {
		return nil, err
	}
	sel.OrderBy(q.orderTerms()...)
	h, err := comp.HydratingQuery(sel, plan)
	if err != nil {
		return nil, err
	}
	query, args := sel.Query()
	if err := sel.Err(); err != nil {
		return nil, err
	}
	rows := &sql.Rows{}
	if err := conn.Query(ctx, query, args, rows); err != nil {
		return nil, q.wrap("all", err)
	}
	recs, err := h.Scan(rows)
	if err != nil {
		return nil, q.wrap("all", err)
	}
	return recs, nil
}

func (q *Query) fromCache(ctx context.Context, key string) ([]map[string]any, bool) {
	b, err := q.c.cache.Get(ctx, key)
	if err != nil || b == nil {
		if err != nil {
			q.c.logger.WarnContext(ctx, "client: cache get failed", "entity", q.entity.Name, "error", err)
		}
		return nil, false
	}
	rows, err := cache.DecodeRows(b)
	if err != nil {
		q.c.logger.WarnContext(ctx, "client: cache entry unreadable", "entity", q.entity.Name, "error", err)
		return nil, false
	}
	return rows, true
}

func (q *Query) toCache(ctx context.Context, key string, rows []map[string]any) {
	b, err := cache.EncodeRows(rows)
	if err == nil {
		err = q.c.cache.Set(ctx, key, b, q.c.cacheTTL)
	}
	if err != nil {
		q.c.logger.WarnContext(ctx, "client: cache set failed", "entity", q.entity.Name, "error", err)
	}
}

// First returns the first matching record, ordered by primary key unless
// an order is given.
func (q *Query) First(ctx context.Context) (*schema.Record, error) {
	if q.err != nil {
		return nil, q.err
	}
	recs, err := q.Clone().Limit(1).All(ctx)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, dream.NewNotFoundError(q.entity.Name)
	}
	return recs[0], nil
}

// Find returns the matching record with primary key id.
func (q *Query) Find(ctx context.Context, id any) (*schema.Record, error) {
	if q.err != nil {
		return nil, q.err
	}
	rec, err := q.Clone().Where(where.Clause{q.entity.PrimaryKey.Column(): id}).First(ctx)
	if dream.IsNotFound(err) {
		return nil, dream.NewNotFoundErrorWithID(q.entity.Name, id)
	}
	return rec, err
}

// Count returns the number of matching records. Limit and offset are
// ignored.
func (q *Query) Count(ctx context.Context) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	conn, d, inTx := q.conn(ctx, router.Read)
	sel, err := q.selector(ctx, q.compiler(d, inTx))
	if err != nil {
		return 0, err
	}
	if len(q.joins) > 0 {
		sel.Count(q.pk())
	} else {
		sel.Count()
	}
	query, args := sel.Query()
	if err := sel.Err(); err != nil {
		return 0, err
	}
	rows := &sql.Rows{}
	if err := conn.Query(ctx, query, args, rows); err != nil {
		return 0, q.wrap("count", err)
	}
	n, err := sql.ScanInt64(rows)
	if err != nil {
		return 0, q.wrap("count", err)
	}
	return n, nil
}

// Exists reports whether a record matches.
func (q *Query) Exists(ctx context.Context) (bool, error) {
	if q.err != nil {
		return false, q.err
	}
	conn, d, inTx := q.conn(ctx, router.Read)
	sel, err := q.selector(ctx, q.compiler(d, inTx))
	if err != nil {
		return false, err
	}
	sel.Select(q.pk()).Limit(1)
	query, args := sel.Query()
	if err := sel.Err(); err != nil {
		return false, err
	}
	rows := &sql.Rows{}
	if err := conn.Query(ctx, query, args, rows); err != nil {
		return false, q.wrap("exists", err)
	}
	data, err := sql.ScanMaps(rows)
	if err != nil {
		return false, q.wrap("exists", err)
	}
	return len(data) > 0, nil
}

// Pluck returns the decoded values of column for the matching records,
// in result order.
func (q *Query) Pluck(ctx context.Context, column string) ([]any, error) {
	if q.err != nil {
		return nil, q.err
	}
	if _, ok := q.entity.Column(column); !ok {
		return nil, fmt.Errorf("client: %s has no column %s", q.entity.Name, column)
	}
	conn, d, inTx := q.conn(ctx, router.Read)
	sel, err := q.selector(ctx, q.compiler(d, inTx))
	if err != nil {
		return nil, err
	}
	// Ordered columns are selected as well: DISTINCT requires it.
	selected := []string{q.entity.PrimaryKey.Column(), column}
	for _, o := range q.ordering() {
		if !slices.Contains(selected, o.Column) {
			selected = append(selected, o.Column)
		}
	}
	sel.Select()
	for _, col := range selected {
		sel.AppendSelectAs(q.alias()+"."+col, col)
	}
	sel.OrderBy(append(q.orderTerms(), sql.Asc(q.pk()))...)
	q.page(sel)
	query, args := sel.Query()
	if err := sel.Err(); err != nil {
		return nil, err
	}
	rows := &sql.Rows{}
	if err := conn.Query(ctx, query, args, rows); err != nil {
		return nil, q.wrap("pluck", err)
	}
	data, err := sql.ScanMaps(rows)
	if err != nil {
		return nil, q.wrap("pluck", err)
	}
	out := make([]any, len(data))
	for i, m := range data {
		if out[i], err = q.entity.Decode(column, m[column]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (q *Query) wrap(op string, err error) error {
	if err == nil || dream.IsQueryError(err) {
		return err
	}
	return dream.NewQueryError(q.entity.Name, op, err)
}

// ParsePaths parses dotted association paths, as a shorthand for
// graph.ParsePath:
//
//	q.Preload(client.ParsePaths("collars.balloon", "user")...)
func ParsePaths(paths ...string) []graph.Path {
	out := make([]graph.Path, len(paths))
	for i, p := range paths {
		out[i] = graph.ParsePath(strings.TrimSpace(p))
	}
	return out
}
