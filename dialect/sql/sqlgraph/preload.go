package sqlgraph

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rvohealth/dream-sub006/contrib/dataloader"
	"github.com/rvohealth/dream-sub006/dialect"
	"github.com/rvohealth/dream-sub006/dialect/sql"
	"github.com/rvohealth/dream-sub006/graph"
	"github.com/rvohealth/dream-sub006/schema"
)

// Preload loads every step of plan onto roots with one IN query per step
// and key batch, level by level. Steps of one level run concurrently
// unless conn is a transaction, which serializes them.
func (c *Compiler) Preload(ctx context.Context, conn dialect.ExecQuerier, roots []*schema.Record, plan *graph.Plan) error {
	if len(roots) == 0 || len(plan.Steps) == 0 {
		return nil
	}
	l := &loader{
		Compiler: c,
		conn:     conn,
		plan:     plan,
		rows:     make([][]*schema.Record, len(plan.Steps)+1),
		links:    make([]map[link][]*schema.Record, len(plan.Steps)),
		identity: make(map[identity]*schema.Record),
	}
	l.rows[0] = roots
	for _, r := range roots {
		l.intern(r)
	}
	limit := c.Parallelism
	if _, ok := conn.(dialect.Tx); ok {
		limit = 1
	}
	for _, level := range plan.Levels() {
		g, ctx := errgroup.WithContext(ctx)
		if limit > 0 {
			g.SetLimit(limit)
		}
		for _, s := range level {
			g.Go(func() error {
				return l.load(ctx, s)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	for _, s := range plan.Visible() {
		l.graft(s)
	}
	return nil
}

// link keys the rows of a step by the type and value their parent rows
// reference them with.
type link struct {
	typ string
	key any
}

// identity is a database row: the table it lives in and its key.
type identity struct {
	table string
	key   any
}

type loader struct {
	*Compiler
	conn dialect.ExecQuerier
	plan *graph.Plan
	// rows[0] holds the roots, rows[i+1] the rows of step i.
	rows [][]*schema.Record
	// links[i] groups the rows of step i by link.
	links []map[link][]*schema.Record

	// identity holds one instance per row loaded by any step, so a row
	// reached through two paths is the same *schema.Record.
	mu       sync.Mutex
	identity map[identity]*schema.Record
}

// intern returns the instance already loaded for the row of r, or
// registers r as that instance.
func (l *loader) intern(r *schema.Record) *schema.Record {
	id := r.ID()
	if id == nil {
		return r
	}
	k := identity{table: r.Entity().Base().Table, key: schema.Key(id)}
	l.mu.Lock()
	defer l.mu.Unlock()
	if known, ok := l.identity[k]; ok {
		return known
	}
	l.identity[k] = r
	return r
}

func (l *loader) parents(s *graph.Step) []*schema.Record { return l.rows[s.Parent+1] }

// load fetches the rows of step s. Each call writes only the slots of s.
func (l *loader) load(ctx context.Context, s *graph.Step) error {
	targets := make(map[*schema.EntityType][]*schema.Record)
	parents := l.parents(s)
	switch {
	case s.Polymorphic():
		for _, t := range s.Candidates {
			for _, p := range parents {
				if typ, _ := p.Get(s.ParentTypeColumn).(string); typ == t.Base().Name {
					targets[t] = append(targets[t], p)
				}
			}
		}
	case s.ParentTypeColumn != "":
		for _, p := range parents {
			if typ, _ := p.Get(s.ParentTypeColumn).(string); typ == s.ParentTypeValue {
				targets[s.Entity] = append(targets[s.Entity], p)
			}
		}
	default:
		targets[s.Entity] = parents
	}
	var (
		rows  []*schema.Record
		links = make(map[link][]*schema.Record)
	)
	ts := s.Candidates
	if !s.Polymorphic() {
		ts = []*schema.EntityType{s.Entity}
	}
	for _, t := range ts {
		recs, err := l.fetch(ctx, s, t, targets[t])
		if err != nil {
			return err
		}
		typ := ""
		if s.ParentTypeColumn != "" {
			typ = t.Base().Name
		}
		col := s.TargetColumn(t)
		for _, r := range recs {
			k := link{typ: typ, key: schema.Key(r.Get(col))}
			links[k] = append(links[k], r)
		}
		rows = append(rows, recs...)
	}
	l.rows[s.Index+1] = rows
	l.links[s.Index] = links
	return nil
}

// fetch queries the rows of entity t referenced by parents, in batches.
func (l *loader) fetch(ctx context.Context, s *graph.Step, t *schema.EntityType, parents []*schema.Record) ([]*schema.Record, error) {
	cond, err := l.conditions(s, t)
	if err != nil {
		return nil, err
	}
	keyOf := func(r *schema.Record) any { return schema.Key(r.Get(s.ParentColumn)) }
	keys := dataloader.UniqueKeys(parents, keyOf)
	if len(keys) == 0 {
		return nil, nil
	}
	first := dataloader.IndexByKey(parents, keyOf)
	col := s.TargetColumn(t)
	self, err := l.selfFilter(s, t)
	if err != nil {
		return nil, err
	}
	size := l.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	seen := make(map[*schema.Record]bool)
	var out []*schema.Record
	for _, batch := range dataloader.Chunk(keys, size) {
		values := make([]any, len(batch))
		for i, k := range batch {
			if values[i], err = t.Encode(col, first[k].Get(s.ParentColumn)); err != nil {
				return nil, err
			}
		}
		sel := l.Select(t, s.Alias).Select(Columns(t, s.Alias)...)
		sel.Where(sql.And(append([]*sql.Predicate{sql.In(s.Alias+"."+col, values...), cond}, self...)...))
		sel.OrderBy(orderTerms(s.Alias, t, s.Order)...)
		query, args := sel.Query()
		if err := sel.Err(); err != nil {
			return nil, err
		}
		l.logger().DebugContext(ctx, "sqlgraph: preload", "step", s.Name, "entity", t.Name, "keys", len(batch))
		rows := &sql.Rows{}
		if err := l.conn.Query(ctx, query, args, rows); err != nil {
			return nil, fmt.Errorf("sqlgraph: preloading %s: %w", s.Name, err)
		}
		maps, err := sql.ScanMaps(rows)
		if err != nil {
			return nil, err
		}
		for _, m := range maps {
			rec, err := t.Hydrate(m)
			if err != nil {
				return nil, err
			}
			if rec = l.intern(rec); seen[rec] {
				continue
			}
			seen[rec] = true
			out = append(out, rec)
		}
	}
	return out, nil
}

// selfFilter narrows the rows of s to those whose self columns hold a
// value of some origin row. The exact pairing is checked when grafting.
func (l *loader) selfFilter(s *graph.Step, t *schema.EntityType) ([]*sql.Predicate, error) {
	var preds []*sql.Predicate
	origins := l.rows[s.Origin+1]
	for _, sc := range s.Self {
		seen := make(map[any]bool)
		var values []any
		for _, o := range origins {
			v := o.Get(sc.OriginColumn)
			if v == nil || seen[schema.Key(v)] {
				continue
			}
			seen[schema.Key(v)] = true
			enc, err := t.Encode(sc.Column, v)
			if err != nil {
				return nil, err
			}
			values = append(values, enc)
		}
		preds = append(preds, sql.In(s.Alias+"."+sc.Column, values...))
	}
	return preds, nil
}

// walk is a row reached from an origin row, with the rows of the chain
// steps it was reached through.
type walk struct {
	rec *schema.Record
	via []*schema.Record
}

// graft stores the rows of visible step s on the rows of the step it is
// grafted to, following the chain of hidden steps between them.
func (l *loader) graft(s *graph.Step) {
	chain := l.plan.Chain(s)
	for _, origin := range l.rows[s.GraftTo+1] {
		frontier := []walk{{rec: origin}}
		for pos, cs := range chain {
			var next []walk
			for _, w := range frontier {
				for _, child := range l.follow(cs, w.rec) {
					via := append(append([]*schema.Record(nil), w.via...), child)
					if !l.selfHolds(cs, chain, origin, via[:pos], child) {
						continue
					}
					next = append(next, walk{rec: child, via: via})
				}
			}
			frontier = next
		}
		seen := make(map[*schema.Record]bool, len(frontier))
		var children []*schema.Record
		for _, w := range frontier {
			if !seen[w.rec] {
				seen[w.rec] = true
				children = append(children, w.rec)
			}
		}
		graft(origin, s, children)
	}
}

// follow returns the rows of step s linked to the parent row p.
func (l *loader) follow(s *graph.Step, p *schema.Record) []*schema.Record {
	typ := ""
	if s.ParentTypeColumn != "" {
		typ, _ = p.Get(s.ParentTypeColumn).(string)
	}
	return l.links[s.Index][link{typ: typ, key: schema.Key(p.Get(s.ParentColumn))}]
}

// selfHolds checks the self conditions of chain step cs for child against
// the row of the step they compare with.
func (l *loader) selfHolds(cs *graph.Step, chain []*graph.Step, origin *schema.Record, via []*schema.Record, child *schema.Record) bool {
	if len(cs.Self) == 0 {
		return true
	}
	against := origin
	for i, st := range chain[:len(via)] {
		if st.Index == cs.Origin {
			against = via[i]
		}
	}
	for _, sc := range cs.Self {
		v := against.Get(sc.OriginColumn)
		if v == nil || !schema.Equal(child.Get(sc.Column), v) {
			return false
		}
	}
	return true
}
