// Package sqlgraph compiles resolved association plans into SQL. It
// offers three strategies over one plan: inner joins filtering the root
// rows, a single left-join query hydrating the nested records, and
// batched preloading with one IN query per step.
package sqlgraph

import (
	"fmt"
	"log/slog"

	dream "github.com/rvohealth/dream-sub006"
	"github.com/rvohealth/dream-sub006/dialect/sql"
	"github.com/rvohealth/dream-sub006/graph"
	"github.com/rvohealth/dream-sub006/schema"
	"github.com/rvohealth/dream-sub006/schema/where"
)

// DefaultBatchSize is the default number of keys per preload IN list.
const DefaultBatchSize = 1000

// Compiler compiles plans for one dialect.
type Compiler struct {
	Dialect string
	// Passthrough holds the values referenced by where.Passthrough.
	Passthrough map[string]any
	// BypassScopes names default scopes left out of every step.
	BypassScopes []string
	// BypassAllScopes leaves out every default scope.
	BypassAllScopes bool
	// Parallelism bounds the concurrent queries of one preload level.
	// Zero runs the steps of a level all at once.
	Parallelism int
	// BatchSize bounds the keys of one preload IN list.
	BatchSize int
	Logger    *slog.Logger
}

func (c *Compiler) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Select returns a selector over the table of e under alias.
func (c *Compiler) Select(e *schema.EntityType, alias string) *sql.Selector {
	return sql.Dialect(c.Dialect).Select().From(sql.Table(e.Table).As(alias))
}

// Columns returns the columns of e qualified by alias. Variant entities
// select the columns of their own type only.
func Columns(e *schema.EntityType, alias string) []string {
	cols := e.TableColumns()
	if e.IsVariant() {
		cols = e.Columns()
	}
	out := make([]string, len(cols))
	for i, col := range cols {
		out[i] = alias + "." + col.Column()
	}
	return out
}

// Root compiles the predicate restricting root rows of e: its default
// scopes and, for a variant, its discriminator.
func (c *Compiler) Root(e *schema.EntityType, alias string) (*sql.Predicate, error) {
	preds := make([]*sql.Predicate, 0, 2)
	if col, val, ok := e.Discriminator(); ok {
		preds = append(preds, sql.EQ(alias+"."+col, val))
	}
	p, err := c.Scopes(e, alias, e.Scopes())
	if err != nil {
		return nil, err
	}
	if p != nil {
		preds = append(preds, p)
	}
	if len(preds) == 0 {
		return nil, nil
	}
	return sql.And(preds...), nil
}

// on compiles the join predicate of step s for target entity t.
func (c *Compiler) on(plan *graph.Plan, s *graph.Step, t *schema.EntityType) (*sql.Predicate, error) {
	parent := plan.Alias(s.Parent)
	preds := []*sql.Predicate{
		sql.ColumnsEQ(parent+"."+s.ParentColumn, s.Alias+"."+s.TargetColumn(t)),
	}
	if s.ParentTypeColumn != "" {
		preds = append(preds, sql.EQ(parent+"."+s.ParentTypeColumn, t.Base().Name))
	}
	for _, sc := range s.Self {
		preds = append(preds, sql.ColumnsEQ(s.Alias+"."+sc.Column, plan.Alias(s.Origin)+"."+sc.OriginColumn))
	}
	p, err := c.conditions(s, t)
	if err != nil {
		return nil, err
	}
	return sql.And(append(preds, p)...), nil
}

// conditions compiles the row conditions of step s: the type restriction,
// default scopes and association and caller conditions.
func (c *Compiler) conditions(s *graph.Step, t *schema.EntityType) (*sql.Predicate, error) {
	var preds []*sql.Predicate
	if s.TypeColumn != "" {
		preds = append(preds, sql.EQ(s.Alias+"."+s.TypeColumn, s.TypeValue))
	}
	scopes := s.Scopes
	if s.Polymorphic() {
		scopes = t.Scopes()
	}
	p, err := c.Scopes(t, s.Alias, scopes)
	if err != nil {
		return nil, err
	}
	preds = append(preds, p)
	if p, err = c.Clause(t, s.Alias, s.On); err != nil {
		return nil, c.stepError(s, err)
	}
	preds = append(preds, p)
	if p, err = c.Not(t, s.Alias, s.AndNot); err != nil {
		return nil, c.stepError(s, err)
	}
	preds = append(preds, p)
	if p, err = c.Any(t, s.Alias, s.AndAny); err != nil {
		return nil, c.stepError(s, err)
	}
	preds = append(preds, p)
	var out []*sql.Predicate
	for _, p := range preds {
		if p != nil {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return sql.And(out...), nil
}

func (c *Compiler) stepError(s *graph.Step, err error) error {
	if dream.IsMissingPassthroughValue(err) {
		return err
	}
	return fmt.Errorf("sqlgraph: step %s: %w", s.Name, err)
}

func ambiguous(s *graph.Step) error {
	a := s.Association
	return &dream.AmbiguousPolymorphicError{Entity: a.Owner.Name, Association: a.Name, Candidates: a.CandidateNames()}
}

// FilterQuery adds an inner join per step to sel, whose FROM table must be
// the plan root under the root alias. Root rows reached through several
// list rows are returned once.
func (c *Compiler) FilterQuery(sel *sql.Selector, plan *graph.Plan) error {
	distinct := false
	for _, s := range plan.Steps {
		if s.Polymorphic() {
			return ambiguous(s)
		}
		p, err := c.on(plan, s, s.Entity)
		if err != nil {
			return err
		}
		sel.Join(sql.Table(s.Entity.Table).As(s.Alias)).OnP(p)
		distinct = distinct || s.Association.Kind.Many()
	}
	if distinct {
		sel.Distinct()
	}
	return nil
}

// AssociationQuery returns a selector over the rows the last visible step
// of plan reaches from the root row with primary key id, and that step.
// The selected columns carry their plain names.
func (c *Compiler) AssociationQuery(plan *graph.Plan, id any) (*sql.Selector, *graph.Step, error) {
	last := plan.Last()
	if last == nil {
		return nil, nil, fmt.Errorf("sqlgraph: empty plan for %s", plan.Root.Name)
	}
	if last.Polymorphic() {
		return nil, nil, ambiguous(last)
	}
	sel := c.Select(plan.Root, plan.RootAlias)
	id, err := plan.Root.Encode(plan.Root.PrimaryKey.Column(), id)
	if err != nil {
		return nil, nil, err
	}
	sel.Where(sql.EQ(plan.RootAlias+"."+plan.Root.PrimaryKey.Column(), id))
	for _, s := range plan.Steps {
		p, err := c.on(plan, s, s.Entity)
		if err != nil {
			return nil, nil, err
		}
		sel.Join(sql.Table(s.Entity.Table).As(s.Alias)).OnP(p)
	}
	sel.Select()
	for _, col := range Columns(last.Entity, last.Alias) {
		sel.AppendSelect(col)
	}
	if len(plan.Steps) > 1 {
		sel.Distinct()
	}
	sel.OrderBy(orderTerms(last.Alias, last.Entity, last.Order)...)
	return sel, last, nil
}

func orderTerms(alias string, e *schema.EntityType, order []where.Order) []string {
	terms := make([]string, 0, len(order)+1)
	for _, o := range order {
		if o.Desc {
			terms = append(terms, sql.Desc(alias+"."+o.Column))
		} else {
			terms = append(terms, sql.Asc(alias+"."+o.Column))
		}
	}
	return append(terms, sql.Asc(alias+"."+e.PrimaryKey.Column()))
}
