package graph

import (
	"sort"

	"github.com/rvohealth/dream-sub006/schema"
	"github.com/rvohealth/dream-sub006/schema/where"
)

// Root is the step index of the entity a plan starts from.
const Root = -1

// SelfCondition compares a column of the step rows with a column of the
// origin step row.
type SelfCondition struct {
	Column       string
	OriginColumn string
}

// Step is one join of a resolved plan.
type Step struct {
	Index int
	// Parent is the step joined on, or Root.
	Parent int
	// Origin is the step self conditions compare against. It differs from
	// Parent for the source of a through association.
	Origin int
	// GraftTo is the step whose rows receive the rows of a visible step.
	GraftTo int
	// Hidden marks intermediate hops of a through association.
	Hidden bool
	// Name is the attribute the rows are grafted under.
	Name  string
	Alias string
	// Association is the association that produced the step.
	Association *schema.Association
	// Entity is the target entity type. It is nil for a polymorphic
	// belongs-to resolved for preloading without a concrete type, in which
	// case Candidates lists the possible targets.
	Entity     *schema.EntityType
	Candidates []*schema.EntityType
	// Many reports whether the step is grafted as a list.
	Many bool

	// ParentColumn on the parent rows equals Column on the step rows.
	ParentColumn string
	Column       string
	// ParentTypeColumn restricts the parent rows to those naming the step
	// entity, for a polymorphic belongs-to.
	ParentTypeColumn string
	ParentTypeValue  string
	// TypeColumn restricts the step rows to TypeValue.
	TypeColumn string
	TypeValue  string

	On     where.Clause
	AndNot where.Clause
	AndAny []where.Clause
	Scopes []schema.Scope
	Self   []SelfCondition
	Order  []where.Order

	depth int
}

// Depth returns the number of joins between the root and the step.
func (s *Step) Depth() int { return s.depth }

// Polymorphic reports whether the step is loaded per candidate entity.
func (s *Step) Polymorphic() bool { return s.Entity == nil }

// TargetColumn returns the column matched against ParentColumn on rows of
// the target entity t.
func (s *Step) TargetColumn(t *schema.EntityType) string {
	if s.Column != "" {
		return s.Column
	}
	return t.PrimaryKey.Column()
}

// Plan is an ordered list of steps, parents before children.
type Plan struct {
	Root      *schema.EntityType
	RootAlias string
	Steps     []*Step
}

// Step returns the step at index i.
func (p *Plan) Step(i int) *Step { return p.Steps[i] }

// Alias returns the alias of step i, or the root alias.
func (p *Plan) Alias(i int) string {
	if i == Root {
		return p.RootAlias
	}
	return p.Steps[i].Alias
}

// Entity returns the entity of step i, or the root entity.
func (p *Plan) Entity(i int) *schema.EntityType {
	if i == Root {
		return p.Root
	}
	return p.Steps[i].Entity
}

// Visible returns the steps whose rows are grafted onto their parents.
func (p *Plan) Visible() []*Step {
	var out []*Step
	for _, s := range p.Steps {
		if !s.Hidden {
			out = append(out, s)
		}
	}
	return out
}

// Levels groups the steps by depth, shallowest first.
func (p *Plan) Levels() [][]*Step {
	var levels [][]*Step
	for _, s := range p.Steps {
		for len(levels) <= s.depth-1 {
			levels = append(levels, nil)
		}
		levels[s.depth-1] = append(levels[s.depth-1], s)
	}
	return levels
}

// Chain returns the steps joining a visible step to the step it is grafted
// to, in join order and ending with s.
func (p *Plan) Chain(s *Step) []*Step {
	var chain []*Step
	for cur := s; ; cur = p.Steps[cur.Parent] {
		chain = append(chain, cur)
		if cur.Parent == s.GraftTo || cur.Parent == Root {
			break
		}
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// Children returns the visible steps grafted onto step i.
func (p *Plan) Children(i int) []*Step {
	var out []*Step
	for _, s := range p.Steps {
		if !s.Hidden && s.GraftTo == i {
			out = append(out, s)
		}
	}
	return out
}

// Last returns the final visible step of the plan, or nil.
func (p *Plan) Last() *Step {
	for i := len(p.Steps) - 1; i >= 0; i-- {
		if !p.Steps[i].Hidden {
			return p.Steps[i]
		}
	}
	return nil
}

// Refs returns the passthrough names referenced by the step conditions
// and scopes, sorted and deduplicated.
func (p *Plan) Refs() []string {
	seen := make(map[string]bool)
	add := func(c where.Clause) {
		for _, r := range c.Refs() {
			seen[r] = true
		}
	}
	for _, s := range p.Steps {
		add(s.On)
		add(s.AndNot)
		for _, c := range s.AndAny {
			add(c)
		}
		for _, sc := range s.Scopes {
			add(sc.Where)
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
