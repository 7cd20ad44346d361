package graph

import (
	"strings"

	"github.com/rvohealth/dream-sub006/schema/where"
)

// Segment is one association of a path together with the conditions the
// caller attaches to it.
type Segment struct {
	// Name is the association name on the current entity type.
	Name string
	// Alias overrides both the join alias and the name the loaded rows are
	// grafted under. It disambiguates repeated uses of one association.
	Alias string
	// On supplies on-clause values, including required keys.
	On where.Clause
	// And restricts the joined rows.
	And where.Clause
	// AndNot excludes joined rows. Rows whose column is NULL are kept
	// unless the clause itself tests for NULL.
	AndNot where.Clause
	// AndAny keeps joined rows matching at least one clause.
	AndAny []where.Clause
	// Order overrides the association ordering.
	Order []where.Order
	// Type selects the concrete entity of a polymorphic belongs-to.
	Type string
}

// conditioned reports whether the caller attached anything beyond a name.
func (s Segment) conditioned() bool {
	return len(s.On) > 0 || len(s.And) > 0 || len(s.AndNot) > 0 || len(s.AndAny) > 0 || len(s.Order) > 0 || s.Type != ""
}

// graftName returns the attribute the rows of the segment are loaded into.
func (s Segment) graftName() string {
	if s.Alias != "" {
		return s.Alias
	}
	return s.Name
}

// Path is a sequence of association segments walked left to right.
type Path []Segment

// ParsePath builds a path from dotted association names.
//
//	graph.ParsePath("collars.balloon")
func ParsePath(s string) Path {
	if s == "" {
		return nil
	}
	names := strings.Split(s, ".")
	p := make(Path, len(names))
	for i, n := range names {
		p[i] = Segment{Name: strings.TrimSpace(n)}
	}
	return p
}

// Then returns a copy of p extended with the given paths.
func (p Path) Then(paths ...Path) Path {
	out := append(Path(nil), p...)
	for _, q := range paths {
		out = append(out, q...)
	}
	return out
}

// String returns the dotted form of the path.
func (p Path) String() string {
	names := make([]string, len(p))
	for i, s := range p {
		names[i] = s.graftName()
	}
	return strings.Join(names, ".")
}

func (p Path) last(fn func(*Segment)) Path {
	if len(p) == 0 {
		return p
	}
	out := append(Path(nil), p...)
	fn(&out[len(out)-1])
	return out
}

// As sets the alias of the last segment.
func (p Path) As(alias string) Path {
	return p.last(func(s *Segment) { s.Alias = alias })
}

// On merges c into the on-clause of the last segment.
func (p Path) On(c where.Clause) Path {
	return p.last(func(s *Segment) { s.On = s.On.Merge(c) })
}

// And merges c into the conditions of the last segment.
func (p Path) And(c where.Clause) Path {
	return p.last(func(s *Segment) { s.And = s.And.Merge(c) })
}

// AndNot merges c into the negated conditions of the last segment.
func (p Path) AndNot(c where.Clause) Path {
	return p.last(func(s *Segment) { s.AndNot = s.AndNot.Merge(c) })
}

// AndAny adds alternatives to the last segment.
func (p Path) AndAny(cs ...where.Clause) Path {
	return p.last(func(s *Segment) { s.AndAny = append(append([]where.Clause(nil), s.AndAny...), cs...) })
}

// Order sets the ordering of the last segment.
func (p Path) Order(terms ...where.Order) Path {
	return p.last(func(s *Segment) { s.Order = terms })
}

// OfType selects the concrete entity of a polymorphic last segment.
func (p Path) OfType(name string) Path {
	return p.last(func(s *Segment) { s.Type = name })
}
