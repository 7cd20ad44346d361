package graph

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"

	"github.com/go-openapi/inflect"
	"github.com/segmentio/fasthash/fnv1a"

	dream "github.com/rvohealth/dream-sub006"
	"github.com/rvohealth/dream-sub006/schema"
	"github.com/rvohealth/dream-sub006/schema/edge"
	"github.com/rvohealth/dream-sub006/schema/where"
)

// Resolver turns association paths into join plans.
type Resolver struct {
	// Preload accepts a polymorphic belongs-to without a concrete type as
	// the last segment of a path; its rows are loaded per candidate.
	Preload bool
}

// Resolve resolves paths starting at source with a strict resolver.
func Resolve(source *schema.EntityType, paths ...Path) (*Plan, error) {
	return Resolver{}.Resolve(source, paths...)
}

// Resolve resolves paths starting at source. Paths sharing a prefix share
// the steps of the prefix.
func (r Resolver) Resolve(source *schema.EntityType, paths ...Path) (*Plan, error) {
	b := &builder{
		Resolver: r,
		plan:     &Plan{Root: source, RootAlias: source.Table},
		aliases:  map[string]bool{source.Table: true},
		shared:   make(map[string]shared),
	}
	for _, p := range paths {
		if err := b.path(p); err != nil {
			return nil, err
		}
	}
	return b.plan, nil
}

// ResolveFrom resolves paths starting at the entity of rec. A leading
// polymorphic belongs-to without a concrete type takes the type stored on
// the record.
func (r Resolver) ResolveFrom(rec *schema.Record, paths ...Path) (*Plan, error) {
	e := rec.Entity()
	typed := make([]Path, len(paths))
	for i, p := range paths {
		typed[i] = p
		if len(p) == 0 || p[0].Type != "" {
			continue
		}
		a, err := e.Association(p[0].Name)
		if err != nil || !a.Polymorphic || a.Kind != edge.KindBelongsTo {
			continue
		}
		switch v := rec.Get(a.TypeColumn).(type) {
		case string:
			typed[i] = append(Path{p[0]}, p[1:]...)
			typed[i][0].Type = v
		case []byte:
			typed[i] = append(Path{p[0]}, p[1:]...)
			typed[i][0].Type = string(v)
		}
	}
	return r.Resolve(e, typed...)
}

type shared struct {
	seg   Segment
	index int
}

type builder struct {
	Resolver
	plan    *Plan
	aliases map[string]bool
	shared  map[string]shared
}

func (b *builder) path(p Path) error {
	parent := Root
	for i, seg := range p {
		idx, err := b.segment(parent, seg, i == len(p)-1)
		if err != nil {
			return err
		}
		parent = idx
	}
	return nil
}

// segment resolves one caller segment below parent and returns the index
// of its visible step.
func (b *builder) segment(parent int, seg Segment, last bool) (int, error) {
	key := strconv.Itoa(parent) + "/" + seg.graftName()
	if s, ok := b.shared[key]; ok {
		if reflect.DeepEqual(s.seg, seg) {
			return s.index, nil
		}
		return 0, &dream.DuplicateAliasError{Alias: seg.graftName()}
	}
	owner := b.plan.Entity(parent)
	if owner == nil {
		prev := b.plan.Steps[parent]
		return 0, &dream.AmbiguousPolymorphicError{Entity: prev.Association.Owner.Name, Association: prev.Association.Name, Candidates: prev.Association.CandidateNames()}
	}
	a, err := owner.Association(seg.Name)
	if err != nil {
		return 0, err
	}
	idx, required, err := b.hop(parent, parent, a, seg, last, nil)
	if err != nil {
		return 0, err
	}
	s := b.plan.Steps[idx]
	if missing := missingKeys(required, seg); len(missing) > 0 {
		return 0, &dream.MissingRequiredConditionError{Entity: owner.Name, Association: a.Name, Missing: missing}
	}
	s.Hidden = false
	s.GraftTo = parent
	s.Name = seg.graftName()
	s.Many = a.Kind.Many()
	s.On = s.On.Merge(seg.On).Merge(seg.And)
	s.AndNot = s.AndNot.Merge(seg.AndNot)
	s.AndAny = append(s.AndAny, seg.AndAny...)
	if len(seg.Order) > 0 {
		s.Order = seg.Order
	}
	if seg.Alias != "" {
		delete(b.aliases, s.Alias)
		if b.aliases[seg.Alias] {
			return 0, &dream.DuplicateAliasError{Alias: seg.Alias}
		}
		s.Alias = seg.Alias
		b.aliases[s.Alias] = true
	}
	b.shared[key] = shared{seg: seg, index: idx}
	return idx, nil
}

// hop resolves association a below parent, splicing hidden steps for
// through chains. It returns the index of the final step and the
// required on-clause keys the caller must supply for it.
func (b *builder) hop(parent, origin int, a *schema.Association, seg Segment, last bool, stack []string) (int, []string, error) {
	if err := a.Err(); err != nil {
		return 0, nil, err
	}
	if a.IsThrough() {
		return b.through(parent, origin, a, seg, last, stack)
	}
	s, err := b.direct(parent, origin, a, seg, last)
	if err != nil {
		return 0, nil, err
	}
	return s.Index, a.Required, nil
}

func (b *builder) through(parent, origin int, a *schema.Association, seg Segment, last bool, stack []string) (int, []string, error) {
	key := a.Owner.Name + "." + a.Name
	for _, k := range stack {
		if k == key {
			return 0, nil, &dream.CyclicAssociationError{Entity: a.Owner.Name, Association: a.Name, Chain: append(append([]string(nil), stack...), key)}
		}
	}
	stack = append(stack, key)
	owner := b.plan.Entity(parent)
	via, err := owner.Association(a.Through)
	if err != nil {
		return 0, nil, err
	}
	mid, required, err := b.hop(parent, origin, via, Segment{}, false, stack)
	if err != nil {
		return 0, nil, err
	}
	if len(required) > 0 {
		return 0, nil, &dream.MissingRequiredConditionError{Entity: via.Owner.Name, Association: via.Name, Missing: required}
	}
	intermediate := b.plan.Steps[mid].Entity
	src, err := sourceOf(a, intermediate)
	if err != nil {
		return 0, nil, err
	}
	idx, required, err := b.hop(mid, origin, src, seg, last, stack)
	if err != nil {
		return 0, nil, err
	}
	s := b.plan.Steps[idx]
	s.On = s.On.Merge(a.On)
	for _, col := range sortedKeys(a.Self) {
		s.Self = append(s.Self, SelfCondition{Column: col, OriginColumn: a.Self[col]})
	}
	if len(a.Order) > 0 {
		s.Order = a.Order
	}
	s.Association = a
	return idx, append(append([]string(nil), required...), a.Required...), nil
}

// sourceOf finds the source of a through association on the intermediate
// entity. An implicit source falls back to the singular association name.
func sourceOf(a *schema.Association, intermediate *schema.EntityType) (*schema.Association, error) {
	name := a.Source
	if name == "" {
		name = a.Name
	}
	src, err := intermediate.Association(name)
	if err == nil {
		return src, nil
	}
	if a.Source == "" || a.Source == a.Name {
		if src, err := intermediate.Association(inflect.Singularize(name)); err == nil {
			return src, nil
		}
	}
	return nil, &dream.MissingThroughSourceError{
		Entity:       a.Owner.Name,
		Association:  a.Name,
		Intermediate: intermediate.Name,
		Source:       name,
		Valid:        intermediate.AssociationNames(),
	}
}

// direct emits the step of a direct association. Every step starts
// hidden; segment marks the visible one.
func (b *builder) direct(parent, origin int, a *schema.Association, seg Segment, last bool) (*Step, error) {
	s := &Step{
		Index:       len(b.plan.Steps),
		Parent:      parent,
		Origin:      origin,
		GraftTo:     parent,
		Hidden:      true,
		Name:        a.Name,
		Association: a,
		Many:        a.Kind.Many(),
		On:          a.On,
		Order:       a.Order,
	}
	if parent == Root {
		s.depth = 1
	} else {
		s.depth = b.plan.Steps[parent].depth + 1
	}
	s.Alias = b.alias(parent, a.Name, s.Index)
	switch {
	case a.Kind == edge.KindBelongsTo && a.Polymorphic:
		s.ParentColumn = a.OwnerColumn
		s.ParentTypeColumn = a.TypeColumn
		s.Column = a.TargetColumn
		if seg.Type == "" {
			if !b.Preload || !last {
				return nil, &dream.AmbiguousPolymorphicError{Entity: a.Owner.Name, Association: a.Name, Candidates: a.CandidateNames()}
			}
			s.Candidates = a.Candidates()
			break
		}
		t, err := a.Candidate(seg.Type)
		if err != nil {
			return nil, err
		}
		s.Entity = t
		s.ParentTypeValue = t.Base().Name
	default:
		t, err := a.Target()
		if err != nil {
			return nil, err
		}
		s.Entity = t
		s.ParentColumn = a.OwnerColumn
		s.Column = a.TargetColumn
		s.TypeColumn = a.TypeColumn
		s.TypeValue = a.TypeValue
		if col, val, ok := t.Discriminator(); ok && s.TypeColumn == "" {
			s.TypeColumn, s.TypeValue = col, val
		} else if ok {
			s.On = s.On.Merge(where.Clause{col: val})
		}
	}
	if s.Entity != nil {
		s.Scopes = scopes(s.Entity, a.SkipScopes)
	}
	for _, col := range sortedKeys(a.Self) {
		s.Self = append(s.Self, SelfCondition{Column: col, OriginColumn: a.Self[col]})
	}
	b.aliases[s.Alias] = true
	b.plan.Steps = append(b.plan.Steps, s)
	return s, nil
}

// alias derives a join alias from the association name and a hash of the
// parent alias and step position.
func (b *builder) alias(parent int, name string, pos int) string {
	h := fnv1a.Init64
	h = fnv1a.AddString64(h, b.plan.Alias(parent))
	h = fnv1a.AddUint64(h, uint64(pos))
	alias := fmt.Sprintf("%s_%08x", name, uint32(h))
	for b.aliases[alias] {
		h = fnv1a.AddUint64(h, uint64(pos))
		alias = fmt.Sprintf("%s_%08x", name, uint32(h))
	}
	return alias
}

func scopes(e *schema.EntityType, skip []string) []schema.Scope {
	var out []schema.Scope
Scopes:
	for _, sc := range e.Scopes() {
		for _, name := range skip {
			if sc.Name == name {
				continue Scopes
			}
		}
		out = append(out, sc)
	}
	return out
}

func missingKeys(required []string, seg Segment) []string {
	var missing []string
	for _, k := range required {
		if !seg.On.Has(k) && !seg.And.Has(k) {
			missing = append(missing, k)
		}
	}
	return missing
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
