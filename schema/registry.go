package schema

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/go-openapi/inflect"

	dream "github.com/rvohealth/dream-sub006"
	"github.com/rvohealth/dream-sub006/privacy"
	"github.com/rvohealth/dream-sub006/schema/edge"
	"github.com/rvohealth/dream-sub006/schema/field"
)

// Registry is the immutable set of entity types of one schema. It is
// built once with NewRegistry and passed explicitly to the resolver,
// compiler and orchestrator.
type Registry struct {
	entities map[string]*EntityType
	names    []string
	codec    Codec
}

// RegistryOption configures NewRegistry.
type RegistryOption func(*Registry)

// WithCodec sets the codec used to convert column values.
func WithCodec(c Codec) RegistryOption {
	return func(r *Registry) { r.codec = c }
}

// NewRegistry compiles definitions into entity types. Association targets
// are checked when an association is first resolved; Validate checks them
// all at once.
func NewRegistry(defs []Definition, opts ...RegistryOption) (*Registry, error) {
	r := &Registry{entities: make(map[string]*EntityType, len(defs)), codec: DefaultCodec{}}
	for _, opt := range opts {
		opt(r)
	}
	pending := make(map[string]Definition, len(defs))
	inherited := make(map[string]bool)
	var order []string
	for _, d := range defs {
		name := DefinitionName(d)
		if name == "" {
			return nil, errors.New("schema: definition without a name")
		}
		if _, ok := pending[name]; ok {
			return nil, fmt.Errorf("schema: entity %q is defined twice", name)
		}
		pending[name] = d
		order = append(order, name)
		if b := typeName(d.Config().Inherits); b != "" {
			inherited[b] = true
		}
	}
	var errs []error
	// Bases are built before their variants.
	for len(order) > 0 {
		var next []string
		for _, name := range order {
			d := pending[name]
			baseName := typeName(d.Config().Inherits)
			var base *EntityType
			if baseName != "" {
				if _, ok := pending[baseName]; !ok {
					errs = append(errs, &dream.UnknownEntityError{Name: baseName, Referrer: name, Valid: sortedKeys(pending)})
					continue
				}
				if base = r.entities[baseName]; base == nil {
					next = append(next, name)
					continue
				}
			}
			e, err := r.build(name, d, base, inherited[name])
			if err != nil {
				errs = append(errs, err)
				continue
			}
			r.entities[name] = e
			r.names = append(r.names, name)
		}
		if len(next) == len(order) {
			errs = append(errs, fmt.Errorf("schema: inheritance cycle among %v", next))
			break
		}
		order = next
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	sort.Strings(r.names)
	for _, name := range r.names {
		e := r.entities[name]
		for _, a := range e.assocs {
			if a.Owner == e {
				r.link(a)
			}
		}
	}
	return r, nil
}

// MustNewRegistry is like NewRegistry but panics on error.
func MustNewRegistry(defs ...Definition) *Registry {
	r, err := NewRegistry(defs)
	if err != nil {
		panic(err)
	}
	return r
}

// Entity returns the entity type named name.
func (r *Registry) Entity(name string) (*EntityType, error) {
	if e, ok := r.entities[name]; ok {
		return e, nil
	}
	return nil, &dream.UnknownEntityError{Name: name, Valid: r.names}
}

// Entities returns all entity types sorted by name.
func (r *Registry) Entities() []*EntityType {
	out := make([]*EntityType, len(r.names))
	for i, n := range r.names {
		out[i] = r.entities[n]
	}
	return out
}

// Names returns the registered entity names, sorted.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Codec returns the value codec of the registry.
func (r *Registry) Codec() Codec { return r.codec }

// Validate reports every association whose target or through source
// cannot be resolved.
func (r *Registry) Validate() error {
	var errs []error
	for _, e := range r.Entities() {
		for _, a := range e.assocs {
			if a.Owner != e {
				continue
			}
			if a.err != nil {
				errs = append(errs, a.err)
				continue
			}
			if a.IsThrough() {
				if _, err := e.Association(a.Through); err != nil {
					errs = append(errs, err)
				}
			}
		}
	}
	return errors.Join(errs...)
}

// DefinitionName returns the entity name of a definition: its Name
// method when it implements Namer, its Go type name otherwise.
func DefinitionName(d Definition) string {
	if n, ok := d.(Namer); ok {
		return n.Name()
	}
	return typeName(d)
}

func (r *Registry) build(name string, d Definition, base *EntityType, hasVariants bool) (*EntityType, error) {
	cfg := d.Config()
	e := &EntityType{
		Name:        name,
		Table:       cfg.Table,
		ReplicaSafe: cfg.ReplicaSafe,
		columnIndex: make(map[string]*field.Descriptor),
		assocIndex:  make(map[string]*Association),
		registry:    r,
	}
	var (
		errs     []error
		fields   []Field
		edges    []Edge
		hooks    []Hook
		policies privacy.Policies
	)
	for _, m := range d.Mixin() {
		fields = append(fields, m.Fields()...)
		edges = append(edges, m.Edges()...)
		hooks = append(hooks, m.Hooks()...)
		e.scopes = append(e.scopes, m.Scopes()...)
		e.validations = append(e.validations, m.Validations()...)
		if p := m.Policy(); p != nil {
			policies = append(policies, p)
		}
	}
	fields = append(fields, d.Fields()...)
	edges = append(edges, d.Edges()...)
	hooks = append(hooks, d.Hooks()...)
	e.scopes = append(e.scopes, d.Scopes()...)
	e.validations = append(e.validations, d.Validations()...)
	if p := d.Policy(); p != nil {
		policies = append(policies, p)
	}
	e.Hooks = NewHookTable(hooks...)

	if base != nil {
		if e.Table != "" && e.Table != base.Table {
			errs = append(errs, fmt.Errorf("schema: variant %s must share table %q of %s", name, base.Table, base.Name))
		}
		e.Table = base.Table
		e.ReplicaSafe = e.ReplicaSafe || base.ReplicaSafe
		e.base = base
		e.typeColumn = base.typeColumn
		e.PrimaryKey = base.PrimaryKey
		for _, c := range base.columns {
			e.addColumn(c)
		}
		e.scopes = append(append([]Scope(nil), base.scopes...), e.scopes...)
		e.validations = append(append([]Validation(nil), base.validations...), e.validations...)
		e.Hooks = base.Hooks.merge(e.Hooks)
		if base.policy != nil {
			policies = append(privacy.Policies{base.policy}, policies...)
		}
		for _, a := range base.assocs {
			e.assocs = append(e.assocs, a)
			e.assocIndex[a.Name] = a
		}
		base.variants[name] = e
		base.variantNames = append(base.variantNames, name)
		sort.Strings(base.variantNames)
	} else {
		if e.Table == "" {
			e.Table = inflect.Tableize(name)
		}
		e.variants = make(map[string]*EntityType)
		if hasVariants || cfg.TypeColumn != "" {
			e.typeColumn = firstNonEmpty(cfg.TypeColumn, "type")
		}
	}
	if len(policies) > 0 {
		e.policy = policies
	}

	for _, f := range fields {
		desc := f.Descriptor()
		if desc.Err != nil {
			errs = append(errs, fmt.Errorf("schema: %s: %w", name, desc.Err))
			continue
		}
		if !desc.Type.Valid() {
			errs = append(errs, fmt.Errorf("schema: %s.%s: invalid field type", name, desc.Name))
			continue
		}
		if desc.Name == "id" && base == nil {
			if e.PrimaryKey != nil {
				errs = append(errs, fmt.Errorf("schema: %s declares id twice", name))
				continue
			}
			e.PrimaryKey = desc
			continue
		}
		if _, ok := e.columnIndex[desc.Column()]; ok {
			errs = append(errs, fmt.Errorf("schema: %s declares column %q twice", name, desc.Column()))
			continue
		}
		e.addColumn(desc)
	}
	if base == nil {
		if e.PrimaryKey == nil {
			e.PrimaryKey = field.Int64("id").Immutable().Optional().Descriptor()
		}
		e.PrimaryKey.Optional = true
		e.columns = append([]*field.Descriptor{e.PrimaryKey}, e.columns...)
		e.columnIndex[e.PrimaryKey.Column()] = e.PrimaryKey
		if e.typeColumn != "" {
			if _, ok := e.columnIndex[e.typeColumn]; !ok {
				e.addColumn(field.String(e.typeColumn).Optional().Descriptor())
			}
		}
	}
	for _, c := range e.columns {
		switch {
		case c.Role == field.RoleSoftDelete:
			e.softDelete = c
		case c.Role == field.RolePosition:
			e.position = c
		case c.Role == field.RoleCreateTime, c.Role == field.RoleNone && c.Column() == "created_at" && c.Type == field.TypeTime && e.createdAt == nil:
			e.createdAt = c
		case c.Role == field.RoleUpdateTime, c.Role == field.RoleNone && c.Column() == "updated_at" && c.Type == field.TypeTime && e.updatedAt == nil:
			e.updatedAt = c
		}
	}
	for _, ed := range edges {
		desc := ed.Descriptor()
		if _, ok := e.assocIndex[desc.Name]; ok {
			errs = append(errs, fmt.Errorf("schema: %s declares association %q twice", name, desc.Name))
			continue
		}
		a := &Association{Descriptor: desc, Owner: e}
		e.assocs = append(e.assocs, a)
		e.assocIndex[desc.Name] = a
	}
	return e, errors.Join(errs...)
}

func (e *EntityType) addColumn(c *field.Descriptor) {
	e.columns = append(e.columns, c)
	e.columnIndex[c.Column()] = c
}

// link resolves the target and key columns of an association declared
// on its owner. Failures are kept on the association and reported when
// it is first resolved.
func (r *Registry) link(a *Association) {
	owner := a.Owner
	lookup := func(name string) *EntityType {
		t, ok := r.entities[name]
		if !ok {
			a.err = &dream.UnknownEntityError{Name: name, Referrer: owner.Name + "." + a.Name, Valid: r.names}
		}
		return t
	}
	switch {
	case a.IsThrough():
		if a.Source == "" {
			a.Source = a.Name
		}
	case a.Kind == edge.KindBelongsTo && a.Polymorphic:
		for _, n := range a.Types {
			if t := lookup(n); t != nil {
				a.candidates = append(a.candidates, t)
			}
		}
		a.OwnerColumn = firstNonEmpty(a.ForeignKey, a.Name+"_id")
		a.TypeColumn = a.Name + "_type"
		a.TargetColumn = a.PrimaryKey
	case a.Kind == edge.KindBelongsTo:
		if a.target = lookup(a.Type); a.target == nil {
			return
		}
		a.OwnerColumn = firstNonEmpty(a.ForeignKey, a.Name+"_id")
		a.TargetColumn = firstNonEmpty(a.PrimaryKey, a.target.PrimaryKey.Column())
	default:
		if a.target = lookup(a.Type); a.target == nil {
			return
		}
		a.OwnerColumn = firstNonEmpty(a.PrimaryKey, owner.PrimaryKey.Column())
		if a.As != "" {
			a.TargetColumn = firstNonEmpty(a.ForeignKey, a.As+"_id")
			a.TypeColumn = a.As + "_type"
			a.TypeValue = owner.Base().Name
		} else {
			a.TargetColumn = firstNonEmpty(a.ForeignKey, inflect.ForeignKey(owner.Base().Name))
		}
	}
}

func firstNonEmpty(s ...string) string {
	for _, v := range s {
		if v != "" {
			return v
		}
	}
	return ""
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// typeName returns the entity name of a definition value, a string, or a
// method expression such as Pet.Type.
func typeName(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	}
	rt := reflect.TypeOf(v)
	if rt.Kind() == reflect.Func && rt.NumIn() > 0 {
		rt = rt.In(0)
	}
	for rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	return rt.Name()
}
