package edge

import (
	"reflect"

	"github.com/rvohealth/dream-sub006/schema/where"
)

// Kind is the cardinality of an association.
type Kind uint8

// Association kinds.
const (
	KindBelongsTo Kind = iota + 1
	KindHasOne
	KindHasMany
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindBelongsTo:
		return "BelongsTo"
	case KindHasOne:
		return "HasOne"
	case KindHasMany:
		return "HasMany"
	default:
		return "Invalid"
	}
}

// Many reports whether the association loads a list.
func (k Kind) Many() bool { return k == KindHasMany }

// A Descriptor for edge configuration.
type Descriptor struct {
	Name string
	Kind Kind
	// Type is the target entity name. Types lists the candidates of a
	// polymorphic belongs-to.
	Type        string
	Types       []string
	Polymorphic bool
	// ForeignKey is the linking column: on the owner for BelongsTo, on
	// the target for HasOne and HasMany.
	ForeignKey string
	// PrimaryKey is the referenced column when it is not the primary key.
	PrimaryKey string
	// As names the polymorphic belongs-to on the target that points back
	// at the owner.
	As         string
	On         where.Clause
	Self       map[string]string
	Order      []where.Order
	Required   []string
	Dependent  bool
	Optional   bool
	SkipScopes []string
	Through    string
	Source     string
	Comment    string
}

// IsThrough reports whether the association is reached through another.
func (d *Descriptor) IsThrough() bool { return d.Through != "" }

// Builder is the builder for associations.
type Builder struct {
	desc *Descriptor
}

// BelongsTo declares that the owner holds the foreign key of the target.
// Passing several targets declares a polymorphic association, whose
// concrete type is stored in the "<name>_type" column.
//
//	edge.BelongsTo("pet", Pet.Type)
//	edge.BelongsTo("localizable", Post.Type, Comment.Type)
func BelongsTo(name string, targets ...any) *Builder {
	b := &Builder{desc: &Descriptor{Name: name, Kind: KindBelongsTo}}
	switch len(targets) {
	case 0:
	case 1:
		b.desc.Type = typeName(targets[0])
	default:
		b.desc.Polymorphic = true
		for _, t := range targets {
			b.desc.Types = append(b.desc.Types, typeName(t))
		}
	}
	return b
}

// HasOne declares that a single target row holds the owner's key.
//
//	edge.HasOne("collar", Collar.Type)
func HasOne(name string, target any) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Kind: KindHasOne, Type: typeName(target)}}
}

// HasMany declares that target rows hold the owner's key.
//
//	edge.HasMany("collars", Collar.Type).Dependent()
func HasMany(name string, target any) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Kind: KindHasMany, Type: typeName(target)}}
}

// HasOneThrough declares an association reached by following source on
// the entity found through another association.
//
//	edge.HasOneThrough("owner_house", "owner", "house")
func HasOneThrough(name, through, source string) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Kind: KindHasOne, Through: through, Source: source}}
}

// HasManyThrough is the list form of HasOneThrough. An empty source
// defaults to the association name or its singular form.
//
//	edge.HasManyThrough("balloons", "collars", "balloon")
func HasManyThrough(name, through, source string) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Kind: KindHasMany, Through: through, Source: source}}
}

// Field sets the foreign key column.
func (b *Builder) Field(column string) *Builder {
	b.desc.ForeignKey = column
	return b
}

// References sets the referenced column when it is not the primary key.
func (b *Builder) References(column string) *Builder {
	b.desc.PrimaryKey = column
	return b
}

// As declares the owner side of a polymorphic belongs-to named name on
// the target.
//
//	edge.HasMany("translations", Translation.Type).As("localizable")
func (b *Builder) As(name string) *Builder {
	b.desc.As = name
	return b
}

// Polymorphic marks a belongs-to with a single candidate as polymorphic.
func (b *Builder) Polymorphic() *Builder {
	if b.desc.Type != "" {
		b.desc.Types = append(b.desc.Types, b.desc.Type)
		b.desc.Type = ""
	}
	b.desc.Polymorphic = true
	return b
}

// On adds a fixed condition on the target rows. Values may reference
// passthrough values with where.Passthrough.
func (b *Builder) On(c where.Clause) *Builder {
	b.desc.On = b.desc.On.Merge(c)
	return b
}

// Self restricts target rows to those whose column equals the column of
// the same row the association starts from.
//
//	edge.HasMany("same_species_pets", Pet.Type).Self("species", "species")
func (b *Builder) Self(targetColumn, sourceColumn string) *Builder {
	if b.desc.Self == nil {
		b.desc.Self = make(map[string]string)
	}
	b.desc.Self[targetColumn] = sourceColumn
	return b
}

// Order sets the order of loaded target rows.
func (b *Builder) Order(terms ...where.Order) *Builder {
	b.desc.Order = append(b.desc.Order, terms...)
	return b
}

// Required lists on-clause columns the caller must supply whenever the
// association is resolved.
func (b *Builder) Required(columns ...string) *Builder {
	b.desc.Required = append(b.desc.Required, columns...)
	return b
}

// Dependent marks target rows to be destroyed with the owner.
func (b *Builder) Dependent() *Builder {
	b.desc.Dependent = true
	return b
}

// Optional allows a belongs-to foreign key to be empty.
func (b *Builder) Optional() *Builder {
	b.desc.Optional = true
	return b
}

// SkipScopes disables default scopes of the target by name.
func (b *Builder) SkipScopes(names ...string) *Builder {
	b.desc.SkipScopes = append(b.desc.SkipScopes, names...)
	return b
}

// Comment used to put annotations on the schema.
func (b *Builder) Comment(c string) *Builder {
	b.desc.Comment = c
	return b
}

// Descriptor implements the schema.Edge interface by returning its descriptor.
func (b *Builder) Descriptor() *Descriptor {
	return b.desc
}

// typeName returns the entity name of a target given as a string, a
// schema value, or a method expression such as Pet.Type.
func typeName(typ any) string {
	switch t := typ.(type) {
	case nil:
		return ""
	case string:
		return t
	}
	rt := reflect.TypeOf(typ)
	if rt.Kind() == reflect.Func && rt.NumIn() > 0 {
		rt = rt.In(0)
	}
	for rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	return rt.Name()
}
