package schema

import (
	dream "github.com/rvohealth/dream-sub006"
	"github.com/rvohealth/dream-sub006/schema/edge"
	"github.com/rvohealth/dream-sub006/schema/field"
	"github.com/rvohealth/dream-sub006/schema/where"
)

type (
	// Field is the interface implemented by the field builders.
	Field interface {
		Descriptor() *field.Descriptor
	}

	// Edge is the interface implemented by the association builders.
	Edge interface {
		Descriptor() *edge.Descriptor
	}

	// Mixin is a reusable fragment of a definition.
	Mixin interface {
		Fields() []Field
		Edges() []Edge
		Hooks() []Hook
		Scopes() []Scope
		Validations() []Validation
		Policy() dream.Policy
	}

	// Definition describes one entity type. Definitions embed Schema
	// and override the methods they need:
	//
	//	type Pet struct{ schema.Schema }
	//
	//	func (Pet) Fields() []schema.Field {
	//		return []schema.Field{
	//			field.String("name"),
	//		}
	//	}
	//
	//	func (Pet) Edges() []schema.Edge {
	//		return []schema.Edge{
	//			edge.HasMany("collars", Collar.Type).Dependent(),
	//		}
	//	}
	Definition interface {
		Config() Config
		Mixin() []Mixin
		Fields() []Field
		Edges() []Edge
		Hooks() []Hook
		Scopes() []Scope
		Validations() []Validation
		Policy() dream.Policy
	}

	// Namer is implemented by definitions whose entity name is not
	// their Go type name.
	Namer interface {
		Name() string
	}
)

// Config configures the storage of an entity type.
type Config struct {
	// Table overrides the table name, which defaults to the snake-cased
	// plural of the entity name.
	Table string
	// ReplicaSafe allows reads outside transactions to use the replica.
	ReplicaSafe bool
	// Inherits makes the definition a single-table-inheritance variant of
	// the given base, e.g. Inherits: Animal.Type.
	Inherits any
	// TypeColumn is the discriminator column of a base with variants.
	// Defaults to "type".
	TypeColumn string
}

// Scope is a named condition applied to every query of an entity type,
// including joins that reach it, unless bypassed by name.
type Scope struct {
	Name  string
	Where where.Clause
}

// Schema is the default implementation for the Definition and Mixin
// interfaces. It should be embedded in all definitions.
type Schema struct{}

// Type is a dummy method used to reference a definition in associations,
// as in edge.HasMany("collars", Collar.Type).
func (Schema) Type() {}

// Config returns an empty configuration.
func (Schema) Config() Config { return Config{} }

// Mixin of the schema.
func (Schema) Mixin() []Mixin { return nil }

// Fields of the schema.
func (Schema) Fields() []Field { return nil }

// Edges of the schema.
func (Schema) Edges() []Edge { return nil }

// Hooks of the schema.
func (Schema) Hooks() []Hook { return nil }

// Scopes of the schema.
func (Schema) Scopes() []Scope { return nil }

// Validations of the schema.
func (Schema) Validations() []Validation { return nil }

// Policy of the schema.
func (Schema) Policy() dream.Policy { return nil }

var (
	_ Definition = (*Schema)(nil)
	_ Mixin      = (*Schema)(nil)
)
