// Package schema describes entity types and their associations, and
// holds the in-memory records the rest of dream reads and writes.
//
// It is the entry point for definitions and builds on its subpackages:
//
//   - [field]: column builders, defaults and validators
//   - [edge]: association builders
//   - [mixin]: reusable definition fragments
//   - [where]: condition clauses used by scopes, associations and queries
//
// # Quick Start
//
// Definitions are plain Go values embedding Schema and overriding the
// methods they need:
//
//	type Pet struct{ schema.Schema }
//
//	func (Pet) Mixin() []schema.Mixin {
//		return []schema.Mixin{
//			mixin.Time{},       // created_at, updated_at
//			mixin.SoftDelete{}, // deleted_at
//		}
//	}
//
//	func (Pet) Fields() []schema.Field {
//		return []schema.Field{
//			field.String("name").NotEmpty(),
//			field.Enum("species").Values("cat", "dog").Optional(),
//			field.Int64("user_id").Optional(),
//		}
//	}
//
//	func (Pet) Edges() []schema.Edge {
//		return []schema.Edge{
//			edge.BelongsTo("user", User.Type).Optional(),
//			edge.HasMany("collars", Collar.Type).Dependent(),
//			edge.HasManyThrough("balloons", "collars", "balloon"),
//		}
//	}
//
// # Registry
//
// NewRegistry compiles a set of definitions into immutable EntityType
// values:
//
//	reg, err := schema.NewRegistry([]schema.Definition{Pet{}, Collar{}, User{}})
//	if err != nil {
//		return err
//	}
//	pets, _ := reg.Entity("Pet")
//
// Table names default to the snake-cased plural of the entity name and
// foreign keys to "<name>_id". Config overrides the table and marks entity
// types whose reads may be served by the replica:
//
//	func (User) Config() schema.Config {
//		return schema.Config{Table: "accounts", ReplicaSafe: true}
//	}
//
// Association targets are linked when the registry is built. A target
// that is not registered is reported the first time the association is
// resolved, or by Registry.Validate.
//
// # Single-Table Inheritance
//
// A variant shares the table of its base and is told apart by the
// discriminator column, "type" unless Config.TypeColumn says otherwise:
//
//	func (Latex) Config() schema.Config {
//		return schema.Config{Inherits: Balloon.Type}
//	}
//
// The variants of a base form a closed set. Hydrating a row whose
// discriminator names no variant fails.
//
// # Scopes, Hooks and Validations
//
// Scopes are default conditions applied to every query of the entity
// type, joins included, unless bypassed by name:
//
//	func (Collar) Scopes() []schema.Scope {
//		return []schema.Scope{{Name: "visible", Where: where.Clause{"hidden": false}}}
//	}
//
// Hooks run at points of the write lifecycle. Commit hooks are deferred
// until the surrounding transaction commits:
//
//	func (Post) Hooks() []schema.Hook {
//		return []schema.Hook{
//			schema.On(schema.AfterSaveCommit, notify).IfChanged("title"),
//		}
//	}
//
// Validations check a record before it is written and report every
// violation at once on a *dream.ValidationFailedError.
//
// # Records
//
// A Record holds the attributes of one row, its changes since the last
// load or save, and the associations loaded onto it:
//
//	rec := pets.New(map[string]any{"name": "aster"})
//	rec.Set("species", "dog")
//	rec.Changes().Has("species") // true
//	collars, err := rec.Many("collars") // dream.IsNotLoaded(err) until preloaded
//
// # YAML
//
// Definitions may also be loaded from YAML with LoadYAML, which accepts
// the same fields, associations and scopes as the Go builders.
package schema
