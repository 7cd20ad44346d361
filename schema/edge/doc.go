// Package edge provides fluent builders for declaring associations
// between entities.
//
// Associations are named from the point of view of the entity that
// declares them. The name is what paths, preloads and joins refer to:
//
//	func (Pet) Edges() []schema.Edge {
//		return []schema.Edge{
//			edge.BelongsTo("user", User.Type),
//			edge.HasMany("collars", Collar.Type),
//		}
//	}
//
// # Association Kinds
//
//	edge.BelongsTo("pet", Pet.Type)           // owner holds pet_id
//	edge.HasOne("collar", Collar.Type)        // collars.pet_id
//	edge.HasMany("collars", Collar.Type)      // collars.pet_id
//
// Foreign keys are inferred: "<name>_id" on the owner for BelongsTo, and
// "<singular owner>_id" on the target for HasOne and HasMany. Field
// overrides the inferred column and References the referenced one when
// it is not the primary key:
//
//	edge.HasMany("pets", Pet.Type).Field("owner_id")
//	edge.BelongsTo("breed", Breed.Type).Field("breed_code").References("code")
//
// A BelongsTo is required unless marked Optional: creating a record whose
// foreign key is empty fails validation with "must exist" under the
// association name.
//
// # Through Associations
//
// A through association follows source on the entity reached via
// another association. Chains may nest:
//
//	edge.HasManyThrough("balloons", "collars", "balloon")
//	edge.HasManyThrough("balloon_lines", "balloons", "lines")
//	edge.HasOneThrough("current_balloon", "current_collar", "balloon")
//
// The rows of the intermediate associations are loaded but not exposed;
// only the source rows are stored on the owner.
//
// # Polymorphism
//
//	// Translation belongs to a Post or a Comment, keyed by
//	// localizable_id and localizable_type.
//	edge.BelongsTo("localizable", Post.Type, Comment.Type)
//
//	// A single candidate still stores the type column.
//	edge.BelongsTo("localizable", Post.Type).Polymorphic()
//
//	// The owner side.
//	edge.HasMany("translations", Translation.Type).As("localizable")
//
// # Conditions
//
// On adds fixed conditions on the target rows, Self compares a target
// column with a column of the row the association starts from, and
// Required lists condition columns the caller must supply:
//
//	edge.HasMany("red_balloons", Balloon.Type).On(where.Clause{"color": "red"})
//	edge.HasOne("current_translation", Translation.Type).
//	    On(where.Clause{"locale": where.Passthrough("locale")})
//	edge.HasMany("siblings", Pet.Type).Self("owner_id", "owner_id")
//	edge.HasMany("localized", Translation.Type).Required("locale")
//
// Target rows are ordered with Order, and default scopes of the target
// are lifted by name with SkipScopes:
//
//	edge.HasOne("current_collar", Collar.Type).Order(where.Desc("id"))
//	edge.HasMany("all_collars", Collar.Type).SkipScopes("visible")
//
// # Lifecycle
//
//	edge.HasMany("collars", Collar.Type).Dependent() // destroyed with the owner
//
// Dependent rows are destroyed before their owner in the same
// transaction, soft-deleted when their entity type soft deletes, and
// restored with it by Undestroy.
package edge
