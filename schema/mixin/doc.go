// Package mixin provides reusable definition fragments.
//
// A mixin contributes fields, associations, hooks, default scopes,
// validations and a privacy policy to every definition that lists it.
//
// # Built-in Mixins
//
//	// CreateTime adds an immutable created_at stamped on insert
//	mixin.CreateTime{}
//
//	// UpdateTime adds updated_at stamped on every write
//	mixin.UpdateTime{}
//
//	// Time combines CreateTime and UpdateTime
//	mixin.Time{}
//
//	// SoftDelete adds deleted_at and the soft_delete scope
//	mixin.SoftDelete{}
//
//	// Sortable adds a position column kept dense per scope
//	mixin.Sortable{Scope: []string{"pet_id"}}
//
// # Using Mixins
//
//	func (Pet) Mixin() []schema.Mixin {
//		return []schema.Mixin{
//			mixin.Time{},       // created_at, updated_at
//			mixin.SoftDelete{}, // deleted_at + soft_delete scope
//		}
//	}
//
// The resulting Pet entity type has:
//   - created_at (time, immutable, stamped on insert)
//   - updated_at (time, stamped on insert and update)
//   - deleted_at (nullable time, set by Destroy)
//
// The columns added by Time, SoftDelete and Sortable carry roles, so the
// persistence layer stamps, marks and renumbers them without further
// configuration. Mixin fields come before the definition's own fields,
// in the order the mixins are listed.
//
// # Soft Deletion
//
// Rows marked by SoftDelete are hidden from every query and join by the
// scope named SoftDeleteScope. A query sees them again once the scope is
// lifted:
//
//	c.Query("Pet").RemoveDefaultScope(mixin.SoftDeleteScope).All(ctx)
//
// # Creating Custom Mixins
//
// Custom mixins embed Schema and override what they need:
//
//	type Audit struct{ mixin.Schema }
//
//	func (Audit) Fields() []schema.Field {
//		return []schema.Field{
//			field.String("created_by").Immutable(),
//		}
//	}
//
//	func (Audit) Hooks() []schema.Hook {
//		return []schema.Hook{
//			schema.On(schema.BeforeCreate, stampAuthor),
//		}
//	}
//
// See contrib/mixin for UUID keys and tenant scoping.
package mixin
