package mixin

import (
	"context"
	"time"

	dream "github.com/rvohealth/dream-sub006"
	"github.com/rvohealth/dream-sub006/schema"
	"github.com/rvohealth/dream-sub006/schema/field"
	"github.com/rvohealth/dream-sub006/schema/where"
)

// Schema is the default implementation for the schema.Mixin interface.
// It should be embedded in all custom mixin definitions.
//
//	type Audit struct{ mixin.Schema }
//
//	func (Audit) Fields() []schema.Field {
//		return []schema.Field{
//			field.String("created_by").Immutable(),
//		}
//	}
type Schema struct{}

// Fields returns the fields of the mixin.
func (Schema) Fields() []schema.Field { return nil }

// Edges returns the associations of the mixin.
func (Schema) Edges() []schema.Edge { return nil }

// Hooks returns the lifecycle hooks of the mixin.
func (Schema) Hooks() []schema.Hook { return nil }

// Scopes returns the default scopes of the mixin.
func (Schema) Scopes() []schema.Scope { return nil }

// Validations returns the record validations of the mixin.
func (Schema) Validations() []schema.Validation { return nil }

// Policy returns the privacy policy of the mixin.
func (Schema) Policy() dream.Policy { return nil }

var _ schema.Mixin = (*Schema)(nil)

// CreateTime adds an immutable created_at column stamped on insert.
type CreateTime struct{ Schema }

// Fields of the create time mixin.
func (CreateTime) Fields() []schema.Field {
	return []schema.Field{
		field.Time("created_at").
			CreateTime().
			Immutable(),
	}
}

// UpdateTime adds an updated_at column stamped on every write.
type UpdateTime struct{ Schema }

// Fields of the update time mixin.
func (UpdateTime) Fields() []schema.Field {
	return []schema.Field{
		field.Time("updated_at").
			UpdateTime(),
	}
}

// Time composes CreateTime and UpdateTime.
type Time struct{ Schema }

// Fields of the time mixin.
func (Time) Fields() []schema.Field {
	return append(
		CreateTime{}.Fields(),
		UpdateTime{}.Fields()...,
	)
}

// SoftDeleteScope is the name of the default scope hiding soft-deleted
// rows. Queries lift it with RemoveDefaultScope(mixin.SoftDeleteScope).
const SoftDeleteScope = "soft_delete"

// SoftDelete adds a nullable deleted_at column. Destroying a record sets
// the column instead of removing the row, and the soft_delete scope hides
// marked rows from every query and join.
type SoftDelete struct{ Schema }

// Fields of the soft delete mixin.
func (SoftDelete) Fields() []schema.Field {
	return []schema.Field{
		field.Time("deleted_at").
			SoftDelete(),
	}
}

// Scopes of the soft delete mixin.
func (SoftDelete) Scopes() []schema.Scope {
	return []schema.Scope{
		{Name: SoftDeleteScope, Where: where.Clause{"deleted_at": nil}},
	}
}

// Sortable adds an integer position column kept dense within the rows
// sharing the Scope columns. New rows are appended at the end.
//
//	mixin.Sortable{Scope: []string{"pet_id"}}
type Sortable struct {
	Schema
	Column string
	Scope  []string
}

// Fields of the sortable mixin.
func (s Sortable) Fields() []schema.Field {
	col := s.Column
	if col == "" {
		col = "position"
	}
	return []schema.Field{
		field.Int(col).
			Position(s.Scope...),
	}
}

// Stamp returns a hook setting column to the current time on every save.
// It is meant for timestamps the orchestrator does not manage, such as
// published_at.
func Stamp(column string, now func() time.Time) schema.Hook {
	if now == nil {
		now = time.Now
	}
	return schema.On(schema.BeforeSave, func(_ context.Context, r *schema.Record, _ schema.Changes) error {
		if r.Get(column) == nil {
			r.Set(column, now())
		}
		return nil
	}).Named("stamp " + column)
}

var (
	_ schema.Mixin = (*CreateTime)(nil)
	_ schema.Mixin = (*UpdateTime)(nil)
	_ schema.Mixin = (*Time)(nil)
	_ schema.Mixin = (*SoftDelete)(nil)
	_ schema.Mixin = (*Sortable)(nil)
)
