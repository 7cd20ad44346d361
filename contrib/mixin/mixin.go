// Package mixin provides ready-to-use mixins built on top of
// schema/mixin:
//   - ID: UUID primary key generated on insert
//   - TenantID: tenant_id column scoped by a passthrough value
//   - TimeSoftDelete: timestamps plus soft deletion
//
// Usage:
//
//	func (Invoice) Mixin() []schema.Mixin {
//		return []schema.Mixin{
//			mixin.ID{},
//			mixin.TenantID{},
//		}
//	}
package mixin

import (
	"context"

	"github.com/google/uuid"

	dream "github.com/rvohealth/dream-sub006"
	"github.com/rvohealth/dream-sub006/privacy"
	"github.com/rvohealth/dream-sub006/schema"
	"github.com/rvohealth/dream-sub006/schema/field"
	"github.com/rvohealth/dream-sub006/schema/mixin"
	"github.com/rvohealth/dream-sub006/schema/where"
)

// ID adds a UUID primary key generated with uuid.New.
//
// For other key types, write a mixin declaring an "id" field:
//
//	type SnowflakeID struct{ mixin.Schema }
//
//	func (SnowflakeID) Fields() []schema.Field {
//		return []schema.Field{
//			field.Int64("id").Default(snowflake.Generate).Immutable(),
//		}
//	}
type ID struct{ mixin.Schema }

// Fields of the ID mixin.
func (ID) Fields() []schema.Field {
	return []schema.Field{
		field.UUID("id").
			Default(uuid.New).
			Immutable(),
	}
}

var _ schema.Mixin = (*ID)(nil)

// TenantPassthrough is the passthrough value holding the current tenant.
const TenantPassthrough = "tenant_id"

// TenantScope is the name of the default scope restricting rows to the
// current tenant.
const TenantScope = "tenant"

// TenantID adds an immutable tenant_id column. Every query and join of
// the entity is restricted to the tenant passed as the tenant_id
// passthrough value; a query missing it fails with
// MissingPassthroughValueError. Records created without a tenant take
// the tenant of the viewer, and writes across tenants are denied.
type TenantID struct{ mixin.Schema }

// Fields of the TenantID mixin.
func (TenantID) Fields() []schema.Field {
	return []schema.Field{
		field.String("tenant_id").
			Optional().
			Immutable().
			NotEmpty(),
	}
}

// Scopes of the TenantID mixin.
func (TenantID) Scopes() []schema.Scope {
	return []schema.Scope{
		{Name: TenantScope, Where: where.Clause{"tenant_id": where.Passthrough(TenantPassthrough)}},
	}
}

// Validations of the TenantID mixin.
func (TenantID) Validations() []schema.Validation {
	return []schema.Validation{{
		Name: "tenant",
		Fn: func(ctx context.Context, r *schema.Record, errs *dream.ValidationFailedError) {
			if r.Get("tenant_id") != nil {
				return
			}
			if v := privacy.ViewerFromContext(ctx); v != nil && v.GetTenantID() != "" && !r.IsPersisted() {
				r.Set("tenant_id", v.GetTenantID())
				return
			}
			errs.Add("tenant_id", "can't be blank")
		},
	}}
}

// Policy of the TenantID mixin.
func (TenantID) Policy() dream.Policy {
	return privacy.Policy{
		Mutation: privacy.MutationPolicy{
			privacy.TenantRule("tenant_id"),
		},
	}
}

var _ schema.Mixin = (*TenantID)(nil)

// TimeSoftDelete composes mixin.Time and mixin.SoftDelete.
type TimeSoftDelete struct{ mixin.Schema }

// Fields of the TimeSoftDelete mixin.
func (TimeSoftDelete) Fields() []schema.Field {
	return append(
		mixin.Time{}.Fields(),
		mixin.SoftDelete{}.Fields()...,
	)
}

// Scopes of the TimeSoftDelete mixin.
func (TimeSoftDelete) Scopes() []schema.Scope {
	return mixin.SoftDelete{}.Scopes()
}

var _ schema.Mixin = (*TimeSoftDelete)(nil)
