package privacy

import (
	"context"
	"fmt"
	"slices"

	dream "github.com/rvohealth/dream-sub006"
)

// Viewer represents the authenticated user making a request.
type Viewer interface {
	GetID() string
	GetRoles() []string
	// GetTenantID returns "" when the application is not multi-tenant.
	GetTenantID() string
}

type viewerCtxKey struct{}

// WithViewer returns a new context with the viewer attached.
func WithViewer(ctx context.Context, viewer Viewer) context.Context {
	return context.WithValue(ctx, viewerCtxKey{}, viewer)
}

// ViewerFromContext retrieves the viewer from the context, or nil.
func ViewerFromContext(ctx context.Context) Viewer {
	v, _ := ctx.Value(viewerCtxKey{}).(Viewer)
	return v
}

// SimpleViewer is a basic Viewer.
type SimpleViewer struct {
	UserID   string
	Roles    []string
	TenantID string
}

// GetID returns the user ID.
func (v *SimpleViewer) GetID() string { return v.UserID }

// GetRoles returns the user's roles.
func (v *SimpleViewer) GetRoles() []string { return v.Roles }

// GetTenantID returns the tenant ID.
func (v *SimpleViewer) GetTenantID() string { return v.TenantID }

// DenyIfNoViewer denies when the context carries no viewer.
//
//	privacy.Policy{
//		Mutation: privacy.MutationPolicy{
//			privacy.DenyIfNoViewer(),
//			privacy.HasRole("admin"),
//			privacy.AlwaysDenyRule(),
//		},
//	}
func DenyIfNoViewer() QueryMutationRule {
	return ContextQueryMutationRule(func(ctx context.Context) error {
		if ViewerFromContext(ctx) == nil {
			return Denyf("dream/privacy: viewer required")
		}
		return Skip
	})
}

// HasRole allows viewers holding role and skips otherwise.
func HasRole(role string) QueryMutationRule {
	return HasAnyRole(role)
}

// HasAnyRole allows viewers holding one of roles and skips otherwise.
func HasAnyRole(roles ...string) QueryMutationRule {
	return ContextQueryMutationRule(func(ctx context.Context) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		for _, role := range roles {
			if slices.Contains(viewer.GetRoles(), role) {
				return Allow
			}
		}
		return Skip
	})
}

// IsOwner allows writes whose column holds the viewer's ID.
func IsOwner(column string) MutationRule {
	return MutationRuleFunc(func(ctx context.Context, m dream.Mutation) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		value, ok := m.Field(column)
		if !ok || value == nil {
			return Skip
		}
		if fmt.Sprint(value) == viewer.GetID() {
			return Allow
		}
		return Skip
	})
}

// OwnerQueryRule restricts reads to rows whose column holds the viewer's
// ID, and denies reads without a viewer.
func OwnerQueryRule(column string) QueryRule {
	return QueryRuleFunc(func(ctx context.Context, q dream.Query) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Denyf("dream/privacy: viewer required for owner-filtered %s query", q.Entity())
		}
		q.WhereP(column, viewer.GetID())
		return Skip
	})
}

// TenantRule allows writes whose column matches the viewer's tenant and
// denies mismatches. Previous values are checked as well so a row cannot
// be moved out of its tenant.
func TenantRule(column string) MutationRule {
	return MutationRuleFunc(func(ctx context.Context, m dream.Mutation) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil || viewer.GetTenantID() == "" {
			return Skip
		}
		tenant := viewer.GetTenantID()
		if old, ok := m.OldField(column); ok && old != nil && fmt.Sprint(old) != tenant {
			return Denyf("dream/privacy: tenant mismatch on %s", m.Entity())
		}
		value, ok := m.Field(column)
		if !ok {
			return Skip
		}
		if fmt.Sprint(value) == tenant {
			return Allow
		}
		return Denyf("dream/privacy: tenant mismatch on %s", m.Entity())
	})
}

// TenantQueryRule restricts reads to the viewer's tenant and denies reads
// without one.
func TenantQueryRule(column string) QueryRule {
	return QueryRuleFunc(func(ctx context.Context, q dream.Query) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Denyf("dream/privacy: viewer required for tenant-filtered %s query", q.Entity())
		}
		if viewer.GetTenantID() == "" {
			return Denyf("dream/privacy: tenant required")
		}
		q.WhereP(column, viewer.GetTenantID())
		return Skip
	})
}
