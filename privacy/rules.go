package privacy

import (
	"context"
	"slices"

	"github.com/spf13/cast"

	"github.com/syssam/recordset"
)

// Viewer represents the authenticated user making a request.
type Viewer interface {
	// GetID returns the viewer's unique identifier.
	GetID() string
	// GetRoles returns the viewer's roles.
	GetRoles() []string
	// GetTenantID returns the viewer's tenant, or "" when not applicable.
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

// SimpleViewer is a basic implementation of the Viewer interface.
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

// DenyIfNoViewer returns a rule that denies access if no viewer is present
// in the context.
//
//	privacy.MutationPolicy{
//	    privacy.DenyIfNoViewer(),
//	    privacy.HasRole("admin"),
//	    privacy.AlwaysDenyRule(),
//	}
func DenyIfNoViewer() QueryMutationRule {
	return ContextQueryMutationRule(func(ctx context.Context) error {
		if ViewerFromContext(ctx) == nil {
			return Denyf("recordset/privacy: viewer required")
		}
		return Skip
	})
}

// HasRole returns a rule that allows access if the viewer has the role.
func HasRole(role string) QueryMutationRule {
	return HasAnyRole(role)
}

// HasAnyRole returns a rule that allows access if the viewer has any of
// the roles.
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

// IsOwner returns a mutation rule that allows the mutation if the value it
// writes to field, or requires of field, is the viewer's ID.
func IsOwner(field string) MutationRule {
	return MutationRuleFunc(func(ctx context.Context, m *recordset.Mutation) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		v, ok := m.Field(field)
		if !ok {
			return Skip
		}
		if cast.ToString(v) == viewer.GetID() {
			return Allow
		}
		return Skip
	})
}

// OwnerFilter returns a query rule restricting rows to those whose field
// holds the viewer's ID. It denies when no viewer is present.
func OwnerFilter(field string) QueryRule {
	return QueryRuleFunc(func(ctx context.Context, q *recordset.Query) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Denyf("recordset/privacy: viewer required for owner-filtered query")
		}
		if q.Where == nil {
			q.Where = recordset.Condition{}
		}
		q.Where[field] = viewer.GetID()
		return Skip
	})
}

// TenantRule returns a mutation rule that allows the mutation if the value
// of field matches the viewer's tenant and denies it otherwise. Inserts
// without the field get the viewer's tenant.
func TenantRule(field string) MutationRule {
	return MutationRuleFunc(func(ctx context.Context, m *recordset.Mutation) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil || viewer.GetTenantID() == "" {
			return Skip
		}
		tenant := viewer.GetTenantID()
		v, ok := m.Field(field)
		switch {
		case !ok && m.Op.Is(recordset.OpCreate) && m.Payload != nil:
			m.Payload[field] = tenant
			return Allow
		case !ok:
			// Updates and deletes are confined to the tenant.
			if m.Where == nil {
				m.Where = recordset.Condition{}
			}
			m.Where[field] = tenant
			return Skip
		case cast.ToString(v) == tenant:
			return Allow
		default:
			return Denyf("recordset/privacy: tenant mismatch")
		}
	})
}

// TenantFilter returns a query rule restricting rows to the viewer's
// tenant. It denies when no viewer or tenant is present.
func TenantFilter(field string) QueryRule {
	return QueryRuleFunc(func(ctx context.Context, q *recordset.Query) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Denyf("recordset/privacy: viewer required for tenant-filtered query")
		}
		if viewer.GetTenantID() == "" {
			return Denyf("recordset/privacy: tenant required")
		}
		if q.Where == nil {
			q.Where = recordset.Condition{}
		}
		q.Where[field] = viewer.GetTenantID()
		return Skip
	})
}
