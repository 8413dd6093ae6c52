// Package privacy builds recordset policies from ordered rules.
//
// A policy is attached to an entity through recordset.Schema.Policy and is
// evaluated before every fetch, count and mutation of that entity,
// relation loads included:
//
//	recordset.Schema{
//	    Name: "PostModel",
//	    Policy: privacy.Policy{
//	        Query: privacy.QueryPolicy{
//	            privacy.DenyIfNoViewer(),
//	            privacy.TenantFilter("tenant_id"),
//	        },
//	        Mutation: privacy.MutationPolicy{
//	            privacy.DenyIfNoViewer(),
//	            privacy.HasRole("admin"),
//	            privacy.IsOwner("user_id"),
//	            privacy.AlwaysDenyRule(),
//	        },
//	    },
//	}
//
// # Rule Evaluation
//
// Rules run in order until one returns a decision:
//
//   - Allow: the operation runs, remaining rules are not evaluated
//   - Deny: the operation fails with an error wrapping Deny
//   - Skip or nil: the next rule is evaluated
//
// When every rule skips, the operation runs.
//
// # Filters
//
// Query rules receive the condition of the fetch and may narrow it.
// TenantFilter and OwnerFilter restrict rows to the viewer in context.
//
// # Viewer
//
// The viewer is carried by the context:
//
//	ctx = privacy.WithViewer(ctx, &privacy.SimpleViewer{
//	    UserID:   "7",
//	    Roles:    []string{"editor"},
//	    TenantID: "acme",
//	})
//
// A decision attached with DecisionContext short-circuits every policy,
// which is how trusted system code bypasses the rules:
//
//	ctx = privacy.DecisionContext(ctx, privacy.Allow)
package privacy
