// Package privacy provides the rule chains that decide whether reads and
// writes of an entity type may proceed.
//
// Policies are evaluated by dream itself, before a query is compiled and
// before a write reaches the database, so access control lives next to
// the definition of the entity type instead of in every caller.
//
// # Core Concepts
//
//   - Policy: the query and mutation rule chains of an entity type
//   - Rule: a function returning Allow, Deny or Skip
//   - Viewer: the identity the current context acts for
//
// # Defining Policies
//
// A definition returns its policy from Policy:
//
//	func (Post) Policy() dream.Policy {
//		return privacy.Policy{
//			Mutation: privacy.MutationPolicy{
//				privacy.DenyIfNoViewer(),     // require a viewer
//				privacy.HasRole("admin"),     // admins may write anything
//				privacy.IsOwner("author_id"), // authors may write their posts
//				privacy.AlwaysDenyRule(),     // everyone else is denied
//			},
//			Query: privacy.QueryPolicy{
//				privacy.TenantQueryRule("tenant_id"),
//			},
//		}
//	}
//
// Policies of mixins are combined with the policy of the definition
// through Policies; an Allow from any of them ends the evaluation.
//
// # Rule Evaluation
//
// Rules are evaluated in order until one returns a final decision:
//
//   - Allow: grants access and stops evaluation
//   - Deny: denies access and stops evaluation
//   - Skip: continues with the next rule
//
// A chain where every rule skips allows. Decisions may be wrapped with
// Allowf, Denyf and Skipf to carry a reason; they are compared with
// errors.Is.
//
// # Built-in Rules
//
//   - AlwaysAllowRule, AlwaysDenyRule: fixed decisions
//   - DenyIfNoViewer: denies when the context has no viewer
//   - HasRole, HasAnyRole: allow viewers holding a role
//   - IsOwner, OwnerQueryRule: match a column against the viewer ID
//   - TenantRule, TenantQueryRule: match a column against the viewer tenant
//   - DenyMutationOperationRule, AllowMutationOperationRule: decide by
//     write operation
//
// # Filtering Reads
//
// Query rules may narrow the read instead of deciding it. The condition
// is added to the WHERE clause of the root entity:
//
//	privacy.FilterFunc(func(ctx context.Context, q dream.Query) error {
//		q.WhereP("workspace_id", workspaceFrom(ctx))
//		return privacy.Skip
//	})
//
// # Viewer
//
// The viewer is stored in the context and read by the rules:
//
//	ctx := privacy.WithViewer(ctx, &privacy.SimpleViewer{
//		UserID:   "user-123",
//		Roles:    []string{"editor"},
//		TenantID: "acme",
//	})
//	posts, err := c.Query("Post").All(ctx)
//
// System tasks can bypass every policy with a fixed decision:
//
//	ctx = privacy.DecisionContext(ctx, privacy.Allow)
//
// # Errors
//
// The orchestrator evaluates mutation policies after validation and
// before any hook runs. Denials surface as *dream.PrivacyError, which
// names the entity type and the operation and wraps the decision:
//
//	var perr *dream.PrivacyError
//	if errors.As(err, &perr) {
//		log.Printf("%s %s denied: %v", perr.Op, perr.Entity, perr.Err)
//	}
package privacy
