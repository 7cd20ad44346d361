package privacy

import (
	"context"
	"errors"
	"fmt"

	dream "github.com/rvohealth/dream-sub006"
)

// Policy decision sentinel errors. Rules return one of them, possibly
// wrapped, to steer evaluation:
//
//	if errors.Is(err, privacy.Deny) { ... }
var (
	// Allow terminates evaluation with an allow decision.
	Allow = errors.New("dream/privacy: allow rule")

	// Deny terminates evaluation with a deny decision.
	Deny = errors.New("dream/privacy: deny rule")

	// Skip continues evaluation with the next rule.
	Skip = errors.New("dream/privacy: skip rule")
)

// Allowf returns a formatted wrapped Allow decision.
func Allowf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Allow)...)
}

// Denyf returns a formatted wrapped Deny decision.
func Denyf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Deny)...)
}

// Skipf returns a formatted wrapped Skip decision.
func Skipf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Skip)...)
}

// AlwaysAllowRule returns a rule that always allows.
func AlwaysAllowRule() QueryMutationRule {
	return fixedDecision{Allow}
}

// AlwaysDenyRule returns a rule that always denies.
func AlwaysDenyRule() QueryMutationRule {
	return fixedDecision{Deny}
}

// ContextQueryMutationRule creates a rule from a function of the context
// alone. Returning nil is equivalent to returning Skip.
func ContextQueryMutationRule(eval func(context.Context) error) QueryMutationRule {
	return contextDecision{eval}
}

type (
	// QueryRule decides whether a read may proceed and may narrow it.
	QueryRule interface {
		EvalQuery(context.Context, dream.Query) error
	}

	// QueryPolicy combines query rules.
	QueryPolicy []QueryRule

	// MutationRule decides whether a write may proceed.
	MutationRule interface {
		EvalMutation(context.Context, dream.Mutation) error
	}

	// MutationPolicy combines mutation rules.
	MutationPolicy []MutationRule

	// QueryMutationRule groups query and mutation rules.
	QueryMutationRule interface {
		QueryRule
		MutationRule
	}
)

// MutationRuleFunc adapts an ordinary function to a MutationRule.
type MutationRuleFunc func(context.Context, dream.Mutation) error

// EvalMutation returns f(ctx, m).
func (f MutationRuleFunc) EvalMutation(ctx context.Context, m dream.Mutation) error {
	return f(ctx, m)
}

// QueryRuleFunc adapts an ordinary function to a QueryRule.
type QueryRuleFunc func(context.Context, dream.Query) error

// EvalQuery returns f(ctx, q).
func (f QueryRuleFunc) EvalQuery(ctx context.Context, q dream.Query) error {
	return f(ctx, q)
}

// OnMutationOperation evaluates rule only for the given operations.
func OnMutationOperation(rule MutationRule, op dream.Op) MutationRule {
	return MutationRuleFunc(func(ctx context.Context, m dream.Mutation) error {
		if m.Op().Is(op) {
			return rule.EvalMutation(ctx, m)
		}
		return Skip
	})
}

// DenyMutationOperationRule returns a rule denying the given operations.
func DenyMutationOperationRule(op dream.Op) MutationRule {
	rule := MutationRuleFunc(func(_ context.Context, m dream.Mutation) error {
		return Denyf("dream/privacy: operation %s on %s is not allowed", m.Op(), m.Entity())
	})
	return OnMutationOperation(rule, op)
}

// AllowMutationOperationRule returns a rule allowing the given operations.
func AllowMutationOperationRule(op dream.Op) MutationRule {
	rule := MutationRuleFunc(func(context.Context, dream.Mutation) error {
		return Allow
	})
	return OnMutationOperation(rule, op)
}

// Policy groups query and mutation policies.
type Policy struct {
	Query    QueryPolicy
	Mutation MutationPolicy
}

// EvalQuery forwards evaluation to the query policy.
func (p Policy) EvalQuery(ctx context.Context, q dream.Query) error {
	return p.Query.EvalQuery(ctx, q)
}

// EvalMutation forwards evaluation to the mutation policy.
func (p Policy) EvalMutation(ctx context.Context, m dream.Mutation) error {
	return p.Mutation.EvalMutation(ctx, m)
}

// Policies combines the policies of an entity type and its mixins. An
// Allow from one policy ends evaluation with a nil error.
type Policies []dream.Policy

// EvalQuery evaluates the query side of every policy.
func (policies Policies) EvalQuery(ctx context.Context, q dream.Query) error {
	return policies.eval(ctx, func(policy dream.Policy) error {
		return policy.EvalQuery(ctx, q)
	})
}

// EvalMutation evaluates the mutation side of every policy.
func (policies Policies) EvalMutation(ctx context.Context, m dream.Mutation) error {
	return policies.eval(ctx, func(policy dream.Policy) error {
		return policy.EvalMutation(ctx, m)
	})
}

func (policies Policies) eval(ctx context.Context, eval func(dream.Policy) error) error {
	if decision, ok := DecisionFromContext(ctx); ok {
		return decision
	}
	for _, policy := range policies {
		switch decision := eval(policy); {
		case decision == nil || errors.Is(decision, Skip):
		case errors.Is(decision, Allow):
			return nil
		default:
			return decision
		}
	}
	return nil
}

// EvalQuery evaluates rules in order until one decides.
func (policies QueryPolicy) EvalQuery(ctx context.Context, q dream.Query) error {
	for _, policy := range policies {
		switch decision := policy.EvalQuery(ctx, q); {
		case decision == nil || errors.Is(decision, Skip):
		default:
			return decision
		}
	}
	return nil
}

// EvalMutation evaluates rules in order until one decides.
func (policies MutationPolicy) EvalMutation(ctx context.Context, m dream.Mutation) error {
	for _, policy := range policies {
		switch decision := policy.EvalMutation(ctx, m); {
		case decision == nil || errors.Is(decision, Skip):
		default:
			return decision
		}
	}
	return nil
}

// Denied converts a policy result into a *dream.PrivacyError, or nil
// when the result is not a denial.
func Denied(entity, op string, decision error) error {
	if decision == nil || errors.Is(decision, Allow) || errors.Is(decision, Skip) {
		return nil
	}
	return &dream.PrivacyError{Entity: entity, Op: op, Err: decision}
}

type decisionCtxKey struct{}

// DecisionContext returns a context carrying a decision that short-cuts
// every Policies evaluation, e.g. for system tasks.
func DecisionContext(parent context.Context, decision error) context.Context {
	if decision == nil || errors.Is(decision, Skip) {
		return parent
	}
	return context.WithValue(parent, decisionCtxKey{}, decision)
}

// DecisionFromContext retrieves the decision set by DecisionContext.
func DecisionFromContext(ctx context.Context) (error, bool) {
	decision, ok := ctx.Value(decisionCtxKey{}).(error)
	if ok && errors.Is(decision, Allow) {
		decision = nil
	}
	return decision, ok
}

type fixedDecision struct {
	decision error
}

func (f fixedDecision) EvalQuery(context.Context, dream.Query) error {
	return f.decision
}

func (f fixedDecision) EvalMutation(context.Context, dream.Mutation) error {
	return f.decision
}

type contextDecision struct {
	eval func(context.Context) error
}

func (c contextDecision) EvalQuery(ctx context.Context, _ dream.Query) error {
	return c.eval(ctx)
}

func (c contextDecision) EvalMutation(ctx context.Context, _ dream.Mutation) error {
	return c.eval(ctx)
}

// FilterFunc narrows reads with conditions derived from the context:
//
//	privacy.FilterFunc(func(ctx context.Context, q dream.Query) error {
//		q.WhereP("workspace_id", workspaceFrom(ctx))
//		return privacy.Skip
//	})
type FilterFunc func(context.Context, dream.Query) error

// EvalQuery returns f(ctx, q).
func (f FilterFunc) EvalQuery(ctx context.Context, q dream.Query) error {
	return f(ctx, q)
}

var (
	_ QueryMutationRule = fixedDecision{}
	_ QueryRule         = FilterFunc(nil)
	_ dream.Policy      = Policies(nil)
	_ dream.Policy      = Policy{}
)
