package privacy

import (
	"context"
	"errors"
	"fmt"

	"github.com/syssam/recordset"
)

// Policy decision sentinel errors.
//
//	if errors.Is(err, privacy.Deny) { ... }
var (
	// Allow may be returned by rules to indicate that the policy
	// evaluation should terminate with an allow decision.
	Allow = errors.New("recordset/privacy: allow rule")

	// Deny may be returned by rules to indicate that the policy
	// evaluation should terminate with a deny decision.
	Deny = errors.New("recordset/privacy: deny rule")

	// Skip may be returned by rules to indicate that the policy
	// evaluation should continue to the next rule.
	Skip = errors.New("recordset/privacy: skip rule")
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

// AlwaysAllowRule returns a rule that always returns an Allow decision.
func AlwaysAllowRule() QueryMutationRule {
	return fixedDecision{Allow}
}

// AlwaysDenyRule returns a rule that always returns a Deny decision.
func AlwaysDenyRule() QueryMutationRule {
	return fixedDecision{Deny}
}

// ContextQueryMutationRule creates a query/mutation rule from a context
// evaluation function. Returning nil is equivalent to returning Skip.
func ContextQueryMutationRule(eval func(context.Context) error) QueryMutationRule {
	return contextDecision{eval}
}

type (
	// QueryRule decides whether a fetch or count may run and optionally
	// narrows it.
	QueryRule interface {
		EvalQuery(context.Context, *recordset.Query) error
	}

	// QueryPolicy combines multiple query rules into a single policy.
	QueryPolicy []QueryRule

	// MutationRule decides whether a mutation may run.
	MutationRule interface {
		EvalMutation(context.Context, *recordset.Mutation) error
	}

	// MutationPolicy combines multiple mutation rules into a single policy.
	MutationPolicy []MutationRule

	// QueryMutationRule groups query and mutation rules.
	QueryMutationRule interface {
		QueryRule
		MutationRule
	}
)

// QueryRuleFunc type is an adapter which allows the use of ordinary
// functions as query rules.
type QueryRuleFunc func(context.Context, *recordset.Query) error

// EvalQuery returns f(ctx, q).
func (f QueryRuleFunc) EvalQuery(ctx context.Context, q *recordset.Query) error {
	return f(ctx, q)
}

// MutationRuleFunc type is an adapter which allows the use of ordinary
// functions as mutation rules.
type MutationRuleFunc func(context.Context, *recordset.Mutation) error

// EvalMutation returns f(ctx, m).
func (f MutationRuleFunc) EvalMutation(ctx context.Context, m *recordset.Mutation) error {
	return f(ctx, m)
}

// OnMutationOperation evaluates the given rule only on the given mutation
// operations.
func OnMutationOperation(rule MutationRule, op recordset.Op) MutationRule {
	return MutationRuleFunc(func(ctx context.Context, m *recordset.Mutation) error {
		if m.Op.Is(op) {
			return rule.EvalMutation(ctx, m)
		}
		return Skip
	})
}

// DenyMutationOperationRule returns a rule denying the given mutation
// operations.
func DenyMutationOperationRule(op recordset.Op) MutationRule {
	rule := MutationRuleFunc(func(_ context.Context, m *recordset.Mutation) error {
		return Denyf("recordset/privacy: operation %s is not allowed", m.Op)
	})
	return OnMutationOperation(rule, op)
}

// AllowMutationOperationRule returns a rule allowing the given mutation
// operations.
func AllowMutationOperationRule(op recordset.Op) MutationRule {
	rule := MutationRuleFunc(func(context.Context, *recordset.Mutation) error {
		return Allow
	})
	return OnMutationOperation(rule, op)
}

// Policy groups query and mutation policies. It implements
// recordset.Policy: Allow and Skip decisions let the operation run.
type Policy struct {
	Query    QueryPolicy
	Mutation MutationPolicy
}

// EvalQuery evaluates the query policy.
func (p Policy) EvalQuery(ctx context.Context, q *recordset.Query) error {
	return decide(ctx, func() error { return p.Query.EvalQuery(ctx, q) })
}

// EvalMutation evaluates the mutation policy.
func (p Policy) EvalMutation(ctx context.Context, m *recordset.Mutation) error {
	return decide(ctx, func() error { return p.Mutation.EvalMutation(ctx, m) })
}

// Policies combines multiple policies into a single policy. The first
// policy that denies stops the evaluation.
type Policies []recordset.Policy

// EvalQuery evaluates the query policies in order.
func (policies Policies) EvalQuery(ctx context.Context, q *recordset.Query) error {
	return policies.eval(ctx, func(policy recordset.Policy) error {
		return policy.EvalQuery(ctx, q)
	})
}

// EvalMutation evaluates the mutation policies in order.
func (policies Policies) EvalMutation(ctx context.Context, m *recordset.Mutation) error {
	return policies.eval(ctx, func(policy recordset.Policy) error {
		return policy.EvalMutation(ctx, m)
	})
}

func (policies Policies) eval(ctx context.Context, eval func(recordset.Policy) error) error {
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

// decide turns the outcome of a rule chain into the final verdict of a
// policy, honoring a decision carried by the context.
func decide(ctx context.Context, eval func() error) error {
	if decision, ok := DecisionFromContext(ctx); ok {
		return decision
	}
	switch decision := eval(); {
	case decision == nil, errors.Is(decision, Skip), errors.Is(decision, Allow):
		return nil
	default:
		return decision
	}
}

// EvalQuery evaluates a query against a query policy.
func (policies QueryPolicy) EvalQuery(ctx context.Context, q *recordset.Query) error {
	for _, policy := range policies {
		switch decision := policy.EvalQuery(ctx, q); {
		case decision == nil || errors.Is(decision, Skip):
		default:
			return decision
		}
	}
	return nil
}

// EvalMutation evaluates a mutation against a mutation policy.
func (policies MutationPolicy) EvalMutation(ctx context.Context, m *recordset.Mutation) error {
	for _, policy := range policies {
		switch decision := policy.EvalMutation(ctx, m); {
		case decision == nil || errors.Is(decision, Skip):
		default:
			return decision
		}
	}
	return nil
}

type decisionCtxKey struct{}

// DecisionContext creates a new context from the given parent context with
// a policy decision attached to it.
func DecisionContext(parent context.Context, decision error) context.Context {
	if decision == nil || errors.Is(decision, Skip) {
		return parent
	}
	return context.WithValue(parent, decisionCtxKey{}, decision)
}

// DecisionFromContext retrieves the policy decision from the context. An
// Allow decision is reported as nil.
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

func (f fixedDecision) EvalQuery(context.Context, *recordset.Query) error {
	return f.decision
}

func (f fixedDecision) EvalMutation(context.Context, *recordset.Mutation) error {
	return f.decision
}

type contextDecision struct {
	eval func(context.Context) error
}

func (c contextDecision) EvalQuery(ctx context.Context, _ *recordset.Query) error {
	return c.eval(ctx)
}

func (c contextDecision) EvalMutation(ctx context.Context, _ *recordset.Mutation) error {
	return c.eval(ctx)
}

// FilterFunc is an adapter that allows using ordinary functions as
// query/mutation rules that narrow the condition of an operation.
//
//	privacy.FilterFunc(func(ctx context.Context, where recordset.Condition) error {
//	    where["workspace_id"] = workspaceFromContext(ctx)
//	    return privacy.Skip
//	})
//
// On inserts there is no condition to narrow and the filter skips.
type FilterFunc func(context.Context, recordset.Condition) error

// EvalQuery calls f(ctx, q.Where).
func (f FilterFunc) EvalQuery(ctx context.Context, q *recordset.Query) error {
	if q.Where == nil {
		q.Where = recordset.Condition{}
	}
	return f(ctx, q.Where)
}

// EvalMutation calls f(ctx, m.Where) for updates and deletes.
func (f FilterFunc) EvalMutation(ctx context.Context, m *recordset.Mutation) error {
	if m.Op.Is(recordset.OpCreate) {
		return Skip
	}
	if m.Where == nil {
		m.Where = recordset.Condition{}
	}
	return f(ctx, m.Where)
}

var (
	_ QueryMutationRule = FilterFunc(nil)
	_ recordset.Policy  = Policy{}
	_ recordset.Policy  = Policies(nil)
)
