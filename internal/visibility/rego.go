package visibility

import (
	"context"
	_ "embed"
	"fmt"

	"PizzaLeaderserver/internal/domain"

	"github.com/open-policy-agent/opa/rego"
)

//go:embed visibility.rego
var regoPolicy string

const regoQuery = "data.pizza.visibility.allow"

// RegoDecider evaluates the visibility rules as a Rego policy. The query is
// prepared once and is safe for concurrent use.
type RegoDecider struct {
	query rego.PreparedEvalQuery
}

func NewRegoDecider(ctx context.Context) (*RegoDecider, error) {
	return NewRegoDeciderFromSource(ctx, regoPolicy)
}

func NewRegoDeciderFromSource(ctx context.Context, src string) (*RegoDecider, error) {
	pq, err := rego.New(
		rego.Query(regoQuery),
		rego.Module("visibility.rego", src),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare visibility policy: %w", err)
	}
	return &RegoDecider{query: pq}, nil
}

func (d *RegoDecider) Decide(ctx context.Context, policy domain.PizzaVisibility, f Facts) (bool, error) {
	input := map[string]any{
		"policy": string(policy.Effective()),
		"facts": map[string]any{
			"is_self":                 f.IsSelf,
			"is_accepted_friend":      f.IsAcceptedFriend,
			"shares_any_active_group": f.SharesAnyActiveGroup,
		},
	}

	rs, err := d.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("evaluate visibility policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("evaluate visibility policy: unexpected result %T", rs[0].Expressions[0].Value)
	}
	return allowed, nil
}

// NewDecider picks an engine by name: "table" (default) or "rego".
func NewDecider(ctx context.Context, engine string) (Decider, error) {
	switch engine {
	case "", "table":
		return TableDecider{}, nil
	case "rego":
		return NewRegoDecider(ctx)
	default:
		return nil, fmt.Errorf("unknown visibility engine %q", engine)
	}
}
