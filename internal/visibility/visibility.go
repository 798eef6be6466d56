// Package visibility decides whether a viewer may see content owned by
// another user, given the owner's pizza visibility policy and the
// relationship facts between the two.
package visibility

import (
	"context"

	"PizzaLeaderserver/internal/domain"
)

type Facts struct {
	IsSelf               bool `json:"is_self"`
	IsAcceptedFriend     bool `json:"is_accepted_friend"`
	SharesAnyActiveGroup bool `json:"shares_any_active_group"`
}

// CanView is the decision table. The owner always sees their own content.
func CanView(policy domain.PizzaVisibility, f Facts) bool {
	if f.IsSelf {
		return true
	}
	switch policy.Effective() {
	case domain.VisibilityEveryone:
		return true
	case domain.VisibilityFriends:
		return f.IsAcceptedFriend
	case domain.VisibilityGroups:
		return f.SharesAnyActiveGroup
	default:
		return false
	}
}

// Needs lists which facts a policy actually consults, so callers can skip
// store lookups that cannot change the outcome.
func Needs(policy domain.PizzaVisibility) (friend, groups bool) {
	switch policy.Effective() {
	case domain.VisibilityFriends:
		return true, false
	case domain.VisibilityGroups:
		return false, true
	}
	return false, false
}

// SharesAnyGroup reports a non-empty intersection. An empty set on either
// side is simply no intersection.
func SharesAnyGroup(a, b []int64) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	set := make(map[int64]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}

type Decider interface {
	Decide(ctx context.Context, policy domain.PizzaVisibility, f Facts) (bool, error)
}

// TableDecider evaluates CanView directly.
type TableDecider struct{}

func (TableDecider) Decide(_ context.Context, policy domain.PizzaVisibility, f Facts) (bool, error) {
	return CanView(policy, f), nil
}
