package service

import (
	"context"
	"errors"
	"testing"

	"PizzaLeaderserver/internal/domain"
	"PizzaLeaderserver/internal/visibility"
)

type countingChecker struct {
	FriendshipChecker
	calls int
}

func (c *countingChecker) AreFriends(ctx context.Context, a, b string) (bool, error) {
	c.calls++
	return c.FriendshipChecker.AreFriends(ctx, a, b)
}

type visibilityFixture struct {
	store  *memStore
	vis    *VisibilityService
	checks *countingChecker
}

// owner "o" is friends with "f"; "g" shares group 1 with "o"; "x" is a stranger.
func newVisibilityFixture(t *testing.T, decider visibility.Decider) visibilityFixture {
	t.Helper()
	store := newMemStore()
	for _, u := range []string{"o", "f", "g", "x"} {
		store.addProfile(u, "user_"+u, domain.VisibilityEveryone)
	}
	friends := &FriendsService{Profiles: store, Friendships: store}
	ctx := context.Background()
	req, err := friends.RequestFriendship(ctx, "o", "user_f")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := friends.AcceptFriendship(ctx, "f", req.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	groups := &GroupsService{Groups: store, Profiles: store}
	grp, err := groups.CreateGroup(ctx, "g", CreateGroupParams{Name: "Deep Dish"})
	if err != nil {
		t.Fatalf("group: %v", err)
	}
	if _, err := groups.JoinGroup(ctx, "o", grp.ID); err != nil {
		t.Fatalf("join: %v", err)
	}

	checks := &countingChecker{FriendshipChecker: friends}
	return visibilityFixture{
		store:  store,
		checks: checks,
		vis:    &VisibilityService{Friends: checks, Groups: groups, Decider: decider},
	}
}

func TestVisibilityServicePolicies(t *testing.T) {
	rego, err := visibility.NewRegoDecider(context.Background())
	if err != nil {
		t.Fatalf("rego: %v", err)
	}

	cases := []struct {
		policy domain.PizzaVisibility
		allow  map[string]bool
	}{
		{domain.VisibilityEveryone, map[string]bool{"o": true, "f": true, "g": true, "x": true, "": true}},
		{"", map[string]bool{"o": true, "f": true, "g": true, "x": true, "": true}},
		{domain.VisibilityFriends, map[string]bool{"o": true, "f": true, "g": false, "x": false, "": false}},
		{domain.VisibilityGroups, map[string]bool{"o": true, "f": false, "g": true, "x": false, "": false}},
		{domain.VisibilityNone, map[string]bool{"o": true, "f": false, "g": false, "x": false, "": false}},
	}

	for _, decider := range []visibility.Decider{visibility.TableDecider{}, rego} {
		fx := newVisibilityFixture(t, decider)
		for _, tc := range cases {
			owner := fx.store.profiles["o"]
			owner.PizzaVisibility = tc.policy
			for viewer, want := range tc.allow {
				got, err := fx.vis.CanView(context.Background(), viewer, owner)
				if err != nil {
					t.Fatalf("%T %s/%q: %v", decider, tc.policy, viewer, err)
				}
				if got != want {
					t.Fatalf("%T policy %q viewer %q: got %v want %v", decider, tc.policy, viewer, got, want)
				}
			}
		}
	}
}

func TestVisibilityServiceSkipsUnneededLookups(t *testing.T) {
	fx := newVisibilityFixture(t, nil)
	owner := fx.store.profiles["o"]

	owner.PizzaVisibility = domain.VisibilityGroups
	if _, err := fx.vis.CanView(context.Background(), "x", owner); err != nil {
		t.Fatalf("can view: %v", err)
	}
	if fx.checks.calls != 0 {
		t.Fatalf("groups policy should not consult friendships")
	}

	owner.PizzaVisibility = domain.VisibilityFriends
	if _, err := fx.vis.CanView(context.Background(), "x", owner); err != nil {
		t.Fatalf("can view: %v", err)
	}
	if fx.checks.calls != 1 {
		t.Fatalf("expected one friendship lookup, got %d", fx.checks.calls)
	}
}

func TestVisibilityServiceRequire(t *testing.T) {
	fx := newVisibilityFixture(t, nil)
	owner := fx.store.profiles["o"]
	owner.PizzaVisibility = domain.VisibilityNone

	if err := fx.vis.Require(context.Background(), "f", owner); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := fx.vis.Require(context.Background(), "o", owner); err != nil {
		t.Fatalf("owner should always see: %v", err)
	}
}
