package service

import (
	"context"
	"errors"
	"testing"

	"PizzaLeaderserver/internal/domain"
)

var errTestStore = errors.New("store failure")

func newFriendsFixture() (*FriendsService, *memStore) {
	store := newMemStore()
	store.addProfile("a", "alice", domain.VisibilityEveryone)
	store.addProfile("b", "bob", domain.VisibilityEveryone)
	store.addProfile("c", "carol", domain.VisibilityEveryone)
	return &FriendsService{Profiles: store, Friendships: store}, store
}

func TestRequestFriendshipClassifiesBothSides(t *testing.T) {
	svc, store := newFriendsFixture()
	ctx := context.Background()

	req, err := svc.RequestFriendship(ctx, "a", "Bob")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if req.User.ID != "b" {
		t.Fatalf("unexpected addressee: %+v", req.User)
	}
	row := store.friendships[req.ID]
	if got := domain.ClassifyFriendship("a", &row); got != domain.FriendshipPendingOutgoing {
		t.Fatalf("requester state: %s", got)
	}
	if got := domain.ClassifyFriendship("b", &row); got != domain.FriendshipPendingIncoming {
		t.Fatalf("addressee state: %s", got)
	}
}

func TestRequestFriendshipRejectsDuplicatesAndSelf(t *testing.T) {
	svc, _ := newFriendsFixture()
	ctx := context.Background()

	if _, err := svc.RequestFriendship(ctx, "a", "bob"); err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := svc.RequestFriendship(ctx, "a", "bob"); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("same direction: got %v", err)
	}
	if _, err := svc.RequestFriendship(ctx, "b", "alice"); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("reverse direction: got %v", err)
	}
	if _, err := svc.RequestFriendship(ctx, "a", "alice"); !errors.Is(err, domain.ErrInvalidOperation) {
		t.Fatalf("self request: got %v", err)
	}
	if _, err := svc.RequestFriendship(ctx, "a", "nobody"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown user: got %v", err)
	}
	if _, err := svc.RequestFriendship(ctx, "a", " "); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("empty username: got %v", err)
	}
}

func TestAcceptFriendshipOnlyByAddressee(t *testing.T) {
	svc, _ := newFriendsFixture()
	ctx := context.Background()

	req, err := svc.RequestFriendship(ctx, "a", "bob")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := svc.AcceptFriendship(ctx, "a", req.ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("requester accept: got %v", err)
	}
	if _, err := svc.AcceptFriendship(ctx, "c", req.ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("stranger accept: got %v", err)
	}

	row, err := svc.AcceptFriendship(ctx, "b", req.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	for _, viewer := range []string{"a", "b"} {
		if got := domain.ClassifyFriendship(viewer, &row); got != domain.FriendshipStateAccepted {
			t.Fatalf("%s state: %s", viewer, got)
		}
	}
	if _, err := svc.AcceptFriendship(ctx, "b", req.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("accept twice: got %v", err)
	}

	ok, err := svc.AreFriends(ctx, "b", "a")
	if err != nil || !ok {
		t.Fatalf("expected friends: %v %v", ok, err)
	}
}

func TestRemoveFriendshipTwiceIsNotFound(t *testing.T) {
	svc, _ := newFriendsFixture()
	ctx := context.Background()

	req, err := svc.RequestFriendship(ctx, "a", "bob")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if err := svc.RemoveFriendship(ctx, "c", req.ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("stranger remove: got %v", err)
	}
	if err := svc.RemoveFriendship(ctx, "b", req.ID); err != nil {
		t.Fatalf("decline: %v", err)
	}
	if err := svc.RemoveFriendship(ctx, "b", req.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second remove: got %v", err)
	}

	rel, err := svc.Relationship(ctx, "a", "b")
	if err != nil || rel.State != domain.FriendshipNone {
		t.Fatalf("expected no relationship, got %+v %v", rel, err)
	}
}

func TestListOverviewAndFriendIDs(t *testing.T) {
	svc, _ := newFriendsFixture()
	ctx := context.Background()

	ab, _ := svc.RequestFriendship(ctx, "a", "bob")
	if _, err := svc.AcceptFriendship(ctx, "b", ab.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := svc.RequestFriendship(ctx, "c", "alice"); err != nil {
		t.Fatalf("request: %v", err)
	}

	ov, err := svc.ListOverview(ctx, "a")
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if len(ov.Friends) != 1 || ov.Friends[0].User.Username != "bob" {
		t.Fatalf("unexpected friends: %+v", ov.Friends)
	}
	if len(ov.Incoming) != 1 || ov.Incoming[0].User.ID != "c" || len(ov.Outgoing) != 0 {
		t.Fatalf("unexpected requests: %+v", ov)
	}

	ids, err := svc.FriendIDs(ctx, "a")
	if err != nil || len(ids) != 1 || ids[0] != "b" {
		t.Fatalf("friend ids: %v %v", ids, err)
	}
}

func TestRelationshipFlagsBothDirections(t *testing.T) {
	svc, store := newFriendsFixture()
	store.friendships[100] = domain.Friendship{ID: 100, RequesterID: "a", AddresseeID: "b", Status: domain.FriendshipPending}
	store.friendships[101] = domain.Friendship{ID: 101, RequesterID: "b", AddresseeID: "a", Status: domain.FriendshipPending}

	if _, err := svc.Relationship(context.Background(), "a", "b"); !errors.Is(err, domain.ErrInvariantViolated) {
		t.Fatalf("expected invariant violation, got %v", err)
	}
	if _, err := svc.RequestFriendship(context.Background(), "a", "bob"); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state on request, got %v", err)
	}
}
