package domain

import (
	"errors"
	"testing"
)

func TestClassifyFriendship(t *testing.T) {
	pending := &Friendship{ID: 1, RequesterID: "a", AddresseeID: "b", Status: FriendshipPending}
	accepted := &Friendship{ID: 2, RequesterID: "a", AddresseeID: "b", Status: FriendshipAccepted}

	cases := []struct {
		name   string
		viewer string
		row    *Friendship
		want   FriendshipState
	}{
		{"no row", "a", nil, FriendshipNone},
		{"requester sees outgoing", "a", pending, FriendshipPendingOutgoing},
		{"addressee sees incoming", "b", pending, FriendshipPendingIncoming},
		{"stranger sees none", "c", pending, FriendshipNone},
		{"requester accepted", "a", accepted, FriendshipStateAccepted},
		{"addressee accepted", "b", accepted, FriendshipStateAccepted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyFriendship(tc.viewer, tc.row); got != tc.want {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestCheckFriendRequest(t *testing.T) {
	if err := CheckFriendRequest("a", "a", nil); !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("self request: got %v", err)
	}
	if err := CheckFriendRequest("a", "b", nil); err != nil {
		t.Fatalf("fresh pair: got %v", err)
	}

	forward := Friendship{RequesterID: "a", AddresseeID: "b", Status: FriendshipPending}
	backward := Friendship{RequesterID: "b", AddresseeID: "a", Status: FriendshipPending}

	if err := CheckFriendRequest("a", "b", []Friendship{forward}); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("repeat request: got %v", err)
	}
	if err := CheckFriendRequest("a", "b", []Friendship{backward}); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("reverse request: got %v", err)
	}

	err := CheckFriendRequest("a", "b", []Friendship{forward, backward})
	if !errors.Is(err, ErrInvariantViolated) || !errors.Is(err, ErrInvalidState) {
		t.Fatalf("both directions: got %v", err)
	}
}

func TestCheckAcceptFriendship(t *testing.T) {
	row := Friendship{ID: 7, RequesterID: "a", AddresseeID: "b", Status: FriendshipPending}

	if err := CheckAcceptFriendship("a", row); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("requester accept: got %v", err)
	}
	if err := CheckAcceptFriendship("c", row); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("stranger accept: got %v", err)
	}
	if err := CheckAcceptFriendship("b", row); err != nil {
		t.Fatalf("addressee accept: got %v", err)
	}

	row.Status = FriendshipAccepted
	if err := CheckAcceptFriendship("b", row); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("accept accepted: got %v", err)
	}
}

func TestCheckRemoveFriendship(t *testing.T) {
	for _, status := range []FriendshipStatus{FriendshipPending, FriendshipAccepted} {
		row := Friendship{RequesterID: "a", AddresseeID: "b", Status: status}
		if err := CheckRemoveFriendship("a", row); err != nil {
			t.Fatalf("%s requester remove: %v", status, err)
		}
		if err := CheckRemoveFriendship("b", row); err != nil {
			t.Fatalf("%s addressee remove: %v", status, err)
		}
		if err := CheckRemoveFriendship("c", row); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("%s stranger remove: got %v", status, err)
		}
	}
}

func TestFriendshipOther(t *testing.T) {
	row := Friendship{RequesterID: "a", AddresseeID: "b"}
	if row.Other("a") != "b" || row.Other("b") != "a" {
		t.Fatalf("unexpected other party")
	}
}

func TestValidationErrorUnwrap(t *testing.T) {
	err := NewValidationError(map[string]string{"b": "bad", "a": "required"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation")
	}
	if got := err.Error(); got != "validation failed: a: required, b: bad" {
		t.Fatalf("unexpected message: %q", got)
	}
	if !errors.Is(ErrNoMatch, ErrNotFound) {
		t.Fatalf("expected ErrNoMatch to be a not-found error")
	}
}
