package domain

import "time"

type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
)

type Friendship struct {
	ID          int64            `json:"id"`
	RequesterID string           `json:"requester_id"`
	AddresseeID string           `json:"addressee_id"`
	Status      FriendshipStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Involves reports whether userID is either party of the edge.
func (f Friendship) Involves(userID string) bool {
	return userID != "" && (f.RequesterID == userID || f.AddresseeID == userID)
}

// Other returns the party that is not userID.
func (f Friendship) Other(userID string) string {
	if f.RequesterID == userID {
		return f.AddresseeID
	}
	return f.RequesterID
}

// FriendshipState is a friendship edge as seen by one of its parties.
type FriendshipState string

const (
	FriendshipNone            FriendshipState = "none"
	FriendshipPendingOutgoing FriendshipState = "pending_outgoing"
	FriendshipPendingIncoming FriendshipState = "pending_incoming"
	FriendshipStateAccepted   FriendshipState = "accepted"
)

func ClassifyFriendship(viewerID string, row *Friendship) FriendshipState {
	if row == nil || !row.Involves(viewerID) {
		return FriendshipNone
	}
	if row.Status == FriendshipAccepted {
		return FriendshipStateAccepted
	}
	if row.RequesterID == viewerID {
		return FriendshipPendingOutgoing
	}
	return FriendshipPendingIncoming
}

// CheckFriendRequest validates a new request against the rows already stored
// for the pair, in either direction.
func CheckFriendRequest(requesterID, addresseeID string, existing []Friendship) error {
	if requesterID == "" || addresseeID == "" {
		return ErrInvalidOperation
	}
	if requesterID == addresseeID {
		return ErrInvalidOperation
	}

	var forward, backward bool
	for _, f := range existing {
		switch {
		case f.RequesterID == requesterID && f.AddresseeID == addresseeID:
			forward = true
		case f.RequesterID == addresseeID && f.AddresseeID == requesterID:
			backward = true
		}
	}
	if forward && backward {
		return ErrInvariantViolated
	}
	if forward || backward {
		return ErrAlreadyExists
	}
	return nil
}

func CheckAcceptFriendship(actorID string, row Friendship) error {
	if row.Status != FriendshipPending {
		return ErrInvalidState
	}
	if actorID == "" || row.AddresseeID != actorID {
		return ErrUnauthorized
	}
	return nil
}

// CheckRemoveFriendship covers unfriend, cancel and decline.
func CheckRemoveFriendship(actorID string, row Friendship) error {
	if !row.Involves(actorID) {
		return ErrUnauthorized
	}
	return nil
}

type FriendEntry struct {
	FriendshipID int64       `json:"friendship_id"`
	User         UserSummary `json:"user"`
	Since        time.Time   `json:"since"`
}

type FriendRequest struct {
	ID        int64       `json:"id"`
	User      UserSummary `json:"user"`
	CreatedAt time.Time   `json:"created_at"`
}

type FriendsOverview struct {
	Friends  []FriendEntry   `json:"friends"`
	Incoming []FriendRequest `json:"incoming_requests"`
	Outgoing []FriendRequest `json:"outgoing_requests"`
}

// Relationship is the edge between a viewer and another user.
type Relationship struct {
	State        FriendshipState `json:"state"`
	FriendshipID int64           `json:"friendship_id,omitempty"`
}
