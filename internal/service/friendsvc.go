package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"PizzaLeaderserver/internal/domain"
)

type FriendshipsStore interface {
	CreateFriendship(ctx context.Context, requesterID, addresseeID string) (domain.Friendship, error)
	GetFriendship(ctx context.Context, id int64) (domain.Friendship, error)
	FindFriendshipsBetween(ctx context.Context, userA, userB string) ([]domain.Friendship, error)
	AcceptFriendship(ctx context.Context, id int64, addresseeID string, when time.Time) (domain.Friendship, error)
	DeleteFriendship(ctx context.Context, id int64) error
	ListFriendships(ctx context.Context, userID string) ([]domain.Friendship, error)
}

type FriendsService struct {
	Profiles    ProfilesStore
	Friendships FriendshipsStore
	Logger      *slog.Logger
	Now         func() time.Time
}

func (s *FriendsService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *FriendsService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// RequestFriendship creates a pending edge from requester to the user with
// the given username.
func (s *FriendsService) RequestFriendship(ctx context.Context, requesterID, addresseeUsername string) (domain.FriendRequest, error) {
	addresseeUsername = strings.TrimSpace(addresseeUsername)
	if addresseeUsername == "" {
		return domain.FriendRequest{}, domain.NewValidationError(map[string]string{"username": "required"})
	}

	target, err := s.Profiles.GetProfileByUsername(ctx, addresseeUsername)
	if err != nil {
		return domain.FriendRequest{}, err
	}

	existing, err := s.Friendships.FindFriendshipsBetween(ctx, requesterID, target.ID)
	if err != nil {
		return domain.FriendRequest{}, err
	}
	if err := domain.CheckFriendRequest(requesterID, target.ID, existing); err != nil {
		if errors.Is(err, domain.ErrInvariantViolated) {
			s.logger().Error("friendship rows in both directions", "user_a", requesterID, "user_b", target.ID)
		}
		return domain.FriendRequest{}, err
	}

	row, err := s.Friendships.CreateFriendship(ctx, requesterID, target.ID)
	if err != nil {
		return domain.FriendRequest{}, err
	}

	s.logger().Info("friend request created", "friendship_id", row.ID, "requester_id", requesterID, "addressee_id", target.ID)
	return domain.FriendRequest{
		ID:        row.ID,
		User:      target.Summary(),
		CreatedAt: row.CreatedAt,
	}, nil
}

func (s *FriendsService) AcceptFriendship(ctx context.Context, actorID string, friendshipID int64) (domain.Friendship, error) {
	row, err := s.Friendships.GetFriendship(ctx, friendshipID)
	if err != nil {
		return domain.Friendship{}, err
	}
	if err := domain.CheckAcceptFriendship(actorID, row); err != nil {
		return domain.Friendship{}, err
	}

	updated, err := s.Friendships.AcceptFriendship(ctx, friendshipID, actorID, s.now())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// The row changed between the read and the conditional update.
			return domain.Friendship{}, domain.ErrInvalidState
		}
		return domain.Friendship{}, err
	}

	s.logger().Info("friend request accepted", "friendship_id", friendshipID, "addressee_id", actorID)
	return updated, nil
}

// RemoveFriendship deletes the edge whatever its status. It serves unfriend,
// cancel of an outgoing request and decline of an incoming one.
func (s *FriendsService) RemoveFriendship(ctx context.Context, actorID string, friendshipID int64) error {
	row, err := s.Friendships.GetFriendship(ctx, friendshipID)
	if err != nil {
		return err
	}
	if err := domain.CheckRemoveFriendship(actorID, row); err != nil {
		return err
	}
	if err := s.Friendships.DeleteFriendship(ctx, friendshipID); err != nil {
		return err
	}

	s.logger().Info("friendship removed", "friendship_id", friendshipID, "actor_id", actorID, "state", domain.ClassifyFriendship(actorID, &row))
	return nil
}

func (s *FriendsService) ListOverview(ctx context.Context, userID string) (domain.FriendsOverview, error) {
	rows, err := s.Friendships.ListFriendships(ctx, userID)
	if err != nil {
		return domain.FriendsOverview{}, err
	}

	ids := make([]string, 0, len(rows))
	for _, f := range rows {
		ids = append(ids, f.Other(userID))
	}
	summaries, err := profileSummaries(ctx, s.Profiles, ids)
	if err != nil {
		return domain.FriendsOverview{}, err
	}

	out := domain.FriendsOverview{
		Friends:  []domain.FriendEntry{},
		Incoming: []domain.FriendRequest{},
		Outgoing: []domain.FriendRequest{},
	}
	for _, f := range rows {
		other := f.Other(userID)
		user := summaryOr(summaries, other)
		switch domain.ClassifyFriendship(userID, &f) {
		case domain.FriendshipStateAccepted:
			out.Friends = append(out.Friends, domain.FriendEntry{FriendshipID: f.ID, User: user, Since: f.UpdatedAt})
		case domain.FriendshipPendingIncoming:
			out.Incoming = append(out.Incoming, domain.FriendRequest{ID: f.ID, User: user, CreatedAt: f.CreatedAt})
		case domain.FriendshipPendingOutgoing:
			out.Outgoing = append(out.Outgoing, domain.FriendRequest{ID: f.ID, User: user, CreatedAt: f.CreatedAt})
		}
	}

	sort.SliceStable(out.Friends, func(i, j int) bool {
		return strings.ToLower(out.Friends[i].User.Username) < strings.ToLower(out.Friends[j].User.Username)
	})
	sort.SliceStable(out.Incoming, func(i, j int) bool { return out.Incoming[i].CreatedAt.After(out.Incoming[j].CreatedAt) })
	sort.SliceStable(out.Outgoing, func(i, j int) bool { return out.Outgoing[i].CreatedAt.After(out.Outgoing[j].CreatedAt) })
	return out, nil
}

// Relationship classifies the edge between viewer and other.
func (s *FriendsService) Relationship(ctx context.Context, viewerID, otherID string) (domain.Relationship, error) {
	if viewerID == "" || otherID == "" || viewerID == otherID {
		return domain.Relationship{State: domain.FriendshipNone}, nil
	}
	rows, err := s.Friendships.FindFriendshipsBetween(ctx, viewerID, otherID)
	if err != nil {
		return domain.Relationship{}, err
	}
	switch len(rows) {
	case 0:
		return domain.Relationship{State: domain.FriendshipNone}, nil
	case 1:
		return domain.Relationship{State: domain.ClassifyFriendship(viewerID, &rows[0]), FriendshipID: rows[0].ID}, nil
	default:
		s.logger().Error("friendship rows in both directions", "user_a", viewerID, "user_b", otherID)
		return domain.Relationship{}, domain.ErrInvariantViolated
	}
}

func (s *FriendsService) AreFriends(ctx context.Context, userA, userB string) (bool, error) {
	rel, err := s.Relationship(ctx, userA, userB)
	if err != nil {
		return false, err
	}
	return rel.State == domain.FriendshipStateAccepted, nil
}

// FriendIDs lists the users with an accepted edge to userID.
func (s *FriendsService) FriendIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.Friendships.ListFriendships(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, f := range rows {
		if f.Status == domain.FriendshipAccepted {
			out = append(out, f.Other(userID))
		}
	}
	return out, nil
}
