package service

import (
	"context"

	"PizzaLeaderserver/internal/domain"
	"PizzaLeaderserver/internal/visibility"
)

type FriendshipChecker interface {
	AreFriends(ctx context.Context, userA, userB string) (bool, error)
}

// VisibilityService gathers the relationship facts between a viewer and a
// content owner and hands them to the configured decider.
type VisibilityService struct {
	Friends FriendshipChecker
	Groups  ActiveGroupLister
	Decider visibility.Decider
}

func (s *VisibilityService) decider() visibility.Decider {
	if s.Decider == nil {
		return visibility.TableDecider{}
	}
	return s.Decider
}

// Facts loads only what the owner's policy consults. An empty viewer id is an
// anonymous viewer with no relationships.
func (s *VisibilityService) Facts(ctx context.Context, viewerID string, owner domain.Profile) (visibility.Facts, error) {
	f := visibility.Facts{IsSelf: viewerID != "" && viewerID == owner.ID}
	if f.IsSelf || viewerID == "" {
		return f, nil
	}

	needFriend, needGroups := visibility.Needs(owner.PizzaVisibility)
	if needFriend && s.Friends != nil {
		ok, err := s.Friends.AreFriends(ctx, viewerID, owner.ID)
		if err != nil {
			return visibility.Facts{}, err
		}
		f.IsAcceptedFriend = ok
	}
	if needGroups && s.Groups != nil {
		mine, err := s.Groups.ActiveGroupIDs(ctx, viewerID)
		if err != nil {
			return visibility.Facts{}, err
		}
		theirs, err := s.Groups.ActiveGroupIDs(ctx, owner.ID)
		if err != nil {
			return visibility.Facts{}, err
		}
		f.SharesAnyActiveGroup = visibility.SharesAnyGroup(mine, theirs)
	}
	return f, nil
}

func (s *VisibilityService) CanView(ctx context.Context, viewerID string, owner domain.Profile) (bool, error) {
	f, err := s.Facts(ctx, viewerID, owner)
	if err != nil {
		return false, err
	}
	return s.decider().Decide(ctx, owner.PizzaVisibility, f)
}

// Require is CanView reported as ErrUnauthorized.
func (s *VisibilityService) Require(ctx context.Context, viewerID string, owner domain.Profile) error {
	ok, err := s.CanView(ctx, viewerID, owner)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrUnauthorized
	}
	return nil
}
