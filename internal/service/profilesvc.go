package service

import (
	"context"
	"slices"
	"strings"

	"PizzaLeaderserver/internal/domain"
)

type ProfilesStore interface {
	GetProfileByID(ctx context.Context, id string) (domain.Profile, error)
	GetProfileByUsername(ctx context.Context, username string) (domain.Profile, error)
	ListProfiles(ctx context.Context, ids []string) ([]domain.Profile, error)
	UpdateProfile(ctx context.Context, p domain.Profile) (domain.Profile, error)
	SearchProfiles(ctx context.Context, q string, limit int, excludeUserID string) ([]domain.Profile, error)
}

// ActiveGroupLister reports the groups a user owns or is an active member of.
type ActiveGroupLister interface {
	ActiveGroupIDs(ctx context.Context, userID string) ([]int64, error)
}

type ProfileService struct {
	Store  ProfilesStore
	Groups ActiveGroupLister
}

type UpdateProfileParams struct {
	DisplayName     *string
	PizzaVisibility *domain.PizzaVisibility
	// FavoriteGroupID set to a pointer to 0 clears the preference.
	FavoriteGroupID *int64
}

func (s *ProfileService) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	return s.Store.GetProfileByID(ctx, userID)
}

func (s *ProfileService) GetProfileByUsername(ctx context.Context, username string) (domain.Profile, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.Profile{}, domain.ErrNotFound
	}
	return s.Store.GetProfileByUsername(ctx, username)
}

func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, p UpdateProfileParams) (domain.Profile, error) {
	current, err := s.Store.GetProfileByID(ctx, userID)
	if err != nil {
		return domain.Profile{}, err
	}

	fields := map[string]string{}
	if p.DisplayName != nil {
		name := strings.TrimSpace(*p.DisplayName)
		if len(name) > 48 {
			fields["display_name"] = "must be 48 characters or less"
		}
		for _, r := range name {
			if r < 32 {
				fields["display_name"] = "contains invalid characters"
				break
			}
		}
		current.DisplayName = name
	}
	if p.PizzaVisibility != nil {
		v := *p.PizzaVisibility
		if v != "" && !v.Valid() {
			fields["pizza_visibility"] = "must be one of everyone, friends, groups, none"
		}
		current.PizzaVisibility = v
	}
	if p.FavoriteGroupID != nil {
		if *p.FavoriteGroupID == 0 {
			current.FavoriteGroupID = nil
		} else {
			ok, err := s.participates(ctx, userID, *p.FavoriteGroupID)
			if err != nil {
				return domain.Profile{}, err
			}
			if !ok {
				fields["favorite_group_id"] = "must be a group you participate in"
			}
			id := *p.FavoriteGroupID
			current.FavoriteGroupID = &id
		}
	}
	if len(fields) > 0 {
		return domain.Profile{}, domain.NewValidationError(fields)
	}

	return s.Store.UpdateProfile(ctx, current)
}

func (s *ProfileService) Search(ctx context.Context, q string, limit int, excludeUserID string) ([]domain.UserSummary, error) {
	q = strings.TrimSpace(q)
	if len(q) < 2 {
		return nil, domain.NewValidationError(map[string]string{"q": "must be at least 2 characters"})
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	profiles, err := s.Store.SearchProfiles(ctx, q, limit, excludeUserID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.UserSummary, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p.Summary())
	}
	return out, nil
}

func (s *ProfileService) participates(ctx context.Context, userID string, groupID int64) (bool, error) {
	if s.Groups == nil {
		return false, nil
	}
	ids, err := s.Groups.ActiveGroupIDs(ctx, userID)
	if err != nil {
		return false, err
	}
	return slices.Contains(ids, groupID), nil
}
