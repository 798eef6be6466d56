package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"PizzaLeaderserver/internal/domain"
	"PizzaLeaderserver/internal/leaderboard"
)

type FriendLister interface {
	FriendIDs(ctx context.Context, userID string) ([]string, error)
}

type GroupParticipants interface {
	VisibleParticipants(ctx context.Context, viewerID string, groupID int64) (domain.Group, []string, error)
}

type LeaderboardService struct {
	Friends  FriendLister
	Groups   GroupParticipants
	Profiles ProfilesStore
	Pizzas   PizzasStore
	Now      func() time.Time
}

type LeaderboardResult struct {
	leaderboard.Board
	Year       int    `json:"year"`
	Month      int    `json:"month,omitempty"`
	Ingredient string `json:"ingredient,omitempty"`
	GroupID    int64  `json:"group_id,omitempty"`
}

func (s *LeaderboardService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *LeaderboardService) normalizePeriod(p domain.Period) (domain.Period, error) {
	if p.Year == 0 {
		p.Year = s.now().UTC().Year()
	}
	p.Ingredient = strings.ToLower(strings.TrimSpace(p.Ingredient))

	fields := map[string]string{}
	if p.Year < minYear || p.Year > maxYear {
		fields["year"] = fmt.Sprintf("must be between %d and %d", minYear, maxYear)
	}
	if p.Month < 0 || p.Month > 12 {
		fields["month"] = "must be between 1 and 12"
	}
	if len(fields) > 0 {
		return domain.Period{}, domain.NewValidationError(fields)
	}
	return p, nil
}

// FriendsLeaderboard ranks the viewer against their accepted friends.
func (s *LeaderboardService) FriendsLeaderboard(ctx context.Context, viewerID string, period domain.Period, opts leaderboard.Options) (LeaderboardResult, error) {
	period, err := s.normalizePeriod(period)
	if err != nil {
		return LeaderboardResult{}, err
	}
	friends, err := s.Friends.FriendIDs(ctx, viewerID)
	if err != nil {
		return LeaderboardResult{}, err
	}
	ids := append([]string{viewerID}, friends...)
	return s.build(ctx, ids, viewerID, period, opts)
}

// GroupLeaderboard ranks the group's active participants. Closed and private
// groups are only open to their participants.
func (s *LeaderboardService) GroupLeaderboard(ctx context.Context, viewerID string, groupID int64, period domain.Period, opts leaderboard.Options) (LeaderboardResult, error) {
	period, err := s.normalizePeriod(period)
	if err != nil {
		return LeaderboardResult{}, err
	}
	g, ids, err := s.Groups.VisibleParticipants(ctx, viewerID, groupID)
	if err != nil {
		return LeaderboardResult{}, err
	}
	res, err := s.build(ctx, ids, viewerID, period, opts)
	if err != nil {
		return LeaderboardResult{}, err
	}
	res.GroupID = g.ID
	return res, nil
}

func (s *LeaderboardService) build(ctx context.Context, ids []string, viewerID string, period domain.Period, opts leaderboard.Options) (LeaderboardResult, error) {
	profiles, err := s.Profiles.ListProfiles(ctx, ids)
	if err != nil {
		return LeaderboardResult{}, err
	}
	byID := make(map[string]domain.Profile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}

	from, to := period.Bounds()
	counts, err := s.Pizzas.CountPizzas(ctx, ids, from, to, period.Ingredient)
	if err != nil {
		return LeaderboardResult{}, err
	}
	bases := map[string]int{}
	if period.UsesYearlyOffset() {
		bases, err = s.Pizzas.YearlyCounters(ctx, ids, period.Year)
		if err != nil {
			return LeaderboardResult{}, err
		}
	}

	participants := make([]leaderboard.Participant, 0, len(ids))
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			// Profile vanished between the participant and profile reads.
			continue
		}
		participants = append(participants, leaderboard.Participant{
			UserID:      id,
			Username:    p.Username,
			DisplayName: p.DisplayName,
			Base:        bases[id],
			Count:       counts[id],
		})
	}

	board, err := leaderboard.Build(participants, viewerID, opts)
	if err != nil {
		return LeaderboardResult{}, err
	}
	return LeaderboardResult{
		Board:      board,
		Year:       period.Year,
		Month:      period.Month,
		Ingredient: period.Ingredient,
	}, nil
}
