package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"PizzaLeaderserver/internal/domain"
)

type GroupsStore interface {
	CreateGroup(ctx context.Context, g domain.Group) (domain.Group, error)
	GetGroup(ctx context.Context, id int64) (domain.Group, error)
	ListGroupsForUser(ctx context.Context, userID string) ([]domain.Group, error)
	SearchGroups(ctx context.Context, q string, limit int) ([]domain.Group, error)

	GetMembership(ctx context.Context, groupID int64, userID string) (domain.Membership, error)
	CreateMembership(ctx context.Context, m domain.Membership) (domain.Membership, error)
	ActivateMembership(ctx context.Context, groupID int64, userID string, when time.Time) (domain.Membership, error)
	DeleteMembership(ctx context.Context, groupID int64, userID string) error
	ListMemberships(ctx context.Context, groupID int64, status domain.MembershipStatus) ([]domain.Membership, error)
	ActiveGroupIDs(ctx context.Context, userID string) ([]int64, error)
}

type GroupsService struct {
	Groups   GroupsStore
	Profiles ProfilesStore
	Logger   *slog.Logger
	Now      func() time.Time
}

func (s *GroupsService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *GroupsService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

type CreateGroupParams struct {
	Name        string
	Description string
	Visibility  domain.GroupVisibility
}

func (s *GroupsService) CreateGroup(ctx context.Context, ownerID string, p CreateGroupParams) (domain.Group, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Description = strings.TrimSpace(p.Description)

	fields := map[string]string{}
	if n := utf8.RuneCountInString(p.Name); n == 0 || n > 64 {
		fields["name"] = "must be 1-64 characters"
	}
	if utf8.RuneCountInString(p.Description) > 280 {
		fields["description"] = "must be 280 characters or less"
	}
	if p.Visibility == "" {
		p.Visibility = domain.GroupPublic
	}
	if !p.Visibility.Valid() {
		fields["visibility"] = "must be one of public, closed, private"
	}
	if len(fields) > 0 {
		return domain.Group{}, domain.NewValidationError(fields)
	}

	g, err := s.Groups.CreateGroup(ctx, domain.Group{
		Name:        p.Name,
		Description: p.Description,
		Visibility:  p.Visibility,
		OwnerID:     ownerID,
	})
	if err != nil {
		return domain.Group{}, err
	}
	s.logger().Info("group created", "group_id", g.ID, "owner_id", ownerID, "visibility", g.Visibility)
	return g, nil
}

// membership returns the viewer's row in the group, or nil.
func (s *GroupsService) membership(ctx context.Context, groupID int64, userID string) (*domain.Membership, error) {
	if userID == "" {
		return nil, nil
	}
	m, err := s.Groups.GetMembership(ctx, groupID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// discoverable hides private groups from users with no tie to them.
func discoverable(g domain.Group, state domain.MembershipState) bool {
	return g.Visibility != domain.GroupPrivate || state != domain.MembershipNone
}

// GetGroup returns the group as seen by viewer. Private groups are reported
// as missing to viewers who neither own them nor hold a membership row.
func (s *GroupsService) GetGroup(ctx context.Context, viewerID string, groupID int64) (domain.GroupSummary, error) {
	g, err := s.Groups.GetGroup(ctx, groupID)
	if err != nil {
		return domain.GroupSummary{}, err
	}
	row, err := s.membership(ctx, groupID, viewerID)
	if err != nil {
		return domain.GroupSummary{}, err
	}
	state := domain.ClassifyMembership(g, viewerID, row)
	if !discoverable(g, state) {
		return domain.GroupSummary{}, domain.ErrNotFound
	}

	active, err := s.Groups.ListMemberships(ctx, groupID, domain.MembershipActive)
	if err != nil {
		return domain.GroupSummary{}, err
	}
	return domain.GroupSummary{
		Group:            g,
		ParticipantCount: len(domain.ActiveParticipants(g, active)),
		ViewerState:      state,
	}, nil
}

func (s *GroupsService) ListGroupsForUser(ctx context.Context, userID string) ([]domain.Group, error) {
	groups, err := s.Groups.ListGroupsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if groups == nil {
		groups = []domain.Group{}
	}
	return groups, nil
}

// SearchGroups matches names case-insensitively among discoverable groups.
func (s *GroupsService) SearchGroups(ctx context.Context, q string, limit int) ([]domain.Group, error) {
	q = strings.TrimSpace(q)
	if len(q) < 2 {
		return nil, domain.NewValidationError(map[string]string{"q": "must be at least 2 characters"})
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	groups, err := s.Groups.SearchGroups(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Group, 0, len(groups))
	for _, g := range groups {
		if g.Visibility != domain.GroupPrivate {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *GroupsService) JoinGroup(ctx context.Context, userID string, groupID int64) (domain.Membership, error) {
	g, err := s.Groups.GetGroup(ctx, groupID)
	if err != nil {
		return domain.Membership{}, err
	}
	existing, err := s.membership(ctx, groupID, userID)
	if err != nil {
		return domain.Membership{}, err
	}
	status, err := domain.CheckJoinGroup(g, userID, existing)
	if err != nil {
		return domain.Membership{}, err
	}

	m, err := s.Groups.CreateMembership(ctx, domain.Membership{
		GroupID: groupID,
		UserID:  userID,
		Role:    domain.RoleMember,
		Status:  status,
	})
	if err != nil {
		return domain.Membership{}, err
	}
	s.logger().Info("group joined", "group_id", groupID, "user_id", userID, "status", m.Status)
	return m, nil
}

func (s *GroupsService) LeaveGroup(ctx context.Context, userID string, groupID int64) error {
	g, err := s.Groups.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if err := domain.CheckLeaveGroup(g, userID); err != nil {
		return err
	}
	if err := s.Groups.DeleteMembership(ctx, groupID, userID); err != nil {
		return err
	}
	s.logger().Info("group left", "group_id", groupID, "user_id", userID)
	return nil
}

func (s *GroupsService) ApproveMember(ctx context.Context, actorID string, groupID int64, userID string) (domain.Membership, error) {
	g, err := s.Groups.GetGroup(ctx, groupID)
	if err != nil {
		return domain.Membership{}, err
	}
	actorRow, err := s.membership(ctx, groupID, actorID)
	if err != nil {
		return domain.Membership{}, err
	}
	target, err := s.Groups.GetMembership(ctx, groupID, userID)
	if err != nil {
		return domain.Membership{}, err
	}
	if err := domain.CheckApproveMember(g, actorID, actorRow, target); err != nil {
		return domain.Membership{}, err
	}

	m, err := s.Groups.ActivateMembership(ctx, groupID, userID, s.now())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Membership{}, domain.ErrInvalidState
		}
		return domain.Membership{}, err
	}
	s.logger().Info("membership approved", "group_id", groupID, "user_id", userID, "actor_id", actorID)
	return m, nil
}

func (s *GroupsService) RemoveMember(ctx context.Context, actorID string, groupID int64, userID string) error {
	if actorID == userID {
		return s.LeaveGroup(ctx, actorID, groupID)
	}
	g, err := s.Groups.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if userID == g.OwnerID {
		return domain.ErrUnauthorized
	}
	actorRow, err := s.membership(ctx, groupID, actorID)
	if err != nil {
		return err
	}
	target, err := s.Groups.GetMembership(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if err := domain.CheckRemoveMember(g, actorID, actorRow, target); err != nil {
		return err
	}
	if err := s.Groups.DeleteMembership(ctx, groupID, userID); err != nil {
		return err
	}
	s.logger().Info("member removed", "group_id", groupID, "user_id", userID, "actor_id", actorID)
	return nil
}

// ListPendingMembers is restricted to the owner and active admins.
func (s *GroupsService) ListPendingMembers(ctx context.Context, actorID string, groupID int64) ([]domain.PendingMember, error) {
	g, err := s.Groups.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	actorRow, err := s.membership(ctx, groupID, actorID)
	if err != nil {
		return nil, err
	}
	state := domain.ClassifyMembership(g, actorID, actorRow)
	if state != domain.MembershipOwner && !(state == domain.MembershipStateActive && actorRow.Role == domain.RoleAdmin) {
		if !discoverable(g, state) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrUnauthorized
	}

	rows, err := s.Groups.ListMemberships(ctx, groupID, domain.MembershipPending)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, m := range rows {
		ids = append(ids, m.UserID)
	}
	byID, err := profileSummaries(ctx, s.Profiles, ids)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PendingMember, 0, len(rows))
	for _, m := range rows {
		out = append(out, domain.PendingMember{Membership: m, User: summaryOr(byID, m.UserID)})
	}
	return out, nil
}

// ActiveParticipantIDs is the owner plus every active member.
func (s *GroupsService) ActiveParticipantIDs(ctx context.Context, g domain.Group) ([]string, error) {
	rows, err := s.Groups.ListMemberships(ctx, g.ID, domain.MembershipActive)
	if err != nil {
		return nil, err
	}
	return domain.ActiveParticipants(g, rows), nil
}

// ListActiveParticipants returns participant summaries for viewers allowed to
// see them: anyone for public groups, participants otherwise.
func (s *GroupsService) ListActiveParticipants(ctx context.Context, viewerID string, groupID int64) ([]domain.UserSummary, error) {
	_, ids, err := s.VisibleParticipants(ctx, viewerID, groupID)
	if err != nil {
		return nil, err
	}
	byID, err := profileSummaries(ctx, s.Profiles, ids)
	if err != nil {
		return nil, err
	}
	out := make([]domain.UserSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, summaryOr(byID, id))
	}
	return out, nil
}

// VisibleParticipants loads the group and its participant set, enforcing that
// the viewer may look inside it.
func (s *GroupsService) VisibleParticipants(ctx context.Context, viewerID string, groupID int64) (domain.Group, []string, error) {
	g, err := s.Groups.GetGroup(ctx, groupID)
	if err != nil {
		return domain.Group{}, nil, err
	}
	row, err := s.membership(ctx, groupID, viewerID)
	if err != nil {
		return domain.Group{}, nil, err
	}
	state := domain.ClassifyMembership(g, viewerID, row)
	if !discoverable(g, state) {
		return domain.Group{}, nil, domain.ErrNotFound
	}
	if g.Visibility != domain.GroupPublic && state != domain.MembershipOwner && state != domain.MembershipStateActive {
		return domain.Group{}, nil, domain.ErrUnauthorized
	}

	ids, err := s.ActiveParticipantIDs(ctx, g)
	if err != nil {
		return domain.Group{}, nil, err
	}
	return g, ids, nil
}

func (s *GroupsService) ActiveGroupIDs(ctx context.Context, userID string) ([]int64, error) {
	if userID == "" {
		return nil, nil
	}
	return s.Groups.ActiveGroupIDs(ctx, userID)
}

func profileSummaries(ctx context.Context, store ProfilesStore, ids []string) (map[string]domain.UserSummary, error) {
	out := make(map[string]domain.UserSummary, len(ids))
	if len(ids) == 0 || store == nil {
		return out, nil
	}
	profiles, err := store.ListProfiles(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, p := range profiles {
		out[p.ID] = p.Summary()
	}
	return out, nil
}

func summaryOr(byID map[string]domain.UserSummary, id string) domain.UserSummary {
	if u, ok := byID[id]; ok {
		return u
	}
	return domain.UserSummary{ID: id}
}
