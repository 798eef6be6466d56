package domain

import "time"

type GroupVisibility string

const (
	GroupPublic  GroupVisibility = "public"
	GroupClosed  GroupVisibility = "closed"
	GroupPrivate GroupVisibility = "private"
)

func (v GroupVisibility) Valid() bool {
	switch v {
	case GroupPublic, GroupClosed, GroupPrivate:
		return true
	}
	return false
}

type Group struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Visibility  GroupVisibility `json:"visibility"`
	OwnerID     string          `json:"owner_id"`
	CreatedAt   time.Time       `json:"created_at"`
}

type MembershipRole string

const (
	RoleMember MembershipRole = "member"
	RoleAdmin  MembershipRole = "admin"
)

type MembershipStatus string

const (
	MembershipPending MembershipStatus = "pending"
	MembershipActive  MembershipStatus = "active"
)

type Membership struct {
	ID        int64            `json:"id"`
	GroupID   int64            `json:"group_id"`
	UserID    string           `json:"user_id"`
	Role      MembershipRole   `json:"role"`
	Status    MembershipStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// MembershipState is a user's standing within one group. Owner is never
// stored; it is inferred from Group.OwnerID.
type MembershipState string

const (
	MembershipNone         MembershipState = "none"
	MembershipStatePending MembershipState = "pending"
	MembershipStateActive  MembershipState = "active"
	MembershipOwner        MembershipState = "owner"
)

func ClassifyMembership(g Group, userID string, row *Membership) MembershipState {
	if userID != "" && g.OwnerID == userID {
		return MembershipOwner
	}
	if row == nil || row.GroupID != g.ID || row.UserID != userID {
		return MembershipNone
	}
	if row.Status == MembershipActive {
		return MembershipStateActive
	}
	return MembershipStatePending
}

// JoinStatus is the status a fresh membership starts in. Closed and private
// groups both require approval.
func JoinStatus(v GroupVisibility) MembershipStatus {
	if v == GroupPublic {
		return MembershipActive
	}
	return MembershipPending
}

func CheckJoinGroup(g Group, userID string, existing *Membership) (MembershipStatus, error) {
	if userID == "" {
		return "", ErrInvalidOperation
	}
	if g.OwnerID == userID {
		return "", ErrInvalidOperation
	}
	if existing != nil {
		return "", ErrInvalidOperation
	}
	return JoinStatus(g.Visibility), nil
}

func CheckLeaveGroup(g Group, userID string) error {
	if g.OwnerID == userID {
		return ErrUnauthorized
	}
	return nil
}

// canManage reports whether actor may moderate memberships of g.
func canManage(g Group, actorID string, actorRow *Membership) bool {
	if actorID != "" && g.OwnerID == actorID {
		return true
	}
	return actorRow != nil &&
		actorRow.UserID == actorID &&
		actorRow.Status == MembershipActive &&
		actorRow.Role == RoleAdmin
}

func CheckApproveMember(g Group, actorID string, actorRow *Membership, target Membership) error {
	if !canManage(g, actorID, actorRow) {
		return ErrUnauthorized
	}
	if target.Status != MembershipPending {
		return ErrInvalidState
	}
	return nil
}

func CheckRemoveMember(g Group, actorID string, actorRow *Membership, target Membership) error {
	if target.UserID == g.OwnerID {
		return ErrUnauthorized
	}
	if !canManage(g, actorID, actorRow) {
		return ErrUnauthorized
	}
	if target.Role == RoleAdmin && g.OwnerID != actorID {
		return ErrUnauthorized
	}
	return nil
}

// ActiveParticipants is the owner followed by every active member. It is the
// set that counts toward a group for display and leaderboards alike.
func ActiveParticipants(g Group, rows []Membership) []string {
	out := make([]string, 0, len(rows)+1)
	seen := make(map[string]bool, len(rows)+1)
	if g.OwnerID != "" {
		out = append(out, g.OwnerID)
		seen[g.OwnerID] = true
	}
	for _, m := range rows {
		if m.GroupID != g.ID || m.Status != MembershipActive || seen[m.UserID] {
			continue
		}
		seen[m.UserID] = true
		out = append(out, m.UserID)
	}
	return out
}

type GroupSummary struct {
	Group
	ParticipantCount int             `json:"participant_count"`
	ViewerState      MembershipState `json:"viewer_state"`
}

type PendingMember struct {
	Membership
	User UserSummary `json:"user"`
}
