package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"PizzaLeaderserver/internal/domain"
)

type GroupsStore struct {
	pool *pgxpool.Pool
}

func NewGroupsStore(pool *pgxpool.Pool) *GroupsStore {
	return &GroupsStore{pool: pool}
}

const groupColumns = `g.id, g.name, g.description, g.visibility, g.owner_id, g.created_at`

func scanGroup(row pgx.Row) (domain.Group, error) {
	var (
		g          domain.Group
		visibility string
		ownerID    pgtype.UUID
	)
	if err := row.Scan(&g.ID, &g.Name, &g.Description, &visibility, &ownerID, &g.CreatedAt); err != nil {
		return domain.Group{}, err
	}
	g.Visibility = domain.GroupVisibility(visibility)
	g.OwnerID = uuidOrEmpty(ownerID)
	return g, nil
}

func collectGroups(rows pgx.Rows, op string) ([]domain.Group, error) {
	defer rows.Close()

	out := []domain.Group{}
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", op, err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s *GroupsStore) CreateGroup(ctx context.Context, g domain.Group) (domain.Group, error) {
	const q = `
		INSERT INTO groups AS g (name, description, visibility, owner_id)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + groupColumns

	out, err := scanGroup(s.pool.QueryRow(ctx, q, g.Name, g.Description, string(g.Visibility), g.OwnerID))
	if err != nil {
		return domain.Group{}, mapWriteError("create group", err)
	}
	return out, nil
}

func (s *GroupsStore) GetGroup(ctx context.Context, id int64) (domain.Group, error) {
	const q = `SELECT ` + groupColumns + ` FROM groups g WHERE g.id = $1`

	g, err := scanGroup(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Group{}, domain.ErrNotFound
		}
		return domain.Group{}, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

// ListGroupsForUser returns groups the user owns or holds any membership row
// in, pending included.
func (s *GroupsStore) ListGroupsForUser(ctx context.Context, userID string) ([]domain.Group, error) {
	const q = `
		SELECT ` + groupColumns + `
		FROM groups g
		WHERE g.owner_id = $1
		   OR EXISTS (SELECT 1 FROM group_memberships m WHERE m.group_id = g.id AND m.user_id = $1)
		ORDER BY g.id
	`
	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list groups for user: %w", err)
	}
	return collectGroups(rows, "list groups for user")
}

func (s *GroupsStore) SearchGroups(ctx context.Context, q string, limit int) ([]domain.Group, error) {
	const query = `
		SELECT ` + groupColumns + `
		FROM groups g
		WHERE g.visibility <> 'private' AND g.name ILIKE $1
		ORDER BY lower(g.name), g.id
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, likePattern(q), limit)
	if err != nil {
		return nil, fmt.Errorf("search groups: %w", err)
	}
	return collectGroups(rows, "search groups")
}

const membershipColumns = `id, group_id, user_id, role, status, created_at, updated_at`

func scanMembership(row pgx.Row) (domain.Membership, error) {
	var (
		m      domain.Membership
		userID pgtype.UUID
		role   string
		status string
	)
	if err := row.Scan(&m.ID, &m.GroupID, &userID, &role, &status, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return domain.Membership{}, err
	}
	m.UserID = uuidOrEmpty(userID)
	m.Role = domain.MembershipRole(role)
	m.Status = domain.MembershipStatus(status)
	return m, nil
}

func (s *GroupsStore) GetMembership(ctx context.Context, groupID int64, userID string) (domain.Membership, error) {
	const q = `SELECT ` + membershipColumns + ` FROM group_memberships WHERE group_id = $1 AND user_id = $2`

	m, err := scanMembership(s.pool.QueryRow(ctx, q, groupID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Membership{}, domain.ErrNotFound
		}
		return domain.Membership{}, fmt.Errorf("get membership: %w", err)
	}
	return m, nil
}

func (s *GroupsStore) CreateMembership(ctx context.Context, m domain.Membership) (domain.Membership, error) {
	const q = `
		INSERT INTO group_memberships (group_id, user_id, role, status)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + membershipColumns

	role := m.Role
	if role == "" {
		role = domain.RoleMember
	}
	out, err := scanMembership(s.pool.QueryRow(ctx, q, m.GroupID, m.UserID, string(role), string(m.Status)))
	if err != nil {
		return domain.Membership{}, mapWriteError("create membership", err)
	}
	return out, nil
}

// ActivateMembership moves a pending row to active. A row that is missing or
// already active yields ErrNotFound.
func (s *GroupsStore) ActivateMembership(ctx context.Context, groupID int64, userID string, when time.Time) (domain.Membership, error) {
	const q = `
		UPDATE group_memberships
		SET status = 'active', updated_at = $3
		WHERE group_id = $1 AND user_id = $2 AND status = 'pending'
		RETURNING ` + membershipColumns

	m, err := scanMembership(s.pool.QueryRow(ctx, q, groupID, userID, when))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Membership{}, domain.ErrNotFound
		}
		return domain.Membership{}, fmt.Errorf("activate membership: %w", err)
	}
	return m, nil
}

func (s *GroupsStore) DeleteMembership(ctx context.Context, groupID int64, userID string) error {
	const q = `DELETE FROM group_memberships WHERE group_id = $1 AND user_id = $2`
	ct, err := s.pool.Exec(ctx, q, groupID, userID)
	if err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *GroupsStore) ListMemberships(ctx context.Context, groupID int64, status domain.MembershipStatus) ([]domain.Membership, error) {
	const q = `
		SELECT ` + membershipColumns + `
		FROM group_memberships
		WHERE group_id = $1 AND status = $2
		ORDER BY created_at, id
	`
	rows, err := s.pool.Query(ctx, q, groupID, string(status))
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	out := []domain.Membership{}
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	return out, nil
}

// ActiveGroupIDs is every group the user owns or actively belongs to.
func (s *GroupsStore) ActiveGroupIDs(ctx context.Context, userID string) ([]int64, error) {
	const q = `
		SELECT id FROM groups WHERE owner_id = $1
		UNION
		SELECT group_id FROM group_memberships WHERE user_id = $1 AND status = 'active'
		ORDER BY 1
	`
	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("active group ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("active group ids: %w", err)
	}
	return ids, nil
}
