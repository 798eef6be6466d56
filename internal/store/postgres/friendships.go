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

type FriendshipsStore struct {
	pool *pgxpool.Pool
}

func NewFriendshipsStore(pool *pgxpool.Pool) *FriendshipsStore {
	return &FriendshipsStore{pool: pool}
}

const friendshipColumns = `id, requester_id, addressee_id, status, created_at, updated_at`

func scanFriendship(row pgx.Row) (domain.Friendship, error) {
	var (
		f           domain.Friendship
		requesterID pgtype.UUID
		addresseeID pgtype.UUID
		status      string
	)
	if err := row.Scan(&f.ID, &requesterID, &addresseeID, &status, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return domain.Friendship{}, err
	}
	f.RequesterID = uuidOrEmpty(requesterID)
	f.AddresseeID = uuidOrEmpty(addresseeID)
	f.Status = domain.FriendshipStatus(status)
	return f, nil
}

func collectFriendships(rows pgx.Rows, op string) ([]domain.Friendship, error) {
	defer rows.Close()

	out := []domain.Friendship{}
	for rows.Next() {
		f, err := scanFriendship(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", op, err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// CreateFriendship inserts a pending edge. The pair index rejects a second
// row for the same two users in either direction.
func (s *FriendshipsStore) CreateFriendship(ctx context.Context, requesterID, addresseeID string) (domain.Friendship, error) {
	q := `
		INSERT INTO friendships (requester_id, addressee_id, status)
		VALUES ($1, $2, 'pending')
		RETURNING ` + friendshipColumns

	f, err := scanFriendship(s.pool.QueryRow(ctx, q, requesterID, addresseeID))
	if err != nil {
		return domain.Friendship{}, mapWriteError("create friendship", err)
	}
	return f, nil
}

func (s *FriendshipsStore) GetFriendship(ctx context.Context, id int64) (domain.Friendship, error) {
	q := `SELECT ` + friendshipColumns + ` FROM friendships WHERE id = $1`

	f, err := scanFriendship(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Friendship{}, domain.ErrNotFound
		}
		return domain.Friendship{}, fmt.Errorf("get friendship: %w", err)
	}
	return f, nil
}

func (s *FriendshipsStore) FindFriendshipsBetween(ctx context.Context, userA, userB string) ([]domain.Friendship, error) {
	q := `
		SELECT ` + friendshipColumns + `
		FROM friendships
		WHERE (requester_id = $1 AND addressee_id = $2)
		   OR (requester_id = $2 AND addressee_id = $1)
		ORDER BY id
	`
	rows, err := s.pool.Query(ctx, q, userA, userB)
	if err != nil {
		return nil, fmt.Errorf("find friendships: %w", err)
	}
	return collectFriendships(rows, "find friendships")
}

// AcceptFriendship only transitions a pending row addressed to addresseeID.
func (s *FriendshipsStore) AcceptFriendship(ctx context.Context, id int64, addresseeID string, when time.Time) (domain.Friendship, error) {
	q := `
		UPDATE friendships
		SET status = 'accepted', updated_at = $3
		WHERE id = $1 AND addressee_id = $2 AND status = 'pending'
		RETURNING ` + friendshipColumns

	f, err := scanFriendship(s.pool.QueryRow(ctx, q, id, addresseeID, when))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Friendship{}, domain.ErrNotFound
		}
		return domain.Friendship{}, fmt.Errorf("accept friendship: %w", err)
	}
	return f, nil
}

func (s *FriendshipsStore) DeleteFriendship(ctx context.Context, id int64) error {
	const q = `DELETE FROM friendships WHERE id = $1`
	ct, err := s.pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("delete friendship: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *FriendshipsStore) ListFriendships(ctx context.Context, userID string) ([]domain.Friendship, error) {
	q := `
		SELECT ` + friendshipColumns + `
		FROM friendships
		WHERE requester_id = $1 OR addressee_id = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list friendships: %w", err)
	}
	return collectFriendships(rows, "list friendships")
}
