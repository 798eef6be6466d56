package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"PizzaLeaderserver/internal/domain"
)

type ProfilesStore struct {
	pool *pgxpool.Pool
}

func NewProfilesStore(pool *pgxpool.Pool) *ProfilesStore {
	return &ProfilesStore{pool: pool}
}

const profileSelect = `
	SELECT u.id, u.username, p.display_name, p.pizza_visibility, p.favorite_group_id, p.updated_at
	FROM users u
	JOIN profiles p ON p.user_id = u.id
`

func scanProfile(row pgx.Row) (domain.Profile, error) {
	var (
		p          domain.Profile
		id         pgtype.UUID
		visibility pgtype.Text
		favorite   pgtype.Int8
	)
	if err := row.Scan(&id, &p.Username, &p.DisplayName, &visibility, &favorite, &p.UpdatedAt); err != nil {
		return domain.Profile{}, err
	}
	p.ID = uuidOrEmpty(id)
	p.PizzaVisibility = domain.PizzaVisibility(textOrEmpty(visibility))
	p.FavoriteGroupID = int8Ptr(favorite)
	return p, nil
}

func collectProfiles(rows pgx.Rows, op string) ([]domain.Profile, error) {
	defer rows.Close()

	out := []domain.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", op, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s *ProfilesStore) GetProfileByID(ctx context.Context, id string) (domain.Profile, error) {
	var uid pgtype.UUID
	if err := uid.Scan(id); err != nil {
		return domain.Profile{}, domain.ErrNotFound
	}
	p, err := scanProfile(s.pool.QueryRow(ctx, profileSelect+` WHERE u.id = $1`, uid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Profile{}, domain.ErrNotFound
		}
		return domain.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (s *ProfilesStore) GetProfileByUsername(ctx context.Context, username string) (domain.Profile, error) {
	p, err := scanProfile(s.pool.QueryRow(ctx, profileSelect+` WHERE lower(u.username) = lower($1)`, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Profile{}, domain.ErrNotFound
		}
		return domain.Profile{}, fmt.Errorf("get profile by username: %w", err)
	}
	return p, nil
}

// ListProfiles returns the profiles that exist among ids, in no particular
// order.
func (s *ProfilesStore) ListProfiles(ctx context.Context, ids []string) ([]domain.Profile, error) {
	if len(ids) == 0 {
		return []domain.Profile{}, nil
	}
	rows, err := s.pool.Query(ctx, profileSelect+` WHERE u.id = ANY($1::uuid[])`, ids)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return collectProfiles(rows, "list profiles")
}

func (s *ProfilesStore) UpdateProfile(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	const q = `
		UPDATE profiles
		SET display_name = $2, pizza_visibility = $3, favorite_group_id = $4, updated_at = now()
		WHERE user_id = $1
	`
	var favorite any
	if p.FavoriteGroupID != nil {
		favorite = *p.FavoriteGroupID
	}
	ct, err := s.pool.Exec(ctx, q, p.ID, p.DisplayName, nullIfEmpty(string(p.PizzaVisibility)), favorite)
	if err != nil {
		return domain.Profile{}, mapWriteError("update profile", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.Profile{}, domain.ErrNotFound
	}
	return s.GetProfileByID(ctx, p.ID)
}

func (s *ProfilesStore) SearchProfiles(ctx context.Context, q string, limit int, excludeUserID string) ([]domain.Profile, error) {
	query := profileSelect + `
		WHERE (u.username ILIKE $1 OR p.display_name ILIKE $1)
		  AND ($3 = '' OR u.id::text <> $3)
		ORDER BY lower(u.username)
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, likePattern(q), limit, excludeUserID)
	if err != nil {
		return nil, fmt.Errorf("search profiles: %w", err)
	}
	return collectProfiles(rows, "search profiles")
}
