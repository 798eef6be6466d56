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

type UsersStore struct {
	pool *pgxpool.Pool
}

func NewUsersStore(pool *pgxpool.Pool) *UsersStore {
	return &UsersStore{pool: pool}
}

const userColumns = `id, email, username, created_at, updated_at, last_login_at`

type userRow struct {
	id        pgtype.UUID
	email     pgtype.Text
	lastLogin pgtype.Timestamptz
	u         domain.User
}

func (r *userRow) dest() []any {
	return []any{&r.id, &r.email, &r.u.Username, &r.u.CreatedAt, &r.u.UpdatedAt, &r.lastLogin}
}

func (r *userRow) user() domain.User {
	r.u.ID = uuidOrEmpty(r.id)
	r.u.Email = textOrEmpty(r.email)
	r.u.LastLoginAt = timestamptzPtr(r.lastLogin)
	return r.u
}

func insertUser(ctx context.Context, tx pgx.Tx, email, username, passwordHash string) (domain.User, error) {
	q := `
		INSERT INTO users (email, username, password_hash)
		VALUES ($1, $2, $3)
		RETURNING ` + userColumns

	var row userRow
	if err := tx.QueryRow(ctx, q, nullIfEmpty(email), username, nullIfEmpty(passwordHash)).Scan(row.dest()...); err != nil {
		return domain.User{}, mapWriteError("create user", err)
	}
	u := row.user()

	const qp = `INSERT INTO profiles (user_id) VALUES ($1)`
	if _, err := tx.Exec(ctx, qp, u.ID); err != nil {
		return domain.User{}, mapWriteError("create profile", err)
	}
	return u, nil
}

// CreateUser inserts the user and an empty profile in one transaction.
func (s *UsersStore) CreateUser(ctx context.Context, email, username, passwordHash string) (domain.User, error) {
	var u domain.User
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		u, err = insertUser(ctx, tx, email, username, passwordHash)
		return err
	})
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (s *UsersStore) CreateUserWithExternalAccount(ctx context.Context, provider, providerID, email, username string) (domain.User, error) {
	var u domain.User
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		u, err = insertUser(ctx, tx, email, username, "")
		if err != nil {
			return err
		}
		const q = `
			INSERT INTO external_accounts (user_id, provider, provider_id, email)
			VALUES ($1, $2, $3, $4)
		`
		if _, err := tx.Exec(ctx, q, u.ID, provider, providerID, nullIfEmpty(email)); err != nil {
			return mapWriteError("link external account", err)
		}
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (s *UsersStore) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	var uid pgtype.UUID
	if err := uid.Scan(id); err != nil {
		return domain.User{}, domain.ErrNotFound
	}

	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	var row userRow
	if err := s.pool.QueryRow(ctx, q, uid).Scan(row.dest()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return row.user(), nil
}

// GetUserByLogin matches the username first, then the email.
func (s *UsersStore) GetUserByLogin(ctx context.Context, login string) (domain.UserWithPassword, error) {
	q := `
		SELECT ` + userColumns + `, password_hash
		FROM users
		WHERE lower(username) = lower($1) OR (email IS NOT NULL AND lower(email) = lower($1))
		ORDER BY (lower(username) = lower($1)) DESC
		LIMIT 1
	`

	var (
		row  userRow
		hash pgtype.Text
	)
	if err := s.pool.QueryRow(ctx, q, login).Scan(append(row.dest(), &hash)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UserWithPassword{}, domain.ErrNotFound
		}
		return domain.UserWithPassword{}, fmt.Errorf("get user by login: %w", err)
	}
	return domain.UserWithPassword{User: row.user(), PasswordHash: textOrEmpty(hash)}, nil
}

func (s *UsersStore) GetUserByExternalAccount(ctx context.Context, provider, providerID string) (domain.User, error) {
	const q = `
		SELECT u.id, u.email, u.username, u.created_at, u.updated_at, u.last_login_at
		FROM external_accounts ea
		JOIN users u ON u.id = ea.user_id
		WHERE ea.provider = $1 AND ea.provider_id = $2
	`
	var row userRow
	if err := s.pool.QueryRow(ctx, q, provider, providerID).Scan(row.dest()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("get user by external account: %w", err)
	}
	return row.user(), nil
}

func (s *UsersStore) SetPasswordHash(ctx context.Context, userID, passwordHash string) error {
	const q = `
		UPDATE users
		SET password_hash = $2, updated_at = now()
		WHERE id = $1
	`
	ct, err := s.pool.Exec(ctx, q, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("set password hash: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *UsersStore) SetLastLogin(ctx context.Context, userID string, when time.Time) error {
	const q = `
		UPDATE users
		SET last_login_at = $2, updated_at = now()
		WHERE id = $1
	`
	if _, err := s.pool.Exec(ctx, q, userID, when); err != nil {
		return fmt.Errorf("set last login: %w", err)
	}
	return nil
}
