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

type SessionsStore struct {
	pool *pgxpool.Pool
}

func NewSessionsStore(pool *pgxpool.Pool) *SessionsStore {
	return &SessionsStore{pool: pool}
}

func (s *SessionsStore) CreateSession(ctx context.Context, userID string, expiresAt time.Time, ip, userAgent string) (string, error) {
	const q = `
		INSERT INTO sessions (user_id, expires_at, ip, user_agent)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	var id pgtype.UUID
	err := s.pool.QueryRow(ctx, q, userID, expiresAt, nullIfEmpty(ip), nullIfEmpty(userAgent)).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return uuidOrEmpty(id), nil
}

// GetSession only returns live sessions. Ids that are not UUIDs are simply
// unknown.
func (s *SessionsStore) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	var sid pgtype.UUID
	if err := sid.Scan(sessionID); err != nil {
		return domain.Session{}, domain.ErrNotFound
	}

	const q = `
		SELECT id, user_id, created_at, expires_at, revoked_at
		FROM sessions
		WHERE id = $1 AND revoked_at IS NULL AND expires_at > now()
	`

	var (
		sess    domain.Session
		id      pgtype.UUID
		userID  pgtype.UUID
		revoked pgtype.Timestamptz
	)
	err := s.pool.QueryRow(ctx, q, sid).Scan(&id, &userID, &sess.CreatedAt, &sess.ExpiresAt, &revoked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Session{}, domain.ErrNotFound
		}
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}

	sess.ID = uuidOrEmpty(id)
	sess.UserID = uuidOrEmpty(userID)
	sess.RevokedAt = timestamptzPtr(revoked)
	return sess, nil
}

func (s *SessionsStore) RevokeSession(ctx context.Context, sessionID string, when time.Time) error {
	var sid pgtype.UUID
	if err := sid.Scan(sessionID); err != nil {
		return nil
	}

	const q = `
		UPDATE sessions
		SET revoked_at = $2
		WHERE id = $1 AND revoked_at IS NULL
	`
	if _, err := s.pool.Exec(ctx, q, sid, when); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}
