package postgres

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"PizzaLeaderserver/internal/domain"
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
	pgForeignKey      = "23503"
)

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func textOrEmpty(t pgtype.Text) string {
	if t.Valid {
		return t.String
	}
	return ""
}

func timestamptzPtr(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	tt := t.Time
	return &tt
}

func int8Ptr(v pgtype.Int8) *int64 {
	if !v.Valid {
		return nil
	}
	i := v.Int64
	return &i
}

func uuidOrEmpty(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuidBytesToString(u.Bytes)
}

func uuidBytesToString(b [16]byte) string {
	var buf [36]byte
	hex.Encode(buf[0:8], b[0:4])
	buf[8] = '-'
	hex.Encode(buf[9:13], b[4:6])
	buf[13] = '-'
	hex.Encode(buf[14:18], b[6:8])
	buf[18] = '-'
	hex.Encode(buf[19:23], b[8:10])
	buf[23] = '-'
	hex.Encode(buf[24:36], b[10:16])
	return string(buf[:])
}

// likePattern escapes LIKE wildcards so q matches literally as a substring.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}

// mapWriteError translates constraint violations into domain errors.
func mapWriteError(op string, err error) error {
	var pgerr *pgconn.PgError
	if !errors.As(err, &pgerr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	switch pgerr.Code {
	case pgUniqueViolation:
		switch pgerr.ConstraintName {
		case "users_username_uq":
			return domain.ErrUsernameTaken
		case "users_email_uq":
			return domain.ErrEmailTaken
		default:
			return fmt.Errorf("%s (%s): %w", op, pgerr.ConstraintName, domain.ErrAlreadyExists)
		}
	case pgCheckViolation:
		return fmt.Errorf("%s (%s): %w", op, pgerr.ConstraintName, domain.ErrInvalidOperation)
	case pgForeignKey:
		return fmt.Errorf("%s (%s): %w", op, pgerr.ConstraintName, domain.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
