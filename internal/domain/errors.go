package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrInvalidOperation   = errors.New("invalid_operation")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidState       = errors.New("invalid_state")
	ErrAlreadyExists      = errors.New("already_exists")
	ErrNotFound           = errors.New("not_found")
	ErrUsernameTaken      = errors.New("username_taken")
	ErrEmailTaken         = errors.New("email_taken")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrValidation         = errors.New("validation")

	// ErrNoMatch reports a leaderboard search that matched nobody. It is a
	// not-found condition, but distinct from an empty leaderboard.
	ErrNoMatch = fmt.Errorf("no_match: %w", ErrNotFound)

	// ErrInvariantViolated marks rows that should never coexist, such as two
	// friendship rows for the same pair.
	ErrInvariantViolated = fmt.Errorf("invariant_violated: %w", ErrInvalidState)
)

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(fields map[string]string) error {
	return &ValidationError{Fields: fields}
}
