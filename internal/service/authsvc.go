package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/mail"
	"strings"
	"time"

	"PizzaLeaderserver/internal/auth"
	"PizzaLeaderserver/internal/domain"
)

// UsersStore creates users together with their profile row.
type UsersStore interface {
	CreateUser(ctx context.Context, email, username, passwordHash string) (domain.User, error)
	CreateUserWithExternalAccount(ctx context.Context, provider, providerID, email, username string) (domain.User, error)
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	GetUserByLogin(ctx context.Context, login string) (domain.UserWithPassword, error)
	GetUserByExternalAccount(ctx context.Context, provider, providerID string) (domain.User, error)
	SetPasswordHash(ctx context.Context, userID, passwordHash string) error
	SetLastLogin(ctx context.Context, userID string, when time.Time) error
}

type SessionsStore interface {
	CreateSession(ctx context.Context, userID string, expiresAt time.Time, ip, userAgent string) (string, error)
	GetSession(ctx context.Context, sessionID string) (domain.Session, error)
	RevokeSession(ctx context.Context, sessionID string, when time.Time) error
}

type AuthService struct {
	Users      UsersStore
	Sessions   SessionsStore
	SessionTTL time.Duration
	Verifiers  map[string]auth.IdentityVerifier
	Logger     *slog.Logger
	Now        func() time.Time
}

func (s *AuthService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *AuthService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

type ClientInfo struct {
	IP        string
	UserAgent string
}

func (s *AuthService) Register(ctx context.Context, email, username, password string, client ClientInfo) (domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	username = strings.TrimSpace(username)

	fields := map[string]string{}
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			fields["email"] = "invalid"
		}
	}
	if !domain.ValidUsername(username) {
		fields["username"] = "must be 3-24 letters, digits or underscores"
	}
	if msg := auth.PasswordProblem(password); msg != "" {
		fields["password"] = msg
	}
	if len(fields) > 0 {
		return domain.User{}, "", domain.NewValidationError(fields)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", err
	}
	u, err := s.Users.CreateUser(ctx, email, username, hash)
	if err != nil {
		return domain.User{}, "", err
	}

	sessID, err := s.startSession(ctx, u.ID, client)
	if err != nil {
		return domain.User{}, "", err
	}
	s.logger().Info("user registered", "user_id", u.ID)
	return u, sessID, nil
}

// Login accepts a username or email. Unknown logins and wrong passwords are
// indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, login, password string, client ClientInfo) (domain.User, string, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return domain.User{}, "", domain.ErrInvalidCredentials
	}

	u, err := s.Users.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, "", domain.ErrInvalidCredentials
		}
		return domain.User{}, "", err
	}
	if u.PasswordHash == "" {
		return domain.User{}, "", domain.ErrInvalidCredentials
	}
	ok, err := auth.VerifyPassword(u.PasswordHash, password)
	if err != nil {
		return domain.User{}, "", err
	}
	if !ok {
		return domain.User{}, "", domain.ErrInvalidCredentials
	}

	if auth.NeedsRehash(u.PasswordHash) {
		if hash, err := auth.HashPassword(password); err == nil {
			if err := s.Users.SetPasswordHash(ctx, u.ID, hash); err != nil {
				s.logger().Warn("password rehash failed", "user_id", u.ID, "err", err)
			}
		}
	}

	sessID, err := s.startSession(ctx, u.ID, client)
	if err != nil {
		return domain.User{}, "", err
	}
	return u.User, sessID, nil
}

// LoginExternal signs in with a provider ID token, creating the account on
// first use.
func (s *AuthService) LoginExternal(ctx context.Context, provider, token string, client ClientInfo) (domain.User, string, error) {
	v, ok := s.Verifiers[provider]
	if !ok || v == nil {
		return domain.User{}, "", fmt.Errorf("%w: provider %s not configured", domain.ErrInvalidOperation, provider)
	}
	id, err := v.Verify(ctx, token)
	if err != nil {
		s.logger().Info("external token rejected", "provider", provider, "err", err)
		return domain.User{}, "", domain.ErrInvalidCredentials
	}

	u, err := s.Users.GetUserByExternalAccount(ctx, provider, id.Subject)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		u, err = s.createExternalUser(ctx, id)
		if err != nil {
			return domain.User{}, "", err
		}
		s.logger().Info("user registered", "user_id", u.ID, "provider", provider)
	default:
		return domain.User{}, "", err
	}

	sessID, err := s.startSession(ctx, u.ID, client)
	if err != nil {
		return domain.User{}, "", err
	}
	return u, sessID, nil
}

func (s *AuthService) createExternalUser(ctx context.Context, id auth.ExternalIdentity) (domain.User, error) {
	base := usernameFromEmail(id.Email)
	email := id.Email
	for attempt := 0; attempt < 8; attempt++ {
		candidate := base
		if attempt > 0 {
			candidate = fmt.Sprintf("%s%d", base, 1000+rand.IntN(9000))
		}
		u, err := s.Users.CreateUserWithExternalAccount(ctx, id.Provider, id.Subject, email, candidate)
		switch {
		case err == nil:
			return u, nil
		case errors.Is(err, domain.ErrUsernameTaken):
			continue
		case errors.Is(err, domain.ErrEmailTaken) && email != "":
			// A password account owns the address; keep the accounts apart.
			email = ""
			attempt--
			continue
		default:
			return domain.User{}, err
		}
	}
	return domain.User{}, domain.ErrUsernameTaken
}

// usernameFromEmail keeps the valid characters of the local part, leaving
// room for a numeric suffix.
func usernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	var b strings.Builder
	for _, r := range strings.ToLower(local) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
		if b.Len() == 19 {
			break
		}
	}
	name := b.String()
	if len(name) < 3 {
		name = "pizzafan"
	}
	return name
}

func (s *AuthService) startSession(ctx context.Context, userID string, client ClientInfo) (string, error) {
	now := s.now()
	sessID, err := s.Sessions.CreateSession(ctx, userID, now.Add(s.SessionTTL), client.IP, client.UserAgent)
	if err != nil {
		return "", err
	}
	if err := s.Users.SetLastLogin(ctx, userID, now); err != nil {
		s.logger().Warn("set last login failed", "user_id", userID, "err", err)
	}
	return sessID, nil
}

func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	return s.Sessions.RevokeSession(ctx, sessionID, s.now())
}

// ViewerForSession resolves the signed-in user. Missing, expired and revoked
// sessions are all ErrUnauthenticated.
func (s *AuthService) ViewerForSession(ctx context.Context, sessionID string) (domain.User, error) {
	sess, err := s.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrUnauthenticated
		}
		return domain.User{}, err
	}
	if sess.RevokedAt != nil || !sess.ExpiresAt.After(s.now()) {
		return domain.User{}, domain.ErrUnauthenticated
	}

	u, err := s.Users.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrUnauthenticated
		}
		return domain.User{}, err
	}
	return u, nil
}
