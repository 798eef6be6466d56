package httpapi

import (
	"net/http"
	"strings"
	"time"

	"PizzaLeaderserver/internal/auth"
	"PizzaLeaderserver/internal/domain"
)

type userResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email,omitempty"`
	Username    string     `json:"username"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

func newUserResponse(u domain.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}

// sessionResponse also carries the signed token so native clients can send
// it as a bearer header instead of the cookie.
type sessionResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token"`
}

func (a *api) writeSession(w http.ResponseWriter, status int, u domain.User, sessID string) {
	a.cookies.Set(w, sessID)
	WriteJSON(w, status, sessionResponse{
		User:  newUserResponse(u),
		Token: a.cookies.Codec.EncodeSessionID(sessID),
	})
}

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *api) handleAuthRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}

	u, sessID, err := a.authSvc.Register(r.Context(), req.Email, req.Username, req.Password, clientInfo(r))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	a.writeSession(w, http.StatusCreated, u, sessID)
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

func (a *api) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}

	req.Login = strings.TrimSpace(req.Login)
	if req.Login == "" || req.Password == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"login": "required", "password": "required"}))
		return
	}

	now := time.Now()
	ip := clientIP(r)
	if !a.loginLimiter.Allow("ip:"+ip, now) || !a.loginLimiter.Allow("login:"+strings.ToLower(req.Login), now) {
		WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
		return
	}

	u, sessID, err := a.authSvc.Login(r.Context(), req.Login, req.Password, clientInfo(r))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	a.writeSession(w, http.StatusOK, u, sessID)
}

type externalLoginRequest struct {
	IDToken string `json:"id_token"`
}

// handleAuthExternal serves both identity providers; the route fixes which.
func (a *api) handleAuthExternal(provider string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req externalLoginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeBadJSON(w)
			return
		}
		req.IDToken = strings.TrimSpace(req.IDToken)
		if req.IDToken == "" {
			WriteDomainError(w, domain.NewValidationError(map[string]string{"id_token": "required"}))
			return
		}
		if !a.loginLimiter.Allow("ip:"+clientIP(r), time.Now()) {
			WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
			return
		}

		u, sessID, err := a.authSvc.LoginExternal(r.Context(), provider, req.IDToken, clientInfo(r))
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		a.writeSession(w, http.StatusOK, u, sessID)
	}
}

func (a *api) handleAuthLogout(w http.ResponseWriter, r *http.Request) {
	sessID, ok := CurrentSessionID(r.Context())
	if !ok || sessID == "" {
		WriteDomainError(w, domain.ErrUnauthenticated)
		return
	}

	if err := a.authSvc.Logout(r.Context(), sessID); err != nil {
		a.logger.Warn("logout failed", "err", err)
	}
	a.cookies.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

var externalProviders = []string{auth.ProviderGoogle, auth.ProviderApple}
