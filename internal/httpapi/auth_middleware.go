package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"PizzaLeaderserver/internal/domain"
	"PizzaLeaderserver/internal/service"
)

type authCtxKey int

const (
	authUserKey authCtxKey = iota
	authSessionKey
)

func (a *api) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessID, ok := a.cookies.Read(r)
		if !ok {
			WriteDomainError(w, domain.ErrUnauthenticated)
			return
		}

		u, err := a.authSvc.ViewerForSession(r.Context(), sessID)
		if err != nil {
			WriteDomainError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(withViewer(r.Context(), u, sessID)))
	}
}

// optionalAuth attaches the viewer when a valid session is present and
// otherwise serves the request anonymously.
func (a *api) optionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessID, ok := a.cookies.Read(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		u, err := a.authSvc.ViewerForSession(r.Context(), sessID)
		if err != nil {
			if !errors.Is(err, domain.ErrUnauthenticated) {
				WriteDomainError(w, err)
				return
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(withViewer(r.Context(), u, sessID)))
	}
}

func withViewer(ctx context.Context, u domain.User, sessID string) context.Context {
	ctx = context.WithValue(ctx, authUserKey, u)
	return context.WithValue(ctx, authSessionKey, sessID)
}

func CurrentUser(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(authUserKey).(domain.User)
	return u, ok
}

// viewerID is "" for anonymous requests.
func viewerID(ctx context.Context) string {
	u, _ := CurrentUser(ctx)
	return u.ID
}

func CurrentSessionID(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(authSessionKey).(string)
	return s, ok
}

func clientInfo(r *http.Request) service.ClientInfo {
	return service.ClientInfo{IP: clientIP(r), UserAgent: r.UserAgent()}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
