package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"PizzaLeaderserver/internal/auth"
	"PizzaLeaderserver/internal/service"
)

type RouterOpts struct {
	Logger *slog.Logger
	IsProd bool

	DBPing func(context.Context) error

	Auth         *service.AuthService
	Profiles     *service.ProfileService
	Friends      *service.FriendsService
	Groups       *service.GroupsService
	Visibility   *service.VisibilityService
	Pizzas       *service.PizzaService
	Leaderboards *service.LeaderboardService
	Cookies      auth.SessionCookies

	// Media serves locally stored photos under /media/. Nil when photos
	// live in an external bucket.
	Media   http.Handler
	Metrics *Metrics
}

func NewRouter(opts RouterOpts) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	api := &api{
		logger:         logger,
		isProd:         opts.IsProd,
		dbPing:         opts.DBPing,
		authSvc:        opts.Auth,
		profileSvc:     opts.Profiles,
		friendsSvc:     opts.Friends,
		groupsSvc:      opts.Groups,
		visibilitySvc:  opts.Visibility,
		pizzasSvc:      opts.Pizzas,
		leaderboardSvc: opts.Leaderboards,
		cookies:        opts.Cookies,
		loginLimiter:   newLoginLimiter(),
	}

	publicMux := http.NewServeMux()
	apiMux := http.NewServeMux()

	publicMux.HandleFunc("GET /healthz", api.handleHealthz)
	if opts.Metrics != nil {
		publicMux.Handle("GET /metrics", opts.Metrics.Handler())
	}
	if opts.Media != nil {
		publicMux.Handle("GET /media/", http.StripPrefix("/media/", opts.Media))
	}

	if api.authSvc == nil {
		apiMux.HandleFunc("/v1/", handleNotImplemented)
	} else {
		apiMux.HandleFunc("POST /v1/auth/register", api.handleAuthRegister)
		apiMux.HandleFunc("POST /v1/auth/login", api.handleAuthLogin)
		for _, p := range externalProviders {
			apiMux.HandleFunc("POST /v1/auth/"+p, api.handleAuthExternal(p))
		}
		apiMux.HandleFunc("POST /v1/auth/logout", api.requireAuth(api.handleAuthLogout))

		if api.profileSvc != nil {
			apiMux.HandleFunc("GET /v1/me", api.requireAuth(api.handleMe))
			apiMux.HandleFunc("PATCH /v1/me", api.requireAuth(api.handleMeUpdate))
			apiMux.HandleFunc("GET /v1/profiles/search", api.requireAuth(api.handleProfileSearch))
			apiMux.HandleFunc("GET /v1/profiles/{username}", api.optionalAuth(api.handleProfileGet))
		}

		if api.friendsSvc != nil {
			apiMux.HandleFunc("GET /v1/friends", api.requireAuth(api.handleFriendsList))
			apiMux.HandleFunc("POST /v1/friends/requests", api.requireAuth(api.handleFriendsCreateRequest))
			apiMux.HandleFunc("POST /v1/friends/{id}/accept", api.requireAuth(api.handleFriendsAccept))
			apiMux.HandleFunc("DELETE /v1/friends/{id}", api.requireAuth(api.handleFriendsRemove))
		}

		if api.groupsSvc != nil {
			apiMux.HandleFunc("POST /v1/groups", api.requireAuth(api.handleGroupsCreate))
			apiMux.HandleFunc("GET /v1/groups", api.requireAuth(api.handleGroupsMine))
			apiMux.HandleFunc("GET /v1/groups/search", api.requireAuth(api.handleGroupsSearch))
			apiMux.HandleFunc("GET /v1/groups/{id}", api.optionalAuth(api.handleGroupsGet))
			apiMux.HandleFunc("POST /v1/groups/{id}/join", api.requireAuth(api.handleGroupsJoin))
			apiMux.HandleFunc("POST /v1/groups/{id}/leave", api.requireAuth(api.handleGroupsLeave))
			apiMux.HandleFunc("GET /v1/groups/{id}/participants", api.requireAuth(api.handleGroupsParticipants))
			apiMux.HandleFunc("GET /v1/groups/{id}/pending", api.requireAuth(api.handleGroupsPending))
			apiMux.HandleFunc("POST /v1/groups/{id}/members/{userID}/approve", api.requireAuth(api.handleGroupsApprove))
			apiMux.HandleFunc("DELETE /v1/groups/{id}/members/{userID}", api.requireAuth(api.handleGroupsRemoveMember))
		}

		if api.pizzasSvc != nil {
			apiMux.HandleFunc("POST /v1/pizzas", api.requireAuth(api.handlePizzasCreate))
			apiMux.HandleFunc("DELETE /v1/pizzas/{id}", api.requireAuth(api.handlePizzasDelete))
			apiMux.HandleFunc("GET /v1/users/{username}/pizzas", api.optionalAuth(api.handleUserPizzas))
			apiMux.HandleFunc("GET /v1/users/{username}/ingredients", api.optionalAuth(api.handleUserIngredients))
			apiMux.HandleFunc("PUT /v1/counters/{year}", api.requireAuth(api.handleCounterSet))
		}

		if api.leaderboardSvc != nil {
			apiMux.HandleFunc("GET /v1/leaderboards/friends", api.requireAuth(api.handleLeaderboardFriends))
			apiMux.HandleFunc("GET /v1/groups/{id}/leaderboard", api.requireAuth(api.handleLeaderboardGroup))
		}
	}

	apiHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Handler only resolves the pattern; path values are set when the
		// mux itself serves the request.
		_, pattern := apiMux.Handler(r)
		if pattern == "" {
			handleV1NotFound(w, r)
			return
		}
		opts.Metrics.instrument(pattern, apiMux).ServeHTTP(w, r)
	})

	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1/") || r.URL.Path == "/v1" {
			apiHandler.ServeHTTP(w, r)
			return
		}
		publicMux.ServeHTTP(w, r)
	})

	var h http.Handler = root
	h = RequestLogger(logger)(h)
	h = RequestID()(h)
	h = Recoverer(logger, opts.IsProd)(h)
	return h
}

func handleNotImplemented(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotImplemented, "not_implemented", "not implemented")
}

func handleV1NotFound(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotFound, "not_found", "not found")
}

type api struct {
	logger *slog.Logger
	isProd bool

	dbPing func(context.Context) error

	authSvc        *service.AuthService
	profileSvc     *service.ProfileService
	friendsSvc     *service.FriendsService
	groupsSvc      *service.GroupsService
	visibilitySvc  *service.VisibilityService
	pizzasSvc      *service.PizzaService
	leaderboardSvc *service.LeaderboardService
	cookies        auth.SessionCookies

	loginLimiter *loginLimiter
}

func (a *api) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if a.dbPing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()
		if err := a.dbPing(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db down"))
			return
		}
	}

	_, _ = w.Write([]byte("ok"))
}
