package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"log/slog"

	"github.com/lmittmann/tint"
	"github.com/rs/cors"

	"PizzaLeaderserver/internal/auth"
	"PizzaLeaderserver/internal/blob"
	"PizzaLeaderserver/internal/config"
	"PizzaLeaderserver/internal/httpapi"
	"PizzaLeaderserver/internal/service"
	"PizzaLeaderserver/internal/store/postgres"
	"PizzaLeaderserver/internal/visibility"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	ctx := context.Background()

	blobs, media, err := newBlobStore(ctx, cfg)
	if err != nil {
		logger.Error("blob store init failed", "backend", cfg.BlobBackend, "err", err)
		os.Exit(1)
	}

	decider, err := visibility.NewDecider(ctx, cfg.VisibilityEngine)
	if err != nil {
		logger.Error("visibility engine init failed", "engine", cfg.VisibilityEngine, "err", err)
		os.Exit(1)
	}

	opts := httpapi.RouterOpts{
		Logger: logger,
		IsProd: cfg.IsProd(),
		Cookies: auth.SessionCookies{
			Codec:  auth.NewCookieCodec([]byte(cfg.CookieSecret)),
			TTL:    cfg.SessionTTL,
			Secure: cfg.CookieSecure(),
		},
		Media:   media,
		Metrics: httpapi.NewMetrics(),
	}

	if cfg.DBDSN != "" {
		if cfg.DBMigrate {
			if err := postgres.Migrate(cfg.DBDSN, logger); err != nil {
				logger.Error("db migrate failed", "err", err)
				os.Exit(1)
			}
		}

		pgPool, err := postgres.Open(ctx, cfg.DBDSN)
		if err != nil {
			logger.Error("db open failed", "err", err)
			os.Exit(1)
		}
		defer pgPool.Close()

		users := postgres.NewUsersStore(pgPool)
		sessions := postgres.NewSessionsStore(pgPool)
		profiles := postgres.NewProfilesStore(pgPool)
		friendships := postgres.NewFriendshipsStore(pgPool)
		groups := postgres.NewGroupsStore(pgPool)
		pizzas := postgres.NewPizzasStore(pgPool)

		friendsSvc := &service.FriendsService{Profiles: profiles, Friendships: friendships, Logger: logger}
		groupsSvc := &service.GroupsService{Groups: groups, Profiles: profiles, Logger: logger}
		visibilitySvc := &service.VisibilityService{Friends: friendsSvc, Groups: groupsSvc, Decider: decider}

		opts.DBPing = pgPool.Ping
		opts.Auth = &service.AuthService{
			Users:      users,
			Sessions:   sessions,
			SessionTTL: cfg.SessionTTL,
			Verifiers:  newVerifiers(cfg),
			Logger:     logger,
		}
		opts.Profiles = &service.ProfileService{Store: profiles, Groups: groupsSvc}
		opts.Friends = friendsSvc
		opts.Groups = groupsSvc
		opts.Visibility = visibilitySvc
		opts.Pizzas = &service.PizzaService{
			Pizzas:   pizzas,
			Profiles: profiles,
			Gate:     visibilitySvc,
			Blobs:    blobs,
			Logger:   logger,
		}
		opts.Leaderboards = &service.LeaderboardService{
			Friends:  friendsSvc,
			Groups:   groupsSvc,
			Profiles: profiles,
			Pizzas:   pizzas,
		}
	} else {
		logger.Warn("APP_DB_DSN not set, api disabled")
	}

	handler := httpapi.NewRouter(opts)
	if len(cfg.CORSOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-Id"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: true,
		}).Handler(handler)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "env", cfg.Env, "addr", cfg.Addr, "visibility_engine", cfg.VisibilityEngine, "blob_backend", cfg.BlobBackend)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}
}

// newBlobStore returns the photo store and, for the disk backend, the handler
// that serves it under /media/.
func newBlobStore(ctx context.Context, cfg config.Config) (blob.Store, http.Handler, error) {
	switch cfg.BlobBackend {
	case "s3":
		s, err := blob.NewS3Store(ctx, cfg.S3Bucket, cfg.S3Region, cfg.BlobPublicURL)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	case "disk", "":
		s, err := blob.NewDiskStore(cfg.BlobDir, cfg.BlobPublicURL)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Handler(), nil
	default:
		return nil, nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}
}

func newVerifiers(cfg config.Config) map[string]auth.IdentityVerifier {
	out := map[string]auth.IdentityVerifier{}
	if cfg.GoogleClientID != "" {
		out[auth.ProviderGoogle] = auth.NewGoogleVerifier(cfg.GoogleClientID)
	}
	if cfg.AppleServiceID != "" {
		out[auth.ProviderApple] = &auth.AppleVerifier{ServiceID: cfg.AppleServiceID}
	}
	return out
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	if cfg.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}
