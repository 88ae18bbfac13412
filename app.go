package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/yavishsahrawat40/My-Notes/internal/auth"
	"github.com/yavishsahrawat40/My-Notes/internal/config"
	"github.com/yavishsahrawat40/My-Notes/internal/db"
	"github.com/yavishsahrawat40/My-Notes/internal/handler"
	"github.com/yavishsahrawat40/My-Notes/internal/metrics"
	"github.com/yavishsahrawat40/My-Notes/internal/service"
)

// app owns every long-lived dependency of the server.
type app struct {
	cfg     config.Config
	log     zerolog.Logger
	pool    *pgxpool.Pool
	redis   *redis.Client
	refresh *service.RefreshTokens
	router  *gin.Engine
}

func newApp(ctx context.Context, cfg config.Config, log zerolog.Logger) (*app, error) {
	pool, err := db.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, pool: pool}

	if err := db.Migrate(ctx, pool); err != nil {
		a.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	sessionMetrics := metrics.NewSessions(registry)

	database := db.NewPostgres(pool)
	if err := a.initRefresh(ctx, database, sessionMetrics); err != nil {
		a.Close()
		return nil, err
	}

	codec, err := auth.NewTokenCodec([]byte(cfg.Auth.JWTSecret), cfg.Auth.JWTAccessTTL, cfg.Auth.JWTIssuer)
	if err != nil {
		a.Close()
		return nil, err
	}
	credentials, err := service.NewCredentialVerifier(database, 0)
	if err != nil {
		a.Close()
		return nil, err
	}

	authService := service.NewAuthService(database, credentials, codec, a.refresh, cfg.Auth.AllowSignup, log)
	userService := service.NewUserService(database, credentials, a.refresh, log)
	noteService := service.NewNoteService(database)

	if !cfg.Server.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	a.router = handler.NewRouter(handler.RouterDeps{
		Auth:           handler.NewAuthHandler(authService, userService),
		Notes:          handler.NewNoteHandler(noteService),
		Tokens:         authService,
		Metrics:        metrics.Handler(registry),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Log:            log,
	})

	return a, nil
}

// initRefresh picks the refresh session backend named by SESSION_STORE.
func (a *app) initRefresh(ctx context.Context, database *db.Postgres, m *metrics.Sessions) error {
	opts := []service.RefreshOption{
		service.WithRefreshMetrics(m),
		service.WithRefreshLogger(a.log),
	}
	ttl, timeout := a.cfg.Auth.JWTRefreshTTL, a.cfg.Session.StoreTimeout

	var err error
	switch a.cfg.Session.Store {
	case config.SessionStoreRedis:
		a.redis, err = db.NewRedisClient(ctx, a.cfg.Redis.URL)
		if err != nil {
			return err
		}
		store := db.NewRedisSessionStore(a.redis, a.cfg.Redis.KeyPrefix)
		a.refresh, err = service.NewRefreshTokens(store, ttl, timeout, opts...)
	default:
		a.refresh, err = service.NewRefreshTokens(database, ttl, timeout, opts...)
	}
	if err != nil {
		return fmt.Errorf("init refresh tokens: %w", err)
	}

	a.log.Info().Str("store", a.cfg.Session.Store).Msg("refresh session store ready")
	return nil
}

func (a *app) sweeper() *service.SessionSweeper {
	return service.NewSessionSweeper(a.refresh, a.cfg.Session.SweepInterval, a.log)
}

func (a *app) server() *http.Server {
	return &http.Server{
		Addr:              ":" + a.cfg.Server.Port,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close redis client")
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
