// Package app wires the Social-app realtime server: config, logging, HTTP
// routes, and the websocket presence/fan-out gateway.
//
// It is intentionally small and deterministic to keep behavior predictable.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vuducc/Social-app/cmd/internal/auth"
	"github.com/vuducc/Social-app/cmd/internal/realtime"
)

// App owns the HTTP server wiring and the realtime gateway dependencies.
type App struct {
	cfg Config
	log Logger

	store     realtime.ConversationStore
	dbPool    *pgxpool.Pool
	dbEnabled bool

	ws *realtime.WSGateway
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	tokens, err := auth.NewTokenManager([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTTTL)
	if err != nil {
		return nil, fmt.Errorf("auth: SOCIAL_JWT_SECRET rejected: %w", err)
	}

	store, dbPool, dbEnabled, err := newStore(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	registry := realtime.NewRegistry(log)
	members := realtime.NewMembershipTracker()
	typing := realtime.NewTypingTracker()
	sessions := realtime.NewSessionController(log, registry, members, typing)

	var push realtime.PushSink = realtime.NopPushSink{}
	if cfg.PushLogSink {
		push = realtime.LogPushSink{Log: log}
	}

	engine := realtime.NewEngine(log, registry, members, typing, store, push)
	ws := realtime.NewWSGateway(log, tokens, engine, sessions)

	return &App{
		cfg:       cfg,
		log:       log,
		store:     store,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		ws:        ws,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.ws)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if err := a.store.Close(); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}
	if a.dbPool != nil {
		a.dbPool.Close()
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// newStore decides between Postgres-backed persistence and the in-memory dev store.
//
// Ownership model:
// - app owns the pool lifecycle
// - PostgresStore.Close() is a no-op
func newStore(ctx context.Context, cfg Config, log Logger) (realtime.ConversationStore, *pgxpool.Pool, bool, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		store := realtime.NewInMemoryStore()
		if cfg.DevSeedConversation != "" && len(cfg.DevSeedUsers) > 0 {
			store.AddParticipants(cfg.DevSeedConversation, cfg.DevSeedUsers...)
			log.Info("db.dev_seed.applied",
				"conversation_id", cfg.DevSeedConversation,
				"users", len(cfg.DevSeedUsers))
		}
		return store, nil, false, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, false, err
	}

	store, err := realtime.NewPostgresStore(pool, realtime.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return nil, nil, false, err
	}

	log.Info("db.enabled.postgres_store", "schema", cfg.DBSchema)
	return store, pool, true, nil
}
