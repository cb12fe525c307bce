package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"charge2earn/backend/libs/auth"
	"charge2earn/backend/libs/db"
	libredis "charge2earn/backend/libs/redis"
	"charge2earn/backend/program/processor"
	"charge2earn/backend/program/runtime"
	"charge2earn/backend/services/ledger-service/internal/config"
	httpserver "charge2earn/backend/services/ledger-service/internal/http"
	"charge2earn/backend/services/ledger-service/internal/http/handlers"
	"charge2earn/backend/services/ledger-service/internal/http/middleware"
	redisstore "charge2earn/backend/services/ledger-service/internal/redis"
	"charge2earn/backend/services/ledger-service/internal/repository"
	"charge2earn/backend/services/ledger-service/internal/service"
	"charge2earn/backend/services/ledger-service/internal/ws"
)

// App wires ledger-service dependencies.
type App struct {
	server      *httpserver.Server
	hub         *ws.Hub
	db          *sql.DB
	level       *runtime.LevelStore
	redisClient *redis.Client
	logger      *zap.Logger
}

// New constructs the application graph.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	programID, err := cfg.ProgramID()
	if err != nil {
		return nil, err
	}
	adminKey, err := cfg.AdminKey()
	if err != nil {
		return nil, err
	}

	a := &App{logger: logger}
	store, err := a.openStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	var cache service.LeaderboardCache
	if cfg.Redis.Addr != "" {
		a.redisClient, err = libredis.NewRedisClient(ctx, libredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		cache = redisstore.NewLeaderboardCache(a.redisClient, cfg.LeaderboardTTL())
	}

	program := processor.New(processor.Config{
		ProgramID: programID,
		AdminKey:  adminKey,
		Rent:      processor.Rent{LamportsPerByte: cfg.Program.RentLamportsPerByte},
	}, logger)
	executor := runtime.NewExecutor(program, store, logger)
	ledgerService := service.NewLedgerService(executor, cache, adminKey, logger)

	a.hub = ws.NewHub(cfg.WS.PingInterval, logger)
	executor.Subscribe(a.hub.OnCommit)
	wsServer := ws.NewServer(a.hub, cfg.WS.WriteTimeout, cfg.WS.AllowedOrigins, logger)

	tokens := auth.NewTokenService(cfg.JWT.Secret, cfg.JWT.TTL)
	router := httpserver.NewRouter(httpserver.RouterDeps{
		Auth:      handlers.NewAuthHandlers(tokens, adminKey, cfg.JWT.LoginMaxAge, logger),
		Ledger:    handlers.NewLedgerHandlers(ledgerService, logger),
		Queries:   handlers.NewQueryHandlers(ledgerService, logger),
		Stream:    wsServer.HandleWS,
		Health:    handlers.NewHealthHandler(),
		Authn:     middleware.AuthMiddleware(tokens),
		AdminOnly: middleware.RequireRole(auth.RoleAdmin),
	})
	a.server = httpserver.NewServer(cfg.HTTPAddress(), router, logger)

	logger.Info("ledger ready",
		zap.Stringer("program_id", programID),
		zap.String("store", cfg.Store.Backend),
		zap.Bool("leaderboard_cache", cache != nil),
	)
	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg *config.Config) (runtime.AccountStore, error) {
	switch cfg.Store.Backend {
	case config.StoreMemory:
		return runtime.NewMemStore(), nil
	case config.StoreLevelDB:
		store, err := runtime.OpenLevelStore(cfg.Store.LevelDBPath)
		if err != nil {
			return nil, err
		}
		a.level = store
		return store, nil
	case config.StorePostgres:
		sqlDB, err := db.NewPostgresDB(ctx, cfg.Database.DSN, db.Pool{
			MaxOpenConns: cfg.Database.MaxOpenConns,
			ConnLifetime: cfg.Database.ConnLifetime,
		})
		if err != nil {
			return nil, err
		}
		a.db = sqlDB
		if err := repository.Migrate(ctx, sqlDB); err != nil {
			return nil, err
		}
		return repository.NewAccountRepository(sqlDB), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// Run starts the ping loop and HTTP server.
func (a *App) Run(ctx context.Context) error {
	go a.hub.Start(ctx)
	return a.server.Run(ctx)
}

// Close releases resources.
func (a *App) Close() {
	if a.level != nil {
		if err := a.level.Close(); err != nil {
			a.logger.Warn("failed to close leveldb", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
