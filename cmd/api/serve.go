package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/georgemunganga/sso-users/internal/config"
	"github.com/georgemunganga/sso-users/internal/database"
	"github.com/georgemunganga/sso-users/internal/discovery"
	"github.com/georgemunganga/sso-users/internal/logger"
	"github.com/georgemunganga/sso-users/internal/metrics"
	"github.com/georgemunganga/sso-users/internal/modules/auth"
	"github.com/georgemunganga/sso-users/internal/modules/user"
	"github.com/georgemunganga/sso-users/internal/ratelimit"
	"github.com/georgemunganga/sso-users/internal/security/password"
	"github.com/georgemunganga/sso-users/internal/server"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Environment, cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}
			defer func() { _ = log.Sync() }()

			return serve(cmd.Context(), cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.InsecureSecret() {
		log.Warn("JWT_SECRET is not set, tokens are signed with the built-in default secret")
	}

	// ── Store ───────────────────────────────────────────────
	repo, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	// ── Services ────────────────────────────────────────────
	m := metrics.New()
	hasher := password.NewBcryptHasher(cfg.BcryptCost)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL, cfg.JWTIssuer)

	userService := user.NewService(repo, hasher, log,
		user.WithStoreTimeout(cfg.StoreTimeout), user.WithMetrics(m))
	authService := auth.NewService(repo, hasher, tokens, log,
		auth.WithStoreTimeout(cfg.StoreTimeout), auth.WithMetrics(m))

	limiter, closeLimiter, err := openLimiter(cfg, log)
	if err != nil {
		return err
	}
	defer closeLimiter()

	// ── Router ──────────────────────────────────────────────
	router := server.NewRouter(server.Deps{
		Users:        userService,
		Auth:         authService,
		Metrics:      m,
		Log:          log,
		LoginLimiter: limiter,
		TrustProxy:   cfg.TrustProxy,
	})

	// ── Discovery ───────────────────────────────────────────
	if cfg.Eureka.Enabled {
		registrar := discovery.NewRegistrar(discovery.Config{
			URL:       cfg.Eureka.URL,
			App:       cfg.Eureka.App,
			HostName:  cfg.Eureka.HostName,
			IPAddr:    cfg.Eureka.IPAddr,
			VIP:       cfg.Eureka.VIP,
			Port:      cfg.Port,
			Heartbeat: cfg.Eureka.Heartbeat,
		}, log)
		registrar.Start(ctx)
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := registrar.Stop(stopCtx); err != nil {
				log.Warn("eureka deregistration failed", zap.Error(err))
			}
		}()
	}

	return server.New(cfg.Addr(), router, log).Run(ctx, cfg.ShutdownTimeout)
}

// openStore connects the configured credential store. The returned func
// releases it.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (user.Repository, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		client, db, err := database.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		coll := db.Collection(user.CollectionName)
		if err := user.EnsureIndexes(ctx, coll); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		log.Info("connected to mongodb", zap.String("database", cfg.MongoDatabase))
		return user.NewMongoRepository(coll), func() {
			_ = client.Disconnect(context.Background())
		}, nil

	case config.DriverPostgres:
		db, err := database.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := database.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Info("connected to postgres")
		return user.NewPostgresRepository(db), func() { db.Close() }, nil

	case config.DriverMemory:
		log.Warn("using the in-memory store, data is lost on restart")
		return user.NewMemoryRepository(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// openLimiter builds the login rate limiter, shared through Redis when
// REDIS_URL is set.
func openLimiter(cfg *config.Config, log *zap.Logger) (ratelimit.Middleware, func(), error) {
	if cfg.RedisURL == "" {
		mw, err := ratelimit.New(cfg.LoginRate, nil, log)
		return mw, func() {}, err
	}
	client, err := ratelimit.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	mw, err := ratelimit.New(cfg.LoginRate, client, log)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return mw, func() { client.Close() }, nil
}
