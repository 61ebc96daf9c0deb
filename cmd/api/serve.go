package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/sharebite/auth-service/internal/config"
	"github.com/sharebite/auth-service/internal/handlers"
	"github.com/sharebite/auth-service/internal/logging"
	"github.com/sharebite/auth-service/internal/metrics"
	"github.com/sharebite/auth-service/internal/middleware"
	"github.com/sharebite/auth-service/internal/repository"
	"github.com/sharebite/auth-service/internal/routes"
	"github.com/sharebite/auth-service/internal/service"
	"github.com/sharebite/auth-service/internal/storage"
	"github.com/sharebite/auth-service/pkg/redis"
)

const (
	shutdownTimeout = 10 * time.Second
	// connectRetries covers dependencies that start alongside the service.
	connectRetries = 5
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.Setup(serviceName, version, cfg.LogFormat, cfg.LogLevel, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logging.LogError(ctx, logger, "startup failed", err)
		return err
	}
	defer a.close()

	return a.run(ctx)
}

// app is the assembled service: the HTTP server and the resources it owns.
type app struct {
	server  *http.Server
	logger  *slog.Logger
	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	users, err := a.openUserStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	checks := map[string]handlers.Pinger{"database": users}

	hasher, err := service.NewPasswordHasher(cfg.PasswordAlgorithm, cfg.BcryptCost)
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	tokens, err := service.NewJWTService(cfg.JWTSecret)
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	opts := []service.Option{
		service.WithLogger(logger),
		service.WithTimeout(cfg.OperationTimeout),
		service.WithAvatarLimit(cfg.AvatarMaxBytes),
	}

	var revocations service.RevocationStore
	if cfg.RedisEnabled() {
		client, err := redis.NewClient(ctx, redis.Config{
			Host:           cfg.RedisHost,
			Port:           cfg.RedisPort,
			Password:       cfg.RedisPassword,
			TLS:            cfg.RedisPassword != "",
			ConnectRetries: connectRetries,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		revocations = service.NewRedisRevocationStore(client)
		opts = append(opts, service.WithRevocationStore(revocations))
		checks["redis"] = handlers.PingFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		logger.Info("token revocation enabled", "redis", cfg.RedisHost)
	}

	var uploadDir string
	switch cfg.AvatarStorage {
	case config.StorageLocal:
		local, err := storage.NewLocalStore(cfg.UploadDir)
		if err != nil {
			return nil, err
		}
		uploadDir = local.Dir()
		opts = append(opts, service.WithAvatarStore(local))
	case config.StorageS3:
		s3, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PublicURL: cfg.S3PublicURL,
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, service.WithAvatarStore(s3))
	default:
		logger.Warn("avatar uploads disabled")
	}

	authService := service.NewAuthService(users, hasher, tokens, opts...)
	profiles := service.NewProfileService(users, opts...)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	routes.Setup(router, routes.Handlers{
		Auth:   handlers.NewAuthHandler(authService, m, logger),
		User:   handlers.NewUserHandler(profiles, authService, cfg.AvatarMaxBytes, m, logger),
		Health: handlers.NewHealthHandler(checks),
	}, routes.Options{
		AllowedOrigins: cfg.Origins(),
		Gate:           middleware.RequireAuth(tokens, revocations),
		Logger:         logger,
		Metrics:        m,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		UploadDir:      uploadDir,
	})

	a.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	ok = true
	return a, nil
}

func (a *app) openUserStore(ctx context.Context, cfg *config.Config) (repository.UserRepository, error) {
	if cfg.DBDriver == config.DriverMemory {
		a.logger.Warn("using the in-memory user store; data is lost on restart")
		return repository.NewMemoryUserRepository(), nil
	}

	pg := postgresConfig(cfg)
	pg.ConnectRetries = connectRetries
	db, err := repository.Connect(ctx, pg)
	if err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}

	if cfg.DBAutoMigrate {
		if err := repository.Migrate(ctx, db); err != nil {
			return nil, err
		}
	}
	a.logger.Info("connected to database", "host", cfg.DBHost, "name", cfg.DBName)
	return repository.NewUserRepository(db), nil
}

func (a *app) run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting account service", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return oops.Code("SERVER_FAILED").With("addr", a.server.Addr).Wrap(err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return oops.Code("SHUTDOWN_FAILED").Wrap(err)
	}
	return <-errCh
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
