package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"campus/internal/academics"
	"campus/internal/audit"
	"campus/internal/auth"
	"campus/internal/classroom"
	"campus/internal/config"
	"campus/internal/httpmiddleware"
	"campus/internal/library"
	"campus/internal/logging"
	"campus/internal/queue"
	"campus/internal/store"
	"campus/internal/users"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Env)
	defer logger.Sync()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api failed", zap.Error(err))
	}
}

func run(cfg config.App, logger *zap.Logger) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	if err := store.Migrate(ctx, db.Client, cfg.MigrationsDir); err != nil {
		return err
	}
	if version, err := store.MigrationVersion(ctx, db.Client); err == nil {
		logger.Info("schema ready", zap.Int64("version", version))
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "campus:events")
	}

	directory := academics.NewRepository(db.Client)

	libraryRepo := library.NewRepository(db.Client)
	ledger := library.NewService(db.Client, libraryRepo, directory, cfg.LoanPeriod(), logger)
	libraryHandler := library.NewHandler(libraryRepo, ledger, q, logger)

	classroomRepo := classroom.NewRepository(db.Client)
	engine := classroom.NewEngine(db.Client, classroomRepo, directory, cfg.LateAfter, logger)
	classroomHandler := classroom.NewHandler(engine, q, logger)

	usersRepo := users.NewRepository(db.Client)
	accounts := users.NewService(usersRepo, cfg, logger)
	usersHandler := users.NewHandler(accounts)

	academicsHandler := academics.NewHandler(directory)
	auditHandler := audit.NewHandler(audit.NewRepository(db.Client))

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(httpmiddleware.CORS())
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	v1 := r.Group("/v1")

	// auth endpoints are open, /auth/me needs any valid token and everything
	// admin-shaped needs the admin role
	usersHandler.Register(
		v1.Group("/auth"),
		v1.Group("/auth", auth.Require(cfg.JWTSigningKey, cfg.JWTIssuer)),
		v1.Group("/users", auth.Require(cfg.JWTSigningKey, cfg.JWTIssuer, auth.RoleAdmin)),
	)

	staff := auth.Require(cfg.JWTSigningKey, cfg.JWTIssuer, auth.RoleAdmin, auth.RoleProfessor)
	libraryHandler.Register(
		v1.Group("/books", staff),
		v1.Group("/library"),
	)

	// classroom terminals authenticate by PIN and codes, not by JWT
	classroomHandler.Register(v1.Group("/classrooms"))

	academicsHandler.Register(v1.Group("", staff))

	auditHandler.Register(v1.Group("/audit", auth.Require(cfg.JWTSigningKey, cfg.JWTIssuer, auth.RoleAdmin)))

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening", zap.String("port", cfg.HTTPPort))
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
