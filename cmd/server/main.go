package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lalith-99/ordero/internal/api"
	"github.com/lalith-99/ordero/internal/config"
	"github.com/lalith-99/ordero/internal/db"
	"github.com/lalith-99/ordero/internal/jobs"
	"github.com/lalith-99/ordero/internal/mailer"
	"github.com/lalith-99/ordero/internal/middleware"
	"github.com/lalith-99/ordero/internal/observ"
	"github.com/lalith-99/ordero/internal/realtime"
	"github.com/lalith-99/ordero/internal/repository/postgres"
	"github.com/lalith-99/ordero/internal/service"
	"github.com/lalith-99/ordero/internal/session"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ---------------------------------------------------------------
	// 1. Load config
	// ---------------------------------------------------------------
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// ---------------------------------------------------------------
	// 2. Create logger
	// ---------------------------------------------------------------
	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	// ---------------------------------------------------------------
	// 3. Connect to Postgres and apply migrations
	//
	// Startup has no request to inherit a deadline from, so it uses
	// context.Background(). Each HTTP request later gets its own.
	// ---------------------------------------------------------------
	ctx := context.Background()
	database, err := db.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	if cfg.MigrateOnStart {
		if err := database.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
	}

	// ---------------------------------------------------------------
	// 4. Session store
	//
	// Redis when REDIS_URL is set. Without it revocations and used magic
	// codes live in process memory, which is fine for a single instance in
	// development but forgets everything on restart.
	// ---------------------------------------------------------------
	var sessions session.Store
	if cfg.RedisURL != "" {
		redisStore, err := session.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer redisStore.Close()
		sessions = redisStore
		logger.Info("session store: redis")
	} else {
		if !cfg.IsDevelopment() {
			logger.Warn("REDIS_URL not set, sessions are revoked in memory only")
		}
		sessions = session.NewMemoryStore()
	}

	// ---------------------------------------------------------------
	// 5. Mailer
	// ---------------------------------------------------------------
	var mail mailer.Mailer
	if cfg.MailAPIURL != "" {
		mail = mailer.NewHTTPMailer(cfg.MailAPIURL, cfg.MailAPIKey, cfg.MailFrom)
	} else {
		logger.Warn("MAIL_API_URL not set, invite links are only logged")
		mail = mailer.NewLogMailer(logger)
	}

	// ---------------------------------------------------------------
	// 6. Repositories and services
	//
	// Every store shares the pool; the transactor hands out the same
	// stores bound to a transaction for multi-step writes.
	// ---------------------------------------------------------------
	pool := database.Pool()
	stores := postgres.NewStores(pool)
	tx := postgres.NewTransactor(pool)

	hub := realtime.NewHub(logger, cfg.AllowedOrigins)
	resolver := service.NewRoleResolver(stores.Businesses, stores.Memberships, cfg.LegacyPhoneAuth)
	accounts := service.NewAccountService(stores, tx, sessions, cfg.JWTSecret, cfg.SessionTTL, logger)
	invites := service.NewInviteService(stores, tx, mail, service.InviteConfig{
		JWTSecret:    cfg.JWTSecret,
		MagicLinkTTL: cfg.MagicLinkTTL,
		AppBaseURL:   cfg.AppBaseURL,
	}, logger)
	orders := service.NewOrderService(stores.Orders, resolver, hub)
	managers := service.NewManagerService(stores, tx, resolver, logger)

	if cfg.LegacyPhoneAuth {
		logger.Warn("legacy ?u=<phone> identity is enabled")
	}

	// ---------------------------------------------------------------
	// 7. Background jobs
	// ---------------------------------------------------------------
	sweeper := jobs.NewInviteSweeper(stores.Invites, cfg.InviteTTL, logger)
	if err := sweeper.Start(cfg.InviteSweepSchedule); err != nil {
		return err
	}

	// ---------------------------------------------------------------
	// 8. HTTP server
	// ---------------------------------------------------------------
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := gin.New()
	srv.Use(observ.RequestLogger(logger), gin.Recovery())

	// Cookie sessions need credentials, which rule out a wildcard origin.
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{cfg.AppBaseURL}
	}
	srv.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api.RegisterRoutes(srv.Group("/v1"), api.Deps{
		Auth:     middleware.NewAuthenticator(cfg.JWTSecret, cfg.SessionCookie, sessions, cfg.LegacyPhoneAuth, logger),
		Accounts: accounts,
		Invites:  invites,
		Orders:   orders,
		Managers: managers,
		Resolver: resolver,
		Stream:   hub,
		DB:       database,
		Cookie:   api.CookieConfig{Name: cfg.SessionCookie, Secure: cfg.CookieSecure},
		Logger:   logger,
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting Ordero",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// ---------------------------------------------------------------
	// 9. Graceful shutdown
	//
	// Stop taking requests, let in-flight ones finish, then wait for a
	// running invite sweep. Deferred closes release Redis and the pool.
	// ---------------------------------------------------------------
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	sweeper.Stop(shutdownCtx)
	return nil
}
