package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	apihandlers "github.com/Brownie44l1/extension-admin/internal/api/handlers"
	"github.com/Brownie44l1/extension-admin/internal/auth"
	"github.com/Brownie44l1/extension-admin/internal/config"
	"github.com/Brownie44l1/extension-admin/internal/db"
	"github.com/Brownie44l1/extension-admin/internal/handlers"
	"github.com/Brownie44l1/extension-admin/internal/logger"
	"github.com/Brownie44l1/extension-admin/internal/mail"
	"github.com/Brownie44l1/extension-admin/internal/middleware"
	"github.com/Brownie44l1/extension-admin/internal/repository"
	"github.com/Brownie44l1/extension-admin/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const serviceName = "extension-admin-auth"

func main() {
	// 1. Load configuration
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.AppEnv)
	if err != nil {
		log.Fatal("Failed to build logger: ", err)
	}
	defer func() { _ = zl.Sync() }()
	zl.Info("configuration loaded",
		zap.String("env", cfg.AppEnv),
		zap.String("code_store", cfg.CodeStore),
		zap.String("mail_driver", cfg.MailDriver),
	)

	// 2. Initialize storage
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DBUrl, zl)
	if err != nil {
		zl.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if cfg.AutoMigrate {
		if err := db.MigrateUp(cfg.DBUrl, zl); err != nil {
			zl.Fatal("failed to apply migrations", zap.Error(err))
		}
	}

	checks := map[string]apihandlers.Check{"database": pool.Ping}

	var store service.CodeStore
	switch cfg.CodeStore {
	case config.StoreRedis:
		rdb, err := db.NewRedis(ctx, cfg.RedisURL, zl)
		if err != nil {
			zl.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		store = repository.NewRedisOTPRepository(rdb, "otp", cfg.OTPRetention)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	default:
		store = repository.NewOTPRepository(pool)
	}

	// 3. Outbound mail
	var mailer mail.Mailer
	switch cfg.MailDriver {
	case config.MailSMTP:
		mailer, err = mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		if err != nil {
			zl.Fatal("failed to configure smtp", zap.Error(err))
		}
	default:
		mailer = mail.NewLogMailer(zl)
	}

	// 4. Initialize layers
	clock := auth.SystemClock{}
	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Lifetime: cfg.TokenTTL,
		Clock:    clock,
	})
	if err != nil {
		zl.Fatal("failed to build token service", zap.Error(err))
	}

	policy := service.OTPPolicy{
		TTL:            cfg.OTPTTL,
		ShortWindow:    cfg.OTPShortWindow,
		ShortThreshold: cfg.OTPShortThreshold,
		DailyThreshold: cfg.OTPDailyThreshold,
	}
	notifier := service.NewEmailService(mailer, cfg.SMTPFrom, zl)
	issuer := service.NewOTPIssuer(store, notifier, clock, policy, zl)
	verifier := service.NewOTPVerifier(store, clock, zl)
	principals := repository.NewPrincipalRepository(pool)

	chain := auth.NewChain(
		service.NewOTPAuthProvider(verifier, principals, zl),
		service.NewTokenAuthProvider(tokens),
	)
	sessions := service.NewSessionService(chain, tokens, zl)

	authHandler := handlers.NewAuthHandler(issuer, sessions, issuer.Policy().TTL, tokens.Lifetime(), zl)
	healthHandler := apihandlers.NewHealthHandler(serviceName, checks, zl)

	// 5. Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Logger(zl),
		middleware.Bearer(chain, zl),
	)

	healthHandler.RegisterRoutes(router)
	authHandler.RegisterRoutes(router)

	// 6. Start server with graceful shutdown
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		zl.Info("server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zl.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("server forced to shutdown", zap.Error(err))
		return
	}

	zl.Info("server exited")
}
