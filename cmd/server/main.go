package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ballot-auth/internal/auth"
	"ballot-auth/internal/config"
	"ballot-auth/internal/database"
	apphttp "ballot-auth/internal/http"
	"ballot-auth/internal/service"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
	}

	// The process still starts without these so /test-db can report what is missing.
	if cfg.Database.URL == "" {
		logger.Warn("database url is not configured; logins will fail until it is set")
	}
	if cfg.Auth.JWTSecret == "" {
		logger.Warn("auth jwt secret is not configured; logins will fail until it is set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := database.NewManager(database.Config{
		Descriptor:     cfg.Database.URL,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		QueryTimeout:   cfg.Database.QueryTimeout,
		Logger:         logger.WithField("component", "database"),
	})
	defer manager.Close()

	signer := auth.NewTokenSigner(cfg.Auth.JWTSecret, auth.TokenTTL)
	authService := service.NewAuthService(
		manager,
		auth.NewBcryptHasher(),
		signer,
		logger.WithField("component", "auth"),
	)
	diagnosticsService := service.NewDiagnosticsService(manager, service.DiagnosticsConfig{
		DescriptorSet: manager.Configured(),
		SecretSet:     signer.Configured(),
		Environment:   cfg.App.Env,
		AdminEmail:    cfg.Diagnostics.AdminEmail,
	}, logger.WithField("component", "diagnostics"))

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(authService, diagnosticsService, logger.WithField("component", "http"))
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}
