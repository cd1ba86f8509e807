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

	"formbuilder/api/internal/app"
	"formbuilder/api/internal/audit"
	"formbuilder/api/internal/cache"
	"formbuilder/api/internal/config"
	"formbuilder/api/internal/email"
	"formbuilder/api/internal/logging"
	"formbuilder/api/internal/store"
	"formbuilder/api/internal/vault"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, cfg.DatabaseURL); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	dataStore := store.NewPostgresStore(db)

	cacheStore, err := cache.Open(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis connection failed", zap.Error(err))
	}
	defer cacheStore.Close()
	if cacheStore.Available() {
		logger.Info("using redis for form cache")
	} else {
		logger.Info("form cache disabled")
	}
	formCache := cache.NewFormCache(cacheStore, cfg.FormCacheTTL(), logger)
	countCache := cache.NewCountCache(cacheStore, cfg.FormCacheTTL(), logger)

	recorder := audit.NewRecorder(dataStore, logger, 256)
	defer recorder.Close()

	mailer := email.NewService(email.Config{
		Host:       cfg.SMTPHost,
		Port:       cfg.SMTPPort,
		Username:   cfg.SMTPUsername,
		Password:   cfg.SMTPPassword,
		From:       cfg.SMTPFrom,
		FromName:   cfg.SMTPFromName,
		AppBaseURL: cfg.AppBaseURL,
	})
	if !mailer.IsConfigured() {
		logger.Warn("SMTP not configured, ownership notifications disabled")
	}
	notifier := app.NewEmailNotifier(mailer, logger)
	defer notifier.Wait()

	service := app.New(dataStore, formCache, recorder, vault.NewService(dataStore, countCache, logger), notifier, app.Options{
		PurgeOnPublish:  cfg.PurgeOnPublish(),
		SoftDeleteGrace: cfg.SoftDeleteGrace(),
		Logger:          logger,
	})

	httpServer := app.NewHTTPServer(service, cfg.JWTSecret, cfg.CORSOrigin, logger)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("form builder API listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
