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

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	gmailadapter "github.com/ernesco-mail/ernesco/internal/adapter/driven/gmail"
	openaiadapter "github.com/ernesco-mail/ernesco/internal/adapter/driven/openai"
	sqliteadapter "github.com/ernesco-mail/ernesco/internal/adapter/driven/sqlite"
	httphandler "github.com/ernesco-mail/ernesco/internal/adapter/driving/http"
	"github.com/ernesco-mail/ernesco/internal/application"
	"github.com/ernesco-mail/ernesco/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Optional .env for local development, then structured logging.
	_ = godotenv.Load()

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)

	// 2. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"scan_interval", cfg.ScanInterval,
		"scan_workers", cfg.ScanWorkers,
		"openai_model", cfg.OpenAIModel,
	)
	if cfg.SecretKey == nil {
		slog.Warn("ERNESCO_SECRET_KEY not set, tokens will be stored unencrypted")
	}
	if !cfg.HasGoogleCredentials() {
		slog.Warn("no google oauth credentials configured, the connect flow is disabled")
	}

	// 3. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Open database (dual reader/writer with WAL mode) and migrate.
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire driven adapters.
	accountStore := sqliteadapter.NewAccountRepo(db, cfg.SecretKey)
	activityStore := sqliteadapter.NewActivityRepo(db)

	oauthCfg := gmailadapter.NewOAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.OAuthRedirectURL)
	provider := gmailadapter.NewProvider(oauthCfg, accountStore, cfg.CallTimeout)
	identity := gmailadapter.NewAuth(oauthCfg)
	generator := openaiadapter.NewGenerator(cfg.OpenAIAPIKey, cfg.OpenAIModel)

	// 6. Create and start the scan service.
	scanSvc := application.NewScanService(
		accountStore,
		activityStore,
		provider,
		generator,
		cfg.ScanInterval,
		cfg.ScanPageSize,
		cfg.ScanWorkers,
		cfg.CallTimeout,
	)
	go scanSvc.Start(ctx)

	// 7. Create the connect service and the HTTP surface.
	connectSvc := application.NewConnectService(identity, accountStore, cfg.AutoSendDefault)

	apiHandler := httphandler.NewHandler(
		accountStore,
		activityStore,
		scanSvc,
		connectSvc,
		cfg.PostConnectRedirect,
		logger,
	)
	handler := httphandler.NewServeMux(apiHandler, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      120 * time.Second, // manual scans run synchronously
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("ernesco started",
		"listen_addr", cfg.ListenAddr,
		"scan_interval", cfg.ScanInterval,
	)

	// 8. Wait for shutdown signal, then drain.
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
