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

	"github.com/sqlassist/sqlassist/internal/api"
	"github.com/sqlassist/sqlassist/internal/api/uistatic"
	"github.com/sqlassist/sqlassist/internal/auth"
	"github.com/sqlassist/sqlassist/internal/config"
	"github.com/sqlassist/sqlassist/internal/history"
	historypostgres "github.com/sqlassist/sqlassist/internal/history/postgres"
	"github.com/sqlassist/sqlassist/internal/inference"
	"github.com/sqlassist/sqlassist/internal/library"
	"github.com/sqlassist/sqlassist/internal/nl2sql"
	"github.com/sqlassist/sqlassist/internal/observability"
	"github.com/sqlassist/sqlassist/internal/session"
	s3store "github.com/sqlassist/sqlassist/internal/storage/s3"
)

const sessionSweepInterval = time.Minute

func main() {
	cfg, err := config.LoadFromEnv("sqlassist-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	generator, err := inference.New(inference.Config{
		Backend:           cfg.Inference.Backend,
		BaseURL:           cfg.Inference.BaseURL(),
		APIToken:          cfg.Inference.APIToken,
		Model:             cfg.Inference.Model,
		MaxNewTokens:      cfg.Inference.MaxNewTokens,
		Temperature:       cfg.Inference.Temperature,
		RepetitionPenalty: cfg.Inference.RepetitionPenalty,
		Timeout:           cfg.Inference.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialize inference client", slog.Any("error", err))
		os.Exit(1)
	}
	model := cfg.Inference.Model
	if named, ok := generator.(interface{ Model() string }); ok {
		model = named.Model()
	}
	if cfg.Inference.APIToken == "" {
		logger.Warn("inference API token is not set; conversions will fail until it is configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessions := session.NewManager(cfg.Session.IdleTTL)
	go sessions.RunSweeper(ctx, sessionSweepInterval, logger)

	var (
		recorder      history.Recorder = history.Nop{}
		historyLister history.Lister
		historyRepo   *historypostgres.Repository
	)
	if cfg.History.Enabled {
		historyDB, err := historypostgres.Open(ctx, historypostgres.DBConfig{
			DSN:             cfg.History.DSN,
			MaxOpenConns:    cfg.History.MaxOpenConns,
			MaxIdleConns:    cfg.History.MaxIdleConns,
			ConnMaxIdleTime: cfg.History.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.History.ConnMaxLifetime,
		})
		if err != nil {
			logger.Error("failed to open history db", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = historyDB.Close() }()
		historyRepo = historypostgres.NewRepository(historyDB)
		recorder = historyRepo
		historyLister = historyRepo
	}

	var schemaLibrary api.SchemaLibrary
	if cfg.Library.Enabled {
		objectStore, err := s3store.New(ctx, s3store.Config{
			Endpoint:         cfg.Library.Endpoint,
			Region:           cfg.Library.Region,
			Bucket:           cfg.Library.Bucket,
			AccessKeyID:      cfg.Library.AccessKeyID,
			SecretAccessKey:  cfg.Library.SecretAccessKey,
			UseSSL:           cfg.Library.UseSSL,
			Prefix:           cfg.Library.Prefix,
			AutoCreateBucket: cfg.Library.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize schema library store", slog.Any("error", err))
			os.Exit(1)
		}
		service, err := library.NewService(objectStore, cfg.HTTP.MaxBodyBytes)
		if err != nil {
			logger.Error("failed to initialize schema library", slog.Any("error", err))
			os.Exit(1)
		}
		schemaLibrary = service
	}

	converter, err := nl2sql.NewConverter(nl2sql.Options{
		Generator:     generator,
		Backend:       cfg.Inference.Backend,
		Model:         model,
		RequireSchema: cfg.Conversion.RequireSchema,
		Recorder:      recorder,
		Logger:        logger,
	})
	if err != nil {
		logger.Error("failed to initialize converter", slog.Any("error", err))
		os.Exit(1)
	}

	deps := api.Dependencies{
		Logger:            logger,
		Sessions:          sessions,
		Converter:         converter,
		Library:           schemaLibrary,
		UI:                uistatic.Handler(),
		DependencyTimeout: time.Second,
	}
	if historyRepo != nil {
		deps.History = historyLister
		deps.Readiness = api.CombineReadinessChecks(api.CheckHistory(historyRepo))
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("inference_backend", cfg.Inference.Backend),
			slog.String("model", model),
			slog.Bool("history_enabled", cfg.History.Enabled),
			slog.Bool("library_enabled", cfg.Library.Enabled),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
