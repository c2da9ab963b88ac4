package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"expressionpanel/internal/adapter/repo"
	"expressionpanel/internal/domain"
	"expressionpanel/internal/http/handlers"
	httpapi "expressionpanel/internal/http/httpapi"
	"expressionpanel/internal/infra"
	"expressionpanel/internal/infra/geoip"
	"expressionpanel/internal/predictor"
	"expressionpanel/internal/storage"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	store, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare storage")
	}

	client, err := predictor.NewClient(predictor.Options{
		BaseURL:         cfg.PredictorURL,
		Logger:          &logger,
		PollInterval:    cfg.PollInterval,
		PollBackoff:     cfg.PollBackoff,
		MaxPollInterval: cfg.PollMaxInterval,
		PollTimeout:     cfg.PollTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid predictor configuration")
	}

	resolver, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.GeoIPDBPath).Msg("geoip disabled")
	}
	defer resolver.Close()

	// Prediction history is optional
	ctx := context.Background()
	var runs domain.RunRepository
	if cfg.HistoryEnabled() {
		dbpool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer dbpool.Close()
		runRepo := repo.NewRunRepository(infra.NewSQLRunner(dbpool, logger))
		if err := runRepo.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare history schema")
		}
		runs = runRepo
	}

	app := handlers.NewApp(cfg, &logger, client, store, runs)
	router := httpapi.NewRouter(app, resolver.Lookup())
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().
			Str("addr", server.Addr()).
			Str("predictor", client.BaseURL()).
			Bool("history", runs != nil).
			Msg("panel listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
