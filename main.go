package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace/internal/config"
	"marketplace/internal/db"
	"marketplace/internal/identity"
	"marketplace/internal/logger"
	"marketplace/internal/middleware"
	"marketplace/internal/router"
	"marketplace/internal/services"
	"marketplace/internal/storage"

	"golang.org/x/time/rate"
)

func main() {
	cfg := config.LoadConfig()

	log := logger.InitLogger(cfg.LogLevel, cfg.LogFile)
	log.Info().Msg("Marketplace starting")

	database := db.InitDB(cfg.DBUrl)
	defer database.Close()

	if err := db.RunMigrations(database); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}

	files, err := storage.NewDisk(cfg.UploadDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Upload storage unavailable")
	}
	janitor := storage.NewJanitor(files, log, 0)
	defer janitor.Close()

	productIDs, err := services.NewProductIDs(cfg.NodeID)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid NODE_ID")
	}

	if cfg.MapsAPIKey == "" {
		log.Warn().Msg("MAPS_API_KEY not set, geolocation requests will be rejected by the provider")
	}

	handler := router.SetupRouter(router.Deps{
		Users:        services.NewUserService(database, log),
		Products:     services.NewProductService(database, log),
		Transactions: services.NewTransactionService(database, log),
		Geo:          services.NewGeoService(cfg.MapsBaseURL, cfg.MapsAPIKey, cfg.MapsTimeout, log),
		Files:        files,
		Janitor:      janitor,
		ProductIDs:   productIDs,
		Identity:     identity.NewRequestResolver(),
		Metrics:      middleware.NewMetrics(),
		UploadDir:    files.Dir(),
		RateLimit:    rate.Limit(cfg.RateLimit),
		RateBurst:    cfg.RateBurst,
	}, log)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Msgf("Server listening on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}

	log.Info().Msg("Server stopped")
}
