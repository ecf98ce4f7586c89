package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Sternrassler/inscription-grid/internal/config"
	"github.com/Sternrassler/inscription-grid/pkg/batch"
	"github.com/Sternrassler/inscription-grid/pkg/client"
	"github.com/Sternrassler/inscription-grid/pkg/inscriptions"
	"github.com/Sternrassler/inscription-grid/pkg/logging"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Setup(logging.Config{
		Level:  logging.Level(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
		Output: os.Stderr,
	})
	logger := logging.NewLogger("http")

	ordiscan, err := client.New(client.Config{
		BaseURL:   cfg.Ordiscan.BaseURL,
		APIKey:    cfg.Ordiscan.APIKey,
		Timeout:   cfg.Ordiscan.Timeout,
		UserAgent: "inscription-grid/0.1.0",
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create Ordiscan client")
	}

	shape, err := batch.ParseShape(cfg.Batch.Shape)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid RESULT_SHAPE")
	}

	orchestrator, err := batch.New(inscriptions.NewFetcher(ordiscan), batch.Config{
		MaxConcurrency: cfg.Batch.MaxConcurrency,
		Shape:          shape,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create orchestrator")
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           newRouter(orchestrator, cfg.Server.AllowOrigins, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("upstream", ordiscan.BaseURL()).
			Int("fetch_concurrency", cfg.Batch.MaxConcurrency).
			Str("result_shape", string(shape)).
			Msg("Starting inscription server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
