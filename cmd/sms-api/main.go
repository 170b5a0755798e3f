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
	"github.com/rs/zerolog"

	smsadapter "github.com/niksrid/sendsms-go/internal/adapters/sms"
	"github.com/niksrid/sendsms-go/internal/api"
	"github.com/niksrid/sendsms-go/internal/config"
	"github.com/niksrid/sendsms-go/internal/logger"
	smsvalidator "github.com/niksrid/sendsms-go/internal/worker/validator/sms"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fail("config load", err)
	}

	baseLogger, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		fail("logger init", err)
	}
	log := baseLogger.With().Str("service", "sms-api").Logger()

	client, err := smsadapter.NewClient(cfg.Msg91, logger.Component(log, "msg91"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise msg91 client")
	}
	adapter, err := smsadapter.NewAdapter(client, logger.Component(log, "sms-adapter"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise sms adapter")
	}
	validator := smsvalidator.New(cfg.Validation, cfg.Msg91.DefaultCountry, logger.Component(log, "sms-validator"))

	gin.SetMode(gin.ReleaseMode)
	handler, err := api.New(adapter, validator, logger.Component(log, "http"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise api")
	}

	srv := &http.Server{
		Addr:              cfg.App.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	log.Info().Str("addr", cfg.App.HTTPAddr).Msg("sms api listening")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}
	log.Info().Msg("sms api stopped")
}

func fail(stage string, err error) {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	logger.Fatal().Err(err).Str("stage", stage).Msg("sms api init failed")
}
