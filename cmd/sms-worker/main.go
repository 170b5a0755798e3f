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
	"github.com/niksrid/sendsms-go/internal/config"
	"github.com/niksrid/sendsms-go/internal/health"
	"github.com/niksrid/sendsms-go/internal/kafka/consumer"
	"github.com/niksrid/sendsms-go/internal/kafka/producer"
	kafkapublisher "github.com/niksrid/sendsms-go/internal/kafka/publisher"
	"github.com/niksrid/sendsms-go/internal/logger"
	"github.com/niksrid/sendsms-go/internal/worker"
	smsvalidator "github.com/niksrid/sendsms-go/internal/worker/validator/sms"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fail("config load", err)
	}
	if err := cfg.RequireKafka(); err != nil {
		fail("config load", err)
	}

	baseLogger, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		fail("logger init", err)
	}
	log := baseLogger.With().Str("service", "sms-worker").Logger()

	prod, err := producer.New(cfg.Kafka.Brokers, logger.Component(log, "kafka-producer"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create kafka producer")
	}
	defer func() {
		if err := prod.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close kafka producer")
		}
	}()

	cons, err := consumer.New(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup, logger.Component(log, "kafka-consumer"), cfg.Worker.CommitOnSuccessOnly)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create kafka consumer")
	}

	statusPublisher := kafkapublisher.NewStatusPublisher(prod, cfg.Kafka.StatusTopic, logger.Component(log, "status-publisher"))

	client, err := smsadapter.NewClient(cfg.Msg91, logger.Component(log, "msg91"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise msg91 client")
	}
	adapter, err := smsadapter.NewAdapter(client, logger.Component(log, "sms-adapter"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise sms adapter")
	}

	validator := smsvalidator.New(cfg.Validation, cfg.Msg91.DefaultCountry, logger.Component(log, "sms-validator"))

	engine, err := worker.NewEngine(worker.Config{
		MsgMaxBytes:       cfg.Validation.MsgMaxBytes,
		WorkerConcurrency: cfg.Worker.Concurrency,
	}, worker.Dependencies{
		Adapter:         adapter,
		Validator:       validator,
		StatusPublisher: statusPublisher,
		Logger:          logger.Component(log, "worker-engine"),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise worker engine")
	}

	healthSrv := startHealthServer(cfg.Worker.HealthAddr, log,
		health.Check{Name: "kafka_consumer", Ready: cons.IsReady},
		health.Check{Name: "kafka_producer", Ready: prod.IsReady},
	)

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := cons.Consume(ctx, []string{cfg.Kafka.RequestTopic}, worker.KafkaHandler(engine, cons)); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	log.Info().
		Str("request_topic", cfg.Kafka.RequestTopic).
		Str("status_topic", cfg.Kafka.StatusTopic).
		Int("concurrency", cfg.Worker.Concurrency).
		Msg("sms worker started")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("consumer terminated with error")
		}
	}

	// In-flight sends finish before the consumer leaves the group so their
	// offsets can still be committed.
	engine.Wait()
	if err := cons.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close kafka consumer")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), healthShutdownTimeout)
	defer cancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to stop health server")
	}
	log.Info().Msg("sms worker stopped")
}

const healthShutdownTimeout = 5 * time.Second

func startHealthServer(addr string, log zerolog.Logger, checks ...health.Check) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              addr,
		Handler:           health.Router(checks...),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", addr).Msg("health endpoint listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server stopped")
		}
	}()
	return srv
}

func fail(stage string, err error) {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	logger.Fatal().Err(err).Str("stage", stage).Msg("sms worker init failed")
}
