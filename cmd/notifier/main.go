package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"fashionshop/internal/app"
	"fashionshop/internal/config"
	"fashionshop/internal/infra/db"
	"fashionshop/internal/infra/kafka"
	"fashionshop/internal/logger"
	"fashionshop/internal/tracing"
)

// outboxをKafkaへ流すリレーと、Kafkaから読んでメール・請求書を処理する消費側
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to load config")
	}

	logger.Init("fashionshop-notifier", cfg.IsDev())
	logger.SetLevel(cfg.LogLevel)

	if len(cfg.KafkaBrokers) == 0 {
		logger.Logger.Fatal().Msg("KAFKA_BROKERS is required for the notifier")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.InitTracer("fashionshop-notifier", cfg.JaegerEndpoint)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to init tracer")
	}
	defer tracing.Shutdown(context.Background(), tp)

	gormDB, err := db.Connect(cfg)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to connect database")
	}

	n, err := app.InitializeNotifier(ctx, cfg, gormDB)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to initialize notifier")
	}

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()
	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID)
	defer consumer.Close()

	relay := app.ProvideRelay(n.Tx, producer, cfg)

	logger.Info(ctx).
		Strs("brokers", cfg.KafkaBrokers).
		Str("topic", cfg.KafkaTopic).
		Str("group", cfg.KafkaGroupID).
		Msg("notifier started")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = relay.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := consumer.Consume(ctx, n.Handler.Handle); err != nil && ctx.Err() == nil {
			logger.Logger.Error().Err(err).Msg("consumer stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Logger.Info().Msg("shutting down notifier")
	wg.Wait()
}
