package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"fashionshop/internal/app"
	"fashionshop/internal/config"
	"fashionshop/internal/infra/cache"
	"fashionshop/internal/infra/db"
	"fashionshop/internal/infra/kafka"
	"fashionshop/internal/logger"
	"fashionshop/internal/outbox"
	"fashionshop/internal/server"
	"fashionshop/internal/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to load config")
	}

	logger.Init("fashionshop-api", cfg.IsDev())
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.InitTracer("fashionshop-api", cfg.JaegerEndpoint)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to init tracer")
	}
	defer tracing.Shutdown(context.Background(), tp)

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to connect database")
	}
	if err := db.Migrate(gormDB); err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to migrate")
	}

	rdb, err := cache.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to connect redis")
	}
	if rdb != nil {
		defer rdb.Close()
	}

	api, err := app.InitializeAPI(ctx, cfg, gormDB, rdb)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to initialize api")
	}

	// Kafkaがあればそこへ流してcmd/notifierに任せる。無ければこのプロセスで処理する
	var pub outbox.Publisher = outbox.PublisherFunc(api.Notifier.Handle)
	if len(cfg.KafkaBrokers) > 0 {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		pub = producer
	}
	relay := app.ProvideRelay(api.Tx, pub, cfg)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info(ctx).Bool("kafka", len(cfg.KafkaBrokers) > 0).Msg("outbox relay started")
		_ = relay.Run(ctx)
	}()

	if err := server.Start(ctx, api.Echo, ":"+cfg.Port); err != nil {
		logger.Logger.Error().Err(err).Msg("http server stopped")
		stop()
	}
	wg.Wait()
	logger.Logger.Info().Msg("bye")
}
