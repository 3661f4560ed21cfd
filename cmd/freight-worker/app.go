package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/BearBump/FreightWatch/config"
	"github.com/BearBump/FreightWatch/internal/broker/kafka"
	"github.com/BearBump/FreightWatch/internal/broker/messages"
	"github.com/BearBump/FreightWatch/internal/cache"
	"github.com/BearBump/FreightWatch/internal/cache/rediscache"
	"github.com/BearBump/FreightWatch/internal/integrations/regulator"
	"github.com/BearBump/FreightWatch/internal/integrations/regulator/bridgehttp"
	regulatorfake "github.com/BearBump/FreightWatch/internal/integrations/regulator/fake"
	"github.com/BearBump/FreightWatch/internal/integrations/telemetry"
	telemetryfake "github.com/BearBump/FreightWatch/internal/integrations/telemetry/fake"
	"github.com/BearBump/FreightWatch/internal/integrations/telemetry/pgtelemetry"
	"github.com/BearBump/FreightWatch/internal/services/monitor"
	"github.com/BearBump/FreightWatch/internal/services/reconcile"
	"github.com/BearBump/FreightWatch/internal/storage/pgfreight"
)

type storageBundle struct {
	monitorRepo   monitor.Repository
	reconcileRepo reconcile.Repository
	closeFn       func()
}

type workerFactories struct {
	newStorage     func(cfg *config.Config) (storageBundle, error)
	newTelemetry   func(cfg *config.Config) (telemetry.Gateway, func(), error)
	newBridge      func(cfg *config.Config) (regulator.Reporter, regulator.ManifestSource)
	newProducer    func(cfg *config.Config) monitor.Producer
	newRateLimiter func(cfg *config.Config) monitor.RateLimiter
	newCache       func(cfg *config.Config) cache.BytesCache
	newConsumer    func(cfg *config.Config, topic, group string) syncConsumer
}

type syncConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
	Close() error
}

func postgresConnString(cfg *config.Config) string {
	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (storageBundle, error) {
			st, err := pgfreight.New(postgresConnString(cfg))
			if err != nil {
				return storageBundle{}, err
			}
			return storageBundle{monitorRepo: st, reconcileRepo: st, closeFn: st.Close}, nil
		},
		newTelemetry: func(cfg *config.Config) (telemetry.Gateway, func(), error) {
			// gps_tracks живут в той же базе, но подключение отдельное:
			// своя нагрузка, свои лимиты.
			if cfg.FreightWatch.TelemetryMode == "pg" {
				tg, err := pgtelemetry.New(postgresConnString(cfg))
				if err != nil {
					return nil, nil, err
				}
				return tg, tg.Close, nil
			}
			return telemetryfake.New(), nil, nil
		},
		newBridge: func(cfg *config.Config) (regulator.Reporter, regulator.ManifestSource) {
			if cfg.FreightWatch.BridgeBaseURL != "" && cfg.FreightWatch.BridgeMode == "http" {
				c := bridgehttp.New(cfg.FreightWatch.BridgeBaseURL, cfg.FreightWatch.BridgeAPIKey)
				return c, c
			}
			f := regulatorfake.New()
			return f, f
		},
		newProducer: func(cfg *config.Config) monitor.Producer {
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewProducer(brokers)
		},
		newRateLimiter: func(cfg *config.Config) monitor.RateLimiter {
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			return rediscache.NewRateLimiter(redisAddr)
		},
		newCache: func(cfg *config.Config) cache.BytesCache {
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			return rediscache.New(redisAddr)
		},
		newConsumer: func(cfg *config.Config, topic, group string) syncConsumer {
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewConsumer(brokers, topic, group)
		},
	}
}

func thresholdsFromConfig(fw config.FreightWatchConfig) monitor.Thresholds {
	return monitor.Thresholds{
		GeofenceToleranceM:      fw.GeofenceToleranceMeters,
		NoTrackWarnAttempts:     int32(fw.NoTrackWarnAttempts),
		NoTrackNoveltyAttempts:  int32(fw.NoTrackNoveltyAttempts),
		AppointmentBreachMinGap: time.Duration(fw.AppointmentBreachMinGapMinutes) * time.Minute,
	}
}

func RunFreightWorker(ctx context.Context, cfg *config.Config, f workerFactories) error {
	transitionTopic := cfg.Kafka.PointTransitionTopicName
	if transitionTopic == "" {
		transitionTopic = "point.transition"
	}
	syncTopic := cfg.Kafka.SyncRequestedTopicName
	if syncTopic == "" {
		syncTopic = "manifest.sync.requested"
	}
	consumerGroup := cfg.FreightWatch.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "freight-worker"
	}

	pollInterval := time.Duration(cfg.FreightWatch.WorkerPollIntervalSeconds) * time.Second
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	tripLimit := cfg.FreightWatch.WorkerTripLimit
	if tripLimit <= 0 {
		tripLimit = 200
	}
	concurrency := cfg.FreightWatch.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	rlPerMin := int64(cfg.FreightWatch.WorkerRateLimitPerMinute)
	if rlPerMin <= 0 {
		rlPerMin = 60
	}
	tripTTL := time.Duration(cfg.FreightWatch.TripCacheTTLSeconds) * time.Second
	if tripTTL <= 0 {
		tripTTL = 10 * time.Minute
	}

	st, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if st.closeFn != nil {
		defer st.closeFn()
	}

	tg, closeTg, err := f.newTelemetry(cfg)
	if err != nil {
		return err
	}
	if closeTg != nil {
		defer closeTg()
	}

	reporter, source := f.newBridge(cfg)
	producer := f.newProducer(cfg)
	rl := f.newRateLimiter(cfg)
	bc := f.newCache(cfg)

	engine := monitor.New(st.monitorRepo, tg, reporter, producer, rl, transitionTopic).
		WithSettings(pollInterval, tripLimit, concurrency, rlPerMin).
		WithThresholds(thresholdsFromConfig(cfg.FreightWatch))

	sync := reconcile.New(st.reconcileRepo, source, bc, tripTTL)

	consumer := f.newConsumer(cfg, syncTopic, consumerGroup)
	defer func() { _ = consumer.Close() }()

	go func() {
		slog.Info("sync consumer started", "topic", syncTopic, "group", consumerGroup)
		_ = consumer.Consume(ctx, func(_key, value []byte) error {
			var m messages.SyncRequested
			if err := json.Unmarshal(value, &m); err != nil {
				return err
			}
			res, err := sync.SyncBatch(ctx, m.ManifestIDs)
			if err != nil {
				return err
			}
			if len(res.Errors) > 0 {
				slog.Warn("manifest sync finished with item errors",
					"fetched", res.Fetched, "errors", len(res.Errors))
			}
			return nil
		})
	}()

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runWorkerHTTPServer(ctx, workerHTTPOpts{
			httpAddr: cfg.FreightWatch.HTTPAddr,
			engine:   engine,
			sync:     sync,
			cfg:      cfg,
		})
	}()

	engineErr := make(chan error, 1)
	go func() {
		engineErr <- engine.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-engineErr:
		return err
	case err := <-httpErr:
		return err
	}
}
