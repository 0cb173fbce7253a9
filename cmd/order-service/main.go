// cmd/order-service/main.go
package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"fieldops/internal/pkg/bootstrap"
	"fieldops/internal/pkg/clock"
	"fieldops/internal/pkg/lock"
	"fieldops/internal/pkg/metrics"
	"fieldops/internal/pkg/mq"
	"fieldops/internal/pkg/redis"
	"fieldops/internal/service/order/application"
	"fieldops/internal/service/order/infrastructure"
	"fieldops/internal/service/order/infrastructure/adapter"
	"fieldops/internal/service/order/interfaces"
	settlementapp "fieldops/internal/service/settlement/application"
	settlementinfra "fieldops/internal/service/settlement/infrastructure"
)

const serviceName = "order-service"

// main 是订单服务的组装根：创建并组装所有依赖项，然后交给 bootstrap 启动。
func main() {
	var (
		redisClient *redis.Client
		notifier    *infrastructure.KafkaNotifierAdapter
	)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			cfg := appCtx.Config

			db, err := gorm.Open(gormmysql.Open(cfg.Infra.MySQL.DSN), &gorm.Config{})
			if err != nil {
				log.Fatal().Err(err).Msg("failed to connect to mysql")
			}

			redisClient = redis.NewClient(cfg.Infra.Redis.Addrs, cfg.Infra.Redis.Password)

			lockStore, err := lock.NewRedisStore(redisClient)
			if err != nil {
				log.Fatal().Err(err).Msg("failed to register lock scripts")
			}
			locker := adapter.NewAssignLockAdapter(lock.NewManager(lockStore))

			kafkaWriter := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.LifecycleTopic)
			notifier = infrastructure.NewKafkaNotifierAdapter(kafkaWriter)

			gate := settlementapp.NewGate(
				settlementinfra.NewGormPeriodRepository(db),
				settlementinfra.NewRedisMarkerCache(redisClient),
			)

			service := application.NewLifecycleService(
				infrastructure.NewGormTxRunner(db),
				gate,
				locker,
				notifier,
				clock.Real{},
				metrics.NewLifecycle(prometheus.DefaultRegisterer),
				application.Config{
					AssignLockTTL:    cfg.Order.AssignLockTTL,
					MaxSyncBatchSize: cfg.Order.MaxSyncBatchSize,
				},
			)

			interfaces.NewOrderHandler(service).RegisterRoutes(appCtx.Mux)
		},
		OnShutdown: func(ctx context.Context) {
			if notifier != nil {
				if err := notifier.Close(); err != nil {
					log.Warn().Err(err).Msg("error closing kafka writer")
				}
			}
			if redisClient != nil {
				if err := redisClient.Close(); err != nil {
					log.Warn().Err(err).Msg("error closing redis client")
				}
			}
		},
	})
}
