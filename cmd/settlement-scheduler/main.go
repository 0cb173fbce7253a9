// cmd/settlement-scheduler/main.go
package main

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"fieldops/internal/pkg/bootstrap"
	"fieldops/internal/pkg/clock"
	"fieldops/internal/pkg/redis"
	"fieldops/internal/service/settlement/application"
	"fieldops/internal/service/settlement/infrastructure"
)

const serviceName = "settlement-scheduler"

// main 组装结算冻结排程器：周一凌晨冻结上一结算周，周五 17:00 解冻。
// 进程本身只暴露 healthz/metrics，业务全在 cron 回调里。
func main() {
	var (
		scheduler   *application.Scheduler
		redisClient *redis.Client
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

			scheduler = application.NewScheduler(
				infrastructure.NewGormPeriodRepository(db),
				infrastructure.NewRedisMarkerCache(redisClient),
				clock.Real{},
			)
			if err := scheduler.Start(); err != nil {
				log.Fatal().Err(err).Msg("failed to start settlement scheduler")
			}

			appCtx.Mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
			appCtx.Mux.Handle("/metrics", promhttp.Handler())
		},
		OnShutdown: func(ctx context.Context) {
			if scheduler != nil {
				scheduler.Stop()
			}
			if redisClient != nil {
				if err := redisClient.Close(); err != nil {
					log.Warn().Err(err).Msg("error closing redis client")
				}
			}
		},
	})
}
