package bootstrap

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"fieldops/internal/pkg/config"
	"fieldops/internal/pkg/nacos"
	"fieldops/internal/pkg/tracing"
)

// AppCtx 传给业务方注册路由时的上下文。
type AppCtx struct {
	Mux    *http.ServeMux
	Config *config.Config
	Nacos  *nacos.Client
}

// AppInfo 包含了启动一个服务进程所需的全部特定信息。
type AppInfo struct {
	ServiceName      string
	RegisterHandlers func(appCtx AppCtx) // 每个服务注册自己的 HTTP 路由
	OnShutdown       func(ctx context.Context)
}

// StartService 封装了所有服务进程的通用启动和优雅关停逻辑：
// 配置加载、日志、追踪、Nacos 注册、HTTP Server、信号处理。
func StartService(info AppInfo) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	log.Logger = log.With().Str("service", info.ServiceName).Logger()

	cfg, err := config.Load(os.Getenv("FIELDOPS_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Service.Name == "" {
		cfg.Service.Name = info.ServiceName
	}

	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	// Nacos 未配置时跳过注册（本地开发）
	var namingClient *nacos.Client
	var ip string
	if len(cfg.Infra.Nacos.ServerAddrs) > 0 {
		namingClient, err = nacos.NewNacosClient(
			strings.Join(cfg.Infra.Nacos.ServerAddrs, ","),
			cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize nacos client")
		}
		ip, err = outboundIP()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to get outbound IP address")
		}
		if err := namingClient.RegisterServiceInstance(info.ServiceName, ip, cfg.Service.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to register service with nacos")
		}
	}

	mux := http.NewServeMux()
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(AppCtx{Mux: mux, Config: cfg, Nacos: namingClient})
	}
	server := &http.Server{Addr: ":" + strconv.Itoa(cfg.Service.Port), Handler: mux}
	go func() {
		log.Info().Int("port", cfg.Service.Port).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Str("addr", server.Addr).Msg("could not listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 清理顺序与启动相反
	if namingClient != nil {
		if err := namingClient.DeregisterServiceInstance(info.ServiceName, ip, cfg.Service.Port); err != nil {
			log.Warn().Err(err).Msg("error deregistering from nacos")
		}
	}
	if info.OnShutdown != nil {
		info.OnShutdown(ctx)
	}
	// 关闭 TracerProvider，确保缓冲中的 trace 都被发送出去
	if err := tp.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("error shutting down tracer provider")
	}
	if err := server.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("error shutting down http server")
	}
	log.Info().Msg("gracefully shut down")
}

// outboundIP 拿本机对外网卡的 IP 用于服务注册，不会真的发包。
func outboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
