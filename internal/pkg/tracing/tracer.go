package tracing

import (
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// InitTracerProvider 初始化并注册全局的 Jaeger TracerProvider。
func InitTracerProvider(serviceName, jaegerEndpoint string) (*sdktrace.TracerProvider, error) {
	// 创建 Jaeger Exporter，用于将 Span 数据发送到 Jaeger
	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(jaegerEndpoint)))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		// 始终采样，生产环境应换成按比例采样
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		// 批处理 Span 处理器，提高性能
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
		)),
	)

	otel.SetTracerProvider(tp)
	// 设置全局的 TextMapPropagator，用于在服务间传递上下文
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	log.Info().Str("service", serviceName).Str("endpoint", jaegerEndpoint).Msg("tracing initialized")
	return tp, nil
}
