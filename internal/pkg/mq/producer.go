package mq

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// NewKafkaWriter 创建一个按 key 哈希分区的 Writer。
// 同一工单的事件带同一 key，消费端因此天然按序。
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
}

// headerCarrier 让 kafka.Header 切片满足 propagation.TextMapCarrier，
// 用于把 trace 上下文随消息头一起带给下游消费者。
type headerCarrier struct {
	headers *[]kafka.Header
}

func (c headerCarrier) Get(key string) string {
	for _, h := range *c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	for i, h := range *c.headers {
		if h.Key == key {
			(*c.headers)[i].Value = []byte(value)
			return
		}
	}
	*c.headers = append(*c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(*c.headers))
	for _, h := range *c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

// InjectTraceContext 把当前 span 上下文注入到消息头。
func InjectTraceContext(ctx context.Context, headers *[]kafka.Header) {
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{headers: headers})
}

// ProduceMessage 发送一条带 trace 上下文的消息。投递语义是 at-least-once。
func ProduceMessage(ctx context.Context, writer *kafka.Writer, key, value []byte) error {
	msg := kafka.Message{Key: key, Value: value}
	InjectTraceContext(ctx, &msg.Headers)
	return writer.WriteMessages(ctx, msg)
}
