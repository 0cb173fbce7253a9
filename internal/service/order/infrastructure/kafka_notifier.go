package infrastructure

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"fieldops/internal/pkg/mq"
	"fieldops/internal/service/order/domain"
)

// KafkaNotifierAdapter 实现了 port.LifecycleNotifier 接口，
// 把生命周期事件发往 Kafka。key 用工单 ID，保证同一工单的事件
// 落在同一分区、按序被消费。
type KafkaNotifierAdapter struct {
	writer *kafka.Writer
}

func NewKafkaNotifierAdapter(writer *kafka.Writer) *KafkaNotifierAdapter {
	return &KafkaNotifierAdapter{writer: writer}
}

func (a *KafkaNotifierAdapter) Notify(ctx context.Context, event *domain.LifecycleEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal lifecycle event")
	}
	// mq.ProduceMessage 会自动把追踪上下文注入消息头
	return mq.ProduceMessage(ctx, a.writer, []byte(event.OrderID), eventBytes)
}

// Close 关闭底层的 Kafka writer。
func (a *KafkaNotifierAdapter) Close() error {
	return a.writer.Close()
}
