package producer

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/radieske/casino-engine-poc/pkg/contracts/events"
)

// KafkaPublisher é o canal de notificação de saída do engine: um writer por
// tópico, consumidos por observadores fora do core (refund-worker incluso).
type KafkaPublisher struct {
	Placed   *kafka.Writer
	Settled  *kafka.Writer
	Refunded *kafka.Writer
}

func NewKafkaPublisher(placed, settled, refunded *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{Placed: placed, Settled: settled, Refunded: refunded}
}

func (p *KafkaPublisher) PublishBetPlaced(ctx context.Context, e events.BetPlaced) error {
	e.TsUnixMs = time.Now().UnixMilli()
	b, _ := json.Marshal(e)
	return p.Placed.WriteMessages(ctx, kafka.Message{Key: key(e.BetID), Value: b})
}

func (p *KafkaPublisher) PublishBetSettled(ctx context.Context, e events.BetSettled) error {
	e.TsUnixMs = time.Now().UnixMilli()
	b, _ := json.Marshal(e)
	return p.Settled.WriteMessages(ctx, kafka.Message{Key: key(e.BetID), Value: b})
}

func (p *KafkaPublisher) PublishBetRefunded(ctx context.Context, e events.BetRefunded) error {
	e.TsUnixMs = time.Now().UnixMilli()
	b, _ := json.Marshal(e)
	return p.Refunded.WriteMessages(ctx, kafka.Message{Key: key(e.BetID), Value: b})
}

func key(betID uint64) []byte {
	return []byte(strconv.FormatUint(betID, 10))
}
