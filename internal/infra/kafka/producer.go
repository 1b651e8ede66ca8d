package kafka

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"fashionshop/internal/domain/model"

	"github.com/segmentio/kafka-go"
)

// Producer はoutboxのイベントをそのままJSONで送る。
// キーは集約ID（同じ注文・商品のイベントは同じパーティションに入る）。
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
	return &Producer{writer: writer}
}

func (p *Producer) Publish(ctx context.Context, e model.OutboxEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(e.AggregateID, 10)),
		Value: data,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
			{Key: "event_id", Value: []byte(e.EventID)},
		},
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
