package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"fashionshop/internal/domain/model"
	"fashionshop/internal/logger"

	"github.com/segmentio/kafka-go"
)

type EventHandler func(ctx context.Context, e model.OutboxEvent) error

type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader}
}

// Consume は処理が終わってからコミットする。
// ハンドラのエラーはログだけ（後処理は失敗しても注文に影響させない）。
func (c *Consumer) Consume(ctx context.Context, handle EventHandler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			logger.Error(ctx).Err(err).Msg("kafka fetch failed")
			continue
		}

		var e model.OutboxEvent
		if err := json.Unmarshal(msg.Value, &e); err != nil {
			logger.Error(ctx).Err(err).Int64("offset", msg.Offset).Msg("invalid event payload")
		} else if err := handle(ctx, e); err != nil {
			logger.Error(ctx).Err(err).
				Str("event_id", e.EventID).
				Str("type", string(e.Type)).
				Msg("event handling failed")
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			logger.Error(ctx).Err(err).Int64("offset", msg.Offset).Msg("kafka commit failed")
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
