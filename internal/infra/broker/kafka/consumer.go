package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
)

type MessageHandler interface {
	Handle(ctx context.Context, msg *sarama.ConsumerMessage) error
}

// Consumer runs a consumer group over a handler. A message whose handler keeps failing
// is retried MaxAttempts times and then skipped so the partition does not stall.
type Consumer struct {
	group       sarama.ConsumerGroup
	handler     MessageHandler
	logger      *slog.Logger
	MaxAttempts int
	Backoff     time.Duration
}

func NewConsumer(brokers []string, groupID string, handler MessageHandler, logger *slog.Logger) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: brokers are required")
	}
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategySticky()}
	g, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, err
	}
	return &Consumer{group: g, handler: handler, logger: logger, MaxAttempts: 3, Backoff: time.Second}, nil
}

// Run consumes topics until ctx ends. Consume returns on every rebalance and is re-entered.
func (c *Consumer) Run(ctx context.Context, topics []string) error {
	for {
		if err := c.group.Consume(ctx, topics, groupHandler{consumer: c}); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

// deliver hands msg to the handler, retrying with a fixed backoff.
func (c *Consumer) deliver(ctx context.Context, msg *sarama.ConsumerMessage) {
	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = c.handler.Handle(ctx, msg); err == nil {
			return
		}
		if i+1 < attempts {
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.Backoff):
			}
		}
	}
	if c.logger != nil {
		c.logger.Error("kafka message skipped", "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "error", err)
	}
}

type groupHandler struct {
	consumer *Consumer
}

func (h groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-sess.Context().Done():
			return nil
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			h.consumer.deliver(sess.Context(), message)
			if sess.Context().Err() != nil {
				return nil
			}
			sess.MarkMessage(message, "")
		}
	}
}
