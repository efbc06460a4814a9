package outbox

import (
	"context"
	"log/slog"
)

// LogProducer writes relayed events to the log when no broker is configured.
type LogProducer struct {
	Logger *slog.Logger
}

func (p LogProducer) Publish(_ context.Context, topic string, key string, payload []byte, _ map[string]string) error {
	if p.Logger != nil {
		p.Logger.Debug("outbox event", "topic", topic, "key", key, "bytes", len(payload))
	}
	return nil
}

var _ Producer = LogProducer{}
