package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafka_infra "github.com/Joshina1995/shopify-whatsapp-notifications/internal/infrastructure/kafka"
	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/messaging"
)

// SessionEventMessageHandler decodes gateway lifecycle events and passes them
// to sink. Undecodable messages are logged and committed so they do not block
// the partition.
func SessionEventMessageHandler(sink func(messaging.Event) bool, logger *zap.Logger) kafka_infra.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		evt, err := messaging.DecodeGatewayEvent(msg.Value)
		if err != nil {
			logger.Error("Failed to decode session event, skipping",
				zap.Error(err),
				zap.ByteString("value", msg.Value),
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset))
			return nil
		}

		logger.Debug("Received session event",
			zap.String("event", string(evt.Kind)),
			zap.Int64("offset", msg.Offset))

		if !sink(evt) {
			logger.Warn("Session event dropped, client closed", zap.String("event", string(evt.Kind)))
		}
		return nil
	}
}
