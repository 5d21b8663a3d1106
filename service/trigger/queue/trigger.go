package queue

import (
	"context"

	"github.com/viant/tripmanager/service/messaging"
	"github.com/viant/tripmanager/service/trigger"
)

// NewStartConsumer starts trip managers from queued start messages
func NewStartConsumer(queue messaging.Queue[trigger.StartMessage], c trigger.Coordinator, opts ...Option) *Consumer[trigger.StartMessage] {
	var consumer *Consumer[trigger.StartMessage]
	consumer = NewConsumer[trigger.StartMessage]("start", queue, func(ctx context.Context, message *trigger.StartMessage) error {
		outcome, err := trigger.Start(ctx, c, message)
		if err != nil {
			return err
		}
		consumer.logger.Info("start processed", "key", message.Code, "decision", outcome)
		return nil
	}, opts...)
	return consumer
}

// NewAcknowledgeConsumer routes queued driver acknowledgements
func NewAcknowledgeConsumer(queue messaging.Queue[trigger.AcknowledgeMessage], c trigger.Coordinator, opts ...Option) *Consumer[trigger.AcknowledgeMessage] {
	var consumer *Consumer[trigger.AcknowledgeMessage]
	consumer = NewConsumer[trigger.AcknowledgeMessage]("acknowledge", queue, func(ctx context.Context, message *trigger.AcknowledgeMessage) error {
		delivery, err := trigger.Acknowledge(ctx, c, message)
		if err != nil {
			return err
		}
		consumer.logger.Info("acknowledge processed", "key", message.TripKey, "event", message.DriverKey, "decision", delivery)
		return nil
	}, opts...)
	return consumer
}
