package gateway

import (
	"context"
	"time"

	"github.com/google/uuid"

	"gateway/internal/broker"
	"gateway/internal/logger"
	"gateway/pkg/models"
)

// Notifier publishes gateway lifecycle events for downstream collaborators.
// The gateway does not persist conversation state; the events topic is how
// thread storage learns about sends, failures and status changes.
type Notifier struct {
	producer     broker.Producer
	inboundTopic string
	statusTopic  string
	eventsTopic  string
	logger       logger.Logger
}

func NewNotifier(producer broker.Producer, inboundTopic, statusTopic, eventsTopic string, log logger.Logger) *Notifier {
	return &Notifier{
		producer:     producer,
		inboundTopic: inboundTopic,
		statusTopic:  statusTopic,
		eventsTopic:  eventsTopic,
		logger:       log,
	}
}

func (n *Notifier) MessageSent(ctx context.Context, msg *models.NormalizedMessage) {
	n.publish(ctx, n.eventsTopic, msg.ID, models.GatewayEvent{
		ID:         uuid.New().String(),
		Type:       models.EventMessageSent,
		Timestamp:  time.Now().UTC(),
		MessageID:  msg.ID,
		ExternalID: msg.ExternalID,
		Message:    msg,
	})
}

func (n *Notifier) MessageFailed(ctx context.Context, msg *models.NormalizedMessage, errorCode, detail string) {
	n.publish(ctx, n.eventsTopic, msg.ID, models.GatewayEvent{
		ID:        uuid.New().String(),
		Type:      models.EventMessageFailed,
		Timestamp: time.Now().UTC(),
		MessageID: msg.ID,
		ErrorCode: errorCode,
		Error:     detail,
	})
}

func (n *Notifier) MessageReceived(ctx context.Context, msg *models.NormalizedMessage) {
	n.publish(ctx, n.inboundTopic, msg.ID, models.GatewayEvent{
		ID:         uuid.New().String(),
		Type:       models.EventMessageReceived,
		Timestamp:  time.Now().UTC(),
		MessageID:  msg.ID,
		ExternalID: msg.ExternalID,
		Message:    msg,
	})
}

func (n *Notifier) StatusChanged(ctx context.Context, update *models.StatusUpdate) {
	n.publish(ctx, n.statusTopic, update.ExternalID, models.GatewayEvent{
		ID:           uuid.New().String(),
		Type:         models.EventMessageStatus,
		Timestamp:    time.Now().UTC(),
		MessageID:    update.MessageID,
		ExternalID:   update.ExternalID,
		StatusUpdate: update,
	})
}

// publish failures are logged, never surfaced: a send that the provider
// accepted must not look failed to the caller because the event bus burped.
func (n *Notifier) publish(ctx context.Context, topic, key string, event models.GatewayEvent) {
	if n.producer == nil || topic == "" {
		return
	}
	if err := n.producer.Publish(ctx, topic, key, event); err != nil {
		n.logger.ErrorwCtx(ctx, "Failed to publish gateway event",
			"error", err,
			"event_type", event.Type,
			"topic", topic,
			"message_id", event.MessageID,
		)
	}
}
