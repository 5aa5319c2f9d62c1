package optout

import (
	"context"
	"encoding/json"

	"gateway/internal/broker"
	"gateway/internal/logger"
	"gateway/pkg/models"
)

// Handler consumes normalized inbound messages and feeds keyword opt-outs
// into the registry.
type Handler struct {
	service *Service
	logger  logger.Logger
}

func NewHandler(service *Service, log logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

// HandleInboundMessage implements broker.HandlerFunc for the inbound topic.
// Malformed payloads are logged and dropped; a redelivery would fail the
// same way.
func (h *Handler) HandleInboundMessage(ctx context.Context, msg broker.Message) error {
	var inbound models.NormalizedMessage
	if err := json.Unmarshal(msg.Value, &inbound); err != nil {
		h.logger.ErrorwCtx(ctx, "Failed to unmarshal inbound message",
			"error", err,
			"key", msg.Key,
		)
		return nil
	}

	changed, err := h.service.ProcessInbound(ctx, &inbound)
	if err != nil {
		return err
	}
	if changed {
		h.logger.InfowCtx(ctx, "Opt-out registry updated from inbound message",
			"message_id", inbound.ID,
			"channel_type", inbound.ChannelType,
		)
	}
	return nil
}
