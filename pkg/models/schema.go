package models

import "fmt"

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateOutbound(msg *NormalizedMessage) error {
	if msg == nil {
		return &ValidationError{
			Field:   "message",
			Message: "message cannot be nil",
		}
	}

	if msg.ID == "" {
		return &ValidationError{
			Field:   "id",
			Message: "message ID is required",
		}
	}

	if !msg.ChannelType.Valid() {
		return &ValidationError{
			Field:   "channel_type",
			Message: fmt.Sprintf("unknown channel type '%s'", msg.ChannelType),
		}
	}

	if msg.Direction != DirectionOutbound {
		return &ValidationError{
			Field:   "direction",
			Message: "send requires an OUTBOUND message",
		}
	}

	if msg.Metadata.Recipient == "" {
		return &ValidationError{
			Field:   "metadata.recipient",
			Message: "recipient is required",
		}
	}

	if msg.Metadata.TenantID == "" {
		return &ValidationError{
			Field:   "metadata.tenant_id",
			Message: "tenant ID is required",
		}
	}

	if msg.Metadata.EventType != "" && !msg.Metadata.EventType.Valid() {
		return &ValidationError{
			Field:   "metadata.event_type",
			Message: fmt.Sprintf("unknown event type '%s'", msg.Metadata.EventType),
		}
	}

	return nil
}
