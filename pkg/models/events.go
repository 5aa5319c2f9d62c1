package models

import "time"

// GatewayEventType classifies events republished to collaborators over the
// broker.
type GatewayEventType string

const (
	EventMessageSent     GatewayEventType = "MESSAGE_SENT"
	EventMessageFailed   GatewayEventType = "MESSAGE_FAILED"
	EventMessageReceived GatewayEventType = "MESSAGE_RECEIVED"
	EventMessageStatus   GatewayEventType = "MESSAGE_STATUS"
)

// GatewayEvent is the envelope published to the conversation-thread
// collaborator. Exactly one of Message or StatusUpdate is set depending on
// the event type.
type GatewayEvent struct {
	ID           string             `json:"id"`
	Type         GatewayEventType   `json:"type"`
	Timestamp    time.Time          `json:"timestamp"`
	MessageID    string             `json:"message_id,omitempty"`
	ExternalID   string             `json:"external_id,omitempty"`
	Error        string             `json:"error,omitempty"`
	ErrorCode    string             `json:"error_code,omitempty"`
	Message      *NormalizedMessage `json:"message,omitempty"`
	StatusUpdate *StatusUpdate      `json:"status_update,omitempty"`
}
