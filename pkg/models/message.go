package models

import "time"

// NormalizedMessage is the provider-agnostic representation of one inbound or
// outbound message. Adapters translate provider wire formats into this shape
// and never leak provider payloads past their own package.
type NormalizedMessage struct {
	ID               string          `json:"id"`
	ExternalID       string          `json:"external_id,omitempty"`
	ChannelType      ChannelType     `json:"channel_type"`
	ChannelAccountID string          `json:"channel_account_id"`
	Direction        Direction       `json:"direction"`
	ContentType      ContentType     `json:"content_type"`
	Content          MessageContent  `json:"content"`
	Metadata         MessageMetadata `json:"metadata"`
	Status           MessageStatus   `json:"status"`
	SentAt           *time.Time      `json:"sent_at,omitempty"`
	DeliveredAt      *time.Time      `json:"delivered_at,omitempty"`
	ReadAt           *time.Time      `json:"read_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

type MessageContent struct {
	Text        string            `json:"text,omitempty"`
	Subject     string            `json:"subject,omitempty"`
	Variables   map[string]string `json:"variables,omitempty"`
	Attachments []Attachment      `json:"attachments,omitempty"`
}

type Attachment struct {
	MediaID  string `json:"media_id,omitempty"`
	URL      string `json:"url,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type MessageMetadata struct {
	TenantID    string    `json:"tenant_id,omitempty"`
	WorkspaceID string    `json:"workspace_id,omitempty"`
	Recipient   string    `json:"recipient,omitempty"`
	Sender      string    `json:"sender,omitempty"`
	EventType   EventType `json:"event_type,omitempty"`
	TemplateID  string    `json:"template_id,omitempty"`
}

// StatusUpdate is the normalized form of a provider delivery-status callback.
type StatusUpdate struct {
	MessageID  string        `json:"message_id,omitempty"`
	ExternalID string        `json:"external_id"`
	Status     MessageStatus `json:"status"`
	Timestamp  time.Time     `json:"timestamp"`
	Error      string        `json:"error,omitempty"`
}
