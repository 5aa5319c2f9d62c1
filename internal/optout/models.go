package optout

import (
	"time"

	"gateway/pkg/models"
)

// Entry is one recipient's opt-out for a channel. Recipients are stored
// per channel: stopping SMS does not stop WhatsApp.
type Entry struct {
	ChannelType models.ChannelType `json:"channel_type"`
	Recipient   string             `json:"recipient"`
	Source      string             `json:"source,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

const (
	SourceKeyword = "keyword"
	SourceAPI     = "api"
)
