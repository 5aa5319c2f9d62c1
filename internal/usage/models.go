package usage

import (
	"time"

	"gateway/pkg/models"
)

// UsageRecord is one billable, accepted send. MessageEventID is the
// idempotency key: retries of the same logical message never produce a second
// record.
type UsageRecord struct {
	ID             string             `json:"id"`
	TenantID       string             `json:"tenant_id"`
	WorkspaceID    string             `json:"workspace_id"`
	MessageEventID string             `json:"message_event_id"`
	ChannelType    models.ChannelType `json:"channel_type"`
	EventType      models.EventType   `json:"event_type"`
	Units          int                `json:"units"`
	Cost           int64              `json:"cost"`
	CreatedAt      time.Time          `json:"created_at"`
}

// CostEstimate prices a send before it happens. Cost values are in minor
// currency units (paise).
type CostEstimate struct {
	ChannelType models.ChannelType `json:"channel_type"`
	EventType   models.EventType   `json:"event_type"`
	Units       int                `json:"units"`
	UnitPrice   int64              `json:"unit_price"`
	Total       int64              `json:"total"`
	Currency    string             `json:"currency"`
}

type BalanceCheck struct {
	Sufficient bool         `json:"sufficient"`
	Balance    int64        `json:"balance"`
	Estimate   CostEstimate `json:"estimate"`
}
