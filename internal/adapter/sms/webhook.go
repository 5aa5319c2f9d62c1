package sms

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gateway/internal/constants"
	"gateway/pkg/models"
)

// inboundPayload is the provider's inbound-message callback, verbatim.
type inboundPayload struct {
	Message   string `json:"message"`
	Mobile    string `json:"mobile"`
	Datetime  string `json:"datetime"`
	RequestID string `json:"request_id"`
}

// statusPayload is the provider's delivery-status callback, verbatim.
type statusPayload struct {
	RequestID   string `json:"request_id"`
	Status      int    `json:"status"`
	Datetime    string `json:"datetime"`
	Description string `json:"description"`
}

const providerTimeLayout = "2006-01-02 15:04:05"

func parseProviderTime(value string) time.Time {
	if value == "" {
		return time.Now().UTC()
	}
	if ts, err := time.Parse(providerTimeLayout, value); err == nil {
		return ts
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts
	}
	return time.Now().UTC()
}

// mapStatusCode converts the provider's numeric delivery codes to the
// normalized status vocabulary.
func mapStatusCode(code int) (models.MessageStatus, error) {
	switch code {
	case constants.SMSStatusDelivered:
		return models.StatusDelivered, nil
	case constants.SMSStatusSent:
		return models.StatusSent, nil
	case constants.SMSStatusFailed:
		return models.StatusFailed, nil
	case constants.SMSStatusSubmitted:
		return models.StatusSubmitted, nil
	case constants.SMSStatusRejected:
		return models.StatusRejected, nil
	case constants.SMSStatusNDNCRejected:
		return models.StatusNDNCRejected, nil
	}
	return "", fmt.Errorf("unknown provider status code %d", code)
}

func parseInbound(account *models.ChannelAccount, payload []byte) (*models.NormalizedMessage, error) {
	var wire inboundPayload
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("failed to parse inbound webhook: %w", err)
	}
	if wire.Mobile == "" {
		return nil, fmt.Errorf("inbound webhook missing mobile")
	}

	receivedAt := parseProviderTime(wire.Datetime)
	return &models.NormalizedMessage{
		ID:               uuid.New().String(),
		ExternalID:       wire.RequestID,
		ChannelType:      models.ChannelSMS,
		ChannelAccountID: account.ID,
		Direction:        models.DirectionInbound,
		ContentType:      models.ContentText,
		Content: models.MessageContent{
			Text: wire.Message,
		},
		Metadata: models.MessageMetadata{
			TenantID:    account.TenantID,
			WorkspaceID: account.WorkspaceID,
			Sender:      wire.Mobile,
			Recipient:   account.Identifier,
		},
		Status:    models.StatusDelivered,
		CreatedAt: receivedAt,
	}, nil
}

func parseStatus(payload []byte) (*models.StatusUpdate, error) {
	var wire statusPayload
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("failed to parse status webhook: %w", err)
	}
	if wire.RequestID == "" {
		return nil, fmt.Errorf("status webhook missing request_id")
	}

	status, err := mapStatusCode(wire.Status)
	if err != nil {
		return nil, err
	}

	update := &models.StatusUpdate{
		ExternalID: wire.RequestID,
		Status:     status,
		Timestamp:  parseProviderTime(wire.Datetime),
	}
	// the provider's free-text reason must survive into the normalized
	// update for failed and rejected deliveries
	if status == models.StatusFailed || status == models.StatusRejected || status == models.StatusNDNCRejected {
		update.Error = wire.Description
	}
	return update, nil
}
