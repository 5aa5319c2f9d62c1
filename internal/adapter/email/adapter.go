package email

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gateway/internal/adapter"
	"gateway/internal/logger"
	pkgerrors "gateway/pkg/errors"
	"gateway/pkg/models"
)

// statusPayload is the provider's email event callback.
type statusPayload struct {
	MessageID string `json:"message_id"`
	Event     string `json:"event"`
	Timestamp int64  `json:"timestamp"`
	Reason    string `json:"reason,omitempty"`
}

// inboundPayload is the provider's inbound-mail callback (reply capture).
type inboundPayload struct {
	MessageID string `json:"message_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Timestamp int64  `json:"timestamp"`
}

var eventVocabulary = map[string]models.MessageStatus{
	"accepted":  models.StatusSubmitted,
	"sent":      models.StatusSent,
	"delivered": models.StatusDelivered,
	"opened":    models.StatusRead,
	"bounced":   models.StatusFailed,
	"rejected":  models.StatusRejected,
}

// Adapter is the email channel integration behind a transactional mail
// provider API. Templates are not regulated for email, so the channel
// accepts free-form sends.
type Adapter struct {
	client *Client
	logger logger.Logger
}

func NewAdapter(client *Client, log logger.Logger) *Adapter {
	return &Adapter{
		client: client,
		logger: log,
	}
}

func (a *Adapter) ChannelType() models.ChannelType {
	return models.ChannelEmail
}

func (a *Adapter) Capabilities() models.CapabilitySet {
	return models.CapabilitySet{
		models.CapabilityText,
		models.CapabilityMedia,
		models.CapabilityDeliveryReceipts,
	}
}

func (a *Adapter) SendMessage(ctx context.Context, account *models.ChannelAccount, msg *models.NormalizedMessage) (*adapter.SendResult, error) {
	apiKey := account.Credential("api_key")
	if apiKey == "" {
		return nil, pkgerrors.ErrCredentials.WithDetail("channel_account_id", account.ID)
	}

	req := sendRequest{
		From:    account.Identifier,
		To:      msg.Metadata.Recipient,
		Subject: msg.Content.Subject,
		Body:    msg.Content.Text,
	}
	for _, att := range msg.Content.Attachments {
		req.Attachments = append(req.Attachments, attachment{
			URL:      att.URL,
			Filename: att.Filename,
			MimeType: att.MimeType,
		})
	}

	resp, err := a.client.Send(ctx, apiKey, req)
	if err != nil {
		a.logger.ErrorwCtx(ctx, "Email provider send failed",
			"error", err,
			"channel_account_id", account.ID,
			"message_id", msg.ID,
		)
		return adapter.Rejected(adapter.CodeProviderError, err.Error()), nil
	}

	return adapter.Accepted(resp.MessageID, 1), nil
}

// SendTemplate renders nothing provider-side: email templates live in the
// gateway, so the router renders and routes through SendMessage instead.
func (a *Adapter) SendTemplate(ctx context.Context, account *models.ChannelAccount, msg *models.NormalizedMessage, tmpl *models.Template) (*adapter.SendResult, error) {
	return adapter.Rejected(adapter.CodeUnsupportedCapability, "email sends are free-form; render the template and use SendMessage"), nil
}

func (a *Adapter) ParseInboundWebhook(account *models.ChannelAccount, payload []byte) (*models.NormalizedMessage, error) {
	var wire inboundPayload
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("failed to parse inbound webhook: %w", err)
	}
	if wire.From == "" {
		return nil, fmt.Errorf("inbound webhook missing from address")
	}

	return &models.NormalizedMessage{
		ID:               uuid.New().String(),
		ExternalID:       wire.MessageID,
		ChannelType:      models.ChannelEmail,
		ChannelAccountID: account.ID,
		Direction:        models.DirectionInbound,
		ContentType:      models.ContentEmail,
		Content: models.MessageContent{
			Subject: wire.Subject,
			Text:    wire.Body,
		},
		Metadata: models.MessageMetadata{
			TenantID:    account.TenantID,
			WorkspaceID: account.WorkspaceID,
			Sender:      wire.From,
			Recipient:   wire.To,
		},
		Status:    models.StatusDelivered,
		CreatedAt: time.Unix(wire.Timestamp, 0).UTC(),
	}, nil
}

func (a *Adapter) ParseStatusWebhook(account *models.ChannelAccount, payload []byte) (*models.StatusUpdate, error) {
	var wire statusPayload
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("failed to parse status webhook: %w", err)
	}
	if wire.MessageID == "" {
		return nil, fmt.Errorf("status webhook missing message_id")
	}

	status, ok := eventVocabulary[wire.Event]
	if !ok {
		return nil, fmt.Errorf("unknown email event %q", wire.Event)
	}

	update := &models.StatusUpdate{
		ExternalID: wire.MessageID,
		Status:     status,
		Timestamp:  time.Unix(wire.Timestamp, 0).UTC(),
	}
	if status == models.StatusFailed || status == models.StatusRejected {
		update.Error = wire.Reason
	}
	return update, nil
}

func (a *Adapter) CheckHealth(ctx context.Context, account *models.ChannelAccount) (models.AccountHealth, error) {
	apiKey := account.Credential("api_key")
	if apiKey == "" {
		return models.AccountUnhealthy, pkgerrors.ErrCredentials.WithDetail("channel_account_id", account.ID)
	}

	status, err := a.client.AccountStatus(ctx, apiKey)
	if err != nil {
		return models.AccountUnhealthy, err
	}
	if status.Status != "active" {
		return models.AccountDegraded, nil
	}
	return models.AccountHealthy, nil
}
