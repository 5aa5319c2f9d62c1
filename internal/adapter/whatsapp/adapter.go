package whatsapp

import (
	"context"

	"gateway/internal/adapter"
	"gateway/internal/logger"
	pkgerrors "gateway/pkg/errors"
	"gateway/pkg/models"
)

const defaultTemplateLanguage = "en"

// Adapter is the WhatsApp Business integration. Free-form sends are only
// deliverable inside an open customer-service session; outside one the
// caller must use SendTemplate.
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
	return models.ChannelWhatsApp
}

func (a *Adapter) Capabilities() models.CapabilitySet {
	return models.CapabilitySet{
		models.CapabilityText,
		models.CapabilityMedia,
		models.CapabilityTemplates,
		models.CapabilityDeliveryReceipts,
	}
}

func (a *Adapter) SendMessage(ctx context.Context, account *models.ChannelAccount, msg *models.NormalizedMessage) (*adapter.SendResult, error) {
	payload := messagePayload{
		MessagingProduct: "whatsapp",
		To:               msg.Metadata.Recipient,
	}

	switch {
	case len(msg.Content.Attachments) > 0:
		att := msg.Content.Attachments[0]
		media := &mediaPayload{ID: att.MediaID, Link: att.URL, Caption: msg.Content.Text}
		if att.Filename != "" {
			payload.Type = "document"
			payload.Document = media
		} else {
			payload.Type = "image"
			payload.Image = media
		}
	default:
		payload.Type = "text"
		payload.Text = &textPayload{Body: msg.Content.Text}
	}

	return a.dispatch(ctx, account, msg, payload)
}

func (a *Adapter) SendTemplate(ctx context.Context, account *models.ChannelAccount, msg *models.NormalizedMessage, tmpl *models.Template) (*adapter.SendResult, error) {
	if tmpl.Status != models.TemplateApproved {
		return adapter.Rejected(adapter.CodeTemplateNotApproved, "template "+tmpl.ID+" is "+string(tmpl.Status)), nil
	}

	payload := messagePayload{
		MessagingProduct: "whatsapp",
		To:               msg.Metadata.Recipient,
		Type:             "template",
		Template: &templatePayload{
			Name:     tmpl.ProviderTemplateID,
			Language: languagePayload{Code: defaultTemplateLanguage},
		},
	}

	// body parameters are positional on the wire; the template's declared
	// variable order defines the positions
	if len(tmpl.Variables) > 0 {
		component := componentsPayload{Type: "body"}
		for _, name := range tmpl.Variables {
			component.Parameters = append(component.Parameters, parameterPayload{
				Type: "text",
				Text: msg.Content.Variables[name],
			})
		}
		payload.Template.Components = []componentsPayload{component}
	}

	return a.dispatch(ctx, account, msg, payload)
}

func (a *Adapter) dispatch(ctx context.Context, account *models.ChannelAccount, msg *models.NormalizedMessage, payload messagePayload) (*adapter.SendResult, error) {
	token := account.Credential("access_token")
	phoneNumberID := account.Attribute(models.AttrPhoneNumberID)
	if token == "" || phoneNumberID == "" {
		return nil, pkgerrors.ErrCredentials.WithDetail("channel_account_id", account.ID)
	}

	externalID, err := a.client.SendMessage(ctx, token, phoneNumberID, payload)
	if err != nil {
		a.logger.ErrorwCtx(ctx, "WhatsApp send failed",
			"error", err,
			"channel_account_id", account.ID,
			"message_id", msg.ID,
		)
		return adapter.Rejected(adapter.CodeProviderError, err.Error()), nil
	}

	a.logger.InfowCtx(ctx, "WhatsApp message accepted",
		"message_id", msg.ID,
		"external_id", externalID,
	)
	return adapter.Accepted(externalID, 1), nil
}

func (a *Adapter) ParseInboundWebhook(account *models.ChannelAccount, payload []byte) (*models.NormalizedMessage, error) {
	return parseInbound(account, payload)
}

func (a *Adapter) ParseStatusWebhook(account *models.ChannelAccount, payload []byte) (*models.StatusUpdate, error) {
	return parseStatus(payload)
}

func (a *Adapter) CheckHealth(ctx context.Context, account *models.ChannelAccount) (models.AccountHealth, error) {
	token := account.Credential("access_token")
	phoneNumberID := account.Attribute(models.AttrPhoneNumberID)
	if token == "" || phoneNumberID == "" {
		return models.AccountUnhealthy, pkgerrors.ErrCredentials.WithDetail("channel_account_id", account.ID)
	}

	if err := a.client.GetPhoneNumber(ctx, token, phoneNumberID); err != nil {
		return models.AccountUnhealthy, err
	}
	return models.AccountHealthy, nil
}

func (a *Adapter) UploadMedia(ctx context.Context, account *models.ChannelAccount, data []byte, mimeType string) (string, error) {
	token := account.Credential("access_token")
	phoneNumberID := account.Attribute(models.AttrPhoneNumberID)
	if token == "" || phoneNumberID == "" {
		return "", pkgerrors.ErrCredentials.WithDetail("channel_account_id", account.ID)
	}
	return a.client.UploadMedia(ctx, token, phoneNumberID, data, mimeType)
}

func (a *Adapter) DownloadMedia(ctx context.Context, account *models.ChannelAccount, mediaID string) ([]byte, string, error) {
	token := account.Credential("access_token")
	if token == "" {
		return nil, "", pkgerrors.ErrCredentials.WithDetail("channel_account_id", account.ID)
	}
	return a.client.DownloadMedia(ctx, token, mediaID)
}
