package sms

import (
	"context"
	"errors"

	"gateway/internal/adapter"
	"gateway/internal/logger"
	"gateway/internal/template"
	pkgerrors "gateway/pkg/errors"
	"gateway/pkg/models"
)

// TemplateResolver resolves the APPROVED template a send must map to under
// DLT rules.
type TemplateResolver interface {
	ResolveApproved(ctx context.Context, tenantID string, channel models.ChannelType, templateID, text string) (*models.Template, error)
}

// Adapter is the SMS channel integration. The regulated market only accepts
// registered template content, so free-form sends are resolved against the
// tenant's approved templates before any provider call.
type Adapter struct {
	client    *Client
	templates TemplateResolver
	logger    logger.Logger
}

func NewAdapter(client *Client, templates TemplateResolver, log logger.Logger) *Adapter {
	return &Adapter{
		client:    client,
		templates: templates,
		logger:    log,
	}
}

func (a *Adapter) ChannelType() models.ChannelType {
	return models.ChannelSMS
}

func (a *Adapter) Capabilities() models.CapabilitySet {
	return models.CapabilitySet{
		models.CapabilityText,
		models.CapabilityTemplates,
		models.CapabilityDeliveryReceipts,
	}
}

func (a *Adapter) SendMessage(ctx context.Context, account *models.ChannelAccount, msg *models.NormalizedMessage) (*adapter.SendResult, error) {
	if len(msg.Content.Attachments) > 0 {
		return adapter.Rejected(adapter.CodeUnsupportedCapability, "SMS cannot carry media attachments"), nil
	}

	tmpl, err := a.templates.ResolveApproved(ctx, msg.Metadata.TenantID, models.ChannelSMS, msg.Metadata.TemplateID, msg.Content.Text)
	if err != nil {
		if result := complianceRejection(err); result != nil {
			return result, nil
		}
		return nil, err
	}

	return a.submit(ctx, account, msg, msg.Content.Text, tmpl)
}

func (a *Adapter) SendTemplate(ctx context.Context, account *models.ChannelAccount, msg *models.NormalizedMessage, tmpl *models.Template) (*adapter.SendResult, error) {
	if tmpl.Status != models.TemplateApproved {
		return adapter.Rejected(adapter.CodeTemplateNotApproved, "template "+tmpl.ID+" is "+string(tmpl.Status)), nil
	}
	body := template.Render(tmpl, msg.Content.Variables)
	return a.submit(ctx, account, msg, body, tmpl)
}

func (a *Adapter) submit(ctx context.Context, account *models.ChannelAccount, msg *models.NormalizedMessage, body string, tmpl *models.Template) (*adapter.SendResult, error) {
	apiKey := account.Credential("api_key")
	if apiKey == "" {
		return nil, pkgerrors.ErrCredentials.WithDetail("channel_account_id", account.ID)
	}

	segments := CountSegments(body)
	unicode := 0
	if DetectEncoding(body) == EncodingUnicode {
		unicode = 1
	}

	req := sendRequest{
		Sender:   account.Attribute(models.AttrSenderID),
		Mobile:   msg.Metadata.Recipient,
		Message:  body,
		EntityID: account.Attribute(models.AttrDLTEntityID),
		Unicode:  unicode,
	}
	if tmpl != nil {
		req.TemplateID = tmpl.ProviderTemplateID
	}

	resp, err := a.client.Send(ctx, apiKey, req)
	if err != nil {
		a.logger.ErrorwCtx(ctx, "SMS provider send failed",
			"error", err,
			"channel_account_id", account.ID,
			"message_id", msg.ID,
		)
		return adapter.Rejected(adapter.CodeProviderError, err.Error()), nil
	}

	result := adapter.Accepted(resp.RequestID, segments)
	a.logger.InfowCtx(ctx, "SMS submitted to provider",
		"message_id", msg.ID,
		"external_id", resp.RequestID,
		"segments", segments,
	)
	return result, nil
}

func (a *Adapter) ParseInboundWebhook(account *models.ChannelAccount, payload []byte) (*models.NormalizedMessage, error) {
	return parseInbound(account, payload)
}

func (a *Adapter) ParseStatusWebhook(account *models.ChannelAccount, payload []byte) (*models.StatusUpdate, error) {
	return parseStatus(payload)
}

// CheckHealth probes the provider balance endpoint with the account's
// credentials. It reflects provider reachability, not the rate limiter.
func (a *Adapter) CheckHealth(ctx context.Context, account *models.ChannelAccount) (models.AccountHealth, error) {
	apiKey := account.Credential("api_key")
	if apiKey == "" {
		return models.AccountUnhealthy, pkgerrors.ErrCredentials.WithDetail("channel_account_id", account.ID)
	}

	balance, err := a.client.Balance(ctx, apiKey)
	if err != nil {
		return models.AccountUnhealthy, err
	}
	if balance.Balance <= 0 {
		return models.AccountDegraded, nil
	}
	return models.AccountHealthy, nil
}

// complianceRejection converts template-compliance errors into send-result
// variants; anything else stays an error.
func complianceRejection(err error) *adapter.SendResult {
	var appErr *pkgerrors.Error
	if !errors.As(err, &appErr) {
		return nil
	}
	switch appErr.Code {
	case adapter.CodeTemplateRequired, adapter.CodeTemplateNotApproved:
		return adapter.Rejected(appErr.Code, appErr.Message)
	}
	return nil
}
