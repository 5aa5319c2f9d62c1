package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gateway/internal/adapter"
	"gateway/internal/adapter/sms"
	"gateway/internal/logger"
	"gateway/internal/ratelimit"
	"gateway/internal/usage"
	pkgerrors "gateway/pkg/errors"
	"gateway/pkg/metrics"
	"gateway/pkg/models"
)

// RateLimiter is the per-account business limiter consulted before any
// provider call.
type RateLimiter interface {
	CheckLimit(ctx context.Context, key ratelimit.Key) (ratelimit.Status, error)
	RecordAction(ctx context.Context, key ratelimit.Key) error
	GetStatus(ctx context.Context, key ratelimit.Key) (ratelimit.Status, error)
}

// UsageMeter checks and debits the tenant's prepaid balance.
type UsageMeter interface {
	CheckBalance(ctx context.Context, tenantID, workspaceID string, channel models.ChannelType, eventType models.EventType, units int) (usage.BalanceCheck, error)
	RecordUsage(ctx context.Context, record *usage.UsageRecord) (bool, error)
	GetCostEstimate(channel models.ChannelType, eventType models.EventType, units int) usage.CostEstimate
}

// OptOutRegistry answers whether a recipient has withdrawn consent on a
// channel.
type OptOutRegistry interface {
	IsOptedOut(ctx context.Context, channel models.ChannelType, recipient string) (bool, error)
}

// TemplateStore resolves registered templates for template sends.
type TemplateStore interface {
	Get(ctx context.Context, tenantID, templateID string) (*models.Template, error)
}

// Result is what callers of the gateway facade get back. Rejections are data,
// not errors: every failed pipeline step maps to a code the caller can render.
type Result struct {
	Success     bool               `json:"success"`
	MessageID   string             `json:"message_id"`
	ExternalID  string             `json:"external_id,omitempty"`
	ErrorCode   string             `json:"error_code,omitempty"`
	ErrorDetail string             `json:"error_detail,omitempty"`
	RetryAfter  time.Duration      `json:"retry_after,omitempty"`
	Segments    int                `json:"segments,omitempty"`
	Cost        *usage.CostEstimate `json:"cost,omitempty"`
}

// RateLimitOverview is the diagnostics view of one account's windows.
type RateLimitOverview struct {
	ChannelAccountID string           `json:"channel_account_id"`
	Message          ratelimit.Status `json:"message"`
	Template         ratelimit.Status `json:"template"`
}

// Service is the messaging gateway facade. Every outbound send runs the same
// pipeline: rate limit, balance, opt-out, compliance, provider call. The
// steps run in that order and the first failure short-circuits with zero
// provider calls and zero usage recorded.
type Service struct {
	accounts  AccountRepository
	adapters  *adapter.Registry
	limiter   RateLimiter
	meter     UsageMeter
	optOuts   OptOutRegistry
	templates TemplateStore
	notifier  *Notifier
	logger    logger.Logger
}

func NewService(
	accounts AccountRepository,
	adapters *adapter.Registry,
	limiter RateLimiter,
	meter UsageMeter,
	optOuts OptOutRegistry,
	templates TemplateStore,
	notifier *Notifier,
	log logger.Logger,
) *Service {
	return &Service{
		accounts:  accounts,
		adapters:  adapters,
		limiter:   limiter,
		meter:     meter,
		optOuts:   optOuts,
		templates: templates,
		notifier:  notifier,
		logger:    log,
	}
}

// Send dispatches a free-form outbound message through the account's channel.
func (s *Service) Send(ctx context.Context, accountID string, msg *models.NormalizedMessage) (*Result, error) {
	account, channelAdapter, err := s.resolve(ctx, accountID, msg)
	if err != nil {
		return nil, err
	}

	if rejection := s.checkCapabilities(channelAdapter, msg); rejection != nil {
		return s.reject(ctx, msg, rejection), nil
	}

	return s.dispatch(ctx, account, msg, models.ActionMessage, func(ctx context.Context) (*adapter.SendResult, error) {
		return channelAdapter.SendMessage(ctx, account, msg)
	})
}

// SendTemplate dispatches a registered template with variables filled in.
func (s *Service) SendTemplate(ctx context.Context, accountID, templateID string, variables map[string]string, recipient string) (*Result, error) {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	channelAdapter, err := s.adapters.Get(account.Type)
	if err != nil {
		return nil, err
	}

	tmpl, err := s.templates.Get(ctx, account.TenantID, templateID)
	if err != nil {
		return nil, err
	}

	msg := models.NewMessageBuilder().
		WithID(uuid.New().String()).
		WithChannel(account.Type, account.ID).
		WithDirection(models.DirectionOutbound).
		WithTemplate(templateID, variables).
		WithTenant(account.TenantID, account.WorkspaceID).
		WithRecipient(recipient).
		WithSender(account.Identifier).
		WithEventType(templateEventType(account.Type)).
		Build()

	if !channelAdapter.Capabilities().Has(models.CapabilityTemplates) {
		return s.reject(ctx, msg, adapter.Rejected(adapter.CodeUnsupportedCapability,
			fmt.Sprintf("channel %s does not support templates", account.Type))), nil
	}

	return s.dispatch(ctx, account, msg, models.ActionTemplate, func(ctx context.Context) (*adapter.SendResult, error) {
		return channelAdapter.SendTemplate(ctx, account, msg, tmpl)
	})
}

// dispatch runs the five-step pipeline. Retried sends re-enter here from the
// top: nothing from a prior attempt is cached, and usage idempotency rides on
// the message id.
func (s *Service) dispatch(ctx context.Context, account *models.ChannelAccount, msg *models.NormalizedMessage, action models.ActionType, call func(ctx context.Context) (*adapter.SendResult, error)) (*Result, error) {
	if err := models.ValidateOutbound(msg); err != nil {
		return nil, pkgerrors.ErrValidation.WithCause(err)
	}

	start := time.Now()
	key := ratelimit.Key{
		ChannelAccountID: account.ID,
		ChannelType:      account.Type,
		ActionType:       action,
	}

	limitStatus, err := s.limiter.CheckLimit(ctx, key)
	if err != nil {
		return nil, err
	}
	if !limitStatus.Allowed {
		result := adapter.Rejected(adapter.CodeRateLimited,
			fmt.Sprintf("account %s exhausted its %s window", account.ID, action))
		result.RetryAfter = limitStatus.RetryAfter
		return s.reject(ctx, msg, result), nil
	}

	units := unitsFor(account.Type, msg)
	balance, err := s.meter.CheckBalance(ctx, msg.Metadata.TenantID, msg.Metadata.WorkspaceID, account.Type, msg.Metadata.EventType, units)
	if err != nil {
		return nil, err
	}
	if !balance.Sufficient {
		return s.reject(ctx, msg, adapter.Rejected(adapter.CodeInsufficientBalance,
			fmt.Sprintf("balance %d below estimated cost %d", balance.Balance, balance.Estimate.Total))), nil
	}

	optedOut, err := s.optOuts.IsOptedOut(ctx, account.Type, msg.Metadata.Recipient)
	if err != nil {
		return nil, err
	}
	if optedOut {
		return s.reject(ctx, msg, adapter.Rejected(adapter.CodeRecipientOptedOut,
			fmt.Sprintf("recipient has opted out of %s", account.Type))), nil
	}

	sendResult, err := call(ctx)
	if err != nil {
		// infrastructure faults (missing credentials, open breaker)
		// propagate; business rejections come back as results
		return nil, err
	}
	if !sendResult.Accepted {
		return s.reject(ctx, msg, sendResult), nil
	}

	now := time.Now().UTC()
	msg.ExternalID = sendResult.ExternalID
	msg.Status = models.StatusSubmitted
	msg.SentAt = &now

	if sendResult.Segments > 0 {
		units = sendResult.Segments
	}
	if account.Type == models.ChannelSMS {
		metrics.SMSSegments.Observe(float64(units))
	}

	if err := s.limiter.RecordAction(ctx, key); err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to record rate limit action",
			"error", err,
			"channel_account_id", account.ID,
		)
	}

	record := &usage.UsageRecord{
		TenantID:       msg.Metadata.TenantID,
		WorkspaceID:    msg.Metadata.WorkspaceID,
		MessageEventID: msg.ID,
		ChannelType:    account.Type,
		EventType:      msg.Metadata.EventType,
		Units:          units,
	}
	if _, err := s.meter.RecordUsage(ctx, record); err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to record usage for accepted send",
			"error", err,
			"message_id", msg.ID,
			"tenant_id", msg.Metadata.TenantID,
		)
	}

	s.notifier.MessageSent(ctx, msg)
	metrics.IncSend(string(account.Type), "accepted")
	metrics.ObserveSendDuration(string(account.Type), "accepted", time.Since(start))

	estimate := s.meter.GetCostEstimate(account.Type, msg.Metadata.EventType, units)
	return &Result{
		Success:    true,
		MessageID:  msg.ID,
		ExternalID: sendResult.ExternalID,
		Segments:   sendResult.Segments,
		Cost:       &estimate,
	}, nil
}

// EstimateCost prices a message without sending it.
func (s *Service) EstimateCost(ctx context.Context, accountID string, msg *models.NormalizedMessage) (*usage.CostEstimate, error) {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}

	eventType := msg.Metadata.EventType
	if eventType == "" {
		eventType = models.DefaultEventType(account.Type)
	}
	estimate := s.meter.GetCostEstimate(account.Type, eventType, unitsFor(account.Type, msg))
	return &estimate, nil
}

// GetHealth probes the provider through the adapter and persists the result
// on the account.
func (s *Service) GetHealth(ctx context.Context, accountID string) (models.AccountHealth, error) {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return "", err
	}
	channelAdapter, err := s.adapters.Get(account.Type)
	if err != nil {
		return "", err
	}

	health, probeErr := channelAdapter.CheckHealth(ctx, account)
	if health == "" {
		health = models.AccountUnhealthy
	}
	if err := s.accounts.UpdateHealth(ctx, accountID, health); err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to persist account health",
			"error", err,
			"channel_account_id", accountID,
		)
	}
	if probeErr != nil {
		s.logger.WarnwCtx(ctx, "Account health probe failed",
			"error", probeErr,
			"channel_account_id", accountID,
			"health", health,
		)
	}
	return health, nil
}

// GetRateLimitStatus reports the account's current windows without consuming
// from them.
func (s *Service) GetRateLimitStatus(ctx context.Context, accountID string) (*RateLimitOverview, error) {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}

	overview := &RateLimitOverview{ChannelAccountID: account.ID}
	for _, action := range []models.ActionType{models.ActionMessage, models.ActionTemplate} {
		status, err := s.limiter.GetStatus(ctx, ratelimit.Key{
			ChannelAccountID: account.ID,
			ChannelType:      account.Type,
			ActionType:       action,
		})
		if err != nil {
			return nil, err
		}
		if action == models.ActionMessage {
			overview.Message = status
		} else {
			overview.Template = status
		}
	}
	return overview, nil
}

// GetCapabilities lets callers discover what a channel can do before
// attempting an operation it cannot.
func (s *Service) GetCapabilities(ctx context.Context, accountID string) (models.CapabilitySet, error) {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	channelAdapter, err := s.adapters.Get(account.Type)
	if err != nil {
		return nil, err
	}
	return channelAdapter.Capabilities(), nil
}

// UploadMedia stores media with the provider backing the account and returns
// the provider's media id. Channels whose provider does not hold media on its
// side reject the call with UNSUPPORTED_CAPABILITY rather than silently
// accepting it.
func (s *Service) UploadMedia(ctx context.Context, accountID string, data []byte, mimeType string) (string, error) {
	account, media, err := s.resolveMedia(ctx, accountID)
	if err != nil {
		return "", err
	}
	return media.UploadMedia(ctx, account, data, mimeType)
}

// DownloadMedia fetches previously uploaded media by its provider id.
func (s *Service) DownloadMedia(ctx context.Context, accountID, mediaID string) ([]byte, string, error) {
	account, media, err := s.resolveMedia(ctx, accountID)
	if err != nil {
		return nil, "", err
	}
	return media.DownloadMedia(ctx, account, mediaID)
}

func (s *Service) resolveMedia(ctx context.Context, accountID string) (*models.ChannelAccount, adapter.MediaHandler, error) {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	channelAdapter, err := s.adapters.Get(account.Type)
	if err != nil {
		return nil, nil, err
	}
	media, ok := adapter.AsMediaHandler(channelAdapter)
	if !ok {
		return nil, nil, pkgerrors.ErrUnsupportedCapability.WithDetail("channel_type", string(account.Type))
	}
	return account, media, nil
}

func (s *Service) resolve(ctx context.Context, accountID string, msg *models.NormalizedMessage) (*models.ChannelAccount, adapter.ChannelAdapter, error) {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	channelAdapter, err := s.adapters.Get(account.Type)
	if err != nil {
		return nil, nil, err
	}

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	msg.ChannelType = account.Type
	msg.ChannelAccountID = account.ID
	msg.Direction = models.DirectionOutbound
	if msg.Metadata.TenantID == "" {
		msg.Metadata.TenantID = account.TenantID
	}
	if msg.Metadata.WorkspaceID == "" {
		msg.Metadata.WorkspaceID = account.WorkspaceID
	}
	if msg.Metadata.Sender == "" {
		msg.Metadata.Sender = account.Identifier
	}
	if msg.Metadata.EventType == "" {
		msg.Metadata.EventType = models.DefaultEventType(account.Type)
	}

	return account, channelAdapter, nil
}

func (s *Service) checkCapabilities(channelAdapter adapter.ChannelAdapter, msg *models.NormalizedMessage) *adapter.SendResult {
	caps := channelAdapter.Capabilities()
	if len(msg.Content.Attachments) > 0 && !caps.Has(models.CapabilityMedia) {
		return adapter.Rejected(adapter.CodeUnsupportedCapability,
			fmt.Sprintf("channel %s cannot carry media", msg.ChannelType))
	}
	return nil
}

// reject finalizes a pipeline rejection: metric, failure event, caller
// result. The message never reached the provider (or was refused by it), so
// no usage and no limiter action are recorded.
func (s *Service) reject(ctx context.Context, msg *models.NormalizedMessage, sendResult *adapter.SendResult) *Result {
	msg.Status = models.StatusRejected

	metrics.IncSendRejection(string(msg.ChannelType), sendResult.ErrorCode)
	s.notifier.MessageFailed(ctx, msg, sendResult.ErrorCode, sendResult.ErrorDetail)
	s.logger.InfowCtx(ctx, "Send rejected",
		"message_id", msg.ID,
		"channel_type", msg.ChannelType,
		"error_code", sendResult.ErrorCode,
	)

	return &Result{
		Success:     false,
		MessageID:   msg.ID,
		ErrorCode:   sendResult.ErrorCode,
		ErrorDetail: sendResult.ErrorDetail,
		RetryAfter:  sendResult.RetryAfter,
	}
}

// unitsFor computes the billable units before the provider call. SMS bills
// per segment; every other channel bills per message.
func unitsFor(channel models.ChannelType, msg *models.NormalizedMessage) int {
	if channel == models.ChannelSMS {
		return sms.CountSegments(msg.Content.Text)
	}
	return 1
}

func templateEventType(channel models.ChannelType) models.EventType {
	if channel == models.ChannelWhatsApp {
		return models.EventWhatsAppTemplate
	}
	return models.DefaultEventType(channel)
}
