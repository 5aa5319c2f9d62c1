package gateway

import (
	"context"
	"fmt"
	"time"

	"gateway/internal/adapter"
	"gateway/internal/constants"
	"gateway/internal/logger"
	pkgerrors "gateway/pkg/errors"
	"gateway/pkg/metrics"
	"gateway/pkg/models"
)

// Deduplicator remembers webhook deliveries it has already processed.
// Providers deliver at-least-once; redeliveries must be no-ops. Get/Set keep
// the last published lifecycle stage per message so out-of-order
// redeliveries are dropped too.
type Deduplicator interface {
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// WebhookService normalizes provider callbacks and republishes them for
// downstream collaborators.
type WebhookService struct {
	accounts AccountRepository
	adapters *adapter.Registry
	deduper  Deduplicator
	notifier *Notifier
	logger   logger.Logger
}

func NewWebhookService(accounts AccountRepository, adapters *adapter.Registry, deduper Deduplicator, notifier *Notifier, log logger.Logger) *WebhookService {
	return &WebhookService{
		accounts: accounts,
		adapters: adapters,
		deduper:  deduper,
		notifier: notifier,
		logger:   log,
	}
}

// HandleInbound normalizes a provider message-received callback. A duplicate
// delivery returns the parsed message without republishing it.
func (w *WebhookService) HandleInbound(ctx context.Context, channel models.ChannelType, accountID string, payload []byte) (*models.NormalizedMessage, error) {
	account, channelAdapter, err := w.resolve(ctx, channel, accountID)
	if err != nil {
		metrics.IncWebhook(string(channel), "inbound", "error")
		return nil, err
	}

	msg, err := channelAdapter.ParseInboundWebhook(account, payload)
	if err != nil {
		metrics.IncWebhook(string(channel), "inbound", "error")
		return nil, pkgerrors.ErrValidation.WithCause(err)
	}

	fresh, err := w.markSeen(ctx, channel, msg.ExternalID, "inbound")
	if err != nil {
		return nil, err
	}
	if !fresh {
		metrics.IncWebhook(string(channel), "inbound", "duplicate")
		w.logger.InfowCtx(ctx, "Duplicate inbound webhook dropped",
			"channel_type", channel,
			"external_id", msg.ExternalID,
		)
		return msg, nil
	}

	w.notifier.MessageReceived(ctx, msg)
	metrics.IncWebhook(string(channel), "inbound", "processed")
	return msg, nil
}

// HandleStatus normalizes a provider delivery-status callback. Deduplication
// keys on the external id and the reported status so distinct lifecycle
// stages of one message still flow through.
func (w *WebhookService) HandleStatus(ctx context.Context, channel models.ChannelType, accountID string, payload []byte) (*models.StatusUpdate, error) {
	account, channelAdapter, err := w.resolve(ctx, channel, accountID)
	if err != nil {
		metrics.IncWebhook(string(channel), "status", "error")
		return nil, err
	}

	update, err := channelAdapter.ParseStatusWebhook(account, payload)
	if err != nil {
		metrics.IncWebhook(string(channel), "status", "error")
		return nil, pkgerrors.ErrValidation.WithCause(err)
	}

	fresh, err := w.markSeen(ctx, channel, update.ExternalID, string(update.Status))
	if err != nil {
		return nil, err
	}
	if !fresh {
		metrics.IncWebhook(string(channel), "status", "duplicate")
		w.logger.InfowCtx(ctx, "Duplicate status webhook dropped",
			"channel_type", channel,
			"external_id", update.ExternalID,
			"status", update.Status,
		)
		return update, nil
	}

	forward, err := w.advanceLifecycle(ctx, channel, update.ExternalID, update.Status)
	if err != nil {
		return nil, err
	}
	if !forward {
		metrics.IncWebhook(string(channel), "status", "out_of_order")
		w.logger.WarnwCtx(ctx, "Out-of-order status webhook dropped",
			"channel_type", channel,
			"external_id", update.ExternalID,
			"status", update.Status,
		)
		return update, nil
	}

	w.notifier.StatusChanged(ctx, update)
	metrics.IncWebhook(string(channel), "status", "processed")
	return update, nil
}

func (w *WebhookService) resolve(ctx context.Context, channel models.ChannelType, accountID string) (*models.ChannelAccount, adapter.ChannelAdapter, error) {
	account, err := w.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	if account.Type != channel {
		return nil, nil, pkgerrors.ErrValidation.WithDetail("message",
			fmt.Sprintf("account %s is %s, webhook addressed %s", accountID, account.Type, channel))
	}
	channelAdapter, err := w.adapters.Get(channel)
	if err != nil {
		return nil, nil, err
	}
	return account, channelAdapter, nil
}

func (w *WebhookService) markSeen(ctx context.Context, channel models.ChannelType, externalID, stage string) (bool, error) {
	if externalID == "" {
		// nothing to key on; process rather than drop
		return true, nil
	}
	key := fmt.Sprintf("%s%s:%s:%s", constants.CacheKeyPrefixWebhook, channel, externalID, stage)
	return w.deduper.SetNX(ctx, key, 1, constants.WebhookDedupTTL)
}

// advanceLifecycle compares the reported status against the last one
// published for the message. A redelivered FAILED after DELIVERED, or any
// status after a terminal one, is a backward move and must not be republished.
func (w *WebhookService) advanceLifecycle(ctx context.Context, channel models.ChannelType, externalID string, status models.MessageStatus) (bool, error) {
	if externalID == "" {
		return true, nil
	}
	key := fmt.Sprintf("%s%s:%s:last", constants.CacheKeyPrefixWebhook, channel, externalID)
	last, err := w.deduper.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if last != "" && !models.MessageStatus(last).CanTransition(status) {
		return false, nil
	}
	if err := w.deduper.Set(ctx, key, string(status), constants.WebhookDedupTTL); err != nil {
		return false, err
	}
	return true, nil
}
