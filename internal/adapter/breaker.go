package adapter

import (
	"context"
	"fmt"

	"gateway/pkg/circuitbreaker"
	"gateway/pkg/models"
)

// BreakerAdapter decorates a ChannelAdapter with a circuit breaker around
// every provider-facing call. Parsing webhooks is local work and bypasses
// the breaker.
type BreakerAdapter struct {
	inner   ChannelAdapter
	breaker *circuitbreaker.Wrapper
}

func WithCircuitBreaker(inner ChannelAdapter, cfg circuitbreaker.Config) *BreakerAdapter {
	if cfg.Name == "" {
		cfg = circuitbreaker.DefaultConfig(fmt.Sprintf("adapter-%s", inner.ChannelType()))
	}
	return &BreakerAdapter{
		inner:   inner,
		breaker: circuitbreaker.NewWrapper(cfg),
	}
}

func (b *BreakerAdapter) ChannelType() models.ChannelType {
	return b.inner.ChannelType()
}

func (b *BreakerAdapter) Capabilities() models.CapabilitySet {
	return b.inner.Capabilities()
}

func (b *BreakerAdapter) SendMessage(ctx context.Context, account *models.ChannelAccount, msg *models.NormalizedMessage) (*SendResult, error) {
	result, err := b.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
		return b.inner.SendMessage(ctx, account, msg)
	})
	if err != nil {
		return nil, err
	}
	return result.(*SendResult), nil
}

func (b *BreakerAdapter) SendTemplate(ctx context.Context, account *models.ChannelAccount, msg *models.NormalizedMessage, tmpl *models.Template) (*SendResult, error) {
	result, err := b.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
		return b.inner.SendTemplate(ctx, account, msg, tmpl)
	})
	if err != nil {
		return nil, err
	}
	return result.(*SendResult), nil
}

func (b *BreakerAdapter) ParseInboundWebhook(account *models.ChannelAccount, payload []byte) (*models.NormalizedMessage, error) {
	return b.inner.ParseInboundWebhook(account, payload)
}

func (b *BreakerAdapter) ParseStatusWebhook(account *models.ChannelAccount, payload []byte) (*models.StatusUpdate, error) {
	return b.inner.ParseStatusWebhook(account, payload)
}

func (b *BreakerAdapter) CheckHealth(ctx context.Context, account *models.ChannelAccount) (models.AccountHealth, error) {
	result, err := b.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
		return b.inner.CheckHealth(ctx, account)
	})
	if err != nil {
		return models.AccountUnhealthy, err
	}
	return result.(models.AccountHealth), nil
}

// Unwrap exposes the inner adapter so callers can reach optional interfaces
// such as MediaHandler.
func (b *BreakerAdapter) Unwrap() ChannelAdapter {
	return b.inner
}
