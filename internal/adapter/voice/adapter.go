package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"gateway/internal/adapter"
	"gateway/internal/config"
	"gateway/internal/constants"
	"gateway/internal/logger"
	pkgerrors "gateway/pkg/errors"
	"gateway/pkg/metrics"
	"gateway/pkg/models"
	"gateway/pkg/retry"
)

// callRequest asks the voice provider to place a text-to-speech call.
type callRequest struct {
	CallerID string `json:"caller_id"`
	To       string `json:"to"`
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

type callResponse struct {
	CallID string `json:"call_id"`
	Status string `json:"status"`
}

// statusPayload is the provider's call-status callback.
type statusPayload struct {
	CallID    string `json:"call_id"`
	Status    string `json:"status"`
	Duration  int    `json:"duration"`
	Timestamp int64  `json:"timestamp"`
	Reason    string `json:"reason,omitempty"`
}

var callVocabulary = map[string]models.MessageStatus{
	"queued":    models.StatusSubmitted,
	"ringing":   models.StatusSent,
	"answered":  models.StatusDelivered,
	"completed": models.StatusDelivered,
	"busy":      models.StatusFailed,
	"no-answer": models.StatusFailed,
	"failed":    models.StatusFailed,
}

// Adapter places outbound text-to-speech calls. There is no inbound channel:
// the provider has no way to hand a spoken reply back as a message.
type Adapter struct {
	baseURL     string
	httpClient  *http.Client
	retryPolicy retry.Policy
	logger      logger.Logger
}

func NewAdapter(cfg config.VoiceProviderConfig, log logger.Logger) *Adapter {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}
	policy := retry.DefaultPolicy()
	if cfg.Retry.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.Retry.MaxAttempts
	}
	if cfg.Retry.InitialInterval > 0 {
		policy.InitialInterval = cfg.Retry.InitialInterval
	}
	return &Adapter{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retryPolicy: policy,
		logger:      log,
	}
}

func (a *Adapter) ChannelType() models.ChannelType {
	return models.ChannelVoice
}

func (a *Adapter) Capabilities() models.CapabilitySet {
	return models.CapabilitySet{
		models.CapabilityText,
		models.CapabilityDeliveryReceipts,
	}
}

func (a *Adapter) SendMessage(ctx context.Context, account *models.ChannelAccount, msg *models.NormalizedMessage) (*adapter.SendResult, error) {
	if len(msg.Content.Attachments) > 0 {
		return adapter.Rejected(adapter.CodeUnsupportedCapability, "voice calls cannot carry attachments"), nil
	}

	apiKey := account.Credential("api_key")
	if apiKey == "" {
		return nil, pkgerrors.ErrCredentials.WithDetail("channel_account_id", account.ID)
	}

	req := callRequest{
		CallerID: account.Attribute(models.AttrCallerID),
		To:       msg.Metadata.Recipient,
		Text:     msg.Content.Text,
	}

	var resp callResponse
	if err := a.do(ctx, apiKey, http.MethodPost, "/calls", req, &resp, "send"); err != nil {
		a.logger.ErrorwCtx(ctx, "Voice provider call failed",
			"error", err,
			"channel_account_id", account.ID,
			"message_id", msg.ID,
		)
		return adapter.Rejected(adapter.CodeProviderError, err.Error()), nil
	}

	return adapter.Accepted(resp.CallID, 1), nil
}

func (a *Adapter) SendTemplate(ctx context.Context, account *models.ChannelAccount, msg *models.NormalizedMessage, tmpl *models.Template) (*adapter.SendResult, error) {
	return adapter.Rejected(adapter.CodeUnsupportedCapability, "voice channel does not support templates"), nil
}

func (a *Adapter) ParseInboundWebhook(account *models.ChannelAccount, payload []byte) (*models.NormalizedMessage, error) {
	return nil, fmt.Errorf("voice channel has no inbound messages")
}

func (a *Adapter) ParseStatusWebhook(account *models.ChannelAccount, payload []byte) (*models.StatusUpdate, error) {
	var wire statusPayload
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("failed to parse status webhook: %w", err)
	}
	if wire.CallID == "" {
		return nil, fmt.Errorf("status webhook missing call_id")
	}

	status, ok := callVocabulary[wire.Status]
	if !ok {
		return nil, fmt.Errorf("unknown call status %q", wire.Status)
	}

	update := &models.StatusUpdate{
		ExternalID: wire.CallID,
		Status:     status,
		Timestamp:  time.Unix(wire.Timestamp, 0).UTC(),
	}
	if status == models.StatusFailed {
		update.Error = failureReason(wire)
	}
	return update, nil
}

func failureReason(wire statusPayload) string {
	if wire.Reason != "" {
		return wire.Reason
	}
	return wire.Status
}

func (a *Adapter) CheckHealth(ctx context.Context, account *models.ChannelAccount) (models.AccountHealth, error) {
	apiKey := account.Credential("api_key")
	if apiKey == "" {
		return models.AccountUnhealthy, pkgerrors.ErrCredentials.WithDetail("channel_account_id", account.ID)
	}

	var out map[string]interface{}
	if err := a.do(ctx, apiKey, http.MethodGet, "/account", nil, &out, "health"); err != nil {
		return models.AccountUnhealthy, err
	}
	return models.AccountHealthy, nil
}

func (a *Adapter) do(ctx context.Context, apiKey, method, path string, body, out interface{}, operation string) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	start := time.Now()
	err := retry.Retry(ctx, a.retryPolicy, func() error {
		req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return retry.NewFatalError(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-Key", apiKey)

		resp, err := a.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("provider request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("provider returned status %d", resp.StatusCode)
		}
		if resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode >= constants.HTTPStatusOKMax {
			return retry.NewFatalError(pkgerrors.ErrProvider.WithDetail("status_code", resp.StatusCode))
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return retry.NewFatalError(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	})

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.IncProviderRequest("VOICE", operation, status)
	metrics.ObserveProviderRequestDuration("VOICE", operation, time.Since(start))

	return err
}
