package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"gateway/internal/config"
	"gateway/internal/constants"
	pkgerrors "gateway/pkg/errors"
	"gateway/pkg/metrics"
	"gateway/pkg/retry"
)

// sendRequest is the provider's submit payload.
type sendRequest struct {
	Sender     string `json:"sender"`
	Mobile     string `json:"mobile"`
	Message    string `json:"message"`
	TemplateID string `json:"template_id,omitempty"`
	EntityID   string `json:"entity_id,omitempty"`
	Unicode    int    `json:"unicode"`
}

type sendResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}

type balanceResponse struct {
	Balance float64 `json:"balance"`
	Status  string  `json:"status"`
}

// Client talks to the SMS provider's HTTP API. Retries cover transport
// failures and 5xx responses; 4xx responses are not retried.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	retryPolicy retry.Policy
}

func NewClient(cfg config.SMSProviderConfig) *Client {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retryPolicy: retryPolicyFromConfig(cfg.Retry),
	}
}

func retryPolicyFromConfig(cfg config.RetryConfig) retry.Policy {
	policy := retry.DefaultPolicy()
	if cfg.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialInterval > 0 {
		policy.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		policy.MaxInterval = cfg.MaxInterval
	}
	if cfg.Multiplier > 0 {
		policy.Multiplier = cfg.Multiplier
	}
	if cfg.MaxElapsedTime > 0 {
		policy.MaxElapsedTime = cfg.MaxElapsedTime
	}
	return policy
}

func (c *Client) Send(ctx context.Context, apiKey string, req sendRequest) (*sendResponse, error) {
	var resp sendResponse
	err := c.do(ctx, apiKey, http.MethodPost, "/send", req, &resp, "send")
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Balance(ctx context.Context, apiKey string) (*balanceResponse, error) {
	var resp balanceResponse
	err := c.do(ctx, apiKey, http.MethodGet, "/balance", nil, &resp, "balance")
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, apiKey, method, path string, body, out interface{}, operation string) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	start := time.Now()
	err := retry.Retry(ctx, c.retryPolicy, func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return retry.NewFatalError(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-Key", apiKey)

		resp, err := c.httpClient.Do(req)
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
	metrics.IncProviderRequest("SMS", operation, status)
	metrics.ObserveProviderRequestDuration("SMS", operation, time.Since(start))

	return err
}
