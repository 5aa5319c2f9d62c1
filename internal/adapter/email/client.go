package email

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

type sendRequest struct {
	From        string       `json:"from"`
	To          string       `json:"to"`
	Subject     string       `json:"subject"`
	Body        string       `json:"body"`
	Attachments []attachment `json:"attachments,omitempty"`
}

type attachment struct {
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

type accountResponse struct {
	Status string `json:"status"`
}

// Client talks to the transactional email provider's HTTP API.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	retryPolicy retry.Policy
}

func NewClient(cfg config.EmailProviderConfig) *Client {
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
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retryPolicy: policy,
	}
}

func (c *Client) Send(ctx context.Context, apiKey string, req sendRequest) (*sendResponse, error) {
	var resp sendResponse
	if err := c.do(ctx, apiKey, http.MethodPost, "/v1/send", req, &resp, "send"); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) AccountStatus(ctx context.Context, apiKey string) (*accountResponse, error) {
	var resp accountResponse
	if err := c.do(ctx, apiKey, http.MethodGet, "/v1/account", nil, &resp, "health"); err != nil {
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
		req.Header.Set("Authorization", "Bearer "+apiKey)

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
	metrics.IncProviderRequest("EMAIL_SMTP", operation, status)
	metrics.ObserveProviderRequestDuration("EMAIL_SMTP", operation, time.Since(start))

	return err
}
