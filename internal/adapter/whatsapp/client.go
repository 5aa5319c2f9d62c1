package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"gateway/internal/config"
	"gateway/internal/constants"
	pkgerrors "gateway/pkg/errors"
	"gateway/pkg/metrics"
	"gateway/pkg/retry"
)

// Cloud API message payloads. Only the fields the gateway sets are declared.
type messagePayload struct {
	MessagingProduct string           `json:"messaging_product"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Text             *textPayload     `json:"text,omitempty"`
	Template         *templatePayload `json:"template,omitempty"`
	Image            *mediaPayload    `json:"image,omitempty"`
	Document         *mediaPayload    `json:"document,omitempty"`
}

type textPayload struct {
	Body string `json:"body"`
}

type mediaPayload struct {
	ID      string `json:"id,omitempty"`
	Link    string `json:"link,omitempty"`
	Caption string `json:"caption,omitempty"`
}

type templatePayload struct {
	Name       string              `json:"name"`
	Language   languagePayload     `json:"language"`
	Components []componentsPayload `json:"components,omitempty"`
}

type languagePayload struct {
	Code string `json:"code"`
}

type componentsPayload struct {
	Type       string             `json:"type"`
	Parameters []parameterPayload `json:"parameters"`
}

type parameterPayload struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type messageResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type mediaUploadResponse struct {
	ID string `json:"id"`
}

type mediaURLResponse struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Client talks to the WhatsApp Business Cloud API. Every call is scoped to
// one phone number id and authenticated with the account's access token.
type Client struct {
	baseURL     string
	apiVersion  string
	httpClient  *http.Client
	retryPolicy retry.Policy
}

func NewClient(cfg config.WhatsAppProviderConfig) *Client {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}
	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = "v19.0"
	}
	policy := retry.DefaultPolicy()
	if cfg.Retry.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.Retry.MaxAttempts
	}
	if cfg.Retry.InitialInterval > 0 {
		policy.InitialInterval = cfg.Retry.InitialInterval
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiVersion: apiVersion,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retryPolicy: policy,
	}
}

func (c *Client) SendMessage(ctx context.Context, token, phoneNumberID string, payload messagePayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	var resp messageResponse
	url := fmt.Sprintf("%s/%s/%s/messages", c.baseURL, c.apiVersion, phoneNumberID)
	if err := c.doJSON(ctx, token, http.MethodPost, url, body, &resp, "send"); err != nil {
		return "", err
	}
	if len(resp.Messages) == 0 {
		return "", pkgerrors.ErrProvider.WithDetail("message", "cloud api response carried no message id")
	}
	return resp.Messages[0].ID, nil
}

// GetPhoneNumber probes the phone number resource, which validates both the
// token and the number registration.
func (c *Client) GetPhoneNumber(ctx context.Context, token, phoneNumberID string) error {
	url := fmt.Sprintf("%s/%s/%s", c.baseURL, c.apiVersion, phoneNumberID)
	var out map[string]interface{}
	return c.doJSON(ctx, token, http.MethodGet, url, nil, &out, "health")
}

func (c *Client) UploadMedia(ctx context.Context, token, phoneNumberID string, data []byte, mimeType string) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("messaging_product", "whatsapp"); err != nil {
		return "", err
	}
	if err := writer.WriteField("type", mimeType); err != nil {
		return "", err
	}
	part, err := writer.CreateFormFile("file", "upload")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/%s/%s/media", c.baseURL, c.apiVersion, phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.observe("upload_media", start, err)
	if err != nil {
		return "", fmt.Errorf("media upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode >= constants.HTTPStatusOKMax {
		return "", providerError(resp)
	}

	var uploaded mediaUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	return uploaded.ID, nil
}

// DownloadMedia resolves the media id to its CDN URL and fetches the bytes.
func (c *Client) DownloadMedia(ctx context.Context, token, mediaID string) ([]byte, string, error) {
	var meta mediaURLResponse
	url := fmt.Sprintf("%s/%s/%s", c.baseURL, c.apiVersion, mediaID)
	if err := c.doJSON(ctx, token, http.MethodGet, url, nil, &meta, "download_media"); err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, meta.URL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("media download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode >= constants.HTTPStatusOKMax {
		return nil, "", providerError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read media body: %w", err)
	}
	return data, meta.MimeType, nil
}

func (c *Client) doJSON(ctx context.Context, token, method, url string, body []byte, out interface{}, operation string) error {
	start := time.Now()
	err := retry.Retry(ctx, c.retryPolicy, func() error {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return retry.NewFatalError(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("cloud api request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("cloud api returned status %d", resp.StatusCode)
		}
		if resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode >= constants.HTTPStatusOKMax {
			return retry.NewFatalError(providerError(resp))
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return retry.NewFatalError(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	})
	c.observe(operation, start, err)
	return err
}

func (c *Client) observe(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.IncProviderRequest("WHATSAPP", operation, status)
	metrics.ObserveProviderRequestDuration("WHATSAPP", operation, time.Since(start))
}

func providerError(resp *http.Response) error {
	var apiErr errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
		return pkgerrors.ErrProvider.
			WithDetail("message", apiErr.Error.Message).
			WithDetail("provider_code", apiErr.Error.Code).
			WithDetail("status_code", resp.StatusCode)
	}
	return pkgerrors.ErrProvider.WithDetail("status_code", resp.StatusCode)
}
