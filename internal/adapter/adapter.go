package adapter

import (
	"context"
	"time"

	"gateway/pkg/models"
)

// Rejection and failure codes carried on SendResult. The router maps them to
// HTTP statuses; adapters and pipeline stages only set them.
const (
	CodeRateLimited           = "RATE_LIMITED"
	CodeInsufficientBalance   = "INSUFFICIENT_BALANCE"
	CodeRecipientOptedOut     = "RECIPIENT_OPTED_OUT"
	CodeTemplateRequired      = "DLT_TEMPLATE_REQUIRED"
	CodeTemplateNotApproved   = "TEMPLATE_NOT_APPROVED"
	CodeUnsupportedCapability = "UNSUPPORTED_CAPABILITY"
	CodeProviderError         = "PROVIDER_ERROR"
)

// SendResult is the outcome of one send attempt. Accepted means the provider
// took custody of the message; everything else carries a code explaining why
// it did not.
type SendResult struct {
	Accepted    bool          `json:"accepted"`
	ExternalID  string        `json:"external_id,omitempty"`
	ErrorCode   string        `json:"error_code,omitempty"`
	ErrorDetail string        `json:"error_detail,omitempty"`
	RetryAfter  time.Duration `json:"retry_after,omitempty"`
	Segments    int           `json:"segments,omitempty"`
}

func Accepted(externalID string, segments int) *SendResult {
	return &SendResult{
		Accepted:   true,
		ExternalID: externalID,
		Segments:   segments,
	}
}

func Rejected(code, detail string) *SendResult {
	return &SendResult{
		ErrorCode:   code,
		ErrorDetail: detail,
	}
}

// ChannelAdapter is the contract every provider integration implements. The
// router never talks to a provider directly; it resolves the adapter for the
// account's channel and goes through this interface.
//
// Credential validation and cost estimation are deliberately not separate
// methods: CheckHealth probes the provider with the account's credentials,
// and cost estimation lives in the usage meter so the estimate endpoint and
// the billing path share one segment count.
type ChannelAdapter interface {
	ChannelType() models.ChannelType
	Capabilities() models.CapabilitySet

	// SendMessage dispatches a free-form message. Adapters for regulated
	// channels may still require the content to resolve to a template.
	SendMessage(ctx context.Context, account *models.ChannelAccount, msg *models.NormalizedMessage) (*SendResult, error)

	// SendTemplate dispatches a registered template with variables filled in.
	SendTemplate(ctx context.Context, account *models.ChannelAccount, msg *models.NormalizedMessage, tmpl *models.Template) (*SendResult, error)

	// ParseInboundWebhook normalizes a provider inbound-message callback.
	ParseInboundWebhook(account *models.ChannelAccount, payload []byte) (*models.NormalizedMessage, error)

	// ParseStatusWebhook normalizes a provider delivery-status callback.
	ParseStatusWebhook(account *models.ChannelAccount, payload []byte) (*models.StatusUpdate, error)

	// CheckHealth probes the provider with the account's credentials.
	CheckHealth(ctx context.Context, account *models.ChannelAccount) (models.AccountHealth, error)
}

// MediaHandler is implemented by adapters whose provider stores media on its
// side and exchanges media ids rather than URLs. Resolve it with
// AsMediaHandler; channels that never delegate media storage simply do not
// implement it and media requests against them are rejected by the facade.
type MediaHandler interface {
	UploadMedia(ctx context.Context, account *models.ChannelAccount, data []byte, mimeType string) (string, error)
	DownloadMedia(ctx context.Context, account *models.ChannelAccount, mediaID string) ([]byte, string, error)
}

// AsMediaHandler resolves the MediaHandler behind an adapter, unwrapping
// decorators such as the circuit breaker along the way.
func AsMediaHandler(a ChannelAdapter) (MediaHandler, bool) {
	for a != nil {
		if m, ok := a.(MediaHandler); ok {
			return m, true
		}
		wrapper, ok := a.(interface{ Unwrap() ChannelAdapter })
		if !ok {
			return nil, false
		}
		a = wrapper.Unwrap()
	}
	return nil, false
}
