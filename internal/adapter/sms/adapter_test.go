package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gateway/internal/adapter"
	"gateway/internal/config"
	"gateway/internal/logger"
	"gateway/internal/template"
	"gateway/pkg/models"
)

type fakeResolver struct {
	tmpl *models.Template
	err  error
}

func (f *fakeResolver) ResolveApproved(ctx context.Context, tenantID string, channel models.ChannelType, templateID, text string) (*models.Template, error) {
	return f.tmpl, f.err
}

func approvedTemplate() *models.Template {
	return &models.Template{
		ID:                 "tpl-1",
		TenantID:           "t1",
		ChannelType:        models.ChannelSMS,
		ProviderTemplateID: "dlt-4412",
		Body:               "Your OTP is {code}",
		Variables:          []string{"code"},
		Status:             models.TemplateApproved,
	}
}

func newTestAdapter(t *testing.T, providerHandler http.HandlerFunc, resolver TemplateResolver) *Adapter {
	t.Helper()
	server := httptest.NewServer(providerHandler)
	t.Cleanup(server.Close)

	client := NewClient(config.SMSProviderConfig{
		BaseURL: server.URL,
		Retry:   config.RetryConfig{MaxAttempts: 1},
	})
	return NewAdapter(client, resolver, logger.NopLogger())
}

func outboundMessage(text string) *models.NormalizedMessage {
	return &models.NormalizedMessage{
		ID:          "msg-1",
		ChannelType: models.ChannelSMS,
		Direction:   models.DirectionOutbound,
		ContentType: models.ContentText,
		Content:     models.MessageContent{Text: text},
		Metadata: models.MessageMetadata{
			TenantID:  "t1",
			Recipient: "+919876543210",
			EventType: models.EventSMSOTP,
		},
	}
}

func TestSendMessageAccepted(t *testing.T) {
	var captured sendRequest
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/send", r.URL.Path)
		require.Equal(t, "key-1", r.Header.Get("X-API-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(sendResponse{RequestID: "prov-42", Status: "success"})
	}, &fakeResolver{tmpl: approvedTemplate()})

	account := testAccount()
	account.Credentials["api_key"] = "key-1"

	result, err := a.SendMessage(context.Background(), account, outboundMessage("Your OTP is 482913"))
	require.NoError(t, err)

	assert.True(t, result.Accepted)
	assert.Equal(t, "prov-42", result.ExternalID)
	assert.Equal(t, 1, result.Segments)
	assert.Equal(t, "dlt-4412", captured.TemplateID)
	assert.Equal(t, "1101xxxx", captured.EntityID)
	assert.Equal(t, "BRANDX", captured.Sender)
}

func TestSendMessageNoApprovedTemplate(t *testing.T) {
	providerCalls := 0
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		providerCalls++
	}, &fakeResolver{err: template.ErrTemplateRequired})

	result, err := a.SendMessage(context.Background(), testAccount(), outboundMessage("Flash sale!"))
	require.NoError(t, err)

	assert.False(t, result.Accepted)
	assert.Equal(t, adapter.CodeTemplateRequired, result.ErrorCode)
	assert.Zero(t, providerCalls, "compliance rejection must make no provider call")
}

func TestSendMessageRejectsMedia(t *testing.T) {
	providerCalls := 0
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		providerCalls++
	}, &fakeResolver{tmpl: approvedTemplate()})

	msg := outboundMessage("see attached")
	msg.Content.Attachments = []models.Attachment{{URL: "https://cdn.example/pic.png", MimeType: "image/png"}}

	result, err := a.SendMessage(context.Background(), testAccount(), msg)
	require.NoError(t, err)

	assert.False(t, result.Accepted)
	assert.Equal(t, adapter.CodeUnsupportedCapability, result.ErrorCode)
	assert.Zero(t, providerCalls)
}

func TestSendMessageMissingCredentials(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {}, &fakeResolver{tmpl: approvedTemplate()})

	account := testAccount()
	account.Credentials = nil

	_, err := a.SendMessage(context.Background(), account, outboundMessage("Your OTP is 482913"))
	assert.Error(t, err, "missing credentials are a configuration fault, not a rejection")
}

func TestSendMessageProviderError(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}, &fakeResolver{tmpl: approvedTemplate()})

	result, err := a.SendMessage(context.Background(), testAccount(), outboundMessage("Your OTP is 482913"))
	require.NoError(t, err)

	assert.False(t, result.Accepted)
	assert.Equal(t, adapter.CodeProviderError, result.ErrorCode)
}

func TestSendTemplateRendersVariables(t *testing.T) {
	var captured sendRequest
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(sendResponse{RequestID: "prov-9"})
	}, &fakeResolver{})

	msg := outboundMessage("")
	msg.Content.Variables = map[string]string{"code": "482913"}

	result, err := a.SendTemplate(context.Background(), testAccount(), msg, approvedTemplate())
	require.NoError(t, err)

	assert.True(t, result.Accepted)
	assert.Equal(t, "Your OTP is 482913", captured.Message)
}

func TestSendTemplateRejectsUnapproved(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {}, &fakeResolver{})

	tmpl := approvedTemplate()
	tmpl.Status = models.TemplatePending

	result, err := a.SendTemplate(context.Background(), testAccount(), outboundMessage(""), tmpl)
	require.NoError(t, err)

	assert.False(t, result.Accepted)
	assert.Equal(t, adapter.CodeTemplateNotApproved, result.ErrorCode)
}

func TestCheckHealth(t *testing.T) {
	tests := []struct {
		name    string
		balance float64
		want    models.AccountHealth
	}{
		{name: "positive balance healthy", balance: 1250.5, want: models.AccountHealthy},
		{name: "zero balance degraded", balance: 0, want: models.AccountDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/balance", r.URL.Path)
				json.NewEncoder(w).Encode(balanceResponse{Balance: tt.balance})
			}, &fakeResolver{})

			health, err := a.CheckHealth(context.Background(), testAccount())
			require.NoError(t, err)
			assert.Equal(t, tt.want, health)
		})
	}
}

func TestCapabilities(t *testing.T) {
	a := &Adapter{}
	caps := a.Capabilities()

	assert.True(t, caps.Has(models.CapabilityText))
	assert.True(t, caps.Has(models.CapabilityTemplates))
	assert.True(t, caps.Has(models.CapabilityDeliveryReceipts))
	assert.False(t, caps.Has(models.CapabilityMedia))
}
