package voice

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
	"gateway/pkg/models"
)

func testAccount() *models.ChannelAccount {
	return &models.ChannelAccount{
		ID:          "acct-vc",
		TenantID:    "t1",
		Type:        models.ChannelVoice,
		Identifier:  "+918800990011",
		Credentials: map[string]string{"api_key": "key-vc"},
		Attributes:  map[string]string{models.AttrCallerID: "+918800990011"},
	}
}

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewAdapter(config.VoiceProviderConfig{
		BaseURL: server.URL,
		Retry:   config.RetryConfig{MaxAttempts: 1},
	}, logger.NopLogger())
}

func TestSendMessagePlacesCall(t *testing.T) {
	var captured callRequest
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/calls", r.URL.Path)
		require.Equal(t, "key-vc", r.Header.Get("X-API-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(callResponse{CallID: "call-55", Status: "queued"})
	})

	msg := &models.NormalizedMessage{
		ID:          "msg-vc-1",
		ChannelType: models.ChannelVoice,
		Direction:   models.DirectionOutbound,
		ContentType: models.ContentText,
		Content:     models.MessageContent{Text: "Your delivery arrives today between 2 and 4 PM"},
		Metadata:    models.MessageMetadata{TenantID: "t1", Recipient: "+919876543210"},
	}

	result, err := a.SendMessage(context.Background(), testAccount(), msg)
	require.NoError(t, err)

	assert.True(t, result.Accepted)
	assert.Equal(t, "call-55", result.ExternalID)
	assert.Equal(t, "+918800990011", captured.CallerID)
	assert.Equal(t, "+919876543210", captured.To)
}

func TestSendTemplateUnsupported(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no provider call expected")
	})

	result, err := a.SendTemplate(context.Background(), testAccount(), &models.NormalizedMessage{}, &models.Template{})
	require.NoError(t, err)
	assert.Equal(t, adapter.CodeUnsupportedCapability, result.ErrorCode)
}

func TestParseStatusCallStates(t *testing.T) {
	tests := []struct {
		state      string
		want       models.MessageStatus
		wantReason string
	}{
		{state: "completed", want: models.StatusDelivered},
		{state: "busy", want: models.StatusFailed, wantReason: "busy"},
		{state: "no-answer", want: models.StatusFailed, wantReason: "no-answer"},
	}

	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {})
	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			payload := []byte(`{"call_id":"call-55","status":"` + tt.state + `","timestamp":1755000000}`)

			update, err := a.ParseStatusWebhook(testAccount(), payload)
			require.NoError(t, err)
			assert.Equal(t, tt.want, update.Status)
			assert.Equal(t, tt.wantReason, update.Error)
		})
	}
}

func TestParseInboundUnsupported(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := a.ParseInboundWebhook(testAccount(), []byte(`{}`))
	assert.Error(t, err)
}
