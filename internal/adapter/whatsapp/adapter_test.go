package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gateway/internal/adapter"
	"gateway/internal/config"
	"gateway/internal/logger"
	"gateway/pkg/models"
)

func testAccount() *models.ChannelAccount {
	return &models.ChannelAccount{
		ID:          "acct-wa",
		TenantID:    "t1",
		WorkspaceID: "w1",
		Type:        models.ChannelWhatsApp,
		Identifier:  "+918800112233",
		Credentials: map[string]string{"access_token": "token-1"},
		Attributes:  map[string]string{models.AttrPhoneNumberID: "5550001"},
	}
}

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(config.WhatsAppProviderConfig{
		BaseURL:    server.URL,
		APIVersion: "v19.0",
		Retry:      config.RetryConfig{MaxAttempts: 1},
	})
	return NewAdapter(client, logger.NopLogger())
}

func outboundMessage() *models.NormalizedMessage {
	return &models.NormalizedMessage{
		ID:          "msg-wa-1",
		ChannelType: models.ChannelWhatsApp,
		Direction:   models.DirectionOutbound,
		ContentType: models.ContentText,
		Content:     models.MessageContent{Text: "hello there"},
		Metadata: models.MessageMetadata{
			TenantID:  "t1",
			Recipient: "+919876543210",
			EventType: models.EventWhatsAppSession,
		},
	}
}

func TestSendMessageText(t *testing.T) {
	var captured messagePayload
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v19.0/5550001/messages", r.URL.Path)
		require.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"messages": []map[string]string{{"id": "wamid.001"}},
		})
	})

	result, err := a.SendMessage(context.Background(), testAccount(), outboundMessage())
	require.NoError(t, err)

	assert.True(t, result.Accepted)
	assert.Equal(t, "wamid.001", result.ExternalID)
	assert.Equal(t, "text", captured.Type)
	assert.Equal(t, "hello there", captured.Text.Body)
	assert.Equal(t, "whatsapp", captured.MessagingProduct)
}

func TestSendMessageImageAttachment(t *testing.T) {
	var captured messagePayload
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"messages": []map[string]string{{"id": "wamid.002"}},
		})
	})

	msg := outboundMessage()
	msg.ContentType = models.ContentMedia
	msg.Content.Attachments = []models.Attachment{{MediaID: "media-9", MimeType: "image/png"}}

	result, err := a.SendMessage(context.Background(), testAccount(), msg)
	require.NoError(t, err)

	assert.True(t, result.Accepted)
	assert.Equal(t, "image", captured.Type)
	assert.Equal(t, "media-9", captured.Image.ID)
}

func TestSendTemplatePositionalParameters(t *testing.T) {
	var captured messagePayload
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"messages": []map[string]string{{"id": "wamid.003"}},
		})
	})

	tmpl := &models.Template{
		ID:                 "tpl-wa",
		ProviderTemplateID: "order_update",
		Variables:          []string{"name", "order_id"},
		Status:             models.TemplateApproved,
	}
	msg := outboundMessage()
	msg.Content.Variables = map[string]string{"order_id": "ORD-7", "name": "Asha"}

	result, err := a.SendTemplate(context.Background(), testAccount(), msg, tmpl)
	require.NoError(t, err)

	assert.True(t, result.Accepted)
	require.Equal(t, "template", captured.Type)
	require.Len(t, captured.Template.Components, 1)
	params := captured.Template.Components[0].Parameters
	require.Len(t, params, 2)
	assert.Equal(t, "Asha", params[0].Text, "parameters follow declared variable order")
	assert.Equal(t, "ORD-7", params[1].Text)
}

func TestSendTemplateRejectsUnapproved(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no provider call expected")
	})

	tmpl := &models.Template{ID: "tpl-wa", Status: models.TemplatePending}

	result, err := a.SendTemplate(context.Background(), testAccount(), outboundMessage(), tmpl)
	require.NoError(t, err)
	assert.Equal(t, adapter.CodeTemplateNotApproved, result.ErrorCode)
}

func TestSendMessageProviderError(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{"message": "invalid token", "code": 190},
		})
	})

	result, err := a.SendMessage(context.Background(), testAccount(), outboundMessage())
	require.NoError(t, err)

	assert.False(t, result.Accepted)
	assert.Equal(t, adapter.CodeProviderError, result.ErrorCode)
	assert.Contains(t, result.ErrorDetail, "invalid token")
}

func TestParseInboundText(t *testing.T) {
	payload := []byte(`{"entry":[{"changes":[{"value":{
		"contacts":[{"wa_id":"919876543210","profile":{"name":"Asha"}}],
		"messages":[{"id":"wamid.in1","from":"919876543210","timestamp":"1755000000","type":"text","text":{"body":"hi"}}]
	}}]}]}`)

	msg, err := parseInbound(testAccount(), payload)
	require.NoError(t, err)

	assert.Equal(t, "wamid.in1", msg.ExternalID)
	assert.Equal(t, models.DirectionInbound, msg.Direction)
	assert.Equal(t, "hi", msg.Content.Text)
	assert.Equal(t, "919876543210", msg.Metadata.Sender)
	assert.Equal(t, time.Unix(1755000000, 0).UTC(), msg.CreatedAt)
}

func TestParseInboundImage(t *testing.T) {
	payload := []byte(`{"entry":[{"changes":[{"value":{
		"messages":[{"id":"wamid.in2","from":"919876543210","timestamp":"1755000000","type":"image","image":{"id":"media-1","mime_type":"image/jpeg","caption":"receipt"}}]
	}}]}]}`)

	msg, err := parseInbound(testAccount(), payload)
	require.NoError(t, err)

	assert.Equal(t, models.ContentMedia, msg.ContentType)
	require.Len(t, msg.Content.Attachments, 1)
	assert.Equal(t, "media-1", msg.Content.Attachments[0].MediaID)
	assert.Equal(t, "receipt", msg.Content.Text)
}

func TestParseStatus(t *testing.T) {
	payload := []byte(`{"entry":[{"changes":[{"value":{
		"statuses":[{"id":"wamid.out1","status":"read","timestamp":"1755000300"}]
	}}]}]}`)

	update, err := parseStatus(payload)
	require.NoError(t, err)

	assert.Equal(t, "wamid.out1", update.ExternalID)
	assert.Equal(t, models.StatusRead, update.Status)
}

func TestParseStatusFailedCarriesReason(t *testing.T) {
	payload := []byte(`{"entry":[{"changes":[{"value":{
		"statuses":[{"id":"wamid.out2","status":"failed","timestamp":"1755000300","errors":[{"title":"Message undeliverable"}]}]
	}}]}]}`)

	update, err := parseStatus(payload)
	require.NoError(t, err)

	assert.Equal(t, models.StatusFailed, update.Status)
	assert.Equal(t, "Message undeliverable", update.Error)
}

func TestMediaRoundTripThroughProvider(t *testing.T) {
	server := httptest.NewUnstartedServer(nil)
	mux := http.NewServeMux()
	mux.HandleFunc("/v19.0/5550001/media", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whatsapp", r.FormValue("messaging_product"))
		json.NewEncoder(w).Encode(map[string]string{"id": "media-77"})
	})
	mux.HandleFunc("/v19.0/media-77", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"url": server.URL + "/cdn/media-77", "mime_type": "image/png"})
	})
	mux.HandleFunc("/cdn/media-77", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("png-bytes"))
	})
	server.Config.Handler = mux
	server.Start()
	t.Cleanup(server.Close)

	client := NewClient(config.WhatsAppProviderConfig{
		BaseURL:    server.URL,
		APIVersion: "v19.0",
		Retry:      config.RetryConfig{MaxAttempts: 1},
	})
	a := NewAdapter(client, logger.NopLogger())

	mediaID, err := a.UploadMedia(context.Background(), testAccount(), []byte("png-bytes"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "media-77", mediaID)

	data, mimeType, err := a.DownloadMedia(context.Background(), testAccount(), mediaID)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mimeType)
	assert.Equal(t, []byte("png-bytes"), data)
}
