package whatsapp

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"gateway/pkg/models"
)

// Cloud API webhook envelope. One notification can carry either inbound
// messages or delivery statuses under value.
type webhookEnvelope struct {
	Entry []struct {
		Changes []struct {
			Value webhookValue `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type webhookValue struct {
	Contacts []struct {
		WaID    string `json:"wa_id"`
		Profile struct {
			Name string `json:"name"`
		} `json:"profile"`
	} `json:"contacts"`
	Messages []inboundMessage `json:"messages"`
	Statuses []statusNotice   `json:"statuses"`
}

type inboundMessage struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text"`
	Image    *inboundMedia `json:"image"`
	Document *inboundMedia `json:"document"`
}

type inboundMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption"`
	Filename string `json:"filename"`
}

type statusNotice struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Errors    []struct {
		Title string `json:"title"`
	} `json:"errors"`
}

func parseEpoch(value string) time.Time {
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC()
	}
	return time.Now().UTC()
}

func parseInbound(account *models.ChannelAccount, payload []byte) (*models.NormalizedMessage, error) {
	var envelope webhookEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse inbound webhook: %w", err)
	}

	value, err := firstValue(envelope)
	if err != nil {
		return nil, err
	}
	if len(value.Messages) == 0 {
		return nil, fmt.Errorf("webhook carried no messages")
	}
	wire := value.Messages[0]

	msg := &models.NormalizedMessage{
		ID:               uuid.New().String(),
		ExternalID:       wire.ID,
		ChannelType:      models.ChannelWhatsApp,
		ChannelAccountID: account.ID,
		Direction:        models.DirectionInbound,
		ContentType:      models.ContentText,
		Metadata: models.MessageMetadata{
			TenantID:    account.TenantID,
			WorkspaceID: account.WorkspaceID,
			Sender:      wire.From,
			Recipient:   account.Identifier,
		},
		Status:    models.StatusDelivered,
		CreatedAt: parseEpoch(wire.Timestamp),
	}

	switch {
	case wire.Text != nil:
		msg.Content.Text = wire.Text.Body
	case wire.Image != nil:
		msg.ContentType = models.ContentMedia
		msg.Content.Text = wire.Image.Caption
		msg.Content.Attachments = []models.Attachment{{
			MediaID:  wire.Image.ID,
			MimeType: wire.Image.MimeType,
		}}
	case wire.Document != nil:
		msg.ContentType = models.ContentMedia
		msg.Content.Text = wire.Document.Caption
		msg.Content.Attachments = []models.Attachment{{
			MediaID:  wire.Document.ID,
			MimeType: wire.Document.MimeType,
			Filename: wire.Document.Filename,
		}}
	default:
		return nil, fmt.Errorf("unsupported inbound message type %q", wire.Type)
	}

	return msg, nil
}

var statusVocabulary = map[string]models.MessageStatus{
	"sent":      models.StatusSent,
	"delivered": models.StatusDelivered,
	"read":      models.StatusRead,
	"failed":    models.StatusFailed,
}

func parseStatus(payload []byte) (*models.StatusUpdate, error) {
	var envelope webhookEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse status webhook: %w", err)
	}

	value, err := firstValue(envelope)
	if err != nil {
		return nil, err
	}
	if len(value.Statuses) == 0 {
		return nil, fmt.Errorf("webhook carried no statuses")
	}
	wire := value.Statuses[0]

	status, ok := statusVocabulary[wire.Status]
	if !ok {
		return nil, fmt.Errorf("unknown status %q", wire.Status)
	}

	update := &models.StatusUpdate{
		ExternalID: wire.ID,
		Status:     status,
		Timestamp:  parseEpoch(wire.Timestamp),
	}
	if len(wire.Errors) > 0 {
		update.Error = wire.Errors[0].Title
	}
	return update, nil
}

func firstValue(envelope webhookEnvelope) (*webhookValue, error) {
	for _, entry := range envelope.Entry {
		for _, change := range entry.Changes {
			return &change.Value, nil
		}
	}
	return nil, fmt.Errorf("webhook envelope carried no changes")
}
