package models

import "time"

type MessageBuilder struct {
	msg *NormalizedMessage
}

func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{
		msg: &NormalizedMessage{
			Direction: DirectionOutbound,
			Status:    StatusPending,
		},
	}
}

func (b *MessageBuilder) WithID(id string) *MessageBuilder {
	b.msg.ID = id
	return b
}

func (b *MessageBuilder) WithChannel(channel ChannelType, accountID string) *MessageBuilder {
	b.msg.ChannelType = channel
	b.msg.ChannelAccountID = accountID
	return b
}

func (b *MessageBuilder) WithDirection(direction Direction) *MessageBuilder {
	b.msg.Direction = direction
	return b
}

func (b *MessageBuilder) WithText(text string) *MessageBuilder {
	b.msg.ContentType = ContentText
	b.msg.Content.Text = text
	return b
}

func (b *MessageBuilder) WithEmail(subject, body string) *MessageBuilder {
	b.msg.ContentType = ContentEmail
	b.msg.Content.Subject = subject
	b.msg.Content.Text = body
	return b
}

func (b *MessageBuilder) WithTemplate(templateID string, variables map[string]string) *MessageBuilder {
	b.msg.ContentType = ContentTemplate
	b.msg.Metadata.TemplateID = templateID
	b.msg.Content.Variables = variables
	return b
}

func (b *MessageBuilder) WithAttachment(att Attachment) *MessageBuilder {
	b.msg.ContentType = ContentMedia
	b.msg.Content.Attachments = append(b.msg.Content.Attachments, att)
	return b
}

func (b *MessageBuilder) WithTenant(tenantID, workspaceID string) *MessageBuilder {
	b.msg.Metadata.TenantID = tenantID
	b.msg.Metadata.WorkspaceID = workspaceID
	return b
}

func (b *MessageBuilder) WithRecipient(recipient string) *MessageBuilder {
	b.msg.Metadata.Recipient = recipient
	return b
}

func (b *MessageBuilder) WithSender(sender string) *MessageBuilder {
	b.msg.Metadata.Sender = sender
	return b
}

func (b *MessageBuilder) WithEventType(eventType EventType) *MessageBuilder {
	b.msg.Metadata.EventType = eventType
	return b
}

func (b *MessageBuilder) Build() *NormalizedMessage {
	if b.msg.CreatedAt.IsZero() {
		b.msg.CreatedAt = time.Now()
	}
	if b.msg.Metadata.EventType == "" {
		b.msg.Metadata.EventType = DefaultEventType(b.msg.ChannelType)
	}
	return b.msg
}
