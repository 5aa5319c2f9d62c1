package models

type ChannelType string

const (
	ChannelWhatsApp ChannelType = "WHATSAPP"
	ChannelSMS      ChannelType = "SMS"
	ChannelEmail    ChannelType = "EMAIL_SMTP"
	ChannelVoice    ChannelType = "VOICE"
)

func (c ChannelType) Valid() bool {
	switch c {
	case ChannelWhatsApp, ChannelSMS, ChannelEmail, ChannelVoice:
		return true
	}
	return false
}

func (c ChannelType) String() string {
	return string(c)
}

type Direction string

const (
	DirectionInbound  Direction = "INBOUND"
	DirectionOutbound Direction = "OUTBOUND"
)

type ContentType string

const (
	ContentText     ContentType = "TEXT"
	ContentEmail    ContentType = "EMAIL"
	ContentMedia    ContentType = "MEDIA"
	ContentTemplate ContentType = "TEMPLATE"
)

type MessageStatus string

const (
	StatusPending      MessageStatus = "PENDING"
	StatusSubmitted    MessageStatus = "SUBMITTED"
	StatusSent         MessageStatus = "SENT"
	StatusDelivered    MessageStatus = "DELIVERED"
	StatusRead         MessageStatus = "READ"
	StatusFailed       MessageStatus = "FAILED"
	StatusRejected     MessageStatus = "REJECTED"
	StatusNDNCRejected MessageStatus = "NDNC_REJECTED"
)

// Terminal statuses freeze the message; the only transition allowed past a
// terminal status is DELIVERED -> READ.
func (s MessageStatus) Terminal() bool {
	switch s {
	case StatusRead, StatusFailed, StatusRejected, StatusNDNCRejected:
		return true
	}
	return false
}

var statusRank = map[MessageStatus]int{
	StatusPending:      0,
	StatusSubmitted:    1,
	StatusSent:         2,
	StatusDelivered:    3,
	StatusRead:         4,
	StatusFailed:       4,
	StatusRejected:     4,
	StatusNDNCRejected: 4,
}

// CanTransition reports whether a status update from -> to is a forward move
// in the message lifecycle. Replayed or out-of-order webhooks are dropped by
// callers when this returns false.
func (s MessageStatus) CanTransition(to MessageStatus) bool {
	if s.Terminal() {
		return false
	}
	if s == StatusDelivered {
		return to == StatusRead
	}
	return statusRank[to] > statusRank[s]
}

type Capability string

const (
	CapabilityText             Capability = "TEXT"
	CapabilityMedia            Capability = "MEDIA"
	CapabilityTemplates        Capability = "TEMPLATES"
	CapabilityDeliveryReceipts Capability = "DELIVERY_RECEIPTS"
)

type CapabilitySet []Capability

func (cs CapabilitySet) Has(c Capability) bool {
	for _, v := range cs {
		if v == c {
			return true
		}
	}
	return false
}

// EventType is the billing category of a send. It is finer grained than the
// channel type because regulatory cost and throughput rules differ within one
// channel (OTP vs promotional SMS under DLT).
type EventType string

const (
	EventSMSOTP           EventType = "SMS_OTP"
	EventSMSTransactional EventType = "SMS_TRANSACTIONAL"
	EventSMSPromotional   EventType = "SMS_PROMOTIONAL"
	EventWhatsAppSession  EventType = "WHATSAPP_SESSION"
	EventWhatsAppTemplate EventType = "WHATSAPP_TEMPLATE"
	EventEmailOutbound    EventType = "EMAIL_OUTBOUND"
	EventVoiceOutbound    EventType = "VOICE_OUTBOUND"
)

func (e EventType) Valid() bool {
	switch e {
	case EventSMSOTP, EventSMSTransactional, EventSMSPromotional,
		EventWhatsAppSession, EventWhatsAppTemplate,
		EventEmailOutbound, EventVoiceOutbound:
		return true
	}
	return false
}

// DefaultEventType maps a channel to its fallback billing category when the
// caller does not classify the send explicitly.
func DefaultEventType(channel ChannelType) EventType {
	switch channel {
	case ChannelSMS:
		return EventSMSTransactional
	case ChannelWhatsApp:
		return EventWhatsAppSession
	case ChannelEmail:
		return EventEmailOutbound
	case ChannelVoice:
		return EventVoiceOutbound
	}
	return ""
}

type ActionType string

const (
	ActionMessage  ActionType = "message"
	ActionTemplate ActionType = "template"
	ActionMedia    ActionType = "media"
)
