package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout = 10 * time.Second
)

const (
	CacheKeyPrefixRateLimit = "ratelimit:"
	CacheKeyPrefixOptOut    = "optout:"
	CacheKeyPrefixWebhook   = "webhook:"
)

const (
	TopicMessagesInbound = "gateway.messages.inbound"
	TopicMessagesStatus  = "gateway.messages.status"
	TopicMessagesEvents  = "gateway.messages.events"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultRateLimitWindow  = time.Minute
	DefaultRateLimitActions = 60
)

const (
	WebhookDedupTTL = 24 * time.Hour
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)

// SMS segmentation limits. Single-part and multi-part limits differ because
// concatenated messages spend part of each segment on the UDH header.
const (
	GSM7SingleSegment    = 160
	GSM7MultiSegment     = 153
	UnicodeSingleSegment = 70
	UnicodeMultiSegment  = 67
)

// SMS provider delivery status codes, vendor-defined.
const (
	SMSStatusDelivered    = 1
	SMSStatusSent         = 2
	SMSStatusFailed       = 3
	SMSStatusSubmitted    = 5
	SMSStatusRejected     = 6
	SMSStatusNDNCRejected = 7
)
