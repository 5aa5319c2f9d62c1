package models

import "time"

type AccountHealth string

const (
	AccountHealthy   AccountHealth = "HEALTHY"
	AccountDegraded  AccountHealth = "DEGRADED"
	AccountUnhealthy AccountHealth = "UNHEALTHY"
)

// ChannelAccount is the tenant-owned credential and identity for one provider
// integration. Adapters read it at send time and never mutate it.
type ChannelAccount struct {
	ID           string            `json:"id"`
	TenantID     string            `json:"tenant_id"`
	WorkspaceID  string            `json:"workspace_id"`
	Type         ChannelType       `json:"type"`
	Identifier   string            `json:"identifier"`
	Credentials  map[string]string `json:"-"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	HealthStatus AccountHealth     `json:"health_status"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Attribute returns a channel-specific account setting such as the DLT entity
// id for SMS or the phone number id for WhatsApp.
func (a *ChannelAccount) Attribute(key string) string {
	if a.Attributes == nil {
		return ""
	}
	return a.Attributes[key]
}

func (a *ChannelAccount) Credential(key string) string {
	if a.Credentials == nil {
		return ""
	}
	return a.Credentials[key]
}

// Well-known account attribute keys.
const (
	AttrDLTEntityID   = "dlt_entity_id"
	AttrSenderID      = "sender_id"
	AttrPhoneNumberID = "phone_number_id"
	AttrSMTPHost      = "smtp_host"
	AttrCallerID      = "caller_id"
)

type TemplateStatus string

const (
	TemplateApproved TemplateStatus = "APPROVED"
	TemplatePending  TemplateStatus = "PENDING"
	TemplateRejected TemplateStatus = "REJECTED"
)

// Template is a provider-side registered message template. Regulated channels
// only accept sends that resolve to an APPROVED template.
type Template struct {
	ID                 string         `json:"id"`
	TenantID           string         `json:"tenant_id"`
	ChannelType        ChannelType    `json:"channel_type"`
	Name               string         `json:"name"`
	ProviderTemplateID string         `json:"provider_template_id"`
	Body               string         `json:"body"`
	Variables          []string       `json:"variables"`
	Status             TemplateStatus `json:"status"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}
