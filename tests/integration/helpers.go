package integration

import (
	"gateway/internal/logger"
	"gateway/pkg/models"
)

func createTestLogger() logger.Logger {
	return logger.NopLogger()
}

func createTestAccount(tenantID string, channel models.ChannelType, identifier string) *models.ChannelAccount {
	return &models.ChannelAccount{
		TenantID:    tenantID,
		WorkspaceID: "ws-1",
		Type:        channel,
		Identifier:  identifier,
		Credentials: map[string]string{"api_key": "test-key"},
		Attributes:  map[string]string{"sender_id": "TESTSK"},
	}
}

func createTestTemplate(tenantID, name, body string, variables []string) *models.Template {
	return &models.Template{
		TenantID:           tenantID,
		ChannelType:        models.ChannelSMS,
		Name:               name,
		ProviderTemplateID: "dlt-" + name,
		Body:               body,
		Variables:          variables,
		Status:             models.TemplatePending,
	}
}
