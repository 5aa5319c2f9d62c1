package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gateway/internal/template"
	pkgerrors "gateway/pkg/errors"
	"gateway/pkg/models"
)

func TestTemplateRepository_CreateAndGet(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	ctx := context.Background()
	repo := template.NewRepository(infra.PostgresDB)

	tmpl := createTestTemplate("tenant-1", "otp", "Your OTP is {code}. Valid for {minutes} minutes.", []string{"code", "minutes"})
	require.NoError(t, repo.Create(ctx, tmpl))
	require.NotEmpty(t, tmpl.ID)

	got, err := repo.Get(ctx, "tenant-1", tmpl.ID)
	require.NoError(t, err)

	assert.Equal(t, "otp", got.Name)
	assert.Equal(t, "dlt-otp", got.ProviderTemplateID)
	assert.Equal(t, []string{"code", "minutes"}, got.Variables)
	assert.Equal(t, models.TemplatePending, got.Status)
}

func TestTemplateRepository_DuplicateName(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	ctx := context.Background()
	repo := template.NewRepository(infra.PostgresDB)

	require.NoError(t, repo.Create(ctx, createTestTemplate("tenant-1", "otp", "Your OTP is {code}.", []string{"code"})))

	err := repo.Create(ctx, createTestTemplate("tenant-1", "otp", "Different body {code}.", []string{"code"}))
	require.Error(t, err)

	var appErr *pkgerrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, pkgerrors.ErrConflict.Code, appErr.Code)

	// Same name under another tenant is fine.
	require.NoError(t, repo.Create(ctx, createTestTemplate("tenant-2", "otp", "Your OTP is {code}.", []string{"code"})))
}

func TestTemplateRepository_TenantIsolation(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	ctx := context.Background()
	repo := template.NewRepository(infra.PostgresDB)

	tmpl := createTestTemplate("tenant-1", "otp", "Your OTP is {code}.", []string{"code"})
	require.NoError(t, repo.Create(ctx, tmpl))

	_, err := repo.Get(ctx, "tenant-2", tmpl.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestTemplateRepository_UpdateStatus(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	ctx := context.Background()
	repo := template.NewRepository(infra.PostgresDB)

	tmpl := createTestTemplate("tenant-1", "otp", "Your OTP is {code}.", []string{"code"})
	require.NoError(t, repo.Create(ctx, tmpl))

	require.NoError(t, repo.UpdateStatus(ctx, "tenant-1", tmpl.ID, models.TemplateApproved))

	got, err := repo.Get(ctx, "tenant-1", tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TemplateApproved, got.Status)

	err = repo.UpdateStatus(ctx, "tenant-1", "missing-template", models.TemplateRejected)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestTemplateRepository_ListByChannel(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	ctx := context.Background()
	repo := template.NewRepository(infra.PostgresDB)

	sms := createTestTemplate("tenant-1", "otp", "Your OTP is {code}.", []string{"code"})
	require.NoError(t, repo.Create(ctx, sms))

	wa := createTestTemplate("tenant-1", "welcome", "Hello {name}!", []string{"name"})
	wa.ChannelType = models.ChannelWhatsApp
	require.NoError(t, repo.Create(ctx, wa))

	templates, err := repo.List(ctx, "tenant-1", models.ChannelSMS)
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, "otp", templates[0].Name)
}

func TestTemplateRepository_Delete(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	ctx := context.Background()
	repo := template.NewRepository(infra.PostgresDB)

	tmpl := createTestTemplate("tenant-1", "otp", "Your OTP is {code}.", []string{"code"})
	require.NoError(t, repo.Create(ctx, tmpl))

	require.NoError(t, repo.Delete(ctx, "tenant-1", tmpl.ID))

	_, err := repo.Get(ctx, "tenant-1", tmpl.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))

	err = repo.Delete(ctx, "tenant-1", tmpl.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}
