package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gateway/internal/gateway"
	pkgerrors "gateway/pkg/errors"
	"gateway/pkg/models"
)

func TestAccountRepository_CreateAndGet(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	ctx := context.Background()
	repo := gateway.NewAccountRepository(infra.PostgresDB)

	account := createTestAccount("tenant-1", models.ChannelSMS, "TESTSK")
	err := repo.Create(ctx, account)
	require.NoError(t, err)
	require.NotEmpty(t, account.ID)

	got, err := repo.Get(ctx, account.ID)
	require.NoError(t, err)

	assert.Equal(t, "tenant-1", got.TenantID)
	assert.Equal(t, models.ChannelSMS, got.Type)
	assert.Equal(t, "TESTSK", got.Identifier)
	assert.Equal(t, "test-key", got.Credentials["api_key"])
	assert.Equal(t, "TESTSK", got.Attributes[models.AttrSenderID])
	assert.Equal(t, models.AccountHealthy, got.HealthStatus)
}

func TestAccountRepository_DuplicateIdentifier(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	ctx := context.Background()
	repo := gateway.NewAccountRepository(infra.PostgresDB)

	err := repo.Create(ctx, createTestAccount("tenant-1", models.ChannelSMS, "TESTSK"))
	require.NoError(t, err)

	err = repo.Create(ctx, createTestAccount("tenant-1", models.ChannelSMS, "TESTSK"))
	require.Error(t, err)

	var appErr *pkgerrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, pkgerrors.ErrConflict.Code, appErr.Code)
}

func TestAccountRepository_GetNotFound(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	ctx := context.Background()
	repo := gateway.NewAccountRepository(infra.PostgresDB)

	_, err := repo.Get(ctx, "missing-account")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestAccountRepository_ListScopedToTenant(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	ctx := context.Background()
	repo := gateway.NewAccountRepository(infra.PostgresDB)

	require.NoError(t, repo.Create(ctx, createTestAccount("tenant-1", models.ChannelSMS, "TESTSK")))
	require.NoError(t, repo.Create(ctx, createTestAccount("tenant-1", models.ChannelWhatsApp, "15550001111")))
	require.NoError(t, repo.Create(ctx, createTestAccount("tenant-2", models.ChannelSMS, "OTHERX")))

	accounts, err := repo.List(ctx, "tenant-1")
	require.NoError(t, err)

	assert.Len(t, accounts, 2)
	for _, account := range accounts {
		assert.Equal(t, "tenant-1", account.TenantID)
	}
}

func TestAccountRepository_UpdateHealth(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	ctx := context.Background()
	repo := gateway.NewAccountRepository(infra.PostgresDB)

	account := createTestAccount("tenant-1", models.ChannelSMS, "TESTSK")
	require.NoError(t, repo.Create(ctx, account))

	err := repo.UpdateHealth(ctx, account.ID, models.AccountDegraded)
	require.NoError(t, err)

	got, err := repo.Get(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccountDegraded, got.HealthStatus)
}
