package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gateway/internal/usage"
	"gateway/pkg/models"
)

func testUsageRecord(tenantID, messageEventID string, cost int64) *usage.UsageRecord {
	return &usage.UsageRecord{
		TenantID:       tenantID,
		WorkspaceID:    "ws-1",
		MessageEventID: messageEventID,
		ChannelType:    models.ChannelSMS,
		EventType:      models.EventSMSTransactional,
		Units:          1,
		Cost:           cost,
	}
}

func TestUsageRepository_CreditAndGetBalance(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	ctx := context.Background()
	repo := usage.NewRepository(infra.PostgresDB)

	require.NoError(t, repo.CreditBalance(ctx, "tenant-1", "ws-1", 500))
	require.NoError(t, repo.CreditBalance(ctx, "tenant-1", "ws-1", 250))

	balance, err := repo.GetBalance(ctx, "tenant-1", "ws-1")
	require.NoError(t, err)
	assert.Equal(t, int64(750), balance)
}

func TestUsageRepository_GetBalanceUnknownTenant(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	ctx := context.Background()
	repo := usage.NewRepository(infra.PostgresDB)

	_, err := repo.GetBalance(ctx, "missing-tenant", "ws-1")
	require.Error(t, err)
}

func TestUsageRepository_ReserveAndRecord(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	ctx := context.Background()
	repo := usage.NewRepository(infra.PostgresDB)

	require.NoError(t, repo.CreditBalance(ctx, "tenant-1", "ws-1", 100))

	charged, err := repo.ReserveAndRecord(ctx, testUsageRecord("tenant-1", "msg-1", 20))
	require.NoError(t, err)
	assert.True(t, charged)

	balance, err := repo.GetBalance(ctx, "tenant-1", "ws-1")
	require.NoError(t, err)
	assert.Equal(t, int64(80), balance)
}

func TestUsageRepository_ReplayDoesNotDoubleCharge(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	ctx := context.Background()
	repo := usage.NewRepository(infra.PostgresDB)

	require.NoError(t, repo.CreditBalance(ctx, "tenant-1", "ws-1", 100))

	charged, err := repo.ReserveAndRecord(ctx, testUsageRecord("tenant-1", "msg-1", 20))
	require.NoError(t, err)
	assert.True(t, charged)

	// Same message event delivered again: the record insert is a no-op and
	// the balance must not move.
	charged, err = repo.ReserveAndRecord(ctx, testUsageRecord("tenant-1", "msg-1", 20))
	require.NoError(t, err)
	assert.False(t, charged)

	balance, err := repo.GetBalance(ctx, "tenant-1", "ws-1")
	require.NoError(t, err)
	assert.Equal(t, int64(80), balance)

	records, err := repo.ListRecords(ctx, "tenant-1", 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestUsageRepository_InsufficientBalanceRollsBack(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	ctx := context.Background()
	repo := usage.NewRepository(infra.PostgresDB)

	require.NoError(t, repo.CreditBalance(ctx, "tenant-1", "ws-1", 10))

	_, err := repo.ReserveAndRecord(ctx, testUsageRecord("tenant-1", "msg-1", 20))
	require.Error(t, err)
	assert.True(t, usage.IsInsufficientBalance(err))

	// The transaction rolled back: no usage record, balance untouched, and
	// the same message event can still be billed later.
	records, err := repo.ListRecords(ctx, "tenant-1", 10)
	require.NoError(t, err)
	assert.Empty(t, records)

	balance, err := repo.GetBalance(ctx, "tenant-1", "ws-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)

	require.NoError(t, repo.CreditBalance(ctx, "tenant-1", "ws-1", 50))
	charged, err := repo.ReserveAndRecord(ctx, testUsageRecord("tenant-1", "msg-1", 20))
	require.NoError(t, err)
	assert.True(t, charged)
}
