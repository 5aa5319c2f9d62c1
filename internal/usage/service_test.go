package usage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gateway/internal/logger"
	"gateway/pkg/models"
)

type fakeRepository struct {
	balances map[string]int64
	records  map[string]UsageRecord
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		balances: make(map[string]int64),
		records:  make(map[string]UsageRecord),
	}
}

func (f *fakeRepository) key(tenantID, workspaceID string) string {
	return tenantID + "/" + workspaceID
}

func (f *fakeRepository) GetBalance(ctx context.Context, tenantID, workspaceID string) (int64, error) {
	balance, ok := f.balances[f.key(tenantID, workspaceID)]
	if !ok {
		return 0, ErrBalanceNotFound
	}
	return balance, nil
}

func (f *fakeRepository) ReserveAndRecord(ctx context.Context, record *UsageRecord) (bool, error) {
	if _, exists := f.records[record.MessageEventID]; exists {
		return false, nil
	}
	key := f.key(record.TenantID, record.WorkspaceID)
	if f.balances[key] < record.Cost {
		return false, ErrInsufficientBalance
	}
	f.balances[key] -= record.Cost
	f.records[record.MessageEventID] = *record
	return true, nil
}

func (f *fakeRepository) CreditBalance(ctx context.Context, tenantID, workspaceID string, amount int64) error {
	f.balances[f.key(tenantID, workspaceID)] += amount
	return nil
}

func (f *fakeRepository) ListRecords(ctx context.Context, tenantID string, limit int) ([]UsageRecord, error) {
	var records []UsageRecord
	for _, rec := range f.records {
		if rec.TenantID == tenantID {
			records = append(records, rec)
		}
	}
	return records, nil
}

func TestGetCostEstimate(t *testing.T) {
	tests := []struct {
		name      string
		channel   models.ChannelType
		eventType models.EventType
		units     int
		wantTotal int64
	}{
		{
			name:      "sms transactional three segments",
			channel:   models.ChannelSMS,
			eventType: models.EventSMSTransactional,
			units:     3,
			wantTotal: 60,
		},
		{
			name:      "whatsapp template single message",
			channel:   models.ChannelWhatsApp,
			eventType: models.EventWhatsAppTemplate,
			units:     1,
			wantTotal: 80,
		},
		{
			name:      "empty event type falls back to channel default",
			channel:   models.ChannelEmail,
			eventType: "",
			units:     1,
			wantTotal: 5,
		},
		{
			name:      "zero units bills one",
			channel:   models.ChannelSMS,
			eventType: models.EventSMSOTP,
			units:     0,
			wantTotal: 15,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			estimate := GetCostEstimate(tt.channel, tt.eventType, tt.units)
			assert.Equal(t, tt.wantTotal, estimate.Total)
			assert.Equal(t, "INR", estimate.Currency)
		})
	}
}

func TestCheckBalance(t *testing.T) {
	repo := newFakeRepository()
	repo.balances["t1/w1"] = 50
	svc := NewService(repo, logger.NopLogger())

	check, err := svc.CheckBalance(context.Background(), "t1", "w1", models.ChannelSMS, models.EventSMSTransactional, 2)
	require.NoError(t, err)
	assert.True(t, check.Sufficient)
	assert.Equal(t, int64(50), check.Balance)
	assert.Equal(t, int64(40), check.Estimate.Total)

	check, err = svc.CheckBalance(context.Background(), "t1", "w1", models.ChannelSMS, models.EventSMSTransactional, 3)
	require.NoError(t, err)
	assert.False(t, check.Sufficient)
}

func TestCheckBalanceUnknownTenant(t *testing.T) {
	svc := NewService(newFakeRepository(), logger.NopLogger())

	_, err := svc.CheckBalance(context.Background(), "missing", "w1", models.ChannelSMS, models.EventSMSOTP, 1)
	assert.Error(t, err)
}

func TestRecordUsageIdempotent(t *testing.T) {
	repo := newFakeRepository()
	repo.balances["t1/w1"] = 100
	svc := NewService(repo, logger.NopLogger())

	record := &UsageRecord{
		TenantID:       "t1",
		WorkspaceID:    "w1",
		MessageEventID: "msg-1",
		ChannelType:    models.ChannelSMS,
		EventType:      models.EventSMSTransactional,
		Units:          2,
	}

	created, err := svc.RecordUsage(context.Background(), record)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(60), repo.balances["t1/w1"])

	replay := *record
	created, err = svc.RecordUsage(context.Background(), &replay)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(60), repo.balances["t1/w1"], "replay must not double charge")
}

func TestRecordUsageInsufficientBalance(t *testing.T) {
	repo := newFakeRepository()
	repo.balances["t1/w1"] = 10
	svc := NewService(repo, logger.NopLogger())

	_, err := svc.RecordUsage(context.Background(), &UsageRecord{
		TenantID:       "t1",
		WorkspaceID:    "w1",
		MessageEventID: "msg-2",
		ChannelType:    models.ChannelSMS,
		EventType:      models.EventSMSPromotional,
		Units:          1,
	})
	require.Error(t, err)
	assert.True(t, IsInsufficientBalance(err))
}
