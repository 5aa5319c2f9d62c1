package usage

import (
	"context"

	"gateway/internal/logger"
	"gateway/pkg/metrics"
	"gateway/pkg/models"
)

// Service is the prepaid usage meter: balance checks before a send, usage
// recording after the provider accepts one.
type Service struct {
	repo   Repository
	logger logger.Logger
}

func NewService(repo Repository, log logger.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: log,
	}
}

// CheckBalance reports whether the tenant can afford the send and what it
// would cost. It is advisory: the authoritative debit happens in
// RecordUsage, atomically with the record insert.
func (s *Service) CheckBalance(ctx context.Context, tenantID, workspaceID string, channel models.ChannelType, eventType models.EventType, units int) (BalanceCheck, error) {
	estimate := GetCostEstimate(channel, eventType, units)

	balance, err := s.repo.GetBalance(ctx, tenantID, workspaceID)
	if err != nil {
		return BalanceCheck{}, err
	}

	return BalanceCheck{
		Sufficient: balance >= estimate.Total,
		Balance:    balance,
		Estimate:   estimate,
	}, nil
}

// RecordUsage debits the balance and writes the usage record keyed by the
// message event ID. A replay with the same ID is a no-op, never a double
// charge.
func (s *Service) RecordUsage(ctx context.Context, record *UsageRecord) (bool, error) {
	if record.Cost == 0 {
		estimate := GetCostEstimate(record.ChannelType, record.EventType, record.Units)
		record.EventType = estimate.EventType
		record.Cost = estimate.Total
	}

	created, err := s.repo.ReserveAndRecord(ctx, record)
	if err != nil {
		return false, err
	}

	if created {
		metrics.RecordUsage(string(record.ChannelType), string(record.EventType), record.Units)
	} else {
		s.logger.InfowCtx(ctx, "Usage record replayed, skipping charge",
			"message_event_id", record.MessageEventID,
			"tenant_id", record.TenantID,
		)
	}

	return created, nil
}

// GetCostEstimate is exposed on the service for symmetry with the facade
// API; the calculation itself is pure.
func (s *Service) GetCostEstimate(channel models.ChannelType, eventType models.EventType, units int) CostEstimate {
	return GetCostEstimate(channel, eventType, units)
}
