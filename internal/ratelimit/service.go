package ratelimit

import (
	"context"
	"time"

	"gateway/internal/config"
	"gateway/internal/constants"
	"gateway/internal/logger"
	"gateway/pkg/metrics"
)

// Service enforces per-(account, channel, action) send windows. CheckLimit is
// a pure read; RecordAction is the only mutator and is called by the pipeline
// only after the provider accepts a send.
type Service struct {
	repo   Repository
	cfg    config.RateLimitConfig
	logger logger.Logger
}

func NewService(repo Repository, cfg config.RateLimitConfig, log logger.Logger) *Service {
	return &Service{
		repo:   repo,
		cfg:    cfg,
		logger: log,
	}
}

func (s *Service) window() time.Duration {
	if s.cfg.WindowSeconds > 0 {
		return time.Duration(s.cfg.WindowSeconds) * time.Second
	}
	return constants.DefaultRateLimitWindow
}

func (s *Service) limitFor(key Key) int {
	if limit, ok := s.cfg.PerAction[string(key.ActionType)]; ok && limit > 0 {
		return limit
	}
	if s.cfg.DefaultActions > 0 {
		return s.cfg.DefaultActions
	}
	return constants.DefaultRateLimitActions
}

// CheckLimit reports whether the window has room for one more action. It
// never mutates the counter so that a rejected send leaves no trace.
func (s *Service) CheckLimit(ctx context.Context, key Key) (Status, error) {
	limit := s.limitFor(key)

	used, resetIn, err := s.repo.Count(ctx, key.cacheKey())
	if err != nil {
		return Status{}, err
	}

	status := Status{
		Allowed:   used < limit,
		Limit:     limit,
		Used:      used,
		Remaining: limit - used,
	}
	if status.Remaining < 0 {
		status.Remaining = 0
	}
	if !status.Allowed {
		if resetIn <= 0 {
			resetIn = s.window()
		}
		status.RetryAfter = resetIn
		metrics.RateLimitRequestsTotal.WithLabelValues("limited").Inc()
	} else {
		metrics.RateLimitRequestsTotal.WithLabelValues("allowed").Inc()
	}

	return status, nil
}

// RecordAction consumes one unit of the window. The increment is atomic in
// Redis so concurrent sends on the same account cannot lose updates.
func (s *Service) RecordAction(ctx context.Context, key Key) error {
	count, err := s.repo.Increment(ctx, key.cacheKey(), s.window())
	if err != nil {
		return err
	}

	if limit := s.limitFor(key); count > limit {
		s.logger.WarnwCtx(ctx, "Rate limit window exceeded after record",
			"account_id", key.ChannelAccountID,
			"channel", key.ChannelType,
			"action", key.ActionType,
			"count", count,
			"limit", limit,
		)
	}
	return nil
}

// GetStatus exposes the current window for diagnostics endpoints.
func (s *Service) GetStatus(ctx context.Context, key Key) (Status, error) {
	return s.CheckLimit(ctx, key)
}
