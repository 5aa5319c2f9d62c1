package ratelimit

import (
	"fmt"
	"time"

	"gateway/internal/constants"
	"gateway/pkg/models"
)

// Key identifies one rate-limit window. Message and template sends on the
// same account track independently.
type Key struct {
	ChannelAccountID string
	ChannelType      models.ChannelType
	ActionType       models.ActionType
}

func (k Key) cacheKey() string {
	return fmt.Sprintf("%s%s:%s:%s", constants.CacheKeyPrefixRateLimit, k.ChannelAccountID, k.ChannelType, k.ActionType)
}

// Status is a point-in-time view of one window, exposed through the
// diagnostics endpoint and used by the send pipeline.
type Status struct {
	Allowed    bool          `json:"allowed"`
	Limit      int           `json:"limit"`
	Used       int           `json:"used"`
	Remaining  int           `json:"remaining"`
	RetryAfter time.Duration `json:"retry_after"`
}
