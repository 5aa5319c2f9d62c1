package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gateway/internal/gateway"
)

func TestRedisDeduplicator_SetNX(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true)

	ctx := context.Background()
	deduper := gateway.NewRedisDeduplicator(infra.RedisClient)

	fresh, err := deduper.SetNX(ctx, "webhook:SMS:ext-1:inbound", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)

	// Redelivery of the same external id and stage is a duplicate.
	fresh, err = deduper.SetNX(ctx, "webhook:SMS:ext-1:inbound", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, fresh)

	// A later lifecycle stage for the same message is not.
	fresh, err = deduper.SetNX(ctx, "webhook:SMS:ext-1:DELIVERED", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestRedisDeduplicator_LastStatusRoundtrip(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true)

	ctx := context.Background()
	deduper := gateway.NewRedisDeduplicator(infra.RedisClient)

	// Absent key reads as empty, not an error.
	value, err := deduper.Get(ctx, "webhook:SMS:ext-2:last")
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, deduper.Set(ctx, "webhook:SMS:ext-2:last", "DELIVERED", time.Minute))

	value, err = deduper.Get(ctx, "webhook:SMS:ext-2:last")
	require.NoError(t, err)
	assert.Equal(t, "DELIVERED", value)
}
