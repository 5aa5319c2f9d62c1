package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gateway/internal/config"
	"gateway/internal/logger"
	"gateway/pkg/models"
)

type fakeRepository struct {
	counts  map[string]int
	ttls    map[string]time.Duration
	windows map[string]time.Duration
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		counts:  make(map[string]int),
		ttls:    make(map[string]time.Duration),
		windows: make(map[string]time.Duration),
	}
}

func (f *fakeRepository) Count(ctx context.Context, key string) (int, time.Duration, error) {
	return f.counts[key], f.ttls[key], nil
}

func (f *fakeRepository) Increment(ctx context.Context, key string, window time.Duration) (int, error) {
	f.counts[key]++
	if _, ok := f.windows[key]; !ok {
		f.windows[key] = window
		f.ttls[key] = window
	}
	return f.counts[key], nil
}

func testKey() Key {
	return Key{
		ChannelAccountID: "acc-1",
		ChannelType:      models.ChannelSMS,
		ActionType:       models.ActionMessage,
	}
}

func TestCheckLimitAllowsUnderLimit(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, config.RateLimitConfig{WindowSeconds: 60, DefaultActions: 10}, logger.NopLogger())

	status, err := svc.CheckLimit(context.Background(), testKey())
	require.NoError(t, err)

	assert.True(t, status.Allowed)
	assert.Equal(t, 10, status.Limit)
	assert.Equal(t, 0, status.Used)
	assert.Equal(t, 10, status.Remaining)
	assert.Zero(t, status.RetryAfter)
}

func TestCheckLimitRejectsAtLimitWithRetryAfter(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, config.RateLimitConfig{WindowSeconds: 60, DefaultActions: 10}, logger.NopLogger())

	key := testKey()
	for i := 0; i < 10; i++ {
		require.NoError(t, svc.RecordAction(context.Background(), key))
	}
	repo.ttls[key.cacheKey()] = 42 * time.Second

	status, err := svc.CheckLimit(context.Background(), key)
	require.NoError(t, err)

	assert.False(t, status.Allowed)
	assert.Equal(t, 10, status.Used)
	assert.Equal(t, 0, status.Remaining)
	assert.Equal(t, 42*time.Second, status.RetryAfter)
}

func TestRecordActionStartsWindowOnFirstUse(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, config.RateLimitConfig{WindowSeconds: 30}, logger.NopLogger())

	key := testKey()
	require.NoError(t, svc.RecordAction(context.Background(), key))
	require.NoError(t, svc.RecordAction(context.Background(), key))

	assert.Equal(t, 2, repo.counts[key.cacheKey()])
	assert.Equal(t, 30*time.Second, repo.windows[key.cacheKey()])
}

func TestActionsTrackIndependently(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, config.RateLimitConfig{DefaultActions: 1}, logger.NopLogger())

	msgKey := testKey()
	tmplKey := msgKey
	tmplKey.ActionType = models.ActionTemplate

	require.NoError(t, svc.RecordAction(context.Background(), msgKey))

	msgStatus, err := svc.CheckLimit(context.Background(), msgKey)
	require.NoError(t, err)
	tmplStatus, err := svc.CheckLimit(context.Background(), tmplKey)
	require.NoError(t, err)

	assert.False(t, msgStatus.Allowed)
	assert.True(t, tmplStatus.Allowed)
}

func TestPerActionOverridesDefault(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, config.RateLimitConfig{
		DefaultActions: 100,
		PerAction:      map[string]int{"template": 2},
	}, logger.NopLogger())

	key := testKey()
	key.ActionType = models.ActionTemplate

	status, err := svc.CheckLimit(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, 2, status.Limit)
}
