package optout

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"gateway/internal/constants"
	"gateway/pkg/models"
)

type Repository interface {
	IsMember(ctx context.Context, channel models.ChannelType, recipient string) (bool, error)
	Add(ctx context.Context, channel models.ChannelType, recipient string) error
	Remove(ctx context.Context, channel models.ChannelType, recipient string) error
	Count(ctx context.Context, channel models.ChannelType) (int64, error)
}

type RedisRepository struct {
	client *redis.Client
}

func NewRepository(client *redis.Client) Repository {
	return &RedisRepository{client: client}
}

func setKey(channel models.ChannelType) string {
	return constants.CacheKeyPrefixOptOut + string(channel)
}

func (r *RedisRepository) IsMember(ctx context.Context, channel models.ChannelType, recipient string) (bool, error) {
	member, err := r.client.SIsMember(ctx, setKey(channel), recipient).Result()
	if err != nil {
		return false, fmt.Errorf("redis SIsMember failed: %w", err)
	}
	return member, nil
}

func (r *RedisRepository) Add(ctx context.Context, channel models.ChannelType, recipient string) error {
	if err := r.client.SAdd(ctx, setKey(channel), recipient).Err(); err != nil {
		return fmt.Errorf("redis SAdd failed: %w", err)
	}
	return nil
}

func (r *RedisRepository) Remove(ctx context.Context, channel models.ChannelType, recipient string) error {
	if err := r.client.SRem(ctx, setKey(channel), recipient).Err(); err != nil {
		return fmt.Errorf("redis SRem failed: %w", err)
	}
	return nil
}

func (r *RedisRepository) Count(ctx context.Context, channel models.ChannelType) (int64, error) {
	count, err := r.client.SCard(ctx, setKey(channel)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis SCard failed: %w", err)
	}
	return count, nil
}
